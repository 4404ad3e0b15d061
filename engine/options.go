package engine

import (
	valueset "github.com/gofhir/valueset"
)

// Option configures a ComposeExpander.
type Option func(*Options)

// Options holds all configuration for a ComposeExpander.
type Options struct {
	// MaxExpansionSize caps the full expansion size; 0 means unlimited.
	// Exceeding it fails with ExpansionTooLargeError.
	MaxExpansionSize int

	// MaxDepth bounds nesting through value set references.
	MaxDepth int

	// Paged, PageOffset and PageCount select one page of the result. The
	// expansion's Total stays the full count and Offset records the page
	// position.
	Paged      bool
	PageOffset int
	PageCount  int

	// NestedCacheSize is the LRU capacity for memoized nested value set
	// expansions; 0 disables memoization.
	NestedCacheSize int

	// Lenient skips unknown code systems and unresolvable value set
	// references with a warning issue instead of failing the expansion.
	Lenient bool

	// OnIssue receives non-fatal findings raised during evaluation.
	OnIssue func(valueset.Issue)

	// Metrics, when set, records expansion and membership activity.
	Metrics *valueset.Metrics
}

// DefaultOptions returns the default configuration.
func DefaultOptions() *Options {
	return &Options{
		MaxDepth:        16,
		NestedCacheSize: 128,
	}
}

// WithMaxExpansionSize caps the expansion size.
func WithMaxExpansionSize(n int) Option {
	return func(o *Options) {
		o.MaxExpansionSize = n
	}
}

// WithMaxDepth bounds nested value set reference depth.
func WithMaxDepth(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxDepth = n
		}
	}
}

// WithPaging selects one page of the expansion.
func WithPaging(offset, count int) Option {
	return func(o *Options) {
		o.Paged = true
		o.PageOffset = offset
		o.PageCount = count
	}
}

// WithNestedCacheSize sets the nested-expansion LRU capacity; 0 disables
// memoization.
func WithNestedCacheSize(n int) Option {
	return func(o *Options) {
		o.NestedCacheSize = n
	}
}

// WithLenient makes unknown systems and unresolvable references
// non-fatal.
func WithLenient(lenient bool) Option {
	return func(o *Options) {
		o.Lenient = lenient
	}
}

// WithIssueHandler installs a sink for non-fatal findings.
func WithIssueHandler(fn func(valueset.Issue)) Option {
	return func(o *Options) {
		o.OnIssue = fn
	}
}

// WithMetrics installs a metrics recorder.
func WithMetrics(m *valueset.Metrics) Option {
	return func(o *Options) {
		o.Metrics = m
	}
}
