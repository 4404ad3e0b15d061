// Package engine materializes value set compositions into expansions.
//
// ComposeExpander implements the valueset.Expander and
// valueset.MembershipTester contracts on top of a service.ConceptSource
// (codes and filter evaluation) and a service.ValueSetResolver (nested
// value set references).
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	valueset "github.com/gofhir/valueset"
	"github.com/gofhir/valueset/cache"
	"github.com/gofhir/valueset/pool"
	"github.com/gofhir/valueset/service"
)

// ComposeExpander evaluates include/exclude rules: each include rule's
// contribution (fixed concepts, filter matches, nested value sets) is
// unioned in rule order with first-occurrence dedup by (system, code),
// then each exclude rule's contribution is subtracted. Excluding a code
// that was never included is a no-op.
type ComposeExpander struct {
	source   service.ConceptSource
	resolver service.ValueSetResolver
	opts     *Options
	nested   *cache.Cache[string, *valueset.Expansion]
}

// New creates a ComposeExpander. Either collaborator may be nil when the
// compositions to expand never need it: source for filter and
// whole-system rules, resolver for nested value set references.
func New(source service.ConceptSource, resolver service.ValueSetResolver, opts ...Option) *ComposeExpander {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	e := &ComposeExpander{source: source, resolver: resolver, opts: o}
	if o.NestedCacheSize > 0 {
		e.nested = cache.New[string, *valueset.Expansion](o.NestedCacheSize)
	}
	return e
}

// Interface compliance.
var (
	_ valueset.Expander         = (*ComposeExpander)(nil)
	_ valueset.MembershipTester = (*ComposeExpander)(nil)
)

// expandState tracks one expansion call across nested references.
type expandState struct {
	visited map[string]bool
	depth   int
}

func newExpandState() *expandState {
	return &expandState{visited: make(map[string]bool)}
}

// Expand implements valueset.Expander. The result carries a fresh
// identifier and timestamp; Total is always the full count, and with
// paging enabled Contains holds only the selected page.
func (e *ComposeExpander) Expand(ctx context.Context, compose *valueset.Compose) (*valueset.Expansion, error) {
	start := time.Now()
	exp, err := e.expand(ctx, compose)
	if e.opts.Metrics != nil {
		e.opts.Metrics.RecordExpansion(time.Since(start), err == nil)
	}
	return exp, err
}

func (e *ComposeExpander) expand(ctx context.Context, compose *valueset.Compose) (*valueset.Expansion, error) {
	codes, err := e.expandCompose(ctx, newExpandState(), compose)
	if err != nil {
		return nil, err
	}

	full := len(codes)
	if e.opts.MaxExpansionSize > 0 && full > e.opts.MaxExpansionSize {
		return nil, &ExpansionTooLargeError{Size: full, Limit: e.opts.MaxExpansionSize}
	}

	exp := valueset.NewExpansion()
	total := full
	exp.Total = &total

	if e.opts.Paged {
		off := e.opts.PageOffset
		if off < 0 {
			off = 0
		}
		if off > full {
			off = full
		}
		end := full
		if e.opts.PageCount > 0 && off+e.opts.PageCount < full {
			end = off + e.opts.PageCount
		}
		exp.Contains = append(exp.Contains, codes[off:end]...)
		exp.Offset = &off
	} else {
		exp.Contains = codes
	}
	return exp, nil
}

// expandCompose resolves a composition to its ordered, deduplicated code
// list. Shared by top-level expansion and nested references.
func (e *ComposeExpander) expandCompose(ctx context.Context, st *expandState, compose *valueset.Compose) ([]valueset.Coding, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if compose == nil {
		return nil, nil
	}

	seen := pool.AcquireSeenSet()
	defer pool.ReleaseSeenSet(seen)

	var out []valueset.Coding
	for i := range compose.Include {
		contrib, err := e.ruleContribution(ctx, st, &compose.Include[i], fmt.Sprintf("compose.include[%d]", i))
		if err != nil {
			return nil, err
		}
		for _, c := range contrib {
			k := c.Key()
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, c)
		}
	}

	if len(compose.Exclude) > 0 && len(out) > 0 {
		excluded := pool.AcquireSeenSet()
		defer pool.ReleaseSeenSet(excluded)

		for i := range compose.Exclude {
			contrib, err := e.ruleContribution(ctx, st, &compose.Exclude[i], fmt.Sprintf("compose.exclude[%d]", i))
			if err != nil {
				return nil, err
			}
			for _, c := range contrib {
				excluded[c.Key()] = struct{}{}
			}
		}

		kept := out[:0]
		for _, c := range out {
			if _, drop := excluded[c.Key()]; !drop {
				kept = append(kept, c)
			}
		}
		out = kept
	}
	return out, nil
}

// ruleContribution resolves one include or exclude rule. Exclude rules
// support concepts, filters and nested references symmetrically with
// include rules.
func (e *ComposeExpander) ruleContribution(ctx context.Context, st *expandState, rule *valueset.ComposeInclude, expr string) ([]valueset.Coding, error) {
	if rule.Empty() {
		return nil, nil
	}

	var out []valueset.Coding
	if rule.System != "" {
		known, err := e.sourceHasSystem(ctx, rule.System)
		if err != nil {
			return nil, err
		}
		switch {
		case !known && !e.opts.Lenient:
			return nil, &UnknownSystemError{System: rule.System}
		case !known:
			e.issue(valueset.NewIssue(valueset.SeverityWarning, valueset.IssueTypeNotFound,
				fmt.Sprintf("code system %q is not known; rule skipped", rule.System)).
				WithSystem(rule.System).WithExpression(expr))
		default:
			out = append(out, rule.Codings()...)
			if len(rule.Filter) > 0 {
				matched, err := e.evaluateFilters(ctx, rule.System, rule.Filter)
				if err != nil {
					return nil, err
				}
				out = append(out, matched...)
			}
			// A rule naming only a system contributes the whole code system.
			if len(rule.Concept) == 0 && len(rule.Filter) == 0 && len(rule.ValueSet) == 0 {
				all, err := e.source.AllCodes(ctx, rule.System)
				if err != nil {
					return nil, err
				}
				out = append(out, all...)
			}
		}
	}

	for _, ref := range rule.ValueSet {
		codes, err := e.nestedCodes(ctx, st, ref)
		if err != nil {
			var unres *UnresolvedReferenceError
			if e.opts.Lenient && errors.As(err, &unres) {
				e.issue(valueset.NewIssue(valueset.SeverityWarning, valueset.IssueTypeNotFound,
					fmt.Sprintf("value set %q cannot be resolved; reference skipped", ref)).
					WithValueSet(ref).WithExpression(expr))
				continue
			}
			return nil, err
		}
		out = append(out, codes...)
	}
	return out, nil
}

// evaluateFilters intersects the matches of every filter in a rule: a
// code contributes only when it satisfies all of them.
func (e *ComposeExpander) evaluateFilters(ctx context.Context, system string, filters []valueset.Filter) ([]valueset.Coding, error) {
	matched, err := e.source.EvaluateFilter(ctx, system, filters[0])
	if err != nil {
		return nil, err
	}
	for _, f := range filters[1:] {
		kept := matched[:0]
		for _, c := range matched {
			ok, err := e.source.MatchesFilter(ctx, system, c.Code, f)
			if err != nil {
				return nil, err
			}
			if ok {
				kept = append(kept, c)
			}
		}
		matched = kept
	}
	return matched, nil
}

// nestedCodes resolves a referenced value set to its code list, using a
// pre-computed expansion when the reference carries one, and memoizing
// computed results in the nested LRU.
func (e *ComposeExpander) nestedCodes(ctx context.Context, st *expandState, url string) ([]valueset.Coding, error) {
	if st.visited[url] {
		return nil, &CircularReferenceError{URL: url}
	}
	if st.depth >= e.opts.MaxDepth {
		return nil, &NestingTooDeepError{URL: url, Depth: e.opts.MaxDepth}
	}

	if e.nested != nil {
		if exp, ok := e.nested.Get(url); ok {
			if e.opts.Metrics != nil {
				e.opts.Metrics.RecordCacheHit()
			}
			return exp.Contains, nil
		}
		if e.opts.Metrics != nil {
			e.opts.Metrics.RecordCacheMiss()
		}
	}

	ref, err := e.resolve(ctx, url)
	if err != nil {
		return nil, err
	}

	var codes []valueset.Coding
	if ref.IsExpanded() {
		codes = ref.Expansion.Contains
	} else {
		st.visited[url] = true
		st.depth++
		codes, err = e.expandCompose(ctx, st, ref.Compose)
		st.depth--
		delete(st.visited, url)
		if err != nil {
			return nil, err
		}
	}

	if e.nested != nil {
		n := len(codes)
		e.nested.Set(url, &valueset.Expansion{Contains: codes, Total: &n})
	}
	return codes, nil
}

// TestMembership implements valueset.MembershipTester: a coding is a
// member when some include rule covers it and no exclude rule does. No
// full expansion is materialized; filters are tested per-code.
func (e *ComposeExpander) TestMembership(ctx context.Context, compose *valueset.Compose, coding valueset.Coding) (bool, error) {
	member, err := e.testMembership(ctx, newExpandState(), compose, coding)
	if err == nil && e.opts.Metrics != nil {
		e.opts.Metrics.RecordMembership(member)
	}
	return member, err
}

func (e *ComposeExpander) testMembership(ctx context.Context, st *expandState, compose *valueset.Compose, coding valueset.Coding) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}
	if compose == nil {
		return false, nil
	}

	included := false
	for i := range compose.Include {
		ok, err := e.ruleMatches(ctx, st, &compose.Include[i], coding)
		if err != nil {
			return false, err
		}
		if ok {
			included = true
			break
		}
	}
	if !included {
		return false, nil
	}

	for i := range compose.Exclude {
		ok, err := e.ruleMatches(ctx, st, &compose.Exclude[i], coding)
		if err != nil {
			return false, err
		}
		if ok {
			return false, nil
		}
	}
	return true, nil
}

func (e *ComposeExpander) ruleMatches(ctx context.Context, st *expandState, rule *valueset.ComposeInclude, coding valueset.Coding) (bool, error) {
	if rule.Empty() {
		return false, nil
	}

	if rule.System != "" && rule.System == coding.System {
		known, err := e.sourceHasSystem(ctx, rule.System)
		if err != nil {
			return false, err
		}
		if !known && !e.opts.Lenient {
			return false, &UnknownSystemError{System: rule.System}
		}
		if known {
			for _, c := range rule.Concept {
				if c.Code == coding.Code {
					return true, nil
				}
			}
			if len(rule.Filter) > 0 {
				all := true
				for _, f := range rule.Filter {
					ok, err := e.source.MatchesFilter(ctx, rule.System, coding.Code, f)
					if err != nil {
						return false, err
					}
					if !ok {
						all = false
						break
					}
				}
				if all {
					return true, nil
				}
			}
			if len(rule.Concept) == 0 && len(rule.Filter) == 0 && len(rule.ValueSet) == 0 {
				ok, err := e.source.HasCode(ctx, rule.System, coding.Code)
				if err != nil {
					return false, err
				}
				if ok {
					return true, nil
				}
			}
		}
	}

	for _, ref := range rule.ValueSet {
		ok, err := e.nestedMembership(ctx, st, ref, coding)
		if err != nil {
			var unres *UnresolvedReferenceError
			if e.opts.Lenient && errors.As(err, &unres) {
				continue
			}
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (e *ComposeExpander) nestedMembership(ctx context.Context, st *expandState, url string, coding valueset.Coding) (bool, error) {
	if st.visited[url] {
		return false, &CircularReferenceError{URL: url}
	}
	if st.depth >= e.opts.MaxDepth {
		return false, &NestingTooDeepError{URL: url, Depth: e.opts.MaxDepth}
	}

	if e.nested != nil {
		if exp, ok := e.nested.Get(url); ok {
			return exp.ContainsCoding(coding), nil
		}
	}

	ref, err := e.resolve(ctx, url)
	if err != nil {
		return false, err
	}
	if ref.IsExpanded() {
		return ref.Expansion.ContainsCoding(coding), nil
	}

	st.visited[url] = true
	st.depth++
	ok, err := e.testMembership(ctx, st, ref.Compose, coding)
	st.depth--
	delete(st.visited, url)
	return ok, err
}

func (e *ComposeExpander) resolve(ctx context.Context, url string) (*valueset.ValueSet, error) {
	if e.resolver == nil {
		return nil, &UnresolvedReferenceError{URL: url}
	}
	ref, err := e.resolver.ResolveValueSet(ctx, url)
	if err != nil {
		return nil, &UnresolvedReferenceError{URL: url, Err: err}
	}
	if ref == nil {
		return nil, &UnresolvedReferenceError{URL: url}
	}
	return ref, nil
}

func (e *ComposeExpander) sourceHasSystem(ctx context.Context, system string) (bool, error) {
	if e.source == nil {
		return false, nil
	}
	return e.source.HasSystem(ctx, system)
}

func (e *ComposeExpander) issue(i valueset.Issue) {
	if e.opts.OnIssue != nil {
		e.opts.OnIssue(i)
	}
}
