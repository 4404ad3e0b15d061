package valueset

import (
	"context"
)

// Expander turns a composition into an expansion. It is the polymorphic
// hook a rule-based value set needs: implementations resolve each include
// rule (fixed concepts, filters against a code system backend, nested
// value set references), union the results in rule order, and subtract
// the contribution of each exclude rule keyed on (system, code).
type Expander interface {
	Expand(ctx context.Context, compose *Compose) (*Expansion, error)
}

// MembershipTester is an optional shortcut an Expander may provide to
// test a single coding against a composition without materializing the
// full expansion, e.g. via hierarchy lookups. When absent, membership
// falls back to expanding and scanning.
type MembershipTester interface {
	TestMembership(ctx context.Context, compose *Compose, coding Coding) (bool, error)
}

// ValueSet is the aggregate root: identity and version metadata, a
// composition, and a cached expansion. Reads trigger expansion on first
// access; mutations keep composition and expansion consistent.
//
// The expansion, once set, is only replaced by Reexpand, InitExpansion,
// or incremental Append/Extend, never silently.
type ValueSet struct {
	URL     string `json:"url,omitempty"`
	Name    string `json:"name,omitempty"`
	Title   string `json:"title,omitempty"`
	Version string `json:"version,omitempty"`
	Status  string `json:"status,omitempty"`

	Compose   *Compose   `json:"compose,omitempty"`
	Expansion *Expansion `json:"expansion,omitempty"`

	expander Expander
}

// New returns a lazy, rule-based value set whose expansion is computed on
// demand by expander.
func New(url string, compose *Compose, expander Expander) *ValueSet {
	return &ValueSet{URL: url, Compose: compose, expander: expander}
}

// NewExpanded returns an eager value set created from a pre-supplied
// expansion.
func NewExpanded(url string, expansion *Expansion) *ValueSet {
	return &ValueSet{URL: url, Expansion: expansion}
}

// SetExpander installs the expansion strategy. Useful when a value set
// arrives from a converter or loader without one.
func (vs *ValueSet) SetExpander(e Expander) {
	vs.expander = e
}

// IsExpanded reports whether an expansion is present.
func (vs *ValueSet) IsExpanded() bool {
	return vs.Expansion != nil
}

// degenerate: no composition, no expansion, no strategy. Such a value set
// is valid with empty membership and zero length.
func (vs *ValueSet) degenerate() bool {
	return vs.Compose == nil && vs.Expansion == nil && vs.expander == nil
}

// Expand materializes the expansion. It is idempotent when an expansion
// is already present. Without a strategy it fails with
// ErrExpansionUnsupported.
func (vs *ValueSet) Expand(ctx context.Context) error {
	if vs.IsExpanded() {
		return nil
	}
	if vs.expander == nil {
		return ErrExpansionUnsupported
	}
	exp, err := vs.expander.Expand(ctx, vs.Compose)
	if err != nil {
		return err
	}
	if exp == nil {
		return &ExpansionInvariantError{URL: vs.URL}
	}
	vs.Expansion = exp
	return nil
}

// Reexpand discards any cached expansion and recomputes it from the
// composition. This is the only read-path operation that replaces an
// existing expansion.
func (vs *ValueSet) Reexpand(ctx context.Context) error {
	if vs.expander == nil {
		return ErrExpansionUnsupported
	}
	exp, err := vs.expander.Expand(ctx, vs.Compose)
	if err != nil {
		return err
	}
	if exp == nil {
		return &ExpansionInvariantError{URL: vs.URL}
	}
	vs.Expansion = exp
	return nil
}

// ensureExpanded is the explicit compute-once-then-cache step every read
// operation starts with.
func (vs *ValueSet) ensureExpanded(ctx context.Context) error {
	if err := vs.Expand(ctx); err != nil {
		return err
	}
	if vs.Expansion == nil {
		return &ExpansionInvariantError{URL: vs.URL}
	}
	return nil
}

// Len returns the size of the value set, expanding it first if needed.
// A degenerate value set has length zero.
func (vs *ValueSet) Len(ctx context.Context) (int, error) {
	if vs.degenerate() {
		return 0, nil
	}
	if err := vs.ensureExpanded(ctx); err != nil {
		return 0, err
	}
	return vs.Expansion.Len(), nil
}

// Each calls fn for every coding in expansion order, expanding first if
// needed. Iteration stops early when fn returns false. Every call
// re-iterates the materialized expansion, not the composition, so the
// sequence is finite and restartable.
func (vs *ValueSet) Each(ctx context.Context, fn func(Coding) bool) error {
	if vs.degenerate() {
		return nil
	}
	if err := vs.ensureExpanded(ctx); err != nil {
		return err
	}
	for _, c := range vs.Expansion.Contains {
		if !fn(c) {
			return nil
		}
	}
	return nil
}

// Codings returns a copy of the expansion's codings in order, expanding
// first if needed.
func (vs *ValueSet) Codings(ctx context.Context) ([]Coding, error) {
	if vs.degenerate() {
		return nil, nil
	}
	if err := vs.ensureExpanded(ctx); err != nil {
		return nil, err
	}
	out := make([]Coding, len(vs.Expansion.Contains))
	copy(out, vs.Expansion.Contains)
	return out, nil
}

// ValidateCode reports whether a coding is a member of the value set.
// An already-present expansion is scanned directly; otherwise the
// strategy's membership shortcut is used when available, and expansion
// plus scan is the fallback.
func (vs *ValueSet) ValidateCode(ctx context.Context, coding Coding) (bool, error) {
	if vs.degenerate() {
		return false, nil
	}
	if vs.IsExpanded() {
		return vs.Expansion.ContainsCoding(coding), nil
	}
	if mt, ok := vs.expander.(MembershipTester); ok {
		return mt.TestMembership(ctx, vs.Compose, coding)
	}
	if err := vs.ensureExpanded(ctx); err != nil {
		return false, err
	}
	return vs.Expansion.ContainsCoding(coding), nil
}

// ValidateConcept reports whether any coding of the concept is a member.
func (vs *ValueSet) ValidateConcept(ctx context.Context, concept CodeableConcept) (bool, error) {
	for _, c := range concept.Coding {
		ok, err := vs.ValidateCode(ctx, c)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Contains tests membership for a Coding or a CodeableConcept. Values of
// any other type are not members; type mismatch is not an error.
func (vs *ValueSet) Contains(ctx context.Context, item any) (bool, error) {
	switch v := item.(type) {
	case Coding:
		return vs.ValidateCode(ctx, v)
	case *Coding:
		if v == nil {
			return false, nil
		}
		return vs.ValidateCode(ctx, *v)
	case CodeableConcept:
		return vs.ValidateConcept(ctx, v)
	case *CodeableConcept:
		if v == nil {
			return false, nil
		}
		return vs.ValidateConcept(ctx, *v)
	default:
		return false, nil
	}
}

// InitExpansion sets a fresh, empty expansion with a current timestamp.
// It overwrites an existing expansion; callers wanting to preserve one
// must check IsExpanded first.
func (vs *ValueSet) InitExpansion() {
	vs.Expansion = NewExpansion()
}

// MutateOptions control how Append and Extend touch the composition and
// the expansion.
type MutateOptions struct {
	// ExtendCompose records the mutation as a new include rule.
	ExtendCompose bool

	// InitExpansion initializes an empty expansion when none exists.
	// When false and no expansion exists, the mutation fails with
	// ErrExpansionNotInitialized.
	InitExpansion bool

	// RequireUniformSystem rejects batches spanning more than one code
	// system with ErrMixedSystemBatch instead of scoping the synthesized
	// include rule to the first coding's system.
	RequireUniformSystem bool
}

// DefaultMutateOptions extends the composition and auto-initializes the
// expansion.
func DefaultMutateOptions() MutateOptions {
	return MutateOptions{ExtendCompose: true, InitExpansion: true}
}

// Append adds a single coding using the default mutation options.
func (vs *ValueSet) Append(c Coding) error {
	return vs.AppendWith(c, DefaultMutateOptions())
}

// AppendWith adds a single coding. With ExtendCompose a single-concept
// include rule scoped to the coding's system is recorded first.
func (vs *ValueSet) AppendWith(c Coding, opts MutateOptions) error {
	if opts.ExtendCompose {
		vs.appendIncludeRule(c.System, []Coding{c})
	}
	if !vs.IsExpanded() {
		if !opts.InitExpansion {
			return ErrExpansionNotInitialized
		}
		vs.InitExpansion()
	}
	vs.Expansion.Append(c)
	return nil
}

// Extend adds a batch of codings using the default mutation options.
func (vs *ValueSet) Extend(codes []Coding) error {
	return vs.ExtendWith(codes, DefaultMutateOptions())
}

// ExtendWith adds a batch of codings. The synthesized include rule is
// scoped to the first coding's system; set RequireUniformSystem to make
// mixed-system batches fail instead.
func (vs *ValueSet) ExtendWith(codes []Coding, opts MutateOptions) error {
	if len(codes) == 0 {
		return ErrEmptyBatch
	}
	if opts.RequireUniformSystem {
		for _, c := range codes[1:] {
			if c.System != codes[0].System {
				return ErrMixedSystemBatch
			}
		}
	}
	if opts.ExtendCompose {
		vs.appendIncludeRule(codes[0].System, codes)
	}
	if !vs.IsExpanded() {
		if !opts.InitExpansion {
			return ErrExpansionNotInitialized
		}
		vs.InitExpansion()
	}
	vs.Expansion.Append(codes...)
	return nil
}

func (vs *ValueSet) appendIncludeRule(system string, codes []Coding) {
	refs := make([]ConceptReference, 0, len(codes))
	for _, c := range codes {
		refs = append(refs, ConceptReference{
			Code:         c.Code,
			Display:      c.Display,
			Designations: c.Designations,
		})
	}
	if vs.Compose == nil {
		vs.Compose = &Compose{}
	}
	vs.Compose.Include = append(vs.Compose.Include, ComposeInclude{
		System:  system,
		Concept: refs,
	})
}
