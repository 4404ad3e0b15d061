package valueset

import "context"

// EnumeratedValueSet is the fully-enumerated variant: constructed from a
// finite list of codings known up front. The expansion is populated at
// construction, and one include rule per distinct source system is
// synthesized so the composition stays consistent with the expansion.
type EnumeratedValueSet struct {
	ValueSet
}

// NewEnumerated builds an enumerated value set from the given codings.
// Duplicate (system, code) pairs are kept as supplied.
func NewEnumerated(codes ...Coding) *EnumeratedValueSet {
	vs := &EnumeratedValueSet{}
	vs.Status = "active"

	exp := NewExpansion()
	exp.Contains = append(exp.Contains, codes...)
	total := len(codes)
	exp.Total = &total
	vs.Expansion = exp

	vs.Compose = synthesizeCompose(codes)
	return vs
}

// synthesizeCompose groups codings into one include rule per distinct
// system, preserving first-seen system order and coding order within a
// system.
func synthesizeCompose(codes []Coding) *Compose {
	compose := &Compose{}
	index := make(map[string]int)
	for _, c := range codes {
		i, ok := index[c.System]
		if !ok {
			i = len(compose.Include)
			index[c.System] = i
			compose.Include = append(compose.Include, ComposeInclude{System: c.System})
		}
		compose.Include[i].Concept = append(compose.Include[i].Concept, ConceptReference{
			Code:         c.Code,
			Display:      c.Display,
			Designations: c.Designations,
		})
	}
	return compose
}

// Expand reports a RedundantExpansionWarning: the set was expanded at
// construction time and there is nothing to compute. The warning is
// advisory and the expansion is left untouched.
func (vs *EnumeratedValueSet) Expand(ctx context.Context) error {
	return &RedundantExpansionWarning{URL: vs.URL}
}
