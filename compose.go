package valueset

import (
	"fmt"
	"time"
)

// FilterOp is the operator vocabulary for compose filters.
type FilterOp string

// Filter operators. The spellings follow the FHIR filter-operator code
// system, including "descendent".
const (
	FilterOpEquals         FilterOp = "="
	FilterOpIsA            FilterOp = "is-a"
	FilterOpDescendentOf   FilterOp = "descendent-of"
	FilterOpIsNotA         FilterOp = "is-not-a"
	FilterOpRegex          FilterOp = "regex"
	FilterOpIn             FilterOp = "in"
	FilterOpNotIn          FilterOp = "not-in"
	FilterOpGeneralizes    FilterOp = "generalizes"
	FilterOpChildOf        FilterOp = "child-of"
	FilterOpDescendentLeaf FilterOp = "descendent-leaf"
	FilterOpExists         FilterOp = "exists"
)

// Valid reports whether op is part of the operator vocabulary.
func (op FilterOp) Valid() bool {
	switch op {
	case FilterOpEquals, FilterOpIsA, FilterOpDescendentOf, FilterOpIsNotA,
		FilterOpRegex, FilterOpIn, FilterOpNotIn, FilterOpGeneralizes,
		FilterOpChildOf, FilterOpDescendentLeaf, FilterOpExists:
		return true
	default:
		return false
	}
}

// String returns the operator code.
func (op FilterOp) String() string {
	return string(op)
}

// Filter selects codes from a code system by (property, operator, value).
// The engine treats the predicate as opaque data; interpretation belongs
// to the code system backend evaluating it.
type Filter struct {
	Property string   `json:"property"`
	Op       FilterOp `json:"op"`
	Value    string   `json:"value"`
}

// NewFilter builds a Filter and validates the operator against the fixed
// vocabulary.
func NewFilter(property string, op FilterOp, value string) (Filter, error) {
	if property == "" {
		return Filter{}, fmt.Errorf("valueset: filter requires a property")
	}
	if !op.Valid() {
		return Filter{}, fmt.Errorf("valueset: unknown filter operator %q", op)
	}
	return Filter{Property: property, Op: op, Value: value}, nil
}

// ConceptReference is a concept listed directly in a compose rule. The
// code system is carried by the enclosing rule.
type ConceptReference struct {
	Code         string        `json:"code"`
	Display      string        `json:"display,omitempty"`
	Designations []Designation `json:"designation,omitempty"`
}

// ComposeInclude is a single include or exclude directive: a code system
// reference with an optional fixed concept list, optional filters, and
// optional references to other value sets.
type ComposeInclude struct {
	System   string             `json:"system,omitempty"`
	Version  string             `json:"version,omitempty"`
	Concept  []ConceptReference `json:"concept,omitempty"`
	Filter   []Filter           `json:"filter,omitempty"`
	ValueSet []string           `json:"valueSet,omitempty"`
}

// Empty reports whether the rule can contribute anything. An empty rule
// is legal but is ignored by evaluation.
func (r ComposeInclude) Empty() bool {
	return r.System == "" && len(r.Concept) == 0 && len(r.Filter) == 0 && len(r.ValueSet) == 0
}

// Codings returns the rule's fixed concepts as codings in rule order,
// carrying the rule's system and version.
func (r ComposeInclude) Codings() []Coding {
	if len(r.Concept) == 0 {
		return nil
	}
	out := make([]Coding, 0, len(r.Concept))
	for _, c := range r.Concept {
		out = append(out, Coding{
			System:       r.System,
			Version:      r.Version,
			Code:         c.Code,
			Display:      c.Display,
			Designations: c.Designations,
		})
	}
	return out
}

// Compose is the intensional definition of a value set's membership.
// Exclude rules are only meaningful relative to codes produced by the
// include rules; excluding a code never included is a no-op.
type Compose struct {
	Include    []ComposeInclude `json:"include,omitempty"`
	Exclude    []ComposeInclude `json:"exclude,omitempty"`
	Property   []string         `json:"property,omitempty"`
	LockedDate *time.Time       `json:"lockedDate,omitempty"`
	Inactive   *bool            `json:"inactive,omitempty"`
}
