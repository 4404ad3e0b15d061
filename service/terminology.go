// Package service defines the contracts between the value set engine and
// the terminology backends that supply concepts, evaluate filters, and
// resolve value set references. Interfaces are kept small (one to four
// methods) so backends can implement only what they support.
package service

import (
	"context"

	valueset "github.com/gofhir/valueset"
)

// ConceptSource supplies a code system's codes to the expansion engine.
// Implementations must be safe for concurrent use.
type ConceptSource interface {
	// HasSystem reports whether the code system is known to the source.
	HasSystem(ctx context.Context, system string) (bool, error)

	// HasCode reports whether the code is defined by the system.
	HasCode(ctx context.Context, system, code string) (bool, error)

	// AllCodes returns every code of the system in a stable order.
	AllCodes(ctx context.Context, system string) ([]valueset.Coding, error)

	// EvaluateFilter returns the system's codes selected by the filter.
	EvaluateFilter(ctx context.Context, system string, f valueset.Filter) ([]valueset.Coding, error)

	// MatchesFilter reports whether a single code satisfies the filter
	// without enumerating the system. Backends with hierarchies can
	// answer this far cheaper than a full EvaluateFilter.
	MatchesFilter(ctx context.Context, system, code string, f valueset.Filter) (bool, error)
}

// ValueSetResolver resolves canonical value set URLs for nested
// composition references. The canonical may carry a version suffix
// ("url|version"); resolvers decide how to honor it.
type ValueSetResolver interface {
	ResolveValueSet(ctx context.Context, url string) (*valueset.ValueSet, error)
}

// ValidateCodeResult holds the result of a code validation.
type ValidateCodeResult struct {
	Valid   bool
	Message string
	Code    string
	System  string
	Display string
}

// CodeValidator validates codes against value sets or code systems.
type CodeValidator interface {
	ValidateCode(ctx context.Context, system, code, valueSetURL string) (*ValidateCodeResult, error)
}

// ValueSetExpander expands registered value sets by canonical URL.
type ValueSetExpander interface {
	ExpandValueSet(ctx context.Context, url string) (*valueset.Expansion, error)
}

// TerminologyService combines the operations typical callers need.
type TerminologyService interface {
	CodeValidator
	ValueSetExpander
}

// TerminologyCache caches validations and expansions.
type TerminologyCache interface {
	GetExpansion(url string) (*valueset.Expansion, bool)
	SetExpansion(url string, e *valueset.Expansion)
	GetValidation(key string) (*ValidateCodeResult, bool)
	SetValidation(key string, r *ValidateCodeResult)
}
