package valueset

import (
	"time"

	"github.com/google/uuid"
)

// Expansion is the materialized, enumerable realization of a value set:
// an ordered list of concrete codings with an optional total count and
// pagination offset, stamped with the time it was computed.
//
// Staleness is the caller's concern; no automatic expiry applies.
type Expansion struct {
	// Identifier uniquely names this particular expansion.
	Identifier string `json:"identifier,omitempty"`

	// Timestamp records when the expansion was computed.
	Timestamp time.Time `json:"timestamp"`

	// Total is the count of the full expansion when known. When absent,
	// len(Contains) is authoritative only for the returned page.
	Total *int `json:"total,omitempty"`

	// Offset is the pagination offset of Contains within the full set.
	Offset *int `json:"offset,omitempty"`

	// Contains holds the expanded codings in order.
	Contains []Coding `json:"contains,omitempty"`
}

// NewExpansion returns a fresh, empty expansion stamped with the current
// time and a unique urn:uuid identifier.
func NewExpansion() *Expansion {
	return &Expansion{
		Identifier: "urn:uuid:" + uuid.NewString(),
		Timestamp:  time.Now().UTC(),
	}
}

// Len returns the authoritative count: the declared total when present,
// otherwise the number of returned codings.
func (e *Expansion) Len() int {
	if e.Total != nil {
		return *e.Total
	}
	return len(e.Contains)
}

// ContainsCoding reports whether a coding with the same (system, code)
// identity is present.
func (e *Expansion) ContainsCoding(c Coding) bool {
	for i := range e.Contains {
		if e.Contains[i].SameAs(c) {
			return true
		}
	}
	return false
}

// Append adds codings to the expansion, keeping a declared total in step.
func (e *Expansion) Append(codes ...Coding) {
	e.Contains = append(e.Contains, codes...)
	if e.Total != nil {
		t := *e.Total + len(codes)
		e.Total = &t
	}
}
