package valueset

import "fmt"

// Coding is a reference to a concept defined by a terminology system.
// Identity is the (system, code) pair; display, version and designations
// are presentation data and take no part in equality.
type Coding struct {
	System       string `json:"system,omitempty"`
	Version      string `json:"version,omitempty"`
	Code         string `json:"code"`
	Display      string `json:"display,omitempty"`
	UserSelected bool   `json:"userSelected,omitempty"`

	// Designations carries locale- or use-specific alternate labels.
	Designations []Designation `json:"designation,omitempty"`
}

// NewCoding builds a Coding and validates its invariants: a code is
// required, a system is required for membership testing to be meaningful.
func NewCoding(system, code, display string) (Coding, error) {
	if code == "" {
		return Coding{}, fmt.Errorf("valueset: coding requires a code")
	}
	if system == "" {
		return Coding{}, fmt.Errorf("valueset: coding %q requires a system", code)
	}
	return Coding{System: system, Code: code, Display: display}, nil
}

// Key returns the identity key used for deduplication and set difference.
func (c Coding) Key() string {
	return c.System + "|" + c.Code
}

// SameAs reports whether two codings identify the same concept.
func (c Coding) SameAs(other Coding) bool {
	return c.System == other.System && c.Code == other.Code
}

// String renders the coding as system|code, with the display when known.
func (c Coding) String() string {
	if c.Display != "" {
		return c.System + "|" + c.Code + " (" + c.Display + ")"
	}
	return c.System + "|" + c.Code
}

// Designation is an additional representation of a concept: a translation,
// a use-specific synonym, or similar.
type Designation struct {
	Language string  `json:"language,omitempty"`
	Use      *Coding `json:"use,omitempty"`
	Value    string  `json:"value"`
}

// CodeableConcept bundles alternative codings for one real-world concept,
// optionally with a free-text summary.
type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

// First returns the first coding and true, or a zero coding and false
// when the concept carries no codings.
func (cc CodeableConcept) First() (Coding, bool) {
	if len(cc.Coding) == 0 {
		return Coding{}, false
	}
	return cc.Coding[0], true
}
