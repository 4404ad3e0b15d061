package valueset

// FHIRVersion identifies the FHIR release a terminology artifact targets.
type FHIRVersion string

// Supported FHIR releases.
const (
	// R4 is FHIR Release 4 (4.0.1)
	R4 FHIRVersion = "R4"
	// R4B is FHIR Release 4B (4.3.0)
	R4B FHIRVersion = "R4B"
	// R5 is FHIR Release 5 (5.0.0)
	R5 FHIRVersion = "R5"
)

// String returns the release name.
func (v FHIRVersion) String() string {
	return string(v)
}

// IsValid reports whether this is a supported release.
func (v FHIRVersion) IsValid() bool {
	switch v {
	case R4, R4B, R5:
		return true
	default:
		return false
	}
}
