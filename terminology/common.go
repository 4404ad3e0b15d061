package terminology

import valueset "github.com/gofhir/valueset"

// Bundled code systems and value sets covering the bindings most
// resources touch. Larger terminologies come in through LoadDefinitions
// or the R4 converters.

const (
	AdministrativeGenderSystem = "http://hl7.org/fhir/administrative-gender"
	PublicationStatusSystem    = "http://hl7.org/fhir/publication-status"
	ObservationStatusSystem    = "http://hl7.org/fhir/observation-status"
	ConditionClinicalSystem    = "http://terminology.hl7.org/CodeSystem/condition-clinical"
	ConditionVerStatusSystem   = "http://terminology.hl7.org/CodeSystem/condition-ver-status"
	YesNoSystem                = "http://terminology.hl7.org/CodeSystem/v2-0136"

	AdministrativeGenderValueSet = "http://hl7.org/fhir/ValueSet/administrative-gender"
	PublicationStatusValueSet    = "http://hl7.org/fhir/ValueSet/publication-status"
	ObservationStatusValueSet    = "http://hl7.org/fhir/ValueSet/observation-status"
	ConditionClinicalValueSet    = "http://hl7.org/fhir/ValueSet/condition-clinical"
	ConditionVerStatusValueSet   = "http://hl7.org/fhir/ValueSet/condition-ver-status"
	YesNoValueSet                = "http://terminology.hl7.org/ValueSet/v2-0136"
)

func (s *InMemoryStore) loadCommon() {
	common := []struct {
		system   string
		vs       string
		concepts []ConceptDefinition
	}{
		{
			system: AdministrativeGenderSystem,
			vs:     AdministrativeGenderValueSet,
			concepts: []ConceptDefinition{
				{Code: "male", Display: "Male"},
				{Code: "female", Display: "Female"},
				{Code: "other", Display: "Other"},
				{Code: "unknown", Display: "Unknown"},
			},
		},
		{
			system: PublicationStatusSystem,
			vs:     PublicationStatusValueSet,
			concepts: []ConceptDefinition{
				{Code: "draft", Display: "Draft"},
				{Code: "active", Display: "Active"},
				{Code: "retired", Display: "Retired"},
				{Code: "unknown", Display: "Unknown"},
			},
		},
		{
			system: ObservationStatusSystem,
			vs:     ObservationStatusValueSet,
			concepts: []ConceptDefinition{
				{Code: "registered", Display: "Registered"},
				{Code: "preliminary", Display: "Preliminary"},
				{Code: "final", Display: "Final"},
				{Code: "amended", Display: "Amended"},
				{Code: "corrected", Display: "Corrected", Parents: []string{"amended"}},
				{Code: "cancelled", Display: "Cancelled"},
				{Code: "entered-in-error", Display: "Entered in Error"},
				{Code: "unknown", Display: "Unknown"},
			},
		},
		{
			system: ConditionClinicalSystem,
			vs:     ConditionClinicalValueSet,
			concepts: []ConceptDefinition{
				{Code: "active", Display: "Active"},
				{Code: "recurrence", Display: "Recurrence", Parents: []string{"active"}},
				{Code: "relapse", Display: "Relapse", Parents: []string{"active"}},
				{Code: "inactive", Display: "Inactive"},
				{Code: "remission", Display: "Remission", Parents: []string{"inactive"}},
				{Code: "resolved", Display: "Resolved", Parents: []string{"inactive"}},
				{Code: "unknown", Display: "Unknown"},
			},
		},
		{
			system: ConditionVerStatusSystem,
			vs:     ConditionVerStatusValueSet,
			concepts: []ConceptDefinition{
				{Code: "unconfirmed", Display: "Unconfirmed"},
				{Code: "provisional", Display: "Provisional", Parents: []string{"unconfirmed"}},
				{Code: "differential", Display: "Differential", Parents: []string{"unconfirmed"}},
				{Code: "confirmed", Display: "Confirmed"},
				{Code: "refuted", Display: "Refuted"},
				{Code: "entered-in-error", Display: "Entered in Error"},
			},
		},
		{
			system: YesNoSystem,
			vs:     YesNoValueSet,
			concepts: []ConceptDefinition{
				{Code: "Y", Display: "Yes"},
				{Code: "N", Display: "No"},
			},
		},
	}

	for _, c := range common {
		// Bundled definitions are static; registration cannot fail.
		if err := s.RegisterCodeSystem(c.system, c.concepts); err != nil {
			panic("terminology: bundled code system " + c.system + ": " + err.Error())
		}
		vs := valueset.New(c.vs, &valueset.Compose{
			Include: []valueset.ComposeInclude{{System: c.system}},
		}, s.expander)
		vs.Status = "active"
		if err := s.RegisterValueSet(vs); err != nil {
			panic("terminology: bundled value set " + c.vs + ": " + err.Error())
		}
	}
}
