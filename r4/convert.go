// Package r4 converts FHIR R4 ValueSet and CodeSystem resources into the
// engine's model. Conversion is one-directional: resources come in from
// JSON (IG packages, terminology servers) and leave as value sets and
// concept definitions ready to register with a terminology store.
package r4

import (
	"fmt"

	fhir "github.com/gofhir/fhir/r4"
	valueset "github.com/gofhir/valueset"
	"github.com/gofhir/valueset/terminology"
)

// ValueSetFromR4 converts an R4 ValueSet resource. A resource carrying
// an expansion becomes an eager value set; otherwise the compose rules
// are converted and the result expands lazily once an expander is
// installed. Filters with unrecognized operators are skipped rather
// than failing the whole resource, matching how IG packages mix
// operator vocabularies across FHIR versions.
func ValueSetFromR4(src *fhir.ValueSet) (*valueset.ValueSet, error) {
	if src == nil || src.Url == nil {
		return nil, fmt.Errorf("r4: value set is nil or has no url")
	}

	if src.Expansion != nil {
		exp := valueset.NewExpansion()
		collectContains(src.Expansion.Contains, exp)
		total := len(exp.Contains)
		exp.Total = &total
		vs := valueset.NewExpanded(*src.Url, exp)
		vs.Status = "active"
		if src.Compose != nil {
			vs.Compose = composeFromR4(src.Compose)
		}
		return vs, nil
	}

	var compose *valueset.Compose
	if src.Compose != nil {
		compose = composeFromR4(src.Compose)
	} else {
		compose = &valueset.Compose{}
	}
	vs := valueset.New(*src.Url, compose, nil)
	vs.Status = "active"
	return vs, nil
}

// CodeSystemFromR4 converts an R4 CodeSystem resource into concept
// definitions for terminology registration. Hierarchy comes from both
// nested concept elements and subsumedBy properties.
func CodeSystemFromR4(src *fhir.CodeSystem) (string, []terminology.ConceptDefinition, error) {
	if src == nil || src.Url == nil {
		return "", nil, fmt.Errorf("r4: code system is nil or has no url")
	}
	var defs []terminology.ConceptDefinition
	collectConcepts(src.Concept, "", &defs)
	return *src.Url, defs, nil
}

// LoadValueSet converts and registers an R4 ValueSet with the store.
func LoadValueSet(store *terminology.InMemoryStore, src *fhir.ValueSet) error {
	vs, err := ValueSetFromR4(src)
	if err != nil {
		return err
	}
	return store.RegisterValueSet(vs)
}

// LoadCodeSystem converts and registers an R4 CodeSystem with the store.
func LoadCodeSystem(store *terminology.InMemoryStore, src *fhir.CodeSystem) error {
	url, defs, err := CodeSystemFromR4(src)
	if err != nil {
		return err
	}
	return store.RegisterCodeSystem(url, defs)
}

func composeFromR4(src *fhir.ValueSetCompose) *valueset.Compose {
	compose := &valueset.Compose{}
	for i := range src.Include {
		compose.Include = append(compose.Include, includeFromR4(&src.Include[i]))
	}
	for i := range src.Exclude {
		compose.Exclude = append(compose.Exclude, includeFromR4(&src.Exclude[i]))
	}
	return compose
}

func includeFromR4(src *fhir.ValueSetComposeInclude) valueset.ComposeInclude {
	rule := valueset.ComposeInclude{
		System: deref(src.System),
	}
	for i := range src.Concept {
		c := &src.Concept[i]
		if c.Code == nil {
			continue
		}
		rule.Concept = append(rule.Concept, valueset.ConceptReference{
			Code:    *c.Code,
			Display: deref(c.Display),
		})
	}
	for i := range src.Filter {
		f := &src.Filter[i]
		if f.Property == nil || f.Op == nil || f.Value == nil {
			continue
		}
		op := valueset.FilterOp(string(*f.Op))
		if !op.Valid() {
			continue
		}
		rule.Filter = append(rule.Filter, valueset.Filter{
			Property: *f.Property,
			Op:       op,
			Value:    *f.Value,
		})
	}
	return rule
}

func collectContains(contains []fhir.ValueSetExpansionContains, exp *valueset.Expansion) {
	for i := range contains {
		c := &contains[i]
		if c.Code != nil && c.System != nil {
			exp.Contains = append(exp.Contains, valueset.Coding{
				System:  *c.System,
				Code:    *c.Code,
				Display: deref(c.Display),
			})
		}
		collectContains(c.Contains, exp)
	}
}

func collectConcepts(concepts []fhir.CodeSystemConcept, parent string, defs *[]terminology.ConceptDefinition) {
	for i := range concepts {
		c := &concepts[i]
		if c.Code == nil {
			continue
		}
		def := terminology.ConceptDefinition{
			Code:    *c.Code,
			Display: deref(c.Display),
		}
		if parent != "" {
			def.Parents = append(def.Parents, parent)
		}
		for _, prop := range c.Property {
			if prop.Code != nil && *prop.Code == "subsumedBy" && prop.ValueCode != nil {
				def.Parents = append(def.Parents, *prop.ValueCode)
			}
		}
		*defs = append(*defs, def)
		collectConcepts(c.Concept, *c.Code, defs)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
