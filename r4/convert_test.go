package r4

import (
	"context"
	"testing"

	fhir "github.com/gofhir/fhir/r4"
	valueset "github.com/gofhir/valueset"
	"github.com/gofhir/valueset/terminology"
)

func strp(s string) *string { return &s }

func TestValueSetFromR4_Expansion(t *testing.T) {
	src := &fhir.ValueSet{
		Url: strp("http://example.org/vs/expanded"),
		Expansion: &fhir.ValueSetExpansion{
			Contains: []fhir.ValueSetExpansionContains{
				{System: strp("http://example.org/cs"), Code: strp("a"), Display: strp("Alpha")},
				{
					System: strp("http://example.org/cs"),
					Code:   strp("b"),
					Contains: []fhir.ValueSetExpansionContains{
						{System: strp("http://example.org/cs"), Code: strp("b1")},
					},
				},
			},
		},
	}

	vs, err := ValueSetFromR4(src)
	if err != nil {
		t.Fatalf("ValueSetFromR4 failed: %v", err)
	}
	if !vs.IsExpanded() {
		t.Fatal("resource with expansion should convert eagerly")
	}
	// Nested contains are flattened.
	if got := len(vs.Expansion.Contains); got != 3 {
		t.Fatalf("expansion holds %d codings; want 3", got)
	}
	if !vs.Expansion.ContainsCoding(valueset.Coding{System: "http://example.org/cs", Code: "b1"}) {
		t.Error("nested contains entry missing")
	}
	if vs.Expansion.Contains[0].Display != "Alpha" {
		t.Errorf("Display = %s", vs.Expansion.Contains[0].Display)
	}
}

func TestValueSetFromR4_Compose(t *testing.T) {
	src := &fhir.ValueSet{
		Url: strp("http://example.org/vs/composed"),
		Compose: &fhir.ValueSetCompose{
			Include: []fhir.ValueSetComposeInclude{
				{
					System: strp("http://example.org/cs"),
					Concept: []fhir.ValueSetComposeIncludeConcept{
						{Code: strp("a"), Display: strp("Alpha")},
						{Display: strp("no code, skipped")},
					},
				},
			},
			Exclude: []fhir.ValueSetComposeInclude{
				{
					System: strp("http://example.org/cs"),
					Concept: []fhir.ValueSetComposeIncludeConcept{
						{Code: strp("b")},
					},
				},
			},
		},
	}

	vs, err := ValueSetFromR4(src)
	if err != nil {
		t.Fatalf("ValueSetFromR4 failed: %v", err)
	}
	if vs.IsExpanded() {
		t.Fatal("compose-only resource should convert lazily")
	}
	if len(vs.Compose.Include) != 1 || len(vs.Compose.Exclude) != 1 {
		t.Fatalf("compose = %+v", vs.Compose)
	}
	include := vs.Compose.Include[0]
	if include.System != "http://example.org/cs" {
		t.Errorf("System = %s", include.System)
	}
	if len(include.Concept) != 1 || include.Concept[0].Code != "a" {
		t.Errorf("concepts = %+v; want the codeless concept skipped", include.Concept)
	}
}

func TestValueSetFromR4_Invalid(t *testing.T) {
	if _, err := ValueSetFromR4(nil); err == nil {
		t.Error("nil resource should fail")
	}
	if _, err := ValueSetFromR4(&fhir.ValueSet{}); err == nil {
		t.Error("resource without url should fail")
	}
}

func TestCodeSystemFromR4(t *testing.T) {
	src := &fhir.CodeSystem{
		Url: strp("http://example.org/cs/hierarchy"),
		Concept: []fhir.CodeSystemConcept{
			{
				Code:    strp("parent"),
				Display: strp("Parent"),
				Concept: []fhir.CodeSystemConcept{
					{Code: strp("child"), Display: strp("Child")},
				},
			},
		},
	}

	url, defs, err := CodeSystemFromR4(src)
	if err != nil {
		t.Fatalf("CodeSystemFromR4 failed: %v", err)
	}
	if url != "http://example.org/cs/hierarchy" {
		t.Errorf("url = %s", url)
	}
	if len(defs) != 2 {
		t.Fatalf("got %d concepts; want 2", len(defs))
	}

	var child *terminology.ConceptDefinition
	for i := range defs {
		if defs[i].Code == "child" {
			child = &defs[i]
		}
	}
	if child == nil {
		t.Fatal("child concept missing")
	}
	if len(child.Parents) != 1 || child.Parents[0] != "parent" {
		t.Errorf("child parents = %v; want [parent]", child.Parents)
	}
}

func TestLoadIntoStore(t *testing.T) {
	ctx := context.Background()
	store := terminology.NewStore()

	cs := &fhir.CodeSystem{
		Url: strp("http://example.org/cs/loaded"),
		Concept: []fhir.CodeSystemConcept{
			{Code: strp("x"), Display: strp("X")},
		},
	}
	if err := LoadCodeSystem(store, cs); err != nil {
		t.Fatalf("LoadCodeSystem failed: %v", err)
	}

	src := &fhir.ValueSet{
		Url: strp("http://example.org/vs/loaded"),
		Compose: &fhir.ValueSetCompose{
			Include: []fhir.ValueSetComposeInclude{
				{System: strp("http://example.org/cs/loaded")},
			},
		},
	}
	if err := LoadValueSet(store, src); err != nil {
		t.Fatalf("LoadValueSet failed: %v", err)
	}

	result, err := store.ValidateCode(ctx, "http://example.org/cs/loaded", "x", "http://example.org/vs/loaded")
	if err != nil {
		t.Fatalf("ValidateCode failed: %v", err)
	}
	if !result.Valid {
		t.Errorf("expected x to validate: %s", result.Message)
	}
}
