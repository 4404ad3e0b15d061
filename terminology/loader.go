package terminology

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"strings"

	valueset "github.com/gofhir/valueset"
	"gopkg.in/yaml.v3"
)

// Definition files let deployments ship terminology content alongside
// configuration instead of compiling it in. A file may carry any mix of
// code systems and value sets:
//
//	fhirVersion: R4
//	codeSystems:
//	  - url: http://example.org/cs/severity
//	    concepts:
//	      - code: mild
//	      - code: severe
//	valueSets:
//	  - url: http://example.org/vs/severity
//	    include:
//	      - system: http://example.org/cs/severity
//
// JSON files use the same shape with json field names.

// LoadStats summarizes what LoadDefinitions registered.
type LoadStats struct {
	Files       int
	CodeSystems int
	ValueSets   int
}

type definitionFile struct {
	FHIRVersion string          `json:"fhirVersion,omitempty" yaml:"fhirVersion,omitempty"`
	CodeSystems []codeSystemDef `json:"codeSystems,omitempty" yaml:"codeSystems,omitempty"`
	ValueSets   []valueSetDef   `json:"valueSets,omitempty" yaml:"valueSets,omitempty"`
}

type codeSystemDef struct {
	URL      string              `json:"url" yaml:"url"`
	Concepts []ConceptDefinition `json:"concepts" yaml:"concepts"`
}

type valueSetDef struct {
	URL     string       `json:"url" yaml:"url"`
	Name    string       `json:"name,omitempty" yaml:"name,omitempty"`
	Title   string       `json:"title,omitempty" yaml:"title,omitempty"`
	Version string       `json:"version,omitempty" yaml:"version,omitempty"`
	Status  string       `json:"status,omitempty" yaml:"status,omitempty"`
	Include []includeDef `json:"include,omitempty" yaml:"include,omitempty"`
	Exclude []includeDef `json:"exclude,omitempty" yaml:"exclude,omitempty"`
}

type includeDef struct {
	System    string           `json:"system,omitempty" yaml:"system,omitempty"`
	Version   string           `json:"version,omitempty" yaml:"version,omitempty"`
	Codes     []conceptRefDef  `json:"codes,omitempty" yaml:"codes,omitempty"`
	Filters   []filterRuleDef  `json:"filters,omitempty" yaml:"filters,omitempty"`
	ValueSets []string         `json:"valueSets,omitempty" yaml:"valueSets,omitempty"`
}

type conceptRefDef struct {
	Code    string `json:"code" yaml:"code"`
	Display string `json:"display,omitempty" yaml:"display,omitempty"`
}

type filterRuleDef struct {
	Property string `json:"property" yaml:"property"`
	Op       string `json:"op" yaml:"op"`
	Value    string `json:"value" yaml:"value"`
}

// LoadDefinitions walks fsys and registers every .json, .yaml and .yml
// definition file it finds. Registration order follows the walk order,
// so a later file can replace content from an earlier one.
func (s *InMemoryStore) LoadDefinitions(fsys fs.FS) (LoadStats, error) {
	var stats LoadStats
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(path.Ext(p))
		if ext != ".json" && ext != ".yaml" && ext != ".yml" {
			return nil
		}

		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("terminology: read %s: %w", p, err)
		}
		var def definitionFile
		if ext == ".json" {
			err = json.Unmarshal(data, &def)
		} else {
			err = yaml.Unmarshal(data, &def)
		}
		if err != nil {
			return fmt.Errorf("terminology: parse %s: %w", p, err)
		}
		if def.FHIRVersion != "" && !valueset.FHIRVersion(def.FHIRVersion).IsValid() {
			return fmt.Errorf("terminology: %s: unsupported fhirVersion %q", p, def.FHIRVersion)
		}

		for _, cs := range def.CodeSystems {
			if err := s.RegisterCodeSystem(cs.URL, cs.Concepts); err != nil {
				return fmt.Errorf("terminology: %s: %w", p, err)
			}
			stats.CodeSystems++
		}
		for _, vd := range def.ValueSets {
			vs, err := vd.build(s)
			if err != nil {
				return fmt.Errorf("terminology: %s: %w", p, err)
			}
			if err := s.RegisterValueSet(vs); err != nil {
				return fmt.Errorf("terminology: %s: %w", p, err)
			}
			stats.ValueSets++
		}
		stats.Files++
		return nil
	})
	return stats, err
}

func (vd valueSetDef) build(s *InMemoryStore) (*valueset.ValueSet, error) {
	compose := &valueset.Compose{}
	for _, inc := range vd.Include {
		rule, err := inc.build()
		if err != nil {
			return nil, fmt.Errorf("value set %s: %w", vd.URL, err)
		}
		compose.Include = append(compose.Include, rule)
	}
	for _, exc := range vd.Exclude {
		rule, err := exc.build()
		if err != nil {
			return nil, fmt.Errorf("value set %s: %w", vd.URL, err)
		}
		compose.Exclude = append(compose.Exclude, rule)
	}

	vs := valueset.New(vd.URL, compose, s.expander)
	vs.Name = vd.Name
	vs.Title = vd.Title
	vs.Version = vd.Version
	vs.Status = vd.Status
	if vs.Status == "" {
		vs.Status = "active"
	}
	return vs, nil
}

func (inc includeDef) build() (valueset.ComposeInclude, error) {
	rule := valueset.ComposeInclude{
		System:   inc.System,
		Version:  inc.Version,
		ValueSet: inc.ValueSets,
	}
	for _, c := range inc.Codes {
		if c.Code == "" {
			return rule, fmt.Errorf("include rule for %s lists a concept without a code", inc.System)
		}
		rule.Concept = append(rule.Concept, valueset.ConceptReference{Code: c.Code, Display: c.Display})
	}
	for _, f := range inc.Filters {
		filter, err := valueset.NewFilter(f.Property, valueset.FilterOp(f.Op), f.Value)
		if err != nil {
			return rule, err
		}
		rule.Filter = append(rule.Filter, filter)
	}
	return rule, nil
}
