package terminology

import (
	"context"
	"fmt"
	"strings"
	"sync"

	valueset "github.com/gofhir/valueset"
	"github.com/gofhir/valueset/engine"
	"github.com/gofhir/valueset/service"
)

// ConceptDefinition describes one code registered into a code system:
// its display, its parents in the subsumption hierarchy, arbitrary
// properties for filter evaluation, designations, and activity status.
type ConceptDefinition struct {
	Code         string                 `json:"code" yaml:"code"`
	Display      string                 `json:"display,omitempty" yaml:"display,omitempty"`
	Definition   string                 `json:"definition,omitempty" yaml:"definition,omitempty"`
	Parents      []string               `json:"parents,omitempty" yaml:"parents,omitempty"`
	Properties   map[string]string      `json:"properties,omitempty" yaml:"properties,omitempty"`
	Designations []valueset.Designation `json:"designations,omitempty" yaml:"designations,omitempty"`
	Inactive     bool                   `json:"inactive,omitempty" yaml:"inactive,omitempty"`
}

// InMemoryStore holds code systems and value sets in memory and backs
// the expansion engine: it is a service.ConceptSource, a
// service.ValueSetResolver, and a service.TerminologyService.
// All methods are safe for concurrent use.
type InMemoryStore struct {
	mu          sync.RWMutex
	codeSystems map[string]*codeSystemData
	valueSets   map[string]*valueset.ValueSet

	expander *engine.ComposeExpander
}

// codeSystemData indexes one code system: codes in registration order,
// plus the child index derived from concept parents.
type codeSystemData struct {
	url      string
	order    []string
	codes    map[string]*conceptEntry
	children map[string][]string
}

type conceptEntry struct {
	code         string
	display      string
	definition   string
	parents      []string
	properties   map[string]string
	designations []valueset.Designation
	inactive     bool
}

// NewStore creates an in-memory store pre-loaded with the bundled common
// code systems and value sets.
func NewStore() *InMemoryStore {
	s := &InMemoryStore{
		codeSystems: make(map[string]*codeSystemData),
		valueSets:   make(map[string]*valueset.ValueSet),
	}
	s.expander = engine.New(s, s)
	s.loadCommon()
	return s
}

// Expander returns the store's compose expander, for wiring into
// rule-based value sets resolved against this store.
func (s *InMemoryStore) Expander() *engine.ComposeExpander {
	return s.expander
}

// RegisterCodeSystem adds (or replaces) a code system. The child index
// is rebuilt from the concepts' parent links.
func (s *InMemoryStore) RegisterCodeSystem(url string, concepts []ConceptDefinition) error {
	if url == "" {
		return fmt.Errorf("terminology: code system requires a url")
	}

	cs := &codeSystemData{
		url:      url,
		codes:    make(map[string]*conceptEntry, len(concepts)),
		children: make(map[string][]string),
	}
	for _, c := range concepts {
		if c.Code == "" {
			return fmt.Errorf("terminology: code system %s has a concept without a code", url)
		}
		if _, dup := cs.codes[c.Code]; dup {
			return fmt.Errorf("terminology: code system %s defines %q twice", url, c.Code)
		}
		cs.order = append(cs.order, c.Code)
		cs.codes[c.Code] = &conceptEntry{
			code:         c.Code,
			display:      c.Display,
			definition:   c.Definition,
			parents:      c.Parents,
			properties:   c.Properties,
			designations: c.Designations,
			inactive:     c.Inactive,
		}
	}
	for code, entry := range cs.codes {
		for _, parent := range entry.parents {
			cs.children[parent] = append(cs.children[parent], code)
		}
	}

	s.mu.Lock()
	s.codeSystems[url] = cs
	s.mu.Unlock()
	return nil
}

// RegisterValueSet adds (or replaces) a value set, keyed by its URL.
// Rule-based value sets registered here are expanded against this store
// when resolved or expanded by URL.
func (s *InMemoryStore) RegisterValueSet(vs *valueset.ValueSet) error {
	if vs == nil || vs.URL == "" {
		return fmt.Errorf("terminology: value set is nil or has no url")
	}
	if !vs.IsExpanded() {
		vs.SetExpander(s.expander)
	}

	s.mu.Lock()
	s.valueSets[vs.URL] = vs
	s.mu.Unlock()
	return nil
}

// CountCodeSystems returns the number of registered code systems.
func (s *InMemoryStore) CountCodeSystems() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.codeSystems)
}

// CountValueSets returns the number of registered value sets.
func (s *InMemoryStore) CountValueSets() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.valueSets)
}

// --- service.ConceptSource ---

// HasSystem implements service.ConceptSource.
func (s *InMemoryStore) HasSystem(ctx context.Context, system string) (bool, error) {
	s.mu.RLock()
	_, ok := s.codeSystems[system]
	s.mu.RUnlock()
	return ok, nil
}

// HasCode implements service.ConceptSource.
func (s *InMemoryStore) HasCode(ctx context.Context, system, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cs, ok := s.codeSystems[system]
	if !ok {
		return false, fmt.Errorf("terminology: code system not found: %s", system)
	}
	_, ok = cs.codes[code]
	return ok, nil
}

// AllCodes implements service.ConceptSource. Codes come back in
// registration order.
func (s *InMemoryStore) AllCodes(ctx context.Context, system string) ([]valueset.Coding, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	cs, ok := s.codeSystems[system]
	if !ok {
		return nil, fmt.Errorf("terminology: code system not found: %s", system)
	}

	out := make([]valueset.Coding, 0, len(cs.order))
	for _, code := range cs.order {
		out = append(out, cs.codes[code].toCoding(system))
	}
	return out, nil
}

func (e *conceptEntry) toCoding(system string) valueset.Coding {
	return valueset.Coding{
		System:       system,
		Code:         e.code,
		Display:      e.display,
		Designations: e.designations,
	}
}

// --- service.ValueSetResolver ---

// ResolveValueSet implements service.ValueSetResolver. A canonical with
// a version suffix ("url|version") resolves by the bare URL; the version
// is not otherwise interpreted.
func (s *InMemoryStore) ResolveValueSet(ctx context.Context, url string) (*valueset.ValueSet, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	s.mu.RLock()
	vs, ok := s.valueSets[stripVersionFromURL(url)]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("terminology: value set not found: %s", url)
	}
	return vs, nil
}

// --- service.TerminologyService ---

// ExpandValueSet implements service.ValueSetExpander. A registered
// pre-expanded value set returns its expansion as-is; rule-based value
// sets are computed against this store on every call (wrap the store in
// a CachedStore to memoize).
func (s *InMemoryStore) ExpandValueSet(ctx context.Context, url string) (*valueset.Expansion, error) {
	vs, err := s.ResolveValueSet(ctx, url)
	if err != nil {
		return nil, err
	}
	if vs.IsExpanded() {
		return vs.Expansion, nil
	}
	return s.expander.Expand(ctx, vs.Compose)
}

// ValidateCode implements service.CodeValidator. With a valueSetURL the
// code is tested for value set membership; otherwise it is looked up in
// the code system named by system.
func (s *InMemoryStore) ValidateCode(ctx context.Context, system, code, valueSetURL string) (*service.ValidateCodeResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if code == "" {
		return &service.ValidateCodeResult{
			Valid:   false,
			Message: "code is empty",
		}, nil
	}

	if valueSetURL != "" {
		vs, err := s.ResolveValueSet(ctx, valueSetURL)
		if err != nil {
			return nil, err
		}

		if system == "" {
			return s.validateCodeAnySystem(ctx, vs, code, valueSetURL)
		}

		ok, err := vs.ValidateCode(ctx, valueset.Coding{System: system, Code: code})
		if err != nil {
			return nil, err
		}
		if !ok {
			return &service.ValidateCodeResult{
				Valid:   false,
				Message: fmt.Sprintf("code '%s' not found in value set '%s'", code, valueSetURL),
				Code:    code,
				System:  system,
			}, nil
		}
		return &service.ValidateCodeResult{
			Valid:   true,
			Code:    code,
			System:  system,
			Display: s.displayOf(system, code),
		}, nil
	}

	if system == "" {
		return &service.ValidateCodeResult{
			Valid:   false,
			Message: "no system or value set specified for code validation",
			Code:    code,
		}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	cs, ok := s.codeSystems[system]
	if !ok {
		return nil, fmt.Errorf("terminology: code system not found: %s", system)
	}
	entry, ok := cs.codes[code]
	if !ok {
		return &service.ValidateCodeResult{
			Valid:   false,
			Message: fmt.Sprintf("code '%s' not found in code system '%s'", code, system),
			Code:    code,
			System:  system,
		}, nil
	}
	return &service.ValidateCodeResult{
		Valid:   true,
		Code:    code,
		System:  system,
		Display: entry.display,
	}, nil
}

// validateCodeAnySystem tests a bare code against every system present
// in the value set's expansion. The expansion is computed here rather
// than cached onto the shared registered instance.
func (s *InMemoryStore) validateCodeAnySystem(ctx context.Context, vs *valueset.ValueSet, code, valueSetURL string) (*service.ValidateCodeResult, error) {
	exp := vs.Expansion
	if exp == nil {
		var err error
		exp, err = s.expander.Expand(ctx, vs.Compose)
		if err != nil {
			return nil, err
		}
	}
	var found *valueset.Coding
	for i := range exp.Contains {
		if exp.Contains[i].Code == code {
			found = &exp.Contains[i]
			break
		}
	}
	if found == nil {
		return &service.ValidateCodeResult{
			Valid:   false,
			Message: fmt.Sprintf("code '%s' not found in value set '%s'", code, valueSetURL),
			Code:    code,
		}, nil
	}
	return &service.ValidateCodeResult{
		Valid:   true,
		Code:    found.Code,
		System:  found.System,
		Display: found.Display,
	}, nil
}

func (s *InMemoryStore) displayOf(system, code string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cs, ok := s.codeSystems[system]; ok {
		if entry, ok := cs.codes[code]; ok {
			return entry.display
		}
	}
	return ""
}

// Interface compliance.
var (
	_ service.ConceptSource      = (*InMemoryStore)(nil)
	_ service.ValueSetResolver   = (*InMemoryStore)(nil)
	_ service.TerminologyService = (*InMemoryStore)(nil)
)

// stripVersionFromURL removes the version suffix from a canonical URL,
// e.g. "http://example.org/vs|1.2.0" resolves as "http://example.org/vs".
func stripVersionFromURL(url string) string {
	if idx := strings.LastIndex(url, "|"); idx != -1 {
		return url[:idx]
	}
	return url
}
