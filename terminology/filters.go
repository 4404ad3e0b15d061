package terminology

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	valueset "github.com/gofhir/valueset"
	"github.com/gofhir/valueset/pool"
)

// Filter evaluation against a code system's concepts and hierarchy.
//
// Property conventions: "code" and "display" address the concept itself;
// any other property name addresses the concept's property map. The
// hierarchical operators (is-a, descendent-of, is-not-a, generalizes,
// child-of, descendent-leaf) interpret the filter value as a code and
// walk the subsumption hierarchy; for them the property is
// conventionally "concept" and is not otherwise interpreted.

// EvaluateFilter implements service.ConceptSource. Matches come back in
// the system's registration order.
func (s *InMemoryStore) EvaluateFilter(ctx context.Context, system string, f valueset.Filter) ([]valueset.Coding, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if !f.Op.Valid() {
		return nil, fmt.Errorf("terminology: unknown filter operator %q", f.Op)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	cs, ok := s.codeSystems[system]
	if !ok {
		return nil, fmt.Errorf("terminology: code system not found: %s", system)
	}

	match, err := compileFilter(cs, f)
	if err != nil {
		return nil, err
	}

	buf := pool.AcquireCodingSlice()
	defer pool.ReleaseCodingSlice(buf)
	for _, code := range cs.order {
		if match(cs.codes[code]) {
			*buf = append(*buf, cs.codes[code].toCoding(system))
		}
	}

	out := make([]valueset.Coding, len(*buf))
	copy(out, *buf)
	return out, nil
}

// MatchesFilter implements service.ConceptSource. Unlike EvaluateFilter
// it answers for one code without scanning the system.
func (s *InMemoryStore) MatchesFilter(ctx context.Context, system, code string, f valueset.Filter) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}
	if !f.Op.Valid() {
		return false, fmt.Errorf("terminology: unknown filter operator %q", f.Op)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	cs, ok := s.codeSystems[system]
	if !ok {
		return false, fmt.Errorf("terminology: code system not found: %s", system)
	}
	entry, ok := cs.codes[code]
	if !ok {
		return false, nil
	}

	match, err := compileFilter(cs, f)
	if err != nil {
		return false, err
	}
	return match(entry), nil
}

// compileFilter turns a filter into a per-concept predicate. Regex
// compilation and value-list splitting happen once, not per concept.
func compileFilter(cs *codeSystemData, f valueset.Filter) (func(*conceptEntry) bool, error) {
	switch f.Op {
	case valueset.FilterOpEquals:
		return func(e *conceptEntry) bool {
			v, ok := propertyValue(e, f.Property)
			return ok && v == f.Value
		}, nil

	case valueset.FilterOpExists:
		want := f.Value != "false"
		return func(e *conceptEntry) bool {
			_, ok := propertyValue(e, f.Property)
			return ok == want
		}, nil

	case valueset.FilterOpRegex:
		re, err := regexp.Compile(f.Value)
		if err != nil {
			return nil, fmt.Errorf("terminology: invalid regex filter %q: %w", f.Value, err)
		}
		return func(e *conceptEntry) bool {
			v, ok := propertyValue(e, f.Property)
			return ok && re.MatchString(v)
		}, nil

	case valueset.FilterOpIn, valueset.FilterOpNotIn:
		set := make(map[string]struct{})
		for _, v := range strings.Split(f.Value, ",") {
			set[strings.TrimSpace(v)] = struct{}{}
		}
		negate := f.Op == valueset.FilterOpNotIn
		return func(e *conceptEntry) bool {
			v, ok := propertyValue(e, f.Property)
			if !ok {
				return negate
			}
			_, in := set[v]
			return in != negate
		}, nil

	case valueset.FilterOpIsA:
		return func(e *conceptEntry) bool {
			return e.code == f.Value || isDescendantOf(cs, e.code, f.Value)
		}, nil

	case valueset.FilterOpDescendentOf:
		return func(e *conceptEntry) bool {
			return isDescendantOf(cs, e.code, f.Value)
		}, nil

	case valueset.FilterOpIsNotA:
		return func(e *conceptEntry) bool {
			return e.code != f.Value && !isDescendantOf(cs, e.code, f.Value)
		}, nil

	case valueset.FilterOpGeneralizes:
		return func(e *conceptEntry) bool {
			return e.code == f.Value || isDescendantOf(cs, f.Value, e.code)
		}, nil

	case valueset.FilterOpChildOf:
		return func(e *conceptEntry) bool {
			for _, p := range e.parents {
				if p == f.Value {
					return true
				}
			}
			return false
		}, nil

	case valueset.FilterOpDescendentLeaf:
		return func(e *conceptEntry) bool {
			return isDescendantOf(cs, e.code, f.Value) && len(cs.children[e.code]) == 0
		}, nil

	default:
		return nil, fmt.Errorf("terminology: unknown filter operator %q", f.Op)
	}
}

// propertyValue resolves a filter property against a concept. "code" and
// "display" address the concept itself; anything else addresses its
// property map.
func propertyValue(e *conceptEntry, property string) (string, bool) {
	switch property {
	case "code":
		return e.code, true
	case "display":
		if e.display == "" {
			return "", false
		}
		return e.display, true
	default:
		v, ok := e.properties[property]
		return v, ok
	}
}

// isDescendantOf reports whether code transitively subsumes under
// ancestor, walking parent links with cycle protection.
func isDescendantOf(cs *codeSystemData, code, ancestor string) bool {
	entry, ok := cs.codes[code]
	if !ok {
		return false
	}
	visited := map[string]bool{code: true}
	queue := append([]string(nil), entry.parents...)
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if visited[p] {
			continue
		}
		visited[p] = true
		if p == ancestor {
			return true
		}
		if pe, ok := cs.codes[p]; ok {
			queue = append(queue, pe.parents...)
		}
	}
	return false
}
