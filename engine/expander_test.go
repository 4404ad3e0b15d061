package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	valueset "github.com/gofhir/valueset"
)

// fakeSource serves fixed code lists per system and evaluates the "="
// and "in" operators against the code itself.
type fakeSource struct {
	systems map[string][]valueset.Coding
}

func newFakeSource() *fakeSource {
	return &fakeSource{systems: make(map[string][]valueset.Coding)}
}

func (s *fakeSource) add(system string, codes ...string) *fakeSource {
	for _, code := range codes {
		s.systems[system] = append(s.systems[system], valueset.Coding{System: system, Code: code})
	}
	return s
}

func (s *fakeSource) HasSystem(ctx context.Context, system string) (bool, error) {
	_, ok := s.systems[system]
	return ok, nil
}

func (s *fakeSource) HasCode(ctx context.Context, system, code string) (bool, error) {
	for _, c := range s.systems[system] {
		if c.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeSource) AllCodes(ctx context.Context, system string) ([]valueset.Coding, error) {
	codes, ok := s.systems[system]
	if !ok {
		return nil, fmt.Errorf("unknown system %s", system)
	}
	return codes, nil
}

func (s *fakeSource) EvaluateFilter(ctx context.Context, system string, f valueset.Filter) ([]valueset.Coding, error) {
	var out []valueset.Coding
	for _, c := range s.systems[system] {
		ok, err := s.MatchesFilter(ctx, system, c.Code, f)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeSource) MatchesFilter(ctx context.Context, system, code string, f valueset.Filter) (bool, error) {
	switch f.Op {
	case valueset.FilterOpEquals:
		return code == f.Value, nil
	case valueset.FilterOpIn:
		for _, v := range strings.Split(f.Value, ",") {
			if code == v {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("operator %s not supported by fake source", f.Op)
	}
}

// fakeResolver resolves canonical URLs from a fixed map.
type fakeResolver struct {
	sets  map[string]*valueset.ValueSet
	calls int
}

func (r *fakeResolver) ResolveValueSet(ctx context.Context, url string) (*valueset.ValueSet, error) {
	r.calls++
	vs, ok := r.sets[url]
	if !ok {
		return nil, fmt.Errorf("not registered: %s", url)
	}
	return vs, nil
}

func concepts(system string, codes ...string) valueset.ComposeInclude {
	rule := valueset.ComposeInclude{System: system}
	for _, code := range codes {
		rule.Concept = append(rule.Concept, valueset.ConceptReference{Code: code})
	}
	return rule
}

func codesOf(exp *valueset.Expansion) []string {
	out := make([]string, 0, len(exp.Contains))
	for _, c := range exp.Contains {
		out = append(out, c.Code)
	}
	return out
}

func wantCodes(t *testing.T, exp *valueset.Expansion, want ...string) {
	t.Helper()
	got := codesOf(exp)
	if len(got) != len(want) {
		t.Fatalf("expansion codes = %v; want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expansion codes = %v; want %v", got, want)
		}
	}
}

func TestExpand_UnionDedupOrder(t *testing.T) {
	ctx := context.Background()
	source := newFakeSource().add("http://example.org/cs", "a", "b", "c")
	e := New(source, nil)

	exp, err := e.Expand(ctx, &valueset.Compose{
		Include: []valueset.ComposeInclude{
			concepts("http://example.org/cs", "b", "a"),
			concepts("http://example.org/cs", "a", "c"),
		},
	})
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	wantCodes(t, exp, "b", "a", "c")
	if exp.Total == nil || *exp.Total != 3 {
		t.Errorf("Total = %v; want 3", exp.Total)
	}
}

func TestExpand_ExcludeDifference(t *testing.T) {
	ctx := context.Background()
	source := newFakeSource().add("http://example.org/cs", "a", "b", "c")
	e := New(source, nil)

	exp, err := e.Expand(ctx, &valueset.Compose{
		Include: []valueset.ComposeInclude{concepts("http://example.org/cs", "a", "b", "c")},
		Exclude: []valueset.ComposeInclude{concepts("http://example.org/cs", "b", "z")},
	})
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	// Excluding "z", never included, is a no-op.
	wantCodes(t, exp, "a", "c")
}

func TestExpand_WholeSystemRule(t *testing.T) {
	ctx := context.Background()
	source := newFakeSource().add("http://example.org/cs", "a", "b", "c")
	e := New(source, nil)

	exp, err := e.Expand(ctx, &valueset.Compose{
		Include: []valueset.ComposeInclude{{System: "http://example.org/cs"}},
	})
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	wantCodes(t, exp, "a", "b", "c")
}

func TestExpand_FilterIntersection(t *testing.T) {
	ctx := context.Background()
	source := newFakeSource().add("http://example.org/cs", "a", "b", "c")
	e := New(source, nil)

	exp, err := e.Expand(ctx, &valueset.Compose{
		Include: []valueset.ComposeInclude{{
			System: "http://example.org/cs",
			Filter: []valueset.Filter{
				{Property: "code", Op: valueset.FilterOpIn, Value: "a,b"},
				{Property: "code", Op: valueset.FilterOpEquals, Value: "b"},
			},
		}},
	})
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	wantCodes(t, exp, "b")
}

func TestExpand_UnknownSystem(t *testing.T) {
	ctx := context.Background()
	compose := &valueset.Compose{
		Include: []valueset.ComposeInclude{concepts("http://example.org/unknown", "a")},
	}

	t.Run("strict", func(t *testing.T) {
		e := New(newFakeSource(), nil)
		_, err := e.Expand(ctx, compose)
		var unknown *UnknownSystemError
		if !errors.As(err, &unknown) {
			t.Fatalf("Expand = %v; want UnknownSystemError", err)
		}
		if unknown.System != "http://example.org/unknown" {
			t.Errorf("error system = %s", unknown.System)
		}
	})

	t.Run("lenient", func(t *testing.T) {
		var issues []valueset.Issue
		e := New(newFakeSource(), nil, WithLenient(true), WithIssueHandler(func(i valueset.Issue) {
			issues = append(issues, i)
		}))

		exp, err := e.Expand(ctx, compose)
		if err != nil {
			t.Fatalf("lenient Expand failed: %v", err)
		}
		wantCodes(t, exp)
		if len(issues) != 1 {
			t.Fatalf("got %d issues; want 1", len(issues))
		}
		if issues[0].Severity != valueset.SeverityWarning || issues[0].System != "http://example.org/unknown" {
			t.Errorf("issue = %+v", issues[0])
		}
	})
}

func TestExpand_NestedReference(t *testing.T) {
	ctx := context.Background()
	source := newFakeSource().add("http://example.org/cs", "a", "b", "c")

	nested := valueset.New("http://example.org/vs/nested", &valueset.Compose{
		Include: []valueset.ComposeInclude{concepts("http://example.org/cs", "b", "c")},
	}, nil)
	resolver := &fakeResolver{sets: map[string]*valueset.ValueSet{nested.URL: nested}}
	e := New(source, resolver)

	exp, err := e.Expand(ctx, &valueset.Compose{
		Include: []valueset.ComposeInclude{
			concepts("http://example.org/cs", "a"),
			{ValueSet: []string{nested.URL}},
		},
	})
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	wantCodes(t, exp, "a", "b", "c")
}

func TestExpand_NestedPreExpandedReference(t *testing.T) {
	ctx := context.Background()
	pre := valueset.NewExpanded("http://example.org/vs/pre", &valueset.Expansion{
		Contains: []valueset.Coding{{System: "http://example.org/cs", Code: "x"}},
	})
	resolver := &fakeResolver{sets: map[string]*valueset.ValueSet{pre.URL: pre}}
	e := New(nil, resolver)

	exp, err := e.Expand(ctx, &valueset.Compose{
		Include: []valueset.ComposeInclude{{ValueSet: []string{pre.URL}}},
	})
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	wantCodes(t, exp, "x")
}

func TestExpand_NestedReferenceCached(t *testing.T) {
	ctx := context.Background()
	source := newFakeSource().add("http://example.org/cs", "a")
	nested := valueset.New("http://example.org/vs/nested", &valueset.Compose{
		Include: []valueset.ComposeInclude{concepts("http://example.org/cs", "a")},
	}, nil)
	resolver := &fakeResolver{sets: map[string]*valueset.ValueSet{nested.URL: nested}}
	e := New(source, resolver)

	compose := &valueset.Compose{
		Include: []valueset.ComposeInclude{{ValueSet: []string{nested.URL}}},
	}
	for i := 0; i < 3; i++ {
		if _, err := e.Expand(ctx, compose); err != nil {
			t.Fatalf("Expand %d failed: %v", i, err)
		}
	}
	if resolver.calls != 1 {
		t.Errorf("resolver called %d times; want 1 (memoized)", resolver.calls)
	}
}

func TestExpand_CircularReference(t *testing.T) {
	ctx := context.Background()
	// a references b, b references a.
	a := valueset.New("http://example.org/vs/a", &valueset.Compose{
		Include: []valueset.ComposeInclude{{ValueSet: []string{"http://example.org/vs/b"}}},
	}, nil)
	b := valueset.New("http://example.org/vs/b", &valueset.Compose{
		Include: []valueset.ComposeInclude{{ValueSet: []string{"http://example.org/vs/a"}}},
	}, nil)
	resolver := &fakeResolver{sets: map[string]*valueset.ValueSet{a.URL: a, b.URL: b}}
	e := New(nil, resolver, WithNestedCacheSize(0))

	_, err := e.Expand(ctx, &valueset.Compose{
		Include: []valueset.ComposeInclude{{ValueSet: []string{a.URL}}},
	})
	var circular *CircularReferenceError
	if !errors.As(err, &circular) {
		t.Fatalf("Expand = %v; want CircularReferenceError", err)
	}
}

func TestExpand_NestingTooDeep(t *testing.T) {
	ctx := context.Background()
	// A three-deep chain with MaxDepth 2.
	leaf := valueset.New("http://example.org/vs/leaf", &valueset.Compose{}, nil)
	mid := valueset.New("http://example.org/vs/mid", &valueset.Compose{
		Include: []valueset.ComposeInclude{{ValueSet: []string{leaf.URL}}},
	}, nil)
	top := valueset.New("http://example.org/vs/top", &valueset.Compose{
		Include: []valueset.ComposeInclude{{ValueSet: []string{mid.URL}}},
	}, nil)
	resolver := &fakeResolver{sets: map[string]*valueset.ValueSet{
		leaf.URL: leaf, mid.URL: mid, top.URL: top,
	}}
	e := New(nil, resolver, WithMaxDepth(2), WithNestedCacheSize(0))

	_, err := e.Expand(ctx, &valueset.Compose{
		Include: []valueset.ComposeInclude{{ValueSet: []string{top.URL}}},
	})
	var deep *NestingTooDeepError
	if !errors.As(err, &deep) {
		t.Fatalf("Expand = %v; want NestingTooDeepError", err)
	}
}

func TestExpand_UnresolvedReference(t *testing.T) {
	ctx := context.Background()
	compose := &valueset.Compose{
		Include: []valueset.ComposeInclude{{ValueSet: []string{"http://example.org/vs/missing"}}},
	}

	t.Run("strict", func(t *testing.T) {
		e := New(nil, &fakeResolver{sets: map[string]*valueset.ValueSet{}})
		_, err := e.Expand(ctx, compose)
		var unres *UnresolvedReferenceError
		if !errors.As(err, &unres) {
			t.Fatalf("Expand = %v; want UnresolvedReferenceError", err)
		}
	})

	t.Run("lenient", func(t *testing.T) {
		var issues []valueset.Issue
		e := New(nil, &fakeResolver{sets: map[string]*valueset.ValueSet{}},
			WithLenient(true), WithIssueHandler(func(i valueset.Issue) { issues = append(issues, i) }))

		exp, err := e.Expand(ctx, compose)
		if err != nil {
			t.Fatalf("lenient Expand failed: %v", err)
		}
		wantCodes(t, exp)
		if len(issues) != 1 || issues[0].ValueSetURL != "http://example.org/vs/missing" {
			t.Errorf("issues = %+v", issues)
		}
	})
}

func TestExpand_Paging(t *testing.T) {
	ctx := context.Background()
	source := newFakeSource().add("http://example.org/cs", "a", "b", "c", "d", "e")
	e := New(source, nil, WithPaging(1, 2))

	exp, err := e.Expand(ctx, &valueset.Compose{
		Include: []valueset.ComposeInclude{{System: "http://example.org/cs"}},
	})
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	wantCodes(t, exp, "b", "c")
	if exp.Total == nil || *exp.Total != 5 {
		t.Errorf("Total = %v; want the full count 5", exp.Total)
	}
	if exp.Offset == nil || *exp.Offset != 1 {
		t.Errorf("Offset = %v; want 1", exp.Offset)
	}
}

func TestExpand_MaxExpansionSize(t *testing.T) {
	ctx := context.Background()
	source := newFakeSource().add("http://example.org/cs", "a", "b", "c")
	e := New(source, nil, WithMaxExpansionSize(2))

	_, err := e.Expand(ctx, &valueset.Compose{
		Include: []valueset.ComposeInclude{{System: "http://example.org/cs"}},
	})
	var large *ExpansionTooLargeError
	if !errors.As(err, &large) {
		t.Fatalf("Expand = %v; want ExpansionTooLargeError", err)
	}
	if large.Size != 3 || large.Limit != 2 {
		t.Errorf("error = %+v", large)
	}
}

func TestExpand_Metrics(t *testing.T) {
	ctx := context.Background()
	m := valueset.NewMetrics()
	source := newFakeSource().add("http://example.org/cs", "a")
	e := New(source, nil, WithMetrics(m))

	if _, err := e.Expand(ctx, &valueset.Compose{
		Include: []valueset.ComposeInclude{{System: "http://example.org/cs"}},
	}); err != nil {
		t.Fatalf("Expand failed: %v", err)
	}

	s := m.Snapshot()
	if s.ExpansionsTotal != 1 || s.ExpansionsFailed != 0 {
		t.Errorf("expansions = %d/%d failed; want 1/0", s.ExpansionsTotal, s.ExpansionsFailed)
	}
}

func TestTestMembership(t *testing.T) {
	ctx := context.Background()
	source := newFakeSource().add("http://example.org/cs", "a", "b", "c")
	e := New(source, nil)

	compose := &valueset.Compose{
		Include: []valueset.ComposeInclude{{System: "http://example.org/cs"}},
		Exclude: []valueset.ComposeInclude{concepts("http://example.org/cs", "c")},
	}

	tests := []struct {
		name   string
		coding valueset.Coding
		want   bool
	}{
		{"included by whole-system rule", valueset.Coding{System: "http://example.org/cs", Code: "a"}, true},
		{"excluded", valueset.Coding{System: "http://example.org/cs", Code: "c"}, false},
		{"not in system", valueset.Coding{System: "http://example.org/cs", Code: "z"}, false},
		{"wrong system", valueset.Coding{System: "http://example.org/other", Code: "a"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.TestMembership(ctx, compose, tt.coding)
			if err != nil {
				t.Fatalf("TestMembership failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("TestMembership = %v; want %v", got, tt.want)
			}
		})
	}
}

func TestTestMembership_NestedReference(t *testing.T) {
	ctx := context.Background()
	source := newFakeSource().add("http://example.org/cs", "a", "b")
	nested := valueset.New("http://example.org/vs/nested", &valueset.Compose{
		Include: []valueset.ComposeInclude{concepts("http://example.org/cs", "b")},
	}, nil)
	resolver := &fakeResolver{sets: map[string]*valueset.ValueSet{nested.URL: nested}}
	e := New(source, resolver, WithNestedCacheSize(0))

	compose := &valueset.Compose{
		Include: []valueset.ComposeInclude{{ValueSet: []string{nested.URL}}},
	}

	ok, err := e.TestMembership(ctx, compose, valueset.Coding{System: "http://example.org/cs", Code: "b"})
	if err != nil {
		t.Fatalf("TestMembership failed: %v", err)
	}
	if !ok {
		t.Error("expected membership through nested reference")
	}

	ok, err = e.TestMembership(ctx, compose, valueset.Coding{System: "http://example.org/cs", Code: "a"})
	if err != nil {
		t.Fatalf("TestMembership failed: %v", err)
	}
	if ok {
		t.Error("coding outside the nested set should not be a member")
	}
}
