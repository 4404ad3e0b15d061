package terminology

import (
	"context"
	"testing"

	valueset "github.com/gofhir/valueset"
	"github.com/gofhir/valueset/service"
)

// countingService counts calls through to a fixed answer.
type countingService struct {
	validateCalls int
	expandCalls   int
}

func (c *countingService) ValidateCode(ctx context.Context, system, code, valueSetURL string) (*service.ValidateCodeResult, error) {
	c.validateCalls++
	return &service.ValidateCodeResult{Valid: true, Code: code, System: system}, nil
}

func (c *countingService) ExpandValueSet(ctx context.Context, url string) (*valueset.Expansion, error) {
	c.expandCalls++
	return &valueset.Expansion{
		Contains: []valueset.Coding{{System: "http://example.org/cs", Code: "a"}},
	}, nil
}

func TestCachedStore_ValidateCode(t *testing.T) {
	ctx := context.Background()
	inner := &countingService{}
	cached := NewCachedStore(inner, CacheConfig{})

	for i := 0; i < 3; i++ {
		result, err := cached.ValidateCode(ctx, "http://example.org/cs", "a", "")
		if err != nil {
			t.Fatalf("ValidateCode failed: %v", err)
		}
		if !result.Valid {
			t.Fatal("expected valid result")
		}
	}
	if inner.validateCalls != 1 {
		t.Errorf("inner called %d times; want 1", inner.validateCalls)
	}

	// Another key misses.
	if _, err := cached.ValidateCode(ctx, "http://example.org/cs", "b", ""); err != nil {
		t.Fatalf("ValidateCode failed: %v", err)
	}
	if inner.validateCalls != 2 {
		t.Errorf("inner called %d times; want 2", inner.validateCalls)
	}
}

func TestCachedStore_ExpandValueSet(t *testing.T) {
	ctx := context.Background()
	inner := &countingService{}
	cached := NewCachedStore(inner, CacheConfig{})

	for i := 0; i < 3; i++ {
		if _, err := cached.ExpandValueSet(ctx, "http://example.org/vs"); err != nil {
			t.Fatalf("ExpandValueSet failed: %v", err)
		}
	}
	if inner.expandCalls != 1 {
		t.Errorf("inner called %d times; want 1", inner.expandCalls)
	}

	cached.ClearCache()
	if _, err := cached.ExpandValueSet(ctx, "http://example.org/vs"); err != nil {
		t.Fatalf("ExpandValueSet failed: %v", err)
	}
	if inner.expandCalls != 2 {
		t.Errorf("inner called %d times after ClearCache; want 2", inner.expandCalls)
	}
}

func TestCachedStore_Metrics(t *testing.T) {
	ctx := context.Background()
	cached := NewCachedStore(&countingService{}, CacheConfig{})
	m := valueset.NewMetrics()
	cached.SetMetrics(m)

	if _, err := cached.ExpandValueSet(ctx, "http://example.org/vs"); err != nil {
		t.Fatalf("ExpandValueSet failed: %v", err)
	}
	if _, err := cached.ExpandValueSet(ctx, "http://example.org/vs"); err != nil {
		t.Fatalf("ExpandValueSet failed: %v", err)
	}

	s := m.Snapshot()
	if s.CacheMisses != 1 || s.CacheHits != 1 {
		t.Errorf("hits/misses = %d/%d; want 1/1", s.CacheHits, s.CacheMisses)
	}
}
