package terminology

import (
	"context"

	valueset "github.com/gofhir/valueset"
	"github.com/gofhir/valueset/service"
)

// CachedStore wraps a terminology service with a ShardedCache. A store
// behind a CachedStore can still be mutated; stale entries age out with
// the cache TTL, or call ClearCache after bulk registration.
type CachedStore struct {
	inner   service.TerminologyService
	cache   *ShardedCache
	metrics *valueset.Metrics
}

// NewCachedStore wraps inner with a cache using config.
func NewCachedStore(inner service.TerminologyService, config CacheConfig) *CachedStore {
	return &CachedStore{
		inner: inner,
		cache: NewShardedCache(config),
	}
}

// NewCachedStoreWithDefaults wraps a fresh InMemoryStore with default
// cache configuration.
func NewCachedStoreWithDefaults() *CachedStore {
	return NewCachedStore(NewStore(), CacheConfig{})
}

// SetMetrics installs a metrics recorder for cache hits and misses.
func (s *CachedStore) SetMetrics(m *valueset.Metrics) {
	s.metrics = m
}

// Inner returns the wrapped service, typically for registering content.
func (s *CachedStore) Inner() service.TerminologyService {
	return s.inner
}

// Cache exposes the cache for inspection or manual sweeps.
func (s *CachedStore) Cache() *ShardedCache {
	return s.cache
}

// ValidateCode implements service.CodeValidator with caching.
func (s *CachedStore) ValidateCode(ctx context.Context, system, code, valueSetURL string) (*service.ValidateCodeResult, error) {
	key := MakeValidationKey(system, code, valueSetURL)
	if cached, ok := s.cache.GetValidation(key); ok {
		s.recordHit(true)
		return cached, nil
	}
	s.recordHit(false)

	result, err := s.inner.ValidateCode(ctx, system, code, valueSetURL)
	if err != nil {
		return nil, err
	}
	s.cache.SetValidation(key, result)
	return result, nil
}

// ExpandValueSet implements service.ValueSetExpander with caching.
func (s *CachedStore) ExpandValueSet(ctx context.Context, url string) (*valueset.Expansion, error) {
	if cached, ok := s.cache.GetExpansion(url); ok {
		s.recordHit(true)
		return cached, nil
	}
	s.recordHit(false)

	expansion, err := s.inner.ExpandValueSet(ctx, url)
	if err != nil {
		return nil, err
	}
	s.cache.SetExpansion(url, expansion)
	return expansion, nil
}

// ClearCache drops every cached entry.
func (s *CachedStore) ClearCache() {
	s.cache.Clear()
}

// CacheStats returns entry counts for the wrapped cache.
func (s *CachedStore) CacheStats() CacheStats {
	return s.cache.Stats()
}

func (s *CachedStore) recordHit(hit bool) {
	if s.metrics == nil {
		return
	}
	if hit {
		s.metrics.RecordCacheHit()
	} else {
		s.metrics.RecordCacheMiss()
	}
}

var _ service.TerminologyService = (*CachedStore)(nil)
