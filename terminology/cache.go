package terminology

import (
	"hash/fnv"
	"sync"
	"time"

	valueset "github.com/gofhir/valueset"
	"github.com/gofhir/valueset/service"
)

const (
	// DefaultShardCount is rounded up to a power of 2 so the shard pick
	// is a mask instead of a modulo.
	DefaultShardCount = 64

	DefaultCacheTTL = 15 * time.Minute
)

// ShardedCache is a TTL cache for validation results and expansions,
// split across shards to keep lock contention down under concurrent
// load. Expired entries are dropped on read and swept by Cleanup.
type ShardedCache struct {
	shards    []*cacheShard
	shardMask uint32
	ttl       time.Duration
}

type cacheShard struct {
	mu          sync.RWMutex
	validations map[string]cacheEntry[*service.ValidateCodeResult]
	expansions  map[string]cacheEntry[*valueset.Expansion]
}

type cacheEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// CacheConfig configures a ShardedCache. Zero values fall back to the
// defaults.
type CacheConfig struct {
	ShardCount int
	TTL        time.Duration
}

// NewShardedCache creates a sharded cache. The shard count is rounded
// up to the next power of 2.
func NewShardedCache(config CacheConfig) *ShardedCache {
	count := config.ShardCount
	if count <= 0 {
		count = DefaultShardCount
	}
	count = nextPowerOf2(count)

	ttl := config.TTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	shards := make([]*cacheShard, count)
	for i := range shards {
		shards[i] = &cacheShard{
			validations: make(map[string]cacheEntry[*service.ValidateCodeResult]),
			expansions:  make(map[string]cacheEntry[*valueset.Expansion]),
		}
	}
	return &ShardedCache{
		shards:    shards,
		shardMask: uint32(count - 1),
		ttl:       ttl,
	}
}

func (c *ShardedCache) getShard(key string) *cacheShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return c.shards[h.Sum32()&c.shardMask]
}

// GetValidation returns a cached validation result, if present and
// unexpired.
func (c *ShardedCache) GetValidation(key string) (*service.ValidateCodeResult, bool) {
	shard := c.getShard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	entry, ok := shard.validations[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(shard.validations, key)
		return nil, false
	}
	return entry.value, true
}

// SetValidation stores a validation result under key for the cache TTL.
func (c *ShardedCache) SetValidation(key string, result *service.ValidateCodeResult) {
	shard := c.getShard(key)
	shard.mu.Lock()
	shard.validations[key] = cacheEntry[*service.ValidateCodeResult]{
		value:     result,
		expiresAt: time.Now().Add(c.ttl),
	}
	shard.mu.Unlock()
}

// GetExpansion returns a cached expansion, if present and unexpired.
func (c *ShardedCache) GetExpansion(url string) (*valueset.Expansion, bool) {
	shard := c.getShard(url)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	entry, ok := shard.expansions[url]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(shard.expansions, url)
		return nil, false
	}
	return entry.value, true
}

// SetExpansion stores an expansion under its canonical URL for the
// cache TTL.
func (c *ShardedCache) SetExpansion(url string, e *valueset.Expansion) {
	shard := c.getShard(url)
	shard.mu.Lock()
	shard.expansions[url] = cacheEntry[*valueset.Expansion]{
		value:     e,
		expiresAt: time.Now().Add(c.ttl),
	}
	shard.mu.Unlock()
}

// Clear drops every entry.
func (c *ShardedCache) Clear() {
	for _, shard := range c.shards {
		shard.mu.Lock()
		shard.validations = make(map[string]cacheEntry[*service.ValidateCodeResult])
		shard.expansions = make(map[string]cacheEntry[*valueset.Expansion])
		shard.mu.Unlock()
	}
}

// Cleanup sweeps expired entries. Long-running deployments should call
// this periodically; reads already drop expired entries they touch.
func (c *ShardedCache) Cleanup() {
	now := time.Now()
	for _, shard := range c.shards {
		shard.mu.Lock()
		for key, entry := range shard.validations {
			if now.After(entry.expiresAt) {
				delete(shard.validations, key)
			}
		}
		for url, entry := range shard.expansions {
			if now.After(entry.expiresAt) {
				delete(shard.expansions, url)
			}
		}
		shard.mu.Unlock()
	}
}

// CacheStats reports entry counts across all shards.
type CacheStats struct {
	Validations int
	Expansions  int
	Shards      int
}

// Stats returns current cache statistics.
func (c *ShardedCache) Stats() CacheStats {
	var validations, expansions int
	for _, shard := range c.shards {
		shard.mu.RLock()
		validations += len(shard.validations)
		expansions += len(shard.expansions)
		shard.mu.RUnlock()
	}
	return CacheStats{
		Validations: validations,
		Expansions:  expansions,
		Shards:      len(c.shards),
	}
}

// MakeValidationKey builds the cache key for a validation lookup. NUL
// cannot appear in URLs or codes, so the key is unambiguous.
func MakeValidationKey(system, code, valueSetURL string) string {
	return system + "\x00" + code + "\x00" + valueSetURL
}

// nextPowerOf2 returns the smallest power of 2 >= n.
func nextPowerOf2(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	return n + 1
}

var _ service.TerminologyCache = (*ShardedCache)(nil)
