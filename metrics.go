package valueset

import (
	"sync/atomic"
	"time"
)

// Metrics tracks engine activity using lock-free atomic operations.
// All methods are safe for concurrent use.
type Metrics struct {
	expansionsTotal  atomic.Uint64
	expansionsFailed atomic.Uint64

	// Expansion timing (nanoseconds)
	expandTimeTotal atomic.Uint64
	expandTimeMin   atomic.Uint64
	expandTimeMax   atomic.Uint64

	membershipTotal   atomic.Uint64
	membershipMembers atomic.Uint64

	cacheHits   atomic.Uint64
	cacheMisses atomic.Uint64
}

// NewMetrics creates a Metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{}
	// Min starts at max uint64 so the first sample becomes the minimum.
	m.expandTimeMin.Store(^uint64(0))
	return m
}

// RecordExpansion records one completed (or failed) expansion.
func (m *Metrics) RecordExpansion(duration time.Duration, ok bool) {
	m.expansionsTotal.Add(1)
	if !ok {
		m.expansionsFailed.Add(1)
		return
	}

	ns := uint64(duration.Nanoseconds())
	m.expandTimeTotal.Add(ns)

	for {
		old := m.expandTimeMin.Load()
		if ns >= old {
			break
		}
		if m.expandTimeMin.CompareAndSwap(old, ns) {
			break
		}
	}
	for {
		old := m.expandTimeMax.Load()
		if ns <= old {
			break
		}
		if m.expandTimeMax.CompareAndSwap(old, ns) {
			break
		}
	}
}

// RecordMembership records one membership test and its verdict.
func (m *Metrics) RecordMembership(member bool) {
	m.membershipTotal.Add(1)
	if member {
		m.membershipMembers.Add(1)
	}
}

// RecordCacheHit records a cache hit.
func (m *Metrics) RecordCacheHit() {
	m.cacheHits.Add(1)
}

// RecordCacheMiss records a cache miss.
func (m *Metrics) RecordCacheMiss() {
	m.cacheMisses.Add(1)
}

// Snapshot is a point-in-time copy of the metrics.
type Snapshot struct {
	ExpansionsTotal  uint64
	ExpansionsFailed uint64

	ExpandTimeTotal time.Duration
	ExpandTimeMin   time.Duration
	ExpandTimeMax   time.Duration

	MembershipTotal   uint64
	MembershipMembers uint64

	CacheHits   uint64
	CacheMisses uint64
}

// Snapshot returns a consistent-enough copy for reporting.
func (m *Metrics) Snapshot() Snapshot {
	s := Snapshot{
		ExpansionsTotal:   m.expansionsTotal.Load(),
		ExpansionsFailed:  m.expansionsFailed.Load(),
		ExpandTimeTotal:   time.Duration(m.expandTimeTotal.Load()),
		ExpandTimeMax:     time.Duration(m.expandTimeMax.Load()),
		MembershipTotal:   m.membershipTotal.Load(),
		MembershipMembers: m.membershipMembers.Load(),
		CacheHits:         m.cacheHits.Load(),
		CacheMisses:       m.cacheMisses.Load(),
	}
	if min := m.expandTimeMin.Load(); min != ^uint64(0) {
		s.ExpandTimeMin = time.Duration(min)
	}
	return s
}

// CacheHitRate returns hits / (hits + misses), or 0 with no samples.
func (s Snapshot) CacheHitRate() float64 {
	total := s.CacheHits + s.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(total)
}
