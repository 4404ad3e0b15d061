package valueset

import (
	"sync"
	"testing"
	"time"
)

func TestMetrics_RecordExpansion(t *testing.T) {
	m := NewMetrics()

	m.RecordExpansion(10*time.Millisecond, true)
	m.RecordExpansion(30*time.Millisecond, true)
	m.RecordExpansion(0, false)

	s := m.Snapshot()
	if s.ExpansionsTotal != 3 {
		t.Errorf("ExpansionsTotal = %d; want 3", s.ExpansionsTotal)
	}
	if s.ExpansionsFailed != 1 {
		t.Errorf("ExpansionsFailed = %d; want 1", s.ExpansionsFailed)
	}
	if s.ExpandTimeMin != 10*time.Millisecond {
		t.Errorf("ExpandTimeMin = %v; want 10ms", s.ExpandTimeMin)
	}
	if s.ExpandTimeMax != 30*time.Millisecond {
		t.Errorf("ExpandTimeMax = %v; want 30ms", s.ExpandTimeMax)
	}
	if s.ExpandTimeTotal != 40*time.Millisecond {
		t.Errorf("ExpandTimeTotal = %v; want 40ms", s.ExpandTimeTotal)
	}
}

func TestMetrics_EmptySnapshot(t *testing.T) {
	s := NewMetrics().Snapshot()
	if s.ExpandTimeMin != 0 {
		t.Errorf("ExpandTimeMin with no samples = %v; want 0", s.ExpandTimeMin)
	}
	if s.CacheHitRate() != 0 {
		t.Errorf("CacheHitRate with no samples = %v; want 0", s.CacheHitRate())
	}
}

func TestMetrics_CacheHitRate(t *testing.T) {
	m := NewMetrics()
	m.RecordCacheHit()
	m.RecordCacheHit()
	m.RecordCacheHit()
	m.RecordCacheMiss()

	if got := m.Snapshot().CacheHitRate(); got != 0.75 {
		t.Errorf("CacheHitRate = %v; want 0.75", got)
	}
}

func TestMetrics_Concurrent(t *testing.T) {
	m := NewMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.RecordExpansion(time.Millisecond, true)
				m.RecordMembership(j%2 == 0)
				m.RecordCacheHit()
			}
		}()
	}
	wg.Wait()

	s := m.Snapshot()
	if s.ExpansionsTotal != 800 {
		t.Errorf("ExpansionsTotal = %d; want 800", s.ExpansionsTotal)
	}
	if s.MembershipTotal != 800 || s.MembershipMembers != 400 {
		t.Errorf("membership = %d/%d; want 400/800", s.MembershipMembers, s.MembershipTotal)
	}
	if s.CacheHits != 800 {
		t.Errorf("CacheHits = %d; want 800", s.CacheHits)
	}
}
