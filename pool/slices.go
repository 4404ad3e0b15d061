// Package pool provides sync.Pool-backed scratch buffers for the
// expansion engine's deduplication pass.
package pool

import (
	"sync"

	valueset "github.com/gofhir/valueset"
)

var codingSlicePool = sync.Pool{
	New: func() any {
		s := make([]valueset.Coding, 0, 64)
		return &s
	},
}

// AcquireCodingSlice gets an empty coding slice from the pool.
func AcquireCodingSlice() *[]valueset.Coding {
	s := codingSlicePool.Get().(*[]valueset.Coding)
	*s = (*s)[:0]
	return s
}

// ReleaseCodingSlice returns a coding slice to the pool. Oversized
// slices are dropped to keep pooled memory bounded.
func ReleaseCodingSlice(s *[]valueset.Coding) {
	if s == nil {
		return
	}
	if cap(*s) <= 4096 {
		codingSlicePool.Put(s)
	}
}

var seenSetPool = sync.Pool{
	New: func() any {
		return make(map[string]struct{}, 64)
	},
}

// AcquireSeenSet gets an empty (system|code) identity set from the pool.
func AcquireSeenSet() map[string]struct{} {
	return seenSetPool.Get().(map[string]struct{})
}

// ReleaseSeenSet clears and returns a set to the pool.
func ReleaseSeenSet(m map[string]struct{}) {
	if m == nil {
		return
	}
	clear(m)
	seenSetPool.Put(m)
}
