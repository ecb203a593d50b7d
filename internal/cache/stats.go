// Package cache provides the instrumented, size-bounded read-through cache
// that fronts the object-store backend during serving.
package cache

import "sync/atomic"

// Stats holds cache counters. Each counter is an independent atomic so the
// read path never takes a broader lock; a snapshot may interleave with
// concurrent increments and is only quiescently consistent. After all
// in-flight reads complete, hits + misses == reads.
type Stats struct {
	reads     atomic.Uint64
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64

	bytesResident atomic.Int64
	entryCount    atomic.Int64
}

// NewStats creates a zeroed counter set.
func NewStats() *Stats {
	return &Stats{}
}

func (s *Stats) recordRead()     { s.reads.Add(1) }
func (s *Stats) recordHit()      { s.hits.Add(1) }
func (s *Stats) recordMiss()     { s.misses.Add(1) }
func (s *Stats) recordEviction() { s.evictions.Add(1) }

func (s *Stats) addResident(n int64) {
	s.bytesResident.Add(n)
	s.entryCount.Add(1)
}

func (s *Stats) removeResident(n int64) {
	s.bytesResident.Add(-n)
	s.entryCount.Add(-1)
}

// Snapshot is a point-in-time view of the counters.
type Snapshot struct {
	Reads     uint64 `json:"reads"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`

	BytesResident int64 `json:"bytes_resident"`
	EntryCount    int64 `json:"entry_count"`
}

// Snapshot reads every counter. The values are individually exact but not
// taken under one lock.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Reads:         s.reads.Load(),
		Hits:          s.hits.Load(),
		Misses:        s.misses.Load(),
		Evictions:     s.evictions.Load(),
		BytesResident: s.bytesResident.Load(),
		EntryCount:    s.entryCount.Load(),
	}
}
