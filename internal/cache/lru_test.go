package cache

import (
	"bytes"
	"testing"

	"github.com/stratadb/strata/internal/storage"
)

func fileKey(path string) Key {
	return NewKey(storage.Locator{Scheme: storage.SchemeFile, Path: path}, nil)
}

func rangeKey(path string, off, length int64) Key {
	rng := storage.ByteRange{Offset: off, Length: length}
	return NewKey(storage.Locator{Scheme: storage.SchemeFile, Path: path}, &rng)
}

func TestLRU_GetMissAndHit(t *testing.T) {
	lru := NewLRU(1024, NewStats())

	if _, ok := lru.Get(fileKey("a")); ok {
		t.Fatal("expected miss on empty cache")
	}

	lru.Put(fileKey("a"), []byte("alpha"))
	data, ok := lru.Get(fileKey("a"))
	if !ok {
		t.Fatal("expected hit")
	}
	if string(data) != "alpha" {
		t.Fatalf("got %q", data)
	}
}

func TestLRU_RangeKeysAreDistinct(t *testing.T) {
	lru := NewLRU(1024, NewStats())

	lru.Put(rangeKey("a", 0, 4), []byte("head"))
	lru.Put(rangeKey("a", 4, 4), []byte("tail"))
	lru.Put(fileKey("a"), []byte("headtail"))

	if data, ok := lru.Get(rangeKey("a", 0, 4)); !ok || string(data) != "head" {
		t.Fatalf("range 0+4: got %q, %v", data, ok)
	}
	if data, ok := lru.Get(rangeKey("a", 4, 4)); !ok || string(data) != "tail" {
		t.Fatalf("range 4+4: got %q, %v", data, ok)
	}
	if data, ok := lru.Get(fileKey("a")); !ok || string(data) != "headtail" {
		t.Fatalf("whole object: got %q, %v", data, ok)
	}
}

// Capacity for exactly two entries: touching A then B then inserting C
// must evict A, the least recently touched.
func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	stats := NewStats()
	lru := NewLRU(20, stats)

	lru.Put(fileKey("a"), make([]byte, 10))
	lru.Put(fileKey("b"), make([]byte, 10))

	if _, ok := lru.Get(fileKey("a")); !ok {
		t.Fatal("a should be resident")
	}
	if _, ok := lru.Get(fileKey("b")); !ok {
		t.Fatal("b should be resident")
	}

	lru.Put(fileKey("c"), make([]byte, 10))

	if _, ok := lru.Get(fileKey("a")); ok {
		t.Fatal("a should have been evicted")
	}
	if _, ok := lru.Get(fileKey("b")); !ok {
		t.Fatal("b should have survived")
	}
	if _, ok := lru.Get(fileKey("c")); !ok {
		t.Fatal("c should be resident")
	}
	if n := stats.Snapshot().Evictions; n != 1 {
		t.Fatalf("evictions = %d, want 1", n)
	}
}

// A hit refreshes recency, so the untouched entry is the one evicted.
func TestLRU_HitPromotesEntry(t *testing.T) {
	lru := NewLRU(20, NewStats())

	lru.Put(fileKey("a"), make([]byte, 10))
	lru.Put(fileKey("b"), make([]byte, 10))

	// Touch a so b becomes least recently used.
	if _, ok := lru.Get(fileKey("a")); !ok {
		t.Fatal("a should be resident")
	}

	lru.Put(fileKey("c"), make([]byte, 10))

	if _, ok := lru.Get(fileKey("b")); ok {
		t.Fatal("b should have been evicted")
	}
	if _, ok := lru.Get(fileKey("a")); !ok {
		t.Fatal("a should have survived")
	}
}

func TestLRU_CapacityInvariant(t *testing.T) {
	stats := NewStats()
	lru := NewLRU(100, stats)

	for i := 0; i < 20; i++ {
		lru.Put(fileKey(string(rune('a'+i))), make([]byte, 30))
		if resident := lru.BytesResident(); resident > 100 {
			t.Fatalf("bytes resident %d exceeds capacity after admission %d", resident, i)
		}
		if got := stats.Snapshot().BytesResident; got != lru.BytesResident() {
			t.Fatalf("stats resident %d != lru resident %d", got, lru.BytesResident())
		}
	}
}

// Pinned behavior for the overflow edge case: an entry larger than the
// whole capacity is admitted after evicting everything else, leaving
// bytes_resident above capacity.
func TestLRU_SingleEntryExceedsCapacity(t *testing.T) {
	stats := NewStats()
	lru := NewLRU(50, stats)

	lru.Put(fileKey("small"), make([]byte, 20))
	lru.Put(fileKey("huge"), make([]byte, 200))

	if _, ok := lru.Get(fileKey("small")); ok {
		t.Fatal("small should have been evicted to make room")
	}
	if _, ok := lru.Get(fileKey("huge")); !ok {
		t.Fatal("oversized entry should still be admitted")
	}
	if resident := lru.BytesResident(); resident != 200 {
		t.Fatalf("bytes resident %d, want 200", resident)
	}
	if lru.Len() != 1 {
		t.Fatalf("len %d, want 1", lru.Len())
	}
}

func TestLRU_PutExistingKeyKeepsBytes(t *testing.T) {
	stats := NewStats()
	lru := NewLRU(1024, stats)

	lru.Put(fileKey("a"), []byte("first"))
	lru.Put(fileKey("a"), []byte("first"))

	if lru.Len() != 1 {
		t.Fatalf("len %d, want 1", lru.Len())
	}
	if got := stats.Snapshot().BytesResident; got != 5 {
		t.Fatalf("bytes resident %d, want 5", got)
	}
}

func TestLRU_Clear(t *testing.T) {
	stats := NewStats()
	lru := NewLRU(1024, stats)

	lru.Put(fileKey("a"), []byte("aaa"))
	lru.Put(fileKey("b"), []byte("bbb"))
	lru.Clear()

	if lru.Len() != 0 || lru.BytesResident() != 0 {
		t.Fatalf("len=%d resident=%d after clear", lru.Len(), lru.BytesResident())
	}
	snap := stats.Snapshot()
	if snap.BytesResident != 0 || snap.EntryCount != 0 {
		t.Fatalf("stats not zeroed: %+v", snap)
	}
	if snap.Evictions != 0 {
		t.Fatalf("clear must not count as eviction, got %d", snap.Evictions)
	}
}

func TestLRU_CompressionRoundTrip(t *testing.T) {
	stats := NewStats()
	lru := NewLRU(1<<20, stats, WithCompression())

	// Highly compressible payload.
	payload := bytes.Repeat([]byte("strata"), 1000)
	lru.Put(fileKey("a"), payload)

	if resident := lru.BytesResident(); resident >= int64(len(payload)) {
		t.Fatalf("compressed resident size %d not smaller than %d", resident, len(payload))
	}

	got, ok := lru.Get(fileKey("a"))
	if !ok {
		t.Fatal("expected hit")
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("decompressed bytes differ from original")
	}
}
