package cache

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestProperty_ReadThroughConsistency drives random read sequences over a
// small key space against a plain model of the backend. Whatever the cache
// does internally (hits, misses, evictions), every read must return the
// same bytes the backend holds, and the accounting counters must balance.
func TestProperty_ReadThroughConsistency(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("reads always return backend bytes", prop.ForAll(
		func(accesses []int, capacity int64) bool {
			model := make(map[string][]byte)
			for i := 0; i < 8; i++ {
				key := fmt.Sprintf("obj-%d", i)
				model[key] = bytes.Repeat([]byte{byte('a' + i)}, 10+i*7)
			}
			backend := newCountingBackend(model)
			store := NewCachedStore(backend, capacity)
			ctx := context.Background()

			for _, a := range accesses {
				key := fmt.Sprintf("obj-%d", a%8)
				got, err := store.Get(ctx, loc(key), nil)
				if err != nil {
					return false
				}
				if !bytes.Equal(got, model[key]) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 7)),
		gen.Int64Range(1, 500),
	))

	properties.Property("hits plus misses equals reads", prop.ForAll(
		func(accesses []int, capacity int64) bool {
			model := make(map[string][]byte)
			for i := 0; i < 8; i++ {
				model[fmt.Sprintf("obj-%d", i)] = bytes.Repeat([]byte{byte(i)}, 25)
			}
			backend := newCountingBackend(model)
			store := NewCachedStore(backend, capacity)
			ctx := context.Background()

			for _, a := range accesses {
				if _, err := store.Get(ctx, loc(fmt.Sprintf("obj-%d", a%8)), nil); err != nil {
					return false
				}
			}

			snap := store.Stats().Snapshot()
			if snap.Reads != uint64(len(accesses)) {
				return false
			}
			return snap.Hits+snap.Misses == snap.Reads
		},
		gen.SliceOf(gen.IntRange(0, 7)),
		gen.Int64Range(1, 500),
	))

	properties.Property("resident bytes never exceed capacity plus one entry", prop.ForAll(
		func(accesses []int) bool {
			const capacity = 100
			model := make(map[string][]byte)
			for i := 0; i < 8; i++ {
				model[fmt.Sprintf("obj-%d", i)] = bytes.Repeat([]byte{byte(i)}, 10+i*5)
			}
			backend := newCountingBackend(model)
			store := NewCachedStore(backend, capacity)
			ctx := context.Background()

			for _, a := range accesses {
				key := fmt.Sprintf("obj-%d", a%8)
				if _, err := store.Get(ctx, loc(key), nil); err != nil {
					return false
				}
				// Every entry here fits within capacity, so the bound is strict.
				if store.Stats().Snapshot().BytesResident > capacity {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 7)),
	))

	properties.TestingRun(t)
}
