// Package shardedstore fans a Node Store out across N independent memstore
// shards to reduce single-mutex contention under concurrent access,
// following the sharding approach of IvanBrykalov/shardcache. Pointers are
// tagged with their owning shard so Read/Delete/refcount calls route
// directly without probing every shard.
package shardedstore

import (
	"github.com/arborix-db/pmtree/store"
	"github.com/arborix-db/pmtree/store/memstore"
)

// Store fans node storage out across a fixed number of memstore shards.
type Store[V any] struct {
	shards []*memstore.Store[V]
}

// New returns a sharded store with the given number of shards. shardCount
// is rounded up to the next power of two, matching the masking scheme used
// to route pointers to shards.
func New[V any](shardCount int) *Store[V] {
	n := nextPow2(shardCount)
	shards := make([]*memstore.Store[V], n)
	for i := range shards {
		shards[i] = memstore.New[V]()
	}
	return &Store[V]{shards: shards}
}

func nextPow2(n int) int {
	if n < 1 {
		n = 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func (s *Store[V]) Insert(node V) (store.Ptr, error) {
	shardIdx := s.leastLoadedShard()
	ptr, err := s.shards[shardIdx].Insert(node)
	if err != nil {
		return 0, err
	}
	return encode(ptr, shardIdx, len(s.shards)), nil
}

func (s *Store[V]) leastLoadedShard() int {
	best := 0
	bestLen := s.shards[0].Len()
	for i := 1; i < len(s.shards); i++ {
		if l := s.shards[i].Len(); l < bestLen {
			best, bestLen = i, l
		}
	}
	return best
}

func encode(inner store.Ptr, shardIdx int, shardCount int) store.Ptr {
	shift := uint(0)
	for c := shardCount; c > 1; c >>= 1 {
		shift++
	}
	return store.Ptr(uint64(inner)<<shift | uint64(shardIdx))
}

func decode(ptr store.Ptr, shardCount int) (inner store.Ptr, shardIdx int) {
	shift := uint(0)
	for c := shardCount; c > 1; c >>= 1 {
		shift++
	}
	mask := uint64(shardCount - 1)
	return store.Ptr(uint64(ptr) >> shift), int(uint64(ptr) & mask)
}

func (s *Store[V]) Read(ptr store.Ptr) (V, error) {
	inner, idx := decode(ptr, len(s.shards))
	return s.shards[idx].Read(inner)
}

func (s *Store[V]) Delete(ptr store.Ptr) error {
	inner, idx := decode(ptr, len(s.shards))
	return s.shards[idx].Delete(inner)
}

func (s *Store[V]) IncRefCount(ptr store.Ptr) (uint32, error) {
	inner, idx := decode(ptr, len(s.shards))
	return s.shards[idx].IncRefCount(inner)
}

func (s *Store[V]) DecRefCount(ptr store.Ptr) (uint32, error) {
	inner, idx := decode(ptr, len(s.shards))
	return s.shards[idx].DecRefCount(inner)
}

func (s *Store[V]) Clone() store.Store[V] {
	shards := make([]*memstore.Store[V], len(s.shards))
	for i, sh := range s.shards {
		shards[i] = sh.Clone().(*memstore.Store[V])
	}
	return &Store[V]{shards: shards}
}

var _ store.Store[int] = (*Store[int])(nil)
