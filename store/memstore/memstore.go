// Package memstore implements the Node Store interface entirely in
// memory, keyed by a monotonically increasing Ptr and guarded by a
// single reader/writer lock, following the structure of Carmen's
// backend/stock/memory package.
package memstore

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/arborix-db/pmtree/store"
)

// entry bundles a stored node with the refcount protocol's bookkeeping.
type entry[V any] struct {
	node     V
	refcount uint32
}

// Store is a memory-backed Node Store. The zero value is not usable; call
// New.
type Store[V any] struct {
	mu      *sync.RWMutex
	entries map[store.Ptr]*entry[V]
	nextPtr *store.Ptr
	log     *logrus.Entry
}

// New returns an empty memory-backed store.
func New[V any]() *Store[V] {
	var next store.Ptr
	return &Store[V]{
		mu:      &sync.RWMutex{},
		entries: make(map[store.Ptr]*entry[V]),
		nextPtr: &next,
		log:     logrus.WithField("component", "memstore"),
	}
}

func (s *Store[V]) Insert(node V) (store.Ptr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	*s.nextPtr++
	ptr := *s.nextPtr
	s.entries[ptr] = &entry[V]{node: node, refcount: 1}
	return ptr, nil
}

func (s *Store[V]) Read(ptr store.Ptr) (V, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[ptr]
	if !ok {
		var zero V
		return zero, store.WrapNotFound(ptr)
	}
	return e.node, nil
}

func (s *Store[V]) Delete(ptr store.Ptr) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[ptr]
	if !ok {
		return store.WrapNotFound(ptr)
	}
	if e.refcount != 0 {
		s.log.WithFields(logrus.Fields{"ptr": ptr, "refcount": e.refcount}).
			Warn("deleting node with non-zero refcount")
	}
	delete(s.entries, ptr)
	return nil
}

func (s *Store[V]) IncRefCount(ptr store.Ptr) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[ptr]
	if !ok {
		return 0, store.WrapNotFound(ptr)
	}
	e.refcount++
	return e.refcount, nil
}

func (s *Store[V]) DecRefCount(ptr store.Ptr) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[ptr]
	if !ok {
		return 0, store.WrapNotFound(ptr)
	}
	if e.refcount > 0 {
		e.refcount--
	}
	return e.refcount, nil
}

// Clone returns a handle sharing the same underlying map and mutex as the
// receiver, per the Store contract.
func (s *Store[V]) Clone() store.Store[V] {
	return &Store[V]{
		mu:      s.mu,
		entries: s.entries,
		nextPtr: s.nextPtr,
		log:     s.log,
	}
}

// Len reports the number of entries currently retained, for tests
// asserting refcount-conservation properties.
func (s *Store[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// RefCount reports the current refcount for ptr, for diagnostics and tests.
func (s *Store[V]) RefCount(ptr store.Ptr) (uint32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[ptr]
	if !ok {
		return 0, store.WrapNotFound(ptr)
	}
	return e.refcount, nil
}

var _ store.Store[int] = (*Store[int])(nil)
