// Package nullstore provides the default backing for pure in-memory trees:
// refcount bookkeeping succeeds (a tree that never calls Save never needs
// more), and every operation that would require real persistence fails with
// pmerrors.ErrNotImplemented.
package nullstore

import (
	"github.com/pkg/errors"

	"github.com/arborix-db/pmtree/internal/pmerrors"
	"github.com/arborix-db/pmtree/store"
)

// Store is the null backend. The zero value is ready to use.
type Store[V any] struct{}

// New returns a ready-to-use null store.
func New[V any]() *Store[V] {
	return &Store[V]{}
}

func (s *Store[V]) Insert(V) (store.Ptr, error) {
	return 0, errors.Wrap(pmerrors.ErrNotImplemented, "nullstore.Insert")
}

func (s *Store[V]) Read(store.Ptr) (V, error) {
	var zero V
	return zero, errors.Wrap(pmerrors.ErrNotImplemented, "nullstore.Read")
}

func (s *Store[V]) Delete(store.Ptr) error {
	return errors.Wrap(pmerrors.ErrNotImplemented, "nullstore.Delete")
}

// IncRefCount always reports a count of 1: a tree entirely backed by the
// null store never has a persisted predecessor to share with.
func (s *Store[V]) IncRefCount(store.Ptr) (uint32, error) {
	return 1, nil
}

// DecRefCount always reports a count of 1, matching IncRefCount: nothing
// is ever authorized for deletion because nothing was ever really stored.
func (s *Store[V]) DecRefCount(store.Ptr) (uint32, error) {
	return 1, nil
}

func (s *Store[V]) Clone() store.Store[V] {
	return &Store[V]{}
}

var _ store.Store[int] = (*Store[int])(nil)
