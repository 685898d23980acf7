// Package store defines the Node Store abstraction: a pluggable,
// content-addressable-or-not collection of nodes keyed by opaque pointers,
// with reference counting. It mirrors the role Carmen's
// backend/stock.Stock interface plays for MPT nodes, generalized to any
// node payload type and extended with the refcount protocol pmtree's
// persistence model requires.
package store

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/arborix-db/pmtree/internal/pmerrors"
)

// Ptr is an opaque identifier for a node persisted in a Store. Equal
// pointers denote the same stored node. The zero value is never issued
// by a conforming Store.
type Ptr uint64

func (p Ptr) String() string {
	return fmt.Sprintf("ptr#%d", uint64(p))
}

// Store is a mapping from Ptr to (refcount, node). Implementations must be
// safe for concurrent use by multiple goroutines.
type Store[V any] interface {
	// Insert stores a fresh entry with refcount 1 and returns its pointer.
	// Two distinct calls return distinct pointers, even for equal nodes;
	// content-addressing is a backend option, not a contract requirement.
	Insert(node V) (Ptr, error)

	// Read returns the node stored at ptr. Fails with an error wrapping
	// pmerrors.ErrNotFound if ptr is unknown. The returned node must be
	// treated as logically immutable by the caller.
	Read(ptr Ptr) (V, error)

	// Delete removes ptr. The caller guarantees the refcount for ptr is
	// zero and no live reference to it remains.
	Delete(ptr Ptr) error

	// IncRefCount increments and returns the new reference count for ptr.
	IncRefCount(ptr Ptr) (uint32, error)

	// DecRefCount decrements, saturating at zero, and returns the new
	// reference count for ptr. A count reaching zero authorizes the
	// caller to Delete the entry.
	DecRefCount(ptr Ptr) (uint32, error)

	// Clone produces an independent owning handle sharing the same
	// underlying storage as the receiver.
	Clone() Store[V]
}

// wrapNotFound is a helper shared by backends to report an unknown pointer.
func wrapNotFound(ptr Ptr) error {
	return errors.Wrapf(pmerrors.ErrNotFound, "ptr=%s", ptr)
}

// WrapNotFound reports an unknown pointer, attaching it for diagnostics.
// Exported so backend implementations outside this package (e.g. third
// party Store implementations) can produce errors indistinguishable from
// the in-tree backends'.
func WrapNotFound(ptr Ptr) error {
	return wrapNotFound(ptr)
}
