// Package manager implements the Node Reference and Node Manager
// abstractions: a tri-state indirection tree nodes use to address
// children, and the component that resolves those indirections against
// memory, a weak-reference cache, and a pluggable Node Store.
//
// It is grounded on Carmen's NodeReference/NodeCache/Forest trio
// (database/mpt/node_cache.go, forest.go), generalized from MPT-only
// nodes to any node payload type N and extended with a weak-pointer
// cache slot and refcounted sharing detection.
package manager

import (
	"sync"
	"weak"

	uatomic "go.uber.org/atomic"

	"github.com/arborix-db/pmtree/shared"
	"github.com/arborix-db/pmtree/store"
)

// Reference is a Node Reference: an indirection describing where at most
// one child slot's node currently lives. The zero value is Empty.
type Reference[N any] struct {
	cell *cell[N]
}

// cell is the InMemory variant's shared, lockable backing store. It
// transitions Resident -> Stored (on save) or Stored -> Stored (refreshing
// the weak cache); it never transitions back to Resident.
type cell[N any] struct {
	mu    sync.RWMutex
	state cellState[N]

	// refs approximates the Node Reference cell's sharing count:
	// structural sharing is detected by observing this count. It is
	// incremented on every explicit Clone and decremented when a
	// take-ownership call consumes the cell. Go has
	// no destructor to decrement it when a cloned-but-unused Reference
	// simply falls out of scope, so this is the conservative
	// approximation: it never under-reports sharing, only occasionally
	// over-reports it after a clone is abandoned, which costs transient
	// performance,
	// never correctness.
	refs uatomic.Int32
}

// cellState is the sum type a cell holds: resident or stored.
type cellState[N any] struct {
	// resident is non-nil exactly when the node lives only in memory
	// and has never been persisted (or was reloaded and materialized).
	resident *shared.Shared[N]

	// stored fields are valid exactly when resident is nil.
	storedPtr  store.Ptr
	storedWeak weak.Pointer[shared.Shared[N]]
	hasStored  bool
}

// Empty returns a Node Reference addressing no child.
func Empty[N any]() Reference[N] {
	return Reference[N]{}
}

// FromNode wraps a freshly created, never-yet-persisted node into a new
// Node Reference: a node created in memory by a tree operation, wrapped
// in a fresh InMemory(Resident) cell.
func FromNode[N any](node N) Reference[N] {
	c := &cell[N]{state: cellState[N]{resident: shared.New(node)}}
	c.refs.Store(1)
	return Reference[N]{cell: c}
}

// FromSharedNode wraps an already-shared node into a new Node Reference
// without copying it, used when a node was produced by a caller that
// already holds a *shared.Shared[N] (e.g. the result of a clone).
func FromSharedNode[N any](node *shared.Shared[N]) Reference[N] {
	c := &cell[N]{state: cellState[N]{resident: node}}
	c.refs.Store(1)
	return Reference[N]{cell: c}
}

// FromPointer wraps a pointer to an already-persisted node into a new Node
// Reference, with no live weak cache yet.
func FromPointer[N any](ptr store.Ptr) Reference[N] {
	c := &cell[N]{state: cellState[N]{hasStored: true, storedPtr: ptr}}
	c.refs.Store(1)
	return Reference[N]{cell: c}
}

// IsEmpty reports whether this reference addresses no child.
func (r Reference[N]) IsEmpty() bool {
	return r.cell == nil
}

// Clone returns a reference sharing the same underlying cell, incrementing
// its sharing count. Cloning is cheap: it never touches the cell's lock.
func (r Reference[N]) Clone() Reference[N] {
	if r.cell == nil {
		return r
	}
	r.cell.refs.Add(1)
	return Reference[N]{cell: r.cell}
}

// Same reports whether two references point at the same underlying cell,
// i.e. whether they structurally share a node.
func (r Reference[N]) Same(other Reference[N]) bool {
	return r.cell == other.cell
}

// StoredPtr reports the pointer this reference is persisted at, if its
// cell currently holds the Stored variant rather than Resident. It is a
// read-only escape hatch for store-level housekeeping (e.g. walking a
// saved tree to drive refcount-release/delete teardown) that does not go
// through the read/take-or-clone/save policy.
func (r Reference[N]) StoredPtr() (store.Ptr, bool) {
	if r.cell == nil {
		return 0, false
	}
	r.cell.mu.RLock()
	defer r.cell.mu.RUnlock()
	if r.cell.state.resident != nil {
		return 0, false
	}
	return r.cell.state.storedPtr, r.cell.state.hasStored
}
