// Package shared provides a generic reader/writer-preferring cell used
// throughout pmtree to guard both Node Reference cells and the AVL node's
// own content/digest split. It is adapted from Carmen's
// database/mpt/shared package, generalized from MPT-specific nodes to any
// payload type, and extended with panic-poisoning so a critical section
// that panics while holding exclusive access is surfaced to later callers
// as a distinct error instead of silently unlocking into undefined state.
//
// Shared values expose four access levels:
//   - read: content fields only
//   - view: content and hash fields, both read-only
//   - hash: content read-only, hash fields read/write
//   - write: content and hash fields, read/write
//
// Compatibility of simultaneously held access levels:
//
//	          want\held  |  None  | Read | View | Hash | Write
//	        -------------+--------+------+------+------+-------
//	            Read     |    +   |   +  |   +  |   +  |   -
//	            View     |    +   |   +  |   +  |   -  |   -
//	            Hash     |    +   |   +  |   -  |   -  |   -
//	            Write    |    +   |   -  |   -  |   -  |   -
package shared

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/arborix-db/pmtree/internal/pmerrors"
)

// Shared wraps a value of type T, controlling concurrent access to its
// content and a separately lockable hash/digest slot.
type Shared[T any] struct {
	value        T
	contentMutex sync.RWMutex
	hashMutex    sync.RWMutex
	poisoned     atomic.Bool
}

// New creates a new shared cell initialized with the given value.
func New[T any](value T) *Shared[T] {
	return &Shared[T]{value: value}
}

// Poisoned reports whether a previous write critical section on this cell
// panicked before releasing its lock.
func (p *Shared[T]) Poisoned() bool {
	return p.poisoned.Load()
}

func (p *Shared[T]) checkPoisoned() error {
	if p.poisoned.Load() {
		return errors.Wrap(pmerrors.ErrPoisoned, "shared cell")
	}
	return nil
}

// GetReadHandle blocks until read access to the content is granted.
func (p *Shared[T]) GetReadHandle() (ReadHandle[T], error) {
	if err := p.checkPoisoned(); err != nil {
		return ReadHandle[T]{}, err
	}
	p.contentMutex.RLock()
	return ReadHandle[T]{handle[T]{p}}, nil
}

// TryGetReadHandle attempts read access without blocking.
func (p *Shared[T]) TryGetReadHandle() (ReadHandle[T], bool) {
	if p.poisoned.Load() {
		return ReadHandle[T]{}, false
	}
	if p.contentMutex.TryRLock() {
		return ReadHandle[T]{handle[T]{p}}, true
	}
	return ReadHandle[T]{}, false
}

// GetViewHandle blocks until read access to content and hash is granted.
func (p *Shared[T]) GetViewHandle() (ViewHandle[T], error) {
	if err := p.checkPoisoned(); err != nil {
		return ViewHandle[T]{}, err
	}
	p.contentMutex.RLock()
	p.hashMutex.RLock()
	return ViewHandle[T]{handle[T]{p}}, nil
}

// GetHashHandle blocks until read access to content and write access to
// hash data is granted.
func (p *Shared[T]) GetHashHandle() (HashHandle[T], error) {
	if err := p.checkPoisoned(); err != nil {
		return HashHandle[T]{}, err
	}
	p.contentMutex.RLock()
	p.hashMutex.Lock()
	return HashHandle[T]{handle[T]{p}}, nil
}

// GetWriteHandle blocks until exclusive write access is granted.
func (p *Shared[T]) GetWriteHandle() (WriteHandle[T], error) {
	if err := p.checkPoisoned(); err != nil {
		return WriteHandle[T]{}, err
	}
	p.contentMutex.Lock()
	return WriteHandle[T]{handle[T]{p}}, nil
}

// TryGetWriteHandle attempts exclusive write access without blocking.
func (p *Shared[T]) TryGetWriteHandle() (WriteHandle[T], bool) {
	if p.poisoned.Load() {
		return WriteHandle[T]{}, false
	}
	if p.contentMutex.TryLock() {
		return WriteHandle[T]{handle[T]{p}}, true
	}
	return WriteHandle[T]{}, false
}

// WithWrite runs fn under an exclusive write handle, releasing it
// afterwards. If fn panics, the cell is marked poisoned before the panic
// propagates, so subsequent accesses fail with pmerrors.ErrPoisoned
// instead of silently observing a half-mutated value.
func (p *Shared[T]) WithWrite(fn func(*T)) error {
	wh, err := p.GetWriteHandle()
	if err != nil {
		return err
	}
	ok := false
	defer func() {
		if !ok {
			p.poisoned.Store(true)
		}
		wh.Release()
	}()
	fn(wh.Ref())
	ok = true
	return nil
}

type handle[T any] struct {
	shared *Shared[T]
}

// Valid reports whether this handle still represents an active access
// permission. Default-initialized handles are invalid.
func (h *handle[T]) Valid() bool {
	return h.shared != nil
}

// Get returns the underlying value. Must only be called on a valid handle.
func (h *handle[T]) Get() T {
	return h.shared.value
}

// ReadHandle grants read-only access to a Shared value's content.
type ReadHandle[T any] struct {
	handle[T]
}

// Release abandons the read permission. Must be called exactly once on
// every valid handle.
func (h *ReadHandle[T]) Release() {
	h.shared.contentMutex.RUnlock()
	h.shared = nil
}

func (h *ReadHandle[T]) String() string { return fmt.Sprintf("ReadHandle(%p)", h.shared) }

// ViewHandle grants read-only access to a Shared value's content and hash.
type ViewHandle[T any] struct {
	handle[T]
}

// Release abandons the view permission. Must be called exactly once on
// every valid handle.
func (h *ViewHandle[T]) Release() {
	h.shared.contentMutex.RUnlock()
	h.shared.hashMutex.RUnlock()
	h.shared = nil
}

func (h *ViewHandle[T]) String() string { return fmt.Sprintf("ViewHandle(%p)", h.shared) }

// HashHandle grants read-only access to content and exclusive write access
// to hash data.
type HashHandle[T any] struct {
	handle[T]
}

// Ref returns a pointer to the shared value. Holders of a HashHandle must
// only use it to update hash-derived fields (e.g. a memoized digest);
// content fields remain governed by the content lock this handle only
// holds for reading. This mirrors the discipline Carmen's codebase
// applies to its own Node.SetHash callers.
func (h *HashHandle[T]) Ref() *T {
	return &h.shared.value
}

// Release abandons the hash permission. Must be called exactly once on
// every valid handle.
func (h *HashHandle[T]) Release() {
	h.shared.contentMutex.RUnlock()
	h.shared.hashMutex.Unlock()
	h.shared = nil
}

func (h *HashHandle[T]) String() string { return fmt.Sprintf("HashHandle(%p)", h.shared) }

// WriteHandle grants exclusive read/write access to a Shared value.
type WriteHandle[T any] struct {
	handle[T]
}

// Ref returns a pointer to the shared value for in-place mutation. Must
// only be called on a valid handle.
func (h *WriteHandle[T]) Ref() *T {
	return &h.shared.value
}

// Set overwrites the shared value.
func (h *WriteHandle[T]) Set(value T) {
	h.shared.value = value
}

// Release abandons the write permission. Must be called exactly once on
// every valid handle.
func (h *WriteHandle[T]) Release() {
	h.shared.contentMutex.Unlock()
	h.shared = nil
}

func (h *WriteHandle[T]) String() string { return fmt.Sprintf("WriteHandle(%p)", h.shared) }
