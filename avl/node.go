// Package avl implements a persistent, optionally transient, optionally
// Merkle-hashed AVL tree, built on top of the Node Reference / Node
// Manager substrate in package manager.
package avl

import (
	"github.com/arborix-db/pmtree/manager"
	"github.com/arborix-db/pmtree/value"
)

// Key is the constraint an AVL tree's key type must satisfy.
type Key[K any] interface {
	value.Key[K]
}

// Value is the constraint an AVL tree's value type must satisfy.
type Value[V any] interface {
	value.Value[V]
}

// Node is the domain node type the Node Manager substrate is instantiated
// over for an AVL tree: a key, a value, left/right Node References, a
// cached height, and a memoized digest.
//
// Node is wrapped in shared.Shared[Node[K, V]] by the Node Manager; the
// Key/Value/Left/Right/Height fields are its content, Digest its hash
// data. Code must only touch Digest while holding a hash or write
// handle, never a bare read handle.
type Node[K Key[K], V Value[V]] struct {
	Key    K
	Value  V
	Left   manager.Reference[Node[K, V]]
	Right  manager.Reference[Node[K, V]]
	Height int32

	// Digest is the memoized Merkle hash of this node's subtree, or nil
	// if not yet computed since the last structural change.
	Digest []byte
}

// cloneNode produces an independent copy of n suitable for the persistent
// (copy-on-write) path of take-or-clone: the value is deep-cloned, the
// key is copied as-is (keys need only ordering and serialization, not
// clone), children References are explicitly Clone()'d to correctly bump
// the underlying cells' sharing count, and the memoized digest starts
// empty.
func cloneNode[K Key[K], V Value[V]](n Node[K, V]) Node[K, V] {
	return Node[K, V]{
		Key:    n.Key,
		Value:  n.Value.Clone(),
		Left:   n.Left.Clone(),
		Right:  n.Right.Clone(),
		Height: n.Height,
		Digest: nil,
	}
}
