package avl

import (
	"encoding/hex"
	"fmt"

	"github.com/pkg/errors"

	"github.com/arborix-db/pmtree/dot"
	"github.com/arborix-db/pmtree/hash"
	"github.com/arborix-db/pmtree/internal/pmerrors"
	"github.com/arborix-db/pmtree/manager"
	"github.com/arborix-db/pmtree/store"
)

// Tree is a persistent, optionally transient, optionally Merkle-hashed
// ordered map. Its zero value is not usable; construct one with New or
// FromPointer.
type Tree[K Key[K], V Value[V]] struct {
	root   manager.Reference[Node[K, V]]
	mgr    *manager.Manager[Node[K, V]]
	hasher hash.Hasher
}

// New returns an empty tree backed by the given Node Store, with an LRU
// cache of cacheCapacity (non-positive falls back to
// manager.DefaultCacheCapacity) and hasher as the prototype Merkle hash
// algorithm every node forks its own sub-hasher from.
func New[K Key[K], V Value[V]](backing store.Store[Node[K, V]], cacheCapacity int, hasher hash.Hasher) *Tree[K, V] {
	return &Tree[K, V]{
		mgr:    manager.New(backing, cacheCapacity),
		hasher: hasher,
	}
}

// FromPointer returns a tree rooted at an already-persisted node, for
// recreating a tree handle from a previously saved root pointer.
func FromPointer[K Key[K], V Value[V]](backing store.Store[Node[K, V]], cacheCapacity int, hasher hash.Hasher, root store.Ptr) *Tree[K, V] {
	return &Tree[K, V]{
		root:   manager.FromPointer[Node[K, V]](root),
		mgr:    manager.New(backing, cacheCapacity),
		hasher: hasher,
	}
}

// WithMetrics attaches Prometheus instrumentation to the tree's Node
// Manager and returns the receiver for chaining.
func (t *Tree[K, V]) WithMetrics(metrics *manager.Metrics) *Tree[K, V] {
	t.mgr.WithMetrics(metrics)
	return t
}

// Manager returns the Node Manager backing this tree, for callers that
// need direct store access, such as refcount-driven teardown after a
// tree is no longer needed.
func (t *Tree[K, V]) Manager() *manager.Manager[Node[K, V]] {
	return t.mgr
}

// Root returns the tree's root Node Reference.
func (t *Tree[K, V]) Root() manager.Reference[Node[K, V]] {
	return t.root
}

// Get returns a clone of the value stored under key.
func (t *Tree[K, V]) Get(key K) (V, bool, error) {
	return getRec(t.mgr, t.root, key)
}

// Insert returns a new tree with key bound to value, leaving the receiver
// and every other existing tree version observing key's prior binding
// unchanged.
func (t *Tree[K, V]) Insert(key K, value V) (*Tree[K, V], error) {
	newRoot, err := insertRec(t.mgr, t.root, key, value, false)
	if err != nil {
		return nil, err
	}
	return &Tree[K, V]{root: newRoot, mgr: t.mgr, hasher: t.hasher}, nil
}

// InsertMut binds key to value in place, falling back to copy-on-write for
// any subtree the receiver does not uniquely own.
func (t *Tree[K, V]) InsertMut(key K, value V) error {
	newRoot, err := insertRec(t.mgr, t.root, key, value, true)
	if err != nil {
		return err
	}
	t.root = newRoot
	return nil
}

// Delete returns a new tree with key removed (a no-op new version if key
// was absent), leaving the receiver unchanged.
func (t *Tree[K, V]) Delete(key K) (*Tree[K, V], error) {
	newRoot, _, err := deleteRec(t.mgr, t.root, key, false)
	if err != nil {
		return nil, err
	}
	return &Tree[K, V]{root: newRoot, mgr: t.mgr, hasher: t.hasher}, nil
}

// DeleteMut removes key in place, falling back to copy-on-write for any
// subtree the receiver does not uniquely own.
func (t *Tree[K, V]) DeleteMut(key K) error {
	newRoot, _, err := deleteRec(t.mgr, t.root, key, true)
	if err != nil {
		return err
	}
	t.root = newRoot
	return nil
}

// Clone returns a new tree handle sharing every cell of the receiver's
// tree. Mutating either handle with the Mut operations falls back to
// copy-on-write, since the shared cells are no longer uniquely owned by
// either handle.
func (t *Tree[K, V]) Clone() *Tree[K, V] {
	return &Tree[K, V]{root: t.root.Clone(), mgr: t.mgr, hasher: t.hasher}
}

// Balanced reports whether every node satisfies the AVL height and
// balance invariants.
func (t *Tree[K, V]) Balanced() (bool, error) {
	return balancedRec(t.mgr, t.root)
}

func balancedRec[K Key[K], V Value[V]](mgr *manager.Manager[Node[K, V]], ref manager.Reference[Node[K, V]]) (bool, error) {
	if ref.IsEmpty() {
		return true, nil
	}
	rh, found, err := mgr.Read(ref)
	if err != nil {
		return false, err
	}
	if !found {
		return false, errUnresolvedReference
	}
	n := rh.Get()
	rh.Release()

	lh, err := refHeight(mgr, n.Left)
	if err != nil {
		return false, err
	}
	rhh, err := refHeight(mgr, n.Right)
	if err != nil {
		return false, err
	}
	if absSigned(lh-rhh) > 1 {
		return false, nil
	}
	if n.Height != 1+maxOrdered(lh, rhh) {
		return false, nil
	}

	lok, err := balancedRec(mgr, n.Left)
	if err != nil || !lok {
		return false, err
	}
	return balancedRec(mgr, n.Right)
}

// RootHash computes the tree's Merkle root digest. Digests are memoized
// per node under the node's hash lock; a second call recomputes nothing
// for nodes whose subtree did not change.
func (t *Tree[K, V]) RootHash() ([]byte, error) {
	return hashOf(t.mgr, t.root, t.hasher)
}

func hashOf[K Key[K], V Value[V]](mgr *manager.Manager[Node[K, V]], ref manager.Reference[Node[K, V]], proto hash.Hasher) ([]byte, error) {
	if ref.IsEmpty() {
		// The canonical empty-tree hash: the algorithm's own finalize of a
		// never-absorbed fork.
		return proto.Fork().Finalize(), nil
	}

	h, found, err := mgr.HashHandle(ref)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errUnresolvedReference
	}
	defer h.Release()

	n := h.Ref()
	if n.Digest != nil {
		return append([]byte(nil), n.Digest...), nil
	}

	sub := proto.Fork()
	sub.Write(n.Key.Bytes())
	sub.Write(n.Value.Bytes())

	leftEmpty := n.Left.IsEmpty()
	rightEmpty := n.Right.IsEmpty()

	if !leftEmpty {
		leftDigest, err := hashOf(mgr, n.Left, proto)
		if err != nil {
			return nil, err
		}
		sub.Write(leftDigest)
	}
	if leftEmpty && !rightEmpty {
		// Distinguishes "(empty, R)" from "(L, empty)".
		sub.Write([]byte{0})
	}
	if !rightEmpty {
		rightDigest, err := hashOf(mgr, n.Right, proto)
		if err != nil {
			return nil, err
		}
		sub.Write(rightDigest)
	}

	digest := sub.Finalize()
	n.Digest = digest
	return append([]byte(nil), digest...), nil
}

// Save persists the whole tree bottom-up: children are saved before
// their parent so every Stored reference a saved node contains is
// already valid by the time the node itself is inserted.
func (t *Tree[K, V]) Save() (store.Ptr, bool, error) {
	return saveRec(t.mgr, t.root)
}

func saveRec[K Key[K], V Value[V]](mgr *manager.Manager[Node[K, V]], ref manager.Reference[Node[K, V]]) (store.Ptr, bool, error) {
	if ref.IsEmpty() {
		return 0, false, nil
	}
	rh, found, err := mgr.Read(ref)
	if err != nil {
		return 0, false, err
	}
	if !found {
		return 0, false, errUnresolvedReference
	}
	n := rh.Get()
	rh.Release()

	if !n.Left.IsEmpty() {
		if _, _, err := saveRec(mgr, n.Left); err != nil {
			return 0, false, err
		}
	}
	if !n.Right.IsEmpty() {
		if _, _, err := saveRec(mgr, n.Right); err != nil {
			return 0, false, err
		}
	}
	return mgr.Save(ref)
}

// ExportDOT renders the tree as a DOT graph, overwriting path. It first
// computes RootHash to ensure every node's digest is memoized, then
// walks the tree emitting one vertex per node labeled with its key,
// value, height, and digest prefix.
func (t *Tree[K, V]) ExportDOT(path string) error {
	rootDigest, err := t.RootHash()
	if err != nil {
		return err
	}
	w := dot.NewFileWriter(path)
	w.SetGraphLabel(hex.EncodeToString(rootDigest))
	if _, err := exportDOTRec(t.mgr, t.root, w); err != nil {
		return err
	}
	return w.Flush()
}

func exportDOTRec[K Key[K], V Value[V]](mgr *manager.Manager[Node[K, V]], ref manager.Reference[Node[K, V]], w dot.Writer) (string, error) {
	if ref.IsEmpty() {
		return "", nil
	}
	h, found, err := mgr.HashHandle(ref)
	if err != nil {
		return "", err
	}
	if !found {
		return "", errors.Wrap(pmerrors.ErrInvariantViolation, "export: unresolved reference")
	}
	n := h.Ref()
	digestPrefix := n.Digest
	if len(digestPrefix) > 8 {
		digestPrefix = digestPrefix[:8]
	}
	label := fmt.Sprintf("key=%x value=%x height=%d hash=%x", n.Key.Bytes(), n.Value.Bytes(), n.Height, digestPrefix)
	left, right := n.Left, n.Right
	h.Release()

	id := w.NewNode(label)
	leftID, err := exportDOTRec(mgr, left, w)
	if err != nil {
		return "", err
	}
	if leftID != "" {
		w.DrawEdge(id, leftID)
	}
	rightID, err := exportDOTRec(mgr, right, w)
	if err != nil {
		return "", err
	}
	if rightID != "" {
		w.DrawEdge(id, rightID)
	}
	return id, nil
}
