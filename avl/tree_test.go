package avl

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arborix-db/pmtree/hash"
	"github.com/arborix-db/pmtree/hash/blake3hash"
	"github.com/arborix-db/pmtree/manager"
	"github.com/arborix-db/pmtree/store/memstore"
	"github.com/arborix-db/pmtree/value"
)

type intTree = *Tree[value.Int32, value.Int32]

func newIntTree(t *testing.T) intTree {
	t.Helper()
	backing := memstore.New[Node[value.Int32, value.Int32]]()
	return New[value.Int32, value.Int32](backing, 0, blake3hash.New())
}

func mustBalanced(t *testing.T, tr intTree) {
	t.Helper()
	ok, err := tr.Balanced()
	require.NoError(t, err)
	require.True(t, ok)
}

// Scenario 1: insert keys 0..10 ascending; balanced + readable after each
// insert; root height is 4 at the end.
func TestInsertAscendingScenario(t *testing.T) {
	tr := newIntTree(t)
	for i := int32(0); i <= 10; i++ {
		require.NoError(t, tr.InsertMut(value.Int32(i), value.Int32(i)))
		mustBalanced(t, tr)
		for j := int32(0); j <= i; j++ {
			v, found, err := tr.Get(value.Int32(j))
			require.NoError(t, err)
			require.True(t, found)
			require.Equal(t, value.Int32(j), v)
		}
	}

	rh, found, err := tr.Manager().Read(tr.Root())
	require.NoError(t, err)
	require.True(t, found)
	root := rh.Get()
	rh.Release()
	require.EqualValues(t, 4, root.Height)
}

// Scenario 2: delete 10..0 descending; balanced + absent after each delete;
// final root hash equals the canonical empty-tree hash constant.
func TestDeleteDescendingToEmpty(t *testing.T) {
	tr := newIntTree(t)
	for i := int32(0); i <= 10; i++ {
		require.NoError(t, tr.InsertMut(value.Int32(i), value.Int32(i)))
	}

	for i := int32(10); i >= 0; i-- {
		require.NoError(t, tr.DeleteMut(value.Int32(i)))
		mustBalanced(t, tr)
		_, found, err := tr.Get(value.Int32(i))
		require.NoError(t, err)
		require.False(t, found)
	}

	require.True(t, tr.Root().IsEmpty())
	rootHash, err := tr.RootHash()
	require.NoError(t, err)
	require.Equal(t, blake3hash.EmptyHash, rootHash)
}

// Scenario 3: inserting a permutation yields the same in-order sequence as
// ascending insertion; the root hash only coincides with scenario 1's if the
// resulting shapes coincide, since the digest schema is shape-dependent by
// design.
func TestInsertPermutationOrderedMapLaw(t *testing.T) {
	ascending := newIntTree(t)
	for i := int32(0); i <= 10; i++ {
		require.NoError(t, ascending.InsertMut(value.Int32(i), value.Int32(i)))
	}

	permuted := newIntTree(t)
	for _, i := range []int32{5, 3, 7, 1, 4, 6, 9, 2, 8, 0, 10} {
		require.NoError(t, permuted.InsertMut(value.Int32(i), value.Int32(i)))
	}
	mustBalanced(t, permuted)

	for i := int32(0); i <= 10; i++ {
		v, found, err := permuted.Get(value.Int32(i))
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, value.Int32(i), v)
	}

	ascHash, err := ascending.RootHash()
	require.NoError(t, err)
	permHash, err := permuted.RootHash()
	require.NoError(t, err)

	sameShape, err := sameTreeShape(ascending, permuted)
	require.NoError(t, err)
	if sameShape {
		require.Equal(t, ascHash, permHash)
	} else {
		require.NotEqual(t, ascHash, permHash)
	}
}

type intNodeRef = manager.Reference[Node[value.Int32, value.Int32]]
type intManager = *manager.Manager[Node[value.Int32, value.Int32]]

func sameTreeShape(a, b intTree) (bool, error) {
	return shapeEqual(a.mgr, a.root, b.mgr, b.root)
}

func shapeEqual(am intManager, aref intNodeRef, bm intManager, bref intNodeRef) (bool, error) {
	if aref.IsEmpty() != bref.IsEmpty() {
		return false, nil
	}
	if aref.IsEmpty() {
		return true, nil
	}
	arh, _, err := am.Read(aref)
	if err != nil {
		return false, err
	}
	an := arh.Get()
	arh.Release()

	brh, _, err := bm.Read(bref)
	if err != nil {
		return false, err
	}
	bn := brh.Get()
	brh.Release()

	if an.Key != bn.Key || an.Value != bn.Value {
		return false, nil
	}
	leftEq, err := shapeEqual(am, an.Left, bm, bn.Left)
	if err != nil || !leftEq {
		return false, err
	}
	return shapeEqual(am, an.Right, bm, bn.Right)
}

// Scenario 4: persistent insert leaves the original tree unaffected.
func TestPersistentInsertDoesNotMutateOriginal(t *testing.T) {
	tr := newIntTree(t)
	for i := int32(0); i <= 10; i++ {
		next, err := tr.Insert(value.Int32(i), value.Int32(i))
		require.NoError(t, err)
		tr = next
	}

	next, err := tr.Insert(value.Int32(11), value.Int32(11))
	require.NoError(t, err)

	_, found, err := tr.Get(value.Int32(11))
	require.NoError(t, err)
	require.False(t, found)

	v, found, err := next.Get(value.Int32(11))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, value.Int32(11), v)

	origFive, _, err := tr.Get(value.Int32(5))
	require.NoError(t, err)
	nextFive, _, err := next.Get(value.Int32(5))
	require.NoError(t, err)
	require.Equal(t, origFive, nextFive)
}

// Scenario 5: cloning a transient tree's handle forces the next mutation
// onto the copy-on-write path, since the clone's cells are no longer
// uniquely owned.
func TestCloneForcesCopyOnWrite(t *testing.T) {
	tr := newIntTree(t)
	for i := int32(0); i <= 10; i++ {
		require.NoError(t, tr.InsertMut(value.Int32(i), value.Int32(i)))
	}

	clone := tr.Clone()
	require.NoError(t, clone.InsertMut(value.Int32(100), value.Int32(100)))

	_, found, err := tr.Get(value.Int32(100))
	require.NoError(t, err)
	require.False(t, found)

	v, found, err := clone.Get(value.Int32(100))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, value.Int32(100), v)
}

// Scenario 6: save/reload round trip against a memory-backed store, and
// refcount-driven teardown leaves the store empty.
func TestSaveReloadRoundTrip(t *testing.T) {
	backing := memstore.New[Node[value.Int32, value.Int32]]()
	tr := New[value.Int32, value.Int32](backing, 0, blake3hash.New())
	for i := int32(0); i <= 10; i++ {
		require.NoError(t, tr.InsertMut(value.Int32(i), value.Int32(i)))
	}

	root, ok, err := tr.Save()
	require.NoError(t, err)
	require.True(t, ok)

	reloaded := FromPointer[value.Int32, value.Int32](backing, 0, blake3hash.New(), root)
	for i := int32(0); i <= 10; i++ {
		v, found, err := reloaded.Get(value.Int32(i))
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, value.Int32(i), v)
	}

	require.NoError(t, teardown(reloaded.mgr, backing, reloaded.root))
	require.Equal(t, 0, backing.Len())
}

// teardown walks a saved tree by its references, releasing each node's
// store refcount bottom-up and deleting it once that count reaches zero.
func teardown(mgr intManager, backing *memstore.Store[Node[value.Int32, value.Int32]], ref intNodeRef) error {
	if ref.IsEmpty() {
		return nil
	}
	ptr, ok := ref.StoredPtr()
	if !ok {
		return errUnresolvedReference
	}

	rh, found, err := mgr.Read(ref)
	if err != nil {
		return err
	}
	if !found {
		return errUnresolvedReference
	}
	n := rh.Get()
	rh.Release()

	if err := teardown(mgr, backing, n.Left); err != nil {
		return err
	}
	if err := teardown(mgr, backing, n.Right); err != nil {
		return err
	}

	count, err := backing.DecRefCount(ptr)
	if err != nil {
		return err
	}
	if count == 0 {
		return backing.Delete(ptr)
	}
	return nil
}

// Idempotent hashing: the second RootHash call recomputes nothing, verified
// with a counting hasher.
func TestIdempotentHashing(t *testing.T) {
	tr := newIntTree(t)
	for i := int32(0); i <= 6; i++ {
		require.NoError(t, tr.InsertMut(value.Int32(i), value.Int32(i)))
	}

	counting := &countingHasher{}
	tr.hasher = counting

	_, err := tr.RootHash()
	require.NoError(t, err)
	first := counting.forks

	_, err = tr.RootHash()
	require.NoError(t, err)
	require.Equal(t, first, counting.forks, "second RootHash call must not fork any new sub-hashers")
}

type countingHasher struct {
	forks int
}

func (c *countingHasher) Fork() hash.Hasher {
	c.forks++
	return blake3hash.New()
}

func (c *countingHasher) Write(p []byte) {}

func (c *countingHasher) Finalize() []byte { return nil }

var _ hash.Hasher = (*countingHasher)(nil)
