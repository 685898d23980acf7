package avl

import (
	"golang.org/x/exp/constraints"

	"github.com/arborix-db/pmtree/manager"
)

// refHeight returns the height of the node ref addresses, or 0 for an
// empty subtree.
func refHeight[K Key[K], V Value[V]](mgr *manager.Manager[Node[K, V]], ref manager.Reference[Node[K, V]]) (int32, error) {
	if ref.IsEmpty() {
		return 0, nil
	}
	rh, found, err := mgr.Read(ref)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, errUnresolvedReference
	}
	n := rh.Get()
	rh.Release()
	return n.Height, nil
}

// balanceFactorOf returns height(left) - height(right) for the node ref
// addresses.
func balanceFactorOf[K Key[K], V Value[V]](mgr *manager.Manager[Node[K, V]], ref manager.Reference[Node[K, V]]) (int32, error) {
	if ref.IsEmpty() {
		return 0, nil
	}
	rh, found, err := mgr.Read(ref)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, errUnresolvedReference
	}
	n := rh.Get()
	rh.Release()
	lh, err := refHeight(mgr, n.Left)
	if err != nil {
		return 0, err
	}
	rhh, err := refHeight(mgr, n.Right)
	if err != nil {
		return 0, err
	}
	return lh - rhh, nil
}

// updateHeight recomputes n's height from its children and clears its
// memoized digest, since a rotation invalidates the digest of every node
// whose subtree structure changed.
func updateHeight[K Key[K], V Value[V]](mgr *manager.Manager[Node[K, V]], n *Node[K, V]) error {
	lh, err := refHeight(mgr, n.Left)
	if err != nil {
		return err
	}
	rh, err := refHeight(mgr, n.Right)
	if err != nil {
		return err
	}
	n.Height = 1 + maxOrdered(lh, rh)
	n.Digest = nil
	return nil
}

// maxOrdered and absSigned are tiny generic numeric helpers kept in terms
// of golang.org/x/exp/constraints rather than hand-rolled for each integer
// width, the same module Carmen itself depends on for generic numeric
// constraints ahead of them landing in the standard library.
func maxOrdered[T constraints.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}

func absSigned[T constraints.Signed](a T) T {
	if a < 0 {
		return -a
	}
	return a
}
