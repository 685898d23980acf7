package avl

import "github.com/arborix-db/pmtree/manager"

// getRec performs a recursive binary-search descent via Node Manager
// reads, returning a clone of the stored value on hit.
func getRec[K Key[K], V Value[V]](mgr *manager.Manager[Node[K, V]], ref manager.Reference[Node[K, V]], key K) (V, bool, error) {
	var zero V
	if ref.IsEmpty() {
		return zero, false, nil
	}
	rh, found, err := mgr.Read(ref)
	if err != nil {
		return zero, false, err
	}
	if !found {
		return zero, false, errUnresolvedReference
	}
	n := rh.Get()
	rh.Release()

	switch c := key.Compare(n.Key); {
	case c < 0:
		return getRec(mgr, n.Left, key)
	case c > 0:
		return getRec(mgr, n.Right, key)
	default:
		return n.Value.Clone(), true, nil
	}
}

// insertRec takes or clones the current reference, descends towards key,
// overwrites on equality, and rebalances on the way back up. editable
// tracks the take-or-clone frontier: it is true only while every
// ancestor on the path so far was uniquely owned.
func insertRec[K Key[K], V Value[V]](mgr *manager.Manager[Node[K, V]], ref manager.Reference[Node[K, V]], key K, val V, editable bool) (manager.Reference[Node[K, V]], error) {
	res, err := mgr.TakeOrClone(ref, editable, cloneNode[K, V])
	if err != nil {
		return manager.Reference[Node[K, V]]{}, err
	}
	if res.Empty {
		leaf := Node[K, V]{Key: key, Value: val.Clone(), Height: 1}
		return manager.FromNode(leaf), nil
	}

	node := res.Node
	switch c := key.Compare(node.Key); {
	case c < 0:
		newLeft, err := insertRec(mgr, node.Left, key, val, res.Owned)
		if err != nil {
			return manager.Reference[Node[K, V]]{}, err
		}
		node.Left = newLeft
	case c > 0:
		newRight, err := insertRec(mgr, node.Right, key, val, res.Owned)
		if err != nil {
			return manager.Reference[Node[K, V]]{}, err
		}
		node.Right = newRight
	default:
		node.Value = val.Clone()
	}
	node.Digest = nil

	balanced, err := rebalance(mgr, node, res.Owned)
	if err != nil {
		return manager.Reference[Node[K, V]]{}, err
	}
	return manager.FromNode(balanced), nil
}

// deleteRec uses successor-replacement for the two-child case: on
// equality with two non-empty children, the in-order successor (the
// minimum of the right subtree) replaces this node's key/value, and the
// deletion continues as a deletion of that successor key from the right
// subtree.
func deleteRec[K Key[K], V Value[V]](mgr *manager.Manager[Node[K, V]], ref manager.Reference[Node[K, V]], key K, editable bool) (manager.Reference[Node[K, V]], bool, error) {
	res, err := mgr.TakeOrClone(ref, editable, cloneNode[K, V])
	if err != nil {
		return manager.Reference[Node[K, V]]{}, false, err
	}
	if res.Empty {
		return manager.Empty[Node[K, V]](), false, nil
	}
	node := res.Node

	switch c := key.Compare(node.Key); {
	case c < 0:
		newLeft, deleted, err := deleteRec(mgr, node.Left, key, res.Owned)
		if err != nil {
			return manager.Reference[Node[K, V]]{}, false, err
		}
		node.Left = newLeft
		if !deleted {
			return manager.FromNode(node), false, nil
		}
		node.Digest = nil
		balanced, err := rebalance(mgr, node, res.Owned)
		if err != nil {
			return manager.Reference[Node[K, V]]{}, false, err
		}
		return manager.FromNode(balanced), true, nil

	case c > 0:
		newRight, deleted, err := deleteRec(mgr, node.Right, key, res.Owned)
		if err != nil {
			return manager.Reference[Node[K, V]]{}, false, err
		}
		node.Right = newRight
		if !deleted {
			return manager.FromNode(node), false, nil
		}
		node.Digest = nil
		balanced, err := rebalance(mgr, node, res.Owned)
		if err != nil {
			return manager.Reference[Node[K, V]]{}, false, err
		}
		return manager.FromNode(balanced), true, nil

	default:
		switch {
		case node.Left.IsEmpty() && node.Right.IsEmpty():
			return manager.Empty[Node[K, V]](), true, nil
		case node.Left.IsEmpty():
			return node.Right, true, nil
		case node.Right.IsEmpty():
			return node.Left, true, nil
		default:
			succKey, succVal, err := minKeyValue(mgr, node.Right)
			if err != nil {
				return manager.Reference[Node[K, V]]{}, false, err
			}
			newRight, _, err := deleteRec(mgr, node.Right, succKey, res.Owned)
			if err != nil {
				return manager.Reference[Node[K, V]]{}, false, err
			}
			node.Key = succKey
			node.Value = succVal
			node.Right = newRight
			node.Digest = nil
			balanced, err := rebalance(mgr, node, res.Owned)
			if err != nil {
				return manager.Reference[Node[K, V]]{}, false, err
			}
			return manager.FromNode(balanced), true, nil
		}
	}
}

// minKeyValue returns the key/value of the left-most (minimum) node of the
// subtree ref addresses. ref must not be empty.
func minKeyValue[K Key[K], V Value[V]](mgr *manager.Manager[Node[K, V]], ref manager.Reference[Node[K, V]]) (K, V, error) {
	var zeroK K
	var zeroV V
	for {
		rh, found, err := mgr.Read(ref)
		if err != nil {
			return zeroK, zeroV, err
		}
		if !found {
			return zeroK, zeroV, errUnresolvedReference
		}
		n := rh.Get()
		rh.Release()
		if n.Left.IsEmpty() {
			return n.Key, n.Value.Clone(), nil
		}
		ref = n.Left
	}
}
