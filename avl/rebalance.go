package avl

import "github.com/arborix-db/pmtree/manager"

// rebalance recomputes n's height, then applies at most one rotation (or
// composed pair) to restore the balance invariant. owned reports whether
// n was taken by unique ownership rather than cloned, and is forwarded to
// the rotation helpers so they extend the same take-or-clone frontier
// into the children they restructure.
func rebalance[K Key[K], V Value[V]](mgr *manager.Manager[Node[K, V]], n Node[K, V], owned bool) (Node[K, V], error) {
	if err := updateHeight(mgr, &n); err != nil {
		return n, err
	}
	lh, err := refHeight(mgr, n.Left)
	if err != nil {
		return n, err
	}
	rh, err := refHeight(mgr, n.Right)
	if err != nil {
		return n, err
	}
	bf := lh - rh

	switch {
	case bf < -1:
		rbf, err := balanceFactorOf(mgr, n.Right)
		if err != nil {
			return n, err
		}
		if rbf > 0 {
			return rotateRightLeft(mgr, n, owned)
		}
		return rotateLeft(mgr, n, owned)
	case bf > 1:
		lbf, err := balanceFactorOf(mgr, n.Left)
		if err != nil {
			return n, err
		}
		if lbf < 0 {
			return rotateLeftRight(mgr, n, owned)
		}
		return rotateRight(mgr, n, owned)
	default:
		return n, nil
	}
}

// rotateLeft performs a standard left rotation around x, whose right child
// y becomes the new subtree root.
func rotateLeft[K Key[K], V Value[V]](mgr *manager.Manager[Node[K, V]], x Node[K, V], owned bool) (Node[K, V], error) {
	res, err := mgr.TakeOrClone(x.Right, owned, cloneNode[K, V])
	if err != nil {
		return x, err
	}
	if res.Empty {
		return x, errUnresolvedReference
	}
	y := res.Node

	x.Right = y.Left
	if err := updateHeight(mgr, &x); err != nil {
		return x, err
	}

	y.Left = manager.FromNode(x)
	if err := updateHeight(mgr, &y); err != nil {
		return y, err
	}
	return y, nil
}

// rotateRight performs a standard right rotation around x, whose left
// child y becomes the new subtree root.
func rotateRight[K Key[K], V Value[V]](mgr *manager.Manager[Node[K, V]], x Node[K, V], owned bool) (Node[K, V], error) {
	res, err := mgr.TakeOrClone(x.Left, owned, cloneNode[K, V])
	if err != nil {
		return x, err
	}
	if res.Empty {
		return x, errUnresolvedReference
	}
	y := res.Node

	x.Left = y.Right
	if err := updateHeight(mgr, &x); err != nil {
		return x, err
	}

	y.Right = manager.FromNode(x)
	if err := updateHeight(mgr, &y); err != nil {
		return y, err
	}
	return y, nil
}

// rotateLeftRight resolves a left-heavy node whose left child is itself
// right-heavy: rotate the left child left, then rotate the node right.
func rotateLeftRight[K Key[K], V Value[V]](mgr *manager.Manager[Node[K, V]], n Node[K, V], owned bool) (Node[K, V], error) {
	res, err := mgr.TakeOrClone(n.Left, owned, cloneNode[K, V])
	if err != nil {
		return n, err
	}
	if res.Empty {
		return n, errUnresolvedReference
	}
	rotatedLeft, err := rotateLeft(mgr, res.Node, res.Owned)
	if err != nil {
		return n, err
	}
	n.Left = manager.FromNode(rotatedLeft)
	return rotateRight(mgr, n, owned)
}

// rotateRightLeft resolves a right-heavy node whose right child is itself
// left-heavy: rotate the right child right, then rotate the node left.
func rotateRightLeft[K Key[K], V Value[V]](mgr *manager.Manager[Node[K, V]], n Node[K, V], owned bool) (Node[K, V], error) {
	res, err := mgr.TakeOrClone(n.Right, owned, cloneNode[K, V])
	if err != nil {
		return n, err
	}
	if res.Empty {
		return n, errUnresolvedReference
	}
	rotatedRight, err := rotateRight(mgr, res.Node, res.Owned)
	if err != nil {
		return n, err
	}
	n.Right = manager.FromNode(rotatedRight)
	return rotateLeft(mgr, n, owned)
}
