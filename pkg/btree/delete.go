package btree

import (
	"github.com/LandSharkFive/DiskTwo/pkg/element"
	"github.com/LandSharkFive/DiskTwo/pkg/pager"
)

// deleteFrom removes key from the subtree rooted at x, preemptively
// thickening any node it must descend through so that the recursion never
// needs to revisit an ancestor (spec.md §4.4).
func deleteFrom(pgr *pager.Pager, x *pager.Node, key int32) error {
	t := minDegree(pgr.Order())
	i := searchIndex(x, key)

	if i < x.NumKeys && x.Keys[i].Key == key {
		// Case A: found in x.
		if x.Leaf {
			removeKeyAt(x, i)
			x.NumKeys--
			return pgr.Write(x)
		}
		left, err := pgr.Read(x.Kids[i])
		if err != nil {
			return err
		}
		if left.NumKeys >= t {
			pred, err := deleteMax(pgr, left)
			if err != nil {
				return err
			}
			x.Keys[i] = pred
			return pgr.Write(x)
		}
		right, err := pgr.Read(x.Kids[i+1])
		if err != nil {
			return err
		}
		if right.NumKeys >= t {
			succ, err := deleteMin(pgr, right)
			if err != nil {
				return err
			}
			x.Keys[i] = succ
			return pgr.Write(x)
		}
		if err := mergeInto(pgr, x, i, left, right); err != nil {
			return err
		}
		if err := pgr.Write(x); err != nil {
			return err
		}
		return deleteFrom(pgr, left, key)
	}

	// Case B: not found, x is a leaf.
	if x.Leaf {
		return nil
	}

	// Case C: not found, x is internal.
	c, err := pgr.Read(x.Kids[i])
	if err != nil {
		return err
	}
	if c.NumKeys == t-1 {
		c, err = fixChildAt(pgr, x, i, t)
		if err != nil {
			return err
		}
	}
	return deleteFrom(pgr, c, key)
}

// deleteMax removes and returns the maximum element under node, thickening
// every node along the rightmost path before descending through it.
func deleteMax(pgr *pager.Pager, node *pager.Node) (element.Element, error) {
	t := minDegree(pgr.Order())
	for !node.Leaf {
		i := node.NumKeys
		child, err := pgr.Read(node.Kids[i])
		if err != nil {
			return element.Element{}, err
		}
		if child.NumKeys == t-1 {
			child, err = fixChildAt(pgr, node, i, t)
			if err != nil {
				return element.Element{}, err
			}
		}
		node = child
	}
	last := node.Keys[node.NumKeys-1]
	node.Keys[node.NumKeys-1] = element.Sentinel
	node.NumKeys--
	if err := pgr.Write(node); err != nil {
		return element.Element{}, err
	}
	return last, nil
}

// deleteMin removes and returns the minimum element under node, thickening
// every node along the leftmost path before descending through it.
func deleteMin(pgr *pager.Pager, node *pager.Node) (element.Element, error) {
	t := minDegree(pgr.Order())
	for !node.Leaf {
		child, err := pgr.Read(node.Kids[0])
		if err != nil {
			return element.Element{}, err
		}
		if child.NumKeys == t-1 {
			child, err = fixChildAt(pgr, node, 0, t)
			if err != nil {
				return element.Element{}, err
			}
		}
		node = child
	}
	first := node.Keys[0]
	for j := int32(0); j < node.NumKeys-1; j++ {
		node.Keys[j] = node.Keys[j+1]
	}
	node.Keys[node.NumKeys-1] = element.Sentinel
	node.NumKeys--
	if err := pgr.Write(node); err != nil {
		return element.Element{}, err
	}
	return first, nil
}

// fixChildAt ensures parent.Kids[i], which holds exactly t-1 keys, ends up
// with at least t keys: by borrowing from a thick-enough sibling, or
// merging with one when neither sibling can spare a key (spec.md §4.4
// Case C). Returns the node to descend into, which may be a different
// node than parent.Kids[i] was when a merge folds it into a sibling.
func fixChildAt(pgr *pager.Pager, parent *pager.Node, i int32, t int32) (*pager.Node, error) {
	child, err := pgr.Read(parent.Kids[i])
	if err != nil {
		return nil, err
	}

	if i > 0 {
		left, err := pgr.Read(parent.Kids[i-1])
		if err != nil {
			return nil, err
		}
		if left.NumKeys >= t {
			borrowFromLeft(parent, i, left, child)
			if err := pgr.Write(left); err != nil {
				return nil, err
			}
			if err := pgr.Write(child); err != nil {
				return nil, err
			}
			return child, pgr.Write(parent)
		}
	}
	if i < parent.NumKeys {
		right, err := pgr.Read(parent.Kids[i+1])
		if err != nil {
			return nil, err
		}
		if right.NumKeys >= t {
			borrowFromRight(parent, i, child, right)
			if err := pgr.Write(child); err != nil {
				return nil, err
			}
			if err := pgr.Write(right); err != nil {
				return nil, err
			}
			return child, pgr.Write(parent)
		}
		if err := mergeInto(pgr, parent, i, child, right); err != nil {
			return nil, err
		}
		if err := pgr.Write(child); err != nil {
			return nil, err
		}
		return child, pgr.Write(parent)
	}

	left, err := pgr.Read(parent.Kids[i-1])
	if err != nil {
		return nil, err
	}
	if err := mergeInto(pgr, parent, i-1, left, child); err != nil {
		return nil, err
	}
	if err := pgr.Write(left); err != nil {
		return nil, err
	}
	return left, pgr.Write(parent)
}

// borrowFromLeft rotates one key/child from left, through parent, into
// child (spec.md §4.4 "Borrow from left sibling").
func borrowFromLeft(parent *pager.Node, i int32, left, child *pager.Node) {
	for j := child.NumKeys; j > 0; j-- {
		child.Keys[j] = child.Keys[j-1]
	}
	if !child.Leaf {
		for j := child.NumKeys + 1; j > 0; j-- {
			child.Kids[j] = child.Kids[j-1]
		}
	}
	child.Keys[0] = parent.Keys[i-1]
	parent.Keys[i-1] = left.Keys[left.NumKeys-1]
	left.Keys[left.NumKeys-1] = element.Sentinel
	if !child.Leaf {
		child.Kids[0] = left.Kids[left.NumKeys]
		left.Kids[left.NumKeys] = pager.NoNode
	}
	left.NumKeys--
	child.NumKeys++
}

// borrowFromRight mirrors borrowFromLeft using the right sibling.
func borrowFromRight(parent *pager.Node, i int32, child, right *pager.Node) {
	child.Keys[child.NumKeys] = parent.Keys[i]
	if !child.Leaf {
		child.Kids[child.NumKeys+1] = right.Kids[0]
	}
	child.NumKeys++
	parent.Keys[i] = right.Keys[0]

	for j := int32(0); j < right.NumKeys-1; j++ {
		right.Keys[j] = right.Keys[j+1]
	}
	right.Keys[right.NumKeys-1] = element.Sentinel
	if !right.Leaf {
		for j := int32(0); j < right.NumKeys; j++ {
			right.Kids[j] = right.Kids[j+1]
		}
		right.Kids[right.NumKeys] = pager.NoNode
	}
	right.NumKeys--
}

// mergeInto folds parent.Keys[i] and right's contents into left, removing
// the separator and right's child pointer from parent, then retires right
// (spec.md §4.4 "Merge at separator i"). Caller persists left and parent.
func mergeInto(pgr *pager.Pager, parent *pager.Node, i int32, left, right *pager.Node) error {
	left.Keys[left.NumKeys] = parent.Keys[i]
	left.NumKeys++
	for j := int32(0); j < right.NumKeys; j++ {
		left.Keys[left.NumKeys+j] = right.Keys[j]
	}
	if !left.Leaf {
		for j := int32(0); j <= right.NumKeys; j++ {
			left.Kids[left.NumKeys+j] = right.Kids[j]
		}
	}
	left.NumKeys += right.NumKeys

	for j := i; j < parent.NumKeys-1; j++ {
		parent.Keys[j] = parent.Keys[j+1]
	}
	parent.Keys[parent.NumKeys-1] = element.Sentinel
	for j := i + 1; j < parent.NumKeys; j++ {
		parent.Kids[j] = parent.Kids[j+1]
	}
	parent.Kids[parent.NumKeys] = pager.NoNode
	parent.NumKeys--

	if err := pgr.Zero(right.ID); err != nil {
		return err
	}
	pgr.Free(right.ID)
	return nil
}
