package btree

import (
	"github.com/LandSharkFive/DiskTwo/pkg/element"
	"github.com/LandSharkFive/DiskTwo/pkg/pager"
)

// searchIndex returns the least index i in [0, node.NumKeys) with
// node.Keys[i].Key >= key, or node.NumKeys if no such index exists
// (spec.md §4.2).
func searchIndex(node *pager.Node, key int32) int32 {
	lo, hi := int32(0), node.NumKeys
	for lo < hi {
		mid := (lo + hi) / 2
		if node.Keys[mid].Key >= key {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}

// removeKeyAt deletes the key at index i from a leaf node, shifting
// subsequent keys left. Per spec.md §9 open question 2, the shift bound is
// the node's own key count, not a fixed m-2.
func removeKeyAt(x *pager.Node, i int32) {
	for j := i; j < x.NumKeys-1; j++ {
		x.Keys[j] = x.Keys[j+1]
	}
	x.Keys[x.NumKeys-1] = element.Sentinel
}

// shiftKeysRightFrom makes room at index i by moving keys[i..numKeys) one
// slot to the right.
func shiftKeysRightFrom(x *pager.Node, i int32) {
	for j := x.NumKeys; j > i; j-- {
		x.Keys[j] = x.Keys[j-1]
	}
}

// shiftKidsRightFrom makes room at index i by moving kids[i..numKeys+1) one
// slot to the right.
func shiftKidsRightFrom(x *pager.Node, i int32) {
	for j := x.NumKeys + 1; j > i; j-- {
		x.Kids[j] = x.Kids[j-1]
	}
}
