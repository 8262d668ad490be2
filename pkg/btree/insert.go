package btree

import (
	"github.com/LandSharkFive/DiskTwo/pkg/element"
	"github.com/LandSharkFive/DiskTwo/pkg/pager"
)

// splitChild splits x's i-th child y, which must hold exactly m-1 keys
// (full), promoting its median key into x at position i (spec.md §4.3).
//
// The median-split sizing here follows the standard Bayer & McCreight
// split rather than spec.md's literal "z.num_keys = m - t" line: that line
// double-counts the promoted median (z.num_keys = m-t, y.num_keys = t-1
// sums to m-1 surviving keys out of a starting m-1, i.e. it loses none to
// the parent). The node-conservation invariant (every key removed from the
// full child is accounted for as either staying, moving, or being
// promoted) forces z.num_keys = m-1-t, matching spec.md §9's own guidance
// not to replicate an arithmetic bug from the distilled description.
func splitChild(pgr *pager.Pager, x *pager.Node, i int32) error {
	order := pgr.Order()
	t := minDegree(order)

	y, err := pgr.Read(x.Kids[i])
	if err != nil {
		return err
	}
	zID, err := pgr.Allocate()
	if err != nil {
		return err
	}
	z := pager.NewNode(zID, order, y.Leaf)

	zCount := order - 1 - t
	for j := int32(0); j < zCount; j++ {
		z.Keys[j] = y.Keys[t+j]
		y.Keys[t+j] = element.Sentinel
	}
	z.NumKeys = zCount
	if !y.Leaf {
		childCount := order - t
		for j := int32(0); j < childCount; j++ {
			z.Kids[j] = y.Kids[t+j]
			y.Kids[t+j] = pager.NoNode
		}
	}

	median := y.Keys[t-1]
	y.Keys[t-1] = element.Sentinel
	y.NumKeys = t - 1

	shiftKeysRightFrom(x, i)
	shiftKidsRightFrom(x, i+1)
	x.Keys[i] = median
	x.Kids[i+1] = z.ID
	x.NumKeys++

	if err := pgr.Write(y); err != nil {
		return err
	}
	if err := pgr.Write(z); err != nil {
		return err
	}
	return pgr.Write(x)
}

// insertNonfull descends from x, which is guaranteed not full, splitting
// any full child it must pass through before recursing into it, and
// finally placing e into a leaf (spec.md §4.3).
func insertNonfull(pgr *pager.Pager, x *pager.Node, e element.Element) error {
	if x.Leaf {
		pos := searchIndex(x, e.Key)
		shiftKeysRightFrom(x, pos)
		x.Keys[pos] = e
		x.NumKeys++
		return pgr.Write(x)
	}

	i := searchIndex(x, e.Key)
	child, err := pgr.Read(x.Kids[i])
	if err != nil {
		return err
	}
	if child.NumKeys == maxKeys(pgr.Order()) {
		if err := splitChild(pgr, x, i); err != nil {
			return err
		}
		if e.Key > x.Keys[i].Key {
			i++
		}
		child, err = pgr.Read(x.Kids[i])
		if err != nil {
			return err
		}
	}
	return insertNonfull(pgr, child, e)
}
