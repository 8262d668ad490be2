// Package builder constructs an index file directly from a sorted,
// duplicate-free stream of elements, without the per-key overhead of
// repeated top-down insertion (spec.md §4.5).
package builder

import (
	"errors"
	"log"

	"github.com/LandSharkFive/DiskTwo/pkg/bterrors"
	"github.com/LandSharkFive/DiskTwo/pkg/btree"
	"github.com/LandSharkFive/DiskTwo/pkg/config"
	"github.com/LandSharkFive/DiskTwo/pkg/element"
	"github.com/LandSharkFive/DiskTwo/pkg/pager"
)

// Options controls a bulk build. Fill defaults to config.DefaultFill if
// zero. Logger defaults to log.Default() if nil,
// following the same injectable-logger convention the teacher uses for its
// own long-running batch jobs.
type Options struct {
	Order  int32
	Fill   float64
	Logger *log.Logger
}

func (o Options) logger() *log.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return log.Default()
}

// BuildFromSorted writes a new index file at path containing exactly the
// given elements, and returns it opened as a Tree. elements must already be
// sorted by key with no duplicates: BuildFromSorted does not sort them, and
// returns an InvalidArgument error for input that is not strictly
// increasing by key.
func BuildFromSorted(elements []element.Element, path string, opts Options) (*btree.Tree, error) {
	if opts.Fill == 0 {
		opts.Fill = config.DefaultFill
	}
	if opts.Order < config.MinOrder {
		return nil, bterrors.New(bterrors.InvalidArgument, "builder.BuildFromSorted", errors.New("order below minimum"))
	}
	if opts.Fill < config.MinFill || opts.Fill > config.MaxFill {
		return nil, bterrors.New(bterrors.InvalidArgument, "builder.BuildFromSorted", errors.New("fill factor out of range"))
	}
	if err := checkSortedUnique(elements); err != nil {
		return nil, err
	}

	log := opts.logger()
	leafTarget := clamp(int32(float64(opts.Order-1)*opts.Fill), 1, opts.Order-1)
	log.Printf("builder: order=%d fill=%.2f leaf_target=%d elements=%d", opts.Order, opts.Fill, leafTarget, len(elements))

	pgr, err := pager.Open(path, opts.Order)
	if err != nil {
		return nil, err
	}
	if len(elements) > 0 {
		rootID, err := build(pgr, elements, leafTarget, opts.Order)
		if err != nil {
			pgr.Close()
			return nil, err
		}
		pgr.SetRootID(rootID)
	}
	if err := pgr.Commit(); err != nil {
		pgr.Close()
		return nil, err
	}
	log.Printf("builder: done, node_count=%d root=%d", pgr.NodeCount(), pgr.RootID())
	return btree.FromPager(pgr), nil
}

func checkSortedUnique(elements []element.Element) error {
	for i := 1; i < len(elements); i++ {
		if elements[i].Key <= elements[i-1].Key {
			return bterrors.New(bterrors.InvalidArgument, "builder.checkSortedUnique", errors.New("input is not strictly increasing by key"))
		}
	}
	return nil
}

func clamp(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// height returns the least h >= 1 such that a tree of this leaf_target and
// order can hold n elements at depth h (spec.md §4.5).
func height(n, leafTarget, order int32) int32 {
	h := int32(1)
	capacity := int64(leafTarget)
	for capacity < int64(n) {
		capacity *= int64(order)
		h++
	}
	return h
}

// build recursively carves elems into a post-order sequence of node writes,
// returning the id of the node holding the whole range. Because Allocate
// hands out ids in increasing order and every child is built (and thus
// allocated) before its parent, ids come out monotonically increasing in
// write order, matching spec.md §4.5's "disk writes are in post-order".
func build(pgr *pager.Pager, elems []element.Element, leafTarget, order int32) (int32, error) {
	n := int32(len(elems))
	h := height(n, leafTarget, order)

	// A valid internal split needs at least two non-empty children and one
	// separator, i.e. at least 3 elements; below that there is no split to
	// make regardless of what leaf_target or height say, so fall back to a
	// leaf. Without this, leaf_target values below the order's natural
	// floor can otherwise demand an internal node for a 2-element range.
	if n <= leafTarget || h <= 1 || n < 3 {
		return writeLeaf(pgr, elems, order)
	}
	return writeInternal(pgr, elems, leafTarget, order, h)
}

func writeLeaf(pgr *pager.Pager, elems []element.Element, order int32) (int32, error) {
	id, err := pgr.Allocate()
	if err != nil {
		return pager.NoNode, err
	}
	leaf := pager.NewNode(id, order, true)
	leaf.NumKeys = int32(len(elems))
	copy(leaf.Keys[:len(elems)], elems)
	if err := pgr.Write(leaf); err != nil {
		return pager.NoNode, err
	}
	return id, nil
}

// writeInternal splits elems into up to order children separated by up to
// order-1 keys and recurses on each child before allocating this node,
// preserving the post-order write sequence.
//
// childCapacity is leaf_target * order^(h-2): the maximum element count a
// subtree of height h-1 can absorb. Because h is the *minimal* height
// satisfying leaf_target * order^(h-1) >= n, childCapacity is always
// strictly less than n here, so the loop below is guaranteed at least two
// children (one separator) — the first of spec.md §4.5's two guards falls
// out of the minimality of h rather than needing a special case.
func writeInternal(pgr *pager.Pager, elems []element.Element, leafTarget, order, h int32) (int32, error) {
	childCapacity := int64(leafTarget)
	for i := int32(0); i < h-2; i++ {
		childCapacity *= int64(order)
	}
	maxSeparators := order - 1
	n := int32(len(elems))

	var childIDs []int32
	var seps []element.Element

	idx := int32(0)
	for idx < n {
		end := idx + int32(childCapacity)
		if end > n {
			end = n
		}
		switch {
		case int32(len(seps)) >= maxSeparators:
			// Second guard: once the separator budget is spent, the
			// final chunk must absorb everything remaining rather than
			// being clipped to childCapacity, or there would be nowhere
			// left to put a trailing child.
			end = n
		case n-end == 1:
			// A single element would be left over after this child —
			// just enough to promote as a separator, but with nothing
			// left for the child that must follow it. Reserve room for
			// that trailing child: shrink this one to free up a second
			// leftover element, or, if it is already down to one
			// element itself, absorb the leftover into it instead.
			if end-idx >= 2 {
				end--
			} else {
				end++
			}
		}
		childID, err := build(pgr, elems[idx:end], leafTarget, order)
		if err != nil {
			return pager.NoNode, err
		}
		childIDs = append(childIDs, childID)
		idx = end
		if idx >= n {
			break // last iteration is child-only, no trailing separator
		}
		seps = append(seps, elems[idx])
		idx++
	}

	id, err := pgr.Allocate()
	if err != nil {
		return pager.NoNode, err
	}
	node := pager.NewNode(id, order, false)
	node.NumKeys = int32(len(seps))
	copy(node.Keys[:len(seps)], seps)
	for i, cid := range childIDs {
		node.Kids[i] = cid
	}
	if err := pgr.Write(node); err != nil {
		return pager.NoNode, err
	}
	return id, nil
}
