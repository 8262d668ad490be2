// Package btree implements the balanced tree operations of the engine:
// search, top-down preemptive-split insertion, top-down
// preemptive-rebalance deletion, and ordered iteration (spec.md §4.2–4.4).
package btree

import (
	"errors"
	"iter"

	"github.com/LandSharkFive/DiskTwo/pkg/bterrors"
	"github.com/LandSharkFive/DiskTwo/pkg/element"
	"github.com/LandSharkFive/DiskTwo/pkg/pager"
)

// Tree is a disk-resident classic B-Tree index over a single file.
type Tree struct {
	pager *pager.Pager
}

// Open opens (or creates) a Tree backed by the index file at path, with
// branching factor order.
func Open(path string, order int32) (*Tree, error) {
	p, err := pager.Open(path, order)
	if err != nil {
		return nil, err
	}
	return &Tree{pager: p}, nil
}

// FromPager wraps an already-open Pager as a Tree. Used by the builder,
// which populates a Pager directly (bypassing Insert) and then hands the
// result back as an ordinary Tree.
func FromPager(p *pager.Pager) *Tree {
	return &Tree{pager: p}
}

// Pager returns the tree's underlying page manager, for use by the builder,
// compactor and auditor, which all operate through the same byte layout.
func (t *Tree) Pager() *pager.Pager { return t.pager }

// Order returns the tree's fixed branching factor.
func (t *Tree) Order() int32 { return t.pager.Order() }

// RootID returns the id of the root node, or pager.NoNode if the tree is
// empty.
func (t *Tree) RootID() int32 { return t.pager.RootID() }

// Commit persists the header and flushes OS buffers.
func (t *Tree) Commit() error { return t.pager.Commit() }

// Close persists the free list and header, then releases the file handle.
// Idempotent.
func (t *Tree) Close() error { return t.pager.Close() }

// Insert adds e to the tree, splitting any full node it descends through
// on the way down (spec.md §4.3). Behavior on inserting a duplicate key is
// unspecified, matching the classic Bayer & McCreight insertion routine
// this is grounded on.
func (t *Tree) Insert(e element.Element) error {
	order := t.pager.Order()
	if t.pager.RootID() == pager.NoNode {
		id, err := t.pager.Allocate()
		if err != nil {
			return err
		}
		leaf := pager.NewNode(id, order, true)
		leaf.NumKeys = 1
		leaf.Keys[0] = e
		if err := t.pager.Write(leaf); err != nil {
			return err
		}
		t.pager.SetRootID(id)
		return t.pager.Commit()
	}

	rootID := t.pager.RootID()
	root, err := t.pager.Read(rootID)
	if err != nil {
		return err
	}
	if root.NumKeys == maxKeys(order) {
		xID, err := t.pager.Allocate()
		if err != nil {
			return err
		}
		x := pager.NewNode(xID, order, false)
		x.Kids[0] = rootID
		t.pager.SetRootID(xID)
		if err := splitChild(t.pager, x, 0); err != nil {
			return err
		}
		if err := insertNonfull(t.pager, x, e); err != nil {
			return err
		}
	} else if err := insertNonfull(t.pager, root, e); err != nil {
		return err
	}
	return t.pager.Commit()
}

// InsertKV is a convenience wrapper over Insert for (key, data) pairs.
func (t *Tree) InsertKV(key, data int32) error {
	return t.Insert(element.New(key, data))
}

// Delete removes the entry with the given key, if any (spec.md §4.4).
// data is accepted but not used for matching: navigation and the match
// test are both by key alone (spec.md §9 open question 1).
func (t *Tree) Delete(key int32, data int32) error {
	if t.pager.RootID() == pager.NoNode {
		return nil
	}
	root, err := t.pager.Read(t.pager.RootID())
	if err != nil {
		return err
	}
	if err := deleteFrom(t.pager, root, key); err != nil {
		return err
	}
	if !root.Leaf && root.NumKeys == 0 {
		newRootID := root.Kids[0]
		oldRootID := root.ID
		if err := t.pager.Zero(oldRootID); err != nil {
			return err
		}
		t.pager.Free(oldRootID)
		t.pager.SetRootID(newRootID)
	}
	return t.pager.Commit()
}

// TrySearch returns the element with the given key, if present
// (spec.md §4.2).
func (t *Tree) TrySearch(key int32) (element.Element, bool, error) {
	id := t.pager.RootID()
	for id != pager.NoNode {
		node, err := t.pager.Read(id)
		if err != nil {
			return element.Element{}, false, err
		}
		i := searchIndex(node, key)
		if i < node.NumKeys && node.Keys[i].Key == key {
			return node.Keys[i], true, nil
		}
		if node.Leaf {
			return element.Element{}, false, nil
		}
		id = node.Kids[i]
	}
	return element.Element{}, false, nil
}

// FindMin returns the element with the smallest key in the tree.
func (t *Tree) FindMin() (element.Element, bool, error) {
	id := t.pager.RootID()
	if id == pager.NoNode {
		return element.Element{}, false, nil
	}
	for {
		node, err := t.pager.Read(id)
		if err != nil {
			return element.Element{}, false, err
		}
		if node.Leaf {
			if node.NumKeys == 0 {
				return element.Element{}, false, nil
			}
			return node.Keys[0], true, nil
		}
		id = node.Kids[0]
	}
}

// FindMax returns the element with the largest key in the tree.
func (t *Tree) FindMax() (element.Element, bool, error) {
	id := t.pager.RootID()
	if id == pager.NoNode {
		return element.Element{}, false, nil
	}
	for {
		node, err := t.pager.Read(id)
		if err != nil {
			return element.Element{}, false, err
		}
		if node.Leaf {
			if node.NumKeys == 0 {
				return element.Element{}, false, nil
			}
			return node.Keys[node.NumKeys-1], true, nil
		}
		id = node.Kids[node.NumKeys]
	}
}

// CountKeys recursively counts the keys in the subtree rooted at subroot.
func (t *Tree) CountKeys(subroot int32) (int32, error) {
	if subroot == pager.NoNode {
		return 0, nil
	}
	node, err := t.pager.Read(subroot)
	if err != nil {
		return 0, err
	}
	count := node.NumKeys
	if !node.Leaf {
		for i := int32(0); i <= node.NumKeys; i++ {
			c, err := t.CountKeys(node.Kids[i])
			if err != nil {
				return 0, err
			}
			count += c
		}
	}
	return count, nil
}

// GetElements returns a lazy, non-restartable, in-order sequence of every
// element in the tree. Per spec.md §9's design notes, this is a true
// iterator rather than a materialized list: peak memory is proportional to
// tree depth, not tree size.
func (t *Tree) GetElements() iter.Seq[element.Element] {
	return func(yield func(element.Element) bool) {
		rootID := t.pager.RootID()
		if rootID == pager.NoNode {
			return
		}
		var walk func(id int32) bool
		walk = func(id int32) bool {
			node, err := t.pager.Read(id)
			if err != nil {
				return false
			}
			for i := int32(0); i < node.NumKeys; i++ {
				if !node.Leaf {
					if !walk(node.Kids[i]) {
						return false
					}
				}
				if !yield(node.Keys[i]) {
					return false
				}
			}
			if !node.Leaf {
				return walk(node.Kids[node.NumKeys])
			}
			return true
		}
		walk(rootID)
	}
}

// GetKeys returns a lazy, strictly increasing, duplicate-free sequence of
// every key in the tree.
func (t *Tree) GetKeys() iter.Seq[int32] {
	return func(yield func(int32) bool) {
		for e := range t.GetElements() {
			if !yield(e.Key) {
				return
			}
		}
	}
}

// errNotFound is returned by helpers that expect a key to be present.
var errNotFound = errors.New("key not found")

// Update replaces the data associated with an existing key, returning
// InvalidState if the key is absent. Included for parity with the
// teacher's Update entry point; spec.md's own Insert/Delete pair never
// requires it, but it is a one-line descent reuse once TrySearch exists.
func (t *Tree) Update(key, data int32) error {
	e, found, err := t.TrySearch(key)
	if err != nil {
		return err
	}
	if !found {
		return bterrors.New(bterrors.InvalidState, "btree.Update", errNotFound)
	}
	if err := t.Delete(e.Key, e.Data); err != nil {
		return err
	}
	return t.Insert(element.New(key, data))
}
