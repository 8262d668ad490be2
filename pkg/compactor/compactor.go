// Package compactor rewrites an index file so that only live nodes
// remain, contiguously renumbered from zero, with no free list
// (spec.md §4.6).
package compactor

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/bits-and-blooms/bitset"
	"github.com/google/uuid"
	cp "github.com/otiai10/copy"

	"github.com/LandSharkFive/DiskTwo/pkg/bterrors"
	"github.com/LandSharkFive/DiskTwo/pkg/btree"
	"github.com/LandSharkFive/DiskTwo/pkg/pager"
)

// Options controls a compaction run. Logger defaults to log.Default() if
// nil, matching the builder's injectable-logger convention.
type Options struct {
	Logger *log.Logger
}

func (o Options) logger() *log.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return log.Default()
}

// Compact produces a file with no zombies, no free list, and contiguous
// ids [0, reachable_count), then reopens it in place of tr. tr is closed
// as part of the swap; callers must use the returned Tree afterward, not
// the one passed in.
func Compact(tr *btree.Tree, opts Options) (*btree.Tree, error) {
	pgr := tr.Pager()
	path := pgr.Path()
	order := pgr.Order()
	logger := opts.logger()

	live, err := scanLiveSet(pgr)
	if err != nil {
		return nil, err
	}
	remap := buildRemap(live, pgr.NodeCount())
	logger.Printf("compactor: scan complete, reachable=%d of node_count=%d", len(remap), pgr.NodeCount())

	tempPath, backupPath := sidecarPaths(path)

	dst, err := pager.Open(tempPath, order)
	if err != nil {
		return nil, err
	}
	if err := rewriteLiveNodes(pgr, dst, live, remap); err != nil {
		dst.Close()
		os.Remove(tempPath)
		return nil, err
	}
	logger.Printf("compactor: rewrite complete, wrote %d nodes to %s", len(remap), tempPath)

	newRoot := pager.NoNode
	if pgr.RootID() != pager.NoNode {
		newRoot = remap[pgr.RootID()]
	}
	dst.SetRootID(newRoot)
	if err := dst.Commit(); err != nil {
		dst.Close()
		os.Remove(tempPath)
		return nil, err
	}
	if err := dst.Close(); err != nil {
		os.Remove(tempPath)
		return nil, err
	}

	if err := tr.Close(); err != nil {
		os.Remove(tempPath)
		return nil, err
	}

	if err := cp.Copy(path, backupPath); err != nil {
		return nil, bterrors.New(bterrors.IOError, "compactor.Compact", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return nil, bterrors.New(bterrors.IOError, "compactor.Compact", err)
	}
	if err := os.Remove(backupPath); err != nil {
		return nil, bterrors.New(bterrors.IOError, "compactor.Compact", err)
	}
	logger.Printf("compactor: swap complete, %s now has %d nodes", path, len(remap))

	return btree.Open(path, order)
}

// sidecarPaths derives a temp file and a backup file path alongside path,
// distinguished by a random suffix so concurrent compaction attempts (or
// a crash leaving a stale sidecar behind) never collide.
func sidecarPaths(path string) (temp, backup string) {
	dir, base := filepath.Dir(path), filepath.Base(path)
	tag := uuid.NewString()
	temp = filepath.Join(dir, fmt.Sprintf(".%s.compact.%s.tmp", base, tag))
	backup = filepath.Join(dir, fmt.Sprintf(".%s.compact.%s.bak", base, tag))
	return temp, backup
}

// scanLiveSet walks the tree from its root, marking every reachable node
// id in a node_count-sized bitmap. A revisited id is a cycle; a child id
// outside [0, node_count) is a ghost. Either aborts the compaction: there
// is no safe renumbering of a tree that fails its own reachability scan.
func scanLiveSet(pgr *pager.Pager) (*bitset.BitSet, error) {
	nodeCount := pgr.NodeCount()
	size := uint(nodeCount)
	if size == 0 {
		size = 1
	}
	live := bitset.New(size)

	root := pgr.RootID()
	if root == pager.NoNode {
		return live, nil
	}

	var walk func(id int32) error
	walk = func(id int32) error {
		if id < 0 || id >= nodeCount {
			return bterrors.New(bterrors.StructuralCorruption, "compactor.scanLiveSet", fmt.Errorf("ghost child id %d", id))
		}
		if live.Test(uint(id)) {
			return bterrors.New(bterrors.StructuralCorruption, "compactor.scanLiveSet", fmt.Errorf("cycle: node %d revisited", id))
		}
		live.Set(uint(id))
		node, err := pgr.Read(id)
		if err != nil {
			return err
		}
		if node.Leaf {
			return nil
		}
		for i := int32(0); i <= node.NumKeys; i++ {
			if err := walk(node.Kids[i]); err != nil {
				return err
			}
		}
		return nil
	}
	return live, walk(root)
}

// buildRemap numbers live nodes 0, 1, 2, ... in ascending original-id
// order (spec.md §4.6 step 2). This must complete before any node is
// rewritten, since a node's children may carry either a lower or a
// higher original id than their parent (free-list reuse scrambles
// allocation order over the tree's lifetime).
func buildRemap(live *bitset.BitSet, nodeCount int32) map[int32]int32 {
	remap := make(map[int32]int32, int(live.Count()))
	var next int32
	for id := int32(0); id < nodeCount; id++ {
		if live.Test(uint(id)) {
			remap[id] = next
			next++
		}
	}
	return remap
}

// rewriteLiveNodes reads every live node from src in ascending original
// id, remaps its own id and its child ids, and writes it to dst. Because
// dst starts empty, dst.Allocate() hands out 0, 1, 2, ... in call order,
// which matches remap's assignment order exactly as long as this loop
// visits ids in the same ascending order buildRemap did.
func rewriteLiveNodes(src, dst *pager.Pager, live *bitset.BitSet, remap map[int32]int32) error {
	nodeCount := src.NodeCount()
	for id := int32(0); id < nodeCount; id++ {
		if !live.Test(uint(id)) {
			continue
		}
		node, err := src.Read(id)
		if err != nil {
			return err
		}
		node.ID = remap[id]
		if !node.Leaf {
			for i := int32(0); i <= node.NumKeys; i++ {
				if node.Kids[i] == pager.NoNode {
					continue
				}
				node.Kids[i] = remap[node.Kids[i]]
			}
		}
		newID, err := dst.Allocate()
		if err != nil {
			return err
		}
		if newID != node.ID {
			return bterrors.New(bterrors.InvalidState, "compactor.rewriteLiveNodes", fmt.Errorf("allocator drift: got id %d, want %d", newID, node.ID))
		}
		if err := dst.Write(node); err != nil {
			return err
		}
	}
	return nil
}
