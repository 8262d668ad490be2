// Package audit performs single-pass structural checks over an index file:
// a full report, and the narrower pass/fail checks the report is built
// from, exposed individually so a caller can run just the one it needs
// (spec.md §4.7).
package audit

import (
	"errors"
	"fmt"
	"math"

	"github.com/bits-and-blooms/bitset"

	"github.com/LandSharkFive/DiskTwo/pkg/bterrors"
	"github.com/LandSharkFive/DiskTwo/pkg/pager"
)

// Report summarizes one full audit pass.
type Report struct {
	Height         int32
	ReachableNodes int32
	TotalKeys      int32
	AverageDensity float64
	GhostCount     int32
	ZombieCount    int32
}

// visitFunc is called once per live node in DFS preorder, with the key
// range [lo, hi] the node must respect given its position under its
// ancestors.
type visitFunc func(id int32, node *pager.Node, isRoot bool, depth int32, lo, hi int32) error

// dfs walks the live set from the root, using a bits-and-blooms/bitset
// bitmap to track which ids have been visited (the "live set" of
// spec.md §4.7). Revisiting an id is a cycle and aborts the walk.
// Child ids outside [0, node_count) are counted as ghosts and not
// recursed into.
func dfs(pgr *pager.Pager, visit visitFunc) (*bitset.BitSet, int32, error) {
	nodeCount := pgr.NodeCount()
	size := uint(nodeCount)
	if size == 0 {
		size = 1
	}
	live := bitset.New(size)

	root := pgr.RootID()
	if root == pager.NoNode {
		return live, 0, nil
	}
	if root < 0 || root >= nodeCount {
		return live, 1, bterrors.New(bterrors.StructuralCorruption, "audit.dfs", errors.New("root id out of range"))
	}

	var ghostCount int32
	var walk func(id int32, isRoot bool, depth, lo, hi int32) error
	walk = func(id int32, isRoot bool, depth, lo, hi int32) error {
		if live.Test(uint(id)) {
			return bterrors.New(bterrors.StructuralCorruption, "audit.dfs", fmt.Errorf("cycle: node %d revisited", id))
		}
		live.Set(uint(id))
		node, err := pgr.Read(id)
		if err != nil {
			return err
		}
		if visit != nil {
			if err := visit(id, node, isRoot, depth, lo, hi); err != nil {
				return err
			}
		}
		if node.Leaf {
			return nil
		}
		for i := int32(0); i <= node.NumKeys; i++ {
			kid := node.Kids[i]
			if kid < 0 || kid >= nodeCount {
				ghostCount++
				continue
			}
			childLo, childHi := lo, hi
			if i > 0 {
				childLo = node.Keys[i-1].Key
			}
			if i < node.NumKeys {
				childHi = node.Keys[i].Key
			}
			if err := walk(kid, false, depth+1, childLo, childHi); err != nil {
				return err
			}
		}
		return nil
	}
	err := walk(root, true, 1, math.MinInt32, math.MaxInt32)
	return live, ghostCount, err
}

// PerformFullAudit runs a single DFS pass and reports on the whole tree.
func PerformFullAudit(pgr *pager.Pager) (Report, error) {
	var totalKeys, maxDepth int32
	visit := func(id int32, node *pager.Node, isRoot bool, depth, lo, hi int32) error {
		totalKeys += node.NumKeys
		if node.Leaf && depth > maxDepth {
			maxDepth = depth
		}
		return nil
	}
	live, ghostCount, err := dfs(pgr, visit)
	if err != nil {
		return Report{}, err
	}
	reachable := int32(live.Count())
	zombieCount := countZombiesGivenLiveSet(pgr, live)

	var density float64
	if reachable > 0 && pgr.Order() > 1 {
		density = float64(totalKeys) / float64(reachable*(pgr.Order()-1))
	}
	return Report{
		Height:         maxDepth,
		ReachableNodes: reachable,
		TotalKeys:      totalKeys,
		AverageDensity: density,
		GhostCount:     ghostCount,
		ZombieCount:    zombieCount,
	}, nil
}

func countZombiesGivenLiveSet(pgr *pager.Pager, live *bitset.BitSet) int32 {
	var count int32
	for id := int32(0); id < pgr.NodeCount(); id++ {
		if !live.Test(uint(id)) && !pgr.IsFree(id) {
			count++
		}
	}
	return count
}

// CheckGhost fails if any non-root node has zero keys.
func CheckGhost(pgr *pager.Pager) error {
	visit := func(id int32, node *pager.Node, isRoot bool, depth, lo, hi int32) error {
		if !isRoot && node.NumKeys == 0 {
			return bterrors.New(bterrors.StructuralCorruption, "audit.CheckGhost", fmt.Errorf("node %d has zero keys", id))
		}
		return nil
	}
	_, _, err := dfs(pgr, visit)
	return err
}

// CountZombies counts node ids that are neither reachable from the root
// nor on the free list.
func CountZombies(pgr *pager.Pager) (int32, error) {
	live, _, err := dfs(pgr, nil)
	if err != nil {
		return 0, err
	}
	return countZombiesGivenLiveSet(pgr, live), nil
}

// CountGhost counts child ids encountered during the walk that fall
// outside [0, node_count).
func CountGhost(pgr *pager.Pager) (int32, error) {
	_, ghostCount, err := dfs(pgr, nil)
	return ghostCount, err
}

// ValidateIntegrity runs the full set of auxiliary checks in one pass:
// cycles, ghost nodes, key ordering within and across nodes, and
// non-root underflow.
func ValidateIntegrity(pgr *pager.Pager) error {
	t := minDegree(pgr.Order())
	visit := func(id int32, node *pager.Node, isRoot bool, depth, lo, hi int32) error {
		if !isRoot && node.NumKeys == 0 {
			return bterrors.New(bterrors.StructuralCorruption, "audit.ValidateIntegrity", fmt.Errorf("node %d is a ghost", id))
		}
		if !isRoot && node.NumKeys < t-1 {
			return bterrors.New(bterrors.StructuralCorruption, "audit.ValidateIntegrity", fmt.Errorf("node %d underflowed: %d keys, want >= %d", id, node.NumKeys, t-1))
		}
		for i := int32(1); i < node.NumKeys; i++ {
			if node.Keys[i-1].Key >= node.Keys[i].Key {
				return bterrors.New(bterrors.StructuralCorruption, "audit.ValidateIntegrity", fmt.Errorf("node %d keys not strictly increasing at %d", id, i))
			}
		}
		for i := int32(0); i < node.NumKeys; i++ {
			if node.Keys[i].Key < lo || node.Keys[i].Key > hi {
				return bterrors.New(bterrors.StructuralCorruption, "audit.ValidateIntegrity", fmt.Errorf("node %d key %d outside parent range [%d,%d]", id, node.Keys[i].Key, lo, hi))
			}
		}
		return nil
	}
	_, _, err := dfs(pgr, visit)
	return err
}

// minDegree mirrors the btree package's own formula; duplicated here
// because btree's minDegree is unexported, and so that audit depends only
// on pager, not on btree.
func minDegree(order int32) int32 {
	return (order + 1) / 2
}

// ReclaimOrphans sweeps every zombie node (reachable from nowhere and not
// already on the free list) onto the free list, zeroing its page first.
// This is not part of the classic audit report; it turns an audit finding
// into a repair action, the way a caller would otherwise have to do by
// hand after reading ZombieCount.
func ReclaimOrphans(pgr *pager.Pager) (int32, error) {
	live, _, err := dfs(pgr, nil)
	if err != nil {
		return 0, err
	}
	var reclaimed int32
	for id := int32(0); id < pgr.NodeCount(); id++ {
		if live.Test(uint(id)) || pgr.IsFree(id) {
			continue
		}
		if err := pgr.Zero(id); err != nil {
			return reclaimed, err
		}
		pgr.Free(id)
		reclaimed++
	}
	return reclaimed, nil
}
