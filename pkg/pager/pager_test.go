package pager_test

import (
	"path/filepath"
	"testing"

	"github.com/LandSharkFive/DiskTwo/pkg/config"
	"github.com/LandSharkFive/DiskTwo/pkg/element"
	"github.com/LandSharkFive/DiskTwo/pkg/pager"
)

func tempPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "index.btr")
}

func TestOpenFreshFileInitializesHeader(t *testing.T) {
	p, err := pager.Open(tempPath(t), 8)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()
	if p.Order() != 8 {
		t.Fatalf("Order() = %d, want 8", p.Order())
	}
	if p.RootID() != pager.NoNode {
		t.Fatalf("RootID() = %d, want NoNode", p.RootID())
	}
	if p.NodeCount() != 0 {
		t.Fatalf("NodeCount() = %d, want 0", p.NodeCount())
	}
}

func TestOpenRejectsBadOrder(t *testing.T) {
	if _, err := pager.Open(tempPath(t), 2); err == nil {
		t.Fatal("expected error for order below minimum")
	}
}

func TestAllocateWriteReadRoundTrip(t *testing.T) {
	path := tempPath(t)
	p, err := pager.Open(path, 8)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	id, err := p.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	node := pager.NewNode(id, p.Order(), true)
	node.NumKeys = 1
	node.Keys[0] = element.New(42, 420)
	if err := p.Write(node); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := p.Read(id)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !got.Leaf || got.NumKeys != 1 || got.Keys[0] != element.New(42, 420) {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestFreeListPersistsAcrossReopen(t *testing.T) {
	path := tempPath(t)
	p, err := pager.Open(path, 8)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	a, _ := p.Allocate()
	b, _ := p.Allocate()
	p.Free(a)
	nodeCountBefore := p.NodeCount()
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	p2, err := pager.Open(path, 8)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer p2.Close()
	if p2.NodeCount() != nodeCountBefore {
		t.Fatalf("NodeCount changed across reopen: got %d want %d", p2.NodeCount(), nodeCountBefore)
	}
	if !p2.IsFree(a) {
		t.Fatalf("expected id %d to still be free after reopen", a)
	}
	reused, err := p2.Allocate()
	if err != nil {
		t.Fatalf("Allocate after reopen: %v", err)
	}
	if reused != a {
		t.Fatalf("expected reopen to reuse freed id %d, got %d", a, reused)
	}
	if p2.NodeCount() != nodeCountBefore {
		t.Fatalf("reusing a freed id should not grow NodeCount: got %d want %d", p2.NodeCount(), nodeCountBefore)
	}
	_ = b
}

func TestDoubleCloseIsNoOp(t *testing.T) {
	p, err := pager.Open(tempPath(t), 8)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got: %v", err)
	}
}

func TestPageSizeMatchesOrder(t *testing.T) {
	if got, want := config.PageSize(8), int64(12*8+16); got != want {
		t.Fatalf("PageSize(8) = %d, want %d", got, want)
	}
}
