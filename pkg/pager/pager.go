// Package pager implements the deterministic mapping between logical node
// ids and byte offsets in a single index file, plus the free-list that
// lets retired ids be reclaimed.
package pager

import (
	"errors"
	"io"
	"os"

	"github.com/LandSharkFive/DiskTwo/pkg/bterrors"
	"github.com/LandSharkFive/DiskTwo/pkg/config"
)

// Pager manages node pages backed by a single on-disk file.
//
// Unlike the buffer-pooled pager this package is grounded on, Pager carries
// no pin counts, no eviction list and no per-page locks: concurrent
// multi-writer access is a Non-goal (spec.md §1/§5), so there is nothing
// to arbitrate between callers. Every Read/Write goes straight to the file.
type Pager struct {
	file     *os.File
	path     string
	header   Header
	freeList map[int32]struct{}
}

// Open (re-)initializes a Pager backed by the index file at path.
//
// If the file is empty, a fresh header is written (magic, order, page
// size, empty root, zero nodes). If it already holds data, the header is
// loaded and validated, the persisted free list is loaded into memory, and
// the file is truncated back to the pre-free-list length (spec.md §4.1).
func Open(path string, order int32) (*Pager, error) {
	if path == "" {
		return nil, bterrors.New(bterrors.InvalidArgument, "pager.Open", errors.New("empty path"))
	}
	if order < config.MinOrder {
		return nil, bterrors.New(bterrors.InvalidArgument, "pager.Open", errors.New("order below minimum"))
	}
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return nil, bterrors.New(bterrors.IOError, "pager.Open", err)
	}
	p := &Pager{file: file, path: path, freeList: make(map[int32]struct{})}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, bterrors.New(bterrors.IOError, "pager.Open", err)
	}
	if info.Size() == 0 {
		p.header = Header{
			Magic:    config.Magic,
			Order:    order,
			RootID:   NoNode,
			PageSize: int32(config.PageSize(order)),
		}
		if err := p.writeHeader(); err != nil {
			file.Close()
			return nil, err
		}
		return p, nil
	}

	buf := make([]byte, config.HeaderSize)
	if _, err := io.ReadFull(file, buf); err != nil {
		file.Close()
		return nil, bterrors.New(bterrors.FormatError, "pager.Open", err)
	}
	header, err := UnmarshalHeader(buf)
	if err != nil {
		file.Close()
		return nil, err
	}
	p.header = header

	if header.FreeListCount > 0 {
		ids := make([]byte, header.FreeListCount*4)
		if _, err := file.ReadAt(ids, header.FreeListOffset); err != nil {
			file.Close()
			return nil, bterrors.New(bterrors.FormatError, "pager.Open", err)
		}
		for i := int32(0); i < header.FreeListCount; i++ {
			id := int32(leUint32(ids[i*4:]))
			p.freeList[id] = struct{}{}
		}
	}
	// The free list tail is not live data; drop it now that it's in memory.
	// A header last written by Commit rather than Close has no tail
	// (FreeListOffset is 0), and the file is kept at its full length.
	if header.FreeListOffset >= config.HeaderSize {
		if err := file.Truncate(header.FreeListOffset); err != nil {
			file.Close()
			return nil, bterrors.New(bterrors.IOError, "pager.Open", err)
		}
	}
	p.header.FreeListCount = 0
	p.header.FreeListOffset = 0
	return p, nil
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// Order returns the tree's fixed branching factor.
func (p *Pager) Order() int32 { return p.header.Order }

// RootID returns the current root node id, or NoNode if the tree is empty.
func (p *Pager) RootID() int32 { return p.header.RootID }

// SetRootID updates the in-memory root id. Call Commit to persist it.
func (p *Pager) SetRootID(id int32) { p.header.RootID = id }

// NodeCount returns the number of logical slots allocated so far
// (the high-water mark, including freed ids).
func (p *Pager) NodeCount() int32 { return p.header.NodeCount }

// Path returns the backing file's path.
func (p *Pager) Path() string { return p.path }

// FreeListLen reports how many ids are currently reclaimable.
func (p *Pager) FreeListLen() int { return len(p.freeList) }

func (p *Pager) offset(id int32) int64 {
	return config.HeaderSize + int64(id)*int64(p.header.PageSize)
}

// Read decodes and returns the node stored at id.
func (p *Pager) Read(id int32) (*Node, error) {
	if id < 0 || id >= p.header.NodeCount {
		return nil, bterrors.New(bterrors.InvalidState, "pager.Read", errors.New("invalid id"))
	}
	buf := make([]byte, p.header.PageSize)
	if _, err := p.file.ReadAt(buf, p.offset(id)); err != nil {
		return nil, bterrors.New(bterrors.IOError, "pager.Read", err)
	}
	return UnmarshalNode(buf, p.header.Order), nil
}

// Write encodes and persists node at its own id.
func (p *Pager) Write(node *Node) error {
	if node.ID < 0 || node.ID >= p.header.NodeCount {
		return bterrors.New(bterrors.InvalidState, "pager.Write", errors.New("invalid id"))
	}
	buf := node.Marshal(p.header.Order)
	if _, err := p.file.WriteAt(buf, p.offset(node.ID)); err != nil {
		return bterrors.New(bterrors.IOError, "pager.Write", err)
	}
	return nil
}

// Zero overwrites the full page at id with zero bytes.
func (p *Pager) Zero(id int32) error {
	if id < 0 || id >= p.header.NodeCount {
		return bterrors.New(bterrors.InvalidState, "pager.Zero", errors.New("invalid id"))
	}
	buf := make([]byte, p.header.PageSize)
	if _, err := p.file.WriteAt(buf, p.offset(id)); err != nil {
		return bterrors.New(bterrors.IOError, "pager.Zero", err)
	}
	return nil
}

// Allocate returns a usable node id: a reclaimed id from the free list if
// one exists, else a fresh id at the end of the file.
func (p *Pager) Allocate() (int32, error) {
	for id := range p.freeList {
		delete(p.freeList, id)
		return id, nil
	}
	id := p.header.NodeCount
	p.header.NodeCount++
	buf := make([]byte, p.header.PageSize)
	if _, err := p.file.WriteAt(buf, p.offset(id)); err != nil {
		return NoNode, bterrors.New(bterrors.IOError, "pager.Allocate", err)
	}
	return id, nil
}

// Free marks id as reclaimable. Idempotent.
func (p *Pager) Free(id int32) {
	p.freeList[id] = struct{}{}
}

// IsFree reports whether id is currently on the free list.
func (p *Pager) IsFree(id int32) bool {
	_, ok := p.freeList[id]
	return ok
}

func (p *Pager) writeHeader() error {
	if _, err := p.file.WriteAt(p.header.Marshal(), 0); err != nil {
		return bterrors.New(bterrors.IOError, "pager.writeHeader", err)
	}
	return nil
}

// Commit persists the header and flushes OS buffers, without touching the
// free list. Safe to call repeatedly.
func (p *Pager) Commit() error {
	if err := p.writeHeader(); err != nil {
		return err
	}
	if err := p.file.Sync(); err != nil {
		return bterrors.New(bterrors.IOError, "pager.Commit", err)
	}
	return nil
}

// Close persists the free list at the current end of file, records its
// locator in the header, writes the header, and releases the file handle.
// Double-close is a no-op.
func (p *Pager) Close() error {
	if p.file == nil {
		return nil
	}
	info, err := p.file.Stat()
	if err != nil {
		return bterrors.New(bterrors.IOError, "pager.Close", err)
	}
	offset := info.Size()
	ids := make([]byte, 0, len(p.freeList)*4)
	for id := range p.freeList {
		b := make([]byte, 4)
		putUint32(b, uint32(id))
		ids = append(ids, b...)
	}
	if len(ids) > 0 {
		if _, err := p.file.WriteAt(ids, offset); err != nil {
			return bterrors.New(bterrors.IOError, "pager.Close", err)
		}
	}
	p.header.FreeListCount = int32(len(p.freeList))
	p.header.FreeListOffset = offset
	if err := p.writeHeader(); err != nil {
		return err
	}
	if err := p.file.Sync(); err != nil {
		return bterrors.New(bterrors.IOError, "pager.Close", err)
	}
	err = p.file.Close()
	p.file = nil
	if err != nil {
		return bterrors.New(bterrors.IOError, "pager.Close", err)
	}
	return nil
}
