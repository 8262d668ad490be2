package pager

import (
	"encoding/binary"

	"github.com/LandSharkFive/DiskTwo/pkg/bterrors"
	"github.com/LandSharkFive/DiskTwo/pkg/config"
)

// header field offsets, per spec.md §6.
const (
	magicOffset         = 0
	orderOffset         = 4
	rootIDOffset        = 8
	pageSizeOffset      = 12
	nodeCountOffset     = 16
	freeListCountOffset = 20
	freeListOffsetOffset = 24
)

// Header is the 4096-byte persistent metadata block at file offset 0.
type Header struct {
	Magic          uint32
	Order          int32
	RootID         int32 // -1 if the tree is empty
	PageSize       int32
	NodeCount      int32
	FreeListCount  int32
	FreeListOffset int64
}

// Marshal encodes the header into a config.HeaderSize-byte block.
func (h Header) Marshal() []byte {
	buf := make([]byte, config.HeaderSize)
	binary.LittleEndian.PutUint32(buf[magicOffset:], h.Magic)
	binary.LittleEndian.PutUint32(buf[orderOffset:], uint32(h.Order))
	binary.LittleEndian.PutUint32(buf[rootIDOffset:], uint32(h.RootID))
	binary.LittleEndian.PutUint32(buf[pageSizeOffset:], uint32(h.PageSize))
	binary.LittleEndian.PutUint32(buf[nodeCountOffset:], uint32(h.NodeCount))
	binary.LittleEndian.PutUint32(buf[freeListCountOffset:], uint32(h.FreeListCount))
	binary.LittleEndian.PutUint64(buf[freeListOffsetOffset:], uint64(h.FreeListOffset))
	return buf
}

// UnmarshalHeader decodes a header block, validating magic and page size.
func UnmarshalHeader(data []byte) (Header, error) {
	h := Header{
		Magic:          binary.LittleEndian.Uint32(data[magicOffset:]),
		Order:          int32(binary.LittleEndian.Uint32(data[orderOffset:])),
		RootID:         int32(binary.LittleEndian.Uint32(data[rootIDOffset:])),
		PageSize:       int32(binary.LittleEndian.Uint32(data[pageSizeOffset:])),
		NodeCount:      int32(binary.LittleEndian.Uint32(data[nodeCountOffset:])),
		FreeListCount:  int32(binary.LittleEndian.Uint32(data[freeListCountOffset:])),
		FreeListOffset: int64(binary.LittleEndian.Uint64(data[freeListOffsetOffset:])),
	}
	if h.Magic != config.Magic {
		return Header{}, bterrors.New(bterrors.FormatError, "pager.UnmarshalHeader", nil)
	}
	if h.Order < config.MinOrder {
		return Header{}, bterrors.New(bterrors.FormatError, "pager.UnmarshalHeader", nil)
	}
	if int64(h.PageSize) != config.PageSize(h.Order) {
		return Header{}, bterrors.New(bterrors.FormatError, "pager.UnmarshalHeader", nil)
	}
	return h, nil
}
