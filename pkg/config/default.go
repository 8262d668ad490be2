// Package config holds the tunables and fixed layout constants shared by
// the pager, tree, builder, compactor and auditor.
package config

// MinOrder is the smallest legal branching factor (spec.md §4.1 FormatError
// on order < 4).
const MinOrder = 4

// DefaultOrder is used by callers that don't have a reason to pick one.
const DefaultOrder = 128

// DefaultFill is the target leaf density used by the bulk loader when the
// caller doesn't specify a fill factor.
const DefaultFill = 0.8

// MinFill and MaxFill bound the builder's fill factor.
const (
	MinFill = 0.5
	MaxFill = 1.0
)

// Magic identifies a valid index file in the header's first four bytes.
const Magic uint32 = 0x42542145

// HeaderSize is the fixed size, in bytes, of the header block at offset 0.
const HeaderSize int64 = 4096

// LogFileName is a file name for builder/compactor progress logs. Neither
// package opens it: both log to log.Default() unless Options.Logger is set.
const LogFileName = "btree.log"

// PageSize returns the on-disk size of a single node page for the given
// order, per spec.md §4.1: 12 + 8*m + 4*(m+1).
func PageSize(order int32) int64 {
	m := int64(order)
	return 12*m + 16
}
