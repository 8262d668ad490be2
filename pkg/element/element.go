// Package element defines the immutable key/value pair stored by the tree.
package element

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Size is the on-disk width of a marshaled Element: two little-endian int32s.
const Size = 8

// Sentinel marks a vacated slot in a node's physical key array. It is not a
// reserved key at the API level; callers may legally insert (-1, -1).
var Sentinel = Element{Key: -1, Data: -1}

// Element is an immutable key/value pair, ordered by Key alone. Data is
// opaque payload.
type Element struct {
	Key  int32
	Data int32
}

// New constructs an Element with the given key and data.
func New(key, data int32) Element {
	return Element{Key: key, Data: data}
}

// Less reports whether e orders strictly before other, by key.
func (e Element) Less(other Element) bool {
	return e.Key < other.Key
}

// Marshal serializes the element into an 8-byte little-endian buffer.
func (e Element) Marshal() []byte {
	buf := make([]byte, Size)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(e.Key))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(e.Data))
	return buf
}

// Unmarshal decodes an 8-byte little-endian buffer into an Element.
func Unmarshal(data []byte) Element {
	return Element{
		Key:  int32(binary.LittleEndian.Uint32(data[0:4])),
		Data: int32(binary.LittleEndian.Uint32(data[4:8])),
	}
}

// Print writes the element to w as "(key, data)".
func (e Element) Print(w io.Writer) {
	fmt.Fprintf(w, "(%d, %d)", e.Key, e.Data)
}
