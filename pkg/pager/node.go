package pager

import (
	"encoding/binary"

	"github.com/LandSharkFive/DiskTwo/pkg/config"
	"github.com/LandSharkFive/DiskTwo/pkg/element"
)

// NoNode denotes "no node" wherever a node id is expected.
const NoNode int32 = -1

// node header field sizes, per spec.md §4.1.
const (
	leafSize    = 4
	numKeysSize = 4
	idSize      = 4
	nodeHeaderSize = leafSize + numKeysSize + idSize
)

// Node is a fixed-capacity page: keys, child ids, leaf flag, id, key count.
// Keys has physical capacity `order` (one more slot than the logical
// maximum of order-1, to allow the transient pre-split state described in
// spec.md §3). Kids has physical capacity `order+1` and is unused (all
// NoNode) on leaves.
type Node struct {
	Leaf    bool
	NumKeys int32
	ID      int32
	Keys    []element.Element
	Kids    []int32
}

// NewNode allocates an empty node of the given leaf-ness sized for order.
func NewNode(id int32, order int32, leaf bool) *Node {
	keys := make([]element.Element, order)
	for i := range keys {
		keys[i] = element.Sentinel
	}
	kids := make([]int32, order+1)
	for i := range kids {
		kids[i] = NoNode
	}
	return &Node{Leaf: leaf, ID: id, Keys: keys, Kids: kids}
}

// Marshal encodes the node into a pageSize(order)-byte buffer.
func (n *Node) Marshal(order int32) []byte {
	buf := make([]byte, config.PageSize(order))
	if n.Leaf {
		binary.LittleEndian.PutUint32(buf[0:], 1)
	} else {
		binary.LittleEndian.PutUint32(buf[0:], 0)
	}
	binary.LittleEndian.PutUint32(buf[leafSize:], uint32(n.NumKeys))
	binary.LittleEndian.PutUint32(buf[leafSize+numKeysSize:], uint32(n.ID))

	keysOffset := nodeHeaderSize
	for i := int32(0); i < order; i++ {
		e := element.Sentinel
		if i < int32(len(n.Keys)) {
			e = n.Keys[i]
		}
		copy(buf[keysOffset+int(i)*element.Size:], e.Marshal())
	}
	kidsOffset := keysOffset + int(order)*element.Size
	for i := int32(0); i <= order; i++ {
		kid := NoNode
		if i < int32(len(n.Kids)) {
			kid = n.Kids[i]
		}
		binary.LittleEndian.PutUint32(buf[kidsOffset+int(i)*4:], uint32(kid))
	}
	return buf
}

// UnmarshalNode decodes a pageSize(order)-byte buffer into a Node.
func UnmarshalNode(data []byte, order int32) *Node {
	n := &Node{
		Leaf:    binary.LittleEndian.Uint32(data[0:]) != 0,
		NumKeys: int32(binary.LittleEndian.Uint32(data[leafSize:])),
		ID:      int32(binary.LittleEndian.Uint32(data[leafSize+numKeysSize:])),
		Keys:    make([]element.Element, order),
		Kids:    make([]int32, order+1),
	}
	keysOffset := nodeHeaderSize
	for i := int32(0); i < order; i++ {
		start := keysOffset + int(i)*element.Size
		n.Keys[i] = element.Unmarshal(data[start : start+element.Size])
	}
	kidsOffset := keysOffset + int(order)*element.Size
	for i := int32(0); i <= order; i++ {
		n.Kids[i] = int32(binary.LittleEndian.Uint32(data[kidsOffset+int(i)*4:]))
	}
	return n
}
