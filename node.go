package contree

import (
	"encoding/binary"
	"unsafe"
)

// Addr indexes one of the arena's two collections. Which collection an
// address belongs to is recorded only in the parent's IsLeaf bit; the
// address itself carries no type tag.
type Addr = uint32

// Wire sizes of the device-resident records, in bytes. The WGSL side reads
// the same layouts, so these must not drift.
const (
	InnerNodeSize = 3*8 + 64*4 // 280
	LeafNodeSize  = 2*8 + 64*1 // 80
)

// InnerNode is one interior record: three per-slot bitmasks plus the child
// address per slot. A bit may be set in IsLeaf only if also set in Occupied;
// a clear Occupied bit means the child address for that slot is ignored.
type InnerNode struct {
	Occupied uint64
	IsLeaf   uint64
	Lit      uint64
	Children [64]Addr
}

// LeafNode stores one material byte per voxel slot. A material byte is
// meaningful only while its Occupied bit is set.
type LeafNode struct {
	Occupied  uint64
	Lit       uint64
	Materials [64]uint8
}

// The in-memory structs are kept exactly at wire size so device snapshots
// and per-node writes are straight byte dumps.
var _ [InnerNodeSize - int(unsafe.Sizeof(InnerNode{}))]byte
var _ [int(unsafe.Sizeof(InnerNode{})) - InnerNodeSize]byte
var _ [LeafNodeSize - int(unsafe.Sizeof(LeafNode{}))]byte
var _ [int(unsafe.Sizeof(LeafNode{})) - LeafNodeSize]byte

func (n *InnerNode) has(slot int) bool {
	return n.Occupied&(1<<uint(slot)) != 0
}

func (n *InnerNode) leafAt(slot int) bool {
	return n.IsLeaf&(1<<uint(slot)) != 0
}

// setChild rewrites every flag bit for the slot. Addresses are recycled, so
// stale bits from a previous occupant must not survive.
func (n *InnerNode) setChild(slot int, child Addr, leaf, lit bool) {
	mask := uint64(1) << uint(slot)
	n.Children[slot] = child
	n.Occupied |= mask
	n.IsLeaf &^= mask
	if leaf {
		n.IsLeaf |= mask
	}
	n.Lit &^= mask
	if lit {
		n.Lit |= mask
	}
}

func (n *InnerNode) clearChild(slot int) {
	mask := uint64(1) << uint(slot)
	n.Occupied &^= mask
	n.IsLeaf &^= mask
	n.Lit &^= mask
	n.Children[slot] = 0
}

// AppendBytes serializes the record in its little-endian device layout.
func (n *InnerNode) AppendBytes(dst []byte) []byte {
	var buf [InnerNodeSize]byte
	binary.LittleEndian.PutUint64(buf[0:], n.Occupied)
	binary.LittleEndian.PutUint64(buf[8:], n.IsLeaf)
	binary.LittleEndian.PutUint64(buf[16:], n.Lit)
	for i, c := range n.Children {
		binary.LittleEndian.PutUint32(buf[24+i*4:], c)
	}
	return append(dst, buf[:]...)
}

func (l *LeafNode) setVoxel(slot int, material uint8) {
	l.Materials[slot] = material
	l.Occupied |= 1 << uint(slot)
}

func (l *LeafNode) clearVoxel(slot int) {
	mask := uint64(1) << uint(slot)
	l.Occupied &^= mask
	l.Lit &^= mask
	l.Materials[slot] = 0
}

func (l *LeafNode) empty() bool {
	return l.Occupied == 0
}

// Material returns the material id for a voxel slot and whether the slot is
// occupied at all.
func (l *LeafNode) Material(slot int) (uint8, bool) {
	if l.Occupied&(1<<uint(slot)) == 0 {
		return 0, false
	}
	return l.Materials[slot], true
}

// AppendBytes serializes the record in its little-endian device layout.
func (l *LeafNode) AppendBytes(dst []byte) []byte {
	var buf [LeafNodeSize]byte
	binary.LittleEndian.PutUint64(buf[0:], l.Occupied)
	binary.LittleEndian.PutUint64(buf[8:], l.Lit)
	copy(buf[16:], l.Materials[:])
	return append(dst, buf[:]...)
}
