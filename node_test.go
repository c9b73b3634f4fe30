package contree

import (
	"encoding/binary"
	"testing"
)

func TestRecordWireSizes(t *testing.T) {
	var inner InnerNode
	var leaf LeafNode
	if n := len(inner.AppendBytes(nil)); n != InnerNodeSize {
		t.Errorf("InnerNode serializes to %d bytes, want %d", n, InnerNodeSize)
	}
	if n := len(leaf.AppendBytes(nil)); n != LeafNodeSize {
		t.Errorf("LeafNode serializes to %d bytes, want %d", n, LeafNodeSize)
	}
}

func TestInnerNodeLayout(t *testing.T) {
	node := InnerNode{
		Occupied: 0x0102030405060708,
		IsLeaf:   0x1112131415161718,
		Lit:      0x2122232425262728,
	}
	node.Children[0] = 42
	node.Children[63] = 0xdeadbeef

	buf := node.AppendBytes(nil)
	if got := binary.LittleEndian.Uint64(buf[0:]); got != node.Occupied {
		t.Errorf("Occupied at offset 0: got %x", got)
	}
	if got := binary.LittleEndian.Uint64(buf[8:]); got != node.IsLeaf {
		t.Errorf("IsLeaf at offset 8: got %x", got)
	}
	if got := binary.LittleEndian.Uint64(buf[16:]); got != node.Lit {
		t.Errorf("Lit at offset 16: got %x", got)
	}
	if got := binary.LittleEndian.Uint32(buf[24:]); got != 42 {
		t.Errorf("Children[0] at offset 24: got %d", got)
	}
	if got := binary.LittleEndian.Uint32(buf[24+63*4:]); got != 0xdeadbeef {
		t.Errorf("Children[63] at offset %d: got %x", 24+63*4, got)
	}
}

func TestLeafNodeLayout(t *testing.T) {
	var leaf LeafNode
	leaf.setVoxel(0, 10)
	leaf.setVoxel(63, 200)
	leaf.Lit = 1 << 63

	buf := leaf.AppendBytes(nil)
	if got := binary.LittleEndian.Uint64(buf[0:]); got != (1 | 1<<63) {
		t.Errorf("Occupied at offset 0: got %x", got)
	}
	if got := binary.LittleEndian.Uint64(buf[8:]); got != 1<<63 {
		t.Errorf("Lit at offset 8: got %x", got)
	}
	if buf[16] != 10 || buf[16+63] != 200 {
		t.Errorf("Material bytes misplaced: %d %d", buf[16], buf[16+63])
	}
}

func TestSetChildClearsStaleBits(t *testing.T) {
	var node InnerNode
	node.setChild(5, 9, true, true)
	if !node.has(5) || !node.leafAt(5) || node.Lit&(1<<5) == 0 {
		t.Fatal("setChild did not set all requested bits")
	}

	// Rewiring the same slot to an inner child must drop leaf and lit bits.
	node.setChild(5, 11, false, false)
	if !node.has(5) {
		t.Error("Occupied bit lost on rewire")
	}
	if node.leafAt(5) {
		t.Error("Stale leaf bit survived rewire")
	}
	if node.Lit&(1<<5) != 0 {
		t.Error("Stale lit bit survived rewire")
	}
	if node.Children[5] != 11 {
		t.Errorf("Child address not rewired: %d", node.Children[5])
	}
}

func TestClearChild(t *testing.T) {
	var node InnerNode
	node.setChild(30, 4, true, true)
	node.clearChild(30)
	if node.Occupied != 0 || node.IsLeaf != 0 || node.Lit != 0 || node.Children[30] != 0 {
		t.Error("clearChild left residue")
	}
}

func TestLeafMaterialRequiresOccupancy(t *testing.T) {
	var leaf LeafNode
	leaf.Materials[3] = 77 // stale byte without its occupancy bit
	if _, ok := leaf.Material(3); ok {
		t.Error("Material byte without occupancy bit must not be visible")
	}
	leaf.setVoxel(3, 77)
	if mat, ok := leaf.Material(3); !ok || mat != 77 {
		t.Errorf("Expected material 77, got %d ok=%v", mat, ok)
	}
	leaf.clearVoxel(3)
	if _, ok := leaf.Material(3); ok {
		t.Error("Cleared voxel still reads as occupied")
	}
}
