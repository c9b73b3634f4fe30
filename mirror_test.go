package contree

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMirrorOneWritePerMutation(t *testing.T) {
	mirror := NewMirror()
	tree := NewContree(32, mirror, nil)

	// Root creation is one inner write at offset 0.
	cmds := mirror.Drain()
	require.Len(t, cmds, 1)
	assert.Equal(t, mirror.InnerBuffer, cmds[0].Buffer)
	assert.Equal(t, uint64(0), cmds[0].Offset)
	assert.Len(t, cmds[0].Data, InnerNodeSize)

	// Inserting into an empty depth-3 tree mutates five nodes: a new inner
	// (itself plus its parent's flags), a new leaf (itself plus its
	// parent's flags), then the leaf voxel write.
	tree.Insert(mgl32.Vec3{0, 0, 0}, 10)
	cmds = mirror.Drain()
	require.Len(t, cmds, 5)

	assert.Equal(t, mirror.InnerBuffer, cmds[0].Buffer)
	assert.Equal(t, uint64(1*InnerNodeSize), cmds[0].Offset, "new inner node at address 1")
	assert.Equal(t, mirror.InnerBuffer, cmds[1].Buffer)
	assert.Equal(t, uint64(0), cmds[1].Offset, "root flag update")
	assert.Equal(t, mirror.LeafBuffer, cmds[2].Buffer)
	assert.Equal(t, uint64(0), cmds[2].Offset, "new leaf at address 0")
	assert.Equal(t, mirror.InnerBuffer, cmds[3].Buffer)
	assert.Equal(t, uint64(1*InnerNodeSize), cmds[3].Offset, "leaf parent flag update")
	assert.Equal(t, mirror.LeafBuffer, cmds[4].Buffer)
	assert.Equal(t, uint64(0), cmds[4].Offset, "voxel material write")

	for _, cmd := range cmds {
		if cmd.Buffer == mirror.InnerBuffer {
			assert.Len(t, cmd.Data, InnerNodeSize)
		} else {
			assert.Len(t, cmd.Data, LeafNodeSize)
		}
	}

	// The final leaf write carries the authoritative record.
	assert.True(t, bytes.Equal(cmds[4].Data, tree.SnapshotLeaf()[:LeafNodeSize]))
}

func TestMirrorDrainClears(t *testing.T) {
	mirror := NewMirror()
	tree := NewContree(32, mirror, nil)
	tree.Insert(mgl32.Vec3{1, 1, 1}, 2)

	assert.NotZero(t, mirror.Pending())
	first := mirror.Drain()
	assert.NotEmpty(t, first)
	assert.Zero(t, mirror.Pending())
	assert.Empty(t, mirror.Drain())
}

// The host tree must be byte-identical whether or not a consumer is
// attached; the mirror is a copy, never the source of truth.
func TestDetachedMatchesAttached(t *testing.T) {
	mirror := NewMirror()
	attached := NewContree(8, mirror, nil)
	detached := NewContree(8, nil, nil)

	ops := func(tree *Contree) {
		tree.Insert(mgl32.Vec3{0, 0, 0}, 1)
		tree.Insert(mgl32.Vec3{-3, 2, 5}, 2)
		tree.Insert(mgl32.Vec3{40, 0, 0}, 3) // grows
		tree.SetLight(mgl32.Vec3{0, 0, 0}, true)
		tree.Remove(mgl32.Vec3{-3, 2, 5})
	}
	ops(attached)
	ops(detached)

	assert.Equal(t, attached.SnapshotInner(), detached.SnapshotInner())
	assert.Equal(t, attached.SnapshotLeaf(), detached.SnapshotLeaf())
	assert.Equal(t, attached.Size(), detached.Size())
	assert.Equal(t, attached.CenterOffset, detached.CenterOffset)
}

// Replaying a drain over a zeroed image must reproduce the live snapshot:
// writes apply in send order and the latest write per address wins.
func TestMirrorReplayReproducesSnapshot(t *testing.T) {
	mirror := NewMirror()
	tree := NewContree(8, mirror, nil)
	tree.Insert(mgl32.Vec3{0, 0, 0}, 5)
	tree.Insert(mgl32.Vec3{2, 2, 2}, 6)
	tree.Insert(mgl32.Vec3{30, 0, 0}, 7) // grows
	tree.Remove(mgl32.Vec3{2, 2, 2})

	innerImage := make([]byte, tree.InnerCount()*InnerNodeSize)
	leafImage := make([]byte, tree.LeafCount()*LeafNodeSize)
	for _, cmd := range mirror.Drain() {
		switch cmd.Buffer {
		case mirror.InnerBuffer:
			copy(innerImage[cmd.Offset:], cmd.Data)
		case mirror.LeafBuffer:
			copy(leafImage[cmd.Offset:], cmd.Data)
		default:
			t.Fatalf("write for unknown buffer %v", cmd.Buffer)
		}
	}

	assert.Equal(t, tree.SnapshotInner(), innerImage)
	assert.Equal(t, tree.SnapshotLeaf(), leafImage)
}

// deviceLookup resolves a normalized cell against the snapshot byte images
// the way the march shader does: records as raw u32 words (inner stride 70,
// leaf stride 20), one 2-bit digit per axis per level, and the voxel slot
// from the k == 0 bits, one level below the last inner descent.
func deviceLookup(inner, leaf []byte, root Addr, depth int, u [3]uint32) (uint8, bool) {
	word := func(buf []byte, idx uint32) uint32 {
		return binary.LittleEndian.Uint32(buf[idx*4:])
	}
	maskBit := func(lo, hi, slot uint32) bool {
		if slot < 32 {
			return lo&(1<<slot) != 0
		}
		return hi&(1<<(slot-32)) != 0
	}
	slotAt := func(lvl int) uint32 {
		k := uint((depth - 1 - lvl) * 2)
		lo := (u[0]>>k&1)<<2 | (u[1]>>k&1)<<1 | (u[2] >> k & 1)
		hi := (u[0]>>(k+1)&1)<<2 | (u[1]>>(k+1)&1)<<1 | (u[2] >> (k + 1) & 1)
		return hi<<3 | lo
	}

	addr := uint32(root)
	for lvl := 0; lvl < depth; lvl++ {
		base := addr * (InnerNodeSize / 4)
		slot := slotAt(lvl)
		if !maskBit(word(inner, base), word(inner, base+1), slot) {
			return 0, false
		}
		child := word(inner, base+6+slot)
		if maskBit(word(inner, base+2), word(inner, base+3), slot) {
			lbase := child * (LeafNodeSize / 4)
			vslot := slotAt(depth - 1)
			if !maskBit(word(leaf, lbase), word(leaf, lbase+1), vslot) {
				return 0, false
			}
			w := word(leaf, lbase+4+vslot/4)
			return uint8(w >> ((vslot % 4) * 8)), true
		}
		addr = child
	}
	return 0, false
}

// The device-side traversal over mirrored bytes must agree voxel-for-voxel
// with the host tree, including cells whose voxel slot is nonzero inside a
// shared leaf.
func TestDeviceLayoutTraversal(t *testing.T) {
	tree := NewContree(8, NewMirror(), nil)
	positions := []struct {
		p mgl32.Vec3
		m uint8
	}{
		{mgl32.Vec3{0, 0, 0}, 1},
		{mgl32.Vec3{0, 0, 1}, 2},
		{mgl32.Vec3{1, 1, 1}, 3},
		{mgl32.Vec3{-4, 3, -2}, 4},
		{mgl32.Vec3{7, 7, 7}, 5},
	}
	for _, tc := range positions {
		tree.Insert(tc.p, tc.m)
	}

	inner := tree.SnapshotInner()
	leaf := tree.SnapshotLeaf()
	for _, tc := range positions {
		x, y, z := tree.normalize(tc.p)
		mat, ok := deviceLookup(inner, leaf, tree.Root(), tree.Depth(), [3]uint32{x, y, z})
		require.True(t, ok, "device records should resolve %v", tc.p)
		assert.Equal(t, tc.m, mat, "device material for %v", tc.p)
	}

	x, y, z := tree.normalize(mgl32.Vec3{5, -5, 5})
	_, ok := deviceLookup(inner, leaf, tree.Root(), tree.Depth(), [3]uint32{x, y, z})
	assert.False(t, ok, "empty cell must miss")
}
