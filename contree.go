package contree

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	// A Morton code carries 21 bits per axis, so the cube side tops out at
	// 2^21 cells; growth past that half-extent is unrepresentable.
	maxHalfExtent = 1 << 20

	// childIndex(1, 1, 1): the slot of the new root that covers the old
	// cube after a growth step. See grow.
	oldRootSlot = 7
)

// Contree is a sparse 64-way voxel index. It owns the node arena, a root
// address (always an inner node), a spatial origin and a half-extent, and
// mirrors every node mutation to an optional device-resident copy.
//
// A single logical writer mutates the tree at a time; there is no internal
// locking. Ancestor chains returned by Find and Insert are valid only until
// the next mutation, since freed addresses are recycled without generation
// tags.
type Contree struct {
	// CenterOffset is the world-space center of the cube. Growth shifts it.
	CenterOffset mgl32.Vec3

	root  Addr
	size  uint32 // half-extent; the cube side is 2*size cells
	depth int    // tree levels; 4^depth == 2*size

	arena  nodeArena
	mirror *Mirror
	log    Logger
}

// NewContree builds an index covering a cube of half-extent size centered on
// the origin. 2*size must be a power of 4 and size at least 8: a digit path
// needs at least one inner digit above the voxel digit, so the shallowest
// tree is depth 2. The mirror may be nil (detached) and the logger may be
// nil (silent).
func NewContree(size uint32, mirror *Mirror, log Logger) *Contree {
	if size < 8 {
		panic("contree: half-extent must be at least 8")
	}
	if log == nil {
		log = NewNopLogger()
	}
	t := &Contree{
		size:   size,
		depth:  depthFor(size),
		mirror: mirror,
		log:    log,
	}
	t.root = t.arena.allocInner()
	t.mirror.writeInner(t.root, t.arena.inner(t.root))
	return t
}

func depthFor(size uint32) int {
	side := uint64(size) * 2
	depth := 0
	for s := uint64(1); s < side; s *= 4 {
		depth++
	}
	if uint64(1)<<(2*uint(depth)) != side {
		panic("contree: cube side must be a power of 4")
	}
	return depth
}

func (t *Contree) Root() Addr      { return t.root }
func (t *Contree) Size() uint32    { return t.size }
func (t *Contree) Depth() int      { return t.depth }
func (t *Contree) Mirror() *Mirror { return t.mirror }

// InnerCount and LeafCount report collection lengths, including tombstoned
// slots; the device buffers are sized from these.
func (t *Contree) InnerCount() int { return len(t.arena.inners) }
func (t *Contree) LeafCount() int  { return len(t.arena.leaves) }

// normalize maps a world position into the cube's cell space [0, 2*size).
// Callers must have bounds-checked the position first.
func (t *Contree) normalize(p mgl32.Vec3) (uint32, uint32, uint32) {
	s := float32(t.size)
	x := p.X() - t.CenterOffset.X() + s + 0.5
	y := p.Y() - t.CenterOffset.Y() + s + 0.5
	z := p.Z() - t.CenterOffset.Z() + s + 0.5
	return uint32(x), uint32(y), uint32(z)
}

// svoAbs measures axis distance with negative values one unit further out
// than their magnitude, matching how cells straddle the center planes.
func svoAbs(v float32) float32 {
	if v < 0 {
		return -v - 1
	}
	return v
}

func (t *Contree) inBounds(p mgl32.Vec3) bool {
	d := p.Sub(t.CenterOffset)
	m := float32(math.Round(float64(svoAbs(d.X()))))
	if v := float32(math.Round(float64(svoAbs(d.Y())))); v > m {
		m = v
	}
	if v := float32(math.Round(float64(svoAbs(d.Z())))); v > m {
		m = v
	}
	return m < float32(t.size)
}

// FindResult carries everything needed to resume an insertion without
// re-walking from the root.
type FindResult struct {
	// LeafAddr is valid only when HasLeaf is set.
	LeafAddr Addr
	HasLeaf  bool

	// Stack holds the unconsumed digits, finest level first. For a found
	// leaf it is exactly one digit: the voxel slot inside that leaf.
	Stack []int

	// Parents is the chain of visited inner addresses, root first.
	Parents []Addr

	// NodeSize is the side length, in cells, of the cell where the walk
	// stopped: the missing child's region when nothing was found, or the
	// single voxel when a leaf was reached.
	NodeSize uint32
}

// Find resolves the unit cell containing p. It walks the root downward along
// the position's digit path and stops at the first empty slot or at a leaf.
func (t *Contree) Find(p mgl32.Vec3) FindResult {
	x, y, z := t.normalize(p)
	stack := digitPath(mortonEncode(x, y, z), t.depth)

	parents := []Addr{t.root}
	node := t.arena.inner(t.root)
	side := 2 * t.size
	for len(stack) > 0 {
		slot := stack[len(stack)-1]
		side /= 4
		if !node.has(slot) {
			return FindResult{Stack: stack, Parents: parents, NodeSize: side}
		}
		child := node.Children[slot]
		stack = stack[:len(stack)-1]
		if node.leafAt(slot) {
			return FindResult{
				LeafAddr: child,
				HasLeaf:  true,
				Stack:    stack,
				Parents:  parents,
				NodeSize: side / 4,
			}
		}
		parents = append(parents, child)
		node = t.arena.inner(child)
	}
	panic("contree: traversal descended past the leaf level; tree structure is corrupt")
}

// Insert stores material in the unit cell containing p, growing the cube
// first if p lies outside it. Every node mutation is forwarded to the mirror
// before Insert returns. The returned slice is the ancestor chain from the
// root down to the mutated leaf's parent.
func (t *Contree) Insert(p mgl32.Vec3, material uint8) []Addr {
	for !t.inBounds(p) {
		t.grow()
	}

	res := t.Find(p)
	var leafAddr Addr
	var slot int
	if res.HasLeaf {
		leafAddr = res.LeafAddr
		slot = res.Stack[len(res.Stack)-1]
	} else {
		leafAddr, slot, res.Parents = t.addParents(res.Stack, res.Parents)
	}

	leaf := t.arena.leaf(leafAddr)
	leaf.setVoxel(slot, material)
	t.mirror.writeLeaf(leafAddr, leaf)
	return res.Parents
}

// addParents wires the missing inner chain along the remaining digits,
// coarsest first, then one leaf at the bottom. The final digit is the voxel
// slot inside that leaf and is returned unconsumed.
func (t *Contree) addParents(stack []int, parents []Addr) (Addr, int, []Addr) {
	var leafAddr Addr
	for i := len(stack) - 1; i >= 0; i-- {
		slot := stack[i]
		parent := parents[len(parents)-1]
		switch i {
		case 0:
			return leafAddr, slot, parents
		case 1:
			leafAddr = t.newLeafNode(parent, slot)
		default:
			parents = append(parents, t.newInnerNode(parent, slot))
		}
	}
	panic("contree: empty digit stack")
}

func (t *Contree) newInnerNode(parent Addr, slot int) Addr {
	addr := t.arena.allocInner()
	t.arena.inner(parent).setChild(slot, addr, false, false)
	t.mirror.writeInner(addr, t.arena.inner(addr))
	t.mirror.writeInner(parent, t.arena.inner(parent))
	return addr
}

func (t *Contree) newLeafNode(parent Addr, slot int) Addr {
	addr := t.arena.allocLeaf()
	t.arena.inner(parent).setChild(slot, addr, true, false)
	t.mirror.writeLeaf(addr, t.arena.leaf(addr))
	t.mirror.writeInner(parent, t.arena.inner(parent))
	return addr
}

// grow quadruples the half-extent. A fresh inner node becomes the root and
// the old root is wired in as its child at oldRootSlot.
//
// Shifting CenterOffset by the old half-extent per axis moves every
// normalized coordinate by exactly one old side length (2*size), which is
// one child block of the new root. Existing digit paths gain one leading
// digit, childIndex(1,1,1), and nothing below the new root is touched, so
// growth preserves every address and every path.
func (t *Contree) grow() {
	if t.size > maxHalfExtent/4 {
		panic("contree: growth would exceed the 21-bit coordinate budget")
	}

	newRoot := t.arena.allocInner()
	oldRoot := t.root
	lit := t.arena.inner(oldRoot).Lit != 0
	t.arena.inner(newRoot).setChild(oldRootSlot, oldRoot, false, lit)
	t.root = newRoot

	s := float32(t.size)
	t.CenterOffset = t.CenterOffset.Add(mgl32.Vec3{s, s, s})
	t.size *= 4
	t.depth++

	t.mirror.writeInner(newRoot, t.arena.inner(newRoot))
	t.log.Debugf("grew to half-extent %d (depth %d), old root %d at slot %d",
		t.size, t.depth, oldRoot, oldRootSlot)
}

// Remove clears the voxel containing p. A leaf left empty is unwired from
// its parent and tombstoned so later insertions reuse its address. Reports
// whether anything was removed.
func (t *Contree) Remove(p mgl32.Vec3) bool {
	if !t.inBounds(p) {
		return false
	}
	res := t.Find(p)
	if !res.HasLeaf {
		return false
	}
	slot := res.Stack[len(res.Stack)-1]
	leaf := t.arena.leaf(res.LeafAddr)
	if _, ok := leaf.Material(slot); !ok {
		return false
	}
	leaf.clearVoxel(slot)

	if leaf.empty() {
		x, y, z := t.normalize(p)
		path := digitPath(mortonEncode(x, y, z), t.depth)
		leafSlot := path[1]
		parent := res.Parents[len(res.Parents)-1]
		t.arena.inner(parent).clearChild(leafSlot)
		t.arena.freeLeaf(res.LeafAddr)
		t.mirror.writeInner(parent, t.arena.inner(parent))
	} else {
		t.mirror.writeLeaf(res.LeafAddr, leaf)
	}
	return true
}

// SetLight marks or clears the light bit for the voxel containing p and
// updates the summary bits up the ancestor chain, stopping as soon as a
// parent's mask is unchanged. Reports whether the voxel exists.
func (t *Contree) SetLight(p mgl32.Vec3, lit bool) bool {
	if !t.inBounds(p) {
		return false
	}
	res := t.Find(p)
	if !res.HasLeaf {
		return false
	}
	slot := res.Stack[len(res.Stack)-1]
	leaf := t.arena.leaf(res.LeafAddr)
	if _, ok := leaf.Material(slot); !ok {
		return false
	}

	mask := uint64(1) << uint(slot)
	if lit {
		leaf.Lit |= mask
	} else {
		leaf.Lit &^= mask
	}
	t.mirror.writeLeaf(res.LeafAddr, leaf)

	x, y, z := t.normalize(p)
	path := digitPath(mortonEncode(x, y, z), t.depth)
	childLit := leaf.Lit != 0
	for i := len(res.Parents) - 1; i >= 0; i-- {
		node := t.arena.inner(res.Parents[i])
		m := uint64(1) << uint(path[len(path)-1-i])
		was := node.Lit
		if childLit {
			node.Lit |= m
		} else {
			node.Lit &^= m
		}
		if node.Lit == was {
			break
		}
		t.mirror.writeInner(res.Parents[i], node)
		childLit = node.Lit != 0
	}
	return true
}

// SnapshotInner serializes the whole inner collection in address order, the
// exact contents a fully synced device buffer holds.
func (t *Contree) SnapshotInner() []byte {
	buf := make([]byte, 0, len(t.arena.inners)*InnerNodeSize)
	for i := range t.arena.inners {
		buf = t.arena.inners[i].AppendBytes(buf)
	}
	return buf
}

// SnapshotLeaf serializes the whole leaf collection in address order.
func (t *Contree) SnapshotLeaf() []byte {
	buf := make([]byte, 0, len(t.arena.leaves)*LeafNodeSize)
	for i := range t.arena.leaves {
		buf = t.arena.leaves[i].AppendBytes(buf)
	}
	return buf
}
