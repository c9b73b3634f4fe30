package contree

// nodeArena packs inner and leaf records into two dense, index-addressed
// collections. Freed addresses go to per-kind tombstone lists and are reused
// before either collection grows, so device buffers stay compact.
//
// Records never move once allocated: growth is append-only and reuse
// overwrites in place. Addresses are therefore stable for the lifetime of
// the arena. Pointers returned by inner/leaf are only valid until the next
// allocation.
type nodeArena struct {
	inners []InnerNode
	leaves []LeafNode

	innerTombstones []Addr
	leafTombstones  []Addr
}

// allocInner returns the address of a zeroed inner record, recycling a
// tombstoned slot if one exists. Zeroing is mandatory: flag bits from a
// previous occupant must not leak into the new node.
func (a *nodeArena) allocInner() Addr {
	if n := len(a.innerTombstones); n > 0 {
		addr := a.innerTombstones[n-1]
		a.innerTombstones = a.innerTombstones[:n-1]
		a.inners[addr] = InnerNode{}
		return addr
	}
	a.inners = append(a.inners, InnerNode{})
	return Addr(len(a.inners) - 1)
}

func (a *nodeArena) allocLeaf() Addr {
	if n := len(a.leafTombstones); n > 0 {
		addr := a.leafTombstones[n-1]
		a.leafTombstones = a.leafTombstones[:n-1]
		a.leaves[addr] = LeafNode{}
		return addr
	}
	a.leaves = append(a.leaves, LeafNode{})
	return Addr(len(a.leaves) - 1)
}

// freeInner marks an inner address for reuse. The caller must already have
// cleared the parent's slot; the arena does not track back references.
func (a *nodeArena) freeInner(addr Addr) {
	a.innerTombstones = append(a.innerTombstones, addr)
}

func (a *nodeArena) freeLeaf(addr Addr) {
	a.leafTombstones = append(a.leafTombstones, addr)
}

func (a *nodeArena) inner(addr Addr) *InnerNode {
	return &a.inners[addr]
}

func (a *nodeArena) leaf(addr Addr) *LeafNode {
	return &a.leaves[addr]
}
