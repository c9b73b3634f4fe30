package contree

// The tree branches 64 ways per level (4x per axis), so one path digit is
// two bits from each axis, interleaved in canonical Z-order with x highest.

// Only the low 21 bits of each axis are significant, giving a 63-bit code.
const axisBits = 21

var spreadMagic = [5]uint64{
	0x1249249249249249,
	0x10c30c30c30c30c3,
	0x100f00f00f00f00f,
	0x1f0000ff0000ff,
	0x1f00000000ffff,
}

// spreadBits expands a 21-bit value so consecutive bits land three
// positions apart.
func spreadBits(v uint32) uint64 {
	x := uint64(v) & 0x1fffff
	for i := len(spreadMagic) - 1; i >= 0; i-- {
		x = (x | x<<(1<<(i+1))) & spreadMagic[i]
	}
	return x
}

// mortonEncode interleaves a normalized cell coordinate into a single path
// code. Reading the code six bits at a time, most-significant group first,
// gives the child slot per tree level from the root downward.
func mortonEncode(x, y, z uint32) uint64 {
	return spreadBits(x)<<2 | spreadBits(y)<<1 | spreadBits(z)
}

// decodeDigits splits a code into base-64 digits, least-significant first.
// A zero code decodes to a single zero digit.
func decodeDigits(code uint64) []int {
	if code == 0 {
		return []int{0}
	}
	digits := make([]int, 0, 8)
	for n := code; n != 0; n >>= 6 {
		digits = append(digits, int(n&0x3f))
	}
	return digits
}

// digitPath is the form traversal consumes: exactly depth digits, still
// least-significant first, padded with zeros at the deep end so cells near
// the origin corner descend the full height of the tree.
func digitPath(code uint64, depth int) []int {
	digits := make([]int, depth)
	for i := 0; i < depth; i++ {
		digits[i] = int(code & 0x3f)
		code >>= 6
	}
	if code != 0 {
		panic("contree: path code exceeds tree depth; coordinate was not normalized")
	}
	return digits
}

// childIndex packs one 2-bit coordinate triple into a child slot index,
// the same rule mortonEncode applies per level.
func childIndex(cx, cy, cz uint32) int {
	return int(spreadBits(cx&3)<<2 | spreadBits(cy&3)<<1 | spreadBits(cz&3))
}
