package contree

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	// maxRaySteps bounds the walk so degenerate directions still terminate.
	maxRaySteps = 64

	// rayEpsilon nudges the position past a cell face so the next Find
	// lands strictly inside the neighboring cell.
	rayEpsilon = 1e-3
)

// RayHit reports the first occupied voxel along a ray, if any.
type RayHit struct {
	Hit      bool
	Pos      mgl32.Vec3
	Material uint8
	Steps    int
}

// Raycast walks cell boundaries along dir from origin until it meets an
// occupied voxel, leaves the cube, or exhausts the step budget. Empty
// regions are skipped at the size of the node that covers them.
func (t *Contree) Raycast(origin, dir mgl32.Vec3) RayHit {
	p := origin
	for step := 0; step < maxRaySteps && t.inBounds(p); step++ {
		res := t.Find(p)
		if res.HasLeaf {
			slot := res.Stack[len(res.Stack)-1]
			if mat, ok := t.arena.leaf(res.LeafAddr).Material(slot); ok {
				return RayHit{Hit: true, Pos: p, Material: mat, Steps: step}
			}
		}
		next, ok := t.advance(p, dir, res.NodeSize)
		if !ok {
			break
		}
		p = next
	}
	return RayHit{}
}

// advance moves p just past the nearest face of its current cell along dir.
// Cells are aligned to the normalized grid: the cell of side n containing a
// coordinate u spans [floor(u/n)*n, (floor(u/n)+1)*n), and the exit plane
// per axis follows the direction sign. Progress is monotonic: the travel
// distance is never negative and the epsilon guarantees the face is crossed,
// so the same cell is never resolved twice in a row.
func (t *Contree) advance(p, dir mgl32.Vec3, cellSide uint32) (mgl32.Vec3, bool) {
	n := float32(cellSide)
	s := float32(t.size)
	best := float32(math.MaxFloat32)
	for axis := 0; axis < 3; axis++ {
		d := dir[axis]
		if d == 0 {
			continue
		}
		u := p[axis] - t.CenterOffset[axis] + s + 0.5
		c := float32(math.Floor(float64(u / n)))
		plane := c * n
		if d > 0 {
			plane = (c + 1) * n
		}
		if tc := (plane - u) / d; tc < best {
			best = tc
		}
	}
	if best == math.MaxFloat32 || best < 0 {
		return p, false
	}
	return p.Add(dir.Mul(best + rayEpsilon)), true
}
