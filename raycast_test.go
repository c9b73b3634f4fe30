package contree

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestRaycastHitsFirstOccupied(t *testing.T) {
	tree := NewContree(32, nil, nil)
	tree.Insert(mgl32.Vec3{5, 0, 0}, 3)
	tree.Insert(mgl32.Vec3{9, 0, 0}, 4)

	hit := tree.Raycast(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 0, 0})
	if !hit.Hit {
		t.Fatal("Expected a hit along +X")
	}
	if hit.Material != 3 {
		t.Errorf("Expected the nearer voxel (material 3), got %d", hit.Material)
	}
	// The voxel at x=5 spans [4.5, 5.5) in world space.
	if hit.Pos.X() < 4.4 || hit.Pos.X() > 5.6 {
		t.Errorf("Hit position %v outside the target cell", hit.Pos)
	}
}

func TestRaycastNegativeDirection(t *testing.T) {
	tree := NewContree(32, nil, nil)
	tree.Insert(mgl32.Vec3{-6, 0, 0}, 8)

	hit := tree.Raycast(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{-1, 0, 0})
	if !hit.Hit || hit.Material != 8 {
		t.Fatalf("Expected material 8 along -X, got %+v", hit)
	}
}

func TestRaycastStartInsideVoxel(t *testing.T) {
	tree := NewContree(32, nil, nil)
	tree.Insert(mgl32.Vec3{0, 0, 0}, 12)

	hit := tree.Raycast(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 1, 0})
	if !hit.Hit || hit.Material != 12 || hit.Steps != 0 {
		t.Fatalf("Ray starting inside an occupied voxel should hit immediately, got %+v", hit)
	}
}

func TestRaycastMissTerminates(t *testing.T) {
	tree := NewContree(32, nil, nil)
	hit := tree.Raycast(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0.3, 0.9, -0.2})
	if hit.Hit {
		t.Errorf("Empty tree cannot be hit: %+v", hit)
	}
}

func TestRaycastDiagonal(t *testing.T) {
	tree := NewContree(32, nil, nil)
	tree.Insert(mgl32.Vec3{6, 6, 6}, 2)

	hit := tree.Raycast(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 1, 1})
	if !hit.Hit || hit.Material != 2 {
		t.Fatalf("Expected diagonal hit on material 2, got %+v", hit)
	}
}

func TestRaycastZeroDirection(t *testing.T) {
	tree := NewContree(32, nil, nil)
	tree.Insert(mgl32.Vec3{5, 0, 0}, 3)

	// Degenerate direction: no boundary to advance to, must return quickly.
	hit := tree.Raycast(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, 0})
	if hit.Hit {
		t.Errorf("Zero direction over an empty cell cannot hit: %+v", hit)
	}
}

func TestRaycastLeavesCube(t *testing.T) {
	tree := NewContree(8, nil, nil)
	tree.Insert(mgl32.Vec3{-5, 0, 0}, 1)

	// Pointing away from the only voxel: the walk exits the cube unhit.
	hit := tree.Raycast(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 0, 0})
	if hit.Hit {
		t.Errorf("Ray pointing away from content should miss, got %+v", hit)
	}
}
