package app

import (
	"math"
	"testing"
)

func TestPitchClamped(t *testing.T) {
	c := NewCameraState()
	for i := 0; i < 100; i++ {
		c.AddPitch(0.5)
	}
	if float64(c.Pitch) >= math.Pi/2 {
		t.Errorf("Pitch %f reached the vertical", c.Pitch)
	}
	if c.GetForward().Z() <= 0 {
		t.Error("Forward should still point up after pitching up")
	}

	for i := 0; i < 200; i++ {
		c.AddPitch(-0.5)
	}
	if float64(c.Pitch) <= -math.Pi/2 {
		t.Errorf("Pitch %f reached the vertical looking down", c.Pitch)
	}
	if c.GetForward().Z() >= 0 {
		t.Error("Forward should point down after pitching down")
	}
}
