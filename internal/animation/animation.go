// Package animation holds the bouncing box state advanced once per frame.
package animation

import "math"

// Vec is a 2D point or velocity in terminal cells.
type Vec struct {
	X, Y float64
}

// Size is a width and height in terminal cells.
type Size struct {
	W, H float64
}

// State is the box position (its centre), velocity, size and the frame bounds.
type State struct {
	Pos    Vec
	Vel    Vec
	Size   Size
	Bounds Size
}

// New centres a box of the given size inside bounds.
func New(bounds, size Size, vel Vec) *State {
	return &State{
		Pos:    Vec{X: bounds.W / 2, Y: bounds.H / 2},
		Vel:    vel,
		Size:   size,
		Bounds: bounds,
	}
}

// Step reflects the velocity on edge contact, then moves the box by one frame.
// A component is only flipped while it still points at the touched edge, so
// consecutive frames in contact never flip it back.
func (s *State) Step() {
	s.Vel.X = reflect(s.Pos.X, s.Vel.X, s.Size.W, s.Bounds.W)
	s.Vel.Y = reflect(s.Pos.Y, s.Vel.Y, s.Size.H, s.Bounds.H)
	s.Pos.X += s.Vel.X
	s.Pos.Y += s.Vel.Y
}

func reflect(p, v, size, bound float64) float64 {
	half := size / 2
	switch {
	case p-half <= 0 && v < 0:
		return -v
	case p+half >= bound && v > 0:
		return -v
	default:
		return v
	}
}

// Resize changes the bounds and pulls the box back inside them.
func (s *State) Resize(bounds Size) {
	s.Bounds = bounds
	s.Pos.X = clamp(s.Pos.X, s.Size.W/2, bounds.W-s.Size.W/2)
	s.Pos.Y = clamp(s.Pos.Y, s.Size.H/2, bounds.H-s.Size.H/2)
}

// Origin returns the top-left cell of the box.
func (s *State) Origin() (col, row int) {
	return int(math.Round(s.Pos.X - s.Size.W/2)), int(math.Round(s.Pos.Y - s.Size.H/2))
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		return (lo + hi) / 2
	}
	return math.Max(lo, math.Min(hi, v))
}
