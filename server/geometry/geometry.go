// Package geometry holds the 2-D keypoint math used by the analysis engine.
// Points are pixel coordinates with the origin at the lower left and y
// increasing upward.
package geometry

import "math"

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Midpoint returns the point halfway between a and b.
func Midpoint(a, b Point) Point {
	return Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// AngleFromVertical returns the signed angle, in radians, of the segment
// from bottom to top relative to the vertical axis. A magnitude near zero
// means the segment is upright; positive angles lean toward +x.
func AngleFromVertical(top, bottom Point) float64 {
	return math.Atan2(top.X-bottom.X, top.Y-bottom.Y)
}
