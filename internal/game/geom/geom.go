// Package geom holds the stateless geometry used by the simulation:
// direction normalization, circular proximity tests and heading math.
// Entity positions are top-left corners of square boxes; every distance
// test in the game is done between box centers.
package geom

import "math"

// Vec is a 2D point or direction in playfield units.
type Vec struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

// Add returns v+o.
func (v Vec) Add(o Vec) Vec { return Vec{v.X + o.X, v.Y + o.Y} }

// Sub returns v-o.
func (v Vec) Sub(o Vec) Vec { return Vec{v.X - o.X, v.Y - o.Y} }

// Scale returns v*k.
func (v Vec) Scale(k float64) Vec { return Vec{v.X * k, v.Y * k} }

// Len returns the Euclidean length of v.
func (v Vec) Len() float64 { return math.Hypot(v.X, v.Y) }

// IsZero reports whether both components are zero.
func (v Vec) IsZero() bool { return v.X == 0 && v.Y == 0 }

// Normalize returns the unit vector of (dx, dy).
// A zero-length input yields the zero vector instead of NaN.
func Normalize(dx, dy float64) Vec {
	l := math.Hypot(dx, dy)
	if l == 0 {
		return Vec{}
	}
	return Vec{dx / l, dy / l}
}

// Center returns the center of a square box whose top-left corner is (x, y).
func Center(x, y, size float64) Vec {
	return Vec{x + size/2, y + size/2}
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Vec) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// DirectionTo returns the unit vector pointing from `from` to `to`.
func DirectionTo(from, to Vec) Vec {
	return Normalize(to.X-from.X, to.Y-from.Y)
}

// Within reports strict circular proximity: distance(a, b) < radius.
func Within(a, b Vec, radius float64) bool {
	dx := b.X - a.X
	dy := b.Y - a.Y
	return dx*dx+dy*dy < radius*radius
}

// BoxesOverlap tests two square boxes using circular proximity on their
// centers with radius equal to the mean of their sizes.
func BoxesOverlap(ax, ay, asize, bx, by, bsize float64) bool {
	return Within(Center(ax, ay, asize), Center(bx, by, bsize), (asize+bsize)/2)
}

// Heading returns the angle of v in radians, in (-π, π].
func Heading(v Vec) float64 {
	return math.Atan2(v.Y, v.X)
}

// FromAngle returns the unit vector for angle a.
func FromAngle(a float64) Vec {
	return Vec{math.Cos(a), math.Sin(a)}
}

// WrapAngle maps a to the range [-π, π].
func WrapAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a < -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

// AngleBetween returns the signed smallest rotation from heading a to heading b.
func AngleBetween(a, b float64) float64 {
	return WrapAngle(b - a)
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Bounds is an axis-aligned rectangle, edges inclusive.
type Bounds struct {
	MinX, MinY, MaxX, MaxY float64
}

// Rect returns the bounds [0,w]×[0,h].
func Rect(w, h float64) Bounds {
	return Bounds{MaxX: w, MaxY: h}
}

// Contains reports whether (x, y) lies inside b, edges included.
func (b Bounds) Contains(x, y float64) bool {
	return x >= b.MinX && x <= b.MaxX && y >= b.MinY && y <= b.MaxY
}
