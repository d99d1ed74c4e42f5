// Package graphics interprets PDF content streams. It tracks the
// graphics and text state and reports painted paths, placed images and
// shown text to callbacks.
package graphics

import "math"

// Matrix is an affine transform [a b c d e f], mapping (x, y) to
// (a*x + c*y + e, b*x + d*y + f).
type Matrix [6]float64

// Identity returns the identity transform.
func Identity() Matrix { return Matrix{1, 0, 0, 1, 0, 0} }

// Translate returns a translation.
func Translate(tx, ty float64) Matrix { return Matrix{1, 0, 0, 1, tx, ty} }

// Scale returns a scaling.
func Scale(sx, sy float64) Matrix { return Matrix{sx, 0, 0, sy, 0, 0} }

// Multiply returns m followed by n.
func (m Matrix) Multiply(n Matrix) Matrix {
	return Matrix{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

// Apply transforms a point.
func (m Matrix) Apply(x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

// Inverse returns the inverse transform, or the identity for a
// singular matrix.
func (m Matrix) Inverse() Matrix {
	det := m[0]*m[3] - m[1]*m[2]
	if det == 0 {
		return Identity()
	}
	return Matrix{
		m[3] / det, -m[1] / det,
		-m[2] / det, m[0] / det,
		(m[2]*m[5] - m[3]*m[4]) / det,
		(m[1]*m[4] - m[0]*m[5]) / det,
	}
}

// ScaleY is the length of the transformed unit y vector, which is the
// rendered size of a font of size 1.
func (m Matrix) ScaleY() float64 { return math.Hypot(m[2], m[3]) }

// Point is a 2D point.
type Point struct{ X, Y float64 }

// Rect is an axis-aligned rectangle with its origin at the minimum corner.
type Rect struct{ X, Y, W, H float64 }

// RectFromCorners normalizes two opposite corners.
func RectFromCorners(x0, y0, x1, y1 float64) Rect {
	return Rect{
		X: math.Min(x0, x1), Y: math.Min(y0, y1),
		W: math.Abs(x1 - x0), H: math.Abs(y1 - y0),
	}
}

// Transform returns the bounding box of r under m.
func (r Rect) Transform(m Matrix) Rect {
	xs := [4]float64{}
	ys := [4]float64{}
	xs[0], ys[0] = m.Apply(r.X, r.Y)
	xs[1], ys[1] = m.Apply(r.X+r.W, r.Y)
	xs[2], ys[2] = m.Apply(r.X, r.Y+r.H)
	xs[3], ys[3] = m.Apply(r.X+r.W, r.Y+r.H)
	minX, maxX, minY, maxY := xs[0], xs[0], ys[0], ys[0]
	for i := 1; i < 4; i++ {
		minX, maxX = math.Min(minX, xs[i]), math.Max(maxX, xs[i])
		minY, maxY = math.Min(minY, ys[i]), math.Max(maxY, ys[i])
	}
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}
