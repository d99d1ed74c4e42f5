// Package path converts graphics paths into rasterizer input and turns
// strokes into fillable outlines.
package path

import (
	"math"

	"golang.org/x/image/vector"

	"github.com/jeremiesigrist/visu-pdf-pages/pkg/graphics"
)

// ToVector feeds p to a rasterizer. Coordinates must already be in
// device space.
func ToVector(p *graphics.Path, r *vector.Rasterizer) {
	for _, seg := range p.Segments {
		switch seg.Op {
		case graphics.MoveTo:
			if len(seg.Points) >= 1 {
				r.MoveTo(float32(seg.Points[0].X), float32(seg.Points[0].Y))
			}
		case graphics.LineTo:
			if len(seg.Points) >= 1 {
				r.LineTo(float32(seg.Points[0].X), float32(seg.Points[0].Y))
			}
		case graphics.CurveTo:
			if len(seg.Points) >= 3 {
				r.CubeTo(
					float32(seg.Points[0].X), float32(seg.Points[0].Y),
					float32(seg.Points[1].X), float32(seg.Points[1].Y),
					float32(seg.Points[2].X), float32(seg.Points[2].Y),
				)
			}
		case graphics.ClosePath:
			r.ClosePath()
		}
	}
}

// Builder assembles paths with a fluent interface.
type Builder struct {
	path *graphics.Path
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{path: &graphics.Path{}}
}

// MoveTo starts a new subpath.
func (b *Builder) MoveTo(x, y float64) *Builder {
	b.path.MoveTo(x, y)
	return b
}

// LineTo appends a line.
func (b *Builder) LineTo(x, y float64) *Builder {
	b.path.LineTo(x, y)
	return b
}

// Close closes the current subpath.
func (b *Builder) Close() *Builder {
	b.path.Close()
	return b
}

// Quad appends the closed quadrilateral a b c d.
func (b *Builder) Quad(a, c1, c2, d graphics.Point) *Builder {
	return b.MoveTo(a.X, a.Y).LineTo(c1.X, c1.Y).LineTo(c2.X, c2.Y).LineTo(d.X, d.Y).Close()
}

// Circle appends a circle as a polygon, wound the same way as the
// segment quads produced by Stroke so that their union fills solid.
func (b *Builder) Circle(cx, cy, r float64) *Builder {
	n := int(math.Ceil(r * 2))
	n = max(8, min(n, 64))
	b.MoveTo(cx+r, cy)
	for i := 1; i < n; i++ {
		a := -2 * math.Pi * float64(i) / float64(n)
		b.LineTo(cx+r*math.Cos(a), cy+r*math.Sin(a))
	}
	return b.Close()
}

// Build returns the constructed path.
func (b *Builder) Build() *graphics.Path {
	return b.path
}
