package path

import (
	"math"

	"github.com/jeremiesigrist/visu-pdf-pages/pkg/graphics"
)

// Polyline is a flattened subpath.
type Polyline struct {
	Points []graphics.Point
	Closed bool
}

// Flatten approximates curves with line segments no longer than
// roughly step units.
func Flatten(p *graphics.Path, step float64) []Polyline {
	if step <= 0 {
		step = 1
	}
	var out []Polyline
	var cur *Polyline
	var at graphics.Point
	ensure := func() {
		if cur == nil {
			out = append(out, Polyline{Points: []graphics.Point{at}})
			cur = &out[len(out)-1]
		}
	}

	for _, seg := range p.Segments {
		switch seg.Op {
		case graphics.MoveTo:
			if len(seg.Points) == 0 {
				continue
			}
			at = seg.Points[0]
			out = append(out, Polyline{Points: []graphics.Point{at}})
			cur = &out[len(out)-1]
		case graphics.LineTo:
			if len(seg.Points) == 0 {
				continue
			}
			ensure()
			at = seg.Points[0]
			cur.Points = append(cur.Points, at)
		case graphics.CurveTo:
			if len(seg.Points) < 3 {
				continue
			}
			ensure()
			p0, p1, p2, p3 := at, seg.Points[0], seg.Points[1], seg.Points[2]
			hull := dist(p0, p1) + dist(p1, p2) + dist(p2, p3)
			n := max(1, min(int(math.Ceil(hull/step)), 256))
			for i := 1; i <= n; i++ {
				cur.Points = append(cur.Points, cubic(p0, p1, p2, p3, float64(i)/float64(n)))
			}
			at = p3
		case graphics.ClosePath:
			if cur != nil {
				cur.Closed = true
				at = cur.Points[0]
				cur = nil
			}
		}
	}
	return out
}

func cubic(p0, p1, p2, p3 graphics.Point, t float64) graphics.Point {
	u := 1 - t
	a, b, c, d := u*u*u, 3*u*u*t, 3*u*t*t, t*t*t
	return graphics.Point{
		X: a*p0.X + b*p1.X + c*p2.X + d*p3.X,
		Y: a*p0.Y + b*p1.Y + c*p2.Y + d*p3.Y,
	}
}

func dist(a, b graphics.Point) float64 { return math.Hypot(b.X-a.X, b.Y-a.Y) }

// Stroke returns a path whose non-zero fill covers the stroke of p with
// the given width. Each segment becomes a quad; joins are rounded when
// the line is wide enough for the gap to show.
func Stroke(p *graphics.Path, width float64, cap graphics.LineCap) *graphics.Path {
	half := width / 2
	b := NewBuilder()
	for _, pl := range Flatten(p, math.Max(0.5, half)) {
		pts := pl.Points
		if pl.Closed && len(pts) > 1 && pts[0] != pts[len(pts)-1] {
			pts = append(pts, pts[0])
		}
		drawn := false
		for i := 1; i < len(pts); i++ {
			if quad(b, pts[i-1], pts[i], half) {
				drawn = true
			}
			if half > 0.75 && i < len(pts)-1 {
				b.Circle(pts[i].X, pts[i].Y, half)
			}
		}
		if pl.Closed {
			if half > 0.75 && len(pts) > 2 {
				b.Circle(pts[0].X, pts[0].Y, half)
			}
			continue
		}
		if !drawn {
			// a zero-length open subpath paints only with round or square caps
			if len(pts) > 0 {
				dot(b, pts[0], half, cap)
			}
			continue
		}
		addCap(b, pts[1], pts[0], half, cap)
		addCap(b, pts[len(pts)-2], pts[len(pts)-1], half, cap)
	}
	return b.Build()
}

func quad(b *Builder, s, e graphics.Point, half float64) bool {
	dx, dy := e.X-s.X, e.Y-s.Y
	l := math.Hypot(dx, dy)
	if l == 0 {
		return false
	}
	nx, ny := -dy/l*half, dx/l*half
	b.Quad(
		graphics.Point{X: s.X + nx, Y: s.Y + ny},
		graphics.Point{X: e.X + nx, Y: e.Y + ny},
		graphics.Point{X: e.X - nx, Y: e.Y - ny},
		graphics.Point{X: s.X - nx, Y: s.Y - ny},
	)
	return true
}

// addCap caps the end point of the segment from → end.
func addCap(b *Builder, from, end graphics.Point, half float64, cap graphics.LineCap) {
	switch cap {
	case graphics.RoundCap:
		b.Circle(end.X, end.Y, half)
	case graphics.SquareCap:
		dx, dy := end.X-from.X, end.Y-from.Y
		l := math.Hypot(dx, dy)
		if l == 0 {
			return
		}
		ext := graphics.Point{X: end.X + dx/l*half, Y: end.Y + dy/l*half}
		quad(b, end, ext, half)
	}
}

func dot(b *Builder, at graphics.Point, half float64, cap graphics.LineCap) {
	switch cap {
	case graphics.RoundCap:
		b.Circle(at.X, at.Y, half)
	case graphics.SquareCap:
		quad(b, graphics.Point{X: at.X - half, Y: at.Y}, graphics.Point{X: at.X + half, Y: at.Y}, half)
	}
}
