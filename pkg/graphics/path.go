package graphics

// PathOp is a path construction operation.
type PathOp int

const (
	MoveTo PathOp = iota
	LineTo
	CurveTo
	ClosePath
)

// Segment is one path operation. CurveTo carries three points, MoveTo
// and LineTo one, ClosePath none.
type Segment struct {
	Op     PathOp
	Points []Point
}

// FillRule selects how a path's interior is determined.
type FillRule int

const (
	NonZero FillRule = iota
	EvenOdd
)

// Path is a sequence of subpaths.
type Path struct {
	Segments []Segment
	cur      Point
	start    Point
}

// MoveTo starts a subpath.
func (p *Path) MoveTo(x, y float64) {
	p.cur = Point{x, y}
	p.start = p.cur
	p.Segments = append(p.Segments, Segment{Op: MoveTo, Points: []Point{p.cur}})
}

// LineTo appends a straight line.
func (p *Path) LineTo(x, y float64) {
	p.cur = Point{x, y}
	p.Segments = append(p.Segments, Segment{Op: LineTo, Points: []Point{p.cur}})
}

// CurveTo appends a cubic Bézier curve.
func (p *Path) CurveTo(x1, y1, x2, y2, x3, y3 float64) {
	p.cur = Point{x3, y3}
	p.Segments = append(p.Segments, Segment{Op: CurveTo, Points: []Point{{x1, y1}, {x2, y2}, p.cur}})
}

// Close closes the current subpath.
func (p *Path) Close() {
	p.cur = p.start
	p.Segments = append(p.Segments, Segment{Op: ClosePath})
}

// Rect appends a closed rectangle subpath.
func (p *Path) Rect(x, y, w, h float64) {
	p.MoveTo(x, y)
	p.LineTo(x+w, y)
	p.LineTo(x+w, y+h)
	p.LineTo(x, y+h)
	p.Close()
}

// Current returns the current point.
func (p *Path) Current() Point { return p.cur }

// Empty reports whether the path has no segments.
func (p *Path) Empty() bool { return len(p.Segments) == 0 }

// Reset clears the path for reuse.
func (p *Path) Reset() {
	p.Segments = p.Segments[:0]
	p.cur, p.start = Point{}, Point{}
}

// Transform returns a copy of p with every point mapped through m.
func (p *Path) Transform(m Matrix) *Path {
	out := &Path{Segments: make([]Segment, len(p.Segments))}
	for i, s := range p.Segments {
		pts := make([]Point, len(s.Points))
		for j, pt := range s.Points {
			pts[j].X, pts[j].Y = m.Apply(pt.X, pt.Y)
		}
		out.Segments[i] = Segment{Op: s.Op, Points: pts}
	}
	out.cur.X, out.cur.Y = m.Apply(p.cur.X, p.cur.Y)
	out.start.X, out.start.Y = m.Apply(p.start.X, p.start.Y)
	return out
}

// Bounds returns the bounding box of all points, control points included.
func (p *Path) Bounds() Rect {
	first := true
	var x0, y0, x1, y1 float64
	for _, s := range p.Segments {
		for _, pt := range s.Points {
			if first {
				x0, y0, x1, y1 = pt.X, pt.Y, pt.X, pt.Y
				first = false
				continue
			}
			if pt.X < x0 {
				x0 = pt.X
			}
			if pt.X > x1 {
				x1 = pt.X
			}
			if pt.Y < y0 {
				y0 = pt.Y
			}
			if pt.Y > y1 {
				y1 = pt.Y
			}
		}
	}
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}
