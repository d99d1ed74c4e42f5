package raster

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/jeremiesigrist/visu-pdf-pages/pkg/cos"
	"github.com/jeremiesigrist/visu-pdf-pages/pkg/graphics"
)

// US Letter, used when a page has no usable MediaBox.
var defaultBox = graphics.Rect{W: 612, H: 792}

// Raster size limits.
const (
	MaxSide   = 8192
	MaxPixels = 32 << 20
)

// ErrTooLarge is returned for a raster beyond MaxSide or MaxPixels.
var ErrTooLarge = errors.New("raster: page too large")

// CheckSize reports whether a w x h pixel raster, before rounding, is
// within the limits.
func CheckSize(w, h float64) error {
	if !(w <= MaxSide && h <= MaxSide) || math.Round(w)*math.Round(h) > MaxPixels {
		return fmt.Errorf("%w: %.0fx%.0f pixels", ErrTooLarge, w, h)
	}
	return nil
}

// Page is a page prepared for painting.
type Page struct {
	Box       graphics.Rect // crop box, default user space
	Rotate    int           // 0, 90, 180 or 270
	Resources cos.Dict
	Content   []byte
}

// Size returns the displayed size in PDF units, rotation applied.
func (p *Page) Size() (w, h float64) {
	if p.Rotate == 90 || p.Rotate == 270 {
		return p.Box.H, p.Box.W
	}
	return p.Box.W, p.Box.H
}

// Device returns the matrix mapping default user space to device pixels
// at the given scale, origin top left.
func (p *Page) Device(scale float64) graphics.Matrix {
	w, h := p.Box.W, p.Box.H
	var rot graphics.Matrix
	switch p.Rotate {
	case 90:
		rot = graphics.Matrix{0, 1, 1, 0, 0, 0}
	case 180:
		rot = graphics.Matrix{-1, 0, 0, 1, w, 0}
	case 270:
		rot = graphics.Matrix{0, -1, -1, 0, h, w}
	default:
		rot = graphics.Matrix{1, 0, 0, -1, 0, h}
	}
	return graphics.Translate(-p.Box.X, -p.Box.Y).Multiply(rot).Multiply(graphics.Scale(scale, scale))
}

// Result is a painted page.
type Result struct {
	Image  *image.RGBA
	Runs   []graphics.TextRun // default user space
	Device graphics.Matrix
	Scale  float64
}

// Renderer paints the pages of one document.
type Renderer struct {
	reader *cos.Reader
	// Glyphs enables drawing shown text onto the raster.
	Glyphs bool
}

// NewRenderer returns a renderer for reader.
func NewRenderer(reader *cos.Reader) *Renderer {
	return &Renderer{reader: reader, Glyphs: true}
}

// PageCount returns the number of pages.
func (r *Renderer) PageCount() (int, error) {
	return r.reader.PageCount()
}

// Geometry loads the box and rotation of page i (0-based) without
// reading its content.
func (r *Renderer) Geometry(i int) (*Page, error) {
	d, err := r.reader.Page(i)
	if err != nil {
		return nil, err
	}
	return r.geometry(d), nil
}

func (r *Renderer) geometry(d cos.Dict) *Page {
	p := &Page{Box: r.box(d, "CropBox")}
	if p.Box.W <= 0 || p.Box.H <= 0 {
		p.Box = r.box(d, "MediaBox")
	}
	if p.Box.W <= 0 || p.Box.H <= 0 {
		p.Box = defaultBox
	}
	if rot, ok := r.reader.ResolveNumber(d.Get("Rotate")); ok {
		p.Rotate = ((int(rot)%360 + 360) % 360) / 90 * 90
	}
	return p
}

// Page loads page i (0-based) with its box, rotation and content.
func (r *Renderer) Page(i int) (*Page, error) {
	d, err := r.reader.Page(i)
	if err != nil {
		return nil, err
	}
	p := r.geometry(d)
	if res, err := r.reader.ResolveDict(d.Get("Resources")); err == nil {
		p.Resources = res
	}
	p.Content, err = r.reader.PageContents(d)
	if err != nil {
		return nil, fmt.Errorf("page %d contents: %w", i+1, err)
	}
	return p, nil
}

func (r *Renderer) box(d cos.Dict, key cos.Name) graphics.Rect {
	arr, err := r.reader.ResolveArray(d.Get(key))
	if err != nil || len(arr) < 4 {
		return graphics.Rect{}
	}
	var v [4]float64
	for i := range v {
		n, ok := r.reader.ResolveNumber(arr[i])
		if !ok {
			return graphics.Rect{}
		}
		v[i] = n
	}
	return graphics.RectFromCorners(v[0], v[1], v[2], v[3])
}

// Render paints p at scale. Raster dimensions are the rounded scaled
// page size.
func (r *Renderer) Render(ctx context.Context, p *Page, scale float64) (*Result, error) {
	w, h := p.Size()
	if err := CheckSize(w*scale, h*scale); err != nil {
		return nil, err
	}
	pw := max(1, int(math.Round(w*scale)))
	ph := max(1, int(math.Round(h*scale)))
	dev := p.Device(scale)
	canvas := NewCanvas(pw, ph)
	glyphs := newGlyphPainter()
	defer glyphs.Close()

	res := &Result{Device: dev, Scale: scale}
	in := graphics.NewInterpreter(r.reader)
	in.Widths = FallbackWidth
	in.OnFill = func(path *graphics.Path, st *graphics.State, rule graphics.FillRule) {
		canvas.Fill(path.Transform(dev), st.Fill.NRGBA(st.FillAlpha), rule)
	}
	in.OnStroke = func(path *graphics.Path, st *graphics.State) {
		// line width scales with the CTM
		width := st.LineWidth * math.Sqrt(math.Abs(st.CTM[0]*st.CTM[3]-st.CTM[1]*st.CTM[2])) * scale
		canvas.Stroke(path.Transform(dev), st.Stroke.NRGBA(st.StrokeAlpha), width, st.LineCap)
	}
	in.OnText = func(run graphics.TextRun) {
		res.Runs = append(res.Runs, run)
		if r.Glyphs {
			glyphs.Draw(canvas.Image(), run, dev, 1)
		}
	}
	in.OnImage = func(img image.Image, m graphics.Matrix, _ *graphics.State) {
		b := img.Bounds()
		if b.Dx() == 0 || b.Dy() == 0 {
			return
		}
		toUnit := graphics.Matrix{1 / float64(b.Dx()), 0, 0, -1 / float64(b.Dy()), 0, 1}
		canvas.DrawImage(img, graphics.Translate(-float64(b.Min.X), -float64(b.Min.Y)).Multiply(toUnit).Multiply(m).Multiply(dev))
	}

	if err := in.Run(ctx, p.Content, p.Resources); err != nil {
		return nil, err
	}
	res.Image = canvas.Image()
	return res, nil
}

// Text interprets p without painting and returns its text runs.
func (r *Renderer) Text(ctx context.Context, p *Page) ([]graphics.TextRun, error) {
	var runs []graphics.TextRun
	in := graphics.NewInterpreter(r.reader)
	in.Widths = FallbackWidth
	in.OnText = func(run graphics.TextRun) { runs = append(runs, run) }
	if err := in.Run(ctx, p.Content, p.Resources); err != nil {
		return nil, err
	}
	return runs, nil
}
