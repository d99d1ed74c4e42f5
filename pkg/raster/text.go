package raster

import (
	"image"
	"math"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"

	"github.com/jeremiesigrist/visu-pdf-pages/pkg/graphics"
)

// ascent is the share of the font size above the baseline used to place
// overlay boxes.
const ascent = 0.8

// Fragment is a text run positioned in raster pixels. X and Y are the
// top-left corner of its box.
type Fragment struct {
	Text     string  `json:"text"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	FontSize float64 `json:"fontSize"`
}

// Fragments lays text runs out in the device space given by m.
func Fragments(runs []graphics.TextRun, m graphics.Matrix) []Fragment {
	out := make([]Fragment, 0, len(runs))
	// lengths scale by the device matrix determinant root
	scale := math.Sqrt(math.Abs(m[0]*m[3] - m[1]*m[2]))
	for _, r := range runs {
		if r.Text == "" {
			continue
		}
		x, y := m.Apply(r.X, r.Y)
		size := r.Size * scale
		out = append(out, Fragment{
			Text:     r.Text,
			X:        x,
			Y:        y - size*ascent,
			Width:    r.Width * scale,
			Height:   size,
			FontSize: size,
		})
	}
	return out
}

// JoinText joins run texts with single spaces, the form search matches
// against.
func JoinText(runs []graphics.TextRun) string {
	parts := make([]string, 0, len(runs))
	for _, r := range runs {
		parts = append(parts, r.Text)
	}
	return strings.Join(parts, " ")
}

var (
	fallbackOnce sync.Once
	fallback     *opentype.Font
	fallbackErr  error
	metricsMu    sync.Mutex
	metricsBuf   sfnt.Buffer
)

func fallbackFont() (*opentype.Font, error) {
	fallbackOnce.Do(func() {
		fallback, fallbackErr = opentype.Parse(goregular.TTF)
	})
	return fallback, fallbackErr
}

// FallbackWidth measures text in the fallback face, in 1/1000 em. It is
// used for fonts that do not declare their widths.
func FallbackWidth(text string) float64 {
	f, err := fallbackFont()
	if err != nil {
		return 500 * float64(len([]rune(text)))
	}
	metricsMu.Lock()
	defer metricsMu.Unlock()

	var total fixed.Int26_6
	for _, r := range text {
		idx, err := f.GlyphIndex(&metricsBuf, r)
		if err != nil || idx == 0 {
			total += fixed.I(500)
			continue
		}
		adv, err := f.GlyphAdvance(&metricsBuf, idx, fixed.I(1000), font.HintingNone)
		if err != nil {
			adv = fixed.I(500)
		}
		total += adv
	}
	return float64(total) / 64
}

// glyphPainter draws shown text with the fallback face. Faces are cached
// per pixel size for the lifetime of one page render.
type glyphPainter struct {
	font  *opentype.Font
	faces map[int]font.Face
}

func newGlyphPainter() *glyphPainter {
	f, err := fallbackFont()
	if err != nil {
		return &glyphPainter{}
	}
	return &glyphPainter{font: f, faces: map[int]font.Face{}}
}

func (g *glyphPainter) face(px float64) font.Face {
	key := int(math.Round(px * 2))
	if f, ok := g.faces[key]; ok {
		return f
	}
	f, err := opentype.NewFace(g.font, &opentype.FaceOptions{
		Size:    float64(key) / 2,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil
	}
	g.faces[key] = f
	return f
}

// Draw paints the glyphs of run; dev maps page space to device pixels.
func (g *glyphPainter) Draw(dst *image.RGBA, run graphics.TextRun, dev graphics.Matrix, alpha float64) {
	// modes 3 and 7 are invisible
	if g.font == nil || run.Mode == 3 || run.Mode == 7 {
		return
	}
	src := image.NewUniform(run.Color.NRGBA(alpha))
	for _, gl := range run.Glyphs {
		if strings.TrimSpace(gl.Text) == "" {
			continue
		}
		trm := gl.Trm.Multiply(dev)
		px := trm.ScaleY()
		if px < 1 || px > 2000 {
			continue
		}
		face := g.face(px)
		if face == nil {
			continue
		}
		x, y := trm.Apply(0, 0)
		d := font.Drawer{Dst: dst, Src: src, Face: face, Dot: fixed.Point26_6{
			X: fixed.Int26_6(x * 64),
			Y: fixed.Int26_6(y * 64),
		}}
		d.DrawString(gl.Text)
	}
}

func (g *glyphPainter) Close() {
	for _, f := range g.faces {
		f.Close()
	}
}
