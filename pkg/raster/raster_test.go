package raster

import (
	"context"
	"fmt"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremiesigrist/visu-pdf-pages/internal/pdftest"
	"github.com/jeremiesigrist/visu-pdf-pages/pkg/cos"
	"github.com/jeremiesigrist/visu-pdf-pages/pkg/graphics"
)

func renderer(t *testing.T, pages ...pdftest.Page) *Renderer {
	t.Helper()
	r, err := cos.NewReader(pdftest.Build(pdftest.Options{Compress: true}, pages...))
	require.NoError(t, err)
	return NewRenderer(r)
}

func TestRenderSizeAndFill(t *testing.T) {
	page := pdftest.Letter()
	page.Box = []float64{100, 600, 200, 100}
	r := renderer(t, page)

	p, err := r.Page(0)
	require.NoError(t, err)
	w, h := p.Size()
	assert.Equal(t, 612.0, w)
	assert.Equal(t, 792.0, h)

	res, err := r.Render(context.Background(), p, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 306, res.Image.Bounds().Dx())
	assert.Equal(t, 396, res.Image.Bounds().Dy())

	// box spans x 50..150, y (792-700)/2=46 .. (792-600)/2=96 in pixels
	grey := res.Image.RGBAAt(100, 70)
	assert.InDelta(t, 128, int(grey.R), 1)
	assert.Equal(t, grey.R, grey.B)
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, res.Image.RGBAAt(10, 10))
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, res.Image.RGBAAt(100, 120))
}

func TestRenderRoundsDimensions(t *testing.T) {
	r := renderer(t, pdftest.Page{Width: 100, Height: 33})
	p, err := r.Page(0)
	require.NoError(t, err)
	res, err := r.Render(context.Background(), p, 1.01)
	require.NoError(t, err)
	assert.Equal(t, 101, res.Image.Bounds().Dx())
	assert.Equal(t, 33, res.Image.Bounds().Dy())
}

func TestTextRunsAndFragments(t *testing.T) {
	r := renderer(t, pdftest.Letter("Hello", "World"))
	p, err := r.Page(0)
	require.NoError(t, err)

	res, err := r.Render(context.Background(), p, 0.5)
	require.NoError(t, err)
	require.Len(t, res.Runs, 2)
	assert.Equal(t, "Hello World", JoinText(res.Runs))

	frags := Fragments(res.Runs, res.Device)
	require.Len(t, frags, 2)
	assert.Equal(t, "Hello", frags[0].Text)
	assert.InDelta(t, 36, frags[0].X, 1e-9)
	assert.InDelta(t, 6, frags[0].FontSize, 1e-9)
	assert.InDelta(t, 36-6*ascent, frags[0].Y, 1e-9)
	// second line is 14pt lower
	assert.InDelta(t, frags[0].Y+7, frags[1].Y, 1e-9)
	assert.Greater(t, frags[0].Width, 0.0)
}

func TestGlyphsPainted(t *testing.T) {
	r := renderer(t, pdftest.Letter("MMMMMMMM"))
	p, err := r.Page(0)
	require.NoError(t, err)

	dark := func(glyphs bool) int {
		r.Glyphs = glyphs
		res, err := r.Render(context.Background(), p, 2)
		require.NoError(t, err)
		n := 0
		for y := 2 * 60; y < 2*75; y++ {
			for x := 2 * 70; x < 2*150; x++ {
				if res.Image.RGBAAt(x, y).R < 128 {
					n++
				}
			}
		}
		return n
	}
	assert.Greater(t, dark(true), 50)
	assert.Zero(t, dark(false))
}

func TestRotatedPage(t *testing.T) {
	r := renderer(t, pdftest.Page{Width: 200, Height: 100, Rotate: 90})
	p, err := r.Page(0)
	require.NoError(t, err)
	assert.Equal(t, 90, p.Rotate)

	w, h := p.Size()
	assert.Equal(t, 100.0, w)
	assert.Equal(t, 200.0, h)

	dev := p.Device(2)
	x, y := dev.Apply(0, 0)
	assert.InDelta(t, 0, x, 1e-9)
	assert.InDelta(t, 0, y, 1e-9)
	x, y = dev.Apply(0, 100)
	assert.InDelta(t, 200, x, 1e-9)
	assert.InDelta(t, 0, y, 1e-9)
	x, y = dev.Apply(200, 0)
	assert.InDelta(t, 0, x, 1e-9)
	assert.InDelta(t, 400, y, 1e-9)
}

func TestGeometrySkipsContent(t *testing.T) {
	r := renderer(t, pdftest.Page{Width: 595.28, Height: 841.89, Rotate: 270, Lines: []string{"x"}})
	p, err := r.Geometry(0)
	require.NoError(t, err)
	assert.Nil(t, p.Content)
	w, h := p.Size()
	assert.Equal(t, 841.89, w)
	assert.Equal(t, 595.28, h)

	_, err = r.Geometry(1)
	assert.Error(t, err)
}

func TestCheckSize(t *testing.T) {
	tests := []struct {
		name string
		w, h float64
		ok   bool
	}{
		{"letter", 900, 1165, true},
		{"side limit", MaxSide, 100, true},
		{"pixel limit", 8000, 8000, false},
		{"past side", MaxSide + 1, 10, false},
		{"tall strip", 900, 9e8, false},
		{"wide strip", 1e9, 2, false},
		{"nan", math.NaN(), 10, false},
		{"inf", 10, math.Inf(1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckSize(tt.w, tt.h)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrTooLarge)
			}
		})
	}
}

func TestRenderRejectsOversizedPage(t *testing.T) {
	r := renderer(t, pdftest.Page{Width: 1, Height: 999999})
	p, err := r.Page(0)
	require.NoError(t, err)
	_, err = r.Render(context.Background(), p, 900)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestDeviceMatrixUpright(t *testing.T) {
	p := &Page{Box: graphics.Rect{X: 10, Y: 20, W: 100, H: 50}}
	x, y := p.Device(1).Apply(10, 70)
	assert.InDelta(t, 0, x, 1e-9)
	assert.InDelta(t, 0, y, 1e-9)

	p.Rotate = 180
	x, y = p.Device(1).Apply(10, 20)
	assert.InDelta(t, 100, x, 1e-9)
	assert.InDelta(t, 0, y, 1e-9)

	p.Rotate = 270
	x, y = p.Device(1).Apply(110, 70)
	assert.InDelta(t, 0, x, 1e-9)
	assert.InDelta(t, 0, y, 1e-9)
}

func TestRenderCanceled(t *testing.T) {
	lines := make([]string, 100)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %d", i)
	}
	r := renderer(t, pdftest.Letter(lines...))
	p, err := r.Page(0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Render(ctx, p, 1)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = r.Text(ctx, p)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPageOutOfRange(t *testing.T) {
	r := renderer(t, pdftest.Letter())
	_, err := r.Page(3)
	assert.Error(t, err)
}

func TestFallbackWidth(t *testing.T) {
	assert.Zero(t, FallbackWidth(""))
	assert.Less(t, FallbackWidth("i"), FallbackWidth("W"))
	assert.Greater(t, FallbackWidth("W"), 0.0)
}
