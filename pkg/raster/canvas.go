// Package raster paints interpreted PDF pages onto RGBA images.
package raster

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/vector"

	"github.com/jeremiesigrist/visu-pdf-pages/pkg/graphics"
	pathpkg "github.com/jeremiesigrist/visu-pdf-pages/pkg/path"
)

// Canvas is a drawing surface in device pixels, origin top left.
type Canvas struct {
	img    *image.RGBA
	width  int
	height int
	ras    *vector.Rasterizer
}

// NewCanvas returns a white canvas.
func NewCanvas(width, height int) *Canvas {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	return &Canvas{
		img:    img,
		width:  width,
		height: height,
		ras:    vector.NewRasterizer(width, height),
	}
}

// Image returns the underlying RGBA image.
func (c *Canvas) Image() *image.RGBA { return c.img }

// Width returns the canvas width in pixels.
func (c *Canvas) Width() int { return c.width }

// Height returns the canvas height in pixels.
func (c *Canvas) Height() int { return c.height }

// Fill paints the interior of a device-space path. The rasterizer only
// knows the non-zero rule, so even-odd fills are painted non-zero.
func (c *Canvas) Fill(p *graphics.Path, col color.NRGBA, _ graphics.FillRule) {
	if p.Empty() || col.A == 0 {
		return
	}
	b := p.Bounds()
	if b.X > float64(c.width) || b.Y > float64(c.height) || b.X+b.W < 0 || b.Y+b.H < 0 {
		return
	}
	c.ras.Reset(c.width, c.height)
	pathpkg.ToVector(p, c.ras)
	c.ras.Draw(c.img, c.img.Bounds(), image.NewUniform(col), image.Point{})
}

// Stroke paints the outline of a device-space path with a width in
// pixels. Hairlines are widened to one pixel.
func (c *Canvas) Stroke(p *graphics.Path, col color.NRGBA, width float64, cap graphics.LineCap) {
	if p.Empty() {
		return
	}
	if width < 1 {
		width = 1
	}
	c.Fill(pathpkg.Stroke(p, width, cap), col, graphics.NonZero)
}

// DrawImage paints img so that m maps image pixels to device pixels.
func (c *Canvas) DrawImage(img image.Image, m graphics.Matrix) {
	s2d := f64.Aff3{m[0], m[2], m[4], m[1], m[3], m[5]}
	draw.BiLinear.Transform(c.img, s2d, img, img.Bounds(), draw.Over, nil)
}
