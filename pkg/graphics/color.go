package graphics

import (
	"image/color"
	"math"
)

// Color is a device colour already converted to RGB, components in [0, 1].
type Color struct {
	R, G, B float64
}

// Black is the initial fill and stroke colour.
var Black = Color{}

// Gray returns a DeviceGray colour.
func Gray(g float64) Color { return Color{g, g, g} }

// RGB returns a DeviceRGB colour.
func RGB(r, g, b float64) Color { return Color{r, g, b} }

// CMYK converts a DeviceCMYK colour with the naive complement formula.
func CMYK(c, m, y, k float64) Color {
	return Color{
		R: (1 - c) * (1 - k),
		G: (1 - m) * (1 - k),
		B: (1 - y) * (1 - k),
	}
}

// fromComponents guesses the colour space from the operand count, which
// is how sc/scn and the colour setting of unknown spaces are handled.
func fromComponents(v []float64) Color {
	switch len(v) {
	case 1:
		return Gray(v[0])
	case 3:
		return RGB(v[0], v[1], v[2])
	case 4:
		return CMYK(v[0], v[1], v[2], v[3])
	}
	return Black
}

// NRGBA returns the colour with alpha a in [0, 1].
func (c Color) NRGBA(a float64) color.NRGBA {
	return color.NRGBA{R: unit(c.R), G: unit(c.G), B: unit(c.B), A: unit(a)}
}

func unit(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, v)) * 255))
}
