package graphics

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	"github.com/jeremiesigrist/visu-pdf-pages/pkg/cos"
	"github.com/jeremiesigrist/visu-pdf-pages/pkg/stream"
)

var errUnsupportedImage = errors.New("graphics: unsupported image")

// decodeImage turns an image XObject into an image. Image masks are
// painted with fill.
func decodeImage(res Resolver, s *cos.Stream, fill Color) (image.Image, error) {
	data, err := res.Decode(s)
	if err != nil {
		return nil, err
	}
	if last := lastFilter(res, s.Dict); last == stream.DCTDecode {
		return jpeg.Decode(bytes.NewReader(data))
	} else if stream.IsImageCodec(last) {
		return nil, fmt.Errorf("%w: %s", errUnsupportedImage, last)
	}

	w, _ := s.Dict.Int("Width")
	h, _ := s.Dict.Int("Height")
	if w <= 0 || h <= 0 || w > 1<<14 || h > 1<<14 {
		return nil, fmt.Errorf("%w: size %dx%d", errUnsupportedImage, w, h)
	}
	bpc, ok := s.Dict.Int("BitsPerComponent")
	if !ok {
		bpc = 8
	}

	if mask, _ := s.Dict.Get("ImageMask").(cos.Boolean); mask {
		return stencil(data, w, h, fill), nil
	}

	cs, _ := res.Resolve(s.Dict.Get("ColorSpace"))
	space, palette := colorSpace(res, cs)
	if palette != nil {
		return indexed(data, w, h, bpc, palette)
	}
	if bpc == 1 && space == 1 {
		return bilevel(data, w, h), nil
	}
	if bpc != 8 {
		return nil, fmt.Errorf("%w: %d bits per component", errUnsupportedImage, bpc)
	}
	if len(data) < w*h*space {
		return nil, fmt.Errorf("%w: short sample data", errUnsupportedImage)
	}

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < w*h; i++ {
		px := data[i*space : i*space+space]
		var c color.NRGBA
		switch space {
		case 1:
			c = color.NRGBA{px[0], px[0], px[0], 0xff}
		case 3:
			c = color.NRGBA{px[0], px[1], px[2], 0xff}
		case 4:
			r, g, b := color.CMYKToRGB(px[0], px[1], px[2], px[3])
			c = color.NRGBA{r, g, b, 0xff}
		}
		img.Pix[i*4], img.Pix[i*4+1], img.Pix[i*4+2], img.Pix[i*4+3] = c.R, c.G, c.B, c.A
	}
	return img, nil
}

func lastFilter(res Resolver, d cos.Dict) stream.Filter {
	v, _ := res.Resolve(d.Get("Filter"))
	switch f := v.(type) {
	case cos.Name:
		return stream.ParseFilter(string(f))
	case cos.Array:
		if len(f) > 0 {
			if n, ok := f[len(f)-1].(cos.Name); ok {
				return stream.ParseFilter(string(n))
			}
		}
	}
	return ""
}

// colorSpace returns the number of components, and for Indexed spaces
// the palette expanded to RGB.
func colorSpace(res Resolver, cs cos.Object) (int, []color.NRGBA) {
	switch v := cs.(type) {
	case cos.Name:
		switch v {
		case "DeviceRGB", "CalRGB", "RGB":
			return 3, nil
		case "DeviceCMYK", "CMYK":
			return 4, nil
		}
		return 1, nil
	case cos.Array:
		if len(v) == 0 {
			return 1, nil
		}
		kind, _ := v[0].(cos.Name)
		switch kind {
		case "ICCBased":
			if len(v) > 1 {
				if o, err := res.Resolve(v[1]); err == nil {
					if s, ok := o.(*cos.Stream); ok {
						if n, ok := s.Dict.Int("N"); ok && (n == 1 || n == 3 || n == 4) {
							return n, nil
						}
					}
				}
			}
			return 3, nil
		case "CalRGB", "Lab":
			return 3, nil
		case "Indexed", "I":
			if len(v) < 4 {
				return 1, nil
			}
			base, _ := res.Resolve(v[1])
			n, _ := colorSpace(res, base)
			lookup, _ := res.Resolve(v[3])
			var table []byte
			switch l := lookup.(type) {
			case cos.String:
				table = []byte(l)
			case *cos.Stream:
				table, _ = res.Decode(l)
			}
			var pal []color.NRGBA
			for i := 0; i+n <= len(table); i += n {
				c := table[i : i+n]
				switch n {
				case 1:
					pal = append(pal, color.NRGBA{c[0], c[0], c[0], 0xff})
				case 3:
					pal = append(pal, color.NRGBA{c[0], c[1], c[2], 0xff})
				case 4:
					r, g, b := color.CMYKToRGB(c[0], c[1], c[2], c[3])
					pal = append(pal, color.NRGBA{r, g, b, 0xff})
				}
			}
			if len(pal) == 0 {
				pal = []color.NRGBA{{0, 0, 0, 0xff}}
			}
			return 1, pal
		}
	}
	return 1, nil
}

// sample reads the i-th bpc-bit sample of a row.
func sample(row []byte, i, bpc int) int {
	bit := i * bpc
	if bit/8 >= len(row) {
		return 0
	}
	switch bpc {
	case 8:
		return int(row[i])
	case 1, 2, 4:
		shift := 8 - bpc - bit%8
		return int(row[bit/8]>>shift) & (1<<bpc - 1)
	}
	return 0
}

func indexed(data []byte, w, h, bpc int, pal []color.NRGBA) (image.Image, error) {
	if bpc != 1 && bpc != 2 && bpc != 4 && bpc != 8 {
		return nil, fmt.Errorf("%w: indexed with %d bits", errUnsupportedImage, bpc)
	}
	stride := (w*bpc + 7) / 8
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h && (y+1)*stride <= len(data); y++ {
		row := data[y*stride : (y+1)*stride]
		for x := 0; x < w; x++ {
			idx := sample(row, x, bpc)
			if idx >= len(pal) {
				idx = len(pal) - 1
			}
			img.SetNRGBA(x, y, pal[idx])
		}
	}
	return img, nil
}

func bilevel(data []byte, w, h int) image.Image {
	stride := (w + 7) / 8
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h && (y+1)*stride <= len(data); y++ {
		row := data[y*stride : (y+1)*stride]
		for x := 0; x < w; x++ {
			if sample(row, x, 1) == 1 {
				img.Pix[y*img.Stride+x] = 0xff
			}
		}
	}
	return img
}

// stencil paints fill where a sample is 0, the default decode for masks.
func stencil(data []byte, w, h int, fill Color) image.Image {
	stride := (w + 7) / 8
	c := fill.NRGBA(1)
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h && (y+1)*stride <= len(data); y++ {
		row := data[y*stride : (y+1)*stride]
		for x := 0; x < w; x++ {
			if sample(row, x, 1) == 0 {
				img.SetNRGBA(x, y, c)
			}
		}
	}
	return img
}
