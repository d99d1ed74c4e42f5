package stream

import "fmt"

// Unpredict reverses the /Predictor transform applied before
// compression. Predictor 1 is the identity, 2 is TIFF horizontal
// differencing, 10 through 15 are PNG row filters.
func Unpredict(data []byte, p Params) ([]byte, error) {
	switch {
	case p.Predictor <= 1:
		return data, nil
	case p.Predictor == 2:
		return untiff(data, p), nil
	case p.Predictor >= 10 && p.Predictor <= 15:
		return unpng(data, p)
	}
	return nil, fmt.Errorf("predictor %d not supported", p.Predictor)
}

func geometry(p Params) (bpp, rowLen int) {
	colors, bpc, cols := p.Colors, p.BitsPerComponent, p.Columns
	if colors <= 0 {
		colors = 1
	}
	if bpc <= 0 {
		bpc = 8
	}
	if cols <= 0 {
		cols = 1
	}
	bpp = (colors*bpc + 7) / 8
	rowLen = (cols*colors*bpc + 7) / 8
	return bpp, rowLen
}

func untiff(data []byte, p Params) []byte {
	if p.BitsPerComponent != 0 && p.BitsPerComponent != 8 {
		return data
	}
	bpp, rowLen := geometry(p)
	out := append([]byte(nil), data...)
	for start := 0; start+rowLen <= len(out); start += rowLen {
		row := out[start : start+rowLen]
		for i := bpp; i < len(row); i++ {
			row[i] += row[i-bpp]
		}
	}
	return out
}

// unpng undoes PNG filtering. Every row starts with its own filter type
// byte regardless of which PNG predictor value was declared.
func unpng(data []byte, p Params) ([]byte, error) {
	bpp, rowLen := geometry(p)
	stride := rowLen + 1
	rows := len(data) / stride
	out := make([]byte, rows*rowLen)
	prior := make([]byte, rowLen)

	for r := 0; r < rows; r++ {
		in := data[r*stride : (r+1)*stride]
		cur := out[r*rowLen : (r+1)*rowLen]
		copy(cur, in[1:])
		switch in[0] {
		case 0:
		case 1:
			for i := bpp; i < rowLen; i++ {
				cur[i] += cur[i-bpp]
			}
		case 2:
			for i := range cur {
				cur[i] += prior[i]
			}
		case 3:
			for i := range cur {
				var left int
				if i >= bpp {
					left = int(cur[i-bpp])
				}
				cur[i] += byte((left + int(prior[i])) / 2)
			}
		case 4:
			for i := range cur {
				var a, c byte
				if i >= bpp {
					a, c = cur[i-bpp], prior[i-bpp]
				}
				cur[i] += paeth(a, prior[i], c)
			}
		default:
			return nil, fmt.Errorf("png predictor: bad row filter %d in row %d", in[0], r)
		}
		prior = cur
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := absInt(p-int(a)), absInt(p-int(b)), absInt(p-int(c))
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
