package stream

import "fmt"

const (
	lzwClear = 256
	lzwEOD   = 257
	lzwMax   = 4096
)

// DecodeLZW decodes LZWDecode data. With earlyChange set the code
// width grows one code early, which is the PDF default.
func DecodeLZW(data []byte, earlyChange bool) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	br := bitReader{data: data}
	dict := make([][]byte, 258, lzwMax)
	resetDict := func() {
		dict = dict[:258]
		for i := 0; i < 256; i++ {
			dict[i] = []byte{byte(i)}
		}
	}
	resetDict()

	var (
		out   []byte
		prev  []byte
		width = 9
	)
	for {
		code, ok := br.read(width)
		if !ok || code == lzwEOD {
			return out, nil
		}
		if code == lzwClear {
			resetDict()
			width = 9
			prev = nil
			continue
		}

		var entry []byte
		switch {
		case code < len(dict) && dict[code] != nil:
			entry = dict[code]
		case code == len(dict) && prev != nil:
			entry = append(append([]byte{}, prev...), prev[0])
		default:
			return nil, fmt.Errorf("lzw: bad code %d", code)
		}
		out = append(out, entry...)

		if prev != nil && len(dict) < lzwMax {
			next := make([]byte, len(prev)+1)
			copy(next, prev)
			next[len(prev)] = entry[0]
			dict = append(dict, next)
		}
		prev = entry

		limit := 1 << width
		if earlyChange {
			limit--
		}
		if len(dict) >= limit && width < 12 {
			width++
		}
	}
}

// bitReader reads MSB-first codes of varying width.
type bitReader struct {
	data []byte
	acc  uint32
	bits int
	pos  int
}

func (r *bitReader) read(width int) (int, bool) {
	for r.bits < width {
		if r.pos >= len(r.data) {
			return 0, false
		}
		r.acc = r.acc<<8 | uint32(r.data[r.pos])
		r.pos++
		r.bits += 8
	}
	r.bits -= width
	code := int(r.acc>>uint(r.bits)) & (1<<width - 1)
	return code, true
}
