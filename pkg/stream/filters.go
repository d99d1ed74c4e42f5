// Package stream decodes PDF stream data.
// A stream may carry a chain of filters (FlateDecode, ASCIIHexDecode,
// ASCII85Decode, LZWDecode, RunLengthDecode) each with its own
// decode parameters, applied in order.
package stream

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
)

// Filter names a stream filter.
type Filter string

const (
	FlateDecode     Filter = "FlateDecode"
	ASCIIHexDecode  Filter = "ASCIIHexDecode"
	ASCII85Decode   Filter = "ASCII85Decode"
	LZWDecode       Filter = "LZWDecode"
	RunLengthDecode Filter = "RunLengthDecode"
	DCTDecode       Filter = "DCTDecode"
	JPXDecode       Filter = "JPXDecode"
	CCITTFaxDecode  Filter = "CCITTFaxDecode"
)

// abbreviations used by inline images
var shortNames = map[string]Filter{
	"Fl":  FlateDecode,
	"AHx": ASCIIHexDecode,
	"A85": ASCII85Decode,
	"LZW": LZWDecode,
	"RL":  RunLengthDecode,
	"DCT": DCTDecode,
	"CCF": CCITTFaxDecode,
}

// ErrUnsupportedFilter is returned for filters this package cannot decode.
var ErrUnsupportedFilter = errors.New("stream: unsupported filter")

// Params holds the /DecodeParms entries the filters understand.
type Params struct {
	Predictor        int
	Colors           int
	BitsPerComponent int
	Columns          int
	EarlyChange      int
}

// DefaultParams returns the values PDF assumes when /DecodeParms is absent.
func DefaultParams() Params {
	return Params{
		Predictor:        1,
		Colors:           1,
		BitsPerComponent: 8,
		Columns:          1,
		EarlyChange:      1,
	}
}

// ParseFilter maps a filter name (full or abbreviated) to a Filter.
func ParseFilter(name string) Filter {
	if f, ok := shortNames[name]; ok {
		return f
	}
	return Filter(name)
}

// IsImageCodec reports whether f is left encoded for an image decoder.
func IsImageCodec(f Filter) bool {
	return f == DCTDecode || f == JPXDecode || f == CCITTFaxDecode
}

// Stage is one filter of a chain together with its parameters.
type Stage struct {
	Filter Filter
	Params Params
}

// DecodeChain runs data through every stage in order. Decoding stops
// early, returning the data so far, at the first image codec.
func DecodeChain(data []byte, stages []Stage) ([]byte, error) {
	out := data
	for i, st := range stages {
		if IsImageCodec(st.Filter) {
			return out, nil
		}
		var err error
		out, err = Decode(out, st.Filter, st.Params)
		if err != nil {
			return nil, fmt.Errorf("filter %d (%s): %w", i, st.Filter, err)
		}
	}
	return out, nil
}

// Decode applies a single filter followed by its predictor.
func Decode(data []byte, f Filter, p Params) ([]byte, error) {
	var (
		out []byte
		err error
	)
	switch f {
	case FlateDecode:
		out, err = Inflate(data)
	case ASCIIHexDecode:
		out, err = DecodeHex(data)
	case ASCII85Decode:
		out, err = Decode85(data)
	case LZWDecode:
		out, err = DecodeLZW(data, p.EarlyChange != 0)
	case RunLengthDecode:
		out, err = DecodeRunLength(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFilter, f)
	}
	if err != nil {
		return nil, err
	}
	if f == FlateDecode || f == LZWDecode {
		return Unpredict(out, p)
	}
	return out, nil
}

// Inflate decompresses zlib data. Truncated streams are common in the
// wild, so whatever was inflated before the error is kept.
func Inflate(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("flate: %w", err)
	}
	defer zr.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, zr); err != nil && buf.Len() == 0 {
		return nil, fmt.Errorf("flate: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeHex decodes ASCIIHexDecode data up to the '>' marker.
func DecodeHex(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(data)/2)
	var hi byte
	odd := false
	for _, c := range data {
		if c == '>' {
			break
		}
		if IsSpace(c) {
			continue
		}
		n, ok := hexNibble(c)
		if !ok {
			return nil, fmt.Errorf("hex: invalid byte %q", c)
		}
		if odd {
			out = append(out, hi<<4|n)
		} else {
			hi = n
		}
		odd = !odd
	}
	if odd {
		out = append(out, hi<<4)
	}
	return out, nil
}

func hexNibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// Decode85 decodes ASCII85Decode data up to the "~>" marker.
func Decode85(data []byte) ([]byte, error) {
	data = bytes.TrimPrefix(bytes.TrimSpace(data), []byte("<~"))
	out := make([]byte, 0, len(data)*4/5)
	var group uint32
	n := 0
	for _, c := range data {
		if c == '~' {
			break
		}
		if IsSpace(c) {
			continue
		}
		if c == 'z' {
			if n != 0 {
				return nil, errors.New("ascii85: 'z' inside a group")
			}
			out = append(out, 0, 0, 0, 0)
			continue
		}
		if c < '!' || c > 'u' {
			return nil, fmt.Errorf("ascii85: invalid byte %q", c)
		}
		group = group*85 + uint32(c-'!')
		n++
		if n == 5 {
			out = append(out, byte(group>>24), byte(group>>16), byte(group>>8), byte(group))
			group, n = 0, 0
		}
	}
	if n == 1 {
		return nil, errors.New("ascii85: truncated group")
	}
	if n > 1 {
		for i := n; i < 5; i++ {
			group = group*85 + 84
		}
		tail := []byte{byte(group >> 24), byte(group >> 16), byte(group >> 8)}
		out = append(out, tail[:n-1]...)
	}
	return out, nil
}

// DecodeRunLength decodes RunLengthDecode data.
func DecodeRunLength(data []byte) ([]byte, error) {
	var out []byte
	for i := 0; i < len(data); {
		n := int(data[i])
		i++
		switch {
		case n == 128:
			return out, nil
		case n < 128:
			end := i + n + 1
			if end > len(data) {
				end = len(data)
			}
			out = append(out, data[i:end]...)
			i = end
		default:
			if i >= len(data) {
				return out, nil
			}
			out = append(out, bytes.Repeat(data[i:i+1], 257-n)...)
			i++
		}
	}
	return out, nil
}

// IsSpace reports whether c is PDF white-space.
func IsSpace(c byte) bool {
	switch c {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}
