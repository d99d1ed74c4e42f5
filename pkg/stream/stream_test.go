package stream

import (
	"bytes"
	"compress/zlib"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deflate(t *testing.T, b []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write(b)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func pack9(codes ...int) []byte {
	var (
		out  []byte
		acc  uint64
		bits int
	)
	for _, c := range codes {
		acc = acc<<9 | uint64(c)
		bits += 9
		for bits >= 8 {
			bits -= 8
			out = append(out, byte(acc>>uint(bits)))
		}
	}
	if bits > 0 {
		out = append(out, byte(acc<<uint(8-bits)))
	}
	return out
}

func TestInflate(t *testing.T) {
	got, err := Inflate(deflate(t, []byte("BT /F1 12 Tf (Hello) Tj ET")))
	require.NoError(t, err)
	assert.Equal(t, "BT /F1 12 Tf (Hello) Tj ET", string(got))
}

func TestInflateGarbage(t *testing.T) {
	_, err := Inflate([]byte("not zlib at all"))
	assert.Error(t, err)
}

func TestDecodeHex(t *testing.T) {
	got, err := DecodeHex([]byte("48 65 6c\n6C 6f>"))
	require.NoError(t, err)
	assert.Equal(t, "Hello", string(got))

	got, err = DecodeHex([]byte("414>"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x41, 0x40}, got)

	_, err = DecodeHex([]byte("4G"))
	assert.Error(t, err)
}

func TestDecode85(t *testing.T) {
	got, err := Decode85([]byte("<~87cURD]i,\"Ebo80~>"))
	require.NoError(t, err)
	assert.Equal(t, "Hello World!", string(got))

	got, err = Decode85([]byte("z~>"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0}, got)
}

func TestDecodeRunLength(t *testing.T) {
	in := []byte{2, 'a', 'b', 'c', 254, 'x', 128, 'z'}
	got, err := DecodeRunLength(in)
	require.NoError(t, err)
	assert.Equal(t, "abcxxx", string(got))
}

func TestDecodeLZW(t *testing.T) {
	// A B <AB> EOD
	got, err := DecodeLZW(pack9('A', 'B', 258, lzwEOD), true)
	require.NoError(t, err)
	assert.Equal(t, "ABAB", string(got))

	// the code-not-yet-in-table case: A <AA>
	got, err = DecodeLZW(pack9('A', 258, lzwEOD), true)
	require.NoError(t, err)
	assert.Equal(t, "AAA", string(got))

	_, err = DecodeLZW(pack9('A', 300), true)
	assert.Error(t, err)
}

func TestUnpredictPNG(t *testing.T) {
	// two rows of 3 bytes: Sub then Up
	in := []byte{
		1, 10, 5, 5,
		2, 1, 1, 1,
	}
	got, err := Unpredict(in, Params{Predictor: 12, Colors: 1, BitsPerComponent: 8, Columns: 3})
	require.NoError(t, err)
	assert.Equal(t, []byte{10, 15, 20, 11, 16, 21}, got)

	_, err = Unpredict([]byte{9, 0}, Params{Predictor: 12, Columns: 1})
	assert.Error(t, err)
}

func TestUnpredictTIFF(t *testing.T) {
	got, err := Unpredict([]byte{1, 1, 1, 5, 1, 1}, Params{Predictor: 2, Colors: 1, BitsPerComponent: 8, Columns: 3})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 5, 6, 7}, got)
}

func TestDecodeChain(t *testing.T) {
	raw := deflate(t, []byte("q 1 0 0 1 0 0 cm Q"))
	var hex bytes.Buffer
	for _, b := range raw {
		hex.WriteString(string("0123456789abcdef"[b>>4]))
		hex.WriteString(string("0123456789abcdef"[b&15]))
	}
	hex.WriteByte('>')

	got, err := DecodeChain(hex.Bytes(), []Stage{
		{Filter: ASCIIHexDecode, Params: DefaultParams()},
		{Filter: FlateDecode, Params: DefaultParams()},
	})
	require.NoError(t, err)
	assert.Equal(t, "q 1 0 0 1 0 0 cm Q", string(got))
}

func TestDecodeChainStopsAtImageCodec(t *testing.T) {
	jpeg := []byte{0xff, 0xd8, 0xff}
	got, err := DecodeChain(jpeg, []Stage{{Filter: ParseFilter("DCT")}})
	require.NoError(t, err)
	assert.Equal(t, jpeg, got)
}

func TestUnsupportedFilter(t *testing.T) {
	_, err := Decode([]byte("x"), Filter("JBIG2Decode"), DefaultParams())
	assert.ErrorIs(t, err, ErrUnsupportedFilter)
}
