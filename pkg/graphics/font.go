package graphics

import (
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/jeremiesigrist/visu-pdf-pages/pkg/cos"
)

// Resolver is the object access the interpreter needs. *cos.Reader
// implements it.
type Resolver interface {
	Resolve(cos.Object) (cos.Object, error)
	ResolveDict(cos.Object) (cos.Dict, error)
	Decode(*cos.Stream) ([]byte, error)
}

// Font decodes the strings shown with one font resource into text and
// glyph widths.
type Font struct {
	Name      string
	composite bool
	toUnicode *CMap
	enc       *[256]rune
	widths    map[int]float64
	missing   float64
}

// Char is one decoded character code.
type Char struct {
	Code  int
	Text  string
	Width float64 // glyph space units (1/1000 em); 0 when the font does not say
	Space bool    // single-byte code 32, which receives word spacing
}

// LoadFont reads a font dictionary. It never fails: missing pieces fall
// back to WinAnsi decoding and unknown widths.
func LoadFont(res Resolver, d cos.Dict) *Font {
	f := &Font{widths: map[int]float64{}}
	if n, ok := d.Name("BaseFont"); ok {
		f.Name = string(n)
	}
	if s, err := res.Resolve(d.Get("ToUnicode")); err == nil {
		if st, ok := s.(*cos.Stream); ok {
			if data, err := res.Decode(st); err == nil {
				f.toUnicode = ParseCMap(data)
			}
		}
	}

	if sub, _ := d.Name("Subtype"); sub == "Type0" {
		f.composite = true
		f.loadCIDWidths(res, d)
		return f
	}

	f.enc = simpleEncoding(res, d.Get("Encoding"))
	first := 0
	if v, ok := d.Int("FirstChar"); ok {
		first = v
	}
	if arr, err := res.Resolve(d.Get("Widths")); err == nil {
		if a, ok := arr.(cos.Array); ok {
			for i, w := range a {
				if v, err := res.Resolve(w); err == nil {
					if n, ok := cos.Number(v); ok {
						f.widths[first+i] = n
					}
				}
			}
		}
	}
	if desc, err := res.ResolveDict(d.Get("FontDescriptor")); err == nil {
		f.missing, _ = desc.Number("MissingWidth")
	}
	return f
}

func (f *Font) loadCIDWidths(res Resolver, d cos.Dict) {
	f.missing = 1000
	arr, err := res.Resolve(d.Get("DescendantFonts"))
	if err != nil {
		return
	}
	kids, ok := arr.(cos.Array)
	if !ok || len(kids) == 0 {
		return
	}
	cid, err := res.ResolveDict(kids[0])
	if err != nil {
		return
	}
	if dw, ok := cid.Number("DW"); ok {
		f.missing = dw
	}
	w, err := res.Resolve(cid.Get("W"))
	if err != nil {
		return
	}
	list, _ := w.(cos.Array)
	for i := 0; i < len(list); {
		start, ok := cos.Number(list[i])
		if !ok || i+1 >= len(list) {
			return
		}
		if ws, ok := list[i+1].(cos.Array); ok {
			for j, v := range ws {
				if n, ok := cos.Number(v); ok {
					f.widths[int(start)+j] = n
				}
			}
			i += 2
			continue
		}
		if i+2 >= len(list) {
			return
		}
		end, _ := cos.Number(list[i+1])
		width, _ := cos.Number(list[i+2])
		for c := int(start); c <= int(end) && c-int(start) < 65536; c++ {
			f.widths[c] = width
		}
		i += 3
	}
}

// Decode splits a shown string into character codes.
func (f *Font) Decode(s string) []Char {
	out := make([]Char, 0, len(s))
	for i := 0; i < len(s); {
		n := f.codeLen(s[i:])
		code := s[i : i+n]
		i += n

		c := Char{Code: int(codeValue(code)), Space: n == 1 && code[0] == ' '}
		c.Width = f.missing
		if w, ok := f.widths[c.Code]; ok {
			c.Width = w
		}
		c.Text = f.text(code, c.Code)
		out = append(out, c)
	}
	return out
}

func (f *Font) codeLen(s string) int {
	if f.toUnicode != nil {
		for _, n := range f.toUnicode.CodeLengths() {
			if n <= len(s) && f.toUnicode.inSpace(s[:n]) {
				return n
			}
		}
	}
	if f.composite && len(s) >= 2 {
		return 2
	}
	return 1
}

func (f *Font) text(code string, v int) string {
	if f.toUnicode != nil {
		if t, ok := f.toUnicode.Lookup(code); ok {
			return t
		}
	}
	if f.composite {
		return string(rune(v))
	}
	if f.enc != nil && f.enc[v&0xff] != 0 {
		return string(f.enc[v&0xff])
	}
	return string(charmap.Windows1252.DecodeByte(byte(v)))
}

func simpleEncoding(res Resolver, o cos.Object) *[256]rune {
	enc := new([256]rune)
	base := charmap.Windows1252
	v, err := res.Resolve(o)
	if err != nil {
		v = nil
	}
	var diffs cos.Array
	switch e := v.(type) {
	case cos.Name:
		if e == "MacRomanEncoding" {
			base = charmap.Macintosh
		}
	case cos.Dict:
		if n, _ := e.Name("BaseEncoding"); n == "MacRomanEncoding" {
			base = charmap.Macintosh
		}
		diffs, _ = e.Array("Differences")
	}
	for i := range enc {
		enc[i] = base.DecodeByte(byte(i))
	}
	code := 0
	for _, d := range diffs {
		switch x := d.(type) {
		case cos.Integer:
			code = int(x)
		case cos.Name:
			if code >= 0 && code < 256 {
				if r, ok := glyphRune(string(x)); ok {
					enc[code] = r
				}
			}
			code++
		}
	}
	return enc
}

// glyphRune maps an Adobe glyph name to a rune for the names that turn
// up in Differences arrays in practice.
func glyphRune(name string) (rune, bool) {
	if r, ok := glyphNames[name]; ok {
		return r, true
	}
	if len(name) == 1 {
		return rune(name[0]), true
	}
	if strings.HasPrefix(name, "uni") && len(name) == 7 {
		if v, err := strconv.ParseUint(name[3:], 16, 32); err == nil {
			return rune(v), true
		}
	}
	if i := strings.IndexByte(name, '.'); i > 0 {
		return glyphRune(name[:i])
	}
	return 0, false
}

var glyphNames = map[string]rune{
	"space": ' ', "exclam": '!', "quotedbl": '"', "numbersign": '#',
	"dollar": '$', "percent": '%', "ampersand": '&', "quotesingle": '\'',
	"parenleft": '(', "parenright": ')', "asterisk": '*', "plus": '+',
	"comma": ',', "hyphen": '-', "period": '.', "slash": '/',
	"zero": '0', "one": '1', "two": '2', "three": '3', "four": '4',
	"five": '5', "six": '6', "seven": '7', "eight": '8', "nine": '9',
	"colon": ':', "semicolon": ';', "less": '<', "equal": '=',
	"greater": '>', "question": '?', "at": '@', "bracketleft": '[',
	"backslash": '\\', "bracketright": ']', "underscore": '_',
	"braceleft": '{', "bar": '|', "braceright": '}', "asciitilde": '~',
	"quoteleft": '‘', "quoteright": '’', "quotedblleft": '“',
	"quotedblright": '”', "endash": '–', "emdash": '—', "bullet": '•',
	"ellipsis": '…', "guillemotleft": '«', "guillemotright": '»',
	"degree": '°', "section": '§', "copyright": '©', "registered": '®',
	"agrave": 'à', "acircumflex": 'â', "ccedilla": 'ç', "eacute": 'é',
	"egrave": 'è', "ecircumflex": 'ê', "edieresis": 'ë', "icircumflex": 'î',
	"idieresis": 'ï', "ocircumflex": 'ô', "ugrave": 'ù', "ucircumflex": 'û',
	"udieresis": 'ü', "Agrave": 'À', "Eacute": 'É', "Egrave": 'È',
	"Ecircumflex": 'Ê', "Ccedilla": 'Ç', "oe": 'œ', "OE": 'Œ', "ae": 'æ',
	"fi": 'ﬁ', "fl": 'ﬂ', "Euro": '€', "minus": '−', "multiply": '×',
}
