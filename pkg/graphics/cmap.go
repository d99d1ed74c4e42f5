package graphics

import (
	"sort"
	"unicode/utf16"

	"github.com/jeremiesigrist/visu-pdf-pages/pkg/cos"
)

// CMap maps character codes to Unicode text. Only the parts needed for
// text extraction are read: codespace ranges, bfchar and bfrange.
type CMap struct {
	spaces []codespace
	chars  map[string]string
	ranges []bfrange
}

type codespace struct {
	lo, hi []byte
}

type bfrange struct {
	lo, hi uint32
	n      int
	base   string   // destination of lo; later codes increment its last char
	list   []string // explicit destinations when given as an array
}

// ParseCMap reads a ToUnicode CMap program.
func ParseCMap(data []byte) *CMap {
	cm := &CMap{chars: map[string]string{}}
	lex := cos.NewLexer(data)
	for {
		t := lex.Next()
		switch {
		case t.Type == cos.TokenEOF:
			return cm
		case t.Is("begincodespacerange"):
			for {
				lo := lex.Next()
				if lo.Type != cos.TokenString {
					break
				}
				hi := lex.Next()
				cm.spaces = append(cm.spaces, codespace{lo: []byte(lo.Value), hi: []byte(hi.Value)})
			}
		case t.Is("beginbfchar"):
			for {
				src := lex.Next()
				if src.Type != cos.TokenString {
					break
				}
				dst := lex.Next()
				cm.chars[src.Value] = utf16be(dst.Value)
			}
		case t.Is("beginbfrange"):
			for {
				lo := lex.Next()
				if lo.Type != cos.TokenString {
					break
				}
				hi := lex.Next()
				r := bfrange{lo: codeValue(lo.Value), hi: codeValue(hi.Value), n: len(lo.Value)}
				dst := lex.Next()
				switch dst.Type {
				case cos.TokenString:
					r.base = dst.Value
				case cos.TokenArrayBegin:
					for {
						d := lex.Next()
						if d.Type != cos.TokenString {
							break
						}
						r.list = append(r.list, utf16be(d.Value))
					}
				}
				cm.ranges = append(cm.ranges, r)
			}
		}
	}
}

// CodeLengths returns the distinct code byte lengths, shortest first.
func (c *CMap) CodeLengths() []int {
	seen := map[int]bool{}
	var out []int
	for _, s := range c.spaces {
		if !seen[len(s.lo)] {
			seen[len(s.lo)] = true
			out = append(out, len(s.lo))
		}
	}
	sort.Ints(out)
	return out
}

// inSpace reports whether code falls in a codespace range of its length.
func (c *CMap) inSpace(code string) bool {
	for _, s := range c.spaces {
		if len(s.lo) != len(code) {
			continue
		}
		ok := true
		for i := 0; i < len(code); i++ {
			if code[i] < s.lo[i] || code[i] > s.hi[i] {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

// Lookup returns the text for a code.
func (c *CMap) Lookup(code string) (string, bool) {
	if s, ok := c.chars[code]; ok {
		return s, true
	}
	v := codeValue(code)
	for _, r := range c.ranges {
		if r.n != len(code) || v < r.lo || v > r.hi {
			continue
		}
		off := int(v - r.lo)
		if r.list != nil {
			if off < len(r.list) {
				return r.list[off], true
			}
			return "", false
		}
		b := []byte(r.base)
		if len(b) == 0 {
			return "", false
		}
		// increment the last byte pair, as the CMap format specifies
		last := len(b) - 1
		sum := int(b[last]) + off
		b[last] = byte(sum)
		if last > 0 {
			b[last-1] += byte(sum >> 8)
		}
		return utf16be(string(b)), true
	}
	return "", false
}

func codeValue(s string) uint32 {
	var v uint32
	for i := 0; i < len(s); i++ {
		v = v<<8 | uint32(s[i])
	}
	return v
}

func utf16be(s string) string {
	if len(s) == 1 {
		return string(rune(s[0]))
	}
	units := make([]uint16, 0, len(s)/2)
	for i := 0; i+1 < len(s); i += 2 {
		units = append(units, uint16(s[i])<<8|uint16(s[i+1]))
	}
	return string(utf16.Decode(units))
}
