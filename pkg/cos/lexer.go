package cos

import (
	"bytes"
	"fmt"
	"strconv"
)

// Lexer splits PDF bytes into tokens. It is used both for the file
// structure and for page content streams.
type Lexer struct {
	data []byte
	pos  int
}

// NewLexer returns a lexer positioned at the start of data.
func NewLexer(data []byte) *Lexer {
	return &Lexer{data: data}
}

// Pos returns the current byte offset.
func (l *Lexer) Pos() int { return l.pos }

// Seek moves to an absolute offset, clamped to the input.
func (l *Lexer) Seek(pos int) {
	switch {
	case pos < 0:
		l.pos = 0
	case pos > len(l.data):
		l.pos = len(l.data)
	default:
		l.pos = pos
	}
}

// Data returns the underlying input.
func (l *Lexer) Data() []byte { return l.data }

func isDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isSpace(c byte) bool {
	switch c {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

// SkipSpace skips white-space and comments.
func (l *Lexer) SkipSpace() {
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		if c == '%' {
			for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
			continue
		}
		if !isSpace(c) {
			return
		}
		l.pos++
	}
}

// Peek returns the next token without consuming it.
func (l *Lexer) Peek() Token {
	at := l.pos
	t := l.Next()
	l.pos = at
	return t
}

// Next returns the next token.
func (l *Lexer) Next() Token {
	l.SkipSpace()
	start := l.pos
	if l.pos >= len(l.data) {
		return Token{Type: TokenEOF, Pos: start}
	}

	c := l.data[l.pos]
	switch c {
	case '<':
		if l.pos+1 < len(l.data) && l.data[l.pos+1] == '<' {
			l.pos += 2
			return Token{Type: TokenDictBegin, Value: "<<", Pos: start}
		}
		return l.hexString()
	case '>':
		if l.pos+1 < len(l.data) && l.data[l.pos+1] == '>' {
			l.pos += 2
			return Token{Type: TokenDictEnd, Value: ">>", Pos: start}
		}
		l.pos++
		return Token{Type: TokenError, Value: "stray '>'", Pos: start}
	case '[':
		l.pos++
		return Token{Type: TokenArrayBegin, Value: "[", Pos: start}
	case ']':
		l.pos++
		return Token{Type: TokenArrayEnd, Value: "]", Pos: start}
	case '{', '}':
		l.pos++
		return Token{Type: TokenKeyword, Value: string(c), Pos: start}
	case '(':
		return l.literalString()
	case '/':
		return l.name()
	case ')':
		l.pos++
		return Token{Type: TokenError, Value: "stray ')'", Pos: start}
	}
	return l.regular()
}

func (l *Lexer) name() Token {
	start := l.pos
	l.pos++
	var buf bytes.Buffer
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		if isSpace(c) || isDelim(c) {
			break
		}
		if c == '#' && l.pos+2 < len(l.data) {
			if v, err := strconv.ParseUint(string(l.data[l.pos+1:l.pos+3]), 16, 8); err == nil {
				buf.WriteByte(byte(v))
				l.pos += 3
				continue
			}
		}
		buf.WriteByte(c)
		l.pos++
	}
	return Token{Type: TokenName, Value: buf.String(), Pos: start}
}

var escapes = map[byte]byte{
	'n': '\n', 'r': '\r', 't': '\t', 'b': '\b', 'f': '\f',
	'(': '(', ')': ')', '\\': '\\',
}

func (l *Lexer) literalString() Token {
	start := l.pos
	l.pos++
	var buf bytes.Buffer
	depth := 1
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		l.pos++
		switch c {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return Token{Type: TokenString, Value: buf.String(), Pos: start}
			}
		case '\\':
			if l.pos >= len(l.data) {
				continue
			}
			e := l.data[l.pos]
			l.pos++
			if r, ok := escapes[e]; ok {
				buf.WriteByte(r)
				continue
			}
			switch {
			case e == '\r':
				if l.pos < len(l.data) && l.data[l.pos] == '\n' {
					l.pos++
				}
			case e == '\n':
			case e >= '0' && e <= '7':
				v := int(e - '0')
				for i := 0; i < 2 && l.pos < len(l.data); i++ {
					d := l.data[l.pos]
					if d < '0' || d > '7' {
						break
					}
					v = v*8 + int(d-'0')
					l.pos++
				}
				buf.WriteByte(byte(v))
			default:
				buf.WriteByte(e)
			}
			continue
		}
		buf.WriteByte(c)
	}
	return Token{Type: TokenError, Value: "unterminated string", Pos: start}
}

func (l *Lexer) hexString() Token {
	start := l.pos
	l.pos++
	var buf bytes.Buffer
	var hi byte
	odd := false
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		l.pos++
		if c == '>' {
			if odd {
				buf.WriteByte(hi << 4)
			}
			return Token{Type: TokenString, Value: buf.String(), Pos: start}
		}
		if isSpace(c) {
			continue
		}
		v, err := strconv.ParseUint(string(c), 16, 8)
		if err != nil {
			return Token{Type: TokenError, Value: fmt.Sprintf("bad hex digit %q", c), Pos: start}
		}
		if odd {
			buf.WriteByte(hi<<4 | byte(v))
		} else {
			hi = byte(v)
		}
		odd = !odd
	}
	return Token{Type: TokenError, Value: "unterminated hex string", Pos: start}
}

// regular reads a run of regular characters and classifies it as a
// number or a keyword.
func (l *Lexer) regular() Token {
	start := l.pos
	for l.pos < len(l.data) && !isSpace(l.data[l.pos]) && !isDelim(l.data[l.pos]) {
		l.pos++
	}
	word := string(l.data[start:l.pos])
	if n, ok := parseInt(word); ok {
		return Token{Type: TokenInteger, Value: word, Int: n, Real: float64(n), Pos: start}
	}
	if f, ok := parseReal(word); ok {
		return Token{Type: TokenReal, Value: word, Real: f, Pos: start}
	}
	return Token{Type: TokenKeyword, Value: word, Pos: start}
}

func parseInt(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	i := 0
	if s[0] == '+' || s[0] == '-' {
		i++
	}
	if i == len(s) {
		return 0, false
	}
	for _, c := range []byte(s[i:]) {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	return n, err == nil
}

func parseReal(s string) (float64, bool) {
	digits, dots := 0, 0
	for i, c := range []byte(s) {
		switch {
		case c >= '0' && c <= '9':
			digits++
		case c == '.':
			dots++
		case (c == '+' || c == '-') && i == 0:
		default:
			return 0, false
		}
	}
	if digits == 0 || dots > 1 {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

// InlineImageData consumes the bytes of an inline image, which begin
// after the ID operator and end before the EI operator.
func (l *Lexer) InlineImageData() []byte {
	if l.pos < len(l.data) && isSpace(l.data[l.pos]) {
		l.pos++
	}
	start := l.pos
	for i := start; i+1 < len(l.data); i++ {
		if l.data[i] != 'E' || l.data[i+1] != 'I' {
			continue
		}
		before := i == start || isSpace(l.data[i-1])
		after := i+2 >= len(l.data) || isSpace(l.data[i+2]) || isDelim(l.data[i+2])
		if before && after {
			l.pos = i + 2
			return l.data[start:i]
		}
	}
	l.pos = len(l.data)
	return l.data[start:]
}
