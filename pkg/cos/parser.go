package cos

import (
	"bytes"
	"errors"
	"fmt"
)

const maxNesting = 256

// ErrUnexpectedEOF is returned when input ends inside an object.
var ErrUnexpectedEOF = errors.New("cos: unexpected end of input")

// LengthFunc resolves an indirect /Length value of a stream.
type LengthFunc func(Reference) (int, bool)

// Parser builds objects from lexer tokens.
type Parser struct {
	lex    *Lexer
	length LengthFunc
	depth  int
}

// NewParser returns a parser reading from lex. length may be nil, in
// which case streams with an indirect /Length are delimited by
// scanning for "endstream".
func NewParser(lex *Lexer, length LengthFunc) *Parser {
	return &Parser{lex: lex, length: length}
}

// ParseObject parses one direct object or reference.
func (p *Parser) ParseObject() (Object, error) {
	return p.object(p.lex.Next())
}

func (p *Parser) object(t Token) (Object, error) {
	switch t.Type {
	case TokenEOF:
		return nil, ErrUnexpectedEOF
	case TokenError:
		return nil, fmt.Errorf("cos: %s at offset %d", t.Value, t.Pos)
	case TokenName:
		return Name(t.Value), nil
	case TokenString:
		return String(t.Value), nil
	case TokenReal:
		return Real(t.Real), nil
	case TokenInteger:
		if ref, ok := p.reference(t); ok {
			return ref, nil
		}
		return Integer(t.Int), nil
	case TokenArrayBegin:
		return p.array()
	case TokenDictBegin:
		return p.dictOrStream()
	case TokenKeyword:
		switch t.Value {
		case "true":
			return Boolean(true), nil
		case "false":
			return Boolean(false), nil
		case "null":
			return Null{}, nil
		}
		return Keyword(t.Value), nil
	}
	return nil, fmt.Errorf("cos: unexpected %s at offset %d", t.Type, t.Pos)
}

// reference looks ahead for "gen R" after an integer.
func (p *Parser) reference(num Token) (Reference, bool) {
	at := p.lex.Pos()
	gen := p.lex.Next()
	if gen.Type == TokenInteger && p.lex.Next().Is("R") {
		return Reference{Num: int(num.Int), Gen: int(gen.Int)}, true
	}
	p.lex.Seek(at)
	return Reference{}, false
}

func (p *Parser) enter() error {
	p.depth++
	if p.depth > maxNesting {
		return errors.New("cos: objects nested too deeply")
	}
	return nil
}

func (p *Parser) array() (Array, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer func() { p.depth-- }()

	arr := Array{}
	for {
		t := p.lex.Next()
		if t.Type == TokenArrayEnd {
			return arr, nil
		}
		o, err := p.object(t)
		if err != nil {
			return nil, fmt.Errorf("array element %d: %w", len(arr), err)
		}
		arr = append(arr, o)
	}
}

func (p *Parser) dict() (Dict, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer func() { p.depth-- }()

	d := Dict{}
	for {
		t := p.lex.Next()
		switch t.Type {
		case TokenDictEnd:
			return d, nil
		case TokenName:
		case TokenEOF:
			return nil, ErrUnexpectedEOF
		default:
			return nil, fmt.Errorf("cos: dictionary key must be a name, got %s at offset %d", t.Type, t.Pos)
		}
		v, err := p.ParseObject()
		if err != nil {
			return nil, fmt.Errorf("value of /%s: %w", t.Value, err)
		}
		d[Name(t.Value)] = v
	}
}

func (p *Parser) dictOrStream() (Object, error) {
	d, err := p.dict()
	if err != nil {
		return nil, err
	}
	if !p.lex.Peek().Is("stream") {
		return d, nil
	}
	p.lex.Next()
	data, err := p.streamData(d)
	if err != nil {
		return nil, err
	}
	return &Stream{Dict: d, Data: data}, nil
}

var endstream = []byte("endstream")

func (p *Parser) streamData(d Dict) ([]byte, error) {
	buf := p.lex.Data()
	start := p.lex.Pos()
	if start < len(buf) && buf[start] == '\r' {
		start++
	}
	if start < len(buf) && buf[start] == '\n' {
		start++
	}

	n, known := d.Int("Length")
	if ref, ok := d.Ref("Length"); ok && p.length != nil {
		n, known = p.length(ref)
	}
	if known && n >= 0 && start+n <= len(buf) {
		after := NewLexer(buf)
		after.Seek(start + n)
		if t := after.Next(); t.Is("endstream") {
			p.lex.Seek(after.Pos())
			return buf[start : start+n], nil
		}
	}

	// Length missing or wrong: scan for the terminator instead.
	i := bytes.Index(buf[start:], endstream)
	if i < 0 {
		return nil, fmt.Errorf("cos: stream at offset %d has no endstream", start)
	}
	data := bytes.TrimRight(buf[start:start+i], "\r\n")
	p.lex.Seek(start + i + len(endstream))
	return data, nil
}

// ParseIndirect parses "num gen obj ... endobj".
func (p *Parser) ParseIndirect() (Reference, Object, error) {
	num, gen, kw := p.lex.Next(), p.lex.Next(), p.lex.Next()
	if num.Type != TokenInteger || gen.Type != TokenInteger || !kw.Is("obj") {
		return Reference{}, nil, fmt.Errorf("cos: no object header at offset %d", num.Pos)
	}
	ref := Reference{Num: int(num.Int), Gen: int(gen.Int)}
	o, err := p.ParseObject()
	if err != nil {
		return ref, nil, fmt.Errorf("object %s: %w", ref, err)
	}
	// endobj is frequently missing or misplaced; it is not required.
	if p.lex.Peek().Is("endobj") {
		p.lex.Next()
	}
	return ref, o, nil
}

// parseObjectStream reads the objects packed in a decoded /Type /ObjStm.
func parseObjectStream(data []byte, d Dict) (map[int]Object, error) {
	n, ok1 := d.Int("N")
	first, ok2 := d.Int("First")
	if !ok1 || !ok2 || first < 0 || first > len(data) {
		return nil, errors.New("cos: object stream without valid /N and /First")
	}

	head := NewLexer(data[:first])
	type slot struct{ num, off int }
	slots := make([]slot, 0, n)
	for i := 0; i < n; i++ {
		a, b := head.Next(), head.Next()
		if a.Type != TokenInteger || b.Type != TokenInteger {
			break
		}
		slots = append(slots, slot{int(a.Int), int(b.Int)})
	}

	body := data[first:]
	out := make(map[int]Object, len(slots))
	for _, s := range slots {
		if s.off < 0 || s.off >= len(body) {
			continue
		}
		lex := NewLexer(body)
		lex.Seek(s.off)
		o, err := NewParser(lex, nil).ParseObject()
		if err != nil {
			continue
		}
		out[s.num] = o
	}
	return out, nil
}
