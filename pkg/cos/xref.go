package cos

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

type entryKind uint8

const (
	entryFree entryKind = iota
	entryInFile
	entryInStream
)

// xrefEntry locates one object. For entryInFile, offset is a byte
// offset; for entryInStream, stream and index locate it inside an
// object stream.
type xrefEntry struct {
	kind   entryKind
	offset int
	gen    int
	stream int
	index  int
}

type xrefSection struct {
	entries map[int]xrefEntry
	trailer Dict
}

var errNoStartXref = errors.New("cos: startxref not found")

func findStartXref(data []byte) (int, error) {
	tail := data
	if len(tail) > 2048 {
		tail = tail[len(tail)-2048:]
	}
	i := bytes.LastIndex(tail, []byte("startxref"))
	if i < 0 {
		return 0, errNoStartXref
	}
	t := NewLexer(tail[i+len("startxref"):]).Next()
	if t.Type != TokenInteger || t.Int < 0 || int(t.Int) >= len(data) {
		return 0, fmt.Errorf("cos: bad startxref value %q", t.Value)
	}
	return int(t.Int), nil
}

// readXref follows the /Prev chain from startxref and merges every
// section, newest first.
func readXref(data []byte) (map[int]xrefEntry, Dict, error) {
	start, err := findStartXref(data)
	if err != nil {
		return nil, nil, err
	}

	entries := map[int]xrefEntry{}
	var trailer Dict
	seen := map[int]bool{}
	queue := []int{start}
	for len(queue) > 0 {
		off := queue[0]
		queue = queue[1:]
		if seen[off] {
			continue
		}
		seen[off] = true

		sec, err := readXrefSection(data, off)
		if err != nil {
			if trailer == nil {
				return nil, nil, err
			}
			break
		}
		for num, e := range sec.entries {
			if _, ok := entries[num]; !ok {
				entries[num] = e
			}
		}
		if trailer == nil {
			trailer = sec.trailer
		}
		// hybrid files keep compressed entries in a side stream
		if stm, ok := sec.trailer.Int("XRefStm"); ok {
			queue = append([]int{stm}, queue...)
		}
		if prev, ok := sec.trailer.Int("Prev"); ok {
			queue = append(queue, prev)
		}
	}
	return entries, trailer, nil
}

func readXrefSection(data []byte, off int) (xrefSection, error) {
	lex := NewLexer(data)
	lex.Seek(off)
	if lex.Peek().Is("xref") {
		lex.Next()
		return readXrefTable(lex)
	}
	_, o, err := NewParser(lex, nil).ParseIndirect()
	if err != nil {
		return xrefSection{}, fmt.Errorf("cos: xref at offset %d: %w", off, err)
	}
	s, ok := o.(*Stream)
	if !ok {
		return xrefSection{}, fmt.Errorf("cos: object at offset %d is not an xref stream", off)
	}
	return readXrefStream(s)
}

func readXrefTable(lex *Lexer) (xrefSection, error) {
	sec := xrefSection{entries: map[int]xrefEntry{}}
	for {
		t := lex.Next()
		if t.Is("trailer") {
			break
		}
		count := lex.Next()
		if t.Type != TokenInteger || count.Type != TokenInteger {
			return sec, fmt.Errorf("cos: bad xref subsection header at offset %d", t.Pos)
		}
		for i := 0; i < int(count.Int); i++ {
			off, gen, flag := lex.Next(), lex.Next(), lex.Next()
			if off.Type != TokenInteger || gen.Type != TokenInteger {
				return sec, fmt.Errorf("cos: bad xref entry at offset %d", off.Pos)
			}
			e := xrefEntry{kind: entryFree, offset: int(off.Int), gen: int(gen.Int)}
			if flag.Is("n") {
				e.kind = entryInFile
			}
			sec.entries[int(t.Int)+i] = e
		}
	}
	o, err := NewParser(lex, nil).ParseObject()
	if err != nil {
		return sec, fmt.Errorf("cos: trailer: %w", err)
	}
	d, ok := o.(Dict)
	if !ok {
		return sec, errors.New("cos: trailer is not a dictionary")
	}
	sec.trailer = d
	return sec, nil
}

func readXrefStream(s *Stream) (xrefSection, error) {
	sec := xrefSection{entries: map[int]xrefEntry{}, trailer: s.Dict}
	raw, err := decodeStream(s, func(o Object) Object { return o })
	if err != nil {
		return sec, fmt.Errorf("cos: xref stream: %w", err)
	}

	wArr, _ := s.Dict.Array("W")
	w, ok := Numbers(wArr)
	if !ok || len(w) != 3 {
		return sec, errors.New("cos: xref stream has no valid /W")
	}
	widths := [3]int{int(w[0]), int(w[1]), int(w[2])}
	rowLen := widths[0] + widths[1] + widths[2]
	if rowLen <= 0 {
		return sec, errors.New("cos: xref stream /W is empty")
	}

	var index []float64
	if a, ok := s.Dict.Array("Index"); ok {
		index, _ = Numbers(a)
	} else if size, ok := s.Dict.Int("Size"); ok {
		index = []float64{0, float64(size)}
	}

	pos := 0
	field := func(n int, def int) int {
		if n == 0 {
			return def
		}
		v := 0
		for k := 0; k < n; k++ {
			v = v<<8 | int(raw[pos])
			pos++
		}
		return v
	}
	for i := 0; i+1 < len(index); i += 2 {
		first, count := int(index[i]), int(index[i+1])
		for j := 0; j < count && pos+rowLen <= len(raw); j++ {
			typ := field(widths[0], 1)
			a := field(widths[1], 0)
			b := field(widths[2], 0)
			var e xrefEntry
			switch typ {
			case 0:
				e = xrefEntry{kind: entryFree}
			case 1:
				e = xrefEntry{kind: entryInFile, offset: a, gen: b}
			case 2:
				e = xrefEntry{kind: entryInStream, stream: a, index: b}
			default:
				continue
			}
			sec.entries[first+j] = e
		}
	}
	return sec, nil
}

var objHeader = regexp.MustCompile(`(?m)(?:^|[\r\n\s])(\d+)\s+(\d+)\s+obj\b`)

// rebuildXref recovers object offsets by scanning the whole file. It is
// the fallback for files whose xref data is missing or damaged.
func rebuildXref(data []byte) (map[int]xrefEntry, Dict, error) {
	entries := map[int]xrefEntry{}
	for _, m := range objHeader.FindAllSubmatchIndex(data, -1) {
		num, _ := strconv.Atoi(string(data[m[2]:m[3]]))
		gen, _ := strconv.Atoi(string(data[m[4]:m[5]]))
		entries[num] = xrefEntry{kind: entryInFile, offset: m[2], gen: gen}
	}
	if len(entries) == 0 {
		return nil, nil, errors.New("cos: no objects found")
	}

	if i := bytes.LastIndex(data, []byte("trailer")); i >= 0 {
		lex := NewLexer(data)
		lex.Seek(i + len("trailer"))
		if o, err := NewParser(lex, nil).ParseObject(); err == nil {
			if d, ok := o.(Dict); ok {
				if _, ok := d.Ref("Root"); ok {
					return entries, d, nil
				}
			}
		}
	}

	// No usable trailer: look for the catalog directly.
	for num, e := range entries {
		lex := NewLexer(data)
		lex.Seek(e.offset)
		_, o, err := NewParser(lex, nil).ParseIndirect()
		if err != nil {
			continue
		}
		d := dictOf(o)
		if t, _ := d.Name("Type"); t == "Catalog" {
			return entries, Dict{"Root": Reference{Num: num, Gen: e.gen}}, nil
		}
		if t, _ := d.Name("Type"); t == "XRef" {
			if _, ok := d.Ref("Root"); ok {
				return entries, d, nil
			}
		}
	}
	return nil, nil, errors.New("cos: no document catalog found")
}

func dictOf(o Object) Dict {
	switch v := o.(type) {
	case Dict:
		return v
	case *Stream:
		return v.Dict
	}
	return nil
}
