package cos

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/jeremiesigrist/visu-pdf-pages/pkg/stream"
)

var (
	// ErrNotPDF is returned when the input has no %PDF- header.
	ErrNotPDF = errors.New("cos: not a PDF file")
	// ErrEncrypted is returned for documents with an /Encrypt dictionary.
	ErrEncrypted = errors.New("cos: encrypted documents are not supported")
)

// inherited page attributes, resolved down the page tree
var inheritable = []Name{"Resources", "MediaBox", "CropBox", "Rotate"}

// Reader gives access to the objects and pages of one PDF file. It is
// safe for concurrent use.
type Reader struct {
	data    []byte
	xref    map[int]xrefEntry
	trailer Dict

	mu     sync.Mutex
	cache  map[int]Object
	objStm map[int]map[int]Object

	pagesOnce sync.Once
	pages     []Dict
	pagesErr  error
}

// NewReader parses the file structure of data. Object bodies are read
// lazily.
func NewReader(data []byte) (*Reader, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrNotPDF)
	}
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	if !bytes.Contains(head, []byte("%PDF-")) {
		return nil, ErrNotPDF
	}

	r := &Reader{
		data:   data,
		cache:  map[int]Object{},
		objStm: map[int]map[int]Object{},
	}
	var err error
	r.xref, r.trailer, err = readXref(data)
	if err == nil {
		_, err = r.Catalog()
	}
	if err != nil {
		r.resetCache()
		if r.xref, r.trailer, err = rebuildXref(data); err != nil {
			return nil, err
		}
		if _, err := r.Catalog(); err != nil {
			return nil, err
		}
	}
	if r.trailer.Get("Encrypt") != nil {
		return nil, ErrEncrypted
	}
	return r, nil
}

func (r *Reader) resetCache() {
	r.mu.Lock()
	r.cache = map[int]Object{}
	r.objStm = map[int]map[int]Object{}
	r.mu.Unlock()
}

// Version returns the header version, for example "1.7".
func (r *Reader) Version() string {
	i := bytes.Index(r.data, []byte("%PDF-"))
	if i < 0 || i+8 > len(r.data) {
		return ""
	}
	return string(r.data[i+5 : i+8])
}

// Trailer returns the trailer dictionary.
func (r *Reader) Trailer() Dict { return r.trailer }

// Object returns the object ref points to. Missing or free objects
// resolve to Null, as the PDF format requires.
func (r *Reader) Object(ref Reference) (Object, error) {
	r.mu.Lock()
	o, ok := r.cache[ref.Num]
	r.mu.Unlock()
	if ok {
		return o, nil
	}

	e, ok := r.xref[ref.Num]
	if !ok || e.kind == entryFree {
		return Null{}, nil
	}

	var err error
	switch e.kind {
	case entryInFile:
		o, err = r.objectAt(e.offset)
	case entryInStream:
		o, err = r.objectInStream(e.stream, ref.Num)
	}
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", ref, err)
	}

	r.mu.Lock()
	r.cache[ref.Num] = o
	r.mu.Unlock()
	return o, nil
}

func (r *Reader) objectAt(off int) (Object, error) {
	if off < 0 || off >= len(r.data) {
		return nil, fmt.Errorf("offset %d out of range", off)
	}
	lex := NewLexer(r.data)
	lex.Seek(off)
	_, o, err := NewParser(lex, r.lengthOf).ParseIndirect()
	return o, err
}

func (r *Reader) lengthOf(ref Reference) (int, bool) {
	o, err := r.Object(ref)
	if err != nil {
		return 0, false
	}
	n, ok := o.(Integer)
	return int(n), ok
}

func (r *Reader) objectInStream(stm, num int) (Object, error) {
	r.mu.Lock()
	objs, ok := r.objStm[stm]
	r.mu.Unlock()

	if !ok {
		if e := r.xref[stm]; e.kind != entryInFile {
			return nil, fmt.Errorf("object stream %d is not stored in the file body", stm)
		}
		o, err := r.Object(Reference{Num: stm})
		if err != nil {
			return nil, err
		}
		s, isStream := o.(*Stream)
		if !isStream {
			return nil, fmt.Errorf("object %d is not an object stream", stm)
		}
		raw, err := r.Decode(s)
		if err != nil {
			return nil, err
		}
		if objs, err = parseObjectStream(raw, s.Dict); err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.objStm[stm] = objs
		r.mu.Unlock()
	}

	if o, ok := objs[num]; ok {
		return o, nil
	}
	return Null{}, nil
}

// Resolve follows o if it is a reference.
func (r *Reader) Resolve(o Object) (Object, error) {
	for i := 0; i < 32; i++ {
		ref, ok := o.(Reference)
		if !ok {
			return o, nil
		}
		var err error
		if o, err = r.Object(ref); err != nil {
			return nil, err
		}
	}
	return nil, errors.New("cos: reference chain too long")
}

// ResolveDict resolves o and returns it as a dictionary. Streams yield
// their dictionary.
func (r *Reader) ResolveDict(o Object) (Dict, error) {
	v, err := r.Resolve(o)
	if err != nil {
		return nil, err
	}
	if d := dictOf(v); d != nil {
		return d, nil
	}
	return nil, fmt.Errorf("cos: expected dictionary, got %T", v)
}

// ResolveArray resolves o and returns it as an array.
func (r *Reader) ResolveArray(o Object) (Array, error) {
	v, err := r.Resolve(o)
	if err != nil {
		return nil, err
	}
	if a, ok := v.(Array); ok {
		return a, nil
	}
	return nil, fmt.Errorf("cos: expected array, got %T", v)
}

// ResolveNumber resolves o and returns it as a number.
func (r *Reader) ResolveNumber(o Object) (float64, bool) {
	v, err := r.Resolve(o)
	if err != nil {
		return 0, false
	}
	return Number(v)
}

// Decode returns the decoded bytes of s.
func (r *Reader) Decode(s *Stream) ([]byte, error) {
	return decodeStream(s, func(o Object) Object {
		v, err := r.Resolve(o)
		if err != nil {
			return Null{}
		}
		return v
	})
}

func decodeStream(s *Stream, resolve func(Object) Object) ([]byte, error) {
	var names, parms Array
	switch f := resolve(s.Dict.Get("Filter")).(type) {
	case Name:
		names = Array{f}
	case Array:
		names = f
	}
	switch p := resolve(s.Dict.Get("DecodeParms")).(type) {
	case Dict:
		parms = Array{p}
	case Array:
		parms = p
	}

	stages := make([]stream.Stage, 0, len(names))
	for i, n := range names {
		name, ok := resolve(n).(Name)
		if !ok {
			return nil, fmt.Errorf("cos: filter %d is not a name", i)
		}
		st := stream.Stage{Filter: stream.ParseFilter(string(name)), Params: stream.DefaultParams()}
		if i < len(parms) {
			if d, ok := resolve(parms[i]).(Dict); ok {
				applyParams(&st.Params, d)
			}
		}
		stages = append(stages, st)
	}
	return stream.DecodeChain(s.Data, stages)
}

func applyParams(p *stream.Params, d Dict) {
	if v, ok := d.Int("Predictor"); ok {
		p.Predictor = v
	}
	if v, ok := d.Int("Colors"); ok {
		p.Colors = v
	}
	if v, ok := d.Int("BitsPerComponent"); ok {
		p.BitsPerComponent = v
	}
	if v, ok := d.Int("Columns"); ok {
		p.Columns = v
	}
	if v, ok := d.Int("EarlyChange"); ok {
		p.EarlyChange = v
	}
}

// Catalog returns the document catalog.
func (r *Reader) Catalog() (Dict, error) {
	root := r.trailer.Get("Root")
	if root == nil {
		return nil, errors.New("cos: trailer has no /Root")
	}
	d, err := r.ResolveDict(root)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return d, nil
}

// Info returns the document information dictionary, or nil.
func (r *Reader) Info() Dict {
	d, err := r.ResolveDict(r.trailer.Get("Info"))
	if err != nil {
		return nil
	}
	return d
}

// PageCount returns the number of leaf pages in the page tree.
func (r *Reader) PageCount() (int, error) {
	pages, err := r.pageList()
	return len(pages), err
}

// Page returns the dictionary of the page at a zero-based index, with
// inherited attributes copied in.
func (r *Reader) Page(i int) (Dict, error) {
	pages, err := r.pageList()
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= len(pages) {
		return nil, fmt.Errorf("cos: page index %d out of range [0, %d)", i, len(pages))
	}
	return pages[i], nil
}

func (r *Reader) pageList() ([]Dict, error) {
	r.pagesOnce.Do(func() {
		cat, err := r.Catalog()
		if err != nil {
			r.pagesErr = err
			return
		}
		root, err := r.ResolveDict(cat.Get("Pages"))
		if err != nil {
			r.pagesErr = fmt.Errorf("page tree: %w", err)
			return
		}
		seen := map[Reference]bool{}
		if ref, ok := cat.Ref("Pages"); ok {
			seen[ref] = true
		}
		r.pagesErr = r.walkPages(root, Dict{}, seen, 0)
		if r.pagesErr == nil && len(r.pages) == 0 {
			r.pagesErr = errors.New("cos: document has no pages")
		}
	})
	return r.pages, r.pagesErr
}

func (r *Reader) walkPages(node, inherited Dict, seen map[Reference]bool, depth int) error {
	if depth > 64 {
		return errors.New("cos: page tree too deep")
	}
	attrs := Dict{}
	for k, v := range inherited {
		attrs[k] = v
	}
	for _, k := range inheritable {
		if v := node.Get(k); v != nil {
			attrs[k] = v
		}
	}

	kids := node.Get("Kids")
	if t, _ := node.Name("Type"); t == "Page" || kids == nil {
		page := Dict{}
		for k, v := range node {
			page[k] = v
		}
		for k, v := range attrs {
			page[k] = v
		}
		r.pages = append(r.pages, page)
		return nil
	}

	arr, err := r.ResolveArray(kids)
	if err != nil {
		return fmt.Errorf("page tree kids: %w", err)
	}
	for _, kid := range arr {
		if ref, ok := kid.(Reference); ok {
			if seen[ref] {
				continue
			}
			seen[ref] = true
		}
		d, err := r.ResolveDict(kid)
		if err != nil {
			continue
		}
		if err := r.walkPages(d, attrs, seen, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// PageContents returns the decoded content of a page, joining multiple
// content streams with a newline.
func (r *Reader) PageContents(page Dict) ([]byte, error) {
	c, err := r.Resolve(page.Get("Contents"))
	if err != nil {
		return nil, err
	}
	switch v := c.(type) {
	case nil, Null:
		return nil, nil
	case *Stream:
		return r.Decode(v)
	case Array:
		var buf bytes.Buffer
		for i, part := range v {
			o, err := r.Resolve(part)
			if err != nil {
				return nil, fmt.Errorf("content stream %d: %w", i, err)
			}
			s, ok := o.(*Stream)
			if !ok {
				continue
			}
			b, err := r.Decode(s)
			if err != nil {
				return nil, fmt.Errorf("content stream %d: %w", i, err)
			}
			buf.Write(b)
			buf.WriteByte('\n')
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("cos: unexpected /Contents type %T", c)
}
