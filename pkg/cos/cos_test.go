package cos

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremiesigrist/visu-pdf-pages/internal/pdftest"
)

func parse(t *testing.T, src string) Object {
	t.Helper()
	o, err := NewParser(NewLexer([]byte(src)), nil).ParseObject()
	require.NoError(t, err)
	return o
}

func TestLexerTokens(t *testing.T) {
	lex := NewLexer([]byte("<< /Na#20me 12 -3.5 .5 (a\\(b\\)\\101) <414> T* ' >> % comment\n[]"))
	want := []struct {
		typ TokenType
		val string
	}{
		{TokenDictBegin, "<<"},
		{TokenName, "Na me"},
		{TokenInteger, "12"},
		{TokenReal, "-3.5"},
		{TokenReal, ".5"},
		{TokenString, "a(b)A"},
		{TokenString, "A@"},
		{TokenKeyword, "T*"},
		{TokenKeyword, "'"},
		{TokenDictEnd, ">>"},
		{TokenArrayBegin, "["},
		{TokenArrayEnd, "]"},
		{TokenEOF, ""},
	}
	for i, w := range want {
		tok := lex.Next()
		assert.Equal(t, w.typ, tok.Type, "token %d", i)
		assert.Equal(t, w.val, tok.Value, "token %d", i)
	}
}

func TestLexerNestedParens(t *testing.T) {
	tok := NewLexer([]byte("(outer (inner) done)")).Next()
	assert.Equal(t, "outer (inner) done", tok.Value)
}

func TestParseObjects(t *testing.T) {
	o := parse(t, "<< /Type /Page /Kids [1 0 R 2 0 R] /Count 2 /Rotate 90 /Scale 1.5 /Ok true /Nil null >>")
	d, ok := o.(Dict)
	require.True(t, ok)

	name, _ := d.Name("Type")
	assert.Equal(t, Name("Page"), name)
	kids, _ := d.Array("Kids")
	assert.Equal(t, Array{Reference{1, 0}, Reference{2, 0}}, kids)
	n, _ := d.Int("Count")
	assert.Equal(t, 2, n)
	f, _ := d.Number("Scale")
	assert.Equal(t, 1.5, f)
	assert.Equal(t, Boolean(true), d.Get("Ok"))
	assert.Equal(t, Null{}, d.Get("Nil"))
}

func TestParseIntegersAreNotReferences(t *testing.T) {
	o := parse(t, "[1 2 3]")
	assert.Equal(t, Array{Integer(1), Integer(2), Integer(3)}, o)
}

func TestParseStreamWithWrongLength(t *testing.T) {
	src := "1 0 obj\n<< /Length 999 >>\nstream\nhello world\nendstream\nendobj\n"
	ref, o, err := NewParser(NewLexer([]byte(src)), nil).ParseIndirect()
	require.NoError(t, err)
	assert.Equal(t, Reference{1, 0}, ref)
	s, ok := o.(*Stream)
	require.True(t, ok)
	assert.Equal(t, "hello world", string(s.Data))
}

func TestParseStreamIndirectLength(t *testing.T) {
	src := "1 0 obj\n<< /Length 5 0 R >>\nstream\nabcdef\nendstream\nendobj\n"
	length := func(ref Reference) (int, bool) { return 6, ref.Num == 5 }
	_, o, err := NewParser(NewLexer([]byte(src)), length).ParseIndirect()
	require.NoError(t, err)
	assert.Equal(t, "abcdef", string(o.(*Stream).Data))
}

func TestParseDeepNesting(t *testing.T) {
	src := bytes.Repeat([]byte("["), maxNesting+5)
	_, err := NewParser(NewLexer(src), nil).ParseObject()
	assert.Error(t, err)
}

func TestReaderPages(t *testing.T) {
	data := pdftest.Build(pdftest.Options{},
		pdftest.Letter("first"),
		pdftest.Page{Width: 300, Height: 400, Lines: []string{"second"}},
	)
	r, err := NewReader(data)
	require.NoError(t, err)

	n, err := r.PageCount()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	p, err := r.Page(1)
	require.NoError(t, err)
	box, _ := p.Array("MediaBox")
	nums, _ := Numbers(box)
	assert.Equal(t, []float64{0, 0, 300, 400}, nums)

	content, err := r.PageContents(p)
	require.NoError(t, err)
	assert.Contains(t, string(content), "(second) Tj")

	_, err = r.Page(2)
	assert.Error(t, err)
	assert.Equal(t, "1.7", r.Version())
}

func TestReaderCompressedContent(t *testing.T) {
	data := pdftest.Build(pdftest.Options{Compress: true}, pdftest.Letter("zipped"))
	r, err := NewReader(data)
	require.NoError(t, err)
	p, err := r.Page(0)
	require.NoError(t, err)
	content, err := r.PageContents(p)
	require.NoError(t, err)
	assert.Contains(t, string(content), "(zipped) Tj")
}

func TestReaderInheritsMediaBox(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offs := map[int]int{}
	add := func(n int, body string) {
		offs[n] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", n, body)
	}
	add(1, "<< /Type /Catalog /Pages 2 0 R >>")
	add(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 /MediaBox [0 0 200 100] /Rotate 90 >>")
	add(3, "<< /Type /Page /Parent 2 0 R >>")
	xref := buf.Len()
	buf.WriteString("xref\n0 4\n0000000000 65535 f \n")
	for i := 1; i <= 3; i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offs[i])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size 4 /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", xref)

	r, err := NewReader(buf.Bytes())
	require.NoError(t, err)
	p, err := r.Page(0)
	require.NoError(t, err)
	rot, _ := p.Int("Rotate")
	assert.Equal(t, 90, rot)
	_, ok := p.Array("MediaBox")
	assert.True(t, ok)
}

func TestReaderRebuildsBrokenXref(t *testing.T) {
	data := pdftest.TextPages("one", "two")
	i := bytes.LastIndex(data, []byte("startxref"))
	broken := append(append([]byte{}, data[:i]...), []byte("startxref\n17\n%%EOF\n")...)

	r, err := NewReader(broken)
	require.NoError(t, err)
	n, err := r.PageCount()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestReaderXrefStream(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.5\n")
	o1 := buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	o2 := buf.Len()
	buf.WriteString("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")
	o3 := buf.Len()
	buf.WriteString("3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 10 10] >>\nendobj\n")
	o4 := buf.Len()

	// W [1 2 1]: type, offset, generation
	rows := []byte{
		0, 0, 0, 0,
		1, byte(o1 >> 8), byte(o1), 0,
		1, byte(o2 >> 8), byte(o2), 0,
		1, byte(o3 >> 8), byte(o3), 0,
		1, byte(o4 >> 8), byte(o4), 0,
	}
	fmt.Fprintf(&buf, "4 0 obj\n<< /Type /XRef /Size 5 /W [1 2 1] /Root 1 0 R /Length %d >>\nstream\n", len(rows))
	buf.Write(rows)
	fmt.Fprintf(&buf, "\nendstream\nendobj\nstartxref\n%d\n%%%%EOF\n", o4)

	r, err := NewReader(buf.Bytes())
	require.NoError(t, err)
	n, err := r.PageCount()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReaderRejectsGarbage(t *testing.T) {
	_, err := NewReader(nil)
	assert.ErrorIs(t, err, ErrNotPDF)
	_, err = NewReader([]byte("hello, this is not a pdf"))
	assert.ErrorIs(t, err, ErrNotPDF)
	_, err = NewReader([]byte("%PDF-1.4\ngarbage only"))
	assert.Error(t, err)
}

func TestObjectStream(t *testing.T) {
	data := []byte("7 0 8 11 << /A 1 >> [ /B ]")
	objs, err := parseObjectStream(data, Dict{"N": Integer(2), "First": Integer(9)})
	require.NoError(t, err)
	assert.Equal(t, Dict{"A": Integer(1)}, objs[7])
	assert.Equal(t, Array{Name("B")}, objs[8])
}
