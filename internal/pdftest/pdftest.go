// Package pdftest builds small, valid PDF files for tests.
package pdftest

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"strings"
)

// Page describes one page of a generated document.
type Page struct {
	Width, Height float64
	// Lines are drawn top to bottom in Helvetica 12pt.
	Lines []string
	// Box draws a filled grey rectangle at (x, y, w, h) when non-nil.
	Box []float64
	// Rotate is written as the page's /Rotate entry when non-zero.
	Rotate int
}

// Options controls how the file is written.
type Options struct {
	Compress bool
}

// Letter is a US Letter page with the given lines of text.
func Letter(lines ...string) Page {
	return Page{Width: 612, Height: 792, Lines: lines}
}

// TextPages builds a document with one Letter page per argument.
func TextPages(texts ...string) []byte {
	pages := make([]Page, len(texts))
	for i, t := range texts {
		pages[i] = Letter(t)
	}
	return Build(Options{}, pages...)
}

// Blank builds a document of n empty Letter pages.
func Blank(n int) []byte {
	pages := make([]Page, n)
	for i := range pages {
		pages[i] = Letter()
	}
	return Build(Options{}, pages...)
}

// Build writes a complete PDF with a classic xref table.
func Build(opts Options, pages ...Page) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")

	const firstPage = 4
	n := firstPage + 2*len(pages)
	offsets := make([]int, n)

	obj := func(num int, body string) {
		offsets[num] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", num, body)
	}

	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", firstPage+2*i)
	}
	obj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	obj(2, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))
	obj(3, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")

	for i, p := range pages {
		num := firstPage + 2*i
		w, h := p.Width, p.Height
		if w == 0 || h == 0 {
			w, h = 612, 792
		}
		rotate := ""
		if p.Rotate != 0 {
			rotate = fmt.Sprintf(" /Rotate %d", p.Rotate)
		}
		obj(num, fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %g %g]%s "+
			"/Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", w, h, rotate, num+1))

		content := []byte(contentStream(p, h))
		dict := ""
		if opts.Compress {
			content = deflate(content)
			dict = " /Filter /FlateDecode"
		}
		offsets[num+1] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n<< /Length %d%s >>\nstream\n", num+1, len(content), dict)
		buf.Write(content)
		buf.WriteString("\nendstream\nendobj\n")
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", n)
	for i := 1; i < n; i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", n, xref)
	return buf.Bytes()
}

func contentStream(p Page, height float64) string {
	var sb strings.Builder
	if len(p.Box) == 4 {
		fmt.Fprintf(&sb, "q 0.5 g %g %g %g %g re f Q\n", p.Box[0], p.Box[1], p.Box[2], p.Box[3])
	}
	if len(p.Lines) == 0 {
		return sb.String()
	}
	fmt.Fprintf(&sb, "BT /F1 12 Tf 14 TL 72 %g Td\n", height-72)
	for i, line := range p.Lines {
		if i > 0 {
			sb.WriteString("T* ")
		}
		fmt.Fprintf(&sb, "(%s) Tj\n", Escape(line))
	}
	sb.WriteString("ET\n")
	return sb.String()
}

// Escape quotes s for use inside a literal string.
func Escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}

func deflate(b []byte) []byte {
	var out bytes.Buffer
	zw := zlib.NewWriter(&out)
	zw.Write(b)
	zw.Close()
	return out.Bytes()
}
