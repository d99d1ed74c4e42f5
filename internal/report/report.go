// Package report formats the result of checking an index against a PDF.
package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/jeremiesigrist/visu-pdf-pages/internal/index"
)

// Check is the outcome of comparing an index with a document.
type Check struct {
	Document string
	Pages    int
	Mode     index.Mode
	Entries  int
	Issues   []index.Issue
}

// OK reports whether every entry fits the document.
func (c Check) OK() bool { return len(c.Issues) == 0 }

// Markdown renders c as a Markdown document with one table row per issue.
func (c Check) Markdown() []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# Index check: %s\n\n", cell(c.Document))
	fmt.Fprintf(&b, "- Pages: %d\n- Mode: %s\n- Entries: %d\n- Issues: %d\n\n", c.Pages, c.Mode, c.Entries, len(c.Issues))
	if c.OK() {
		b.WriteString("Every entry falls inside the document.\n")
		return b.Bytes()
	}
	b.WriteString("| # | Chapter | Problem |\n|---:|---|---|\n")
	for _, is := range c.Issues {
		fmt.Fprintf(&b, "| %d | %s | %s |\n", is.Index, cell(is.Name), cell(is.Problem))
	}
	return b.Bytes()
}

// HTML renders the Markdown report as a standalone HTML page.
func (c Check) HTML() ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	var body bytes.Buffer
	if err := md.Convert(c.Markdown(), &body); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	var out bytes.Buffer
	out.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>Index check</title></head><body>\n")
	out.Write(body.Bytes())
	out.WriteString("</body></html>\n")
	return out.Bytes(), nil
}

// cell escapes text for a Markdown table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}
