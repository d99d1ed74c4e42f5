package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremiesigrist/visu-pdf-pages/internal/index"
)

func TestMarkdownListsIssues(t *testing.T) {
	c := Check{
		Document: "bio.pdf",
		Pages:    10,
		Entries:  3,
		Issues: []index.Issue{
			{Index: 3, Name: "Cellules | Mitose", Problem: "page_fin 12 outside 1..10"},
		},
	}
	md := string(c.Markdown())
	assert.Contains(t, md, "# Index check: bio.pdf")
	assert.Contains(t, md, "- Issues: 1")
	assert.Contains(t, md, `| 3 | Cellules \| Mitose | page_fin 12 outside 1..10 |`)
	assert.False(t, c.OK())
}

func TestHTMLRendersTable(t *testing.T) {
	c := Check{Document: "bio.pdf", Pages: 10, Issues: []index.Issue{{Index: 1, Name: "A", Problem: "p"}}}
	out, err := c.HTML()
	require.NoError(t, err)
	html := string(out)
	assert.Contains(t, html, "<table>")
	assert.Contains(t, html, "<h1>Index check: bio.pdf</h1>")
	assert.Contains(t, html, "<td>A</td>")
}

func TestCleanReport(t *testing.T) {
	c := Check{Document: "ok.pdf", Pages: 4, Entries: 2}
	assert.True(t, c.OK())
	assert.Contains(t, string(c.Markdown()), "Every entry falls inside the document.")
}
