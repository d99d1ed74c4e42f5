package gui

import (
	"errors"
	"image"
	"testing"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremiesigrist/visu-pdf-pages/internal/enginetest"
	"github.com/jeremiesigrist/visu-pdf-pages/internal/index"
	"github.com/jeremiesigrist/visu-pdf-pages/internal/session"
	"github.com/jeremiesigrist/visu-pdf-pages/pkg/engine"
	"github.com/jeremiesigrist/visu-pdf-pages/pkg/navigator"
)

const chapters = `[
  {"chapitre_nom": "Cellules", "sous_chapitre": null, "type_bloc": "QCM", "page_ia": 2, "page_debut": 2, "page_fin": 3},
  {"chapitre_nom": "Photosynthèse", "sous_chapitre": "Phase claire", "type_bloc": "Correction", "page_ia": 7, "page_debut": 7, "page_fin": 19}
]`

func TestToolbarPageEntry(t *testing.T) {
	test.NewApp()
	tb := NewToolbar()
	var got []int
	tb.OnGoTo = func(p int) { got = append(got, p) }

	assert.True(t, tb.pageEntry.Disabled())
	tb.SetPage(3, 10)
	assert.Equal(t, "3", tb.pageEntry.Text)
	assert.Equal(t, "of 10", tb.pageLabel.Text)

	tb.submitPage(" 7 ")
	tb.submitPage("11")
	tb.submitPage("0")
	tb.submitPage("deux")
	assert.Equal(t, []int{7}, got)
	assert.Equal(t, "3", tb.pageEntry.Text)

	tb.SetPage(1, 10)
	assert.True(t, tb.firstBtn.Disabled())
	assert.True(t, tb.prevBtn.Disabled())
	assert.False(t, tb.nextBtn.Disabled())

	tb.SetPage(10, 10)
	assert.True(t, tb.lastBtn.Disabled())
	assert.False(t, tb.prevBtn.Disabled())

	tb.Disable()
	assert.Equal(t, "of 0", tb.pageLabel.Text)
	tb.submitPage("1")
	assert.Equal(t, []int{7}, got)
}

func TestToolbarButtons(t *testing.T) {
	test.NewApp()
	tb := NewToolbar()
	var calls []string
	tb.OnNext = func() { calls = append(calls, "next") }
	tb.OnSearch = func(q string) { calls = append(calls, "search "+q) }
	tb.SetPage(1, 2)

	test.Tap(tb.nextBtn)
	tb.submitSearch("")
	test.Type(tb.searchEntry, "cellule")
	test.Tap(tb.searchBtn)

	tb.SetSearching(true)
	assert.True(t, tb.searchBtn.Disabled())
	assert.Equal(t, []string{"next", "search cellule"}, calls)
}

func TestStatusText(t *testing.T) {
	frame := &engine.PageTarget{Page: 2}
	tests := []struct {
		name string
		snap navigator.Snapshot
		want string
	}{
		{"idle", navigator.Snapshot{}, "No document loaded"},
		{"loading", navigator.Snapshot{State: navigator.Loading, Name: "cours.pdf"}, "Loading cours.pdf..."},
		{"error", navigator.Snapshot{State: navigator.Error, Name: "cours.pdf"}, "Could not open cours.pdf"},
		{"rendering", navigator.Snapshot{State: navigator.Rendering, Page: 3, PageCount: 9, Frame: frame}, "Rendering page 3 of 9..."},
		{"ready", navigator.Snapshot{State: navigator.Ready, Page: 2, PageCount: 9}, "Page 2 of 9"},
		{"searching", navigator.Snapshot{State: navigator.Ready, Page: 2, PageCount: 9, Searching: true}, "Page 2 of 9 | Searching..."},
		{
			"found",
			navigator.Snapshot{State: navigator.Ready, Page: 7, PageCount: 9, Search: &navigator.SearchOutcome{Query: "ATP", Result: engine.SearchResult{Found: true, Page: 7}}},
			`Page 7 of 9 | "ATP" found on page 7`,
		},
		{
			"missed",
			navigator.Snapshot{State: navigator.Ready, Page: 2, PageCount: 9, Search: &navigator.SearchOutcome{Query: "ADN"}},
			`Page 2 of 9 | "ADN" not found`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusText(tt.snap))
		})
	}
}

func TestBannerText(t *testing.T) {
	boom := errors.New("boom")
	assert.Empty(t, bannerText(navigator.Snapshot{State: navigator.Ready}))
	assert.Equal(t, "Could not open the document: boom", bannerText(navigator.Snapshot{LoadErr: boom}))
	assert.Equal(t, "Page 4 could not be rendered: boom", bannerText(navigator.Snapshot{Page: 4, RenderErr: boom}))
	assert.Equal(t, "Page 4 could not be rendered, showing page 3: boom",
		bannerText(navigator.Snapshot{Page: 4, RenderErr: boom, Stale: true, Frame: &engine.PageTarget{Page: 3}}))
}

func TestRowsFor(t *testing.T) {
	ix, err := index.Parse([]byte(chapters))
	require.NoError(t, err)

	rows := rowsFor(ix, ix.Check(12))
	require.Len(t, rows, 2)
	assert.Equal(t, "Cellules", rows[0].title)
	assert.Equal(t, "QCM | pages 2-3 | AI page 2", rows[0].detail)
	assert.Empty(t, rows[0].issue)
	assert.Equal(t, "Photosynthèse / Phase claire", rows[1].title)
	assert.Equal(t, "page_fin 19 outside 1..12", rows[1].issue)

	qix, err := index.Parse([]byte(`[{"id": 4, "numero": 4, "question": "Quel organite ?", "reponse_correcte": "B", "sourceChapter": "Cellules"}]`))
	require.NoError(t, err)
	rows = rowsFor(qix, nil)
	require.Len(t, rows, 1)
	assert.Equal(t, entryRow{id: "4", title: "4. Quel organite ?", detail: "Answer B | Cellules", qcm: true}, rows[0])

	assert.Nil(t, rowsFor(nil, nil))
}

func TestIndexPanel(t *testing.T) {
	test.NewApp()
	ix, err := index.Parse([]byte(chapters))
	require.NoError(t, err)

	p := NewIndexPanel()
	p.SetIndex(ix, 12)
	assert.Equal(t, "2 chapters, 1 out of range", p.header.Text)
	assert.Equal(t, 2, p.length())

	var jumped []string
	p.OnJump = func(id string, field session.Field) { jumped = append(jumped, id+" "+string(field)) }
	item := p.createItem()
	p.updateItem(1, item)
	it := p.item(item)
	assert.Equal(t, "⚠ page_fin 19 outside 1..12", it.detail.Text)
	assert.False(t, it.find.Visible())
	test.Tap(it.end)

	id := ix.Chapters()[1].ID
	assert.Equal(t, []string{id + " page_fin"}, jumped)

	p.SetActive(id)
	p.updateItem(1, item)
	assert.Equal(t, "▶ Photosynthèse / Phase claire", it.title.Text)

	p.SetIndex(nil, 12)
	assert.Equal(t, "No index loaded", p.header.Text)
	assert.Zero(t, p.length())
}

func newTestApp(t *testing.T) (*App, *enginetest.Fake) {
	t.Helper()
	f := enginetest.Pages("bio", 12)
	nav := navigator.New(navigator.WithWidth(306))
	t.Cleanup(nav.Close)
	sess := session.New(nav, nil, engine.WithOpener(f.Opener()))
	return newApp(test.NewApp(), sess, nil), f
}

func settle(t *testing.T, a *App) navigator.Snapshot {
	t.Helper()
	var s navigator.Snapshot
	require.Eventually(t, func() bool {
		s = a.nav.Snapshot()
		return !s.Busy()
	}, 2*time.Second, 2*time.Millisecond)
	a.apply(s)
	return s
}

func TestAppFollowsNavigator(t *testing.T) {
	a, _ := newTestApp(t)
	a.apply(a.nav.Snapshot())
	assert.Equal(t, "No document loaded", a.status.label.Text)
	assert.True(t, a.toolbar.exportBtn.Disabled())

	require.NoError(t, a.start([]byte("%PDF-1.7"), "cours.pdf", []byte(chapters)))
	settle(t, a)
	assert.Equal(t, "Visu PDF Pages - cours.pdf", a.win.Title())
	assert.Equal(t, "Page 1 of 12", a.status.label.Text)
	assert.Equal(t, "of 12", a.toolbar.pageLabel.Text)
	assert.Equal(t, "2 chapters, 1 out of range", a.panel.header.Text)
	assert.False(t, a.toolbar.exportBtn.Disabled())
	require.NotNil(t, a.viewer.pageImg)
	assert.Equal(t, 1, enginetest.PageOf(a.viewer.pageImg.(*image.RGBA)))

	a.jump(mustIndex(t, a).Chapters()[0].ID, session.End)
	settle(t, a)
	assert.Equal(t, "Page 3 of 12", a.status.label.Text)
	assert.Equal(t, 3, a.viewer.page)

	a.handleKey(&fyne.KeyEvent{Name: fyne.KeyEnd})
	s := settle(t, a)
	assert.Equal(t, 12, s.Page)
	assert.True(t, a.toolbar.nextBtn.Disabled())
}

func TestAppKeepsIndexAcrossDocuments(t *testing.T) {
	a, _ := newTestApp(t)
	require.NoError(t, a.start([]byte("%PDF-1.7"), "a.pdf", []byte(chapters)))
	settle(t, a)

	a.panel.OnDelete(mustIndex(t, a).Chapters()[0].ID)
	assert.Equal(t, "1 chapters, 1 out of range", a.panel.header.Text)

	require.NoError(t, a.start([]byte("%PDF-1.7"), "b.pdf", nil))
	settle(t, a)
	ix := mustIndex(t, a)
	require.Equal(t, 1, ix.Len())
	assert.Equal(t, "Photosynthèse", ix.Chapters()[0].Name)
	assert.Equal(t, "Visu PDF Pages - b.pdf", a.win.Title())
}

func TestAppZoom(t *testing.T) {
	a, _ := newTestApp(t)
	require.NoError(t, a.start([]byte("%PDF-1.7"), "a.pdf", nil))
	settle(t, a)
	a.zoom(1)
	before := settle(t, a).Width

	a.zoom(zoomStep)
	s := settle(t, a)
	assert.False(t, a.fit)
	assert.InDelta(t, before*zoomStep, s.Width, 1)

	a.viewWidth = 640
	a.fitWidth()
	s = settle(t, a)
	assert.True(t, a.fit)
	assert.Equal(t, 640.0, s.Width)

	a.setWidth(10)
	assert.Equal(t, float64(navigator.MinWidth), settle(t, a).Width)
}

func mustIndex(t *testing.T, a *App) *index.Index {
	t.Helper()
	ix, err := a.sess.Index()
	require.NoError(t, err)
	return ix
}
