package gui

import (
	"fmt"
	"strings"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/jeremiesigrist/visu-pdf-pages/internal/index"
	"github.com/jeremiesigrist/visu-pdf-pages/internal/session"
)

// entryRow is one line of the index panel.
type entryRow struct {
	id     string
	title  string
	detail string
	qcm    bool
	issue  string
}

// rowsFor lists the entries of ix. issues marks chapters whose pages do
// not fit the document.
func rowsFor(ix *index.Index, issues []index.Issue) []entryRow {
	if ix == nil {
		return nil
	}
	bad := make(map[string]string, len(issues))
	for _, is := range issues {
		bad[is.ID] = is.Problem
	}

	if ix.Mode() == index.QCMMode {
		qs := ix.QCMs()
		rows := make([]entryRow, len(qs))
		for i, q := range qs {
			title := strings.TrimSpace(q.Question)
			if q.Number != "" {
				title = fmt.Sprintf("%s. %s", q.Number, title)
			}
			rows[i] = entryRow{
				id:     q.ID,
				title:  title,
				detail: "Answer " + q.Answer,
				qcm:    true,
			}
			if q.SourceChapter != "" {
				rows[i].detail += " | " + q.SourceChapter
			}
		}
		return rows
	}

	cs := ix.Chapters()
	rows := make([]entryRow, len(cs))
	for i, c := range cs {
		title := c.Name
		if c.SubChapter != nil && *c.SubChapter != "" {
			title += " / " + *c.SubChapter
		}
		rows[i] = entryRow{
			id:     c.ID,
			title:  title,
			detail: fmt.Sprintf("%s | pages %d-%d | AI page %d", c.Type, c.Start, c.End, c.AIPage),
			issue:  bad[c.ID],
		}
	}
	return rows
}

// IndexPanel lists the loaded index with jump and edit buttons.
type IndexPanel struct {
	container *fyne.Container
	header    *widget.Label
	list      *widget.List

	mu     sync.Mutex
	rows   []entryRow
	active string

	OnJump       func(id string, field session.Field)
	OnFind       func(id string)
	OnReclassify func(id string)
	OnDuplicate  func(id string)
	OnDelete     func(id string)
}

// NewIndexPanel returns an empty panel.
func NewIndexPanel() *IndexPanel {
	p := &IndexPanel{header: widget.NewLabel("No index loaded")}
	p.header.TextStyle = fyne.TextStyle{Bold: true}
	p.list = widget.NewList(p.length, p.createItem, p.updateItem)
	p.container = container.NewBorder(p.header, nil, nil, nil, p.list)
	return p
}

// Container returns the panel container.
func (p *IndexPanel) Container() *fyne.Container {
	return p.container
}

// SetIndex shows ix, checked against a document of pages pages. A zero
// page count skips the check.
func (p *IndexPanel) SetIndex(ix *index.Index, pages int) {
	var issues []index.Issue
	header := "No index loaded"
	if ix != nil {
		if pages > 0 {
			issues = ix.Check(pages)
		}
		header = fmt.Sprintf("%d %s", ix.Len(), ix.Mode())
		if len(issues) > 0 {
			header += fmt.Sprintf(", %d out of range", len(issues))
		}
	}
	p.mu.Lock()
	p.rows = rowsFor(ix, issues)
	p.mu.Unlock()
	p.header.SetText(header)
	p.list.Refresh()
}

// SetActive highlights the entry last jumped to.
func (p *IndexPanel) SetActive(id string) {
	p.mu.Lock()
	changed := p.active != id
	p.active = id
	p.mu.Unlock()
	if changed {
		p.list.Refresh()
	}
}

func (p *IndexPanel) length() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.rows)
}

func (p *IndexPanel) row(i widget.ListItemID) (entryRow, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= len(p.rows) {
		return entryRow{}, false
	}
	r := p.rows[i]
	if r.id == p.active {
		r.title = "▶ " + r.title
	}
	return r, true
}

type rowItem struct {
	title, detail                *widget.Label
	start, end, find             *widget.Button
	reclassify, duplicate, erase *widget.Button
}

func (p *IndexPanel) createItem() fyne.CanvasObject {
	title := widget.NewLabel("")
	title.Truncation = fyne.TextTruncateEllipsis
	detail := widget.NewLabel("")
	detail.TextStyle = fyne.TextStyle{Italic: true}
	detail.Truncation = fyne.TextTruncateEllipsis

	buttons := container.NewHBox(
		widget.NewButton("Start", nil),
		widget.NewButton("End", nil),
		widget.NewButtonWithIcon("", theme.SearchIcon(), nil),
		widget.NewButtonWithIcon("", theme.ViewRefreshIcon(), nil),
		widget.NewButtonWithIcon("", theme.ContentCopyIcon(), nil),
		widget.NewButtonWithIcon("", theme.DeleteIcon(), nil),
	)
	return container.NewBorder(nil, nil, nil, buttons, container.NewVBox(title, detail))
}

func (p *IndexPanel) item(o fyne.CanvasObject) rowItem {
	c := o.(*fyne.Container)
	text := c.Objects[0].(*fyne.Container)
	btn := c.Objects[1].(*fyne.Container).Objects
	return rowItem{
		title:      text.Objects[0].(*widget.Label),
		detail:     text.Objects[1].(*widget.Label),
		start:      btn[0].(*widget.Button),
		end:        btn[1].(*widget.Button),
		find:       btn[2].(*widget.Button),
		reclassify: btn[3].(*widget.Button),
		duplicate:  btn[4].(*widget.Button),
		erase:      btn[5].(*widget.Button),
	}
}

func (p *IndexPanel) updateItem(i widget.ListItemID, o fyne.CanvasObject) {
	r, ok := p.row(i)
	if !ok {
		return
	}
	it := p.item(o)
	it.title.SetText(r.title)
	detail := r.detail
	if r.issue != "" {
		detail = "⚠ " + r.issue
		it.detail.Importance = widget.DangerImportance
	} else {
		it.detail.Importance = widget.MediumImportance
	}
	it.detail.SetText(detail)

	id := r.id
	it.start.OnTapped = func() { p.jump(id, session.Start) }
	it.end.OnTapped = func() { p.jump(id, session.End) }
	it.find.OnTapped = func() { callID(p.OnFind, id) }
	it.reclassify.OnTapped = func() { callID(p.OnReclassify, id) }
	it.duplicate.OnTapped = func() { callID(p.OnDuplicate, id) }
	it.erase.OnTapped = func() { callID(p.OnDelete, id) }

	for _, b := range []*widget.Button{it.start, it.end, it.reclassify, it.duplicate, it.erase} {
		show(b, !r.qcm)
	}
	show(it.find, r.qcm)
}

func (p *IndexPanel) jump(id string, field session.Field) {
	if p.OnJump != nil {
		p.OnJump(id, field)
	}
}

func callID(fn func(string), id string) {
	if fn != nil {
		fn(id)
	}
}

func show(o fyne.CanvasObject, on bool) {
	if on {
		o.Show()
	} else {
		o.Hide()
	}
}
