package gui

import (
	"fmt"
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

// Toolbar provides file, navigation, zoom and search controls.
type Toolbar struct {
	container *fyne.Container

	OnOpen      func()
	OnOpenIndex func()
	OnExport    func()
	OnPrev      func()
	OnNext      func()
	OnFirst     func()
	OnLast      func()
	OnGoTo      func(page int)
	OnZoomIn    func()
	OnZoomOut   func()
	OnFitWidth  func()
	OnSearch    func(query string)

	pageEntry   *widget.Entry
	pageLabel   *widget.Label
	firstBtn    *widget.Button
	prevBtn     *widget.Button
	nextBtn     *widget.Button
	lastBtn     *widget.Button
	searchEntry *widget.Entry
	searchBtn   *widget.Button
	exportBtn   *widget.Button

	currentPage int
	totalPages  int
}

// NewToolbar returns a toolbar with navigation disabled.
func NewToolbar() *Toolbar {
	t := &Toolbar{}
	t.build()
	t.Disable()
	return t
}

func fire(fn func()) {
	if fn != nil {
		fn()
	}
}

func (t *Toolbar) build() {
	openBtn := widget.NewButtonWithIcon("PDF", theme.FolderOpenIcon(), func() { fire(t.OnOpen) })
	indexBtn := widget.NewButtonWithIcon("Index", theme.ListIcon(), func() { fire(t.OnOpenIndex) })
	t.exportBtn = widget.NewButtonWithIcon("Export", theme.DocumentSaveIcon(), func() { fire(t.OnExport) })

	t.firstBtn = widget.NewButtonWithIcon("", theme.MediaSkipPreviousIcon(), func() { fire(t.OnFirst) })
	t.prevBtn = widget.NewButtonWithIcon("", theme.NavigateBackIcon(), func() { fire(t.OnPrev) })
	t.nextBtn = widget.NewButtonWithIcon("", theme.NavigateNextIcon(), func() { fire(t.OnNext) })
	t.lastBtn = widget.NewButtonWithIcon("", theme.MediaSkipNextIcon(), func() { fire(t.OnLast) })

	t.pageEntry = widget.NewEntry()
	t.pageEntry.SetPlaceHolder("Page")
	t.pageEntry.OnSubmitted = t.submitPage
	t.pageLabel = widget.NewLabel("of 0")

	zoomOutBtn := widget.NewButtonWithIcon("", theme.ZoomOutIcon(), func() { fire(t.OnZoomOut) })
	zoomInBtn := widget.NewButtonWithIcon("", theme.ZoomInIcon(), func() { fire(t.OnZoomIn) })
	fitWidthBtn := widget.NewButtonWithIcon("Width", theme.ViewFullScreenIcon(), func() { fire(t.OnFitWidth) })

	t.searchEntry = widget.NewEntry()
	t.searchEntry.SetPlaceHolder("Search text")
	t.searchEntry.OnSubmitted = t.submitSearch
	t.searchBtn = widget.NewButtonWithIcon("", theme.SearchIcon(), func() { t.submitSearch(t.searchEntry.Text) })

	t.container = container.NewHBox(
		openBtn,
		indexBtn,
		t.exportBtn,
		widget.NewSeparator(),
		t.firstBtn,
		t.prevBtn,
		container.NewGridWrap(fyne.NewSize(64, t.pageEntry.MinSize().Height), t.pageEntry),
		t.pageLabel,
		t.nextBtn,
		t.lastBtn,
		widget.NewSeparator(),
		zoomOutBtn,
		zoomInBtn,
		fitWidthBtn,
		widget.NewSeparator(),
		container.NewGridWrap(fyne.NewSize(200, t.searchEntry.MinSize().Height), t.searchEntry),
		t.searchBtn,
	)
}

// submitPage accepts only whole numbers inside the document; anything
// else restores the current page.
func (t *Toolbar) submitPage(s string) {
	page, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || page < 1 || page > t.totalPages {
		t.pageEntry.SetText(strconv.Itoa(t.currentPage))
		return
	}
	if t.OnGoTo != nil {
		t.OnGoTo(page)
	}
}

func (t *Toolbar) submitSearch(q string) {
	if q == "" || t.OnSearch == nil {
		return
	}
	t.OnSearch(q)
}

// Container returns the toolbar container.
func (t *Toolbar) Container() *fyne.Container {
	return t.container
}

// SetPage shows the 1-based current page and enables the controls that
// can move.
func (t *Toolbar) SetPage(current, total int) {
	t.currentPage = current
	t.totalPages = total

	if t.pageEntry.Text != strconv.Itoa(current) {
		t.pageEntry.SetText(strconv.Itoa(current))
	}
	t.pageEntry.Enable()
	t.pageLabel.SetText("of " + strconv.Itoa(total))
	t.searchEntry.Enable()
	t.searchBtn.Enable()

	enable(t.firstBtn, current > 1)
	enable(t.prevBtn, current > 1)
	enable(t.nextBtn, current < total)
	enable(t.lastBtn, current < total)
}

// SetSearching locks the search controls while a search runs.
func (t *Toolbar) SetSearching(running bool) {
	enable(t.searchBtn, !running)
}

// SetExportable enables export when an index is loaded.
func (t *Toolbar) SetExportable(ok bool) {
	enable(t.exportBtn, ok)
}

// Disable disables the document controls.
func (t *Toolbar) Disable() {
	t.currentPage, t.totalPages = 0, 0
	for _, b := range []*widget.Button{t.firstBtn, t.prevBtn, t.nextBtn, t.lastBtn, t.searchBtn} {
		b.Disable()
	}
	t.pageEntry.SetText("")
	t.pageEntry.Disable()
	t.searchEntry.Disable()
	t.pageLabel.SetText("of 0")
}

func enable(b *widget.Button, on bool) {
	if on {
		b.Enable()
	} else {
		b.Disable()
	}
}

// StatusBar shows the session state and the viewport width.
type StatusBar struct {
	container  *fyne.Container
	label      *widget.Label
	widthLabel *widget.Label
}

// NewStatusBar returns a status bar reading "No document loaded".
func NewStatusBar() *StatusBar {
	s := &StatusBar{
		label:      widget.NewLabel("No document loaded"),
		widthLabel: widget.NewLabel(""),
	}
	s.container = container.NewHBox(s.label, widget.NewSeparator(), s.widthLabel)
	return s
}

// Container returns the status bar container.
func (s *StatusBar) Container() *fyne.Container {
	return s.container
}

// SetStatus sets the status message.
func (s *StatusBar) SetStatus(msg string) {
	s.label.SetText(msg)
}

// SetWidth shows the viewport width in pixels.
func (s *StatusBar) SetWidth(px float64) {
	s.widthLabel.SetText(fmt.Sprintf("%.0f px", px))
}
