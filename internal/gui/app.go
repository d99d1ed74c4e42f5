// Package gui provides the desktop verifier window using Fyne.
package gui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/jeremiesigrist/visu-pdf-pages/internal/index"
	"github.com/jeremiesigrist/visu-pdf-pages/internal/session"
	"github.com/jeremiesigrist/visu-pdf-pages/pkg/engine"
	"github.com/jeremiesigrist/visu-pdf-pages/pkg/logger"
	"github.com/jeremiesigrist/visu-pdf-pages/pkg/navigator"
)

const (
	title      = "Visu PDF Pages"
	exportName = "index_corrige.json"
	zoomStep   = 1.2
)

// App is the verifier window. Every widget is updated from navigator
// snapshots; user actions only send requests.
type App struct {
	fyneApp fyne.App
	win     fyne.Window
	sess    *session.Session
	nav     *navigator.Controller
	log     logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	toolbar *Toolbar
	status  *StatusBar
	viewer  *PageViewer
	panel   *IndexPanel
	banner  *widget.Label

	// fit follows the viewport width until the user zooms.
	fit       bool
	viewWidth float32
	gen       uint64
	pages     int
}

// NewApp creates the window for sess.
func NewApp(sess *session.Session, log logger.Logger) *App {
	return newApp(app.New(), sess, log)
}

func newApp(fa fyne.App, sess *session.Session, log logger.Logger) *App {
	if log == nil {
		log = logger.Nop()
	}
	a := &App{
		fyneApp: fa,
		sess:    sess,
		nav:     sess.Navigator(),
		log:     log,
		fit:     true,
	}
	a.ctx, a.cancel = context.WithCancel(context.Background())

	a.fyneApp.Settings().SetTheme(theme.DarkTheme())
	a.win = a.fyneApp.NewWindow(title)
	a.win.Resize(fyne.NewSize(1280, 860))
	a.buildUI()
	return a
}

// Run shows the window and blocks until it is closed. pdfPath and
// indexPath are loaded first when not empty.
func (a *App) Run(pdfPath, indexPath string) error {
	snaps, stop := a.nav.Subscribe()
	defer stop()
	go func() {
		for s := range snaps {
			a.apply(s)
		}
	}()

	if pdfPath != "" {
		go func() {
			if err := a.loadFiles(pdfPath, indexPath); err != nil {
				a.log.Error("open files", err, "pdf", pdfPath, "index", indexPath)
				dialog.ShowError(err, a.win)
			}
		}()
	}

	a.win.SetOnClosed(a.cancel)
	a.win.ShowAndRun()
	a.cancel()
	return nil
}

func (a *App) buildUI() {
	a.toolbar = NewToolbar()
	a.toolbar.OnOpen = a.openPDF
	a.toolbar.OnOpenIndex = a.openIndex
	a.toolbar.OnExport = a.exportIndex
	a.toolbar.OnFirst = a.navigate(a.nav.First)
	a.toolbar.OnPrev = a.navigate(a.nav.Prev)
	a.toolbar.OnNext = a.navigate(a.nav.Next)
	a.toolbar.OnLast = a.navigate(a.nav.Last)
	a.toolbar.OnGoTo = func(p int) { a.navigate(func() error { return a.nav.GoTo(p) })() }
	a.toolbar.OnZoomIn = func() { a.zoom(zoomStep) }
	a.toolbar.OnZoomOut = func() { a.zoom(1 / zoomStep) }
	a.toolbar.OnFitWidth = a.fitWidth
	a.toolbar.OnSearch = a.search
	a.toolbar.SetExportable(false)

	a.status = NewStatusBar()
	a.status.SetWidth(a.nav.Snapshot().Width)

	a.viewer = NewPageViewer()
	a.viewer.OnResized = a.resized

	a.banner = widget.NewLabel("")
	a.banner.Importance = widget.DangerImportance
	a.banner.Wrapping = fyne.TextWrapWord
	a.banner.Hide()

	a.panel = NewIndexPanel()
	a.panel.OnJump = a.jump
	a.panel.OnFind = a.findQuestion
	a.panel.OnReclassify = a.editEntry(func(ix *index.Index, id string) error {
		_, err := ix.Reclassify(id, "")
		return err
	})
	a.panel.OnDuplicate = a.editEntry(func(ix *index.Index, id string) error {
		_, err := ix.Duplicate(id)
		return err
	})
	a.panel.OnDelete = a.editEntry(func(ix *index.Index, id string) error {
		return ix.Remove(id)
	})

	page := container.NewBorder(a.banner, nil, nil, nil, a.viewer)
	split := container.NewHSplit(a.panel.Container(), page)
	split.Offset = 0.3

	content := container.NewBorder(
		container.NewPadded(a.toolbar.Container()),
		container.NewPadded(a.status.Container()),
		nil,
		nil,
		split,
	)
	a.win.SetContent(content)
	a.win.Canvas().SetOnTypedKey(a.handleKey)
}

// apply redraws the window from s.
func (a *App) apply(s navigator.Snapshot) {
	if s.Generation != a.gen {
		a.gen = s.Generation
		a.viewer.Clear()
	}

	switch {
	case s.Name != "":
		a.win.SetTitle(title + " - " + s.Name)
	default:
		a.win.SetTitle(title)
	}

	if s.Loaded() {
		a.toolbar.SetPage(s.Page, s.PageCount)
	} else {
		a.toolbar.Disable()
	}
	a.toolbar.SetSearching(s.Searching)

	if s.Frame != nil {
		a.viewer.SetFrame(s.Frame.Image, s.Frame.Page, s.Stale)
	} else if s.State == navigator.Idle {
		a.viewer.Clear()
	}

	if msg := bannerText(s); msg != "" {
		a.banner.SetText(msg)
		a.banner.Show()
	} else {
		a.banner.Hide()
	}

	a.status.SetStatus(statusText(s))
	a.status.SetWidth(s.Width)

	if s.PageCount != a.pages {
		a.pages = s.PageCount
		a.refreshIndex()
	}
	a.panel.SetActive(a.sess.Active())
}

// statusText summarizes s for the status bar.
func statusText(s navigator.Snapshot) string {
	var msg string
	switch s.State {
	case navigator.Idle:
		return "No document loaded"
	case navigator.Loading:
		return fmt.Sprintf("Loading %s...", s.Name)
	case navigator.Error:
		return fmt.Sprintf("Could not open %s", s.Name)
	case navigator.Rendering:
		msg = fmt.Sprintf("Rendering page %d of %d...", s.Page, s.PageCount)
	default:
		msg = fmt.Sprintf("Page %d of %d", s.Page, s.PageCount)
	}

	switch {
	case s.Searching:
		msg += " | Searching..."
	case s.Search != nil && s.Search.Result.Found:
		msg += fmt.Sprintf(" | %q found on page %d", s.Search.Query, s.Search.Result.Page)
	case s.Search != nil:
		msg += fmt.Sprintf(" | %q not found", s.Search.Query)
	}
	return msg
}

// bannerText is the error shown above the page, or "".
func bannerText(s navigator.Snapshot) string {
	switch {
	case s.LoadErr != nil:
		return "Could not open the document: " + s.LoadErr.Error()
	case s.RenderErr != nil && s.Stale:
		return fmt.Sprintf("Page %d could not be rendered, showing page %d: %v", s.Page, s.Frame.Page, s.RenderErr)
	case s.RenderErr != nil:
		return fmt.Sprintf("Page %d could not be rendered: %v", s.Page, s.RenderErr)
	}
	return ""
}

func (a *App) handleKey(key *fyne.KeyEvent) {
	switch key.Name {
	case fyne.KeyLeft, fyne.KeyUp, fyne.KeyPageUp:
		a.navigate(a.nav.Prev)()
	case fyne.KeyRight, fyne.KeyDown, fyne.KeyPageDown, fyne.KeySpace:
		a.navigate(a.nav.Next)()
	case fyne.KeyHome:
		a.navigate(a.nav.First)()
	case fyne.KeyEnd:
		a.navigate(a.nav.Last)()
	case fyne.KeyPlus, fyne.KeyEqual:
		a.zoom(zoomStep)
	case fyne.KeyMinus:
		a.zoom(1 / zoomStep)
	case fyne.Key0:
		a.fitWidth()
	}
}

// navigate wraps a navigator request. Without a document there is
// nothing to move, so ErrNoDocument is not reported.
func (a *App) navigate(fn func() error) func() {
	return func() {
		if err := fn(); err != nil && !errors.Is(err, navigator.ErrNoDocument) {
			a.log.Warn("navigation refused", "error", err)
		}
	}
}

func (a *App) resized(width float32) {
	a.viewWidth = width
	if a.fit {
		a.setWidth(float64(width))
	}
}

func (a *App) fitWidth() {
	a.fit = true
	a.viewer.ResetZoom()
	if a.viewWidth > 0 {
		a.setWidth(float64(a.viewWidth))
	}
}

func (a *App) zoom(factor float64) {
	a.fit = false
	a.setWidth(a.nav.Snapshot().Width * factor)
}

func (a *App) setWidth(w float64) {
	w = math.Max(navigator.MinWidth, math.Min(navigator.MaxWidth, math.Round(w)))
	if err := a.nav.SetWidth(w); err != nil {
		a.log.Warn("width refused", "width", w, "error", err)
	}
}

func (a *App) search(query string) {
	go func() {
		if _, err := a.nav.Search(a.ctx, query); err != nil {
			a.reportSearch(err)
		}
	}()
}

func (a *App) reportSearch(err error) {
	switch {
	case engine.IsCanceled(err), errors.Is(err, navigator.ErrSearchInProgress):
		a.log.Debug("search dropped", "reason", err)
	default:
		dialog.ShowError(err, a.win)
	}
}

func (a *App) jump(id string, field session.Field) {
	if _, err := a.sess.Jump(id, field); err != nil {
		dialog.ShowError(err, a.win)
		return
	}
	a.panel.SetActive(id)
}

func (a *App) findQuestion(id string) {
	go func() {
		res, err := a.sess.Find(a.ctx, id)
		if err != nil {
			a.reportSearch(err)
			return
		}
		a.panel.SetActive(id)
		if !res.Found {
			a.log.Info("question not found", "id", id, "scanned", res.Scanned)
		}
	}()
}

func (a *App) editEntry(fn func(ix *index.Index, id string) error) func(string) {
	return func(id string) {
		ix, err := a.sess.Index()
		if err == nil {
			err = fn(ix, id)
		}
		if err != nil {
			dialog.ShowError(err, a.win)
			return
		}
		a.refreshIndex()
	}
}

func (a *App) refreshIndex() {
	ix, err := a.sess.Index()
	if err != nil {
		ix = nil
	}
	a.panel.SetIndex(ix, a.pages)
	a.toolbar.SetExportable(ix != nil)
}

// loadFiles starts a session from files on disk.
func (a *App) loadFiles(pdfPath, indexPath string) error {
	pdf, err := os.ReadFile(pdfPath)
	if err != nil {
		return err
	}
	var idx []byte
	if indexPath != "" {
		if idx, err = os.ReadFile(indexPath); err != nil {
			return err
		}
	}
	return a.start(pdf, filepath.Base(pdfPath), idx)
}

// start opens pdf. Without a new index the current one is carried over.
func (a *App) start(pdf []byte, name string, idx []byte) error {
	if idx == nil {
		if ix, err := a.sess.Index(); err == nil {
			if idx, err = ix.Export(); err != nil {
				return err
			}
		}
	}
	if _, err := a.sess.Start(pdf, name, idx); err != nil {
		return err
	}
	a.fit = true
	a.refreshIndex()
	return nil
}

func (a *App) openPDF() {
	d := dialog.NewFileOpen(func(r fyne.URIReadCloser, err error) {
		data, name, err := readAll(r, err)
		if err != nil {
			dialog.ShowError(err, a.win)
			return
		}
		if data == nil {
			return
		}
		if err := a.start(data, name, nil); err != nil {
			dialog.ShowError(err, a.win)
		}
	}, a.win)
	d.SetFilter(storage.NewExtensionFileFilter([]string{".pdf"}))
	d.Show()
}

func (a *App) openIndex() {
	d := dialog.NewFileOpen(func(r fyne.URIReadCloser, err error) {
		data, _, err := readAll(r, err)
		if err != nil {
			dialog.ShowError(err, a.win)
			return
		}
		if data == nil {
			return
		}
		if _, err := a.sess.SetIndex(data); err != nil {
			dialog.ShowError(err, a.win)
			return
		}
		a.refreshIndex()
	}, a.win)
	d.SetFilter(storage.NewExtensionFileFilter([]string{".json"}))
	d.Show()
}

// readAll drains a dialog result. A canceled dialog yields nil data.
func readAll(r fyne.URIReadCloser, err error) ([]byte, string, error) {
	if err != nil || r == nil {
		return nil, "", err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", r.URI().Name(), err)
	}
	return data, r.URI().Name(), nil
}

func (a *App) exportIndex() {
	ix, err := a.sess.Index()
	if err != nil {
		dialog.ShowError(err, a.win)
		return
	}
	out, err := ix.Export()
	if err != nil {
		dialog.ShowError(err, a.win)
		return
	}
	d := dialog.NewFileSave(func(w fyne.URIWriteCloser, err error) {
		if err != nil {
			dialog.ShowError(err, a.win)
			return
		}
		if w == nil {
			return
		}
		defer w.Close()
		if _, err := w.Write(out); err != nil {
			dialog.ShowError(err, a.win)
			return
		}
		a.log.Info("index exported", "uri", w.URI().String(), "entries", ix.Len())
	}, a.win)
	d.SetFileName(exportName)
	d.Show()
}
