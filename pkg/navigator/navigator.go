// Package navigator owns the document session: which document is loaded,
// which page is shown and which render is current.
//
// Every new document starts a generation. Work started for an older
// generation is canceled and its results are dropped. Within a
// generation each render request gets a sequence number; a new render
// cancels the previous one and waits for it to settle before it starts,
// so completions arrive in request order.
package navigator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/jeremiesigrist/visu-pdf-pages/pkg/engine"
	"github.com/jeremiesigrist/visu-pdf-pages/pkg/logger"
)

var (
	// ErrNoDocument is returned by operations that need a loaded document.
	ErrNoDocument = errors.New("no document loaded")
	// ErrSearchInProgress is returned when a search is already running.
	ErrSearchInProgress = errors.New("a search is already running")
	// ErrInvalidWidth is returned for a non-positive viewport width.
	ErrInvalidWidth = errors.New("viewport width must be positive")
)

// DefaultWidth is the viewport width used until SetWidth is called.
// Widths are clamped to MinWidth..MaxWidth.
const (
	DefaultWidth = 900
	MinWidth     = 200
	MaxWidth     = 4000
)

func clampWidth(w float64) float64 {
	return min(max(w, MinWidth), MaxWidth)
}

// State is the controller's lifecycle state.
type State int

const (
	Idle State = iota
	Loading
	Ready
	Rendering
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Rendering:
		return "rendering"
	case Error:
		return "error"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// SearchOutcome is the last completed search of the session.
type SearchOutcome struct {
	Query  string
	Result engine.SearchResult
}

// Snapshot is a consistent copy of the controller's state.
type Snapshot struct {
	Generation uint64
	State      State
	Name       string
	Info       engine.Info
	// Page is the requested page, 1-based. Frame may still show another
	// page while State is Rendering.
	Page      int
	PageCount int
	Width     float64
	Frame     *engine.PageTarget
	// Stale marks a frame kept after the render that should have
	// replaced it failed.
	Stale     bool
	LoadErr   error
	RenderErr error
	Searching bool
	Search    *SearchOutcome
}

// Busy reports whether a load or render is in flight.
func (s Snapshot) Busy() bool { return s.State == Loading || s.State == Rendering }

// Loaded reports whether a document is open.
func (s Snapshot) Loaded() bool { return s.State == Ready || s.State == Rendering }

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger. The default discards.
func WithLogger(l logger.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithRenderer sets the page renderer.
func WithRenderer(r *engine.Renderer) Option {
	return func(c *Controller) { c.renderer = r }
}

// WithLoadOptions sets options passed to every engine.Load.
func WithLoadOptions(opts ...engine.Option) Option {
	return func(c *Controller) { c.loadOpts = append(c.loadOpts, opts...) }
}

// WithWidth sets the initial viewport width in pixels.
func WithWidth(w float64) Option {
	return func(c *Controller) {
		if w > 0 && !math.IsInf(w, 0) {
			c.width = clampWidth(w)
		}
	}
}

// Controller drives loading, rendering and searching for one viewer. It
// is safe for concurrent use. Failures are recorded in the snapshot
// rather than returned from the page operations.
type Controller struct {
	log      logger.Logger
	renderer *engine.Renderer
	loadOpts []engine.Option

	mu        sync.Mutex
	gen       uint64
	seq       uint64 // last render requested
	applied   uint64 // last render whose result was applied
	state     State
	name      string
	info      engine.Info
	doc       *engine.Document
	pages     int
	page      int
	// lastPage asks for the last page once the loading document is ready.
	lastPage  bool
	width     float64
	frame     *engine.PageTarget
	stale     bool
	loadErr   error
	renderErr error
	searching bool
	search    *SearchOutcome

	endSession   context.CancelFunc
	session      context.Context
	cancelRender context.CancelFunc
	renderDone   chan struct{}

	subs    map[int]chan Snapshot
	nextSub int

	wg sync.WaitGroup
}

// New returns an idle controller.
func New(opts ...Option) *Controller {
	c := &Controller{
		log:      logger.Nop(),
		renderer: engine.NewRenderer(true),
		width:    DefaultWidth,
		page:     1,
		subs:     map[int]chan Snapshot{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open starts a new session for data and returns its generation. Any
// previous document is released once its in-flight render settles. The
// new session starts on page 1. opts are added to the controller's load
// options for this document only.
func (c *Controller) Open(data []byte, name string, opts ...engine.Option) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.endSessionLocked()
	c.gen++
	gen := c.gen
	c.session, c.endSession = context.WithCancel(context.Background())
	c.resetLocked(Loading)
	c.name = name
	c.log.Info("loading document", "name", name, "generation", gen, "bytes", len(data))
	c.publishLocked()

	loadOpts := append(append([]engine.Option(nil), c.loadOpts...), opts...)
	c.wg.Add(1)
	go c.load(c.session, gen, data, loadOpts)
	return gen
}

func (c *Controller) load(ctx context.Context, gen uint64, data []byte, opts []engine.Option) {
	defer c.wg.Done()
	doc, err := engine.Load(ctx, data, opts...)
	if err != nil && engine.IsCanceled(err) {
		c.log.Debug("load canceled", "generation", gen)
		return
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		if doc != nil {
			doc.Release()
		}
		c.log.Debug("dropped superseded load", "generation", gen)
		return
	}
	defer c.mu.Unlock()

	if err == nil {
		c.pages, err = doc.PageCount()
		if err == nil {
			c.info, _ = doc.Info()
		}
	}
	if err != nil {
		if doc != nil {
			doc.Release()
		}
		c.state = Error
		c.loadErr = err
		c.log.Error("load failed", err, "name", c.name, "generation", gen)
		c.publishLocked()
		return
	}
	c.doc = doc
	c.log.Info("document loaded", "name", c.name, "pages", c.pages, "generation", gen)
	if c.lastPage {
		c.page, c.lastPage = c.pages, false
	}
	c.requestLocked(c.page)
}

// GoTo requests page, clamped to the document. While the document is
// still loading the request is kept and applied once it is ready.
func (c *Controller) GoTo(page int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gotoLocked(page)
}

func (c *Controller) gotoLocked(page int) error {
	switch c.state {
	case Idle, Error:
		return ErrNoDocument
	case Loading:
		c.page = max(page, 1)
		c.lastPage = false
		c.publishLocked()
		return nil
	}
	page = c.clamp(page)
	if page == c.page && c.renderErr == nil && (c.state == Rendering || (c.frame != nil && c.frame.Page == page)) {
		return nil
	}
	c.requestLocked(page)
	return nil
}

// Next moves one page forward, stopping at the last page.
func (c *Controller) Next() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gotoLocked(c.page + 1)
}

// Prev moves one page back, stopping at the first page.
func (c *Controller) Prev() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gotoLocked(c.page - 1)
}

// First goes to page 1.
func (c *Controller) First() error { return c.GoTo(1) }

// Last goes to the last page.
func (c *Controller) Last() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Loading {
		c.lastPage = true
		return nil
	}
	return c.gotoLocked(c.pages)
}

// SetWidth changes the viewport width, clamped to MinWidth..MaxWidth,
// and re-renders the current page.
func (c *Controller) SetWidth(w float64) error {
	if !(w > 0) || math.IsInf(w, 0) {
		return ErrInvalidWidth
	}
	w = clampWidth(w)
	c.mu.Lock()
	defer c.mu.Unlock()
	if w == c.width {
		return nil
	}
	c.width = w
	if c.state == Ready || c.state == Rendering {
		c.requestLocked(c.page)
	} else {
		c.publishLocked()
	}
	return nil
}

func (c *Controller) clamp(page int) int {
	return min(max(page, 1), max(c.pages, 1))
}

// requestLocked cancels the current render and issues one for page.
func (c *Controller) requestLocked(page int) {
	page = c.clamp(page)
	c.page = page
	if c.cancelRender != nil {
		c.cancelRender()
	}
	c.seq++
	ctx, cancel := context.WithCancel(c.session)
	prev, done := c.renderDone, make(chan struct{})
	c.cancelRender, c.renderDone = cancel, done
	c.state = Rendering
	c.publishLocked()

	req := engine.RenderRequest{Page: page, Width: c.width}
	c.wg.Add(1)
	go c.render(ctx, cancel, prev, done, c.gen, c.seq, c.doc, req)
}

func (c *Controller) render(ctx context.Context, cancel context.CancelFunc, prev, done chan struct{}, gen, seq uint64, doc *engine.Document, req engine.RenderRequest) {
	defer c.wg.Done()
	defer close(done)
	defer cancel()

	if prev != nil {
		<-prev
	}
	var (
		target *engine.PageTarget
		err    error
	)
	if err = ctx.Err(); err == nil {
		target, err = c.renderer.Render(ctx, doc, req)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || seq <= c.applied {
		c.log.Debug("dropped stale render", "page", req.Page, "generation", gen, "seq", seq)
		return
	}
	if err != nil {
		if engine.IsCanceled(err) || errors.Is(err, context.Canceled) {
			c.log.Debug("render canceled", "page", req.Page, "seq", seq)
			return
		}
		if seq != c.seq {
			c.log.Debug("ignored failure of superseded render", "page", req.Page, "error", err)
			return
		}
		c.applied = seq
		c.renderErr = err
		c.stale = c.frame != nil
		c.state = Ready
		c.log.Error("render failed", err, "page", req.Page, "generation", gen)
		c.publishLocked()
		return
	}
	c.applied = seq
	c.frame = target
	c.stale = false
	c.renderErr = nil
	if seq == c.seq {
		c.state = Ready
	}
	c.log.Debug("page rendered", "page", target.Page, "width", target.Width, "height", target.Height)
	c.publishLocked()
}

// Search looks for query in the current document and, on a hit, moves to
// the matching page. Only one search runs at a time. Opening another
// document cancels it.
func (c *Controller) Search(ctx context.Context, query string) (engine.SearchResult, error) {
	if query == "" {
		return engine.SearchResult{}, engine.ErrEmptyQuery
	}
	c.mu.Lock()
	if c.state != Ready && c.state != Rendering {
		c.mu.Unlock()
		return engine.SearchResult{}, ErrNoDocument
	}
	if c.searching {
		c.mu.Unlock()
		return engine.SearchResult{}, ErrSearchInProgress
	}
	c.searching = true
	gen, doc, session := c.gen, c.doc, c.session
	c.publishLocked()
	c.mu.Unlock()

	sctx, stop := context.WithCancel(ctx)
	defer stop()
	defer context.AfterFunc(session, stop)()

	res, err := engine.Search(sctx, doc, query)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		c.log.Debug("search superseded", "query", query, "generation", gen)
		return engine.SearchResult{}, fmt.Errorf("%w: document replaced", engine.ErrCanceled)
	}
	c.searching = false
	if err != nil {
		if engine.IsCanceled(err) {
			c.log.Debug("search canceled", "query", query)
		} else {
			c.log.Error("search failed", err, "query", query)
		}
		c.publishLocked()
		return res, err
	}
	c.search = &SearchOutcome{Query: query, Result: res}
	c.log.Info("search finished", "query", query, "found", res.Found, "page", res.Page, "scanned", res.Scanned)
	if res.Found {
		_ = c.gotoLocked(res.Page)
	}
	c.publishLocked()
	return res, nil
}

// Reset ends the session and returns to Idle.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endSessionLocked()
	c.gen++
	c.resetLocked(Idle)
	c.log.Info("session reset", "generation", c.gen)
	c.publishLocked()
}

// Close resets the controller and waits for background work to finish.
func (c *Controller) Close() {
	c.Reset()
	c.Wait()
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
}

// Wait blocks until no load, render or release is running.
func (c *Controller) Wait() { c.wg.Wait() }

// endSessionLocked cancels the session's work and schedules the release
// of its document once the last render has settled.
func (c *Controller) endSessionLocked() {
	if c.endSession != nil {
		c.endSession()
		c.endSession = nil
	}
	if c.cancelRender != nil {
		c.cancelRender()
		c.cancelRender = nil
	}
	if doc := c.doc; doc != nil {
		c.doc = nil
		settled := c.renderDone
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			if settled != nil {
				<-settled
			}
			doc.Release()
			c.log.Debug("document released", "id", doc.ID())
		}()
	}
}

func (c *Controller) resetLocked(s State) {
	c.state = s
	c.name = ""
	c.info = engine.Info{}
	c.pages = 0
	c.page = 1
	c.lastPage = false
	c.frame = nil
	c.stale = false
	c.loadErr = nil
	c.renderErr = nil
	c.searching = false
	c.search = nil
	c.seq, c.applied = 0, 0
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		Generation: c.gen,
		State:      c.state,
		Name:       c.name,
		Info:       c.info,
		Page:       c.page,
		PageCount:  c.pages,
		Width:      c.width,
		Frame:      c.frame,
		Stale:      c.stale,
		LoadErr:    c.loadErr,
		RenderErr:  c.renderErr,
		Searching:  c.searching,
		Search:     c.search,
	}
}

// Subscribe returns a channel that receives the current snapshot and
// then every change. Slow readers only see the latest snapshot. The
// returned func unsubscribes.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan Snapshot, 1)
	ch <- c.snapshotLocked()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if ch, ok := c.subs[id]; ok {
			close(ch)
			delete(c.subs, id)
		}
	}
}

func (c *Controller) publishLocked() {
	if len(c.subs) == 0 {
		return
	}
	s := c.snapshotLocked()
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}
