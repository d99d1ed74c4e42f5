// Package session pairs the navigator with the index being verified.
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jeremiesigrist/visu-pdf-pages/internal/index"
	"github.com/jeremiesigrist/visu-pdf-pages/pkg/engine"
	"github.com/jeremiesigrist/visu-pdf-pages/pkg/logger"
	"github.com/jeremiesigrist/visu-pdf-pages/pkg/navigator"
)

// Field picks which page of a chapter to jump to.
type Field string

const (
	Start Field = "page_debut"
	End   Field = "page_fin"
)

// Session is one verification session: a document, its index and the
// entry the user last jumped to.
type Session struct {
	nav  *navigator.Controller
	log  logger.Logger
	opts []engine.Option

	mu    sync.RWMutex
	id    string
	index *index.Index
	sel   index.Selection
	seq   atomic.Uint64
}

// New returns an empty session driving nav. opts are passed to every
// document load.
func New(nav *navigator.Controller, log logger.Logger, opts ...engine.Option) *Session {
	if log == nil {
		log = logger.Nop()
	}
	return &Session{nav: nav, log: log, opts: opts}
}

// Navigator returns the controller behind the session.
func (s *Session) Navigator() *navigator.Controller { return s.nav }

// Start begins a new session for pdf and, when idx is not nil, its
// index. An invalid index leaves the current session untouched. The
// session id changes on every call, even for identical files.
func (s *Session) Start(pdf []byte, name string, idx []byte) (string, error) {
	var ix *index.Index
	if idx != nil {
		var err error
		if ix, err = index.Parse(idx); err != nil {
			return "", err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = fmt.Sprintf("%d-%d", time.Now().UnixMilli(), s.seq.Add(1))
	s.index = ix
	s.sel.Clear()
	gen := s.nav.Open(pdf, name, s.opts...)
	s.log.Info("session started", "session", s.id, "pdf", name, "generation", gen, "indexed", ix != nil)
	return s.id, nil
}

// SetIndex replaces the index of the current session.
func (s *Session) SetIndex(idx []byte) (*index.Index, error) {
	ix, err := index.Parse(idx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = ix
	s.sel.Clear()
	s.log.Info("index replaced", "session", s.id, "mode", ix.Mode(), "entries", ix.Len())
	return ix, nil
}

// ID returns the session id, or "" when no session is active.
func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// Index returns the loaded index.
func (s *Session) Index() (*index.Index, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.index == nil {
		return nil, index.ErrNoIndex
	}
	return s.index, nil
}

// Active returns the id of the entry last jumped to.
func (s *Session) Active() string { return s.sel.Active() }

// Jump moves the viewer to the start or end page of the chapter id and
// marks it active. It returns the page requested; the navigator clamps
// it to the document.
func (s *Session) Jump(id string, field Field) (int, error) {
	ix, err := s.Index()
	if err != nil {
		return 0, err
	}
	c, err := ix.Get(id)
	if err != nil {
		return 0, err
	}
	page := c.Start
	switch field {
	case Start, "":
	case End:
		page = c.End
	default:
		return 0, fmt.Errorf("%w: unknown page field %q", index.ErrInvalidIndex, field)
	}
	if err := s.nav.GoTo(page); err != nil {
		return 0, err
	}
	s.sel.Set(id)
	return page, nil
}

// Find searches the document for the question text of QCM id and marks
// the question active.
func (s *Session) Find(ctx context.Context, id string) (engine.SearchResult, error) {
	ix, err := s.Index()
	if err != nil {
		return engine.SearchResult{}, err
	}
	q, err := ix.Question(id)
	if err != nil {
		return engine.SearchResult{}, err
	}
	res, err := s.nav.Search(ctx, q.Question)
	if err != nil {
		return res, err
	}
	s.sel.Set(id)
	return res, nil
}

// Reset ends the session and returns the navigator to Idle.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nav.Reset()
	s.id = ""
	s.index = nil
	s.sel.Clear()
	s.log.Info("session cleared")
}
