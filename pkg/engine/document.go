// Package engine loads PDF documents, renders their pages to bitmaps with
// a text overlay and searches their text.
package engine

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"

	"github.com/jeremiesigrist/visu-pdf-pages/pkg/raster"
)

// Backend is an opened PDF. Page indexes are 0-based. Implementations
// must be safe for concurrent use.
type Backend interface {
	PageCount() int
	// PageSize returns the displayed size in PDF units, rotation applied.
	PageSize(i int) (w, h float64, err error)
	// Render rasterizes page i at scale and lays out its text in the
	// same pixel space.
	Render(ctx context.Context, i int, scale float64) (*image.RGBA, []raster.Fragment, error)
	// Text returns the text fragments of page i in reading order.
	Text(ctx context.Context, i int) ([]string, error)
	Info() Info
	Close() error
}

// Info is the document metadata shown by the command line and the UI.
type Info struct {
	Title    string `json:"title,omitempty"`
	Author   string `json:"author,omitempty"`
	Subject  string `json:"subject,omitempty"`
	Creator  string `json:"creator,omitempty"`
	Producer string `json:"producer,omitempty"`
	Version  string `json:"version,omitempty"`
}

var lastID atomic.Uint64

// Document is a loaded PDF. Its backend is released exactly once by
// Release; accessors afterwards return ErrReleased.
type Document struct {
	id      uint64
	backend Backend
	pages   int
	info    Info

	mu       sync.RWMutex // held for reading while the backend is in use
	once     sync.Once
	released atomic.Bool
}

type loaded struct {
	backend Backend
	err     error
}

// Load opens data with the configured backend. It fails with a
// *LoadError when the bytes are empty or not a readable PDF. If ctx is
// done first, Load returns ErrCanceled and the backend is closed as soon
// as opening finishes, without ever being exposed.
func Load(ctx context.Context, data []byte, opts ...Option) (*Document, error) {
	o := newLoadOptions(opts)
	if len(data) == 0 {
		return nil, &LoadError{Err: errors.New("empty document")}
	}
	if err := ctx.Err(); err != nil {
		return nil, canceled(err)
	}
	open, err := o.opener()
	if err != nil {
		return nil, &LoadError{Err: err}
	}

	ch := make(chan loaded, 1)
	go func() {
		b, err := open(ctx, data)
		ch <- loaded{b, err}
	}()

	select {
	case l := <-ch:
		if l.err != nil {
			if ctx.Err() != nil {
				return nil, canceled(ctx.Err())
			}
			return nil, &LoadError{Err: l.err}
		}
		if ctx.Err() != nil {
			l.backend.Close()
			return nil, canceled(ctx.Err())
		}
		return newDocument(l.backend)
	case <-ctx.Done():
		go func() {
			if l := <-ch; l.backend != nil {
				l.backend.Close()
			}
		}()
		return nil, canceled(ctx.Err())
	}
}

func newDocument(b Backend) (*Document, error) {
	n := b.PageCount()
	if n <= 0 {
		b.Close()
		return nil, &LoadError{Err: errors.New("document has no pages")}
	}
	return &Document{
		id:      lastID.Add(1),
		backend: b,
		pages:   n,
		info:    b.Info(),
	}, nil
}

// ID identifies the document for the lifetime of the process.
func (d *Document) ID() uint64 { return d.id }

// PageCount returns the number of pages.
func (d *Document) PageCount() (int, error) {
	if d.released.Load() {
		return 0, ErrReleased
	}
	return d.pages, nil
}

// Info returns the document metadata.
func (d *Document) Info() (Info, error) {
	if d.released.Load() {
		return Info{}, ErrReleased
	}
	return d.info, nil
}

// Released reports whether Release has been called.
func (d *Document) Released() bool { return d.released.Load() }

// Release closes the backend once in-flight accessors finish. Further
// calls do nothing.
func (d *Document) Release() {
	d.once.Do(func() {
		d.released.Store(true)
		d.mu.Lock()
		defer d.mu.Unlock()
		d.backend.Close()
	})
}

// acquire pins the backend until the returned func is called.
func (d *Document) acquire() (Backend, func(), error) {
	d.mu.RLock()
	if d.released.Load() {
		d.mu.RUnlock()
		return nil, nil, ErrReleased
	}
	return d.backend, d.mu.RUnlock, nil
}
