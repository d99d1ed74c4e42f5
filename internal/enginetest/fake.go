// Package enginetest provides a scriptable engine backend for tests.
package enginetest

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"
	"sync/atomic"

	"github.com/jeremiesigrist/visu-pdf-pages/pkg/engine"
	"github.com/jeremiesigrist/visu-pdf-pages/pkg/raster"
)

// Fake is an in-memory backend with one text string per page. Renders
// of held pages block until the page is let go or the context ends.
type Fake struct {
	Name          string
	Texts         []string
	Width, Height float64
	// FailPage makes renders of that 1-based page fail.
	FailPage int
	// TextGate, when set, blocks text extraction until it is closed or
	// the context ends.
	TextGate chan struct{}

	mu        sync.Mutex
	gates     map[int]chan struct{}
	textCalls []int
	renders   []int
	started   chan int
	closes    atomic.Int32
}

// New returns a Letter-sized fake with the given page texts.
func New(name string, texts ...string) *Fake {
	return &Fake{
		Name:    name,
		Texts:   texts,
		Width:   612,
		Height:  792,
		gates:   map[int]chan struct{}{},
		started: make(chan int, 64),
	}
}

// Pages returns a fake with n pages whose text is "page N".
func Pages(name string, n int) *Fake {
	texts := make([]string, n)
	for i := range texts {
		texts[i] = fmt.Sprintf("page %d", i+1)
	}
	return New(name, texts...)
}

// Opener returns an engine.Opener that yields f.
func (f *Fake) Opener() engine.Opener {
	return func(context.Context, []byte) (engine.Backend, error) { return f, nil }
}

// Hold makes renders of the 1-based page block.
func (f *Fake) Hold(page int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.gates[page]; !ok {
		f.gates[page] = make(chan struct{})
	}
}

// Let unblocks renders of page.
func (f *Fake) Let(page int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if g, ok := f.gates[page]; ok {
		close(g)
		delete(f.gates, page)
	}
}

// Started receives the 1-based page of every render as it begins.
func (f *Fake) Started() <-chan int { return f.started }

// Closes returns how many times the backend was closed.
func (f *Fake) Closes() int { return int(f.closes.Load()) }

// TextCalls returns the 1-based pages whose text was requested.
func (f *Fake) TextCalls() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.textCalls...)
}

// Renders returns the 1-based pages whose render completed.
func (f *Fake) Renders() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.renders...)
}

func (f *Fake) PageCount() int { return len(f.Texts) }

func (f *Fake) PageSize(i int) (float64, float64, error) {
	if i < 0 || i >= len(f.Texts) {
		return 0, 0, engine.ErrPageRange
	}
	return f.Width, f.Height, nil
}

// Render paints the page in a grey level derived from its number, so
// tests can tell frames apart by pixel.
func (f *Fake) Render(ctx context.Context, i int, scale float64) (*image.RGBA, []raster.Fragment, error) {
	page := i + 1
	select {
	case f.started <- page:
	default:
	}

	f.mu.Lock()
	gate := f.gates[page]
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}
	if page == f.FailPage {
		return nil, nil, fmt.Errorf("fake: page %d is broken", page)
	}

	w := max(1, int(math.Round(f.Width*scale)))
	h := max(1, int(math.Round(f.Height*scale)))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.SetRGBA(0, 0, color.RGBA{R: uint8(page), A: 0xff})

	f.mu.Lock()
	f.renders = append(f.renders, page)
	f.mu.Unlock()
	return img, []raster.Fragment{{Text: f.Texts[i], X: 72 * scale, Y: 72 * scale, FontSize: 12 * scale}}, nil
}

// PageOf returns the page number encoded in a frame rendered by a Fake.
func PageOf(img *image.RGBA) int {
	return int(img.RGBAAt(0, 0).R)
}

func (f *Fake) Text(ctx context.Context, i int) ([]string, error) {
	if i < 0 || i >= len(f.Texts) {
		return nil, engine.ErrPageRange
	}
	if f.TextGate != nil {
		select {
		case <-f.TextGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	f.textCalls = append(f.textCalls, i+1)
	f.mu.Unlock()
	return []string{f.Texts[i]}, nil
}

func (f *Fake) Info() engine.Info { return engine.Info{Title: f.Name} }

func (f *Fake) Close() error {
	f.closes.Add(1)
	return nil
}
