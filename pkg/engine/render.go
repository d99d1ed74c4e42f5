package engine

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/jeremiesigrist/visu-pdf-pages/pkg/raster"
)

// RenderRequest asks for a 1-based page fitted to a viewport width in
// pixels. Callers clamp Page to the document first.
type RenderRequest struct {
	Page  int
	Width float64
}

// PageTarget is a rendered page. The raster and the overlay fragments
// share Scale and the pixel dimensions Width x Height.
type PageTarget struct {
	Page      int
	Image     *image.RGBA
	Fragments []raster.Fragment
	Scale     float64
	Width     int
	Height    int
}

// Renderer renders pages fitted to the viewport width.
type Renderer struct {
	// TextLayer keeps the overlay fragments in the target.
	TextLayer bool
}

// NewRenderer returns a renderer; textLayer controls the overlay.
func NewRenderer(textLayer bool) *Renderer {
	return &Renderer{TextLayer: textLayer}
}

// Render rasterizes req.Page at scale req.Width / intrinsic width. A
// superseded render settles with ErrCanceled; every other failure is a
// *RenderError.
func (r *Renderer) Render(ctx context.Context, doc *Document, req RenderRequest) (*PageTarget, error) {
	backend, done, err := doc.acquire()
	if err != nil {
		return nil, err
	}
	defer done()

	if req.Page < 1 || req.Page > doc.pages {
		return nil, &RenderError{Page: req.Page, Err: fmt.Errorf("%w: %d of %d", ErrPageRange, req.Page, doc.pages)}
	}
	if req.Width <= 0 {
		return nil, &RenderError{Page: req.Page, Err: fmt.Errorf("invalid viewport width %g", req.Width)}
	}

	w, h, err := backend.PageSize(req.Page - 1)
	if err != nil {
		return nil, r.fail(ctx, req.Page, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, canceled(err)
	}
	if w <= 0 {
		return nil, &RenderError{Page: req.Page, Err: errors.New("page has no width")}
	}
	scale := req.Width / w
	if err := raster.CheckSize(req.Width, h*scale); err != nil {
		return nil, &RenderError{Page: req.Page, Err: err}
	}

	img, frags, err := backend.Render(ctx, req.Page-1, scale)
	if err != nil {
		return nil, r.fail(ctx, req.Page, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, canceled(err)
	}
	if !r.TextLayer {
		frags = nil
	}
	return &PageTarget{
		Page:      req.Page,
		Image:     img,
		Fragments: frags,
		Scale:     scale,
		Width:     img.Bounds().Dx(),
		Height:    img.Bounds().Dy(),
	}, nil
}

func (r *Renderer) fail(ctx context.Context, page int, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		return canceled(cerr)
	}
	if IsCanceled(err) {
		return canceled(err)
	}
	return &RenderError{Page: page, Err: err}
}
