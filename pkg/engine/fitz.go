package engine

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"math"
	"strings"
	"sync"

	fitz "github.com/gen2brain/go-fitz"
	"github.com/ledongthuc/pdf"
	"golang.org/x/image/draw"

	"github.com/jeremiesigrist/visu-pdf-pages/pkg/cos"
	"github.com/jeremiesigrist/visu-pdf-pages/pkg/graphics"
	"github.com/jeremiesigrist/visu-pdf-pages/pkg/raster"
)

// fitzBackend rasterizes with MuPDF and positions overlay text with
// ledongthuc/pdf, which reports glyph coordinates in page space. Page
// geometry comes from the cos reader since MuPDF only exposes integer
// bounds.
type fitzBackend struct {
	mu    sync.Mutex // MuPDF contexts and the text reader are not shared safely
	doc   *fitz.Document
	text  *pdf.Reader
	geom  *raster.Renderer
	pages int
}

func openFitz(_ context.Context, data []byte) (Backend, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("mupdf: %w", err)
	}
	b := &fitzBackend{doc: doc, pages: doc.NumPage()}
	// overlay text is optional; a document MuPDF opens but the text
	// reader rejects still renders
	if r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data))); err == nil {
		b.text = r
	}
	if r, err := cos.NewReader(data); err == nil {
		if n, err := r.PageCount(); err == nil && n == b.pages {
			b.geom = raster.NewRenderer(r)
		}
	}
	return b, nil
}

func (b *fitzBackend) PageCount() int { return b.pages }

// geometry returns the box and rotation of page i, from the cos reader
// when it parsed the file and from MuPDF's integer bounds otherwise.
func (b *fitzBackend) geometry(i int) (*raster.Page, error) {
	if i < 0 || i >= b.pages {
		return nil, fmt.Errorf("%w: %d of %d", ErrPageRange, i+1, b.pages)
	}
	if b.geom != nil {
		if p, err := b.geom.Geometry(i); err == nil {
			return p, nil
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	r, err := b.doc.Bound(i)
	if err != nil {
		return nil, err
	}
	return &raster.Page{Box: graphics.Rect{W: float64(r.Dx()), H: float64(r.Dy())}}, nil
}

func (b *fitzBackend) PageSize(i int) (float64, float64, error) {
	p, err := b.geometry(i)
	if err != nil {
		return 0, 0, err
	}
	w, h := p.Size()
	return w, h, nil
}

func (b *fitzBackend) Render(ctx context.Context, i int, scale float64) (*image.RGBA, []raster.Fragment, error) {
	p, err := b.geometry(i)
	if err != nil {
		return nil, nil, err
	}
	w, h := p.Size()
	b.mu.Lock()
	img, err := b.doc.ImageDPI(i, 72*scale)
	b.mu.Unlock()
	if err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	// MuPDF rounds the pixmap outwards; resample to the exact size
	pw := max(1, int(math.Round(w*scale)))
	ph := max(1, int(math.Round(h*scale)))
	if img.Bounds().Dx() != pw || img.Bounds().Dy() != ph {
		dst := image.NewRGBA(image.Rect(0, 0, pw, ph))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
		img = dst
	}

	dev := p.Device(scale)
	runs, err := b.runs(i)
	if err != nil {
		return img, nil, nil
	}
	return img, raster.Fragments(runs, dev), nil
}

// runs groups the per-glyph text of page i into runs along baselines.
func (b *fitzBackend) runs(i int) (runs []graphics.TextRun, err error) {
	if b.text == nil {
		return nil, nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	defer func() {
		// the text reader panics on some malformed content streams
		if r := recover(); r != nil {
			err = fmt.Errorf("text extraction: %v", r)
		}
	}()

	page := b.text.Page(i + 1)
	if page.V.IsNull() {
		return nil, nil
	}
	var cur *graphics.TextRun
	var sb strings.Builder
	flush := func() {
		if cur != nil {
			cur.Text = sb.String()
			runs = append(runs, *cur)
			cur = nil
			sb.Reset()
		}
	}
	for _, t := range page.Content().Text {
		if cur != nil {
			end := cur.X + cur.Width
			gap := t.X - end
			if math.Abs(t.Y-cur.Y) > 0.5 || gap < -cur.Size || gap > cur.Size {
				flush()
			} else if gap > cur.Size*0.2 && !strings.HasSuffix(sb.String(), " ") {
				sb.WriteByte(' ')
			}
		}
		if cur == nil {
			cur = &graphics.TextRun{X: t.X, Y: t.Y, Size: t.FontSize, FontName: t.Font}
		}
		sb.WriteString(t.S)
		// standard 14 fonts carry no widths in the file
		adv := t.W
		if adv == 0 {
			adv = raster.FallbackWidth(t.S) * t.FontSize / 1000
		}
		cur.Width = t.X + adv - cur.X
	}
	flush()
	return runs, nil
}

func (b *fitzBackend) Text(ctx context.Context, i int) ([]string, error) {
	if i < 0 || i >= b.pages {
		return nil, fmt.Errorf("%w: %d of %d", ErrPageRange, i+1, b.pages)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	text, err := b.doc.Text(i)
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out, nil
}

func (b *fitzBackend) Info() Info {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.doc.Metadata()
	return Info{
		Title:    m["title"],
		Author:   m["author"],
		Subject:  m["subject"],
		Creator:  m["creator"],
		Producer: m["producer"],
		Version:  strings.TrimPrefix(m["format"], "PDF-"),
	}
}

func (b *fitzBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.doc.Close()
}
