package engine

import (
	"context"
	"fmt"
	"image"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/jeremiesigrist/visu-pdf-pages/pkg/cos"
	"github.com/jeremiesigrist/visu-pdf-pages/pkg/raster"
)

// nativeBackend renders with the in-repo PDF stack.
type nativeBackend struct {
	reader   *cos.Reader
	renderer *raster.Renderer
	pages    int
}

func openNative(_ context.Context, data []byte) (Backend, error) {
	reader, err := cos.NewReader(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PDF: %w", err)
	}
	n, err := reader.PageCount()
	if err != nil {
		return nil, fmt.Errorf("failed to get page count: %w", err)
	}
	return &nativeBackend{reader: reader, renderer: raster.NewRenderer(reader), pages: n}, nil
}

func (b *nativeBackend) PageCount() int { return b.pages }

func (b *nativeBackend) page(i int) (*raster.Page, error) {
	if i < 0 || i >= b.pages {
		return nil, fmt.Errorf("%w: %d of %d", ErrPageRange, i+1, b.pages)
	}
	return b.renderer.Page(i)
}

func (b *nativeBackend) PageSize(i int) (float64, float64, error) {
	p, err := b.page(i)
	if err != nil {
		return 0, 0, err
	}
	w, h := p.Size()
	return w, h, nil
}

func (b *nativeBackend) Render(ctx context.Context, i int, scale float64) (img *image.RGBA, frags []raster.Fragment, err error) {
	defer func() {
		// a malformed page fails its render, not the process
		if r := recover(); r != nil {
			img, frags, err = nil, nil, fmt.Errorf("page %d: %v", i+1, r)
		}
	}()
	p, err := b.page(i)
	if err != nil {
		return nil, nil, err
	}
	res, err := b.renderer.Render(ctx, p, scale)
	if err != nil {
		return nil, nil, err
	}
	return res.Image, raster.Fragments(res.Runs, res.Device), nil
}

func (b *nativeBackend) Text(ctx context.Context, i int) ([]string, error) {
	p, err := b.page(i)
	if err != nil {
		return nil, err
	}
	runs, err := b.renderer.Text(ctx, p)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(runs))
	for j, r := range runs {
		out[j] = r.Text
	}
	return out, nil
}

func (b *nativeBackend) Info() Info {
	d := b.reader.Info()
	get := func(key cos.Name) string {
		v, err := b.reader.Resolve(d.Get(key))
		if err != nil {
			return ""
		}
		s, _ := v.(cos.String)
		return textString(string(s))
	}
	return Info{
		Title:    get("Title"),
		Author:   get("Author"),
		Subject:  get("Subject"),
		Creator:  get("Creator"),
		Producer: get("Producer"),
		Version:  b.reader.Version(),
	}
}

func (b *nativeBackend) Close() error { return nil }

// textString decodes a PDF text string: UTF-16BE with a byte order mark,
// otherwise a single-byte encoding close to PDFDocEncoding.
func textString(s string) string {
	if strings.HasPrefix(s, "\xfe\xff") {
		if out, err := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder().String(s); err == nil {
			return out
		}
	}
	if out, err := charmap.Windows1252.NewDecoder().String(s); err == nil {
		return out
	}
	return s
}
