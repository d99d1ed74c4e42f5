package gui

import (
	"image"
	"image/color"
	"math"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
)

// staleShade dims a frame kept after a failed render.
var staleShade = color.NRGBA{A: 0x70}

// PageViewer shows the current frame with pan and wheel zoom. The frame
// is already fitted to the viewport width, so zoom here is only a
// temporary magnifier and resets with every new frame.
type PageViewer struct {
	widget.BaseWidget

	image   *canvas.Image
	shade   *canvas.Rectangle
	pageImg image.Image
	page    int

	zoom    float64
	offsetX float64
	offsetY float64

	startOffsetX float64
	startOffsetY float64

	// OnResized reports the usable width after a layout change.
	OnResized func(width float32)
	lastWidth float32
}

// NewPageViewer returns an empty viewer.
func NewPageViewer() *PageViewer {
	v := &PageViewer{zoom: 1.0}
	v.ExtendBaseWidget(v)

	v.image = canvas.NewImageFromImage(nil)
	v.image.FillMode = canvas.ImageFillStretch
	v.image.ScaleMode = canvas.ImageScaleSmooth
	v.shade = canvas.NewRectangle(staleShade)
	v.shade.Hide()
	return v
}

// SetFrame shows img for page. A stale frame is dimmed. The view resets
// only when the page changes.
func (v *PageViewer) SetFrame(img image.Image, page int, stale bool) {
	if img != v.pageImg {
		v.pageImg = img
		v.image.Image = img
		if page != v.page {
			v.resetView()
		}
		v.page = page
	}
	if stale {
		v.shade.Show()
	} else {
		v.shade.Hide()
	}
	v.Refresh()
}

// Clear removes the frame.
func (v *PageViewer) Clear() {
	v.pageImg = nil
	v.image.Image = nil
	v.page = 0
	v.shade.Hide()
	v.resetView()
	v.Refresh()
}

func (v *PageViewer) resetView() {
	v.zoom = 1.0
	v.offsetX, v.offsetY = 0, 0
	v.startOffsetX, v.startOffsetY = 0, 0
}

func (v *PageViewer) CreateRenderer() fyne.WidgetRenderer {
	return &pageViewerRenderer{viewer: v}
}

// Dragged pans the page.
func (v *PageViewer) Dragged(event *fyne.DragEvent) {
	v.offsetX = v.startOffsetX + float64(event.Dragged.DX)
	v.offsetY = v.startOffsetY + float64(event.Dragged.DY)
	v.startOffsetX, v.startOffsetY = v.offsetX, v.offsetY
	v.Refresh()
}

func (v *PageViewer) DragEnd() {
	v.startOffsetX, v.startOffsetY = v.offsetX, v.offsetY
}

// Scrolled zooms toward the cursor.
func (v *PageViewer) Scrolled(event *fyne.ScrollEvent) {
	newZoom := clampZoom(v.zoom * (1 + float64(event.Scrolled.DY)/100))
	if v.pageImg != nil && newZoom != v.zoom {
		size := v.Size()
		imgW := float64(v.pageImg.Bounds().Dx()) * v.zoom
		imgH := float64(v.pageImg.Bounds().Dy()) * v.zoom
		centerX := float64(size.Width) / 2
		centerY := float64(size.Height) / 2
		cursorX := float64(event.Position.X)
		cursorY := float64(event.Position.Y)

		factor := newZoom / v.zoom
		v.offsetX = cursorX - (cursorX-centerX-v.offsetX)*factor - (centerX - imgW*factor/2)
		v.offsetY = cursorY - (cursorY-centerY-v.offsetY)*factor - (centerY - imgH*factor/2)
	}
	v.zoom = newZoom
	v.Refresh()
}

// ResetZoom undoes wheel zoom and panning.
func (v *PageViewer) ResetZoom() {
	v.resetView()
	v.Refresh()
}

func clampZoom(z float64) float64 {
	return math.Max(0.25, math.Min(4.0, z))
}

type pageViewerRenderer struct {
	viewer *PageViewer
}

func (r *pageViewerRenderer) Layout(size fyne.Size) {
	v := r.viewer
	if size.Width != v.lastWidth {
		v.lastWidth = size.Width
		if v.OnResized != nil {
			v.OnResized(size.Width)
		}
	}
	if v.pageImg == nil {
		return
	}
	imgW := float32(v.pageImg.Bounds().Dx()) * float32(v.zoom)
	imgH := float32(v.pageImg.Bounds().Dy()) * float32(v.zoom)

	// centred horizontally, top aligned so a long page starts at its head
	x := (size.Width-imgW)/2 + float32(v.offsetX)
	y := float32(v.offsetY)
	if imgH < size.Height {
		y += (size.Height - imgH) / 2
	}
	pos, sz := fyne.NewPos(x, y), fyne.NewSize(imgW, imgH)
	v.image.Move(pos)
	v.image.Resize(sz)
	v.shade.Move(pos)
	v.shade.Resize(sz)
}

func (r *pageViewerRenderer) MinSize() fyne.Size {
	return fyne.NewSize(200, 200)
}

func (r *pageViewerRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.viewer.image, r.viewer.shade}
}

func (r *pageViewerRenderer) Refresh() {
	r.Layout(r.viewer.Size())
	r.viewer.image.Refresh()
	r.viewer.shade.Refresh()
}

func (r *pageViewerRenderer) Destroy() {}
