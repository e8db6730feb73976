package gui

import (
	"image"
	"image/color"
	"math"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"screen-ocr/src/overlay"
	"screen-ocr/src/screenshot"
)

// coordMapper converts between fyne canvas positions and display pixels.
// The ratio is taken from the live canvas size so HiDPI scaling and any
// window-manager decorations are accounted for.
type coordMapper struct {
	origin image.Point
	pixels image.Point
}

func (m *coordMapper) toPixel(pos fyne.Position, canvasSize fyne.Size) screenshot.Point {
	sx, sy := m.ratio(canvasSize)
	return screenshot.Point{
		X: m.origin.X + int(math.Round(float64(pos.X)*sx)),
		Y: m.origin.Y + int(math.Round(float64(pos.Y)*sy)),
	}
}

func (m *coordMapper) toCanvas(r screenshot.Region, canvasSize fyne.Size) (fyne.Position, fyne.Size) {
	sx, sy := m.ratio(canvasSize)
	pos := fyne.NewPos(float32(float64(r.X-m.origin.X)/sx), float32(float64(r.Y-m.origin.Y)/sy))
	size := fyne.NewSize(float32(float64(r.Width)/sx), float32(float64(r.Height)/sy))
	return pos, size
}

func (m *coordMapper) ratio(canvasSize fyne.Size) (float64, float64) {
	if canvasSize.Width <= 0 || canvasSize.Height <= 0 {
		return 1, 1
	}
	return float64(m.pixels.X) / float64(canvasSize.Width), float64(m.pixels.Y) / float64(canvasSize.Height)
}

// dragLayer is a transparent widget on top of the overlay that turns mouse
// input into overlay events.
type dragLayer struct {
	widget.BaseWidget

	mapper *coordMapper
	emit   func(overlay.Event)
	down   bool
}

var (
	_ desktop.Mouseable = (*dragLayer)(nil)
	_ desktop.Hoverable = (*dragLayer)(nil)
	_ fyne.Draggable    = (*dragLayer)(nil)
)

func newDragLayer(m *coordMapper, emit func(overlay.Event)) *dragLayer {
	l := &dragLayer{mapper: m, emit: emit}
	l.ExtendBaseWidget(l)
	return l
}

func (l *dragLayer) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(canvas.NewRectangle(color.Transparent))
}

func (l *dragLayer) send(kind overlay.EventKind, pos fyne.Position) {
	l.emit(overlay.Event{Kind: kind, Point: l.mapper.toPixel(pos, l.Size())})
}

func (l *dragLayer) MouseDown(ev *desktop.MouseEvent) {
	if ev.Button != desktop.MouseButtonPrimary {
		return
	}
	l.down = true
	l.send(overlay.PointerDown, ev.Position)
}

func (l *dragLayer) MouseUp(ev *desktop.MouseEvent) {
	if ev.Button != desktop.MouseButtonPrimary {
		return
	}
	l.down = false
	l.send(overlay.PointerUp, ev.Position)
}

// Dragged delivers motion while the button is held; fyne does not call
// MouseMoved during a drag.
func (l *dragLayer) Dragged(ev *fyne.DragEvent) {
	l.send(overlay.PointerMove, ev.Position)
}

func (l *dragLayer) DragEnd() {}

func (l *dragLayer) MouseIn(*desktop.MouseEvent) {}

func (l *dragLayer) MouseMoved(ev *desktop.MouseEvent) {
	if l.down {
		l.send(overlay.PointerMove, ev.Position)
	}
}

func (l *dragLayer) MouseOut() {}

func (l *dragLayer) Cursor() desktop.Cursor { return desktop.CrosshairCursor }
