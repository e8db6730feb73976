package gui

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"github.com/anthonynsimon/bild/adjust"
	"github.com/lucasb-eyer/go-colorful"

	"screen-ocr/src/logutil"
	"screen-ocr/src/overlay"
	"screen-ocr/src/screenshot"
)

const (
	defaultDim        = -0.35
	selectionFillA    = 48
	selectionStroke   = 2
	eventBufferLength = 64
	hintText          = "ESC cancel   drag to select"
)

type SurfaceOptions struct {
	// SelectionColor is a hex colour such as "#0078d4".
	SelectionColor string
	// Dim is the brightness change applied to the frozen background, -1..0.
	Dim float64
}

// Surface is a full-screen fyne window showing a dimmed snapshot of the
// primary display. It implements overlay.Surface; one session at a time.
type Surface struct {
	app  fyne.App
	opts SurfaceOptions

	stroke color.Color
	fill   color.Color

	mu          sync.Mutex
	win         fyne.Window
	rect        *canvas.Rectangle
	layer       *dragLayer
	done        chan struct{}
	stop        *sync.Once
	closeWindow func()
	mapper      *coordMapper

	// alive reports whether the fyne loop still runs; nil means always.
	alive func() bool
}

func NewSurface(a fyne.App, opts SurfaceOptions) *Surface {
	if opts.Dim == 0 {
		opts.Dim = defaultDim
	}
	stroke, fill := selectionColors(opts.SelectionColor)
	return &Surface{app: a, opts: opts, stroke: stroke, fill: fill}
}

// selectionColors parses hex into an opaque stroke and a translucent fill,
// falling back to the default blue.
func selectionColors(hex string) (color.Color, color.Color) {
	c, err := colorful.Hex(hex)
	if err != nil {
		if hex != "" {
			logutil.Logger().Warnf("Invalid selection colour %q, using default", hex)
		}
		c, _ = colorful.Hex("#0078d4")
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 0xff}, color.NRGBA{R: r, G: g, B: b, A: selectionFillA}
}

func (s *Surface) Install(ctx context.Context) (<-chan overlay.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.app == nil {
		return nil, fmt.Errorf("no GUI application")
	}

	bounds, err := screenshot.GetDisplayBounds()
	if err != nil {
		return nil, err
	}
	snap, err := screenshot.CaptureRegion(screenshot.Region{
		X: bounds.Min.X, Y: bounds.Min.Y, Width: bounds.Dx(), Height: bounds.Dy(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to capture overlay background: %w", err)
	}
	background := adjust.Brightness(snap, s.opts.Dim)

	events := make(chan overlay.Event, eventBufferLength)
	done := make(chan struct{})

	s.mu.Lock()
	s.done = done
	s.stop = new(sync.Once)
	s.mapper = &coordMapper{origin: bounds.Min, pixels: bounds.Size()}
	s.mu.Unlock()

	fyne.DoAndWait(func() {
		s.show(background, events, done)
	})
	logutil.Logger().Debugf("Overlay installed over display %v", bounds)
	return events, nil
}

// show builds and shows the window. Runs on the fyne thread.
func (s *Surface) show(background image.Image, events chan overlay.Event, done chan struct{}) {
	w := s.app.NewWindow("Screen OCR selection")
	w.SetPadded(false)

	bg := canvas.NewImageFromImage(background)
	bg.FillMode = canvas.ImageFillStretch
	bg.ScaleMode = canvas.ImageScaleFastest

	rect := canvas.NewRectangle(s.fill)
	rect.StrokeColor = s.stroke
	rect.StrokeWidth = selectionStroke
	rect.Hide()

	hint := canvas.NewText(hintText, color.NRGBA{R: 0, G: 0xff, B: 0xff, A: 0xff})
	hint.Move(fyne.NewPos(16, 16))

	closed := false
	emit := func(ev overlay.Event) {
		if closed {
			return
		}
		if ev.Kind == overlay.PointerMove {
			select {
			case events <- ev:
			default:
			}
			return
		}
		select {
		case events <- ev:
		case <-done:
		}
	}
	layer := newDragLayer(s.mapper, emit)

	w.SetContent(container.NewStack(bg, container.NewWithoutLayout(rect, hint), layer))
	w.Canvas().SetOnTypedKey(func(k *fyne.KeyEvent) {
		if k.Name == fyne.KeyEscape {
			emit(overlay.Event{Kind: overlay.CancelKey})
		}
	})
	w.SetOnClosed(func() {
		if !closed {
			closed = true
			close(events)
		}
	})
	w.SetFullScreen(true)
	w.Show()
	w.RequestFocus()

	s.mu.Lock()
	s.win = w
	s.rect = rect
	s.layer = layer
	// closed is flipped first so OnClosed leaves events to the reader
	// that already returned.
	s.closeWindow = func() {
		closed = true
		w.Close()
	}
	s.mu.Unlock()
}

func (s *Surface) Redraw(sel screenshot.Region) {
	s.mu.Lock()
	rect, layer, m := s.rect, s.layer, s.mapper
	s.mu.Unlock()
	if rect == nil || layer == nil || m == nil {
		return
	}
	fyne.Do(func() {
		pos, size := m.toCanvas(sel, layer.Size())
		rect.Move(pos)
		rect.Resize(size)
		rect.Show()
		rect.Refresh()
	})
}

// Teardown closes the window and returns once it is gone, so a capture
// taken afterwards does not include the overlay.
func (s *Surface) Teardown() {
	s.mu.Lock()
	done, stop, closeWin := s.done, s.stop, s.closeWindow
	s.win, s.rect, s.layer, s.closeWindow = nil, nil, nil, nil
	s.mu.Unlock()
	if done == nil {
		return
	}
	stop.Do(func() {
		close(done)
		if closeWin == nil {
			return
		}
		if s.alive != nil && !s.alive() {
			logutil.Logger().Debug("GUI loop stopped, overlay window left to exit")
			return
		}
		fyne.DoAndWait(closeWin)
	})
	logutil.Logger().Debug("Overlay torn down")
}
