package overlay

import (
	"context"
	"errors"
	"fmt"

	"screen-ocr/src/logutil"
	"screen-ocr/src/screenshot"
)

var (
	// ErrDisplayUnavailable means the modal surface could not be installed.
	ErrDisplayUnavailable = errors.New("display unavailable")
	// ErrSelectionCancelled is the cancel cause used by the cancel key.
	ErrSelectionCancelled = errors.New("selection cancelled")
)

// Selector defines a synchronous region-selection API owned by the event loop.
// The call is blocking and MUST be invoked only from the goroutine that owns
// the capture session.
// Returns (region, cancelled, error). If cancelled is true, region is undefined.
// Cancelling ctx with cause ErrSelectionCancelled ends the session as a
// normal cancellation (nil error).
type Selector interface {
	Select(ctx context.Context) (screenshot.Region, bool, error)
}

type EventKind int

const (
	PointerDown EventKind = iota + 1
	PointerMove
	PointerUp
	CancelKey
)

// Event is pointer or key input in virtual-screen pixels.
type Event struct {
	Kind  EventKind
	Point screenshot.Point
}

// Surface is the full-screen modal layer that intercepts input while a
// session runs. Install blocks until the surface is visible; the returned
// channel is closed if the surface goes away on its own.
type Surface interface {
	Install(ctx context.Context) (<-chan Event, error)
	Redraw(selection screenshot.Region)
	Teardown()
}

type Options struct {
	// MinSpan treats rectangles with width or height <= MinSpan as zero-area.
	MinSpan int
}

type surfaceSelector struct {
	surface Surface
	opts    Options
}

// NewSelector drives a Session from the events of surface.
func NewSelector(surface Surface, opts Options) Selector {
	return &surfaceSelector{surface: surface, opts: opts}
}

func (s *surfaceSelector) Select(ctx context.Context) (screenshot.Region, bool, error) {
	sess := NewSession(s.opts.MinSpan)
	log := logutil.Logger().WithField("session", sess.ID)

	events, err := s.surface.Install(ctx)
	if err != nil {
		sess.Cancel()
		log.Errorf("Overlay install failed: %v", err)
		return screenshot.Region{}, false, fmt.Errorf("%w: %v", ErrDisplayUnavailable, err)
	}
	defer s.surface.Teardown()

	if err := sess.Begin(); err != nil {
		return screenshot.Region{}, false, err
	}
	log.Debug("Selection armed")

	for {
		select {
		case <-ctx.Done():
			sess.Cancel()
			if errors.Is(context.Cause(ctx), ErrSelectionCancelled) {
				log.Info("Selection cancelled by cancel key")
				return screenshot.Region{}, true, nil
			}
			log.Infof("Selection aborted: %v", ctx.Err())
			return screenshot.Region{}, true, ctx.Err()

		case ev, ok := <-events:
			if !ok {
				sess.Cancel()
				log.Info("Overlay closed, selection cancelled")
				return screenshot.Region{}, true, nil
			}
			switch ev.Kind {
			case PointerDown:
				if sess.PointerDown(ev.Point) {
					log.Debugf("Pointer down at (%d, %d)", ev.Point.X, ev.Point.Y)
				}
			case PointerMove:
				if sess.PointerMove(ev.Point) {
					s.surface.Redraw(sess.Selection())
				}
			case PointerUp:
				if !sess.PointerUp(ev.Point) {
					log.Debug("Pointer up without drag, ignored")
					continue
				}
				if region, ok := sess.Region(); ok {
					log.Infof("Selection completed: %s", region)
					return region, false, nil
				}
				log.Info("Selection too small, cancelled")
				return screenshot.Region{}, true, nil
			case CancelKey:
				sess.Cancel()
				log.Info("Selection cancelled by cancel key")
				return screenshot.Region{}, true, nil
			}
		}
	}
}
