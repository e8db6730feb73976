package hotkey

import (
	"errors"
	"sync"

	gohook "github.com/robotn/gohook"

	"screen-ocr/src/logutil"
)

var ErrHookUnavailable = errors.New("global keyboard hook unavailable")

// Source delivers raw key events. Stop closes the channel returned by Start.
type Source interface {
	Start() (<-chan KeyEvent, error)
	Stop()
}

// hookSource wraps the process-wide gohook listener. Only one may be active.
type hookSource struct {
	mu      sync.Mutex
	out     chan KeyEvent
	running bool
	done    chan struct{}
}

func NewHookSource() Source {
	return &hookSource{}
}

func (s *hookSource) Start() (out <-chan KeyEvent, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil, errors.New("hook source already started")
	}

	defer func() {
		if r := recover(); r != nil {
			logutil.Logger().Errorf("PANIC starting keyboard hook: %v", r)
			out, err = nil, ErrHookUnavailable
		}
	}()

	evChan := gohook.Start()
	if evChan == nil {
		return nil, ErrHookUnavailable
	}

	s.out = make(chan KeyEvent, 64)
	s.done = make(chan struct{})
	s.running = true
	go s.pump(evChan, s.out, s.done)
	return s.out, nil
}

func (s *hookSource) pump(in chan gohook.Event, out chan<- KeyEvent, done <-chan struct{}) {
	defer close(out)
	defer func() {
		if r := recover(); r != nil {
			logutil.Logger().Errorf("PANIC in keyboard hook goroutine: %v", r)
		}
	}()

	for {
		select {
		case <-done:
			return
		case ev, ok := <-in:
			if !ok {
				logutil.Logger().Debug("keyboard hook channel closed")
				return
			}
			ke, ok := translate(ev)
			if !ok {
				continue
			}
			select {
			case out <- ke:
			case <-done:
				return
			}
		}
	}
}

// translate keeps key events only. gohook reports a physical press as
// KeyHold followed by a KeyDown "typed" event, and auto-repeat as more of
// either. Both count as presses and the Tracker ignores duplicates. Typed
// events without a code carry only a character and are dropped.
func translate(ev gohook.Event) (KeyEvent, bool) {
	var kind EventKind
	switch ev.Kind {
	case gohook.KeyDown, gohook.KeyHold:
		kind = KeyDown
	case gohook.KeyUp:
		kind = KeyUp
	default:
		return KeyEvent{}, false
	}
	code := eventCode(ev)
	if code == 0 {
		return KeyEvent{}, false
	}
	return KeyEvent{Kind: kind, Code: code, When: ev.When}, true
}

func (s *hookSource) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.done)
	gohook.End()
}
