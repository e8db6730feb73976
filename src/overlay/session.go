package overlay

import (
	"fmt"

	"github.com/google/uuid"

	"screen-ocr/src/screenshot"
)

type State int

const (
	Idle State = iota
	Armed
	Dragging
	Completed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Dragging:
		return "dragging"
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session is one drag-to-select gesture. It is owned by a single goroutine.
type Session struct {
	ID string

	state   State
	origin  screenshot.Point
	current screenshot.Point
	minSpan int
	region  screenshot.Region
}

// NewSession returns an Idle session. Rectangles whose width or height is not
// greater than minSpan are treated as zero-area.
func NewSession(minSpan int) *Session {
	if minSpan < 0 {
		minSpan = 0
	}
	return &Session{ID: uuid.NewString(), minSpan: minSpan}
}

func (s *Session) State() State { return s.state }

// Done reports whether the session reached a terminal state.
func (s *Session) Done() bool { return s.state == Completed || s.state == Cancelled }

// Begin arms the session. The caller installs the modal surface first.
func (s *Session) Begin() error {
	if s.state != Idle {
		return fmt.Errorf("session %s: begin from %s", s.ID, s.state)
	}
	s.state = Armed
	return nil
}

// PointerDown records the drag origin. Only the first press while Armed counts.
func (s *Session) PointerDown(p screenshot.Point) bool {
	if s.state != Armed {
		return false
	}
	s.origin = p
	s.current = p
	s.state = Dragging
	return true
}

// PointerMove updates the drag corner and reports whether the selection
// feedback needs a redraw.
func (s *Session) PointerMove(p screenshot.Point) bool {
	if s.state != Dragging || p == s.current {
		return false
	}
	s.current = p
	return true
}

// PointerUp ends the drag. It reports false when there was no drag to end,
// which covers a release without a preceding press.
func (s *Session) PointerUp(p screenshot.Point) bool {
	if s.state != Dragging {
		return false
	}
	s.current = p
	r := screenshot.RegionFromCorners(s.origin, s.current)
	if r.Width <= s.minSpan || r.Height <= s.minSpan {
		s.state = Cancelled
		return true
	}
	s.region = r
	s.state = Completed
	return true
}

// Cancel ends an Armed or Dragging session. It reports whether anything changed.
func (s *Session) Cancel() bool {
	switch s.state {
	case Idle, Armed, Dragging:
		s.state = Cancelled
		return true
	}
	return false
}

// Selection is the rectangle currently spanned by the drag, for feedback.
func (s *Session) Selection() screenshot.Region {
	if s.state != Dragging {
		return screenshot.Region{}
	}
	return screenshot.RegionFromCorners(s.origin, s.current)
}

// Region returns the completed rectangle.
func (s *Session) Region() (screenshot.Region, bool) {
	if s.state != Completed {
		return screenshot.Region{}, false
	}
	return s.region, true
}
