package hotkey

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type EventKind int

const (
	KeyDown EventKind = iota + 1
	KeyUp
)

func (k EventKind) String() string {
	switch k {
	case KeyDown:
		return "down"
	case KeyUp:
		return "up"
	default:
		return "unknown"
	}
}

// KeyEvent is a raw press or release from the input layer. Auto-repeat shows
// up as repeated KeyDown events for a key that is already held.
type KeyEvent struct {
	Kind EventKind
	Code uint16
	When time.Time
}

// Key is one chord member. Codes lists every code that counts as this key,
// e.g. left and right Ctrl.
type Key struct {
	Name  string
	Codes []uint16
}

// Matches reports whether code belongs to k.
func (k Key) Matches(code uint16) bool {
	for _, c := range k.Codes {
		if c == code {
			return true
		}
	}
	return false
}

func (k Key) heldIn(pressed map[uint16]struct{}) bool {
	for _, c := range k.Codes {
		if _, ok := pressed[c]; ok {
			return true
		}
	}
	return false
}

// Chord is an unordered set of keys that must be held together.
type Chord struct {
	Combo string
	Keys  []Key
}

// ParseChord parses a combo such as "Ctrl+Shift+Alt+S".
func ParseChord(combo string) (Chord, error) {
	names := parseHotkey(combo)
	if len(names) == 0 {
		return Chord{}, fmt.Errorf("empty hotkey %q", combo)
	}

	chord := Chord{Combo: combo}
	seen := make(map[string]bool)
	for _, name := range names {
		if name == "" {
			return Chord{}, fmt.Errorf("hotkey %q has an empty key", combo)
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		codes := keyNameToCodes(name)
		if len(codes) == 0 {
			return Chord{}, fmt.Errorf("hotkey %q: cannot map key %q", combo, name)
		}
		chord.Keys = append(chord.Keys, Key{Name: name, Codes: codes})
	}
	return chord, nil
}

// ParseKey resolves a single key name, used for the cancel key.
func ParseKey(name string) (Key, error) {
	names := parseHotkey(name)
	if len(names) != 1 {
		return Key{}, fmt.Errorf("expected a single key, got %q", name)
	}
	codes := keyNameToCodes(names[0])
	if len(codes) == 0 {
		return Key{}, fmt.Errorf("cannot map key %q", name)
	}
	return Key{Name: names[0], Codes: codes}, nil
}

func (c Chord) String() string { return c.Combo }

func (c Chord) satisfiedBy(pressed map[uint16]struct{}) bool {
	if len(c.Keys) == 0 {
		return false
	}
	for _, k := range c.Keys {
		if !k.heldIn(pressed) {
			return false
		}
	}
	return true
}

// Tracker follows the pressed-key set for one chord. It fires once per
// press-and-hold: after firing it stays latched until every chord key has
// been released at least once. Tracker is not safe for concurrent use; it
// belongs to the goroutine that consumes key events.
type Tracker struct {
	chord    Chord
	pressed  map[uint16]struct{}
	fired    bool
	released []bool
}

func NewTracker(chord Chord) *Tracker {
	return &Tracker{
		chord:    chord,
		pressed:  make(map[uint16]struct{}),
		released: make([]bool, len(chord.Keys)),
	}
}

// Handle applies ev and reports whether the chord fired on it.
func (t *Tracker) Handle(ev KeyEvent) bool {
	switch ev.Kind {
	case KeyDown:
		return t.Press(ev.Code)
	case KeyUp:
		t.Release(ev.Code)
	}
	return false
}

// Press records a key-down and reports whether the chord fires.
func (t *Tracker) Press(code uint16) bool {
	t.pressed[code] = struct{}{}
	if t.fired || !t.chord.satisfiedBy(t.pressed) {
		return false
	}
	t.fired = true
	for i := range t.released {
		t.released[i] = false
	}
	return true
}

// Release records a key-up.
func (t *Tracker) Release(code uint16) {
	delete(t.pressed, code)
	if !t.fired {
		return
	}
	for i, k := range t.chord.Keys {
		if k.Matches(code) && !k.heldIn(t.pressed) {
			t.released[i] = true
		}
	}
	for _, r := range t.released {
		if !r {
			return
		}
	}
	t.fired = false
}

// Latched reports whether the chord has fired and is waiting for release.
func (t *Tracker) Latched() bool { return t.fired }

// parseHotkey converts a hotkey string like "Ctrl+Alt+q" to normalized key names
func parseHotkey(hotkeyConfig string) []string {
	if strings.TrimSpace(hotkeyConfig) == "" {
		return nil
	}
	parts := strings.Split(strings.ToLower(hotkeyConfig), "+")
	var keys []string

	for _, part := range parts {
		part = strings.TrimSpace(part)
		switch part {
		case "ctrl", "control":
			keys = append(keys, "ctrl")
		case "alt", "option":
			keys = append(keys, "alt")
		case "shift":
			keys = append(keys, "shift")
		case "win", "cmd", "super":
			keys = append(keys, "cmd")
		case "escape":
			keys = append(keys, "esc")
		default:
			keys = append(keys, part)
		}
	}

	return keys
}

// functionKeyNumber parses "f1".."f24".
func functionKeyNumber(name string) (int, bool) {
	if len(name) < 2 || name[0] != 'f' {
		return 0, false
	}
	n, err := strconv.Atoi(name[1:])
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
