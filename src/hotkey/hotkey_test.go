package hotkey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	codeLCtrl uint16 = 1
	codeRCtrl uint16 = 2
	codeShift uint16 = 3
	codeAlt   uint16 = 4
	codeS     uint16 = 5
	codeOther uint16 = 9
)

func testChord() Chord {
	return Chord{
		Combo: "Ctrl+Shift+Alt+S",
		Keys: []Key{
			{Name: "ctrl", Codes: []uint16{codeLCtrl, codeRCtrl}},
			{Name: "shift", Codes: []uint16{codeShift}},
			{Name: "alt", Codes: []uint16{codeAlt}},
			{Name: "s", Codes: []uint16{codeS}},
		},
	}
}

func pressAll(t *testing.T, tr *Tracker) int {
	t.Helper()
	fired := 0
	for _, c := range []uint16{codeLCtrl, codeShift, codeAlt, codeS} {
		if tr.Press(c) {
			fired++
		}
	}
	return fired
}

func TestTrackerFiresOnceWhenChordComplete(t *testing.T) {
	tr := NewTracker(testChord())
	assert.False(t, tr.Press(codeLCtrl))
	assert.False(t, tr.Press(codeShift))
	assert.False(t, tr.Press(codeAlt))
	assert.True(t, tr.Press(codeS), "chord should fire when the last key goes down")
	assert.True(t, tr.Latched())
}

func TestTrackerIgnoresAutoRepeat(t *testing.T) {
	tr := NewTracker(testChord())
	require.Equal(t, 1, pressAll(t, tr))

	for i := 0; i < 50; i++ {
		assert.False(t, tr.Press(codeS), "repeat %d must not fire", i)
		assert.False(t, tr.Press(codeAlt))
	}
}

func TestTrackerOrderDoesNotMatter(t *testing.T) {
	tr := NewTracker(testChord())
	assert.False(t, tr.Press(codeS))
	assert.False(t, tr.Press(codeAlt))
	assert.False(t, tr.Press(codeRCtrl))
	assert.True(t, tr.Press(codeShift))
}

func TestTrackerRearmsAfterEveryKeyReleased(t *testing.T) {
	tr := NewTracker(testChord())
	require.Equal(t, 1, pressAll(t, tr))

	// Releasing only the letter and pressing it again does not re-fire.
	tr.Release(codeS)
	assert.False(t, tr.Press(codeS))
	assert.True(t, tr.Latched())

	for _, c := range []uint16{codeLCtrl, codeShift, codeAlt, codeS} {
		tr.Release(c)
	}
	assert.False(t, tr.Latched())
	assert.Equal(t, 1, pressAll(t, tr), "second full press should fire again")
}

func TestTrackerReleaseCountsOncePerKey(t *testing.T) {
	tr := NewTracker(testChord())
	require.Equal(t, 1, pressAll(t, tr))

	// Each key released at some point re-arms, even if some were pressed again.
	tr.Release(codeS)
	tr.Release(codeAlt)
	tr.Press(codeAlt)
	tr.Release(codeShift)
	tr.Release(codeLCtrl)
	assert.False(t, tr.Latched())

	// alt is still held; completing the chord fires.
	tr.Press(codeLCtrl)
	tr.Press(codeShift)
	assert.True(t, tr.Press(codeS))
}

func TestTrackerLeftAndRightVariants(t *testing.T) {
	tr := NewTracker(testChord())
	tr.Press(codeLCtrl)
	tr.Press(codeRCtrl)
	tr.Press(codeShift)
	tr.Press(codeAlt)
	require.True(t, tr.Press(codeS))

	tr.Release(codeLCtrl)
	tr.Release(codeShift)
	tr.Release(codeAlt)
	tr.Release(codeS)
	assert.True(t, tr.Latched(), "right ctrl still held")
	tr.Release(codeRCtrl)
	assert.False(t, tr.Latched())
}

func TestTrackerHandleIgnoresUnrelatedKeys(t *testing.T) {
	tr := NewTracker(testChord())
	assert.False(t, tr.Handle(KeyEvent{Kind: KeyDown, Code: codeOther}))
	assert.False(t, tr.Handle(KeyEvent{Kind: KeyUp, Code: codeOther}))
	for _, c := range []uint16{codeLCtrl, codeShift, codeAlt} {
		assert.False(t, tr.Handle(KeyEvent{Kind: KeyDown, Code: c}))
	}
	assert.True(t, tr.Handle(KeyEvent{Kind: KeyDown, Code: codeS}))
}

func TestEmptyChordNeverFires(t *testing.T) {
	tr := NewTracker(Chord{})
	assert.False(t, tr.Press(codeS))
}

func TestParseChord(t *testing.T) {
	chord, err := ParseChord("Ctrl+Shift+Alt+S")
	require.NoError(t, err)
	require.Len(t, chord.Keys, 4)
	assert.Equal(t, "Ctrl+Shift+Alt+S", chord.String())

	names := make([]string, 0, len(chord.Keys))
	for _, k := range chord.Keys {
		assert.NotEmpty(t, k.Codes, k.Name)
		names = append(names, k.Name)
	}
	assert.Equal(t, []string{"ctrl", "shift", "alt", "s"}, names)
}

func TestParseChordDeduplicates(t *testing.T) {
	chord, err := ParseChord("ctrl+Control+s")
	require.NoError(t, err)
	assert.Len(t, chord.Keys, 2)
}

func TestParseChordErrors(t *testing.T) {
	for _, combo := range []string{"", "   ", "Ctrl++S", "Ctrl+nosuchkey"} {
		_, err := ParseChord(combo)
		assert.Error(t, err, combo)
	}
}

func TestParseKey(t *testing.T) {
	k, err := ParseKey("Escape")
	require.NoError(t, err)
	assert.Equal(t, "esc", k.Name)
	assert.NotEmpty(t, k.Codes)

	_, err = ParseKey("ctrl+s")
	assert.Error(t, err)
}

func TestParseHotkey(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"Ctrl+Alt+Q", []string{"ctrl", "alt", "q"}},
		{"Ctrl+Shift+O", []string{"ctrl", "shift", "o"}},
		{"Ctrl+alt+e", []string{"ctrl", "alt", "e"}},
		{"Alt+F4", []string{"alt", "f4"}},
		{"Ctrl+Shift+F13", []string{"ctrl", "shift", "f13"}},
		{"Alt+F24", []string{"alt", "f24"}},
		{"Ctrl+Shift+T", []string{"ctrl", "shift", "t"}},
		{"Ctrl+Win+E", []string{"ctrl", "cmd", "e"}},
		{"Win+Shift+S", []string{"cmd", "shift", "s"}},
		{"Super+Alt+T", []string{"cmd", "alt", "t"}},
		{"Control+Option+Escape", []string{"ctrl", "alt", "esc"}},
		{" ctrl + s ", []string{"ctrl", "s"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := parseHotkey(tt.input)
			if len(result) != len(tt.expected) {
				t.Errorf("parseHotkey(%q) returned %d keys, expected %d",
					tt.input, len(result), len(tt.expected))
				return
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("parseHotkey(%q)[%d] = %q, expected %q",
						tt.input, i, result[i], tt.expected[i])
				}
			}
		})
	}
}
