//go:build !windows

package hotkey

import (
	"strings"

	gohook "github.com/robotn/gohook"
)

// eventCode returns the portable libuiohook keycode, which is what
// gohook.Keycode is keyed by.
func eventCode(ev gohook.Event) uint16 { return ev.Keycode }

// sided lists modifiers whose right-hand variant has its own keycode name.
var sided = map[string]string{
	"ctrl":  "rctrl",
	"alt":   "ralt",
	"shift": "rshift",
	"cmd":   "rcmd",
}

var aliases = map[string]string{
	"return": "enter",
	"escape": "esc",
	"del":    "delete",
	"ins":    "insert",
	"pgup":   "pageup",
	"pgdn":   "pagedown",
	"win":    "cmd",
	"super":  "cmd",
	"prtsc":  "printscreen",
}

// keyNameToCodes maps a key name to libuiohook keycodes via gohook's table.
func keyNameToCodes(keyName string) []uint16 {
	keyName = strings.ToLower(strings.TrimSpace(keyName))
	if a, ok := aliases[keyName]; ok {
		keyName = a
	}

	code, ok := gohook.Keycode[keyName]
	if !ok {
		return nil
	}
	codes := []uint16{code}
	if right, ok := sided[keyName]; ok {
		if rc, ok := gohook.Keycode[right]; ok && rc != code {
			codes = append(codes, rc)
		}
	}
	return codes
}
