//go:build windows

package hotkey

import (
	"strings"

	gohook "github.com/robotn/gohook"
)

// eventCode picks the field that keyNameToCodes speaks. On Windows the hook
// reports the virtual-key code in Rawcode.
func eventCode(ev gohook.Event) uint16 { return ev.Rawcode }

// keyNameToCodes maps a key name to its Windows virtual key codes.
// Modifiers return both left and right variants.
func keyNameToCodes(keyName string) []uint16 {
	keyName = strings.ToLower(strings.TrimSpace(keyName))

	// Letters A-Z are VK 0x41-0x5A, digits 0-9 are VK 0x30-0x39.
	if len(keyName) == 1 {
		c := keyName[0]
		switch {
		case c >= 'a' && c <= 'z':
			return []uint16{uint16(c-'a') + 65}
		case c >= '0' && c <= '9':
			return []uint16{uint16(c-'0') + 48}
		}
	}

	// F1-F24 are VK 0x70-0x87.
	if n, ok := functionKeyNumber(keyName); ok && n <= 24 {
		return []uint16{uint16(111 + n)}
	}

	switch keyName {
	case "ctrl":
		return []uint16{162, 163} // VK_LCONTROL, VK_RCONTROL
	case "alt":
		return []uint16{164, 165} // VK_LMENU, VK_RMENU
	case "shift":
		return []uint16{160, 161} // VK_LSHIFT, VK_RSHIFT
	case "win", "cmd", "super":
		return []uint16{91, 92} // VK_LWIN, VK_RWIN

	case "space":
		return []uint16{32}
	case "enter", "return":
		return []uint16{13}
	case "esc", "escape":
		return []uint16{27}
	case "tab":
		return []uint16{9}
	case "backspace":
		return []uint16{8}
	case "delete", "del":
		return []uint16{46}
	case "insert", "ins":
		return []uint16{45}
	case "home":
		return []uint16{36}
	case "end":
		return []uint16{35}
	case "pageup", "pgup":
		return []uint16{33} // VK_PRIOR
	case "pagedown", "pgdn":
		return []uint16{34} // VK_NEXT
	case "printscreen", "prtsc":
		return []uint16{44} // VK_SNAPSHOT

	case "left":
		return []uint16{37}
	case "up":
		return []uint16{38}
	case "right":
		return []uint16{39}
	case "down":
		return []uint16{40}
	}
	return nil
}
