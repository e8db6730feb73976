package extract

import (
	"strings"
	"unicode/utf8"
)

// FilterShortLines keeps lines with at least minLen characters. minLen <= 0
// uses DefaultMinLineLength.
func FilterShortLines(text string, minLen int) string {
	if minLen <= 0 {
		minLen = DefaultMinLineLength
	}
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	kept := lines[:0]
	for _, line := range lines {
		if utf8.RuneCountInString(line) >= minLen {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
