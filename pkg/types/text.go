package types

import "unicode/utf8"

// TruncateUTF8 cuts s to at most max bytes without splitting a multi-byte rune.
func TruncateUTF8(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
