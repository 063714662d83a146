package file

import (
	"strings"
	"unicode"
)

// reservedChars are rejected by at least one common filesystem.
const reservedChars = `<>:"/\|?*`

// Sanitize maps an arbitrary title to a filesystem-safe base name.
// It never fails and Sanitize(Sanitize(s)) == Sanitize(s). Different titles
// may map to the same name; callers that need uniqueness must qualify it.
func Sanitize(title string) string {
	cleaned := strings.Map(func(r rune) rune {
		if strings.ContainsRune(reservedChars, r) || unicode.IsControl(r) {
			return -1
		}
		return r
	}, title)
	// trailing dots and spaces are dropped by Windows and confuse extension handling
	cleaned = strings.TrimLeftFunc(cleaned, unicode.IsSpace)
	return strings.TrimRightFunc(cleaned, func(r rune) bool {
		return unicode.IsSpace(r) || r == '.'
	})
}
