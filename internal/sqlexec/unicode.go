package sqlexec

import "strings"

const (
	lineSeparator      = '\u2028'
	paragraphSeparator = '\u2029'
)

// StripProblematicUnicode removes U+2028 (LINE SEPARATOR) and U+2029
// (PARAGRAPH SEPARATOR) from s. Called on serialized payloads before
// insertion when the store's DriverCapabilities.RequiresUnicodeReplacement is
// true.
func StripProblematicUnicode(s string) string {
	if strings.IndexRune(s, lineSeparator) < 0 && strings.IndexRune(s, paragraphSeparator) < 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == lineSeparator || r == paragraphSeparator {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
