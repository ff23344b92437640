// Package sanitize cleans free text attached to runs before it is stored.
// Run notes are echoed back to MCP clients, so markup that could be read as
// instructions is stripped along with control characters.
package sanitize

import (
	"regexp"
	"strings"
)

// MaxNoteLength is the maximum length of a run note, in runes.
const MaxNoteLength = 200

var (
	// reXMLTag matches XML/HTML tags including those with attributes and self-closing tags.
	// It also matches XML processing instructions like <?xml ...?>.
	reXMLTag = regexp.MustCompile(`<[/?!]?[a-zA-Z][a-zA-Z0-9]*(?:\s+[^>]*)?/?>|<\?[^?]*\?>`)

	// reBackticks matches runs of backticks used in code spans and fences.
	reBackticks = regexp.MustCompile("`+")

	// reHeadingMarker matches markdown heading markers at the start of the text.
	reHeadingMarker = regexp.MustCompile(`^#{1,6}\s+`)
)

// Note reduces free text to a single clean line: control characters and
// markup tags are removed, whitespace runs collapse to one space, and the
// result is truncated to MaxNoteLength runes.
func Note(input string) string {
	if input == "" {
		return ""
	}

	s := stripControlChars(input)
	s = reXMLTag.ReplaceAllString(s, "")
	s = reBackticks.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")
	s = reHeadingMarker.ReplaceAllString(s, "")

	if r := []rune(s); len(r) > MaxNoteLength {
		s = strings.TrimSpace(string(r[:MaxNoteLength])) + "..."
	}
	return s
}

// stripControlChars removes ASCII control characters (0x00-0x1F and DEL),
// keeping newline and tab so they can fold into spaces.
func stripControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r < 0x20 && r != '\n' && r != '\t') || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
