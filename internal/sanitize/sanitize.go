// Package sanitize cleans free text typed by users before it is stored.
package sanitize

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MaxTitleLength   = 80
	MaxContentLength = 1000
)

// reserved characters collide with chat markup and are replaced on input.
var reserved = strings.NewReplacer(
	"!", "",
	"_", " ",
	"*", "",
)

// Text replaces reserved characters, drops control characters except line
// breaks, collapses runs of spaces and trims the result.
func Text(s string) string {
	s = reserved.Replace(s)

	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		switch {
		case r == '\n':
			b.WriteRune(r)
			space = false
		case unicode.IsSpace(r):
			if !space {
				b.WriteRune(' ')
			}
			space = true
		case unicode.IsControl(r) || r == utf8.RuneError:
			continue
		default:
			b.WriteRune(r)
			space = false
		}
	}
	return strings.TrimSpace(b.String())
}

// Title sanitizes a single-line title and cuts it to MaxTitleLength runes.
func Title(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return truncate(Text(s), MaxTitleLength)
}

// Content sanitizes a description and cuts it to MaxContentLength runes.
func Content(s string) string {
	return truncate(Text(s), MaxContentLength)
}

func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:maxLen]))
}
