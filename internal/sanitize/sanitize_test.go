package sanitize

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "plain", input: "Dentist", expected: "Dentist"},
		{name: "reserved characters", input: "*Big* party!", expected: "Big party"},
		{name: "underscore becomes space", input: "team_sync", expected: "team sync"},
		{name: "whitespace collapsed", input: "  a \t  b  ", expected: "a b"},
		{name: "control characters dropped", input: "a\x00b\x07c", expected: "abc"},
		{name: "line breaks kept", input: "line one\nline two", expected: "line one\nline two"},
		{name: "only reserved", input: "!!**", expected: ""},
		{name: "empty", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Text(tt.input))
		})
	}
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "a b", Title("a\nb"))

	long := strings.Repeat("ä", MaxTitleLength+20)
	got := Title(long)
	assert.Equal(t, MaxTitleLength, utf8.RuneCountInString(got))
}

func TestContent(t *testing.T) {
	long := strings.Repeat("x", MaxContentLength+1)
	assert.Len(t, Content(long), MaxContentLength)
	assert.Equal(t, "bring card", Content("  bring_card! "))
}
