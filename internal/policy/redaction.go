package policy

import (
	"regexp"
	"unicode/utf8"
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	cardPattern  = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)
	phonePattern = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
)

// previewRunes bounds how much of a message ever reaches the logs.
const previewRunes = 64

// LogPreview returns a short, PII-masked excerpt of a chat message that is
// safe to attach to log lines. Cards are masked before phones since a card
// number also matches the phone pattern.
func LogPreview(msg string) string {
	out := emailPattern.ReplaceAllString(msg, "[email]")
	out = cardPattern.ReplaceAllString(out, "[card]")
	out = phonePattern.ReplaceAllString(out, "[phone]")
	if utf8.RuneCountInString(out) <= previewRunes {
		return out
	}
	return string([]rune(out)[:previewRunes]) + "…"
}
