package chat

import (
	"regexp"
	"strings"
)

// speakerLabelRe matches a leading "Name:" or "**Name**:" the backend may
// echo from the "Respond as Name:" cue.
var speakerLabelRe = regexp.MustCompile(`^\s*\**\s*([\p{L}][\p{L} .'-]{0,40}?)\s*\**\s*:\s*`)

// cleanReply strips a leading speaker label naming the persona and quotes
// wrapping the whole reply. It returns "" when nothing usable remains.
func cleanReply(text, name string) string {
	out := strings.TrimSpace(text)
	if m := speakerLabelRe.FindStringSubmatch(out); m != nil && strings.EqualFold(strings.TrimSpace(m[1]), name) {
		out = strings.TrimSpace(out[len(m[0]):])
	}
	if len(out) >= 2 {
		first, last := out[0], out[len(out)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			if inner := strings.TrimSpace(out[1 : len(out)-1]); !strings.ContainsAny(inner, `"`) {
				out = inner
			}
		}
	}
	return out
}
