// Package extract pulls structured user facts out of free-text messages.
//
// Each fact has its own Matcher so the rules can be tested in isolation.
// Extraction is heuristic and total: it never fails and returns an empty
// Facts value when nothing matches.
package extract

import (
	"regexp"
	"strings"
)

// Facts holds what a single message revealed about the user. Every field is
// optional; the zero value means nothing was found.
type Facts struct {
	Name          string   `json:"name,omitempty"`
	Location      string   `json:"location,omitempty"`
	FavoriteColor string   `json:"favoriteColor,omitempty"`
	Interests     []string `json:"interests,omitempty"`
}

// IsEmpty reports whether no fact was extracted.
func (f Facts) IsEmpty() bool {
	return f.Name == "" && f.Location == "" && f.FavoriteColor == "" && len(f.Interests) == 0
}

// Map flattens the facts into the string map stored on a message.
func (f Facts) Map() map[string]string {
	out := make(map[string]string)
	if f.Name != "" {
		out["name"] = f.Name
	}
	if f.Location != "" {
		out["location"] = f.Location
	}
	if f.FavoriteColor != "" {
		out["favoriteColor"] = f.FavoriteColor
	}
	if len(f.Interests) > 0 {
		out["interests"] = strings.Join(f.Interests, ",")
	}
	return out
}

// Matcher inspects text and records what it finds into facts.
type Matcher func(text string, facts *Facts)

var (
	namePattern     = regexp.MustCompile(`(?i)(?:my name is|i'm|i am|call me)\s+([a-zA-Z]+)`)
	locationPattern = regexp.MustCompile(`(?i)(?:i live in|i'm from|from)\s+([a-zA-Z\s]+?)(?:\.|,|$)`)
	colorPattern    = regexp.MustCompile(`(?i)favorite color is\s+(\w+)|i like\s+(\w+)(?:\s+color)?`)
)

// interestTriggers are scanned in order; each one present contributes at
// most one phrase.
var interestTriggers = []string{"love", "enjoy", "like", "hobby", "interested in", "fan of"}

// maxInterestWords bounds the phrase taken after a trigger word.
const maxInterestWords = 3

// Matchers is the default extraction pipeline.
var Matchers = []Matcher{MatchName, MatchLocation, MatchFavoriteColor, MatchInterests}

// Extract runs every default matcher against text.
func Extract(text string) Facts {
	return ExtractWith(text, Matchers...)
}

// ExtractWith runs the given matchers in order against text.
func ExtractWith(text string, matchers ...Matcher) Facts {
	var facts Facts
	for _, m := range matchers {
		m(text, &facts)
	}
	return facts
}

// MatchName takes the alphabetic token following "my name is", "I'm",
// "I am" or "call me". Only the first occurrence counts.
func MatchName(text string, facts *Facts) {
	if m := namePattern.FindStringSubmatch(text); m != nil {
		facts.Name = m[1]
	}
}

// MatchLocation takes the words after "I live in", "I'm from" or "from" up
// to the next period, comma or the end of the text.
func MatchLocation(text string, facts *Facts) {
	if m := locationPattern.FindStringSubmatch(text); m != nil {
		if loc := strings.TrimSpace(m[1]); loc != "" {
			facts.Location = loc
		}
	}
}

// MatchFavoriteColor accepts "favorite color is X" or "I like X". The
// second form also fires on any liked noun ("I like hiking"); that overlap
// is kept as-is.
func MatchFavoriteColor(text string, facts *Facts) {
	m := colorPattern.FindStringSubmatch(text)
	if m == nil {
		return
	}
	if m[1] != "" {
		facts.FavoriteColor = m[1]
		return
	}
	facts.FavoriteColor = m[2]
}

// MatchInterests collects up to three words after each trigger present in
// text. The trigger's first word locates the anchor: the first
// space-separated word containing it. Phrases are not deduplicated here.
func MatchInterests(text string, facts *Facts) {
	lower := strings.ToLower(text)
	words := strings.Split(text, " ")
	for _, trigger := range interestTriggers {
		if !strings.Contains(lower, trigger) {
			continue
		}
		anchor := strings.Fields(trigger)[0]
		idx := -1
		for i, w := range words {
			if strings.Contains(strings.ToLower(w), anchor) {
				idx = i
				break
			}
		}
		if idx < 0 || idx >= len(words)-1 {
			continue
		}
		end := min(idx+1+maxInterestWords, len(words))
		facts.Interests = append(facts.Interests, strings.Join(words[idx+1:end], " "))
	}
}
