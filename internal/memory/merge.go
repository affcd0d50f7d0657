package memory

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/ent0n29/companion/internal/extract"
)

func newProfile(userID string, now time.Time) UserProfile {
	return UserProfile{
		UserID:      userID,
		Preferences: Preferences{Interests: []string{}},
		Personality: Personality{
			CommunicationStyle: DefaultCommunicationStyle,
			MoodHistory:        []string{},
		},
		LastInteraction: now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// applyFacts merges facts into p. Scalar facts are last-write-wins,
// interests are unioned, and the interaction counter always advances.
func applyFacts(p *UserProfile, facts extract.Facts, at time.Time) {
	if facts.Name != "" {
		p.Name = facts.Name
	}
	if facts.Location != "" {
		p.Preferences.Location = facts.Location
	}
	if facts.FavoriteColor != "" {
		p.Preferences.FavoriteColor = facts.FavoriteColor
	}
	if len(facts.Interests) > 0 {
		p.Preferences.Interests = unionStrings(p.Preferences.Interests, facts.Interests)
	}
	p.TotalInteractions++
	p.LastInteraction = at
	p.UpdatedAt = at
}

func unionStrings(base, add []string) []string {
	return lo.Uniq(append(slices.Clone(base), add...))
}

// Digest is the placeholder summary stored when a conversation ends.
func Digest(topics []string, messageCount int) string {
	joined := strings.Join(lo.Uniq(topics), ", ")
	if joined == "" {
		joined = "various topics"
	}
	return fmt.Sprintf("Discussed %s (%d messages)", joined, messageCount)
}

func summarize(p UserProfile) *MemorySummary {
	return &MemorySummary{
		Name:              p.Name,
		Preferences:       p.Preferences,
		Personality:       p.Personality,
		TotalInteractions: p.TotalInteractions,
		LastInteraction:   p.LastInteraction,
	}
}

func lastN(msgs []Message, limit int) []Message {
	if limit <= 0 || limit > len(msgs) {
		limit = len(msgs)
	}
	return slices.Clone(msgs[len(msgs)-limit:])
}
