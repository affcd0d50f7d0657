package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractNameAndLocation(t *testing.T) {
	got := Extract("My name is Sam and I live in Denver.")
	assert.Equal(t, Facts{Name: "Sam", Location: "Denver"}, got)
	assert.Equal(t, map[string]string{"name": "Sam", "location": "Denver"}, got.Map())
}

func TestExtractNothing(t *testing.T) {
	got := Extract("What time is it?")
	assert.True(t, got.IsEmpty())
	assert.Empty(t, got.Map())
}

func TestMatchName(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"call me Ishmael", "Ishmael"},
		{"I am Jo, nice to meet you", "Jo"},
		{"i'm Riley", "Riley"},
		{"MY NAME IS ana", "ana"},
		{"nothing here", ""},
	}
	for _, tt := range tests {
		var f Facts
		MatchName(tt.text, &f)
		assert.Equal(t, tt.want, f.Name, tt.text)
	}
}

func TestMatchLocationStopsAtClauseBoundary(t *testing.T) {
	var f Facts
	MatchLocation("I'm from New York, but I moved", &f)
	assert.Equal(t, "New York", f.Location)

	f = Facts{}
	MatchLocation("we drove from Lisbon", &f)
	assert.Equal(t, "Lisbon", f.Location)

	f = Facts{}
	MatchLocation("from 1999 onward", &f)
	assert.Empty(t, f.Location)
}

func TestMatchFavoriteColor(t *testing.T) {
	var f Facts
	MatchFavoriteColor("My favorite color is teal", &f)
	assert.Equal(t, "teal", f.FavoriteColor)

	f = Facts{}
	MatchFavoriteColor("I like blue color", &f)
	assert.Equal(t, "blue", f.FavoriteColor)

	f = Facts{}
	MatchFavoriteColor("I like hiking", &f)
	assert.Equal(t, "hiking", f.FavoriteColor, "generic liking is read as a color")
}

func TestMatchInterests(t *testing.T) {
	var f Facts
	MatchInterests("I love playing jazz piano at night", &f)
	require.Len(t, f.Interests, 1)
	assert.Equal(t, "playing jazz piano", f.Interests[0])

	f = Facts{}
	MatchInterests("I enjoy chess and I'm a fan of old films", &f)
	assert.Equal(t, []string{"chess and I'm", "of old films"}, f.Interests)

	f = Facts{}
	MatchInterests("things I love", &f)
	assert.Empty(t, f.Interests, "trigger as the last word yields nothing")
}

func TestMatchInterestsKeepsRepeats(t *testing.T) {
	var f Facts
	// "love" and "like" both anchor on different words; neither is deduplicated.
	MatchInterests("love art, like art", &f)
	assert.Equal(t, []string{"art, like art", "art"}, f.Interests)
}

func TestIlikeBluePopulatesColorAndInterest(t *testing.T) {
	got := Extract("I like blue")
	assert.Equal(t, "blue", got.FavoriteColor)
	assert.Equal(t, []string{"blue"}, got.Interests)
}

func TestExtractWithCustomMatchers(t *testing.T) {
	got := ExtractWith("My name is Kai and I love surfing", MatchName)
	assert.Equal(t, Facts{Name: "Kai"}, got)
}
