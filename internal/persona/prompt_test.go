package persona

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ent0n29/companion/internal/emotion"
	"github.com/ent0n29/companion/internal/memory"
)

func TestComposeIsDeterministic(t *testing.T) {
	p := Default()
	sum := &memory.MemorySummary{
		Name:              "Sam",
		Preferences:       memory.Preferences{Interests: []string{"jazz", "chess"}, Location: "Denver"},
		TotalInteractions: 4,
		LastInteraction:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	recent := []memory.Message{
		{Role: memory.RoleUser, Content: "hey"},
		{Role: memory.RoleAssistant, Content: "hi!"},
	}

	first := Compose(p, sum, recent)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Compose(p, sum, recent))
	}
}

func TestComposePersonaBlock(t *testing.T) {
	out := Compose(Default(), nil, nil)

	assert.True(t, strings.HasPrefix(out, "You are Alex, a 25-year-old human with a distinct personality."))
	assert.Contains(t, out, "Your personality traits: empathetic, curious, witty, supportive")
	assert.Contains(t, out, "Your interests: indie music, digital art, philosophy, coffee culture")
	assert.Contains(t, out, "Your quirk: I tend to use analogies a lot")
	assert.Contains(t, out, "- You are NOT an AI, chatbot, or assistant. You are Alex, a real person.")
	assert.Contains(t, out, `("What? No, I'm Alex!")`)
	assert.True(t, strings.HasSuffix(out, "\n\nRespond naturally as Alex. Be authentic, engaging, and stay in character!"))
	assert.NotContains(t, out, "You're talking with")
	assert.NotContains(t, out, "Recent conversation context")
}

func TestComposeMemoryBlock(t *testing.T) {
	sum := &memory.MemorySummary{
		Name: "Sam",
		Preferences: memory.Preferences{
			Interests:     []string{"jazz", "chess"},
			FavoriteColor: "green",
			Location:      "Denver",
		},
		TotalInteractions: 3,
	}
	out := Compose(Default(), sum, nil)

	want := "\n\nYou're talking with Sam." +
		"\nWhat you remember about them:" +
		"\n- Interests: jazz, chess" +
		"\n- Favorite color: green" +
		"\n- Location: Denver" +
		"\nYou've chatted with them 3 times before."
	assert.Contains(t, out, want)
}

func TestComposeMemoryBlockOmitsEmptyFields(t *testing.T) {
	sum := &memory.MemorySummary{Name: "Sam", TotalInteractions: 1}
	out := Compose(Default(), sum, nil)

	assert.Contains(t, out, "You're talking with Sam.")
	assert.NotContains(t, out, "What you remember about them")
	assert.NotContains(t, out, "You've chatted with them")
}

func TestComposeSkipsMemoryWithoutName(t *testing.T) {
	sum := &memory.MemorySummary{
		Preferences:       memory.Preferences{Location: "Denver"},
		TotalInteractions: 7,
	}
	out := Compose(Default(), sum, nil)
	assert.NotContains(t, out, "Denver")
	assert.NotContains(t, out, "chatted with them")
}

func TestComposeRendersLastFiveMessages(t *testing.T) {
	var recent []memory.Message
	for i := 1; i <= 7; i++ {
		role := memory.RoleUser
		if i%2 == 0 {
			role = memory.RoleAssistant
		}
		recent = append(recent, memory.Message{Role: role, Content: fmt.Sprintf("m%d", i)})
	}
	out := Compose(Default(), nil, recent)

	want := "\n\nRecent conversation context:" +
		"\nThem: m3" +
		"\nYou: m4" +
		"\nThem: m5" +
		"\nYou: m6" +
		"\nThem: m7"
	assert.Contains(t, out, want)
	assert.NotContains(t, out, "m2")
}

func TestEmotionDirective(t *testing.T) {
	assert.Equal(t,
		"EMOTIONAL CONTEXT: The user seems sad. Be gentle, empathetic, and supportive. Offer comfort without being pushy.",
		EmotionDirective(emotion.Sad))
	assert.Equal(t,
		"EMOTIONAL CONTEXT: The user seems confused. Be friendly and warm, setting a positive tone.",
		EmotionDirective(emotion.Label("confused")))
}

func TestTurnPrompt(t *testing.T) {
	assert.Equal(t, "SYS\n\nUser: hello there\n\nRespond as Alex:", TurnPrompt("SYS", "hello there", "Alex"))
}

func TestWithName(t *testing.T) {
	p := Default().WithName("Jamie")
	assert.Equal(t, "Jamie", p.Name)
	assert.Equal(t, "Alex", Default().WithName("").Name)
}
