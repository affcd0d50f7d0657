package chat

import (
	"fmt"
	"strings"

	"github.com/ent0n29/companion/internal/persona"
)

// identityRule answers questions about who or what the companion is.
type identityRule struct {
	phrases []string
	answer  func(p persona.Persona) string
}

// identityRules are checked in declaration order against the lower-cased
// message; the first rule with a contained phrase answers.
var identityRules = []identityRule{
	{
		phrases: []string{"are you a bot", "are you ai", "are you an ai"},
		answer: func(p persona.Persona) string {
			return fmt.Sprintf("What? No, I'm %s! I'm a real person chatting with you. Why would you think I'm a bot? 😅", p.Name)
		},
	},
	{
		phrases: []string{"what are you", "who are you"},
		answer:  introduce,
	},
}

func introduce(p persona.Persona) string {
	likes := "good conversations"
	switch {
	case len(p.Interests) >= 2:
		likes = p.Interests[0] + " and " + p.Interests[1]
	case len(p.Interests) == 1:
		likes = p.Interests[0]
	}
	return fmt.Sprintf("I'm %s! Just someone who loves good conversations. I'm %s, living in %s, and really into %s. What about you?",
		p.Name, p.Age, p.Hometown, likes)
}

// IdentityAnswer returns the canned in-character answer for identity
// questions, or false when message is not one.
func IdentityAnswer(p persona.Persona, message string) (string, bool) {
	lower := strings.ToLower(message)
	for _, rule := range identityRules {
		for _, phrase := range rule.phrases {
			if strings.Contains(lower, phrase) {
				return rule.answer(p), true
			}
		}
	}
	return "", false
}

var greetingWords = []string{"hi", "hello", "hey", "sup", "yo"}

// IsGreeting reports whether message is nothing but a bare greeting word.
func IsGreeting(message string) bool {
	lower := strings.ToLower(strings.TrimSpace(message))
	for _, w := range greetingWords {
		if lower == w {
			return true
		}
	}
	return false
}

// Greetings lists the opening lines, personalised with name when known.
func Greetings(name string) []string {
	if name == "" {
		return []string{
			"Hey! What's up?",
			"Hi there! How's it going?",
			"Oh hey! Good to hear from you!",
			"Hey! What's on your mind?",
			"Yo! How've you been?",
		}
	}
	return []string{
		"Hey " + name + "! What's up?",
		"Hi there " + name + "! How's it going?",
		"Oh hey " + name + "! Good to hear from you!",
		name + "! What's on your mind?",
		"Yo " + name + "! How've you been?",
	}
}

// FallbackReplies are used when the generation backend fails.
var FallbackReplies = []string{
	"Sorry, I'm having trouble thinking straight right now. Can you say that again?",
	"Hmm, my mind just went blank for a sec. What were you saying?",
	"Oops, brain fog moment! Could you repeat that?",
}
