package emotion

import "strings"

// Label names a detected or assigned emotional state.
type Label string

const (
	Happy   Label = "happy"
	Sad     Label = "sad"
	Angry   Label = "angry"
	Anxious Label = "anxious"
	Neutral Label = "neutral"
	Excited Label = "excited"

	// Labels assigned to turns by the responder rather than detected.
	Curious   Label = "curious"
	Confident Label = "confident"
	Friendly  Label = "friendly"
	Engaged   Label = "engaged"
)

type rule struct {
	label    Label
	keywords []string
}

// rules are evaluated in order; the first rule with a matching keyword wins.
// "excited" sits under happy, so Excited is only reached through its own
// narrower vocabulary.
var rules = []rule{
	{Happy, []string{"happy", "excited", "great", "awesome", "wonderful", "amazing", "love", "yay", "😊", "😄", "🎉"}},
	{Sad, []string{"sad", "depressed", "down", "unhappy", "terrible", "awful", "crying", "😢", "😞"}},
	{Angry, []string{"angry", "furious", "mad", "annoyed", "frustrated", "pissed", "😠", "😡"}},
	{Anxious, []string{"worried", "anxious", "nervous", "stressed", "concerned", "scared"}},
	{Neutral, []string{"okay", "fine", "alright", "normal"}},
	{Excited, []string{"excited", "pumped", "thrilled", "stoked", "can't wait"}},
}

// Detect returns the label of the first rule whose keywords appear in text,
// compared case-insensitively as substrings. It returns Neutral when nothing
// matches.
func Detect(text string) Label {
	lower := strings.ToLower(text)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.label
			}
		}
	}
	return Neutral
}

var tones = map[Label]string{
	Happy:   "Match their positive energy! Be enthusiastic and share in their joy.",
	Sad:     "Be gentle, empathetic, and supportive. Offer comfort without being pushy.",
	Angry:   "Stay calm and understanding. Validate their feelings without escalating.",
	Anxious: "Be reassuring and calming. Offer perspective and support.",
	Excited: "Match their excitement! Be energetic and engaged.",
	Neutral: "Be friendly and warm, setting a positive tone.",
}

// Tone returns the coaching sentence for label, defaulting to the neutral one.
func Tone(label Label) string {
	if t, ok := tones[label]; ok {
		return t
	}
	return tones[Neutral]
}
