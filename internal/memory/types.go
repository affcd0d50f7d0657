package memory

import (
	"context"
	"time"

	"github.com/ent0n29/companion/internal/extract"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// DefaultCommunicationStyle is assigned to newly created profiles.
const DefaultCommunicationStyle = "friendly"

// Preferences are the facts accumulated about a user. Interests behave as an
// insertion-ordered set.
type Preferences struct {
	Interests     []string `json:"interests"`
	FavoriteColor string   `json:"favoriteColor,omitempty"`
	Location      string   `json:"location,omitempty"`
}

type Personality struct {
	CommunicationStyle string   `json:"communicationStyle"`
	MoodHistory        []string `json:"moodHistory"`
}

// UserProfile is the long-lived memory kept for one user.
type UserProfile struct {
	UserID            string      `json:"userId"`
	Name              string      `json:"name,omitempty"`
	Preferences       Preferences `json:"preferences"`
	Personality       Personality `json:"personality"`
	TotalInteractions int         `json:"totalInteractions"`
	LastInteraction   time.Time   `json:"lastInteraction"`
	CreatedAt         time.Time   `json:"createdAt"`
	UpdatedAt         time.Time   `json:"updatedAt"`
}

// MemorySummary is the read projection of a profile used to personalise replies.
type MemorySummary struct {
	Name              string      `json:"name,omitempty"`
	Preferences       Preferences `json:"preferences"`
	Personality       Personality `json:"personality"`
	TotalInteractions int         `json:"totalInteractions"`
	LastInteraction   time.Time   `json:"lastInteraction"`
}

// Message is a single turn in a conversation.
type Message struct {
	ID            string            `json:"id"`
	Role          Role              `json:"role"`
	Content       string            `json:"content"`
	Timestamp     time.Time         `json:"timestamp"`
	Emotion       string            `json:"emotion,omitempty"`
	ExtractedInfo map[string]string `json:"extractedInfo,omitempty"`
}

// Conversation is the message log of one (user, session) pair. Only one
// conversation per pair is active at a time; ending it is permanent.
type Conversation struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	SessionID string     `json:"sessionId"`
	Messages  []Message  `json:"messages"`
	Summary   string     `json:"summary,omitempty"`
	Topics    []string   `json:"topics"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
	IsActive  bool       `json:"isActive"`
}

// PastConversation is the digest kept for an ended conversation.
type PastConversation struct {
	SessionID string    `json:"sessionId"`
	Summary   string    `json:"summary"`
	Topics    []string  `json:"topics"`
	EndedAt   time.Time `json:"endedAt"`
}

// Store persists profiles and conversations.
//
// AppendMessage must find-or-create the active conversation and append to it
// atomically. When facts is non-empty the profile merge happens before the
// append becomes visible, so a failed append never drops extracted facts
// silently and a failed merge never persists the message.
type Store interface {
	GetOrCreateProfile(ctx context.Context, userID string) (UserProfile, error)
	MergeProfile(ctx context.Context, userID string, facts extract.Facts, at time.Time) (UserProfile, error)
	// Profile returns nil without error when the user has no profile yet.
	Profile(ctx context.Context, userID string) (*UserProfile, error)

	AppendMessage(ctx context.Context, userID, sessionID string, msg Message, facts extract.Facts) (Conversation, error)
	RecentMessages(ctx context.Context, userID, sessionID string, limit int) ([]Message, error)
	// EndConversation returns nil without error when no conversation is active.
	EndConversation(ctx context.Context, userID, sessionID string, endedAt time.Time) (*Conversation, error)
	PastConversations(ctx context.Context, userID string, limit int) ([]PastConversation, error)

	DeleteUser(ctx context.Context, userID string) error
	Ping(ctx context.Context) error
	Close() error
}
