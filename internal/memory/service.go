package memory

import (
	"context"
	"time"

	"github.com/ent0n29/companion/internal/emotion"
	"github.com/ent0n29/companion/internal/extract"
)

// HistoryLimit is the number of messages exposed by the history endpoint.
const HistoryLimit = 50

// Service runs fact extraction in front of a Store and exposes the
// profile and conversation operations the responder needs.
type Service struct {
	store   Store
	extract func(string) extract.Facts
	now     func() time.Time
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithClock overrides the time source used for message timestamps.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithExtractor overrides the fact extractor applied to user messages.
func WithExtractor(fn func(string) extract.Facts) ServiceOption {
	return func(s *Service) { s.extract = fn }
}

func NewService(store Store, opts ...ServiceOption) *Service {
	s := &Service{
		store:   store,
		extract: extract.Extract,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AppendMessage records a turn in the active conversation of
// (userID, sessionID), creating it when needed. User turns go through the
// fact extractor first; any facts found are merged into the profile as part
// of the same store call.
func (s *Service) AppendMessage(ctx context.Context, userID, sessionID string, role Role, content string, mood emotion.Label) (Conversation, error) {
	var facts extract.Facts
	if role == RoleUser {
		facts = s.extract(content)
	}
	msg := Message{
		Role:          role,
		Content:       content,
		Timestamp:     s.now(),
		Emotion:       string(mood),
		ExtractedInfo: facts.Map(),
	}
	return s.store.AppendMessage(ctx, userID, sessionID, msg, facts)
}

// Context returns up to limit of the most recent messages of the active
// conversation, oldest first. It is empty, not an error, when no
// conversation is active.
func (s *Service) Context(ctx context.Context, userID, sessionID string, limit int) ([]Message, error) {
	msgs, err := s.store.RecentMessages(ctx, userID, sessionID, limit)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []Message{}
	}
	return msgs, nil
}

// EndSession closes the active conversation and stores its digest. It
// reports false when there was nothing to end.
func (s *Service) EndSession(ctx context.Context, userID, sessionID string) (bool, error) {
	conv, err := s.store.EndConversation(ctx, userID, sessionID, s.now())
	if err != nil {
		return false, err
	}
	return conv != nil, nil
}

func (s *Service) GetOrCreateProfile(ctx context.Context, userID string) (UserProfile, error) {
	return s.store.GetOrCreateProfile(ctx, userID)
}

// MergeProfile folds facts into the user's profile and counts an interaction.
func (s *Service) MergeProfile(ctx context.Context, userID string, facts extract.Facts) (UserProfile, error) {
	return s.store.MergeProfile(ctx, userID, facts, s.now())
}

// Summary returns the memory projection for userID, or nil when the user
// has no profile yet.
func (s *Service) Summary(ctx context.Context, userID string) (*MemorySummary, error) {
	p, err := s.store.Profile(ctx, userID)
	if err != nil || p == nil {
		return nil, err
	}
	return summarize(*p), nil
}

// PastConversations lists digests of ended conversations, newest first.
func (s *Service) PastConversations(ctx context.Context, userID string, limit int) ([]PastConversation, error) {
	if limit <= 0 {
		limit = 3
	}
	return s.store.PastConversations(ctx, userID, limit)
}

// DeleteUser purges every profile and conversation record for userID.
func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	return s.store.DeleteUser(ctx, userID)
}

func (s *Service) Ping(ctx context.Context) error { return s.store.Ping(ctx) }
