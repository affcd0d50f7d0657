package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/ent0n29/companion/internal/extract"
)

// InMemoryStore is a simple in-process store for local/dev use. A single
// mutex makes find-or-create plus append atomic per call.
type InMemoryStore struct {
	mu            sync.RWMutex
	profiles      map[string]*UserProfile
	conversations map[string][]*Conversation
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		profiles:      make(map[string]*UserProfile),
		conversations: make(map[string][]*Conversation),
	}
}

func (s *InMemoryStore) GetOrCreateProfile(_ context.Context, userID string) (UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneProfile(s.profileLocked(userID, time.Now().UTC())), nil
}

func (s *InMemoryStore) MergeProfile(_ context.Context, userID string, facts extract.Facts, at time.Time) (UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.profileLocked(userID, at)
	applyFacts(p, facts, at)
	return cloneProfile(p), nil
}

func (s *InMemoryStore) Profile(_ context.Context, userID string) (*UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, nil
	}
	c := cloneProfile(p)
	return &c, nil
}

func (s *InMemoryStore) AppendMessage(_ context.Context, userID, sessionID string, msg Message, facts extract.Facts) (Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	if !facts.IsEmpty() {
		applyFacts(s.profileLocked(userID, msg.Timestamp), facts, msg.Timestamp)
	}

	conv := s.activeLocked(userID, sessionID)
	if conv == nil {
		conv = &Conversation{
			ID:        uuid.NewString(),
			UserID:    userID,
			SessionID: sessionID,
			Topics:    []string{},
			StartedAt: msg.Timestamp,
			IsActive:  true,
		}
		s.conversations[userID] = append(s.conversations[userID], conv)
	}
	conv.Messages = append(conv.Messages, msg)
	if len(facts.Interests) > 0 {
		conv.Topics = unionStrings(conv.Topics, facts.Interests)
	}
	return cloneConversation(conv), nil
}

func (s *InMemoryStore) RecentMessages(_ context.Context, userID, sessionID string, limit int) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv := s.activeLocked(userID, sessionID)
	if conv == nil || len(conv.Messages) == 0 {
		return nil, nil
	}
	return lastN(conv.Messages, limit), nil
}

func (s *InMemoryStore) EndConversation(_ context.Context, userID, sessionID string, endedAt time.Time) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := s.activeLocked(userID, sessionID)
	if conv == nil {
		return nil, nil
	}
	conv.IsActive = false
	conv.EndedAt = &endedAt
	conv.Summary = Digest(conv.Topics, len(conv.Messages))
	c := cloneConversation(conv)
	return &c, nil
}

func (s *InMemoryStore) PastConversations(_ context.Context, userID string, limit int) ([]PastConversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ended := lo.Filter(s.conversations[userID], func(c *Conversation, _ int) bool {
		return !c.IsActive && c.EndedAt != nil
	})
	sort.SliceStable(ended, func(i, j int) bool {
		return ended[i].EndedAt.After(*ended[j].EndedAt)
	})
	if limit > 0 && len(ended) > limit {
		ended = ended[:limit]
	}
	out := make([]PastConversation, 0, len(ended))
	for _, c := range ended {
		out = append(out, PastConversation{
			SessionID: c.SessionID,
			Summary:   c.Summary,
			Topics:    slices.Clone(c.Topics),
			EndedAt:   *c.EndedAt,
		})
	}
	return out, nil
}

func (s *InMemoryStore) DeleteUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profiles, userID)
	delete(s.conversations, userID)
	return nil
}

func (s *InMemoryStore) Ping(context.Context) error { return nil }

func (s *InMemoryStore) Close() error { return nil }

func (s *InMemoryStore) profileLocked(userID string, now time.Time) *UserProfile {
	p, ok := s.profiles[userID]
	if !ok {
		np := newProfile(userID, now)
		p = &np
		s.profiles[userID] = p
	}
	return p
}

func (s *InMemoryStore) activeLocked(userID, sessionID string) *Conversation {
	for _, c := range s.conversations[userID] {
		if c.SessionID == sessionID && c.IsActive {
			return c
		}
	}
	return nil
}

func cloneProfile(p *UserProfile) UserProfile {
	c := *p
	c.Preferences.Interests = slices.Clone(p.Preferences.Interests)
	c.Personality.MoodHistory = slices.Clone(p.Personality.MoodHistory)
	return c
}

func cloneConversation(conv *Conversation) Conversation {
	c := *conv
	c.Messages = slices.Clone(conv.Messages)
	c.Topics = slices.Clone(conv.Topics)
	if conv.EndedAt != nil {
		t := *conv.EndedAt
		c.EndedAt = &t
	}
	return c
}
