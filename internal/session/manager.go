package session

import (
	"context"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

// Session is the activity record of one (user, session) pair.
type Session struct {
	SessionID      string    `json:"sessionId"`
	UserID         string    `json:"userId"`
	Status         Status    `json:"status"`
	StartedAt      time.Time `json:"startedAt"`
	LastActivityAt time.Time `json:"lastActivityAt"`
}

type key struct {
	userID    string
	sessionID string
}

// NewID returns an opaque session token: a millisecond timestamp followed
// by nine random base36 characters.
func NewID(now time.Time) string {
	u := uuid.New()
	suffix := strconv.FormatUint(binary.BigEndian.Uint64(u[:8]), 36)
	if len(suffix) < 9 {
		suffix = strings.Repeat("0", 9-len(suffix)) + suffix
	}
	return fmt.Sprintf("session_%d_%s", now.UnixMilli(), suffix[:9])
}

// Tracker remembers when each session was last used and ends the ones that
// go quiet for longer than the inactivity timeout.
type Tracker struct {
	mu                sync.RWMutex
	sessions          map[key]*Session
	inactivityTimeout time.Duration
	onExpire          func(Session)
	now               func() time.Time
}

// NewTracker creates a tracker. A non-positive timeout disables expiry.
func NewTracker(inactivityTimeout time.Duration) *Tracker {
	return &Tracker{
		sessions:          make(map[key]*Session),
		inactivityTimeout: inactivityTimeout,
		now:               func() time.Time { return time.Now().UTC() },
	}
}

// SetExpireHook registers the callback run for each session the janitor ends.
func (t *Tracker) SetExpireHook(hook func(Session)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onExpire = hook
}

// Start opens a fresh session for userID.
func (t *Tracker) Start(userID string) Session {
	now := t.now()
	s := &Session{
		SessionID:      NewID(now),
		UserID:         userID,
		Status:         StatusActive,
		StartedAt:      now,
		LastActivityAt: now,
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions[key{userID, s.SessionID}] = s
	return *s
}

// Touch records activity. Sessions the tracker has not seen, or has already
// ended, are (re)opened: clients may pick their own session ids.
func (t *Tracker) Touch(userID, sessionID string) {
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	k := key{userID, sessionID}
	s, ok := t.sessions[k]
	if !ok {
		s = &Session{SessionID: sessionID, UserID: userID, StartedAt: now}
		t.sessions[k] = s
	}
	s.Status = StatusActive
	s.LastActivityAt = now
}

func (t *Tracker) Get(userID, sessionID string) (Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[key{userID, sessionID}]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// End marks a session ended and stops tracking it. It reports false when
// the session is unknown.
func (t *Tracker) End(userID, sessionID string) (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := key{userID, sessionID}
	s, ok := t.sessions[k]
	if !ok {
		return Session{}, false
	}
	delete(t.sessions, k)
	s.Status = StatusEnded
	s.LastActivityAt = t.now()
	return *s, true
}

// Len reports how many sessions are tracked, ended or not.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

// Forget drops every session of userID.
func (t *Tracker) Forget(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k := range t.sessions {
		if k.userID == userID {
			delete(t.sessions, k)
		}
	}
}

func (t *Tracker) ActiveCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	count := 0
	for _, s := range t.sessions {
		if s.Status == StatusActive {
			count++
		}
	}
	return count
}

// StartJanitor runs expiry every interval until ctx is done.
func (t *Tracker) StartJanitor(ctx context.Context, interval time.Duration) {
	if t.inactivityTimeout <= 0 {
		return
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.expireInactive()
			}
		}
	}()
}

func (t *Tracker) expireInactive() {
	now := t.now()
	var expired []Session

	t.mu.Lock()
	for k, s := range t.sessions {
		if s.Status != StatusActive {
			// Ended sessions are only kept until the next sweep.
			delete(t.sessions, k)
			continue
		}
		if now.Sub(s.LastActivityAt) < t.inactivityTimeout {
			continue
		}
		s.Status = StatusEnded
		s.LastActivityAt = now
		expired = append(expired, *s)
	}
	hook := t.onExpire
	t.mu.Unlock()

	if hook != nil {
		for _, s := range expired {
			hook(s)
		}
	}
}
