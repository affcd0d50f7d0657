package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ent0n29/companion/internal/emotion"
	"github.com/ent0n29/companion/internal/extract"
)

func fixedClock() func() time.Time {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	n := 0
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func TestMergeDeduplicatesInterests(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewInMemoryStore())

	_, err := svc.MergeProfile(ctx, "u1", extract.Facts{Interests: []string{"art"}})
	require.NoError(t, err)
	p, err := svc.MergeProfile(ctx, "u1", extract.Facts{Interests: []string{"art"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"art"}, p.Preferences.Interests)
	assert.Equal(t, 2, p.TotalInteractions)
}

func TestMergeScalarsLastWriteWins(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewInMemoryStore(), WithClock(fixedClock()))

	_, err := svc.MergeProfile(ctx, "u1", extract.Facts{Name: "Sam", Location: "Denver", Interests: []string{"jazz"}})
	require.NoError(t, err)
	p, err := svc.MergeProfile(ctx, "u1", extract.Facts{Location: "Austin", FavoriteColor: "green", Interests: []string{"chess", "jazz"}})
	require.NoError(t, err)

	assert.Equal(t, "Sam", p.Name)
	assert.Equal(t, "Austin", p.Preferences.Location)
	assert.Equal(t, "green", p.Preferences.FavoriteColor)
	assert.Equal(t, []string{"jazz", "chess"}, p.Preferences.Interests)
}

func TestMergeEmptyFactsStillCountsInteraction(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewInMemoryStore(), WithClock(fixedClock()))

	first, err := svc.MergeProfile(ctx, "u1", extract.Facts{})
	require.NoError(t, err)
	second, err := svc.MergeProfile(ctx, "u1", extract.Facts{})
	require.NoError(t, err)

	assert.Equal(t, 2, second.TotalInteractions)
	assert.True(t, second.LastInteraction.After(first.LastInteraction))
}

func TestGetOrCreateProfileIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewInMemoryStore())

	a, err := svc.GetOrCreateProfile(ctx, "u1")
	require.NoError(t, err)
	b, err := svc.GetOrCreateProfile(ctx, "u1")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, DefaultCommunicationStyle, a.Personality.CommunicationStyle)
	assert.Zero(t, a.TotalInteractions)
}

func TestSummaryAbsentIsNil(t *testing.T) {
	svc := NewService(NewInMemoryStore())
	sum, err := svc.Summary(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, sum)
}

func TestAppendUserMessageMergesFacts(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewInMemoryStore(), WithClock(fixedClock()))

	conv, err := svc.AppendMessage(ctx, "u1", "s1", RoleUser, "My name is Sam and I live in Denver.", emotion.Neutral)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, map[string]string{"name": "Sam", "location": "Denver"}, conv.Messages[0].ExtractedInfo)

	sum, err := svc.Summary(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, sum)
	assert.Equal(t, "Sam", sum.Name)
	assert.Equal(t, "Denver", sum.Preferences.Location)
	assert.Equal(t, 1, sum.TotalInteractions)
}

func TestAppendWithoutFactsLeavesProfileUntouched(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewInMemoryStore())

	_, err := svc.AppendMessage(ctx, "u1", "s1", RoleUser, "what time is it", emotion.Neutral)
	require.NoError(t, err)
	_, err = svc.AppendMessage(ctx, "u1", "s1", RoleAssistant, "My name is Alex", emotion.Engaged)
	require.NoError(t, err)

	sum, err := svc.Summary(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, sum, "assistant turns are never mined for facts")
}

func TestContextReturnsMessagesInOrder(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewInMemoryStore(), WithClock(fixedClock()))

	for _, text := range []string{"one", "two", "three"} {
		_, err := svc.AppendMessage(ctx, "u1", "s1", RoleUser, text, emotion.Neutral)
		require.NoError(t, err)
	}

	msgs, err := svc.Context(ctx, "u1", "s1", HistoryLimit)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "one", msgs[0].Content)
	assert.Equal(t, "two", msgs[1].Content)
	assert.Equal(t, "three", msgs[2].Content)

	last, err := svc.Context(ctx, "u1", "s1", 2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, "two", last[0].Content)
}

func TestContextWithoutConversationIsEmpty(t *testing.T) {
	svc := NewService(NewInMemoryStore())
	msgs, err := svc.Context(context.Background(), "u1", "missing", 10)
	require.NoError(t, err)
	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)
}

func TestConcurrentAppendsShareOneActiveConversation(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	svc := NewService(store)

	const writers = 16
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.AppendMessage(ctx, "u1", "s1", RoleUser, fmt.Sprintf("msg %d", i), emotion.Neutral)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	active := 0
	for _, c := range store.conversations["u1"] {
		if c.IsActive {
			active++
		}
	}
	assert.Equal(t, 1, active)

	msgs, err := svc.Context(ctx, "u1", "s1", 0)
	require.NoError(t, err)
	assert.Len(t, msgs, writers)
}

func TestEndSession(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	svc := NewService(store, WithClock(fixedClock()))

	_, err := svc.AppendMessage(ctx, "u1", "s1", RoleUser, "I love hiking", emotion.Happy)
	require.NoError(t, err)
	_, err = svc.AppendMessage(ctx, "u1", "s1", RoleAssistant, "Nice!", emotion.Engaged)
	require.NoError(t, err)

	ended, err := svc.EndSession(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.True(t, ended)

	past, err := svc.PastConversations(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, past, 1)
	assert.Equal(t, "Discussed hiking (2 messages)", past[0].Summary)

	again, err := svc.EndSession(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.False(t, again, "ending twice is a no-op")

	past, err = svc.PastConversations(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, past, 1)
	assert.Equal(t, "Discussed hiking (2 messages)", past[0].Summary)

	msgs, err := svc.Context(ctx, "u1", "s1", 10)
	require.NoError(t, err)
	assert.Empty(t, msgs, "ended conversations are no longer the active context")
}

func TestEndSessionMissingIsNoop(t *testing.T) {
	svc := NewService(NewInMemoryStore())
	ended, err := svc.EndSession(context.Background(), "u1", "nope")
	require.NoError(t, err)
	assert.False(t, ended)
}

func TestAppendAfterEndStartsNewConversation(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	svc := NewService(store, WithClock(fixedClock()))

	_, err := svc.AppendMessage(ctx, "u1", "s1", RoleUser, "first", emotion.Neutral)
	require.NoError(t, err)
	_, err = svc.EndSession(ctx, "u1", "s1")
	require.NoError(t, err)
	conv, err := svc.AppendMessage(ctx, "u1", "s1", RoleUser, "second", emotion.Neutral)
	require.NoError(t, err)

	assert.True(t, conv.IsActive)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, "second", conv.Messages[0].Content)
	assert.Len(t, store.conversations["u1"], 2)
}

func TestPastConversationsNewestFirst(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewInMemoryStore(), WithClock(fixedClock()))

	for _, sid := range []string{"s1", "s2", "s3", "s4"} {
		_, err := svc.AppendMessage(ctx, "u1", sid, RoleUser, "hello", emotion.Neutral)
		require.NoError(t, err)
		_, err = svc.EndSession(ctx, "u1", sid)
		require.NoError(t, err)
	}

	past, err := svc.PastConversations(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, past, 3)
	assert.Equal(t, "s4", past[0].SessionID)
	assert.Equal(t, "Discussed various topics (1 messages)", past[0].Summary)
}

func TestDeleteUserPurgesEverything(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewInMemoryStore())

	_, err := svc.AppendMessage(ctx, "u1", "s1", RoleUser, "call me Max", emotion.Neutral)
	require.NoError(t, err)
	_, err = svc.AppendMessage(ctx, "u2", "s1", RoleUser, "call me Lee", emotion.Neutral)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteUser(ctx, "u1"))

	sum, err := svc.Summary(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, sum)
	msgs, err := svc.Context(ctx, "u1", "s1", 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	other, err := svc.Summary(ctx, "u2")
	require.NoError(t, err)
	require.NotNil(t, other)
	assert.Equal(t, "Lee", other.Name)
}

func TestDigest(t *testing.T) {
	assert.Equal(t, "Discussed various topics (0 messages)", Digest(nil, 0))
	assert.Equal(t, "Discussed art, jazz (4 messages)", Digest([]string{"art", "jazz", "art"}, 4))
}

type failingStore struct {
	*InMemoryStore
}

func (failingStore) AppendMessage(context.Context, string, string, Message, extract.Facts) (Conversation, error) {
	return Conversation{}, storeErr("append message", errors.New("disk full"))
}

func TestStoreErrorsPropagate(t *testing.T) {
	svc := NewService(failingStore{NewInMemoryStore()})
	_, err := svc.AppendMessage(context.Background(), "u1", "s1", RoleUser, "hi", emotion.Neutral)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStore)

	var se *StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "append message", se.Op)
	assert.Equal(t, "memory: append message: disk full", err.Error())
}
