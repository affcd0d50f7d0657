//go:build integration

package memory

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ent0n29/companion/internal/emotion"
)

// Run with: COMPANION_TEST_DATABASE_URL=postgres://... go test -tags integration ./internal/memory
func newTestPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	url := os.Getenv("COMPANION_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("COMPANION_TEST_DATABASE_URL not set")
	}
	store, err := NewPostgresStore(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPostgresConcurrentAppendsShareOneActiveConversation(t *testing.T) {
	ctx := context.Background()
	store := newTestPostgresStore(t)
	svc := NewService(store)
	userID := "it-" + uuid.NewString()
	t.Cleanup(func() { _ = store.DeleteUser(context.Background(), userID) })

	const writers = 16
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.AppendMessage(ctx, userID, "s1", RoleUser, fmt.Sprintf("I love topic%d", i), emotion.Neutral)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var active int
	err := store.pool.QueryRow(ctx,
		`SELECT count(*) FROM conversations WHERE user_id=$1 AND is_active`, userID,
	).Scan(&active)
	require.NoError(t, err)
	assert.Equal(t, 1, active)

	msgs, err := svc.Context(ctx, userID, "s1", 0)
	require.NoError(t, err)
	assert.Len(t, msgs, writers)

	summary, err := svc.Summary(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, writers, summary.TotalInteractions)
}

func TestPostgresEndAndRestartConversation(t *testing.T) {
	ctx := context.Background()
	store := newTestPostgresStore(t)
	svc := NewService(store)
	userID := "it-" + uuid.NewString()
	t.Cleanup(func() { _ = store.DeleteUser(context.Background(), userID) })

	_, err := svc.AppendMessage(ctx, userID, "s1", RoleUser, "I love hiking", emotion.Happy)
	require.NoError(t, err)
	_, err = svc.AppendMessage(ctx, userID, "s1", RoleAssistant, "Nice!", emotion.Engaged)
	require.NoError(t, err)

	ended, err := svc.EndSession(ctx, userID, "s1")
	require.NoError(t, err)
	assert.True(t, ended)

	again, err := svc.EndSession(ctx, userID, "s1")
	require.NoError(t, err)
	assert.False(t, again)

	past, err := svc.PastConversations(ctx, userID, 0)
	require.NoError(t, err)
	require.Len(t, past, 1)
	assert.Equal(t, "Discussed hiking (2 messages)", past[0].Summary)

	conv, err := svc.AppendMessage(ctx, userID, "s1", RoleUser, "back again", emotion.Neutral)
	require.NoError(t, err)
	assert.True(t, conv.IsActive)
	require.Len(t, conv.Messages, 1)

	require.NoError(t, svc.DeleteUser(ctx, userID))
	p, err := store.Profile(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, p)
}
