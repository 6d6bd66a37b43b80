package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avoskov/huddle/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "dev.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func ids(msgs []domain.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Body
	}
	return out
}

func TestHistoryVisibilityFiltering(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	save := func(sender, body, visibility string, recipients ...string) {
		t.Helper()
		_, _, err := store.SaveMessage(ctx, "m1", sender, sender, body, visibility, "", recipients)
		require.NoError(t, err)
	}
	save("alice", "public note", "public")
	save("bob", "for the host", "host")
	save("carol", "private aside", "subset", "alice", "dave")

	tests := []struct {
		name      string
		requester string
		isHost    bool
		want      []string
	}{
		{"plain member sees public only", "eve", false, []string{"public note"}},
		{"host sees host-only", "eve", true, []string{"public note", "for the host"}},
		{"recipient sees subset", "dave", false, []string{"public note", "private aside"}},
		{"sender always sees own", "carol", false, []string{"public note", "private aside"}},
		{"host message visible to its sender", "bob", false, []string{"public note", "for the host"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs, total, err := store.History(ctx, "m1", tt.requester, tt.isHost, 100, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(msgs))
			assert.Equal(t, len(tt.want), total)
		})
	}
}

func TestHistorySubsetNoPrefixMatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// "anne" must not match recipient "anne-marie".
	_, _, err := store.SaveMessage(ctx, "m1", "bob", "Bob", "hi", "subset", "", []string{"anne-marie"})
	require.NoError(t, err)

	msgs, _, err := store.History(ctx, "m1", "anne", false, 100, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	msgs, _, err = store.History(ctx, "m1", "anne-marie", false, 100, 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestHistoryScopedByMeeting(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, _, err := store.SaveMessage(ctx, "m1", "alice", "Alice", "here", "public", "", nil)
	require.NoError(t, err)

	msgs, total, err := store.History(ctx, "m2", "alice", false, 100, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Zero(t, total)
}

func TestSaveMessageEchoesTempID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, createdAt, err := store.SaveMessage(ctx, "m1", "alice", "Alice", "hello", "public", "tmp-123", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.False(t, createdAt.IsZero())

	msgs, _, err := store.History(ctx, "m1", "alice", false, 100, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, id, msgs[0].ID)
	assert.Equal(t, "tmp-123", msgs[0].TempID)
}

func TestReactionCountsAccumulate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddReaction(ctx, "m1", "👍"))
	require.NoError(t, store.AddReaction(ctx, "m1", "👍"))
	require.NoError(t, store.AddReaction(ctx, "m1", "❤️"))
	require.NoError(t, store.AddReaction(ctx, "m2", "👍"))

	counts, err := store.ReactionCounts(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts["👍"])
	assert.Equal(t, int64(1), counts["❤️"])
	assert.Len(t, counts, 2)
}

func TestCursorUpsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, _, found, err := store.GetCursor(ctx, "m1", "u1")
	require.NoError(t, err)
	assert.False(t, found)

	first := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.SetCursor(ctx, "m1", "u1", "msg-1", first))
	require.NoError(t, store.SetCursor(ctx, "m1", "u1", "msg-2", first.Add(time.Minute)))

	id, ts, found, err := store.GetCursor(ctx, "m1", "u1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "msg-2", id)
	assert.True(t, ts.Equal(first.Add(time.Minute)))
}
