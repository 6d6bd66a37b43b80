package cursor

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avoskov/huddle/internal/core"
	"github.com/avoskov/huddle/internal/domain"
)

func TestBoltStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cursors.db")
	store, err := NewBoltStore(path)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()

	_, err = store.Get(ctx, "m1", "u1")
	require.ErrorIs(t, err, core.ErrCursorMiss)

	want := domain.SyncCursor{
		MessageID: "msg-42",
		Timestamp: time.Now().UTC().Truncate(time.Millisecond),
		PolledAt:  time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, store.Set(ctx, "m1", "u1", want))

	got, err := store.Get(ctx, "m1", "u1")
	require.NoError(t, err)
	assert.Equal(t, want.MessageID, got.MessageID)
	assert.True(t, want.Timestamp.Equal(got.Timestamp))

	// Keys are scoped per (meeting, user).
	_, err = store.Get(ctx, "m1", "u2")
	require.ErrorIs(t, err, core.ErrCursorMiss)
	_, err = store.Get(ctx, "m2", "u1")
	require.ErrorIs(t, err, core.ErrCursorMiss)
}

func TestBoltStoreOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cursors.db")
	store, err := NewBoltStore(path)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "m1", "u1", domain.SyncCursor{MessageID: "old"}))
	require.NoError(t, store.Set(ctx, "m1", "u1", domain.SyncCursor{MessageID: "new"}))

	got, err := store.Get(ctx, "m1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "new", got.MessageID)
}

func TestBoltStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cursors.db")
	ctx := context.Background()

	store, err := NewBoltStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "m1", "u1", domain.SyncCursor{MessageID: "persisted"}))
	require.NoError(t, store.Close())

	store, err = NewBoltStore(path)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Get(ctx, "m1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "persisted", got.MessageID)
}
