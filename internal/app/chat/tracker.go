package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/avoskov/huddle/internal/core"
	"github.com/avoskov/huddle/internal/domain"
)

// Tracker derives unread counts from the canonical message list and a
// persisted read cursor. The cursor only advances while the chat view is
// visible.
type Tracker struct {
	store     core.CursorStore
	meetingID domain.MeetingID
	userID    domain.ParticipantID

	mu      sync.Mutex
	visible bool
	cursor  domain.SyncCursor
}

func NewTracker(store core.CursorStore, meetingID domain.MeetingID, userID domain.ParticipantID) *Tracker {
	return &Tracker{store: store, meetingID: meetingID, userID: userID}
}

// Load restores the persisted cursor. A miss is not an error; the cursor
// simply starts at zero.
func (t *Tracker) Load(ctx context.Context) error {
	cur, err := t.store.Get(ctx, t.meetingID, t.userID)
	if err != nil {
		if errors.Is(err, core.ErrCursorMiss) {
			return nil
		}
		return fmt.Errorf("%w: cursor load: %v", domain.ErrNetwork, err)
	}
	t.mu.Lock()
	t.cursor = cur
	t.mu.Unlock()
	return nil
}

// SetVisible marks whether the chat view is currently shown. MarkRead is a
// no-op while hidden.
func (t *Tracker) SetVisible(v bool) {
	t.mu.Lock()
	t.visible = v
	t.mu.Unlock()
}

// Cursor returns the current in-memory cursor.
func (t *Tracker) Cursor() domain.SyncCursor {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cursor
}

// Unread counts messages after the cursor authored by someone else.
func (t *Tracker) Unread(messages []domain.Message) int {
	t.mu.Lock()
	cur := t.cursor
	t.mu.Unlock()
	return ComputeUnread(messages, cur, t.userID)
}

// MarkRead advances the cursor to the tail message and persists it, but
// only while the view is visible. Repeated calls with the same tail are
// no-ops.
func (t *Tracker) MarkRead(ctx context.Context, messages []domain.Message) error {
	t.mu.Lock()
	if !t.visible || len(messages) == 0 {
		t.mu.Unlock()
		return nil
	}
	// A pending tail has no id yet, so the timestamp carries the
	// idempotence check until the send confirms.
	tail := messages[len(messages)-1]
	if t.cursor.MessageID == tail.ID && t.cursor.Timestamp.Equal(tail.SentAt) {
		t.mu.Unlock()
		return nil
	}
	cur := domain.SyncCursor{MessageID: tail.ID, Timestamp: tail.SentAt, PolledAt: time.Now()}
	t.cursor = cur
	t.mu.Unlock()

	if err := t.store.Set(ctx, t.meetingID, t.userID, cur); err != nil {
		log.Warn().Err(err).Str("module", "chat").Msg("cursor persist failed")
		return fmt.Errorf("%w: cursor persist: %v", domain.ErrNetwork, err)
	}
	return nil
}

// ComputeUnread counts messages after the cursor position that were
// authored by someone other than selfID. The position is located by id
// first, then by timestamp; an unlocatable cursor (history truncated past
// it) falls back to counting all non-self messages. The result is never
// negative.
func ComputeUnread(messages []domain.Message, cursor domain.SyncCursor, selfID domain.ParticipantID) int {
	countFrom := func(from int) int {
		n := 0
		for _, m := range messages[from:] {
			if m.SenderID != selfID {
				n++
			}
		}
		return n
	}

	if cursor.IsZero() {
		return countFrom(0)
	}
	if cursor.MessageID != "" {
		for i, m := range messages {
			if m.ID == cursor.MessageID {
				return countFrom(i + 1)
			}
		}
	}
	if !cursor.Timestamp.IsZero() {
		last := -1
		for i, m := range messages {
			if !m.SentAt.After(cursor.Timestamp) {
				last = i
			}
		}
		if last >= 0 {
			return countFrom(last + 1)
		}
	}
	return countFrom(0)
}
