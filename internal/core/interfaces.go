package core

import (
	"context"
	"errors"
	"time"

	"github.com/avoskov/huddle/internal/domain"
)

// ErrCursorMiss is returned by CursorStore.Get when no cursor has been
// persisted yet for the key.
var ErrCursorMiss = errors.New("cursor: miss")

// Transport is the opaque remote-session event source/sink. Implementations
// own the wire; the bridge owns reconnect policy. The Events channel is
// closed by the transport when the underlying connection is lost, which is
// the bridge's cue to redial.
type Transport interface {
	Dial(ctx context.Context, meetingID domain.MeetingID, identity domain.ParticipantID, displayName string) error
	Close() error

	// Events yields normalized events in emission order. Valid after Dial;
	// closed on connection loss or Close.
	Events() <-chan Event

	// Roster lists every current session member. Used to resync after a
	// reconnect, since events during the outage are not replayed.
	Roster(ctx context.Context) ([]RosterEntry, error)

	Publish(ctx context.Context, src domain.TrackSource) error
	Unpublish(ctx context.Context, src domain.TrackSource) error
	SendData(ctx context.Context, payload []byte) error
}

// SendRequest carries one outbound chat message to the history store.
type SendRequest struct {
	MeetingID  domain.MeetingID
	SenderID   domain.ParticipantID
	SenderName string
	Body       string
	Visibility domain.Visibility
	Recipients []domain.ParticipantID
	// TempID is echoed back in history listings so the client can match
	// its optimistic entry even when a poll beats the send response.
	TempID string
}

// HistoryStore is the server-backed message store. Both operations are
// treated as slow and unreliable; callers never block rendering on them.
// History is filtered server-side by (requesterID, isHost).
type HistoryStore interface {
	History(ctx context.Context, meetingID domain.MeetingID, requesterID domain.ParticipantID, isHost bool, limit, offset int) ([]domain.Message, int, error)
	Send(ctx context.Context, req SendRequest) (id string, sentAt time.Time, err error)
}

// CursorStore persists read cursors keyed by (meetingID, userID) across
// process restarts.
type CursorStore interface {
	Get(ctx context.Context, meetingID domain.MeetingID, userID domain.ParticipantID) (domain.SyncCursor, error)
	Set(ctx context.Context, meetingID domain.MeetingID, userID domain.ParticipantID, cursor domain.SyncCursor) error
}

// ReactionStore is the external reaction counts store, independent of the
// message history store.
type ReactionStore interface {
	Add(ctx context.Context, meetingID domain.MeetingID, senderID domain.ParticipantID, emoji string) error
	Counts(ctx context.Context, meetingID domain.MeetingID) (map[string]int64, error)
}
