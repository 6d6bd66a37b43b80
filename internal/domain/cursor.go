package domain

import "time"

// SyncCursor marks the last message a user has seen in a meeting. Persisted
// externally keyed by (meetingID, userID) so it survives reload.
type SyncCursor struct {
	MessageID string    `json:"message_id"`
	Timestamp time.Time `json:"timestamp"`
	PolledAt  time.Time `json:"polled_at"`
}

// IsZero reports whether the cursor has never been advanced.
func (c SyncCursor) IsZero() bool {
	return c.MessageID == "" && c.Timestamp.IsZero()
}
