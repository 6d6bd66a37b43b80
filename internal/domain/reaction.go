package domain

import "time"

// ReactionSignal is an ephemeral emoji broadcast. Not persisted; a newer
// signal from the same sender overwrites the previous one.
type ReactionSignal struct {
	Emoji           string        `json:"emoji"`
	SenderID        ParticipantID `json:"sender_id"`
	SentAt          time.Time     `json:"sent_at"`
	DisplayDuration time.Duration `json:"-"`
}

// ExpiresAt is when the signal should stop being shown.
func (r ReactionSignal) ExpiresAt() time.Time {
	return r.SentAt.Add(r.DisplayDuration)
}
