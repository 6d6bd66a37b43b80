package core

import (
	"encoding/json"
	"time"

	"github.com/avoskov/huddle/internal/domain"
)

// Data-channel payload kinds carried inside EventDataReceived.
const (
	DataKindChat     = "chat"
	DataKindReaction = "reaction"
)

// DataPayload is the small JSON envelope exchanged over the session data
// channel. Chat payloads are pure nudges (the poll remains the source of
// truth); reaction payloads carry the signal itself.
type DataPayload struct {
	Kind   string               `json:"kind"`
	Emoji  string               `json:"emoji,omitempty"`
	Sender domain.ParticipantID `json:"sender,omitempty"`
	SentAt time.Time            `json:"sent_at"`
}

func EncodeDataPayload(p DataPayload) ([]byte, error) {
	return json.Marshal(p)
}

func DecodeDataPayload(b []byte) (DataPayload, error) {
	var p DataPayload
	err := json.Unmarshal(b, &p)
	return p, err
}
