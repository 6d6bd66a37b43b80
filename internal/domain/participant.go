package domain

import "errors"

const MaxDisplayNameLen = 64

var (
	ErrNameEmpty   = errors.New("display name empty")
	ErrNameTooLong = errors.New("display name too long")
)

type ParticipantID string

// ConnectionQuality is the transport's estimate for one participant.
type ConnectionQuality int

const (
	QualityUnknown ConnectionQuality = iota
	QualityPoor
	QualityGood
	QualityExcellent
)

func (q ConnectionQuality) String() string {
	switch q {
	case QualityPoor:
		return "poor"
	case QualityGood:
		return "good"
	case QualityExcellent:
		return "excellent"
	default:
		return "unknown"
	}
}

// Participant is a session member, local or remote. One record per id.
type Participant struct {
	ID              ParticipantID `json:"id"`
	DisplayName     string        `json:"display_name"`
	AudioEnabled    bool          `json:"audio_enabled"`
	VideoEnabled    bool          `json:"video_enabled"`
	IsScreenSharing bool          `json:"is_screen_sharing"`
	Quality         ConnectionQuality
	IsLocal         bool `json:"is_local"`
}

// NewParticipant keeps construction obvious and avoids ad-hoc struct
// literals in adapters. New members start with all media off.
func NewParticipant(id ParticipantID, displayName string, local bool) (*Participant, error) {
	if len(displayName) == 0 {
		return nil, ErrNameEmpty
	}
	if len(displayName) > MaxDisplayNameLen {
		return nil, ErrNameTooLong
	}
	return &Participant{ID: id, DisplayName: displayName, IsLocal: local}, nil
}
