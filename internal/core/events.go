package core

import (
	"time"

	"github.com/avoskov/huddle/internal/domain"
)

// EventKind enumerates the normalized domain events the bridge emits.
type EventKind int

const (
	EventStateChanged EventKind = iota
	EventParticipantJoined
	EventParticipantLeft
	EventTrackPublished
	EventTrackUnpublished
	EventDataReceived
	EventQualityChanged
	// EventResync is synthesized by the bridge on every fresh connected
	// transition. Events missed during an outage are not replayed, so
	// consumers must rebuild from the carried roster listing.
	EventResync
	// EventSyncDegraded is raised once when chat polling has failed
	// continuously past the configured threshold, and once on recovery.
	EventSyncDegraded
)

func (k EventKind) String() string {
	switch k {
	case EventStateChanged:
		return "state-changed"
	case EventParticipantJoined:
		return "participant-joined"
	case EventParticipantLeft:
		return "participant-left"
	case EventTrackPublished:
		return "track-published"
	case EventTrackUnpublished:
		return "track-unpublished"
	case EventDataReceived:
		return "data-received"
	case EventQualityChanged:
		return "quality-changed"
	case EventResync:
		return "resync"
	case EventSyncDegraded:
		return "sync-degraded"
	default:
		return "unknown"
	}
}

// RosterEntry is one participant in a full roster listing.
type RosterEntry struct {
	ID          domain.ParticipantID `json:"id"`
	DisplayName string               `json:"display_name"`
	Audio       bool                 `json:"audio"`
	Video       bool                 `json:"video"`
	ScreenShare bool                 `json:"screen_share"`
}

// Event is the single envelope for everything crossing the bridge. Only the
// fields relevant to Kind are populated.
type Event struct {
	Kind        EventKind
	At          time.Time
	State       domain.ConnectionState
	Participant domain.ParticipantID
	DisplayName string
	Source      domain.TrackSource
	TrackID     string
	Quality     domain.ConnectionQuality
	Data        []byte
	Roster      []RosterEntry
	Degraded    bool
}
