package domain

import "time"

// TrackSource is the kind of media a track carries.
type TrackSource int

const (
	SourceUnknown TrackSource = iota
	SourceMicrophone
	SourceCamera
	SourceScreenShare
)

func (s TrackSource) String() string {
	switch s {
	case SourceMicrophone:
		return "microphone"
	case SourceCamera:
		return "camera"
	case SourceScreenShare:
		return "screen-share"
	default:
		return "unknown"
	}
}

// ParseTrackSource maps a wire name back to a TrackSource.
func ParseTrackSource(s string) TrackSource {
	switch s {
	case "microphone":
		return SourceMicrophone
	case "camera":
		return SourceCamera
	case "screen-share":
		return SourceScreenShare
	default:
		return SourceUnknown
	}
}

// TrackBinding associates a published media track with its owner.
// At most one active screen-share binding exists system-wide.
type TrackBinding struct {
	Participant ParticipantID
	Source      TrackSource
	TrackID     string
	PublishedAt time.Time
}
