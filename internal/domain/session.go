// Package domain contains entities without logic, just meta-data.
package domain

type MeetingID string

// ConnectionState is the lifecycle of one remote session.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateFailed
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Session describes one connected instance of the real-time channel for a
// meeting. Exactly one per meeting at a time.
type Session struct {
	MeetingID          MeetingID
	State              ConnectionState
	LocalParticipantID ParticipantID
}
