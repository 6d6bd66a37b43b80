package core

import "github.com/avoskov/huddle/internal/domain"

// RosterSnapshot is a read-only value copy of the canonical participant
// state. Safe to hand to UI code; mutating it has no effect on the engine.
type RosterSnapshot struct {
	Participants []domain.Participant
	Local        *domain.Participant
}

// Find returns the participant with the given id, if present.
func (s RosterSnapshot) Find(id domain.ParticipantID) (domain.Participant, bool) {
	for _, p := range s.Participants {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Participant{}, false
}
