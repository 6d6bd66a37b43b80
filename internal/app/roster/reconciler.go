// Package roster maintains the canonical participant/track map from bridge
// events and exposes it as read-only snapshots.
package roster

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/avoskov/huddle/internal/core"
	"github.com/avoskov/huddle/internal/domain"
)

// pendingTrack holds a track event whose participant has not been seen yet.
// It survives one further reconciliation pass before being dropped, which
// absorbs joined/published ordering races on the wire.
type pendingTrack struct {
	ev  core.Event
	age int
}

// Reconciler owns the participant map exclusively. All mutation goes
// through Apply and the optimistic local setters; readers get value copies.
type Reconciler struct {
	mu           sync.RWMutex
	localID      domain.ParticipantID
	byID         map[domain.ParticipantID]*domain.Participant
	tracks       map[string]domain.TrackBinding
	screenHolder domain.ParticipantID
	pending      []pendingTrack
}

func New(localID domain.ParticipantID, displayName string) *Reconciler {
	r := &Reconciler{
		localID: localID,
		byID:    make(map[domain.ParticipantID]*domain.Participant),
		tracks:  make(map[string]domain.TrackBinding),
	}
	r.byID[localID] = &domain.Participant{ID: localID, DisplayName: displayName, IsLocal: true}
	return r
}

// Apply folds one bridge event into the canonical state.
func (r *Reconciler) Apply(ev core.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.Kind {
	case core.EventResync:
		r.rebuild(ev.Roster)
	case core.EventParticipantJoined:
		r.join(ev)
	case core.EventParticipantLeft:
		r.leave(ev.Participant)
	case core.EventTrackPublished, core.EventTrackUnpublished:
		if _, ok := r.byID[ev.Participant]; !ok {
			r.pending = append(r.pending, pendingTrack{ev: ev})
			log.Debug().Str("module", "roster").Str("participant", string(ev.Participant)).Msg("track event buffered for unknown participant")
		} else {
			r.applyTrack(ev)
		}
	case core.EventQualityChanged:
		if p, ok := r.byID[ev.Participant]; ok {
			p.Quality = ev.Quality
		}
	}

	r.sweepPending()
}

// rebuild replaces the whole map from a full roster listing. Called on every
// fresh connected transition since events during an outage are not replayed.
func (r *Reconciler) rebuild(roster []core.RosterEntry) {
	local := r.byID[r.localID]
	r.byID = make(map[domain.ParticipantID]*domain.Participant, len(roster)+1)
	r.tracks = make(map[string]domain.TrackBinding)
	r.screenHolder = ""
	r.pending = nil

	for _, e := range roster {
		p := &domain.Participant{
			ID:           e.ID,
			DisplayName:  e.DisplayName,
			AudioEnabled: e.Audio,
			VideoEnabled: e.Video,
			IsLocal:      e.ID == r.localID,
		}
		if e.ScreenShare && r.screenHolder == "" {
			p.IsScreenSharing = true
			r.screenHolder = e.ID
		}
		r.byID[e.ID] = p
	}
	if _, ok := r.byID[r.localID]; !ok && local != nil {
		r.byID[r.localID] = local
	}
	log.Info().Str("module", "roster").Int("participants", len(r.byID)).Msg("rebuilt from roster")
}

func (r *Reconciler) join(ev core.Event) {
	if _, ok := r.byID[ev.Participant]; ok {
		return // duplicate joined events are no-ops
	}
	r.byID[ev.Participant] = &domain.Participant{
		ID:          ev.Participant,
		DisplayName: ev.DisplayName,
		IsLocal:     ev.Participant == r.localID,
	}
	log.Info().Str("module", "roster").Str("participant", string(ev.Participant)).Msg("participant joined")
}

func (r *Reconciler) leave(id domain.ParticipantID) {
	if _, ok := r.byID[id]; !ok {
		return // leave events for unknown ids are ignored
	}
	delete(r.byID, id)
	for key, tb := range r.tracks {
		if tb.Participant == id {
			delete(r.tracks, key)
		}
	}
	if r.screenHolder == id {
		r.screenHolder = ""
	}
	log.Info().Str("module", "roster").Str("participant", string(id)).Msg("participant left")
}

func (r *Reconciler) applyTrack(ev core.Event) {
	p := r.byID[ev.Participant]
	published := ev.Kind == core.EventTrackPublished

	switch ev.Source {
	case domain.SourceMicrophone:
		p.AudioEnabled = published
	case domain.SourceCamera:
		p.VideoEnabled = published
	case domain.SourceScreenShare:
		if published {
			// Whoever shares last wins: the transport cannot decline a
			// publish, so the previous claim goes stale deterministically.
			if r.screenHolder != "" && r.screenHolder != ev.Participant {
				if prev, ok := r.byID[r.screenHolder]; ok {
					prev.IsScreenSharing = false
				}
				r.dropBinding(r.screenHolder, domain.SourceScreenShare)
				log.Info().Str("module", "roster").Str("previous", string(r.screenHolder)).Str("new", string(ev.Participant)).Msg("screen share claim replaced")
			}
			r.screenHolder = ev.Participant
			p.IsScreenSharing = true
		} else {
			if r.screenHolder == ev.Participant {
				r.screenHolder = ""
			}
			p.IsScreenSharing = false
		}
	default:
		return
	}

	key := trackKey(ev)
	if published {
		r.tracks[key] = domain.TrackBinding{
			Participant: ev.Participant,
			Source:      ev.Source,
			TrackID:     ev.TrackID,
			PublishedAt: ev.At,
		}
	} else {
		delete(r.tracks, key)
	}
}

func (r *Reconciler) dropBinding(id domain.ParticipantID, src domain.TrackSource) {
	for key, tb := range r.tracks {
		if tb.Participant == id && tb.Source == src {
			delete(r.tracks, key)
		}
	}
}

// sweepPending retries buffered track events and drops those whose
// participant still has not appeared after one extra pass.
func (r *Reconciler) sweepPending() {
	if len(r.pending) == 0 {
		return
	}
	keep := r.pending[:0]
	for _, pt := range r.pending {
		if _, ok := r.byID[pt.ev.Participant]; ok {
			r.applyTrack(pt.ev)
			continue
		}
		if pt.age >= 1 {
			log.Debug().Str("module", "roster").Str("participant", string(pt.ev.Participant)).Msg("buffered track event dropped")
			continue
		}
		pt.age++
		keep = append(keep, pt)
	}
	r.pending = keep
}

func trackKey(ev core.Event) string {
	if ev.TrackID != "" {
		return ev.TrackID
	}
	return string(ev.Participant) + "/" + ev.Source.String()
}

// SetLocalAudio applies a self mute/unmute optimistically, before any
// confirming event. The confirming event sets the same value, so there is
// no double toggle.
func (r *Reconciler) SetLocalAudio(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byID[r.localID]; ok {
		p.AudioEnabled = enabled
	}
}

func (r *Reconciler) SetLocalVideo(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byID[r.localID]; ok {
		p.VideoEnabled = enabled
	}
}

// Snapshot returns a value copy of the current state, computed
// synchronously from the latest applied events.
func (r *Reconciler) Snapshot() core.RosterSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := core.RosterSnapshot{Participants: make([]domain.Participant, 0, len(r.byID))}
	for _, p := range r.byID {
		snap.Participants = append(snap.Participants, *p)
		if p.IsLocal {
			local := *p
			snap.Local = &local
		}
	}
	sort.Slice(snap.Participants, func(i, j int) bool {
		return snap.Participants[i].ID < snap.Participants[j].ID
	})
	return snap
}

// TrackBindings returns a copy of the active track associations.
func (r *Reconciler) TrackBindings() []domain.TrackBinding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.TrackBinding, 0, len(r.tracks))
	for _, tb := range r.tracks {
		out = append(out, tb)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TrackID < out[j].TrackID })
	return out
}
