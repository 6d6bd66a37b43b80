package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/avoskov/huddle/internal/core"
	"github.com/avoskov/huddle/internal/domain"
)

func (t *Transport) writePump(ctx context.Context, conn *websocket.Conn, send <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-send:
			if err := conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "adapters.ws").Msg("writePump set deadline")
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "adapters.ws").Msg("writePump write error")
				return
			}
		}
	}
}

// readPump translates wire envelopes into core events. Closing the events
// channel on read failure is the contract that tells the bridge to redial.
func (t *Transport) readPump(ctx context.Context, conn *websocket.Conn, events chan<- core.Event) {
	defer func() {
		log.Info().Str("module", "adapters.ws").Msg("readPump closing")
		close(events)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.mu.RLock()
			closed := t.closed
			t.mu.RUnlock()
			if !closed {
				log.Warn().Err(err).Str("module", "adapters.ws").Msg("connection lost")
			}
			return
		}
		t.handle(ctx, data, events)
	}
}

func (t *Transport) handle(ctx context.Context, data []byte, events chan<- core.Event) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "adapters.ws").Msg("bad envelope")
		return
	}

	now := time.Now()
	switch env.Type {
	case "joined":
		t.emit(ctx, events, core.Event{
			Kind:        core.EventParticipantJoined,
			Participant: domain.ParticipantID(env.Participant),
			DisplayName: env.Name,
			At:          now,
		})
	case "left":
		t.emit(ctx, events, core.Event{
			Kind:        core.EventParticipantLeft,
			Participant: domain.ParticipantID(env.Participant),
			At:          now,
		})
	case "track-published":
		t.emit(ctx, events, core.Event{
			Kind:        core.EventTrackPublished,
			Participant: domain.ParticipantID(env.Participant),
			Source:      domain.ParseTrackSource(env.Source),
			TrackID:     env.TrackID,
			At:          now,
		})
	case "track-unpublished":
		t.emit(ctx, events, core.Event{
			Kind:        core.EventTrackUnpublished,
			Participant: domain.ParticipantID(env.Participant),
			Source:      domain.ParseTrackSource(env.Source),
			TrackID:     env.TrackID,
			At:          now,
		})
	case "data":
		t.emit(ctx, events, core.Event{
			Kind:        core.EventDataReceived,
			Participant: domain.ParticipantID(env.Participant),
			Data:        env.Payload,
			At:          now,
		})
	case "quality":
		t.emit(ctx, events, core.Event{
			Kind:        core.EventQualityChanged,
			Participant: domain.ParticipantID(env.Participant),
			Quality:     parseQuality(env.Quality),
			At:          now,
		})
	case "roster":
		t.mu.RLock()
		rosterCh := t.rosterCh
		t.mu.RUnlock()
		if rosterCh != nil {
			select {
			case rosterCh <- env.Members:
			default:
			}
		}
	case "answer":
		t.mu.RLock()
		media := t.media
		t.mu.RUnlock()
		if media != nil {
			if err := media.ApplyAnswer(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: env.SDP}); err != nil {
				log.Warn().Err(err).Str("module", "adapters.ws").Msg("apply answer")
			}
		}
	case "candidate":
		t.mu.RLock()
		media := t.media
		t.mu.RUnlock()
		if media != nil {
			if err := media.AddICECandidate(webrtc.ICECandidateInit{Candidate: env.Candidate}); err != nil {
				log.Warn().Err(err).Str("module", "adapters.ws").Msg("add ice candidate")
			}
		}
	default:
		log.Warn().Str("module", "adapters.ws").Str("type", env.Type).Msg("unknown envelope")
	}
}

// emit delivers to the consumer, applying backpressure to the read loop
// when the buffer is full. Events are never dropped while the run is live;
// a canceled run abandons delivery.
func (t *Transport) emit(ctx context.Context, events chan<- core.Event, ev core.Event) {
	select {
	case events <- ev:
	case <-ctx.Done():
		log.Debug().Str("module", "adapters.ws").Str("kind", ev.Kind.String()).Msg("run canceled, event abandoned")
	}
}

func parseQuality(s string) domain.ConnectionQuality {
	switch s {
	case "poor":
		return domain.QualityPoor
	case "good":
		return domain.QualityGood
	case "excellent":
		return domain.QualityExcellent
	default:
		return domain.QualityUnknown
	}
}
