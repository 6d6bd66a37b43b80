// Package ws implements the session transport over a websocket signaling
// channel, with media published through a pion peer connection.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/avoskov/huddle/internal/adapters/rtc"
	"github.com/avoskov/huddle/internal/core"
	"github.com/avoskov/huddle/internal/domain"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrNotConnected = errors.New("transport not connected")
)

// envelope is the wire frame. Only the fields relevant to Type are set.
type envelope struct {
	Type        string             `json:"type"`
	Meeting     string             `json:"meeting,omitempty"`
	Participant string             `json:"participant,omitempty"`
	Name        string             `json:"name,omitempty"`
	Source      string             `json:"source,omitempty"`
	TrackID     string             `json:"track_id,omitempty"`
	Quality     string             `json:"quality,omitempty"`
	Payload     json.RawMessage    `json:"payload,omitempty"`
	Members     []core.RosterEntry `json:"members,omitempty"`
	SDP         string             `json:"sdp,omitempty"`
	Candidate   string             `json:"candidate,omitempty"`
}

// Transport satisfies core.Transport. Dial may be called again after the
// events channel closes; the bridge owns that redial policy.
type Transport struct {
	url    string
	rtcCfg webrtc.Configuration

	mu       sync.RWMutex
	conn     *websocket.Conn
	send     chan []byte
	events   chan core.Event
	rosterCh chan []core.RosterEntry
	media    *rtc.MediaConnection
	cancel   context.CancelFunc
	closed   bool
}

var _ core.Transport = (*Transport)(nil)

func New(url string) *Transport {
	return &Transport{url: url, rtcCfg: rtc.DefaultConfig()}
}

// NewWithMediaConfig overrides the ICE configuration, for restricted
// networks where the default STUN servers are unreachable.
func NewWithMediaConfig(url string, cfg webrtc.Configuration) *Transport {
	return &Transport{url: url, rtcCfg: cfg}
}

func (t *Transport) Dial(ctx context.Context, meetingID domain.MeetingID, identity domain.ParticipantID, displayName string) error {
	// A redial must not strand the previous run: its pumps and peer
	// connection keep running until their context is canceled.
	t.release()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, t.url, nil)
	if err != nil {
		return fmt.Errorf("ws dial: %w", err)
	}

	join, err := json.Marshal(envelope{
		Type:        "join",
		Meeting:     string(meetingID),
		Participant: string(identity),
		Name:        displayName,
	})
	if err != nil {
		_ = conn.Close()
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, join); err != nil {
		_ = conn.Close()
		return fmt.Errorf("ws join: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())

	t.mu.Lock()
	t.conn = conn
	t.send = make(chan []byte, 32)
	t.events = make(chan core.Event, 64)
	t.rosterCh = make(chan []core.RosterEntry, 1)
	t.cancel = cancel
	t.closed = false
	t.mu.Unlock()

	go t.writePump(runCtx, conn, t.send)
	go t.readPump(runCtx, conn, t.events)
	// Media setup includes ICE gathering and must not hold up the dial.
	go t.startMedia(runCtx, identity)

	log.Info().Str("module", "adapters.ws").Str("meeting", string(meetingID)).Str("identity", string(identity)).Msg("dialed")
	return nil
}

// startMedia brings up the peer connection and kicks off the offer
// exchange. Media failure is not fatal to the session: events and data
// still flow over the websocket.
func (t *Transport) startMedia(ctx context.Context, identity domain.ParticipantID) {
	mc, err := rtc.NewMediaConnection(t.rtcCfg, identity)
	if err != nil {
		log.Warn().Err(err).Str("module", "adapters.ws").Msg("media connection unavailable")
		return
	}
	mc.OnICECandidate(func(ci webrtc.ICECandidateInit) {
		t.enqueueEnvelope(envelope{Type: "candidate", Candidate: ci.Candidate})
	})
	if err := mc.Start(ctx); err != nil {
		log.Warn().Err(err).Str("module", "adapters.ws").Msg("media start failed")
		mc.Close()
		return
	}
	offer, err := mc.CreateAndSetOffer()
	if err != nil {
		log.Warn().Err(err).Str("module", "adapters.ws").Msg("media offer failed")
		mc.Close()
		return
	}
	t.mu.Lock()
	t.media = mc
	t.mu.Unlock()
	select {
	case <-ctx.Done():
		// The run was released while media was coming up.
		t.mu.Lock()
		if t.media == mc {
			t.media = nil
		}
		t.mu.Unlock()
		mc.Close()
		return
	default:
	}
	t.enqueueEnvelope(envelope{Type: "offer", SDP: offer.SDP})
}

func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	t.release()
	return nil
}

// release stops the current run: pumps, peer connection and socket. The
// context is canceled before the media handle is captured, so a media
// connection still coming up either lands here or shuts itself down on the
// canceled context.
func (t *Transport) release() {
	t.mu.Lock()
	cancel := t.cancel
	t.cancel = nil
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	t.mu.Lock()
	conn := t.conn
	media := t.media
	t.conn = nil
	t.media = nil
	t.mu.Unlock()

	if media != nil {
		media.Close()
	}
	if conn != nil {
		_ = conn.Close()
	}
}

func (t *Transport) Events() <-chan core.Event {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.events
}

// Roster requests a full member listing and waits for the reply.
func (t *Transport) Roster(ctx context.Context) ([]core.RosterEntry, error) {
	t.mu.RLock()
	rosterCh := t.rosterCh
	t.mu.RUnlock()
	if rosterCh == nil {
		return nil, ErrNotConnected
	}

	if err := t.enqueueEnvelope(envelope{Type: "roster"}); err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case members := <-rosterCh:
		return members, nil
	}
}

func (t *Transport) Publish(ctx context.Context, src domain.TrackSource) error {
	trackID := ""
	t.mu.RLock()
	media := t.media
	t.mu.RUnlock()
	if media != nil {
		id, err := media.PublishLocal(src)
		if err != nil {
			return fmt.Errorf("publish %s: %w", src, err)
		}
		trackID = id
	}
	return t.enqueueEnvelope(envelope{Type: "publish", Source: src.String(), TrackID: trackID})
}

func (t *Transport) Unpublish(ctx context.Context, src domain.TrackSource) error {
	t.mu.RLock()
	media := t.media
	t.mu.RUnlock()
	if media != nil {
		if err := media.UnpublishLocal(src); err != nil {
			log.Warn().Err(err).Str("module", "adapters.ws").Str("source", src.String()).Msg("local track removal")
		}
	}
	return t.enqueueEnvelope(envelope{Type: "unpublish", Source: src.String()})
}

func (t *Transport) SendData(ctx context.Context, payload []byte) error {
	return t.enqueueEnvelope(envelope{Type: "data", Payload: payload})
}

func (t *Transport) enqueueEnvelope(env envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed || t.send == nil {
		return ErrNotConnected
	}
	select {
	case t.send <- b:
		return nil
	default:
		return ErrBackpressure
	}
}
