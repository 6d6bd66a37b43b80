// Package app wires the bridge, roster, chat and reaction components into
// one per-meeting engine with an explicit lifecycle.
package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/avoskov/huddle/internal/app/bridge"
	"github.com/avoskov/huddle/internal/app/chat"
	"github.com/avoskov/huddle/internal/app/react"
	"github.com/avoskov/huddle/internal/app/roster"
	"github.com/avoskov/huddle/internal/config"
	"github.com/avoskov/huddle/internal/core"
	"github.com/avoskov/huddle/internal/domain"
)

// Deps are the external collaborators one engine talks to. Each engine
// needs its own Transport instance; the stores may be shared.
type Deps struct {
	Transport core.Transport
	History   core.HistoryStore
	Cursors   core.CursorStore
	Reactions core.ReactionStore
}

// Engine is the reconciliation engine for one meeting. No ambient
// singletons: it is instantiated per session and torn down explicitly.
type Engine struct {
	cfg  *config.Config
	deps Deps

	mu        sync.Mutex
	joined    bool
	meetingID domain.MeetingID
	selfID    domain.ParticipantID

	bus    *bridge.Bus
	bridge *bridge.Bridge
	roster *roster.Reconciler
	chat   *chat.Synchronizer
	unread *chat.Tracker
	react  *react.Broadcaster
	unsubs []func()
}

func NewEngine(cfg *config.Config, deps Deps) *Engine {
	return &Engine{cfg: cfg, deps: deps}
}

// Join connects to a meeting. A prior session, even for the same meeting
// id, is fully torn down first; the caller never has to sequence that.
func (e *Engine) Join(ctx context.Context, meetingID domain.MeetingID, identity domain.ParticipantID, displayName string, isHost bool) error {
	e.Leave()

	bus := bridge.NewBus()
	br := bridge.New(bus, e.deps.Transport, e.cfg)
	ros := roster.New(identity, displayName)
	sync := chat.NewSynchronizer(e.deps.History, e.cfg, bus, meetingID, identity, displayName, isHost)
	trk := chat.NewTracker(e.deps.Cursors, meetingID, identity)
	rb := react.NewBroadcaster(br, e.deps.Reactions, meetingID, identity, e.cfg.ReactionDuration)

	var unsubs []func()
	for _, kind := range []core.EventKind{
		core.EventParticipantJoined,
		core.EventParticipantLeft,
		core.EventTrackPublished,
		core.EventTrackUnpublished,
		core.EventQualityChanged,
		core.EventResync,
	} {
		unsubs = append(unsubs, bus.On(kind, ros.Apply))
	}
	unsubs = append(unsubs, bus.On(core.EventDataReceived, func(ev core.Event) {
		e.dispatchData(ev, sync, rb)
	}))

	if err := br.Connect(ctx, meetingID, identity, displayName); err != nil {
		for _, off := range unsubs {
			off()
		}
		return err
	}
	if err := trk.Load(ctx); err != nil {
		// Unread counting degrades to "everything unread"; not fatal.
		log.Warn().Err(err).Str("module", "app").Msg("cursor load failed")
	}
	if err := sync.Initialize(ctx); err != nil {
		br.Disconnect()
		for _, off := range unsubs {
			off()
		}
		return err
	}

	e.mu.Lock()
	e.joined = true
	e.meetingID = meetingID
	e.selfID = identity
	e.bus = bus
	e.bridge = br
	e.roster = ros
	e.chat = sync
	e.unread = trk
	e.react = rb
	e.unsubs = unsubs
	e.mu.Unlock()

	log.Info().Str("module", "app").Str("meeting", string(meetingID)).Str("identity", string(identity)).Msg("joined")
	return nil
}

// Leave tears the session down: reconnect timers, the poll loop and
// reaction timers are all canceled. Idempotent.
func (e *Engine) Leave() {
	e.mu.Lock()
	if !e.joined {
		e.mu.Unlock()
		return
	}
	br, sync, rb := e.bridge, e.chat, e.react
	unsubs := e.unsubs
	meetingID := e.meetingID
	e.joined = false
	e.bus = nil
	e.bridge = nil
	e.roster = nil
	e.chat = nil
	e.unread = nil
	e.react = nil
	e.unsubs = nil
	e.mu.Unlock()

	for _, off := range unsubs {
		off()
	}
	br.Disconnect()
	sync.Close()
	rb.Close()
	log.Info().Str("module", "app").Str("meeting", string(meetingID)).Msg("left")
}

// dispatchData routes incoming data-channel payloads: chat nudges
// short-circuit the poll interval, reaction payloads go to the broadcaster.
func (e *Engine) dispatchData(ev core.Event, sync *chat.Synchronizer, rb *react.Broadcaster) {
	p, err := core.DecodeDataPayload(ev.Data)
	if err != nil {
		log.Debug().Err(err).Str("module", "app").Msg("unparseable data payload")
		return
	}
	switch p.Kind {
	case core.DataKindChat:
		// The refresh hits the history store; it must not hold up the event
		// pump behind a slow fetch. The synchronizer's single-flight guard
		// coalesces a burst of nudges into one pass.
		go sync.ForceRefresh(context.Background())
	case core.DataKindReaction:
		rb.HandleData(ev)
	}
}

// On registers a UI-level handler on the current session's event bus.
func (e *Engine) On(kind core.EventKind, fn bridge.Handler) func() {
	e.mu.Lock()
	bus := e.bus
	e.mu.Unlock()
	if bus == nil {
		return func() {}
	}
	return bus.On(kind, fn)
}

func (e *Engine) State() domain.ConnectionState {
	e.mu.Lock()
	br := e.bridge
	e.mu.Unlock()
	if br == nil {
		return domain.StateDisconnected
	}
	return br.State()
}

// Session describes the current session, if any.
func (e *Engine) Session() (domain.Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.joined {
		return domain.Session{}, false
	}
	return domain.Session{
		MeetingID:          e.meetingID,
		State:              e.bridge.State(),
		LocalParticipantID: e.selfID,
	}, true
}

// Snapshot returns the current canonical participant view.
func (e *Engine) Snapshot() core.RosterSnapshot {
	e.mu.Lock()
	ros := e.roster
	e.mu.Unlock()
	if ros == nil {
		return core.RosterSnapshot{}
	}
	return ros.Snapshot()
}

// Messages returns the canonical merged message list.
func (e *Engine) Messages() []domain.Message {
	e.mu.Lock()
	sync := e.chat
	e.mu.Unlock()
	if sync == nil {
		return nil
	}
	return sync.Messages()
}

// Send posts a chat message with an optimistic local echo.
func (e *Engine) Send(ctx context.Context, body string, visibility domain.Visibility, recipients []domain.ParticipantID) (string, error) {
	e.mu.Lock()
	sync := e.chat
	e.mu.Unlock()
	if sync == nil {
		return body, domain.ErrNotReady
	}
	return sync.Send(ctx, body, visibility, recipients)
}

// Unread counts messages past the read cursor authored by others.
func (e *Engine) Unread() int {
	e.mu.Lock()
	sync, trk := e.chat, e.unread
	e.mu.Unlock()
	if sync == nil || trk == nil {
		return 0
	}
	return trk.Unread(sync.Messages())
}

// MarkRead advances the read cursor to the current tail while the chat
// view is visible.
func (e *Engine) MarkRead(ctx context.Context) error {
	e.mu.Lock()
	sync, trk := e.chat, e.unread
	e.mu.Unlock()
	if sync == nil || trk == nil {
		return nil
	}
	return trk.MarkRead(ctx, sync.Messages())
}

func (e *Engine) SetChatVisible(v bool) {
	e.mu.Lock()
	trk := e.unread
	e.mu.Unlock()
	if trk != nil {
		trk.SetVisible(v)
	}
}

// SetMicrophone toggles the local audio track, optimistically flipping the
// snapshot flag before the transport confirms. A confirming event applies
// the same value, so there is no double toggle.
func (e *Engine) SetMicrophone(ctx context.Context, enabled bool) error {
	return e.setLocalTrack(ctx, domain.SourceMicrophone, enabled)
}

func (e *Engine) SetCamera(ctx context.Context, enabled bool) error {
	return e.setLocalTrack(ctx, domain.SourceCamera, enabled)
}

// StartScreenShare publishes the local screen track. If another
// participant holds the claim, the transport announces the replacement and
// the reconciler flips their flag: last publisher wins.
func (e *Engine) StartScreenShare(ctx context.Context) error {
	return e.setLocalTrack(ctx, domain.SourceScreenShare, true)
}

func (e *Engine) StopScreenShare(ctx context.Context) error {
	return e.setLocalTrack(ctx, domain.SourceScreenShare, false)
}

func (e *Engine) setLocalTrack(ctx context.Context, src domain.TrackSource, enabled bool) error {
	e.mu.Lock()
	br, ros := e.bridge, e.roster
	e.mu.Unlock()
	if br == nil || ros == nil {
		return domain.ErrNotReady
	}

	switch src {
	case domain.SourceMicrophone:
		ros.SetLocalAudio(enabled)
	case domain.SourceCamera:
		ros.SetLocalVideo(enabled)
	}

	var err error
	if enabled {
		err = br.PublishTrack(ctx, src)
	} else {
		err = br.UnpublishTrack(ctx, src)
	}
	if err != nil {
		// Roll the optimistic flag back so the snapshot stays truthful.
		switch src {
		case domain.SourceMicrophone:
			ros.SetLocalAudio(!enabled)
		case domain.SourceCamera:
			ros.SetLocalVideo(!enabled)
		}
		return err
	}
	return nil
}

// SendReaction broadcasts an ephemeral emoji signal.
func (e *Engine) SendReaction(ctx context.Context, emoji string) error {
	e.mu.Lock()
	rb := e.react
	e.mu.Unlock()
	if rb == nil {
		return domain.ErrNotReady
	}
	return rb.Send(ctx, emoji)
}

// Reactions returns the currently visible reaction signals.
func (e *Engine) Reactions() []domain.ReactionSignal {
	e.mu.Lock()
	rb := e.react
	e.mu.Unlock()
	if rb == nil {
		return nil
	}
	return rb.Active()
}

// ForceRefresh triggers an out-of-cycle chat reconciliation pass.
func (e *Engine) ForceRefresh(ctx context.Context) {
	e.mu.Lock()
	sync := e.chat
	e.mu.Unlock()
	if sync != nil {
		sync.ForceRefresh(ctx)
	}
}
