// Package bridge normalizes the remote session's raw event stream into
// typed domain events and owns the reconnect state machine.
package bridge

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/avoskov/huddle/internal/config"
	"github.com/avoskov/huddle/internal/core"
	"github.com/avoskov/huddle/internal/domain"
)

// Bridge drives one Transport for one session. It emits exactly one bus
// event per underlying occurrence and does not deduplicate across
// reconnects; every fresh connected transition is announced with an
// EventResync carrying a full roster listing.
type Bridge struct {
	bus *Bus
	tr  core.Transport
	cfg *config.Config

	mu          sync.Mutex
	state       domain.ConnectionState
	meetingID   domain.MeetingID
	identity    domain.ParticipantID
	displayName string
	cancel      context.CancelFunc
	done        chan struct{}
}

func New(bus *Bus, tr core.Transport, cfg *config.Config) *Bridge {
	return &Bridge{bus: bus, tr: tr, cfg: cfg, state: domain.StateDisconnected}
}

func (b *Bridge) State() domain.ConnectionState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Connect dials the transport and starts the event pump. Transport or auth
// failures are reported as domain.ErrConnection; the bridge returns to
// disconnected so a later attempt can proceed.
func (b *Bridge) Connect(ctx context.Context, meetingID domain.MeetingID, identity domain.ParticipantID, displayName string) error {
	b.mu.Lock()
	if b.state != domain.StateDisconnected && b.state != domain.StateFailed {
		active := b.meetingID
		b.mu.Unlock()
		return fmt.Errorf("%w: session already active for %q", domain.ErrConnection, active)
	}
	b.meetingID = meetingID
	b.identity = identity
	b.displayName = displayName
	runCtx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.mu.Unlock()

	b.setState(domain.StateConnecting)
	if err := b.tr.Dial(ctx, meetingID, identity, displayName); err != nil {
		cancel()
		b.setState(domain.StateDisconnected)
		return fmt.Errorf("%w: dial: %v", domain.ErrConnection, err)
	}
	b.setState(domain.StateConnected)
	b.resync(ctx)

	done := make(chan struct{})
	b.mu.Lock()
	b.done = done
	b.mu.Unlock()
	go b.pump(runCtx, done)
	return nil
}

// Disconnect tears the session down. Always succeeds and is idempotent; it
// cancels any pending reconnect timers and waits for the pump to exit.
func (b *Bridge) Disconnect() {
	b.mu.Lock()
	if b.state == domain.StateDisconnected {
		b.mu.Unlock()
		return
	}
	cancel := b.cancel
	done := b.done
	b.cancel = nil
	b.done = nil
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if err := b.tr.Close(); err != nil {
		log.Warn().Err(err).Str("module", "bridge").Msg("transport close")
	}
	if done != nil {
		<-done
	}
	b.setState(domain.StateDisconnected)
}

// PublishTrack asks the transport to publish a local media track. Rejected
// with domain.ErrNotReady unless the session is connected.
func (b *Bridge) PublishTrack(ctx context.Context, src domain.TrackSource) error {
	if err := b.ready(); err != nil {
		return err
	}
	return b.tr.Publish(ctx, src)
}

func (b *Bridge) UnpublishTrack(ctx context.Context, src domain.TrackSource) error {
	if err := b.ready(); err != nil {
		return err
	}
	return b.tr.Unpublish(ctx, src)
}

// SendData broadcasts an ephemeral payload over the session's data channel.
func (b *Bridge) SendData(ctx context.Context, payload []byte) error {
	if err := b.ready(); err != nil {
		return err
	}
	return b.tr.SendData(ctx, payload)
}

func (b *Bridge) ready() error {
	if s := b.State(); s != domain.StateConnected {
		return fmt.Errorf("%w: state %s", domain.ErrNotReady, s)
	}
	return nil
}

func (b *Bridge) setState(s domain.ConnectionState) {
	b.mu.Lock()
	if b.state == s {
		b.mu.Unlock()
		return
	}
	prev := b.state
	b.state = s
	b.mu.Unlock()

	log.Info().Str("module", "bridge").Str("from", prev.String()).Str("to", s.String()).Msg("state changed")
	b.bus.Emit(core.Event{Kind: core.EventStateChanged, State: s, At: time.Now()})
}

// resync fetches the full roster and announces it. Consumers must treat it
// as "rebuild from scratch": events during an outage are not replayed.
func (b *Bridge) resync(ctx context.Context) {
	roster, err := b.tr.Roster(ctx)
	if err != nil {
		log.Warn().Err(err).Str("module", "bridge").Msg("roster fetch failed, resync skipped")
		return
	}
	b.bus.Emit(core.Event{Kind: core.EventResync, Roster: roster, At: time.Now()})
}

func (b *Bridge) pump(ctx context.Context, done chan struct{}) {
	defer close(done)
	events := b.tr.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return
				}
				if !b.redial(ctx) {
					return
				}
				events = b.tr.Events()
				continue
			}
			b.bus.Emit(ev)
		}
	}
}

// redial runs the capped-exponential backoff loop. Returns false once the
// attempt budget is exhausted (state moves to failed) or the context is
// canceled.
func (b *Bridge) redial(ctx context.Context) bool {
	b.setState(domain.StateReconnecting)

	b.mu.Lock()
	meetingID, identity, name := b.meetingID, b.identity, b.displayName
	b.mu.Unlock()

	delay := b.cfg.ReconnectBase
	for attempt := 1; attempt <= b.cfg.ReconnectAttempts; attempt++ {
		timer := time.NewTimer(withJitter(delay))
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}

		err := b.tr.Dial(ctx, meetingID, identity, name)
		if err == nil {
			log.Info().Str("module", "bridge").Int("attempt", attempt).Msg("reconnected")
			b.setState(domain.StateConnected)
			b.resync(ctx)
			return true
		}
		log.Warn().Err(err).Str("module", "bridge").Int("attempt", attempt).Dur("delay", delay).Msg("redial failed")

		delay *= 2
		if delay > b.cfg.ReconnectMax {
			delay = b.cfg.ReconnectMax
		}
	}
	b.setState(domain.StateFailed)
	return false
}

func withJitter(d time.Duration) time.Duration {
	if d <= 1 {
		return d
	}
	half := int64(d / 2)
	return time.Duration(half + rand.Int64N(half+1))
}
