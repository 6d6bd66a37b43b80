// Package react is the thin ephemeral reaction layer. Signals are
// best-effort: no acknowledgment, no retry, loss is acceptable.
package react

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/avoskov/huddle/internal/core"
	"github.com/avoskov/huddle/internal/domain"
)

// DataSender is the slice of the bridge the broadcaster needs.
type DataSender interface {
	SendData(ctx context.Context, payload []byte) error
}

// Broadcaster fans reactions out over the session data channel and mirrors
// them into the external counts store. Each received signal replaces any
// prior unexpired signal from the same sender and self-expires.
type Broadcaster struct {
	sender    DataSender
	store     core.ReactionStore
	meetingID domain.MeetingID
	selfID    domain.ParticipantID
	duration  time.Duration

	mu        sync.Mutex
	active    map[domain.ParticipantID]domain.ReactionSignal
	timers    map[domain.ParticipantID]*time.Timer
	listeners []func(domain.ReactionSignal)
	closed    bool
}

func NewBroadcaster(sender DataSender, store core.ReactionStore, meetingID domain.MeetingID, selfID domain.ParticipantID, duration time.Duration) *Broadcaster {
	return &Broadcaster{
		sender:    sender,
		store:     store,
		meetingID: meetingID,
		selfID:    selfID,
		duration:  duration,
		active:    make(map[domain.ParticipantID]domain.ReactionSignal),
		timers:    make(map[domain.ParticipantID]*time.Timer),
	}
}

// Send broadcasts an emoji. The local signal is applied immediately;
// delivery to others and the counts store are both best-effort.
func (b *Broadcaster) Send(ctx context.Context, emoji string) error {
	if emoji == "" {
		return fmt.Errorf("%w: empty emoji", domain.ErrValidation)
	}
	sig := domain.ReactionSignal{
		Emoji:           emoji,
		SenderID:        b.selfID,
		SentAt:          time.Now(),
		DisplayDuration: b.duration,
	}
	b.Apply(sig)

	payload, err := core.EncodeDataPayload(core.DataPayload{
		Kind:   core.DataKindReaction,
		Emoji:  emoji,
		Sender: b.selfID,
		SentAt: sig.SentAt,
	})
	if err != nil {
		return err
	}
	if err := b.sender.SendData(ctx, payload); err != nil {
		log.Warn().Err(err).Str("module", "react").Msg("reaction broadcast dropped")
	}
	if err := b.store.Add(ctx, b.meetingID, b.selfID, emoji); err != nil {
		log.Warn().Err(err).Str("module", "react").Msg("reaction count add failed")
	}
	return nil
}

// HandleData consumes a data-received bridge event, ignoring payloads that
// are not reactions.
func (b *Broadcaster) HandleData(ev core.Event) {
	p, err := core.DecodeDataPayload(ev.Data)
	if err != nil || p.Kind != core.DataKindReaction {
		return
	}
	sentAt := p.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now()
	}
	b.Apply(domain.ReactionSignal{
		Emoji:           p.Emoji,
		SenderID:        p.Sender,
		SentAt:          sentAt,
		DisplayDuration: b.duration,
	})
}

// Apply installs sig, replacing any prior unexpired signal from the same
// sender, and arms its expiry timer.
func (b *Broadcaster) Apply(sig domain.ReactionSignal) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.active[sig.SenderID] = sig
	if old, ok := b.timers[sig.SenderID]; ok {
		old.Stop()
	}
	sender, sentAt := sig.SenderID, sig.SentAt
	b.timers[sig.SenderID] = time.AfterFunc(sig.DisplayDuration, func() {
		b.expire(sender, sentAt)
	})
	list := make([]func(domain.ReactionSignal), len(b.listeners))
	copy(list, b.listeners)
	b.mu.Unlock()

	for _, fn := range list {
		fn(sig)
	}
}

// expire removes a signal only if it has not been replaced meanwhile.
func (b *Broadcaster) expire(sender domain.ParticipantID, sentAt time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cur, ok := b.active[sender]; ok && cur.SentAt.Equal(sentAt) {
		delete(b.active, sender)
		delete(b.timers, sender)
	}
}

// OnReceived registers a listener for every applied signal.
func (b *Broadcaster) OnReceived(fn func(domain.ReactionSignal)) {
	b.mu.Lock()
	b.listeners = append(b.listeners, fn)
	b.mu.Unlock()
}

// Active returns the currently visible signals, at most one per sender.
func (b *Broadcaster) Active() []domain.ReactionSignal {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.ReactionSignal, 0, len(b.active))
	for _, sig := range b.active {
		out = append(out, sig)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SenderID < out[j].SenderID })
	return out
}

// Counts reads the aggregate counts from the external store.
func (b *Broadcaster) Counts(ctx context.Context) (map[string]int64, error) {
	return b.store.Counts(ctx, b.meetingID)
}

// Close stops all expiry timers. Further signals are ignored.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, t := range b.timers {
		t.Stop()
		delete(b.timers, id)
	}
	b.active = make(map[domain.ParticipantID]domain.ReactionSignal)
}
