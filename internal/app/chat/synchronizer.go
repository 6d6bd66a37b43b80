// Package chat reconciles locally-optimistic sends against polled server
// history into one canonical ordered message list, and derives unread
// counts from a persisted read cursor.
package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/avoskov/huddle/internal/app/bridge"
	"github.com/avoskov/huddle/internal/config"
	"github.com/avoskov/huddle/internal/core"
	"github.com/avoskov/huddle/internal/domain"
)

var ErrAlreadyInitialized = errors.New("chat: already initialized")

type sendInput struct {
	Body string `validate:"required,max=2000"`
}

// Synchronizer owns the canonical message list for one meeting. The poll
// loop is the source of truth; push-triggered refreshes only shorten
// latency. Overlapping reconciliation passes are coalesced by a
// single-flight guard.
type Synchronizer struct {
	store    core.HistoryStore
	cfg      *config.Config
	bus      *bridge.Bus
	validate *validator.Validate

	meetingID domain.MeetingID
	selfID    domain.ParticipantID
	selfName  string
	isHost    bool

	mu          sync.RWMutex
	confirmed   []domain.Message
	pendingList []domain.Message
	localEcho   map[string]domain.Message
	failures    int
	degraded    bool
	listeners   []func()
	cancel      context.CancelFunc
	done        chan struct{}

	inFlight atomic.Bool
}

func NewSynchronizer(store core.HistoryStore, cfg *config.Config, bus *bridge.Bus, meetingID domain.MeetingID, selfID domain.ParticipantID, selfName string, isHost bool) *Synchronizer {
	return &Synchronizer{
		store:     store,
		cfg:       cfg,
		bus:       bus,
		validate:  validator.New(),
		meetingID: meetingID,
		selfID:    selfID,
		selfName:  selfName,
		isHost:    isHost,
		localEcho: make(map[string]domain.Message),
	}
}

// Initialize runs one blocking reconciliation pass and starts the poll
// loop. Safe to call once per session.
func (s *Synchronizer) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return ErrAlreadyInitialized
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	s.reconcile(ctx)
	go s.loop(loopCtx, done)
	return nil
}

// Close stops the poll loop. Idempotent.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (s *Synchronizer) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reconcile(ctx)
		}
	}
}

// ForceRefresh runs a reconciliation pass immediately, bypassing the poll
// interval. A pass already in flight covers the trigger, so the call
// becomes a no-op.
func (s *Synchronizer) ForceRefresh(ctx context.Context) {
	s.reconcile(ctx)
}

// OnUpdate registers a listener invoked after every change to the
// canonical list.
func (s *Synchronizer) OnUpdate(fn func()) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *Synchronizer) notify() {
	s.mu.RLock()
	list := make([]func(), len(s.listeners))
	copy(list, s.listeners)
	s.mu.RUnlock()
	for _, fn := range list {
		fn()
	}
}

// reconcile is the single merge pass. Poll errors are swallowed: a stale
// cache beats blocking the UI. After DegradedAfter consecutive failures a
// degraded signal is raised once until the next success.
func (s *Synchronizer) reconcile(ctx context.Context) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return
	}
	defer s.inFlight.Store(false)

	msgs, _, err := s.store.History(ctx, s.meetingID, s.selfID, s.isHost, s.cfg.HistoryLimit, 0)
	if err != nil {
		s.pollFailed(err)
		return
	}
	s.pollSucceeded()

	for i := range msgs {
		msgs[i].Delivery = domain.DeliveryConfirmed
	}

	s.mu.Lock()
	// A fetch snapshotted before a send committed must not erase the
	// confirmation that landed while the response was in flight. Echoes are
	// carried until a poll returns the server copy.
	fetched := make(map[string]struct{}, len(msgs))
	for _, m := range msgs {
		fetched[m.ID] = struct{}{}
	}
	for id, m := range s.localEcho {
		if _, ok := fetched[id]; ok {
			delete(s.localEcho, id)
			continue
		}
		msgs = append(msgs, m)
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].Before(msgs[j]) })

	changed := len(msgs) != len(s.confirmed)
	if !changed && len(msgs) > 0 {
		oldTail := s.confirmed[len(s.confirmed)-1]
		newTail := msgs[len(msgs)-1]
		changed = oldTail.ID != newTail.ID || !oldTail.SentAt.Equal(newTail.SentAt)
	}

	// A poll can return the server copy of a still-pending send before the
	// POST resolves; the echoed temp id makes that an exact match.
	confirmedTemp := make(map[string]struct{})
	for _, m := range msgs {
		if m.TempID != "" {
			confirmedTemp[m.TempID] = struct{}{}
		}
	}
	kept := s.pendingList[:0]
	for _, p := range s.pendingList {
		if _, ok := confirmedTemp[p.TempID]; ok {
			changed = true
			continue
		}
		kept = append(kept, p)
	}
	s.pendingList = kept
	if changed {
		s.confirmed = msgs
	}
	s.mu.Unlock()

	if changed {
		s.notify()
	}
}

func (s *Synchronizer) pollFailed(err error) {
	s.mu.Lock()
	s.failures++
	raise := s.failures >= s.cfg.DegradedAfter && !s.degraded
	if raise {
		s.degraded = true
	}
	failures := s.failures
	s.mu.Unlock()

	log.Warn().Err(err).Str("module", "chat").Int("failures", failures).Msg("poll failed, cache retained")
	if raise {
		s.bus.Emit(core.Event{Kind: core.EventSyncDegraded, Degraded: true, At: time.Now()})
	}
}

func (s *Synchronizer) pollSucceeded() {
	s.mu.Lock()
	recovered := s.degraded
	s.failures = 0
	s.degraded = false
	s.mu.Unlock()

	if recovered {
		log.Info().Str("module", "chat").Msg("sync recovered")
		s.bus.Emit(core.Event{Kind: core.EventSyncDegraded, Degraded: false, At: time.Now()})
	}
}

// Send appends an optimistic pending entry and publishes it before the
// network call resolves. On confirmation the entry is replaced in place,
// matched by its temp id; on failure it is rolled back and the original
// body is returned for retry.
func (s *Synchronizer) Send(ctx context.Context, body string, visibility domain.Visibility, recipients []domain.ParticipantID) (string, error) {
	if err := s.validate.Struct(sendInput{Body: body}); err != nil {
		return body, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if visibility == domain.VisibilitySubset && len(recipients) == 0 {
		return body, fmt.Errorf("%w: subset visibility requires recipients", domain.ErrValidation)
	}

	msg := domain.Message{
		TempID:     uuid.NewString(),
		SenderID:   s.selfID,
		SenderName: s.selfName,
		Body:       body,
		SentAt:     time.Now(),
		Visibility: visibility,
		Recipients: recipients,
		Delivery:   domain.DeliveryPending,
	}

	s.mu.Lock()
	s.pendingList = append(s.pendingList, msg)
	s.mu.Unlock()
	s.notify()

	id, sentAt, err := s.store.Send(ctx, core.SendRequest{
		MeetingID:  s.meetingID,
		SenderID:   s.selfID,
		SenderName: s.selfName,
		Body:       body,
		Visibility: visibility,
		Recipients: recipients,
		TempID:     msg.TempID,
	})
	if err != nil {
		s.dropPending(msg.TempID)
		s.notify()
		return body, fmt.Errorf("%w: send: %v", domain.ErrNetwork, err)
	}

	s.confirm(msg, id, sentAt)
	s.notify()
	return body, nil
}

func (s *Synchronizer) dropPending(tempID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.pendingList {
		if p.TempID == tempID {
			s.pendingList = append(s.pendingList[:i], s.pendingList[i+1:]...)
			return
		}
	}
}

func (s *Synchronizer) confirm(msg domain.Message, id string, sentAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, p := range s.pendingList {
		if p.TempID == msg.TempID {
			s.pendingList = append(s.pendingList[:i], s.pendingList[i+1:]...)
			break
		}
	}
	// The poll may already have delivered the confirmed copy.
	for _, m := range s.confirmed {
		if m.ID == id {
			return
		}
	}
	msg.ID = id
	msg.SentAt = sentAt
	msg.Delivery = domain.DeliveryConfirmed
	s.confirmed = append(s.confirmed, msg)
	s.localEcho[msg.ID] = msg
	sort.Slice(s.confirmed, func(i, j int) bool { return s.confirmed[i].Before(s.confirmed[j]) })
}

// Messages returns the current canonical merge: confirmed history plus
// still-pending local sends, totally ordered by (sentAt, id).
func (s *Synchronizer) Messages() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Message, 0, len(s.confirmed)+len(s.pendingList))
	out = append(out, s.confirmed...)
	out = append(out, s.pendingList...)
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Degraded reports whether polling has failed past the configured
// threshold without recovery.
func (s *Synchronizer) Degraded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.degraded
}
