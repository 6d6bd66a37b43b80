package react

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avoskov/huddle/internal/core"
	"github.com/avoskov/huddle/internal/domain"
)

type fakeSender struct {
	mu       sync.Mutex
	payloads [][]byte
	err      error
}

func (f *fakeSender) SendData(ctx context.Context, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, payload)
	return nil
}

type fakeReactionStore struct {
	mu     sync.Mutex
	counts map[string]int64
	addErr error
}

func newFakeReactionStore() *fakeReactionStore {
	return &fakeReactionStore{counts: make(map[string]int64)}
}

func (f *fakeReactionStore) Add(ctx context.Context, meetingID domain.MeetingID, senderID domain.ParticipantID, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	f.counts[emoji]++
	return nil
}

func (f *fakeReactionStore) Counts(ctx context.Context, meetingID domain.MeetingID) (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int64, len(f.counts))
	for k, v := range f.counts {
		out[k] = v
	}
	return out, nil
}

func newTestBroadcaster(sender DataSender, store core.ReactionStore, d time.Duration) *Broadcaster {
	return NewBroadcaster(sender, store, "m1", "self", d)
}

func TestSendAppliesLocallyAndBroadcasts(t *testing.T) {
	sender := &fakeSender{}
	store := newFakeReactionStore()
	b := newTestBroadcaster(sender, store, time.Minute)
	defer b.Close()

	require.NoError(t, b.Send(context.Background(), "👍"))

	active := b.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "👍", active[0].Emoji)
	assert.Equal(t, domain.ParticipantID("self"), active[0].SenderID)

	require.Len(t, sender.payloads, 1)
	p, err := core.DecodeDataPayload(sender.payloads[0])
	require.NoError(t, err)
	assert.Equal(t, core.DataKindReaction, p.Kind)
	assert.Equal(t, "👍", p.Emoji)

	counts, err := b.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts["👍"])
}

func TestSendEmptyEmoji(t *testing.T) {
	b := newTestBroadcaster(&fakeSender{}, newFakeReactionStore(), time.Minute)
	defer b.Close()
	require.ErrorIs(t, b.Send(context.Background(), ""), domain.ErrValidation)
	assert.Empty(t, b.Active())
}

func TestSendSurvivesDeliveryFailures(t *testing.T) {
	sender := &fakeSender{err: errors.New("channel closed")}
	store := newFakeReactionStore()
	store.addErr = errors.New("store down")
	b := newTestBroadcaster(sender, store, time.Minute)
	defer b.Close()

	// Loss is acceptable: the local signal still shows.
	require.NoError(t, b.Send(context.Background(), "🎉"))
	assert.Len(t, b.Active(), 1)
}

func TestNewSignalReplacesPriorFromSameSender(t *testing.T) {
	b := newTestBroadcaster(&fakeSender{}, newFakeReactionStore(), time.Minute)
	defer b.Close()

	now := time.Now()
	b.Apply(domain.ReactionSignal{Emoji: "👍", SenderID: "a", SentAt: now, DisplayDuration: time.Minute})
	b.Apply(domain.ReactionSignal{Emoji: "❤️", SenderID: "a", SentAt: now.Add(time.Second), DisplayDuration: time.Minute})
	b.Apply(domain.ReactionSignal{Emoji: "😂", SenderID: "b", SentAt: now, DisplayDuration: time.Minute})

	active := b.Active()
	require.Len(t, active, 2)
	assert.Equal(t, "❤️", active[0].Emoji) // sender a
	assert.Equal(t, "😂", active[1].Emoji) // sender b
}

func TestSignalsExpire(t *testing.T) {
	b := newTestBroadcaster(&fakeSender{}, newFakeReactionStore(), 20*time.Millisecond)
	defer b.Close()

	b.Apply(domain.ReactionSignal{Emoji: "👍", SenderID: "a", SentAt: time.Now(), DisplayDuration: 20 * time.Millisecond})
	require.Len(t, b.Active(), 1)

	require.Eventually(t, func() bool {
		return len(b.Active()) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestReplacementOutlivesReplacedTimer(t *testing.T) {
	b := newTestBroadcaster(&fakeSender{}, newFakeReactionStore(), time.Minute)
	defer b.Close()

	now := time.Now()
	b.Apply(domain.ReactionSignal{Emoji: "👍", SenderID: "a", SentAt: now, DisplayDuration: 10 * time.Millisecond})
	b.Apply(domain.ReactionSignal{Emoji: "❤️", SenderID: "a", SentAt: now.Add(time.Millisecond), DisplayDuration: time.Minute})

	time.Sleep(50 * time.Millisecond)
	active := b.Active()
	require.Len(t, active, 1, "the replacement must not be expired by the replaced signal's timer")
	assert.Equal(t, "❤️", active[0].Emoji)
}

func TestHandleDataIgnoresNonReactionPayloads(t *testing.T) {
	b := newTestBroadcaster(&fakeSender{}, newFakeReactionStore(), time.Minute)
	defer b.Close()

	chat, err := core.EncodeDataPayload(core.DataPayload{Kind: core.DataKindChat})
	require.NoError(t, err)
	b.HandleData(core.Event{Kind: core.EventDataReceived, Data: chat})
	b.HandleData(core.Event{Kind: core.EventDataReceived, Data: []byte("not json")})
	assert.Empty(t, b.Active())

	reaction, err := core.EncodeDataPayload(core.DataPayload{
		Kind:   core.DataKindReaction,
		Emoji:  "👏",
		Sender: "remote",
		SentAt: time.Now(),
	})
	require.NoError(t, err)
	b.HandleData(core.Event{Kind: core.EventDataReceived, Data: reaction})

	active := b.Active()
	require.Len(t, active, 1)
	assert.Equal(t, domain.ParticipantID("remote"), active[0].SenderID)
}

func TestListenerSeesEverySignal(t *testing.T) {
	b := newTestBroadcaster(&fakeSender{}, newFakeReactionStore(), time.Minute)
	defer b.Close()

	var got []string
	b.OnReceived(func(sig domain.ReactionSignal) { got = append(got, sig.Emoji) })

	b.Apply(domain.ReactionSignal{Emoji: "👍", SenderID: "a", SentAt: time.Now(), DisplayDuration: time.Minute})
	b.Apply(domain.ReactionSignal{Emoji: "❤️", SenderID: "b", SentAt: time.Now(), DisplayDuration: time.Minute})

	assert.Equal(t, []string{"👍", "❤️"}, got)
}

func TestCloseStopsSignals(t *testing.T) {
	b := newTestBroadcaster(&fakeSender{}, newFakeReactionStore(), time.Minute)
	b.Apply(domain.ReactionSignal{Emoji: "👍", SenderID: "a", SentAt: time.Now(), DisplayDuration: time.Minute})
	b.Close()

	assert.Empty(t, b.Active())
	b.Apply(domain.ReactionSignal{Emoji: "❤️", SenderID: "b", SentAt: time.Now(), DisplayDuration: time.Minute})
	assert.Empty(t, b.Active())
}
