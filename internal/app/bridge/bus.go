package bridge

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/avoskov/huddle/internal/core"
)

// Handler receives one event. Handlers run on the emitter's goroutine in
// registration order.
type Handler func(core.Event)

type subscription struct {
	id int
	fn Handler
}

// Bus is a typed publish/subscribe hub keyed by event kind. A panicking
// handler is recovered at the emit site so it cannot break other
// subscribers or the emitter.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[core.EventKind][]subscription
}

func NewBus() *Bus {
	return &Bus{subs: make(map[core.EventKind][]subscription)}
}

// On registers a handler for one event kind and returns its unsubscribe
// function. Multiple handlers per kind are supported.
func (b *Bus) On(kind core.EventKind, fn Handler) (off func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[kind] = append(b.subs[kind], subscription{id: id, fn: fn})
	b.mu.Unlock()
	return func() { b.off(kind, id) }
}

func (b *Bus) off(kind core.EventKind, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[kind]
	for i, s := range list {
		if s.id == id {
			b.subs[kind] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Emit delivers ev to every handler registered for its kind, in order.
func (b *Bus) Emit(ev core.Event) {
	b.mu.RLock()
	list := make([]subscription, len(b.subs[ev.Kind]))
	copy(list, b.subs[ev.Kind])
	b.mu.RUnlock()

	for _, s := range list {
		b.dispatch(s, ev)
	}
}

func (b *Bus) dispatch(s subscription, ev core.Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("module", "bridge.bus").Str("kind", ev.Kind.String()).Any("panic", r).Msg("handler panicked")
		}
	}()
	s.fn(ev)
}
