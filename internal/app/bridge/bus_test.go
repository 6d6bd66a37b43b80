package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avoskov/huddle/internal/core"
)

func TestBusDeliversInRegistrationOrder(t *testing.T) {
	bus := NewBus()
	var got []int
	bus.On(core.EventParticipantJoined, func(core.Event) { got = append(got, 1) })
	bus.On(core.EventParticipantJoined, func(core.Event) { got = append(got, 2) })
	bus.On(core.EventParticipantJoined, func(core.Event) { got = append(got, 3) })

	bus.Emit(core.Event{Kind: core.EventParticipantJoined})

	require.Equal(t, []int{1, 2, 3}, got)
}

func TestBusKindIsolation(t *testing.T) {
	bus := NewBus()
	var joined, left int
	bus.On(core.EventParticipantJoined, func(core.Event) { joined++ })
	bus.On(core.EventParticipantLeft, func(core.Event) { left++ })

	bus.Emit(core.Event{Kind: core.EventParticipantJoined})
	bus.Emit(core.Event{Kind: core.EventParticipantJoined})

	assert.Equal(t, 2, joined)
	assert.Equal(t, 0, left)
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus()
	var calls int
	off := bus.On(core.EventStateChanged, func(core.Event) { calls++ })

	bus.Emit(core.Event{Kind: core.EventStateChanged})
	off()
	bus.Emit(core.Event{Kind: core.EventStateChanged})

	assert.Equal(t, 1, calls)

	// A second call must be harmless.
	off()
	bus.Emit(core.Event{Kind: core.EventStateChanged})
	assert.Equal(t, 1, calls)
}

func TestBusPanickingHandlerIsIsolated(t *testing.T) {
	bus := NewBus()
	var after int
	bus.On(core.EventDataReceived, func(core.Event) { panic("boom") })
	bus.On(core.EventDataReceived, func(core.Event) { after++ })

	require.NotPanics(t, func() {
		bus.Emit(core.Event{Kind: core.EventDataReceived})
	})
	assert.Equal(t, 1, after, "handler after the panicking one must still run")
}
