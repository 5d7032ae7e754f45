package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, ch <-chan *Event) *Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		require.FailNow(t, "timeout waiting for event")
		return nil
	}
}

func TestBus_FanOut(t *testing.T) {
	bus := NewBus()
	a := bus.Subscribe()
	b := bus.Subscribe()
	require.Equal(t, 2, bus.Subscribers())

	bus.Emit(MountStatus, "gdrive", StatusData{Status: "mounted"})

	for _, ch := range []<-chan *Event{a, b} {
		ev := recv(t, ch)
		assert.Equal(t, MountStatus, ev.Type)
		assert.Equal(t, "gdrive", ev.Subject)
		assert.NotEmpty(t, ev.ID)
		assert.Equal(t, StatusData{Status: "mounted"}, ev.Data)
	}
}

func TestBus_DropsWhenSubscriberFull(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe()

	for i := 0; i < subscriberBufferSize+10; i++ {
		bus.Emit(TaskStats, "t1", nil)
	}

	assert.Len(t, ch, subscriberBufferSize)
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe()
	bus.Unsubscribe(ch)

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, bus.Subscribers())

	// publishing after unsubscribe must not panic
	bus.Emit(TaskDue, "t1", nil)
}

func TestBus_Close(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe()
	bus.Close()
	bus.Close()

	_, ok := <-ch
	assert.False(t, ok)

	late := bus.Subscribe()
	_, ok = <-late
	assert.False(t, ok)

	bus.Emit(TaskDue, "t1", nil)
}

func TestBus_NilIsNoop(t *testing.T) {
	var bus *Bus
	bus.Emit(TaskDue, "t1", nil)
	bus.Close()
	bus.Unsubscribe(nil)
	assert.Equal(t, 0, bus.Subscribers())

	_, ok := <-bus.Subscribe()
	assert.False(t, ok)
}
