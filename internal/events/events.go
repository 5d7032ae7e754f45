package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const subscriberBufferSize = 64

// Type names an event published on the bus
type Type string

const (
	MountStatus    Type = "mount.status"
	MountError     Type = "mount.error"
	TaskStatus     Type = "task.status"
	TaskProgress   Type = "task.progress"
	TaskStats      Type = "task.stats"
	TaskError      Type = "task.error"
	TaskCompleted  Type = "task.completed"
	TaskDue        Type = "task.due"
	RemotesChanged Type = "remotes.changed"
)

// Event is a one-way notification. Subject is the mount name or task id.
type Event struct {
	ID      string    `json:"id"`
	Type    Type      `json:"type"`
	Subject string    `json:"subject"`
	Time    time.Time `json:"time"`
	Data    any       `json:"data,omitempty"`
}

type StatusData struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type ProgressData struct {
	Percent int   `json:"percent"`
	Files   int64 `json:"files"`
	Bytes   int64 `json:"bytes"`
}

type CompletedData struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Bus fans published events out to subscribers. Every subscriber owns a
// buffered channel that it alone drains; publishing never blocks, and an
// event is dropped for a subscriber whose buffer is full.
// A nil *Bus is valid and discards everything.
type Bus struct {
	subs   []chan *Event
	closed bool
	mu     sync.RWMutex
}

func NewBus() *Bus {
	return &Bus{
		subs: make([]chan *Event, 0),
	}
}

// Subscribe returns a channel that receives every event published from now on
func (b *Bus) Subscribe() <-chan *Event {
	ch := make(chan *Event, subscriberBufferSize)
	if b == nil {
		close(ch)
		return ch
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

// Unsubscribe removes and closes a subscription channel
func (b *Bus) Unsubscribe(ch <-chan *Event) {
	if b == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subs {
		if sub == ch {
			close(sub)
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

func (b *Bus) Publish(ev *Event) {
	if b == nil || ev == nil {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for _, sub := range b.subs {
		select {
		case sub <- ev:
		default:
			// slow subscriber, drop
		}
	}
}

// Emit builds and publishes an event
func (b *Bus) Emit(typ Type, subject string, data any) {
	if b == nil {
		return
	}
	b.Publish(&Event{
		ID:      uuid.NewString(),
		Type:    typ,
		Subject: subject,
		Time:    time.Now(),
		Data:    data,
	})
}

// Close closes every subscription; later publishes are ignored
func (b *Bus) Close() {
	if b == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subs {
		close(sub)
	}
	b.subs = nil
}

func (b *Bus) Subscribers() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
