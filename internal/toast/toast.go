// Package toast delivers short-lived operator notifications. Every
// significant register event (item added, scan miss, checkout result,
// camera failure) produces exactly one toast.
package toast

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Severity classifies a notification.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// DefaultTTL is how long a toast stays visible unless dismissed sooner.
const DefaultTTL = 3 * time.Second

// Toast is one notification.
type Toast struct {
	ID        string    `json:"id"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// EventKind distinguishes show and dismiss notifications on the stream.
type EventKind string

const (
	EventShow    EventKind = "show"
	EventDismiss EventKind = "dismiss"
)

// Event is what subscribers receive.
type Event struct {
	Kind  EventKind `json:"kind"`
	Toast Toast     `json:"toast"`
}

// Bus fans toasts out to subscribers and auto-dismisses each toast after the
// configured TTL. A manual dismiss cancels the pending timer so no duplicate
// dismiss event fires.
type Bus struct {
	mu     sync.Mutex
	ttl    time.Duration
	timers map[string]*time.Timer
	subs   map[chan Event]struct{}
	closed bool
}

// NewBus creates a bus. A non-positive ttl falls back to DefaultTTL.
func NewBus(ttl time.Duration) *Bus {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Bus{
		ttl:    ttl,
		timers: make(map[string]*time.Timer),
		subs:   make(map[chan Event]struct{}),
	}
}

// Publish creates a toast, broadcasts it, and schedules its auto-dismiss.
func (b *Bus) Publish(sev Severity, message string) Toast {
	t := Toast{
		ID:        uuid.NewString(),
		Severity:  sev,
		Message:   message,
		CreatedAt: time.Now(),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return t
	}
	b.timers[t.ID] = time.AfterFunc(b.ttl, func() {
		b.Dismiss(t.ID)
	})
	b.broadcastLocked(Event{Kind: EventShow, Toast: t})
	b.mu.Unlock()

	return t
}

// Success, Error, Warning and Info are shorthands for Publish.
func (b *Bus) Success(message string) Toast { return b.Publish(SeveritySuccess, message) }
func (b *Bus) Error(message string) Toast   { return b.Publish(SeverityError, message) }
func (b *Bus) Warning(message string) Toast { return b.Publish(SeverityWarning, message) }
func (b *Bus) Info(message string) Toast    { return b.Publish(SeverityInfo, message) }

// Dismiss removes a toast, cancelling its auto-dismiss timer. It reports
// whether the toast was still pending; dismissing twice is harmless.
func (b *Bus) Dismiss(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	timer, ok := b.timers[id]
	if !ok {
		return false
	}
	timer.Stop()
	delete(b.timers, id)
	b.broadcastLocked(Event{Kind: EventDismiss, Toast: Toast{ID: id}})
	return true
}

// Subscribe registers a listener. The returned cancel func must be called to
// release the subscription. Slow subscribers drop events rather than block
// the register.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 32)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Close cancels all pending timers and closes subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, timer := range b.timers {
		timer.Stop()
		delete(b.timers, id)
	}
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}

func (b *Bus) broadcastLocked(ev Event) {
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
