// Package events provides a non-blocking pub/sub bus for notification
// lifecycle events, so hosts can observe the engine without polling the
// notification log.
package events

import (
	"sync"
	"time"
)

// Type identifies what happened.
type Type string

const (
	// TypeNotificationShown fires when the gate let a notification through.
	TypeNotificationShown Type = "notification_shown"
	// TypeNotificationSuppressed fires when the gate rejected one
	// (push disabled or do-not-disturb).
	TypeNotificationSuppressed Type = "notification_suppressed"
	// TypeReminderTriggered fires when a one-shot reminder is consumed.
	TypeReminderTriggered Type = "reminder_triggered"
	// TypeBriefingFired fires when the daily briefing went out.
	TypeBriefingFired Type = "briefing_fired"
)

// Event is one occurrence on the bus.
type Event struct {
	Type      Type
	Timestamp time.Time
	Fields    map[string]string
}

// Bus delivers events to subscribers asynchronously over buffered
// channels. Delivery is best-effort: a subscriber that falls behind
// loses events rather than blocking a producer tick.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[Type][]chan Event
	bufferSize  int
}

func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Bus{
		subscribers: make(map[Type][]chan Event),
		bufferSize:  bufferSize,
	}
}

// Subscribe registers fn for one event type and returns an unsubscribe
// function. fn runs on its own goroutine; panics in fn are swallowed so
// a bad subscriber cannot take the bus down.
func (b *Bus) Subscribe(t Type, fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.bufferSize)
	b.subscribers[t] = append(b.subscribers[t], ch)

	go func() {
		for ev := range ch {
			func() {
				defer func() { _ = recover() }()
				fn(ev)
			}()
		}
	}()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subscribers[t]
		for i, c := range subs {
			if c == ch {
				b.subscribers[t] = append(subs[:i], subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
}

// Publish sends an event to all subscribers of its type without blocking.
func (b *Bus) Publish(t Type, fields map[string]string) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ev := Event{Type: t, Timestamp: time.Now().UTC(), Fields: fields}
	for _, ch := range b.subscribers[t] {
		select {
		case ch <- ev:
		default:
			// Subscriber is full; drop rather than stall a producer.
		}
	}
}

// Close tears down all subscriptions.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for t, subs := range b.subscribers {
		for _, ch := range subs {
			close(ch)
		}
		delete(b.subscribers, t)
	}
}
