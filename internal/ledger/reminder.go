package ledger

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ynishioka/daywatch/internal/model"
	"github.com/ynishioka/daywatch/internal/store"
)

// ReminderQueue is the persisted queue of one-shot reminders. It is the
// source of truth for the dispatcher: entries stay queued until their
// scheduled time elapses, flip to triggered exactly once, and are purged
// 24h after triggering.
type ReminderQueue struct {
	mu        sync.Mutex
	store     store.Store
	reminders []model.ScheduledReminder
	loaded    bool
}

func NewReminderQueue(s store.Store) *ReminderQueue {
	return &ReminderQueue{store: s}
}

func (q *ReminderQueue) load() {
	if q.loaded {
		return
	}
	q.loaded = true
	_, _ = q.store.Get(store.KeyReminderQueue, &q.reminders)
}

func (q *ReminderQueue) persist() error {
	if err := q.store.Set(store.KeyReminderQueue, q.reminders); err != nil {
		return fmt.Errorf("persist reminder queue: %w", err)
	}
	return nil
}

// Enqueue appends a reminder and persists the queue.
func (q *ReminderQueue) Enqueue(rem model.ScheduledReminder) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.load()
	q.reminders = append(q.reminders, rem)
	return q.persist()
}

// Cancel removes an untriggered reminder by ID. Cancelling an unknown or
// already-triggered reminder reports false.
func (q *ReminderQueue) Cancel(id string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.load()

	for i, r := range q.reminders {
		if r.ID == id && !r.Triggered {
			q.reminders = append(q.reminders[:i], q.reminders[i+1:]...)
			return true, q.persist()
		}
	}
	return false, nil
}

// DueNow returns untriggered reminders whose scheduled time has elapsed,
// oldest first.
func (q *ReminderQueue) DueNow(now time.Time) []model.ScheduledReminder {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.load()

	var due []model.ScheduledReminder
	for _, r := range q.reminders {
		if !r.Triggered && !r.ScheduledTime.After(now) {
			due = append(due, r)
		}
	}
	sort.SliceStable(due, func(i, j int) bool {
		return due[i].ScheduledTime.Before(due[j].ScheduledTime)
	})
	return due
}

// MarkTriggered flips a reminder's fence. The flag survives restarts, so
// a re-read queue never re-fires the reminder.
func (q *ReminderQueue) MarkTriggered(id string, now time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.load()

	for i := range q.reminders {
		if q.reminders[i].ID == id {
			if q.reminders[i].Triggered {
				return nil
			}
			q.reminders[i].Triggered = true
			t := now
			q.reminders[i].TriggeredAt = &t
			return q.persist()
		}
	}
	return fmt.Errorf("mark triggered: unknown reminder %q", id)
}

// PurgeOld drops triggered reminders older than the alert window.
func (q *ReminderQueue) PurgeOld(now time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.load()

	kept := q.reminders[:0]
	changed := false
	for _, r := range q.reminders {
		stale := r.Triggered && r.TriggeredAt != nil && now.Sub(*r.TriggeredAt) > model.AlertWindow
		if stale {
			changed = true
			continue
		}
		kept = append(kept, r)
	}
	q.reminders = kept
	if !changed {
		return nil
	}
	return q.persist()
}

// Pending returns untriggered reminders, soonest first. Status surface.
func (q *ReminderQueue) Pending() []model.ScheduledReminder {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.load()

	var pending []model.ScheduledReminder
	for _, r := range q.reminders {
		if !r.Triggered {
			pending = append(pending, r)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].ScheduledTime.Before(pending[j].ScheduledTime)
	})
	return pending
}
