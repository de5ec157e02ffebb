// Package ledger holds the engine's two pieces of dedup memory: the
// alert ledger for deadline alerts and the queue of one-shot reminders.
// Both persist through a store.Store and load fail-open: a corrupt or
// missing blob means "no memory", never a startup failure.
package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/ynishioka/daywatch/internal/model"
	"github.com/ynishioka/daywatch/internal/store"
)

// AlertLedger remembers which tasks already got a deadline alert.
// Invariant: at most one live record per task. Records expire 24h after
// firing, which bounds the dedup guarantee to "at most one deadline
// alert per task per 24h window".
type AlertLedger struct {
	mu      sync.Mutex
	store   store.Store
	records map[string]model.AlertRecord
	loaded  bool
}

func NewAlertLedger(s store.Store) *AlertLedger {
	return &AlertLedger{store: s, records: make(map[string]model.AlertRecord)}
}

// load reads persisted records once, lazily. A corrupt blob reads as
// empty (the store already quarantined it), so the ledger starts fresh.
func (l *AlertLedger) load() {
	if l.loaded {
		return
	}
	l.loaded = true

	var records []model.AlertRecord
	if _, err := l.store.Get(store.KeyAlertLedger, &records); err != nil {
		// I/O trouble reads as empty too; the next persist will retry.
		return
	}
	for _, r := range records {
		l.records[r.TaskID] = r
	}
}

func (l *AlertLedger) persist() error {
	records := make([]model.AlertRecord, 0, len(l.records))
	for _, r := range l.records {
		records = append(records, r)
	}
	if err := l.store.Set(store.KeyAlertLedger, records); err != nil {
		return fmt.Errorf("persist alert ledger: %w", err)
	}
	return nil
}

// HasFired reports whether a live record exists for the task.
func (l *AlertLedger) HasFired(taskID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.load()
	_, ok := l.records[taskID]
	return ok
}

// RecordFired upserts the record for taskID at now.
func (l *AlertLedger) RecordFired(taskID string, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.load()
	l.records[taskID] = model.AlertRecord{TaskID: taskID, FiredAt: now}
	return l.persist()
}

// Prune drops records older than the alert window. The watcher calls it
// after evaluation, so a record that just fired is never pruned on its
// own tick.
func (l *AlertLedger) Prune(now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.load()

	changed := false
	for id, r := range l.records {
		if now.Sub(r.FiredAt) > model.AlertWindow {
			delete(l.records, id)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return l.persist()
}

// Len reports the number of live records. Used by the status surface.
func (l *AlertLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.load()
	return len(l.records)
}
