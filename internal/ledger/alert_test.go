package ledger

import (
	"testing"
	"time"

	"github.com/ynishioka/daywatch/internal/model"
	"github.com/ynishioka/daywatch/internal/store"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func TestAlertLedgerRecordAndQuery(t *testing.T) {
	l := NewAlertLedger(store.NewMemStore())

	if l.HasFired("t1") {
		t.Error("empty ledger should report not fired")
	}

	if err := l.RecordFired("t1", now); err != nil {
		t.Fatalf("record: %v", err)
	}
	if !l.HasFired("t1") {
		t.Error("t1 should be recorded")
	}
	if l.HasFired("t2") {
		t.Error("t2 was never recorded")
	}
}

func TestAlertLedgerAtMostOneRecordPerTask(t *testing.T) {
	l := NewAlertLedger(store.NewMemStore())

	l.RecordFired("t1", now)
	l.RecordFired("t1", now.Add(time.Hour))

	if l.Len() != 1 {
		t.Errorf("records: got %d, want 1 (upsert, not append)", l.Len())
	}
}

func TestAlertLedgerPruneExpiry(t *testing.T) {
	l := NewAlertLedger(store.NewMemStore())

	l.RecordFired("old", now)
	l.RecordFired("fresh", now.Add(23*time.Hour))

	// 24h59m after "old" fired: old is past the window, fresh is not.
	if err := l.Prune(now.Add(24*time.Hour + 59*time.Minute)); err != nil {
		t.Fatalf("prune: %v", err)
	}

	if l.HasFired("old") {
		t.Error("record older than 24h should be pruned")
	}
	if !l.HasFired("fresh") {
		t.Error("record inside the window should survive")
	}
}

func TestAlertLedgerPruneExactBoundary(t *testing.T) {
	l := NewAlertLedger(store.NewMemStore())
	l.RecordFired("t1", now)

	// Exactly 24h is not "> 24h": the record survives.
	l.Prune(now.Add(model.AlertWindow))
	if !l.HasFired("t1") {
		t.Error("record at exactly 24h should not be pruned")
	}

	l.Prune(now.Add(model.AlertWindow + time.Second))
	if l.HasFired("t1") {
		t.Error("record past 24h should be pruned")
	}
}

func TestAlertLedgerSurvivesRestart(t *testing.T) {
	s := store.NewMemStore()

	l := NewAlertLedger(s)
	l.RecordFired("t1", now)

	// New ledger over the same store sees the persisted record.
	restarted := NewAlertLedger(s)
	if !restarted.HasFired("t1") {
		t.Error("persisted record should survive a restart")
	}
}

func TestAlertLedgerCorruptStoreFailsOpen(t *testing.T) {
	s := store.NewMemStore()
	s.Corrupt(store.KeyAlertLedger)

	l := NewAlertLedger(s)
	if l.HasFired("t1") {
		t.Error("corrupt store should read as empty")
	}
	if err := l.RecordFired("t1", now); err != nil {
		t.Fatalf("ledger should keep working after corrupt load: %v", err)
	}
	if !l.HasFired("t1") {
		t.Error("record after corrupt load should stick")
	}
}
