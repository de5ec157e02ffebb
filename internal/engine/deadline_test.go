package engine

import (
	"bytes"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ynishioka/daywatch/internal/gate"
	"github.com/ynishioka/daywatch/internal/ledger"
	"github.com/ynishioka/daywatch/internal/model"
	"github.com/ynishioka/daywatch/internal/store"
)

func newTestWatcher(tasks TaskSource, settings SettingsSource, n *countingNotifier) (*DeadlineWatcher, *ledger.AlertLedger) {
	al := ledger.NewAlertLedger(store.NewMemStore())
	g := gate.New(n, nil, nil, nil, log.New(&bytes.Buffer{}, "", 0))
	return newDeadlineWatcher(tasks, settings, al, g, discardLog), al
}

func dueTask(id string, due time.Time) model.Task {
	return model.Task{ID: id, Title: "task " + id, DueDate: ptr(due), Importance: 5, EstimatedMinutes: 60}
}

func TestDeadlineWatcherFiresInsideWindow(t *testing.T) {
	n := &countingNotifier{}
	w, al := newTestWatcher(
		staticTasks(dueTask("t1", testNow.Add(30*time.Minute))),
		StaticSettings(model.DefaultSettings()), n)

	w.Tick(testNow)

	assert.Equal(t, 1, n.count())
	assert.Contains(t, n.titles()[0], "task t1")
	assert.True(t, al.HasFired("t1"))
}

func TestDeadlineWatcherDedupWithin24h(t *testing.T) {
	n := &countingNotifier{}
	w, al := newTestWatcher(
		staticTasks(dueTask("t1", testNow.Add(30*time.Minute))),
		StaticSettings(model.DefaultSettings()), n)

	w.Tick(testNow)
	w.Tick(testNow.Add(time.Minute))

	assert.Equal(t, 1, n.count(), "exactly one notification for two ticks in the window")
	assert.Equal(t, 1, al.Len(), "exactly one live record")
}

func TestDeadlineWatcherSkipsCompletedAndOverdue(t *testing.T) {
	done := dueTask("done", testNow.Add(10*time.Minute))
	done.Completed = true
	overdue := dueTask("late", testNow.Add(-5*time.Minute))
	undated := model.Task{ID: "undated", Title: "someday", Importance: 5}

	n := &countingNotifier{}
	w, al := newTestWatcher(staticTasks(done, overdue, undated), StaticSettings(model.DefaultSettings()), n)

	w.Tick(testNow)

	assert.Zero(t, n.count())
	assert.False(t, al.HasFired("done"))
	assert.False(t, al.HasFired("late"), "overdue is missed, not approaching")
	assert.False(t, al.HasFired("undated"))
}

func TestDeadlineWatcherRespectsMinutesBefore(t *testing.T) {
	s := model.DefaultSettings()
	s.DeadlineAlert.MinutesBefore = 15

	n := &countingNotifier{}
	w, _ := newTestWatcher(
		staticTasks(dueTask("t1", testNow.Add(30*time.Minute))),
		StaticSettings(s), n)

	w.Tick(testNow)
	assert.Zero(t, n.count(), "30 minutes out is beyond a 15-minute window")

	w.Tick(testNow.Add(20 * time.Minute))
	assert.Equal(t, 1, n.count(), "10 minutes out is inside the window")
}

func TestDeadlineWatcherDisabledSkipsTick(t *testing.T) {
	s := model.DefaultSettings()
	s.DeadlineAlert.Enabled = false

	n := &countingNotifier{}
	w, al := newTestWatcher(
		staticTasks(dueTask("t1", testNow.Add(10*time.Minute))),
		StaticSettings(s), n)

	w.Tick(testNow)
	assert.Zero(t, n.count())
	assert.Zero(t, al.Len())
}

func TestDeadlineWatcherDateOnlyDueUsesEndOfDay(t *testing.T) {
	// Date-only due "today" means 23:59:59; at 23:30 it is inside a
	// 60-minute window.
	lateEvening := time.Date(2026, 3, 10, 23, 30, 0, 0, time.UTC)
	dateOnly := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	n := &countingNotifier{}
	w, _ := newTestWatcher(
		staticTasks(dueTask("t1", dateOnly)),
		StaticSettings(model.DefaultSettings()), n)

	w.Tick(lateEvening)
	assert.Equal(t, 1, n.count())
}

func TestDeadlineWatcherTaskSourceErrorSkipsTick(t *testing.T) {
	failing := TaskSourceFunc(func() ([]model.Task, error) { return nil, errors.New("store down") })

	n := &countingNotifier{}
	w, _ := newTestWatcher(failing, StaticSettings(model.DefaultSettings()), n)

	require.NotPanics(t, func() { w.Tick(testNow) })
	assert.Zero(t, n.count())
}

func TestDeadlineWatcherPrunesAfterWindow(t *testing.T) {
	n := &countingNotifier{}
	w, al := newTestWatcher(
		staticTasks(dueTask("t1", testNow.Add(30*time.Minute))),
		StaticSettings(model.DefaultSettings()), n)

	w.Tick(testNow)
	require.True(t, al.HasFired("t1"))

	// 25h later the ledger entry is gone (tick with no matching tasks
	// still prunes).
	w.Tick(testNow.Add(25 * time.Hour))
	assert.False(t, al.HasFired("t1"))
}
