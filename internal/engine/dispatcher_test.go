package engine

import (
	"bytes"
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

func newTestDispatcher(t *testing.T, settings SettingsSource, n *countingNotifier) (*ReminderDispatcher, *ledger.ReminderQueue) {
	t.Helper()
	q := ledger.NewReminderQueue(store.NewMemStore())
	g := gate.New(n, nil, nil, nil, log.New(&bytes.Buffer{}, "", 0))
	return newReminderDispatcher(q, settings, g, nil, discardLog), q
}

func enqueue(t *testing.T, q *ledger.ReminderQueue, title string, at time.Time) string {
	t.Helper()
	id := model.NewReminderID()
	require.NoError(t, q.Enqueue(model.ScheduledReminder{
		ID:            id,
		Title:         title,
		ScheduledTime: at,
		CreatedAt:     testNow.Add(-time.Hour),
	}))
	return id
}

func TestDispatcherFiresExactlyOnce(t *testing.T) {
	n := &countingNotifier{}
	d, q := newTestDispatcher(t, StaticSettings(model.DefaultSettings()), n)

	enqueue(t, q, "water the plants", testNow.Add(-time.Minute))

	d.Tick(testNow)
	d.Tick(testNow.Add(time.Minute))

	require.Equal(t, 1, n.count(), "a reminder fires on one tick only")
	assert.Contains(t, n.titles()[0], "water the plants")
	assert.Empty(t, q.Pending())
}

func TestDispatcherSkipsFutureReminders(t *testing.T) {
	n := &countingNotifier{}
	d, q := newTestDispatcher(t, StaticSettings(model.DefaultSettings()), n)

	enqueue(t, q, "later", testNow.Add(time.Hour))

	d.Tick(testNow)
	assert.Zero(t, n.count())
	assert.Len(t, q.Pending(), 1)
}

func TestDispatcherFiresOldestFirst(t *testing.T) {
	n := &countingNotifier{}
	d, q := newTestDispatcher(t, StaticSettings(model.DefaultSettings()), n)

	enqueue(t, q, "second", testNow.Add(-time.Minute))
	enqueue(t, q, "first", testNow.Add(-time.Hour))

	d.Tick(testNow)

	require.Equal(t, 2, n.count())
	assert.Contains(t, n.titles()[0], "first")
	assert.Contains(t, n.titles()[1], "second")
}

func TestDispatcherDefersDuringQuietHours(t *testing.T) {
	s := model.DefaultSettings()
	s.DoNotDisturb.Enabled = true
	s.DoNotDisturb.Start = "11:00"
	s.DoNotDisturb.End = "13:00"
	ms := newMutableSettings(s)

	n := &countingNotifier{}
	d, q := newTestDispatcher(t, ms, n)

	enqueue(t, q, "standup", testNow.Add(-time.Minute)) // testNow is 12:00, inside the window

	d.Tick(testNow)
	assert.Zero(t, n.count(), "quiet hours defer the tick")
	assert.Len(t, q.Pending(), 1, "deferred, not cancelled")

	// Window over: the same reminder fires on the next tick.
	d.Tick(testNow.Add(90 * time.Minute))
	assert.Equal(t, 1, n.count())
	assert.Empty(t, q.Pending())
}

func TestDispatcherDefersWithPushDisabled(t *testing.T) {
	s := model.DefaultSettings()
	s.PushEnabled = false

	n := &countingNotifier{}
	d, q := newTestDispatcher(t, StaticSettings(s), n)

	enqueue(t, q, "ping", testNow.Add(-time.Minute))

	d.Tick(testNow)
	assert.Zero(t, n.count())
	assert.Len(t, q.Pending(), 1)
}

func TestDispatcherPurgesStaleTriggered(t *testing.T) {
	n := &countingNotifier{}
	d, q := newTestDispatcher(t, StaticSettings(model.DefaultSettings()), n)

	enqueue(t, q, "old", testNow.Add(-time.Minute))

	d.Tick(testNow)
	require.Equal(t, 1, n.count())

	// 25h later the triggered record is swept out of the queue file.
	d.Tick(testNow.Add(25 * time.Hour))
	due := q.DueNow(testNow.Add(26 * time.Hour))
	assert.Empty(t, due)
}
