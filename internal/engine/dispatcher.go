package engine

import (
	"time"

	"github.com/ynishioka/daywatch/internal/events"
	"github.com/ynishioka/daywatch/internal/gate"
	"github.com/ynishioka/daywatch/internal/ledger"
)

// ReminderDispatcher drains due one-shot reminders from the queue on a
// periodic tick.
type ReminderDispatcher struct {
	queue    *ledger.ReminderQueue
	settings SettingsSource
	gate     *gate.Gate
	bus      *events.Bus
	log      logFunc
}

func newReminderDispatcher(q *ledger.ReminderQueue, settings SettingsSource, g *gate.Gate, bus *events.Bus, log logFunc) *ReminderDispatcher {
	return &ReminderDispatcher{queue: q, settings: settings, gate: g, bus: bus, log: log}
}

// Tick runs one dispatch pass at now.
//
// During quiet hours (or with push off) the whole tick is skipped:
// reminders are deferred, not cancelled. Their scheduled time has
// already elapsed, so DueNow keeps returning them until a tick outside
// the window fires them.
func (d *ReminderDispatcher) Tick(now time.Time) {
	settings := d.settings.Current()
	if !settings.PushEnabled || gate.QuietHours(settings, now) {
		d.log(levelDebug, "reminder: tick deferred (push=%t quiet=%t)", settings.PushEnabled, gate.QuietHours(settings, now))
		return
	}

	for _, rem := range d.queue.DueNow(now) {
		d.gate.TryNotify("🔔 "+rem.Title, rem.Message, "reminder-"+rem.ID, settings, now)

		if err := d.queue.MarkTriggered(rem.ID, now); err != nil {
			d.log(levelWarn, "reminder: mark %s: %v", rem.ID, err)
			continue
		}
		if d.bus != nil {
			d.bus.Publish(events.TypeReminderTriggered, map[string]string{
				"id":    rem.ID,
				"title": rem.Title,
			})
		}
	}

	if err := d.queue.PurgeOld(now); err != nil {
		d.log(levelWarn, "reminder: purge: %v", err)
	}
}
