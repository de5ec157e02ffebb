package engine

import (
	"fmt"
	"time"

	"github.com/ynishioka/daywatch/internal/gate"
	"github.com/ynishioka/daywatch/internal/ledger"
	"github.com/ynishioka/daywatch/internal/priority"
)

// DeadlineWatcher scans the task snapshot for deadlines entering the
// user's alert window. It owns no state beyond the alert ledger; each
// tick re-reads tasks and settings.
type DeadlineWatcher struct {
	tasks    TaskSource
	settings SettingsSource
	ledger   *ledger.AlertLedger
	gate     *gate.Gate
	weights  priority.Weights
	log      logFunc
}

func newDeadlineWatcher(tasks TaskSource, settings SettingsSource, al *ledger.AlertLedger, g *gate.Gate, log logFunc) *DeadlineWatcher {
	return &DeadlineWatcher{
		tasks:    tasks,
		settings: settings,
		ledger:   al,
		gate:     g,
		weights:  priority.DefaultWeights(),
		log:      log,
	}
}

// Tick runs one evaluation pass at now.
func (w *DeadlineWatcher) Tick(now time.Time) {
	settings := w.settings.Current()
	if !settings.DeadlineAlert.Enabled {
		return
	}

	tasks, err := w.tasks.ListActive()
	if err != nil {
		w.log(levelWarn, "deadline: task snapshot unavailable: %v", err)
		return
	}

	for _, task := range tasks {
		if task.Completed || task.DueDate == nil {
			continue
		}

		due := priority.EffectiveDue(task, now, w.weights)
		minutesUntilDue := due.Sub(now).Minutes()

		// Already past due is a "missed" deadline, not an "approaching"
		// one; the host's overdue styling covers it.
		if minutesUntilDue <= 0 || minutesUntilDue > float64(settings.DeadlineAlert.MinutesBefore) {
			continue
		}
		if w.ledger.HasFired(task.ID) {
			continue
		}

		title := "⏰ Deadline approaching: " + task.Title
		body := fmt.Sprintf("%q is due in %d minutes", task.Title, int(minutesUntilDue))
		w.gate.TryNotify(title, body, "deadline-"+task.ID, settings, now)

		// Record regardless of the gate's verdict: a suppressed alert
		// inside quiet hours is still spent for this 24h window rather
		// than re-proposed every minute.
		if err := w.ledger.RecordFired(task.ID, now); err != nil {
			w.log(levelWarn, "deadline: record %s: %v", task.ID, err)
		}
	}

	// Prune after evaluation so a record that just fired survives its
	// own tick.
	if err := w.ledger.Prune(now); err != nil {
		w.log(levelWarn, "deadline: prune: %v", err)
	}
}
