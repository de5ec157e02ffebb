package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ynishioka/daywatch/internal/events"
	"github.com/ynishioka/daywatch/internal/gate"
	"github.com/ynishioka/daywatch/internal/model"
	"github.com/ynishioka/daywatch/internal/priority"
)

// briefingState tracks the one-shot timer lifecycle.
type briefingState string

const (
	briefingIdle      briefingState = "idle"
	briefingScheduled briefingState = "scheduled"
	briefingFired     briefingState = "fired"
)

// BriefingScheduler delivers the daily digest with a self-rescheduling
// one-shot timer: the fire handler computes and arms the next fire
// itself, so the schedule never drifts and a settings change never
// leaves two armed timers behind.
type BriefingScheduler struct {
	tasks    TaskSource
	settings SettingsSource
	gate     *gate.Gate
	bus      *events.Bus
	log      logFunc
	now      func() time.Time

	// single guards the fire path: a slow task fetch cannot overlap a
	// second fired evaluation.
	single singleflight.Group

	mu       sync.Mutex
	state    briefingState
	timer    *time.Timer
	nextFire time.Time
	ctx      context.Context
	inflight sync.WaitGroup

	snapMu   sync.Mutex
	lastSnap []model.Task
}

func newBriefingScheduler(tasks TaskSource, settings SettingsSource, g *gate.Gate, bus *events.Bus, log logFunc, now func() time.Time) *BriefingScheduler {
	return &BriefingScheduler{
		tasks:    tasks,
		settings: settings,
		gate:     g,
		bus:      bus,
		log:      log,
		now:      now,
		state:    briefingIdle,
		ctx:      context.Background(),
	}
}

func (b *BriefingScheduler) bind(ctx context.Context) {
	b.mu.Lock()
	b.ctx = ctx
	b.mu.Unlock()
}

// Schedule cancels any pending fire and arms the timer for the next
// configured briefing instant. With briefing disabled it leaves the
// scheduler idle. At most one timer is armed at any instant.
func (b *BriefingScheduler) Schedule() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.state = briefingIdle
	b.nextFire = time.Time{}

	cfg := b.settings.Current().DailyBriefing
	if !cfg.Enabled {
		return
	}

	now := b.now()
	next, ok := nextDailyInstant(cfg.Time, now)
	if !ok {
		b.log(levelWarn, "briefing: unusable time %q, staying idle", cfg.Time)
		return
	}

	b.nextFire = next
	b.state = briefingScheduled
	b.timer = time.AfterFunc(next.Sub(now), b.fire)
	b.log(levelDebug, "briefing: armed for %s", next.Format(time.RFC3339))
}

// Cancel disarms the timer without re-arming, then waits for any fire
// already past the timer to drain. With the bound context cancelled
// first, the draining fire cannot notify.
func (b *BriefingScheduler) Cancel() {
	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.state = briefingIdle
	b.nextFire = time.Time{}
	b.mu.Unlock()

	b.inflight.Wait()
}

// Armed reports whether a fire is pending, and for when.
func (b *BriefingScheduler) Armed() (bool, time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == briefingScheduled, b.nextFire
}

// fire is the timer callback. It runs the digest once (singleflight
// collapses any overlap), then immediately re-arms for the next day.
func (b *BriefingScheduler) fire() {
	b.mu.Lock()
	ctx := b.ctx
	// A fire racing Stop must not notify after Stop returns. The
	// inflight registration happens under the same lock so Cancel
	// either sees this fire or this fire sees the cancellation.
	if ctx.Err() != nil {
		b.mu.Unlock()
		return
	}
	b.inflight.Add(1)
	b.state = briefingFired
	b.mu.Unlock()
	defer b.inflight.Done()

	_, _, _ = b.single.Do("fire", func() (any, error) {
		b.runDigest(ctx, b.now())
		return nil, nil
	})

	b.mu.Lock()
	cancelled := b.ctx.Err() != nil
	b.mu.Unlock()
	if !cancelled {
		b.Schedule()
	}
}

// runDigest builds and proposes the one-line daily digest.
func (b *BriefingScheduler) runDigest(ctx context.Context, now time.Time) {
	settings := b.settings.Current()

	tasks, err := b.tasks.ListActive()
	if err != nil {
		// Summary fetch failure falls back to the last cached snapshot;
		// the re-arm in fire() is never skipped either way.
		b.snapMu.Lock()
		tasks = b.lastSnap
		b.snapMu.Unlock()
		b.log(levelWarn, "briefing: task fetch failed (%v), using cached snapshot of %d tasks", err, len(tasks))
	} else {
		b.snapMu.Lock()
		b.lastSnap = tasks
		b.snapMu.Unlock()
	}

	// The fetch is the one suspension point in this producer; the
	// scheduler may have been stopped while it was in flight.
	if ctx.Err() != nil {
		b.log(levelDebug, "briefing: stopped during fetch, dropping stale digest")
		return
	}

	total, urgent := summarize(tasks, now)
	title := "☀️ Daily briefing"
	body := digestLine(total, urgent)

	if b.gate.TryNotify(title, body, "daily-briefing", settings, now) && b.bus != nil {
		b.bus.Publish(events.TypeBriefingFired, map[string]string{
			"total":  fmt.Sprint(total),
			"urgent": fmt.Sprint(urgent),
		})
	}
}

// summarize counts open tasks and how many of them are urgent right now.
func summarize(tasks []model.Task, now time.Time) (total, urgent int) {
	for _, r := range priority.Rank(tasks, now) {
		if r.Task.Completed {
			continue
		}
		total++
		if r.Priority.Tier == model.TierHigh {
			urgent++
		}
	}
	return total, urgent
}

func digestLine(total, urgent int) string {
	switch {
	case total == 0:
		return "No open tasks today. Enjoy the slack."
	case urgent == 0:
		return fmt.Sprintf("%d open tasks, nothing urgent yet.", total)
	default:
		return fmt.Sprintf("%d open tasks, %d need attention now.", total, urgent)
	}
}

// nextDailyInstant resolves "HH:mm" to the next occurrence: today if
// still ahead, otherwise tomorrow.
func nextDailyInstant(hhmm string, now time.Time) (time.Time, bool) {
	minutes := model.ParseMinutesOfDay(hhmm)
	if minutes < 0 {
		return time.Time{}, false
	}
	next := time.Date(now.Year(), now.Month(), now.Day(), minutes/60, minutes%60, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next, true
}
