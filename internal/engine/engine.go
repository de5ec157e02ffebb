// Package engine wires the priority scorer, the alert ledger, the
// reminder queue, and the notification gate into three independently
// scheduled producers behind a single start/stop facade.
package engine

import (
	"context"
	"fmt"
	"io"
	"log"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/ynishioka/daywatch/internal/events"
	"github.com/ynishioka/daywatch/internal/gate"
	"github.com/ynishioka/daywatch/internal/ledger"
	"github.com/ynishioka/daywatch/internal/model"
	"github.com/ynishioka/daywatch/internal/notify"
	"github.com/ynishioka/daywatch/internal/store"
)

type logLevel int

const (
	levelDebug logLevel = iota
	levelInfo
	levelWarn
	levelError
)

func parseLogLevel(s string) logLevel {
	switch strings.ToLower(s) {
	case "debug":
		return levelDebug
	case "warn", "warning":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

// logFunc is the leveled logging hook handed to producers.
type logFunc func(level logLevel, format string, args ...any)

// Deps are the collaborator capabilities injected into the engine.
type Deps struct {
	Tasks    TaskSource
	Settings SettingsSource
	Notifier notify.Notifier
	Store    store.Store

	// Optional:
	Bus        *events.Bus         // event stream for hosts
	Log        *gate.Log           // in-app notification log
	Permission gate.PermissionFunc // nil means granted
	LogOutput  io.Writer           // engine log destination, default stderr
}

// Engine is the process-wide scheduling facade. Start arms the three
// producers; Stop cancels every pending timer deterministically. Both
// are idempotent; Start after Stop re-arms cleanly.
type Engine struct {
	cfg      model.Config
	logger   *log.Logger
	logLevel logLevel
	now      func() time.Time

	tasks    TaskSource
	settings SettingsSource
	gate     *gate.Gate
	alerts   *ledger.AlertLedger
	queue    *ledger.ReminderQueue

	watcher    *DeadlineWatcher
	briefing   *BriefingScheduler
	dispatcher *ReminderDispatcher

	mu          sync.Mutex
	running     bool
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	unsubscribe func()
}

// New validates the configuration and wires an engine. Nothing is armed
// until Start.
func New(cfg model.Config, deps Deps) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	if deps.Tasks == nil {
		return nil, fmt.Errorf("engine: TaskSource is required")
	}
	if deps.Settings == nil {
		return nil, fmt.Errorf("engine: SettingsSource is required")
	}
	if deps.Notifier == nil {
		return nil, fmt.Errorf("engine: Notifier is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("engine: Store is required")
	}
	if err := deps.Settings.Current().Validate(); err != nil {
		return nil, fmt.Errorf("engine settings: %w", err)
	}

	out := deps.LogOutput
	if out == nil {
		out = log.Default().Writer()
	}
	logger := log.New(out, "", 0)

	e := &Engine{
		cfg:      cfg,
		logger:   logger,
		logLevel: parseLogLevel(cfg.Logging.Level),
		now:      time.Now,
		tasks:    deps.Tasks,
		settings: deps.Settings,
		alerts:   ledger.NewAlertLedger(deps.Store),
		queue:    ledger.NewReminderQueue(deps.Store),
	}
	e.gate = gate.New(deps.Notifier, deps.Log, deps.Bus, deps.Permission, logger)
	e.watcher = newDeadlineWatcher(deps.Tasks, deps.Settings, e.alerts, e.gate, e.log)
	e.briefing = newBriefingScheduler(deps.Tasks, deps.Settings, e.gate, deps.Bus, e.log, func() time.Time { return e.now() })
	e.dispatcher = newReminderDispatcher(e.queue, deps.Settings, e.gate, deps.Bus, e.log)

	return e, nil
}

// Start arms all three producers and runs one immediate evaluation pass,
// so a freshly started host does not wait a full tick for an already-due
// condition. Calling Start on a running engine is a no-op.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		e.log(levelDebug, "start: already running")
		return nil
	}

	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.briefing.bind(e.ctx)

	// Settings changes re-arm the briefing timer; the old timer is
	// always cancelled first inside Schedule.
	e.unsubscribe = e.settings.Subscribe(func(model.Settings) {
		e.briefing.Schedule()
	})

	e.briefing.Schedule()

	// Immediate synchronous pass before the loops take over.
	now := e.now()
	e.tickSafe("deadline", func() { e.watcher.Tick(now) })
	e.tickSafe("reminder", func() { e.dispatcher.Tick(now) })

	e.wg.Add(2)
	go e.loop("deadline", e.tickInterval(e.cfg.Engine.DeadlineTickSec), e.watcher.Tick)
	go e.loop("reminder", e.tickInterval(e.cfg.Engine.ReminderTickSec), e.dispatcher.Tick)

	e.running = true
	e.log(levelInfo, "engine started (deadline every %ds, reminders every %ds)",
		e.cfg.Engine.DeadlineTickSec, e.cfg.Engine.ReminderTickSec)
	return nil
}

// Stop cancels the deadline interval, the briefing timer, and the
// reminder interval, then waits for in-flight ticks to drain. After
// Stop returns, no notification fires. Idempotent.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.cancel()
	e.briefing.Cancel()
	if e.unsubscribe != nil {
		e.unsubscribe()
		e.unsubscribe = nil
	}
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	timeout := e.cfg.Engine.ShutdownTimeoutSec
	if timeout <= 0 {
		timeout = 10
	}
	select {
	case <-done:
		e.log(levelInfo, "engine stopped")
	case <-time.After(time.Duration(timeout) * time.Second):
		e.log(levelWarn, "engine stop timed out after %ds", timeout)
	}
}

// loop drives one producer's periodic ticks until the engine stops.
func (e *Engine) loop(name string, interval time.Duration, tick func(time.Time)) {
	defer e.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.tickSafe(name, func() { tick(e.now()) })
		}
	}
}

// tickSafe wraps a tick body so one bad task or record cannot kill the
// producer's timer.
func (e *Engine) tickSafe(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.log(levelError, "%s: tick panic: %v\n%s", name, r, debug.Stack())
		}
	}()
	fn()
}

func (e *Engine) tickInterval(seconds int) time.Duration {
	if seconds <= 0 {
		seconds = 60
	}
	return time.Duration(seconds) * time.Second
}

// ScheduleReminder enqueues a one-shot reminder and returns its ID.
func (e *Engine) ScheduleReminder(title, message string, at time.Time, scheduleID string) (string, error) {
	if title == "" {
		return "", fmt.Errorf("schedule reminder: title is required")
	}
	if at.IsZero() {
		return "", fmt.Errorf("schedule reminder: scheduled time is required")
	}

	rem := model.ScheduledReminder{
		ID:            model.NewReminderID(),
		Title:         title,
		Message:       message,
		ScheduledTime: at,
		ScheduleID:    scheduleID,
		CreatedAt:     e.now(),
	}
	if err := e.queue.Enqueue(rem); err != nil {
		return "", err
	}
	e.log(levelInfo, "reminder scheduled id=%s at=%s", rem.ID, at.Format(time.RFC3339))
	return rem.ID, nil
}

// CancelReminder removes an untriggered reminder.
func (e *Engine) CancelReminder(id string) (bool, error) {
	if err := model.ValidateReminderID(id); err != nil {
		return false, err
	}
	return e.queue.Cancel(id)
}

// Status is a point-in-time view for control surfaces.
type Status struct {
	Running          bool                      `json:"running"`
	BriefingArmed    bool                      `json:"briefing_armed"`
	BriefingNextFire time.Time                 `json:"briefing_next_fire,omitempty"`
	LiveAlerts       int                       `json:"live_alerts"`
	PendingReminders []model.ScheduledReminder `json:"pending_reminders"`
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	running := e.running
	e.mu.Unlock()

	armed, next := e.briefing.Armed()
	return Status{
		Running:          running,
		BriefingArmed:    armed,
		BriefingNextFire: next,
		LiveAlerts:       e.alerts.Len(),
		PendingReminders: e.queue.Pending(),
	}
}

func (e *Engine) log(level logLevel, format string, args ...any) {
	if level < e.logLevel {
		return
	}
	levelStr := "INFO"
	switch level {
	case levelDebug:
		levelStr = "DEBUG"
	case levelWarn:
		levelStr = "WARN"
	case levelError:
		levelStr = "ERROR"
	}
	msg := fmt.Sprintf(format, args...)
	e.logger.Printf("%s %s engine: %s", time.Now().Format(time.RFC3339), levelStr, msg)
}
