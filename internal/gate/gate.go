// Package gate implements the notification policy chokepoint. Every
// producer proposes notifications here; none may bypass it.
package gate

import (
	"log"
	"time"

	"github.com/ynishioka/daywatch/internal/events"
	"github.com/ynishioka/daywatch/internal/model"
	"github.com/ynishioka/daywatch/internal/notify"
)

// PermissionFunc probes whether the platform currently grants
// notification permission. A nil probe means granted.
type PermissionFunc func() bool

// Gate decides whether an otherwise-eligible alert may actually be
// shown, given the current settings and time of day. It is safe for
// interleaved calls from multiple producers: the decision is pure and
// the log append is serialized.
type Gate struct {
	notifier   notify.Notifier
	log        *Log
	bus        *events.Bus
	permission PermissionFunc
	logger     *log.Logger
}

// New wires a gate. bus may be nil (no events published); logger may be
// nil (stdlib default).
func New(notifier notify.Notifier, l *Log, bus *events.Bus, permission PermissionFunc, logger *log.Logger) *Gate {
	if logger == nil {
		logger = log.Default()
	}
	return &Gate{notifier: notifier, log: l, bus: bus, permission: permission, logger: logger}
}

// TryNotify applies the policy chain and reports whether the
// notification was shown to the user (OS popup or in-app log).
//
// Rejections: push disabled, or inside the do-not-disturb window.
// Degradation: permission absent means no OS popup, but the in-app log
// entry is still written, so alerts are never silently lost.
func (g *Gate) TryNotify(title, body, tag string, settings model.Settings, now time.Time) bool {
	if !settings.PushEnabled {
		g.suppressed(tag, "push_disabled")
		return false
	}
	if settings.DoNotDisturb.Enabled && inDNDWindow(settings.DoNotDisturb, now) {
		g.suppressed(tag, "do_not_disturb")
		return false
	}

	entry := LogEntry{Timestamp: now, Title: title, Body: body, Tag: tag}

	if g.permission != nil && !g.permission() {
		entry.Note = "os permission absent, logged only"
	} else {
		if err := g.notifier.Show(title, body, tag); err != nil {
			g.logger.Printf("WARN gate: notifier failed for tag=%s: %v", tag, err)
			entry.Note = "notifier error, logged only"
		} else {
			entry.OSDelivered = true
		}
	}

	if g.log != nil {
		if err := g.log.Append(entry); err != nil {
			g.logger.Printf("WARN gate: log append failed for tag=%s: %v", tag, err)
		}
	}
	if g.bus != nil {
		g.bus.Publish(events.TypeNotificationShown, map[string]string{
			"tag":          tag,
			"title":        title,
			"os_delivered": boolStr(entry.OSDelivered),
		})
	}
	return true
}

func (g *Gate) suppressed(tag, reason string) {
	g.logger.Printf("DEBUG gate: suppressed tag=%s reason=%s", tag, reason)
	if g.bus != nil {
		g.bus.Publish(events.TypeNotificationSuppressed, map[string]string{
			"tag":    tag,
			"reason": reason,
		})
	}
}

// QuietHours reports whether now falls inside an enabled do-not-disturb
// window. The reminder dispatcher uses it to defer a whole tick.
func QuietHours(settings model.Settings, now time.Time) bool {
	return settings.DoNotDisturb.Enabled && inDNDWindow(settings.DoNotDisturb, now)
}

// inDNDWindow tests now against the quiet-hours window in minutes of
// day. A window whose start is after its end spans midnight.
func inDNDWindow(dnd model.DoNotDisturbConfig, now time.Time) bool {
	start := model.ParseMinutesOfDay(dnd.Start)
	end := model.ParseMinutesOfDay(dnd.End)
	if start < 0 || end < 0 {
		// Malformed window: fail open, never suppress.
		return false
	}

	cur := now.Hour()*60 + now.Minute()
	if start > end {
		return cur >= start || cur < end
	}
	return cur >= start && cur < end
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
