package model

import "time"

// ScheduledReminder is a one-shot, absolute-time-triggered reminder.
// Lifecycle: enqueued with Triggered=false, flipped to Triggered=true
// exactly once when its scheduled time elapses, then purged ~24h after
// triggering. The Triggered flag is the replay fence: a triggered
// reminder is never re-fired, even after a process restart re-reads the
// persisted queue.
type ScheduledReminder struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Message       string     `json:"message"`
	ScheduledTime time.Time  `json:"scheduled_time"`
	ScheduleID    string     `json:"schedule_id,omitempty"`
	Triggered     bool       `json:"triggered"`
	TriggeredAt   *time.Time `json:"triggered_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// AlertRecord is one row of the deadline dedup ledger: "a deadline alert
// for this task already fired at FiredAt". Records expire 24h after
// firing, bounding the at-most-once guarantee to a 24h window.
type AlertRecord struct {
	TaskID  string    `json:"task_id"`
	FiredAt time.Time `json:"fired_at"`
}

// AlertWindow is how long an AlertRecord suppresses re-alerting, and how
// long a triggered reminder is retained before purging.
const AlertWindow = 24 * time.Hour
