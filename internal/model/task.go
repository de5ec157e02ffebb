// Package model defines the data structures for daywatch's tasks, settings,
// reminders, and engine configuration.
package model

import "time"

const (
	// DefaultImportance is assumed when a task carries no importance.
	DefaultImportance = 5
	// DefaultEstimatedMinutes is assumed when a task carries no estimate.
	DefaultEstimatedMinutes = 60
)

// Task is a read-only snapshot of a task owned by the host's task store.
// The engine never mutates tasks; it only scores them and decides whether
// to alert.
type Task struct {
	ID               string     `yaml:"id" json:"id"`
	Title            string     `yaml:"title" json:"title"`
	DueDate          *time.Time `yaml:"due_date,omitempty" json:"due_date,omitempty"`
	StartDate        *time.Time `yaml:"start_date,omitempty" json:"start_date,omitempty"`
	Importance       int        `yaml:"importance" json:"importance"`
	EstimatedMinutes float64    `yaml:"estimated_minutes" json:"estimated_minutes"`
	Completed        bool       `yaml:"completed" json:"completed"`
}

// Normalize fills zero-valued optional fields with their defaults and
// clamps importance into 1..10. Malformed input is corrected, never
// rejected.
func (t Task) Normalize() Task {
	if t.Importance == 0 {
		t.Importance = DefaultImportance
	}
	if t.Importance < 1 {
		t.Importance = 1
	}
	if t.Importance > 10 {
		t.Importance = 10
	}
	if t.EstimatedMinutes <= 0 {
		t.EstimatedMinutes = DefaultEstimatedMinutes
	}
	return t
}

// Tier buckets a priority score for display.
type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

// PriorityResult is the computed urgency of one task at one instant.
// It is derived state: recomputed on every read, never persisted.
type PriorityResult struct {
	Score float64 `json:"score"`
	Tier  Tier    `json:"tier"`
}
