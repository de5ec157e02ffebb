package engine

import "github.com/ynishioka/daywatch/internal/model"

// TaskSource is the borrowed, read-only view of the host's task store.
type TaskSource interface {
	ListActive() ([]model.Task, error)
}

// SettingsSource yields the latest settings snapshot. Producers call
// Current on every tick and never cache a snapshot across ticks. The
// change hook lets the engine re-arm the briefing timer when the user
// reconfigures it.
type SettingsSource interface {
	Current() model.Settings
	Subscribe(func(model.Settings)) func()
}

// StaticSettings adapts a fixed Settings value to SettingsSource. Used
// by tests and by hosts without persistent settings.
type StaticSettings model.Settings

func (s StaticSettings) Current() model.Settings               { return model.Settings(s) }
func (s StaticSettings) Subscribe(func(model.Settings)) func() { return func() {} }

// TaskSourceFunc adapts a function to TaskSource.
type TaskSourceFunc func() ([]model.Task, error)

func (f TaskSourceFunc) ListActive() ([]model.Task, error) { return f() }
