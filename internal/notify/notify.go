// Package notify provides the desktop notification capability injected
// into the scheduling engine.
package notify

// Notifier shows an OS-level notification. Implementations may no-op
// when the platform denies notification permission; the engine's gate
// still records the alert in the in-app log in that case.
type Notifier interface {
	Show(title, body, tag string) error
}

// Func adapts a function to the Notifier interface.
type Func func(title, body, tag string) error

func (f Func) Show(title, body, tag string) error { return f(title, body, tag) }

// Nop discards notifications. Useful for tests and headless hosts.
var Nop Notifier = Func(func(string, string, string) error { return nil })
