package model

import "fmt"

// Config is the engine/daemon configuration, loaded from
// <state-dir>/config.yaml when running as a daemon.
type Config struct {
	StateDir string        `yaml:"state_dir"`
	Engine   EngineConfig  `yaml:"engine"`
	Storage  StorageConfig `yaml:"storage"`
	Logging  LoggingConfig `yaml:"logging"`
}

type EngineConfig struct {
	DeadlineTickSec    int `yaml:"deadline_tick_sec"`
	ReminderTickSec    int `yaml:"reminder_tick_sec"`
	ShutdownTimeoutSec int `yaml:"shutdown_timeout_sec"`
}

type StorageConfig struct {
	// Backend selects the persistence store: "file" (default) or "sqlite".
	Backend string `yaml:"backend"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the configuration used when no config file exists.
func DefaultConfig() Config {
	return Config{
		Engine: EngineConfig{
			DeadlineTickSec:    60,
			ReminderTickSec:    60,
			ShutdownTimeoutSec: 10,
		},
		Storage: StorageConfig{Backend: "file"},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Validate rejects setup-time contract violations before the engine starts.
func (c Config) Validate() error {
	if c.Engine.DeadlineTickSec < 0 {
		return fmt.Errorf("engine.deadline_tick_sec must be >= 0, got %d", c.Engine.DeadlineTickSec)
	}
	if c.Engine.ReminderTickSec < 0 {
		return fmt.Errorf("engine.reminder_tick_sec must be >= 0, got %d", c.Engine.ReminderTickSec)
	}
	switch c.Storage.Backend {
	case "", "file", "sqlite":
	default:
		return fmt.Errorf("storage.backend must be %q or %q, got %q", "file", "sqlite", c.Storage.Backend)
	}
	return nil
}
