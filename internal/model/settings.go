package model

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var hhmmRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// Settings is the user-facing notification configuration. It is a
// persisted singleton; producers read a fresh snapshot on every tick and
// never cache one across ticks.
type Settings struct {
	PushEnabled   bool                `yaml:"push_enabled" json:"push_enabled"`
	Sound         bool                `yaml:"sound" json:"sound"`
	Vibration     bool                `yaml:"vibration" json:"vibration"`
	DoNotDisturb  DoNotDisturbConfig  `yaml:"do_not_disturb" json:"do_not_disturb"`
	DailyBriefing DailyBriefingConfig `yaml:"daily_briefing" json:"daily_briefing"`
	DeadlineAlert DeadlineAlertConfig `yaml:"deadline_alert" json:"deadline_alert"`
}

type DoNotDisturbConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Start   string `yaml:"start" json:"start"`
	End     string `yaml:"end" json:"end"`
}

type DailyBriefingConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Time    string `yaml:"time" json:"time"`
}

type DeadlineAlertConfig struct {
	Enabled       bool `yaml:"enabled" json:"enabled"`
	MinutesBefore int  `yaml:"minutes_before" json:"minutes_before"`
}

// DefaultSettings returns the settings used when no persisted settings
// exist or the persisted file is unreadable.
func DefaultSettings() Settings {
	return Settings{
		PushEnabled: true,
		Sound:       true,
		Vibration:   true,
		DoNotDisturb: DoNotDisturbConfig{
			Enabled: false,
			Start:   "22:00",
			End:     "08:00",
		},
		DailyBriefing: DailyBriefingConfig{
			Enabled: true,
			Time:    "08:00",
		},
		DeadlineAlert: DeadlineAlertConfig{
			Enabled:       true,
			MinutesBefore: 60,
		},
	}
}

// Validate checks setup-time contract violations. Runtime code never
// calls this on snapshots; it runs when settings are loaded or updated.
func (s Settings) Validate() error {
	if s.DeadlineAlert.MinutesBefore < 0 {
		return fmt.Errorf("deadline_alert.minutes_before must be >= 0, got %d", s.DeadlineAlert.MinutesBefore)
	}
	for _, f := range []struct {
		name  string
		value string
	}{
		{"do_not_disturb.start", s.DoNotDisturb.Start},
		{"do_not_disturb.end", s.DoNotDisturb.End},
		{"daily_briefing.time", s.DailyBriefing.Time},
	} {
		if !hhmmRegex.MatchString(f.value) {
			return fmt.Errorf("%s: invalid HH:mm value %q", f.name, f.value)
		}
	}
	return nil
}

// ParseMinutesOfDay converts an "HH:mm" string to minutes since
// midnight. Returns -1 for malformed input (callers fail open).
func ParseMinutesOfDay(hhmm string) int {
	if !hhmmRegex.MatchString(hhmm) {
		return -1
	}
	parts := strings.SplitN(hhmm, ":", 2)
	h, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	return h*60 + m
}
