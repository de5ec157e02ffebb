package model

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ReminderIDPrefix marks reminder IDs so they are distinguishable from
// task and schedule IDs in logs and on the wire.
const ReminderIDPrefix = "rem_"

// NewReminderID returns a fresh reminder ID.
func NewReminderID() string {
	return ReminderIDPrefix + uuid.NewString()
}

// ValidateReminderID checks the prefix and UUID shape of an ID received
// from the CLI or a host application.
func ValidateReminderID(id string) error {
	raw, ok := strings.CutPrefix(id, ReminderIDPrefix)
	if !ok {
		return fmt.Errorf("reminder id %q: missing %q prefix", id, ReminderIDPrefix)
	}
	if _, err := uuid.Parse(raw); err != nil {
		return fmt.Errorf("reminder id %q: %w", id, err)
	}
	return nil
}
