package notify

import (
	"fmt"
	"os/exec"
	"strings"
)

// MacOS shows notifications via osascript. Sound mirrors the user's
// notification sound setting.
type MacOS struct {
	Sound bool
}

func (m MacOS) Show(title, body, _ string) error {
	title = escapeAppleScript(title)
	body = escapeAppleScript(body)

	script := fmt.Sprintf(`display notification %q with title %q`, body, title)
	if m.Sound {
		script += ` sound name "default"`
	}

	cmd := exec.Command("osascript", "-e", script)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("osascript: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func escapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}
