package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ynishioka/daywatch/internal/engine"
	"github.com/ynishioka/daywatch/internal/gate"
	"github.com/ynishioka/daywatch/internal/model"
	"github.com/ynishioka/daywatch/internal/settings"
	"github.com/ynishioka/daywatch/internal/uds"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		runInit(os.Args[2:])
	case "daemon":
		runDaemon(os.Args[2:])
	case "remind":
		runRemind(os.Args[2:])
	case "cancel":
		runCancel(os.Args[2:])
	case "status":
		runStatus(os.Args[2:])
	case "rank":
		runRank(os.Args[2:])
	case "log":
		runLog(os.Args[2:])
	case "pause":
		runSetPush(false)
	case "resume":
		runSetPush(true)
	case "reload":
		runSimple(uds.CmdReload, "settings reloaded")
	case "ping":
		runSimple(uds.CmdPing, "pong")
	case "shutdown":
		runSimple(uds.CmdShutdown, "daemon shutting down")
	case "version":
		fmt.Printf("daywatch %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// findStateDir walks up from the working directory looking for a
// .daywatch/ directory, so any subdirectory of a project works.
func findStateDir() string {
	if dir := os.Getenv("DAYWATCH_DIR"); dir != "" {
		return dir
	}
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, ".daywatch")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func mustStateDir() string {
	dir := findStateDir()
	if dir == "" {
		fmt.Fprintln(os.Stderr, "error: .daywatch/ directory not found. Run 'daywatch init' first.")
		os.Exit(1)
	}
	return dir
}

func loadConfig(stateDir string) (model.Config, error) {
	cfg := model.DefaultConfig()
	data, err := os.ReadFile(filepath.Join(stateDir, "config.yaml"))
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return model.Config{}, fmt.Errorf("read config.yaml: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return model.Config{}, fmt.Errorf("parse config.yaml: %w", err)
	}
	return cfg, nil
}

func newClient(stateDir string) *uds.Client {
	return uds.NewClient(filepath.Join(stateDir, uds.DefaultSocketName))
}

func runInit(args []string) {
	base := "."
	if len(args) > 0 {
		base = args[0]
	}
	stateDir := filepath.Join(base, ".daywatch")
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "init: %v\n", err)
		os.Exit(1)
	}

	files := []struct {
		name    string
		content func() ([]byte, error)
	}{
		{"config.yaml", func() ([]byte, error) { return yaml.Marshal(model.DefaultConfig()) }},
		{"settings.yaml", func() ([]byte, error) { return yaml.Marshal(model.DefaultSettings()) }},
		{"tasks.yaml", func() ([]byte, error) {
			return []byte("schema_version: 1\ntasks: []\n"), nil
		}},
	}
	for _, f := range files {
		path := filepath.Join(stateDir, f.name)
		if _, err := os.Stat(path); err == nil {
			continue // never clobber existing state
		}
		data, err := f.content()
		if err != nil {
			fmt.Fprintf(os.Stderr, "init: render %s: %v\n", f.name, err)
			os.Exit(1)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "init: write %s: %v\n", f.name, err)
			os.Exit(1)
		}
	}

	abs, _ := filepath.Abs(stateDir)
	fmt.Printf("Initialized %s\n", abs)
}

func runRemind(args []string) {
	var title, message, at, in, scheduleID string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--title":
			i++
			title = flagValue(args, i, "--title")
		case "--message":
			i++
			message = flagValue(args, i, "--message")
		case "--at":
			i++
			at = flagValue(args, i, "--at")
		case "--in":
			i++
			in = flagValue(args, i, "--in")
		case "--schedule-id":
			i++
			scheduleID = flagValue(args, i, "--schedule-id")
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: daywatch remind --title <t> (--at <rfc3339> | --in <duration>) [--message <m>] [--schedule-id <id>]\n", args[i])
			os.Exit(1)
		}
	}

	if title == "" {
		fmt.Fprintln(os.Stderr, "--title is required")
		os.Exit(1)
	}
	when, err := resolveWhen(at, in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "remind: %v\n", err)
		os.Exit(1)
	}

	resp := send(uds.CmdRemind, uds.RemindParams{
		Title:      title,
		Message:    message,
		At:         when.Format(time.RFC3339),
		ScheduleID: scheduleID,
	})
	var data struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(resp.Data, &data)
	fmt.Printf("reminder %s scheduled for %s\n", data.ID, when.Format(time.RFC3339))
}

// resolveWhen converts --at/--in into one absolute instant. Exactly one
// of the two must be set.
func resolveWhen(at, in string) (time.Time, error) {
	switch {
	case at != "" && in != "":
		return time.Time{}, fmt.Errorf("--at and --in are mutually exclusive")
	case at != "":
		t, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse --at: %w", err)
		}
		return t, nil
	case in != "":
		d, err := time.ParseDuration(in)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse --in: %w", err)
		}
		return time.Now().Add(d), nil
	default:
		return time.Time{}, fmt.Errorf("one of --at or --in is required")
	}
}

func runCancel(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: daywatch cancel <reminder-id>")
		os.Exit(1)
	}
	send(uds.CmdCancel, uds.CancelParams{ID: args[0]})
	fmt.Printf("reminder %s cancelled\n", args[0])
}

func runStatus(args []string) {
	jsonOutput := false
	for _, a := range args {
		switch a {
		case "--json":
			jsonOutput = true
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: daywatch status [--json]\n", a)
			os.Exit(1)
		}
	}

	resp := send(uds.CmdStatus, nil)
	if jsonOutput {
		fmt.Println(string(resp.Data))
		return
	}

	var st engine.Status
	if err := json.Unmarshal(resp.Data, &st); err != nil {
		fmt.Fprintf(os.Stderr, "status: decode: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("running:  %t\n", st.Running)
	if st.BriefingArmed {
		fmt.Printf("briefing: armed for %s\n", st.BriefingNextFire.Local().Format("15:04"))
	} else {
		fmt.Println("briefing: idle")
	}
	fmt.Printf("alerts:   %d live dedup records\n", st.LiveAlerts)
	fmt.Printf("pending:  %d reminders\n", len(st.PendingReminders))
	for _, r := range st.PendingReminders {
		fmt.Printf("  %s  %s  %s\n", r.ID, r.ScheduledTime.Local().Format(time.RFC3339), r.Title)
	}
}

// rankRow is the wire shape of one ranked task, shared by the daemon
// handler and this printer.
type rankRow struct {
	ID    string     `json:"id"`
	Title string     `json:"title"`
	Score float64    `json:"score"`
	Tier  model.Tier `json:"tier"`
	Due   *time.Time `json:"due,omitempty"`
}

func runRank(args []string) {
	limit := 0
	jsonOutput := false
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--limit":
			i++
			n, err := strconv.Atoi(flagValue(args, i, "--limit"))
			if err != nil || n < 0 {
				fmt.Fprintf(os.Stderr, "invalid --limit value\n")
				os.Exit(1)
			}
			limit = n
		case "--json":
			jsonOutput = true
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: daywatch rank [--limit <n>] [--json]\n", args[i])
			os.Exit(1)
		}
	}

	resp := send(uds.CmdRank, uds.RankParams{Limit: limit})
	if jsonOutput {
		fmt.Println(string(resp.Data))
		return
	}

	var rows []rankRow
	if err := json.Unmarshal(resp.Data, &rows); err != nil {
		fmt.Fprintf(os.Stderr, "rank: decode: %v\n", err)
		os.Exit(1)
	}
	if len(rows) == 0 {
		fmt.Println("no open tasks")
		return
	}
	for i, r := range rows {
		due := "no due date"
		if r.Due != nil {
			due = r.Due.Local().Format("2006-01-02 15:04")
		}
		fmt.Printf("%2d. [%-6s %5.1f] %s  (%s)\n", i+1, r.Tier, r.Score, r.Title, due)
	}
}

// runLog reads the notification history straight from the JSONL file;
// it works whether or not the daemon is up.
func runLog(args []string) {
	limit := 20
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--limit":
			i++
			n, err := strconv.Atoi(flagValue(args, i, "--limit"))
			if err != nil || n <= 0 {
				fmt.Fprintf(os.Stderr, "invalid --limit value\n")
				os.Exit(1)
			}
			limit = n
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: daywatch log [--limit <n>]\n", args[i])
			os.Exit(1)
		}
	}

	stateDir := mustStateDir()
	l, err := gate.NewLog(filepath.Join(stateDir, "notifications.jsonl"), gate.DefaultMaxLogSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "log: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = l.Close() }()

	entries, err := l.Recent(limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "log: %v\n", err)
		os.Exit(1)
	}
	if len(entries) == 0 {
		fmt.Println("no notifications recorded")
		return
	}
	for _, e := range entries {
		delivery := "log-only"
		if e.OSDelivered {
			delivery = "popup"
		}
		fmt.Printf("%s  [%s]  %s: %s\n", e.Timestamp.Local().Format(time.RFC3339), delivery, e.Title, e.Body)
	}
}

// runSetPush flips push_enabled in settings.yaml. The daemon's watcher
// picks the change up; no daemon round trip needed.
func runSetPush(enabled bool) {
	stateDir := mustStateDir()
	src := settings.NewFileSource(filepath.Join(stateDir, "settings.yaml"), nil)
	err := src.Update(func(s *model.Settings) {
		s.PushEnabled = enabled
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "settings: %v\n", err)
		os.Exit(1)
	}
	if enabled {
		fmt.Println("notifications resumed")
	} else {
		fmt.Println("notifications paused")
	}
}

func runSimple(command, okMessage string) {
	send(command, nil)
	fmt.Println(okMessage)
}

// send runs one command against the daemon and exits on any failure.
func send(command string, params any) *uds.Response {
	cli := newClient(mustStateDir())
	resp, err := cli.SendCommand(command, params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if !resp.Success {
		fmt.Fprintf(os.Stderr, "%s: %s\n", resp.Error.Code, resp.Error.Message)
		os.Exit(1)
	}
	return resp
}

func flagValue(args []string, i int, name string) string {
	if i >= len(args) {
		fmt.Fprintf(os.Stderr, "%s requires a value\n", name)
		os.Exit(1)
	}
	return args[i]
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `daywatch %s — priority-driven task notification daemon

Usage: daywatch <command> [options]

Setup:
  init [dir]          Create .daywatch/ with default config and settings
  daemon              Run the scheduling daemon in the foreground

Reminders:
  remind --title <t> (--at <rfc3339> | --in <duration>) [--message <m>] [--schedule-id <id>]
  cancel <id>         Cancel a pending reminder

Inspection:
  status [--json]     Daemon and queue status
  rank [--limit <n>] [--json]
                      Tasks ordered by priority score
  log [--limit <n>]   Recent notification history

Control:
  pause               Disable all notifications
  resume              Re-enable notifications
  reload              Force the daemon to re-read settings.yaml
  shutdown            Stop the daemon
  ping                Check daemon liveness
  version             Show version
  help                Show this help

`, version)
}
