package gate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultMaxLogSize caps the in-app notification log at 10MB before
// rotation.
const DefaultMaxLogSize = 10 * 1024 * 1024

// LogEntry is one line of the in-app notification log. Entries are
// appended for every notification that passed the gate, including ones
// that degraded to log-only because OS permission was absent.
type LogEntry struct {
	Timestamp   time.Time `json:"timestamp"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Tag         string    `json:"tag"`
	OSDelivered bool      `json:"os_delivered"`
	Note        string    `json:"note,omitempty"`
}

// Log is an append-only JSONL file with size-based rotation. Appends are
// mutex-guarded so interleaved producer ticks cannot tear a line.
type Log struct {
	mu          sync.Mutex
	path        string
	file        *os.File
	currentSize int64
	maxSize     int64
}

// NewLog opens (creating if needed) the notification log at path.
func NewLog(path string, maxSize int64) (*Log, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxLogSize
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	l := &Log{path: path, maxSize: maxSize}
	if err := l.open(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Log) open() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open notification log: %w", err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat notification log: %w", err)
	}
	l.file = f
	l.currentSize = stat.Size()
	return nil
}

// Append writes one entry. Rotation happens before the write when the
// file is already over budget.
func (l *Log) Append(entry LogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.currentSize >= l.maxSize {
		if err := l.rotate(); err != nil {
			return err
		}
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal log entry: %w", err)
	}
	line = append(line, '\n')

	n, err := l.file.Write(line)
	l.currentSize += int64(n)
	if err != nil {
		return fmt.Errorf("append log entry: %w", err)
	}
	return nil
}

// rotate moves the current file into an archive/ sibling directory and
// starts a fresh one. Caller holds the mutex.
func (l *Log) rotate() error {
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("close log for rotation: %w", err)
	}

	archiveDir := filepath.Join(filepath.Dir(l.path), "archive")
	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}
	archived := filepath.Join(archiveDir,
		fmt.Sprintf("%s.%s", filepath.Base(l.path), time.Now().UTC().Format("20060102T150405")))
	if err := os.Rename(l.path, archived); err != nil {
		return fmt.Errorf("archive log: %w", err)
	}

	return l.open()
}

// Recent returns up to n of the newest entries, newest first. Unparseable
// lines are skipped.
func (l *Log) Recent(n int) ([]LogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	content, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read notification log: %w", err)
	}

	var entries []LogEntry
	for _, line := range splitLines(content) {
		var e LogEntry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}

	// Newest first.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}

// Close closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func splitLines(content []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range content {
		if b == '\n' {
			if i > start {
				lines = append(lines, content[start:i])
			}
			start = i + 1
		}
	}
	if start < len(content) {
		lines = append(lines, content[start:])
	}
	return lines
}
