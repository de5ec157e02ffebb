// Package settings provides the file-backed notification settings
// source. The engine reads a fresh snapshot on every tick; hosts and
// out-of-band editors mutate the YAML file, and a watcher notifies
// subscribers so timer-based producers can re-arm.
package settings

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/ynishioka/daywatch/internal/model"
)

// FileSource keeps the current settings snapshot in memory, persisted as
// a YAML file the user can edit by hand.
type FileSource struct {
	path   string
	logger *log.Logger

	mu      sync.RWMutex
	current model.Settings

	subMu  sync.Mutex
	subs   map[int]func(model.Settings)
	nextID int
}

// NewFileSource loads settings from path. A missing or unreadable file
// yields the defaults (fail open); the file is created on first Update.
func NewFileSource(path string, logger *log.Logger) *FileSource {
	if logger == nil {
		logger = log.Default()
	}
	s := &FileSource{
		path:    path,
		logger:  logger,
		current: model.DefaultSettings(),
		subs:    make(map[int]func(model.Settings)),
	}

	loaded, err := load(path)
	if err != nil {
		logger.Printf("WARN settings: %v, using defaults", err)
		return s
	}
	s.current = loaded
	return s
}

func load(path string) (model.Settings, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return model.Settings{}, fmt.Errorf("read %s: %w", path, err)
	}
	// An external truncate-then-write edit can be observed between the
	// truncate and the write. Empty bytes are that transient state, not
	// a request for defaults.
	if len(bytes.TrimSpace(content)) == 0 {
		return model.Settings{}, fmt.Errorf("read %s: file is empty", path)
	}
	loaded := model.DefaultSettings()
	if err := yaml.Unmarshal(content, &loaded); err != nil {
		return model.Settings{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := loaded.Validate(); err != nil {
		return model.Settings{}, fmt.Errorf("validate %s: %w", path, err)
	}
	return loaded, nil
}

// Current returns the latest snapshot.
func (s *FileSource) Current() model.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update mutates a copy of the current settings, validates, persists,
// and notifies subscribers.
func (s *FileSource) Update(fn func(*model.Settings)) error {
	s.mu.Lock()
	next := s.current
	fn(&next)
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("settings update rejected: %w", err)
	}
	if err := s.persist(next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.current = next
	s.mu.Unlock()

	s.notify(next)
	return nil
}

func (s *FileSource) persist(v model.Settings) error {
	content, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".settings-tmp-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp settings: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()
	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close settings: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}

// Subscribe registers a change hook and returns an unsubscribe function.
// Hooks run synchronously on the updating goroutine; keep them cheap
// (the engine's hook only re-arms a timer).
func (s *FileSource) Subscribe(fn func(model.Settings)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *FileSource) notify(v model.Settings) {
	s.subMu.Lock()
	fns := make([]func(model.Settings), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Watch reloads the settings file when something else writes it, until
// ctx is cancelled. Corrupt edits keep the previous snapshot.
func (s *FileSource) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create settings watcher: %w", err)
	}
	// Watch the directory, not the file: editors replace files by rename
	// and would otherwise drop the watch.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch settings dir: %w", err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != s.path {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
					s.reload()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Printf("WARN settings: watcher error: %v", err)
			}
		}
	}()
	return nil
}

// Reload forces a re-read outside the watcher, for an explicit reload
// command. A failed read keeps the previous snapshot.
func (s *FileSource) Reload() { s.reload() }

func (s *FileSource) reload() {
	loaded, err := load(s.path)
	if err != nil {
		s.logger.Printf("WARN settings: reload failed, keeping previous snapshot: %v", err)
		return
	}

	s.mu.Lock()
	if loaded == s.current {
		s.mu.Unlock()
		return
	}
	s.current = loaded
	s.mu.Unlock()

	s.logger.Printf("INFO settings: reloaded from %s", s.path)
	s.notify(loaded)
}
