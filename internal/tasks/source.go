// Package tasks provides a file-backed task source for the daemon host.
// The engine only depends on the TaskSource interface; API-backed hosts
// substitute their own implementation.
package tasks

import (
	"fmt"
	"log"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ynishioka/daywatch/internal/model"
)

const fileSchemaVersion = 1

// document is the on-disk shape of the tasks file.
type document struct {
	SchemaVersion int          `yaml:"schema_version"`
	Tasks         []model.Task `yaml:"tasks"`
}

// FileSource reads tasks from a YAML file maintained by the host app or
// the user. Every ListActive call re-reads the file so producers always
// see the latest snapshot; the last good snapshot is cached as the
// fallback when a read fails mid-flight (the daily briefing uses this).
type FileSource struct {
	path   string
	logger *log.Logger

	mu       sync.Mutex
	lastGood []model.Task
}

func NewFileSource(path string, logger *log.Logger) *FileSource {
	if logger == nil {
		logger = log.Default()
	}
	return &FileSource{path: path, logger: logger}
}

// ListActive returns all tasks from the file. A missing file is an empty
// list; a corrupt file falls back to the last good snapshot (fail open).
func (s *FileSource) ListActive() ([]model.Task, error) {
	content, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return s.fallback(fmt.Errorf("read tasks file: %w", err))
	}

	var doc document
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return s.fallback(fmt.Errorf("parse tasks file: %w", err))
	}
	if doc.SchemaVersion > fileSchemaVersion {
		return s.fallback(fmt.Errorf("tasks file schema_version %d is newer than supported %d", doc.SchemaVersion, fileSchemaVersion))
	}

	tasks := make([]model.Task, len(doc.Tasks))
	for i, t := range doc.Tasks {
		tasks[i] = t.Normalize()
	}

	s.mu.Lock()
	s.lastGood = tasks
	s.mu.Unlock()
	return tasks, nil
}

func (s *FileSource) fallback(cause error) ([]model.Task, error) {
	s.mu.Lock()
	cached := s.lastGood
	s.mu.Unlock()

	if cached != nil {
		s.logger.Printf("WARN tasks: %v, serving last good snapshot (%d tasks)", cause, len(cached))
		return cached, nil
	}
	return nil, cause
}
