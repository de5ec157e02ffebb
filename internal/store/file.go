package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/ynishioka/daywatch/internal/lock"
)

// FileStore keeps one JSON file per key under a state directory. Writes
// are atomic (write temp, validate, backup, rename) so a crash mid-write
// never leaves a half-written blob behind. Corrupt files are quarantined
// and treated as empty on the next read.
type FileStore struct {
	dir    string
	locks  *lock.MutexMap
	logger *log.Logger
}

// NewFileStore creates the state directory if needed.
func NewFileStore(dir string, logger *log.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &FileStore{dir: dir, locks: lock.NewMutexMap(), logger: logger}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// Get reads the blob for key into the given value. A missing file returns
// (false, nil). A corrupt file is quarantined and returns (false, nil):
// better to risk one duplicate alert than to stop the scheduler.
func (s *FileStore) Get(key string, into any) (bool, error) {
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	path := s.path(key)
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}

	if err := json.Unmarshal(content, into); err != nil {
		s.logger.Printf("WARN store: corrupt blob for key %q, quarantining: %v", key, err)
		if qerr := s.quarantine(path); qerr != nil {
			s.logger.Printf("WARN store: quarantine failed for %s: %v", path, qerr)
		}
		return false, nil
	}
	return true, nil
}

// Set atomically replaces the blob for key.
func (s *FileStore) Set(key string, v any) error {
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	content, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %q: %w", key, err)
	}
	return s.atomicWrite(s.path(key), content)
}

// Delete removes the blob for key. Deleting an absent key is not an error.
func (s *FileStore) Delete(key string) error {
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

// atomicWrite writes content to a temp file in the same directory,
// validates it decodes, keeps a .bak of any previous version, then
// renames into place.
func (s *FileStore) atomicWrite(path string, content []byte) error {
	tmp, err := os.CreateTemp(s.dir, ".daywatch-tmp-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	// Re-read and validate before the rename is allowed to clobber the
	// previous good version.
	written, err := os.ReadFile(tmpName)
	if err != nil {
		return fmt.Errorf("read back temp file: %w", err)
	}
	if !json.Valid(written) || !bytes.Equal(written, content) {
		return fmt.Errorf("temp file validation failed for %s", path)
	}

	if _, err := os.Stat(path); err == nil {
		if err := copyFile(path, path+".bak"); err != nil {
			return fmt.Errorf("create backup: %w", err)
		}
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("atomic rename: %w", err)
	}
	return nil
}

// quarantine moves a corrupt blob aside so the next write starts clean
// and the bad bytes stay available for inspection.
func (s *FileStore) quarantine(path string) error {
	qdir := filepath.Join(s.dir, "quarantine")
	if err := os.MkdirAll(qdir, 0755); err != nil {
		return fmt.Errorf("create quarantine dir: %w", err)
	}
	name := fmt.Sprintf("%s.%s.corrupt", filepath.Base(path), time.Now().Format("20060102T150405"))
	if err := os.Rename(path, filepath.Join(qdir, name)); err != nil {
		return fmt.Errorf("move to quarantine: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
