package lock

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
)

func TestFileLockAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.lock")

	fl := NewFileLock(path)
	if err := fl.TryLock(); err != nil {
		t.Fatalf("first lock: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read lock file: %v", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(content)))
	if err != nil || pid != os.Getpid() {
		t.Errorf("lock file pid: got %q, want %d", content, os.Getpid())
	}

	// Second lock on the same path must fail while held.
	second := NewFileLock(path)
	if err := second.TryLock(); err == nil {
		second.Unlock()
		t.Fatal("second lock should fail while first is held")
	}

	if err := fl.Unlock(); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("lock file should be removed after unlock")
	}

	// Unlock twice is a no-op.
	if err := fl.Unlock(); err != nil {
		t.Errorf("double unlock: %v", err)
	}
}

func TestMutexMapSerializesPerKey(t *testing.T) {
	m := NewMutexMap()

	var mu sync.Mutex
	counts := map[string]int{}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := "k" + strconv.Itoa(i%3)
			m.Lock(key)
			defer m.Unlock(key)
			mu.Lock()
			counts[key]++
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	total := 0
	for _, c := range counts {
		total += c
	}
	if total != 50 {
		t.Errorf("total increments: got %d, want 50", total)
	}
}
