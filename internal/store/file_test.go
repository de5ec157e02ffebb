package store

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blob struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newTestFileStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := NewFileStore(dir, log.New(&bytes.Buffer{}, "", 0))
	require.NoError(t, err)
	return s, dir
}

func TestFileStoreRoundTrip(t *testing.T) {
	s, _ := newTestFileStore(t)

	var got blob
	found, err := s.Get("missing", &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Set("b", blob{Name: "x", Count: 3}))
	found, err = s.Get("b", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, blob{Name: "x", Count: 3}, got)
}

func TestFileStoreOverwriteKeepsBackup(t *testing.T) {
	s, dir := newTestFileStore(t)

	require.NoError(t, s.Set("b", blob{Count: 1}))
	require.NoError(t, s.Set("b", blob{Count: 2}))

	var got blob
	found, err := s.Get("b", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 2, got.Count)

	// Previous version survives as .bak.
	_, err = os.Stat(filepath.Join(dir, "b.json.bak"))
	assert.NoError(t, err)
}

func TestFileStoreCorruptBlobQuarantined(t *testing.T) {
	s, dir := newTestFileStore(t)

	require.NoError(t, s.Set("b", blob{Count: 1}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.json"), []byte("{broken"), 0644))

	// Corrupt reads fail open: absent, no error.
	var got blob
	found, err := s.Get("b", &got)
	require.NoError(t, err)
	assert.False(t, found)

	// The corrupt file was moved aside, not deleted.
	entries, err := os.ReadDir(filepath.Join(dir, "quarantine"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "b.json")
	assert.Contains(t, entries[0].Name(), ".corrupt")

	// Store is usable again after quarantine.
	require.NoError(t, s.Set("b", blob{Count: 5}))
	found, err = s.Get("b", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 5, got.Count)
}

func TestFileStoreDelete(t *testing.T) {
	s, _ := newTestFileStore(t)

	require.NoError(t, s.Set("b", blob{Count: 1}))
	require.NoError(t, s.Delete("b"))

	var got blob
	found, err := s.Get("b", &got)
	require.NoError(t, err)
	assert.False(t, found)

	// Deleting again is fine.
	assert.NoError(t, s.Delete("b"))
}

func TestMemStoreFailOpen(t *testing.T) {
	s := NewMemStore()
	require.NoError(t, s.Set("k", blob{Count: 7}))

	s.Corrupt("k")

	var got blob
	found, err := s.Get("k", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	s, err := NewSQLiteStore(path, log.New(&bytes.Buffer{}, "", 0))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	var got blob
	found, err := s.Get("missing", &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Set("b", blob{Name: "x", Count: 3}))
	require.NoError(t, s.Set("b", blob{Name: "y", Count: 4}))

	found, err = s.Get("b", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, blob{Name: "y", Count: 4}, got)

	require.NoError(t, s.Delete("b"))
	found, err = s.Get("b", &got)
	require.NoError(t, err)
	assert.False(t, found)
}
