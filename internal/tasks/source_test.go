package tasks

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goodDoc = `schema_version: 1
tasks:
  - id: t1
    title: write report
    importance: 8
    estimated_minutes: 120
  - id: t2
    title: done already
    completed: true
`

func TestFileSourceMissingFileIsEmpty(t *testing.T) {
	s := NewFileSource(filepath.Join(t.TempDir(), "tasks.yaml"), log.New(&bytes.Buffer{}, "", 0))
	tasks, err := s.ListActive()
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestFileSourceReadsAndNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(goodDoc), 0644))

	s := NewFileSource(path, log.New(&bytes.Buffer{}, "", 0))
	tasks, err := s.ListActive()
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "t1", tasks[0].ID)
	assert.Equal(t, 8, tasks[0].Importance)
	// Defaults filled for t2.
	assert.Equal(t, 5, tasks[1].Importance)
	assert.Equal(t, float64(60), tasks[1].EstimatedMinutes)
	assert.True(t, tasks[1].Completed)
}

func TestFileSourceCorruptFallsBackToLastGood(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(goodDoc), 0644))

	s := NewFileSource(path, log.New(&bytes.Buffer{}, "", 0))
	_, err := s.ListActive()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("{{{ not yaml"), 0644))
	tasks, err := s.ListActive()
	require.NoError(t, err, "corrupt file should serve cached snapshot")
	assert.Len(t, tasks, 2)
}

func TestFileSourceCorruptWithoutCacheErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{{{ not yaml"), 0644))

	s := NewFileSource(path, log.New(&bytes.Buffer{}, "", 0))
	_, err := s.ListActive()
	assert.Error(t, err)
}

func TestFileSourceRejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	require.NoError(t, os.WriteFile(path, []byte("schema_version: 99\ntasks: []\n"), 0644))

	s := NewFileSource(path, log.New(&bytes.Buffer{}, "", 0))
	_, err := s.ListActive()
	assert.Error(t, err)
}
