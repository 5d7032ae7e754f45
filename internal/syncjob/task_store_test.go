package syncjob

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadTasksMissingFile(t *testing.T) {
	tasks, err := LoadTasks(filepath.Join(t.TempDir(), "tasks.json"), slog.Default())
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestLoadTasksSkipsInvalidEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
  {"id": "good", "name": "docs", "source": "/docs", "destination": "gdrive:docs", "mode": "copy"},
  {"id": "bad", "name": "bogus", "source": "/x", "destination": "y:", "mode": "bogus"},
  {"id": "good", "name": "dup", "source": "/a", "destination": "b:"},
  {"id": "busy", "name": "stale", "source": "/a", "destination": "b:", "status": "running", "progress": 40}
]`), 0o644))

	tasks, err := LoadTasks(path, slog.Default())
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	assert.Equal(t, "good", tasks[0].ID)
	assert.Equal(t, ModeCopy, tasks[0].Mode)
	assert.Equal(t, "busy", tasks[1].ID)
	assert.Equal(t, StatusIdle, tasks[1].Status)
	assert.Equal(t, 40, tasks[1].Progress)
}

func TestLoadTasksCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))

	_, err := LoadTasks(path, slog.Default())
	assert.Error(t, err)
}

func TestSaveTasksRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "tasks.json")

	a := NewTask("docs", "/docs", "gdrive:docs", ModeCopy)
	a.Scheduled = true
	a.CronExpression = "*/15 * * * *"
	last := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)
	a.LastRun = &last
	b := NewTask("pics", "/pics", "s3:pics", ModeSync)
	msg := "failed (exit code 1)"
	b.ErrorMessage = &msg
	b.Status = StatusError

	require.NoError(t, SaveTasks(path, []*Task{a, b}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\n  {\n    \"id\"")

	loaded, err := LoadTasks(path, slog.Default())
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, a.ID, loaded[0].ID)
	assert.Equal(t, "*/15 * * * *", loaded[0].CronExpression)
	require.NotNil(t, loaded[0].LastRun)
	assert.True(t, last.Equal(*loaded[0].LastRun))
	assert.Equal(t, StatusError, loaded[1].Status)
	require.NotNil(t, loaded[1].ErrorMessage)
	assert.Equal(t, msg, *loaded[1].ErrorMessage)
}

func TestSaveTasksEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	require.NoError(t, SaveTasks(path, nil))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))
}
