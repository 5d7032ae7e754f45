package mount

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMountsMissingFile(t *testing.T) {
	mounts, err := LoadMounts(filepath.Join(t.TempDir(), "mounts.json"), slog.Default())
	require.NoError(t, err)
	assert.Empty(t, mounts)
}

func TestSaveAndLoadMounts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "mounts.json")

	a, err := New("gdrive", "docs", "X", WithAutoMount(true), WithCacheMode(CacheWrites))
	require.NoError(t, err)
	b, err := New("box", "", "Y", WithReadOnly(true))
	require.NoError(t, err)
	discovered := FromProcessInfo("Z", 99, "")

	require.NoError(t, SaveMounts(path, []*Mount{a, discovered, b}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "[\n  {"), "two-space indented array")
	assert.NotContains(t, string(data), "unknown_Z")

	loaded, err := LoadMounts(path, slog.Default())
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	// sorted by name
	assert.Equal(t, *b, *loaded[0])
	assert.Equal(t, *a, *loaded[1])
}

func TestLoadMountsSkipsInvalidEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mounts.json")
	content := `[
  {"remote_name": "good", "drive_letter": "G"},
  {"drive_letter": "H"},
  {"remote_name": "bad", "drive_letter": "HH"},
  {"remote_name": "ghost", "drive_letter": "K", "source": "discovered"}
]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	loaded, err := LoadMounts(path, slog.Default())
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "good", loaded[0].RemoteName)
}

func TestLoadMountsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mounts.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := LoadMounts(path, slog.Default())
	assert.Error(t, err)
}

func TestLoadMountsResetsInterruptedLaunch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mounts.json")
	content := `[
  {"remote_name": "gdrive", "drive_letter": "X", "status": "mounting", "process_id": 77, "auto_mount": true},
  {"remote_name": "box", "drive_letter": "Y", "status": "mounted", "process_id": 88}
]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	loaded, err := LoadMounts(path, slog.Default())
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	assert.Equal(t, "gdrive", loaded[0].RemoteName)
	assert.Equal(t, StatusUnmounted, loaded[0].Status)
	assert.Nil(t, loaded[0].ProcessID)

	// mounted is left for Refresh to verify against the live process
	assert.Equal(t, StatusMounted, loaded[1].Status)
	require.NotNil(t, loaded[1].ProcessID)
	assert.Equal(t, int32(88), *loaded[1].ProcessID)
}
