package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	tests := []struct {
		name      string
		input     string
		want      string
		wantError bool
	}{
		{name: "empty path", input: "", wantError: true},
		{name: "relative path", input: "./test"},
		{name: "home path", input: "~/rclonebox", want: filepath.Join(home, "rclonebox")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ResolvePath(tt.input)
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, filepath.IsAbs(result))
			if tt.want != "" {
				assert.Equal(t, tt.want, result)
			}
		})
	}
}

func TestResolvePathFrom(t *testing.T) {
	base := t.TempDir()

	assert.Equal(t, "", ResolvePathFrom(base, ""))
	assert.Equal(t, filepath.Join(base, "bin", "rclone"), ResolvePathFrom(base, filepath.Join("bin", "rclone")))

	abs := filepath.Join(base, "abs.conf")
	assert.Equal(t, abs, ResolvePathFrom("/elsewhere", abs))
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "mounts.json")

	require.NoError(t, WriteFileAtomic(path, []byte(`[]`), 0o644))
	assert.True(t, FileExists(path))
	assert.True(t, DirExists(filepath.Dir(path)))

	require.NoError(t, WriteFileAtomic(path, []byte(`[{"a":1}]`), 0o644))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `[{"a":1}]`, string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}
