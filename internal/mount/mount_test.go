package mount

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	m, err := New("gdrive", "/photos/", "x")
	require.NoError(t, err)

	assert.Equal(t, "X", m.DriveLetter)
	assert.Equal(t, StatusUnmounted, m.Status)
	assert.Equal(t, CacheOff, m.CacheMode)
	assert.Equal(t, "10G", m.VFSCacheMaxSize)
	assert.Equal(t, SourceConfig, m.Source)
	assert.Nil(t, m.ProcessID)
	assert.Equal(t, "gdrive:photos", m.RemoteFullPath())
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		drive  string
		opts   []Option
	}{
		{"empty drive", "gdrive", "", nil},
		{"two letter drive", "gdrive", "XY", nil},
		{"digit drive", "gdrive", "1", nil},
		{"empty remote", "", "X", nil},
		{"dotdot remote", "a..b", "X", nil},
		{"slash remote", "a/b", "X", nil},
		{"backslash remote", `a\b`, "X", nil},
		{"bad cache mode", "gdrive", "X", []Option{WithCacheMode("turbo")}},
		{"bad cache size", "gdrive", "X", []Option{WithCacheMaxSize("10GB")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.remote, "", tt.drive, tt.opts...)
			assert.ErrorIs(t, err, ErrInvalidMount)
		})
	}
}

func TestCacheSizeFormats(t *testing.T) {
	for _, size := range []string{"10G", "512m", "100", "1t", "64K"} {
		_, err := New("gdrive", "", "X", WithCacheMaxSize(size))
		assert.NoError(t, err, size)
	}
}

func TestRemoteFullPath(t *testing.T) {
	m, err := New("box", "", "Y")
	require.NoError(t, err)
	assert.Equal(t, "box:", m.RemoteFullPath())

	m.RemotePath = "/a/b/"
	assert.Equal(t, "box:a/b", m.RemoteFullPath())
}

func TestFromProcessInfo(t *testing.T) {
	m := FromProcessInfo("z", 4242, "")
	assert.Equal(t, SourceDiscovered, m.Source)
	assert.Equal(t, StatusMounted, m.Status)
	assert.Equal(t, "Z", m.DriveLetter)
	assert.Equal(t, "unknown_Z", m.RemoteName)
	require.NotNil(t, m.ProcessID)
	assert.Equal(t, int32(4242), *m.ProcessID)

	named := FromProcessInfo("Q", 1, "gdrive")
	assert.Equal(t, "gdrive", named.RemoteName)
}

func TestEqual(t *testing.T) {
	a, _ := New("gdrive", "a", "X")
	b, _ := New("gdrive", "b", "x", WithReadOnly(true))
	c, _ := New("gdrive", "a", "Y")

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(nil))
}

func TestMarshalConfig(t *testing.T) {
	discovered := FromProcessInfo("Z", 1, "")
	data, err := discovered.MarshalConfig()
	assert.NoError(t, err)
	assert.Nil(t, data)

	m, err := New("gdrive", "docs", "X",
		WithAutoMount(true), WithReadOnly(true),
		WithCacheMode(CacheFull), WithCacheMaxSize("20G"))
	require.NoError(t, err)

	data, err = m.MarshalConfig()
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	for _, key := range []string{
		"remote_name", "remote_path", "drive_letter", "status", "auto_mount", "read_only",
		"cache_mode", "vfs_cache_max_size", "process_id", "error_message", "source",
	} {
		assert.Contains(t, fields, key)
	}
	assert.Equal(t, "full", fields["cache_mode"])
	assert.Equal(t, "config", fields["source"])

	var back Mount
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, *m, back)
}

func TestUnmarshalLenient(t *testing.T) {
	var m Mount
	require.NoError(t, json.Unmarshal([]byte(`{"remote_name":"gdrive","drive_letter":"x","status":"exploded"}`), &m))
	assert.Equal(t, StatusUnmounted, m.Status)
	assert.Equal(t, "X", m.DriveLetter)
	assert.Equal(t, CacheOff, m.CacheMode)
	assert.Equal(t, "10G", m.VFSCacheMaxSize)
	assert.Equal(t, SourceConfig, m.Source)
}

func TestUnmarshalMissingFields(t *testing.T) {
	var m Mount
	assert.ErrorIs(t, json.Unmarshal([]byte(`{"drive_letter":"X"}`), &m), ErrInvalidMount)
	assert.ErrorIs(t, json.Unmarshal([]byte(`{"remote_name":"gdrive"}`), &m), ErrInvalidMount)
	assert.ErrorIs(t, json.Unmarshal([]byte(`{"remote_name":"gdrive","drive_letter":"X","cache_mode":"bogus"}`), &m), ErrInvalidMount)
}
