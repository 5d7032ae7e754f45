package rclone

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeRclone writes a shell script standing in for the rclone binary
func fakeRclone(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake rclone scripts need a POSIX shell")
	}

	path := filepath.Join(t.TempDir(), "rclone")
	err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755)
	require.NoError(t, err)
	return path
}
