package daemon

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/openmined/rclonebox/internal/config"
	"github.com/openmined/rclonebox/internal/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DataDir = dir
	cfg.Path = filepath.Join(dir, "config.json")
	cfg.RclonePath = filepath.Join(dir, "bin", "rclone-missing")
	cfg.ControlPlane.Addr = freeAddr(t)
	return cfg
}

func TestDaemonHoldsWorkspaceLock(t *testing.T) {
	cfg := testConfig(t)

	d, err := New(cfg)
	require.NoError(t, err)

	_, err = New(cfg)
	require.ErrorIs(t, err, workspace.ErrWorkspaceLocked)

	require.NoError(t, d.Stop(t.Context()))
	// idempotent
	require.NoError(t, d.Stop(t.Context()))

	again, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, again.Stop(t.Context()))
}

func TestDaemonServesUntilCancelled(t *testing.T) {
	cfg := testConfig(t)

	d, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, "unknown", d.Services().RcloneVersion)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()

	url := fmt.Sprintf("http://%s/v1/status", cfg.ControlPlane.Addr)
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("daemon did not stop")
	}

	// the lock is released on stop
	again, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, again.Stop(context.Background()))
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.CacheDirMode = "elsewhere"

	_, err := New(cfg)
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}
