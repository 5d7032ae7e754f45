package syncjob

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/openmined/rclonebox/internal/events"
	"github.com/stretchr/testify/require"
)

func fakeRclone(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake rclone scripts need a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "rclone")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	return path
}

// progressScript emits two \r separated stats redraws, then exits with code
func progressScript(code string) string {
	return `printf '  1.000 KiB / 2.000 KiB, 50%%, 1.000 KiB/s, ETA 1s\r  2.000 KiB / 2.000 KiB, 100%%, 1.000 KiB/s, ETA 0s\n' >&2
echo 'Transferred:   3/3, 100%' >&2
exit ` + code
}

func waitEvent(t *testing.T, ch <-chan *events.Event, typ events.Type, subject string) *events.Event {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Type == typ && ev.Subject == subject {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s on %s", typ, subject)
			return nil
		}
	}
}

// hookHandler discards records but calls fn the first time msg is logged
type hookHandler struct {
	msg  string
	fn   func()
	once *sync.Once
}

func newHookLogger(msg string, fn func()) *slog.Logger {
	return slog.New(&hookHandler{msg: msg, fn: fn, once: &sync.Once{}})
}

func (h *hookHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *hookHandler) Handle(_ context.Context, r slog.Record) error {
	if r.Message == h.msg {
		h.once.Do(h.fn)
	}
	return nil
}

func (h *hookHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *hookHandler) WithGroup(string) slog.Handler      { return h }
