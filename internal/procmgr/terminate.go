package procmgr

import (
	"log/slog"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

const (
	pollInterval = 100 * time.Millisecond
	killSettle   = time.Second
)

// TerminateFunc stops a process by pid. Supervisor takes one so tests can
// observe which pids would be killed.
type TerminateFunc func(pid int32, timeout time.Duration) bool

// IsRunning reports whether pid refers to a live process
func IsRunning(pid int32) bool {
	if pid <= 0 {
		return false
	}
	exists, err := process.PidExists(pid)
	if err != nil {
		return false
	}
	return exists
}

// Terminate asks the process to stop, waits up to timeout, then force kills
// it. It returns whether termination was attempted without error.
func Terminate(pid int32, timeout time.Duration) bool {
	if pid <= 0 {
		return false
	}

	if err := gracefulStop(pid, timeout); err != nil {
		slog.Warn("terminate: graceful stop", "pid", pid, "error", err)
		return false
	}

	if waitExit(pid, timeout) {
		return true
	}

	slog.Debug("terminate: grace period elapsed, killing", "pid", pid, "timeout", timeout)
	if err := forceKill(pid); err != nil {
		slog.Warn("terminate: force kill", "pid", pid, "error", err)
		return false
	}

	waitExit(pid, killSettle)
	return true
}

// waitExit polls liveness until the process is gone or timeout elapses
func waitExit(pid int32, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if !IsRunning(pid) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(pollInterval)
	}
}
