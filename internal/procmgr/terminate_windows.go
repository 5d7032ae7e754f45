//go:build windows

package procmgr

import (
	"context"
	"os/exec"
	"strconv"
	"time"
)

// taskkill without /F sends WM_CLOSE, which lets rclone unmount cleanly
func gracefulStop(pid int32, timeout time.Duration) error {
	return taskkill(timeout, "/PID", strconv.Itoa(int(pid)))
}

func forceKill(pid int32) error {
	return taskkill(10*time.Second, "/F", "/PID", strconv.Itoa(int(pid)))
}

func taskkill(timeout time.Duration, args ...string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "taskkill", args...)
	cmd.SysProcAttr = SysProcAttr()
	// taskkill exits non-zero when a console process ignores WM_CLOSE; the
	// liveness poll decides what happens next
	_ = cmd.Run()
	return ctx.Err()
}
