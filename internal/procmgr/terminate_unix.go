//go:build !windows

package procmgr

import (
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

func gracefulStop(pid int32, _ time.Duration) error {
	proc, err := process.NewProcess(pid)
	if err != nil {
		return err
	}
	return proc.Terminate()
}

func forceKill(pid int32) error {
	proc, err := process.NewProcess(pid)
	if err != nil {
		// already gone
		if !IsRunning(pid) {
			return nil
		}
		return err
	}
	return proc.Kill()
}
