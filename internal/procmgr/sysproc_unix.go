//go:build !windows

package procmgr

import "syscall"

// SysProcAttr returns the sys proc attr for child processes on this platform
func SysProcAttr() *syscall.SysProcAttr {
	return nil
}
