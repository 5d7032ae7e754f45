//go:build windows

package procmgr

import "syscall"

const createNoWindow = 0x08000000

// SysProcAttr keeps rclone from flashing a console window
func SysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: createNoWindow,
	}
}
