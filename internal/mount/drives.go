package mount

import "github.com/openmined/rclonebox/internal/procmgr"

// DriveProbe reports which drive letters exist. Platforms without drive
// letters report Supported() == false and no drives at all.
type DriveProbe interface {
	procmgr.DriveProbe
	Supported() bool
}

const driveLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// SystemDrives probes the local filesystem
type SystemDrives struct{}

func (SystemDrives) DriveExists(letter string) bool { return driveExists(letter) }

func (SystemDrives) Supported() bool { return drivesSupported }
