//go:build !windows

package mount

const drivesSupported = false

func driveExists(string) bool {
	return false
}
