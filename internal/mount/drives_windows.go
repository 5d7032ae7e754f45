//go:build windows

package mount

import "os"

const drivesSupported = true

func driveExists(letter string) bool {
	_, err := os.Stat(letter + `:\`)
	return err == nil
}
