package mount

import (
	"regexp"
	"strings"
)

// mount <remote>[:path] <DRIVE>: where the drive is followed by space or end
var mountCmdlineRe = regexp.MustCompile(`(?i)\bmount\s+([A-Za-z0-9_][A-Za-z0-9_.@\-]*):\S*\s+([A-Z]):(?:\s|$)`)

// ParseMountCmdline extracts the drive letter (uppercased) and remote name
// from an rclone mount command line
func ParseMountCmdline(line string) (drive, remote string, ok bool) {
	if line == "" {
		return "", "", false
	}

	match := mountCmdlineRe.FindStringSubmatch(line)
	if match == nil {
		return "", "", false
	}

	return strings.ToUpper(match[2]), match[1], true
}
