package rclone

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrInvalidRemoteName = errors.New("invalid remote name")
	ErrInvalidOptionKey  = errors.New("invalid option key")
)

var (
	remoteNameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	optionKeyRe  = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

	shellMetaStripper = strings.NewReplacer(
		";", "", "&", "", "|", "", "`", "", "$", "",
		"(", "", ")", "", "<", "", ">", "", `\`, "",
	)
)

func ValidateRemoteName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidRemoteName)
	}
	if !remoteNameRe.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidRemoteName, name)
	}
	return nil
}

func ValidateOptionKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty", ErrInvalidOptionKey)
	}
	if !optionKeyRe.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidOptionKey, key)
	}
	return nil
}

// SanitizeOptionValue strips shell metacharacters. Arguments are passed as
// an argv list without a shell, so this guards values that end up in
// rclone.conf and are later interpolated by other tooling.
func SanitizeOptionValue(value string) string {
	return shellMetaStripper.Replace(value)
}
