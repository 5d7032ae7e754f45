package rclone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactArgs(t *testing.T) {
	argv := []string{
		"rclone", "config", "create", "mys3", "s3",
		"provider=AWS",
		"access_key_id=AKIA123",
		"secret_access_key=shh",
		"pass=hunter2",
		"Token=abc",
		"region=eu-west-1",
		"--password-command",
	}

	assert.Equal(t, []string{
		"rclone", "config", "create", "mys3", "s3",
		"provider=AWS",
		"access_key_id=***",
		"secret_access_key=***",
		"pass=***",
		"Token=***",
		"region=eu-west-1",
		"--password-command",
	}, RedactArgs(argv))
}

func TestRedactArgsDoesNotMutateInput(t *testing.T) {
	argv := []string{"pass=hunter2"}
	_ = RedactArgs(argv)
	assert.Equal(t, "pass=hunter2", argv[0])
}
