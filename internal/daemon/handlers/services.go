package handlers

import (
	"time"

	"github.com/openmined/rclonebox/internal/events"
	"github.com/openmined/rclonebox/internal/mount"
	"github.com/openmined/rclonebox/internal/remotes"
	"github.com/openmined/rclonebox/internal/syncjob"
)

// Services are the daemon components the handlers drive
type Services struct {
	Mounts        *mount.Manager
	Tasks         *syncjob.Manager
	Remotes       *remotes.ConfigManager
	Bus           *events.Bus
	RcloneVersion string
	StartedAt     time.Time
}
