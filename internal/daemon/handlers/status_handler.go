package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/openmined/rclonebox/internal/mount"
	"github.com/openmined/rclonebox/internal/syncjob"
	"github.com/openmined/rclonebox/internal/version"
)

// StatusHandler handles status-related endpoints
type StatusHandler struct {
	svc *Services
}

func NewStatusHandler(svc *Services) *StatusHandler {
	return &StatusHandler{svc: svc}
}

// Status returns version, uptime and registry counts
func (h *StatusHandler) Status(c *gin.Context) {
	// this is unlikely to happen, but just in case
	if h.svc == nil || h.svc.Mounts == nil || h.svc.Tasks == nil {
		c.PureJSON(http.StatusServiceUnavailable, &ControlPlaneError{
			ErrorCode: ErrCodeUnknownError,
			Error:     "daemon not initialized",
		})
		return
	}

	mounts := &MountCounts{}
	for _, m := range h.svc.Mounts.List() {
		mounts.Total++
		if m.IsDiscovered() {
			mounts.Discovered++
		}
		switch m.Status {
		case mount.StatusMounted:
			mounts.Mounted++
		case mount.StatusError:
			mounts.Errored++
		}
	}

	tasks := &TaskCounts{}
	for _, t := range h.svc.Tasks.List() {
		tasks.Total++
		if t.Scheduled {
			tasks.Scheduled++
		}
		switch t.Status {
		case syncjob.StatusRunning:
			tasks.Running++
		case syncjob.StatusError:
			tasks.Errored++
		}
	}

	remoteCount := 0
	if h.svc.Remotes != nil {
		remoteCount = len(h.svc.Remotes.Names(c.Request.Context()))
	}

	c.PureJSON(http.StatusOK, &StatusResponse{
		Status:      "ok",
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Version:     version.Version,
		Revision:    version.Revision,
		BuildDate:   version.BuildDate,
		Rclone:      h.svc.RcloneVersion,
		StartedAt:   h.svc.StartedAt.UTC().Format(time.RFC3339),
		Uptime:      time.Since(h.svc.StartedAt).Round(time.Second).String(),
		Mounts:      mounts,
		Tasks:       tasks,
		Remotes:     remoteCount,
		Subscribers: h.svc.Bus.Subscribers(),
	})
}
