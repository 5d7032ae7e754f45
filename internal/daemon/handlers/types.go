package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openmined/rclonebox/internal/mount"
	"github.com/openmined/rclonebox/internal/rclone"
	"github.com/openmined/rclonebox/internal/remotes"
	"github.com/openmined/rclonebox/internal/scheduler"
	"github.com/openmined/rclonebox/internal/syncjob"
)

const (
	CodeOk              string = "OK"
	ErrCodeBadRequest   string = "ERR_BAD_REQUEST"
	ErrCodeNotFound     string = "ERR_NOT_FOUND"
	ErrCodeConflict     string = "ERR_CONFLICT"
	ErrCodeUnknownError string = "ERR_UNKNOWN_ERROR"
)

type ControlPlaneResponse struct {
	Code string `json:"code"`
}

type ControlPlaneError struct {
	ErrorCode string `json:"code"`
	Error     string `json:"error"`
}

func AbortWithError(c *gin.Context, status int, code string, err error) {
	c.Abort()
	_ = c.Error(err)
	c.PureJSON(status, ControlPlaneError{
		ErrorCode: code,
		Error:     err.Error(),
	})
}

// AbortWithDomainError maps a manager error to its HTTP status and code
func AbortWithDomainError(c *gin.Context, err error) {
	status, code := classify(err)
	AbortWithError(c, status, code, err)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, mount.ErrMountNotFound),
		errors.Is(err, syncjob.ErrTaskNotFound),
		errors.Is(err, remotes.ErrRemoteNotFound):
		return http.StatusNotFound, ErrCodeNotFound

	case errors.Is(err, mount.ErrMountBusy),
		errors.Is(err, mount.ErrNoDriveAvailable),
		errors.Is(err, mount.ErrNotMounted),
		errors.Is(err, syncjob.ErrTaskRunning),
		errors.Is(err, remotes.ErrRemoteExists):
		return http.StatusConflict, ErrCodeConflict

	case errors.Is(err, mount.ErrInvalidMount),
		errors.Is(err, syncjob.ErrInvalidTask),
		errors.Is(err, scheduler.ErrInvalidCron),
		errors.Is(err, rclone.ErrInvalidRemoteName),
		errors.Is(err, rclone.ErrInvalidOptionKey),
		errors.Is(err, remotes.ErrInvalidRemoteType):
		return http.StatusBadRequest, ErrCodeBadRequest

	default:
		return http.StatusInternalServerError, ErrCodeUnknownError
	}
}

func badRequest(c *gin.Context, err error) {
	AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, err)
}

func ok(c *gin.Context) {
	c.PureJSON(http.StatusOK, &ControlPlaneResponse{Code: CodeOk})
}
