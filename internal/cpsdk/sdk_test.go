package cpsdk

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/openmined/rclonebox/internal/daemon/handlers"
	"github.com/openmined/rclonebox/internal/mount"
	"github.com/openmined/rclonebox/internal/syncjob"
	"github.com/openmined/rclonebox/internal/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, mux *http.ServeMux, token string) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL+"/", token)
	require.NoError(t, err)
	return c
}

func TestNewRejectsBadURL(t *testing.T) {
	for _, raw := range []string{"", "localhost:7939", "ftp://localhost", "http://"} {
		_, err := New(raw, "")
		assert.ErrorIs(t, err, ErrInvalidBaseURL, raw)
	}
}

func TestCommonHeaders(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/status", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, version.UserAgent(), r.Header.Get(HeaderUserAgent))
		assert.Equal(t, version.Version, r.Header.Get(HeaderVersion))
		writeJSON(w, http.StatusOK, handlers.StatusResponse{Status: "ok", Remotes: 3})
	})

	c := newTestClient(t, mux, "tok")
	status, err := c.Status(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, 3, status.Remotes)
}

func TestNoTokenNoAuthHeader(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/mounts/drives", func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, handlers.DrivesResponse{Drives: []string{"X", "Y"}})
	})

	c := newTestClient(t, mux, "")
	drives, err := c.Mounts.Drives(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"X", "Y"}, drives)
}

func TestAPIErrorDecoding(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /v1/mounts/{name}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, handlers.ControlPlaneError{
			ErrorCode: handlers.ErrCodeNotFound,
			Error:     "mount not found: " + r.PathValue("name"),
		})
	})
	mux.HandleFunc("POST /v1/tasks/{id}/run", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, handlers.ControlPlaneError{
			ErrorCode: handlers.ErrCodeConflict,
			Error:     "task is already running",
		})
	})
	mux.HandleFunc("GET /v1/remotes", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadGateway, map[string]string{"message": "upstream down"})
	})

	c := newTestClient(t, mux, "")

	err := c.Mounts.Delete(t.Context(), "gdrive")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Contains(t, apiErr.Message, "gdrive")

	_, err = c.Tasks.Run(t.Context(), "docs")
	assert.True(t, IsConflict(err))

	_, err = c.Remotes.List(t.Context())
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, CodeUnknownError, apiErr.Code)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
}

func TestDaemonDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url, "")
	require.NoError(t, err)

	_, err = c.Status(t.Context())
	assert.ErrorIs(t, err, ErrDaemonDown)
}

func TestMountsCreateSendsBody(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/mounts", func(w http.ResponseWriter, r *http.Request) {
		var req handlers.MountCreateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gdrive", req.RemoteName)
		assert.True(t, req.MountNow)

		mnt, err := mount.New(req.RemoteName, req.RemotePath, req.DriveLetter)
		require.NoError(t, err)
		writeJSON(w, http.StatusCreated, mnt)
	})

	c := newTestClient(t, mux, "")
	mnt, err := c.Mounts.Create(t.Context(), &handlers.MountCreateRequest{
		RemoteName:  "gdrive",
		RemotePath:  "photos",
		DriveLetter: "x",
		MountNow:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, "X", mnt.DriveLetter)
	assert.Equal(t, "gdrive:photos", mnt.RemoteFullPath())
}

func TestTasksPathsAndQuery(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/tasks/{id}/history", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "docs", r.PathValue("id"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		writeJSON(w, http.StatusOK, handlers.TaskHistoryResponse{Runs: []*syncjob.RunRecord{
			{ID: 2, TaskID: "t1", Success: true, Message: "completed"},
			{ID: 1, TaskID: "t1", Message: "failed (exit code 1)", ExitCode: 1},
		}})
	})
	mux.HandleFunc("PUT /v1/tasks/{id}/schedule", func(w http.ResponseWriter, r *http.Request) {
		var req handlers.ScheduleRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		task := syncjob.NewTask("docs", "/docs", "gdrive:docs", syncjob.ModeCopy)
		task.Scheduled = true
		task.CronExpression = req.CronExpression
		writeJSON(w, http.StatusOK, handlers.TaskView{Task: task, NextRun: "2024-05-16 02:00"})
	})

	c := newTestClient(t, mux, "")

	runs, err := c.Tasks.History(t.Context(), "docs", 5)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.True(t, runs[0].Success)
	assert.Equal(t, 1, runs[1].ExitCode)

	view, err := c.Tasks.Schedule(t.Context(), "docs", "0 2 * * *")
	require.NoError(t, err)
	assert.Equal(t, "0 2 * * *", view.Task.CronExpression)
	assert.Equal(t, "2024-05-16 02:00", view.NextRun)
}
