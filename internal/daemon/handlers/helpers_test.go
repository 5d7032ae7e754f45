package handlers

import (
	"bytes"
	"context"
	"maps"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/openmined/rclonebox/internal/events"
	"github.com/openmined/rclonebox/internal/mount"
	"github.com/openmined/rclonebox/internal/procmgr"
	"github.com/openmined/rclonebox/internal/rclone"
	"github.com/openmined/rclonebox/internal/remotes"
	"github.com/openmined/rclonebox/internal/syncjob"
	"github.com/stretchr/testify/require"
)

type drives struct {
	present map[string]bool
}

func (d drives) DriveExists(letter string) bool { return d.present[letter] }
func (d drives) Supported() bool                { return true }

type commander struct {
	mu       sync.Mutex
	sections map[string]map[string]string
}

func (f *commander) ConfigDump(context.Context) (map[string]map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]map[string]string{}
	for k, v := range f.sections {
		out[k] = maps.Clone(v)
	}
	return out, nil
}

func (f *commander) ConfigCreate(_ context.Context, name, remoteType string, opts map[string]string) (*rclone.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	section := maps.Clone(opts)
	if section == nil {
		section = map[string]string{}
	}
	section["type"] = remoteType
	f.sections[name] = section
	return &rclone.Result{Success: true}, nil
}

func (f *commander) ConfigUpdate(_ context.Context, name string, opts map[string]string) (*rclone.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	maps.Copy(f.sections[name], opts)
	return &rclone.Result{Success: true}, nil
}

func (f *commander) ConfigDelete(_ context.Context, name string) (*rclone.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sections, name)
	return &rclone.Result{Success: true}, nil
}

func (f *commander) Check(_ context.Context, remote string) *rclone.Result {
	if remote == "offline" {
		return &rclone.Result{Success: false, Stderr: "dial tcp: connection refused", Code: 1}
	}
	return &rclone.Result{Success: true}
}

func (f *commander) About(context.Context, string) (*rclone.AboutInfo, error) {
	free := int64(512)
	return &rclone.AboutInfo{Free: &free}, nil
}

type testServer struct {
	router *gin.Engine
	svc    *Services
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()

	bus := events.NewBus()
	t.Cleanup(bus.Close)

	query := procmgr.StaticQuery()
	probe := drives{present: map[string]bool{"C": true}}
	mounts := mount.NewManager(mount.ManagerOptions{
		StorePath:  filepath.Join(dir, "mounts.json"),
		Query:      query,
		Probe:      probe,
		Supervisor: procmgr.NewSupervisor(query, probe, nil),
		Terminate:  func(int32, time.Duration) bool { return true },
		Alive:      func(int32) bool { return false },
		Bus:        bus,
	})

	tasks := syncjob.NewManager(syncjob.ManagerOptions{
		RclonePath: filepath.Join(dir, "missing-rclone"),
		StorePath:  filepath.Join(dir, "tasks.json"),
		Bus:        bus,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		tasks.Shutdown(ctx)
	})

	cfg := remotes.NewConfigManager(&commander{sections: map[string]map[string]string{
		"gdrive":  {"type": "drive", "token": `{"access_token":"secret"}`, "scope": "drive"},
		"offline": {"type": "sftp", "host": "10.0.0.9", "pass": "hunter2"},
	}}, remotes.Options{Bus: bus})

	svc := &Services{
		Mounts:        mounts,
		Tasks:         tasks,
		Remotes:       cfg,
		Bus:           bus,
		RcloneVersion: "rclone v1.66.0",
		StartedAt:     time.Now().Add(-time.Minute),
	}

	r := gin.New()
	statusH := NewStatusHandler(svc)
	mountH := NewMountHandler(mounts)
	taskH := NewTaskHandler(tasks)
	remoteH := NewRemoteHandler(cfg)
	eventsH := NewEventsHandler(bus)

	r.GET("/v1/status", statusH.Status)
	r.GET("/v1/mounts", mountH.List)
	r.POST("/v1/mounts", mountH.Create)
	r.POST("/v1/mounts/refresh", mountH.Refresh)
	r.GET("/v1/mounts/drives", mountH.Drives)
	r.DELETE("/v1/mounts/:name", mountH.Delete)
	r.POST("/v1/mounts/:name/mount", mountH.Mount)
	r.POST("/v1/mounts/:name/unmount", mountH.Unmount)
	r.GET("/v1/mounts/:name/stats", mountH.Stats)
	r.GET("/v1/tasks", taskH.List)
	r.POST("/v1/tasks", taskH.Create)
	r.GET("/v1/tasks/:id", taskH.Get)
	r.PUT("/v1/tasks/:id", taskH.Update)
	r.DELETE("/v1/tasks/:id", taskH.Delete)
	r.POST("/v1/tasks/:id/run", taskH.Run)
	r.POST("/v1/tasks/:id/cancel", taskH.Cancel)
	r.PUT("/v1/tasks/:id/schedule", taskH.Schedule)
	r.DELETE("/v1/tasks/:id/schedule", taskH.Unschedule)
	r.GET("/v1/tasks/:id/history", taskH.History)
	r.GET("/v1/cron/validate", taskH.ValidateCron)
	r.GET("/v1/remotes", remoteH.List)
	r.POST("/v1/remotes", remoteH.Create)
	r.GET("/v1/remotes/:name", remoteH.Get)
	r.PATCH("/v1/remotes/:name", remoteH.Update)
	r.DELETE("/v1/remotes/:name", remoteH.Delete)
	r.POST("/v1/remotes/:name/test", remoteH.Test)
	r.GET("/v1/remotes/:name/about", remoteH.About)
	r.GET("/v1/events", eventsH.Stream)

	return &testServer{router: r, svc: svc}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func assertError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	resp := decode[ControlPlaneError](t, w)
	require.Equal(t, code, resp.ErrorCode)
	require.NotEmpty(t, resp.Error)
}
