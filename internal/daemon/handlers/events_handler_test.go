package handlers

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/openmined/rclonebox/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventsStreamFiltersByType(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/events?types=task.status,task.completed"
	conn, _, err := websocket.Dial(t.Context(), url, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.Eventually(t, func() bool { return s.svc.Bus.Subscribers() == 1 }, 5*time.Second, 10*time.Millisecond)

	s.svc.Bus.Emit(events.MountStatus, "gdrive", events.StatusData{Status: "mounted"})
	s.svc.Bus.Emit(events.TaskStatus, "t1", events.StatusData{Status: "running"})

	var got map[string]any
	require.NoError(t, wsjson.Read(t.Context(), conn, &got))
	assert.Equal(t, "task.status", got["type"])
	assert.Equal(t, "t1", got["subject"])
	assert.Equal(t, "running", got["data"].(map[string]any)["status"])

	conn.Close(websocket.StatusNormalClosure, "")
	require.Eventually(t, func() bool { return s.svc.Bus.Subscribers() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestParseTypes(t *testing.T) {
	assert.Nil(t, parseTypes(" "))

	set := parseTypes("task.progress, mount.status,,")
	assert.Equal(t, 2, set.Cardinality())
	assert.True(t, set.Contains(events.MountStatus))
}
