package cpsdk

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/openmined/rclonebox/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventsURL(t *testing.T) {
	api := newEventsAPI("https://box.local:7939", "")
	u, err := api.url([]events.Type{events.TaskProgress, events.TaskCompleted})
	require.NoError(t, err)
	assert.Equal(t, "wss://box.local:7939/v1/events?types=task.progress%2Ctask.completed", u)

	api = newEventsAPI("http://localhost:7939", "")
	u, err = api.url(nil)
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:7939/v1/events", u)
}

func TestEventsSubscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "task.progress", r.URL.Query().Get("types"))

		conn, err := websocket.Accept(w, r, nil)
		require.NoError(t, err)
		defer conn.CloseNow()

		ctx := r.Context()
		_ = wsjson.Write(ctx, conn, &events.Event{
			ID:      "e1",
			Type:    events.TaskProgress,
			Subject: "t1",
			Time:    time.Now(),
			Data:    events.ProgressData{Percent: 42, Files: 3, Bytes: 2048},
		})
		conn.Close(websocket.StatusNormalClosure, "")
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, "tok")
	require.NoError(t, err)

	stream, err := c.Events.Subscribe(t.Context(), events.TaskProgress)
	require.NoError(t, err)

	var ev *Event
	select {
	case ev = <-stream:
	case <-time.After(5 * time.Second):
		t.Fatal("no event")
	}
	require.NotNil(t, ev)
	assert.Equal(t, events.TaskProgress, ev.Type)
	assert.Equal(t, "t1", ev.Subject)

	var progress events.ProgressData
	require.NoError(t, ev.Decode(&progress))
	assert.Equal(t, 42, progress.Percent)
	assert.Equal(t, int64(2048), progress.Bytes)

	// the server closed, so the stream ends
	select {
	case _, open := <-stream:
		assert.False(t, open)
	case <-time.After(5 * time.Second):
		t.Fatal("stream not closed")
	}
}

func TestEventsSubscribeUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, "wrong")
	require.NoError(t, err)

	_, err = c.Events.Subscribe(t.Context())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, CodeUnauthorized, apiErr.Code)
}
