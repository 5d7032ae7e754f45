//go:build !windows

package procmgr

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestHandleRunToCompletion(t *testing.T) {
	var out syncBuffer
	h := NewHandle("/bin/sh", "-c", "echo hello; exit 3").SetStdout(&out)
	assert.Equal(t, StatusNew, h.Status())

	require.NoError(t, h.Start())
	assert.NotZero(t, h.PID())

	code, err := h.Wait()
	assert.Error(t, err)
	assert.Equal(t, 3, code)
	assert.Equal(t, StatusStopped, h.Status())
	assert.Equal(t, "hello\n", out.String())

	select {
	case <-h.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestHandleExitedDeliversOnce(t *testing.T) {
	h := NewHandle("/bin/sh", "-c", "exit 0")
	require.NoError(t, h.Start())

	exit := <-h.Exited()
	assert.Equal(t, 0, exit.Code)
	assert.NoError(t, exit.Error)

	// a second Wait still returns the stored value
	code, err := h.Wait()
	assert.Equal(t, 0, code)
	assert.NoError(t, err)
}

func TestHandleStop(t *testing.T) {
	h := NewHandle("/bin/sh", "-c", "sleep 30 & wait")
	require.NoError(t, h.Start())

	// give the shell time to fork its child
	time.Sleep(200 * time.Millisecond)

	start := time.Now()
	require.NoError(t, h.Stop(2*time.Second))
	<-h.Done()
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, StatusStopped, h.Status())
}

func TestHandleStartTwice(t *testing.T) {
	h := NewHandle("/bin/sh", "-c", "sleep 5")
	require.NoError(t, h.Start())
	defer h.Stop(time.Second)

	assert.ErrorIs(t, h.Start(), ErrAlreadyRunning)
}

func TestHandleStopNotRunning(t *testing.T) {
	h := NewHandle("/bin/sh", "-c", "exit 0")
	assert.ErrorIs(t, h.Stop(time.Second), ErrNotRunning)

	_, err := h.Wait()
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestHandleStartFailure(t *testing.T) {
	h := NewHandle("/nonexistent/binary")
	err := h.Start()
	require.Error(t, err)
	assert.Equal(t, StatusStopped, h.Status())

	code, waitErr := h.Wait()
	assert.Equal(t, -1, code)
	assert.Error(t, waitErr)
}

func TestTerminateAndIsRunning(t *testing.T) {
	h := NewHandle("/bin/sh", "-c", "exec sleep 30")
	require.NoError(t, h.Start())

	pid := h.PID()
	assert.True(t, IsRunning(pid))

	// reap the child concurrently so liveness polling sees it disappear
	assert.True(t, Terminate(pid, 2*time.Second))
	<-h.Done()
	assert.False(t, IsRunning(pid))
}

func TestIsRunningInvalidPID(t *testing.T) {
	assert.False(t, IsRunning(0))
	assert.False(t, IsRunning(-5))
	assert.False(t, Terminate(0, time.Second))
}

func TestStats(t *testing.T) {
	h := NewHandle("/bin/sh", "-c", "exec sleep 30")
	require.NoError(t, h.Start())
	defer h.Stop(time.Second)

	stats, err := Stats(h.PID())
	require.NoError(t, err)
	assert.Equal(t, h.PID(), stats.PID)
	assert.NotEmpty(t, stats.Name)
	assert.GreaterOrEqual(t, stats.Uptime, int64(0))
}
