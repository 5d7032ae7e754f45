package syncjob

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/openmined/rclonebox/internal/procmgr"
)

const (
	cancelGrace  = 5 * time.Second
	maxLineBytes = 1 << 20
)

// Outcome is how a run ended. ExitCode is -1 when the process never started.
type Outcome struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	ExitCode int    `json:"exit_code"`
}

// Worker runs one rclone transfer and streams its stderr through the
// progress parser
type Worker struct {
	ID      string
	argv    []string
	onStats func(Stats)
	logger  *slog.Logger

	handle    *procmgr.Handle
	handleMu  sync.Mutex
	cancelled atomic.Bool
	done      chan struct{}
}

func NewWorker(id string, argv []string, onStats func(Stats), logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		ID:      id,
		argv:    argv,
		onStats: onStats,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Run blocks until the process exits or fails to start
func (w *Worker) Run() Outcome {
	defer close(w.done)

	pr, pw := io.Pipe()
	handle := procmgr.NewHandle(w.argv[0], w.argv[1:]...).SetID(w.ID).SetStderr(pw)

	w.handleMu.Lock()
	w.handle = handle
	w.handleMu.Unlock()

	if err := handle.Start(); err != nil {
		pw.Close()
		w.logger.Error("sync start failed", "task", w.ID, "error", err)
		return Outcome{Success: false, Message: err.Error(), ExitCode: -1}
	}
	w.logger.Info("sync started", "task", w.ID, "pid", handle.PID())

	// a cancel that raced with Start
	if w.cancelled.Load() {
		w.stop(handle)
	}

	scanned := make(chan struct{})
	go func() {
		defer close(scanned)
		w.scan(pr)
	}()

	code, err := handle.Wait()
	pw.Close()
	<-scanned

	return w.outcome(code, err)
}

func (w *Worker) outcome(code int, err error) Outcome {
	switch {
	case w.cancelled.Load():
		return Outcome{Success: false, Message: "cancelled", ExitCode: code}
	case code == 0 && err == nil:
		return Outcome{Success: true, Message: "completed", ExitCode: 0}
	default:
		return Outcome{Success: false, Message: fmt.Sprintf("failed (exit code %d)", code), ExitCode: code}
	}
}

func (w *Worker) scan(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	scanner.Split(scanLinesOrCR)

	for scanner.Scan() {
		// keep draining after cancel so the child never blocks on a full pipe
		if w.cancelled.Load() {
			continue
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		stats, ok := ParseProgressLine(line)
		if !ok {
			w.logger.Debug("rclone output", "task", w.ID, "line", line)
			continue
		}
		if w.onStats != nil {
			w.onStats(stats)
		}
	}

	if err := scanner.Err(); err != nil {
		w.logger.Warn("stderr scan", "task", w.ID, "error", err)
		_, _ = io.Copy(io.Discard, r)
	}
}

// Cancel flags the run as cancelled and stops the process
func (w *Worker) Cancel() {
	w.cancelled.Store(true)

	w.handleMu.Lock()
	handle := w.handle
	w.handleMu.Unlock()

	if handle != nil {
		w.stop(handle)
	}
}

func (w *Worker) stop(handle *procmgr.Handle) {
	if err := handle.Stop(cancelGrace); err != nil && !errors.Is(err, procmgr.ErrNotRunning) {
		w.logger.Warn("sync stop", "task", w.ID, "error", err)
	}
}

func (w *Worker) Cancelled() bool {
	return w.cancelled.Load()
}

// Done is closed when Run returns
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// scanLinesOrCR splits on \n or \r; rclone redraws progress with bare \r
func scanLinesOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
