// Package utils provides small helpers shared by the RcloneBox daemon and CLI.
package utils

import (
	"bytes"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// maxLineSize bounds a buffered partial line; longer output is flushed as-is
const maxLineSize = 1024 * 1024

// LineWriter is an io.Writer that hands every complete line to a sink.
// Partial lines are buffered until the newline arrives or Close is called.
// A carriage return also terminates a line since rclone redraws its
// progress line in place.
type LineWriter struct {
	mu   sync.Mutex
	buf  bytes.Buffer
	sink func(line []byte) error
}

func NewLineWriter(sink func(line []byte) error) *LineWriter {
	return &LineWriter{sink: sink}
}

func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		data := w.buf.Bytes()
		idx := bytes.IndexAny(data, "\r\n")
		if idx < 0 {
			if w.buf.Len() > maxLineSize {
				if err := w.emit(w.buf.Next(w.buf.Len())); err != nil {
					return len(p), err
				}
			}
			return len(p), nil
		}

		line := w.buf.Next(idx + 1)
		if err := w.emit(bytes.TrimRight(line, "\r\n")); err != nil {
			return len(p), err
		}
	}
}

// Close flushes any trailing partial line
func (w *LineWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.buf.Len() == 0 {
		return nil
	}
	return w.emit(w.buf.Next(w.buf.Len()))
}

func (w *LineWriter) emit(line []byte) error {
	if len(line) == 0 {
		return nil
	}
	cp := make([]byte, len(line))
	copy(cp, line)
	return w.sink(cp)
}

// NewLogInterceptor returns a LineWriter that prefixes each line with a
// sequence number and timestamp before writing it to target.
func NewLogInterceptor(target io.Writer) *LineWriter {
	var seq atomic.Uint64
	return NewLineWriter(func(line []byte) error {
		prefix := slog.Uint64("line", seq.Add(1)).String() + " " +
			slog.String("time", time.Now().Format(time.RFC3339)).String() + " "
		if _, err := io.WriteString(target, prefix); err != nil {
			return err
		}
		if _, err := target.Write(line); err != nil {
			return err
		}
		_, err := io.WriteString(target, "\n")
		return err
	})
}
