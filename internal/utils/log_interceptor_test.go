package utils

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineWriter_SplitsOnNewlineAndCarriageReturn(t *testing.T) {
	var lines []string
	w := NewLineWriter(func(line []byte) error {
		lines = append(lines, string(line))
		return nil
	})

	_, err := w.Write([]byte("first\nsec"))
	require.NoError(t, err)
	assert.Equal(t, []string{"first"}, lines)

	_, err = w.Write([]byte("ond\r\nthird\rfou"))
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, lines)

	require.NoError(t, w.Close())
	assert.Equal(t, []string{"first", "second", "third", "fou"}, lines)
}

func TestLogInterceptor_PrefixesLines(t *testing.T) {
	var out bytes.Buffer
	w := NewLogInterceptor(&out)

	_, err := w.Write([]byte("level=INFO msg=one\nlevel=INFO msg=two\n"))
	require.NoError(t, err)

	got := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, got, 2)
	assert.True(t, strings.HasPrefix(got[0], "line=1 time="))
	assert.True(t, strings.HasSuffix(got[0], "msg=one"))
	assert.True(t, strings.HasPrefix(got[1], "line=2 time="))
}

func TestMultiLogHandler_FansOutByLevel(t *testing.T) {
	var debugOut, infoOut bytes.Buffer
	debugH := slog.NewTextHandler(&debugOut, &slog.HandlerOptions{Level: slog.LevelDebug})
	infoH := slog.NewTextHandler(&infoOut, &slog.HandlerOptions{Level: slog.LevelInfo})

	logger := slog.New(NewMultiLogHandler(debugH, infoH)).With("component", "test")
	logger.Debug("quiet")
	logger.Info("loud")

	assert.Contains(t, debugOut.String(), "msg=quiet")
	assert.Contains(t, debugOut.String(), "msg=loud")
	assert.NotContains(t, infoOut.String(), "msg=quiet")
	assert.Contains(t, infoOut.String(), "component=test")

	h := NewMultiLogHandler(infoH)
	assert.False(t, h.Enabled(context.Background(), slog.LevelDebug))
	assert.Same(t, h, h.WithGroup(""))
}
