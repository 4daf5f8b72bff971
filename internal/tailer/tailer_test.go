package tailer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kahosan/mosdash/internal/model"
	"github.com/kahosan/mosdash/internal/watcher"
)

func startTailer(t *testing.T, logPath string) (*Tailer, context.CancelFunc) {
	t.Helper()
	w, err := watcher.New([]string{logPath}, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, w.Paths(), 1)

	tail := New(w, zerolog.Nop())
	tail.retryDelay = 50 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	go w.Start(ctx)
	go tail.Start(ctx)

	// Give the tailer a moment to open and seek to end.
	time.Sleep(300 * time.Millisecond)
	return tail, cancel
}

func appendTo(t *testing.T, path, s string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(s)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func next(t *testing.T, tail *Tailer) model.RawLine {
	t.Helper()
	select {
	case raw := <-tail.Lines():
		return raw
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for log line")
	}
	return model.RawLine{}
}

func TestTailNewLines(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "mosdns.log")
	require.NoError(t, os.WriteFile(logPath, []byte("2025-06-03T02:00:08.738+0800 INFO existing\n"), 0o644))

	tail, cancel := startTailer(t, logPath)
	defer func() {
		cancel()
		time.Sleep(100 * time.Millisecond)
	}()

	appendTo(t, logPath, "2025-06-03T02:00:09.000+0800 INFO hello from test\n")

	raw := next(t, tail)
	assert.Equal(t, "2025-06-03T02:00:09.000+0800 INFO hello from test", raw.Text)
	assert.Equal(t, logPath, raw.Source)
}

func TestTailPartialLine(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "mosdns.log")
	require.NoError(t, os.WriteFile(logPath, nil, 0o644))

	tail, cancel := startTailer(t, logPath)
	defer func() {
		cancel()
		time.Sleep(100 * time.Millisecond)
	}()

	appendTo(t, logPath, "first ha")
	time.Sleep(200 * time.Millisecond)
	appendTo(t, logPath, "lf\nsecond\n")

	assert.Equal(t, "first half", next(t, tail).Text)
	assert.Equal(t, "second", next(t, tail).Text)
}

func TestTailTruncate(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "mosdns.log")
	require.NoError(t, os.WriteFile(logPath, []byte("2025-06-03T02:00:08.738+0800 INFO a fairly long line before copytruncate\n"), 0o644))

	tail, cancel := startTailer(t, logPath)
	defer func() {
		cancel()
		time.Sleep(100 * time.Millisecond)
	}()

	require.NoError(t, os.Truncate(logPath, 0))
	time.Sleep(200 * time.Millisecond)
	appendTo(t, logPath, "after truncate\n")

	assert.Equal(t, "after truncate", next(t, tail).Text)
}

func TestTailRotate(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "mosdns.log")
	require.NoError(t, os.WriteFile(logPath, []byte("old\n"), 0o644))

	tail, cancel := startTailer(t, logPath)
	defer func() {
		cancel()
		time.Sleep(100 * time.Millisecond)
	}()

	require.NoError(t, os.Rename(logPath, filepath.Join(dir, "mosdns.log.1")))
	require.NoError(t, os.WriteFile(logPath, nil, 0o644))

	// Wait for the tailer to reopen the new file.
	time.Sleep(500 * time.Millisecond)
	appendTo(t, logPath, "first in new\n")

	raw := next(t, tail)
	assert.Equal(t, "first in new", raw.Text)
	assert.Equal(t, logPath, raw.Source)
}
