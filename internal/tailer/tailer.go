package tailer

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/kahosan/mosdash/internal/model"
	"github.com/kahosan/mosdash/internal/watcher"
)

// Tailer reads lines appended to watched files after it started and emits
// them as RawLine values.
type Tailer struct {
	mu     sync.Mutex
	files  map[string]*trackedFile
	out    chan model.RawLine
	events <-chan watcher.Event
	watch  *watcher.Watcher
	logger zerolog.Logger

	retries    int
	retryDelay time.Duration
}

type trackedFile struct {
	file   *os.File
	reader *bufio.Reader
	offset int64
	buf    string // partial line buffer
}

// New creates a Tailer that reads events from the given Watcher.
func New(w *watcher.Watcher, logger zerolog.Logger) *Tailer {
	return &Tailer{
		files:      make(map[string]*trackedFile),
		out:        make(chan model.RawLine, 512),
		events:     w.Events,
		watch:      w,
		logger:     logger.With().Str("component", "tailer").Logger(),
		retries:    5,
		retryDelay: time.Second,
	}
}

// Lines returns the channel where raw log lines are sent.
func (t *Tailer) Lines() <-chan model.RawLine {
	return t.out
}

// Start begins processing watcher events. Blocks until ctx is cancelled.
func (t *Tailer) Start(ctx context.Context) {
	defer close(t.out)
	defer t.closeAll()

	for _, p := range t.watch.Paths() {
		t.openFile(p, false)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-t.events:
			if !ok {
				return
			}
			t.handleEvent(ctx, ev)
		}
	}
}

func (t *Tailer) handleEvent(ctx context.Context, ev watcher.Event) {
	switch {
	case ev.Op&fsnotify.Write != 0:
		t.readNewLines(ctx, ev.Path)

	case ev.Op&fsnotify.Create != 0:
		// A file created after rotation is read from the start.
		t.openFile(ev.Path, true)
		t.readNewLines(ctx, ev.Path)

	case ev.Op&fsnotify.Remove != 0, ev.Op&fsnotify.Rename != 0:
		t.closeFile(ev.Path)
		go t.reconnect(ctx, ev.Path)
	}
}

// openFile starts tracking path, at the end of the file unless fromStart.
func (t *Tailer) openFile(path string, fromStart bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.files[path]; exists {
		return
	}

	f, err := os.Open(path)
	if err != nil {
		t.logger.Warn().Err(err).Str("path", path).Msg("cannot open file")
		return
	}

	var offset int64
	if !fromStart {
		offset, _ = f.Seek(0, io.SeekEnd)
	}

	t.files[path] = &trackedFile{
		file:   f,
		reader: bufio.NewReader(f),
		offset: offset,
	}
}

// readNewLines reads from the last offset to EOF and emits complete lines.
func (t *Tailer) readNewLines(ctx context.Context, path string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tf, ok := t.files[path]
	if !ok {
		return
	}

	// Truncated in place (copytruncate rotation): start over.
	if fi, err := tf.file.Stat(); err == nil && fi.Size() < tf.offset {
		_, _ = tf.file.Seek(0, io.SeekStart)
		tf.reader.Reset(tf.file)
		tf.offset = 0
		tf.buf = ""
	}

	for {
		chunk, err := tf.reader.ReadString('\n')
		tf.offset += int64(len(chunk))
		if err != nil {
			tf.buf += chunk
			if !errors.Is(err, io.EOF) {
				t.logger.Error().Err(err).Str("path", path).Msg("read error")
			}
			return
		}

		line := strings.TrimRight(tf.buf+chunk, "\r\n")
		tf.buf = ""
		select {
		case t.out <- model.RawLine{Text: line, Source: path}:
		case <-ctx.Done():
			return
		}
	}
}

// closeFile releases a tracked file.
func (t *Tailer) closeFile(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if tf, ok := t.files[path]; ok {
		tf.file.Close()
		delete(t.files, path)
	}
}

// reconnect polls for a rotated file to reappear.
func (t *Tailer) reconnect(ctx context.Context, path string) {
	for i := 0; i < t.retries; i++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(t.retryDelay):
		}
		if _, err := os.Stat(path); err == nil {
			t.logger.Info().Str("path", path).Msg("reconnected to rotated file")
			_ = t.watch.ReWatch(path)
			// Lines are picked up on the next write event.
			t.openFile(path, true)
			return
		}
	}
	t.logger.Warn().Str("path", path).Int("retries", t.retries).Msg("gave up reconnecting")
}

// closeAll closes all tracked file handles.
func (t *Tailer) closeAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for path, tf := range t.files {
		tf.file.Close()
		delete(t.files, path)
	}
}
