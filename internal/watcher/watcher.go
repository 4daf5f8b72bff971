// Package watcher reports changes to the mosdns log files.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// ErrNoLogFile is returned by New when no pattern resolves to a watchable file.
var ErrNoLogFile = errors.New("no log file to watch")

// Event is a change to one watched log file.
type Event struct {
	Path string
	Op   fsnotify.Op
}

// Watcher follows the log files matched by a set of paths or glob patterns.
type Watcher struct {
	fsw    *fsnotify.Watcher
	Events chan Event
	paths  []string
	logger zerolog.Logger
}

// New resolves patterns once and watches every matching file. Files created
// later are not picked up; the tailer re-adds rotated files with ReWatch.
func New(patterns []string, logger zerolog.Logger) (*Watcher, error) {
	logger = logger.With().Str("component", "watcher").Logger()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{
		fsw:    fsw,
		Events: make(chan Event, 256),
		logger: logger,
	}

	for _, pattern := range patterns {
		matches, err := expandGlob(pattern)
		if err != nil {
			logger.Warn().Err(err).Str("pattern", pattern).Msg("failed to expand pattern")
			continue
		}
		for _, m := range matches {
			abs, err := filepath.Abs(m)
			if err != nil {
				abs = m
			}
			if err := fsw.Add(abs); err != nil {
				logger.Warn().Err(err).Str("path", abs).Msg("cannot watch log file")
				continue
			}
			w.paths = append(w.paths, abs)
		}
	}

	if len(w.paths) == 0 {
		fsw.Close()
		return nil, fmt.Errorf("%w: %s", ErrNoLogFile, strings.Join(patterns, ", "))
	}
	logger.Debug().Strs("paths", w.paths).Msg("watching log files")
	return w, nil
}

// relevant reports whether op can change what a tailer reads.
func relevant(op fsnotify.Op) bool {
	return op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0
}

// Start forwards relevant events until ctx is cancelled, then closes Events.
func (w *Watcher) Start(ctx context.Context) {
	defer w.fsw.Close()
	defer close(w.Events)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !relevant(ev.Op) {
				continue
			}
			select {
			case w.Events <- Event{Path: ev.Name, Op: ev.Op}:
			case <-ctx.Done():
				return
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("watch error")
		}
	}
}

// Paths returns the watched files as absolute paths.
func (w *Watcher) Paths() []string {
	return w.paths
}

// ReWatch adds a path back after the file was rotated away.
func (w *Watcher) ReWatch(path string) error {
	return w.fsw.Add(path)
}

func expandGlob(pattern string) ([]string, error) {
	return doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly(), doublestar.WithFailOnIOErrors())
}
