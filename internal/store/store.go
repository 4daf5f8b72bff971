// Package store reads and writes the configuration and rule files managed by
// the console.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

var (
	ErrNotFound    = errors.New("file not found")
	ErrInvalidName = errors.New("invalid file name")
	ErrUnknownDir  = errors.New("unknown directory type")
)

// Dir names one of the managed file categories.
type Dir string

const (
	DirConfig Dir = "config"
	DirRule   Dir = "rule"
)

// ParseDir validates a directory type taken from a URL or the command line.
func ParseDir(s string) (Dir, error) {
	switch Dir(s) {
	case DirConfig, DirRule:
		return Dir(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDir, s)
}

// Options configures where each category lives and which files it lists.
type Options struct {
	Root          string // config directory
	RuleSubdir    string // rule directory, relative to Root
	ConfigPattern string // glob for config files
	RulePattern   string // glob for rule files
}

// Store serves one root directory.
type Store struct {
	dirs     map[Dir]string
	patterns map[Dir]string
}

func New(opts Options) (*Store, error) {
	if opts.RuleSubdir == "" {
		opts.RuleSubdir = "rule"
	}
	if opts.ConfigPattern == "" {
		opts.ConfigPattern = "*.yaml"
	}
	if opts.RulePattern == "" {
		opts.RulePattern = "*"
	}
	for _, p := range []string{opts.ConfigPattern, opts.RulePattern} {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid file pattern %q", p)
		}
	}

	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	return &Store{
		dirs: map[Dir]string{
			DirConfig: root,
			DirRule:   filepath.Join(root, opts.RuleSubdir),
		},
		patterns: map[Dir]string{
			DirConfig: opts.ConfigPattern,
			DirRule:   opts.RulePattern,
		},
	}, nil
}

// Path returns the directory backing d.
func (s *Store) Path(d Dir) string { return s.dirs[d] }

// List returns the sorted names of regular files in d matching its pattern.
func (s *Store) List(d Dir) ([]string, error) {
	dir, ok := s.dirs[d]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDir, d)
	}

	matches, err := doublestar.Glob(os.DirFS(dir), s.patterns[d], doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", d, err)
	}

	names := make([]string, 0, len(matches))
	for _, m := range matches {
		// Nested matches cannot be addressed by a single URL segment.
		if strings.Contains(m, "/") {
			continue
		}
		names = append(names, m)
	}
	if len(names) == 0 {
		if _, err := os.Stat(dir); err != nil {
			return nil, fmt.Errorf("list %s: %w", d, err)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Read returns the content of name in d.
func (s *Store) Read(d Dir, name string) ([]byte, error) {
	path, err := s.resolve(d, name)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, d, name)
	}
	return b, err
}

// Write replaces name in d with content. The file is written to a temp file
// next to the real target and renamed into place, so a symlinked file is
// updated through the link. An existing file keeps its mode; new files get 0644.
func (s *Store) Write(d Dir, name string, content []byte) error {
	path, err := s.resolve(d, name)
	if err != nil {
		return err
	}

	target, mode, err := writeTarget(path)
	if err != nil {
		return fmt.Errorf("write %s/%s: %w", d, name, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write %s/%s: %w", d, name, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s/%s: %w", d, name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s/%s: %w", d, name, err)
	}
	if err := os.Chmod(tmp.Name(), mode); err != nil {
		return fmt.Errorf("write %s/%s: %w", d, name, err)
	}
	return os.Rename(tmp.Name(), target)
}

// writeTarget follows symlinks from path and returns the file to replace
// and the mode to give it.
func writeTarget(path string) (string, fs.FileMode, error) {
	target, err := filepath.EvalSymlinks(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if _, lerr := os.Lstat(path); lerr == nil {
			// Dangling link: create the file it points at.
			dest, err := os.Readlink(path)
			if err != nil {
				return "", 0, err
			}
			if !filepath.IsAbs(dest) {
				dest = filepath.Join(filepath.Dir(path), dest)
			}
			return dest, 0o644, nil
		}
		return path, 0o644, nil
	case err != nil:
		return "", 0, err
	}

	fi, err := os.Stat(target)
	if err != nil {
		return "", 0, err
	}
	if !fi.Mode().IsRegular() {
		return "", 0, fmt.Errorf("%s is not a regular file", target)
	}
	return target, fi.Mode().Perm(), nil
}

func (s *Store) resolve(d Dir, name string) (string, error) {
	dir, ok := s.dirs[d]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownDir, d)
	}
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(dir, name), nil
}
