// Package shell holds the console state and the operations that drive it,
// independent of how the console is drawn.
package shell

import (
	"fmt"

	"github.com/kahosan/mosdash/internal/model"
)

// DirType selects which backend file category is being browsed.
type DirType string

const (
	DirConfig DirType = "config"
	DirRule   DirType = "rule"
)

// DirTypes lists the selectable categories in display order.
var DirTypes = []DirType{DirConfig, DirRule}

func ParseDirType(s string) (DirType, error) {
	switch DirType(s) {
	case DirConfig, DirRule:
		return DirType(s), nil
	}
	return "", fmt.Errorf("unknown directory type %q (want config or rule)", s)
}

// State is everything the console shows. It changes only through the event
// methods below. Slices are replaced, never mutated in place, so a shallow
// copy is a consistent snapshot.
type State struct {
	Dir   DirType
	Files []string
	File  string

	// Content is the editable buffer; Remote is the last value fetched for
	// the selected file. Content is filled from Remote only while empty so a
	// background refetch never clobbers an edit in progress.
	Content   string
	Remote    string
	HasRemote bool

	Saving  bool
	ShowLog bool
	Logs    []model.LogEntry

	// ContentGen identifies the current file selection. A content fetch started
	// under an older generation has been superseded and is ignored.
	ContentGen uint64
}

func NewState() State {
	return State{Dir: DirConfig}
}

// Dirty reports whether the buffer differs from the last fetched content.
func (s *State) Dirty() bool {
	return s.HasRemote && s.Content != s.Remote
}

// SelectDirType switches category. The file selection and buffer are cleared.
func (s *State) SelectDirType(d DirType) {
	s.Dir = d
	s.Files = nil
	s.clearFile()
	s.File = ""
}

// SelectFile switches file and clears the buffer.
func (s *State) SelectFile(name string) {
	s.clearFile()
	s.File = name
}

func (s *State) clearFile() {
	s.Content = ""
	s.Remote = ""
	s.HasRemote = false
	s.ContentGen++
}

// EditContent replaces the buffer.
func (s *State) EditContent(content string) {
	s.Content = content
}

// FilesFetched records a file list. It returns false when dir is no longer selected.
func (s *State) FilesFetched(dir DirType, names []string) bool {
	if dir != s.Dir {
		return false
	}
	s.Files = names
	return true
}

// ContentFetched records fetched content for generation gen. It returns false
// when the fetch was superseded by another selection.
func (s *State) ContentFetched(gen uint64, content string) bool {
	if gen != s.ContentGen {
		return false
	}
	s.Remote = content
	s.HasRemote = true
	if s.Content == "" {
		s.Content = content
	}
	return true
}

// SaveRequested marks a save in flight and returns what to send. ok is false
// when no file is selected.
func (s *State) SaveRequested() (dir DirType, file, content string, ok bool) {
	if s.File == "" {
		return "", "", "", false
	}
	s.Saving = true
	return s.Dir, s.File, s.Content, true
}

// SaveCompleted clears the in-flight flag. The caller refetches content
// whatever the outcome.
func (s *State) SaveCompleted() {
	s.Saving = false
}

// ToggleLog switches between the editor and the log table.
func (s *State) ToggleLog() {
	s.ShowLog = !s.ShowLog
}

// LogsFetched replaces the log batch.
func (s *State) LogsFetched(entries []model.LogEntry) {
	s.Logs = entries
}
