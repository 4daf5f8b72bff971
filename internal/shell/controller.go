package shell

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kahosan/mosdash/internal/model"
)

// ErrNoFile is returned by Save when no file is selected.
var ErrNoFile = errors.New("no file selected")

// Backend is the subset of the HTTP client the controller uses.
type Backend interface {
	ListFiles(ctx context.Context, dir string) ([]string, error)
	ReadFile(ctx context.Context, dir, name string) (string, error)
	SaveFile(ctx context.Context, dir, name, content string) (string, error)
	Action(ctx context.Context, action string) (string, error)
	Logs(ctx context.Context) ([]model.LogEntry, error)
}

// Op names a controller operation in notifications.
type Op string

const (
	OpFiles   Op = "files"
	OpContent Op = "content"
	OpSave    Op = "save"
	OpLogs    Op = "logs"
)

// Outcome is the tagged result of one operation.
type Outcome struct {
	Op      Op
	OK      bool
	Message string // backend confirmation on success
	Err     error
}

func success(op Op, msg string) Outcome { return Outcome{Op: op, OK: true, Message: msg} }
func failure(op Op, err error) Outcome  { return Outcome{Op: op, Err: err} }

// Notifier surfaces operation progress to the operator.
type Notifier interface {
	Loading(op Op)
	Done(o Outcome)
}

// NopNotifier discards notifications.
type NopNotifier struct{}

func (NopNotifier) Loading(Op)   {}
func (NopNotifier) Done(Outcome) {}

// Controller runs console operations against a Backend and keeps State.
// Operations block until the backend answers and may be called from any
// goroutine.
type Controller struct {
	mu       sync.Mutex
	state    State
	backend  Backend
	notify   Notifier
	onChange func(State)
	logger   zerolog.Logger
}

// Options configures a Controller. All fields are optional.
type Options struct {
	Notifier Notifier
	OnChange func(State) // called after every state change, outside the lock
	Logger   zerolog.Logger
}

func NewController(backend Backend, opts Options) *Controller {
	if opts.Notifier == nil {
		opts.Notifier = NopNotifier{}
	}
	return &Controller{
		state:    NewState(),
		backend:  backend,
		notify:   opts.Notifier,
		onChange: opts.OnChange,
		logger:   opts.Logger.With().Str("component", "shell").Logger(),
	}
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// update applies fn under the lock and publishes the new state.
func (c *Controller) update(fn func(s *State)) {
	c.mu.Lock()
	fn(&c.state)
	snap := c.state
	c.mu.Unlock()

	if c.onChange != nil {
		c.onChange(snap)
	}
}

func (c *Controller) finish(o Outcome) Outcome {
	if o.Err != nil {
		c.logger.Debug().Err(o.Err).Str("op", string(o.Op)).Msg("operation failed")
	}
	c.notify.Done(o)
	return o
}

// LoadFiles fetches the file list of the selected directory type.
func (c *Controller) LoadFiles(ctx context.Context) Outcome {
	dir := c.Snapshot().Dir
	c.notify.Loading(OpFiles)

	names, err := c.backend.ListFiles(ctx, string(dir))
	if err != nil {
		return c.finish(failure(OpFiles, err))
	}
	c.update(func(s *State) { s.FilesFetched(dir, names) })
	return c.finish(success(OpFiles, ""))
}

// SelectDirType switches category and loads its file list.
func (c *Controller) SelectDirType(ctx context.Context, d DirType) Outcome {
	c.update(func(s *State) { s.SelectDirType(d) })
	return c.LoadFiles(ctx)
}

// SelectFile switches file and loads its content.
func (c *Controller) SelectFile(ctx context.Context, name string) Outcome {
	c.update(func(s *State) { s.SelectFile(name) })
	return c.LoadContent(ctx)
}

// Reload discards the buffer and refetches the selected file, the same as
// selecting it again.
func (c *Controller) Reload(ctx context.Context) Outcome {
	var file string
	c.update(func(s *State) {
		file = s.File
		if file != "" {
			s.SelectFile(file)
		}
	})
	if file == "" {
		return c.finish(failure(OpContent, ErrNoFile))
	}
	return c.LoadContent(ctx)
}

// LoadContent fetches the selected file. A result that arrives after the
// selection changed is dropped.
func (c *Controller) LoadContent(ctx context.Context) Outcome {
	snap := c.Snapshot()
	if snap.File == "" {
		return success(OpContent, "")
	}
	c.notify.Loading(OpContent)

	content, err := c.backend.ReadFile(ctx, string(snap.Dir), snap.File)
	if err != nil {
		return c.finish(failure(OpContent, err))
	}
	c.update(func(s *State) {
		if !s.ContentFetched(snap.ContentGen, content) {
			c.logger.Debug().Str("file", snap.File).Msg("dropped superseded content fetch")
		}
	})
	return c.finish(success(OpContent, ""))
}

// Edit replaces the editor buffer.
func (c *Controller) Edit(content string) {
	c.update(func(s *State) { s.EditContent(content) })
}

// Save posts the buffer to the selected file, then refetches the file
// whatever the result. The returned outcome is the save's.
func (c *Controller) Save(ctx context.Context) Outcome {
	var (
		dir           DirType
		file, content string
		ok            bool
	)
	c.update(func(s *State) { dir, file, content, ok = s.SaveRequested() })
	if !ok {
		return c.finish(failure(OpSave, ErrNoFile))
	}
	c.notify.Loading(OpSave)

	msg, err := c.backend.SaveFile(ctx, string(dir), file, content)
	c.update(func(s *State) { s.SaveCompleted() })
	c.LoadContent(ctx)

	if err != nil {
		return c.finish(failure(OpSave, err))
	}
	return c.finish(success(OpSave, msg))
}

// Action triggers start, stop or restart.
func (c *Controller) Action(ctx context.Context, action string) Outcome {
	op := Op(action)
	c.notify.Loading(op)

	msg, err := c.backend.Action(ctx, action)
	if err != nil {
		return c.finish(failure(op, err))
	}
	return c.finish(success(op, msg))
}

// ToggleLog switches between editor and log table and returns the new mode.
func (c *Controller) ToggleLog() bool {
	var show bool
	c.update(func(s *State) {
		s.ToggleLog()
		show = s.ShowLog
	})
	return show
}

// RefreshLogs refetches the log batch.
func (c *Controller) RefreshLogs(ctx context.Context) Outcome {
	c.notify.Loading(OpLogs)

	entries, err := c.backend.Logs(ctx)
	if err != nil {
		return c.finish(failure(OpLogs, err))
	}
	c.update(func(s *State) { s.LogsFetched(entries) })
	return c.finish(success(OpLogs, ""))
}

// AutoRefresh refreshes logs every interval until ctx is cancelled.
func (c *Controller) AutoRefresh(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.RefreshLogs(ctx)
		}
	}
}
