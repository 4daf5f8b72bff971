// Package control starts, stops and restarts the managed service.
package control

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

var (
	ErrUnknownAction = errors.New("unknown action")
	ErrRateLimited   = errors.New("too many control requests")
)

// Action is a service manager verb.
type Action string

const (
	Start   Action = "start"
	Stop    Action = "stop"
	Restart Action = "restart"
)

// Actions lists every supported action in display order.
var Actions = []Action{Start, Stop, Restart}

func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case Start, Stop, Restart:
		return Action(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// Runner executes a command line.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}

// Options configures a Controller.
type Options struct {
	Command string        // service manager binary, "systemctl" by default
	Unit    string        // managed unit, "mosdns" by default
	Timeout time.Duration // per command
	Rate    float64       // actions per second; <= 0 disables limiting
	Burst   int
}

// Controller issues service manager commands for a single unit.
type Controller struct {
	runner  Runner
	command string
	unit    string
	timeout time.Duration
	limiter *rate.Limiter
	logger  zerolog.Logger
}

func New(opts Options, runner Runner, logger zerolog.Logger) *Controller {
	if opts.Command == "" {
		opts.Command = "systemctl"
	}
	if opts.Unit == "" {
		opts.Unit = "mosdns"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if runner == nil {
		runner = ExecRunner{}
	}

	c := &Controller{
		runner:  runner,
		command: opts.Command,
		unit:    opts.Unit,
		timeout: opts.Timeout,
		logger:  logger.With().Str("component", "control").Logger(),
	}
	if opts.Rate > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.Rate), burst)
	}
	return c
}

// Do runs the action against the unit.
func (c *Controller) Do(ctx context.Context, a Action) error {
	if _, err := ParseAction(string(a)); err != nil {
		return err
	}
	if c.limiter != nil && !c.limiter.Allow() {
		c.logger.Warn().Str("action", string(a)).Msg("control request rate limited")
		return ErrRateLimited
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := c.runner.Run(ctx, c.command, string(a), c.unit)
	ev := c.logger.Info()
	if err != nil {
		ev = c.logger.Error().Err(err)
	}
	ev.Str("action", string(a)).
		Str("unit", c.unit).
		Dur("took", time.Since(start)).
		Msg("service command finished")
	return err
}
