// Package launcher starts a fixed list of processes, waits for all of them
// and kills the whole set when anything goes wrong.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/butter-bot-machines/procmux/pkg/logging"
	slogging "github.com/butter-bot-machines/procmux/pkg/logging/slog"
	"github.com/butter-bot-machines/procmux/pkg/process"
	"github.com/butter-bot-machines/procmux/pkg/timing"
)

// Error types for launcher operations
var (
	ErrNoManager   = Error{"process manager is required"}
	ErrNoProcesses = Error{"no processes to launch"}
	ErrInterrupted = Error{"interrupted"}
)

// Error represents a launcher error
type Error struct {
	Message string
}

func (e Error) Error() string {
	return e.Message
}

// Options configures a Launcher
type Options struct {
	Manager     process.Manager
	Descriptors []process.Descriptor
	Logger      logging.Logger
	// Clock times start delays; defaults to the real clock
	Clock timing.Clock
}

// KillResult is the outcome of one kill attempt during cleanup
type KillResult struct {
	Name string
	Err  error
}

// Report describes how a run ended
type Report struct {
	// Cause is the error that sent the run down the cleanup path, or nil
	// when every process exited on its own
	Cause error
	// Killed holds one result per process, in list order, when cleanup ran
	Killed []KillResult
}

// Interrupted reports whether the run was stopped by cancellation rather
// than by a failure
func (r Report) Interrupted() bool {
	return errors.Is(r.Cause, ErrInterrupted) || errors.Is(r.Cause, context.Canceled)
}

// KillErr joins the kill failures of processes that had been started
func (r Report) KillErr() error {
	var errs []error
	for _, k := range r.Killed {
		if k.Err != nil && !errors.Is(k.Err, process.ErrNotStarted) {
			errs = append(errs, fmt.Errorf("%s: %w", k.Name, k.Err))
		}
	}
	return errors.Join(errs...)
}

// Launcher drives a list of processes through start, join and kill
type Launcher struct {
	procs  []process.Process
	descs  []process.Descriptor
	logger logging.Logger
	clock  timing.Clock
}

// New creates the processes for opts.Descriptors without starting them
func New(opts Options) (*Launcher, error) {
	if opts.Manager == nil {
		return nil, ErrNoManager
	}
	if len(opts.Descriptors) == 0 {
		return nil, ErrNoProcesses
	}
	if opts.Logger == nil {
		opts.Logger = slogging.NewLogger(logging.LevelInfo, nil, logging.FormatText)
	}

	l := &Launcher{
		descs:  append([]process.Descriptor(nil), opts.Descriptors...),
		logger: opts.Logger.WithGroup("launcher"),
		clock:  timing.Or(opts.Clock),
	}
	for _, d := range l.descs {
		l.procs = append(l.procs, opts.Manager.New(d))
	}
	return l, nil
}

// Processes returns the managed processes in list order
func (l *Launcher) Processes() []process.Process {
	return append([]process.Process(nil), l.procs...)
}

// Run starts every process in order and then joins every process in order.
// If a start or join fails, or ctx is cancelled, every process is killed
// instead. Run never returns an error; the outcome is in the Report.
func (l *Launcher) Run(ctx context.Context) Report {
	if err := l.startAll(ctx); err != nil {
		return l.killAll(err)
	}
	if err := l.joinAll(ctx); err != nil {
		return l.killAll(err)
	}
	l.logger.Info("all processes exited")
	return Report{}
}

func (l *Launcher) startAll(ctx context.Context) error {
	for i, p := range l.procs {
		if delay := l.descs[i].Delay; delay > 0 {
			l.logger.Debug("delaying start", "process", p.Name(), "delay", delay)
			if err := l.sleep(ctx, delay); err != nil {
				return err
			}
		}
		if ctx.Err() != nil {
			return context.Cause(ctx)
		}

		if err := p.Start(); err != nil {
			return err
		}
		l.logger.Info("started process", "process", p.Name(), "pid", p.ID())
	}
	return nil
}

func (l *Launcher) sleep(ctx context.Context, d time.Duration) error {
	t := l.clock.Timer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}

// joinAll waits in a helper goroutine so that cancellation can switch the
// run to the kill path while a Join is still blocked.
func (l *Launcher) joinAll(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		for _, p := range l.procs {
			if err := p.Join(); err != nil {
				done <- fmt.Errorf("join %s: %w", p.Name(), err)
				return
			}
			l.logger.Info("process exited", "process", p.Name(), "code", p.ExitCode())
		}
		done <- nil
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}

// killAll kills every process in list order. Failures are logged and
// recorded; they never stop the remaining kills.
func (l *Launcher) killAll(cause error) Report {
	report := Report{Cause: cause}
	if report.Interrupted() {
		l.logger.Info("stopping all processes", "cause", cause)
	} else {
		l.logger.Error("stopping all processes", "error", cause)
	}

	for _, p := range l.procs {
		err := kill(p)
		report.Killed = append(report.Killed, KillResult{Name: p.Name(), Err: err})

		switch {
		case err == nil:
			l.logger.Debug("killed process", "process", p.Name())
		case errors.Is(err, process.ErrNotStarted):
			l.logger.Debug("process was never started", "process", p.Name())
		default:
			l.logger.Error("kill failed", "process", p.Name(), "error", err)
		}
	}
	return report
}

func kill(p process.Process) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("kill %s panicked: %v", p.Name(), r)
		}
	}()
	return p.Kill()
}
