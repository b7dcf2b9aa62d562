package os

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/butter-bot-machines/procmux/pkg/config/env"
	"github.com/butter-bot-machines/procmux/pkg/logging"
	slogging "github.com/butter-bot-machines/procmux/pkg/logging/slog"
	"github.com/butter-bot-machines/procmux/pkg/output"
	"github.com/butter-bot-machines/procmux/pkg/process"
)

// Options configures a Manager
type Options struct {
	// Sink receives every prefixed output line and kill notice
	Sink output.Sink
	// Logger receives lifecycle diagnostics; defaults to stderr at info
	Logger logging.Logger
	// Color wraps each prefix in a per-process colour
	Color bool
}

// Manager implements process.Manager using real OS processes
type Manager struct {
	mu        sync.RWMutex
	processes []*Process
	sink      output.Sink
	logger    logging.Logger
	color     bool
}

// NewManager creates a new OS process manager
func NewManager(opts Options) *Manager {
	if opts.Sink == nil {
		opts.Sink = output.NewConsole(os.Stdout)
	}
	if opts.Logger == nil {
		opts.Logger = slogging.NewLogger(logging.LevelInfo, nil, logging.FormatText)
	}
	return &Manager{
		sink:   opts.Sink,
		logger: opts.Logger,
		color:  opts.Color,
	}
}

// New creates an unstarted process for d
func (m *Manager) New(d process.Descriptor) process.Process {
	m.mu.Lock()
	defer m.mu.Unlock()

	if d.Padding == 0 {
		d.Padding = output.DefaultPadding
	}
	p := &Process{
		desc:   d,
		index:  len(m.processes),
		sink:   m.sink,
		color:  m.color,
		logger: m.logger.With("process", d.Name),
	}
	m.processes = append(m.processes, p)
	return p
}

// List returns all processes in creation order
func (m *Manager) List() []process.Process {
	m.mu.RLock()
	defer m.mu.RUnlock()

	procs := make([]process.Process, 0, len(m.processes))
	for _, p := range m.processes {
		procs = append(procs, p)
	}
	return procs
}

// Process implements process.Process using a real OS process whose
// combined stdout and stderr are drained by one reader goroutine.
type Process struct {
	desc   process.Descriptor
	index  int
	sink   output.Sink
	color  bool
	logger logging.Logger

	mu      sync.Mutex
	started bool
	cmd     *exec.Cmd
	group   *errgroup.Group // reader task and waiter
	exited  chan struct{}   // closed once the OS process has been reaped
	code    int
}

// Name returns the display name
func (p *Process) Name() string {
	return p.desc.Name
}

// Start spawns the process with stderr sharing the stdout pipe
func (p *Process) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return process.ErrAlreadyStarted
	}
	p.started = true

	if len(p.desc.Command) == 0 {
		return p.spawnError(process.ErrEmptyCommand)
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		return p.spawnError(err)
	}

	cmd := exec.Command(p.desc.Command[0], p.desc.Command[1:]...)
	cmd.Env = env.Merge(os.Environ(), p.desc.Env)
	cmd.Stdout = pw
	cmd.Stderr = pw
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return p.spawnError(err)
	}
	// The child holds its own copy of the write end; closing ours lets the
	// reader see end of stream when the child exits.
	pw.Close()

	p.cmd = cmd
	p.code = -1
	p.exited = make(chan struct{})
	p.group = new(errgroup.Group)

	prefix := output.Prefix(p.desc.Name, p.desc.Padding)
	if p.color {
		prefix = output.Colorize(prefix, p.index)
	}
	p.group.Go(func() error {
		defer pr.Close()
		return p.drain(pr, prefix)
	})
	p.group.Go(p.wait)

	p.logger.Debug("process started", "pid", cmd.Process.Pid, "command", p.desc.Command)
	return nil
}

func (p *Process) spawnError(err error) error {
	return &process.SpawnError{
		Name:    p.desc.Name,
		Command: p.desc.Command,
		Err:     err,
	}
}

// drain copies r to the sink line by line until end of stream
func (p *Process) drain(r io.Reader, prefix string) error {
	dec := output.NewLineDecoder()
	br := bufio.NewReader(r)
	sinkFailed := false

	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			werr := p.sink.WriteLine(output.FormatLine(prefix, dec.Decode(line)))
			if werr != nil && !sinkFailed {
				// Keep reading so the child never blocks on a full pipe
				sinkFailed = true
				p.logger.Warn("writing output failed", "error", werr)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read output of %s: %w", p.desc.Name, err)
		}
	}
}

// wait reaps the process. Any exit status counts as a normal exit.
func (p *Process) wait() error {
	defer close(p.exited)

	err := p.cmd.Wait()
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return fmt.Errorf("wait for %s: %w", p.desc.Name, err)
	}

	code := p.cmd.ProcessState.ExitCode()
	p.mu.Lock()
	p.code = code
	p.mu.Unlock()

	p.logger.Debug("process exited", "code", code)
	return nil
}

func (p *Process) handles() (*exec.Cmd, *errgroup.Group) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cmd, p.group
}

// Join waits for the process to exit and its output to be drained
func (p *Process) Join() error {
	_, group := p.handles()
	if group == nil {
		return process.ErrNotStarted
	}
	return group.Wait()
}

// Kill announces the kill on the sink, terminates the process and joins it.
// A process whose spawn failed still gets the notice but reports
// ErrNotStarted, as there is nothing to terminate.
func (p *Process) Kill() error {
	p.mu.Lock()
	attempted := p.started
	p.mu.Unlock()
	if !attempted {
		return process.ErrNotStarted
	}

	if err := p.sink.WriteLine("Killing process " + p.desc.Name); err != nil {
		p.logger.Warn("writing kill notice failed", "error", err)
	}

	cmd, group := p.handles()
	if group == nil {
		return process.ErrNotStarted
	}

	select {
	case <-p.exited:
	default:
		if err := terminate(cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("kill %s: %w", p.desc.Name, err)
		}
	}
	return group.Wait()
}

// ID returns the process ID, or 0 before the process starts
func (p *Process) ID() int {
	cmd, _ := p.handles()
	if cmd == nil || cmd.Process == nil {
		return 0
	}
	return cmd.Process.Pid
}

// Running returns whether the process has started and not yet been reaped
func (p *Process) Running() bool {
	_, group := p.handles()
	if group == nil {
		return false
	}
	select {
	case <-p.exited:
		return false
	default:
		return true
	}
}

// ExitCode returns the exit code, or -1 if the process has not exited or
// was terminated by a signal
func (p *Process) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started || p.cmd == nil {
		return -1
	}
	return p.code
}
