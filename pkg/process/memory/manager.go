package memory

import (
	"sync"

	"github.com/butter-bot-machines/procmux/pkg/output"
	"github.com/butter-bot-machines/procmux/pkg/process"
)

// Script describes how a scripted process behaves
type Script struct {
	// Lines are written to the sink, prefixed, when the process starts
	Lines []string
	// StartErr makes Start fail with a SpawnError wrapping it
	StartErr error
	// JoinErr is returned by Join
	JoinErr error
	// KillErr is returned by Kill
	KillErr error
	// Block keeps the process running until it is killed
	Block bool
	// ExitCode is reported once the process has exited on its own
	ExitCode int
}

// Manager implements process.Manager with scripted in-memory processes
type Manager struct {
	mu        sync.RWMutex
	sink      output.Sink
	scripts   map[string]Script
	processes []*Process
	events    []string
	nextPID   int
}

// NewManager creates a new memory process manager writing to sink
func NewManager(sink output.Sink) *Manager {
	if sink == nil {
		sink = discard{}
	}
	return &Manager{
		sink:    sink,
		scripts: make(map[string]Script),
		nextPID: 1,
	}
}

// Script sets the behaviour of processes created for name
func (m *Manager) Script(name string, s Script) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[name] = s
}

// New creates a new scripted process
func (m *Manager) New(d process.Descriptor) process.Process {
	m.mu.Lock()
	defer m.mu.Unlock()

	if d.Padding == 0 {
		d.Padding = output.DefaultPadding
	}
	p := &Process{
		manager: m,
		desc:    d,
		script:  m.scripts[d.Name],
		killed:  make(chan struct{}),
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

// Events returns the lifecycle calls made so far, such as "start SERVER"
func (m *Manager) Events() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.events...)
}

func (m *Manager) record(op, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, op+" "+name)
}

func (m *Manager) pid() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	pid := m.nextPID
	m.nextPID++
	return pid
}

// Process implements process.Process for testing
type Process struct {
	manager *Manager
	desc    process.Descriptor
	script  Script

	mu       sync.RWMutex
	attempts int
	pid      int
	running  bool
	exitCode int
	killOnce sync.Once
	killed   chan struct{}
}

// Name returns the display name
func (p *Process) Name() string {
	return p.desc.Name
}

// Start writes the scripted lines and marks the process as running
func (p *Process) Start() error {
	p.manager.record("start", p.desc.Name)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.attempts > 0 {
		return process.ErrAlreadyStarted
	}
	p.attempts++

	if p.script.StartErr != nil {
		return &process.SpawnError{Name: p.desc.Name, Command: p.desc.Command, Err: p.script.StartErr}
	}
	if len(p.desc.Command) == 0 {
		return &process.SpawnError{Name: p.desc.Name, Err: process.ErrEmptyCommand}
	}

	p.pid = p.manager.pid()
	prefix := output.Prefix(p.desc.Name, p.desc.Padding)
	for _, line := range p.script.Lines {
		p.manager.sink.WriteLine(output.FormatLine(prefix, line))
	}

	p.running = p.script.Block
	p.exitCode = -1
	if !p.script.Block {
		p.exitCode = p.script.ExitCode
	}
	return nil
}

// Join returns once the process is no longer running
func (p *Process) Join() error {
	p.manager.record("join", p.desc.Name)
	if !p.started() {
		return process.ErrNotStarted
	}
	if p.Running() {
		<-p.killed
	}
	return p.script.JoinErr
}

// Kill writes the kill notice and stops a blocked process
func (p *Process) Kill() error {
	p.manager.record("kill", p.desc.Name)
	p.mu.RLock()
	attempted := p.attempts > 0
	p.mu.RUnlock()
	if !attempted {
		return process.ErrNotStarted
	}

	p.manager.sink.WriteLine("Killing process " + p.desc.Name)
	if !p.started() {
		return process.ErrNotStarted
	}
	p.killOnce.Do(func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
		close(p.killed)
	})
	return p.script.KillErr
}

func (p *Process) started() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pid != 0
}

// ID returns the fake process ID, or 0 before a successful start
func (p *Process) ID() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pid
}

// Running returns whether the process is running
func (p *Process) Running() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// ExitCode returns the scripted exit code, or -1 while running or after a kill
func (p *Process) ExitCode() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.pid == 0 {
		return -1
	}
	return p.exitCode
}

type discard struct{}

func (discard) WriteLine(string) error { return nil }
