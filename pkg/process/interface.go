package process

import (
	"fmt"
	"strings"
	"time"
)

// Descriptor is the static definition of one child process
type Descriptor struct {
	// Name tags every output line of the process
	Name string
	// Command is the executable followed by its arguments
	Command []string
	// Padding is the prefix padding; zero means output.DefaultPadding
	Padding int
	// Env is overlaid on the parent environment
	Env map[string]string
	// Delay is waited before the process is spawned
	Delay time.Duration
}

// Process is the runtime state of a started Descriptor
type Process interface {
	// Start spawns the process and its output reader. It may be called once.
	Start() error
	// Join blocks until the process has exited and all of its output has
	// been written to the sink.
	Join() error
	// Kill announces and forcibly terminates the process, then joins it.
	// Killing a process that already exited is not an error.
	Kill() error

	// State
	Name() string
	ID() int
	Running() bool
	ExitCode() int
}

// Manager creates processes from descriptors
type Manager interface {
	New(d Descriptor) Process
	List() []Process
}

// Error types for process operations
var (
	ErrNotStarted     = Error{"process not started"}
	ErrAlreadyStarted = Error{"process already started"}
	ErrEmptyCommand   = Error{"empty command"}
)

// Error represents a process error
type Error struct {
	Message string
}

func (e Error) Error() string {
	return e.Message
}

// SpawnError reports that the OS could not create a child process
type SpawnError struct {
	Name    string
	Command []string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s (%s): %v", e.Name, strings.Join(e.Command, " "), e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}
