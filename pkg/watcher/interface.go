package watcher

import "time"

// Default debounce settings for config file changes
const (
	DefaultDelay    = 200 * time.Millisecond
	DefaultMaxDelay = 2 * time.Second
)

// Debouncer coalesces rapid events
type Debouncer interface {
	// Debounce delays execution of fn until events for key settle
	Debounce(key string, fn func())
	// Stop stops the debouncer; pending callbacks are dropped
	Stop()
}

// FileWatcher monitors files for changes
type FileWatcher interface {
	// Stop stops the watcher
	Stop() error
}

// Error represents a watcher error
type Error struct {
	Message string
}

func (e Error) Error() string {
	return e.Message
}

// Watcher errors
var (
	ErrNoPath = Error{"path is required"}
)
