package logging

import (
	"io"
	"strings"
)

// Level represents a logging level
type Level int

const (
	// Log levels in order of increasing severity
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of a log level
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a level name such as "info" or "WARN" to a Level
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, ErrInvalidLevel
	}
}

// Format selects the encoding of log records
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat validates a log format name
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return FormatText, ErrInvalidFormat
	}
}

// Logger defines the interface for logging operations
type Logger interface {
	// Basic logging
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})

	// Context operations
	With(args ...interface{}) Logger
	WithGroup(name string) Logger

	// Level operations
	SetLevel(level Level)
	GetLevel() Level

	// Output operations
	SetOutput(w io.Writer)
	GetOutput() io.Writer
}

// Error types for logging operations
var (
	ErrInvalidLevel  = Error{"invalid log level"}
	ErrInvalidFormat = Error{"invalid log format"}
)

// Error represents a logging error
type Error struct {
	Message string
}

func (e Error) Error() string {
	return e.Message
}
