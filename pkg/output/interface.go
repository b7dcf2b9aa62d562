// Package output formats child process output and writes it to the shared
// console sink.
package output

import "strings"

// Sink is the single destination every reader task writes to. WriteLine
// must write line plus a terminator atomically with respect to other
// callers.
type Sink interface {
	WriteLine(line string) error
}

// ColorMode controls whether prefixes are coloured
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// ParseColorMode validates a colour mode name. The empty string means auto.
func ParseColorMode(s string) (ColorMode, error) {
	switch m := ColorMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ColorAuto, nil
	case ColorAuto, ColorAlways, ColorNever:
		return m, nil
	default:
		return ColorAuto, ErrInvalidColorMode
	}
}

// Error types for output operations
var (
	ErrInvalidColorMode = Error{"invalid color mode"}
)

// Error represents an output error
type Error struct {
	Message string
}

func (e Error) Error() string {
	return e.Message
}
