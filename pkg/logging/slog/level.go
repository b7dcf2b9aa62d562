package slog

import (
	"log/slog"

	"github.com/butter-bot-machines/procmux/pkg/logging"
)

// levelToSlog maps a logging.Level onto the slog scale
func levelToSlog(level logging.Level) slog.Level {
	switch level {
	case logging.LevelDebug:
		return slog.LevelDebug
	case logging.LevelWarn:
		return slog.LevelWarn
	case logging.LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// levelFromSlog is the inverse of levelToSlog. Levels between the named
// slog levels round down.
func levelFromSlog(level slog.Level) logging.Level {
	switch {
	case level >= slog.LevelError:
		return logging.LevelError
	case level >= slog.LevelWarn:
		return logging.LevelWarn
	case level >= slog.LevelInfo:
		return logging.LevelInfo
	default:
		return logging.LevelDebug
	}
}
