package slog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/butter-bot-machines/procmux/pkg/logging"
)

// LoggerWrapper wraps slog.Logger to implement logging.Logger. Loggers
// derived with With or WithGroup share the level of their parent.
type LoggerWrapper struct {
	*slog.Logger
	level  *slog.LevelVar
	format logging.Format
	output io.Writer
}

// NewLogger creates a new logger with the given level, output and format.
// A nil output logs to stderr so diagnostics never mix with process output.
func NewLogger(level logging.Level, output io.Writer, format logging.Format) logging.Logger {
	if output == nil {
		output = os.Stderr
	}

	lv := new(slog.LevelVar)
	lv.Set(levelToSlog(level))
	return &LoggerWrapper{
		Logger: slog.New(newHandler(output, lv, format)),
		level:  lv,
		format: format,
		output: output,
	}
}

func newHandler(w io.Writer, level slog.Leveler, format logging.Format) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: level,
	}
	if format == logging.FormatJSON {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// GetLevel returns the current log level
func (l *LoggerWrapper) GetLevel() logging.Level {
	return levelFromSlog(l.level.Level())
}

// SetLevel sets the log level of this logger and every logger sharing it
func (l *LoggerWrapper) SetLevel(level logging.Level) {
	l.level.Set(levelToSlog(level))
}

// GetOutput returns the current output writer
func (l *LoggerWrapper) GetOutput() io.Writer {
	return l.output
}

// SetOutput sets the output writer. Attributes and groups added to this
// logger are not carried over.
func (l *LoggerWrapper) SetOutput(w io.Writer) {
	l.output = w
	l.Logger = slog.New(newHandler(w, l.level, l.format))
}

// With returns a new logger with the given attributes
func (l *LoggerWrapper) With(args ...interface{}) logging.Logger {
	return &LoggerWrapper{
		Logger: l.Logger.With(toAttrs(args)...),
		level:  l.level,
		format: l.format,
		output: l.output,
	}
}

// WithGroup returns a new logger with the given group
func (l *LoggerWrapper) WithGroup(name string) logging.Logger {
	return &LoggerWrapper{
		Logger: l.Logger.WithGroup(name),
		level:  l.level,
		format: l.format,
		output: l.output,
	}
}

// Debug logs a debug message
func (l *LoggerWrapper) Debug(msg string, args ...interface{}) {
	l.log(slog.LevelDebug, msg, args...)
}

// Info logs an info message
func (l *LoggerWrapper) Info(msg string, args ...interface{}) {
	l.log(slog.LevelInfo, msg, args...)
}

// Warn logs a warning message
func (l *LoggerWrapper) Warn(msg string, args ...interface{}) {
	l.log(slog.LevelWarn, msg, args...)
}

// Error logs an error message
func (l *LoggerWrapper) Error(msg string, args ...interface{}) {
	l.log(slog.LevelError, msg, args...)
}

func (l *LoggerWrapper) log(level slog.Level, msg string, args ...interface{}) {
	ctx := context.Background()
	if !l.Logger.Enabled(ctx, level) {
		return
	}
	attrs := make([]slog.Attr, 0, len(args)/2+1)
	for _, a := range toAttrs(args) {
		attrs = append(attrs, a.(slog.Attr))
	}
	l.Logger.LogAttrs(ctx, level, msg, attrs...)
}

// toAttrs pairs up key/value arguments. A dangling key gets "MISSING_VALUE".
func toAttrs(args []interface{}) []any {
	if len(args)%2 != 0 {
		args = append(args, "MISSING_VALUE")
	}

	attrs := make([]any, 0, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		attrs = append(attrs, slog.Any(key, args[i+1]))
	}
	return attrs
}
