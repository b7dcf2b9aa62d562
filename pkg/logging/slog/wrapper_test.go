package slog

import (
	"bytes"
	"strings"
	"testing"

	"github.com/butter-bot-machines/procmux/pkg/logging"
	"github.com/butter-bot-machines/procmux/pkg/logging/slog/internal/testutil"
)

func TestLoggerWrapper_Levels(t *testing.T) {
	buf := new(bytes.Buffer)
	logger := NewLogger(logging.LevelInfo, buf, logging.FormatJSON)

	tests := []struct {
		name    string
		logFunc func(string, ...interface{})
		want    bool // whether the message should be logged
	}{
		{"Debug below Info", logger.Debug, false},
		{"Info at Info", logger.Info, true},
		{"Warn above Info", logger.Warn, true},
		{"Error above Info", logger.Error, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.logFunc("test message")

			if got := buf.Len() > 0; got != tt.want {
				t.Errorf("Message logged = %v, want %v", got, tt.want)
			}

			if tt.want && buf.Len() > 0 {
				entry := testutil.ParseLogEntry(t, buf.String())
				if entry.Message != "test message" {
					t.Errorf("Message = %v, want 'test message'", entry.Message)
				}
			}
		})
	}
}

func TestLoggerWrapper_Attributes(t *testing.T) {
	buf := new(bytes.Buffer)
	logger := NewLogger(logging.LevelInfo, buf, logging.FormatJSON)

	t.Run("With Attributes", func(t *testing.T) {
		logger := logger.With("process", "SERVER", "pid", 42)
		buf.Reset()

		logger.Info("started")
		entry := testutil.ParseLogEntry(t, buf.String())

		if entry.Attrs["process"] != "SERVER" {
			t.Errorf("Attribute process = %v, want 'SERVER'", entry.Attrs["process"])
		}
		if entry.Attrs["pid"] != float64(42) { // JSON numbers are float64
			t.Errorf("Attribute pid = %v, want 42", entry.Attrs["pid"])
		}
	})

	t.Run("Odd Attributes", func(t *testing.T) {
		buf.Reset()
		logger.Info("test message", "key1", "value1", "key2")
		entry := testutil.ParseLogEntry(t, buf.String())

		if entry.Attrs["key2"] != "MISSING_VALUE" {
			t.Errorf("Missing value = %v, want 'MISSING_VALUE'", entry.Attrs["key2"])
		}
	})
}

func TestLoggerWrapper_TextFormat(t *testing.T) {
	buf := new(bytes.Buffer)
	logger := NewLogger(logging.LevelDebug, buf, logging.FormatText)

	logger.WithGroup("launcher").Debug("starting process", "name", "CLIENT")

	out := buf.String()
	for _, want := range []string{"level=DEBUG", `msg="starting process"`, "launcher.name=CLIENT"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestLoggerWrapper_Output(t *testing.T) {
	buf1 := new(bytes.Buffer)
	logger := NewLogger(logging.LevelInfo, buf1, logging.FormatText)

	logger.Info("test message")
	if buf1.Len() == 0 {
		t.Error("Expected output in buffer1")
	}

	buf2 := new(bytes.Buffer)
	logger.SetOutput(buf2)
	buf1.Reset()

	logger.Info("test message")
	if buf1.Len() > 0 {
		t.Error("Expected no output in buffer1")
	}
	if buf2.Len() == 0 {
		t.Error("Expected output in buffer2")
	}
}

func TestLoggerWrapper_LevelControl(t *testing.T) {
	buf := new(bytes.Buffer)
	logger := NewLogger(logging.LevelInfo, buf, logging.FormatText)

	logger.SetLevel(logging.LevelError)
	logger.Info("info message")
	if buf.Len() > 0 {
		t.Error("Info message should not be logged at Error level")
	}

	logger.Error("error message")
	if buf.Len() == 0 {
		t.Error("Error message should be logged at Error level")
	}

	if got := logger.GetLevel(); got != logging.LevelError {
		t.Errorf("GetLevel() = %v, want Error", got)
	}
}

func TestLoggerWrapper_NilOutput(t *testing.T) {
	logger := NewLogger(logging.LevelInfo, nil, logging.FormatText)
	if logger.GetOutput() == nil {
		t.Error("Output should default to stderr")
	}
}

func TestLoggerWrapper_DerivedLoggersShareLevel(t *testing.T) {
	buf := new(bytes.Buffer)
	root := NewLogger(logging.LevelInfo, buf, logging.FormatJSON)
	proc := root.WithGroup("launcher").With("process", "SERVER")

	proc.Debug("hidden")
	root.SetLevel(logging.LevelDebug)
	proc.Debug("process started", "pid", 7)

	entries := testutil.ParseLogEntries(t, buf.String())
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1:\n%s", len(entries), buf.String())
	}
	if entries[0].Level != "DEBUG" || entries[0].Message != "process started" {
		t.Errorf("entry = %s %q", entries[0].Level, entries[0].Message)
	}
	if v, _ := entries[0].Attr("launcher", "process"); v != "SERVER" {
		t.Errorf("launcher.process = %v, want SERVER", v)
	}
	if v, _ := entries[0].Attr("launcher", "pid"); v != float64(7) {
		t.Errorf("launcher.pid = %v, want 7", v)
	}
	if got := proc.GetLevel(); got != logging.LevelDebug {
		t.Errorf("derived GetLevel() = %v, want Debug", got)
	}
}
