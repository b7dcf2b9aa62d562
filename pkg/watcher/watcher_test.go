package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/butter-bot-machines/procmux/pkg/logging"
	"github.com/butter-bot-machines/procmux/pkg/logging/memory"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func TestConfigWatcher(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "procmux.yaml")
	writeFile(t, path, "version: \"1.0\"\n")

	changes := make(chan string, 16)
	w, err := New(Options{
		Path:     path,
		Delay:    20 * time.Millisecond,
		MaxDelay: 200 * time.Millisecond,
		Logger:   memory.NewLogger(logging.LevelDebug, nil),
		OnChange: func(p string) { changes <- p },
	})
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	defer w.Stop()

	t.Run("file modification", func(t *testing.T) {
		writeFile(t, path, "version: \"1.0\"\nlog_level: debug\n")

		select {
		case got := <-changes:
			if got != w.Path() {
				t.Errorf("OnChange path = %q, want %q", got, w.Path())
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Timed out waiting for change")
		}
	})

	t.Run("debouncing", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			writeFile(t, path, "version: \"1.0\"\n")
			time.Sleep(2 * time.Millisecond)
		}

		timeout := time.After(500 * time.Millisecond)
		count := 0
	loop:
		for {
			select {
			case <-changes:
				count++
			case <-timeout:
				break loop
			}
		}
		if count == 0 || count > 2 { // allow for scheduler variation
			t.Errorf("Expected debounced events, got %d callbacks", count)
		}
	})

	t.Run("other files ignored", func(t *testing.T) {
		writeFile(t, filepath.Join(dir, "notes.txt"), "unrelated")

		select {
		case p := <-changes:
			t.Errorf("Unexpected change for %s", p)
		case <-time.After(200 * time.Millisecond):
		}
	})

	t.Run("replaced by rename", func(t *testing.T) {
		tmp := filepath.Join(dir, "procmux.yaml.tmp")
		writeFile(t, tmp, "version: \"1.0\"\ncolor: never\n")
		if err := os.Rename(tmp, path); err != nil {
			t.Fatalf("Failed to rename: %v", err)
		}

		select {
		case <-changes:
		case <-time.After(2 * time.Second):
			t.Fatal("Timed out waiting for change")
		}
	})
}

func TestConfigWatcher_DefaultWarns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "procmux.yaml")
	writeFile(t, path, "version: \"1.0\"\n")

	logger := memory.NewLogger(logging.LevelDebug, nil)
	w, err := New(Options{Path: path, Delay: 10 * time.Millisecond, Logger: logger})
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	defer w.Stop()

	writeFile(t, path, "version: \"1.0\"\ncolor: always\n")

	const msg = "config file changed; restart procmux to apply"
	deadline := time.Now().Add(2 * time.Second)
	for len(logger.Find(msg)) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Timed out waiting for warning")
		}
		time.Sleep(10 * time.Millisecond)
	}

	entry := logger.Find(msg)[0]
	if entry.Level != logging.LevelWarn {
		t.Errorf("level = %v, want %v", entry.Level, logging.LevelWarn)
	}
	if v, _ := entry.Value("path"); v != w.Path() {
		t.Errorf("path = %v, want %s", v, w.Path())
	}
}

func TestConfigWatcherErrors(t *testing.T) {
	t.Run("no path", func(t *testing.T) {
		if _, err := New(Options{}); !errors.Is(err, ErrNoPath) {
			t.Errorf("New error = %v, want ErrNoPath", err)
		}
	})

	t.Run("invalid path", func(t *testing.T) {
		if _, err := New(Options{Path: "/nonexistent/dir/procmux.yaml"}); err == nil {
			t.Error("Expected error for invalid path")
		}
	})

	t.Run("stop twice", func(t *testing.T) {
		w, err := New(Options{Path: filepath.Join(t.TempDir(), "procmux.yaml")})
		if err != nil {
			t.Fatalf("Failed to create watcher: %v", err)
		}
		if err := w.Stop(); err != nil {
			t.Errorf("first Stop: %v", err)
		}
		if err := w.Stop(); err != nil {
			t.Errorf("second Stop: %v", err)
		}
	})
}
