package watcher

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/butter-bot-machines/procmux/pkg/logging"
	"github.com/butter-bot-machines/procmux/pkg/logging/slog"
	"github.com/butter-bot-machines/procmux/pkg/timing"
)

// Options configures a ConfigWatcher
type Options struct {
	Path     string
	Delay    time.Duration
	MaxDelay time.Duration
	Clock    timing.Clock
	Logger   logging.Logger
	// OnChange runs once per debounced burst of changes. The default logs
	// a warning that the running processes were not reloaded.
	OnChange func(path string)
}

// ConfigWatcher watches a single config file. The parent directory is
// watched so that editors replacing the file by rename are still seen.
type ConfigWatcher struct {
	path      string
	fsWatcher *fsnotify.Watcher
	debouncer Debouncer
	logger    logging.Logger
	onChange  func(path string)
	done      chan struct{}
	wg        sync.WaitGroup
	stopped   bool
	mu        sync.Mutex
}

var _ FileWatcher = (*ConfigWatcher)(nil)

// New starts watching opts.Path
func New(opts Options) (*ConfigWatcher, error) {
	if opts.Path == "" {
		return nil, ErrNoPath
	}
	path, err := filepath.Abs(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", opts.Path, err)
	}

	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = DefaultMaxDelay
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.NewLogger(logging.LevelInfo, nil, logging.FormatText)
	}
	logger = logger.WithGroup("watcher")

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := fsWatcher.Add(dir); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch path %s: %w", dir, err)
	}

	w := &ConfigWatcher{
		path:      path,
		fsWatcher: fsWatcher,
		debouncer: NewDebouncer(opts.Delay, opts.MaxDelay, opts.Clock),
		logger:    logger,
		onChange:  opts.OnChange,
		done:      make(chan struct{}),
	}
	if w.onChange == nil {
		w.onChange = w.warn
	}
	logger.Debug("watching config file", "path", path)

	w.wg.Add(1)
	go w.watch()

	return w, nil
}

// Path returns the absolute path being watched
func (w *ConfigWatcher) Path() string {
	return w.path
}

// Stop stops the watcher. It is safe to call more than once.
func (w *ConfigWatcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	close(w.done)
	w.mu.Unlock()

	w.wg.Wait()
	w.debouncer.Stop()
	return w.fsWatcher.Close()
}

func (w *ConfigWatcher) watch() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("config file event", "path", event.Name, "op", event.Op.String())
			w.debouncer.Debounce(w.path, func() {
				w.onChange(w.path)
			})
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

// relevant reports whether event touches the watched file's content
func (w *ConfigWatcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0
}

func (w *ConfigWatcher) warn(path string) {
	w.logger.Warn("config file changed; restart procmux to apply", "path", path)
}
