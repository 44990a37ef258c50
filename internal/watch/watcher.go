// Package watch observes a build context directory and coalesces file
// change bursts into single redeploy signals.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Config controls a Watcher.
type Config struct {
	// Dir is the directory watched recursively.
	Dir string

	// IgnorePatterns are directory/file name patterns that never
	// trigger a signal.
	IgnorePatterns []string

	// Debounce is the quiet period required before a burst of events
	// collapses into one signal.
	Debounce time.Duration
}

// DefaultConfig returns the watcher configuration for a build context.
func DefaultConfig(dir string) Config {
	return Config{
		Dir: dir,
		IgnorePatterns: []string{
			".git",
			".gantry",
			"__pycache__",
			"node_modules",
			".idea",
			".vscode",
			"*.swp",
			"*~",
			".DS_Store",
		},
		Debounce: 500 * time.Millisecond,
	}
}

// Watcher emits one signal per quiet-separated burst of changes.
type Watcher struct {
	config  Config
	watcher *fsnotify.Watcher
	changes chan struct{}
	errors  chan error

	mu    sync.Mutex
	timer *time.Timer
}

// New creates a Watcher and registers the directory tree.
func New(config Config) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		config:  config,
		watcher: fsWatcher,
		changes: make(chan struct{}, 1),
		errors:  make(chan error, 10),
	}

	if err := w.addRecursive(config.Dir); err != nil {
		fsWatcher.Close()
		return nil, err
	}

	return w, nil
}

// Start consumes filesystem events until the context ends.
func (w *Watcher) Start(ctx context.Context) {
	go w.processEvents(ctx)
}

// Close releases the underlying watcher.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.watcher.Close()
}

// Changes delivers one value per coalesced burst. The channel holds at
// most one pending signal; changes arriving mid-run queue exactly one
// follow-up run.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Errors delivers watcher errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if path != dir && w.matchesIgnore(info.Name()) {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if w.shouldIgnore(event.Name) {
		return
	}

	// Newly created directories need to be watched too.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.addRecursive(event.Name)
		}
	}

	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) &&
		!event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
		return
	}

	w.debounce()
}

// debounce restarts the quiet-period timer; only when it fires does a
// single signal go out for the whole burst.
func (w *Watcher) debounce() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.config.Debounce, func() {
		select {
		case w.changes <- struct{}{}:
		default:
			// A signal is already pending; the burst folds into it.
		}
	})
}

func (w *Watcher) matchesIgnore(name string) bool {
	for _, pattern := range w.config.IgnorePatterns {
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
	}
	return false
}

func (w *Watcher) shouldIgnore(path string) bool {
	for _, part := range strings.Split(path, string(filepath.Separator)) {
		if w.matchesIgnore(part) {
			return true
		}
	}
	return false
}
