package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatchDebounce sets the debounce duration for file change events.
func WithWatchDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// WithWatchLogger sets the logger for the watcher.
func WithWatchLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// SpecChangeEvent describes a spec file whose content changed.
type SpecChangeEvent struct {
	Path    string
	OldHash string
	NewHash string
	Time    time.Time
}

// Watcher monitors a directory of spec files and invokes a callback for each
// file whose content changed. Callbacks run one at a time on the watcher's
// goroutine, in path order within a debounce window.
type Watcher struct {
	dir      string
	debounce time.Duration
	logger   *slog.Logger
	onChange func(SpecChangeEvent)

	fsWatcher *fsnotify.Watcher
	done      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup

	mu      sync.Mutex
	hashes  map[string]string    // path -> content hash
	pending map[string]time.Time // path -> last event time
}

// NewWatcher creates a Watcher for the spec files in dir.
func NewWatcher(dir string, onChange func(SpecChangeEvent), opts ...WatcherOption) *Watcher {
	w := &Watcher{
		dir:      dir,
		debounce: 500 * time.Millisecond,
		logger:   slog.Default(),
		onChange: onChange,
		done:     make(chan struct{}),
		hashes:   make(map[string]string),
		pending:  make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start records the current content hashes and begins watching.
func (w *Watcher) Start() error {
	files, err := SpecFiles(w.dir)
	if err != nil {
		return fmt.Errorf("spec watcher: %w", err)
	}
	for _, f := range files {
		h, err := hashFile(f)
		if err != nil {
			return fmt.Errorf("spec watcher: initial hash: %w", err)
		}
		w.hashes[filepath.Clean(f)] = h
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("spec watcher: create fsnotify: %w", err)
	}
	w.fsWatcher = fsw

	if err := fsw.Add(w.dir); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("spec watcher: watch %s: %w", w.dir, err)
	}

	w.wg.Add(1)
	go w.loop()
	return nil
}

// Stop terminates the watcher and waits for the background goroutine to exit.
// It is safe to call Stop multiple times.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() { close(w.done) })
	w.wg.Wait()
	if w.fsWatcher != nil {
		return w.fsWatcher.Close()
	}
	return nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if _, err := FormatFor(event.Name); err != nil {
				continue
			}
			w.mu.Lock()
			w.pending[filepath.Clean(event.Name)] = time.Now()
			w.mu.Unlock()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("spec watcher error", "err", err)

		case <-ticker.C:
			w.processPending()
		}
	}
}

func (w *Watcher) processPending() {
	w.mu.Lock()
	now := time.Now()
	var ready []string
	for path, t := range w.pending {
		if now.Sub(t) >= w.debounce {
			ready = append(ready, path)
		}
	}
	for _, path := range ready {
		delete(w.pending, path)
	}
	w.mu.Unlock()

	sort.Strings(ready)
	for _, path := range ready {
		w.processChange(path)
	}
}

// processChange hashes the file and calls onChange only when the content
// differs from the last known hash.
func (w *Watcher) processChange(path string) {
	newHash, err := hashFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			delete(w.hashes, path)
			return
		}
		w.logger.Error("spec watcher: failed to hash spec", "path", path, "err", err)
		return
	}

	oldHash := w.hashes[path]
	if newHash == oldHash {
		w.logger.Debug("spec watcher: content unchanged, skipping", "path", path)
		return
	}
	w.hashes[path] = newHash

	w.logger.Info("spec changed", "path", path)
	w.onChange(SpecChangeEvent{
		Path:    path,
		OldHash: oldHash,
		NewHash: newHash,
		Time:    time.Now(),
	})
}

func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
