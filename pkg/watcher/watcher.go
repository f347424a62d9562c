package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/0xmhha/tab-monitor/pkg/discovery"
	"github.com/0xmhha/tab-monitor/pkg/logger"
)

// watcher implements the Watcher interface using fsnotify.
type watcher struct {
	fsw    *fsnotify.Watcher
	logger logger.Logger
	config Config

	events chan Event
	errors chan error

	mu       sync.RWMutex
	running  bool
	closed   bool
	stopChan chan struct{}

	// roots are the watched spool directories. Directories created
	// directly under a root are profile directories and get watched too.
	roots map[string]struct{}

	// Debouncing state.
	debounceTimers map[string]*time.Timer
	debounceMu     sync.Mutex

	// Circuit breaker state.
	failureCount int
}

// New creates a new spool watcher.
func New(cfg Config, log logger.Logger) (Watcher, error) {
	// Set defaults.
	if cfg.DebounceInterval == 0 {
		cfg.DebounceInterval = 100 * time.Millisecond
	}
	if cfg.CircuitBreakerThreshold == 0 {
		cfg.CircuitBreakerThreshold = 5
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = 100
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	log = logger.ForComponent(log, "watcher")
	log.Debug("spool watcher created",
		"debounce_interval", cfg.DebounceInterval)

	return &watcher{
		fsw:            fsw,
		logger:         log,
		config:         cfg,
		events:         make(chan Event, cfg.BufferSize),
		errors:         make(chan error, 10),
		stopChan:       make(chan struct{}),
		roots:          make(map[string]struct{}),
		debounceTimers: make(map[string]*time.Timer),
	}, nil
}

// Start implements Watcher.Start.
func (w *watcher) Start(ctx context.Context, paths []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if w.running {
		return ErrAlreadyStarted
	}

	roots := make([]string, 0, len(paths))
	for _, path := range paths {
		expanded := filepath.Clean(discovery.ExpandHome(path))

		info, err := os.Stat(expanded)
		if err != nil {
			if os.IsNotExist(err) {
				w.logger.Warn("watch path does not exist, skipping",
					"path", expanded)
				continue
			}
			return fmt.Errorf("failed to stat path %s: %w", expanded, err)
		}
		if !info.IsDir() {
			w.logger.Warn("watch path is not a directory, skipping",
				"path", expanded)
			continue
		}

		roots = append(roots, expanded)
	}

	if len(roots) == 0 {
		return ErrInvalidPath
	}

	for _, root := range roots {
		if err := w.addRoot(root); err != nil {
			return fmt.Errorf("failed to add path %s: %w", root, err)
		}
	}

	w.running = true
	w.stopChan = make(chan struct{})

	w.logger.Info("watcher started",
		"paths", roots,
		"path_count", len(roots))

	go w.processEvents(ctx, w.stopChan)

	return nil
}

// Stop implements Watcher.Stop.
func (w *watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if !w.running {
		return ErrNotStarted
	}

	close(w.stopChan)
	w.running = false

	w.logger.Info("watcher stopped")
	return nil
}

// Events implements Watcher.Events.
func (w *watcher) Events() <-chan Event {
	return w.events
}

// Errors implements Watcher.Errors.
func (w *watcher) Errors() <-chan error {
	return w.errors
}

// Close implements Watcher.Close.
func (w *watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true

	if w.running {
		close(w.stopChan)
		w.running = false
	}

	w.debounceMu.Lock()
	for _, timer := range w.debounceTimers {
		timer.Stop()
	}
	w.debounceTimers = nil
	w.debounceMu.Unlock()

	// Timer callbacks send under the read lock, so no send can race with
	// closing the channels here.
	close(w.events)
	close(w.errors)

	if err := w.fsw.Close(); err != nil {
		w.logger.Error("failed to close fsnotify watcher", "error", err)
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	w.logger.Debug("watcher closed")
	return nil
}

// processEvents handles events from fsnotify.
func (w *watcher) processEvents(ctx context.Context, stop <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("event processing stopped", "reason", "context cancelled")
			return

		case <-stop:
			w.logger.Debug("event processing stopped", "reason", "stop signal")
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				w.logger.Warn("fsnotify events channel closed")
				return
			}

			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				w.logger.Warn("fsnotify errors channel closed")
				return
			}

			w.handleError(err)
		}
	}
}

// handleEvent processes a single fsnotify event with debouncing.
func (w *watcher) handleEvent(event fsnotify.Event) {
	if event.Op&fsnotify.Create == fsnotify.Create && w.isProfileDir(event.Name) {
		if err := w.fsw.Add(event.Name); err != nil {
			w.logger.Warn("failed to watch new profile directory",
				"path", event.Name,
				"error", err)
		} else {
			w.logger.Info("watching new profile directory", "path", event.Name)
		}
		w.emitExisting(event.Name)
		return
	}

	if !discovery.IsSpoolFile(event.Name) {
		return
	}

	var op Op
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		op = OpCreate
	case event.Op&fsnotify.Write == fsnotify.Write:
		op = OpWrite
	case event.Op&fsnotify.Remove == fsnotify.Remove:
		op = OpRemove
	case event.Op&fsnotify.Rename == fsnotify.Rename:
		op = OpRename
	case event.Op&fsnotify.Chmod == fsnotify.Chmod:
		op = OpChmod
	default:
		w.logger.Debug("unknown fsnotify operation",
			"op", event.Op,
			"path", event.Name)
		return
	}

	w.debounceEvent(Event{
		Path:      event.Name,
		Op:        op,
		Timestamp: time.Now(),
	})
}

// isProfileDir reports whether path is a directory directly under a root.
func (w *watcher) isProfileDir(path string) bool {
	w.mu.RLock()
	_, ok := w.roots[filepath.Dir(path)]
	w.mu.RUnlock()
	if !ok {
		return false
	}

	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// emitExisting reports spool files that appeared in a new profile
// directory before it was watched.
func (w *watcher) emitExisting(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() || !discovery.IsSpoolFile(path) {
			continue
		}
		w.debounceEvent(Event{Path: path, Op: OpCreate, Timestamp: time.Now()})
	}
}

// debounceEvent implements event debouncing.
func (w *watcher) debounceEvent(event Event) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimers == nil {
		return
	}

	if timer, exists := w.debounceTimers[event.Path]; exists {
		timer.Stop()
	}

	w.debounceTimers[event.Path] = time.AfterFunc(w.config.DebounceInterval, func() {
		w.debounceMu.Lock()
		if w.debounceTimers != nil {
			delete(w.debounceTimers, event.Path)
		}
		w.debounceMu.Unlock()

		w.mu.RLock()
		defer w.mu.RUnlock()

		if w.closed {
			return
		}

		select {
		case w.events <- event:
		default:
			w.logger.Warn("event channel full, dropping event", "path", event.Path)
		}
	})
}

// handleError processes fsnotify errors with circuit breaker pattern.
func (w *watcher) handleError(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}

	w.failureCount++

	w.logger.Error("fsnotify error",
		"error", err,
		"failure_count", w.failureCount)

	if w.failureCount >= w.config.CircuitBreakerThreshold {
		w.logger.Error("circuit breaker opened",
			"threshold", w.config.CircuitBreakerThreshold)
		err = ErrCircuitBreakerOpen
	}

	select {
	case w.errors <- err:
	default:
		w.logger.Warn("error channel full, dropping error")
	}
}

// addRoot watches a spool directory and its existing profile directories.
// Called with w.mu held.
func (w *watcher) addRoot(root string) error {
	if err := w.fsw.Add(root); err != nil {
		return fmt.Errorf("failed to add path: %w", err)
	}
	w.roots[root] = struct{}{}

	w.logger.Debug("added watch path", "path", root)

	entries, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() || entry.Name()[0] == '.' {
			continue
		}

		sub := filepath.Join(root, entry.Name())
		if addErr := w.fsw.Add(sub); addErr != nil {
			w.logger.Warn("failed to add profile directory",
				"path", sub,
				"error", addErr)
			continue
		}

		w.logger.Debug("added profile directory", "path", sub)
	}

	return nil
}
