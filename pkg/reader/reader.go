package reader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/0xmhha/tab-monitor/pkg/logger"
	"github.com/0xmhha/tab-monitor/pkg/parser"
)

// reader implements the Reader interface.
type reader struct {
	store  PositionStore
	parser parser.Parser
	logger logger.Logger
	config Config

	mu     sync.RWMutex
	closed bool
}

// New creates a new incremental file reader.
func New(cfg Config, log logger.Logger) (Reader, error) {
	if cfg.PositionStore == nil {
		return nil, fmt.Errorf("%w: position store is required", ErrMissingDependency)
	}

	if cfg.Parser == nil {
		return nil, fmt.Errorf("%w: parser is required", ErrMissingDependency)
	}

	// Set defaults.
	switch {
	case cfg.MaxRetries == 0:
		cfg.MaxRetries = 3
	case cfg.MaxRetries < 0:
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 100 * time.Millisecond
	}

	log = logger.ForComponent(log, "reader")
	log.Debug("incremental reader created",
		"max_retries", cfg.MaxRetries,
		"retry_delay", cfg.RetryDelay)

	return &reader{
		store:  cfg.PositionStore,
		parser: cfg.Parser,
		logger: log,
		config: cfg,
	}, nil
}

// Read implements Reader.Read.
func (r *reader) Read(ctx context.Context, path string) ([]parser.Event, error) {
	if r.isClosed() {
		return nil, ErrReaderClosed
	}

	offset, err := r.store.GetPosition(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get position: %w", err)
	}

	r.logger.Debug("reading file",
		"path", path,
		"offset", offset)

	events, newOffset, err := r.readWithRetry(ctx, path, offset)
	if err != nil {
		return nil, err
	}

	if newOffset != offset {
		if err := r.store.SetPosition(path, newOffset); err != nil {
			// Events are still delivered; they may be replayed after a restart.
			r.logger.Error("failed to update position",
				"path", path,
				"offset", newOffset,
				"error", err)
		}
	}

	r.logger.Debug("read complete",
		"path", path,
		"events", len(events),
		"new_offset", newOffset)

	return events, nil
}

// ReadFrom implements Reader.ReadFrom.
func (r *reader) ReadFrom(ctx context.Context, path string, offset int64) ([]parser.Event, int64, error) {
	if r.isClosed() {
		return nil, 0, ErrReaderClosed
	}

	if offset < 0 {
		return nil, 0, ErrInvalidOffset
	}

	return r.readWithRetry(ctx, path, offset)
}

// Reset implements Reader.Reset.
func (r *reader) Reset(path string) error {
	if r.isClosed() {
		return ErrReaderClosed
	}

	if err := r.store.SetPosition(path, 0); err != nil {
		return fmt.Errorf("failed to reset position: %w", err)
	}

	r.logger.Info("position reset", "path", path)
	return nil
}

// Close implements Reader.Close.
func (r *reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}

	r.closed = true
	r.logger.Debug("reader closed")
	return nil
}

func (r *reader) isClosed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.closed
}

// readWithRetry reads a file with retry logic.
func (r *reader) readWithRetry(ctx context.Context, path string, offset int64) ([]parser.Event, int64, error) {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff.
			backoffMultiplier := 1 << (attempt - 1) // nolint:gosec // Attempt is bounded by MaxRetries
			delay := r.config.RetryDelay * time.Duration(backoffMultiplier)
			r.logger.Debug("retrying read",
				"path", path,
				"attempt", attempt,
				"delay", delay)

			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(delay):
			}
		}

		events, newOffset, err := r.readFile(ctx, path, offset)
		if err == nil {
			return events, newOffset, nil
		}

		lastErr = err

		if !isRetryable(err) {
			r.logger.Debug("non-retryable error",
				"path", path,
				"error", err)
			return nil, 0, err
		}

		r.logger.Warn("read attempt failed",
			"path", path,
			"attempt", attempt,
			"error", err)
	}

	return nil, 0, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// readFile reads a file from the specified offset.
func (r *reader) readFile(ctx context.Context, path string, offset int64) ([]parser.Event, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, ErrFileNotFound
		}
		if os.IsPermission(err) {
			return nil, 0, ErrPermissionDenied
		}
		return nil, 0, fmt.Errorf("failed to stat file: %w", err)
	}

	if offset > info.Size() {
		r.logger.Warn("file was truncated, resetting offset",
			"path", path,
			"old_offset", offset,
			"file_size", info.Size())
		offset = 0
	}

	if offset == info.Size() {
		return []parser.Event{}, offset, nil
	}

	events, newOffset, err := r.parser.ParseFile(path, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse file: %w", err)
	}

	return events, newOffset, nil
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	switch {
	case errors.Is(err, ErrFileNotFound):
		return true // File might be created shortly.
	case errors.Is(err, ErrPermissionDenied),
		errors.Is(err, ErrInvalidOffset),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	default:
		// Retry unknown errors.
		return true
	}
}
