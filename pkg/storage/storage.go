// Package storage persists aggregates and spool read positions.
//
// Two interchangeable backends are provided: BoltStore (bbolt, the
// default) and SQLiteStore (modernc.org/sqlite). Both implement
// aggregator.Persister and reader.PositionStore over the same layout:
//
//	domains          domain -> aggregate
//	daily            YYYY-MM-DD -> day statistics
//	meta             tracking_enabled, session_anchor_ms
//	spool_positions  spool file path -> byte offset
//
// Times and durations are stored as integer milliseconds.
//
// Example usage:
//
//	backend, err := storage.Open(storage.Config{
//	    Driver: "bolt",
//	    Path:   "~/.config/tab-monitor/tracker.db",
//	}, log)
//	if err != nil {
//	    return err
//	}
//	defer backend.Close()
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/0xmhha/tab-monitor/pkg/aggregator"
	"github.com/0xmhha/tab-monitor/pkg/logger"
	"github.com/0xmhha/tab-monitor/pkg/reader"
)

// Supported drivers.
const (
	DriverBolt   = "bolt"
	DriverSQLite = "sqlite"
)

// Backend is a durable store for the tracker.
type Backend interface {
	aggregator.Persister
	reader.PositionStore

	// Path returns the database file path.
	Path() string

	// Close releases the database.
	Close() error
}

// Config configures Open.
type Config struct {
	// Driver is DriverBolt or DriverSQLite. Empty means DriverBolt.
	Driver string

	// Path is the database file. A leading ~ is expanded.
	Path string

	// Timeout bounds opening the database and waiting on locks.
	// Default: 1s.
	Timeout time.Duration
}

// Open opens the configured backend, creating the file and its
// directory when missing.
func Open(cfg Config, log logger.Logger) (Backend, error) {
	if cfg.Path == "" {
		return nil, ErrEmptyPath
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Second
	}

	path := expandHome(cfg.Path)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	log = logger.ForComponent(log, "storage")

	switch strings.ToLower(cfg.Driver) {
	case "", DriverBolt:
		return OpenBolt(path, cfg.Timeout, log)
	case DriverSQLite:
		return OpenSQLite(path, cfg.Timeout, log)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, cfg.Driver)
	}
}

// expandHome expands ~ to the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, path[1:])
}
