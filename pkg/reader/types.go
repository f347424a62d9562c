// Package reader provides incremental spool file reading with position
// tracking.
//
// It reads browser events appended since the last known position and
// persists offsets so an engine restart neither replays nor skips events.
//
// Example usage:
//
//	r, err := reader.New(reader.Config{
//	    PositionStore: backend,
//	    Parser:        parser.New(log),
//	}, log)
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//
//	events, err := r.Read(ctx, "/path/to/events.jsonl")
//	if err != nil {
//	    return err
//	}
//
//	for _, ev := range events {
//	    fmt.Println(ev.Type, ev.TabID)
//	}
package reader

import (
	"context"
	"time"

	"github.com/0xmhha/tab-monitor/pkg/parser"
)

// PositionStore provides persistence for file read positions.
type PositionStore interface {
	// GetPosition retrieves the last read position for a file.
	//
	// Returns 0 if no position is stored (start from beginning).
	GetPosition(path string) (int64, error)

	// SetPosition stores the read position for a file.
	SetPosition(path string, offset int64) error
}

// Reader provides incremental file reading.
type Reader interface {
	// Read reads new events from a file since the last read position.
	//
	// Automatically updates the stored position after successful read.
	Read(ctx context.Context, path string) ([]parser.Event, error)

	// ReadFrom reads events from a specific offset.
	//
	// Returns:
	//   - Slice of events
	//   - New offset after reading
	//   - Error if reading fails
	//
	// Does not update the stored position.
	ReadFrom(ctx context.Context, path string, offset int64) ([]parser.Event, int64, error)

	// Reset resets the read position for a file to the beginning.
	Reset(path string) error

	// Close closes the reader and releases resources.
	Close() error
}

// Config contains reader configuration.
type Config struct {
	// PositionStore persists file read positions.
	PositionStore PositionStore

	// Parser parses JSONL events.
	Parser parser.Parser

	// MaxRetries is the maximum number of retry attempts for transient
	// errors. Negative disables retries.
	// Default: 3.
	MaxRetries int

	// RetryDelay is the base delay between retry attempts.
	// Uses exponential backoff: delay * 2^attempt.
	// Default: 100ms.
	RetryDelay time.Duration
}
