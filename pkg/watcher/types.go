// Package watcher provides real-time monitoring of spool directories.
//
// It uses fsnotify to watch for appends to browser event spool files and
// debounces bursts of writes into a single event per file.
//
// Example usage:
//
//	w, err := watcher.New(watcher.Config{
//	    DebounceInterval: 100 * time.Millisecond,
//	}, log)
//	if err != nil {
//	    return err
//	}
//	defer w.Close()
//
//	if err := w.Start(ctx, []string{"~/.config/tab-monitor/spool"}); err != nil {
//	    return err
//	}
//
//	for event := range w.Events() {
//	    fmt.Printf("File %s: %s\n", event.Path, event.Op)
//	}
package watcher

import (
	"context"
	"time"
)

// Op describes a file operation type.
type Op uint32

// File operation types.
const (
	OpCreate Op = 1 << iota // File created
	OpWrite                 // File modified
	OpRemove                // File deleted
	OpRename                // File renamed/moved
	OpChmod                 // File permissions changed
)

// String returns a human-readable operation name.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpWrite:
		return "WRITE"
	case OpRemove:
		return "REMOVE"
	case OpRename:
		return "RENAME"
	case OpChmod:
		return "CHMOD"
	default:
		return "UNKNOWN"
	}
}

// Event represents a change to a spool file.
type Event struct {
	// Path is the path to the file that triggered the event.
	Path string

	// Op is the last operation seen within the debounce interval.
	Op Op

	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// Watcher provides spool directory monitoring.
type Watcher interface {
	// Start begins watching the specified spool directories and their
	// profile subdirectories. It returns once watching is set up; events
	// are delivered until ctx is cancelled or Stop is called.
	//
	// Missing directories are skipped. ErrInvalidPath is returned when
	// none exist.
	Start(ctx context.Context, paths []string) error

	// Stop gracefully shuts down the watcher.
	Stop() error

	// Events returns the channel for receiving debounced spool events.
	// The channel is closed by Close.
	Events() <-chan Event

	// Errors returns the channel for receiving non-fatal watcher errors.
	// The channel is closed by Close.
	Errors() <-chan error

	// Close closes the watcher and releases resources.
	Close() error
}

// Config contains watcher configuration.
type Config struct {
	// DebounceInterval is the time to wait before emitting an event.
	// Multiple events for the same file within this interval are coalesced.
	// Default: 100ms.
	DebounceInterval time.Duration

	// CircuitBreakerThreshold is the number of consecutive fsnotify
	// failures after which only ErrCircuitBreakerOpen is reported.
	// Default: 5.
	CircuitBreakerThreshold int

	// BufferSize is the capacity of the Events channel. Events for a full
	// channel are dropped; the next write to the file re-triggers them.
	// Default: 100.
	BufferSize int
}
