package parser

import (
	"errors"
	"fmt"
)

// Common errors returned by the parser package.
var (
	// ErrInvalidTimestamp is returned when an event has a zero timestamp.
	ErrInvalidTimestamp = errors.New("invalid timestamp: must not be zero")

	// ErrUnknownEventType is returned for an unsupported event type.
	ErrUnknownEventType = errors.New("unknown event type")

	// ErrInvalidTabID is returned when a tab event has no positive tab id.
	ErrInvalidTabID = errors.New("invalid tab id: must be positive")

	// ErrInvalidWindowID is returned for a window id below -1.
	ErrInvalidWindowID = errors.New("invalid window id")

	// ErrMalformedJSON is returned when a JSONL line cannot be parsed.
	ErrMalformedJSON = errors.New("malformed JSON line")
)

// ParseError provides context about a parsing failure.
type ParseError struct {
	Line int    // Line number where error occurred (1-indexed)
	Data string // The malformed line (truncated if too long)
	Err  error  // Underlying error
}

func (e *ParseError) Error() string {
	maxLen := 100
	data := e.Data
	if len(data) > maxLen {
		data = data[:maxLen] + "..."
	}
	return formatError("parse error", e.Line, data, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// formatError creates a consistent error message format.
func formatError(prefix string, line int, context string, err error) string {
	if line > 0 {
		return fmt.Sprintf("%s at line %d: %s: %v", prefix, line, context, err)
	}
	return fmt.Sprintf("%s: %s: %v", prefix, context, err)
}
