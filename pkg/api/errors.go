package api

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable is returned by Client when no engine answers in time.
	ErrUnavailable = errors.New("engine not reachable")

	// ErrMissingController is returned when a server is built without an engine.
	ErrMissingController = errors.New("controller is required")
)

// Error is an error payload returned by the engine.
type Error struct {
	Status  int
	Message string
}

// Error implements error.
func (e *Error) Error() string {
	return fmt.Sprintf("engine error (%d): %s", e.Status, e.Message)
}
