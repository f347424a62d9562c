package session

import "errors"

// Common errors used by the session manager and tab providers.
var (
	// ErrTabNotFound is returned by a TabProvider for an unknown tab.
	ErrTabNotFound = errors.New("tab not found")

	// ErrNoActiveTab is returned by a TabProvider when a window has no
	// active tab.
	ErrNoActiveTab = errors.New("no active tab")
)
