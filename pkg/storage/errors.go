package storage

import "errors"

// Common errors returned by the storage backends.
var (
	// ErrUnknownDriver is returned by Open for an unsupported driver.
	ErrUnknownDriver = errors.New("unknown storage driver")

	// ErrEmptyPath is returned by Open when no database path is given.
	ErrEmptyPath = errors.New("database path cannot be empty")

	// ErrCorruptRecord is returned when a stored value cannot be decoded.
	ErrCorruptRecord = errors.New("corrupt stored record")
)
