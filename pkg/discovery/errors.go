package discovery

import "errors"

// Common errors returned by the discovery package.
var (
	// ErrDirNotFound is returned when a spool directory does not exist.
	ErrDirNotFound = errors.New("spool directory not found")

	// ErrNoSpoolFiles is returned when no spool files are discovered.
	ErrNoSpoolFiles = errors.New("no spool files found")
)
