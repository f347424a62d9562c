package config

import "errors"

// Common errors returned by the config package.
var (
	// ErrNoSpoolDirs is returned when no spool directories are specified.
	ErrNoSpoolDirs = errors.New("no spool directories specified")

	// ErrInvalidMinDuration is returned when the minimum session duration is negative.
	ErrInvalidMinDuration = errors.New("invalid min session duration: must be >= 0")

	// ErrInvalidTickInterval is returned when the tick interval is <= 0.
	ErrInvalidTickInterval = errors.New("invalid tick interval: must be > 0")

	// ErrInvalidFlushInterval is returned when the flush interval is <= 0.
	ErrInvalidFlushInterval = errors.New("invalid flush interval: must be > 0")

	// ErrInvalidQueryTimeout is returned when the tab query timeout is <= 0.
	ErrInvalidQueryTimeout = errors.New("invalid query timeout: must be > 0")

	// ErrInvalidCacheTTL is returned when the categorizer cache TTL is <= 0.
	ErrInvalidCacheTTL = errors.New("invalid category cache ttl: must be > 0")

	// ErrInvalidDriver is returned when the storage driver is not recognized.
	ErrInvalidDriver = errors.New("invalid storage driver: must be bolt or sqlite")

	// ErrNoDBPath is returned when no database path is configured.
	ErrNoDBPath = errors.New("no database path specified")

	// ErrInvalidStorageTimeout is returned when the storage timeout is <= 0.
	ErrInvalidStorageTimeout = errors.New("invalid storage timeout: must be > 0")

	// ErrNoServerAddr is returned when the control API address is empty.
	ErrNoServerAddr = errors.New("no server address specified")

	// ErrInvalidClientTimeout is returned when the client timeout is <= 0.
	ErrInvalidClientTimeout = errors.New("invalid client timeout: must be > 0")

	// ErrInvalidDisplayFormat is returned when the display format is not recognized.
	ErrInvalidDisplayFormat = errors.New("invalid display format: must be table, json, or simple")

	// ErrInvalidTopN is returned when top_n is <= 0.
	ErrInvalidTopN = errors.New("invalid top_n: must be > 0")

	// ErrInvalidLogLevel is returned when log level is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level: must be debug, info, warn, or error")

	// ErrInvalidLogFormat is returned when log format is not recognized.
	ErrInvalidLogFormat = errors.New("invalid log format: must be text or json")

	// ErrConfigNotFound is returned when config file is not found.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrInvalidYAML is returned when config file has invalid YAML syntax.
	ErrInvalidYAML = errors.New("invalid YAML syntax in config file")
)
