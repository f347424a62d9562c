// Package config provides configuration management for tab-monitor.
//
// Configuration is loaded from multiple sources with the following precedence:
// 1. Environment variables (highest priority)
// 2. Configuration file
// 3. Default values (lowest priority)
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Spool dirs: %v\n", cfg.SpoolDirs)
package config

import (
	"time"
)

// Config represents the complete application configuration.
//
// Invariants:
// - SpoolDirs must have at least one directory
// - every interval and timeout must be > 0
// - MinSessionDuration must be >= 0
// - Storage.Driver must be bolt or sqlite
// - Display.TopN must be > 0.
type Config struct {
	// Directories holding browser event spool files (*.jsonl).
	SpoolDirs []string `yaml:"spool_dirs" json:"spool_dirs"`

	// Session tracking settings
	Tracking TrackingConfig `yaml:"tracking" json:"tracking"`

	// Category settings
	Categories CategoriesConfig `yaml:"categories" json:"categories"`

	// Storage settings
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Local control API settings
	Server ServerConfig `yaml:"server" json:"server"`

	// Display settings
	Display DisplayConfig `yaml:"display" json:"display"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// TrackingConfig contains session tracking settings.
type TrackingConfig struct {
	// Sessions shorter than this are discarded.
	MinSessionDuration time.Duration `yaml:"min_session_duration" json:"min_session_duration"`

	// Live session update interval
	TickInterval time.Duration `yaml:"tick_interval" json:"tick_interval"`

	// Aggregation store flush interval
	FlushInterval time.Duration `yaml:"flush_interval" json:"flush_interval"`

	// Upper bound for a single tab metadata query
	QueryTimeout time.Duration `yaml:"query_timeout" json:"query_timeout"`

	// Start with tracking paused when no persisted state says otherwise
	StartPaused bool `yaml:"start_paused" json:"start_paused"`

	// Use event timestamps from the spool instead of the wall clock
	UseEventTime bool `yaml:"use_event_time" json:"use_event_time"`
}

// CategoriesConfig contains categorization settings.
type CategoriesConfig struct {
	// Categories counted as productive time
	Productive []string `yaml:"productive" json:"productive"`

	// How long categorization results stay memoised
	CacheTTL time.Duration `yaml:"cache_ttl" json:"cache_ttl"`
}

// StorageConfig contains storage-related settings.
type StorageConfig struct {
	// Backend driver (bolt, sqlite)
	Driver string `yaml:"driver" json:"driver"`

	// Path to the database file
	DBPath string `yaml:"db_path" json:"db_path"`

	// Database open and write timeout
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// ServerConfig contains local control API settings.
type ServerConfig struct {
	// Listen address for the HTTP control API
	Addr string `yaml:"addr" json:"addr"`

	// How long clients wait before treating the engine as disconnected
	ClientTimeout time.Duration `yaml:"client_timeout" json:"client_timeout"`
}

// DisplayConfig contains display-related settings.
type DisplayConfig struct {
	// Default output format (table, json, simple)
	DefaultFormat string `yaml:"default_format" json:"default_format"`

	// Enable colored output
	ColorEnabled bool `yaml:"color_enabled" json:"color_enabled"`

	// Number of domains shown in reports
	TopN int `yaml:"top_n" json:"top_n"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Log level (debug, info, warn, error)
	Level string `yaml:"level" json:"level"`

	// Log output destination (stdout, stderr, file path)
	Output string `yaml:"output" json:"output"`

	// Log format (text, json)
	Format string `yaml:"format" json:"format"`
}

// Validate checks if the configuration satisfies all invariants.
//
// Thread-safety: This method is read-only and thread-safe.
func (c *Config) Validate() error {
	if len(c.SpoolDirs) == 0 {
		return ErrNoSpoolDirs
	}

	if c.Tracking.MinSessionDuration < 0 {
		return ErrInvalidMinDuration
	}
	if c.Tracking.TickInterval <= 0 {
		return ErrInvalidTickInterval
	}
	if c.Tracking.FlushInterval <= 0 {
		return ErrInvalidFlushInterval
	}
	if c.Tracking.QueryTimeout <= 0 {
		return ErrInvalidQueryTimeout
	}

	if c.Categories.CacheTTL <= 0 {
		return ErrInvalidCacheTTL
	}

	validDrivers := map[string]bool{
		"bolt":   true,
		"sqlite": true,
	}
	if !validDrivers[c.Storage.Driver] {
		return ErrInvalidDriver
	}
	if c.Storage.DBPath == "" {
		return ErrNoDBPath
	}
	if c.Storage.Timeout <= 0 {
		return ErrInvalidStorageTimeout
	}

	if c.Server.Addr == "" {
		return ErrNoServerAddr
	}
	if c.Server.ClientTimeout <= 0 {
		return ErrInvalidClientTimeout
	}

	validFormats := map[string]bool{
		"table":  true,
		"json":   true,
		"simple": true,
	}
	if !validFormats[c.Display.DefaultFormat] {
		return ErrInvalidDisplayFormat
	}
	if c.Display.TopN <= 0 {
		return ErrInvalidTopN
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return ErrInvalidLogFormat
	}

	return nil
}

// Default returns a configuration with sensible default values.
func Default() *Config {
	return &Config{
		SpoolDirs: []string{defaultSpoolDir()},
		Tracking: TrackingConfig{
			MinSessionDuration: time.Second,
			TickInterval:       time.Second,
			FlushInterval:      10 * time.Second,
			QueryTimeout:       2 * time.Second,
		},
		Categories: CategoriesConfig{
			Productive: []string{"development", "productivity", "learning"},
			CacheTTL:   10 * time.Minute,
		},
		Storage: StorageConfig{
			Driver:  "bolt",
			DBPath:  defaultDBPath(),
			Timeout: time.Second,
		},
		Server: ServerConfig{
			Addr:          "127.0.0.1:7879",
			ClientTimeout: 3 * time.Second,
		},
		Display: DisplayConfig{
			DefaultFormat: "table",
			ColorEnabled:  true,
			TopN:          10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stderr",
			Format: "text",
		},
	}
}
