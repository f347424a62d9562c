package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader provides methods for loading configuration from various sources.
type Loader interface {
	// Load loads configuration with the following precedence:
	// 1. Environment variables
	// 2. Configuration file
	// 3. Default values
	//
	// Returns the merged configuration or an error if validation fails.
	Load() (*Config, error)

	// LoadFromFile loads configuration from a specific file.
	LoadFromFile(path string) (*Config, error)

	// Source returns the config file that Load used, or "" for defaults.
	Source() string
}

// loader implements the Loader interface.
type loader struct {
	configPath string
	source     string
}

// NewLoader creates a new configuration loader.
//
// If configPath is empty, the loader searches SearchPaths().
func NewLoader(configPath string) Loader {
	return &loader{
		configPath: configPath,
	}
}

// Load implements Loader.Load.
func (l *loader) Load() (*Config, error) {
	cfg := Default()

	configPath := l.configPath
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" {
		fileCfg, err := l.LoadFromFile(configPath)
		if err != nil {
			// An explicitly requested file must load.
			if l.configPath != "" {
				return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
			}
		} else {
			cfg = mergeConfigs(cfg, fileCfg)
			l.source = configPath
		}
	}

	cfg = applyEnvVars(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFromFile implements Loader.LoadFromFile.
func (l *loader) LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path) // nolint:gosec
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Keys the file omits keep their defaults.
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return cfg, nil
}

// Source implements Loader.Source.
func (l *loader) Source() string {
	return l.source
}

// findConfigFile returns the first existing path from SearchPaths, or "".
func findConfigFile() string {
	for _, path := range SearchPaths() {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// mergeConfigs merges file configuration into the base configuration.
//
// File values override defaults only when they are non-zero. Booleans
// always come from the file configuration, which is decoded over the
// defaults and so holds the default for any key the file omits.
func mergeConfigs(base, override *Config) *Config {
	result := *base

	if len(override.SpoolDirs) > 0 {
		result.SpoolDirs = override.SpoolDirs
	}

	if override.Tracking.MinSessionDuration > 0 {
		result.Tracking.MinSessionDuration = override.Tracking.MinSessionDuration
	}
	if override.Tracking.TickInterval > 0 {
		result.Tracking.TickInterval = override.Tracking.TickInterval
	}
	if override.Tracking.FlushInterval > 0 {
		result.Tracking.FlushInterval = override.Tracking.FlushInterval
	}
	if override.Tracking.QueryTimeout > 0 {
		result.Tracking.QueryTimeout = override.Tracking.QueryTimeout
	}
	result.Tracking.StartPaused = override.Tracking.StartPaused
	result.Tracking.UseEventTime = override.Tracking.UseEventTime

	if len(override.Categories.Productive) > 0 {
		result.Categories.Productive = override.Categories.Productive
	}
	if override.Categories.CacheTTL > 0 {
		result.Categories.CacheTTL = override.Categories.CacheTTL
	}

	if override.Storage.Driver != "" {
		result.Storage.Driver = override.Storage.Driver
	}
	if override.Storage.DBPath != "" {
		result.Storage.DBPath = override.Storage.DBPath
	}
	if override.Storage.Timeout > 0 {
		result.Storage.Timeout = override.Storage.Timeout
	}

	if override.Server.Addr != "" {
		result.Server.Addr = override.Server.Addr
	}
	if override.Server.ClientTimeout > 0 {
		result.Server.ClientTimeout = override.Server.ClientTimeout
	}

	result.Display.ColorEnabled = override.Display.ColorEnabled
	if override.Display.DefaultFormat != "" {
		result.Display.DefaultFormat = override.Display.DefaultFormat
	}
	if override.Display.TopN > 0 {
		result.Display.TopN = override.Display.TopN
	}

	if override.Logging.Level != "" {
		result.Logging.Level = override.Logging.Level
	}
	if override.Logging.Output != "" {
		result.Logging.Output = override.Logging.Output
	}
	if override.Logging.Format != "" {
		result.Logging.Format = override.Logging.Format
	}

	return &result
}

// applyEnvVars applies environment variable overrides to the configuration.
//
// Supported environment variables:
//   - TAB_MONITOR_SPOOL_DIR: Comma-separated list of spool directories
//   - TAB_MONITOR_DB: Path to database file
//   - TAB_MONITOR_ADDR: Control API listen address
//   - TAB_MONITOR_LOG_LEVEL: Log level
func applyEnvVars(cfg *Config) *Config {
	result := *cfg

	if envDirs := os.Getenv("TAB_MONITOR_SPOOL_DIR"); envDirs != "" {
		dirs := strings.Split(envDirs, ",")
		for i := range dirs {
			dirs[i] = strings.TrimSpace(dirs[i])
		}
		result.SpoolDirs = dirs
	}

	if dbPath := os.Getenv("TAB_MONITOR_DB"); dbPath != "" {
		result.Storage.DBPath = dbPath
	}

	if addr := os.Getenv("TAB_MONITOR_ADDR"); addr != "" {
		result.Server.Addr = addr
	}

	if logLevel := os.Getenv("TAB_MONITOR_LOG_LEVEL"); logLevel != "" {
		result.Logging.Level = strings.ToLower(logLevel)
	}

	return &result
}

// Load is a convenience function that loads configuration from the
// default search paths.
func Load() (*Config, error) {
	return NewLoader("").Load()
}

// LoadFromFile is a convenience function that loads configuration from a
// specific file, merged over defaults and environment overrides.
func LoadFromFile(path string) (*Config, error) {
	return NewLoader(path).Load()
}

// Save writes the configuration to a YAML file.
//
// Creates parent directories if they don't exist.
// File is created with 0600 permissions (read/write for owner only).
func Save(cfg *Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
