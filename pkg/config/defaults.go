package config

import (
	"os"
	"path/filepath"
)

// appDir returns ~/.config/tab-monitor, or "." when no home is available.
func appDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(homeDir, ".config", "tab-monitor")
}

// defaultSpoolDir returns the directory the browser extension writes to.
//
// Returns: ~/.config/tab-monitor/spool.
func defaultSpoolDir() string {
	return filepath.Join(appDir(), "spool")
}

// defaultDBPath returns the default database file path.
//
// Returns: ~/.config/tab-monitor/tracker.db.
func defaultDBPath() string {
	return filepath.Join(appDir(), "tracker.db")
}

// DefaultConfigPath returns the default configuration file path.
//
// Returns: ~/.config/tab-monitor/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(appDir(), "config.yaml")
}

// SearchPaths returns the config file locations in lookup order.
func SearchPaths() []string {
	return []string{
		"./config.yaml",
		DefaultConfigPath(),
	}
}
