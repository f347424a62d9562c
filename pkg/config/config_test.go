package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	if len(cfg.SpoolDirs) == 0 {
		t.Error("SpoolDirs is empty")
	}

	if cfg.Tracking.MinSessionDuration != time.Second {
		t.Errorf("MinSessionDuration = %v, want 1s", cfg.Tracking.MinSessionDuration)
	}

	if cfg.Tracking.FlushInterval != 10*time.Second {
		t.Errorf("FlushInterval = %v, want 10s", cfg.Tracking.FlushInterval)
	}

	if cfg.Storage.Driver != "bolt" {
		t.Errorf("Driver = %q, want bolt", cfg.Storage.Driver)
	}

	want := []string{"development", "productivity", "learning"}
	if len(cfg.Categories.Productive) != len(want) {
		t.Fatalf("Productive = %v, want %v", cfg.Categories.Productive, want)
	}
	for i := range want {
		if cfg.Categories.Productive[i] != want[i] {
			t.Errorf("Productive[%d] = %q, want %q", i, cfg.Categories.Productive[i], want[i])
		}
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "valid default config",
			mutate:  func(*Config) {},
			wantErr: nil,
		},
		{
			name:    "no spool directories",
			mutate:  func(c *Config) { c.SpoolDirs = nil },
			wantErr: ErrNoSpoolDirs,
		},
		{
			name:    "negative min duration",
			mutate:  func(c *Config) { c.Tracking.MinSessionDuration = -time.Second },
			wantErr: ErrInvalidMinDuration,
		},
		{
			name:    "zero min duration allowed",
			mutate:  func(c *Config) { c.Tracking.MinSessionDuration = 0 },
			wantErr: nil,
		},
		{
			name:    "zero tick interval",
			mutate:  func(c *Config) { c.Tracking.TickInterval = 0 },
			wantErr: ErrInvalidTickInterval,
		},
		{
			name:    "zero flush interval",
			mutate:  func(c *Config) { c.Tracking.FlushInterval = 0 },
			wantErr: ErrInvalidFlushInterval,
		},
		{
			name:    "zero query timeout",
			mutate:  func(c *Config) { c.Tracking.QueryTimeout = 0 },
			wantErr: ErrInvalidQueryTimeout,
		},
		{
			name:    "zero cache ttl",
			mutate:  func(c *Config) { c.Categories.CacheTTL = 0 },
			wantErr: ErrInvalidCacheTTL,
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Storage.Driver = "postgres" },
			wantErr: ErrInvalidDriver,
		},
		{
			name:    "sqlite driver",
			mutate:  func(c *Config) { c.Storage.Driver = "sqlite" },
			wantErr: nil,
		},
		{
			name:    "empty db path",
			mutate:  func(c *Config) { c.Storage.DBPath = "" },
			wantErr: ErrNoDBPath,
		},
		{
			name:    "zero storage timeout",
			mutate:  func(c *Config) { c.Storage.Timeout = 0 },
			wantErr: ErrInvalidStorageTimeout,
		},
		{
			name:    "empty server addr",
			mutate:  func(c *Config) { c.Server.Addr = "" },
			wantErr: ErrNoServerAddr,
		},
		{
			name:    "zero client timeout",
			mutate:  func(c *Config) { c.Server.ClientTimeout = 0 },
			wantErr: ErrInvalidClientTimeout,
		},
		{
			name:    "invalid display format",
			mutate:  func(c *Config) { c.Display.DefaultFormat = "xml" },
			wantErr: ErrInvalidDisplayFormat,
		},
		{
			name:    "zero top n",
			mutate:  func(c *Config) { c.Display.TopN = 0 },
			wantErr: ErrInvalidTopN,
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "trace" },
			wantErr: ErrInvalidLogLevel,
		},
		{
			name:    "invalid log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: ErrInvalidLogFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
spool_dirs:
  - /tmp/spool
tracking:
  min_session_duration: 2s
  tick_interval: 500ms
  flush_interval: 30s
  start_paused: true
categories:
  productive:
    - development
    - news
storage:
  driver: sqlite
  db_path: /tmp/tracker.sqlite
server:
  addr: 127.0.0.1:9000
display:
  default_format: json
  color_enabled: false
  top_n: 5
logging:
  level: debug
  format: json
`

	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	t.Setenv("TAB_MONITOR_SPOOL_DIR", "")
	t.Setenv("TAB_MONITOR_DB", "")
	t.Setenv("TAB_MONITOR_ADDR", "")
	t.Setenv("TAB_MONITOR_LOG_LEVEL", "")

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if len(cfg.SpoolDirs) != 1 || cfg.SpoolDirs[0] != "/tmp/spool" {
		t.Errorf("SpoolDirs = %v, want [/tmp/spool]", cfg.SpoolDirs)
	}
	if cfg.Tracking.MinSessionDuration != 2*time.Second {
		t.Errorf("MinSessionDuration = %v, want 2s", cfg.Tracking.MinSessionDuration)
	}
	if cfg.Tracking.TickInterval != 500*time.Millisecond {
		t.Errorf("TickInterval = %v, want 500ms", cfg.Tracking.TickInterval)
	}
	if cfg.Tracking.FlushInterval != 30*time.Second {
		t.Errorf("FlushInterval = %v, want 30s", cfg.Tracking.FlushInterval)
	}
	// Not set in file, default kept.
	if cfg.Tracking.QueryTimeout != 2*time.Second {
		t.Errorf("QueryTimeout = %v, want 2s", cfg.Tracking.QueryTimeout)
	}
	if !cfg.Tracking.StartPaused {
		t.Error("StartPaused = false, want true")
	}
	if len(cfg.Categories.Productive) != 2 || cfg.Categories.Productive[1] != "news" {
		t.Errorf("Productive = %v", cfg.Categories.Productive)
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Errorf("Driver = %q, want sqlite", cfg.Storage.Driver)
	}
	if cfg.Storage.DBPath != "/tmp/tracker.sqlite" {
		t.Errorf("DBPath = %q", cfg.Storage.DBPath)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Errorf("Addr = %q", cfg.Server.Addr)
	}
	if cfg.Display.DefaultFormat != "json" {
		t.Errorf("DefaultFormat = %q, want json", cfg.Display.DefaultFormat)
	}
	if cfg.Display.ColorEnabled {
		t.Error("ColorEnabled = true, want false")
	}
	if cfg.Display.TopN != 5 {
		t.Errorf("TopN = %d, want 5", cfg.Display.TopN)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	tmpDir := t.TempDir()

	_, err := LoadFromFile(filepath.Join(tmpDir, "missing.yaml"))
	if !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("missing file error = %v, want ErrConfigNotFound", err)
	}

	badPath := filepath.Join(tmpDir, "bad.yaml")
	if err := os.WriteFile(badPath, []byte("tracking: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}
	_, err = LoadFromFile(badPath)
	if !errors.Is(err, ErrInvalidYAML) {
		t.Errorf("bad yaml error = %v, want ErrInvalidYAML", err)
	}

	invalidPath := filepath.Join(tmpDir, "invalid.yaml")
	if err := os.WriteFile(invalidPath, []byte("storage:\n  driver: mysql\n"), 0600); err != nil {
		t.Fatal(err)
	}
	_, err = LoadFromFile(invalidPath)
	if !errors.Is(err, ErrInvalidDriver) {
		t.Errorf("invalid driver error = %v, want ErrInvalidDriver", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("server:\n  addr: 127.0.0.1:1000\n"), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("TAB_MONITOR_SPOOL_DIR", "/a, /b")
	t.Setenv("TAB_MONITOR_DB", "/env/tracker.db")
	t.Setenv("TAB_MONITOR_ADDR", "127.0.0.1:2000")
	t.Setenv("TAB_MONITOR_LOG_LEVEL", "WARN")

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if len(cfg.SpoolDirs) != 2 || cfg.SpoolDirs[0] != "/a" || cfg.SpoolDirs[1] != "/b" {
		t.Errorf("SpoolDirs = %v, want [/a /b]", cfg.SpoolDirs)
	}
	if cfg.Storage.DBPath != "/env/tracker.db" {
		t.Errorf("DBPath = %q", cfg.Storage.DBPath)
	}
	if cfg.Server.Addr != "127.0.0.1:2000" {
		t.Errorf("Addr = %q, env should win over file", cfg.Server.Addr)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Level = %q, want warn", cfg.Logging.Level)
	}
}

func TestLoaderSource(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("display:\n  top_n: 3\n  color_enabled: true\n"), 0600); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(configPath)
	cfg, err := l.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if l.Source() != configPath {
		t.Errorf("Source() = %q, want %q", l.Source(), configPath)
	}
	if cfg.Display.TopN != 3 {
		t.Errorf("TopN = %d, want 3", cfg.Display.TopN)
	}
}

func TestLoadOmittedBooleansKeepDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("display:\n  top_n: 20\n"), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("TAB_MONITOR_SPOOL_DIR", "")
	t.Setenv("TAB_MONITOR_DB", "")
	t.Setenv("TAB_MONITOR_ADDR", "")
	t.Setenv("TAB_MONITOR_LOG_LEVEL", "")

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Display.TopN != 20 {
		t.Errorf("TopN = %d, want 20", cfg.Display.TopN)
	}
	if !cfg.Display.ColorEnabled {
		t.Error("ColorEnabled = false, want the default true")
	}
	if cfg.Display.DefaultFormat != Default().Display.DefaultFormat {
		t.Errorf("DefaultFormat = %q, want default", cfg.Display.DefaultFormat)
	}
}

func TestLoadBooleanCanBeSwitchedOff(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	content := "tracking:\n  start_paused: false\ndisplay:\n  color_enabled: false\n"
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Display.ColorEnabled {
		t.Error("ColorEnabled = true, want false")
	}
	if cfg.Tracking.StartPaused {
		t.Error("StartPaused = true, want false")
	}
}

func TestSave(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nested", "config.yaml")

	cfg := Default()
	cfg.SpoolDirs = []string{"/spool"}
	cfg.Storage.Driver = "sqlite"
	cfg.Tracking.FlushInterval = 15 * time.Second

	if err := Save(cfg, configPath); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(configPath)
	if err != nil {
		t.Fatalf("config file not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file perm = %o, want 600", perm)
	}

	t.Setenv("TAB_MONITOR_SPOOL_DIR", "")
	t.Setenv("TAB_MONITOR_DB", "")
	t.Setenv("TAB_MONITOR_ADDR", "")
	t.Setenv("TAB_MONITOR_LOG_LEVEL", "")

	loaded, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if loaded.Storage.Driver != "sqlite" {
		t.Errorf("Driver = %q, want sqlite", loaded.Storage.Driver)
	}
	if loaded.Tracking.FlushInterval != 15*time.Second {
		t.Errorf("FlushInterval = %v, want 15s", loaded.Tracking.FlushInterval)
	}

	bad := Default()
	bad.Storage.Driver = ""
	if err := Save(bad, filepath.Join(tmpDir, "bad.yaml")); !errors.Is(err, ErrInvalidDriver) {
		t.Errorf("Save(invalid) error = %v, want ErrInvalidDriver", err)
	}
}
