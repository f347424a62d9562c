package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/tab-monitor/pkg/aggregator"
	"github.com/0xmhha/tab-monitor/pkg/api"
	"github.com/0xmhha/tab-monitor/pkg/category"
	"github.com/0xmhha/tab-monitor/pkg/config"
	"github.com/0xmhha/tab-monitor/pkg/discovery"
	"github.com/0xmhha/tab-monitor/pkg/logger"
	"github.com/0xmhha/tab-monitor/pkg/parser"
	"github.com/0xmhha/tab-monitor/pkg/session"
	"github.com/0xmhha/tab-monitor/pkg/stats"
	"github.com/0xmhha/tab-monitor/pkg/storage"
)

// unreachableAddr refuses connections, so commands fall back to the
// database.
const unreachableAddr = "127.0.0.1:1"

type testEnv struct {
	configPath string
	dbPath     string
	spoolDir   string
}

func newTestEnv(t *testing.T, addr string) testEnv {
	t.Helper()

	for _, key := range []string{"TAB_MONITOR_SPOOL_DIR", "TAB_MONITOR_DB", "TAB_MONITOR_ADDR", "TAB_MONITOR_LOG_LEVEL"} {
		t.Setenv(key, "")
	}

	dir := t.TempDir()
	env := testEnv{
		configPath: filepath.Join(dir, "config.yaml"),
		dbPath:     filepath.Join(dir, "tracker.db"),
		spoolDir:   filepath.Join(dir, "spool"),
	}

	content := fmt.Sprintf(`spool_dirs:
  - %s
tracking:
  tick_interval: 50ms
  flush_interval: 100ms
storage:
  db_path: %s
server:
  addr: %s
  client_timeout: 500ms
logging:
  level: error
`, env.spoolDir, env.dbPath, addr)
	require.NoError(t, os.WriteFile(env.configPath, []byte(content), 0600))
	return env
}

func (e testEnv) config(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadFromFile(e.configPath)
	require.NoError(t, err)
	return cfg
}

// execute runs the CLI with args and returns its output.
func (e testEnv) execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--config", e.configPath}, args...))

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (e testEnv) seed(t *testing.T, recs ...session.Record) {
	t.Helper()

	backend, err := storage.Open(storage.Config{Path: e.dbPath}, logger.Noop())
	require.NoError(t, err)
	defer func() { require.NoError(t, backend.Close()) }()

	store := aggregator.New(aggregator.Config{}, backend, logger.Noop())
	require.NoError(t, store.Load(context.Background()))
	for _, rec := range recs {
		require.NoError(t, store.Fold(rec))
	}
	require.NoError(t, store.Flush(context.Background()))
}

func record(domain string, cat category.Category, spent time.Duration) session.Record {
	end := time.Now()
	return session.Record{
		Session: session.Session{
			Domain:    domain,
			URL:       "https://" + domain + "/",
			Category:  cat,
			StartTime: end.Add(-spent),
		},
		EndTime:   end,
		TimeSpent: spent,
	}
}

func TestRootCommands(t *testing.T) {
	root := newRootCmd()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}

	for _, want := range []string{"serve", "stats", "domains", "list", "status", "watch", "track", "reset", "config"} {
		assert.Contains(t, names, want)
	}
}

func TestVersionFlag(t *testing.T) {
	env := newTestEnv(t, unreachableAddr)

	out, err := env.execute(t, "", "--version")
	require.NoError(t, err)
	assert.Equal(t, "tab-monitor dev\n", out)
}

func TestUnknownCommand(t *testing.T) {
	env := newTestEnv(t, unreachableAddr)

	_, err := env.execute(t, "", "bogus")
	assert.Error(t, err)
}

func TestStatsOffline(t *testing.T) {
	env := newTestEnv(t, unreachableAddr)
	env.seed(t,
		record("github.com", category.Development, 30*time.Minute),
		record("youtube.com", category.Entertainment, 10*time.Minute),
	)

	out, err := env.execute(t, "", "stats", "--format", "json")
	require.NoError(t, err)

	var report stats.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report.TopDomains, 2)
	assert.Equal(t, "github.com", report.TopDomains[0].Domain)
	assert.Equal(t, int64(40*time.Minute/time.Millisecond), report.ProductivityStats.TotalTimeMS)
	assert.Equal(t, 75, report.ProductivityStats.Score)
	assert.False(t, report.Demo)
}

func TestStatsOptions(t *testing.T) {
	env := newTestEnv(t, unreachableAddr)
	env.seed(t,
		record("github.com", category.Development, 30*time.Minute),
		record("youtube.com", category.Entertainment, 10*time.Minute),
	)

	t.Run("top", func(t *testing.T) {
		out, err := env.execute(t, "", "stats", "--format", "json", "--top", "1")
		require.NoError(t, err)

		var report stats.Report
		require.NoError(t, json.Unmarshal([]byte(out), &report))
		assert.Len(t, report.TopDomains, 1)
	})

	t.Run("all", func(t *testing.T) {
		out, err := env.execute(t, "", "stats", "--all", "--format", "simple")
		require.NoError(t, err)
		assert.Contains(t, out, "Days: 1 | Domains: 2 | Sessions: 2")
	})

	t.Run("past day", func(t *testing.T) {
		out, err := env.execute(t, "", "stats", "--day", "2001-01-01", "--format", "json")
		require.NoError(t, err)

		var report stats.Report
		require.NoError(t, json.Unmarshal([]byte(out), &report))
		assert.Equal(t, "2001-01-01", report.ProductivityStats.Date)
		assert.Zero(t, report.ProductivityStats.TotalTimeMS)
	})

	t.Run("invalid day", func(t *testing.T) {
		_, err := env.execute(t, "", "stats", "--day", "yesterday")
		assert.Error(t, err)
	})

	t.Run("invalid format", func(t *testing.T) {
		_, err := env.execute(t, "", "stats", "--format", "xml")
		assert.Error(t, err)
	})
}

func TestDomains(t *testing.T) {
	env := newTestEnv(t, unreachableAddr)
	env.seed(t,
		record("github.com", category.Development, 30*time.Minute),
		record("youtube.com", category.Entertainment, 10*time.Minute),
	)

	out, err := env.execute(t, "", "domains", "list", "--format", "simple")
	require.NoError(t, err)
	assert.Contains(t, out, "#1: github.com (development)")
	assert.Contains(t, out, "#2: youtube.com (entertainment)")

	out, err = env.execute(t, "", "domains", "list", "--format", "simple", "--category", "entertainment")
	require.NoError(t, err)
	assert.NotContains(t, out, "github.com")
	assert.Contains(t, out, "youtube.com")

	out, err = env.execute(t, "", "domains", "show", "GitHub.com")
	require.NoError(t, err)
	assert.Contains(t, out, "Development")
	assert.Contains(t, out, "30m 00s")

	_, err = env.execute(t, "", "domains", "show", "example.org")
	assert.ErrorIs(t, err, ErrDomainNotFound)
}

func TestList(t *testing.T) {
	env := newTestEnv(t, unreachableAddr)

	_, err := env.execute(t, "", "list")
	assert.ErrorIs(t, err, discovery.ErrNoSpoolFiles)

	profileDir := filepath.Join(env.spoolDir, "work")
	require.NoError(t, os.MkdirAll(profileDir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(profileDir, "events.jsonl"), []byte("{}\n"), 0600))

	out, err := env.execute(t, "", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Found 1 spool file(s)")
	assert.Contains(t, out, "work")
	assert.Contains(t, out, "events.jsonl")
}

func TestStatusDisconnected(t *testing.T) {
	env := newTestEnv(t, unreachableAddr)

	out, err := env.execute(t, "", "status", "--format", "simple")
	require.NoError(t, err)
	assert.Contains(t, out, "not running")
	assert.Contains(t, out, "demo |")
}

func TestTrackRequiresEngine(t *testing.T) {
	env := newTestEnv(t, unreachableAddr)

	_, err := env.execute(t, "", "track", "pause")
	assert.ErrorIs(t, err, api.ErrUnavailable)
}

func TestResetOffline(t *testing.T) {
	env := newTestEnv(t, unreachableAddr)
	env.seed(t, record("github.com", category.Development, 30*time.Minute))

	out, err := env.execute(t, "n\n", "reset")
	require.NoError(t, err)
	assert.Contains(t, out, "Reset cancelled.")

	out, err = env.execute(t, "", "domains", "list", "--format", "simple")
	require.NoError(t, err)
	assert.Contains(t, out, "github.com")

	out, err = env.execute(t, "", "reset", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Statistics reset")

	out, err = env.execute(t, "", "domains", "list", "--format", "json")
	require.NoError(t, err)
	assert.Equal(t, "[]", strings.TrimSpace(out))
}

func TestConfigCommands(t *testing.T) {
	env := newTestEnv(t, unreachableAddr)

	out, err := env.execute(t, "", "config", "show", "--format", "json")
	require.NoError(t, err)

	var cfg config.Config
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, env.dbPath, cfg.Storage.DBPath)
	assert.Equal(t, []string{env.spoolDir}, cfg.SpoolDirs)

	out, err = env.execute(t, "", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "# Source: "+env.configPath)

	target := filepath.Join(t.TempDir(), "nested", "config.yaml")
	out, err = env.execute(t, "", "config", "reset", "--output", target)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration reset to defaults")
	assert.FileExists(t, target)

	out, err = env.execute(t, "no\n", "config", "reset", "--output", target)
	require.NoError(t, err)
	assert.Contains(t, out, "Reset cancelled.")
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"y", true},
	}

	for _, tt := range tests {
		var out bytes.Buffer
		assert.Equal(t, tt.want, confirm(strings.NewReader(tt.input), &out, "Continue?"), "input %q", tt.input)
		assert.Contains(t, out.String(), "Continue? [y/N]: ")
	}
}

func TestMinDuration(t *testing.T) {
	assert.Equal(t, time.Duration(-1), minDuration(0))
	assert.Equal(t, 2*time.Second, minDuration(2*time.Second))
}

// TestServe runs the full engine against a spool directory and drives it
// through the CLI.
func TestServe(t *testing.T) {
	env := newTestEnv(t, "127.0.0.1:0")
	cfg := env.config(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan string, 1)
	done := make(chan error, 1)
	var out bytes.Buffer
	go func() {
		done <- runServe(ctx, cfg, serveOptions{
			ephemeral: true,
			ready:     func(addr string) { ready <- addr },
		}, logger.Noop(), &out)
	}()

	var addr string
	select {
	case addr = <-ready:
	case err := <-done:
		t.Fatalf("serve stopped early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not start")
	}

	ev := parser.Event{
		Type:      parser.TabActivated,
		TabID:     1,
		WindowID:  1,
		URL:       "https://github.com/0xmhha",
		Title:     "GitHub",
		Timestamp: time.Now(),
	}
	line, err := json.Marshal(ev)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(env.spoolDir, "events.jsonl"), append(line, '\n'), 0600))

	client := api.NewClient(api.ClientConfig{Addr: addr, Timeout: time.Second}, logger.Noop())
	require.Eventually(t, func() bool {
		report, err := client.GetStats(ctx)
		return err == nil && report.CurrentSession != nil && report.CurrentSession.Domain == "github.com"
	}, 5*time.Second, 50*time.Millisecond)

	status, err := env.execute(t, "", "--addr", addr, "status", "--format", "simple")
	require.NoError(t, err)
	assert.Contains(t, status, "Engine: connected")
	assert.Contains(t, status, "Now: github.com")

	paused, err := env.execute(t, "", "--addr", addr, "track", "pause")
	require.NoError(t, err)
	assert.Contains(t, paused, "Tracking paused.")
	assert.Contains(t, paused, "paused |")

	started, err := env.execute(t, "", "--addr", addr, "track", "start")
	require.NoError(t, err)
	assert.Contains(t, started, "Tracking started.")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop")
	}

	assert.Contains(t, out.String(), "listening on "+addr)
	assert.Contains(t, out.String(), "tab-monitor stopped")
}
