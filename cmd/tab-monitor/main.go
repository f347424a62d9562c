// Package main provides the tab-monitor CLI application.
//
// Tab Monitor tracks time spent on browser tabs. The serve command runs
// the tracking engine, following the spool files written by the browser
// extension and exposing a local control API. The remaining commands
// read the persisted statistics or talk to a running engine.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/0xmhha/tab-monitor/pkg/api"
	"github.com/0xmhha/tab-monitor/pkg/config"
	"github.com/0xmhha/tab-monitor/pkg/logger"
)

// version is set during build time.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalOptions holds flags shared by every command.
type globalOptions struct {
	configPath string
	addr       string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "tab-monitor",
		Short:         "Browser tab activity tracker",
		Long:          "Tab Monitor records time spent per domain and category and reports daily productivity.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate("tab-monitor {{.Version}}\n")
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to configuration file")
	root.PersistentFlags().StringVar(&opts.addr, "addr", "", "control API address (overrides config)")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newStatsCmd(opts))
	root.AddCommand(newDomainsCmd(opts))
	root.AddCommand(newListCmd(opts))
	root.AddCommand(newStatusCmd(opts))
	root.AddCommand(newWatchCmd(opts))
	root.AddCommand(newTrackCmd(opts))
	root.AddCommand(newResetCmd(opts))
	root.AddCommand(newConfigCmd(opts))
	return root
}

// loadConfig loads the configuration and applies flag overrides.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.NewLoader(o.configPath).Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if o.addr != "" {
		cfg.Server.Addr = o.addr
	}
	return cfg, nil
}

// newLogger builds the application logger from configuration.
func newLogger(cfg *config.Config) logger.Logger {
	return logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// newClient builds a control API client for a running engine.
func newClient(cfg *config.Config, log logger.Logger) *api.Client {
	return api.NewClient(api.ClientConfig{
		Addr:    cfg.Server.Addr,
		Timeout: cfg.Server.ClientTimeout,
	}, log)
}
