package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/0xmhha/tab-monitor/pkg/config"
)

func newConfigCmd(g *globalOptions) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management (show, path, reset)",
	}

	var format string
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loader := config.NewLoader(g.configPath)
			cfg, err := loader.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if g.addr != "" {
				cfg.Server.Addr = g.addr
			}

			source := loader.Source()
			if source == "" {
				source = "defaults (no config file found)"
			}
			return showConfig(cmd.OutOrStdout(), cfg, format, source)
		},
	}
	showCmd.Flags().StringVar(&format, "format", "yaml", "output format (yaml, json)")

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Show configuration file paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			_, _ = fmt.Fprintln(out, "Configuration file search paths (in order of precedence):")
			_, _ = fmt.Fprintln(out)
			for i, p := range config.SearchPaths() {
				exists := "not found"
				if _, err := os.Stat(p); err == nil {
					exists = "found"
				}
				_, _ = fmt.Fprintf(out, "  %d. %s [%s]\n", i+1, p, exists)
			}

			_, _ = fmt.Fprintln(out)
			_, _ = fmt.Fprintln(out, "Active configuration:", configSource(g.configPath))
			return nil
		},
	}

	var (
		force  bool
		output string
	)
	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset configuration to defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			path := output
			if path == "" {
				path = config.DefaultConfigPath()
			}

			if _, err := os.Stat(path); err == nil && !force {
				_, _ = fmt.Fprintf(out, "Configuration file already exists at: %s\n", path)
				if !confirm(cmd.InOrStdin(), out, "Overwrite?") {
					_, _ = fmt.Fprintln(out, "Reset cancelled.")
					return nil
				}
			}

			if err := config.Save(config.Default(), path); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(out, "Configuration reset to defaults at: %s\n", path)
			return nil
		},
	}
	resetCmd.Flags().BoolVar(&force, "force", false, "skip confirmation prompt")
	resetCmd.Flags().StringVar(&output, "output", "", "output path for config file (default: ~/.config/tab-monitor/config.yaml)")

	cfgCmd.AddCommand(showCmd, pathCmd, resetCmd)
	return cfgCmd
}

// showConfig writes cfg as YAML or JSON.
func showConfig(out io.Writer, cfg *config.Config, format, source string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		_, err = fmt.Fprintln(out, string(data))
		return err

	case "yaml", "":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		_, _ = fmt.Fprintln(out, "# Current Configuration")
		_, _ = fmt.Fprintln(out, "# Source:", source)
		_, _ = fmt.Fprintln(out)
		_, err = fmt.Fprint(out, string(data))
		return err

	default:
		return fmt.Errorf("unknown config format: %s", format)
	}
}

// configSource returns the configuration file Load would use.
func configSource(explicit string) string {
	if explicit != "" {
		return explicit
	}

	for _, p := range config.SearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return "defaults (no config file found)"
}
