package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/0xmhha/tab-monitor/pkg/aggregator"
	"github.com/0xmhha/tab-monitor/pkg/api"
	"github.com/0xmhha/tab-monitor/pkg/category"
	"github.com/0xmhha/tab-monitor/pkg/config"
	"github.com/0xmhha/tab-monitor/pkg/discovery"
	"github.com/0xmhha/tab-monitor/pkg/display"
	"github.com/0xmhha/tab-monitor/pkg/logger"
	"github.com/0xmhha/tab-monitor/pkg/stats"
	"github.com/0xmhha/tab-monitor/pkg/storage"
)

// ErrDomainNotFound is returned by "domains show" for an unknown domain.
var ErrDomainNotFound = errors.New("domain not found")

// outputOptions are the formatting flags shared by reporting commands.
type outputOptions struct {
	format  string
	compact bool
}

func (o *outputOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.format, "format", "", "output format (table, json, simple)")
	cmd.Flags().BoolVar(&o.compact, "compact", false, "compact output")
}

// formatter builds a display.Formatter for out, falling back to the
// configured default format.
func (o *outputOptions) formatter(cfg *config.Config, out io.Writer, showTrend bool) (display.Formatter, error) {
	name := o.format
	if name == "" {
		name = cfg.Display.DefaultFormat
	}

	format, err := display.ParseFormat(name)
	if err != nil {
		return nil, err
	}

	return display.New(display.Config{
		Format:    format,
		Color:     cfg.Display.ColorEnabled && isTerminal(out),
		ShowTrend: showTrend,
		Compact:   o.compact,
	}), nil
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// openStore opens the configured database and loads its aggregates.
// The returned function closes the database.
func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (*aggregator.Store, func(), error) {
	backend, err := storage.Open(storage.Config{
		Driver:  cfg.Storage.Driver,
		Path:    cfg.Storage.DBPath,
		Timeout: cfg.Storage.Timeout,
	}, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open storage (is the engine running?): %w", err)
	}

	closeFn := func() {
		if err := backend.Close(); err != nil {
			log.Error("failed to close storage", "error", err)
		}
	}

	store := aggregator.New(aggregator.Config{
		Productive: category.NewSet(cfg.Categories.Productive),
	}, backend, log)

	loadCtx, cancel := context.WithTimeout(ctx, cfg.Storage.Timeout)
	defer cancel()
	if err := store.Load(loadCtx); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("failed to load statistics: %w", err)
	}

	return store, closeFn, nil
}

// statsOptions configures the stats command.
type statsOptions struct {
	output  outputOptions
	topN    int
	day     string
	all     bool
	trend   bool
	offline bool
}

func newStatsCmd(g *globalOptions) *cobra.Command {
	opts := &statsOptions{}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Display browsing statistics",
		Long: `Display browsing statistics.

Statistics come from the running engine when it is reachable and from
the database otherwise. --day and --all always read the database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			return runStats(cmd.Context(), cfg, opts, newLogger(cfg), cmd.OutOrStdout())
		},
	}
	opts.output.register(cmd)
	cmd.Flags().IntVar(&opts.topN, "top", 0, "number of top domains (default from config)")
	cmd.Flags().StringVar(&opts.day, "day", "", "report a past day (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&opts.all, "all", false, "show totals across every recorded day")
	cmd.Flags().BoolVar(&opts.trend, "trend", false, "include the weekly trend")
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "read the database even if the engine is running")
	return cmd
}

func runStats(ctx context.Context, cfg *config.Config, opts *statsOptions, log logger.Logger, out io.Writer) error {
	formatter, err := opts.output.formatter(cfg, out, opts.trend)
	if err != nil {
		return err
	}

	topN := opts.topN
	if topN <= 0 {
		topN = cfg.Display.TopN
	}

	now := time.Now()
	if opts.day != "" {
		day, err := time.ParseInLocation(aggregator.DateLayout, opts.day, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --day %q: %w", opts.day, err)
		}
		now = day.Add(12 * time.Hour)
	}

	if !opts.offline && !opts.all && opts.day == "" {
		report, err := newClient(cfg, log).GetStats(ctx)
		if err == nil {
			report.TopDomains = limitDomains(report.TopDomains, topN)
			return formatter.FormatReport(out, report)
		}
		if !errors.Is(err, api.ErrUnavailable) {
			return err
		}
		log.Debug("engine unavailable, reading database", "error", err)
	}

	store, closeFn, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeFn()

	snap := store.Snapshot()
	if opts.all {
		return formatter.FormatTotals(out, stats.Overall(snap))
	}

	return formatter.FormatReport(out, stats.BuildReport(snap, stats.ReportOptions{
		Now:  now,
		TopN: topN,
	}))
}

func limitDomains(domains []stats.DomainView, n int) []stats.DomainView {
	if n > 0 && len(domains) > n {
		return domains[:n]
	}
	return domains
}

func newDomainsCmd(g *globalOptions) *cobra.Command {
	domains := &cobra.Command{Use: "domains", Short: "Inspect per-domain aggregates"}

	var (
		listOutput outputOptions
		topN       int
		filter     string
	)
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List domains by total time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			log := newLogger(cfg)

			formatter, err := listOutput.formatter(cfg, cmd.OutOrStdout(), false)
			if err != nil {
				return err
			}

			store, closeFn, err := openStore(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer closeFn()

			views := domainViews(store.Snapshot(), filter, topN)
			return formatter.FormatDomains(cmd.OutOrStdout(), views)
		},
	}
	listOutput.register(listCmd)
	listCmd.Flags().IntVar(&topN, "top", 0, "limit the number of domains (0 lists all)")
	listCmd.Flags().StringVar(&filter, "category", "", "only list domains in this category")

	var showOutput outputOptions
	showCmd := &cobra.Command{
		Use:   "show <domain>",
		Short: "Show one domain's aggregate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			log := newLogger(cfg)

			formatter, err := showOutput.formatter(cfg, cmd.OutOrStdout(), false)
			if err != nil {
				return err
			}

			store, closeFn, err := openStore(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer closeFn()

			name := strings.ToLower(strings.TrimSpace(args[0]))
			agg, ok := store.Domain(name)
			if !ok {
				return fmt.Errorf("%w: %s", ErrDomainNotFound, name)
			}
			return formatter.FormatDomain(cmd.OutOrStdout(), stats.NewDomainView(agg))
		},
	}
	showOutput.register(showCmd)

	domains.AddCommand(listCmd, showCmd)
	return domains
}

// domainViews returns domains by descending time, optionally filtered by
// category and limited to n entries.
func domainViews(snap *aggregator.Snapshot, filter string, n int) []stats.DomainView {
	all := stats.TopDomains(snap, 0)

	views := make([]stats.DomainView, 0, len(all))
	for _, d := range all {
		if filter != "" && !strings.EqualFold(string(d.Category), filter) {
			continue
		}
		views = append(views, stats.NewDomainView(d))
	}

	return limitDomains(views, n)
}

func newListCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List discovered spool files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			return runList(cfg, newLogger(cfg), cmd.OutOrStdout())
		},
	}
}

func runList(cfg *config.Config, log logger.Logger, out io.Writer) error {
	disc := discovery.New(cfg.SpoolDirs, log)
	files, err := disc.Discover()
	if err != nil {
		return fmt.Errorf("failed to discover spool files: %w", err)
	}

	if len(files) == 0 {
		return fmt.Errorf("%w in %s", discovery.ErrNoSpoolFiles, strings.Join(disc.Dirs(), ", "))
	}

	sort.SliceStable(files, func(i, j int) bool { return files[i].Profile < files[j].Profile })

	_, _ = fmt.Fprintf(out, "Found %d spool file(s):\n\n", len(files))
	for _, f := range files {
		profile := f.Profile
		if profile == "" {
			profile = "default"
		}
		_, _ = fmt.Fprintf(out, "  %s\n", profile)
		_, _ = fmt.Fprintf(out, "    Path: %s\n", f.Path)
		_, _ = fmt.Fprintf(out, "    Size: %d bytes, modified %s\n\n", f.Size, time.Unix(f.ModTime, 0).Format("2006-01-02 15:04:05"))
	}

	return nil
}

func newStatusCmd(g *globalOptions) *cobra.Command {
	var output outputOptions

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show live status from the running engine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			formatter, err := output.formatter(cfg, out, false)
			if err != nil {
				return err
			}

			report, connected, err := newClient(cfg, newLogger(cfg)).Status(cmd.Context())
			if err != nil {
				return err
			}

			if connected {
				_, _ = fmt.Fprintf(out, "Engine: connected (%s)\n", cfg.Server.Addr)
			} else {
				_, _ = fmt.Fprintf(out, "Engine: not running at %s, showing demo data\n", cfg.Server.Addr)
			}
			return formatter.FormatReport(out, report)
		},
	}
	output.register(cmd)
	return cmd
}

func newTrackCmd(g *globalOptions) *cobra.Command {
	track := &cobra.Command{Use: "track", Short: "Start or pause tracking on the running engine"}

	control := func(use, short, done string, op func(*api.Client, context.Context) (stats.Report, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := g.loadConfig()
				if err != nil {
					return err
				}

				report, err := op(newClient(cfg, newLogger(cfg)), cmd.Context())
				if err != nil {
					if errors.Is(err, api.ErrUnavailable) {
						return fmt.Errorf("engine not running at %s: %w", cfg.Server.Addr, err)
					}
					return err
				}

				_, _ = fmt.Fprintln(cmd.OutOrStdout(), done)
				return display.New(display.Config{Format: display.FormatSimple}).FormatReport(cmd.OutOrStdout(), report)
			},
		}
	}

	track.AddCommand(
		control("start", "Resume tracking", "Tracking started.", (*api.Client).StartTracking),
		control("pause", "Pause tracking", "Tracking paused.", (*api.Client).PauseTracking),
	)
	return track
}

func newResetCmd(g *globalOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all recorded statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if !yes && !confirm(cmd.InOrStdin(), out, "Delete all recorded browsing statistics?") {
				_, _ = fmt.Fprintln(out, "Reset cancelled.")
				return nil
			}

			return runReset(cmd.Context(), cfg, newLogger(cfg), out)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}

// runReset resets through the running engine, or directly in the
// database when no engine is reachable.
func runReset(ctx context.Context, cfg *config.Config, log logger.Logger, out io.Writer) error {
	_, err := newClient(cfg, log).ResetData(ctx)
	if err == nil {
		_, _ = fmt.Fprintln(out, "Statistics reset.")
		return nil
	}
	if !errors.Is(err, api.ErrUnavailable) {
		return err
	}

	store, closeFn, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeFn()

	resetCtx, cancel := context.WithTimeout(ctx, cfg.Storage.Timeout)
	defer cancel()
	if err := store.Reset(resetCtx); err != nil {
		return fmt.Errorf("failed to reset statistics: %w", err)
	}

	_, _ = fmt.Fprintf(out, "Statistics reset in %s.\n", cfg.Storage.DBPath)
	return nil
}

// confirm asks a yes/no question and defaults to no.
func confirm(in io.Reader, out io.Writer, question string) bool {
	_, _ = fmt.Fprintf(out, "%s [y/N]: ", question)

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		_, _ = fmt.Fprintln(out)
		return false
	}

	response := strings.ToLower(strings.TrimSpace(line))
	return response == "y" || response == "yes"
}
