package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/0xmhha/tab-monitor/pkg/aggregator"
	"github.com/0xmhha/tab-monitor/pkg/api"
	"github.com/0xmhha/tab-monitor/pkg/category"
	"github.com/0xmhha/tab-monitor/pkg/config"
	"github.com/0xmhha/tab-monitor/pkg/discovery"
	"github.com/0xmhha/tab-monitor/pkg/logger"
	"github.com/0xmhha/tab-monitor/pkg/parser"
	"github.com/0xmhha/tab-monitor/pkg/reader"
	"github.com/0xmhha/tab-monitor/pkg/storage"
	"github.com/0xmhha/tab-monitor/pkg/tabs"
	"github.com/0xmhha/tab-monitor/pkg/tracker"
	"github.com/0xmhha/tab-monitor/pkg/watcher"
)

const shutdownTimeout = 5 * time.Second

// serveOptions configures runServe.
type serveOptions struct {
	// ephemeral keeps statistics and spool positions in memory only.
	ephemeral bool

	// ready is called with the bound API address once serving.
	ready func(addr string)
}

func newServeCmd(g *globalOptions) *cobra.Command {
	opts := serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the tracking engine and control API",
		Long: `Run the tracking engine in the foreground.

The engine follows the browser extension's spool files, records tab
sessions, persists aggregates and serves the control API that the
status, watch, track and reset commands talk to.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, cfg, opts, newLogger(cfg), cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&opts.ephemeral, "ephemeral", false, "keep data in memory only")
	return cmd
}

// runServe wires the engine, spool pump and API server and runs them
// until ctx is cancelled or one of them fails.
func runServe(ctx context.Context, cfg *config.Config, opts serveOptions, log logger.Logger, out io.Writer) error {
	var (
		persister aggregator.Persister
		positions reader.PositionStore
	)

	if opts.ephemeral {
		persister = aggregator.NewMemoryPersister()
		positions = reader.NewMemoryPositionStore()
	} else {
		backend, err := storage.Open(storage.Config{
			Driver:  cfg.Storage.Driver,
			Path:    cfg.Storage.DBPath,
			Timeout: cfg.Storage.Timeout,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}
		defer func() {
			if err := backend.Close(); err != nil {
				log.Error("failed to close storage", "error", err)
			}
		}()
		persister = backend
		positions = backend
	}

	if err := ensureDirs(cfg.SpoolDirs); err != nil {
		return err
	}

	store := aggregator.New(aggregator.Config{
		Productive: category.NewSet(cfg.Categories.Productive),
	}, persister, log)

	registry := tabs.NewRegistry(tabs.Config{}, log)

	engine, err := tracker.New(tracker.Config{
		MinSessionDuration: minDuration(cfg.Tracking.MinSessionDuration),
		TickInterval:       cfg.Tracking.TickInterval,
		FlushInterval:      cfg.Tracking.FlushInterval,
		QueryTimeout:       cfg.Tracking.QueryTimeout,
		StorageTimeout:     cfg.Storage.Timeout,
		StartPaused:        cfg.Tracking.StartPaused,
		UseEventTime:       cfg.Tracking.UseEventTime,
		TopN:               cfg.Display.TopN,
	}, tracker.Deps{
		Store: store,
		Tabs:  registry,
		Categorizer: category.New(category.Config{
			CacheTTL: cfg.Categories.CacheTTL,
			Logger:   log,
		}),
	}, log)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	r, err := reader.New(reader.Config{
		PositionStore: positions,
		Parser:        parser.New(log),
	}, log)
	if err != nil {
		return fmt.Errorf("failed to initialize reader: %w", err)
	}
	defer func() {
		if err := r.Close(); err != nil {
			log.Error("failed to close reader", "error", err)
		}
	}()

	w, err := watcher.New(watcher.Config{
		DebounceInterval: 100 * time.Millisecond,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to initialize watcher: %w", err)
	}
	defer func() {
		if err := w.Close(); err != nil {
			log.Error("failed to close watcher", "error", err)
		}
	}()

	pump := tracker.NewPump(discovery.New(cfg.SpoolDirs, log), r, w, engine, log)

	server, err := api.NewServer(api.ServerConfig{
		Addr:       cfg.Server.Addr,
		Controller: engine,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to start control API: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errChan := make(chan error, 3)
	go func() { errChan <- engine.Run(ctx) }()
	go func() { errChan <- pump.Run(ctx) }()
	go func() { errChan <- server.Start() }()

	_, _ = fmt.Fprintf(out, "tab-monitor %s listening on %s\n", version, server.Addr())
	if opts.ready != nil {
		opts.ready(server.Addr())
	}

	var (
		runErr  error
		stopped int
	)
	select {
	case <-ctx.Done():
	case runErr = <-errChan:
		stopped++
		if runErr != nil {
			log.Error("component stopped", "error", runErr)
		}
	}
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()
	if err := server.Stop(stopCtx); err != nil {
		log.Error("failed to stop control API", "error", err)
	}

wait:
	for ; stopped < 3; stopped++ {
		select {
		case err := <-errChan:
			if err != nil && runErr == nil {
				runErr = err
			}
		case <-stopCtx.Done():
			log.Warn("components did not stop in time")
			break wait
		}
	}

	_, _ = fmt.Fprintln(out, "tab-monitor stopped")
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

// minDuration maps the configured threshold to the engine's convention,
// where zero selects the default and a negative value disables it.
func minDuration(d time.Duration) time.Duration {
	if d == 0 {
		return -1
	}
	return d
}

// ensureDirs creates missing spool directories so the watcher can follow
// them before the extension writes anything.
func ensureDirs(dirs []string) error {
	for _, dir := range dirs {
		if err := os.MkdirAll(discovery.ExpandHome(dir), 0700); err != nil {
			return fmt.Errorf("failed to create spool directory %s: %w", dir, err)
		}
	}
	return nil
}
