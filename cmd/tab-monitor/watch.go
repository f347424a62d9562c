package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/0xmhha/tab-monitor/pkg/api"
	"github.com/0xmhha/tab-monitor/pkg/config"
	"github.com/0xmhha/tab-monitor/pkg/display"
	"github.com/0xmhha/tab-monitor/pkg/logger"
	"github.com/0xmhha/tab-monitor/pkg/notify"
	"github.com/0xmhha/tab-monitor/pkg/session"
	"github.com/0xmhha/tab-monitor/pkg/stats"
)

// watchOptions configures the watch command.
type watchOptions struct {
	output  outputOptions
	history bool
}

func newWatchCmd(g *globalOptions) *cobra.Command {
	opts := &watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Live view of the running engine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runWatch(ctx, cfg, opts, newLogger(cfg), cmd.OutOrStdout())
		},
	}
	opts.output.register(cmd)
	cmd.Flags().BoolVar(&opts.history, "history", false, "keep history of updates (append mode)")
	return cmd
}

// liveView renders stream messages.
type liveView struct {
	out         io.Writer
	formatter   display.Formatter
	clearScreen bool
	history     bool
	log         logger.Logger
}

func runWatch(ctx context.Context, cfg *config.Config, opts *watchOptions, log logger.Logger, out io.Writer) error {
	formatter, err := opts.output.formatter(cfg, out, false)
	if err != nil {
		return err
	}

	client := newClient(cfg, log)
	report, err := client.GetStats(ctx)
	if err != nil {
		if errors.Is(err, api.ErrUnavailable) {
			return fmt.Errorf("engine not running at %s: %w", cfg.Server.Addr, err)
		}
		return err
	}

	view := &liveView{
		out:         out,
		formatter:   formatter,
		clearScreen: !opts.history && isTerminal(out),
		history:     opts.history,
		log:         log,
	}

	_, _ = fmt.Fprintln(out, "Live Tab Monitor - Press Ctrl+C to stop")
	view.render(report)

	err = client.Stream(ctx, view.handle)
	if err != nil {
		return fmt.Errorf("event stream closed: %w", err)
	}

	_, _ = fmt.Fprintln(out, "\nStopping monitor...")
	return nil
}

func (v *liveView) handle(msg api.StreamMessage) {
	switch msg.EventType {
	case notify.StatsUpdate:
		var report stats.Report
		if err := json.Unmarshal(msg.Data, &report); err != nil {
			v.log.Warn("invalid stats update", "error", err)
			return
		}
		v.render(report)

	case notify.SessionStart, notify.SessionEnd:
		if !v.history {
			return
		}
		var s session.EndView
		if err := json.Unmarshal(msg.Data, &s); err != nil {
			v.log.Warn("invalid session event", "error", err)
			return
		}

		line := fmt.Sprintf("[%s] %s %s (%s)",
			time.UnixMilli(msg.Timestamp).Format("15:04:05"), msg.EventType, s.Domain, s.Category)
		if msg.EventType == notify.SessionEnd {
			spent := time.Duration(s.TimeSpentMS) * time.Millisecond
			line += fmt.Sprintf(" %s", spent.Round(time.Second))
			if !s.Recorded {
				line += " (not recorded)"
			}
		}
		_, _ = fmt.Fprintln(v.out, line)
	}
}

func (v *liveView) render(report stats.Report) {
	if v.clearScreen {
		_, _ = fmt.Fprint(v.out, "\033[2J\033[H")
	} else {
		_, _ = fmt.Fprintln(v.out, strings.Repeat("-", terminalWidth(v.out)))
	}

	if err := v.formatter.FormatReport(v.out, report); err != nil {
		v.log.Error("failed to render report", "error", err)
	}
}

// terminalWidth returns the width of out, or 80 when unknown.
func terminalWidth(out io.Writer) int {
	if f, ok := out.(*os.File); ok {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			return w
		}
	}
	return 80
}
