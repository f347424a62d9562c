package tracker

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/0xmhha/tab-monitor/pkg/discovery"
	"github.com/0xmhha/tab-monitor/pkg/logger"
	"github.com/0xmhha/tab-monitor/pkg/parser"
	"github.com/0xmhha/tab-monitor/pkg/reader"
	"github.com/0xmhha/tab-monitor/pkg/watcher"
)

// EventSink receives parsed browser events. *Engine implements it.
type EventSink interface {
	Submit(ctx context.Context, ev parser.Event) error
}

// Pump reads spool files and forwards their events to a sink.
type Pump struct {
	discovery discovery.Discoverer
	reader    reader.Reader
	watcher   watcher.Watcher
	sink      EventSink
	logger    logger.Logger
}

// NewPump creates a Pump.
func NewPump(d discovery.Discoverer, r reader.Reader, w watcher.Watcher, sink EventSink, log logger.Logger) *Pump {
	return &Pump{
		discovery: d,
		reader:    r,
		watcher:   w,
		sink:      sink,
		logger:    logger.ForComponent(log, "pump"),
	}
}

// Run starts the watcher, drains every discovered spool file and then
// follows the watcher until ctx is cancelled. It returns nil on cancellation.
//
// The initial drain submits the backlog of all files merged in timestamp
// order, so profiles written side by side replay as they happened.
func (p *Pump) Run(ctx context.Context) error {
	// The watcher starts before the drain; writes during the drain raise events.
	if err := p.watcher.Start(ctx, p.discovery.Dirs()); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	files, err := p.discovery.Discover()
	if err != nil {
		return fmt.Errorf("failed to discover spool files: %w", err)
	}

	p.logger.Info("spool files discovered", "count", len(files))

	var backlog []parser.Event
	for _, f := range files {
		events, err := p.read(ctx, f.Path, f.Profile)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.logger.Warn("initial read failed",
				"path", f.Path,
				"profile", f.Profile,
				"error", err)
			continue
		}
		backlog = append(backlog, events...)
	}

	sort.SliceStable(backlog, func(i, j int) bool {
		return backlog[i].Timestamp.Before(backlog[j].Timestamp)
	})
	if err := p.submit(ctx, backlog); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		p.logger.Warn("initial drain failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-p.watcher.Events():
			if !ok {
				p.logger.Info("watcher events channel closed")
				return nil
			}
			p.handleFileChange(ctx, event)

		case err, ok := <-p.watcher.Errors():
			if !ok {
				p.logger.Info("watcher errors channel closed")
				return nil
			}
			if errors.Is(err, watcher.ErrCircuitBreakerOpen) {
				return fmt.Errorf("spool watcher failed: %w", err)
			}
			p.logger.Error("watcher error", "error", err)
		}
	}
}

// handleFileChange processes a file change event.
func (p *Pump) handleFileChange(ctx context.Context, event watcher.Event) {
	p.logger.Debug("spool change detected",
		"path", event.Path,
		"op", event.Op)

	switch event.Op {
	case watcher.OpRemove, watcher.OpRename:
		// A file recreated under the same name starts from the beginning.
		if err := p.reader.Reset(event.Path); err != nil {
			p.logger.Warn("failed to reset spool position",
				"path", event.Path,
				"error", err)
		}
		return
	}

	if err := p.drain(ctx, event.Path); err != nil && ctx.Err() == nil {
		p.logger.Warn("failed to read spool file after change",
			"path", event.Path,
			"error", err)
	}
}

// drain reads the new events of one file and submits them in order.
func (p *Pump) drain(ctx context.Context, path string) error {
	events, err := p.read(ctx, path, discovery.ProfileOf(p.discovery.Dirs(), path))
	if err != nil {
		return err
	}

	if err := p.submit(ctx, events); err != nil {
		return err
	}

	if len(events) > 0 {
		p.logger.Debug("spool events forwarded",
			"path", path,
			"events", len(events))
	}

	return nil
}

// read returns the new events of one file tagged with its profile.
func (p *Pump) read(ctx context.Context, path, profile string) ([]parser.Event, error) {
	events, err := p.reader.Read(ctx, path)
	if err != nil {
		return nil, err
	}

	for i := range events {
		events[i].Profile = profile
	}
	return events, nil
}

func (p *Pump) submit(ctx context.Context, events []parser.Event) error {
	for _, ev := range events {
		if err := p.sink.Submit(ctx, ev); err != nil {
			return fmt.Errorf("failed to submit event: %w", err)
		}
	}
	return nil
}
