package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/0xmhha/tab-monitor/pkg/aggregator"
	"github.com/0xmhha/tab-monitor/pkg/logger"
	"github.com/0xmhha/tab-monitor/pkg/notify"
	"github.com/0xmhha/tab-monitor/pkg/parser"
	"github.com/0xmhha/tab-monitor/pkg/session"
	"github.com/0xmhha/tab-monitor/pkg/stats"
	"github.com/0xmhha/tab-monitor/pkg/tabs"
)

// Engine wires the session manager, the tab registry, the aggregation
// store and the notification bridge to a single event loop.
//
// Thread-safety: Submit, the control calls and Subscribe are safe for
// concurrent use. Everything else runs on the loop started by Run.
type Engine struct {
	cfg    Config
	store  *aggregator.Store
	tabs   *tabs.Registry
	bridge *notify.Bridge
	mgr    *session.Manager
	clock  session.Clock
	evtime *eventClock
	ids    *profileIDs
	logger logger.Logger

	events   chan parser.Event
	requests chan request

	mu      sync.RWMutex
	running bool
	closed  bool
	done    chan struct{}

	// lastVersion is the store version of the last stats_update.
	lastVersion uint64
}

// New creates an Engine. Call Run to start it.
func New(cfg Config, deps Deps, log logger.Logger) (*Engine, error) {
	switch {
	case deps.Store == nil:
		return nil, fmt.Errorf("%w: store is required", ErrMissingDependency)
	case deps.Tabs == nil:
		return nil, fmt.Errorf("%w: tab registry is required", ErrMissingDependency)
	case deps.Categorizer == nil:
		return nil, fmt.Errorf("%w: categorizer is required", ErrMissingDependency)
	}

	switch {
	case cfg.MinSessionDuration == 0:
		cfg.MinSessionDuration = DefaultMinDuration
	case cfg.MinSessionDuration < 0:
		cfg.MinSessionDuration = 0
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = DefaultQueryTimeout
	}
	if cfg.StorageTimeout <= 0 {
		cfg.StorageTimeout = DefaultStorageTimeout
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = DefaultEventBuffer
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	log = logger.ForComponent(log, "tracker")

	if deps.Clock == nil {
		deps.Clock = session.SystemClock()
	}

	e := &Engine{
		cfg:      cfg,
		store:    deps.Store,
		tabs:     deps.Tabs,
		clock:    deps.Clock,
		ids:      newProfileIDs(),
		logger:   log,
		events:   make(chan parser.Event, cfg.EventBuffer),
		requests: make(chan request),
		done:     make(chan struct{}),
	}

	if cfg.UseEventTime {
		e.evtime = newEventClock(deps.Clock.Now)
		e.clock = e.evtime
	}

	if deps.Bridge == nil {
		deps.Bridge = notify.NewBridge(notify.Config{Now: e.clock.Now}, log)
	}
	e.bridge = deps.Bridge

	e.mgr = session.NewManager(session.Config{
		MinDuration:  cfg.MinSessionDuration,
		QueryTimeout: cfg.QueryTimeout,
	}, session.Deps{
		Tabs:        deps.Tabs,
		Clock:       e.clock,
		Categorizer: deps.Categorizer,
		Sink:        deps.Store,
		Publisher:   deps.Bridge,
	}, log)

	log.Info("tracking engine created",
		"min_session_duration", cfg.MinSessionDuration,
		"tick_interval", cfg.TickInterval,
		"flush_interval", cfg.FlushInterval,
		"use_event_time", cfg.UseEventTime)

	return e, nil
}

// Run loads the store and processes events until ctx is cancelled. On
// cancellation the current session is ended, the store flushed and the
// bridge closed.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	if e.running {
		e.mu.Unlock()
		return ErrEngineRunning
	}
	e.running = true
	e.mu.Unlock()

	if err := e.start(ctx); err != nil {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		return err
	}

	tick := time.NewTicker(e.cfg.TickInterval)
	defer tick.Stop()
	flush := time.NewTicker(e.cfg.FlushInterval)
	defer flush.Stop()

	e.logger.Info("tracking engine started")

	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return nil

		case ev := <-e.events:
			e.handle(ctx, ev)

		case req := <-e.requests:
			e.drainEvents(ctx)
			req.fn()
			close(req.done)

		case <-tick.C:
			e.mgr.Tick()

		case <-flush.C:
			e.flush(ctx)
		}
	}
}

// Done is closed once Run has shut the engine down.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Submit queues a browser event. It blocks while the queue is full.
func (e *Engine) Submit(ctx context.Context, ev parser.Event) error {
	select {
	case <-e.done:
		return ErrEngineClosed
	default:
	}

	select {
	case e.events <- ev:
		return nil
	case <-e.done:
		return ErrEngineClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers a push notification listener.
func (e *Engine) Subscribe() *notify.Subscription {
	return e.bridge.Subscribe()
}

// Unsubscribe removes a listener registered with Subscribe.
func (e *Engine) Unsubscribe(id string) {
	e.bridge.Unsubscribe(id)
}

// GetStats returns a report of the current state.
func (e *Engine) GetStats(ctx context.Context) (stats.Report, error) {
	var report stats.Report
	err := e.call(ctx, func() {
		report = e.report()
	})
	return report, err
}

// StartTracking leaves paused mode and starts a session on the active tab
// of the last focused window. Starting while tracking is a no-op.
func (e *Engine) StartTracking(ctx context.Context) error {
	return e.call(ctx, func() {
		meta := e.store.Meta()
		if meta.TrackingEnabled && !e.mgr.Paused() {
			return
		}

		e.store.SetMeta(aggregator.Meta{
			TrackingEnabled: true,
			SessionAnchor:   e.clock.Now(),
		})
		e.mgr.Resume(ctx)
		e.logger.Info("tracking started")
		e.flush(ctx)
	})
}

// PauseTracking ends the current session and ignores tab events until
// StartTracking. Pausing while paused is a no-op.
func (e *Engine) PauseTracking(ctx context.Context) error {
	return e.call(ctx, func() {
		if e.mgr.Paused() && !e.store.Meta().TrackingEnabled {
			return
		}

		e.mgr.Pause()
		e.store.SetMeta(aggregator.Meta{TrackingEnabled: false})
		e.logger.Info("tracking paused")
		e.flush(ctx)
	})
}

// ResetData clears every aggregate. The current session keeps running but
// only counts time from the reset on.
func (e *Engine) ResetData(ctx context.Context) error {
	var resetErr error
	err := e.call(ctx, func() {
		sctx, cancel := context.WithTimeout(ctx, e.cfg.StorageTimeout)
		defer cancel()

		if resetErr = e.store.Reset(sctx); resetErr != nil {
			e.logger.Error("failed to reset data", "error", resetErr)
			return
		}

		e.mgr.Rebase()
		if meta := e.store.Meta(); meta.TrackingEnabled {
			meta.SessionAnchor = e.clock.Now()
			e.store.SetMeta(meta)
		}
		e.logger.Info("data reset")
		e.flush(ctx)
	})
	if err != nil {
		return err
	}
	return resetErr
}

// call runs fn on the event loop and waits for it.
func (e *Engine) call(ctx context.Context, fn func()) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.CallTimeout)
		defer cancel()
	}

	select {
	case <-e.done:
		return ErrEngineClosed
	default:
	}

	req := request{fn: fn, done: make(chan struct{})}

	select {
	case e.requests <- req:
	case <-e.done:
		return ErrEngineClosed
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrEngineUnavailable, ctx.Err())
	}

	// Once accepted the loop always finishes the request.
	<-req.done
	return nil
}

// start restores persisted state before the loop begins.
func (e *Engine) start(ctx context.Context) error {
	lctx, cancel := context.WithTimeout(ctx, e.cfg.StorageTimeout)
	defer cancel()

	if err := e.store.Load(lctx); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}

	snap := e.store.Snapshot()
	meta := snap.Meta
	if !snap.HasMeta {
		meta = aggregator.Meta{TrackingEnabled: !e.cfg.StartPaused}
		if meta.TrackingEnabled {
			meta.SessionAnchor = e.clock.Now()
		}
		e.store.SetMeta(meta)
	}

	if !meta.TrackingEnabled {
		e.mgr.Pause()
	}

	e.lastVersion = e.store.Version()

	e.logger.Info("engine state restored",
		"tracking", meta.TrackingEnabled,
		"domains", len(snap.Domains),
		"days", len(snap.Days))

	return nil
}

// shutdown ends the current session and persists everything.
func (e *Engine) shutdown() {
	e.mgr.EndCurrent()
	e.flush(context.Background())
	e.bridge.Close()

	e.mu.Lock()
	e.running = false
	e.closed = true
	close(e.done)
	e.mu.Unlock()

	e.logger.Info("tracking engine stopped")
}

// handle applies one browser event.
func (e *Engine) handle(ctx context.Context, ev parser.Event) {
	if e.evtime != nil && !e.evtime.Observe(ev.Timestamp) {
		e.logger.Debug("event older than engine clock, time not moved",
			"type", ev.Type,
			"profile", ev.Profile,
			"timestamp", ev.Timestamp)
	}

	raw := ev
	e.ids.Translate(&ev)
	if ev.Type == parser.TabRemoved {
		defer e.ids.Forget(raw)
	}

	e.tabs.Observe(ev)

	switch ev.Type {
	case parser.TabActivated:
		e.mgr.TabActivated(ctx, ev.TabID)

	case parser.TabUpdated:
		if ev.Complete() {
			e.mgr.TabUpdated(ctx, ev.TabID)
		}

	case parser.TabRemoved:
		e.mgr.TabClosed(ev.TabID)

	case parser.WindowFocusChanged:
		if ev.Blur() {
			e.mgr.WindowBlurred()
		} else {
			e.mgr.WindowFocused(ctx, ev.WindowID)
		}

	case parser.TabCreated:
		// Registry only.
	}
}

// drainEvents applies every queued event, so a control call observes all
// events submitted before it.
func (e *Engine) drainEvents(ctx context.Context) {
	for {
		select {
		case ev := <-e.events:
			e.handle(ctx, ev)
		default:
			return
		}
	}
}

// flush persists dirty aggregates and publishes stats_update when
// anything changed since the last one.
func (e *Engine) flush(ctx context.Context) {
	if ctx.Err() != nil {
		ctx = context.Background()
	}
	fctx, cancel := context.WithTimeout(ctx, e.cfg.StorageTimeout)
	defer cancel()

	if err := e.store.Flush(fctx); err != nil {
		e.logger.Error("flush failed", "error", err)
	}

	if v := e.store.Version(); v != e.lastVersion {
		e.lastVersion = v
		e.bridge.Publish(notify.StatsUpdate, e.report())
	}
}

func (e *Engine) report() stats.Report {
	now := e.clock.Now().In(e.cfg.Location)

	var current *session.View
	if cur := e.mgr.Current(); cur != nil {
		v := cur.View(now)
		current = &v
	}

	return stats.BuildReport(e.store.Snapshot(), stats.ReportOptions{
		Now:     now,
		Current: current,
		TopN:    e.cfg.TopN,
	})
}
