// Package tracker runs the activity tracking engine.
//
// An Engine owns one event loop goroutine. Browser events, control calls
// and timer callbacks all execute on it one at a time, so the session
// manager and the aggregation store never see interleaved handlers.
//
// A Pump feeds the engine from spool files: it drains every discovered
// file once, then follows appends reported by the watcher.
//
// Tab and window ids are scoped by the browser profile of the spool file
// an event came from. Reports carry engine ids, unique across profiles.
//
// Example usage:
//
//	eng, err := tracker.New(tracker.Config{}, tracker.Deps{
//	    Store:       store,
//	    Tabs:        tabs.NewRegistry(tabs.Config{}, log),
//	    Categorizer: category.Default(),
//	    Bridge:      notify.NewBridge(notify.Config{}, log),
//	}, log)
//	if err != nil {
//	    return err
//	}
//	go eng.Run(ctx)
//
//	report, err := eng.GetStats(ctx)
package tracker

import (
	"time"

	"github.com/0xmhha/tab-monitor/pkg/aggregator"
	"github.com/0xmhha/tab-monitor/pkg/notify"
	"github.com/0xmhha/tab-monitor/pkg/session"
	"github.com/0xmhha/tab-monitor/pkg/tabs"
)

// Defaults for Config.
const (
	DefaultTickInterval   = time.Second
	DefaultFlushInterval  = 10 * time.Second
	DefaultQueryTimeout   = 2 * time.Second
	DefaultStorageTimeout = 5 * time.Second
	DefaultCallTimeout    = 5 * time.Second
	DefaultEventBuffer    = 256
	DefaultMinDuration    = time.Second
)

// Config configures an Engine.
type Config struct {
	// MinSessionDuration is the shortest session that is recorded.
	// Negative values record everything. Default: DefaultMinDuration.
	MinSessionDuration time.Duration

	// TickInterval is how often session_update is published.
	TickInterval time.Duration

	// FlushInterval is how often the store is flushed and stats_update
	// published.
	FlushInterval time.Duration

	// QueryTimeout bounds each tab metadata query.
	QueryTimeout time.Duration

	// StorageTimeout bounds each load, flush and reset.
	StorageTimeout time.Duration

	// CallTimeout bounds control calls whose context has no deadline.
	CallTimeout time.Duration

	// EventBuffer is the capacity of the inbound event queue.
	EventBuffer int

	// StartPaused starts with tracking paused when no persisted state
	// says otherwise.
	StartPaused bool

	// UseEventTime measures sessions with spool event timestamps instead
	// of the wall clock.
	UseEventTime bool

	// TopN limits the domains in a Report. Values <= 0 mean all.
	TopN int

	// Location decides day boundaries in reports. Default: time.Local.
	Location *time.Location
}

// Deps are the collaborators of an Engine. Store, Tabs and Categorizer
// are required.
type Deps struct {
	Store       *aggregator.Store
	Tabs        *tabs.Registry
	Categorizer session.Categorizer

	// Bridge receives push notifications. Default: a new bridge with no
	// subscribers that stamps messages with the engine clock.
	Bridge *notify.Bridge

	// Clock overrides the wall clock. Ignored when UseEventTime is set.
	Clock session.Clock
}

// request is a control call executed on the event loop.
type request struct {
	fn   func()
	done chan struct{}
}
