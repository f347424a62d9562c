// Package aggregator accumulates finished browsing sessions into
// per-domain and per-day statistics.
//
// The Store is the only owner of the aggregates. Fold is its single
// mutation entry point; Flush writes changed entries to a Persister and
// Reset clears memory and the persisted copy together.
//
// Example usage:
//
//	store := aggregator.New(aggregator.Config{
//	    Productive: category.DefaultProductive(),
//	}, backend, log)
//	if err := store.Load(ctx); err != nil {
//	    return err
//	}
//
//	if err := store.Fold(rec); err != nil {
//	    log.Error("fold rejected", "error", err)
//	}
//	_ = store.Flush(ctx)
package aggregator

import (
	"context"
	"time"

	"github.com/0xmhha/tab-monitor/pkg/category"
)

// DateLayout is the layout of DailyStats keys.
const DateLayout = "2006-01-02"

// DomainAggregate is the cumulative record of one domain.
type DomainAggregate struct {
	Domain string

	// Title and Category are the values of the latest folded record.
	Title    string
	Category category.Category

	TotalTime  time.Duration
	Visits     int
	FirstVisit time.Time
	LastVisit  time.Time
}

// DailyStats is the cumulative record of one calendar day.
type DailyStats struct {
	// Date is the local day, formatted with DateLayout.
	Date string

	TotalTime      time.Duration
	ProductiveTime time.Duration
	Categories     map[category.Category]time.Duration
	SessionCount   int
}

// Meta holds the scalar tracking state persisted with the aggregates.
type Meta struct {
	TrackingEnabled bool

	// SessionAnchor is when tracking was last started.
	SessionAnchor time.Time
}

// Snapshot is a deep copy of the store contents.
type Snapshot struct {
	Domains map[string]DomainAggregate
	Days    map[string]DailyStats
	Meta    Meta

	// HasMeta is false when no meta was ever persisted.
	HasMeta bool
}

// Batch is a set of changed entries to persist.
type Batch struct {
	Domains []DomainAggregate
	Days    []DailyStats

	// Meta is nil when unchanged.
	Meta *Meta
}

// Empty reports whether the batch has nothing to write.
func (b Batch) Empty() bool {
	return len(b.Domains) == 0 && len(b.Days) == 0 && b.Meta == nil
}

// Persister stores aggregates durably.
type Persister interface {
	// Load returns everything persisted.
	Load(ctx context.Context) (*Snapshot, error)

	// Save upserts the batch in a single transaction.
	Save(ctx context.Context, batch Batch) error

	// Clear removes every domain and day in a single transaction.
	// Meta is kept.
	Clear(ctx context.Context) error
}

// Config configures a Store.
type Config struct {
	// Productive categories count toward DailyStats.ProductiveTime.
	// Nil means category.DefaultProductive().
	Productive category.Set

	// Location decides calendar days. Nil means time.Local.
	Location *time.Location
}
