package aggregator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/0xmhha/tab-monitor/pkg/category"
	"github.com/0xmhha/tab-monitor/pkg/logger"
	"github.com/0xmhha/tab-monitor/pkg/session"
)

// Store holds the aggregates in memory and tracks what changed since the
// last flush.
//
// Thread-safety: all methods are safe for concurrent use.
type Store struct {
	productive category.Set
	loc        *time.Location
	persist    Persister
	log        logger.Logger

	// flushMu serializes Flush and Reset so a flush in flight cannot
	// write back entries a reset removed.
	flushMu sync.Mutex

	mu      sync.RWMutex
	loaded  bool
	domains map[string]*DomainAggregate
	days    map[string]*DailyStats
	meta    Meta
	hasMeta bool

	dirtyDomains map[string]struct{}
	dirtyDays    map[string]struct{}
	dirtyMeta    bool

	// version changes on every mutation.
	version uint64
}

// New creates an empty Store. Call Load before Flush.
func New(cfg Config, p Persister, log logger.Logger) *Store {
	if cfg.Productive == nil {
		cfg.Productive = category.DefaultProductive()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	return &Store{
		productive:   cfg.Productive,
		loc:          cfg.Location,
		persist:      p,
		log:          logger.ForComponent(log, "aggregator"),
		domains:      make(map[string]*DomainAggregate),
		days:         make(map[string]*DailyStats),
		dirtyDomains: make(map[string]struct{}),
		dirtyDays:    make(map[string]struct{}),
		meta:         Meta{TrackingEnabled: true},
	}
}

// Load replaces the in-memory state with the persisted one.
func (s *Store) Load(ctx context.Context) error {
	snap, err := s.persist.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load aggregates: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.domains = make(map[string]*DomainAggregate, len(snap.Domains))
	for k, d := range snap.Domains {
		d := d
		s.domains[k] = &d
	}
	s.days = make(map[string]*DailyStats, len(snap.Days))
	for k, d := range snap.Days {
		d = cloneDay(d)
		s.days[k] = &d
	}
	if snap.HasMeta {
		s.meta = snap.Meta
		s.hasMeta = true
	}

	s.dirtyDomains = make(map[string]struct{})
	s.dirtyDays = make(map[string]struct{})
	s.dirtyMeta = false
	s.loaded = true
	s.version++

	s.log.Info("aggregates loaded",
		"domains", len(s.domains),
		"days", len(s.days))

	return nil
}

// DayKey returns the DailyStats key for t.
func (s *Store) DayKey(t time.Time) string {
	return t.In(s.loc).Format(DateLayout)
}

// Fold adds one finished session to its domain and day.
//
// Records with negative time spent, no domain or no end time are rejected
// with ErrInvalidRecord and change nothing.
func (s *Store) Fold(rec session.Record) error {
	switch {
	case rec.TimeSpent < 0:
		return fmt.Errorf("%w: negative time spent %v", ErrInvalidRecord, rec.TimeSpent)
	case rec.Domain == "":
		return fmt.Errorf("%w: empty domain", ErrInvalidRecord)
	case rec.EndTime.IsZero():
		return fmt.Errorf("%w: missing end time", ErrInvalidRecord)
	}

	// Persisted values are integer milliseconds.
	spent := rec.TimeSpent.Truncate(time.Millisecond)
	start := time.UnixMilli(rec.StartTime.UnixMilli())
	end := time.UnixMilli(rec.EndTime.UnixMilli())
	cat := rec.Category
	if cat == "" {
		cat = category.Other
	}
	date := s.DayKey(end)

	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.domains[rec.Domain]
	if !ok {
		d = &DomainAggregate{
			Domain:     rec.Domain,
			FirstVisit: start,
		}
		s.domains[rec.Domain] = d
	}
	d.TotalTime += spent
	d.Visits++
	d.Title = rec.Title
	d.Category = cat
	d.LastVisit = end
	if d.FirstVisit.IsZero() || start.Before(d.FirstVisit) {
		d.FirstVisit = start
	}

	day, ok := s.days[date]
	if !ok {
		day = &DailyStats{
			Date:       date,
			Categories: make(map[category.Category]time.Duration),
		}
		s.days[date] = day
	}
	day.TotalTime += spent
	if s.productive.Contains(cat) {
		day.ProductiveTime += spent
	}
	day.Categories[cat] += spent
	day.SessionCount++

	s.dirtyDomains[rec.Domain] = struct{}{}
	s.dirtyDays[date] = struct{}{}
	s.version++

	return nil
}

// Domain returns a copy of one domain aggregate.
func (s *Store) Domain(name string) (DomainAggregate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.domains[name]
	if !ok {
		return DomainAggregate{}, false
	}
	return *d, true
}

// Day returns a copy of one day's statistics.
func (s *Store) Day(date string) (DailyStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.days[date]
	if !ok {
		return DailyStats{}, false
	}
	return cloneDay(*d), true
}

// Meta returns the tracking state.
func (s *Store) Meta() Meta {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.meta
}

// SetMeta replaces the tracking state. It is persisted on the next Flush.
func (s *Store) SetMeta(m Meta) {
	if !m.SessionAnchor.IsZero() {
		m.SessionAnchor = time.UnixMilli(m.SessionAnchor.UnixMilli())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.meta = m
	s.hasMeta = true
	s.dirtyMeta = true
	s.version++
}

// Snapshot returns a deep copy of the whole store.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &Snapshot{
		Domains: make(map[string]DomainAggregate, len(s.domains)),
		Days:    make(map[string]DailyStats, len(s.days)),
		Meta:    s.meta,
		HasMeta: s.hasMeta,
	}
	for k, d := range s.domains {
		snap.Domains[k] = *d
	}
	for k, d := range s.days {
		snap.Days[k] = cloneDay(*d)
	}

	return snap
}

// Version returns a counter that changes on every mutation.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.version
}

// Dirty reports whether there are unflushed changes.
func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.dirtyDomains) > 0 || len(s.dirtyDays) > 0 || s.dirtyMeta
}

// Flush writes changed entries to the Persister. On failure the entries
// stay dirty and are retried by the next Flush.
func (s *Store) Flush(ctx context.Context) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return ErrNotLoaded
	}

	batch := Batch{
		Domains: make([]DomainAggregate, 0, len(s.dirtyDomains)),
		Days:    make([]DailyStats, 0, len(s.dirtyDays)),
	}
	for k := range s.dirtyDomains {
		batch.Domains = append(batch.Domains, *s.domains[k])
	}
	for k := range s.dirtyDays {
		batch.Days = append(batch.Days, cloneDay(*s.days[k]))
	}
	if s.dirtyMeta {
		m := s.meta
		batch.Meta = &m
	}

	dirtyDomains, dirtyDays, dirtyMeta := s.dirtyDomains, s.dirtyDays, s.dirtyMeta
	s.dirtyDomains = make(map[string]struct{})
	s.dirtyDays = make(map[string]struct{})
	s.dirtyMeta = false
	s.mu.Unlock()

	if batch.Empty() {
		return nil
	}

	if err := s.persist.Save(ctx, batch); err != nil {
		s.mu.Lock()
		for k := range dirtyDomains {
			if _, ok := s.domains[k]; ok {
				s.dirtyDomains[k] = struct{}{}
			}
		}
		for k := range dirtyDays {
			if _, ok := s.days[k]; ok {
				s.dirtyDays[k] = struct{}{}
			}
		}
		s.dirtyMeta = s.dirtyMeta || dirtyMeta
		s.mu.Unlock()

		return fmt.Errorf("failed to flush aggregates: %w", err)
	}

	s.log.Debug("aggregates flushed",
		"domains", len(batch.Domains),
		"days", len(batch.Days),
		"meta", batch.Meta != nil)

	return nil
}

// Reset clears every domain and day in memory and in the Persister. The
// lock is held across the persisted clear, so readers see either the old
// state or the empty one. When the persisted clear fails nothing changes.
func (s *Store) Reset(ctx context.Context) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return ErrNotLoaded
	}

	if err := s.persist.Clear(ctx); err != nil {
		return fmt.Errorf("failed to reset aggregates: %w", err)
	}

	s.domains = make(map[string]*DomainAggregate)
	s.days = make(map[string]*DailyStats)
	s.dirtyDomains = make(map[string]struct{})
	s.dirtyDays = make(map[string]struct{})
	s.version++

	s.log.Info("aggregates reset")

	return nil
}

func cloneDay(d DailyStats) DailyStats {
	cats := make(map[category.Category]time.Duration, len(d.Categories))
	for k, v := range d.Categories {
		cats[k] = v
	}
	d.Categories = cats
	return d
}
