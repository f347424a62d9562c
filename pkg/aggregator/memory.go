package aggregator

import (
	"context"
	"sync"
)

// MemoryPersister is a Persister that keeps everything in memory.
// It is used by tests and by `tab-monitor serve --ephemeral`.
type MemoryPersister struct {
	mu      sync.Mutex
	domains map[string]DomainAggregate
	days    map[string]DailyStats
	meta    *Meta
	saves   int
}

// NewMemoryPersister creates an empty MemoryPersister.
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{
		domains: make(map[string]DomainAggregate),
		days:    make(map[string]DailyStats),
	}
}

// Load implements Persister.Load.
func (p *MemoryPersister) Load(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	snap := &Snapshot{
		Domains: make(map[string]DomainAggregate, len(p.domains)),
		Days:    make(map[string]DailyStats, len(p.days)),
	}
	for k, d := range p.domains {
		snap.Domains[k] = d
	}
	for k, d := range p.days {
		snap.Days[k] = cloneDay(d)
	}
	if p.meta != nil {
		snap.Meta = *p.meta
		snap.HasMeta = true
	}

	return snap, nil
}

// Save implements Persister.Save.
func (p *MemoryPersister) Save(ctx context.Context, batch Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, d := range batch.Domains {
		p.domains[d.Domain] = d
	}
	for _, d := range batch.Days {
		p.days[d.Date] = cloneDay(d)
	}
	if batch.Meta != nil {
		m := *batch.Meta
		p.meta = &m
	}
	p.saves++

	return nil
}

// Clear implements Persister.Clear.
func (p *MemoryPersister) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.domains = make(map[string]DomainAggregate)
	p.days = make(map[string]DailyStats)

	return nil
}

// Saves returns how many batches were saved.
func (p *MemoryPersister) Saves() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.saves
}
