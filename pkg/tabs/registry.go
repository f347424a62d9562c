// Package tabs keeps a picture of the browser's tabs and windows built
// from spool events, and answers session.TabProvider queries from it.
//
// Tabs that receive no event for the configured TTL expire, so tabs whose
// removal event was lost do not accumulate.
//
// Example usage:
//
//	reg := tabs.NewRegistry(tabs.Config{}, log)
//	for _, ev := range events {
//	    reg.Observe(ev)
//	}
//	tab, err := reg.ActiveTab(ctx, session.CurrentWindow)
package tabs

import (
	"context"
	"strconv"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/0xmhha/tab-monitor/pkg/logger"
	"github.com/0xmhha/tab-monitor/pkg/parser"
	"github.com/0xmhha/tab-monitor/pkg/session"
)

// Defaults for Config.
const (
	DefaultTTL             = 24 * time.Hour
	DefaultCleanupInterval = time.Hour
)

// Config configures a Registry.
type Config struct {
	// TTL is how long a tab is kept without events. Default: DefaultTTL.
	TTL time.Duration

	// CleanupInterval is how often expired tabs are purged.
	// Default: DefaultCleanupInterval.
	CleanupInterval time.Duration
}

// Registry tracks tabs, the active tab of each window and the focused
// window.
//
// Thread-safety: all methods are safe for concurrent use.
type Registry struct {
	tabs *gocache.Cache
	log  logger.Logger

	mu sync.RWMutex
	// active maps window id to its active tab id.
	active map[int]int
	// focused is the focused window, session.NoWindow when blurred.
	focused int
	// lastFocused is the most recently focused window, kept across blur.
	lastFocused int
}

// NewRegistry creates an empty Registry.
func NewRegistry(cfg Config, log logger.Logger) *Registry {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}

	r := &Registry{
		tabs:        gocache.New(cfg.TTL, cfg.CleanupInterval),
		log:         logger.ForComponent(log, "tabs"),
		active:      make(map[int]int),
		focused:     session.NoWindow,
		lastFocused: session.NoWindow,
	}

	r.tabs.OnEvicted(func(key string, v interface{}) {
		tab, ok := v.(session.Tab)
		if !ok {
			return
		}
		r.mu.Lock()
		if r.active[tab.WindowID] == tab.ID {
			delete(r.active, tab.WindowID)
		}
		r.mu.Unlock()
	})

	return r
}

// Observe applies one browser event.
func (r *Registry) Observe(ev parser.Event) {
	switch ev.Type {
	case parser.TabCreated, parser.TabUpdated:
		tab := r.upsert(ev)
		if ev.Active {
			r.activate(tab.WindowID, tab.ID)
		}

	case parser.TabActivated:
		tab := r.upsert(ev)
		r.activate(tab.WindowID, tab.ID)
		// Activation does not move focus, except before any focus event.
		r.mu.Lock()
		if r.lastFocused == session.NoWindow {
			r.focused = tab.WindowID
			r.lastFocused = tab.WindowID
		}
		r.mu.Unlock()

	case parser.TabRemoved:
		r.remove(ev.TabID)

	case parser.WindowFocusChanged:
		r.mu.Lock()
		r.focused = ev.WindowID
		if ev.WindowID != session.NoWindow {
			r.lastFocused = ev.WindowID
		}
		r.mu.Unlock()
	}
}

// Tab implements session.TabProvider.
func (r *Registry) Tab(ctx context.Context, tabID int) (session.Tab, error) {
	if err := ctx.Err(); err != nil {
		return session.Tab{}, err
	}

	tab, ok := r.get(tabID)
	if !ok {
		return session.Tab{}, session.ErrTabNotFound
	}

	r.mu.RLock()
	tab.Active = r.active[tab.WindowID] == tab.ID
	r.mu.RUnlock()

	return tab, nil
}

// ActiveTab implements session.TabProvider.
func (r *Registry) ActiveTab(ctx context.Context, windowID int) (session.Tab, error) {
	if err := ctx.Err(); err != nil {
		return session.Tab{}, err
	}

	r.mu.RLock()
	if windowID == session.CurrentWindow {
		windowID = r.lastFocused
	}
	id, ok := r.active[windowID]
	r.mu.RUnlock()

	if !ok {
		return session.Tab{}, session.ErrNoActiveTab
	}

	tab, found := r.get(id)
	if !found {
		return session.Tab{}, session.ErrNoActiveTab
	}
	tab.Active = true

	return tab, nil
}

// FocusedWindow returns the focused window, session.NoWindow when every
// window is blurred.
func (r *Registry) FocusedWindow() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.focused
}

// Len returns the number of known tabs.
func (r *Registry) Len() int {
	return r.tabs.ItemCount()
}

func (r *Registry) get(id int) (session.Tab, bool) {
	v, ok := r.tabs.Get(key(id))
	if !ok {
		return session.Tab{}, false
	}
	tab, ok := v.(session.Tab)
	return tab, ok
}

// upsert merges the event into the stored tab. Empty fields in the event
// keep the stored values.
func (r *Registry) upsert(ev parser.Event) session.Tab {
	tab, ok := r.get(ev.TabID)
	if !ok {
		tab = session.Tab{ID: ev.TabID, WindowID: ev.WindowID}
	}

	if ev.WindowID > 0 && ev.WindowID != tab.WindowID {
		r.mu.Lock()
		if r.active[tab.WindowID] == tab.ID {
			delete(r.active, tab.WindowID)
		}
		r.mu.Unlock()
		tab.WindowID = ev.WindowID
	}
	if ev.URL != "" {
		tab.URL = ev.URL
	}
	if ev.Title != "" {
		tab.Title = ev.Title
	}
	tab.Active = false

	r.tabs.SetDefault(key(tab.ID), tab)
	return tab
}

func (r *Registry) activate(windowID, tabID int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.active[windowID] = tabID
}

func (r *Registry) remove(id int) {
	tab, ok := r.get(id)
	if !ok {
		r.log.Debug("removal of unknown tab", "tab_id", id)
		return
	}

	// Delete fires OnEvicted, which clears the window's active entry.
	r.tabs.Delete(key(id))
	r.log.Debug("tab removed", "tab_id", id, "window_id", tab.WindowID)
}

func key(id int) string {
	return strconv.Itoa(id)
}
