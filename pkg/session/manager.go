package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/0xmhha/tab-monitor/pkg/category"
	"github.com/0xmhha/tab-monitor/pkg/logger"
	"github.com/0xmhha/tab-monitor/pkg/notify"
)

const defaultQueryTimeout = 2 * time.Second

// internalSchemes are URL prefixes of browser-internal pages.
var internalSchemes = []string{
	"chrome:",
	"chrome-extension:",
	"chrome-search:",
	"chrome-untrusted:",
	"edge:",
	"brave:",
	"opera:",
	"vivaldi:",
	"about:",
	"moz-extension:",
	"resource:",
	"devtools:",
	"view-source:",
}

// IsTrackable reports whether a tab URL can start a session.
// Empty URLs, blank pages and browser-internal pages cannot.
func IsTrackable(rawURL string) bool {
	u := strings.ToLower(strings.TrimSpace(rawURL))
	if u == "" {
		return false
	}

	for _, prefix := range internalSchemes {
		if strings.HasPrefix(u, prefix) {
			return false
		}
	}

	return true
}

// Manager owns the current session.
type Manager struct {
	cfg   Config
	tabs  TabProvider
	clock Clock
	cat   Categorizer
	sink  RecordSink
	pub   Publisher
	log   logger.Logger

	current *Session
	paused  bool
}

// NewManager creates a Manager in the Idle state.
func NewManager(cfg Config, deps Deps, log logger.Logger) *Manager {
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = defaultQueryTimeout
	}
	if cfg.MinDuration < 0 {
		cfg.MinDuration = 0
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock()
	}
	if deps.Publisher == nil {
		deps.Publisher = nopPublisher{}
	}

	return &Manager{
		cfg:   cfg,
		tabs:  deps.Tabs,
		clock: deps.Clock,
		cat:   deps.Categorizer,
		sink:  deps.Sink,
		pub:   deps.Publisher,
		log:   logger.ForComponent(log, "session"),
	}
}

// TabActivated handles a tab becoming the focused tab of its window.
func (m *Manager) TabActivated(ctx context.Context, tabID int) {
	if m.paused {
		return
	}

	tab, err := m.queryTab(ctx, tabID)
	if err != nil {
		m.log.Warn("tab query failed, event ignored",
			"event", "tab_activated",
			"tab_id", tabID,
			"error", err)
		return
	}

	if m.paused {
		return
	}
	m.switchTo(tab)
}

// TabUpdated handles a tab that finished loading. Only the active tab of
// its window can change the current session.
//
// When the current session's tab has vanished the session is ended.
func (m *Manager) TabUpdated(ctx context.Context, tabID int) {
	if m.paused {
		return
	}

	tab, err := m.queryTab(ctx, tabID)
	if err != nil {
		if errors.Is(err, ErrTabNotFound) && m.isCurrentTab(tabID) {
			m.log.Info("current tab vanished during update, ending session",
				"tab_id", tabID)
			m.EndCurrent()
			return
		}
		m.log.Warn("tab query failed, event ignored",
			"event", "tab_updated",
			"tab_id", tabID,
			"error", err)
		return
	}

	if m.paused || !tab.Active {
		return
	}
	m.switchTo(tab)
}

// TabClosed ends the current session when its tab is closed.
func (m *Manager) TabClosed(tabID int) {
	if !m.isCurrentTab(tabID) {
		return
	}
	m.EndCurrent()
}

// WindowBlurred marks the current session Unfocused. No record is made.
func (m *Manager) WindowBlurred() {
	if m.current == nil || m.current.Focus == Unfocused {
		return
	}

	m.current.Focus = Unfocused
	m.pub.Publish(notify.SessionUpdate, m.current.View(m.clock.Now()))
}

// WindowFocused handles a window gaining focus. NoWindow means all
// windows lost focus and is treated as WindowBlurred.
func (m *Manager) WindowFocused(ctx context.Context, windowID int) {
	if windowID == NoWindow {
		m.WindowBlurred()
		return
	}
	if m.paused {
		return
	}

	tab, err := m.queryActive(ctx, windowID)
	if err != nil {
		m.log.Warn("active tab query failed, event ignored",
			"event", "window_focus_changed",
			"window_id", windowID,
			"error", err)
		return
	}

	if m.paused {
		return
	}
	m.switchTo(tab)
}

// Pause ends the current session and ignores tab events until Resume.
func (m *Manager) Pause() {
	m.EndCurrent()
	if !m.paused {
		m.paused = true
		m.log.Info("tracking paused")
	}
}

// Resume leaves paused mode and starts a session on the active tab of the
// last focused window, if any.
func (m *Manager) Resume(ctx context.Context) {
	if m.paused {
		m.paused = false
		m.log.Info("tracking resumed")
	}

	tab, err := m.queryActive(ctx, CurrentWindow)
	if err != nil {
		m.log.Debug("no active tab on resume", "error", err)
		return
	}

	if m.paused {
		return
	}
	m.switchTo(tab)
}

// Paused reports whether tab events are being ignored.
func (m *Manager) Paused() bool {
	return m.paused
}

// EndCurrent finishes the current session, if any, and returns its
// record. kept is false when there was no session, the session was below
// the minimum duration, or the sink rejected it. The current session is
// always cleared.
func (m *Manager) EndCurrent() (rec Record, kept bool) {
	cur := m.current
	if cur == nil {
		return Record{}, false
	}
	m.current = nil

	end := m.clock.Now()
	spent := end.Sub(cur.StartTime)
	if spent < 0 {
		spent = 0
	}

	rec = Record{
		Session:   *cur,
		EndTime:   end,
		TimeSpent: spent,
	}

	if spent >= m.cfg.MinDuration {
		if err := m.sink.Fold(rec); err != nil {
			m.log.Error("failed to fold session record",
				"domain", rec.Domain,
				"time_spent", spent,
				"error", err)
		} else {
			kept = true
		}
	} else {
		m.log.Debug("session below minimum duration, discarded",
			"domain", rec.Domain,
			"time_spent", spent)
	}

	m.pub.Publish(notify.SessionEnd, EndView{
		View:        cur.View(end),
		EndTime:     end.UnixMilli(),
		TimeSpentMS: spent.Milliseconds(),
		Recorded:    kept,
	})

	return rec, kept
}

// Current returns a copy of the current session, or nil when Idle.
func (m *Manager) Current() *Session {
	if m.current == nil {
		return nil
	}
	s := *m.current
	return &s
}

// Elapsed returns how long the current session has been running.
func (m *Manager) Elapsed() time.Duration {
	if m.current == nil {
		return 0
	}
	if d := m.clock.Now().Sub(m.current.StartTime); d > 0 {
		return d
	}
	return 0
}

// Tick publishes a session_update with the live elapsed time. It does not
// change any state.
func (m *Manager) Tick() {
	if m.current == nil {
		return
	}
	m.pub.Publish(notify.SessionUpdate, m.current.View(m.clock.Now()))
}

// Rebase moves the start of the current session to now, so time before a
// data reset is not recorded.
func (m *Manager) Rebase() {
	if m.current == nil {
		return
	}
	m.current.StartTime = m.clock.Now()
}

// switchTo makes tab the current session.
func (m *Manager) switchTo(tab Tab) {
	if !IsTrackable(tab.URL) {
		m.log.Debug("tab not trackable, ignored", "tab_id", tab.ID, "url", tab.URL)
		return
	}

	if cur := m.current; cur != nil && cur.TabID == tab.ID && cur.URL == tab.URL {
		changed := cur.Focus != Focused || (tab.Title != "" && tab.Title != cur.Title)
		cur.Focus = Focused
		if tab.Title != "" {
			cur.Title = tab.Title
		}
		if changed {
			m.pub.Publish(notify.SessionUpdate, cur.View(m.clock.Now()))
		}
		return
	}

	m.EndCurrent()

	s := &Session{
		TabID:     tab.ID,
		WindowID:  tab.WindowID,
		URL:       tab.URL,
		Domain:    category.ExtractDomain(tab.URL),
		Title:     tab.Title,
		Category:  m.cat.Categorize(tab.URL, tab.Title),
		StartTime: m.clock.Now(),
		Focus:     Focused,
	}
	m.current = s

	m.log.Debug("session started",
		"tab_id", s.TabID,
		"domain", s.Domain,
		"category", s.Category)

	m.pub.Publish(notify.SessionStart, s.View(s.StartTime))
}

func (m *Manager) isCurrentTab(tabID int) bool {
	return m.current != nil && m.current.TabID == tabID
}

func (m *Manager) queryTab(ctx context.Context, tabID int) (Tab, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.QueryTimeout)
	defer cancel()

	return m.tabs.Tab(ctx, tabID)
}

func (m *Manager) queryActive(ctx context.Context, windowID int) (Tab, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.QueryTimeout)
	defer cancel()

	return m.tabs.ActiveTab(ctx, windowID)
}

type nopPublisher struct{}

func (nopPublisher) Publish(notify.EventType, any) {}
