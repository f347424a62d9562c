// Package session tracks the single current browsing session.
//
// A Manager reacts to tab and window events, ends the previous session
// when attention moves, and opens a new one for the newly focused tab.
// Finished sessions at or above the minimum duration are handed to a
// RecordSink as Records.
//
// States:
//
//	Idle  --tab activated-->  Active(Focused)
//	Active(Focused)  <--blur/focus-->  Active(Unfocused)
//	Active(*)  --switch/close/pause-->  Idle (then maybe Active again)
//
// The Manager is not safe for concurrent use. The tracker engine calls
// it from a single event loop goroutine.
//
// Example usage:
//
//	mgr := session.NewManager(session.Config{
//	    MinDuration:  time.Second,
//	    QueryTimeout: 2 * time.Second,
//	}, session.Deps{
//	    Tabs:        registry,
//	    Categorizer: category.Default(),
//	    Sink:        store,
//	    Publisher:   bridge,
//	}, log)
//
//	mgr.TabActivated(ctx, 42)
package session

import (
	"context"
	"time"

	"github.com/0xmhha/tab-monitor/pkg/category"
	"github.com/0xmhha/tab-monitor/pkg/notify"
)

// Window ids with special meaning for TabProvider.ActiveTab and
// Manager.WindowFocused.
const (
	// NoWindow means every browser window lost focus.
	NoWindow = -1

	// CurrentWindow selects the last focused window.
	CurrentWindow = -2
)

// Focus is the sub-state of an active session.
type Focus int

const (
	// Focused means the session's window has OS focus.
	Focused Focus = iota

	// Unfocused means the tab is still current but its window lost focus.
	// Time keeps accruing.
	Unfocused
)

// String implements fmt.Stringer.
func (f Focus) String() string {
	if f == Unfocused {
		return "unfocused"
	}
	return "focused"
}

// Session is one continuous period of attention on one tab.
type Session struct {
	TabID     int
	WindowID  int
	URL       string
	Domain    string
	Title     string
	Category  category.Category
	StartTime time.Time
	Focus     Focus
}

// Record is the immutable result of a finished Session.
type Record struct {
	Session

	EndTime time.Time

	// TimeSpent is EndTime - StartTime, never negative.
	TimeSpent time.Duration
}

// Tab is browser tab metadata returned by a TabProvider.
type Tab struct {
	ID       int
	WindowID int
	URL      string
	Title    string
	Active   bool
}

// TabProvider answers tab metadata queries.
//
// Implementations return ErrTabNotFound for unknown tabs and
// ErrNoActiveTab when a window has no active tab.
type TabProvider interface {
	// Tab returns the tab with the given id.
	Tab(ctx context.Context, tabID int) (Tab, error)

	// ActiveTab returns the active tab of a window. CurrentWindow selects
	// the last focused window.
	ActiveTab(ctx context.Context, windowID int) (Tab, error)
}

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time {
	return f()
}

// SystemClock returns the wall clock.
func SystemClock() Clock {
	return ClockFunc(time.Now)
}

// Categorizer labels a URL and title.
type Categorizer interface {
	Categorize(rawURL, title string) category.Category
}

// RecordSink receives finished sessions.
type RecordSink interface {
	Fold(rec Record) error
}

// Publisher receives push notifications.
type Publisher interface {
	Publish(eventType notify.EventType, data any)
}

// Config configures a Manager.
type Config struct {
	// MinDuration is the shortest session that is recorded.
	MinDuration time.Duration

	// QueryTimeout bounds each TabProvider call. Zero means 2s.
	QueryTimeout time.Duration
}

// Deps are the collaborators of a Manager. Tabs, Categorizer and Sink are
// required; Clock defaults to the wall clock and Publisher to a no-op.
type Deps struct {
	Tabs        TabProvider
	Clock       Clock
	Categorizer Categorizer
	Sink        RecordSink
	Publisher   Publisher
}

// View is the JSON form of a current session.
type View struct {
	TabID     int    `json:"tab_id"`
	URL       string `json:"url"`
	Domain    string `json:"domain"`
	Title     string `json:"title"`
	Category  string `json:"category"`
	StartTime int64  `json:"start_time"`
	IsActive  bool   `json:"is_active"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

// View returns the JSON form of s as seen at now.
func (s Session) View(now time.Time) View {
	elapsed := now.Sub(s.StartTime)
	if elapsed < 0 {
		elapsed = 0
	}

	return View{
		TabID:     s.TabID,
		URL:       s.URL,
		Domain:    s.Domain,
		Title:     s.Title,
		Category:  string(s.Category),
		StartTime: s.StartTime.UnixMilli(),
		IsActive:  s.Focus == Focused,
		ElapsedMS: elapsed.Milliseconds(),
	}
}

// EndView is the payload of a session_end notification.
type EndView struct {
	View

	EndTime     int64 `json:"end_time"`
	TimeSpentMS int64 `json:"time_spent_ms"`

	// Recorded is false when the session was below the minimum duration
	// or the sink rejected it.
	Recorded bool `json:"recorded"`
}
