// Package parser reads browser events from JSONL spool files written by
// the browser extension.
//
// Each line is one JSON object:
//
//	{"type":"tab_activated","tab_id":42,"window_id":1,
//	 "url":"https://github.com/","title":"GitHub",
//	 "timestamp":"2024-03-10T09:00:00Z"}
//
// Malformed lines are logged and skipped rather than failing the file.
// A trailing line without a newline is not consumed, so a line the
// extension is still writing is read whole on the next call.
//
// Example usage:
//
//	p := parser.New(log)
//	events, offset, err := p.ParseFile("/path/to/events.jsonl", 0)
//	if err != nil {
//	    return err
//	}
//	for _, ev := range events {
//	    fmt.Println(ev.Type, ev.TabID)
//	}
package parser

import (
	"time"
)

// EventType is the kind of browser event.
type EventType string

// Known event types.
const (
	TabActivated       EventType = "tab_activated"
	TabUpdated         EventType = "tab_updated"
	TabRemoved         EventType = "tab_removed"
	TabCreated         EventType = "tab_created"
	WindowFocusChanged EventType = "window_focus_changed"
)

// StatusComplete is the tab_updated status of a finished page load.
const StatusComplete = "complete"

// NoWindow is the window_focus_changed window id meaning every browser
// window lost focus.
const NoWindow = -1

// Event is one line of a spool file.
//
// Invariant: Type is a known EventType.
// Invariant: Timestamp must not be zero value.
// Invariant: tab events carry a positive TabID.
type Event struct {
	Type      EventType `json:"type"`
	TabID     int       `json:"tab_id"`
	WindowID  int       `json:"window_id"`
	URL       string    `json:"url,omitempty"`
	Title     string    `json:"title,omitempty"`
	Status    string    `json:"status,omitempty"`
	Active    bool      `json:"active,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	// Profile is the browser profile of the spool file the event was
	// read from. It is not part of the spool line.
	Profile string `json:"-"`
}

// IsTabEvent reports whether the event concerns a single tab.
func (e *Event) IsTabEvent() bool {
	switch e.Type {
	case TabActivated, TabUpdated, TabRemoved, TabCreated:
		return true
	}
	return false
}

// Complete reports whether a tab_updated event marks a finished load.
func (e *Event) Complete() bool {
	return e.Type == TabUpdated && e.Status == StatusComplete
}

// Blur reports whether the event means every window lost focus.
func (e *Event) Blur() bool {
	return e.Type == WindowFocusChanged && e.WindowID == NoWindow
}

// Validate checks if the event satisfies all invariants.
//
// Returns an error if:
//   - Type is unknown
//   - Timestamp is zero value
//   - a tab event has no positive TabID
//   - a window event has a window id below NoWindow
func (e *Event) Validate() error {
	switch e.Type {
	case TabActivated, TabUpdated, TabRemoved, TabCreated, WindowFocusChanged:
	default:
		return ErrUnknownEventType
	}

	if e.Timestamp.IsZero() {
		return ErrInvalidTimestamp
	}

	if e.IsTabEvent() && e.TabID <= 0 {
		return ErrInvalidTabID
	}

	if e.Type == WindowFocusChanged && e.WindowID < NoWindow {
		return ErrInvalidWindowID
	}

	return nil
}
