// Package notify fans engine events out to presentation listeners.
//
// Delivery is best effort. Every subscriber owns a bounded queue; a
// publish never blocks and never fails. When a subscriber's queue is full
// the message is dropped for that subscriber only. Messages reach a single
// subscriber in publish order.
//
// Example usage:
//
//	bridge := notify.NewBridge(notify.Config{}, log)
//	sub := bridge.Subscribe()
//	defer bridge.Unsubscribe(sub.ID)
//
//	bridge.Publish(notify.SessionStart, current)
//	msg := <-sub.C
package notify

import "time"

// EventType identifies a push notification.
type EventType string

// Push notification types.
const (
	SessionStart  EventType = "session_start"
	SessionUpdate EventType = "session_update"
	SessionEnd    EventType = "session_end"
	StatsUpdate   EventType = "stats_update"
)

// Message is one push notification.
type Message struct {
	EventType EventType `json:"event_type"`
	Data      any       `json:"data"`

	// Timestamp is the publish time in Unix milliseconds.
	Timestamp int64 `json:"timestamp"`
}

// Time returns the publish time.
func (m Message) Time() time.Time {
	return time.UnixMilli(m.Timestamp)
}

// Config configures a Bridge.
type Config struct {
	// BufferSize is the per-subscriber queue length. Zero means 64.
	BufferSize int

	// Now overrides the clock used for message timestamps.
	Now func() time.Time
}

// DefaultBufferSize is the per-subscriber queue length.
const DefaultBufferSize = 64
