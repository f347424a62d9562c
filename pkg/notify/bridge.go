package notify

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/0xmhha/tab-monitor/pkg/logger"
)

// Subscription is one registered listener.
type Subscription struct {
	// ID identifies the subscription for Unsubscribe.
	ID string

	// C delivers messages in publish order. It is closed on Unsubscribe
	// or when the bridge closes.
	C <-chan Message

	ch      chan Message
	dropped atomic.Uint64
}

// Dropped returns the number of messages dropped because C was full.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Bridge is a fire-and-forget publisher.
//
// Thread-safety: all methods are safe for concurrent use.
type Bridge struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription
	closed bool

	bufferSize int
	now        func() time.Time
	log        logger.Logger
}

// NewBridge creates a bridge.
func NewBridge(cfg Config, log logger.Logger) *Bridge {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Bridge{
		subs:       make(map[string]*Subscription),
		bufferSize: cfg.BufferSize,
		now:        cfg.Now,
		log:        logger.ForComponent(log, "notify"),
	}
}

// Publish sends a message to every subscriber without blocking.
func (b *Bridge) Publish(eventType EventType, data any) {
	msg := Message{
		EventType: eventType,
		Data:      data,
		Timestamp: b.now().UnixMilli(),
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for id, sub := range b.subs {
		select {
		case sub.ch <- msg:
		default:
			sub.dropped.Add(1)
			b.log.Warn("subscriber queue full, dropping message",
				"subscriber", id,
				"event_type", eventType)
		}
	}
}

// Subscribe registers a channel listener.
//
// After Close the returned subscription's channel is already closed.
func (b *Bridge) Subscribe() *Subscription {
	ch := make(chan Message, b.bufferSize)
	sub := &Subscription{
		ID: uuid.NewString(),
		C:  ch,
		ch: ch,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(ch)
		return sub
	}

	b.subs[sub.ID] = sub
	b.log.Debug("subscriber added", "subscriber", sub.ID, "total", len(b.subs))

	return sub
}

// SubscribeFunc registers a callback listener. fn runs on its own
// goroutine, one message at a time; a panicking fn is recovered and
// logged and keeps receiving later messages.
func (b *Bridge) SubscribeFunc(fn func(Message)) *Subscription {
	sub := b.Subscribe()

	go func() {
		for msg := range sub.C {
			b.deliver(sub.ID, fn, msg)
		}
	}()

	return sub
}

func (b *Bridge) deliver(id string, fn func(Message), msg Message) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("subscriber panicked",
				"subscriber", id,
				"event_type", msg.EventType,
				"error", fmt.Sprint(r))
		}
	}()

	fn(msg)
}

// Unsubscribe removes a listener and closes its channel.
// Unknown ids are ignored.
func (b *Bridge) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.subs[id]
	if !ok {
		return
	}

	delete(b.subs, id)
	close(sub.ch)

	b.log.Debug("subscriber removed", "subscriber", id, "total", len(b.subs))
}

// Len returns the number of subscribers.
func (b *Bridge) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.subs)
}

// Close removes every subscriber. Later publishes are discarded.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for id, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, id)
	}

	b.log.Debug("bridge closed")
}
