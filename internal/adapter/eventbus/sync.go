// Package eventbus provides implementations of the EventBus interface.
// This package contains the synchronous event bus implementation.
package eventbus

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/tejashwikalptaru/cyder/internal/domain"
	"github.com/tejashwikalptaru/cyder/internal/ports"
)

// ErrBusClosed is returned by Close when the bus was already closed.
var ErrBusClosed = errors.New("event bus already closed")

// SyncEventBus delivers events on the publishing goroutine.
// Handlers for a type run in subscription order, followed by wildcard handlers.
//
// Thread-safety: Publish, Subscribe and Unsubscribe may be called concurrently,
// including from inside a handler. A handler that unsubscribes itself still
// receives the event currently being delivered.
type SyncEventBus struct {
	logger *slog.Logger

	mu       sync.RWMutex
	byType   map[domain.EventType][]subscription
	wildcard []subscription
	nextID   uint64
	closed   bool
}

type subscription struct {
	id      domain.SubscriptionID
	handler domain.EventHandler
}

// NewSyncEventBus creates a new synchronous event bus.
// A nil logger discards bus diagnostics.
func NewSyncEventBus(logger *slog.Logger) *SyncEventBus {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &SyncEventBus{
		logger: logger,
		byType: make(map[domain.EventType][]subscription),
	}
}

// Publish delivers event to its type subscribers and then to wildcard subscribers.
// Publishing on a closed bus or publishing nil does nothing.
// A panicking handler is logged and does not stop delivery to the rest.
func (bus *SyncEventBus) Publish(event domain.Event) {
	if event == nil {
		return
	}

	bus.mu.RLock()
	if bus.closed {
		bus.mu.RUnlock()
		return
	}
	targets := slices.Concat(bus.byType[event.Type()], bus.wildcard)
	bus.mu.RUnlock()

	for _, sub := range targets {
		bus.deliver(sub, event)
	}
}

func (bus *SyncEventBus) deliver(sub subscription, event domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			bus.logger.Error("event handler panicked",
				slog.Any("panic", r),
				slog.String("event_type", string(event.Type())),
				slog.String("subscription", string(sub.id)))
		}
	}()

	sub.handler(event)
}

// Subscribe registers a handler for events of the specified type.
// It panics on a nil handler or a closed bus, both of which are programming errors.
func (bus *SyncEventBus) Subscribe(eventType domain.EventType, handler domain.EventHandler) domain.SubscriptionID {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	sub := bus.newSubscriptionLocked("sub", handler)
	bus.byType[eventType] = append(bus.byType[eventType], sub)

	bus.logger.Debug("subscribed",
		slog.String("event_type", string(eventType)),
		slog.String("subscription", string(sub.id)))

	return sub.id
}

// SubscribeAll registers a handler that receives every event.
func (bus *SyncEventBus) SubscribeAll(handler domain.EventHandler) domain.SubscriptionID {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	sub := bus.newSubscriptionLocked("sub-all", handler)
	bus.wildcard = append(bus.wildcard, sub)

	return sub.id
}

func (bus *SyncEventBus) newSubscriptionLocked(prefix string, handler domain.EventHandler) subscription {
	if handler == nil {
		panic("event handler cannot be nil")
	}
	if bus.closed {
		panic("cannot subscribe to closed event bus")
	}

	bus.nextID++
	return subscription{
		id:      domain.SubscriptionID(fmt.Sprintf("%s-%d", prefix, bus.nextID)),
		handler: handler,
	}
}

// Unsubscribe removes a subscription. Unknown IDs are ignored.
// The relative order of the remaining handlers is preserved.
func (bus *SyncEventBus) Unsubscribe(id domain.SubscriptionID) {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	match := func(s subscription) bool { return s.id == id }

	for eventType, subs := range bus.byType {
		if i := slices.IndexFunc(subs, match); i >= 0 {
			// Copy so that a Publish holding the old slice keeps its snapshot.
			bus.byType[eventType] = slices.Delete(slices.Clone(subs), i, i+1)
			return
		}
	}

	if i := slices.IndexFunc(bus.wildcard, match); i >= 0 {
		bus.wildcard = slices.Delete(slices.Clone(bus.wildcard), i, i+1)
	}
}

// HasSubscribers returns true if an event of this type would reach any handler.
func (bus *SyncEventBus) HasSubscribers(eventType domain.EventType) bool {
	bus.mu.RLock()
	defer bus.mu.RUnlock()

	return len(bus.byType[eventType]) > 0 || len(bus.wildcard) > 0
}

// SubscriberCount returns the number of active subscriptions.
func (bus *SyncEventBus) SubscriberCount() int {
	bus.mu.RLock()
	defer bus.mu.RUnlock()

	count := len(bus.wildcard)
	for _, subs := range bus.byType {
		count += len(subs)
	}
	return count
}

// Close drops every subscription. Closing twice returns ErrBusClosed.
func (bus *SyncEventBus) Close() error {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	if bus.closed {
		return ErrBusClosed
	}

	bus.closed = true
	bus.byType = make(map[domain.EventType][]subscription)
	bus.wildcard = nil

	return nil
}

// Verify that SyncEventBus implements the EventBus interface
var _ ports.EventBus = (*SyncEventBus)(nil)
