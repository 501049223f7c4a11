// Package ports define the EventBus interface for event-driven communication.
// The engine, playlist and progress tracker publish here; presentation layers subscribe.
package ports

import (
	"github.com/tejashwikalptaru/cyder/internal/domain"
)

// EventBus is the interface for publishing and subscribing to events.
//
// Publishers never learn who is listening. The player service subscribes to
// domain.EventTrackCompleted to drive auto-advance, and the CLI subscribes to progress events.
//
// Thread-safety: Implementations must be thread-safe. The decode goroutine, the progress
// ticker and transcode goroutines all publish concurrently.
//
// Example usage:
//
//	subID := bus.Subscribe(domain.EventTrackProgress, func(event domain.Event) {
//	    e := event.(domain.TrackProgressEvent)
//	    fmt.Println(e.Update.SecondsElapsed)
//	})
//	defer bus.Unsubscribe(subID)
type EventBus interface {
	// Publish delivers an event to all subscribers of its type.
	// Handlers run on the publishing goroutine for synchronous implementations,
	// so they must return quickly and must not wait on the publisher.
	Publish(event domain.Event)

	// Subscribe registers a handler for events of the specified type.
	//
	// Returns a SubscriptionID that can be used to unsubscribe later.
	Subscribe(eventType domain.EventType, handler domain.EventHandler) domain.SubscriptionID

	// Unsubscribe removes a previously registered event handler.
	// Unknown IDs are a no-op.
	Unsubscribe(id domain.SubscriptionID)

	// SubscribeAll registers a handler that receives all events regardless of type.
	SubscribeAll(handler domain.EventHandler) domain.SubscriptionID

	// HasSubscribers returns true if there are any active subscriptions for the given event type.
	HasSubscribers(eventType domain.EventType) bool

	// Close shuts down the event bus.
	// After calling Close, Publish is a no-op and Subscribe panics.
	Close() error
}
