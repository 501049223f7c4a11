package eventbus

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/tejashwikalptaru/cyder/internal/domain"
)

func testTrack(path string) domain.Track {
	return domain.Track{Path: path, Format: domain.FormatMP3}
}

// TestNewSyncEventBus tests event bus creation.
func TestNewSyncEventBus(t *testing.T) {
	bus := NewSyncEventBus(nil)

	if bus.SubscriberCount() != 0 {
		t.Errorf("Expected 0 subscribers, got %d", bus.SubscriberCount())
	}

	if bus.closed {
		t.Error("New event bus should not be closed")
	}
}

// TestPublishSubscribe tests basic publish/subscribe functionality.
func TestPublishSubscribe(t *testing.T) {
	bus := NewSyncEventBus(nil)
	defer bus.Close()

	var received []domain.Event
	subID := bus.Subscribe(domain.EventTrackCompleted, func(event domain.Event) {
		received = append(received, event)
	})
	if subID == "" {
		t.Fatal("Subscribe returned empty subscription ID")
	}

	bus.Publish(domain.NewTrackCompletedEvent("s1", testTrack("/music/a.mp3")))
	bus.Publish(domain.NewTrackStoppedEvent("s1", testTrack("/music/a.mp3")))

	if len(received) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(received))
	}

	completed, ok := received[0].(domain.TrackCompletedEvent)
	if !ok {
		t.Fatalf("Expected TrackCompletedEvent, got %T", received[0])
	}
	if completed.Track.Path != "/music/a.mp3" || completed.SessionID != "s1" {
		t.Errorf("Unexpected event payload: %+v", completed)
	}
}

// TestDeliveryOrder tests that handlers run in subscription order, wildcards last.
func TestDeliveryOrder(t *testing.T) {
	bus := NewSyncEventBus(nil)
	defer bus.Close()

	var order []string
	bus.SubscribeAll(func(domain.Event) { order = append(order, "all") })
	bus.Subscribe(domain.EventRepeatToggled, func(domain.Event) { order = append(order, "first") })
	second := bus.Subscribe(domain.EventRepeatToggled, func(domain.Event) { order = append(order, "second") })
	bus.Subscribe(domain.EventRepeatToggled, func(domain.Event) { order = append(order, "third") })

	bus.Unsubscribe(second)
	bus.Publish(domain.NewRepeatToggledEvent(true))

	want := []string{"first", "third", "all"}
	if len(order) != len(want) {
		t.Fatalf("Expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("Expected %v, got %v", want, order)
		}
	}
}

// TestUnsubscribe tests unsubscribing handlers.
func TestUnsubscribe(t *testing.T) {
	bus := NewSyncEventBus(nil)
	defer bus.Close()

	var calls int32
	id := bus.Subscribe(domain.EventShuffleToggled, func(domain.Event) {
		atomic.AddInt32(&calls, 1)
	})

	bus.Publish(domain.NewShuffleToggledEvent(true))
	bus.Unsubscribe(id)
	bus.Publish(domain.NewShuffleToggledEvent(false))

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("Expected 1 call, got %d", got)
	}

	// Unknown IDs are ignored
	bus.Unsubscribe("sub-999")
	bus.Unsubscribe(id)
}

// TestUnsubscribeDuringPublish tests that a handler can remove itself.
func TestUnsubscribeDuringPublish(t *testing.T) {
	bus := NewSyncEventBus(nil)
	defer bus.Close()

	var calls int
	var id domain.SubscriptionID
	id = bus.Subscribe(domain.EventTrackCompleted, func(domain.Event) {
		calls++
		bus.Unsubscribe(id)
	})

	bus.Publish(domain.NewTrackCompletedEvent("s", testTrack("/a.mp3")))
	bus.Publish(domain.NewTrackCompletedEvent("s", testTrack("/a.mp3")))

	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

// TestHasSubscribers tests subscription lookups including wildcards.
func TestHasSubscribers(t *testing.T) {
	bus := NewSyncEventBus(nil)
	defer bus.Close()

	if bus.HasSubscribers(domain.EventTrackProgress) {
		t.Error("Expected no subscribers")
	}

	id := bus.Subscribe(domain.EventTrackProgress, func(domain.Event) {})
	if !bus.HasSubscribers(domain.EventTrackProgress) {
		t.Error("Expected subscribers")
	}
	bus.Unsubscribe(id)

	bus.SubscribeAll(func(domain.Event) {})
	if !bus.HasSubscribers(domain.EventToolMissing) {
		t.Error("Wildcard subscriber should count for every type")
	}
}

// TestHandlerPanic tests that panicking handlers don't crash the bus.
func TestHandlerPanic(t *testing.T) {
	bus := NewSyncEventBus(nil)
	defer bus.Close()

	var calls int32
	bus.Subscribe(domain.EventTrackError, func(domain.Event) { panic("boom") })
	bus.Subscribe(domain.EventTrackError, func(domain.Event) { atomic.AddInt32(&calls, 1) })

	bus.Publish(domain.NewTrackErrorEvent(testTrack("/a.mp3"), errors.New("bad")))

	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("Expected normal handler to be called despite panic, got %d calls", calls)
	}
}

// TestClose tests closing the event bus.
func TestClose(t *testing.T) {
	bus := NewSyncEventBus(nil)

	bus.Subscribe(domain.EventTrackStarted, func(domain.Event) {})
	bus.SubscribeAll(func(domain.Event) {})

	if err := bus.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if bus.SubscriberCount() != 0 {
		t.Errorf("Expected 0 subscribers after close, got %d", bus.SubscriberCount())
	}

	// Publishing after close is a no-op
	bus.Publish(domain.NewPlayerClosedEvent())

	if err := bus.Close(); !errors.Is(err, ErrBusClosed) {
		t.Errorf("Expected ErrBusClosed, got %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Error("Subscribe on a closed bus should panic")
		}
	}()
	bus.Subscribe(domain.EventTrackStarted, func(domain.Event) {})
}

// TestNilEventAndHandler tests the nil guards.
func TestNilEventAndHandler(t *testing.T) {
	bus := NewSyncEventBus(nil)
	defer bus.Close()

	bus.Publish(nil)

	defer func() {
		if recover() == nil {
			t.Error("Subscribe with nil handler should panic")
		}
	}()
	bus.Subscribe(domain.EventTrackStarted, nil)
}

// TestConcurrentPublishAndSubscribe exercises the bus under the race detector.
func TestConcurrentPublishAndSubscribe(t *testing.T) {
	bus := NewSyncEventBus(nil)
	defer bus.Close()

	var received int64
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			id := bus.Subscribe(domain.EventTrackProgress, func(domain.Event) {
				atomic.AddInt64(&received, 1)
			})
			bus.Unsubscribe(id)
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				bus.Publish(domain.NewTrackProgressEvent(domain.ProgressUpdate{SecondsElapsed: j}))
			}
		}()
	}

	wg.Wait()

	if bus.SubscriberCount() != 0 {
		t.Errorf("Expected all subscriptions removed, got %d", bus.SubscriberCount())
	}
}
