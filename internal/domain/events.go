// Package domain defines events for the event-driven architecture.
// Events decouple the engine, playlist and progress tracker from whatever presents them.
package domain

import (
	"time"
)

// Event is the base interface for all events in the system.
// All events must implement this interface to be published via the event bus.
type Event interface {
	// Type returns the event type identifier
	Type() EventType

	// Timestamp returns when the event occurred
	Timestamp() time.Time
}

// EventType is a string identifier for different event types.
type EventType string

// Event type constants define all possible events in the system.
const (
	// Playback events
	EventTrackLoaded    EventType = "track.loaded"
	EventTrackStarted   EventType = "track.started"
	EventTrackPaused    EventType = "track.paused"
	EventTrackStopped   EventType = "track.stopped"
	EventTrackCompleted EventType = "track.completed"
	EventTrackRestarted EventType = "track.restarted"
	EventTrackProgress  EventType = "track.progress"
	EventTrackError     EventType = "track.error"

	// Playlist events
	EventRepeatToggled     EventType = "repeat.toggled"
	EventShuffleToggled    EventType = "shuffle.toggled"
	EventQueueChanged      EventType = "queue.changed"
	EventCandidatesChanged EventType = "candidates.changed"

	// Toolchain events
	EventToolInstalled EventType = "tool.installed"
	EventToolMissing   EventType = "tool.missing"

	// Transcode events
	EventTranscodeStarted   EventType = "transcode.started"
	EventTranscodeCompleted EventType = "transcode.completed"
	EventTranscodeFailed    EventType = "transcode.failed"

	// Player lifecycle events
	EventPlayerClosed EventType = "player.closed"
)

// EventHandler is a function that handles events.
type EventHandler func(event Event)

// SubscriptionID uniquely identifies an event subscription.
type SubscriptionID string

// baseEvent provides common event functionality.
// All concrete events should embed this struct.
type baseEvent struct {
	timestamp time.Time
}

// Timestamp returns when the event occurred.
func (e baseEvent) Timestamp() time.Time {
	return e.timestamp
}

// newBaseEvent creates a new base event with the current timestamp.
func newBaseEvent() baseEvent {
	return baseEvent{timestamp: time.Now()}
}

// TrackLoadedEvent is published when the player opens a track.
type TrackLoadedEvent struct {
	baseEvent
	Track    Track
	Duration time.Duration // Zero when the probe failed
}

// Type returns the event type.
func (e TrackLoadedEvent) Type() EventType {
	return EventTrackLoaded
}

// NewTrackLoadedEvent creates a new TrackLoadedEvent.
func NewTrackLoadedEvent(track Track, duration time.Duration) TrackLoadedEvent {
	return TrackLoadedEvent{
		baseEvent: newBaseEvent(),
		Track:     track,
		Duration:  duration,
	}
}

// TrackStartedEvent is published when a session enters PLAYING, including resumes.
type TrackStartedEvent struct {
	baseEvent
	SessionID string
	Track     Track
	Offset    time.Duration
	Resumed   bool
}

// Type returns the event type.
func (e TrackStartedEvent) Type() EventType {
	return EventTrackStarted
}

// NewTrackStartedEvent creates a new TrackStartedEvent.
func NewTrackStartedEvent(sessionID string, track Track, offset time.Duration, resumed bool) TrackStartedEvent {
	return TrackStartedEvent{
		baseEvent: newBaseEvent(),
		SessionID: sessionID,
		Track:     track,
		Offset:    offset,
		Resumed:   resumed,
	}
}

// TrackPausedEvent is published when playback is paused.
type TrackPausedEvent struct {
	baseEvent
	SessionID string
	Track     Track
	Position  time.Duration // Resume point after the reaction offset
}

// Type returns the event type.
func (e TrackPausedEvent) Type() EventType {
	return EventTrackPaused
}

// NewTrackPausedEvent creates a new TrackPausedEvent.
func NewTrackPausedEvent(sessionID string, track Track, position time.Duration) TrackPausedEvent {
	return TrackPausedEvent{
		baseEvent: newBaseEvent(),
		SessionID: sessionID,
		Track:     track,
		Position:  position,
	}
}

// TrackStoppedEvent is published when a session is stopped explicitly.
type TrackStoppedEvent struct {
	baseEvent
	SessionID string
	Track     Track
}

// Type returns the event type.
func (e TrackStoppedEvent) Type() EventType {
	return EventTrackStopped
}

// NewTrackStoppedEvent creates a new TrackStoppedEvent.
func NewTrackStoppedEvent(sessionID string, track Track) TrackStoppedEvent {
	return TrackStoppedEvent{
		baseEvent: newBaseEvent(),
		SessionID: sessionID,
		Track:     track,
	}
}

// TrackCompletedEvent is published only when the decoder reaches the natural end of a stream.
// It drives auto-advance; pause and stop never publish it.
type TrackCompletedEvent struct {
	baseEvent
	SessionID string
	Track     Track
}

// Type returns the event type.
func (e TrackCompletedEvent) Type() EventType {
	return EventTrackCompleted
}

// NewTrackCompletedEvent creates a new TrackCompletedEvent.
func NewTrackCompletedEvent(sessionID string, track Track) TrackCompletedEvent {
	return TrackCompletedEvent{
		baseEvent: newBaseEvent(),
		SessionID: sessionID,
		Track:     track,
	}
}

// TrackRestartedEvent is published when the engine restarts a track after a transient decode failure.
type TrackRestartedEvent struct {
	baseEvent
	SessionID string
	Track     Track
	Attempt   int
	Position  time.Duration
	Err       error
}

// Type returns the event type.
func (e TrackRestartedEvent) Type() EventType {
	return EventTrackRestarted
}

// NewTrackRestartedEvent creates a new TrackRestartedEvent.
func NewTrackRestartedEvent(sessionID string, track Track, attempt int, position time.Duration, err error) TrackRestartedEvent {
	return TrackRestartedEvent{
		baseEvent: newBaseEvent(),
		SessionID: sessionID,
		Track:     track,
		Attempt:   attempt,
		Position:  position,
		Err:       err,
	}
}

// TrackProgressEvent is published by the progress tracker.
type TrackProgressEvent struct {
	baseEvent
	Update ProgressUpdate
}

// Type returns the event type.
func (e TrackProgressEvent) Type() EventType {
	return EventTrackProgress
}

// NewTrackProgressEvent creates a new TrackProgressEvent.
func NewTrackProgressEvent(update ProgressUpdate) TrackProgressEvent {
	return TrackProgressEvent{
		baseEvent: newBaseEvent(),
		Update:    update,
	}
}

// TrackErrorEvent is published when a track cannot be played.
type TrackErrorEvent struct {
	baseEvent
	Track Track
	Error error
}

// Type returns the event type.
func (e TrackErrorEvent) Type() EventType {
	return EventTrackError
}

// NewTrackErrorEvent creates a new TrackErrorEvent.
func NewTrackErrorEvent(track Track, err error) TrackErrorEvent {
	return TrackErrorEvent{
		baseEvent: newBaseEvent(),
		Track:     track,
		Error:     err,
	}
}

// RepeatToggledEvent is published when repeat mode changes.
type RepeatToggledEvent struct {
	baseEvent
	Enabled bool
}

// Type returns the event type.
func (e RepeatToggledEvent) Type() EventType {
	return EventRepeatToggled
}

// NewRepeatToggledEvent creates a new RepeatToggledEvent.
func NewRepeatToggledEvent(enabled bool) RepeatToggledEvent {
	return RepeatToggledEvent{
		baseEvent: newBaseEvent(),
		Enabled:   enabled,
	}
}

// ShuffleToggledEvent is published when shuffle mode changes.
type ShuffleToggledEvent struct {
	baseEvent
	Enabled bool
}

// Type returns the event type.
func (e ShuffleToggledEvent) Type() EventType {
	return EventShuffleToggled
}

// NewShuffleToggledEvent creates a new ShuffleToggledEvent.
func NewShuffleToggledEvent(enabled bool) ShuffleToggledEvent {
	return ShuffleToggledEvent{
		baseEvent: newBaseEvent(),
		Enabled:   enabled,
	}
}

// QueueChangedEvent is published when the play-next queue changes.
type QueueChangedEvent struct {
	baseEvent
	Queue []Track
}

// Type returns the event type.
func (e QueueChangedEvent) Type() EventType {
	return EventQueueChanged
}

// NewQueueChangedEvent creates a new QueueChangedEvent.
func NewQueueChangedEvent(queue []Track) QueueChangedEvent {
	return QueueChangedEvent{
		baseEvent: newBaseEvent(),
		Queue:     queue,
	}
}

// CandidatesChangedEvent is published when the watched music directory changes.
type CandidatesChangedEvent struct {
	baseEvent
	Dir string
}

// Type returns the event type.
func (e CandidatesChangedEvent) Type() EventType {
	return EventCandidatesChanged
}

// NewCandidatesChangedEvent creates a new CandidatesChangedEvent.
func NewCandidatesChangedEvent(dir string) CandidatesChangedEvent {
	return CandidatesChangedEvent{
		baseEvent: newBaseEvent(),
		Dir:       dir,
	}
}

// ToolInstalledEvent is published after a binary was downloaded and extracted.
type ToolInstalledEvent struct {
	baseEvent
	Binary string
}

// Type returns the event type.
func (e ToolInstalledEvent) Type() EventType {
	return EventToolInstalled
}

// NewToolInstalledEvent creates a new ToolInstalledEvent.
func NewToolInstalledEvent(binary string) ToolInstalledEvent {
	return ToolInstalledEvent{
		baseEvent: newBaseEvent(),
		Binary:    binary,
	}
}

// ToolMissingEvent is published when a required binary could not be installed.
// Presentation layers lock playback controls until a later install succeeds.
type ToolMissingEvent struct {
	baseEvent
	Binaries []string
}

// Type returns the event type.
func (e ToolMissingEvent) Type() EventType {
	return EventToolMissing
}

// NewToolMissingEvent creates a new ToolMissingEvent.
func NewToolMissingEvent(binaries []string) ToolMissingEvent {
	return ToolMissingEvent{
		baseEvent: newBaseEvent(),
		Binaries:  binaries,
	}
}

// TranscodeStartedEvent is published when a transcode job starts its process.
type TranscodeStartedEvent struct {
	baseEvent
	Job TranscodeJob
}

// Type returns the event type.
func (e TranscodeStartedEvent) Type() EventType {
	return EventTranscodeStarted
}

// NewTranscodeStartedEvent creates a new TranscodeStartedEvent.
func NewTranscodeStartedEvent(job TranscodeJob) TranscodeStartedEvent {
	return TranscodeStartedEvent{
		baseEvent: newBaseEvent(),
		Job:       job,
	}
}

// TranscodeCompletedEvent is published when a job's output is fully written.
type TranscodeCompletedEvent struct {
	baseEvent
	Job TranscodeJob
}

// Type returns the event type.
func (e TranscodeCompletedEvent) Type() EventType {
	return EventTranscodeCompleted
}

// NewTranscodeCompletedEvent creates a new TranscodeCompletedEvent.
func NewTranscodeCompletedEvent(job TranscodeJob) TranscodeCompletedEvent {
	return TranscodeCompletedEvent{
		baseEvent: newBaseEvent(),
		Job:       job,
	}
}

// TranscodeFailedEvent is published when a job produced no usable output.
type TranscodeFailedEvent struct {
	baseEvent
	Job   TranscodeJob
	Error error
}

// Type returns the event type.
func (e TranscodeFailedEvent) Type() EventType {
	return EventTranscodeFailed
}

// NewTranscodeFailedEvent creates a new TranscodeFailedEvent.
func NewTranscodeFailedEvent(job TranscodeJob, err error) TranscodeFailedEvent {
	return TranscodeFailedEvent{
		baseEvent: newBaseEvent(),
		Job:       job,
		Error:     err,
	}
}

// PlayerClosedEvent is published once when a player is closed.
type PlayerClosedEvent struct {
	baseEvent
}

// Type returns the event type.
func (e PlayerClosedEvent) Type() EventType {
	return EventPlayerClosed
}

// NewPlayerClosedEvent creates a new PlayerClosedEvent.
func NewPlayerClosedEvent() PlayerClosedEvent {
	return PlayerClosedEvent{baseEvent: newBaseEvent()}
}
