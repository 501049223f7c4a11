// Package domain defines domain-specific errors.
// These errors represent playback, toolchain and transcode failures and are independent of infrastructure.
package domain

import (
	"errors"
	"fmt"
)

// Common errors that services can return.
var (
	// ErrIllegalState is the root of all precondition violations.
	// Match with errors.Is to detect programmer errors such as resuming an unpaused session.
	ErrIllegalState = errors.New("illegal state")

	// ErrPlaybackInProgress is returned when play is requested while another session is playing.
	ErrPlaybackInProgress = &IllegalStateError{Op: "play", Message: "previous audio not yet concluded"}

	// ErrNotPaused is returned when resume is requested for a session that is not paused.
	ErrNotPaused = &IllegalStateError{Op: "resume", Message: "session is not paused"}

	// ErrNoTrackLoaded is returned when an operation needs a loaded track and none is.
	ErrNoTrackLoaded = &IllegalStateError{Op: "player", Message: "no track loaded"}

	// ErrPlayerLocked is returned while required binaries are missing.
	ErrPlayerLocked = &IllegalStateError{Op: "player", Message: "player locked until required binaries are installed"}

	// ErrPlayerClosed is returned by a player that has been closed.
	ErrPlayerClosed = &IllegalStateError{Op: "player", Message: "player closed"}

	// ErrStreamClosed is returned by a decoded stream that was closed while playing.
	// The decode loop treats it as a normal exit.
	ErrStreamClosed = errors.New("stream closed")

	// ErrDecodeTransient marks decoder failures that are retried by restarting the track.
	ErrDecodeTransient = errors.New("transient decode failure")

	// ErrToolNotFound is returned when an external binary cannot be resolved.
	ErrToolNotFound = errors.New("tool not found")

	// ErrToolMissing is returned when a required binary is absent and installing it failed.
	ErrToolMissing = errors.New("could not download necessary binaries")

	// ErrTranscodeFailed is returned when a conversion produced no usable output.
	ErrTranscodeFailed = errors.New("transcode failed")

	// ErrJobDiscarded is the result of a transcode whose owner discarded it.
	ErrJobDiscarded = errors.New("transcode result discarded")

	// ErrUnsupportedFormat is returned when an audio file format is not supported.
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrFileNotFound is returned when a file does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrInvalidFilePath is returned when a file path is invalid.
	ErrInvalidFilePath = errors.New("invalid file path")

	// ErrInvalidPosition is returned when seeking to an invalid position.
	ErrInvalidPosition = errors.New("invalid playback position")

	// ErrInvalidIndex is returned when a queue index is out of bounds.
	ErrInvalidIndex = errors.New("invalid queue index")

	// ErrQueueEmpty is returned when queue operations are attempted on an empty queue.
	ErrQueueEmpty = errors.New("queue is empty")

	// ErrActionThrottled is returned when control actions arrive faster than the throttle allows.
	ErrActionThrottled = errors.New("action throttled")
)

// UnknownDuration is the sentinel returned by probes that could not determine a duration.
const UnknownDuration int64 = -1

// IllegalStateError is a precondition violation.
// It always matches ErrIllegalState via errors.Is.
type IllegalStateError struct {
	Op      string
	Message string
}

// Error implements the error interface.
func (e *IllegalStateError) Error() string {
	return fmt.Sprintf("illegal state in %s: %s", e.Op, e.Message)
}

// Is reports whether target is ErrIllegalState.
func (e *IllegalStateError) Is(target error) bool {
	return target == ErrIllegalState
}

// ToolNotFoundError is returned when a binary is neither on PATH nor in the local exes directory.
type ToolNotFoundError struct {
	Binary string
	Hint   string
}

// Error implements the error interface.
func (e *ToolNotFoundError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s not found: %s", e.Binary, e.Hint)
	}
	return fmt.Sprintf("%s not found", e.Binary)
}

// Unwrap returns ErrToolNotFound.
func (e *ToolNotFoundError) Unwrap() error {
	return ErrToolNotFound
}

// NewToolNotFoundError creates a new ToolNotFoundError.
func NewToolNotFoundError(binary, hint string) *ToolNotFoundError {
	return &ToolNotFoundError{Binary: binary, Hint: hint}
}

// TranscodeError represents a failed convert or dreamify request.
type TranscodeError struct {
	Op     string // Operation that failed (e.g., "convert", "dreamify", "fetch")
	Source string // Source file or URL
	Err    error  // Underlying error
}

// Error implements the error interface.
func (e *TranscodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s of '%s' failed: %v", e.Op, e.Source, e.Err)
	}
	return fmt.Sprintf("%s of '%s' failed", e.Op, e.Source)
}

// Unwrap returns the underlying error.
func (e *TranscodeError) Unwrap() error {
	return e.Err
}

// Is matches ErrTranscodeFailed.
func (e *TranscodeError) Is(target error) bool {
	return target == ErrTranscodeFailed
}

// NewTranscodeError creates a new TranscodeError.
func NewTranscodeError(op, source string, err error) *TranscodeError {
	return &TranscodeError{Op: op, Source: source, Err: err}
}

// DecodeError wraps a decoder failure with the track and restart attempt it happened on.
type DecodeError struct {
	Path    string
	Attempt int
	Err     error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode of '%s' failed on attempt %d: %v", e.Path, e.Attempt, e.Err)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// RepositoryError represents an error from a repository.
// This wraps persistence layer errors with additional context.
type RepositoryError struct {
	Op      string // Operation that failed (e.g., "save", "load", "delete")
	Type    string // Repository type (e.g., "history", "durations", "preferences")
	Message string // Error message
	Err     error  // Underlying error
}

// Error implements the error interface.
func (e *RepositoryError) Error() string {
	return fmt.Sprintf("repository %s.%s failed: %s", e.Type, e.Op, e.Message)
}

// Unwrap returns the underlying error.
func (e *RepositoryError) Unwrap() error {
	return e.Err
}

// NewRepositoryError creates a new RepositoryError.
func NewRepositoryError(op, repoType, message string, err error) *RepositoryError {
	return &RepositoryError{
		Op:      op,
		Type:    repoType,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string // Field that failed validation
	Value   any    // Value that failed validation
	Message string // Error message
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s (value: %v)", e.Field, e.Message, e.Value)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}
