// Package ports define interfaces for dependency inversion.
// These interfaces keep the playback core independent of the audio library and the OS.
package ports

import (
	"time"
)

// Decoder opens audio files for playback.
// This abstracts the underlying audio library (beep) and allows for testing with mocks.
//
// Implementations must be thread-safe; the engine opens a new stream for every play,
// resume and restart.
type Decoder interface {
	// Open prepares a stream for the file at path, positioned at the start.
	//
	// Returns an error wrapping fs.ErrNotExist when the file is missing, or
	// domain.ErrUnsupportedFormat when the file cannot be decoded at all.
	Open(path string) (DecodedStream, error)
}

// DecodedStream is one decoder bound to one open file.
// A stream is single-use: once Play returns it must be closed and discarded.
type DecodedStream interface {
	// Seek moves the read position. Offsets past the end clamp to the end.
	Seek(offset time.Duration) error

	// Play writes the stream to the output device and blocks until the stream
	// reaches its end (nil), Close is called (domain.ErrStreamClosed), or decoding fails.
	Play() error

	// Position returns how far into the file the decoder has read.
	Position() time.Duration

	// Length returns the total length of the file, or zero if unknown.
	Length() time.Duration

	// Close stops output and releases the file. Safe to call more than once
	// and from a goroutine other than the one blocked in Play.
	Close() error
}
