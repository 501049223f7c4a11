// Package mock provides a mock implementation of the Decoder interface.
// This is used for testing services without an audio device.
package mock

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tejashwikalptaru/cyder/internal/domain"
	"github.com/tejashwikalptaru/cyder/internal/ports"
)

// DefaultLength is the length of every file the mock opens unless told otherwise.
const DefaultLength = 3 * time.Minute

// Decoder is a mock implementation of the Decoder interface.
// Streams never advance on their own: tests move them with Advance and end them
// with Complete or Fail.
//
// Thread-safety: This implementation is thread-safe.
type Decoder struct {
	mu sync.Mutex

	lengths   map[string]time.Duration
	openErrs  map[string]error
	playErrs  []error
	opened    []string
	streams   []*Stream
	playing   chan *Stream
	openCount int
}

// NewDecoder creates a new mock decoder.
func NewDecoder() *Decoder {
	return &Decoder{
		lengths:  make(map[string]time.Duration),
		openErrs: make(map[string]error),
		playing:  make(chan *Stream, 256),
	}
}

// SetLength sets the length reported for path.
func (d *Decoder) SetLength(path string, length time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lengths[path] = length
}

// SetOpenError makes every Open of path fail with err. A nil err clears it.
func (d *Decoder) SetOpenError(path string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.openErrs, path)
		return
	}
	d.openErrs[path] = err
}

// FailNextPlays queues errors returned immediately by the next Play calls, in order.
func (d *Decoder) FailNextPlays(errs ...error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.playErrs = append(d.playErrs, errs...)
}

// Open returns a stream positioned at the start of path.
func (d *Decoder) Open(path string) (ports.DecodedStream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.openCount++
	if err, ok := d.openErrs[path]; ok {
		return nil, err
	}

	length, ok := d.lengths[path]
	if !ok {
		length = DefaultLength
	}

	stream := &Stream{
		decoder: d,
		path:    path,
		length:  length,
		done:    make(chan error, 1),
	}
	d.opened = append(d.opened, path)
	d.streams = append(d.streams, stream)
	return stream, nil
}

// Opened returns the paths opened so far, in order.
func (d *Decoder) Opened() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.opened...)
}

// OpenCount returns the number of Open calls, failed ones included.
func (d *Decoder) OpenCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.openCount
}

// Latest returns the most recently opened stream, or nil.
func (d *Decoder) Latest() *Stream {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.streams) == 0 {
		return nil
	}
	return d.streams[len(d.streams)-1]
}

// WaitPlaying returns the next stream that enters Play, or an error after timeout.
func (d *Decoder) WaitPlaying(timeout time.Duration) (*Stream, error) {
	select {
	case stream := <-d.playing:
		return stream, nil
	case <-time.After(timeout):
		return nil, errors.New("no stream started playing")
	}
}

func (d *Decoder) nextPlayErr() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.playErrs) == 0 {
		return nil
	}
	err := d.playErrs[0]
	d.playErrs = d.playErrs[1:]
	return err
}

// Stream is a mock decoded stream.
type Stream struct {
	decoder *Decoder
	path    string
	length  time.Duration

	mu       sync.Mutex
	position time.Duration
	closed   bool
	done     chan error
}

// Path returns the file the stream was opened for.
func (s *Stream) Path() string {
	return s.path
}

// Seek moves the position, clamped to the stream bounds.
func (s *Stream) Seek(offset time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrStreamClosed
	}
	s.position = max(0, min(offset, s.length))
	return nil
}

// Play blocks until Complete, Fail or Close.
func (s *Stream) Play() error {
	if err := s.decoder.nextPlayErr(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrStreamClosed
	}
	s.mu.Unlock()

	select {
	case s.decoder.playing <- s:
	default:
	}

	return <-s.done
}

// Advance moves the position forward, as if d of audio had played.
func (s *Stream) Advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position = min(s.position+d, s.length)
}

// Complete ends playback at the end of the file.
func (s *Stream) Complete() {
	s.mu.Lock()
	s.position = s.length
	s.mu.Unlock()
	s.end(nil)
}

// Fail ends playback with err.
func (s *Stream) Fail(err error) {
	s.end(fmt.Errorf("mock decode: %w", err))
}

func (s *Stream) end(err error) {
	select {
	case s.done <- err:
	default:
	}
}

// Position returns the current position.
func (s *Stream) Position() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

// Length returns the configured length.
func (s *Stream) Length() time.Duration {
	return s.length
}

// Close ends Play with domain.ErrStreamClosed.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.end(domain.ErrStreamClosed)
	return nil
}

// Closed reports whether Close was called.
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Verify that Decoder implements the Decoder interface
var _ ports.Decoder = (*Decoder)(nil)
