// Package beep decodes mp3 and wav files with gopxl/beep and plays them on the speaker.
package beep

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/speaker"
	"github.com/gopxl/beep/wav"

	"github.com/tejashwikalptaru/cyder/internal/domain"
	"github.com/tejashwikalptaru/cyder/internal/ports"
)

// DefaultSampleRate is the rate the speaker is opened at.
const DefaultSampleRate = beep.SampleRate(44100)

// resampleQuality trades CPU for fidelity when a file's rate differs from the speaker's.
const resampleQuality = 4

// Decoder opens streams on a shared speaker. The speaker is initialized on the first Play.
//
// Thread-safety: Open may be called concurrently.
type Decoder struct {
	logger     *slog.Logger
	sampleRate beep.SampleRate
	buffer     time.Duration

	initOnce sync.Once
	initErr  error
}

// NewDecoder creates a decoder that plays at sampleRate with the given speaker buffer.
func NewDecoder(logger *slog.Logger, sampleRate beep.SampleRate, buffer time.Duration) *Decoder {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if buffer <= 0 {
		buffer = 100 * time.Millisecond
	}
	return &Decoder{logger: logger, sampleRate: sampleRate, buffer: buffer}
}

// Open decodes the file header and returns a stream positioned at the start.
func (d *Decoder) Open(path string) (ports.DecodedStream, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", domain.ErrFileNotFound, err)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	format, ok := domain.ParseFormat(filepath.Ext(path))
	if !ok {
		_ = file.Close()
		return nil, domain.ErrUnsupportedFormat
	}

	var (
		streamer beep.StreamSeekCloser
		fileFmt  beep.Format
	)
	switch format {
	case domain.FormatMP3:
		streamer, fileFmt, err = mp3.Decode(file)
	case domain.FormatWAV:
		streamer, fileFmt, err = wav.Decode(file)
	}
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("%w: %w", domain.ErrUnsupportedFormat, err)
	}

	return &stream{
		decoder:  d,
		path:     path,
		streamer: streamer,
		format:   fileFmt,
		finished: make(chan struct{}),
	}, nil
}

func (d *Decoder) initSpeaker() error {
	d.initOnce.Do(func() {
		d.initErr = speaker.Init(d.sampleRate, d.sampleRate.N(d.buffer))
		if d.initErr != nil {
			d.logger.Error("failed to initialize speaker", slog.Any("error", d.initErr))
		}
	})
	return d.initErr
}

// stream is one decoded file. Fields read by the speaker goroutine are guarded by speaker.Lock.
type stream struct {
	decoder  *Decoder
	path     string
	streamer beep.StreamSeekCloser
	format   beep.Format

	ctrl *beep.Ctrl

	finishOnce sync.Once
	finished   chan struct{}
	result     error

	closeOnce sync.Once
	closeErr  error
}

func (s *stream) finish(err error) {
	s.finishOnce.Do(func() {
		s.result = err
		close(s.finished)
	})
}

// Seek moves the read position. Offsets outside the file clamp to its bounds.
func (s *stream) Seek(offset time.Duration) error {
	speaker.Lock()
	defer speaker.Unlock()

	sample := max(0, min(s.format.SampleRate.N(offset), s.streamer.Len()))
	if err := s.streamer.Seek(sample); err != nil {
		return fmt.Errorf("seek %s to %s: %w", s.path, offset, err)
	}
	return nil
}

// Play hands the stream to the speaker and blocks until it ends or is closed.
func (s *stream) Play() error {
	if err := s.decoder.initSpeaker(); err != nil {
		return fmt.Errorf("%w: speaker: %w", domain.ErrDecodeTransient, err)
	}

	var source beep.Streamer = s.streamer
	if s.format.SampleRate != s.decoder.sampleRate {
		source = beep.Resample(resampleQuality, s.format.SampleRate, s.decoder.sampleRate, s.streamer)
	}

	speaker.Lock()
	select {
	case <-s.finished:
		// Closed before playback began
		speaker.Unlock()
		return s.result
	default:
	}
	s.ctrl = &beep.Ctrl{
		Streamer: beep.Seq(source, beep.Callback(func() {
			// Runs on the speaker goroutine with the speaker lock held
			if err := s.streamer.Err(); err != nil {
				s.finish(fmt.Errorf("%w: %w", domain.ErrDecodeTransient, err))
				return
			}
			s.finish(nil)
		})),
	}
	speaker.Unlock()

	speaker.Play(s.ctrl)

	<-s.finished
	return s.result
}

// Position returns how far into the file the decoder has read.
func (s *stream) Position() time.Duration {
	speaker.Lock()
	defer speaker.Unlock()
	return s.format.SampleRate.D(s.streamer.Position())
}

// Length returns the length of the file.
func (s *stream) Length() time.Duration {
	return s.format.SampleRate.D(s.streamer.Len())
}

// Close detaches the stream from the speaker and releases the file.
func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		speaker.Lock()
		if s.ctrl != nil {
			s.ctrl.Streamer = nil
		}
		s.finish(domain.ErrStreamClosed)
		speaker.Unlock()

		s.closeErr = s.streamer.Close()
	})
	return s.closeErr
}

// Verify that Decoder implements the Decoder interface
var _ ports.Decoder = (*Decoder)(nil)
