package service

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tejashwikalptaru/cyder/internal/domain"
	"github.com/tejashwikalptaru/cyder/internal/ports"
)

// DefaultProgressInterval is the tracker's poll rate.
const DefaultProgressInterval = 100 * time.Millisecond

// PositionSource reports the live playback position.
type PositionSource interface {
	Elapsed() time.Duration
}

// ProgressService samples the playback position and publishes whole-second progress.
// Samples that would move the display backwards are dropped, so a resume that
// rewinds by the reaction offset never makes the label jump back.
// All operations are thread-safe via sync.Mutex.
type ProgressService struct {
	// Dependencies (injected)
	logger *slog.Logger
	bus    ports.EventBus
	source PositionSource

	// State
	interval time.Duration
	total    time.Duration
	lastSecs int
	paused   bool

	// Concurrency control
	mu      sync.Mutex
	stop    chan struct{}
	running bool
	wg      sync.WaitGroup
}

// NewProgressService creates a progress tracker and starts its ticker.
// It starts paused; call ResumeUpdates once playback begins.
func NewProgressService(
	logger *slog.Logger,
	bus ports.EventBus,
	source PositionSource,
	interval time.Duration,
) *ProgressService {
	if interval <= 0 {
		interval = DefaultProgressInterval
	}

	s := &ProgressService{
		logger:   logger.With(slog.String("service", "progress")),
		bus:      bus,
		source:   source,
		interval: interval,
		paused:   true,
		stop:     make(chan struct{}),
	}
	s.start()
	return s
}

func (s *ProgressService) start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

// tick publishes one sample if it passes the monotonic guard.
func (s *ProgressService) tick() {
	s.mu.Lock()
	if s.paused {
		s.mu.Unlock()
		return
	}
	total := s.total
	s.mu.Unlock()

	update := newProgressUpdate(s.source.Elapsed(), total)

	s.mu.Lock()
	if s.paused || update.SecondsElapsed < s.lastSecs || (total > 0 && update.SecondsRemaining < 0) {
		s.mu.Unlock()
		return
	}
	s.lastSecs = update.SecondsElapsed
	s.mu.Unlock()

	s.bus.Publish(domain.NewTrackProgressEvent(update))
}

func newProgressUpdate(elapsed, total time.Duration) domain.ProgressUpdate {
	secs := int(elapsed / time.Second)
	if total <= 0 {
		return domain.ProgressUpdate{SecondsElapsed: secs, SecondsRemaining: -1}
	}

	totalSecs := int(total / time.Second)
	return domain.ProgressUpdate{
		SecondsElapsed:   secs,
		SecondsRemaining: totalSecs - secs,
		Fraction:         min(1, float64(elapsed)/float64(total)),
	}
}

// Reset starts tracking a new track of the given length. Zero means unknown.
func (s *ProgressService) Reset(total time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total = max(0, total)
	s.lastSecs = 0
}

// SetPosition moves the tracker to fraction of the track, overriding the monotonic
// guard, and returns the matching offset for the caller to play from.
func (s *ProgressService) SetPosition(fraction float64) (time.Duration, error) {
	if fraction < 0 || fraction > 1 {
		return 0, fmt.Errorf("%w: fraction %v outside [0, 1]", domain.ErrInvalidPosition, fraction)
	}

	s.mu.Lock()
	if s.total <= 0 {
		s.mu.Unlock()
		return 0, fmt.Errorf("%w: track length unknown", domain.ErrInvalidPosition)
	}
	offset := time.Duration(fraction * float64(s.total))
	update := newProgressUpdate(offset, s.total)
	update.UserTriggered = true
	s.lastSecs = update.SecondsElapsed
	s.mu.Unlock()

	s.bus.Publish(domain.NewTrackProgressEvent(update))
	return offset, nil
}

// Total returns the length being tracked, zero if unknown.
func (s *ProgressService) Total() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// PauseUpdates stops publishing without stopping the ticker.
func (s *ProgressService) PauseUpdates() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
}

// ResumeUpdates resumes publishing.
func (s *ProgressService) ResumeUpdates() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
}

// Shutdown stops the ticker goroutine and waits for it to exit.
func (s *ProgressService) Shutdown() error {
	s.mu.Lock()
	if s.running {
		close(s.stop)
		s.running = false
	}
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// FormatLabel renders an update as "m:ss / m:ss" with showTotal, or "m:ss / -m:ss"
// (time remaining) without. Unknown lengths render elapsed time only.
func FormatLabel(update domain.ProgressUpdate, showTotal bool) string {
	elapsed := formatClock(update.SecondsElapsed)
	if update.SecondsRemaining < 0 {
		return elapsed
	}
	if showTotal {
		return elapsed + " / " + formatClock(update.SecondsElapsed+update.SecondsRemaining)
	}
	return elapsed + " / -" + formatClock(update.SecondsRemaining)
}

func formatClock(secs int) string {
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
