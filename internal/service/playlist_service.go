package service

import (
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/tejashwikalptaru/cyder/internal/domain"
	"github.com/tejashwikalptaru/cyder/internal/ports"
)

// PreviousRestartThreshold is how far into a track Previous restarts it instead of going back.
const PreviousRestartThreshold = 5 * time.Second

// PlaylistService decides what plays next. Candidates are the supported siblings of
// the current track; the play-next queue, repeat and shuffle take priority over them.
// All operations are thread-safe via sync.RWMutex.
type PlaylistService struct {
	// Dependencies (injected)
	logger  *slog.Logger
	library *LibraryService
	history ports.HistoryRepository
	bus     ports.EventBus

	// State
	candidates []domain.Track
	queue      []domain.Track
	repeat     bool
	shuffle    bool
	rng        *rand.Rand

	// Concurrency control
	mu sync.RWMutex
}

// NewPlaylistService creates a new playlist service and restores the saved queue.
func NewPlaylistService(
	logger *slog.Logger,
	library *LibraryService,
	history ports.HistoryRepository,
	bus ports.EventBus,
) *PlaylistService {
	s := &PlaylistService{
		logger:  logger.With(slog.String("service", "playlist")),
		library: library,
		history: history,
		bus:     bus,
		queue:   make([]domain.Track, 0),
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}

	if history != nil {
		queue, err := history.LoadQueue()
		if err != nil {
			s.logger.Warn("failed to restore queue", slog.Any("error", err))
		} else {
			s.queue = queue
		}
	}

	return s
}

// SetRand replaces the shuffle source. Tests use it to make shuffle deterministic.
func (s *PlaylistService) SetRand(rng *rand.Rand) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng = rng
}

// RefreshCandidates relists the directory of current and replaces the candidate list.
func (s *PlaylistService) RefreshCandidates(current domain.Track) ([]domain.Track, error) {
	if current.IsZero() {
		return nil, domain.ErrNoTrackLoaded
	}

	tracks, err := s.library.ListCandidates(current.Dir())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.candidates = tracks
	s.mu.Unlock()

	return slices.Clone(tracks), nil
}

// refresh is RefreshCandidates for next/previous decisions, where a vanished
// directory simply means nothing to choose from.
func (s *PlaylistService) refresh(current domain.Track) {
	if _, err := s.RefreshCandidates(current); err != nil {
		s.logger.Warn("failed to refresh candidates", slog.String("path", current.Path), slog.Any("error", err))
		s.mu.Lock()
		s.candidates = nil
		s.mu.Unlock()
	}
}

// Next returns the track to play after current.
// Repeat wins over the queue, the queue over shuffle, shuffle over sequential order.
// The second result is false when there is nothing to play.
func (s *PlaylistService) Next(current domain.Track) (domain.Track, bool) {
	s.refresh(current)

	s.mu.Lock()

	if s.repeat && !current.IsZero() {
		s.mu.Unlock()
		return current, true
	}

	if len(s.queue) > 0 {
		head := s.queue[0]
		s.queue = slices.Delete(s.queue, 0, 1)
		queue := slices.Clone(s.queue)
		s.mu.Unlock()

		s.queueChanged(queue)
		return head, true
	}
	defer s.mu.Unlock()

	n := len(s.candidates)
	if n == 0 {
		return domain.Track{}, false
	}

	if s.shuffle {
		others := slices.DeleteFunc(slices.Clone(s.candidates), current.Same)
		if len(others) == 0 {
			return s.candidates[0], true
		}
		return others[s.rng.IntN(len(others))], true
	}

	idx := s.indexOfLocked(current)
	return s.candidates[(idx+1)%n], true
}

// Previous returns current when more than PreviousRestartThreshold has elapsed,
// otherwise the preceding candidate, wrapping at the start.
func (s *PlaylistService) Previous(current domain.Track, elapsed time.Duration) (domain.Track, bool) {
	s.refresh(current)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if elapsed > PreviousRestartThreshold && !current.IsZero() {
		return current, true
	}

	n := len(s.candidates)
	if n == 0 {
		return domain.Track{}, false
	}

	idx := s.indexOfLocked(current)
	if idx < 0 {
		return s.candidates[n-1], true
	}
	return s.candidates[(idx-1+n)%n], true
}

// indexOfLocked returns the candidate index of track, or -1.
func (s *PlaylistService) indexOfLocked(track domain.Track) int {
	return slices.IndexFunc(s.candidates, track.Same)
}

// EnqueueNext inserts track at the head of the queue.
func (s *PlaylistService) EnqueueNext(track domain.Track) error {
	if track.IsZero() {
		return domain.ErrInvalidFilePath
	}

	s.mu.Lock()
	s.queue = slices.Insert(s.queue, 0, track)
	queue := slices.Clone(s.queue)
	s.mu.Unlock()

	s.queueChanged(queue)
	return nil
}

// EnqueueLast appends track to the queue.
func (s *PlaylistService) EnqueueLast(track domain.Track) error {
	if track.IsZero() {
		return domain.ErrInvalidFilePath
	}

	s.mu.Lock()
	s.queue = append(s.queue, track)
	queue := slices.Clone(s.queue)
	s.mu.Unlock()

	s.queueChanged(queue)
	return nil
}

// RemoveFromQueue removes the queued track at index.
func (s *PlaylistService) RemoveFromQueue(index int) error {
	s.mu.Lock()
	if len(s.queue) == 0 {
		s.mu.Unlock()
		return domain.ErrQueueEmpty
	}
	if index < 0 || index >= len(s.queue) {
		s.mu.Unlock()
		return domain.ErrInvalidIndex
	}
	s.queue = slices.Delete(s.queue, index, index+1)
	queue := slices.Clone(s.queue)
	s.mu.Unlock()

	s.queueChanged(queue)
	return nil
}

// ClearQueue removes all queued tracks.
func (s *PlaylistService) ClearQueue() {
	s.mu.Lock()
	s.queue = make([]domain.Track, 0)
	s.mu.Unlock()

	s.queueChanged([]domain.Track{})
}

// Queue returns a copy of the play-next queue.
func (s *PlaylistService) Queue() []domain.Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.queue)
}

// Candidates returns a copy of the last refreshed candidate list.
func (s *PlaylistService) Candidates() []domain.Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.candidates)
}

// queueChanged persists the queue and publishes the change. Called without the lock.
func (s *PlaylistService) queueChanged(queue []domain.Track) {
	if s.history != nil {
		if err := s.history.SaveQueue(queue); err != nil {
			s.logger.Warn("failed to save queue", slog.Any("error", err))
		}
	}
	s.bus.Publish(domain.NewQueueChangedEvent(queue))
}

// ToggleRepeat flips repeat mode and returns the new value.
func (s *PlaylistService) ToggleRepeat() bool {
	s.mu.Lock()
	s.repeat = !s.repeat
	enabled := s.repeat
	s.mu.Unlock()

	s.bus.Publish(domain.NewRepeatToggledEvent(enabled))
	return enabled
}

// ToggleShuffle flips shuffle mode and returns the new value.
func (s *PlaylistService) ToggleShuffle() bool {
	s.mu.Lock()
	s.shuffle = !s.shuffle
	enabled := s.shuffle
	s.mu.Unlock()

	s.bus.Publish(domain.NewShuffleToggledEvent(enabled))
	return enabled
}

// Repeat returns true if repeat mode is on.
func (s *PlaylistService) Repeat() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repeat
}

// Shuffle returns true if shuffle mode is on.
func (s *PlaylistService) Shuffle() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shuffle
}

// Snapshot returns the playlist state.
func (s *PlaylistService) Snapshot() domain.Playlist {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return domain.Playlist{
		Candidates: slices.Clone(s.candidates),
		Queue:      slices.Clone(s.queue),
		Repeat:     s.repeat,
		Shuffle:    s.shuffle,
	}
}
