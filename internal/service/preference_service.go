package service

import (
	"log/slog"
	"sync"

	"github.com/tejashwikalptaru/cyder/internal/domain"
	"github.com/tejashwikalptaru/cyder/internal/ports"
)

// PreferenceService caches user preferences and writes changes through to the repository.
// All operations are thread-safe via sync.RWMutex.
type PreferenceService struct {
	// Dependencies (injected)
	logger     *slog.Logger
	repository ports.PreferencesRepository

	// Cached preferences
	showTotalLength bool
	musicDir        string

	// Concurrency control
	mu sync.RWMutex
}

// NewPreferenceService creates a new preference service and loads the saved values.
func NewPreferenceService(logger *slog.Logger, repository ports.PreferencesRepository) *PreferenceService {
	s := &PreferenceService{
		logger:     logger.With(slog.String("service", "preferences")),
		repository: repository,
	}

	if show, err := repository.LoadShowTotalLength(); err == nil {
		s.showTotalLength = show
	} else {
		s.logger.Warn("failed to load label mode", slog.Any("error", err))
	}

	if dir, err := repository.LoadMusicDir(); err == nil {
		s.musicDir = dir
	} else {
		s.logger.Warn("failed to load music directory", slog.Any("error", err))
	}

	return s
}

// ShowTotalLength returns true if progress labels show the total length instead of time remaining.
func (s *PreferenceService) ShowTotalLength() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.showTotalLength
}

// ToggleShowTotalLength flips the label mode, persists it and returns the new value.
func (s *PreferenceService) ToggleShowTotalLength() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := !s.showTotalLength
	if err := s.repository.SaveShowTotalLength(next); err != nil {
		return s.showTotalLength, err
	}
	s.showTotalLength = next
	return next, nil
}

// MusicDir returns the saved music directory, or "".
func (s *PreferenceService) MusicDir() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.musicDir
}

// SetMusicDir persists the music directory.
func (s *PreferenceService) SetMusicDir(dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repository.SaveMusicDir(dir); err != nil {
		return err
	}
	s.musicDir = dir
	return nil
}

// ProgressLabel formats update in the preferred label mode.
func (s *PreferenceService) ProgressLabel(update domain.ProgressUpdate) string {
	return FormatLabel(update, s.ShowTotalLength())
}

// Reset clears all preferences back to their defaults.
func (s *PreferenceService) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repository.Clear(); err != nil {
		return err
	}
	s.showTotalLength = false
	s.musicDir = ""
	return nil
}
