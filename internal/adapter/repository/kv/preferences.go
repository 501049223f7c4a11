package kv

import (
	"github.com/tejashwikalptaru/cyder/internal/domain"
	"github.com/tejashwikalptaru/cyder/internal/ports"
)

const (
	keyShowTotalLength = "preferences.show_total_length"
	keyMusicDir        = "preferences.music_dir"
)

// PreferencesRepository implements ports.PreferencesRepository on a Store.
type PreferencesRepository struct {
	store *Store
}

// NewPreferencesRepository creates a new preferences repository.
func NewPreferencesRepository(store *Store) *PreferencesRepository {
	return &PreferencesRepository{store: store}
}

// SaveShowTotalLength persists the progress label mode.
func (r *PreferencesRepository) SaveShowTotalLength(show bool) error {
	if err := r.store.SetBool(keyShowTotalLength, show); err != nil {
		return domain.NewRepositoryError("save", "preferences", "failed to store label mode", err)
	}
	return nil
}

// LoadShowTotalLength returns the progress label mode, false (time remaining) by default.
func (r *PreferencesRepository) LoadShowTotalLength() (bool, error) {
	return r.store.BoolWithFallback(keyShowTotalLength, false), nil
}

// SaveMusicDir persists the music directory.
func (r *PreferencesRepository) SaveMusicDir(dir string) error {
	if err := r.store.SetString(keyMusicDir, dir); err != nil {
		return domain.NewRepositoryError("save", "preferences", "failed to store music directory", err)
	}
	return nil
}

// LoadMusicDir returns the saved music directory, or "".
func (r *PreferencesRepository) LoadMusicDir() (string, error) {
	return r.store.String(keyMusicDir), nil
}

// Clear removes all saved preferences.
func (r *PreferencesRepository) Clear() error {
	if err := r.store.Remove(keyShowTotalLength, keyMusicDir); err != nil {
		return domain.NewRepositoryError("clear", "preferences", "failed to clear preferences", err)
	}
	return nil
}

// Verify that PreferencesRepository implements the PreferencesRepository interface
var _ ports.PreferencesRepository = (*PreferencesRepository)(nil)
