package kv

import (
	"encoding/json"

	"github.com/tejashwikalptaru/cyder/internal/domain"
	"github.com/tejashwikalptaru/cyder/internal/ports"
)

const (
	keyQueue     = "history.queue"
	keyLastTrack = "history.last_track"
)

// HistoryRepository implements ports.HistoryRepository on a Store.
// The queue is stored as a JSON array of paths.
type HistoryRepository struct {
	store *Store
}

// NewHistoryRepository creates a new history repository.
func NewHistoryRepository(store *Store) *HistoryRepository {
	return &HistoryRepository{store: store}
}

// SaveQueue persists the play-next queue.
func (r *HistoryRepository) SaveQueue(tracks []domain.Track) error {
	paths := make([]string, len(tracks))
	for i, track := range tracks {
		paths[i] = track.Path
	}

	data, err := json.Marshal(paths)
	if err != nil {
		return domain.NewRepositoryError("save", "history", "failed to marshal queue", err)
	}
	if err := r.store.SetString(keyQueue, string(data)); err != nil {
		return domain.NewRepositoryError("save", "history", "failed to store queue", err)
	}
	return nil
}

// LoadQueue retrieves the saved queue, skipping entries that are no longer supported.
func (r *HistoryRepository) LoadQueue() ([]domain.Track, error) {
	data := r.store.String(keyQueue)
	if data == "" {
		return []domain.Track{}, nil
	}

	var paths []string
	if err := json.Unmarshal([]byte(data), &paths); err != nil {
		return nil, domain.NewRepositoryError("load", "history", "failed to unmarshal queue", err)
	}

	tracks := make([]domain.Track, 0, len(paths))
	for _, path := range paths {
		if track, err := domain.NewTrack(path); err == nil {
			tracks = append(tracks, track)
		}
	}
	return tracks, nil
}

// SaveLastTrack persists the last opened track path.
func (r *HistoryRepository) SaveLastTrack(path string) error {
	if err := r.store.SetString(keyLastTrack, path); err != nil {
		return domain.NewRepositoryError("save", "history", "failed to store last track", err)
	}
	return nil
}

// LoadLastTrack returns the last opened track path, or "".
func (r *HistoryRepository) LoadLastTrack() (string, error) {
	return r.store.String(keyLastTrack), nil
}

// Clear removes all saved history data.
func (r *HistoryRepository) Clear() error {
	if err := r.store.Remove(keyQueue, keyLastTrack); err != nil {
		return domain.NewRepositoryError("clear", "history", "failed to clear history", err)
	}
	return nil
}

// Verify that HistoryRepository implements the HistoryRepository interface
var _ ports.HistoryRepository = (*HistoryRepository)(nil)
