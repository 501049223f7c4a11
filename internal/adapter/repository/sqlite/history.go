package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/tejashwikalptaru/cyder/internal/domain"
	"github.com/tejashwikalptaru/cyder/internal/ports"
)

const lastTrackKey = "last_track"

// HistoryRepository implements ports.HistoryRepository.
type HistoryRepository struct {
	store *Store
}

// NewHistoryRepository creates a history repository on store.
func NewHistoryRepository(store *Store) *HistoryRepository {
	return &HistoryRepository{store: store}
}

// SaveQueue replaces the stored queue in one transaction.
func (r *HistoryRepository) SaveQueue(tracks []domain.Track) error {
	tx, err := r.store.db.Begin()
	if err != nil {
		return domain.NewRepositoryError("save", "history", "failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM queue`); err != nil {
		return domain.NewRepositoryError("save", "history", "failed to clear queue", err)
	}

	for i, track := range tracks {
		if _, err := tx.Exec(`INSERT INTO queue (position, path) VALUES (?, ?)`, i, track.Path); err != nil {
			return domain.NewRepositoryError("save", "history", fmt.Sprintf("failed to store queue entry %d", i), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.NewRepositoryError("save", "history", "failed to commit queue", err)
	}
	return nil
}

// LoadQueue returns the stored queue. Entries whose extension is no longer supported are skipped.
func (r *HistoryRepository) LoadQueue() ([]domain.Track, error) {
	rows, err := r.store.db.Query(`SELECT path FROM queue ORDER BY position`)
	if err != nil {
		return nil, domain.NewRepositoryError("load", "history", "failed to query queue", err)
	}
	defer rows.Close()

	tracks := make([]domain.Track, 0)
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, domain.NewRepositoryError("load", "history", "failed to read queue entry", err)
		}
		track, err := domain.NewTrack(path)
		if err != nil {
			continue
		}
		tracks = append(tracks, track)
	}

	if err := rows.Err(); err != nil {
		return nil, domain.NewRepositoryError("load", "history", "failed to read queue", err)
	}
	return tracks, nil
}

// SaveLastTrack persists the path of the last opened track.
func (r *HistoryRepository) SaveLastTrack(path string) error {
	_, err := r.store.db.Exec(`
	INSERT INTO history (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value;
	`, lastTrackKey, path)
	if err != nil {
		return domain.NewRepositoryError("save", "history", "failed to store last track", err)
	}
	return nil
}

// LoadLastTrack returns the last opened track path, or "" if none.
func (r *HistoryRepository) LoadLastTrack() (string, error) {
	var path string
	err := r.store.db.QueryRow(`SELECT value FROM history WHERE key = ?`, lastTrackKey).Scan(&path)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", domain.NewRepositoryError("load", "history", "failed to read last track", err)
	}
	return path, nil
}

// Clear removes the queue and the last track.
func (r *HistoryRepository) Clear() error {
	if _, err := r.store.db.Exec(`DELETE FROM queue; DELETE FROM history;`); err != nil {
		return domain.NewRepositoryError("clear", "history", "failed to clear history", err)
	}
	return nil
}

// Verify that HistoryRepository implements the HistoryRepository interface
var _ ports.HistoryRepository = (*HistoryRepository)(nil)
