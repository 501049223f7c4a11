package sqlite

import (
	"database/sql"
	"errors"
	"path/filepath"

	"github.com/tejashwikalptaru/cyder/internal/domain"
	"github.com/tejashwikalptaru/cyder/internal/ports"
)

// DurationCache implements ports.DurationCache.
// An entry only matches while the file keeps the size and modification time it was probed with.
type DurationCache struct {
	store *Store
}

// NewDurationCache creates a duration cache on store.
func NewDurationCache(store *Store) *DurationCache {
	return &DurationCache{store: store}
}

// Get returns the cached duration for key.
func (c *DurationCache) Get(key ports.DurationKey) (int64, bool) {
	var millis int64
	err := c.store.db.QueryRow(
		`SELECT millis FROM durations WHERE path = ? AND size = ? AND mod_time = ?`,
		key.Path, key.Size, key.ModTime.UnixNano(),
	).Scan(&millis)
	if err != nil {
		return 0, false
	}
	return millis, true
}

// Put stores a duration. Unknown durations are ignored.
func (c *DurationCache) Put(key ports.DurationKey, millis int64) error {
	if millis < 0 {
		return nil
	}

	_, err := c.store.db.Exec(`
	INSERT INTO durations (path, dir, size, mod_time, millis) VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(path) DO UPDATE SET
		dir = excluded.dir,
		size = excluded.size,
		mod_time = excluded.mod_time,
		millis = excluded.millis;
	`, key.Path, filepath.Dir(key.Path), key.Size, key.ModTime.UnixNano(), millis)
	if err != nil {
		return domain.NewRepositoryError("put", "durations", "failed to store duration", err)
	}
	return nil
}

// InvalidateDir drops entries for files directly inside dir.
func (c *DurationCache) InvalidateDir(dir string) error {
	_, err := c.store.db.Exec(`DELETE FROM durations WHERE dir = ?`, filepath.Clean(dir))
	if err != nil {
		return domain.NewRepositoryError("invalidate", "durations", "failed to drop durations", err)
	}
	return nil
}

// Count returns the number of cached durations.
func (c *DurationCache) Count() (int, error) {
	var n int
	err := c.store.db.QueryRow(`SELECT COUNT(*) FROM durations`).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return n, err
}

// Verify that DurationCache implements the DurationCache interface
var _ ports.DurationCache = (*DurationCache)(nil)
