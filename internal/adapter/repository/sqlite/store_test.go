package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejashwikalptaru/cyder/internal/domain"
	"github.com/tejashwikalptaru/cyder/internal/ports"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "cyder.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpen_MigratesTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cyder.db")

	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestDurationCache_KeyIncludesFileVersion(t *testing.T) {
	cache := NewDurationCache(newTestStore(t))
	mod := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	key := ports.DurationKey{Path: "/music/a.mp3", Size: 1024, ModTime: mod}

	_, ok := cache.Get(key)
	assert.False(t, ok)

	require.NoError(t, cache.Put(key, 183456))
	millis, ok := cache.Get(key)
	require.True(t, ok)
	assert.Equal(t, int64(183456), millis)

	rewritten := key
	rewritten.Size = 2048
	_, ok = cache.Get(rewritten)
	assert.False(t, ok, "a rewritten file must not hit the old entry")

	require.NoError(t, cache.Put(rewritten, 1000))
	n, err := cache.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n, "put should replace the entry for the same path")
}

func TestDurationCache_IgnoresUnknown(t *testing.T) {
	cache := NewDurationCache(newTestStore(t))
	key := ports.DurationKey{Path: "/music/a.mp3", Size: 1, ModTime: time.Unix(1, 0)}

	require.NoError(t, cache.Put(key, domain.UnknownDuration))
	_, ok := cache.Get(key)
	assert.False(t, ok)
}

func TestDurationCache_InvalidateDir(t *testing.T) {
	cache := NewDurationCache(newTestStore(t))
	mod := time.Unix(100, 0)

	a := ports.DurationKey{Path: "/music/a.mp3", Size: 1, ModTime: mod}
	b := ports.DurationKey{Path: "/music/sub/b.mp3", Size: 1, ModTime: mod}
	require.NoError(t, cache.Put(a, 10))
	require.NoError(t, cache.Put(b, 20))

	require.NoError(t, cache.InvalidateDir("/music/"))

	_, ok := cache.Get(a)
	assert.False(t, ok)
	_, ok = cache.Get(b)
	assert.True(t, ok, "nested directories are not invalidated")
}

func TestHistoryRepository_Queue(t *testing.T) {
	repo := NewHistoryRepository(newTestStore(t))

	queue, err := repo.LoadQueue()
	require.NoError(t, err)
	assert.Empty(t, queue)

	tracks := []domain.Track{
		{Path: "/music/z.mp3", Format: domain.FormatMP3},
		{Path: "/music/x.wav", Format: domain.FormatWAV},
		{Path: "/music/y.mp3", Format: domain.FormatMP3},
	}
	require.NoError(t, repo.SaveQueue(tracks))

	queue, err = repo.LoadQueue()
	require.NoError(t, err)
	require.Len(t, queue, 3)
	assert.Equal(t, "/music/z.mp3", queue[0].Path)
	assert.Equal(t, domain.FormatWAV, queue[1].Format)
	assert.Equal(t, "/music/y.mp3", queue[2].Path)

	require.NoError(t, repo.SaveQueue(tracks[:1]))
	queue, err = repo.LoadQueue()
	require.NoError(t, err)
	assert.Len(t, queue, 1)
}

func TestHistoryRepository_LastTrackAndClear(t *testing.T) {
	repo := NewHistoryRepository(newTestStore(t))

	last, err := repo.LoadLastTrack()
	require.NoError(t, err)
	assert.Empty(t, last)

	require.NoError(t, repo.SaveLastTrack("/music/a.mp3"))
	require.NoError(t, repo.SaveLastTrack("/music/b.mp3"))
	last, err = repo.LoadLastTrack()
	require.NoError(t, err)
	assert.Equal(t, "/music/b.mp3", last)

	require.NoError(t, repo.SaveQueue([]domain.Track{{Path: "/music/c.mp3", Format: domain.FormatMP3}}))
	require.NoError(t, repo.Clear())

	last, err = repo.LoadLastTrack()
	require.NoError(t, err)
	assert.Empty(t, last)

	queue, err := repo.LoadQueue()
	require.NoError(t, err)
	assert.Empty(t, queue)
}
