// Package ports define repository interfaces for data persistence abstraction.
// These interfaces stand in for the key/value collaborators the player consumes.
package ports

import (
	"time"

	"github.com/tejashwikalptaru/cyder/internal/domain"
)

// DurationKey identifies one version of a file for duration caching.
// A file that was rewritten in place gets a new key.
type DurationKey struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// DurationCache stores probed durations, which are expensive to recompute.
//
// Thread-safety: Implementations must be thread-safe.
type DurationCache interface {
	// Get returns the cached duration in milliseconds.
	Get(key DurationKey) (int64, bool)

	// Put stores a duration. Unknown durations are never stored.
	Put(key DurationKey, millis int64) error

	// InvalidateDir drops every entry for files directly inside dir.
	InvalidateDir(dir string) error
}

// HistoryRepository handles the persistence of the play-next queue.
//
// Thread-safety: Implementations must be thread-safe.
type HistoryRepository interface {
	// SaveQueue replaces the stored queue.
	SaveQueue(tracks []domain.Track) error

	// LoadQueue retrieves the stored queue.
	// If no queue was saved, returns an empty slice (not an error).
	LoadQueue() ([]domain.Track, error)

	// SaveLastTrack persists the path of the last opened track.
	SaveLastTrack(path string) error

	// LoadLastTrack returns the last opened track path, or "" if none.
	LoadLastTrack() (string, error)

	// Clear removes all saved history data.
	Clear() error
}

// PreferencesRepository handles the persistence of user preferences.
//
// Thread-safety: Implementations must be thread-safe.
type PreferencesRepository interface {
	// SaveShowTotalLength persists whether progress labels show total length
	// instead of time remaining.
	SaveShowTotalLength(show bool) error

	// LoadShowTotalLength returns the saved value, false by default.
	LoadShowTotalLength() (bool, error)

	// SaveMusicDir persists the user's music directory.
	SaveMusicDir(dir string) error

	// LoadMusicDir returns the saved music directory, or "" if none.
	LoadMusicDir() (string, error)

	// Clear removes all saved preferences.
	Clear() error
}

// MetadataReader fills in tag fields for a track.
type MetadataReader interface {
	// Read returns track with Title, Artist, Album and AlbumArt populated where known.
	// Files without tags are not an error.
	Read(track domain.Track) (domain.Track, error)
}

// MetadataWriter edits tags on files the audio core produced.
type MetadataWriter interface {
	// WriteTitle sets the title tag of an mp3 file.
	WriteTitle(path, title string) error
}

// Notifier surfaces user-facing failures, one message per failure.
type Notifier interface {
	Notify(title, message string)
}
