// Package ports define the view interface presentation adapters render into.
// Presenters translate bus events into these calls so views never touch services.
package ports

import (
	"time"

	"github.com/tejashwikalptaru/cyder/internal/domain"
)

// View renders player state.
//
// Thread-safety: presenters call View from event handlers, which run on the
// publishing goroutine. Implementations must tolerate concurrent calls.
type View interface {
	// Notifier shows one user-facing message per failure
	Notifier

	// SetTrackInfo shows the loaded track. duration is zero when unknown.
	SetTrackInfo(track domain.Track, duration time.Duration)

	// SetPlayState shows whether audio is playing.
	SetPlayState(playing bool)

	// SetProgress shows the progress label and the fraction played.
	SetProgress(label string, fraction float64)

	// SetModes shows the repeat and shuffle toggles.
	SetModes(repeat, shuffle bool)

	// SetQueue shows the play-next queue.
	SetQueue(queue []domain.Track)
}
