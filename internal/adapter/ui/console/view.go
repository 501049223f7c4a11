// Package console renders the player on a terminal and turns typed commands into player calls.
package console

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/tejashwikalptaru/cyder/internal/domain"
	"github.com/tejashwikalptaru/cyder/internal/ports"
)

const barWidth = 30

// View writes player state as lines of text.
// Progress is redrawn in place with a carriage return; any other line first ends it.
//
// Thread-safety: all methods are safe for concurrent use.
type View struct {
	mu           sync.Mutex
	out          io.Writer
	showProgress bool
	inProgress   bool
}

// NewView creates a view writing to out. Progress lines are drawn only when showProgress is set.
func NewView(out io.Writer, showProgress bool) *View {
	return &View{out: out, showProgress: showProgress}
}

// Notify prints a user-facing message.
func (v *View) Notify(title, message string) {
	v.println("! %s: %s", title, message)
}

// SetTrackInfo prints the loaded track.
func (v *View) SetTrackInfo(track domain.Track, duration time.Duration) {
	info := track.DisplayName()
	if track.Artist != "" {
		info += " - " + track.Artist
	}
	if duration > 0 {
		info += " (" + clock(duration) + ")"
	}
	v.println("Loaded %s", info)
}

// SetPlayState prints a playing or paused marker.
func (v *View) SetPlayState(playing bool) {
	if playing {
		v.println("> playing")
		return
	}
	v.println("|| paused")
}

// SetProgress redraws the progress bar.
func (v *View) SetProgress(label string, fraction float64) {
	if !v.showProgress {
		return
	}

	fraction = min(max(fraction, 0), 1)
	filled := int(fraction * barWidth)
	bar := strings.Repeat("#", filled) + strings.Repeat(".", barWidth-filled)

	v.mu.Lock()
	defer v.mu.Unlock()
	_, _ = fmt.Fprintf(v.out, "\r[%s] %s ", bar, label)
	v.inProgress = true
}

// SetModes prints the repeat and shuffle toggles.
func (v *View) SetModes(repeat, shuffle bool) {
	v.println("repeat %s, shuffle %s", onOff(repeat), onOff(shuffle))
}

// SetQueue prints the play-next queue.
func (v *View) SetQueue(queue []domain.Track) {
	if len(queue) == 0 {
		v.println("queue empty")
		return
	}

	names := make([]string, len(queue))
	for i, track := range queue {
		names[i] = fmt.Sprintf("%d. %s", i+1, track.DisplayName())
	}
	v.println("queue: %s", strings.Join(names, ", "))
}

// Println prints a plain line.
func (v *View) Println(format string, args ...any) {
	v.println(format, args...)
}

func (v *View) println(format string, args ...any) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.inProgress {
		_, _ = io.WriteString(v.out, "\n")
		v.inProgress = false
	}
	_, _ = fmt.Fprintf(v.out, format+"\n", args...)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// clock formats d as m:ss.
func clock(d time.Duration) string {
	secs := int(d / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

var _ ports.View = (*View)(nil)
