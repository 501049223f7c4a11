package console

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejashwikalptaru/cyder/internal/adapter/eventbus"
	"github.com/tejashwikalptaru/cyder/internal/domain"
	"github.com/tejashwikalptaru/cyder/internal/logger"
	"github.com/tejashwikalptaru/cyder/internal/testutil"
)

type recordingView struct {
	mu    sync.Mutex
	calls []string
}

func (v *recordingView) record(format string, args ...any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls = append(v.calls, strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (v *recordingView) Notify(title, message string) { v.record("notify %s: %s", title, message) }
func (v *recordingView) SetTrackInfo(track domain.Track, d time.Duration) {
	v.record("track %s %s", track.Name(), d)
}
func (v *recordingView) SetPlayState(playing bool)           { v.record("playing %t", playing) }
func (v *recordingView) SetProgress(label string, f float64) { v.record("progress %s", label) }
func (v *recordingView) SetModes(repeat, shuffle bool)       { v.record("modes %t %t", repeat, shuffle) }
func (v *recordingView) SetQueue(queue []domain.Track)       { v.record("queue %d", len(queue)) }

func (v *recordingView) Calls() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.calls...)
}

func TestView_Lines(t *testing.T) {
	var buf bytes.Buffer
	view := NewView(&buf, true)

	view.SetTrackInfo(domain.Track{Path: "/music/song_Dreamy.mp3", Artist: "Nobody"}, 200*time.Second)
	view.SetPlayState(true)
	view.SetProgress("0:10 / -3:10", 0.05)
	view.SetProgress("0:11 / -3:09", 0.055)
	view.Notify("Playback failed", "boom")
	view.SetModes(true, false)
	view.SetQueue(nil)
	view.SetQueue([]domain.Track{{Path: "/music/a.mp3"}, {Path: "/music/b.wav"}})

	out := buf.String()
	assert.Contains(t, out, "Loaded song (dreamy) - Nobody (3:20)\n")
	assert.Contains(t, out, "> playing\n")
	assert.Contains(t, out, "\r[#.............................] 0:11 / -3:09 \n! Playback failed: boom\n",
		"a message ends the progress line first")
	assert.Contains(t, out, "repeat on, shuffle off\n")
	assert.Contains(t, out, "queue empty\n")
	assert.Contains(t, out, "queue: 1. a, 2. b\n")
}

func TestView_ProgressHidden(t *testing.T) {
	var buf bytes.Buffer
	view := NewView(&buf, false)

	view.SetProgress("0:01", 0.5)
	view.SetPlayState(false)

	assert.Equal(t, "|| paused\n", buf.String())
}

func TestView_ProgressClamped(t *testing.T) {
	var buf bytes.Buffer
	view := NewView(&buf, true)

	view.SetProgress("x", 1.7)
	assert.Contains(t, buf.String(), strings.Repeat("#", barWidth))
	assert.NotContains(t, buf.String(), ".")
}

func newTestPresenter(t *testing.T) (*Presenter, *recordingView, *eventbus.SyncEventBus) {
	t.Helper()
	bus := eventbus.NewSyncEventBus(nil)
	t.Cleanup(func() { _ = bus.Close() })

	view := &recordingView{}
	return NewPresenter(logger.NewTestLogger(), nil, nil, bus, view), view, bus
}

func TestPresenter_Events(t *testing.T) {
	p, view, bus := newTestPresenter(t)
	track := domain.Track{Path: "/music/a.mp3", Format: domain.FormatMP3}

	bus.Publish(domain.NewTrackLoadedEvent(track, 90*time.Second))
	bus.Publish(domain.NewTrackStartedEvent("s1", track, 0, false))
	bus.Publish(domain.NewTrackPausedEvent("s1", track, time.Second))
	bus.Publish(domain.NewQueueChangedEvent([]domain.Track{track}))
	bus.Publish(domain.NewToolInstalledEvent("ffmpeg"))

	assert.Equal(t, []string{
		"track a 1m30s",
		"playing true",
		"playing false",
		"queue 1",
		"notify Installed: ffmpeg",
	}, view.Calls())

	p.Shutdown()
	p.Shutdown()
	assert.Equal(t, 0, bus.SubscriberCount())

	bus.Publish(domain.NewTrackStartedEvent("s2", track, 0, false))
	assert.Len(t, view.Calls(), 5)
}

func TestPresenter_HandleInvalidInput(t *testing.T) {
	p, view, _ := newTestPresenter(t)
	ctx := context.Background()

	assert.False(t, p.Handle(ctx, "zz"))
	assert.False(t, p.Handle(ctx, "s later"))
	assert.False(t, p.Handle(ctx, "e flac"))
	assert.True(t, p.Handle(ctx, " q "))

	calls := view.Calls()
	require.Len(t, calls, 3)
	assert.Contains(t, calls[0], "unknown command")
	assert.Contains(t, calls[1], "not a number")
	assert.Contains(t, calls[2], "must be mp3 or wav")
}

func TestPresenter_Run(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)
	p, view, _ := newTestPresenter(t)

	err := p.Run(context.Background(), strings.NewReader("zz\nq\nzz\n"))
	require.NoError(t, err)
	assert.Len(t, view.Calls(), 1, "commands after q are not run")

	err = p.Run(context.Background(), strings.NewReader("zz\n"))
	require.NoError(t, err, "end of input stops the loop")
}

func TestPresenter_RunCancelled(t *testing.T) {
	p, _, _ := newTestPresenter(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Never closed, so only the context can end Run
	reader, writer := io.Pipe()
	defer writer.Close()

	err := p.Run(ctx, reader)
	assert.ErrorIs(t, err, context.Canceled)
}
