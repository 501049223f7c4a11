package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/tejashwikalptaru/cyder/internal/domain"
	"github.com/tejashwikalptaru/cyder/internal/ports"
	"github.com/tejashwikalptaru/cyder/internal/service"
)

// Help lists the commands Handle understands.
const Help = `commands:
  p            play or pause
  n / b        next / previous
  s <0..1>     seek to a fraction of the track
  r / x        toggle repeat / shuffle
  d            toggle dreamify
  o <path>     open a file
  + <path>     play a file next
  a <path>     add a file to the end of the queue
  c            clear the queue
  e <mp3|wav>  export the current track
  q            quit`

// Presenter maps bus events to View updates and typed commands to player calls.
//
// Thread-safety: event handlers run on the publishing goroutine; Handle may be
// called concurrently with them.
type Presenter struct {
	// Dependencies
	logger   *slog.Logger
	player   *service.PlayerService
	playlist *service.PlaylistService
	bus      ports.EventBus
	view     ports.View

	subs         []domain.SubscriptionID
	shutdownOnce sync.Once
}

// NewPresenter creates a presenter and subscribes it to the bus.
func NewPresenter(
	logger *slog.Logger,
	player *service.PlayerService,
	playlist *service.PlaylistService,
	bus ports.EventBus,
	view ports.View,
) *Presenter {
	p := &Presenter{
		logger:   logger.With(slog.String("component", "presenter")),
		player:   player,
		playlist: playlist,
		bus:      bus,
		view:     view,
	}

	p.subscribeToEvents()

	return p
}

func (p *Presenter) subscribeToEvents() {
	subscriptions := map[domain.EventType]domain.EventHandler{
		// Playback events
		domain.EventTrackLoaded:    p.onTrackLoaded,
		domain.EventTrackStarted:   p.onTrackStarted,
		domain.EventTrackPaused:    p.onTrackHalted,
		domain.EventTrackStopped:   p.onTrackHalted,
		domain.EventTrackCompleted: p.onTrackHalted,
		domain.EventTrackRestarted: p.onTrackRestarted,
		domain.EventTrackProgress:  p.onTrackProgress,

		// Playlist events
		domain.EventRepeatToggled:  p.onModesChanged,
		domain.EventShuffleToggled: p.onModesChanged,
		domain.EventQueueChanged:   p.onQueueChanged,

		// Toolchain and transcode events
		domain.EventToolInstalled:      p.onToolInstalled,
		domain.EventTranscodeCompleted: p.onTranscodeCompleted,
	}

	for eventType, handler := range subscriptions {
		p.subs = append(p.subs, p.bus.Subscribe(eventType, handler))
	}
}

func (p *Presenter) onTrackLoaded(event domain.Event) {
	e, ok := event.(domain.TrackLoadedEvent)
	if !ok {
		return
	}
	p.view.SetTrackInfo(e.Track, e.Duration)
}

func (p *Presenter) onTrackStarted(domain.Event) {
	p.view.SetPlayState(true)
}

func (p *Presenter) onTrackHalted(domain.Event) {
	p.view.SetPlayState(false)
}

func (p *Presenter) onTrackRestarted(event domain.Event) {
	e, ok := event.(domain.TrackRestartedEvent)
	if !ok {
		return
	}
	p.logger.Warn("track restarted",
		slog.String("path", e.Track.Path),
		slog.Int("attempt", e.Attempt),
		slog.Any("error", e.Err))
}

func (p *Presenter) onTrackProgress(event domain.Event) {
	e, ok := event.(domain.TrackProgressEvent)
	if !ok {
		return
	}
	p.view.SetProgress(p.player.ProgressLabel(e.Update), e.Update.Fraction)
}

func (p *Presenter) onModesChanged(domain.Event) {
	p.view.SetModes(p.playlist.Repeat(), p.playlist.Shuffle())
}

func (p *Presenter) onQueueChanged(event domain.Event) {
	e, ok := event.(domain.QueueChangedEvent)
	if !ok {
		return
	}
	p.view.SetQueue(e.Queue)
}

func (p *Presenter) onToolInstalled(event domain.Event) {
	e, ok := event.(domain.ToolInstalledEvent)
	if !ok {
		return
	}
	p.view.Notify("Installed", e.Binary)
}

func (p *Presenter) onTranscodeCompleted(event domain.Event) {
	e, ok := event.(domain.TranscodeCompletedEvent)
	if !ok {
		return
	}
	p.logger.Info("transcode completed",
		slog.String("kind", string(e.Job.Kind)),
		slog.String("output", e.Job.Output))
}

// Run reads commands from in until "q", end of input, or ctx is done.
func (p *Presenter) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := p.Handle(ctx, line); quit {
				return nil
			}
		}
	}
}

// Handle runs one command line and reports whether it asked to quit.
// Failures are shown on the view; throttled actions are dropped silently.
func (p *Presenter) Handle(ctx context.Context, line string) bool {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	var err error
	switch cmd {
	case "", "p":
		err = p.player.TogglePlayPause()
	case "n":
		err = p.player.Next(ctx)
	case "b":
		err = p.player.Previous(ctx)
	case "s":
		err = p.seek(arg)
	case "r":
		_, err = p.player.ToggleRepeat()
	case "x":
		_, err = p.player.ToggleShuffle()
	case "d":
		err = p.player.ToggleDreamify(ctx)
	case "o":
		err = p.player.Open(ctx, arg)
	case "+":
		err = p.player.EnqueueNext(arg)
	case "a":
		err = p.player.EnqueueLast(arg)
	case "c":
		p.playlist.ClearQueue()
	case "e":
		err = p.export(ctx, arg)
	case "h", "?":
		p.println(Help)
	case "q":
		return true
	default:
		err = domain.NewValidationError("command", cmd, "unknown command, h for help")
	}

	p.report(cmd, err)
	return false
}

func (p *Presenter) seek(arg string) error {
	fraction, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		return domain.NewValidationError("fraction", arg, "not a number")
	}
	return p.player.Seek(fraction)
}

func (p *Presenter) export(ctx context.Context, arg string) error {
	format, ok := domain.ParseFormat(arg)
	if !ok {
		return domain.NewValidationError("format", arg, "must be mp3 or wav")
	}

	out, err := p.player.Export(ctx, format)
	if err != nil {
		return err
	}
	p.println("exported %s", out)
	return nil
}

func (p *Presenter) report(cmd string, err error) {
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrActionThrottled):
		p.logger.Debug("command throttled", slog.String("command", cmd))
	default:
		p.logger.Debug("command failed", slog.String("command", cmd), slog.Any("error", err))
		p.view.Notify("Command failed", fmt.Sprintf("%s: %v", cmd, err))
	}
}

func (p *Presenter) println(format string, args ...any) {
	if v, ok := p.view.(interface{ Println(string, ...any) }); ok {
		v.Println(format, args...)
	}
}

// Shutdown unsubscribes from the bus. It is safe to call more than once.
func (p *Presenter) Shutdown() {
	p.shutdownOnce.Do(func() {
		for _, id := range p.subs {
			p.bus.Unsubscribe(id)
		}
		p.subs = nil
	})
}
