package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tejashwikalptaru/cyder/internal/domain"
	"github.com/tejashwikalptaru/cyder/internal/ports"
)

// PlayerConfig tunes the player.
type PlayerConfig struct {
	// Throttle suppresses control actions that arrive closer together than this
	Throttle time.Duration

	// AutoInstall downloads missing required binaries on Open
	AutoInstall bool
}

// DefaultPlayerConfig returns the player defaults.
func DefaultPlayerConfig() PlayerConfig {
	return PlayerConfig{
		Throttle:    50 * time.Millisecond,
		AutoInstall: true,
	}
}

// PlayerDeps are the collaborators a PlayerService owns or uses.
type PlayerDeps struct {
	Bus       ports.EventBus
	Toolchain ports.Toolchain
	Cache     ports.DurationCache
	History   ports.HistoryRepository
	Notifier  ports.Notifier
	Watcher   ports.DirWatcher

	Library     *LibraryService
	Playback    *PlaybackService
	Playlist    *PlaylistService
	Progress    *ProgressService
	Transcode   *TranscodeService
	Preferences *PreferenceService
}

// PlayerService is one audio player. It loads tracks, drives the engine from the
// playlist, follows the directory being played and owns the shutdown of everything
// it was given.
// All operations are thread-safe; control actions are serialized.
type PlayerService struct {
	// Dependencies (injected)
	logger *slog.Logger
	deps   PlayerDeps
	cfg    PlayerConfig
	now    func() time.Time

	// State
	track      domain.Track
	duration   time.Duration
	cued       time.Duration // where the next Play starts a track that is not paused
	locked     bool
	closed     bool
	lastAction time.Time
	subs       []domain.SubscriptionID

	// Concurrency control
	mu       sync.RWMutex
	opMu     sync.Mutex
	bgCtx    context.Context
	bgCancel context.CancelFunc
	bg       sync.WaitGroup
}

// NewPlayerService creates a player and subscribes it to engine events.
func NewPlayerService(logger *slog.Logger, deps PlayerDeps, cfg PlayerConfig) *PlayerService {
	ctx, cancel := context.WithCancel(context.Background())

	s := &PlayerService{
		logger:   logger.With(slog.String("service", "player")),
		deps:     deps,
		cfg:      cfg,
		now:      time.Now,
		bgCtx:    ctx,
		bgCancel: cancel,
	}

	s.subs = []domain.SubscriptionID{
		deps.Bus.Subscribe(domain.EventTrackCompleted, s.handleTrackCompleted),
		deps.Bus.Subscribe(domain.EventTrackError, s.handleTrackError),
	}

	return s
}

// Open validates path, makes sure the required binaries are installed and loads the track.
// Playback does not start until Play.
func (s *PlayerService) Open(ctx context.Context, path string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.isClosed() {
		return domain.ErrPlayerClosed
	}

	track, err := s.deps.Library.LoadTrack(path)
	if err != nil {
		return err
	}

	if err := s.ensureTools(ctx); err != nil {
		return err
	}

	if err := s.deps.Playback.Stop(); err != nil {
		s.logger.Warn("failed to stop previous track", slog.Any("error", err))
	}
	s.deps.Progress.PauseUpdates()

	s.load(ctx, track)
	return nil
}

// InstallTools installs any missing required binaries and unlocks the player on success.
func (s *PlayerService) InstallTools(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.isClosed() {
		return domain.ErrPlayerClosed
	}
	return s.ensureTools(ctx)
}

// ensureTools downloads missing required binaries. On failure the player locks and the user is notified.
func (s *PlayerService) ensureTools(ctx context.Context) error {
	var missing []string
	for _, binary := range domain.RequiredBinaries {
		if s.deps.Toolchain.IsInstalled(binary) {
			continue
		}

		installed := false
		if s.cfg.AutoInstall {
			ok, err := s.deps.Toolchain.DownloadAndInstall(ctx, binary)
			if err != nil {
				s.logger.Error("failed to install binary", slog.String("binary", string(binary)), slog.Any("error", err))
			}
			installed = ok
		}

		if !installed {
			missing = append(missing, string(binary))
			continue
		}
		s.deps.Bus.Publish(domain.NewToolInstalledEvent(string(binary)))
	}

	s.mu.Lock()
	s.locked = len(missing) > 0
	s.mu.Unlock()

	if len(missing) > 0 {
		s.deps.Bus.Publish(domain.NewToolMissingEvent(missing))
		s.notify("Missing binaries", domain.ErrToolMissing.Error()+": "+strings.Join(missing, ", "))
		return fmt.Errorf("%w: %s", domain.ErrToolMissing, strings.Join(missing, ", "))
	}
	return nil
}

// load makes track current: candidates, duration, history and the directory watch.
func (s *PlayerService) load(ctx context.Context, track domain.Track) {
	if _, err := s.deps.Playlist.RefreshCandidates(track); err != nil {
		s.logger.Warn("failed to list candidates", slog.String("dir", track.Dir()), slog.Any("error", err))
	}

	var duration time.Duration
	if millis := s.deps.Toolchain.ProbeDurationMillis(ctx, track.Path); millis != domain.UnknownDuration {
		duration = time.Duration(millis) * time.Millisecond
	}

	s.mu.Lock()
	previousDir := s.track.Dir()
	s.track = track
	s.duration = duration
	s.cued = 0
	s.mu.Unlock()

	s.deps.Progress.Reset(duration)

	if s.deps.History != nil {
		if err := s.deps.History.SaveLastTrack(track.Path); err != nil {
			s.logger.Warn("failed to save last track", slog.Any("error", err))
		}
	}

	if previousDir != track.Dir() {
		if s.deps.Preferences != nil {
			if err := s.deps.Preferences.SetMusicDir(track.Dir()); err != nil {
				s.logger.Warn("failed to save music directory", slog.Any("error", err))
			}
		}
		s.watch(track.Dir())
	}

	s.logger.Info("track loaded", slog.String("path", track.Path), slog.Duration("duration", duration))
	s.deps.Bus.Publish(domain.NewTrackLoadedEvent(track, duration))
}

// Play starts the loaded track, or resumes it if paused.
func (s *PlayerService) Play() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	track, err := s.control()
	if err != nil {
		return err
	}
	return s.play(track)
}

func (s *PlayerService) play(track domain.Track) error {
	if s.deps.Playback.IsPaused() && s.deps.Playback.Session().Track.Same(track) {
		if err := s.deps.Playback.Resume(); err != nil {
			return err
		}
		s.deps.Progress.ResumeUpdates()
		return nil
	}

	s.mu.RLock()
	offset := s.cued
	s.mu.RUnlock()
	return s.start(track, offset)
}

// start plays track from offset, replacing whatever is playing.
func (s *PlayerService) start(track domain.Track, offset time.Duration) error {
	if err := s.deps.Playback.Stop(); err != nil {
		s.logger.Warn("failed to stop playback", slog.Any("error", err))
	}

	if err := s.deps.Playback.Play(track, offset); err != nil {
		return err
	}

	s.mu.Lock()
	s.cued = 0
	if s.duration == 0 {
		s.duration = s.deps.Playback.Duration()
		if s.duration > 0 {
			s.deps.Progress.Reset(s.duration)
		}
	}
	s.mu.Unlock()

	s.deps.Progress.ResumeUpdates()
	return nil
}

// Pause pauses playback.
func (s *PlayerService) Pause() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if _, err := s.control(); err != nil {
		return err
	}
	return s.pause()
}

func (s *PlayerService) pause() error {
	s.deps.Progress.PauseUpdates()
	return s.deps.Playback.Pause()
}

// TogglePlayPause pauses when playing and plays otherwise.
func (s *PlayerService) TogglePlayPause() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	track, err := s.control()
	if err != nil {
		return err
	}
	if s.deps.Playback.IsPlaying() {
		return s.pause()
	}
	return s.play(track)
}

// Next moves to the playlist's choice after the current track. The new track
// plays only if playback was running. With nothing to play, playback stops.
func (s *PlayerService) Next(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	current, err := s.control()
	if err != nil {
		return err
	}
	return s.advance(ctx, current, s.deps.Playback.IsPlaying())
}

func (s *PlayerService) advance(ctx context.Context, current domain.Track, play bool) error {
	next, ok := s.deps.Playlist.Next(current)
	if !ok {
		s.deps.Progress.PauseUpdates()
		return s.deps.Playback.Stop()
	}
	return s.switchTo(ctx, next, 0, play)
}

// Previous restarts the current track if it has played long enough, otherwise moves
// to the one before it. As with Next, the result plays only if playback was running.
func (s *PlayerService) Previous(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	current, err := s.control()
	if err != nil {
		return err
	}

	prev, ok := s.deps.Playlist.Previous(current, s.deps.Playback.Elapsed())
	if !ok {
		return nil
	}
	return s.switchTo(ctx, prev, 0, s.deps.Playback.IsPlaying())
}

// switchTo makes track current at offset, loading it first if it is not the current
// track. Without play the track is only cued for the next Play.
func (s *PlayerService) switchTo(ctx context.Context, track domain.Track, offset time.Duration, play bool) error {
	s.mu.RLock()
	same := s.track.Same(track)
	s.mu.RUnlock()

	if !same {
		if err := s.deps.Playback.Stop(); err != nil {
			s.logger.Warn("failed to stop playback", slog.Any("error", err))
		}
		loaded, err := s.deps.Library.LoadTrack(track.Path)
		if err != nil {
			s.deps.Bus.Publish(domain.NewTrackErrorEvent(track, err))
			return err
		}
		s.load(ctx, loaded)
		track = loaded
	} else {
		s.deps.Progress.Reset(s.Duration())
	}

	if !play {
		s.cue(offset)
		return nil
	}
	return s.start(track, offset)
}

// cue stops playback and leaves the current track waiting at offset.
func (s *PlayerService) cue(offset time.Duration) {
	if err := s.deps.Playback.Stop(); err != nil {
		s.logger.Warn("failed to stop playback", slog.Any("error", err))
	}
	s.deps.Progress.PauseUpdates()

	s.mu.Lock()
	s.cued = offset
	s.mu.Unlock()
}

// Seek moves playback to fraction of the track and plays from there.
func (s *PlayerService) Seek(fraction float64) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	track, err := s.control()
	if err != nil {
		return err
	}

	offset, err := s.deps.Progress.SetPosition(fraction)
	if err != nil {
		return err
	}
	return s.start(track, offset)
}

// EnqueueNext queues the file at path to play after the current track.
func (s *PlayerService) EnqueueNext(path string) error {
	track, err := s.queueable(path)
	if err != nil {
		return err
	}
	return s.deps.Playlist.EnqueueNext(track)
}

// EnqueueLast queues the file at path after everything already queued.
func (s *PlayerService) EnqueueLast(path string) error {
	track, err := s.queueable(path)
	if err != nil {
		return err
	}
	return s.deps.Playlist.EnqueueLast(track)
}

func (s *PlayerService) queueable(path string) (domain.Track, error) {
	if s.isClosed() {
		return domain.Track{}, domain.ErrPlayerClosed
	}
	return s.deps.Library.LoadTrack(path)
}

// ToggleRepeat flips repeat mode. A track must be loaded.
func (s *PlayerService) ToggleRepeat() (bool, error) {
	if _, err := s.loaded(); err != nil {
		return false, err
	}
	return s.deps.Playlist.ToggleRepeat(), nil
}

// ToggleShuffle flips shuffle mode. A track must be loaded.
func (s *PlayerService) ToggleShuffle() (bool, error) {
	if _, err := s.loaded(); err != nil {
		return false, err
	}
	return s.deps.Playlist.ToggleShuffle(), nil
}

// ToggleDreamify switches between a track and its dreamy version, creating the
// dreamy version next to the track if it does not exist yet. Playback continues
// at the same fraction of the track.
func (s *PlayerService) ToggleDreamify(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	current, err := s.control()
	if err != nil {
		return err
	}

	fraction := 0.0
	if total := s.Duration(); total > 0 {
		fraction = min(1, float64(s.deps.Playback.Elapsed())/float64(total))
	}
	wasPlaying := s.deps.Playback.IsPlaying()

	target, err := s.dreamifyTarget(ctx, current)
	if err != nil {
		return err
	}

	if err := s.deps.Playback.Stop(); err != nil {
		s.logger.Warn("failed to stop playback", slog.Any("error", err))
	}
	loaded, err := s.deps.Library.LoadTrack(target)
	if err != nil {
		return err
	}
	s.load(ctx, loaded)

	offset := time.Duration(fraction * float64(s.Duration()))
	if !wasPlaying {
		s.cue(offset)
		return nil
	}
	return s.start(loaded, offset)
}

// dreamifyTarget returns the path to switch to: the plain sibling of a dreamy
// track, an existing dreamy sibling, or a freshly dreamified copy.
func (s *PlayerService) dreamifyTarget(ctx context.Context, current domain.Track) (string, error) {
	if current.Dreamified() {
		for _, format := range []domain.Format{domain.FormatMP3, domain.FormatWAV} {
			candidate := filepath.Join(current.Dir(), current.PlainName()+format.Extension())
			if fileExists(candidate) {
				return candidate, nil
			}
		}
		return "", fmt.Errorf("%w: no plain version of %s", domain.ErrFileNotFound, current.Name())
	}

	sibling := filepath.Join(current.Dir(), current.DreamyName()+domain.FormatMP3.Extension())
	if fileExists(sibling) {
		return sibling, nil
	}

	output, err := s.deps.Transcode.Dreamify(ctx, current.Path)
	if err != nil {
		s.notifyTranscodeFailure(err)
		return "", err
	}
	if err := MoveFile(output, sibling); err != nil {
		return "", fmt.Errorf("move dreamy output: %w", err)
	}
	return sibling, nil
}

// Export converts the current track to format and places it next to the track.
func (s *PlayerService) Export(ctx context.Context, format domain.Format) (string, error) {
	current, err := s.loaded()
	if err != nil {
		return "", err
	}
	if current.Format == format {
		return "", domain.NewValidationError("format", format, "track is already in this format")
	}

	output, err := s.deps.Transcode.Convert(ctx, current.Path, format)
	if err != nil {
		s.notifyTranscodeFailure(err)
		return "", err
	}

	dest := filepath.Join(current.Dir(), current.Name()+format.Extension())
	if err := MoveFile(output, dest); err != nil {
		return "", fmt.Errorf("move export: %w", err)
	}
	return dest, nil
}

// State returns a snapshot of the player.
func (s *PlayerService) State() domain.PlayerState {
	s.mu.RLock()
	track, duration, locked := s.track, s.duration, s.locked
	s.mu.RUnlock()

	if duration == 0 {
		duration = s.deps.Playback.Duration()
	}

	playlist := s.deps.Playlist.Snapshot()
	return domain.PlayerState{
		Track:    track,
		Session:  s.deps.Playback.Session(),
		Duration: duration,
		Elapsed:  s.deps.Playback.Elapsed(),
		Repeat:   playlist.Repeat,
		Shuffle:  playlist.Shuffle,
		Queue:    playlist.Queue,
		Locked:   locked,
	}
}

// Duration returns the length of the loaded track, zero if unknown.
func (s *PlayerService) Duration() time.Duration {
	s.mu.RLock()
	duration := s.duration
	s.mu.RUnlock()

	if duration == 0 {
		duration = s.deps.Playback.Duration()
	}
	return duration
}

// ProgressLabel formats update in the user's preferred label mode.
func (s *PlayerService) ProgressLabel(update domain.ProgressUpdate) string {
	if s.deps.Preferences == nil {
		return FormatLabel(update, false)
	}
	return s.deps.Preferences.ProgressLabel(update)
}

// Close stops playback and tears down everything the player owns. Closing twice is a no-op.
func (s *PlayerService) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	for _, id := range subs {
		s.deps.Bus.Unsubscribe(id)
	}

	var errs []error
	errs = append(errs, s.deps.Playback.Shutdown())
	errs = append(errs, s.deps.Progress.Shutdown())

	if n := s.deps.Transcode.Discard(); n > 0 {
		s.logger.Info("discarding outstanding transcodes", slog.Int("count", n))
	}

	if s.deps.Watcher != nil {
		errs = append(errs, s.deps.Watcher.Close())
	}
	errs = append(errs, s.deps.Library.Shutdown())

	s.bgCancel()
	s.bg.Wait()

	s.logger.Info("player closed")
	s.deps.Bus.Publish(domain.NewPlayerClosedEvent())

	return errors.Join(errs...)
}

// handleTrackCompleted auto-advances. It runs on the engine's decode goroutine
// after that goroutine has released the engine.
func (s *PlayerService) handleTrackCompleted(event domain.Event) {
	completed, ok := event.(domain.TrackCompletedEvent)
	if !ok {
		return
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.isClosed() {
		return
	}

	// A user action may already have moved on
	s.mu.RLock()
	current := s.track
	s.mu.RUnlock()
	if !current.Same(completed.Track) || s.deps.Playback.IsPlaying() {
		return
	}

	if err := s.advance(s.bgCtx, current, true); err != nil {
		s.logger.Warn("auto-advance failed", slog.String("from", current.Path), slog.Any("error", err))
	}
}

func (s *PlayerService) handleTrackError(event domain.Event) {
	failed, ok := event.(domain.TrackErrorEvent)
	if !ok {
		return
	}
	s.notify("Playback failed", fmt.Sprintf("%s: %v", failed.Track.DisplayName(), failed.Error))
}

// watch follows dir so candidate and duration caches stay current.
func (s *PlayerService) watch(dir string) {
	s.warm(dir)

	if s.deps.Watcher == nil {
		return
	}
	err := s.deps.Watcher.Watch(dir, func(changed string) {
		if s.deps.Cache != nil {
			if err := s.deps.Cache.InvalidateDir(changed); err != nil {
				s.logger.Warn("failed to invalidate durations", slog.String("dir", changed), slog.Any("error", err))
			}
		}
		s.deps.Bus.Publish(domain.NewCandidatesChangedEvent(changed))
		s.warm(changed)
	})
	if err != nil {
		s.logger.Warn("failed to watch directory", slog.String("dir", dir), slog.Any("error", err))
	}
}

// warm pre-caches the durations of dir in the background.
func (s *PlayerService) warm(dir string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}

	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		if _, err := s.deps.Library.WarmDurations(s.bgCtx, dir); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Debug("duration warm-up stopped", slog.String("dir", dir), slog.Any("error", err))
		}
	}()
}

// control checks that a control action may run now and returns the current track.
func (s *PlayerService) control() (domain.Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.Track{}, domain.ErrPlayerClosed
	}
	if s.locked {
		return domain.Track{}, domain.ErrPlayerLocked
	}
	if s.track.IsZero() {
		return domain.Track{}, domain.ErrNoTrackLoaded
	}

	now := s.now()
	if s.cfg.Throttle > 0 && !s.lastAction.IsZero() && now.Sub(s.lastAction) < s.cfg.Throttle {
		return domain.Track{}, domain.ErrActionThrottled
	}
	s.lastAction = now

	return s.track, nil
}

// loaded returns the current track without throttling.
func (s *PlayerService) loaded() (domain.Track, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return domain.Track{}, domain.ErrPlayerClosed
	}
	if s.track.IsZero() {
		return domain.Track{}, domain.ErrNoTrackLoaded
	}
	return s.track, nil
}

func (s *PlayerService) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func (s *PlayerService) notify(title, message string) {
	if s.deps.Notifier != nil {
		s.deps.Notifier.Notify(title, message)
	}
}

func (s *PlayerService) notifyTranscodeFailure(err error) {
	var terr *domain.TranscodeError
	if errors.As(err, &terr) {
		s.notify(terr.Op+" failed", err.Error())
		return
	}
	s.notify("transcode failed", err.Error())
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// MoveFile renames src to dst, copying when they are on different filesystems.
func MoveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Remove(src)
}
