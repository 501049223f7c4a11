package service

import (
	"errors"
	"io/fs"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tejashwikalptaru/cyder/internal/domain"
	"github.com/tejashwikalptaru/cyder/internal/ports"
)

// PlaybackConfig tunes the playback engine.
type PlaybackConfig struct {
	// ReactionOffset is subtracted from the position on pause so resume replays what the listener missed
	ReactionOffset time.Duration

	// MaxRestarts bounds decoder restarts after transient failures, per session
	MaxRestarts int
}

// DefaultPlaybackConfig returns the engine defaults.
func DefaultPlaybackConfig() PlaybackConfig {
	return PlaybackConfig{
		ReactionOffset: 100 * time.Millisecond,
		MaxRestarts:    10,
	}
}

// playbackSession is the engine's live view of a domain.PlaybackSession.
type playbackSession struct {
	info   domain.PlaybackSession
	stream ports.DecodedStream
	length time.Duration

	// done is closed when the decode goroutine of the current run exits
	done chan struct{}
}

// PlaybackService plays one track at a time through a ports.Decoder.
// A capacity-1 permit guarantees at most one decode goroutine; pause and stop
// close the stream under it and wait for it to exit.
// All operations are thread-safe via sync.RWMutex.
type PlaybackService struct {
	// Dependencies (injected)
	logger  *slog.Logger
	decoder ports.Decoder
	bus     ports.EventBus

	// Configuration
	cfg PlaybackConfig

	// State
	session *playbackSession
	closed  bool

	// Concurrency control
	mu     sync.RWMutex
	permit chan struct{}
	wg     sync.WaitGroup
}

// NewPlaybackService creates a new playback engine.
func NewPlaybackService(
	logger *slog.Logger,
	decoder ports.Decoder,
	bus ports.EventBus,
	cfg PlaybackConfig,
) *PlaybackService {
	if cfg.ReactionOffset < 0 {
		cfg.ReactionOffset = 0
	}
	if cfg.MaxRestarts < 0 {
		cfg.MaxRestarts = 0
	}

	return &PlaybackService{
		logger:  logger.With(slog.String("service", "playback")),
		decoder: decoder,
		bus:     bus,
		cfg:     cfg,
		permit:  make(chan struct{}, 1),
	}
}

// Play starts a new session for track at startOffset.
// It fails with domain.ErrPlaybackInProgress while another session is playing.
func (s *PlaybackService) Play(track domain.Track, startOffset time.Duration) error {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		return domain.ErrPlayerClosed
	}
	if s.session != nil && s.session.info.Status == domain.SessionPlaying {
		s.mu.Unlock()
		return domain.ErrPlaybackInProgress
	}
	if !s.acquire() {
		// The previous decode goroutine has not released the permit yet
		s.mu.Unlock()
		return domain.ErrPlaybackInProgress
	}

	if prev := s.session; prev != nil && prev.info.Status == domain.SessionPaused {
		prev.info.Status = domain.SessionFinished
		prev.info.Reason = domain.FinishStopped
	}

	stream, err := s.openAt(track.Path, startOffset)
	if err != nil {
		s.release()
		s.mu.Unlock()

		s.logger.Warn("failed to start playback", slog.String("path", track.Path), slog.Any("error", err))
		s.bus.Publish(domain.NewTrackErrorEvent(track, err))
		return err
	}

	sess := &playbackSession{
		info: domain.PlaybackSession{
			ID:        uuid.NewString(),
			Track:     track,
			Offset:    startOffset,
			Status:    domain.SessionPlaying,
			StartedAt: time.Now(),
		},
		stream: stream,
		length: stream.Length(),
		done:   make(chan struct{}),
	}
	s.session = sess
	s.startWorker(sess)
	s.mu.Unlock()

	s.logger.Debug("playback started",
		slog.String("session", sess.info.ID),
		slog.String("path", track.Path),
		slog.Duration("offset", startOffset))
	s.bus.Publish(domain.NewTrackStartedEvent(sess.info.ID, track, startOffset, false))

	return nil
}

// Pause closes the stream at the current position minus the reaction offset.
// It is a no-op unless a session is playing.
func (s *PlaybackService) Pause() error {
	s.mu.Lock()

	sess := s.session
	if sess == nil || sess.info.Status != domain.SessionPlaying {
		s.mu.Unlock()
		return nil
	}

	offset := sess.stream.Position() - s.cfg.ReactionOffset
	offset = max(0, offset)
	if sess.length > 0 {
		offset = min(offset, sess.length)
	}

	sess.info.Status = domain.SessionPaused
	sess.info.Offset = offset
	stream, done, id, track := sess.stream, sess.done, sess.info.ID, sess.info.Track
	s.mu.Unlock()

	if err := stream.Close(); err != nil {
		s.logger.Warn("failed to close stream on pause", slog.Any("error", err))
	}
	<-done

	s.logger.Debug("playback paused", slog.String("session", id), slog.Duration("offset", offset))
	s.bus.Publish(domain.NewTrackPausedEvent(id, track, offset))

	return nil
}

// Resume continues a paused session from its stored offset.
// It fails with domain.ErrNotPaused unless the session is paused.
func (s *PlaybackService) Resume() error {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		return domain.ErrPlayerClosed
	}
	sess := s.session
	if sess == nil || sess.info.Status != domain.SessionPaused {
		s.mu.Unlock()
		return domain.ErrNotPaused
	}
	if !s.acquire() {
		s.mu.Unlock()
		return domain.ErrPlaybackInProgress
	}

	stream, err := s.openAt(sess.info.Track.Path, sess.info.Offset)
	if err != nil {
		s.release()
		sess.info.Status = domain.SessionFinished
		sess.info.Reason = domain.FinishFailed
		track := sess.info.Track
		s.mu.Unlock()

		s.logger.Warn("failed to resume playback", slog.String("path", track.Path), slog.Any("error", err))
		s.bus.Publish(domain.NewTrackErrorEvent(track, err))
		return err
	}

	sess.stream = stream
	sess.done = make(chan struct{})
	sess.info.Status = domain.SessionPlaying
	s.startWorker(sess)
	id, track, offset := sess.info.ID, sess.info.Track, sess.info.Offset
	s.mu.Unlock()

	s.logger.Debug("playback resumed", slog.String("session", id), slog.Duration("offset", offset))
	s.bus.Publish(domain.NewTrackStartedEvent(id, track, offset, true))

	return nil
}

// Stop finishes the current session from any state. Stopping twice is a no-op.
func (s *PlaybackService) Stop() error {
	s.mu.Lock()

	sess := s.session
	if sess == nil || sess.info.Status == domain.SessionFinished {
		s.mu.Unlock()
		return nil
	}

	sess.info.Status = domain.SessionFinished
	sess.info.Reason = domain.FinishStopped
	stream, done, id, track := sess.stream, sess.done, sess.info.ID, sess.info.Track
	s.mu.Unlock()

	if err := stream.Close(); err != nil {
		s.logger.Warn("failed to close stream on stop", slog.Any("error", err))
	}
	<-done

	s.logger.Debug("playback stopped", slog.String("session", id))
	s.bus.Publish(domain.NewTrackStoppedEvent(id, track))

	return nil
}

// IsPlaying returns true if a session exists and is playing.
func (s *PlaybackService) IsPlaying() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session != nil && s.session.info.Status == domain.SessionPlaying
}

// IsPaused returns true if a session exists and is paused.
func (s *PlaybackService) IsPaused() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session != nil && s.session.info.Status == domain.SessionPaused
}

// Elapsed returns the live position while playing, the stored offset while paused, and zero otherwise.
func (s *PlaybackService) Elapsed() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.session == nil {
		return 0
	}
	switch s.session.info.Status {
	case domain.SessionPlaying:
		return s.session.stream.Position()
	case domain.SessionPaused:
		return s.session.info.Offset
	default:
		return 0
	}
}

// Duration returns the decoder-reported length of the current session, zero if unknown.
func (s *PlaybackService) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.session == nil {
		return 0
	}
	return s.session.length
}

// Session returns a snapshot of the current session, zero if none.
func (s *PlaybackService) Session() domain.PlaybackSession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.session == nil {
		return domain.PlaybackSession{}
	}
	return s.session.info
}

// Shutdown stops playback and waits for the decode goroutine to exit.
// Play and Resume fail with domain.ErrPlayerClosed afterwards.
func (s *PlaybackService) Shutdown() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	err := s.Stop()
	s.wg.Wait()
	return err
}

func (s *PlaybackService) acquire() bool {
	select {
	case s.permit <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *PlaybackService) release() {
	<-s.permit
}

// openAt opens path and seeks to offset. Caller holds the lock.
func (s *PlaybackService) openAt(path string, offset time.Duration) (ports.DecodedStream, error) {
	stream, err := s.decoder.Open(path)
	if err != nil {
		return nil, err
	}
	if offset > 0 {
		if err := stream.Seek(offset); err != nil {
			_ = stream.Close()
			return nil, err
		}
	}
	return stream, nil
}

// startWorker runs the decode loop for the current run of sess. Caller holds the lock and the permit.
func (s *PlaybackService) startWorker(sess *playbackSession) {
	s.wg.Add(1)
	go s.run(sess, sess.stream, sess.done)
}

// run drives one run of a session until it ends, is closed, or fails for good.
// The permit is released and done closed before any event is published, so
// handlers may start the next session.
func (s *PlaybackService) run(sess *playbackSession, stream ports.DecodedStream, done chan struct{}) {
	defer s.wg.Done()

	var (
		completed bool
		failure   error
	)

	for {
		err := stream.Play()
		if err == nil {
			s.mu.Lock()
			if sess.stream == stream && sess.info.Status == domain.SessionPlaying {
				sess.info.Status = domain.SessionFinished
				sess.info.Reason = domain.FinishCompleted
				completed = true
			}
			s.mu.Unlock()
			break
		}

		if errors.Is(err, domain.ErrStreamClosed) {
			break
		}

		next, restartErr := s.restart(sess, stream, err)
		if restartErr != nil {
			failure = restartErr
			break
		}
		if next == nil {
			// Paused or stopped while failing
			break
		}
		stream = next
	}

	_ = stream.Close()
	s.release()
	close(done)

	switch {
	case completed:
		s.logger.Debug("playback completed", slog.String("session", sess.info.ID))
		s.bus.Publish(domain.NewTrackCompletedEvent(sess.info.ID, sess.info.Track))
	case failure != nil:
		s.logger.Error("playback failed", slog.String("path", sess.info.Track.Path), slog.Any("error", failure))
		s.bus.Publish(domain.NewTrackErrorEvent(sess.info.Track, failure))
	}
}

// restart reopens the track at the failed stream's position. It returns a nil
// stream without error when the session is no longer playing, and an error
// when the failure is permanent or the restart budget is spent.
func (s *PlaybackService) restart(sess *playbackSession, failed ports.DecodedStream, cause error) (ports.DecodedStream, error) {
	s.mu.Lock()

	if sess.stream != failed || sess.info.Status != domain.SessionPlaying {
		s.mu.Unlock()
		return nil, nil
	}

	track := sess.info.Track
	if errors.Is(cause, domain.ErrFileNotFound) || errors.Is(cause, fs.ErrNotExist) {
		s.finishFailedLocked(sess)
		s.mu.Unlock()
		return nil, &domain.DecodeError{Path: track.Path, Attempt: sess.info.Restarts, Err: cause}
	}

	sess.info.Restarts++
	attempt := sess.info.Restarts
	if attempt > s.cfg.MaxRestarts {
		s.finishFailedLocked(sess)
		s.mu.Unlock()
		return nil, &domain.DecodeError{Path: track.Path, Attempt: attempt - 1, Err: cause}
	}

	position := failed.Position()
	_ = failed.Close()

	next, err := s.openAt(track.Path, position)
	if err != nil {
		s.finishFailedLocked(sess)
		s.mu.Unlock()
		return nil, &domain.DecodeError{Path: track.Path, Attempt: attempt, Err: err}
	}
	sess.stream = next
	id := sess.info.ID
	s.mu.Unlock()

	s.logger.Warn("restarting track after decode failure",
		slog.String("path", track.Path),
		slog.Int("attempt", attempt),
		slog.Duration("position", position),
		slog.Any("error", cause))
	s.bus.Publish(domain.NewTrackRestartedEvent(id, track, attempt, position, cause))

	return next, nil
}

func (s *PlaybackService) finishFailedLocked(sess *playbackSession) {
	sess.info.Status = domain.SessionFinished
	sess.info.Reason = domain.FinishFailed
}
