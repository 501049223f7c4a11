package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tejashwikalptaru/cyder/internal/domain"
	"github.com/tejashwikalptaru/cyder/internal/future"
	"github.com/tejashwikalptaru/cyder/internal/ports"
)

// DefaultDreamifyFilter is the ffmpeg audio filter that gives tracks their muffled sound.
const DefaultDreamifyFilter = "highpass=f=2, lowpass=f=300"

// TranscodeConfig tunes the transcode service.
type TranscodeConfig struct {
	// TempDir receives every output before callers move it
	TempDir string

	// DreamifyFilter is passed to ffmpeg's -filter:a
	DreamifyFilter string

	// DurationTolerance is how far a dreamified output's duration may differ from its source
	DurationTolerance time.Duration

	// Timeout bounds one whole job, process and output wait included
	Timeout time.Duration

	// MatchTimeout bounds the wait for a dreamified output to reach its source's duration
	MatchTimeout time.Duration
}

// DefaultTranscodeConfig returns the defaults rooted at tempDir.
func DefaultTranscodeConfig(tempDir string) TranscodeConfig {
	return TranscodeConfig{
		TempDir:           tempDir,
		DreamifyFilter:    DefaultDreamifyFilter,
		DurationTolerance: 50 * time.Millisecond,
		Timeout:           10 * time.Minute,
		MatchTimeout:      30 * time.Second,
	}
}

// TranscodeService runs ffmpeg and youtube-dl jobs whose outputs are decided up front
// and considered done only once the file has stopped changing.
// All operations are thread-safe via sync.Mutex.
type TranscodeService struct {
	// Dependencies (injected)
	logger    *slog.Logger
	toolchain ports.Toolchain
	waiter    ports.OutputWaiter
	tagger    ports.MetadataWriter
	bus       ports.EventBus

	// Configuration
	cfg TranscodeConfig

	// State
	jobs map[string]*domain.TranscodeJob

	// Concurrency control
	mu sync.Mutex
	wg sync.WaitGroup
}

// NewTranscodeService creates a new transcode service.
func NewTranscodeService(
	logger *slog.Logger,
	toolchain ports.Toolchain,
	waiter ports.OutputWaiter,
	tagger ports.MetadataWriter,
	bus ports.EventBus,
	cfg TranscodeConfig,
) *TranscodeService {
	defaults := DefaultTranscodeConfig(cfg.TempDir)
	if cfg.DreamifyFilter == "" {
		cfg.DreamifyFilter = defaults.DreamifyFilter
	}
	if cfg.DurationTolerance <= 0 {
		cfg.DurationTolerance = defaults.DurationTolerance
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.MatchTimeout <= 0 {
		cfg.MatchTimeout = defaults.MatchTimeout
	}

	return &TranscodeService{
		logger:    logger.With(slog.String("service", "transcode")),
		toolchain: toolchain,
		waiter:    waiter,
		tagger:    tagger,
		bus:       bus,
		cfg:       cfg,
		jobs:      make(map[string]*domain.TranscodeJob),
	}
}

// Convert writes path in format to <tmp>/<name>.<job>.<ext> and returns the output path.
// Converting a file to its own format is rejected.
func (s *TranscodeService) Convert(ctx context.Context, path string, format domain.Format) (string, error) {
	result := s.convert(ctx, path, format)
	return result.Output, result.Err
}

// ConvertAsync runs Convert on its own goroutine.
func (s *TranscodeService) ConvertAsync(path string, format domain.Format) *future.Future[domain.TranscodeResult] {
	return s.async(func(ctx context.Context) domain.TranscodeResult { return s.convert(ctx, path, format) })
}

func (s *TranscodeService) convert(ctx context.Context, path string, format domain.Format) domain.TranscodeResult {
	track, failed := s.source(domain.TranscodeConvert, path, format)
	if failed != nil {
		return *failed
	}
	if track.Format == format {
		return rejected(domain.TranscodeConvert, path, format,
			domain.NewValidationError("format", format, "source is already in this format"))
	}

	job := s.newJob(domain.TranscodeConvert, track.Path, format, s.tempOutput(track.Name(), format))
	output := job.Output

	return s.execute(ctx, job, func(ctx context.Context) error {
		if err := s.runTool(ctx, domain.BinaryFFmpeg, "-y", "-i", track.Path, output); err != nil {
			return err
		}
		return s.waiter.WaitStable(ctx, output)
	})
}

// Dreamify filters path into <tmp>/<name>_Dreamy.<job>.mp3, waits until the output's
// duration matches the source, and tags it with the "(dreamy)" title.
func (s *TranscodeService) Dreamify(ctx context.Context, path string) (string, error) {
	result := s.dreamify(ctx, path)
	return result.Output, result.Err
}

// DreamifyAsync runs Dreamify on its own goroutine.
func (s *TranscodeService) DreamifyAsync(path string) *future.Future[domain.TranscodeResult] {
	return s.async(func(ctx context.Context) domain.TranscodeResult { return s.dreamify(ctx, path) })
}

func (s *TranscodeService) dreamify(ctx context.Context, path string) domain.TranscodeResult {
	track, failed := s.source(domain.TranscodeDreamify, path, domain.FormatMP3)
	if failed != nil {
		return *failed
	}

	job := s.newJob(domain.TranscodeDreamify, track.Path, domain.FormatMP3, s.tempOutput(track.DreamyName(), domain.FormatMP3))
	output := job.Output

	return s.execute(ctx, job, func(ctx context.Context) error {
		if err := s.runTool(ctx, domain.BinaryFFmpeg,
			"-y", "-i", track.Path, "-filter:a", s.cfg.DreamifyFilter, output); err != nil {
			return err
		}
		if err := s.waiter.WaitStable(ctx, output); err != nil {
			return err
		}
		if err := s.awaitDuration(ctx, track.Path, output); err != nil {
			return err
		}

		if s.tagger != nil {
			if err := s.tagger.WriteTitle(output, track.PlainName()+" (dreamy)"); err != nil {
				s.logger.Warn("failed to tag dreamy output", slog.String("path", output), slog.Any("error", err))
			}
		}
		return nil
	})
}

// Fetch extracts the audio of url into destDir as <uuid>.mp3 and returns its path.
func (s *TranscodeService) Fetch(ctx context.Context, url, destDir string) (string, error) {
	result := s.fetch(ctx, url, destDir)
	return result.Output, result.Err
}

// FetchAsync runs Fetch on its own goroutine.
func (s *TranscodeService) FetchAsync(url, destDir string) *future.Future[domain.TranscodeResult] {
	return s.async(func(ctx context.Context) domain.TranscodeResult { return s.fetch(ctx, url, destDir) })
}

func (s *TranscodeService) fetch(ctx context.Context, url, destDir string) domain.TranscodeResult {
	if strings.TrimSpace(url) == "" {
		return rejected(domain.TranscodeFetch, url, domain.FormatMP3, domain.ErrInvalidFilePath)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return rejected(domain.TranscodeFetch, url, domain.FormatMP3, err)
	}

	job := s.newJob(domain.TranscodeFetch, url, domain.FormatMP3, func(id string) string {
		return filepath.Join(destDir, id+domain.FormatMP3.Extension())
	})
	name, output := job.ID, job.Output

	return s.execute(ctx, job, func(ctx context.Context) error {
		if err := s.runTool(ctx, domain.BinaryYoutubeDL,
			"--extract-audio",
			"--audio-format", "mp3",
			"--output", filepath.Join(destDir, name+".%(ext)s"),
			url); err != nil {
			return err
		}
		return s.waiter.WaitStable(ctx, output)
	})
}

func (s *TranscodeService) async(fn func(ctx context.Context) domain.TranscodeResult) *future.Future[domain.TranscodeResult] {
	s.wg.Add(1)
	return future.Go(func() domain.TranscodeResult {
		defer s.wg.Done()
		return fn(context.Background())
	})
}

// rejected is the result of a request that failed validation before a job existed.
func rejected(kind domain.TranscodeKind, source string, target domain.Format, err error) domain.TranscodeResult {
	return domain.TranscodeResult{
		Job: domain.TranscodeJob{Kind: kind, Source: source, Target: target, Status: domain.JobFailed, CreatedAt: time.Now()},
		Err: domain.NewTranscodeError(string(kind), source, err),
	}
}

// Jobs returns the outstanding jobs.
func (s *TranscodeService) Jobs() []domain.TranscodeJob {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make([]domain.TranscodeJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, *job)
	}
	return jobs
}

// Discard marks every outstanding job so its result is dropped.
// Running processes are left to finish.
func (s *TranscodeService) Discard() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	discarded := 0
	for _, job := range s.jobs {
		if job.Status == domain.JobPending || job.Status == domain.JobRunning {
			job.Status = domain.JobDiscarded
			discarded++
		}
	}
	if discarded > 0 {
		s.logger.Debug("discarded transcode jobs", slog.Int("count", discarded))
	}
	return discarded
}

// Wait blocks until every async job has returned.
func (s *TranscodeService) Wait() {
	s.wg.Wait()
}

// source validates the input file of a job.
func (s *TranscodeService) source(kind domain.TranscodeKind, path string, target domain.Format) (domain.Track, *domain.TranscodeResult) {
	track, err := domain.NewTrack(path)
	if err == nil {
		_, err = os.Stat(track.Path)
		if errors.Is(err, fs.ErrNotExist) {
			err = domain.ErrFileNotFound
		}
	}
	if err == nil {
		err = os.MkdirAll(s.cfg.TempDir, 0o755)
	}
	if err != nil {
		result := rejected(kind, path, target, err)
		return domain.Track{}, &result
	}
	return track, nil
}

// tempOutput names a job's output in the temp directory. The job ID keeps
// concurrent jobs on same-named sources apart.
func (s *TranscodeService) tempOutput(name string, format domain.Format) func(id string) string {
	return func(id string) string {
		return filepath.Join(s.cfg.TempDir, name+"."+id+format.Extension())
	}
}

func (s *TranscodeService) newJob(kind domain.TranscodeKind, source string, target domain.Format, output func(id string) string) *domain.TranscodeJob {
	id := uuid.NewString()
	job := &domain.TranscodeJob{
		ID:        id,
		Kind:      kind,
		Source:    source,
		Target:    target,
		Output:    output(id),
		Status:    domain.JobPending,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	return job
}

// execute runs work for job under the job timeout and settles the job's status.
// Failed outputs are removed so no partial file is ever returned.
func (s *TranscodeService) execute(ctx context.Context, job *domain.TranscodeJob, work func(ctx context.Context) error) domain.TranscodeResult {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	snapshot := s.setStatus(job, domain.JobRunning)
	s.logger.Info("transcode started",
		slog.String("job", job.ID),
		slog.String("kind", string(job.Kind)),
		slog.String("source", job.Source))
	s.bus.Publish(domain.NewTranscodeStartedEvent(snapshot))

	started := time.Now()
	err := work(ctx)

	s.mu.Lock()
	discarded := job.Status == domain.JobDiscarded
	delete(s.jobs, job.ID)
	s.mu.Unlock()

	if err != nil {
		_ = os.Remove(job.Output)
		terr := domain.NewTranscodeError(string(job.Kind), job.Source, err)

		if discarded {
			return domain.TranscodeResult{Job: *job, Err: terr}
		}

		job.Status = domain.JobFailed
		s.logger.Warn("transcode failed", slog.String("job", job.ID), slog.Any("error", err))
		s.bus.Publish(domain.NewTranscodeFailedEvent(*job, terr))
		return domain.TranscodeResult{Job: *job, Err: terr}
	}

	if discarded {
		s.logger.Debug("transcode result discarded", slog.String("job", job.ID), slog.String("output", job.Output))
		return domain.TranscodeResult{
			Job: *job,
			Err: domain.NewTranscodeError(string(job.Kind), job.Source, domain.ErrJobDiscarded),
		}
	}

	job.Status = domain.JobCompleted
	s.logger.Info("transcode completed",
		slog.String("job", job.ID),
		slog.String("output", job.Output),
		slog.Duration("took", time.Since(started).Round(time.Millisecond)))
	s.bus.Publish(domain.NewTranscodeCompletedEvent(*job))

	return domain.TranscodeResult{Job: *job, Output: job.Output}
}

// setStatus moves job to status unless it was discarded, and returns a copy.
func (s *TranscodeService) setStatus(job *domain.TranscodeJob, status domain.TranscodeStatus) domain.TranscodeJob {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job.Status != domain.JobDiscarded {
		job.Status = status
	}
	return *job
}

// runTool runs binary and turns a non-zero exit into an error carrying the end of stderr.
func (s *TranscodeService) runTool(ctx context.Context, binary domain.Binary, args ...string) error {
	result, err := s.toolchain.Run(ctx, binary, args...)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("%s exited with status %d: %s", binary, result.ExitCode, strings.TrimSpace(result.Stderr))
	}
	return nil
}

// awaitDuration polls the output's duration with exponential backoff until it is
// within tolerance of the source's. A source of unknown length skips the check.
// An output that stays unprobeable for the whole match timeout is accepted,
// since the stable-file wait already passed.
func (s *TranscodeService) awaitDuration(ctx context.Context, source, output string) error {
	want := s.toolchain.ProbeDurationMillis(ctx, source)
	if want == domain.UnknownDuration {
		return nil
	}

	matchCtx, cancel := context.WithTimeout(ctx, s.cfg.MatchTimeout)
	defer cancel()

	tolerance := s.cfg.DurationTolerance.Milliseconds()
	delay := 50 * time.Millisecond

	for {
		got := s.toolchain.ProbeDurationMillis(matchCtx, output)
		if got != domain.UnknownDuration && math.Abs(float64(got-want)) <= float64(tolerance) {
			return nil
		}

		select {
		case <-matchCtx.Done():
			if got == domain.UnknownDuration && ctx.Err() == nil {
				s.logger.Warn("output duration unknown, accepting stable file",
					slog.String("output", output), slog.Duration("waited", s.cfg.MatchTimeout))
				return nil
			}
			return fmt.Errorf("output duration %dms never reached %dms: %w", got, want, matchCtx.Err())
		case <-time.After(delay):
		}
		delay = min(delay*2, time.Second)
	}
}
