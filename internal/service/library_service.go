// Package service provides the playback, playlist, progress and transcode logic of the Cyder audio core.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/tejashwikalptaru/cyder/internal/domain"
	"github.com/tejashwikalptaru/cyder/internal/ports"
)

// signatureLen is how many leading bytes are read to recognize a file.
const signatureLen = 4

// LibraryService recognizes audio files, lists a track's siblings and keeps the
// duration cache warm for the directory being played.
// All operations are thread-safe via sync.RWMutex.
type LibraryService struct {
	// Dependencies (injected)
	logger    *slog.Logger
	toolchain ports.Toolchain
	metadata  ports.MetadataReader

	// State
	warming    bool
	warmGen    uint64
	cancelWarm context.CancelFunc

	// Concurrency control
	mu sync.RWMutex
}

// NewLibraryService creates a new library service.
func NewLibraryService(
	logger *slog.Logger,
	toolchain ports.Toolchain,
	metadata ports.MetadataReader,
) *LibraryService {
	return &LibraryService{
		logger:    logger.With(slog.String("service", "library")),
		toolchain: toolchain,
		metadata:  metadata,
	}
}

// IsSupportedAudio reports whether path has a supported extension and starts
// with the matching signature: RIFF for wav, an ID3 tag or MPEG frame sync for mp3.
func (s *LibraryService) IsSupportedAudio(path string) bool {
	format, ok := domain.ParseFormat(filepath.Ext(path))
	if !ok {
		return false
	}

	file, err := os.Open(path)
	if err != nil {
		return false
	}
	defer file.Close()

	head := make([]byte, signatureLen)
	if _, err := io.ReadFull(file, head); err != nil {
		return false
	}

	return matchesSignature(format, head)
}

func matchesSignature(format domain.Format, head []byte) bool {
	switch format {
	case domain.FormatWAV:
		return bytes.HasPrefix(head, []byte("RIFF"))
	case domain.FormatMP3:
		if bytes.HasPrefix(head, []byte("ID3")) {
			return true
		}
		return len(head) >= 2 && head[0] == 0xFF && head[1]&0xE0 == 0xE0
	default:
		return false
	}
}

// LoadTrack validates path and returns the track with its tag metadata.
func (s *LibraryService) LoadTrack(path string) (domain.Track, error) {
	track, err := domain.NewTrack(path)
	if err != nil {
		return domain.Track{}, err
	}

	info, err := os.Stat(track.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.Track{}, domain.ErrFileNotFound
		}
		return domain.Track{}, fmt.Errorf("stat %s: %w", track.Path, err)
	}
	if info.IsDir() || !s.IsSupportedAudio(track.Path) {
		return domain.Track{}, domain.ErrUnsupportedFormat
	}

	if s.metadata == nil {
		return track, nil
	}

	tagged, err := s.metadata.Read(track)
	if err != nil {
		// Tags are cosmetic
		s.logger.Debug("metadata unavailable", slog.String("path", track.Path), slog.Any("error", err))
		return track, nil
	}
	return tagged, nil
}

// ListCandidates returns the supported audio files directly inside dir, sorted by name.
func (s *LibraryService) ListCandidates(dir string) ([]domain.Track, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	// ReadDir sorts by file name
	tracks := make([]domain.Track, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		if !s.IsSupportedAudio(path) {
			continue
		}

		track, err := domain.NewTrack(path)
		if err != nil {
			continue
		}
		tracks = append(tracks, track)
	}

	return tracks, nil
}

// WarmDurations probes every candidate in dir so later lookups hit the cache.
// A new call cancels the one in progress. Returns the number of files probed.
func (s *LibraryService) WarmDurations(ctx context.Context, dir string) (int, error) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.cancelWarm != nil {
		s.cancelWarm()
	}
	s.warmGen++
	gen := s.warmGen
	s.warming = true
	s.cancelWarm = cancel
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		if s.warmGen == gen {
			s.warming = false
			s.cancelWarm = nil
		}
		s.mu.Unlock()
	}()

	tracks, err := s.ListCandidates(dir)
	if err != nil {
		return 0, err
	}

	probed := 0
	for _, track := range tracks {
		select {
		case <-ctx.Done():
			return probed, ctx.Err()
		default:
		}

		s.toolchain.ProbeDurationMillis(ctx, track.Path)
		probed++
	}

	s.logger.Debug("duration cache warmed", slog.String("dir", dir), slog.Int("files", probed))
	return probed, nil
}

// IsWarming returns true if a warm-up is in progress.
func (s *LibraryService) IsWarming() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.warming
}

// Shutdown cancels any running warm-up.
func (s *LibraryService) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelWarm != nil {
		s.cancelWarm()
		s.cancelWarm = nil
	}
	return nil
}
