package toolchain

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/tejashwikalptaru/cyder/internal/domain"
	"github.com/tejashwikalptaru/cyder/internal/future"
	"github.com/tejashwikalptaru/cyder/internal/ports"
)

var errNoDuration = errors.New("no duration in probe output")

// ProbeDurationMillis runs ffprobe on path and returns its duration in milliseconds.
// Every failure is logged and reported as domain.UnknownDuration.
func (t *Toolchain) ProbeDurationMillis(ctx context.Context, path string) int64 {
	info, err := t.stat(path)
	if err != nil || info.IsDir() {
		t.logger.Debug("probe skipped, file missing", slog.String("path", path))
		return domain.UnknownDuration
	}

	key := ports.DurationKey{Path: path, Size: info.Size(), ModTime: info.ModTime()}
	if t.cache != nil {
		if millis, ok := t.cache.Get(key); ok {
			return millis
		}
	}

	ctx, cancel := context.WithTimeout(ctx, t.cfg.ProbeTimeout)
	defer cancel()

	result, err := t.Run(ctx, domain.BinaryFFprobe, "-i", path, "-show_format", "-v", "quiet")
	if err != nil {
		t.logger.Warn("probe failed", slog.String("path", path), slog.Any("error", err))
		return domain.UnknownDuration
	}
	if result.ExitCode != 0 {
		t.logger.Warn("probe exited non-zero", slog.String("path", path), slog.Int("exit_code", result.ExitCode))
		return domain.UnknownDuration
	}

	millis, err := ParseProbeDuration(result.Stdout)
	if err != nil {
		t.logger.Warn("probe output malformed", slog.String("path", path), slog.Any("error", err))
		return domain.UnknownDuration
	}

	if t.cache != nil {
		if err := t.cache.Put(key, millis); err != nil {
			t.logger.Warn("failed to cache duration", slog.String("path", path), slog.Any("error", err))
		}
	}

	return millis
}

// ProbeDurationAsync runs ProbeDurationMillis on its own goroutine.
func (t *Toolchain) ProbeDurationAsync(path string) *future.Future[int64] {
	return future.Go(func() int64 {
		return t.ProbeDurationMillis(context.Background(), path)
	})
}

// ParseProbeDuration extracts the duration= line of an ffprobe -show_format dump.
func ParseProbeDuration(output string) (int64, error) {
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		value, ok := strings.CutPrefix(line, "duration=")
		if !ok {
			continue
		}

		seconds, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, fmt.Errorf("parse duration %q: %w", value, err)
		}
		if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
			return 0, fmt.Errorf("invalid duration %q", value)
		}
		return int64(math.Round(seconds * 1000)), nil
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return 0, errNoDuration
}
