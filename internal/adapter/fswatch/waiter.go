// Package fswatch watches the filesystem with fsnotify.
// It detects when external processes finish writing files and when a music directory changes.
package fswatch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tejashwikalptaru/cyder/internal/ports"
)

// WaiterConfig tunes output stability detection.
type WaiterConfig struct {
	// Quiet is how long the size must stay unchanged
	Quiet time.Duration

	// MinPoll and MaxPoll bound the exponential backoff between size checks
	MinPoll time.Duration
	MaxPoll time.Duration
}

// DefaultWaiterConfig returns the stability settings used for ffmpeg outputs.
func DefaultWaiterConfig() WaiterConfig {
	return WaiterConfig{
		Quiet:   300 * time.Millisecond,
		MinPoll: 25 * time.Millisecond,
		MaxPoll: 500 * time.Millisecond,
	}
}

// Waiter blocks until a file written by another process has stopped growing.
// Write events on the file reset the quiet period; size checks back off while nothing happens.
type Waiter struct {
	logger *slog.Logger
	cfg    WaiterConfig
}

// NewWaiter creates a new output waiter.
func NewWaiter(logger *slog.Logger, cfg WaiterConfig) *Waiter {
	if cfg.MinPoll <= 0 {
		cfg.MinPoll = DefaultWaiterConfig().MinPoll
	}
	if cfg.MaxPoll < cfg.MinPoll {
		cfg.MaxPoll = cfg.MinPoll
	}
	return &Waiter{logger: logger, cfg: cfg}
}

// WaitStable returns once path exists with a non-zero size that has not changed
// for the quiet period, or with ctx's error.
func (w *Waiter) WaitStable(ctx context.Context, path string) error {
	events, closeWatch := w.watch(path)
	defer closeWatch()

	interval := w.cfg.MinPoll
	timer := time.NewTimer(interval)
	defer timer.Stop()

	lastSize := int64(-1)
	lastChange := time.Now()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for %s: %w", path, ctx.Err())

		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if filepath.Clean(event.Name) != path || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			lastChange = time.Now()
			interval = w.cfg.MinPoll

		case <-timer.C:
			info, err := os.Stat(path)
			switch {
			case err != nil:
				// Not created yet
			case info.Size() != lastSize:
				lastSize = info.Size()
				lastChange = time.Now()
			case lastSize > 0 && time.Since(lastChange) >= w.cfg.Quiet:
				w.logger.Debug("output stable",
					slog.String("path", path),
					slog.Int64("size", lastSize))
				return nil
			}

			interval = min(interval*2, w.cfg.MaxPoll)
			timer.Reset(interval)
		}
	}
}

// watch subscribes to events in path's directory. Without fsnotify the waiter
// still works on size polling alone.
func (w *Waiter) watch(path string) (<-chan fsnotify.Event, func()) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Warn("fsnotify unavailable, polling only", slog.Any("error", err))
		return nil, func() {}
	}

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		w.logger.Warn("failed to watch output directory", slog.String("path", path), slog.Any("error", err))
		_ = watcher.Close()
		return nil, func() {}
	}

	// Errors must be drained or the watcher blocks
	go func() {
		for range watcher.Errors {
		}
	}()

	return watcher.Events, func() { _ = watcher.Close() }
}

// Verify that Waiter implements the OutputWaiter interface
var _ ports.OutputWaiter = (*Waiter)(nil)
