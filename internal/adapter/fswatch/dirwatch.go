package fswatch

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tejashwikalptaru/cyder/internal/ports"
)

// DirWatcher reports settled changes to one directory at a time.
//
// Thread-safety: Watch and Close may be called from any goroutine.
type DirWatcher struct {
	logger   *slog.Logger
	debounce time.Duration

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	dir     string
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewDirWatcher creates a watcher that waits for debounce of silence before reporting.
func NewDirWatcher(logger *slog.Logger, debounce time.Duration) *DirWatcher {
	return &DirWatcher{logger: logger, debounce: debounce}
}

// Watch replaces any previous watch with dir. Watching the same directory again is a no-op.
func (d *DirWatcher) Watch(dir string, onChange func(dir string)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.watcher != nil && d.dir == dir {
		return nil
	}
	d.stopLocked()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	d.watcher = watcher
	d.dir = dir
	d.stop = make(chan struct{})

	d.wg.Add(1)
	go d.loop(watcher, dir, d.stop, onChange)

	d.logger.Debug("watching directory", slog.String("dir", dir))
	return nil
}

func (d *DirWatcher) loop(watcher *fsnotify.Watcher, dir string, stop <-chan struct{}, onChange func(string)) {
	defer d.wg.Done()

	var settle <-chan time.Time
	for {
		select {
		case <-stop:
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) != 0 {
				settle = time.After(d.debounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			d.logger.Warn("directory watch error", slog.String("dir", dir), slog.Any("error", err))

		case <-settle:
			settle = nil
			onChange(dir)
		}
	}
}

// Close stops watching and waits for the watcher goroutine to exit.
func (d *DirWatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()
	return nil
}

func (d *DirWatcher) stopLocked() {
	if d.watcher == nil {
		return
	}

	close(d.stop)
	_ = d.watcher.Close()
	d.wg.Wait()

	d.watcher = nil
	d.dir = ""
}

// Verify that DirWatcher implements the DirWatcher interface
var _ ports.DirWatcher = (*DirWatcher)(nil)
