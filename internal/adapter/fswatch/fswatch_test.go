package fswatch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejashwikalptaru/cyder/internal/logger"
	"github.com/tejashwikalptaru/cyder/internal/testutil"
)

func testWaiter() *Waiter {
	return NewWaiter(logger.NewTestLogger(), WaiterConfig{
		Quiet:   50 * time.Millisecond,
		MinPoll: 5 * time.Millisecond,
		MaxPoll: 20 * time.Millisecond,
	})
}

func TestWaiter_ExistingFile(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	path := filepath.Join(t.TempDir(), "out.mp3")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	assert.NoError(t, testWaiter().WaitStable(ctx, path))
}

func TestWaiter_GrowingFile(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	path := filepath.Join(t.TempDir(), "out.wav")

	done := make(chan struct{})
	go func() {
		defer close(done)
		file, err := os.Create(path)
		if err != nil {
			return
		}
		defer file.Close()
		for i := 0; i < 5; i++ {
			_, _ = file.Write(make([]byte, 1024))
			time.Sleep(20 * time.Millisecond)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	require.NoError(t, testWaiter().WaitStable(ctx, path))
	<-done

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(5*1024), info.Size())
}

func TestWaiter_NeverCreated(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	path := filepath.Join(t.TempDir(), "missing.mp3")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := testWaiter().WaitStable(ctx, path)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaiter_EmptyFileIsNotStable(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	path := filepath.Join(t.TempDir(), "empty.mp3")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	assert.Error(t, testWaiter().WaitStable(ctx, path))
}

func TestDirWatcher_ReportsChanges(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	dir := t.TempDir()
	watcher := NewDirWatcher(logger.NewTestLogger(), 20*time.Millisecond)
	defer watcher.Close()

	changed := make(chan string, 4)
	require.NoError(t, watcher.Watch(dir, func(d string) { changed <- d }))

	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "a.mp3"), []byte{byte(i)}, 0o644))
	}

	select {
	case got := <-changed:
		assert.Equal(t, dir, got)
	case <-time.After(2 * time.Second):
		t.Fatal("no change reported")
	}
}

func TestDirWatcher_ReplaceAndClose(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	first, second := t.TempDir(), t.TempDir()
	watcher := NewDirWatcher(logger.NewTestLogger(), 10*time.Millisecond)

	var firstCalls atomic.Int32
	require.NoError(t, watcher.Watch(first, func(string) { firstCalls.Add(1) }))

	changed := make(chan string, 4)
	require.NoError(t, watcher.Watch(second, func(d string) { changed <- d }))

	require.NoError(t, os.WriteFile(filepath.Join(first, "x.wav"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(second, "y.wav"), []byte("y"), 0o644))

	select {
	case got := <-changed:
		assert.Equal(t, second, got)
	case <-time.After(2 * time.Second):
		t.Fatal("no change reported")
	}
	assert.Zero(t, firstCalls.Load())

	require.NoError(t, watcher.Close())
	require.NoError(t, watcher.Close())
}

func TestDirWatcher_MissingDir(t *testing.T) {
	watcher := NewDirWatcher(logger.NewTestLogger(), 10*time.Millisecond)
	defer watcher.Close()

	assert.Error(t, watcher.Watch(filepath.Join(t.TempDir(), "nope"), func(string) {}))
}
