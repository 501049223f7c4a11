package service

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejashwikalptaru/cyder/internal/adapter/eventbus"
	"github.com/tejashwikalptaru/cyder/internal/domain"
	"github.com/tejashwikalptaru/cyder/internal/logger"
	"github.com/tejashwikalptaru/cyder/internal/testutil"
)

type fakePosition struct {
	elapsed atomic.Int64
}

func (f *fakePosition) Elapsed() time.Duration {
	return time.Duration(f.elapsed.Load())
}

func (f *fakePosition) set(d time.Duration) {
	f.elapsed.Store(int64(d))
}

type progressRecorder struct {
	mu      sync.Mutex
	updates []domain.ProgressUpdate
}

func (r *progressRecorder) handle(e domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, e.(domain.TrackProgressEvent).Update)
}

func (r *progressRecorder) all() []domain.ProgressUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.ProgressUpdate(nil), r.updates...)
}

func (r *progressRecorder) last() (domain.ProgressUpdate, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.updates) == 0 {
		return domain.ProgressUpdate{}, false
	}
	return r.updates[len(r.updates)-1], true
}

func newTestProgressService(t *testing.T) (*ProgressService, *fakePosition, *progressRecorder) {
	t.Helper()

	bus := eventbus.NewSyncEventBus(nil)
	recorder := &progressRecorder{}
	bus.Subscribe(domain.EventTrackProgress, recorder.handle)

	source := &fakePosition{}
	service := NewProgressService(logger.NewTestLogger(), bus, source, 5*time.Millisecond)
	t.Cleanup(func() {
		_ = service.Shutdown()
		_ = bus.Close()
	})
	return service, source, recorder
}

func TestProgressService_PublishesWhileResumed(t *testing.T) {
	service, source, recorder := newTestProgressService(t)
	service.Reset(3 * time.Minute)
	source.set(61*time.Second + 500*time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, recorder.all(), "tracker starts paused")

	service.ResumeUpdates()
	require.Eventually(t, func() bool {
		_, ok := recorder.last()
		return ok
	}, time.Second, 5*time.Millisecond)

	update, _ := recorder.last()
	assert.Equal(t, 61, update.SecondsElapsed)
	assert.Equal(t, 119, update.SecondsRemaining)
	assert.InDelta(t, 61.5/180, update.Fraction, 0.001)
	assert.False(t, update.UserTriggered)
}

func TestProgressService_DropsBackwardSamples(t *testing.T) {
	service, source, recorder := newTestProgressService(t)
	service.Reset(time.Minute)
	source.set(10 * time.Second)
	service.ResumeUpdates()

	require.Eventually(t, func() bool {
		update, ok := recorder.last()
		return ok && update.SecondsElapsed == 10
	}, time.Second, 5*time.Millisecond)

	// A resume rewinds by the reaction offset
	source.set(9*time.Second + 900*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	for _, update := range recorder.all() {
		assert.Equal(t, 10, update.SecondsElapsed)
	}
}

func TestProgressService_DropsPastEnd(t *testing.T) {
	service, source, recorder := newTestProgressService(t)
	service.Reset(5 * time.Second)
	source.set(7 * time.Second)
	service.ResumeUpdates()

	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, recorder.all())
}

func TestProgressService_UnknownTotal(t *testing.T) {
	service, source, recorder := newTestProgressService(t)
	service.Reset(0)
	source.set(75 * time.Second)
	service.ResumeUpdates()

	require.Eventually(t, func() bool {
		_, ok := recorder.last()
		return ok
	}, time.Second, 5*time.Millisecond)

	update, _ := recorder.last()
	assert.Equal(t, 75, update.SecondsElapsed)
	assert.Equal(t, -1, update.SecondsRemaining)
	assert.Equal(t, "1:15", FormatLabel(update, true))

	_, err := service.SetPosition(0.5)
	assert.ErrorIs(t, err, domain.ErrInvalidPosition)
}

func TestProgressService_PauseStopsUpdates(t *testing.T) {
	service, source, recorder := newTestProgressService(t)
	service.Reset(time.Minute)
	source.set(time.Second)
	service.ResumeUpdates()

	require.Eventually(t, func() bool {
		_, ok := recorder.last()
		return ok
	}, time.Second, 5*time.Millisecond)

	service.PauseUpdates()
	time.Sleep(10 * time.Millisecond)
	count := len(recorder.all())

	source.set(20 * time.Second)
	time.Sleep(30 * time.Millisecond)
	assert.Len(t, recorder.all(), count)
}

func TestProgressService_SetPosition(t *testing.T) {
	service, _, recorder := newTestProgressService(t)
	service.Reset(200 * time.Second)

	offset, err := service.SetPosition(0.25)
	require.NoError(t, err)
	assert.Equal(t, 50*time.Second, offset)

	update, ok := recorder.last()
	require.True(t, ok)
	assert.True(t, update.UserTriggered)
	assert.Equal(t, 50, update.SecondsElapsed)
	assert.Equal(t, 150, update.SecondsRemaining)

	// Seeking backwards is allowed
	offset, err = service.SetPosition(0)
	require.NoError(t, err)
	assert.Zero(t, offset)
}

func TestProgressService_SetPosition_Invalid(t *testing.T) {
	service, _, _ := newTestProgressService(t)
	service.Reset(time.Minute)

	for _, fraction := range []float64{-0.01, 1.01} {
		_, err := service.SetPosition(fraction)
		assert.ErrorIs(t, err, domain.ErrInvalidPosition)
	}
}

func TestProgressService_SeekBackThenTick(t *testing.T) {
	service, source, recorder := newTestProgressService(t)
	service.Reset(time.Minute)
	source.set(40 * time.Second)
	service.ResumeUpdates()

	require.Eventually(t, func() bool {
		update, ok := recorder.last()
		return ok && update.SecondsElapsed == 40
	}, time.Second, 5*time.Millisecond)

	source.set(12 * time.Second)
	_, err := service.SetPosition(0.2)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		update, _ := recorder.last()
		return update.SecondsElapsed == 12 && !update.UserTriggered
	}, time.Second, 5*time.Millisecond)
}

func TestProgressService_Shutdown(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	bus := eventbus.NewSyncEventBus(nil)
	defer bus.Close()

	service := NewProgressService(logger.NewTestLogger(), bus, &fakePosition{}, 0)
	assert.NoError(t, service.Shutdown())
	assert.NoError(t, service.Shutdown())
}

func TestFormatLabel(t *testing.T) {
	tests := []struct {
		name      string
		update    domain.ProgressUpdate
		showTotal bool
		want      string
	}{
		{"total", domain.ProgressUpdate{SecondsElapsed: 65, SecondsRemaining: 115}, true, "1:05 / 3:00"},
		{"remaining", domain.ProgressUpdate{SecondsElapsed: 65, SecondsRemaining: 115}, false, "1:05 / -1:55"},
		{"start", domain.ProgressUpdate{SecondsElapsed: 0, SecondsRemaining: 9}, false, "0:00 / -0:09"},
		{"unknown", domain.ProgressUpdate{SecondsElapsed: 601, SecondsRemaining: -1}, false, "10:01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatLabel(tt.update, tt.showTotal))
		})
	}
}
