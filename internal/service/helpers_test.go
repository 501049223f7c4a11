package service

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tejashwikalptaru/cyder/internal/domain"
	"github.com/tejashwikalptaru/cyder/internal/ports"
)

// fakeToolchain records commands and answers probes from a table.
// Run simulates ffmpeg by copying the input to the last argument.
type fakeToolchain struct {
	mu        sync.Mutex
	installed map[domain.Binary]bool
	canGet    bool
	durations map[string]int64
	calls     [][]string
	run       func(binary domain.Binary, args []string) (ports.CommandResult, error)
	probe     func(path string) (int64, bool)
}

func newFakeToolchain() *fakeToolchain {
	return &fakeToolchain{
		installed: map[domain.Binary]bool{
			domain.BinaryFFmpeg:    true,
			domain.BinaryFFprobe:   true,
			domain.BinaryYoutubeDL: true,
		},
		durations: make(map[string]int64),
	}
}

func (f *fakeToolchain) setInstalled(binary domain.Binary, installed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.installed[binary] = installed
}

func (f *fakeToolchain) setDuration(path string, millis int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.durations[path] = millis
}

func (f *fakeToolchain) commands() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.calls...)
}

func (f *fakeToolchain) IsInstalled(binary domain.Binary) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.installed[binary]
}

func (f *fakeToolchain) ResolveCommand(binary domain.Binary) (string, error) {
	if !f.IsInstalled(binary) {
		return "", domain.NewToolNotFoundError(string(binary), "")
	}
	return string(binary), nil
}

func (f *fakeToolchain) DownloadAndInstall(_ context.Context, binary domain.Binary) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.canGet {
		return false, nil
	}
	f.installed[binary] = true
	return true, nil
}

func (f *fakeToolchain) ProbeDurationMillis(_ context.Context, path string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.probe != nil {
		if millis, ok := f.probe(path); ok {
			return millis
		}
	}
	if millis, ok := f.durations[path]; ok {
		return millis
	}
	return domain.UnknownDuration
}

func (f *fakeToolchain) Run(_ context.Context, binary domain.Binary, args ...string) (ports.CommandResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{string(binary)}, args...))
	run := f.run
	f.mu.Unlock()

	if run != nil {
		return run(binary, args)
	}
	return copyInputToOutput(args)
}

// copyInputToOutput behaves like a successful "ffmpeg -i in ... out".
func copyInputToOutput(args []string) (ports.CommandResult, error) {
	var input string
	for i := 0; i < len(args)-1; i++ {
		if args[i] == "-i" {
			input = args[i+1]
		}
	}
	data, err := os.ReadFile(input)
	if err != nil {
		return ports.CommandResult{ExitCode: 1, Stderr: err.Error()}, nil
	}
	if err := os.WriteFile(args[len(args)-1], data, 0o644); err != nil {
		return ports.CommandResult{}, err
	}
	return ports.CommandResult{}, nil
}

// instantWaiter treats any existing non-empty file as stable.
type instantWaiter struct{}

func (instantWaiter) WaitStable(_ context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return domain.ErrTranscodeFailed
	}
	return nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	titles []string
}

func (n *recordingNotifier) Notify(title, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.titles = append(n.titles, title)
}

func (n *recordingNotifier) Titles() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.titles...)
}

type recordingTagger struct {
	mu     sync.Mutex
	titles map[string]string
}

func (r *recordingTagger) WriteTitle(path, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.titles == nil {
		r.titles = make(map[string]string)
	}
	r.titles[path] = title
	return nil
}

func (r *recordingTagger) Title(path string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.titles[path]
}

// memoryHistory is an in-memory HistoryRepository.
type memoryHistory struct {
	mu    sync.Mutex
	queue []domain.Track
	last  string
}

func (h *memoryHistory) SaveQueue(tracks []domain.Track) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.queue = append([]domain.Track(nil), tracks...)
	return nil
}

func (h *memoryHistory) LoadQueue() ([]domain.Track, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.Track(nil), h.queue...), nil
}

func (h *memoryHistory) SaveLastTrack(path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = path
	return nil
}

func (h *memoryHistory) LoadLastTrack() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last, nil
}

func (h *memoryHistory) Clear() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.queue, h.last = nil, ""
	return nil
}

// writeAudio creates files with valid mp3 or wav signatures and returns their paths.
func writeAudio(t *testing.T, dir string, names ...string) []string {
	t.Helper()

	paths := make([]string, 0, len(names))
	for _, name := range names {
		var head []byte
		switch filepath.Ext(name) {
		case ".wav":
			head = []byte("RIFF\x24\x00\x00\x00WAVE")
		default:
			head = []byte("ID3\x04\x00\x00\x00\x00\x00\x00")
		}
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, append(head, make([]byte, 64)...), 0o644))
		paths = append(paths, path)
	}
	return paths
}

func mustTrack(t *testing.T, path string) domain.Track {
	t.Helper()
	track, err := domain.NewTrack(path)
	require.NoError(t, err)
	return track
}

func trackPaths(tracks []domain.Track) []string {
	paths := make([]string, len(tracks))
	for i, track := range tracks {
		paths[i] = track.Path
	}
	return paths
}

// eventRecorder collects every event published on a bus.
type eventRecorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func recordEvents(bus ports.EventBus) *eventRecorder {
	r := &eventRecorder{}
	bus.SubscribeAll(func(e domain.Event) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, e)
	})
	return r
}

func (r *eventRecorder) ofType(eventType domain.EventType) []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []domain.Event
	for _, e := range r.events {
		if e.Type() == eventType {
			matched = append(matched, e)
		}
	}
	return matched
}

func (r *eventRecorder) count(eventType domain.EventType) int {
	return len(r.ofType(eventType))
}

// waitFor blocks until at least n events of eventType arrived.
func (r *eventRecorder) waitFor(t *testing.T, eventType domain.EventType, n int) []domain.Event {
	t.Helper()
	require.Eventually(t, func() bool {
		return r.count(eventType) >= n
	}, 2*time.Second, 2*time.Millisecond, "waiting for %d %s events", n, eventType)
	return r.ofType(eventType)
}
