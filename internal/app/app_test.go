package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejashwikalptaru/cyder/internal/config"
	"github.com/tejashwikalptaru/cyder/internal/domain"
)

const fakeProbe = `#!/bin/sh
echo "[FORMAT]"
echo "duration=120.000000"
echo "[/FORMAT]"
`

// testConfig returns settings rooted at a temp data dir with fake ffmpeg and ffprobe installed.
func testConfig(t *testing.T, dataDir string) Config {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake binaries are shell scripts")
	}
	t.Setenv("PATH", "")

	settings := config.Default()
	settings.Paths.DataDir = dataDir
	settings.ResolvePaths()
	settings.Log.Level = "error"
	settings.Playback.Throttle = config.Duration{}
	autoInstall := false
	settings.Toolchain.AutoInstall = &autoInstall

	require.NoError(t, os.MkdirAll(settings.Paths.ExesDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(settings.Paths.ExesDir, "ffprobe"), []byte(fakeProbe), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(settings.Paths.ExesDir, "ffmpeg"), []byte("#!/bin/sh\nexit 0\n"), 0o755))

	cfg := ConfigFrom(settings)
	cfg.UseMockAudio = true
	cfg.ShowProgress = false
	return cfg
}

func writeMP3(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, append([]byte("ID3\x04\x00\x00\x00\x00\x00\x00"), make([]byte, 64)...), 0o644))
	return path
}

func TestNewApplication(t *testing.T) {
	cfg := testConfig(t, t.TempDir())

	app, err := NewApplication(cfg)
	require.NoError(t, err)
	require.NotNil(t, app)

	// Verify all services were created
	library, playlist, transcode, preference := app.GetServices()
	assert.NotNil(t, library)
	assert.NotNil(t, playlist)
	assert.NotNil(t, transcode)
	assert.NotNil(t, preference)
	assert.NotNil(t, app.Player())
	assert.NotNil(t, app.GetEventBus())
	assert.NotNil(t, app.Decoder())

	assert.FileExists(t, cfg.Settings.Paths.Database)
	assert.True(t, app.Toolchain().IsInstalled(domain.BinaryFFprobe))

	require.NoError(t, app.Shutdown())
	assert.NoError(t, app.Shutdown(), "shutdown again returns the first result")
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.NotNil(t, cfg.Settings)
	assert.NotEmpty(t, cfg.Settings.Paths.Database)
	assert.False(t, cfg.UseMockAudio)
	assert.True(t, cfg.ShowProgress)
}

func TestApplication_OpenAndRun(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	var out bytes.Buffer
	cfg.Output = &out

	app, err := NewApplication(cfg)
	require.NoError(t, err)
	defer app.Shutdown()

	music := t.TempDir()
	song := writeMP3(t, music, "song.mp3")
	writeMP3(t, music, "tune.mp3")

	ctx := context.Background()
	require.NoError(t, app.Open(ctx, song))
	assert.Equal(t, 120*time.Second, app.Player().Duration())

	err = app.Run(ctx, strings.NewReader("r\nx\n+ "+filepath.Join(music, "tune.mp3")+"\nq\n"))
	require.NoError(t, err)

	state := app.Player().State()
	assert.Equal(t, song, state.Track.Path)
	assert.True(t, state.Repeat)
	assert.True(t, state.Shuffle)
	require.Len(t, state.Queue, 1)

	text := out.String()
	assert.Contains(t, text, "Loaded song (2:00)")
	assert.Contains(t, text, "> playing")
	assert.Contains(t, text, "repeat on, shuffle on")
	assert.Contains(t, text, "queue: 1. tune")

	_, _, _, preference := app.GetServices()
	assert.Equal(t, music, preference.MusicDir())
}

func TestApplication_Restore(t *testing.T) {
	dataDir := t.TempDir()
	music := t.TempDir()
	song := writeMP3(t, music, "song.mp3")
	ctx := context.Background()

	first, err := NewApplication(testConfig(t, dataDir))
	require.NoError(t, err)

	restored, err := first.Restore(ctx)
	require.NoError(t, err)
	assert.False(t, restored, "nothing to restore on a fresh data dir")

	require.NoError(t, first.Open(ctx, song))
	require.NoError(t, first.Shutdown())

	second, err := NewApplication(testConfig(t, dataDir))
	require.NoError(t, err)
	defer second.Shutdown()

	restored, err = second.Restore(ctx)
	require.NoError(t, err)
	assert.True(t, restored)
	assert.Equal(t, song, second.Player().State().Track.Path)
}

func TestApplication_RestoreMissingFile(t *testing.T) {
	dataDir := t.TempDir()
	music := t.TempDir()
	song := writeMP3(t, music, "song.mp3")
	ctx := context.Background()

	first, err := NewApplication(testConfig(t, dataDir))
	require.NoError(t, err)
	require.NoError(t, first.Open(ctx, song))
	require.NoError(t, first.Shutdown())

	require.NoError(t, os.Remove(song))

	second, err := NewApplication(testConfig(t, dataDir))
	require.NoError(t, err)
	defer second.Shutdown()

	restored, err := second.Restore(ctx)
	require.NoError(t, err)
	assert.False(t, restored)
}

func TestApplication_MissingTools(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	require.NoError(t, os.RemoveAll(cfg.Settings.Paths.ExesDir))
	var out bytes.Buffer
	cfg.Output = &out

	app, err := NewApplication(cfg)
	require.NoError(t, err)
	defer app.Shutdown()

	err = app.Open(context.Background(), writeMP3(t, t.TempDir(), "song.mp3"))
	require.ErrorIs(t, err, domain.ErrToolMissing)
	assert.Contains(t, out.String(), "! Missing binaries")
	assert.True(t, app.Player().State().Locked)
}

func TestApplication_BadPreferencesFile(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	require.NoError(t, os.WriteFile(cfg.Settings.Paths.Preferences, []byte("not = [toml"), 0o644))

	_, err := NewApplication(cfg)
	assert.ErrorContains(t, err, "failed to open preferences")
}

func TestVersionInfo(t *testing.T) {
	info := GetVersionInfo()
	assert.Contains(t, info.FullString(), "Cyder "+info.Version)

	info.GitTag = "v1.2.3"
	assert.Contains(t, info.FullString(), "Cyder v1.2.3")
}
