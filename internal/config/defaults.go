package config

import (
	"os"
	"path/filepath"
	"time"
)

// DefaultDreamifyFilter is the ffmpeg highpass/lowpass pair used by dreamify.
const DefaultDreamifyFilter = "highpass=f=2, lowpass=f=300"

// DefaultBaseURL hosts the ffmpeg and youtube-dl archives.
const DefaultBaseURL = "https://github.com/NathanCheshire/Cyder/raw/main/resources"

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	autoInstall := true
	return &Config{
		Paths: PathsConfig{
			DataDir: defaultDataDir(),
		},
		Toolchain: ToolchainConfig{
			BaseURL:         DefaultBaseURL,
			DownloadTimeout: Duration{5 * time.Minute},
			ProbeTimeout:    Duration{15 * time.Second},
			AutoInstall:     &autoInstall,
		},
		Playback: PlaybackConfig{
			SampleRate:       44100,
			Buffer:           Duration{100 * time.Millisecond},
			ReactionOffset:   Duration{100 * time.Millisecond},
			MaxRestarts:      10,
			ProgressInterval: Duration{100 * time.Millisecond},
			Throttle:         Duration{50 * time.Millisecond},
		},
		Transcode: TranscodeConfig{
			DreamifyFilter:    DefaultDreamifyFilter,
			Timeout:           Duration{10 * time.Minute},
			MatchTimeout:      Duration{30 * time.Second},
			DurationTolerance: Duration{50 * time.Millisecond},
			QuietPeriod:       Duration{300 * time.Millisecond},
		},
		Watch: WatchConfig{
			Debounce: Duration{250 * time.Millisecond},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "cyder")
	}
	return filepath.Join(os.TempDir(), "cyder")
}

// ApplyDefaults fills in zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	d := Default()

	// Paths
	if c.Paths.DataDir == "" {
		c.Paths.DataDir = d.Paths.DataDir
	}

	// Toolchain
	if c.Toolchain.BaseURL == "" {
		c.Toolchain.BaseURL = d.Toolchain.BaseURL
	}
	setDuration(&c.Toolchain.DownloadTimeout, d.Toolchain.DownloadTimeout)
	setDuration(&c.Toolchain.ProbeTimeout, d.Toolchain.ProbeTimeout)
	if c.Toolchain.AutoInstall == nil {
		c.Toolchain.AutoInstall = d.Toolchain.AutoInstall
	}

	// Playback
	if c.Playback.SampleRate == 0 {
		c.Playback.SampleRate = d.Playback.SampleRate
	}
	setDuration(&c.Playback.Buffer, d.Playback.Buffer)
	setDuration(&c.Playback.ReactionOffset, d.Playback.ReactionOffset)
	if c.Playback.MaxRestarts == 0 {
		c.Playback.MaxRestarts = d.Playback.MaxRestarts
	}
	setDuration(&c.Playback.ProgressInterval, d.Playback.ProgressInterval)
	setDuration(&c.Playback.Throttle, d.Playback.Throttle)

	// Transcode
	if c.Transcode.DreamifyFilter == "" {
		c.Transcode.DreamifyFilter = d.Transcode.DreamifyFilter
	}
	setDuration(&c.Transcode.Timeout, d.Transcode.Timeout)
	setDuration(&c.Transcode.MatchTimeout, d.Transcode.MatchTimeout)
	setDuration(&c.Transcode.DurationTolerance, d.Transcode.DurationTolerance)
	setDuration(&c.Transcode.QuietPeriod, d.Transcode.QuietPeriod)

	// Watch
	setDuration(&c.Watch.Debounce, d.Watch.Debounce)

	// Log
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
}

// ResolvePaths derives every empty path from DataDir. Load calls it after environment overrides.
func (c *Config) ResolvePaths() {
	if c.Paths.ExesDir == "" {
		c.Paths.ExesDir = filepath.Join(c.Paths.DataDir, "exes")
	}
	if c.Paths.TempDir == "" {
		c.Paths.TempDir = filepath.Join(c.Paths.DataDir, "tmp")
	}
	if c.Paths.Database == "" {
		c.Paths.Database = filepath.Join(c.Paths.DataDir, "cyder.db")
	}
	if c.Paths.Preferences == "" {
		c.Paths.Preferences = filepath.Join(c.Paths.DataDir, "preferences.toml")
	}
}

func setDuration(d *Duration, fallback Duration) {
	if d.Duration == 0 {
		*d = fallback
	}
}
