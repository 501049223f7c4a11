package config

import (
	"fmt"
	"time"
)

// Config is the root configuration structure.
type Config struct {
	Paths     PathsConfig     `toml:"paths"`
	Toolchain ToolchainConfig `toml:"toolchain"`
	Playback  PlaybackConfig  `toml:"playback"`
	Transcode TranscodeConfig `toml:"transcode"`
	Watch     WatchConfig     `toml:"watch"`
	Log       LogConfig       `toml:"log"`
}

// PathsConfig holds on-disk locations. Empty paths are derived from DataDir.
type PathsConfig struct {
	DataDir     string `toml:"data_dir"`
	ExesDir     string `toml:"exes_dir"`
	TempDir     string `toml:"temp_dir"`
	Database    string `toml:"database"`
	Preferences string `toml:"preferences"`
}

// ToolchainConfig holds binary download and probe settings.
type ToolchainConfig struct {
	BaseURL         string   `toml:"base_url"`
	DownloadTimeout Duration `toml:"download_timeout"`
	ProbeTimeout    Duration `toml:"probe_timeout"`
	AutoInstall     *bool    `toml:"auto_install"`
}

// PlaybackConfig holds engine settings.
type PlaybackConfig struct {
	SampleRate       int      `toml:"sample_rate"`
	Buffer           Duration `toml:"buffer"`
	ReactionOffset   Duration `toml:"reaction_offset"`
	MaxRestarts      int      `toml:"max_restarts"`
	ProgressInterval Duration `toml:"progress_interval"`
	Throttle         Duration `toml:"throttle"`
}

// TranscodeConfig holds ffmpeg job settings.
type TranscodeConfig struct {
	DreamifyFilter    string   `toml:"dreamify_filter"`
	Timeout           Duration `toml:"timeout"`
	MatchTimeout      Duration `toml:"match_timeout"`
	DurationTolerance Duration `toml:"duration_tolerance"`
	QuietPeriod       Duration `toml:"quiet_period"`
}

// WatchConfig holds directory watcher settings.
type WatchConfig struct {
	Debounce Duration `toml:"debounce"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

// Duration is a time.Duration written as a Go duration string ("150ms", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText renders the duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}
