package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Toolchain.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("toolchain: %w", err))
	}
	if err := c.Playback.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("playback: %w", err))
	}
	if err := c.Transcode.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("transcode: %w", err))
	}
	if err := c.Log.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("log: %w", err))
	}

	return errors.Join(errs...)
}

// Validate checks ToolchainConfig for errors.
func (c *ToolchainConfig) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid base_url: %s (must be http or https)", c.BaseURL)
	}
	if c.DownloadTimeout.Duration < 0 || c.ProbeTimeout.Duration < 0 {
		return errors.New("timeouts must be non-negative")
	}
	return nil
}

// Validate checks PlaybackConfig for errors.
func (c *PlaybackConfig) Validate() error {
	if c.SampleRate < 8000 || c.SampleRate > 192000 {
		return fmt.Errorf("sample_rate %d out of range", c.SampleRate)
	}
	if c.MaxRestarts < 0 {
		return errors.New("max_restarts must be non-negative")
	}
	if c.ReactionOffset.Duration < 0 {
		return errors.New("reaction_offset must be non-negative")
	}
	if c.ProgressInterval.Duration < 0 || c.Throttle.Duration < 0 {
		return errors.New("intervals must be non-negative")
	}
	return nil
}

// Validate checks TranscodeConfig for errors.
func (c *TranscodeConfig) Validate() error {
	if strings.TrimSpace(c.DreamifyFilter) == "" {
		return errors.New("dreamify_filter must not be empty")
	}
	if c.DurationTolerance.Duration < 0 {
		return errors.New("duration_tolerance must be non-negative")
	}
	return nil
}

// Validate checks LogConfig for errors.
func (c *LogConfig) Validate() error {
	switch strings.ToLower(c.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid level: %s (must be debug, info, warn, or error)", c.Level)
	}
	switch c.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid format: %s (must be text or json)", c.Format)
	}
	return nil
}
