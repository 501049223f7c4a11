// Package config loads the Cyder configuration from a TOML file, a .env file and CYDER_* variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// EnvFile is loaded from the working directory before environment overrides apply.
// Variables already set in the environment win over the file.
const EnvFile = ".env"

// Load reads configuration from standard locations with environment overrides.
// Search order: $CYDER_CONFIG, ~/.cyderrc, $XDG_CONFIG_HOME/cyder/config.toml
func Load() (*Config, error) {
	loadEnvFile()

	path := findConfigFile()
	if path == "" {
		return finish(&Config{})
	}
	return decode(path)
}

// LoadFrom reads configuration from a specific file path.
func LoadFrom(path string) (*Config, error) {
	loadEnvFile()
	return decode(path)
}

func decode(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return finish(cfg)
}

// finish applies defaults, then environment overrides, then derives paths and validates.
func finish(cfg *Config) (*Config, error) {
	cfg.ApplyDefaults()
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	cfg.ResolvePaths()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadEnvFile() {
	// A missing .env is the normal case
	if err := godotenv.Load(EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "cyder: ignoring %s: %v\n", EnvFile, err)
	}
}

// findConfigFile returns the first existing config file path.
func findConfigFile() string {
	if path := os.Getenv("CYDER_CONFIG"); path != "" {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	paths := []string{
		filepath.Join(home, ".cyderrc"),
	}

	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		xdgConfig = filepath.Join(home, ".config")
	}
	paths = append(paths, filepath.Join(xdgConfig, "cyder", "config.toml"))

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) error {
	var errs []error

	// Paths
	if v := os.Getenv("CYDER_DATA_DIR"); v != "" {
		cfg.Paths.DataDir = v
	}
	if v := os.Getenv("CYDER_EXES_DIR"); v != "" {
		cfg.Paths.ExesDir = v
	}
	if v := os.Getenv("CYDER_TEMP_DIR"); v != "" {
		cfg.Paths.TempDir = v
	}

	// Toolchain
	if v := os.Getenv("CYDER_TOOLCHAIN_BASE_URL"); v != "" {
		cfg.Toolchain.BaseURL = v
	}
	if v := os.Getenv("CYDER_AUTO_INSTALL"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("CYDER_AUTO_INSTALL: %w", err))
		} else {
			cfg.Toolchain.AutoInstall = &b
		}
	}
	errs = append(errs, envDuration("CYDER_DOWNLOAD_TIMEOUT", &cfg.Toolchain.DownloadTimeout))

	// Playback
	errs = append(errs, envDuration("CYDER_REACTION_OFFSET", &cfg.Playback.ReactionOffset))
	errs = append(errs, envDuration("CYDER_THROTTLE", &cfg.Playback.Throttle))
	if v := os.Getenv("CYDER_MAX_RESTARTS"); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("CYDER_MAX_RESTARTS: %w", err))
		} else {
			cfg.Playback.MaxRestarts = i
		}
	}

	// Transcode
	if v := os.Getenv("CYDER_DREAMIFY_FILTER"); v != "" {
		cfg.Transcode.DreamifyFilter = v
	}

	// Log
	if v := os.Getenv("CYDER_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("CYDER_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("CYDER_LOG_FILE"); v != "" {
		cfg.Log.File = v
	}

	return errors.Join(errs...)
}

func envDuration(key string, target *Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	target.Duration = d
	return nil
}
