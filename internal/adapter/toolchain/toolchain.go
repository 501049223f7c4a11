// Package toolchain locates, installs and invokes the external ffmpeg, ffprobe and youtube-dl binaries.
package toolchain

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tejashwikalptaru/cyder/internal/domain"
	"github.com/tejashwikalptaru/cyder/internal/ports"
)

// DefaultBaseURL hosts one <binary>.zip archive per tool.
const DefaultBaseURL = "https://github.com/NathanCheshire/Cyder/raw/main/resources"

// Config controls where binaries are looked up and fetched from.
type Config struct {
	// ExesDir is the local directory binaries are installed into
	ExesDir string

	// BaseURL is the remote directory holding the tool archives
	BaseURL string

	// DownloadTimeout bounds one download and extraction
	DownloadTimeout time.Duration

	// ProbeTimeout bounds one ffprobe invocation
	ProbeTimeout time.Duration
}

// DefaultConfig returns the default toolchain configuration rooted at exesDir.
func DefaultConfig(exesDir string) Config {
	return Config{
		ExesDir:         exesDir,
		BaseURL:         DefaultBaseURL,
		DownloadTimeout: 5 * time.Minute,
		ProbeTimeout:    15 * time.Second,
	}
}

// Toolchain implements ports.Toolchain on top of os/exec and net/http.
type Toolchain struct {
	logger *slog.Logger
	cfg    Config
	cache  ports.DurationCache

	runner   commandRunner
	lookPath func(file string) (string, error)
	stat     func(name string) (os.FileInfo, error)
	client   *http.Client
	goos     string

	installs singleflight.Group
}

// New creates a toolchain. cache may be nil to disable duration memoization.
func New(logger *slog.Logger, cfg Config, cache ports.DurationCache) *Toolchain {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = 5 * time.Minute
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 15 * time.Second
	}

	return &Toolchain{
		logger:   logger,
		cfg:      cfg,
		cache:    cache,
		runner:   &execRunner{},
		lookPath: exec.LookPath,
		stat:     os.Stat,
		client:   http.DefaultClient,
		goos:     runtime.GOOS,
	}
}

// ExesDir returns the local install directory.
func (t *Toolchain) ExesDir() string {
	return t.cfg.ExesDir
}

// fileName is the on-disk name of a binary for the current OS.
func (t *Toolchain) fileName(binary domain.Binary) string {
	if t.goos == "windows" {
		return string(binary) + ".exe"
	}
	return string(binary)
}

func (t *Toolchain) localPath(binary domain.Binary) string {
	return filepath.Join(t.cfg.ExesDir, t.fileName(binary))
}

// IsInstalled checks PATH first, then the local exes directory.
func (t *Toolchain) IsInstalled(binary domain.Binary) bool {
	_, err := t.ResolveCommand(binary)
	return err == nil
}

// ResolveCommand returns the path to invoke for binary.
func (t *Toolchain) ResolveCommand(binary domain.Binary) (string, error) {
	if path, err := t.lookPath(string(binary)); err == nil {
		return path, nil
	}

	if t.cfg.ExesDir != "" {
		local := t.localPath(binary)
		if info, err := t.stat(local); err == nil && !info.IsDir() {
			return local, nil
		}
	}

	return "", domain.NewToolNotFoundError(string(binary),
		fmt.Sprintf("install it on PATH or run 'cyder install %s'", binary))
}

// Run resolves binary and runs it, capturing output.
// A process that ran and exited non-zero is reported through ExitCode with a nil error.
func (t *Toolchain) Run(ctx context.Context, binary domain.Binary, args ...string) (ports.CommandResult, error) {
	command, err := t.ResolveCommand(binary)
	if err != nil {
		return ports.CommandResult{ExitCode: -1}, err
	}

	t.logger.Debug("running command",
		slog.String("binary", string(binary)),
		slog.String("args", strings.Join(args, " ")))

	result, err := t.runner.Run(ctx, command, args...)
	if err != nil && result.ExitCode > 0 {
		t.logger.Debug("command exited non-zero",
			slog.String("binary", string(binary)),
			slog.Int("exit_code", result.ExitCode),
			slog.String("stderr", tail(result.Stderr, 512)))
		return result, nil
	}
	if err != nil {
		return result, fmt.Errorf("start %s: %w", binary, err)
	}

	return result, nil
}

// tail keeps the last n bytes of s for logging.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// drain discards the rest of r so the connection can be reused.
func drain(r io.Reader) {
	_, _ = io.Copy(io.Discard, r)
}

// Verify that Toolchain implements the Toolchain interface
var _ ports.Toolchain = (*Toolchain)(nil)
