package toolchain

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/tejashwikalptaru/cyder/internal/domain"
	"github.com/tejashwikalptaru/cyder/internal/future"
)

// ArchiveURL returns the download URL for binary.
func (t *Toolchain) ArchiveURL(binary domain.Binary) string {
	return strings.TrimRight(t.cfg.BaseURL, "/") + "/" + string(binary) + ".zip"
}

// DownloadAndInstall fetches the archive for binary, extracts it into the exes
// directory and deletes the archive. Already installed binaries return true
// without touching the network. Concurrent calls for one binary share a download.
func (t *Toolchain) DownloadAndInstall(ctx context.Context, binary domain.Binary) (bool, error) {
	if t.IsInstalled(binary) {
		return true, nil
	}
	if t.cfg.ExesDir == "" {
		return false, fmt.Errorf("install %s: no exes directory configured", binary)
	}

	_, err, shared := t.installs.Do(string(binary), func() (any, error) {
		return nil, t.install(ctx, binary)
	})
	if shared {
		t.logger.Debug("joined in-flight install", slog.String("binary", string(binary)))
	}
	if err != nil {
		return false, err
	}

	return t.IsInstalled(binary), nil
}

// DownloadAndInstallAsync runs DownloadAndInstall on its own goroutine.
// Failures are logged and yield false.
func (t *Toolchain) DownloadAndInstallAsync(binary domain.Binary) *future.Future[bool] {
	return future.Go(func() bool {
		ok, err := t.DownloadAndInstall(context.Background(), binary)
		if err != nil {
			t.logger.Warn("install failed", slog.String("binary", string(binary)), slog.Any("error", err))
		}
		return ok
	})
}

func (t *Toolchain) install(ctx context.Context, binary domain.Binary) error {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.DownloadTimeout)
	defer cancel()

	started := time.Now()
	archive := filepath.Join(t.cfg.ExesDir, string(binary)+".zip")
	url := t.ArchiveURL(binary)

	t.logger.Info("downloading binary", slog.String("binary", string(binary)), slog.String("url", url))

	size, err := t.download(ctx, url, archive)
	if err != nil {
		return fmt.Errorf("download %s: %w", binary, err)
	}
	defer func() {
		if err := os.Remove(archive); err != nil && !errors.Is(err, os.ErrNotExist) {
			t.logger.Warn("failed to delete archive", slog.String("path", archive), slog.Any("error", err))
		}
	}()

	extracted, err := extractZip(archive, t.cfg.ExesDir)
	if err != nil {
		return fmt.Errorf("extract %s: %w", binary, err)
	}

	if t.goos != "windows" {
		for _, path := range extracted {
			if err := os.Chmod(path, 0o755); err != nil {
				return fmt.Errorf("mark %s executable: %w", path, err)
			}
		}
	}

	if _, err := t.stat(t.localPath(binary)); err != nil {
		return fmt.Errorf("archive for %s did not contain %s", binary, t.fileName(binary))
	}

	t.logger.Info("binary installed",
		slog.String("binary", string(binary)),
		slog.String("archive_size", humanize.Bytes(uint64(size))),
		slog.Duration("took", time.Since(started).Round(time.Millisecond)))

	return nil
}

// download streams url into destination through a ".download" temp file.
func (t *Toolchain) download(ctx context.Context, url, destination string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return 0, fmt.Errorf("prepare destination directory: %w", err)
	}

	tmpPath := destination + ".download"
	if err := os.Remove(tmpPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("remove stale temp file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "cyder")

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		drain(resp.Body)
		return 0, fmt.Errorf("unexpected HTTP status: %s", resp.Status)
	}

	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create temporary file: %w", err)
	}

	written, copyErr := io.Copy(file, resp.Body)
	closeErr := file.Close()
	if copyErr != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("write destination file: %w", copyErr)
	}
	if closeErr != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("close destination file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, destination); err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("move download into place: %w", err)
	}

	return written, nil
}

// extractZip unpacks archive into baseDir and returns the regular files it wrote.
// Entries that would land outside baseDir are rejected.
func extractZip(archive, baseDir string) ([]string, error) {
	reader, err := zip.OpenReader(archive)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer reader.Close()

	var written []string
	for _, entry := range reader.File {
		target := filepath.Join(baseDir, entry.Name)
		if !isWithinBaseDir(baseDir, target) {
			return written, fmt.Errorf("archive entry %q escapes %s", entry.Name, baseDir)
		}

		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return written, fmt.Errorf("create directory: %w", err)
			}
			continue
		}

		if err := extractEntry(entry, target); err != nil {
			return written, err
		}
		written = append(written, target)
	}

	return written, nil
}

func extractEntry(entry *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	src, err := entry.Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", entry.Name, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}

	_, copyErr := io.Copy(dst, src)
	closeErr := dst.Close()
	if copyErr != nil {
		return fmt.Errorf("write %s: %w", target, copyErr)
	}
	return closeErr
}

func isWithinBaseDir(baseDir string, targetPath string) bool {
	relative, err := filepath.Rel(filepath.Clean(baseDir), filepath.Clean(targetPath))
	if err != nil {
		return false
	}
	return relative == "." || (relative != ".." && !strings.HasPrefix(relative, ".."+string(filepath.Separator)))
}
