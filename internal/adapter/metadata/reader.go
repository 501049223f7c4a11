// Package metadata reads and writes audio tags.
package metadata

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bogem/id3v2"
	"github.com/dhowden/tag"

	"github.com/tejashwikalptaru/cyder/internal/domain"
	"github.com/tejashwikalptaru/cyder/internal/ports"
)

// AlbumArtDir is the directory next to the music files that holds cover images.
const AlbumArtDir = "AlbumArt"

// Reader fills track metadata from tags and the album art directory.
type Reader struct {
	logger *slog.Logger
}

// NewReader creates a new tag reader.
func NewReader(logger *slog.Logger) *Reader {
	return &Reader{logger: logger}
}

// Read returns track with Title, Artist, Album and AlbumArt populated where known.
func (r *Reader) Read(track domain.Track) (domain.Track, error) {
	if track.IsZero() {
		return track, domain.ErrInvalidFilePath
	}

	file, err := os.Open(track.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return track, domain.ErrFileNotFound
		}
		return track, fmt.Errorf("open %s: %w", track.Path, err)
	}
	defer file.Close()

	track.AlbumArt = findAlbumArt(track)

	// Untagged files (plain wav, most rips) fall back to the file name
	meta, err := tag.ReadFrom(file)
	if err != nil || meta == nil {
		r.logger.Debug("no tags", slog.String("path", track.Path), slog.Any("error", err))
		return track, nil
	}

	if title := strings.TrimSpace(meta.Title()); title != "" {
		track.Title = title
	}
	if artist := strings.TrimSpace(meta.Artist()); artist != "" {
		track.Artist = artist
	}
	if album := strings.TrimSpace(meta.Album()); album != "" {
		track.Album = album
	}

	return track, nil
}

// findAlbumArt looks for <dir>/AlbumArt/<name>.png, trying the plain name for dreamy files.
func findAlbumArt(track domain.Track) string {
	for _, name := range []string{track.Name(), track.PlainName()} {
		candidate := filepath.Join(track.Dir(), AlbumArtDir, name+".png")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

// Writer edits ID3v2 tags.
type Writer struct{}

// NewWriter creates a new tag writer.
func NewWriter() *Writer {
	return &Writer{}
}

// WriteTitle sets the title frame of the mp3 at path, creating the tag if needed.
func (w *Writer) WriteTitle(path, title string) error {
	mp3Tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("open tag %s: %w", path, err)
	}
	defer mp3Tag.Close()

	mp3Tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	mp3Tag.SetTitle(title)

	if err := mp3Tag.Save(); err != nil {
		return fmt.Errorf("save tag %s: %w", path, err)
	}
	return nil
}

var (
	_ ports.MetadataReader = (*Reader)(nil)
	_ ports.MetadataWriter = (*Writer)(nil)
)
