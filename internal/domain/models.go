// Package domain contains core business models and logic with no external dependencies.
// This package defines the fundamental entities of the Cyder audio core.
package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// DreamySuffix is appended to the base name of dreamified audio files.
const DreamySuffix = "_Dreamy"

// Format is a supported audio container.
type Format string

const (
	// FormatMP3 is an MPEG layer III file
	FormatMP3 Format = "mp3"

	// FormatWAV is a RIFF wave file
	FormatWAV Format = "wav"
)

// Extension returns the file extension including the leading dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// ParseFormat maps a file extension (with or without the dot, any case) to a Format.
func ParseFormat(ext string) (Format, bool) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "mp3":
		return FormatMP3, true
	case "wav":
		return FormatWAV, true
	default:
		return "", false
	}
}

// Track identifies a playable audio file.
// Tracks are values; two tracks are the same track when their paths match.
type Track struct {
	// Path is the absolute path to the audio file
	Path string

	// Format is derived from the file extension
	Format Format

	// Title, Artist and Album come from tag metadata when available
	Title  string
	Artist string
	Album  string

	// AlbumArt is the path of the matching image in the AlbumArt directory, if any
	AlbumArt string
}

// NewTrack creates a track for the given path.
// The path is made absolute and must carry a supported extension.
func NewTrack(path string) (Track, error) {
	if strings.TrimSpace(path) == "" {
		return Track{}, ErrInvalidFilePath
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return Track{}, ErrInvalidFilePath
	}

	format, ok := ParseFormat(filepath.Ext(abs))
	if !ok {
		return Track{}, ErrUnsupportedFormat
	}

	return Track{Path: abs, Format: format}, nil
}

// IsZero reports whether the track is unset.
func (t Track) IsZero() bool {
	return t.Path == ""
}

// Same reports whether both tracks point at the same file.
func (t Track) Same(other Track) bool {
	return t.Path == other.Path
}

// Name returns the file name without its extension.
func (t Track) Name() string {
	base := filepath.Base(t.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Dir returns the directory containing the track.
func (t Track) Dir() string {
	return filepath.Dir(t.Path)
}

// Dreamified reports whether the file name carries the dreamy suffix.
func (t Track) Dreamified() bool {
	return strings.HasSuffix(t.Name(), DreamySuffix)
}

// DisplayName returns the title shown to users.
// Dreamy files drop the suffix and read "<name> (dreamy)".
func (t Track) DisplayName() string {
	if t.Dreamified() {
		return strings.TrimSuffix(t.Name(), DreamySuffix) + " (dreamy)"
	}
	if t.Title != "" {
		return t.Title
	}
	return t.Name()
}

// DreamyName returns the base name the dreamified version of this track uses.
func (t Track) DreamyName() string {
	if t.Dreamified() {
		return t.Name()
	}
	return t.Name() + DreamySuffix
}

// PlainName returns the base name without the dreamy suffix.
func (t Track) PlainName() string {
	return strings.TrimSuffix(t.Name(), DreamySuffix)
}

// SessionStatus is the lifecycle state of a playback session.
// It only ever moves forward, except for the PLAYING and PAUSED pair.
type SessionStatus int

const (
	// SessionNotStarted is a session that has not begun decoding
	SessionNotStarted SessionStatus = iota

	// SessionPlaying is a session whose decode loop is running
	SessionPlaying

	// SessionPaused is a session whose stream was closed at a stored offset
	SessionPaused

	// SessionFinished is terminal
	SessionFinished
)

// String returns a human-readable representation of the session status.
func (s SessionStatus) String() string {
	switch s {
	case SessionNotStarted:
		return "not_started"
	case SessionPlaying:
		return "playing"
	case SessionPaused:
		return "paused"
	case SessionFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// FinishReason records why a session reached SessionFinished.
type FinishReason int

const (
	// FinishNone means the session has not finished
	FinishNone FinishReason = iota

	// FinishCompleted means the decoder reached the natural end of the stream
	FinishCompleted

	// FinishStopped means stop was requested
	FinishStopped

	// FinishFailed means the decoder failed permanently
	FinishFailed
)

// PlaybackSession is one load of a track into the engine.
type PlaybackSession struct {
	// ID is a unique identifier for the session (UUID)
	ID string

	// Track is the audio being played
	Track Track

	// Offset is where playback starts or resumes
	Offset time.Duration

	// Status is the current lifecycle state
	Status SessionStatus

	// Reason is set once Status is SessionFinished
	Reason FinishReason

	// Restarts counts decoder restarts after transient failures
	Restarts int

	// StartedAt is when the session was created
	StartedAt time.Time
}

// Playlist is a snapshot of the playlist controller.
type Playlist struct {
	// Candidates are the supported audio siblings of the current track, sorted by name
	Candidates []Track

	// Queue is the FIFO play-next queue
	Queue []Track

	// Repeat replays the current track on completion
	Repeat bool

	// Shuffle picks a random candidate on completion
	Shuffle bool
}

// ProgressUpdate is one emitted sample of the progress tracker.
type ProgressUpdate struct {
	SecondsElapsed   int
	SecondsRemaining int
	Fraction         float64

	// UserTriggered is set for updates caused by a seek rather than the poll loop
	UserTriggered bool
}

// TranscodeKind identifies the operation a job performs.
type TranscodeKind string

const (
	// TranscodeConvert changes the container format
	TranscodeConvert TranscodeKind = "convert"

	// TranscodeDreamify applies the highpass/lowpass filter pair
	TranscodeDreamify TranscodeKind = "dreamify"

	// TranscodeFetch extracts audio from a remote video
	TranscodeFetch TranscodeKind = "fetch"
)

// TranscodeStatus is the state of a transcode job.
type TranscodeStatus int

const (
	// JobPending is a job that has not started its process yet
	JobPending TranscodeStatus = iota

	// JobRunning is a job whose process is running or whose output is being awaited
	JobRunning

	// JobCompleted is a job whose output is fully written
	JobCompleted

	// JobFailed is a job that produced no usable output
	JobFailed

	// JobDiscarded is a job whose result will be dropped by its owner
	JobDiscarded
)

// String returns a human-readable representation of the job status.
func (s TranscodeStatus) String() string {
	switch s {
	case JobPending:
		return "pending"
	case JobRunning:
		return "running"
	case JobCompleted:
		return "completed"
	case JobFailed:
		return "failed"
	case JobDiscarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// TranscodeJob is one outstanding external conversion.
type TranscodeJob struct {
	ID     string
	Kind   TranscodeKind
	Source string
	Target Format

	// Output is decided before the process starts
	Output string

	Status    TranscodeStatus
	CreatedAt time.Time
}

// TranscodeResult is what an asynchronous transcode yields.
type TranscodeResult struct {
	Job    TranscodeJob
	Output string
	Err    error
}

// Ok reports whether the job produced an output file.
func (r TranscodeResult) Ok() bool {
	return r.Err == nil && r.Output != ""
}

// PlayerState is a snapshot of the player for presentation layers.
type PlayerState struct {
	// Track is the loaded track (zero if none)
	Track Track

	// Session is the current playback session (zero if none)
	Session PlaybackSession

	// Duration is the total length, or zero if unknown
	Duration time.Duration

	// Elapsed is the current playback position
	Elapsed time.Duration

	Repeat  bool
	Shuffle bool
	Queue   []Track

	// Locked is true while required binaries are missing
	Locked bool
}

// Binary names an external executable the audio core shells out to.
type Binary string

const (
	// BinaryFFmpeg transcodes and filters audio
	BinaryFFmpeg Binary = "ffmpeg"

	// BinaryFFprobe reports container metadata such as duration
	BinaryFFprobe Binary = "ffprobe"

	// BinaryFFplay ships in the same bundle as ffmpeg
	BinaryFFplay Binary = "ffplay"

	// BinaryYoutubeDL extracts audio from remote videos
	BinaryYoutubeDL Binary = "youtube-dl"
)

// RequiredBinaries are the binaries the player needs before it unlocks.
var RequiredBinaries = []Binary{BinaryFFmpeg, BinaryFFprobe}
