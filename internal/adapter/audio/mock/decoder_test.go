package mock

import (
	"errors"
	"testing"
	"time"

	"github.com/tejashwikalptaru/cyder/internal/domain"
)

// TestOpenDefaults tests the default stream state.
func TestOpenDefaults(t *testing.T) {
	decoder := NewDecoder()

	stream, err := decoder.Open("/music/a.mp3")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if stream.Length() != DefaultLength {
		t.Errorf("Expected length %s, got %s", DefaultLength, stream.Length())
	}
	if stream.Position() != 0 {
		t.Errorf("Expected position 0, got %s", stream.Position())
	}
	if decoder.Latest() != stream {
		t.Error("Latest should return the opened stream")
	}
}

// TestOpenError tests configured open failures.
func TestOpenError(t *testing.T) {
	decoder := NewDecoder()
	decoder.SetOpenError("/music/gone.mp3", domain.ErrFileNotFound)

	if _, err := decoder.Open("/music/gone.mp3"); !errors.Is(err, domain.ErrFileNotFound) {
		t.Errorf("Expected ErrFileNotFound, got %v", err)
	}
	if decoder.OpenCount() != 1 || len(decoder.Opened()) != 0 {
		t.Error("Failed opens count but are not recorded as opened")
	}

	decoder.SetOpenError("/music/gone.mp3", nil)
	if _, err := decoder.Open("/music/gone.mp3"); err != nil {
		t.Errorf("Expected open to succeed after clearing, got %v", err)
	}
}

// TestSeekClamps tests seek bounds.
func TestSeekClamps(t *testing.T) {
	decoder := NewDecoder()
	decoder.SetLength("/a.wav", 10*time.Second)

	stream, _ := decoder.Open("/a.wav")

	_ = stream.Seek(-time.Second)
	if stream.Position() != 0 {
		t.Errorf("Expected 0, got %s", stream.Position())
	}
	_ = stream.Seek(time.Minute)
	if stream.Position() != 10*time.Second {
		t.Errorf("Expected 10s, got %s", stream.Position())
	}
}

// TestPlayLifecycle tests the ways Play can return.
func TestPlayLifecycle(t *testing.T) {
	decoder := NewDecoder()

	cases := []struct {
		name string
		end  func(*Stream)
		want error
	}{
		{"complete", (*Stream).Complete, nil},
		{"close", func(s *Stream) { _ = s.Close() }, domain.ErrStreamClosed},
		{"fail", func(s *Stream) { s.Fail(domain.ErrDecodeTransient) }, domain.ErrDecodeTransient},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opened, _ := decoder.Open("/a.mp3")
			result := make(chan error, 1)
			go func() { result <- opened.Play() }()

			stream, err := decoder.WaitPlaying(time.Second)
			if err != nil {
				t.Fatal(err)
			}
			stream.Advance(time.Second)
			tc.end(stream)

			got := <-result
			if tc.want == nil && got != nil {
				t.Errorf("Expected nil, got %v", got)
			}
			if tc.want != nil && !errors.Is(got, tc.want) {
				t.Errorf("Expected %v, got %v", tc.want, got)
			}
		})
	}
}

// TestFailNextPlays tests queued play failures.
func TestFailNextPlays(t *testing.T) {
	decoder := NewDecoder()
	boom := errors.New("boom")
	decoder.FailNextPlays(boom)

	stream, _ := decoder.Open("/a.mp3")
	if err := stream.Play(); !errors.Is(err, boom) {
		t.Errorf("Expected boom, got %v", err)
	}

	stream, _ = decoder.Open("/a.mp3")
	_ = stream.Close()
	if err := stream.Play(); !errors.Is(err, domain.ErrStreamClosed) {
		t.Errorf("Expected ErrStreamClosed, got %v", err)
	}
}
