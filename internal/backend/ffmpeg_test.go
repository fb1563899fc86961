package backend

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleProbeOutput = `{
    "streams": [
        {
            "index": 0,
            "codec_name": "h264",
            "codec_type": "video",
            "width": 1920,
            "height": 1080
        },
        {
            "index": 1,
            "codec_name": "aac",
            "codec_type": "audio"
        }
    ],
    "format": {
        "duration": "120.500000",
        "size": "1048576"
    }
}`

func TestParseProbeOutput(t *testing.T) {
	info := parseProbeOutput(sampleProbeOutput)

	if info.Codec != "h264" {
		t.Errorf("Expected codec h264, got %q", info.Codec)
	}
	if info.Width != 1920 || info.Height != 1080 {
		t.Errorf("Expected 1920x1080, got %dx%d", info.Width, info.Height)
	}
	if info.Duration != 120.5 {
		t.Errorf("Expected duration 120.5, got %f", info.Duration)
	}
	if !info.HasAudio {
		t.Error("Expected audio stream to be detected")
	}
}

func TestParseProbeOutputNoAudio(t *testing.T) {
	output := strings.ReplaceAll(sampleProbeOutput, `"codec_type": "audio"`, `"codec_type": "data"`)
	if parseProbeOutput(output).HasAudio {
		t.Error("Expected no audio stream")
	}
}

func TestCrfFor(t *testing.T) {
	tests := []struct {
		quality float64
		want    int
	}{
		{1.0, 18},
		{0.0, 51},
		{-1, 51}, // clamped
		{2, 18},  // clamped
	}

	for _, tt := range tests {
		if got := crfFor(tt.quality); got != tt.want {
			t.Errorf("crfFor(%f) = %d, want %d", tt.quality, got, tt.want)
		}
	}
}

func TestReducedOptions(t *testing.T) {
	opts := DefaultOptions()
	reduced := opts.Reduced()

	if reduced.Quality >= opts.Quality {
		t.Errorf("Reduced quality %f should be below %f", reduced.Quality, opts.Quality)
	}
	if reduced.Quality < 0.3 {
		t.Errorf("Reduced quality %f should not drop below the floor", reduced.Quality)
	}
	if reduced.VideoBitrate == "" || reduced.AudioBitrate == "" {
		t.Error("Reduced options should pin bitrates")
	}

	// The original must be untouched.
	if opts.VideoBitrate != "" {
		t.Error("Reduced() must not mutate the receiver")
	}
}

func TestWriteConcatList(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "out.mp4")
	frames := []string{
		filepath.Join(dir, "frame-000001.png"),
		filepath.Join(dir, "frame-000002.png"),
	}

	list, err := writeConcatList(frames, 1.0/30, output)
	if err != nil {
		t.Fatalf("writeConcatList failed: %v", err)
	}
	defer os.Remove(list)

	data, err := os.ReadFile(list)
	if err != nil {
		t.Fatalf("Could not read list: %v", err)
	}
	content := string(data)

	if !strings.HasPrefix(content, "ffconcat version 1.0\n") {
		t.Error("List should start with the ffconcat header")
	}
	for _, frame := range frames {
		if !strings.Contains(content, frame) {
			t.Errorf("List missing frame %s", frame)
		}
	}
	// The last frame appears twice: once with a duration, once trailing.
	if got := strings.Count(content, frames[1]); got != 2 {
		t.Errorf("Expected final frame listed twice, got %d", got)
	}
	if got := strings.Count(content, "duration "); got != len(frames) {
		t.Errorf("Expected %d duration directives, got %d", len(frames), got)
	}
}

func TestLastLine(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"one\ntwo\nthree\n", "three"},
		{"only", "only"},
		{"trailing\n\n  \n", "trailing"},
		{"", "no tool output"},
	}

	for _, tt := range tests {
		if got := lastLine(tt.in); got != tt.want {
			t.Errorf("lastLine(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
