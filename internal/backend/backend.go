package backend

import (
	"context"

	"github.com/nuance-dev/convierto-sub000/internal/format"
)

// Options carries the caller-supplied conversion settings recognized by the
// backend.
type Options struct {
	// Quality is the lossy compression factor in [0,1].
	Quality float64
	// FrameRate is the target frame rate for motion outputs.
	FrameRate int
	// VideoBitrate is the target video bitrate (ffmpeg syntax, e.g. "2M").
	// Empty selects the encoder default.
	VideoBitrate string
	// AudioBitrate is the target audio bitrate (e.g. "192k").
	AudioBitrate string
	// PreserveMetadata controls whether source metadata is carried over.
	PreserveMetadata bool
}

// DefaultOptions returns the default conversion settings.
func DefaultOptions() Options {
	return Options{
		Quality:          0.95,
		FrameRate:        30,
		PreserveMetadata: true,
	}
}

// Reduced returns a lower-quality variant of the options, used for the
// single fallback attempt after the primary path fails.
func (o Options) Reduced() Options {
	reduced := o
	reduced.Quality = o.Quality * 0.6
	if reduced.Quality < 0.3 {
		reduced.Quality = 0.3
	}
	if reduced.VideoBitrate == "" {
		reduced.VideoBitrate = "1M"
	}
	if reduced.AudioBitrate == "" {
		reduced.AudioBitrate = "96k"
	}
	return reduced
}

// MediaInfo describes a probed media file.
type MediaInfo struct {
	// Duration in seconds; zero for still images and documents.
	Duration float64
	Width    int
	Height   int
	Codec    string
	// HasAudio reports whether the container carries an audio stream.
	HasAudio bool
	// Pages is the page count for documents; zero otherwise.
	Pages int
}

// Backend is the external media service the engine delegates codec work to.
// Every operation is fallible and must observe context cancellation.
// Output paths are issued by the cache manager; an operation must not leave
// a partial file at its output path when it reports failure.
type Backend interface {
	// Probe inspects a media file and returns its basic properties.
	Probe(ctx context.Context, path string) (*MediaInfo, error)

	// Reencode converts input to the target format at the output path.
	Reencode(ctx context.Context, input, output string, target format.Descriptor, opts Options) error

	// Rasterize renders document pages into numbered image files under
	// outDir and returns them in page order.
	Rasterize(ctx context.Context, doc, outDir string, dpi int) ([]string, error)

	// SampleAudio decodes the input's audio into at most maxSamples
	// normalized mono samples in [-1,1].
	SampleAudio(ctx context.Context, input string, maxSamples int) ([]float64, error)

	// RenderFrames composes an image sequence into a motion container.
	// Each frame is shown for frameSeconds.
	RenderFrames(ctx context.Context, frames []string, frameSeconds float64, output string, target format.Descriptor, opts Options) error

	// ExtractFrame samples a single frame from a video at the given offset.
	ExtractFrame(ctx context.Context, video string, atSeconds float64, output string) error

	// ExtractAudio demuxes and re-encodes only the audio track of a video.
	ExtractAudio(ctx context.Context, video, output string, target format.Descriptor, opts Options) error
}
