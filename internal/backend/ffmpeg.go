package backend

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/nuance-dev/convierto-sub000/internal/format"
	"github.com/nuance-dev/convierto-sub000/internal/logging"
)

// runTool executes an external tool, capturing stderr for diagnostics. When
// the tool fails, any partial file at output is removed so no incomplete
// artifact remains visible.
func runTool(ctx context.Context, tool, output string, args ...string) error {
	if tool == "" {
		return fmt.Errorf("required backend tool is not installed")
	}

	cmd := exec.CommandContext(ctx, tool, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if output != "" {
			os.Remove(output)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s failed: %w - %s", cmd.Path, err, lastLine(stderr.String()))
	}
	return nil
}

// lastLine returns the final non-empty line of tool output, which is where
// ffmpeg puts the actual failure reason.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return "no tool output"
}

// probeAV extracts duration, codec, and dimensions via ffprobe.
func (l *Local) probeAV(ctx context.Context, path string) (*MediaInfo, error) {
	if l.ffprobe == "" {
		return nil, fmt.Errorf("ffprobe is not installed")
	}

	cmd := exec.CommandContext(ctx, l.ffprobe,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ffprobe error: %w - %s", err, lastLine(stderr.String()))
	}

	return parseProbeOutput(stdout.String()), nil
}

// parseProbeOutput scans ffprobe's JSON output for the fields the engine
// needs. A full JSON decode is deliberately avoided; the output schema
// varies across ffprobe builds and only four fields matter here.
func parseProbeOutput(output string) *MediaInfo {
	info := &MediaInfo{}

	if v, ok := scanJSONField(output, `"duration"`); ok {
		info.Duration, _ = strconv.ParseFloat(v, 64)
	}
	if v, ok := scanJSONField(output, `"codec_name"`); ok {
		info.Codec = v
	}
	if v, ok := scanJSONField(output, `"width"`); ok {
		info.Width, _ = strconv.Atoi(v)
	}
	if v, ok := scanJSONField(output, `"height"`); ok {
		info.Height, _ = strconv.Atoi(v)
	}
	info.HasAudio = strings.Contains(output, `"codec_type": "audio"`) ||
		strings.Contains(output, `"codec_type":"audio"`)

	return info
}

// scanJSONField finds the first occurrence of a quoted key and returns its
// scalar value with quotes and whitespace stripped.
func scanJSONField(output, key string) (string, bool) {
	idx := strings.Index(output, key)
	if idx == -1 {
		return "", false
	}
	rest := output[idx+len(key):]
	colon := strings.Index(rest, ":")
	if colon == -1 {
		return "", false
	}
	rest = rest[colon+1:]

	end := len(rest)
	for i, r := range rest {
		if r == ',' || r == '}' || r == '\n' {
			end = i
			break
		}
	}
	value := strings.Trim(strings.TrimSpace(rest[:end]), `"`)
	if value == "" {
		return "", false
	}
	return value, true
}

// crfFor maps the [0,1] quality factor onto ffmpeg's CRF scale.
func crfFor(quality float64) int {
	if quality < 0 {
		quality = 0
	}
	if quality > 1 {
		quality = 1
	}
	return 51 - int(quality*33)
}

// reencodeAV re-encodes audio or video into the target format.
func (l *Local) reencodeAV(ctx context.Context, input, output string, target format.Descriptor, opts Options) error {
	args := []string{"-y", "-i", input}
	if !opts.PreserveMetadata {
		args = append(args, "-map_metadata", "-1")
	}

	switch target.Category {
	case format.CategoryAudio:
		args = append(args, "-vn")
		args = append(args, audioCodecArgs(target.Ext, opts)...)
	case format.CategoryVideo:
		args = append(args, videoCodecArgs(target.Ext, opts)...)
		if opts.FrameRate > 0 {
			args = append(args, "-r", strconv.Itoa(opts.FrameRate))
		}
	case format.CategoryImage:
		// Image targets the in-process codec cannot produce (webp, heic).
		args = append(args, "-frames:v", "1", "-q:v", strconv.Itoa(jpegScaleFor(opts.Quality)))
	default:
		return fmt.Errorf("ffmpeg cannot produce %s output", target.Category)
	}

	args = append(args, output)
	logging.Debug("Reencode %s -> %s (%s)", input, output, target.Ext)
	return runTool(ctx, l.ffmpeg, output, args...)
}

// jpegScaleFor maps quality [0,1] onto ffmpeg's 2..31 q:v scale (lower is
// better).
func jpegScaleFor(quality float64) int {
	if quality < 0 {
		quality = 0
	}
	if quality > 1 {
		quality = 1
	}
	return 31 - int(quality*29)
}

func audioCodecArgs(ext string, opts Options) []string {
	bitrate := opts.AudioBitrate
	switch ext {
	case "mp3":
		q := strconv.Itoa(int((1 - opts.Quality) * 9))
		return []string{"-c:a", "libmp3lame", "-q:a", q}
	case "m4a", "aac":
		if bitrate == "" {
			bitrate = "192k"
		}
		return []string{"-c:a", "aac", "-b:a", bitrate}
	case "ogg":
		return []string{"-c:a", "libvorbis", "-q:a", strconv.Itoa(int(opts.Quality * 10))}
	case "flac":
		return []string{"-c:a", "flac"}
	case "wav":
		return []string{"-c:a", "pcm_s16le"}
	case "aiff":
		return []string{"-c:a", "pcm_s16be"}
	default:
		return []string{}
	}
}

func videoCodecArgs(ext string, opts Options) []string {
	var args []string
	switch ext {
	case "webm":
		args = []string{"-c:v", "libvpx-vp9", "-c:a", "libopus"}
	default:
		args = []string{"-c:v", "libx264", "-preset", "fast",
			"-crf", strconv.Itoa(crfFor(opts.Quality)),
			"-pix_fmt", "yuv420p", "-c:a", "aac"}
		if ext == "mp4" || ext == "m4v" || ext == "mov" {
			args = append(args, "-movflags", "+faststart")
		}
	}
	if opts.VideoBitrate != "" {
		args = append(args, "-b:v", opts.VideoBitrate)
	}
	if opts.AudioBitrate != "" {
		args = append(args, "-b:a", opts.AudioBitrate)
	}
	return args
}

// ExtractFrame samples a single frame at the given offset.
func (l *Local) ExtractFrame(ctx context.Context, video string, atSeconds float64, output string) error {
	if atSeconds < 0 {
		atSeconds = 0
	}
	args := []string{
		"-y",
		"-ss", strconv.FormatFloat(atSeconds, 'f', 3, 64),
		"-i", video,
		"-frames:v", "1",
		"-q:v", "2",
		output,
	}
	return runTool(ctx, l.ffmpeg, output, args...)
}

// ExtractAudio demuxes the audio track and re-encodes it to the target.
func (l *Local) ExtractAudio(ctx context.Context, video, output string, target format.Descriptor, opts Options) error {
	args := []string{"-y", "-i", video, "-vn"}
	if !opts.PreserveMetadata {
		args = append(args, "-map_metadata", "-1")
	}
	args = append(args, audioCodecArgs(target.Ext, opts)...)
	args = append(args, output)
	return runTool(ctx, l.ffmpeg, output, args...)
}

// SampleAudio decodes the input to normalized mono samples, at most
// maxSamples of them, evenly spread over the whole track.
func (l *Local) SampleAudio(ctx context.Context, input string, maxSamples int) ([]float64, error) {
	if l.ffmpeg == "" {
		return nil, fmt.Errorf("ffmpeg is not installed")
	}
	if maxSamples <= 0 {
		return nil, fmt.Errorf("maxSamples must be positive, got %d", maxSamples)
	}

	cmd := exec.CommandContext(ctx, l.ffmpeg,
		"-i", input,
		"-ac", "1",
		"-ar", "8000",
		"-f", "f64le",
		"-",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("audio decode failed: %w - %s", err, lastLine(stderr.String()))
	}

	raw := stdout.Bytes()
	total := len(raw) / 8
	if total == 0 {
		return nil, fmt.Errorf("audio decode produced no samples")
	}

	stride := total / maxSamples
	if stride < 1 {
		stride = 1
	}

	samples := make([]float64, 0, maxSamples)
	for i := 0; i < total && len(samples) < maxSamples; i += stride {
		bits := binary.LittleEndian.Uint64(raw[i*8 : i*8+8])
		v := math.Float64frombits(bits)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		if v < -1 {
			v = -1
		}
		samples = append(samples, v)
	}
	return samples, nil
}

// RenderFrames composes an image sequence into a motion container via the
// concat demuxer. Each frame is displayed for frameSeconds.
func (l *Local) RenderFrames(ctx context.Context, frames []string, frameSeconds float64, output string, target format.Descriptor, opts Options) error {
	if len(frames) == 0 {
		return fmt.Errorf("no frames to render")
	}
	if frameSeconds <= 0 {
		return fmt.Errorf("frame duration must be positive, got %f", frameSeconds)
	}

	list, err := writeConcatList(frames, frameSeconds, output)
	if err != nil {
		return err
	}
	defer os.Remove(list)

	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", list,
	}
	args = append(args, videoCodecArgs(target.Ext, opts)...)
	if opts.FrameRate > 0 {
		args = append(args, "-r", strconv.Itoa(opts.FrameRate))
	}
	args = append(args, output)

	logging.Debug("Rendering %d frames into %s", len(frames), output)
	return runTool(ctx, l.ffmpeg, output, args...)
}

// writeConcatList emits an ffconcat script next to the output path. The
// final frame is listed twice because the concat demuxer ignores the
// duration directive on the last entry.
func writeConcatList(frames []string, frameSeconds float64, output string) (string, error) {
	var b strings.Builder
	b.WriteString("ffconcat version 1.0\n")
	for _, frame := range frames {
		fmt.Fprintf(&b, "file '%s'\n", strings.ReplaceAll(frame, "'", `'\''`))
		fmt.Fprintf(&b, "duration %f\n", frameSeconds)
	}
	fmt.Fprintf(&b, "file '%s'\n", strings.ReplaceAll(frames[len(frames)-1], "'", `'\''`))

	list := output + ".ffconcat"
	if err := os.WriteFile(list, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("failed to write frame list: %w", err)
	}
	return list, nil
}
