package converter

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/nuance-dev/convierto-sub000/internal/backend"
	"github.com/nuance-dev/convierto-sub000/internal/format"
	"github.com/nuance-dev/convierto-sub000/internal/logging"
	"github.com/nuance-dev/convierto-sub000/internal/workers"
)

// waveformSamples is how many normalized samples the visualization keeps.
const waveformSamples = 2048

// AudioConverter handles audio re-encoding and waveform visualization.
type AudioConverter struct {
	backend backend.Backend
}

// NewAudioConverter creates the audio variant.
func NewAudioConverter(b backend.Backend) *AudioConverter {
	return &AudioConverter{backend: b}
}

// CanConvert reports whether the pair is audio->audio, audio->image, or
// audio->video.
func (c *AudioConverter) CanConvert(from, to format.Descriptor) bool {
	_, err := c.ValidateConversion(from, to)
	return err == nil
}

// ValidateConversion resolves the strategy and confirms this variant
// implements it.
func (c *AudioConverter) ValidateConversion(from, to format.Descriptor) (format.Strategy, error) {
	return validateAgainst(from, to, format.StrategyDirect, format.StrategyVisualize)
}

// Convert executes the resolved strategy against the backend.
func (c *AudioConverter) Convert(ctx context.Context, req Request, ws *Workspace) (*Result, error) {
	strategy, err := c.ValidateConversion(req.Source, req.Target)
	if err != nil {
		return nil, err
	}

	switch strategy {
	case format.StrategyDirect:
		return c.reencode(ctx, req, ws)
	case format.StrategyVisualize:
		if req.Target.Category == format.CategoryVideo {
			return c.visualizeVideo(ctx, req, ws)
		}
		return c.visualizeImage(ctx, req, ws)
	default:
		return nil, &UnsupportedError{From: req.Source, To: req.Target}
	}
}

func (c *AudioConverter) reencode(ctx context.Context, req Request, ws *Workspace) (*Result, error) {
	report(req.Progress, 0.1)

	output, err := ws.TempPath(req.Target.Ext)
	if err != nil {
		return nil, &ExportFailedError{Reason: "could not allocate output", Err: err}
	}

	if err := c.backend.Reencode(ctx, req.Input, output, req.Target, req.Options); err != nil {
		return nil, &ConversionFailedError{Reason: "audio re-encode", Err: err}
	}

	report(req.Progress, 1.0)
	return newResult(req, output), nil
}

// visualizeImage renders the whole waveform into a single still image.
func (c *AudioConverter) visualizeImage(ctx context.Context, req Request, ws *Workspace) (*Result, error) {
	report(req.Progress, 0.05)

	samples, err := c.backend.SampleAudio(ctx, req.Input, waveformSamples)
	if err != nil {
		return nil, &ConversionFailedError{Reason: "audio sampling", Err: err}
	}
	report(req.Progress, 0.4)

	canvas, err := renderWaveform(samples, 1.0)
	if err != nil {
		return nil, &ConversionFailedError{Reason: "waveform render", Err: err}
	}

	// Render to PNG first; other image targets go through one more
	// backend re-encode.
	png, err := ws.TempPath("png")
	if err != nil {
		return nil, &ExportFailedError{Reason: "could not allocate output", Err: err}
	}
	if err := imaging.Save(canvas, png); err != nil {
		return nil, &ExportFailedError{Reason: "waveform encode", Err: err}
	}
	report(req.Progress, 0.8)

	output := png
	if req.Target.Ext != "png" {
		output, err = ws.TempPath(req.Target.Ext)
		if err != nil {
			return nil, &ExportFailedError{Reason: "could not allocate output", Err: err}
		}
		if err := c.backend.Reencode(ctx, png, output, req.Target, req.Options); err != nil {
			return nil, &ConversionFailedError{Reason: "waveform re-encode", Err: err}
		}
	}

	report(req.Progress, 1.0)
	return newResult(req, output), nil
}

// visualizeVideo renders a progressive waveform reveal as a frame sequence
// and composes it into a motion container.
func (c *AudioConverter) visualizeVideo(ctx context.Context, req Request, ws *Workspace) (*Result, error) {
	report(req.Progress, 0.02)

	info, err := c.backend.Probe(ctx, req.Input)
	if err != nil {
		return nil, &ConversionFailedError{Reason: "audio probe", Err: err}
	}
	if info.Duration <= 0 {
		return nil, &InvalidInputError{Path: req.Input, Reason: "audio has no duration"}
	}

	samples, err := c.backend.SampleAudio(ctx, req.Input, waveformSamples)
	if err != nil {
		return nil, &ConversionFailedError{Reason: "audio sampling", Err: err}
	}
	report(req.Progress, 0.1)

	fps := req.Options.FrameRate
	if fps <= 0 {
		fps = backend.DefaultOptions().FrameRate
	}
	count := frameCountFor(info.Duration, fps)

	frameDir, err := ws.TempDir()
	if err != nil {
		return nil, &ExportFailedError{Reason: "could not allocate frame directory", Err: err}
	}

	frames, err := c.renderFrameSequence(ctx, samples, count, frameDir, req.Progress)
	if err != nil {
		return nil, err
	}
	report(req.Progress, 0.85)

	output, err := ws.TempPath(req.Target.Ext)
	if err != nil {
		return nil, &ExportFailedError{Reason: "could not allocate output", Err: err}
	}
	if err := c.backend.RenderFrames(ctx, frames, 1.0/float64(fps), output, req.Target, req.Options); err != nil {
		return nil, &ConversionFailedError{Reason: "frame composition", Err: err}
	}

	report(req.Progress, 1.0)
	result := newResult(req, output)
	result.Metadata = map[string]string{
		"frames":   fmt.Sprintf("%d", count),
		"duration": fmt.Sprintf("%.2fs", info.Duration),
	}
	return result, nil
}

// renderFrameSequence draws the reveal frames in parallel and returns their
// paths in order. Frame rendering contributes the 0.1..0.8 progress band.
func (c *AudioConverter) renderFrameSequence(ctx context.Context, samples []float64, count int, dir string, progress ProgressFunc) ([]string, error) {
	frames := make([]string, count)
	for i := range frames {
		frames[i] = filepath.Join(dir, fmt.Sprintf("frame-%06d.png", i+1))
	}

	jobs := make(chan int, count)
	for i := 0; i < count; i++ {
		jobs <- i
	}
	close(jobs)

	numWorkers := workers.ForCPU(8)
	logging.Debug("Rendering %d waveform frames with %d workers", count, numWorkers)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		done     int
	)

	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				if ctx.Err() != nil {
					return
				}

				reveal := float64(i+1) / float64(count)
				canvas, err := renderWaveform(samples, reveal)
				if err == nil {
					err = imaging.Save(canvas, frames[i])
				}

				mu.Lock()
				if err != nil && firstErr == nil {
					firstErr = err
				}
				done++
				// Monotonic within the frame band because done only grows.
				report(progress, 0.1+0.7*float64(done)/float64(count))
				mu.Unlock()

				if err != nil {
					return
				}
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if firstErr != nil {
		return nil, &ConversionFailedError{Reason: "waveform frame render", Err: firstErr}
	}
	return frames, nil
}
