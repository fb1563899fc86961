package converter

import (
	"context"

	"github.com/nuance-dev/convierto-sub000/internal/backend"
	"github.com/nuance-dev/convierto-sub000/internal/format"
	"github.com/nuance-dev/convierto-sub000/internal/logging"
)

// VideoConverter handles video re-encoding, thumbnail frame extraction, and
// audio track demuxing.
type VideoConverter struct {
	backend backend.Backend
}

// NewVideoConverter creates the video variant.
func NewVideoConverter(b backend.Backend) *VideoConverter {
	return &VideoConverter{backend: b}
}

// CanConvert reports whether the pair is video->video, video->image, or
// video->audio.
func (c *VideoConverter) CanConvert(from, to format.Descriptor) bool {
	_, err := c.ValidateConversion(from, to)
	return err == nil
}

// ValidateConversion resolves the strategy and confirms this variant
// implements it.
func (c *VideoConverter) ValidateConversion(from, to format.Descriptor) (format.Strategy, error) {
	return validateAgainst(from, to,
		format.StrategyDirect, format.StrategyExtractFrame, format.StrategyExtractAudio)
}

// Convert executes the resolved strategy against the backend.
func (c *VideoConverter) Convert(ctx context.Context, req Request, ws *Workspace) (*Result, error) {
	strategy, err := c.ValidateConversion(req.Source, req.Target)
	if err != nil {
		return nil, err
	}

	switch strategy {
	case format.StrategyDirect:
		return c.reencode(ctx, req, ws)
	case format.StrategyExtractFrame:
		return c.extractFrame(ctx, req, ws)
	case format.StrategyExtractAudio:
		return c.extractAudio(ctx, req, ws)
	default:
		return nil, &UnsupportedError{From: req.Source, To: req.Target}
	}
}

func (c *VideoConverter) reencode(ctx context.Context, req Request, ws *Workspace) (*Result, error) {
	report(req.Progress, 0.05)

	output, err := ws.TempPath(req.Target.Ext)
	if err != nil {
		return nil, &ExportFailedError{Reason: "could not allocate output", Err: err}
	}

	if err := c.backend.Reencode(ctx, req.Input, output, req.Target, req.Options); err != nil {
		return nil, &ConversionFailedError{Reason: "video re-encode", Err: err}
	}

	report(req.Progress, 1.0)
	return newResult(req, output), nil
}

// extractFrame samples one representative frame at a third of the total
// duration, which avoids black leader and trailer frames.
func (c *VideoConverter) extractFrame(ctx context.Context, req Request, ws *Workspace) (*Result, error) {
	report(req.Progress, 0.05)

	info, err := c.backend.Probe(ctx, req.Input)
	if err != nil {
		return nil, &ConversionFailedError{Reason: "video probe", Err: err}
	}
	at := info.Duration / 3
	report(req.Progress, 0.3)

	output, err := ws.TempPath(req.Target.Ext)
	if err != nil {
		return nil, &ExportFailedError{Reason: "could not allocate output", Err: err}
	}

	logging.Debug("Extracting frame from %s at %.2fs of %.2fs", req.Input, at, info.Duration)
	if err := c.backend.ExtractFrame(ctx, req.Input, at, output); err != nil {
		return nil, &ConversionFailedError{Reason: "frame extraction", Err: err}
	}

	report(req.Progress, 1.0)
	return newResult(req, output), nil
}

func (c *VideoConverter) extractAudio(ctx context.Context, req Request, ws *Workspace) (*Result, error) {
	report(req.Progress, 0.05)

	info, err := c.backend.Probe(ctx, req.Input)
	if err != nil {
		return nil, &ConversionFailedError{Reason: "video probe", Err: err}
	}
	if !info.HasAudio {
		return nil, &InvalidInputError{Path: req.Input, Reason: "video has no audio track"}
	}
	report(req.Progress, 0.2)

	output, err := ws.TempPath(req.Target.Ext)
	if err != nil {
		return nil, &ExportFailedError{Reason: "could not allocate output", Err: err}
	}

	if err := c.backend.ExtractAudio(ctx, req.Input, output, req.Target, req.Options); err != nil {
		return nil, &ConversionFailedError{Reason: "audio extraction", Err: err}
	}

	report(req.Progress, 1.0)
	return newResult(req, output), nil
}
