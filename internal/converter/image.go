package converter

import (
	"context"

	"github.com/nuance-dev/convierto-sub000/internal/backend"
	"github.com/nuance-dev/convierto-sub000/internal/format"
	"github.com/nuance-dev/convierto-sub000/internal/logging"
)

// stillClipSeconds is how long a single still image plays when wrapped into
// a motion container.
const stillClipSeconds = 3.0

// ImageConverter handles still image re-encoding and still-to-video
// wrapping.
type ImageConverter struct {
	backend backend.Backend
}

// NewImageConverter creates the image variant.
func NewImageConverter(b backend.Backend) *ImageConverter {
	return &ImageConverter{backend: b}
}

// CanConvert reports whether the pair is image->image or image->video.
func (c *ImageConverter) CanConvert(from, to format.Descriptor) bool {
	_, err := c.ValidateConversion(from, to)
	return err == nil
}

// ValidateConversion resolves the strategy and confirms this variant
// implements it.
func (c *ImageConverter) ValidateConversion(from, to format.Descriptor) (format.Strategy, error) {
	return validateAgainst(from, to, format.StrategyDirect, format.StrategyCreateVideo)
}

// Convert executes the resolved strategy against the backend.
func (c *ImageConverter) Convert(ctx context.Context, req Request, ws *Workspace) (*Result, error) {
	strategy, err := c.ValidateConversion(req.Source, req.Target)
	if err != nil {
		return nil, err
	}

	switch strategy {
	case format.StrategyDirect:
		return c.reencode(ctx, req, ws)
	case format.StrategyCreateVideo:
		return c.createVideo(ctx, req, ws)
	default:
		return nil, &UnsupportedError{From: req.Source, To: req.Target}
	}
}

func (c *ImageConverter) reencode(ctx context.Context, req Request, ws *Workspace) (*Result, error) {
	report(req.Progress, 0.1)

	output, err := ws.TempPath(req.Target.Ext)
	if err != nil {
		return nil, &ExportFailedError{Reason: "could not allocate output", Err: err}
	}

	if err := c.backend.Reencode(ctx, req.Input, output, req.Target, req.Options); err != nil {
		return nil, &ConversionFailedError{Reason: "image re-encode", Err: err}
	}

	report(req.Progress, 1.0)
	return newResult(req, output), nil
}

func (c *ImageConverter) createVideo(ctx context.Context, req Request, ws *Workspace) (*Result, error) {
	report(req.Progress, 0.1)

	output, err := ws.TempPath(req.Target.Ext)
	if err != nil {
		return nil, &ExportFailedError{Reason: "could not allocate output", Err: err}
	}

	logging.Debug("Wrapping still %s into %0.fs clip", req.Input, stillClipSeconds)
	report(req.Progress, 0.3)

	err = c.backend.RenderFrames(ctx, []string{req.Input}, stillClipSeconds, output, req.Target, req.Options)
	if err != nil {
		return nil, &ConversionFailedError{Reason: "still-to-video render", Err: err}
	}

	report(req.Progress, 1.0)
	return newResult(req, output), nil
}
