package converter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nuance-dev/convierto-sub000/internal/backend"
	"github.com/nuance-dev/convierto-sub000/internal/format"
	"github.com/nuance-dev/convierto-sub000/internal/logging"
)

// rasterDPI is the resolution document pages are rendered at.
const rasterDPI = 150

// DocumentConverter handles document rasterization, image-to-document
// wrapping, and document passthrough.
type DocumentConverter struct {
	backend backend.Backend
}

// NewDocumentConverter creates the document variant.
func NewDocumentConverter(b backend.Backend) *DocumentConverter {
	return &DocumentConverter{backend: b}
}

// CanConvert reports whether the pair is document->image,
// document->document, or image->document.
func (c *DocumentConverter) CanConvert(from, to format.Descriptor) bool {
	_, err := c.ValidateConversion(from, to)
	return err == nil
}

// ValidateConversion resolves the strategy and confirms this variant
// implements it.
func (c *DocumentConverter) ValidateConversion(from, to format.Descriptor) (format.Strategy, error) {
	return validateAgainst(from, to,
		format.StrategyDirect, format.StrategyExtractFrame, format.StrategyCombine)
}

// Convert executes the resolved strategy against the backend.
func (c *DocumentConverter) Convert(ctx context.Context, req Request, ws *Workspace) (*Result, error) {
	strategy, err := c.ValidateConversion(req.Source, req.Target)
	if err != nil {
		return nil, err
	}

	switch strategy {
	case format.StrategyDirect:
		return c.passthrough(ctx, req, ws)
	case format.StrategyExtractFrame:
		return c.rasterize(ctx, req, ws)
	case format.StrategyCombine:
		return c.combine(ctx, req, ws)
	default:
		return nil, &UnsupportedError{From: req.Source, To: req.Target}
	}
}

func (c *DocumentConverter) passthrough(ctx context.Context, req Request, ws *Workspace) (*Result, error) {
	report(req.Progress, 0.1)

	output, err := ws.TempPath(req.Target.Ext)
	if err != nil {
		return nil, &ExportFailedError{Reason: "could not allocate output", Err: err}
	}
	if err := c.backend.Reencode(ctx, req.Input, output, req.Target, req.Options); err != nil {
		return nil, &ConversionFailedError{Reason: "document re-encode", Err: err}
	}

	report(req.Progress, 1.0)
	return newResult(req, output), nil
}

// rasterize renders document pages to images. A single-page document
// produces one output file; a multi-page document produces a directory of
// sequentially numbered page images.
func (c *DocumentConverter) rasterize(ctx context.Context, req Request, ws *Workspace) (*Result, error) {
	report(req.Progress, 0.02)

	info, err := c.backend.Probe(ctx, req.Input)
	if err != nil {
		return nil, &ConversionFailedError{Reason: "document probe", Err: err}
	}
	if info.Pages < 1 {
		return nil, &InvalidInputError{Path: req.Input, Reason: "document has no pages"}
	}
	report(req.Progress, 0.1)

	rasterDir, err := ws.TempDir()
	if err != nil {
		return nil, &ExportFailedError{Reason: "could not allocate raster directory", Err: err}
	}

	pages, err := c.backend.Rasterize(ctx, req.Input, rasterDir, rasterDPI)
	if err != nil {
		return nil, &ConversionFailedError{Reason: "rasterization", Err: err}
	}
	if len(pages) != info.Pages {
		logging.Warn("Rasterizer produced %d pages, probe reported %d for %s",
			len(pages), info.Pages, req.Input)
	}
	report(req.Progress, 0.4)

	if len(pages) == 1 {
		output, err := c.encodePage(ctx, req, ws, pages[0])
		if err != nil {
			return nil, err
		}
		report(req.Progress, 1.0)
		return newResult(req, output), nil
	}

	outDir, err := ws.TempDir()
	if err != nil {
		return nil, &ExportFailedError{Reason: "could not allocate output directory", Err: err}
	}

	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		name := fmt.Sprintf("page-%03d.%s", i+1, req.Target.Ext)
		dst := filepath.Join(outDir, name)
		if err := c.convertPage(ctx, req, page, dst); err != nil {
			// Remove the partially filled directory so no incomplete
			// output is visible.
			os.RemoveAll(outDir)
			return nil, err
		}

		// Progress reaches 1.0 only once the final page is done.
		report(req.Progress, 0.4+0.6*float64(i+1)/float64(len(pages)))
	}

	result := newResult(req, outDir)
	result.SuggestedName = suggestedPagesName(req.Meta.Name)
	result.Metadata = map[string]string{"pages": fmt.Sprintf("%d", len(pages))}
	return result, nil
}

// encodePage turns a single rasterized page into the target image format.
func (c *DocumentConverter) encodePage(ctx context.Context, req Request, ws *Workspace, page string) (string, error) {
	if req.Target.Ext == "png" {
		return page, nil
	}
	output, err := ws.TempPath(req.Target.Ext)
	if err != nil {
		return "", &ExportFailedError{Reason: "could not allocate output", Err: err}
	}
	if err := c.backend.Reencode(ctx, page, output, req.Target, req.Options); err != nil {
		return "", &ConversionFailedError{Reason: "page encode", Err: err}
	}
	return output, nil
}

// convertPage writes one rasterized page to its numbered destination.
func (c *DocumentConverter) convertPage(ctx context.Context, req Request, page, dst string) error {
	if req.Target.Ext == "png" {
		if err := os.Rename(page, dst); err != nil {
			return &ExportFailedError{Reason: "page move", Err: err}
		}
		return nil
	}
	if err := c.backend.Reencode(ctx, page, dst, req.Target, req.Options); err != nil {
		return &ConversionFailedError{Reason: "page encode", Err: err}
	}
	return nil
}

// combine wraps a single image as a one-page document.
func (c *DocumentConverter) combine(ctx context.Context, req Request, ws *Workspace) (*Result, error) {
	report(req.Progress, 0.1)

	output, err := ws.TempPath(req.Target.Ext)
	if err != nil {
		return nil, &ExportFailedError{Reason: "could not allocate output", Err: err}
	}
	if err := c.backend.Reencode(ctx, req.Input, output, req.Target, req.Options); err != nil {
		return nil, &ConversionFailedError{Reason: "image-to-document wrap", Err: err}
	}

	report(req.Progress, 1.0)
	return newResult(req, output), nil
}

// suggestedPagesName names the multi-page output directory.
func suggestedPagesName(original string) string {
	base := original
	if ext := filepath.Ext(original); ext != "" {
		base = original[:len(original)-len(ext)]
	}
	if base == "" {
		base = "document"
	}
	return base + "_pages"
}
