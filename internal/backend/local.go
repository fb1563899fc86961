package backend

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"

	"github.com/nuance-dev/convierto-sub000/internal/format"
	"github.com/nuance-dev/convierto-sub000/internal/logging"
)

// Local is the default Media Backend for a single machine. It routes image
// work in-process and delegates audio, video, and document work to external
// tools.
type Local struct {
	ffmpeg   string
	ffprobe  string
	pdftoppm string
	pdfinfo  string
	magick   string
}

// NewLocal creates a local backend, resolving external tools on PATH.
// Missing tools are logged; the corresponding operations will fail with a
// descriptive error when first used.
func NewLocal() *Local {
	l := &Local{}
	for _, tool := range []struct {
		name string
		dst  *string
	}{
		{"ffmpeg", &l.ffmpeg},
		{"ffprobe", &l.ffprobe},
		{"pdftoppm", &l.pdftoppm},
		{"pdfinfo", &l.pdfinfo},
	} {
		path, err := exec.LookPath(tool.name)
		if err != nil {
			logging.Warn("Backend tool %s not found on PATH, related conversions will fail", tool.name)
			continue
		}
		*tool.dst = path
		logging.Debug("Backend tool %s: %s", tool.name, path)
	}

	// ImageMagick ships as either magick (v7) or convert (v6).
	for _, name := range []string{"magick", "convert"} {
		if path, err := exec.LookPath(name); err == nil {
			l.magick = path
			logging.Debug("Backend tool %s: %s", name, path)
			break
		}
	}
	if l.magick == "" {
		logging.Warn("ImageMagick not found on PATH, image-to-document conversions will fail")
	}
	return l
}

// Tools reports which external tools were resolved on PATH.
func (l *Local) Tools() map[string]bool {
	return map[string]bool{
		"ffmpeg":   l.ffmpeg != "",
		"ffprobe":  l.ffprobe != "",
		"pdftoppm": l.pdftoppm != "",
		"pdfinfo":  l.pdfinfo != "",
		"magick":   l.magick != "",
	}
}

// Probe inspects a media file. Images are decoded in-process, documents go
// through pdfinfo, and everything else through ffprobe.
func (l *Local) Probe(ctx context.Context, path string) (*MediaInfo, error) {
	desc, err := format.Parse(path)
	if err != nil {
		return nil, err
	}

	switch desc.Category {
	case format.CategoryImage:
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		cfg, _, err := image.DecodeConfig(f)
		if err != nil {
			// Formats without a registered in-process decoder (heic) still
			// probe fine through ffprobe.
			return l.probeAV(ctx, path)
		}
		return &MediaInfo{Width: cfg.Width, Height: cfg.Height}, nil
	case format.CategoryDocument:
		return l.probeDocument(ctx, path)
	default:
		return l.probeAV(ctx, path)
	}
}

// Reencode converts input to the target format at the output path.
func (l *Local) Reencode(ctx context.Context, input, output string, target format.Descriptor, opts Options) error {
	in, err := format.Parse(input)
	if err != nil {
		return err
	}

	switch {
	case in.Category == format.CategoryImage && target.Category == format.CategoryImage:
		return l.reencodeImage(ctx, input, output, target, opts)
	case in.Category == format.CategoryImage && target.Category == format.CategoryDocument:
		return runTool(ctx, l.magick, output, input, output)
	case in.Category == format.CategoryDocument && target.Category == format.CategoryDocument:
		// Document re-encode is a passthrough copy.
		return copyFile(input, output)
	default:
		return l.reencodeAV(ctx, input, output, target, opts)
	}
}

// copyFile writes a byte-identical copy, removing the destination on error
// so no partial output is left behind.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("failed to copy to %s: %w", dst, err)
	}
	return out.Close()
}
