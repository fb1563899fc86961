package backend

import (
	"context"
	"fmt"
	"os"

	"github.com/disintegration/imaging"

	"github.com/nuance-dev/convierto-sub000/internal/format"
	"github.com/nuance-dev/convierto-sub000/internal/logging"

	// Register decoders for formats imaging does not handle natively.
	_ "golang.org/x/image/webp"
)

// inProcessTargets are the image formats the in-process codec can encode.
// imaging derives the output format from the file extension.
var inProcessTargets = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"gif":  true,
	"bmp":  true,
	"tiff": true,
	"tif":  true,
}

// reencodeImage converts a still image. The vips fast path is tried first
// when available, then the pure-Go codec; targets neither can encode
// (webp, heic) go through ffmpeg.
func (l *Local) reencodeImage(ctx context.Context, input, output string, target format.Descriptor, opts Options) error {
	if vipsEncodable(target.Ext) {
		if err := vipsReencode(input, output, target, opts); err == nil {
			return nil
		} else {
			logging.Debug("vips reencode of %s failed, falling back: %v", input, err)
		}
	}

	if !inProcessTargets[target.Ext] {
		return l.reencodeAV(ctx, input, output, target, opts)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	src, err := imaging.Open(input, imaging.AutoOrientation(true))
	if err != nil {
		// Decoders we do not carry in-process (heic input) still work via
		// ffmpeg.
		logging.Debug("In-process decode of %s failed, trying ffmpeg: %v", input, err)
		return l.reencodeAV(ctx, input, output, target, opts)
	}

	quality := int(opts.Quality * 100)
	if quality < 1 {
		quality = 1
	}
	if quality > 100 {
		quality = 100
	}

	if err := imaging.Save(src, output, imaging.JPEGQuality(quality)); err != nil {
		os.Remove(output)
		return fmt.Errorf("image encode failed: %w", err)
	}
	return nil
}
