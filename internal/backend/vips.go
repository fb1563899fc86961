//go:build cgo

package backend

import (
	"fmt"
	"os"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"

	"github.com/nuance-dev/convierto-sub000/internal/format"
	"github.com/nuance-dev/convierto-sub000/internal/logging"
)

var (
	vipsMu    sync.Mutex
	vipsReady bool
)

// InitVips starts libvips with conservative memory settings. Call once at
// startup; when it is skipped or fails, image work stays on the pure-Go
// path.
func InitVips() {
	vipsMu.Lock()
	defer vipsMu.Unlock()

	if vipsReady {
		return
	}

	vips.LoggingSettings(func(domain string, level vips.LogLevel, msg string) {
		if level <= vips.LogLevelError {
			logging.Error("[%s] %s", domain, msg)
		} else if level == vips.LogLevelWarning {
			logging.Warn("[%s] %s", domain, msg)
		}
	}, vips.LogLevelWarning)

	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
	})

	vipsReady = true
	logging.Info("libvips initialized for image re-encoding")
}

// ShutdownVips releases libvips resources.
func ShutdownVips() {
	vipsMu.Lock()
	defer vipsMu.Unlock()
	if vipsReady {
		vips.Shutdown()
		vipsReady = false
	}
}

// vipsEncodable reports whether the vips fast path can produce the target.
func vipsEncodable(ext string) bool {
	vipsMu.Lock()
	ready := vipsReady
	vipsMu.Unlock()
	if !ready {
		return false
	}

	switch ext {
	case "jpg", "jpeg", "png", "webp", "tiff", "tif":
		return true
	default:
		return false
	}
}

// vipsReencode re-encodes a still image through libvips.
func vipsReencode(input, output string, target format.Descriptor, opts Options) error {
	img, err := vips.NewImageFromFile(input)
	if err != nil {
		return fmt.Errorf("vips decode failed: %w", err)
	}
	defer img.Close()

	if err := img.AutoRotate(); err != nil {
		return fmt.Errorf("vips autorotate failed: %w", err)
	}

	quality := int(opts.Quality * 100)
	if quality < 1 {
		quality = 1
	}
	if quality > 100 {
		quality = 100
	}

	var data []byte
	switch target.Ext {
	case "jpg", "jpeg":
		params := vips.NewJpegExportParams()
		params.Quality = quality
		params.StripMetadata = !opts.PreserveMetadata
		data, _, err = img.ExportJpeg(params)
	case "png":
		params := vips.NewPngExportParams()
		params.StripMetadata = !opts.PreserveMetadata
		data, _, err = img.ExportPng(params)
	case "webp":
		params := vips.NewWebpExportParams()
		params.Quality = quality
		params.StripMetadata = !opts.PreserveMetadata
		data, _, err = img.ExportWebp(params)
	case "tiff", "tif":
		params := vips.NewTiffExportParams()
		params.Quality = quality
		data, _, err = img.ExportTiff(params)
	default:
		return fmt.Errorf("vips cannot encode %s", target.Ext)
	}
	if err != nil {
		return fmt.Errorf("vips encode failed: %w", err)
	}

	if err := os.WriteFile(output, data, 0o644); err != nil {
		os.Remove(output)
		return fmt.Errorf("failed to write %s: %w", output, err)
	}
	return nil
}
