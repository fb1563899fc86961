package backend

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// probeDocument reads the page count of a document via pdfinfo.
func (l *Local) probeDocument(ctx context.Context, path string) (*MediaInfo, error) {
	if l.pdfinfo == "" {
		return nil, fmt.Errorf("pdfinfo is not installed")
	}

	cmd := exec.CommandContext(ctx, l.pdfinfo, path)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("pdfinfo error: %w - %s", err, lastLine(stderr.String()))
	}

	info := &MediaInfo{}
	for _, line := range strings.Split(stdout.String(), "\n") {
		if !strings.HasPrefix(line, "Pages:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 {
			info.Pages, _ = strconv.Atoi(fields[1])
		}
		break
	}
	if info.Pages == 0 {
		return nil, fmt.Errorf("could not determine page count of %s", path)
	}
	return info, nil
}

// Rasterize renders every page of a document into numbered PNG files under
// outDir and returns them in page order.
func (l *Local) Rasterize(ctx context.Context, doc, outDir string, dpi int) ([]string, error) {
	if l.pdftoppm == "" {
		return nil, fmt.Errorf("pdftoppm is not installed")
	}
	if dpi <= 0 {
		dpi = 150
	}

	prefix := filepath.Join(outDir, "page")
	err := runTool(ctx, l.pdftoppm, "",
		"-png",
		"-r", strconv.Itoa(dpi),
		doc,
		prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("rasterization failed: %w", err)
	}

	pages, err := filepath.Glob(prefix + "-*.png")
	if err != nil || len(pages) == 0 {
		return nil, fmt.Errorf("rasterization produced no pages for %s", doc)
	}
	sort.Strings(pages)
	return pages, nil
}
