package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nuance-dev/convierto-sub000/internal/backend"
	"github.com/nuance-dev/convierto-sub000/internal/cache"
	"github.com/nuance-dev/convierto-sub000/internal/converter"
	"github.com/nuance-dev/convierto-sub000/internal/engine"
	"github.com/nuance-dev/convierto-sub000/internal/format"
	"github.com/nuance-dev/convierto-sub000/internal/resource"
)

// writeBackend satisfies the backend interface by writing fixed bytes.
type writeBackend struct{}

func (writeBackend) Probe(ctx context.Context, path string) (*backend.MediaInfo, error) {
	return &backend.MediaInfo{Duration: 1, HasAudio: true, Pages: 1}, nil
}

func (writeBackend) Reencode(ctx context.Context, input, output string, target format.Descriptor, opts backend.Options) error {
	return os.WriteFile(output, []byte("converted"), 0o644)
}

func (writeBackend) Rasterize(ctx context.Context, doc, outDir string, dpi int) ([]string, error) {
	page := filepath.Join(outDir, "page-001.png")
	return []string{page}, os.WriteFile(page, []byte("page"), 0o644)
}

func (writeBackend) SampleAudio(ctx context.Context, input string, maxSamples int) ([]float64, error) {
	return make([]float64, 16), nil
}

func (writeBackend) RenderFrames(ctx context.Context, frames []string, frameSeconds float64, output string, target format.Descriptor, opts backend.Options) error {
	return os.WriteFile(output, []byte("video"), 0o644)
}

func (writeBackend) ExtractFrame(ctx context.Context, video string, atSeconds float64, output string) error {
	return os.WriteFile(output, []byte("frame"), 0o644)
}

func (writeBackend) ExtractAudio(ctx context.Context, video, output string, target format.Descriptor, opts backend.Options) error {
	return os.WriteFile(output, []byte("audio"), 0o644)
}

func newTestWatcher(t *testing.T, dir, target string) *Watcher {
	t.Helper()

	pool := resource.NewPool(func() (uint64, error) { return 64 << 30, nil })
	cm, err := cache.New(t.TempDir(), cache.DefaultRetention, pool.IsFileActive)
	if err != nil {
		t.Fatalf("cache.New failed: %v", err)
	}
	coord := engine.New(engine.DefaultConfig(), pool, cm, converter.NewFactory(writeBackend{}))

	w, err := New(dir, target, coord)
	if err != nil {
		t.Fatalf("watcher.New failed: %v", err)
	}
	w.settle = 20 * time.Millisecond
	t.Cleanup(func() { w.Close() })
	return w
}

func waitForFile(t *testing.T, path string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); err == nil {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", path)
}

func TestWatcherRejectsUnknownTarget(t *testing.T) {
	pool := resource.NewPool(func() (uint64, error) { return 64 << 30, nil })
	cm, err := cache.New(t.TempDir(), cache.DefaultRetention, nil)
	if err != nil {
		t.Fatal(err)
	}
	coord := engine.New(engine.DefaultConfig(), pool, cm, converter.NewFactory(writeBackend{}))

	if _, err := New(t.TempDir(), "xyz", coord); err == nil {
		t.Error("Expected an error for an unsupported target format")
	}
}

func TestWatcherConvertsDrop(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t, dir, "png")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	// Give the watcher a moment to register the directory.
	time.Sleep(100 * time.Millisecond)

	drop := filepath.Join(dir, "photo.jpg")
	if err := os.WriteFile(drop, []byte("image bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	waitForFile(t, filepath.Join(dir, outputSubdir, "photo.png"))

	data, err := os.ReadFile(filepath.Join(dir, outputSubdir, "photo.png"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "converted" {
		t.Errorf("Unexpected delivered content %q", data)
	}
}

func TestWatcherPicksUpExistingFiles(t *testing.T) {
	dir := t.TempDir()
	drop := filepath.Join(dir, "early.jpg")
	if err := os.WriteFile(drop, []byte("image bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := newTestWatcher(t, dir, "png")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	waitForFile(t, filepath.Join(dir, outputSubdir, "early.png"))
}

func TestWaitSettledBoundsEmptyFiles(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t, dir, "png")

	empty := filepath.Join(dir, "empty.jpg")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	// A drop that stays empty settles after a bounded number of intervals
	// instead of pinning the goroutine forever. Validation rejects it later.
	done := make(chan bool, 1)
	go func() { done <- w.waitSettled(context.Background(), empty) }()

	select {
	case settled := <-done:
		if !settled {
			t.Error("Expected the empty file to settle")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waitSettled never returned for an empty file")
	}
}

func TestDeliverCopiesAllPages(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t, dir, "png")

	artifact := t.TempDir()
	for i := 1; i <= 5; i++ {
		name := filepath.Join(artifact, fmt.Sprintf("page-%03d.png", i))
		if err := os.WriteFile(name, []byte(fmt.Sprintf("page %d", i)), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if err := w.deliver(artifact, "report_pages"); err != nil {
		t.Fatalf("deliver failed: %v", err)
	}

	for i := 1; i <= 5; i++ {
		name := fmt.Sprintf("page-%03d.png", i)
		data, err := os.ReadFile(filepath.Join(dir, outputSubdir, "report_pages", name))
		if err != nil {
			t.Fatalf("Missing delivered page %s: %v", name, err)
		}
		if string(data) != fmt.Sprintf("page %d", i) {
			t.Errorf("Page %s delivered with wrong content %q", name, data)
		}
	}
}

func TestWatcherIgnoresOutputAndHiddenFiles(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t, dir, "png")

	tests := []struct {
		name string
		path string
	}{
		{"Hidden", filepath.Join(dir, ".partial.jpg")},
		{"UnknownFormat", filepath.Join(dir, "notes.txt~")},
		{"OutputDir", filepath.Join(dir, outputSubdir, "done.png")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := os.WriteFile(tt.path, []byte("x"), 0o644); err != nil {
				t.Fatal(err)
			}
			if w.eligible(tt.path) {
				t.Errorf("%s should not be eligible", tt.path)
			}
		})
	}
}
