package watcher

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/nuance-dev/convierto-sub000/internal/engine"
	"github.com/nuance-dev/convierto-sub000/internal/format"
	"github.com/nuance-dev/convierto-sub000/internal/logging"
	"github.com/nuance-dev/convierto-sub000/internal/metrics"
	"github.com/nuance-dev/convierto-sub000/internal/workers"
)

// outputSubdir is where converted artifacts land inside the watched
// directory. The watcher never converts files under it.
const outputSubdir = "converted"

// defaultSettleDelay is how long a file must be quiet before conversion.
// Drops are often still being written when the first event arrives.
const defaultSettleDelay = 2 * time.Second

// Watcher converts files dropped into a directory.
type Watcher struct {
	dir       string
	outDir    string
	targetExt string
	coord     *engine.Coordinator
	w         *fsnotify.Watcher
	settle    time.Duration

	mu       sync.Mutex
	inFlight map[string]bool
}

// New creates a watcher over dir, converting drops to targetExt.
func New(dir, targetExt string, coord *engine.Coordinator) (*Watcher, error) {
	if _, ok := format.Lookup(targetExt); !ok {
		return nil, fmt.Errorf("unsupported watcher target format %q", targetExt)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	outDir := filepath.Join(dir, outputSubdir)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		w.Close()
		return nil, err
	}

	return &Watcher{
		dir:       dir,
		outDir:    outDir,
		targetExt: targetExt,
		coord:     coord,
		w:         w,
		settle:    defaultSettleDelay,
		inFlight:  make(map[string]bool),
	}, nil
}

// Start watches until the context ends. Files already present in the
// directory are picked up first.
func (wr *Watcher) Start(ctx context.Context) error {
	if err := wr.w.Add(wr.dir); err != nil {
		return err
	}

	wr.scanExisting(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-wr.w.Events:
			if !ok {
				return nil
			}
			wr.handleEvent(ctx, ev)
		case err, ok := <-wr.w.Errors:
			if !ok {
				return nil
			}
			logging.Warn("watcher error: %v", err)
		}
	}
}

// Close releases the underlying filesystem watcher.
func (wr *Watcher) Close() error { return wr.w.Close() }

// scanExisting converts files that were dropped before the watcher
// started.
func (wr *Watcher) scanExisting(ctx context.Context) {
	entries, err := os.ReadDir(wr.dir)
	if err != nil {
		logging.Warn("watcher could not scan %s: %v", wr.dir, err)
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(wr.dir, e.Name())
		if wr.eligible(path) {
			metrics.WatcherFilesSeenTotal.Inc()
			go wr.convertAfterSettle(ctx, path)
		}
	}
}

func (wr *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	if !wr.eligible(ev.Name) {
		return
	}

	metrics.WatcherFilesSeenTotal.Inc()
	go wr.convertAfterSettle(ctx, ev.Name)
}

// eligible filters out the output directory, hidden files, and formats
// the engine does not recognize.
func (wr *Watcher) eligible(path string) bool {
	if filepath.Dir(path) != wr.dir {
		return false
	}
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	if _, err := format.Parse(path); err != nil {
		return false
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return true
}

// convertAfterSettle waits for the drop to stop growing, then converts
// it. Repeat events for an in-flight file are dropped.
func (wr *Watcher) convertAfterSettle(ctx context.Context, path string) {
	wr.mu.Lock()
	if wr.inFlight[path] {
		wr.mu.Unlock()
		return
	}
	wr.inFlight[path] = true
	wr.mu.Unlock()

	defer func() {
		wr.mu.Lock()
		delete(wr.inFlight, path)
		wr.mu.Unlock()
	}()

	if !wr.waitSettled(ctx, path) {
		return
	}

	logging.Info("Watcher converting %s to %s", filepath.Base(path), wr.targetExt)
	result, err := wr.coord.Convert(ctx, path, wr.targetExt)
	if err != nil {
		metrics.WatcherConversionsTotal.WithLabelValues("failure").Inc()
		logging.Error("Watcher conversion of %s failed: %v", path, err)
		return
	}

	if err := wr.deliver(result.OutputPath, result.SuggestedName); err != nil {
		metrics.WatcherConversionsTotal.WithLabelValues("failure").Inc()
		logging.Error("Watcher could not deliver %s: %v", result.SuggestedName, err)
		return
	}

	metrics.WatcherConversionsTotal.WithLabelValues("success").Inc()
	logging.Info("Watcher delivered %s", result.SuggestedName)
}

// emptySettleIntervals is how many settle intervals a zero-byte drop must
// stay empty before it is handed on anyway. Metadata validation rejects it
// downstream; the loop must not poll forever.
const emptySettleIntervals = 3

// waitSettled polls the file size until it is stable across one settle
// interval. Returns false if the file vanished or the context ended.
func (wr *Watcher) waitSettled(ctx context.Context, path string) bool {
	var lastSize int64 = -1
	emptyStreak := 0
	for {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(wr.settle):
		}

		info, err := os.Stat(path)
		if err != nil {
			return false
		}
		switch {
		case info.Size() != lastSize:
			emptyStreak = 0
		case info.Size() > 0:
			return true
		default:
			emptyStreak++
			if emptyStreak >= emptySettleIntervals {
				return true
			}
		}
		lastSize = info.Size()
	}
}

// deliver copies the conversion artifact into the output subdirectory.
// Directory artifacts (multi-page documents) are copied page by page.
func (wr *Watcher) deliver(artifact, name string) error {
	info, err := os.Stat(artifact)
	if err != nil {
		return err
	}

	dst := filepath.Join(wr.outDir, name)
	if !info.IsDir() {
		return copyFile(artifact, dst)
	}

	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	pages, err := os.ReadDir(artifact)
	if err != nil {
		return err
	}

	jobs := make(chan string, len(pages))
	for _, page := range pages {
		if page.IsDir() {
			continue
		}
		jobs <- page.Name()
	}
	close(jobs)

	numWorkers := workers.ForIO(len(pages))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func() {
			defer wg.Done()
			for name := range jobs {
				err := copyFile(filepath.Join(artifact, name), filepath.Join(dst, name))
				mu.Lock()
				if err != nil && firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				if err != nil {
					return
				}
			}
		}()
	}
	wg.Wait()
	return firstErr
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
