package converter

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nuance-dev/convierto-sub000/internal/backend"
	"github.com/nuance-dev/convierto-sub000/internal/cache"
	"github.com/nuance-dev/convierto-sub000/internal/format"
	"github.com/nuance-dev/convierto-sub000/internal/resource"
)

// ProgressFunc receives fractional progress in [0,1]. Implementations must
// not block; they are called from the conversion path.
type ProgressFunc func(p float64)

// report is a nil-safe progress emit.
func report(fn ProgressFunc, p float64) {
	if fn != nil {
		fn(p)
	}
}

// Request bundles the inputs of one conversion attempt.
type Request struct {
	// Input is the source file path.
	Input string
	// Source and Target describe the formats being converted between.
	Source format.Descriptor
	Target format.Descriptor
	// Meta is the source file's metadata, read once at task start.
	Meta FileMetadata
	// Options are the caller-supplied conversion settings.
	Options backend.Options
	// Progress receives fractional progress; may be nil.
	Progress ProgressFunc
}

// Result is what a successful conversion hands back to the caller.
type Result struct {
	// OutputPath is the converted artifact; a file, or a directory for
	// multi-page outputs. Owned by the caller after return.
	OutputPath string
	// OriginalName is the source file's base name.
	OriginalName string
	// SuggestedName is a download/save name derived from the original.
	SuggestedName string
	// Format describes the output.
	Format format.Descriptor
	// Metadata carries optional extra details about the conversion.
	Metadata map[string]string
}

// FileMetadata is the source file's metadata, read once and passed
// immutably through the pipeline.
type FileMetadata struct {
	Name       string
	Format     format.Descriptor
	Size       int64
	ModifiedAt time.Time
}

// Converter is the capability contract shared by all variants.
type Converter interface {
	// CanConvert reports whether this variant handles the format pair.
	CanConvert(from, to format.Descriptor) bool

	// ValidateConversion resolves the strategy for the pair and confirms
	// this variant implements it.
	ValidateConversion(from, to format.Descriptor) (format.Strategy, error)

	// Convert executes the conversion. Temporary outputs are allocated
	// through the workspace.
	Convert(ctx context.Context, req Request, ws *Workspace) (*Result, error)
}

// Workspace is a task-scoped allocator for temporary outputs. Every path it
// issues is marked active in the resource pool until Release.
type Workspace struct {
	cache *cache.Manager
	pool  *resource.Pool

	mu    sync.Mutex
	paths []string
}

// NewWorkspace creates a workspace backed by the given cache and pool.
func NewWorkspace(c *cache.Manager, p *resource.Pool) *Workspace {
	return &Workspace{cache: c, pool: p}
}

// TempPath issues a fresh output path with the given extension and marks it
// active for the task's lifetime.
func (w *Workspace) TempPath(ext string) (string, error) {
	path, err := w.cache.TempPath(ext)
	if err != nil {
		return "", err
	}
	w.track(path)
	return path, nil
}

// TempDir issues a fresh output directory and marks it active.
func (w *Workspace) TempDir() (string, error) {
	path, err := w.cache.TempDir()
	if err != nil {
		return "", err
	}
	w.track(path)
	return path, nil
}

func (w *Workspace) track(path string) {
	w.pool.MarkFileActive(path)
	w.mu.Lock()
	w.paths = append(w.paths, path)
	w.mu.Unlock()
}

// Release unmarks every path the workspace issued. It must run on every
// exit path of a task, after which the artifacts are subject to the normal
// cache retention window.
func (w *Workspace) Release() {
	w.mu.Lock()
	paths := w.paths
	w.paths = nil
	w.mu.Unlock()

	for _, p := range paths {
		w.pool.MarkFileInactive(p)
	}
}

// suggestedName derives an output file name from the original, swapping the
// extension for the target's.
func suggestedName(original string, target format.Descriptor) string {
	base := strings.TrimSuffix(original, filepath.Ext(original))
	if base == "" {
		base = "converted"
	}
	return base + "." + target.Ext
}

// newResult assembles the common result fields.
func newResult(req Request, outputPath string) *Result {
	return &Result{
		OutputPath:    outputPath,
		OriginalName:  req.Meta.Name,
		SuggestedName: suggestedName(req.Meta.Name, req.Target),
		Format:        req.Target,
	}
}

// validateAgainst resolves the strategy for a pair and checks it is one of
// the variant's implemented strategies.
func validateAgainst(from, to format.Descriptor, implemented ...format.Strategy) (format.Strategy, error) {
	strategy, err := format.ResolveStrategy(from.Category, to.Category)
	if err != nil {
		return "", err
	}
	for _, s := range implemented {
		if s == strategy {
			return strategy, nil
		}
	}
	return "", &UnsupportedError{From: from, To: to}
}

// ReadFileMetadata validates the source file and reads its metadata once,
// at task start. The file must be readable, non-empty, and of a recognized
// format.
func ReadFileMetadata(path string) (FileMetadata, error) {
	desc, err := format.Parse(path)
	if err != nil {
		return FileMetadata{}, &InvalidInputError{Path: path, Reason: err.Error()}
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsPermission(err) {
			return FileMetadata{}, &FileAccessError{Path: path, Err: err}
		}
		return FileMetadata{}, &InvalidInputError{Path: path, Reason: err.Error()}
	}
	if info.IsDir() {
		return FileMetadata{}, &InvalidInputError{Path: path, Reason: "input is a directory"}
	}
	if info.Size() == 0 {
		return FileMetadata{}, &InvalidInputError{Path: path, Reason: "input file is empty"}
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsPermission(err) {
			return FileMetadata{}, &FileAccessError{Path: path, Err: err}
		}
		return FileMetadata{}, &InvalidInputError{Path: path, Reason: err.Error()}
	}
	f.Close()

	return FileMetadata{
		Name:       filepath.Base(path),
		Format:     desc,
		Size:       info.Size(),
		ModifiedAt: info.ModTime(),
	}, nil
}
