package resource

import (
	"fmt"
	"sync"

	"github.com/nuance-dev/convierto-sub000/internal/format"
	"github.com/nuance-dev/convierto-sub000/internal/logging"
	"github.com/nuance-dev/convierto-sub000/internal/metrics"
)

// Memory estimate constants, in bytes.
const (
	baseEstimate     = 100 << 20 // every conversion
	videoPenalty     = 500 << 20 // video on either side
	stillToVideoCost = 250 << 20 // image -> video is cheaper than full video work
	documentPenalty  = 150 << 20 // rasterization buffers
)

// InsufficientMemoryError indicates that admission control rejected a task
// because its estimated memory requirement exceeds the safe share of
// available memory. It is terminal for the attempt and must not be retried.
type InsufficientMemoryError struct {
	Required  uint64
	Available uint64
}

func (e *InsufficientMemoryError) Error() string {
	return fmt.Sprintf("insufficient memory: conversion needs ~%d MB but only %d MB is available",
		e.Required>>20, e.Available>>20)
}

// Pool gates concurrent conversions against available memory and tracks
// which temporary files are in use so the cache sweep never deletes a file
// mid-conversion.
type Pool struct {
	mu     sync.Mutex
	tasks  map[string]format.Category
	files  map[string]int
	probe  MemoryProbe
	onIdle []func()
}

// NewPool creates a resource pool. A nil probe selects the platform default.
func NewPool(probe MemoryProbe) *Pool {
	if probe == nil {
		probe = DefaultProbe
	}
	return &Pool{
		tasks: make(map[string]format.Category),
		files: make(map[string]int),
		probe: probe,
	}
}

// BeginTask registers a task and increments the active count for its
// category. It never blocks.
func (p *Pool) BeginTask(id string, category format.Category) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.tasks[id]; ok {
		logging.Warn("Task %s already registered, ignoring duplicate begin", id)
		return
	}
	p.tasks[id] = category
	metrics.ActiveTasks.WithLabelValues(string(category)).Inc()
}

// EndTask unregisters a task. Unknown ids are ignored, which makes the call
// idempotent and safe to place on every cleanup path. When the last task
// ends, registered idle callbacks fire on their own goroutines.
func (p *Pool) EndTask(id string) {
	p.mu.Lock()
	category, ok := p.tasks[id]
	if ok {
		delete(p.tasks, id)
		metrics.ActiveTasks.WithLabelValues(string(category)).Dec()
	}
	idle := ok && len(p.tasks) == 0
	callbacks := p.onIdle
	p.mu.Unlock()

	if idle {
		for _, fn := range callbacks {
			go fn()
		}
	}
}

// ActiveCount returns the number of currently registered tasks.
func (p *Pool) ActiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tasks)
}

// OnIdle registers a callback invoked whenever the active task count
// transitions to zero.
func (p *Pool) OnIdle(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onIdle = append(p.onIdle, fn)
}

// MarkFileActive marks a temporary file as in use. Marks are counted, so
// concurrent users of the same path must each unmark.
func (p *Pool) MarkFileActive(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.files[path]++
}

// MarkFileInactive removes one active mark from a path.
func (p *Pool) MarkFileInactive(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.files[path] <= 1 {
		delete(p.files, path)
		return
	}
	p.files[path]--
}

// IsFileActive reports whether a path currently carries an active mark.
func (p *Pool) IsFileActive(path string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.files[path] > 0
}

// EstimateRequired returns the estimated memory cost of converting between
// two categories.
func EstimateRequired(from, to format.Category) uint64 {
	required := uint64(baseEstimate)

	switch {
	case from == format.CategoryImage && to == format.CategoryVideo:
		required += stillToVideoCost
	case from == format.CategoryVideo || to == format.CategoryVideo:
		required += videoPenalty
	}

	if from == format.CategoryDocument || to == format.CategoryDocument {
		required += documentPenalty
	}

	return required
}

// CheckAvailability estimates the memory required for the conversion and
// rejects with InsufficientMemoryError iff the estimate exceeds half of the
// currently available physical memory. A probe failure admits the task; the
// check is advisory and must not block conversions on unreadable platforms.
func (p *Pool) CheckAvailability(id string, from, to format.Category) error {
	required := EstimateRequired(from, to)

	available, err := p.probe()
	if err != nil {
		logging.Warn("Memory probe failed, admitting task %s without check: %v", id, err)
		return nil
	}
	metrics.AvailableMemoryBytes.Set(float64(available))

	if required > available/2 {
		metrics.AdmissionRejectionsTotal.Inc()
		logging.Info("Admission rejected task %s: need %d MB, available %d MB",
			id, required>>20, available>>20)
		return &InsufficientMemoryError{Required: required, Available: available}
	}

	logging.Debug("Admission accepted task %s: need %d MB, available %d MB",
		id, required>>20, available>>20)
	return nil
}
