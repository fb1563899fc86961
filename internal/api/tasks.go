package api

import (
	"sync"
	"time"

	"github.com/nuance-dev/convierto-sub000/internal/converter"
	"github.com/nuance-dev/convierto-sub000/internal/engine"
)

// taskRetention is how long a finished task remains queryable.
const taskRetention = time.Hour

// task is one submitted conversion and its observable state.
type task struct {
	id        string
	createdAt time.Time
	tracker   *engine.Tracker

	mu     sync.Mutex
	done   bool
	result *converter.Result
	err    error
}

// complete records the terminal outcome. It is called exactly once, from
// the conversion goroutine.
func (t *task) complete(result *converter.Result, err error) {
	t.mu.Lock()
	t.done = true
	t.result = result
	t.err = err
	t.mu.Unlock()
}

// TaskStatus is the JSON shape of a task's observable state.
type TaskStatus struct {
	ID        string  `json:"id"`
	Stage     string  `json:"stage"`
	Progress  float64 `json:"progress"`
	CreatedAt string  `json:"createdAt"`

	// Populated once the task reaches a terminal stage.
	Error         string            `json:"error,omitempty"`
	SuggestedName string            `json:"suggestedName,omitempty"`
	Format        string            `json:"format,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// status snapshots the task for JSON encoding.
func (t *task) status() TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := TaskStatus{
		ID:        t.id,
		Stage:     string(t.tracker.Stage()),
		Progress:  t.tracker.Progress(),
		CreatedAt: t.createdAt.UTC().Format(time.RFC3339),
	}
	if t.err != nil {
		s.Error = t.err.Error()
	}
	if t.result != nil {
		s.SuggestedName = t.result.SuggestedName
		s.Format = t.result.Format.Ext
		s.Metadata = t.result.Metadata
	}
	return s
}

// outcome returns the terminal result, or done=false while running.
func (t *task) outcome() (result *converter.Result, err error, done bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result, t.err, t.done
}

// taskRegistry holds submitted tasks for status polling and download.
type taskRegistry struct {
	mu    sync.Mutex
	tasks map[string]*task
}

func newTaskRegistry() *taskRegistry {
	return &taskRegistry{tasks: make(map[string]*task)}
}

// add registers a new task and prunes expired finished ones.
func (r *taskRegistry) add(t *task) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-taskRetention)
	for id, old := range r.tasks {
		if _, _, done := old.outcome(); done && old.createdAt.Before(cutoff) {
			delete(r.tasks, id)
		}
	}
	r.tasks[t.id] = t
}

func (r *taskRegistry) get(id string) (*task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	return t, ok
}
