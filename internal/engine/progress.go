package engine

import (
	"sync"

	"github.com/nuance-dev/convierto-sub000/internal/logging"
)

// Stage is a conversion lifecycle state.
type Stage string

const (
	// StageIdle is the sole initial stage.
	StageIdle Stage = "idle"
	// StageAnalyzing covers input validation and strategy resolution.
	StageAnalyzing Stage = "analyzing"
	// StageConverting covers backend execution.
	StageConverting Stage = "converting"
	// StageOptimizing covers output verification.
	StageOptimizing Stage = "optimizing"
	// StageFinalizing covers result assembly.
	StageFinalizing Stage = "finalizing"
	// StageCompleted is the successful terminal stage.
	StageCompleted Stage = "completed"
	// StageFailed is the failure terminal stage, reachable from any
	// non-terminal stage.
	StageFailed Stage = "failed"
)

// stageRank orders the forward path. Transitions only ever move to a
// strictly higher rank; StageFailed sits outside the ordering.
var stageRank = map[Stage]int{
	StageIdle:       0,
	StageAnalyzing:  1,
	StageConverting: 2,
	StageOptimizing: 3,
	StageFinalizing: 4,
	StageCompleted:  5,
}

// Terminal reports whether the stage is one of the two terminal states.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// Update is one observation of a conversion's stage and progress.
type Update struct {
	Stage    Stage
	Progress float64
}

// Tracker exposes a monotonic stage and fractional-progress signal for one
// conversion request. It is written only by the coordinator and the active
// converter, and observed via Subscribe.
type Tracker struct {
	mu       sync.Mutex
	stage    Stage
	progress float64
	subs     []chan Update
	closed   bool
}

// NewTracker creates a tracker in the idle stage.
func NewTracker() *Tracker {
	return &Tracker{stage: StageIdle}
}

// Stage returns the current stage.
func (t *Tracker) Stage() Stage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stage
}

// Progress returns the current fractional progress in [0,1].
func (t *Tracker) Progress() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress
}

// SetStage advances to a later stage. Backward transitions and transitions
// out of a terminal stage are ignored; the stage signal is strictly
// monotonic.
func (t *Tracker) SetStage(s Stage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stage.Terminal() {
		return
	}
	if s == StageFailed {
		t.stage = StageFailed
		t.publishLocked()
		return
	}

	from, ok := stageRank[t.stage]
	to, known := stageRank[s]
	if !ok || !known || to <= from {
		logging.Debug("Ignoring stage transition %s -> %s", t.stage, s)
		return
	}

	t.stage = s
	if s == StageCompleted {
		t.progress = 1
	}
	t.publishLocked()
}

// SetProgress raises the fractional progress. Values are clamped to [0,1]
// and never decrease.
func (t *Tracker) SetProgress(p float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stage.Terminal() {
		return
	}
	if p > 1 {
		p = 1
	}
	if p <= t.progress {
		return
	}
	t.progress = p
	t.publishLocked()
}

// Fail moves the tracker to the failed terminal stage.
func (t *Tracker) Fail() {
	t.SetStage(StageFailed)
}

// Subscribe returns a channel of stage/progress updates. Updates are
// delivered best-effort: a slow subscriber loses intermediate updates
// rather than blocking the conversion.
func (t *Tracker) Subscribe() <-chan Update {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch := make(chan Update, 16)
	if t.closed {
		close(ch)
		return ch
	}
	t.subs = append(t.subs, ch)
	return ch
}

// Close releases all subscriber channels. Call once the conversion has
// reached a terminal stage.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	t.closed = true
	for _, ch := range t.subs {
		close(ch)
	}
	t.subs = nil
}

// publishLocked fans the current state out to subscribers without
// blocking. Caller holds t.mu.
func (t *Tracker) publishLocked() {
	if t.closed {
		return
	}
	update := Update{Stage: t.stage, Progress: t.progress}
	for _, ch := range t.subs {
		select {
		case ch <- update:
		default:
		}
	}
}
