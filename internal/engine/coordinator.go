package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/nuance-dev/convierto-sub000/internal/backend"
	"github.com/nuance-dev/convierto-sub000/internal/cache"
	"github.com/nuance-dev/convierto-sub000/internal/converter"
	"github.com/nuance-dev/convierto-sub000/internal/format"
	"github.com/nuance-dev/convierto-sub000/internal/logging"
	"github.com/nuance-dev/convierto-sub000/internal/metrics"
	"github.com/nuance-dev/convierto-sub000/internal/resource"
)

// TimeoutError indicates a conversion attempt exceeded its time budget.
// It is retried like any other transient failure.
type TimeoutError struct {
	Budget time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("conversion attempt timed out after %s", e.Budget)
}

// Config holds the coordinator's tunables.
type Config struct {
	// MaxAttempts bounds the retry loop, first attempt included.
	MaxAttempts int
	// RetryBase is the delay before the first retry; subsequent delays
	// double, capped at RetryCap.
	RetryBase time.Duration
	RetryCap  time.Duration
	// MediaTimeout is the per-attempt budget for image, audio, and video
	// conversions; DocumentTimeout for documents.
	MediaTimeout    time.Duration
	DocumentTimeout time.Duration
	// MaxConcurrent is the number of admission slots. One slot makes
	// conversions strictly sequential.
	MaxConcurrent int
	// Options are the default conversion settings.
	Options backend.Options
}

// DefaultConfig returns the coordinator defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     3,
		RetryBase:       time.Second,
		RetryCap:        30 * time.Second,
		MediaTimeout:    300 * time.Second,
		DocumentTimeout: 180 * time.Second,
		MaxConcurrent:   1,
		Options:         backend.DefaultOptions(),
	}
}

// Coordinator is the top-level conversion entry point.
type Coordinator struct {
	cfg     Config
	pool    *resource.Pool
	cache   *cache.Manager
	factory *converter.Factory
	slots   chan struct{}

	// sleep is replaceable in tests to observe retry delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a coordinator over the given pool, cache, and factory.
func New(cfg Config, pool *resource.Pool, cache *cache.Manager, factory *converter.Factory) *Coordinator {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	return &Coordinator{
		cfg:     cfg,
		pool:    pool,
		cache:   cache,
		factory: factory,
		slots:   make(chan struct{}, cfg.MaxConcurrent),
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Convert runs a conversion without progress observation.
func (c *Coordinator) Convert(ctx context.Context, input, targetExt string) (*converter.Result, error) {
	tracker := NewTracker()
	defer tracker.Close()
	return c.ConvertTracked(ctx, input, targetExt, tracker)
}

// ConvertTracked runs a conversion, reporting stage and progress through
// the tracker. On return the tracker is in a terminal stage.
func (c *Coordinator) ConvertTracked(ctx context.Context, input, targetExt string, tracker *Tracker) (result *converter.Result, err error) {
	start := time.Now()
	category := format.Category("unknown")

	defer func() {
		status := "success"
		if err != nil {
			status = "failure"
			tracker.Fail()
		}
		metrics.ConversionsTotal.WithLabelValues(string(category), status).Inc()
		metrics.ConversionDuration.WithLabelValues(string(category)).Observe(time.Since(start).Seconds())
	}()

	tracker.SetStage(StageAnalyzing)

	// Validate the input and the requested target before touching any
	// resource.
	meta, err := converter.ReadFileMetadata(input)
	if err != nil {
		return nil, err
	}
	category = meta.Format.Category

	target, ok := format.Lookup(targetExt)
	if !ok {
		return nil, &converter.InvalidInputError{
			Path:   input,
			Reason: fmt.Sprintf("unrecognized target format %q", targetExt),
		}
	}

	conv, err := c.factory.For(meta.Format, target)
	if err != nil {
		return nil, err
	}

	// Serialize through the admission slots.
	select {
	case c.slots <- struct{}{}:
		defer func() { <-c.slots }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	id := uuid.NewString()
	ws := converter.NewWorkspace(c.cache, c.pool)
	c.pool.BeginTask(id, meta.Format.Category)
	defer func() {
		// Runs on every exit path: success, failure, timeout,
		// cancellation, or panic unwinding.
		ws.Release()
		c.pool.EndTask(id)
	}()

	if err := c.pool.CheckAvailability(id, meta.Format.Category, target.Category); err != nil {
		return nil, err
	}

	req := converter.Request{
		Input:    input,
		Source:   meta.Format,
		Target:   target,
		Meta:     meta,
		Options:  c.cfg.Options,
		Progress: tracker.SetProgress,
	}

	tracker.SetStage(StageConverting)
	result, err = c.executeWithRetry(ctx, conv, req, ws, tracker)
	if err != nil {
		return nil, err
	}

	tracker.SetStage(StageFinalizing)
	logging.Info("Converted %s to %s in %s (task %s)",
		meta.Name, target.Ext, time.Since(start).Round(time.Millisecond), id)
	tracker.SetStage(StageCompleted)
	return result, nil
}

// executeWithRetry runs the bounded retry loop, the per-attempt timeout,
// and the single reduced-quality fallback for image and video sources.
func (c *Coordinator) executeWithRetry(ctx context.Context, conv converter.Converter, req converter.Request, ws *converter.Workspace, tracker *Tracker) (*converter.Result, error) {
	budget := c.attemptBudget(req.Source.Category, req.Target.Category)

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		result, err := c.attempt(ctx, conv, req, ws, budget, tracker)
		if err == nil {
			return result, nil
		}

		if !retryable(err) {
			return nil, err
		}
		lastErr = err

		if attempt < c.cfg.MaxAttempts {
			delay := backoffDelay(attempt, c.cfg.RetryBase, c.cfg.RetryCap)
			logging.Warn("Attempt %d/%d for %s failed, retrying in %s: %v",
				attempt, c.cfg.MaxAttempts, req.Meta.Name, delay, err)
			metrics.ConversionRetriesTotal.Inc()
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}
	}

	// A single reduced-quality attempt for image and video sources,
	// outside the retry counter.
	if fallbackEligible(req.Source.Category) {
		logging.Warn("Primary path exhausted for %s, trying reduced-quality fallback", req.Meta.Name)
		metrics.ConversionFallbacksTotal.Inc()

		reduced := req
		reduced.Options = req.Options.Reduced()
		result, err := c.attempt(ctx, conv, reduced, ws, budget, tracker)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}

	return nil, fmt.Errorf("conversion failed after %d attempts: %w", c.cfg.MaxAttempts, lastErr)
}

// attempt races one conversion against its time budget and verifies the
// output before declaring success.
func (c *Coordinator) attempt(ctx context.Context, conv converter.Converter, req converter.Request, ws *converter.Workspace, budget time.Duration, tracker *Tracker) (*converter.Result, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	result, err := conv.Convert(attemptCtx, req, ws)
	if err != nil {
		if attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			metrics.ConversionTimeoutsTotal.Inc()
			return nil, &TimeoutError{Budget: budget}
		}
		return nil, err
	}

	tracker.SetStage(StageOptimizing)
	if err := verifyOutput(result.OutputPath); err != nil {
		return nil, err
	}
	return result, nil
}

// verifyOutput re-checks that the output exists and is readable. The
// backend reporting success is not trusted on its own.
func verifyOutput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return &converter.ExportFailedError{
			Reason: "output missing after conversion reported success",
			Err:    err,
		}
	}
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil || len(entries) == 0 {
			return &converter.ExportFailedError{Reason: "output directory empty or unreadable", Err: err}
		}
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return &converter.ExportFailedError{Reason: "output not readable", Err: err}
	}
	f.Close()
	return nil
}

// attemptBudget selects the per-attempt timeout for a conversion.
func (c *Coordinator) attemptBudget(from, to format.Category) time.Duration {
	if from == format.CategoryDocument || to == format.CategoryDocument {
		return c.cfg.DocumentTimeout
	}
	return c.cfg.MediaTimeout
}

// backoffDelay computes the exponential backoff before retry n (1-based),
// capped at maxDelay.
func backoffDelay(attempt int, base, maxDelay time.Duration) time.Duration {
	delay := base << (attempt - 1)
	if delay > maxDelay || delay <= 0 {
		return maxDelay
	}
	return delay
}

// fallbackEligible limits the reduced-quality fallback to pairs dispatched
// to the image and video converters. Audio visualization and document
// rasterization never degrade quality.
func fallbackEligible(from format.Category) bool {
	return from == format.CategoryImage || from == format.CategoryVideo
}

// retryable classifies errors per the propagation policy: invalid input,
// permission failures, admission rejections, pairs without a strategy, and
// cancellation propagate immediately; everything else is transient.
func retryable(err error) bool {
	var (
		invalidInput *converter.InvalidInputError
		accessDenied *converter.FileAccessError
		unsupported  *converter.UnsupportedError
		incompatible *format.IncompatibleError
		insufficient *resource.InsufficientMemoryError
	)
	switch {
	case errors.As(err, &invalidInput),
		errors.As(err, &accessDenied),
		errors.As(err, &unsupported),
		errors.As(err, &incompatible),
		errors.As(err, &insufficient):
		return false
	case errors.Is(err, context.Canceled):
		return false
	}
	return true
}
