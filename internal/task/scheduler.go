package task

import (
	"context"
	"sync"
	"time"

	"github.com/omnivoice/omni/internal/errors"
	"github.com/omnivoice/omni/internal/event"
	"github.com/omnivoice/omni/internal/logging"
)

// Runner is a task body: the actual weather lookup, device command, or
// other collaborator call. It must respect ctx cancellation.
type Runner func(ctx context.Context, tk Task) (any, error)

// Adaptive timeout tuning constants.
const (
	// timeoutGrowthFactor multiplies the adaptive timeout after an attempt
	// times out.
	timeoutGrowthFactor = 1.5
	// timeoutDecayFactor shrinks the adaptive timeout after a success,
	// never below the priority's base timeout.
	timeoutDecayFactor = 0.9
)

// SchedulerOptions configures a Scheduler.
type SchedulerOptions struct {
	// MaxTimeoutGrowth caps how far one timeout event can push the adaptive
	// timeout above its current value (default 30s).
	MaxTimeoutGrowth time.Duration
	// Metrics receives per-type counters. Defaults to a fresh registry.
	Metrics *Metrics
	// Bus receives task lifecycle events. Optional.
	Bus *event.Bus
	// Logger for scheduler diagnostics. Defaults to a no-op logger.
	Logger *logging.Logger
}

// Scheduler executes tasks with priority-scoped retries, exponential
// backoff, and a per-priority adaptive timeout that persists across calls.
type Scheduler struct {
	mu       sync.Mutex
	timeouts map[Priority]time.Duration

	maxGrowth time.Duration
	metrics   *Metrics
	bus       *event.Bus
	logger    *logging.Logger

	// sleep is swapped out by tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewScheduler creates a Scheduler with every priority starting at its
// base timeout.
func NewScheduler(opts SchedulerOptions) *Scheduler {
	if opts.MaxTimeoutGrowth <= 0 {
		opts.MaxTimeoutGrowth = 30 * time.Second
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NopLogger()
	}

	timeouts := make(map[Priority]time.Duration, len(Priorities()))
	for _, p := range Priorities() {
		timeouts[p] = p.Profile().BaseTimeout
	}

	return &Scheduler{
		timeouts:  timeouts,
		maxGrowth: opts.MaxTimeoutGrowth,
		metrics:   opts.Metrics,
		bus:       opts.Bus,
		logger:    opts.Logger.WithComponent("scheduler"),
		sleep:     sleepCtx,
	}
}

// sleepCtx blocks for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Metrics returns the scheduler's metrics registry.
func (s *Scheduler) Metrics() *Metrics {
	return s.metrics
}

// Timeout returns the current adaptive timeout for a priority.
func (s *Scheduler) Timeout(p Priority) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeouts[p]
}

// Run executes the task body under the priority's retry and timeout
// policy. It returns the body's result, or a ProcessingError once the
// attempt budget is exhausted. Attempts within one call are strictly
// sequential.
func (s *Scheduler) Run(ctx context.Context, tk Task, pri Priority, body Runner) (any, error) {
	profile := pri.Profile()
	log := s.logger.WithTaskType(tk.Type.String())

	var lastErr error
	for attempt := 0; attempt < profile.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewProcessingError("task canceled", errors.ErrCanceled).
				WithTaskType(tk.Type.String()).WithAttempts(attempt)
		}

		timeout := s.Timeout(pri)
		start := time.Now()
		result, err := s.attempt(ctx, tk, timeout, body)
		elapsed := time.Since(start)

		switch {
		case err == nil:
			s.decayTimeout(pri)
			s.metrics.RecordSuccess(tk.Type, elapsed)
			if s.bus != nil {
				s.bus.Publish(event.NewTaskCompletedEvent(tk.Type.String(), attempt+1, elapsed))
			}
			return result, nil

		case errors.Is(err, errors.ErrTimeout):
			grown := s.growTimeout(pri)
			s.metrics.RecordTimeout(tk.Type)
			log.Warn("attempt timed out",
				"attempt", attempt+1,
				"timeout", timeout.String(),
				"next_timeout", grown.String())
			if s.bus != nil {
				s.bus.Publish(event.NewTaskTimeoutEvent(tk.Type.String(), attempt+1, timeout))
			}
			lastErr = err

		case errors.Is(err, context.Canceled):
			return nil, errors.NewProcessingError("task canceled", errors.ErrCanceled).
				WithTaskType(tk.Type.String()).WithAttempts(attempt + 1)

		default:
			s.metrics.RecordError(tk.Type)
			log.Warn("attempt failed", "attempt", attempt+1, "error", err)
			lastErr = err
		}

		// Exponential backoff between attempts, skipped after the last.
		if attempt < profile.MaxRetries-1 {
			delay := profile.BaseDelay * (1 << attempt)
			if err := s.sleep(ctx, delay); err != nil {
				return nil, errors.NewProcessingError("task canceled during backoff", errors.ErrCanceled).
					WithTaskType(tk.Type.String()).WithAttempts(attempt + 1)
			}
		}
	}

	s.metrics.RecordFailure(tk.Type)
	if s.bus != nil {
		errMsg := ""
		if lastErr != nil {
			errMsg = lastErr.Error()
		}
		s.bus.Publish(event.NewTaskFailedEvent(tk.Type.String(), profile.MaxRetries, errMsg))
	}
	return nil, errors.NewProcessingError("retries exhausted", lastErr).
		WithTaskType(tk.Type.String()).WithAttempts(profile.MaxRetries)
}

// attempt executes the body once under the given timeout. A timeout is
// reported as ErrTimeout; parent cancellation passes through as
// context.Canceled.
func (s *Scheduler) attempt(ctx context.Context, tk Task, timeout time.Duration, body Runner) (any, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result any
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		result, err := body(attemptCtx, tk)
		done <- outcome{result, err}
	}()

	select {
	case out := <-done:
		if out.err != nil && attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return nil, errors.NewTimeoutError(tk.Type.String(), timeout)
		}
		return out.result, out.err
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			return nil, context.Canceled
		}
		return nil, errors.NewTimeoutError(tk.Type.String(), timeout)
	}
}

// growTimeout multiplies the priority's adaptive timeout by the growth
// factor, capping the increase at maxGrowth. Returns the new value.
func (s *Scheduler) growTimeout(pri Priority) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.timeouts[pri]
	grown := time.Duration(float64(current) * timeoutGrowthFactor)
	if grown > current+s.maxGrowth {
		grown = current + s.maxGrowth
	}
	s.timeouts[pri] = grown
	return grown
}

// decayTimeout shrinks the priority's adaptive timeout toward its base
// after a success, never going below the base.
func (s *Scheduler) decayTimeout(pri Priority) {
	s.mu.Lock()
	defer s.mu.Unlock()

	base := pri.Profile().BaseTimeout
	current := s.timeouts[pri]
	if current <= base {
		return
	}
	decayed := time.Duration(float64(current) * timeoutDecayFactor)
	if decayed < base {
		decayed = base
	}
	s.timeouts[pri] = decayed
}
