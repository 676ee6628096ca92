package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/omnivoice/omni/internal/errors"
	"github.com/omnivoice/omni/internal/event"
	"github.com/omnivoice/omni/internal/logging"
)

// Outcome is the resolved result of one batched submission.
type Outcome struct {
	Value any
	Err   error
}

// Pending is a handle to a submission's eventual outcome.
type Pending struct {
	ch chan Outcome
}

func newPending() *Pending {
	return &Pending{ch: make(chan Outcome, 1)}
}

// resolve delivers the outcome. Later calls are ignored, so a submission
// resolves exactly once.
func (p *Pending) resolve(value any, err error) {
	select {
	case p.ch <- Outcome{Value: value, Err: err}:
	default:
	}
}

// Wait blocks until the submission resolves or ctx is done.
func (p *Pending) Wait(ctx context.Context) (any, error) {
	select {
	case out := <-p.ch:
		return out.Value, out.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// BatchHandler executes flushed windows for one task type.
type BatchHandler struct {
	// Batch executes all payloads in one call. Results match payloads
	// positionally unless Key is set, in which case Batch must return one
	// result per distinct key and results are matched by key.
	Batch func(ctx context.Context, payloads []map[string]any) ([]any, error)
	// Key derives a correlation key from a payload. Optional.
	Key func(payload map[string]any) string
	// Single executes one payload. Used as the per-item fallback when the
	// batched call fails.
	Single Runner
}

// batchItem pairs a submitted payload with its pending result.
type batchItem struct {
	payload map[string]any
	pending *Pending
}

// window collects same-type submissions until it flushes.
type window struct {
	items    []batchItem
	timer    *time.Timer
	openedAt time.Time
}

// CoordinatorOptions configures a Coordinator.
type CoordinatorOptions struct {
	// Window is how long a batch window stays open (default 5s).
	Window time.Duration
	// MaxSize flushes a window immediately at this many items (default 10).
	MaxSize int
	// Batchable lists the task types eligible for batching.
	Batchable []Type
	// Scheduler runs per-item fallbacks. Required.
	Scheduler *Scheduler
	// Metrics receives per-type batch counters. Defaults to a fresh registry.
	Metrics *BatchMetrics
	// Bus receives batch.flushed events. Optional.
	Bus *event.Bus
	// Logger for coordinator diagnostics. Defaults to a no-op logger.
	Logger *logging.Logger
}

// Coordinator coalesces concurrently-submitted same-type tasks into one
// batched call per time/size window, with per-item fallback when the
// batched call fails.
type Coordinator struct {
	mu       sync.Mutex
	windows  map[Type]*window
	handlers map[Type]BatchHandler
	closed   bool

	windowDur time.Duration
	maxSize   int
	batchable map[Type]bool

	scheduler *Scheduler
	metrics   *BatchMetrics
	bus       *event.Bus
	logger    *logging.Logger

	flushes sync.WaitGroup
}

// NewCoordinator creates a Coordinator. Handlers are registered per type
// with RegisterHandler before any Submit for that type.
func NewCoordinator(opts CoordinatorOptions) *Coordinator {
	if opts.Window <= 0 {
		opts.Window = 5 * time.Second
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = 10
	}
	if opts.Metrics == nil {
		opts.Metrics = NewBatchMetrics()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NopLogger()
	}

	batchable := make(map[Type]bool, len(opts.Batchable))
	for _, t := range opts.Batchable {
		batchable[t] = true
	}

	return &Coordinator{
		windows:   make(map[Type]*window),
		handlers:  make(map[Type]BatchHandler),
		windowDur: opts.Window,
		maxSize:   opts.MaxSize,
		batchable: batchable,
		scheduler: opts.Scheduler,
		metrics:   opts.Metrics,
		bus:       opts.Bus,
		logger:    opts.Logger.WithComponent("batch"),
	}
}

// RegisterHandler installs the batch handler for a task type.
func (c *Coordinator) RegisterHandler(t Type, handler BatchHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[t] = handler
}

// Batchable reports whether submissions of this type are coalesced.
func (c *Coordinator) Batchable(t Type) bool {
	return c.batchable[t]
}

// Metrics returns the coordinator's metrics registry.
func (c *Coordinator) Metrics() *BatchMetrics {
	return c.metrics
}

// Submit adds a payload to the open window for the task type, opening one
// if needed. The window flushes when it fills to maxSize or when its
// timer fires, whichever comes first.
func (c *Coordinator) Submit(t Type, payload map[string]any) (*Pending, error) {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()
		return nil, errors.Wrap(errors.ErrShuttingDown, "batch coordinator stopped")
	}
	if !c.batchable[t] {
		c.mu.Unlock()
		return nil, fmt.Errorf("task type %s is not batchable", t)
	}
	if _, ok := c.handlers[t]; !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("no batch handler registered for %s", t)
	}

	pending := newPending()

	w, ok := c.windows[t]
	if !ok {
		w = &window{openedAt: time.Now()}
		w.timer = time.AfterFunc(c.windowDur, func() {
			c.flush(t, "window")
		})
		c.windows[t] = w
	}
	w.items = append(w.items, batchItem{payload: payload, pending: pending})

	if len(w.items) >= c.maxSize {
		w.timer.Stop()
		items := c.detachLocked(t)
		// Add while still holding the lock so a concurrent Drain cannot
		// pass Wait before this flush is counted.
		c.flushes.Add(1)
		c.mu.Unlock()
		go func() {
			defer c.flushes.Done()
			c.runBatch(context.Background(), t, items, "size")
		}()
		return pending, nil
	}

	c.mu.Unlock()
	return pending, nil
}

// detachLocked removes and returns the open window's items. Caller holds
// the mutex.
func (c *Coordinator) detachLocked(t Type) []batchItem {
	w, ok := c.windows[t]
	if !ok {
		return nil
	}
	delete(c.windows, t)
	return w.items
}

// flush detaches the open window for a type and runs the batched call.
func (c *Coordinator) flush(t Type, reason string) {
	c.mu.Lock()
	items := c.detachLocked(t)
	if len(items) == 0 {
		c.mu.Unlock()
		return
	}
	c.flushes.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.flushes.Done()
		c.runBatch(context.Background(), t, items, reason)
	}()
}

// runBatch executes the batched call for the detached items and resolves
// every pending result. A failed batch falls back to individual runs
// through the scheduler; per-item failures resolve only their own item.
func (c *Coordinator) runBatch(ctx context.Context, t Type, items []batchItem, reason string) {
	c.mu.Lock()
	handler := c.handlers[t]
	c.mu.Unlock()

	payloads := make([]map[string]any, len(items))
	for i, item := range items {
		payloads[i] = item.payload
	}

	start := time.Now()
	results, err := handler.Batch(ctx, payloads)
	elapsed := time.Since(start)

	if err == nil {
		err = c.resolveBatch(items, results, handler.Key)
	}

	fallback := err != nil
	if fallback {
		c.logger.Warn("batched call failed, falling back to per-item runs",
			"task_type", t.String(), "items", len(items), "error", err)
		c.fallback(ctx, t, items, handler.Single)
	}

	c.metrics.RecordFlush(t, len(items), elapsed, !fallback)
	if c.bus != nil {
		c.bus.Publish(event.NewBatchFlushedEvent(t.String(), len(items), reason, fallback))
	}
}

// resolveBatch matches batch results to items, positionally or by the
// handler's correlation key. A shape mismatch is reported as an error so
// the caller can fall back.
func (c *Coordinator) resolveBatch(items []batchItem, results []any, key func(map[string]any) string) error {
	if key == nil {
		if len(results) != len(items) {
			return fmt.Errorf("batch returned %d results for %d items", len(results), len(items))
		}
		for i, item := range items {
			item.pending.resolve(results[i], nil)
		}
		return nil
	}

	// Keyed matching: the batch may deduplicate payloads, so results are
	// indexed by correlation key and items look their own key up.
	byKey := make(map[string]any, len(results))
	for _, r := range results {
		kr, ok := r.(interface{ CorrelationKey() string })
		if !ok {
			return fmt.Errorf("keyed batch result %T does not expose a correlation key", r)
		}
		byKey[kr.CorrelationKey()] = r
	}
	for _, item := range items {
		r, ok := byKey[key(item.payload)]
		if !ok {
			return fmt.Errorf("batch result missing for key %q", key(item.payload))
		}
		item.pending.resolve(r, nil)
	}
	return nil
}

// fallback runs each item individually through the scheduler.
func (c *Coordinator) fallback(ctx context.Context, t Type, items []batchItem, single Runner) {
	pri := PriorityFor(t)
	for _, item := range items {
		if single == nil {
			item.pending.resolve(nil, errors.NewProcessingError("no per-item fallback registered", nil).
				WithTaskType(t.String()))
			continue
		}
		result, err := c.scheduler.Run(ctx, New(t, item.payload), pri, single)
		item.pending.resolve(result, err)
	}
}

// Drain flushes every open window synchronously and stops accepting new
// submissions. Items that cannot be flushed before ctx expires resolve
// with ErrBatchDiscarded.
func (c *Coordinator) Drain(ctx context.Context) {
	c.mu.Lock()
	c.closed = true
	var detached []struct {
		t     Type
		items []batchItem
	}
	for t, w := range c.windows {
		w.timer.Stop()
		detached = append(detached, struct {
			t     Type
			items []batchItem
		}{t, w.items})
	}
	c.windows = make(map[Type]*window)
	c.mu.Unlock()

	for _, d := range detached {
		if ctx.Err() != nil {
			for _, item := range d.items {
				item.pending.resolve(nil, errors.Wrap(errors.ErrBatchDiscarded, "shutdown deadline reached"))
			}
			continue
		}
		c.runBatch(ctx, d.t, d.items, "drain")
	}

	c.flushes.Wait()
}
