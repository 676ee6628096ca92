// Package processor assembles the cache, scheduler, batch coordinator,
// listening cycle, and feedback queue into one voice assistant core. All
// component state hangs off the Processor; there are no package-level
// singletons.
package processor

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/omnivoice/omni/internal/cache"
	"github.com/omnivoice/omni/internal/config"
	"github.com/omnivoice/omni/internal/errors"
	"github.com/omnivoice/omni/internal/event"
	"github.com/omnivoice/omni/internal/feedback"
	"github.com/omnivoice/omni/internal/intent"
	"github.com/omnivoice/omni/internal/listening"
	"github.com/omnivoice/omni/internal/logging"
	"github.com/omnivoice/omni/internal/task"
)

// Result is what task executors return: something to say plus structured
// data for callers that want it.
type Result struct {
	Speech string
	Data   map[string]any
	Cached bool
}

// Options configures a Processor. Recognizer, Synthesizer, Detector, and
// Executors are the external collaborators; everything else is built
// internally from the config.
type Options struct {
	Config *config.Config

	Recognizer  listening.Recognizer
	Synthesizer feedback.Synthesizer
	Detector    listening.WakeWordDetector

	// Executors supply the task bodies per type. A type without an
	// executor fails dispatch with a ProcessingError.
	Executors map[task.Type]task.Runner
	// BatchHandlers supply batched execution for batchable types.
	// Types without a handler run unbatched.
	BatchHandlers map[task.Type]task.BatchHandler

	// Haptic fires for urgent feedback when enabled. Optional.
	Haptic feedback.HapticFunc
	// Bus receives all component events. Defaults to a fresh bus.
	Bus *event.Bus
	// Logger for all components. Defaults to a no-op logger.
	Logger *logging.Logger
	// SizeEstimator overrides the cache's value size accounting. Optional.
	SizeEstimator cache.SizeEstimator
}

// Processor is the assistant core. Construct with New, then Start; Stop
// shuts the loops down in dependency order.
type Processor struct {
	cfg *config.Config

	cache     *cache.AdaptiveCache
	scheduler *task.Scheduler
	batch     *task.Coordinator
	queue     *feedback.Queue
	machine   *listening.Machine
	resolver  *intent.Resolver

	executors map[task.Type]task.Runner
	synth     feedback.Synthesizer

	watcher *config.Watcher
	bus     *event.Bus
	logger  *logging.Logger

	offline atomic.Bool
	started atomic.Bool
	stopped atomic.Bool
}

// New builds a Processor from its collaborators. It does not start any
// goroutines.
func New(opts Options) (*Processor, error) {
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.Bus == nil {
		opts.Bus = event.NewBus()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NopLogger()
	}
	if opts.Recognizer == nil || opts.Synthesizer == nil || opts.Detector == nil {
		return nil, errors.NewInitializationError("recognizer, synthesizer, and wake word detector are required", nil).
			WithComponent("processor")
	}

	cfg := opts.Config
	logger := opts.Logger

	c := cache.New(cache.Options{
		MaxSize:         cfg.Cache.MaxSizeBytes,
		CleanupInterval: cfg.Cache.CleanupInterval(),
		Estimator:       opts.SizeEstimator,
		Bus:             opts.Bus,
		Logger:          logger,
	})

	scheduler := task.NewScheduler(task.SchedulerOptions{
		MaxTimeoutGrowth: cfg.Scheduler.MaxTimeoutGrowth(),
		Bus:              opts.Bus,
		Logger:           logger,
	})

	var batchable []task.Type
	for _, name := range cfg.Batch.Types {
		t, err := task.ParseType(name)
		if err != nil {
			return nil, errors.NewValidationError("unknown batch task type").
				WithField("batch.types").WithValue(name)
		}
		batchable = append(batchable, t)
	}

	coordinator := task.NewCoordinator(task.CoordinatorOptions{
		Window:    cfg.Batch.Window(),
		MaxSize:   cfg.Batch.MaxSize,
		Batchable: batchable,
		Scheduler: scheduler,
		Bus:       opts.Bus,
		Logger:    logger,
	})
	for t, h := range opts.BatchHandlers {
		coordinator.RegisterHandler(t, h)
	}

	queue := feedback.NewQueue(feedback.QueueOptions{
		Settings: feedbackSettings(cfg.Feedback),
		Synth:    opts.Synthesizer,
		Haptic:   opts.Haptic,
		Bus:      opts.Bus,
		Logger:   logger,
	})

	p := &Processor{
		cfg:       cfg,
		cache:     c,
		scheduler: scheduler,
		batch:     coordinator,
		queue:     queue,
		resolver:  intent.NewResolver(logger),
		executors: opts.Executors,
		synth:     opts.Synthesizer,
		bus:       opts.Bus,
		logger:    logger.WithComponent("processor"),
	}
	p.offline.Store(cfg.OfflineMode)

	p.machine = listening.NewMachine(listening.MachineOptions{
		ListenTimeout: cfg.Listening.ListenTimeout(),
		MaxSilence:    cfg.Listening.MaxSilence(),
		SettleDelay:   cfg.Listening.SettleDelay(),
		PollInterval:  cfg.Listening.PollInterval(),
		Recognizer:    opts.Recognizer,
		Detector:      opts.Detector,
		Feedback:      queue,
		Handler:       p.handle,
		Bus:           opts.Bus,
		Logger:        logger,
	})

	return p, nil
}

// feedbackSettings converts the config section to queue settings.
func feedbackSettings(fc config.FeedbackConfig) feedback.Settings {
	return feedback.Settings{
		Enabled:       fc.Enabled,
		SilentMode:    fc.SilentMode,
		Cooldown:      fc.DelayBetweenMessages(),
		HapticEnabled: fc.HapticEnabled,
	}
}

// Start brings the core up: synthesizer, feedback loop, cache cleanup,
// listening cycle, config watcher. A collaborator that fails to
// initialize aborts startup.
func (p *Processor) Start() error {
	if !p.started.CompareAndSwap(false, true) {
		return nil
	}

	if err := p.synth.Initialize(); err != nil {
		return errors.NewInitializationError("synthesizer failed to initialize", err).
			WithComponent("synthesizer")
	}

	p.queue.Start()
	p.cache.StartCleanup()

	if err := p.machine.Start(); err != nil {
		p.cache.StopCleanup()
		p.queue.Stop()
		return err
	}

	p.startConfigWatcher()

	p.queue.Enqueue(feedback.Message{
		Text:          "Omni is ready.",
		Category:      feedback.System,
		Priority:      feedback.Normal,
		Interruptible: true,
	})
	p.logger.Info("processor started", "offline", p.offline.Load())
	return nil
}

// startConfigWatcher hot-reloads the feedback and offline settings when
// the config file changes. Watcher failures are logged, never fatal.
func (p *Processor) startConfigWatcher() {
	watcher, err := config.NewWatcher(func(cfg *config.Config) {
		p.queue.UpdateSettings(feedbackSettings(cfg.Feedback))
		p.offline.Store(cfg.OfflineMode)
		p.logger.Info("configuration reloaded",
			"offline", cfg.OfflineMode,
			"feedback_enabled", cfg.Feedback.Enabled)
	})
	if err != nil {
		p.logger.Warn("config watcher unavailable", "error", err)
		return
	}
	watcher.SetErrorCallback(func(err error) {
		p.logger.Warn("config reload failed", "error", err)
	})
	if err := watcher.Start(); err != nil {
		p.logger.Warn("config watcher failed to start", "error", err)
		watcher.Stop()
		return
	}
	p.watcher = watcher
}

// Stop shuts the core down: listening cycle first, then pending batches,
// a farewell if time permits, the feedback loop, and finally cache
// cleanup. Safe to call more than once.
func (p *Processor) Stop(ctx context.Context) {
	if !p.started.Load() || !p.stopped.CompareAndSwap(false, true) {
		return
	}

	if p.watcher != nil {
		p.watcher.Stop()
	}

	p.machine.Stop()
	p.batch.Drain(ctx)

	if ctx.Err() == nil {
		p.queue.Enqueue(feedback.Message{
			Text:          "Goodbye.",
			Category:      feedback.System,
			Priority:      feedback.Critical,
			Interruptible: false,
		})
		p.waitForQuiet(ctx, 2*time.Second)
	}

	p.queue.Stop()
	p.cache.StopCleanup()
	p.logger.Info("processor stopped")
}

// waitForQuiet gives the feedback queue a bounded chance to finish
// speaking before it is cut off.
func (p *Processor) waitForQuiet(ctx context.Context, limit time.Duration) {
	deadline := time.Now().Add(limit)
	for time.Now().Before(deadline) && ctx.Err() == nil {
		if p.queue.Len() == 0 && !p.synth.IsSpeaking() {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// SetOffline toggles offline mode at runtime.
func (p *Processor) SetOffline(offline bool) {
	p.offline.Store(offline)
}

// Offline reports whether the processor is in offline mode.
func (p *Processor) Offline() bool {
	return p.offline.Load()
}

// Cache exposes the result cache, mainly for status reporting and tests.
func (p *Processor) Cache() *cache.AdaptiveCache { return p.cache }

// Scheduler exposes the task scheduler.
func (p *Processor) Scheduler() *task.Scheduler { return p.scheduler }

// Batch exposes the batch coordinator.
func (p *Processor) Batch() *task.Coordinator { return p.batch }

// Feedback exposes the feedback queue.
func (p *Processor) Feedback() *feedback.Queue { return p.queue }

// ListeningState returns the current listening cycle state.
func (p *Processor) ListeningState() listening.State { return p.machine.State() }
