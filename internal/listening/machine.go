package listening

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/omnivoice/omni/internal/errors"
	"github.com/omnivoice/omni/internal/event"
	"github.com/omnivoice/omni/internal/feedback"
	"github.com/omnivoice/omni/internal/logging"
)

// errorRecoveryDelay is the pause before restarting wake-word detection
// after an ErrorState transition, giving audio devices time to settle.
const errorRecoveryDelay = time.Second

// Handler receives finalized recognized text while the machine is in
// Processing. Errors are reported to the user via feedback and swallowed;
// they never stop the cycle.
type Handler func(ctx context.Context, text string) error

// MachineOptions configures a Machine.
type MachineOptions struct {
	// ListenTimeout returns the cycle to Idle when no speech at all
	// arrives (default 5s).
	ListenTimeout time.Duration
	// MaxSilence returns the cycle to Idle when a started utterance
	// stalls (default 2s).
	MaxSilence time.Duration
	// SettleDelay is the pause between the wake word and recognition
	// start (default 300ms).
	SettleDelay time.Duration
	// PollInterval is the wake-word and recognizer polling cadence
	// (default 100ms).
	PollInterval time.Duration

	// Recognizer and Detector are required collaborators.
	Recognizer Recognizer
	Detector   WakeWordDetector
	// Feedback receives the cycle's spoken messages. Required.
	Feedback *feedback.Queue
	// Handler processes recognized text. Required.
	Handler Handler
	// Bus receives state-change and speech events. Optional.
	Bus *event.Bus
	// Logger for machine diagnostics. Defaults to a no-op logger.
	Logger *logging.Logger
}

// Machine runs the listening cycle. All state transitions happen on the
// machine's own goroutine.
type Machine struct {
	opts MachineOptions

	mu    sync.Mutex
	state State

	// listening-phase bookkeeping, touched only by the run loop
	lastAudioAt time.Time
	lastPartial string
	partialSeen bool
	pendingText string

	logger *logging.Logger

	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
	stopped bool
}

// NewMachine creates a Machine in Idle. The cycle does not run until
// Start is called.
func NewMachine(opts MachineOptions) *Machine {
	if opts.ListenTimeout <= 0 {
		opts.ListenTimeout = 5 * time.Second
	}
	if opts.MaxSilence <= 0 {
		opts.MaxSilence = 2 * time.Second
	}
	if opts.SettleDelay < 0 {
		opts.SettleDelay = 0
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 100 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = logging.NopLogger()
	}

	return &Machine{
		opts:   opts,
		state:  Idle,
		logger: opts.Logger.WithComponent("listening"),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Start initializes the collaborators and launches the cycle. The machine
// counts as started only once the cycle goroutine is running, so a failed
// Start leaves it stoppable and restartable.
func (m *Machine) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return nil
	}

	if err := m.opts.Recognizer.Initialize(); err != nil {
		return errors.NewInitializationError("recognizer failed to initialize", err).
			WithComponent("recognizer")
	}
	if err := m.opts.Detector.Initialize(); err != nil {
		return errors.NewInitializationError("wake word detector failed to initialize", err).
			WithComponent("wake_word")
	}
	if err := m.opts.Detector.StartDetection(); err != nil {
		return errors.NewInitializationError("wake word detection failed to start", err).
			WithComponent("wake_word")
	}

	m.started = true
	go m.run()
	return nil
}

// Stop ends the cycle and stops the collaborators. Safe to call more
// than once.
func (m *Machine) Stop() {
	m.mu.Lock()
	if !m.started || m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	m.mu.Unlock()

	close(m.stopCh)
	<-m.doneCh

	m.opts.Recognizer.StopRecognition()
	m.opts.Detector.StopDetection()
}

// run is the cycle's goroutine. Every iteration is wrapped so a panic in
// a collaborator forces ErrorState instead of killing the loop.
func (m *Machine) run() {
	defer close(m.doneCh)

	for {
		select {
		case <-m.stopCh:
			return
		default:
		}

		if err := m.step(); err != nil {
			m.logger.Error("listening cycle error", "state", m.State().String(), "error", err)
			m.transition(ErrorState, "error")
		}
	}
}

// step executes one iteration of the current state.
func (m *Machine) step() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.NewListeningError(fmt.Sprintf("panic: %v", r), nil).
				WithState(m.State().String())
		}
	}()

	switch m.State() {
	case Idle:
		return m.stepIdle()
	case WakeWordDetected:
		return m.stepWakeWordDetected()
	case Listening:
		return m.stepListening()
	case Processing:
		return m.stepProcessing()
	case ErrorState:
		return m.stepError()
	default:
		return m.stepError()
	}
}

// stepIdle polls the wake-word detector.
func (m *Machine) stepIdle() error {
	detected, err := m.opts.Detector.Detect()
	if err != nil {
		return errors.NewListeningError("wake word poll failed", err).WithState("idle")
	}
	if detected {
		m.transition(WakeWordDetected, "wake_word")
		return nil
	}
	m.pause(m.opts.PollInterval)
	return nil
}

// stepWakeWordDetected acknowledges the wake word, waits for the audio
// path to settle, and starts recognition.
func (m *Machine) stepWakeWordDetected() error {
	if err := m.opts.Detector.StopDetection(); err != nil {
		return errors.NewListeningError("stopping wake word detection failed", err).
			WithState("wake_word_detected")
	}

	m.opts.Feedback.Enqueue(feedback.Message{
		Text:          "Yes?",
		Category:      feedback.Guide,
		Priority:      feedback.High,
		Interruptible: false,
	})

	m.pause(m.opts.SettleDelay)

	if err := m.opts.Recognizer.StartRecognition(); err != nil {
		return errors.NewListeningError("recognizer failed to start", err).
			WithState("wake_word_detected")
	}

	m.lastAudioAt = time.Now()
	m.lastPartial = ""
	m.partialSeen = false
	m.transition(Listening, "settle")
	return nil
}

// stepListening polls the recognizer and applies the no-speech and
// silence timeouts.
func (m *Machine) stepListening() error {
	final, partial, err := m.opts.Recognizer.Recognize()
	if err != nil {
		return errors.NewListeningError("recognizer poll failed", err).WithState("listening")
	}

	if final != "" {
		m.pendingText = final
		m.transition(Processing, "speech")
		return nil
	}

	if partial != "" && partial != m.lastPartial {
		m.lastPartial = partial
		m.partialSeen = true
		m.lastAudioAt = time.Now()
	}

	idle := time.Since(m.lastAudioAt)
	if m.partialSeen && idle > m.opts.MaxSilence {
		m.opts.Feedback.Enqueue(feedback.Message{
			Text:          "Sorry, I stopped listening.",
			Category:      feedback.Guide,
			Priority:      feedback.Normal,
			Interruptible: true,
		})
		return m.backToIdle("silence")
	}
	if !m.partialSeen && idle > m.opts.ListenTimeout {
		m.opts.Feedback.Enqueue(feedback.Message{
			Text:          "Sorry, I didn't hear anything.",
			Category:      feedback.Guide,
			Priority:      feedback.Normal,
			Interruptible: true,
		})
		return m.backToIdle("timeout")
	}

	m.pause(m.opts.PollInterval)
	return nil
}

// stepProcessing hands the recognized text to the handler and returns to
// Idle whatever the outcome.
func (m *Machine) stepProcessing() error {
	text := m.pendingText
	m.pendingText = ""

	m.opts.Recognizer.StopRecognition()

	if m.opts.Bus != nil {
		m.opts.Bus.Publish(event.NewSpeechRecognizedEvent(text))
	}

	// Stop cancels an in-flight handler cooperatively.
	ctx, cancel := context.WithCancel(context.Background())
	handled := make(chan struct{})
	go func() {
		select {
		case <-m.stopCh:
			cancel()
		case <-handled:
		}
	}()
	err := m.opts.Handler(ctx, text)
	close(handled)
	cancel()

	if err != nil {
		// Handler failures speak an apology and the cycle continues.
		m.logger.Warn("handler failed", "error", err, "text", text)
		m.opts.Feedback.Enqueue(feedback.Message{
			Text:          "Sorry, something went wrong.",
			Category:      feedback.Error,
			Priority:      feedback.High,
			Interruptible: true,
		})
	}

	return m.backToIdle("done")
}

// stepError recovers: stop the recognizer, wait, restart wake-word
// detection, return to Idle. Recovery failures retry on the next pass.
func (m *Machine) stepError() error {
	m.opts.Recognizer.StopRecognition()
	m.pause(errorRecoveryDelay)

	if err := m.opts.Detector.StartDetection(); err != nil {
		m.logger.Error("wake word restart failed, retrying", "error", err)
		m.pause(errorRecoveryDelay)
		return nil
	}

	m.transition(Idle, "recovered")
	return nil
}

// backToIdle restarts wake-word detection and transitions to Idle.
func (m *Machine) backToIdle(reason string) error {
	if err := m.opts.Detector.StartDetection(); err != nil {
		return errors.NewListeningError("wake word restart failed", err).
			WithState(m.State().String())
	}
	m.transition(Idle, reason)
	return nil
}

// transition moves the machine to a new state and publishes the change.
func (m *Machine) transition(to State, reason string) {
	m.mu.Lock()
	from := m.state
	m.state = to
	m.mu.Unlock()

	if from == to {
		return
	}

	m.logger.Debug("state changed",
		"from", from.String(), "to", to.String(), "reason", reason)
	if m.opts.Bus != nil {
		m.opts.Bus.Publish(event.NewStateChangedEvent(from.String(), to.String(), reason))
	}
}

// pause sleeps for d but wakes immediately on Stop.
func (m *Machine) pause(d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-m.stopCh:
	case <-timer.C:
	}
}
