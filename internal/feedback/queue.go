package feedback

import (
	"sync"
	"time"

	"github.com/omnivoice/omni/internal/event"
	"github.com/omnivoice/omni/internal/logging"
)

// Settings are the runtime-tunable knobs of the queue. They can be
// swapped while the queue is running, so config hot-reload takes effect
// without restarting the dispatch loop.
type Settings struct {
	// Enabled turns all spoken feedback on or off.
	Enabled bool
	// SilentMode drops everything except Critical messages.
	SilentMode bool
	// Cooldown is the minimum gap between consecutive spoken messages.
	// Critical messages ignore it.
	Cooldown time.Duration
	// HapticEnabled fires the haptic hook for Critical and High messages.
	HapticEnabled bool
}

// speaking tracks the message currently owned by the dispatch loop.
type speaking struct {
	msg         Message
	interrupted bool
}

// QueueOptions configures a Queue.
type QueueOptions struct {
	Settings Settings
	// Synth is the speech-output collaborator. Required.
	Synth Synthesizer
	// Haptic fires for Critical/High messages when enabled. Optional.
	Haptic HapticFunc
	// Bus receives feedback.spoken and feedback.dropped events. Optional.
	Bus *event.Bus
	// Logger for queue diagnostics. Defaults to a no-op logger.
	Logger *logging.Logger
}

// Queue is a priority-ordered queue of feedback messages with a single
// dispatch loop. At most one message speaks at a time; the dispatch loop
// has exclusive ownership of the speaking slot.
type Queue struct {
	mu           sync.Mutex
	items        []Message // sorted by priority desc, then enqueue order
	current      *speaking
	settings     Settings
	lastSpokenAt time.Time

	synth  Synthesizer
	haptic HapticFunc
	bus    *event.Bus
	logger *logging.Logger

	wakeCh  chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
	stopped bool
}

// NewQueue creates a Queue. The dispatch loop does not run until Start.
func NewQueue(opts QueueOptions) *Queue {
	if opts.Logger == nil {
		opts.Logger = logging.NopLogger()
	}
	return &Queue{
		settings: opts.Settings,
		synth:    opts.Synth,
		haptic:   opts.Haptic,
		bus:      opts.Bus,
		logger:   opts.Logger.WithComponent("feedback"),
		wakeCh:   make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// UpdateSettings replaces the queue's settings. Takes effect on the next
// enqueue and dispatch decisions.
func (q *Queue) UpdateSettings(s Settings) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.settings = s
}

// Settings returns a copy of the current settings.
func (q *Queue) Settings() Settings {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.settings
}

// Len returns the number of queued messages, excluding one currently
// speaking.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Enqueue adds a message to the queue. Disabled feedback and silent mode
// drop messages here, before they consume queue space. A Critical or High
// message interrupts a lower- or equal-priority interruptible message
// that is currently speaking.
func (q *Queue) Enqueue(msg Message) {
	q.mu.Lock()

	if !q.settings.Enabled {
		q.mu.Unlock()
		q.drop(msg, "disabled")
		return
	}
	if q.settings.SilentMode && msg.Priority != Critical {
		q.mu.Unlock()
		q.drop(msg, "silent_mode")
		return
	}

	msg.EnqueuedAt = time.Now()

	if msg.Priority >= High && q.current != nil &&
		q.current.msg.Interruptible && q.current.msg.Priority <= msg.Priority {
		q.current.interrupted = true
		// StopSpeaking unblocks the dispatch loop's Speak call.
		q.synth.StopSpeaking()
	}

	q.insertLocked(msg)
	q.mu.Unlock()

	q.signal()
}

// insertLocked places the message after all messages of equal or higher
// priority, so ordering is stable within a priority. Caller holds the
// mutex.
func (q *Queue) insertLocked(msg Message) {
	i := len(q.items)
	for i > 0 && q.items[i-1].Priority < msg.Priority {
		i--
	}
	q.items = append(q.items, Message{})
	copy(q.items[i+1:], q.items[i:])
	q.items[i] = msg
}

// drop reports a message that was filtered out.
func (q *Queue) drop(msg Message, reason string) {
	q.logger.Debug("dropping feedback message", "reason", reason, "text", msg.Text)
	if q.bus != nil {
		q.bus.Publish(event.NewFeedbackDroppedEvent(msg.Text, reason))
	}
}

// signal nudges the dispatch loop without blocking.
func (q *Queue) signal() {
	select {
	case q.wakeCh <- struct{}{}:
	default:
	}
}

// Start launches the dispatch loop. Calling it twice is a no-op.
func (q *Queue) Start() {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	q.mu.Unlock()

	go q.dispatchLoop()
}

// Stop shuts the dispatch loop down, cutting off any in-flight speech.
// It is safe to call more than once.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started || q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	q.mu.Unlock()

	close(q.stopCh)
	q.synth.StopSpeaking()
	<-q.doneCh
}

// dispatchLoop speaks queued messages one at a time, honoring the
// cooldown for non-Critical messages.
func (q *Queue) dispatchLoop() {
	defer close(q.doneCh)

	for {
		msg, wait, ok := q.next()
		if !ok {
			select {
			case <-q.stopCh:
				return
			case <-q.wakeCh:
				continue
			}
		}
		if wait > 0 {
			// A newly enqueued Critical message re-evaluates the wait.
			timer := time.NewTimer(wait)
			select {
			case <-q.stopCh:
				timer.Stop()
				return
			case <-q.wakeCh:
				timer.Stop()
				continue
			case <-timer.C:
			}
			continue
		}

		select {
		case <-q.stopCh:
			return
		default:
		}

		q.speak(msg)
	}
}

// next inspects the head of the queue. It returns the head message and a
// zero wait if it may speak now, or the remaining cooldown to wait. The
// head is only popped when wait is zero.
func (q *Queue) next() (Message, time.Duration, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return Message{}, 0, false
	}

	head := q.items[0]
	if head.Priority != Critical {
		if remaining := q.settings.Cooldown - time.Since(q.lastSpokenAt); remaining > 0 {
			return head, remaining, true
		}
	}

	q.items = q.items[1:]
	q.current = &speaking{msg: head}
	return head, 0, true
}

// speak delivers one message to the synthesizer and releases the
// speaking slot.
func (q *Queue) speak(msg Message) {
	q.mu.Lock()
	hapticOn := q.settings.HapticEnabled
	q.mu.Unlock()

	if hapticOn && q.haptic != nil && msg.Priority >= High {
		q.haptic(msg)
	}

	// Synthesis failures are logged and dropped, never retried.
	if err := q.synth.Speak(msg.Text); err != nil {
		q.logger.Warn("speech synthesis failed", "error", err, "text", msg.Text)
	}

	q.mu.Lock()
	interrupted := q.current != nil && q.current.interrupted
	q.current = nil
	q.lastSpokenAt = time.Now()
	q.mu.Unlock()

	if q.bus != nil {
		q.bus.Publish(event.NewFeedbackSpokenEvent(
			msg.Text, msg.Category.String(), msg.Priority.String(), interrupted))
	}
}
