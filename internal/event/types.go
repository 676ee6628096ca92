// Package event defines event types for decoupling components in Omni.
// These events let the scheduler, cache, listening loop, and feedback queue
// publish observable signals without requiring direct dependencies.
package event

import "time"

// Event is the interface that all events must implement.
// It provides a common way to identify and timestamp events.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "task.completed", "cache.evicted")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Task Lifecycle Events
// -----------------------------------------------------------------------------

// TaskCompletedEvent is emitted when the scheduler finishes a task successfully.
type TaskCompletedEvent struct {
	baseEvent
	TaskType string        // Task type name (weather, calendar, timer, device_control)
	Attempts int           // Number of attempts used, including the successful one
	Duration time.Duration // Wall time of the successful attempt
}

// NewTaskCompletedEvent creates a TaskCompletedEvent.
func NewTaskCompletedEvent(taskType string, attempts int, duration time.Duration) TaskCompletedEvent {
	return TaskCompletedEvent{
		baseEvent: newBaseEvent("task.completed"),
		TaskType:  taskType,
		Attempts:  attempts,
		Duration:  duration,
	}
}

// TaskFailedEvent is emitted when a task exhausts its retry budget.
type TaskFailedEvent struct {
	baseEvent
	TaskType string // Task type name
	Attempts int    // Total attempts made
	Error    string // Final error message
}

// NewTaskFailedEvent creates a TaskFailedEvent.
func NewTaskFailedEvent(taskType string, attempts int, errMsg string) TaskFailedEvent {
	return TaskFailedEvent{
		baseEvent: newBaseEvent("task.failed"),
		TaskType:  taskType,
		Attempts:  attempts,
		Error:     errMsg,
	}
}

// TaskTimeoutEvent is emitted on each individual attempt timeout, before
// the scheduler decides whether another attempt remains.
type TaskTimeoutEvent struct {
	baseEvent
	TaskType string        // Task type name
	Attempt  int           // 1-based attempt number that timed out
	Timeout  time.Duration // Timeout that applied to the attempt
}

// NewTaskTimeoutEvent creates a TaskTimeoutEvent.
func NewTaskTimeoutEvent(taskType string, attempt int, timeout time.Duration) TaskTimeoutEvent {
	return TaskTimeoutEvent{
		baseEvent: newBaseEvent("task.timeout"),
		TaskType:  taskType,
		Attempt:   attempt,
		Timeout:   timeout,
	}
}

// -----------------------------------------------------------------------------
// Batch Events
// -----------------------------------------------------------------------------

// BatchFlushedEvent is emitted when a batch window is flushed.
type BatchFlushedEvent struct {
	baseEvent
	TaskType string // Task type of the window
	Size     int    // Number of items in the flushed window
	Reason   string // "window", "size", or "drain"
	Fallback bool   // True if the batched call failed and items fell back to per-item runs
}

// NewBatchFlushedEvent creates a BatchFlushedEvent.
func NewBatchFlushedEvent(taskType string, size int, reason string, fallback bool) BatchFlushedEvent {
	return BatchFlushedEvent{
		baseEvent: newBaseEvent("batch.flushed"),
		TaskType:  taskType,
		Size:      size,
		Reason:    reason,
		Fallback:  fallback,
	}
}

// -----------------------------------------------------------------------------
// Cache Events
// -----------------------------------------------------------------------------

// CacheEvictedEvent is emitted when entries are removed by an eviction pass.
type CacheEvictedEvent struct {
	baseEvent
	Evicted     int    // Number of entries removed
	Reason      string // "expired", "large", "score", or "cleanup"
	CurrentSize int64  // Cache size in bytes after eviction
}

// NewCacheEvictedEvent creates a CacheEvictedEvent.
func NewCacheEvictedEvent(evicted int, reason string, currentSize int64) CacheEvictedEvent {
	return CacheEvictedEvent{
		baseEvent:   newBaseEvent("cache.evicted"),
		Evicted:     evicted,
		Reason:      reason,
		CurrentSize: currentSize,
	}
}

// CacheIntervalChangedEvent is emitted when the adaptive cleanup interval
// is halved or doubled after a cleanup pass.
type CacheIntervalChangedEvent struct {
	baseEvent
	Interval     time.Duration // New cleanup interval
	SizePressure float64       // currentSize / maxSize at decision time
	EvictionRate float64       // Evictions per second since the previous pass
}

// NewCacheIntervalChangedEvent creates a CacheIntervalChangedEvent.
func NewCacheIntervalChangedEvent(interval time.Duration, sizePressure, evictionRate float64) CacheIntervalChangedEvent {
	return CacheIntervalChangedEvent{
		baseEvent:    newBaseEvent("cache.interval_changed"),
		Interval:     interval,
		SizePressure: sizePressure,
		EvictionRate: evictionRate,
	}
}

// -----------------------------------------------------------------------------
// Listening Events
// -----------------------------------------------------------------------------

// StateChangedEvent is emitted on every listening state transition.
type StateChangedEvent struct {
	baseEvent
	From   string // Previous state name
	To     string // New state name
	Reason string // Transition trigger (e.g., "wake_word", "timeout", "recovered")
}

// NewStateChangedEvent creates a StateChangedEvent.
func NewStateChangedEvent(from, to, reason string) StateChangedEvent {
	return StateChangedEvent{
		baseEvent: newBaseEvent("listening.state_changed"),
		From:      from,
		To:        to,
		Reason:    reason,
	}
}

// SpeechRecognizedEvent is emitted when the listening loop captures final text.
type SpeechRecognizedEvent struct {
	baseEvent
	Text string // Recognized text, already trimmed
}

// NewSpeechRecognizedEvent creates a SpeechRecognizedEvent.
func NewSpeechRecognizedEvent(text string) SpeechRecognizedEvent {
	return SpeechRecognizedEvent{
		baseEvent: newBaseEvent("listening.speech_recognized"),
		Text:      text,
	}
}

// -----------------------------------------------------------------------------
// Feedback Events
// -----------------------------------------------------------------------------

// FeedbackSpokenEvent is emitted after the dispatch loop finishes speaking
// a message (or after the message was interrupted).
type FeedbackSpokenEvent struct {
	baseEvent
	Text        string // Message text
	Category    string // Message category name
	Priority    string // Message priority name
	Interrupted bool   // True if the message was cut off by a higher-priority one
}

// NewFeedbackSpokenEvent creates a FeedbackSpokenEvent.
func NewFeedbackSpokenEvent(text, category, priority string, interrupted bool) FeedbackSpokenEvent {
	return FeedbackSpokenEvent{
		baseEvent:   newBaseEvent("feedback.spoken"),
		Text:        text,
		Category:    category,
		Priority:    priority,
		Interrupted: interrupted,
	}
}

// FeedbackDroppedEvent is emitted when a message is dropped because feedback
// is disabled or silent mode filtered it.
type FeedbackDroppedEvent struct {
	baseEvent
	Text   string // Message text
	Reason string // "disabled" or "silent_mode"
}

// NewFeedbackDroppedEvent creates a FeedbackDroppedEvent.
func NewFeedbackDroppedEvent(text, reason string) FeedbackDroppedEvent {
	return FeedbackDroppedEvent{
		baseEvent: newBaseEvent("feedback.dropped"),
		Text:      text,
		Reason:    reason,
	}
}
