// Package feedback implements the prioritized spoken-feedback queue.
// Messages are dispatched one at a time to a speech synthesizer, with
// interruption semantics for urgent messages and a cooldown between
// consecutive ones.
package feedback

import (
	"fmt"
	"time"
)

// Category classifies what a message is about.
type Category int

const (
	System Category = iota
	Error
	Task
	Guide
	Status
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case System:
		return "system"
	case Error:
		return "error"
	case Task:
		return "task"
	case Guide:
		return "guide"
	case Status:
		return "status"
	default:
		return fmt.Sprintf("unknown(%d)", int(c))
	}
}

// Priority orders messages in the queue. Critical messages bypass the
// inter-message cooldown and can interrupt a speaking message.
type Priority int

const (
	Low Priority = iota + 1
	Normal
	High
	Critical
)

// String returns the priority name.
func (p Priority) String() string {
	switch p {
	case Critical:
		return "critical"
	case High:
		return "high"
	case Normal:
		return "normal"
	case Low:
		return "low"
	default:
		return fmt.Sprintf("unknown(%d)", int(p))
	}
}

// Message is one short unit of spoken output.
type Message struct {
	Text          string
	Category      Category
	Priority      Priority
	Interruptible bool
	EnqueuedAt    time.Time
}

// Synthesizer is the speech-output collaborator.
type Synthesizer interface {
	Initialize() error
	// Speak blocks until the text has been spoken or StopSpeaking cuts
	// it off.
	Speak(text string) error
	StopSpeaking()
	IsSpeaking() bool
}

// HapticFunc fires a haptic pulse for urgent messages. Hosts without
// haptics leave it nil.
type HapticFunc func(Message)
