// Package task defines the task model and implements the adaptive
// scheduler and batch coordinator that execute tasks under priority,
// retry, and connectivity constraints.
package task

import (
	"fmt"
	"time"
)

// Type identifies the kind of work a task performs. The set is closed:
// dispatch code switches exhaustively over it.
type Type int

const (
	Weather Type = iota
	Calendar
	Timer
	DeviceControl
)

// String returns the task type name.
func (t Type) String() string {
	switch t {
	case Weather:
		return "weather"
	case Calendar:
		return "calendar"
	case Timer:
		return "timer"
	case DeviceControl:
		return "device_control"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// ParseType converts a task type name to a Type.
func ParseType(s string) (Type, error) {
	switch s {
	case "weather":
		return Weather, nil
	case "calendar":
		return Calendar, nil
	case "timer":
		return Timer, nil
	case "device_control":
		return DeviceControl, nil
	default:
		return 0, fmt.Errorf("unknown task type: %q", s)
	}
}

// Types returns all task types in declaration order.
func Types() []Type {
	return []Type{Weather, Calendar, Timer, DeviceControl}
}

// Connectivity describes a task's network requirement.
type Connectivity int

const (
	// Offline tasks never touch the network.
	Offline Connectivity = iota
	// Online tasks require network access and fail fast without it.
	Online
	// Hybrid tasks prefer the network but degrade to cached or local
	// results when it is unavailable.
	Hybrid
)

// String returns the connectivity name.
func (c Connectivity) String() string {
	switch c {
	case Offline:
		return "offline"
	case Online:
		return "online"
	case Hybrid:
		return "hybrid"
	default:
		return fmt.Sprintf("unknown(%d)", int(c))
	}
}

// Task is a unit of work: a type, an opaque payload, and a connectivity
// requirement. Priority and timeouts derive from the type, never from
// per-instance state.
type Task struct {
	Type         Type
	Payload      map[string]any
	Connectivity Connectivity
}

// New creates a Task with the connectivity requirement fixed by its type.
func New(t Type, payload map[string]any) Task {
	return Task{
		Type:         t,
		Payload:      payload,
		Connectivity: connectivityFor(t),
	}
}

// connectivityFor maps a task type to its network requirement.
func connectivityFor(t Type) Connectivity {
	switch t {
	case Weather, Calendar:
		return Online
	case Timer:
		return Offline
	case DeviceControl:
		return Hybrid
	default:
		return Offline
	}
}

// Priority fixes a task's retry budget, backoff base, and base timeout.
type Priority int

const (
	Low Priority = iota + 1
	Medium
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
	case Medium:
		return "medium"
	case Low:
		return "low"
	default:
		return fmt.Sprintf("unknown(%d)", int(p))
	}
}

// Priorities returns all priorities from highest to lowest.
func Priorities() []Priority {
	return []Priority{Critical, High, Medium, Low}
}

// Profile holds the fixed execution parameters of a priority level.
type Profile struct {
	// MaxRetries is the total attempt budget, including the first attempt.
	MaxRetries int
	// BaseDelay seeds the exponential backoff between attempts.
	BaseDelay time.Duration
	// BaseTimeout is the starting per-attempt timeout. The scheduler's
	// adaptive timeout never decays below it.
	BaseTimeout time.Duration
}

// Profile returns the execution parameters for the priority.
func (p Priority) Profile() Profile {
	switch p {
	case Critical:
		return Profile{MaxRetries: 5, BaseDelay: 100 * time.Millisecond, BaseTimeout: 2 * time.Second}
	case High:
		return Profile{MaxRetries: 3, BaseDelay: 500 * time.Millisecond, BaseTimeout: 5 * time.Second}
	case Medium:
		return Profile{MaxRetries: 2, BaseDelay: 1 * time.Second, BaseTimeout: 10 * time.Second}
	default:
		return Profile{MaxRetries: 1, BaseDelay: 2 * time.Second, BaseTimeout: 30 * time.Second}
	}
}

// PriorityFor maps a task type to its scheduling priority. Timers fire at
// exact moments and run locally, so they get the tightest budget; remote
// calendar lookups tolerate the loosest.
func PriorityFor(t Type) Priority {
	switch t {
	case Timer:
		return Critical
	case DeviceControl:
		return High
	case Weather:
		return Medium
	case Calendar:
		return Low
	default:
		return Low
	}
}
