// Package intent resolves recognized speech into tasks. Resolution is
// keyword-driven: a correction table fixes common misrecognitions first,
// then keyword sets pick the task type and slot parsers fill the payload.
package intent

import (
	"strings"

	"github.com/omnivoice/omni/internal/logging"
	"github.com/omnivoice/omni/internal/task"
)

// correction maps a frequently misrecognized phrase to its intended one.
type correction struct {
	wrong   string
	correct string
}

// corrections are applied only when the text already contains a keyword
// of the matching context, so "four cast" in unrelated speech is left
// alone.
var contextCorrections = map[string][]correction{
	"weather": {
		{"our lee", "hourly"},
		{"our leave", "hourly"},
		{"hour lee", "hourly"},
		{"early", "hourly"},
		{"whether", "weather"},
		{"four cast", "forecast"},
		{"ford cast", "forecast"},
		{"temper sure", "temperature"},
		{"temper chair", "temperature"},
		{"next to", "next two"},
		{"tree", "three"},
		{"for days", "four days"},
		{"degree", "degrees"},
	},
	"timer": {
		{"mini its", "minutes"},
		{"mini tes", "minutes"},
	},
	"calendar": {
		{"a band", "event"},
		{"a vent", "event"},
		{"of and", "event"},
		{"oh but the bait", "update"},
		{"the elite", "delete"},
		{"the lead", "delete"},
	},
}

// contextKeywords gate the corrections and drive task type detection.
var contextKeywords = map[string][]string{
	"weather": {
		"weather", "forecast", "temperature", "climate", "hourly",
		"sunny", "rain", "cloudy", "precipitation", "humidity",
		"degrees", "celsius", "tonight", "conditions",
	},
	"timer": {
		"timer", "alarm", "remind", "countdown",
	},
	"calendar": {
		"calendar", "event", "schedule", "meeting", "appointment",
		"reschedule", "agenda",
	},
	"device": {
		"light", "lights", "lamp", "switch", "plug", "thermostat",
		"turn on", "turn off", "dim", "brighten",
	},
}

// cancelWords end an interaction outright.
var cancelWords = []string{"cancel", "stop", "never mind", "nevermind", "forget it"}

// Resolution is the outcome of resolving a piece of recognized text.
type Resolution struct {
	// Task is the resolved task. Valid only when Known is true.
	Task task.Task
	// Known reports whether the text matched any task type.
	Known bool
	// Canceled reports that the user asked to abort; no task is produced.
	Canceled bool
}

// Resolver turns recognized text into tasks.
type Resolver struct {
	logger *logging.Logger
}

// NewResolver creates a Resolver.
func NewResolver(logger *logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Resolver{logger: logger.WithComponent("intent")}
}

// Normalize lowercases the text and applies context-gated misrecognition
// corrections.
func (r *Resolver) Normalize(text string) string {
	lower := strings.ToLower(strings.TrimSpace(text))

	for context, keywords := range contextKeywords {
		if !containsAny(lower, keywords) {
			continue
		}
		for _, c := range contextCorrections[context] {
			if strings.Contains(lower, c.wrong) {
				r.logger.Debug("correcting misrecognition",
					"context", context, "wrong", c.wrong, "correct", c.correct)
				lower = strings.ReplaceAll(lower, c.wrong, c.correct)
			}
		}
	}

	return lower
}

// Resolve normalizes the text and maps it to a task. Detection order
// matters: cancel words win outright, and timers are checked before
// calendar so "remind me in five minutes" does not read as an event.
func (r *Resolver) Resolve(text string) Resolution {
	normalized := r.Normalize(text)
	if normalized == "" {
		return Resolution{}
	}

	if containsAny(normalized, cancelWords) {
		return Resolution{Canceled: true}
	}

	switch {
	case containsAny(normalized, contextKeywords["timer"]):
		payload := map[string]any{"query": normalized}
		if d, ok := ParseTimerDuration(normalized); ok {
			payload["duration_seconds"] = int64(d.Seconds())
		}
		return Resolution{Task: task.New(task.Timer, payload), Known: true}

	case containsAny(normalized, contextKeywords["device"]):
		payload := map[string]any{"query": normalized}
		if action, ok := deviceAction(normalized); ok {
			payload["action"] = action
		}
		return Resolution{Task: task.New(task.DeviceControl, payload), Known: true}

	case containsAny(normalized, contextKeywords["weather"]):
		payload := map[string]any{"query": normalized}
		if loc := ExtractLocation(normalized); loc != "" {
			payload["location"] = loc
		}
		return Resolution{Task: task.New(task.Weather, payload), Known: true}

	case containsAny(normalized, contextKeywords["calendar"]):
		return Resolution{Task: task.New(task.Calendar, map[string]any{"query": normalized}), Known: true}
	}

	return Resolution{}
}

// CacheKey builds the dispatch cache key for a piece of recognized text:
// normalized, stripped of punctuation, single-spaced, prefixed with the
// resolved task type.
func (r *Resolver) CacheKey(t task.Type, text string) string {
	var sb strings.Builder
	for _, c := range r.Normalize(text) {
		if c == ' ' || c == '-' ||
			(c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			sb.WriteRune(c)
		}
	}
	return t.String() + ":" + strings.Join(strings.Fields(sb.String()), " ")
}

// containsAny reports whether text contains any of the given phrases.
func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// deviceAction extracts the on/off/dim action from a device command.
func deviceAction(text string) (string, bool) {
	switch {
	case strings.Contains(text, "turn on"), strings.Contains(text, "switch on"):
		return "on", true
	case strings.Contains(text, "turn off"), strings.Contains(text, "switch off"):
		return "off", true
	case strings.Contains(text, "dim"):
		return "dim", true
	case strings.Contains(text, "brighten"):
		return "brighten", true
	default:
		return "", false
	}
}
