package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/omnivoice/omni/internal/feedback"
	"github.com/omnivoice/omni/internal/processor"
	"github.com/omnivoice/omni/internal/task"
)

// registerExecutors installs the built-in task bodies. They are local
// simulations: provider integrations plug in here by replacing entries.
func registerExecutors(
	executors map[task.Type]task.Runner,
	batchHandlers map[task.Type]task.BatchHandler,
	proc *processor.Processor,
) {
	executors[task.Weather] = weatherExecutor
	executors[task.Calendar] = calendarExecutor
	executors[task.Timer] = timerExecutor(proc)
	executors[task.DeviceControl] = deviceExecutor

	batchHandlers[task.Weather] = task.BatchHandler{
		Batch:  weatherBatch,
		Single: weatherExecutor,
	}
	batchHandlers[task.Calendar] = task.BatchHandler{
		Batch:  calendarBatch,
		Single: calendarExecutor,
	}
}

// weatherExecutor answers a single weather query.
func weatherExecutor(ctx context.Context, tk task.Task) (any, error) {
	return weatherResult(tk.Payload), nil
}

// weatherBatch answers all queries of one window in a single pass.
func weatherBatch(ctx context.Context, payloads []map[string]any) ([]any, error) {
	results := make([]any, len(payloads))
	for i, payload := range payloads {
		results[i] = weatherResult(payload)
	}
	return results, nil
}

func weatherResult(payload map[string]any) processor.Result {
	speech := "It is 18 degrees and partly cloudy."
	if loc, ok := payload["location"].(string); ok && loc != "" {
		speech = fmt.Sprintf("In %s it is 18 degrees and partly cloudy.", loc)
	}
	return processor.Result{
		Speech: speech,
		Data:   map[string]any{"temperature_c": 18, "conditions": "partly cloudy"},
	}
}

// calendarExecutor answers a single calendar query.
func calendarExecutor(ctx context.Context, tk task.Task) (any, error) {
	return calendarResult(), nil
}

// calendarBatch answers all calendar queries of one window.
func calendarBatch(ctx context.Context, payloads []map[string]any) ([]any, error) {
	results := make([]any, len(payloads))
	for i := range payloads {
		results[i] = calendarResult()
	}
	return results, nil
}

func calendarResult() processor.Result {
	return processor.Result{
		Speech: "You have no upcoming events today.",
		Data:   map[string]any{"events": []any{}},
	}
}

// timerExecutor sets a timer that announces its completion through the
// feedback queue.
func timerExecutor(proc *processor.Processor) task.Runner {
	return func(ctx context.Context, tk task.Task) (any, error) {
		seconds, ok := tk.Payload["duration_seconds"].(int64)
		if !ok || seconds <= 0 {
			return nil, fmt.Errorf("no duration in timer request")
		}

		d := time.Duration(seconds) * time.Second
		time.AfterFunc(d, func() {
			proc.Feedback().Enqueue(feedback.Message{
				Text:          "Your timer is done.",
				Category:      feedback.Task,
				Priority:      feedback.Critical,
				Interruptible: false,
			})
		})

		return processor.Result{
			Speech: fmt.Sprintf("Timer set for %s.", spokenDuration(d)),
			Data:   map[string]any{"duration_seconds": seconds},
		}, nil
	}
}

// deviceExecutor acknowledges a device command.
func deviceExecutor(ctx context.Context, tk task.Task) (any, error) {
	action, _ := tk.Payload["action"].(string)
	speech := "Okay, done."
	switch action {
	case "on":
		speech = "Okay, turned on."
	case "off":
		speech = "Okay, turned off."
	case "dim":
		speech = "Okay, dimming."
	case "brighten":
		speech = "Okay, brightening."
	}
	return processor.Result{
		Speech: speech,
		Data:   map[string]any{"action": action},
	}, nil
}

// spokenDuration renders a duration the way it would be said.
func spokenDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		n := int(d / time.Hour)
		if n == 1 {
			return "one hour"
		}
		return fmt.Sprintf("%d hours", n)
	case d >= time.Minute && d%time.Minute == 0:
		n := int(d / time.Minute)
		if n == 1 {
			return "one minute"
		}
		return fmt.Sprintf("%d minutes", n)
	default:
		return fmt.Sprintf("%d seconds", int(d/time.Second))
	}
}
