// Package internal contains integration tests that verify the assembled
// packages work together: the console collaborators feeding the listening
// cycle, dispatch through the cache and scheduler, and spoken feedback.
package internal

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/omnivoice/omni/internal/config"
	"github.com/omnivoice/omni/internal/console"
	"github.com/omnivoice/omni/internal/event"
	"github.com/omnivoice/omni/internal/processor"
	"github.com/omnivoice/omni/internal/task"
)

// lockedBuilder serializes writes so the console can print while the test
// polls the output.
type lockedBuilder struct {
	mu sync.Mutex
	sb strings.Builder
}

func (b *lockedBuilder) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.Write(p)
}

func (b *lockedBuilder) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.String()
}

// newConsoleProcessor wires a processor to console collaborators, the way
// the run command does, with loop timings tuned down for tests.
func newConsoleProcessor(t *testing.T, out *lockedBuilder, bus *event.Bus) (*processor.Processor, *console.IO) {
	t.Helper()

	cfg := config.Default()
	cfg.Listening.SettleDelayMs = 1
	cfg.Listening.PollIntervalMs = 2
	cfg.Feedback.DelayBetweenMessagesMs = 5

	io := console.New(strings.NewReader(""), out, console.Options{})
	proc, err := processor.New(processor.Options{
		Config:      cfg,
		Recognizer:  io,
		Synthesizer: io,
		Detector:    io,
		Bus:         bus,
		Executors: map[task.Type]task.Runner{
			task.Weather: func(ctx context.Context, tk task.Task) (any, error) {
				location, _ := tk.Payload["location"].(string)
				if location == "" {
					location = "your area"
				}
				return processor.Result{Speech: "It is sunny in " + location + "."}, nil
			},
		},
	})
	if err != nil {
		t.Fatalf("processor.New failed: %v", err)
	}
	return proc, io
}

func waitForOutput(t *testing.T, out *lockedBuilder, substr string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(out.String(), substr) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("output never contained %q, got:\n%s", substr, out.String())
}

func TestTypedWakePhraseToSpokenForecast(t *testing.T) {
	out := &lockedBuilder{}
	bus := event.NewBus()

	var mu sync.Mutex
	var eventTypes []string
	bus.SubscribeAll(func(e event.Event) {
		mu.Lock()
		eventTypes = append(eventTypes, e.EventType())
		mu.Unlock()
	})

	proc, io := newConsoleProcessor(t, out, bus)
	if err := proc.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer proc.Stop(context.Background())

	// One typed line carries the wake phrase and the utterance.
	io.Feed("hey omni, what's the weather in london")

	waitForOutput(t, out, "sunny in london")

	// The cycle should have produced a full event trail.
	mu.Lock()
	defer mu.Unlock()
	seen := map[string]bool{}
	for _, typ := range eventTypes {
		seen[typ] = true
	}
	for _, want := range []string{
		"listening.state_changed",
		"listening.speech_recognized",
		"task.completed",
		"feedback.spoken",
	} {
		if !seen[want] {
			t.Errorf("event %q never published; saw %v", want, eventTypes)
		}
	}
}

func TestRepeatQueryServedFromCache(t *testing.T) {
	out := &lockedBuilder{}
	proc, io := newConsoleProcessor(t, out, event.NewBus())
	if err := proc.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer proc.Stop(context.Background())

	io.Feed("hey omni, weather in paris")
	waitForOutput(t, out, "sunny in paris")

	// Same resolved task and raw text, so this round trips the cache
	// instead of the executor.
	result, err := proc.Execute(context.Background(),
		task.New(task.Weather, map[string]any{"location": "paris"}),
		"weather in paris")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !result.Cached {
		t.Error("repeat query was not served from cache")
	}
}
