package processor

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/omnivoice/omni/internal/config"
	"github.com/omnivoice/omni/internal/errors"
	"github.com/omnivoice/omni/internal/task"
	"github.com/omnivoice/omni/internal/testutil"
)

// fastConfig returns defaults tuned down so loops settle in milliseconds.
func fastConfig() *config.Config {
	cfg := config.Default()
	cfg.Listening.SettleDelayMs = 1
	cfg.Listening.PollIntervalMs = 2
	cfg.Feedback.DelayBetweenMessagesMs = 5
	return cfg
}

type collaborators struct {
	rec   *testutil.FakeRecognizer
	det   *testutil.FakeDetector
	synth *testutil.FakeSynthesizer
}

func newProcessor(t *testing.T, cfg *config.Config, executors map[task.Type]task.Runner) (*Processor, *collaborators) {
	t.Helper()

	co := &collaborators{
		rec:   testutil.NewFakeRecognizer(),
		det:   testutil.NewFakeDetector(),
		synth: testutil.NewFakeSynthesizer(),
	}
	p, err := New(Options{
		Config:      cfg,
		Recognizer:  co.rec,
		Synthesizer: co.synth,
		Detector:    co.det,
		Executors:   executors,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return p, co
}

func waitForSpeech(t *testing.T, co *collaborators, substr string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, text := range co.synth.Spoken() {
			if strings.Contains(text, substr) {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("nothing spoken containing %q, got %v", substr, co.synth.Spoken())
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Options{Config: config.Default()})
	if err == nil {
		t.Fatal("New succeeded without collaborators")
	}
	var initErr *errors.InitializationError
	if !errors.As(err, &initErr) {
		t.Errorf("error = %T, want *InitializationError", err)
	}
}

func TestNewRejectsUnknownBatchType(t *testing.T) {
	cfg := config.Default()
	cfg.Batch.Types = []string{"weather", "music"}

	_, err := New(Options{
		Config:      cfg,
		Recognizer:  testutil.NewFakeRecognizer(),
		Synthesizer: testutil.NewFakeSynthesizer(),
		Detector:    testutil.NewFakeDetector(),
	})
	if err == nil {
		t.Fatal("New accepted an unknown batch type")
	}
	var valErr *errors.ValidationError
	if !errors.As(err, &valErr) {
		t.Errorf("error = %T, want *ValidationError", err)
	}
}

func TestExecuteCachesWeatherResults(t *testing.T) {
	var calls atomic.Int64
	p, _ := newProcessor(t, fastConfig(), map[task.Type]task.Runner{
		task.Weather: func(ctx context.Context, tk task.Task) (any, error) {
			calls.Add(1)
			return Result{Speech: "It is sunny."}, nil
		},
	})

	tk := task.New(task.Weather, map[string]any{"location": "london"})

	first, err := p.Execute(context.Background(), tk, "weather in london")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if first.Cached {
		t.Error("first result marked cached")
	}

	second, err := p.Execute(context.Background(), tk, "weather in london")
	if err != nil {
		t.Fatalf("second Execute failed: %v", err)
	}
	if !second.Cached {
		t.Error("second result not served from cache")
	}
	if second.Speech != "It is sunny." {
		t.Errorf("cached Speech = %q, want the original", second.Speech)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("executor ran %d times, want 1", got)
	}
}

func TestExecuteNeverCachesSideEffectTasks(t *testing.T) {
	var calls atomic.Int64
	p, _ := newProcessor(t, fastConfig(), map[task.Type]task.Runner{
		task.Timer: func(ctx context.Context, tk task.Task) (any, error) {
			calls.Add(1)
			return Result{Speech: "Timer set."}, nil
		},
	})

	tk := task.New(task.Timer, map[string]any{"duration_seconds": int64(60)})
	for i := 0; i < 2; i++ {
		result, err := p.Execute(context.Background(), tk, "set a timer for one minute")
		if err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		if result.Cached {
			t.Error("timer result served from cache")
		}
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("executor ran %d times, want 2 (one per request)", got)
	}
}

func TestExecuteOfflineGating(t *testing.T) {
	ran := map[task.Type]bool{}
	executors := map[task.Type]task.Runner{}
	for _, typ := range task.Types() {
		typ := typ
		executors[typ] = func(ctx context.Context, tk task.Task) (any, error) {
			ran[typ] = true
			return Result{Speech: "done"}, nil
		}
	}

	cfg := fastConfig()
	cfg.Batch.Types = nil // isolate the connectivity check from batching
	p, _ := newProcessor(t, cfg, executors)
	p.SetOffline(true)

	// Online tasks are refused outright.
	_, err := p.Execute(context.Background(), task.New(task.Weather, nil), "")
	if !errors.Is(err, errors.ErrOffline) {
		t.Errorf("weather error = %v, want ErrOffline", err)
	}
	_, err = p.Execute(context.Background(), task.New(task.Calendar, nil), "")
	if !errors.Is(err, errors.ErrOffline) {
		t.Errorf("calendar error = %v, want ErrOffline", err)
	}

	// Offline and hybrid tasks still run.
	if _, err := p.Execute(context.Background(), task.New(task.Timer, nil), ""); err != nil {
		t.Errorf("timer failed offline: %v", err)
	}
	if _, err := p.Execute(context.Background(), task.New(task.DeviceControl, nil), ""); err != nil {
		t.Errorf("device control failed offline: %v", err)
	}
	if !ran[task.Timer] || !ran[task.DeviceControl] {
		t.Error("offline-capable executors did not run")
	}
	if ran[task.Weather] || ran[task.Calendar] {
		t.Error("online executors ran in offline mode")
	}
}

func TestExecuteWithoutExecutor(t *testing.T) {
	cfg := fastConfig()
	cfg.Batch.Types = nil
	p, _ := newProcessor(t, cfg, nil)

	_, err := p.Execute(context.Background(), task.New(task.Weather, nil), "")
	if err == nil {
		t.Fatal("Execute succeeded without an executor")
	}
	var procErr *errors.ProcessingError
	if !errors.As(err, &procErr) {
		t.Fatalf("error = %T, want *ProcessingError", err)
	}
	if procErr.TaskType != "weather" {
		t.Errorf("TaskType = %q, want weather", procErr.TaskType)
	}
}

func TestFullVoiceCycle(t *testing.T) {
	p, co := newProcessor(t, fastConfig(), map[task.Type]task.Runner{
		task.Weather: func(ctx context.Context, tk task.Task) (any, error) {
			return Result{Speech: "It is sunny in london."}, nil
		},
	})

	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Stop(context.Background())

	waitForSpeech(t, co, "Omni is ready.")

	co.rec.QueueFinal("what's the weather in london")
	co.det.TriggerWake()

	waitForSpeech(t, co, "sunny in london")
}

func TestUnknownCommandGetsGuidance(t *testing.T) {
	p, co := newProcessor(t, fastConfig(), nil)

	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Stop(context.Background())

	co.rec.QueueFinal("tell me a joke")
	co.det.TriggerWake()

	waitForSpeech(t, co, "didn't get that")
}

func TestCancelCommandAcknowledged(t *testing.T) {
	p, co := newProcessor(t, fastConfig(), nil)

	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Stop(context.Background())

	co.rec.QueueFinal("never mind")
	co.det.TriggerWake()

	waitForSpeech(t, co, "Okay, never mind.")
}

func TestOfflineCommandSpokenStatus(t *testing.T) {
	p, co := newProcessor(t, fastConfig(), nil)
	p.SetOffline(true)

	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Stop(context.Background())

	co.rec.QueueFinal("what's the weather in london")
	co.det.TriggerWake()

	waitForSpeech(t, co, "while offline")
}

func TestStopSaysGoodbyeAndRefusesWork(t *testing.T) {
	p, co := newProcessor(t, fastConfig(), nil)

	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	p.Stop(context.Background())

	waitForSpeech(t, co, "Goodbye.")

	if _, err := p.Batch().Submit(task.Weather, nil); !errors.Is(err, errors.ErrShuttingDown) {
		t.Errorf("Submit after Stop = %v, want ErrShuttingDown", err)
	}

	// A second Stop is a no-op.
	p.Stop(context.Background())
}

func TestStartFailsWhenSynthesizerBroken(t *testing.T) {
	co := &collaborators{
		rec:   testutil.NewFakeRecognizer(),
		det:   testutil.NewFakeDetector(),
		synth: testutil.NewFakeSynthesizer(),
	}
	co.synth.InitErr = errors.New("no audio output")

	p, err := New(Options{
		Config:      fastConfig(),
		Recognizer:  co.rec,
		Synthesizer: co.synth,
		Detector:    co.det,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := p.Start(); err == nil {
		t.Error("Start succeeded with a broken synthesizer")
	}
}
