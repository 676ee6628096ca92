package task

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/omnivoice/omni/internal/errors"
	"github.com/omnivoice/omni/internal/event"
)

// noSleep replaces real backoff waits in tests.
func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func newTestScheduler() *Scheduler {
	s := NewScheduler(SchedulerOptions{})
	s.sleep = noSleep
	return s
}

func TestTypeString(t *testing.T) {
	tests := []struct {
		typ  Type
		want string
	}{
		{Weather, "weather"},
		{Calendar, "calendar"},
		{Timer, "timer"},
		{DeviceControl, "device_control"},
	}
	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("Type(%d).String() = %q, want %q", tt.typ, got, tt.want)
		}
		parsed, err := ParseType(tt.want)
		if err != nil {
			t.Errorf("ParseType(%q) failed: %v", tt.want, err)
		}
		if parsed != tt.typ {
			t.Errorf("ParseType(%q) = %v, want %v", tt.want, parsed, tt.typ)
		}
	}

	if _, err := ParseType("nonsense"); err == nil {
		t.Error("ParseType accepted an unknown name")
	}
}

func TestPriorityProfiles(t *testing.T) {
	tests := []struct {
		pri         Priority
		retries     int
		baseDelay   time.Duration
		baseTimeout time.Duration
	}{
		{Critical, 5, 100 * time.Millisecond, 2 * time.Second},
		{High, 3, 500 * time.Millisecond, 5 * time.Second},
		{Medium, 2, 1 * time.Second, 10 * time.Second},
		{Low, 1, 2 * time.Second, 30 * time.Second},
	}
	for _, tt := range tests {
		p := tt.pri.Profile()
		if p.MaxRetries != tt.retries {
			t.Errorf("%v MaxRetries = %d, want %d", tt.pri, p.MaxRetries, tt.retries)
		}
		if p.BaseDelay != tt.baseDelay {
			t.Errorf("%v BaseDelay = %v, want %v", tt.pri, p.BaseDelay, tt.baseDelay)
		}
		if p.BaseTimeout != tt.baseTimeout {
			t.Errorf("%v BaseTimeout = %v, want %v", tt.pri, p.BaseTimeout, tt.baseTimeout)
		}
	}
}

func TestRunSucceedsFirstAttempt(t *testing.T) {
	s := newTestScheduler()

	result, err := s.Run(context.Background(), New(Weather, nil), Medium,
		func(ctx context.Context, tk Task) (any, error) {
			return "sunny", nil
		})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result != "sunny" {
		t.Errorf("Run = %v, want sunny", result)
	}

	stats := s.Metrics().Stats(Weather)
	if stats.Successes != 1 || stats.Attempts != 1 {
		t.Errorf("stats = %+v, want 1 success in 1 attempt", stats)
	}
}

func TestRunRetriesThenSucceeds(t *testing.T) {
	s := newTestScheduler()

	// Critical allows 5 attempts; fail the first 4.
	calls := 0
	result, err := s.Run(context.Background(), New(Timer, nil), Critical,
		func(ctx context.Context, tk Task) (any, error) {
			calls++
			if calls < 5 {
				return nil, fmt.Errorf("transient failure %d", calls)
			}
			return "done", nil
		})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result != "done" {
		t.Errorf("Run = %v, want done", result)
	}
	if calls != 5 {
		t.Errorf("body called %d times, want 5", calls)
	}
}

func TestRunExhaustsRetries(t *testing.T) {
	s := newTestScheduler()

	calls := 0
	_, err := s.Run(context.Background(), New(Calendar, nil), Low,
		func(ctx context.Context, tk Task) (any, error) {
			calls++
			return nil, fmt.Errorf("always failing")
		})
	if err == nil {
		t.Fatal("Run succeeded, want ProcessingError")
	}

	var procErr *errors.ProcessingError
	if !errors.As(err, &procErr) {
		t.Fatalf("Run error = %T, want *ProcessingError", err)
	}
	if procErr.TaskType != "calendar" {
		t.Errorf("TaskType = %q, want calendar", procErr.TaskType)
	}
	if procErr.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1 (Low allows a single attempt)", procErr.Attempts)
	}
	if calls != 1 {
		t.Errorf("body called %d times, want 1", calls)
	}

	stats := s.Metrics().Stats(Calendar)
	if stats.Failures != 1 {
		t.Errorf("Failures = %d, want 1", stats.Failures)
	}
}

func TestAdaptiveTimeoutGrowth(t *testing.T) {
	s := NewScheduler(SchedulerOptions{})
	s.sleep = noSleep

	base := High.Profile().BaseTimeout
	if got := s.Timeout(High); got != base {
		t.Fatalf("initial Timeout = %v, want %v", got, base)
	}

	grown := s.growTimeout(High)
	if want := time.Duration(float64(base) * 1.5); grown != want {
		t.Errorf("growTimeout = %v, want %v", grown, want)
	}
	if s.Timeout(High) != grown {
		t.Error("grown timeout not persisted")
	}
}

func TestAdaptiveTimeoutGrowthCapped(t *testing.T) {
	s := NewScheduler(SchedulerOptions{MaxTimeoutGrowth: 30 * time.Second})
	s.sleep = noSleep

	// At 90s, ×1.5 would add 45s; the cap limits it to +30s.
	s.mu.Lock()
	s.timeouts[Low] = 90 * time.Second
	s.mu.Unlock()

	grown := s.growTimeout(Low)
	if want := 120 * time.Second; grown != want {
		t.Errorf("growTimeout = %v, want %v (capped)", grown, want)
	}
}

func TestAdaptiveTimeoutDecay(t *testing.T) {
	s := NewScheduler(SchedulerOptions{})
	s.sleep = noSleep

	s.mu.Lock()
	s.timeouts[Medium] = 20 * time.Second
	s.mu.Unlock()

	s.decayTimeout(Medium)
	if got := s.Timeout(Medium); got != 18*time.Second {
		t.Errorf("Timeout = %v after decay, want 18s", got)
	}

	// Decay never drops below the base timeout.
	s.mu.Lock()
	s.timeouts[Medium] = 10500 * time.Millisecond
	s.mu.Unlock()
	s.decayTimeout(Medium)
	if got := s.Timeout(Medium); got != Medium.Profile().BaseTimeout {
		t.Errorf("Timeout = %v, want base %v", got, Medium.Profile().BaseTimeout)
	}

	// At the base, decay is a no-op.
	s.decayTimeout(Medium)
	if got := s.Timeout(Medium); got != Medium.Profile().BaseTimeout {
		t.Errorf("Timeout = %v after no-op decay, want base", got)
	}
}

func TestTimeoutGrowsAcrossRun(t *testing.T) {
	s := NewScheduler(SchedulerOptions{})
	s.sleep = noSleep

	// Shrink the stored timeout so the attempt times out quickly.
	s.mu.Lock()
	s.timeouts[Low] = 20 * time.Millisecond
	s.mu.Unlock()

	_, err := s.Run(context.Background(), New(Calendar, nil), Low,
		func(ctx context.Context, tk Task) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})
	if err == nil {
		t.Fatal("Run succeeded, want timeout failure")
	}

	if got := s.Timeout(Low); got != 30*time.Millisecond {
		t.Errorf("Timeout = %v after one timeout, want 30ms", got)
	}

	stats := s.Metrics().Stats(Calendar)
	if stats.Timeouts != 1 {
		t.Errorf("Timeouts = %d, want 1", stats.Timeouts)
	}
}

func TestTimeoutEventsPublished(t *testing.T) {
	bus := event.NewBus()
	var timeouts []event.TaskTimeoutEvent
	var failures []event.TaskFailedEvent
	bus.Subscribe("task.timeout", func(e event.Event) {
		timeouts = append(timeouts, e.(event.TaskTimeoutEvent))
	})
	bus.Subscribe("task.failed", func(e event.Event) {
		failures = append(failures, e.(event.TaskFailedEvent))
	})

	s := NewScheduler(SchedulerOptions{Bus: bus})
	s.sleep = noSleep
	s.mu.Lock()
	s.timeouts[Low] = 10 * time.Millisecond
	s.mu.Unlock()

	_, err := s.Run(context.Background(), New(Weather, nil), Low,
		func(ctx context.Context, tk Task) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})
	if err == nil {
		t.Fatal("Run succeeded, want failure")
	}

	if len(timeouts) != 1 {
		t.Errorf("task.timeout events = %d, want 1", len(timeouts))
	}
	if len(failures) != 1 {
		t.Errorf("task.failed events = %d, want 1", len(failures))
	}
}

func TestRunCanceledContext(t *testing.T) {
	s := newTestScheduler()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Run(ctx, New(Weather, nil), Medium,
		func(ctx context.Context, tk Task) (any, error) {
			t.Error("body ran under a canceled context")
			return nil, nil
		})
	if err == nil {
		t.Fatal("Run succeeded under a canceled context")
	}
	if !errors.Is(err, errors.ErrCanceled) {
		t.Errorf("Run error = %v, want ErrCanceled", err)
	}
}

func TestBackoffDelays(t *testing.T) {
	s := NewScheduler(SchedulerOptions{})

	var delays []time.Duration
	s.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	_, err := s.Run(context.Background(), New(Timer, nil), Critical,
		func(ctx context.Context, tk Task) (any, error) {
			return nil, fmt.Errorf("always failing")
		})
	if err == nil {
		t.Fatal("Run succeeded, want failure")
	}

	// Critical: 5 attempts, 4 backoffs of baseDelay * 2^n.
	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
	}
	if len(delays) != len(want) {
		t.Fatalf("backoff count = %d, want %d", len(delays), len(want))
	}
	for i, d := range delays {
		if d != want[i] {
			t.Errorf("backoff[%d] = %v, want %v", i, d, want[i])
		}
	}
}

func TestMetricsRates(t *testing.T) {
	m := NewMetrics()
	m.RecordSuccess(Weather, 100*time.Millisecond)
	m.RecordSuccess(Weather, 300*time.Millisecond)
	m.RecordError(Weather)
	m.RecordTimeout(Weather)

	stats := m.Stats(Weather)
	if got := stats.AvgDuration(); got != 200*time.Millisecond {
		t.Errorf("AvgDuration = %v, want 200ms", got)
	}
	if got := stats.ErrorRate(); got != 0.25 {
		t.Errorf("ErrorRate = %v, want 0.25", got)
	}
	if got := stats.TimeoutRate(); got != 0.25 {
		t.Errorf("TimeoutRate = %v, want 0.25", got)
	}

	if empty := m.Stats(Timer); empty.Attempts != 0 {
		t.Errorf("Stats for untouched type = %+v, want zero", empty)
	}
}
