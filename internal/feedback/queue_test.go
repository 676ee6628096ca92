package feedback

import (
	"testing"
	"time"

	"github.com/omnivoice/omni/internal/event"
	"github.com/omnivoice/omni/internal/testutil"
)

func defaultSettings() Settings {
	return Settings{Enabled: true, Cooldown: 10 * time.Millisecond}
}

func waitForSpoken(t *testing.T, synth *testutil.FakeSynthesizer, n int) []string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if spoken := synth.Spoken(); len(spoken) >= n {
			return spoken
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d spoken messages, got %v", n, synth.Spoken())
	return nil
}

func TestEnqueueAndSpeak(t *testing.T) {
	synth := testutil.NewFakeSynthesizer()
	q := NewQueue(QueueOptions{Settings: defaultSettings(), Synth: synth})
	q.Start()
	defer q.Stop()

	q.Enqueue(Message{Text: "hello", Category: System, Priority: Normal})

	spoken := waitForSpoken(t, synth, 1)
	if spoken[0] != "hello" {
		t.Errorf("spoken = %q, want hello", spoken[0])
	}
}

func TestDisabledDropsEverything(t *testing.T) {
	synth := testutil.NewFakeSynthesizer()
	bus := event.NewBus()
	dropped := make(chan event.FeedbackDroppedEvent, 1)
	bus.Subscribe("feedback.dropped", func(e event.Event) {
		dropped <- e.(event.FeedbackDroppedEvent)
	})

	q := NewQueue(QueueOptions{
		Settings: Settings{Enabled: false},
		Synth:    synth,
		Bus:      bus,
	})
	q.Start()
	defer q.Stop()

	q.Enqueue(Message{Text: "ignored", Priority: Critical})

	select {
	case ev := <-dropped:
		if ev.Reason != "disabled" {
			t.Errorf("Reason = %q, want disabled", ev.Reason)
		}
	case <-time.After(time.Second):
		t.Fatal("no feedback.dropped event")
	}
	if len(synth.Spoken()) != 0 {
		t.Error("disabled queue spoke a message")
	}
}

func TestSilentModeAllowsOnlyCritical(t *testing.T) {
	synth := testutil.NewFakeSynthesizer()
	q := NewQueue(QueueOptions{
		Settings: Settings{Enabled: true, SilentMode: true},
		Synth:    synth,
	})
	q.Start()
	defer q.Stop()

	q.Enqueue(Message{Text: "normal", Priority: Normal})
	q.Enqueue(Message{Text: "urgent", Priority: Critical})

	spoken := waitForSpoken(t, synth, 1)
	if len(spoken) != 1 || spoken[0] != "urgent" {
		t.Errorf("spoken = %v, want only the critical message", spoken)
	}
}

func TestPriorityOrdering(t *testing.T) {
	synth := testutil.NewFakeSynthesizer()
	// Long cooldown keeps messages queued while we enqueue more, but the
	// first message speaks immediately (nothing spoken yet).
	q := NewQueue(QueueOptions{
		Settings: Settings{Enabled: true, Cooldown: 40 * time.Millisecond},
		Synth:    synth,
	})

	q.Enqueue(Message{Text: "low", Priority: Low})
	q.Enqueue(Message{Text: "high", Priority: High})
	q.Enqueue(Message{Text: "normal", Priority: Normal})

	q.Start()
	defer q.Stop()

	spoken := waitForSpoken(t, synth, 3)
	want := []string{"high", "normal", "low"}
	for i, text := range want {
		if spoken[i] != text {
			t.Errorf("spoken[%d] = %q, want %q", i, spoken[i], text)
		}
	}
}

func TestCriticalBypassesCooldown(t *testing.T) {
	synth := testutil.NewFakeSynthesizer()
	q := NewQueue(QueueOptions{
		Settings: Settings{Enabled: true, Cooldown: 10 * time.Second},
		Synth:    synth,
	})
	q.Start()
	defer q.Stop()

	q.Enqueue(Message{Text: "first", Priority: Normal})
	waitForSpoken(t, synth, 1)

	// The cooldown would hold a Normal message for 10s; Critical skips it.
	q.Enqueue(Message{Text: "critical", Priority: Critical})

	spoken := waitForSpoken(t, synth, 2)
	if spoken[1] != "critical" {
		t.Errorf("spoken[1] = %q, want critical", spoken[1])
	}
}

func TestCriticalInterruptsSpeaking(t *testing.T) {
	synth := testutil.NewFakeSynthesizer()
	q := NewQueue(QueueOptions{Settings: defaultSettings(), Synth: synth})

	release := synth.BlockNext()
	defer release()

	q.Start()
	defer q.Stop()

	q.Enqueue(Message{Text: "long story", Priority: Normal, Interruptible: true})
	waitForSpoken(t, synth, 1)

	q.Enqueue(Message{Text: "alert", Priority: Critical})

	spoken := waitForSpoken(t, synth, 2)
	if spoken[1] != "alert" {
		t.Errorf("spoken[1] = %q, want alert", spoken[1])
	}
	if synth.Stops() == 0 {
		t.Error("speaking message was not stopped")
	}
}

func TestNonInterruptibleIsNotCutOff(t *testing.T) {
	synth := testutil.NewFakeSynthesizer()
	q := NewQueue(QueueOptions{Settings: defaultSettings(), Synth: synth})

	release := synth.BlockNext()

	q.Start()
	defer q.Stop()

	q.Enqueue(Message{Text: "important speech", Priority: Normal, Interruptible: false})
	waitForSpoken(t, synth, 1)

	q.Enqueue(Message{Text: "alert", Priority: Critical})
	if synth.Stops() != 0 {
		t.Error("non-interruptible message was stopped")
	}

	release()
	waitForSpoken(t, synth, 2)
}

func TestLowerPriorityDoesNotInterrupt(t *testing.T) {
	synth := testutil.NewFakeSynthesizer()
	q := NewQueue(QueueOptions{Settings: defaultSettings(), Synth: synth})

	release := synth.BlockNext()

	q.Start()
	defer q.Stop()

	q.Enqueue(Message{Text: "speaking", Priority: High, Interruptible: true})
	waitForSpoken(t, synth, 1)

	q.Enqueue(Message{Text: "whisper", Priority: Normal})
	if synth.Stops() != 0 {
		t.Error("a lower-priority message interrupted the speaker")
	}

	release()
}

func TestInterruptedFlagOnSpokenEvent(t *testing.T) {
	synth := testutil.NewFakeSynthesizer()
	bus := event.NewBus()
	spokenEvents := make(chan event.FeedbackSpokenEvent, 4)
	bus.Subscribe("feedback.spoken", func(e event.Event) {
		spokenEvents <- e.(event.FeedbackSpokenEvent)
	})

	q := NewQueue(QueueOptions{Settings: defaultSettings(), Synth: synth, Bus: bus})
	release := synth.BlockNext()
	defer release()

	q.Start()
	defer q.Stop()

	q.Enqueue(Message{Text: "cut off", Priority: Normal, Interruptible: true})
	waitForSpoken(t, synth, 1)
	q.Enqueue(Message{Text: "urgent", Priority: Critical})

	select {
	case ev := <-spokenEvents:
		if ev.Text != "cut off" {
			t.Fatalf("first spoken event = %q, want cut off", ev.Text)
		}
		if !ev.Interrupted {
			t.Error("Interrupted = false for a cut-off message")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no feedback.spoken event")
	}
}

func TestHapticFiresForUrgentMessages(t *testing.T) {
	synth := testutil.NewFakeSynthesizer()
	haptics := make(chan Message, 2)

	q := NewQueue(QueueOptions{
		Settings: Settings{Enabled: true, HapticEnabled: true},
		Synth:    synth,
		Haptic:   func(m Message) { haptics <- m },
	})
	q.Start()
	defer q.Stop()

	q.Enqueue(Message{Text: "urgent", Priority: Critical})
	waitForSpoken(t, synth, 1)

	select {
	case m := <-haptics:
		if m.Text != "urgent" {
			t.Errorf("haptic for %q, want urgent", m.Text)
		}
	case <-time.After(time.Second):
		t.Fatal("no haptic fired for a critical message")
	}

	q.Enqueue(Message{Text: "calm", Priority: Normal})
	waitForSpoken(t, synth, 2)
	select {
	case m := <-haptics:
		t.Errorf("haptic fired for %q priority %v", m.Text, m.Priority)
	default:
	}
}

func TestUpdateSettingsTakesEffect(t *testing.T) {
	synth := testutil.NewFakeSynthesizer()
	q := NewQueue(QueueOptions{Settings: defaultSettings(), Synth: synth})
	q.Start()
	defer q.Stop()

	q.UpdateSettings(Settings{Enabled: false})
	q.Enqueue(Message{Text: "dropped", Priority: Normal})

	time.Sleep(50 * time.Millisecond)
	if len(synth.Spoken()) != 0 {
		t.Error("message spoken after feedback was disabled")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	synth := testutil.NewFakeSynthesizer()
	q := NewQueue(QueueOptions{Settings: defaultSettings(), Synth: synth})
	q.Start()
	q.Stop()
	q.Stop()
}
