// Package testutil provides fake speech collaborators for tests.
package testutil

import (
	"sync"
)

// FakeSynthesizer records spoken text. Speak blocks only while Block is
// held open, so tests can model a long utterance.
type FakeSynthesizer struct {
	mu       sync.Mutex
	spoken   []string
	speaking bool
	stops    int
	block    chan struct{}

	// InitErr is returned from Initialize when set.
	InitErr error
	// SpeakErr is returned from Speak when set.
	SpeakErr error
}

// NewFakeSynthesizer creates an idle fake.
func NewFakeSynthesizer() *FakeSynthesizer {
	return &FakeSynthesizer{}
}

// BlockNext makes the next Speak call block until StopSpeaking or
// Release. Returns a release function.
func (f *FakeSynthesizer) BlockNext() func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.block = make(chan struct{})
	block := f.block
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.block == block {
			close(block)
			f.block = nil
		}
	}
}

func (f *FakeSynthesizer) Initialize() error { return f.InitErr }

func (f *FakeSynthesizer) Speak(text string) error {
	f.mu.Lock()
	f.spoken = append(f.spoken, text)
	f.speaking = true
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}

	f.mu.Lock()
	f.speaking = false
	f.mu.Unlock()
	return f.SpeakErr
}

func (f *FakeSynthesizer) StopSpeaking() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	if f.block != nil {
		close(f.block)
		f.block = nil
	}
}

func (f *FakeSynthesizer) IsSpeaking() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.speaking
}

// Spoken returns a copy of everything spoken so far.
func (f *FakeSynthesizer) Spoken() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.spoken))
	copy(out, f.spoken)
	return out
}

// Stops returns how many times StopSpeaking was called.
func (f *FakeSynthesizer) Stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

// FakeRecognizer yields scripted utterances.
type FakeRecognizer struct {
	mu       sync.Mutex
	finals   []string
	partials []string
	active   bool
	starts   int
	stops    int

	// InitErr is returned from Initialize when set.
	InitErr error
	// StartErr is returned from StartRecognition when set.
	StartErr error
	// PollErr is returned from every Recognize call when set.
	PollErr error
}

// NewFakeRecognizer creates a recognizer with nothing to say.
func NewFakeRecognizer() *FakeRecognizer {
	return &FakeRecognizer{}
}

// QueueFinal schedules a finalized utterance for a future Recognize call.
func (f *FakeRecognizer) QueueFinal(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finals = append(f.finals, text)
}

// QueuePartial schedules a partial transcript.
func (f *FakeRecognizer) QueuePartial(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.partials = append(f.partials, text)
}

func (f *FakeRecognizer) Initialize() error { return f.InitErr }

func (f *FakeRecognizer) StartRecognition() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StartErr != nil {
		return f.StartErr
	}
	f.active = true
	f.starts++
	return nil
}

func (f *FakeRecognizer) StopRecognition() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = false
	f.stops++
	return nil
}

func (f *FakeRecognizer) Recognize() (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PollErr != nil {
		return "", "", f.PollErr
	}
	if len(f.partials) > 0 {
		p := f.partials[0]
		f.partials = f.partials[1:]
		return "", p, nil
	}
	if len(f.finals) > 0 {
		text := f.finals[0]
		f.finals = f.finals[1:]
		return text, "", nil
	}
	return "", "", nil
}

// Active reports whether recognition is running.
func (f *FakeRecognizer) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

// Starts returns how many times recognition was started.
func (f *FakeRecognizer) Starts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

// FakeDetector fires the wake word on demand.
type FakeDetector struct {
	mu     sync.Mutex
	hit    bool
	active bool
	starts int
	stops  int

	// InitErr is returned from Initialize when set.
	InitErr error
	// StartErr is returned from StartDetection when set.
	StartErr error
}

// NewFakeDetector creates a quiet detector.
func NewFakeDetector() *FakeDetector {
	return &FakeDetector{}
}

// TriggerWake makes the next Detect call report the wake word.
func (f *FakeDetector) TriggerWake() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hit = true
}

func (f *FakeDetector) Initialize() error { return f.InitErr }

func (f *FakeDetector) StartDetection() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StartErr != nil {
		return f.StartErr
	}
	f.active = true
	f.starts++
	return nil
}

func (f *FakeDetector) StopDetection() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = false
	f.stops++
	return nil
}

func (f *FakeDetector) Detect() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	hit := f.hit
	f.hit = false
	return hit, nil
}

// Active reports whether detection is running.
func (f *FakeDetector) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

// Starts returns how many times detection was started.
func (f *FakeDetector) Starts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}
