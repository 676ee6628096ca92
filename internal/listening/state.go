// Package listening drives the wake word, speech capture, processing
// cycle as an explicit state machine. One goroutine owns the state; no
// external code mutates it.
package listening

import "fmt"

// State is the current phase of the audio interaction cycle.
type State int

const (
	// Idle polls the wake-word detector.
	Idle State = iota
	// WakeWordDetected acknowledges the wake word and prepares the
	// recognizer.
	WakeWordDetected
	// Listening polls the recognizer for speech.
	Listening
	// Processing hands recognized text to the dispatch handler.
	Processing
	// ErrorState recovers from an unexpected failure before returning
	// to Idle.
	ErrorState
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case WakeWordDetected:
		return "wake_word_detected"
	case Listening:
		return "listening"
	case Processing:
		return "processing"
	case ErrorState:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Recognizer is the speech-to-text collaborator.
type Recognizer interface {
	Initialize() error
	StartRecognition() error
	StopRecognition() error
	// Recognize is a non-blocking poll. It returns the finalized text once
	// an utterance completes, or the partial transcript while one is still
	// arriving. Both empty means nothing has been heard yet.
	Recognize() (final string, partial string, err error)
}

// WakeWordDetector is the wake-word collaborator.
type WakeWordDetector interface {
	Initialize() error
	StartDetection() error
	StopDetection() error
	// Detect is a non-blocking poll reporting whether the wake word was
	// heard since the last call.
	Detect() (bool, error)
}
