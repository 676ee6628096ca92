// Package console provides terminal-backed speech collaborators: typed
// lines stand in for audio. A line starting with the wake phrase wakes
// the assistant, the next line (or the rest of the wake line) is the
// utterance, and synthesized speech is printed.
package console

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// speakRate paces printed speech so interruption is observable.
const speakRate = 25 * time.Millisecond

// maxSpeakTime caps how long one printed message "speaks".
const maxSpeakTime = 2 * time.Second

// Options configures an IO.
type Options struct {
	// WakePhrase triggers detection, case-insensitive (default "hey omni").
	WakePhrase string
	// Render formats text before printing. Defaults to "omni> text".
	Render func(string) string
}

// IO implements the Recognizer, Synthesizer, and WakeWordDetector
// contracts over a line-based reader and writer.
type IO struct {
	out        io.Writer
	in         io.Reader
	wakePhrase string
	render     func(string) string

	mu          sync.Mutex
	detecting   bool
	recognizing bool
	wakeHit     bool
	utterances  []string
	speaking    bool
	interrupt   chan struct{}
	started     bool
}

// New creates an IO over the given reader and writer. Start launches the
// line reader.
func New(in io.Reader, out io.Writer, opts Options) *IO {
	if opts.WakePhrase == "" {
		opts.WakePhrase = "hey omni"
	}
	if opts.Render == nil {
		opts.Render = func(s string) string { return "omni> " + s }
	}
	return &IO{
		out:        out,
		in:         in,
		wakePhrase: strings.ToLower(opts.WakePhrase),
		render:     opts.Render,
	}
}

// Start launches the background line reader. Calling it twice is a no-op.
func (c *IO) Start() {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	go func() {
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			c.Feed(scanner.Text())
		}
	}()
}

// Feed injects one input line, as if it had been typed.
func (c *IO) Feed(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.recognizing:
		c.utterances = append(c.utterances, line)

	case c.detecting:
		lower := strings.ToLower(line)
		if !strings.HasPrefix(lower, c.wakePhrase) {
			return
		}
		c.wakeHit = true
		// "hey omni, weather in london" carries the utterance inline.
		rest := strings.TrimSpace(strings.TrimLeft(line[len(c.wakePhrase):], " ,.!?"))
		if rest != "" {
			c.utterances = append(c.utterances, rest)
		}
	}
}

// Initialize implements the collaborator contracts.
func (c *IO) Initialize() error { return nil }

// StartDetection begins watching input lines for the wake phrase.
func (c *IO) StartDetection() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.detecting = true
	return nil
}

// StopDetection stops wake phrase watching.
func (c *IO) StopDetection() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.detecting = false
	return nil
}

// Detect reports whether the wake phrase was typed since the last call.
func (c *IO) Detect() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	hit := c.wakeHit
	c.wakeHit = false
	return hit, nil
}

// StartRecognition begins treating input lines as utterances.
func (c *IO) StartRecognition() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recognizing = true
	return nil
}

// StopRecognition stops utterance capture.
func (c *IO) StopRecognition() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recognizing = false
	return nil
}

// Recognize returns the next typed utterance, if any. Typed input has no
// partial transcripts, so partial is always empty.
func (c *IO) Recognize() (string, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.utterances) == 0 {
		return "", "", nil
	}
	text := c.utterances[0]
	c.utterances = c.utterances[1:]
	return text, "", nil
}

// Speak prints the text and blocks for a length-scaled interval so
// StopSpeaking has something to interrupt.
func (c *IO) Speak(text string) error {
	c.mu.Lock()
	c.speaking = true
	c.interrupt = make(chan struct{}, 1)
	interrupt := c.interrupt
	c.mu.Unlock()

	fmt.Fprintln(c.out, c.render(text))

	d := min(time.Duration(len(text))*speakRate, maxSpeakTime)
	timer := time.NewTimer(d)
	select {
	case <-interrupt:
		timer.Stop()
	case <-timer.C:
	}

	c.mu.Lock()
	c.speaking = false
	c.mu.Unlock()
	return nil
}

// StopSpeaking cuts off an in-flight Speak.
func (c *IO) StopSpeaking() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.speaking && c.interrupt != nil {
		select {
		case c.interrupt <- struct{}{}:
		default:
		}
	}
}

// IsSpeaking reports whether a Speak call is in flight.
func (c *IO) IsSpeaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speaking
}
