package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow collapses the burst of fsnotify events most editors
// produce for a single save into one reload.
const debounceWindow = 250 * time.Millisecond

// Watcher watches the config file for changes and reloads it.
// Reloads that fail validation are discarded and the previous
// configuration stays in effect.
type Watcher struct {
	watcher *fsnotify.Watcher

	// Callback invoked with the freshly loaded config after a change
	onChange func(*Config)

	// Callback invoked when a reload fails (optional)
	onError func(error)

	mu      sync.Mutex
	stopCh  chan struct{}
	stopped bool
}

// NewWatcher creates a watcher for the config file. The file itself may not
// exist yet; the watcher observes the containing directory so that creating
// the file later is also picked up.
func NewWatcher(onChange func(*Config)) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher:  fsWatcher,
		onChange: onChange,
		stopCh:   make(chan struct{}),
	}, nil
}

// SetErrorCallback sets the callback for reload failures.
func (w *Watcher) SetErrorCallback(cb func(error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onError = cb
}

// Start begins watching the config directory. It returns an error if the
// directory cannot be watched; the event loop runs until Stop is called.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(ConfigDir()); err != nil {
		return err
	}

	go w.loop()
	return nil
}

// loop processes filesystem events until the watcher is stopped.
func (w *Watcher) loop() {
	var (
		debounce *time.Timer
		fireCh   <-chan time.Time
	)

	target := filepath.Clean(ConfigFile())

	for {
		select {
		case <-w.stopCh:
			if debounce != nil {
				debounce.Stop()
			}
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(debounceWindow)
			} else {
				debounce.Reset(debounceWindow)
			}
			fireCh = debounce.C

		case <-fireCh:
			fireCh = nil
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.reportError(err)
		}
	}
}

// reload re-reads the config file and delivers the result to the callback.
func (w *Watcher) reload() {
	cfg, err := Load()
	if err != nil {
		w.reportError(err)
		return
	}

	w.mu.Lock()
	cb := w.onChange
	w.mu.Unlock()

	if cb != nil {
		cb(cfg)
	}
}

// reportError delivers a reload or watch error to the error callback.
func (w *Watcher) reportError(err error) {
	w.mu.Lock()
	cb := w.onError
	w.mu.Unlock()

	if cb != nil {
		cb(err)
	}
}

// Stop shuts down the watcher. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	w.stopped = true
	close(w.stopCh)
	w.watcher.Close()
}
