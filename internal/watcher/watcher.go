// Package watcher notifies the engine when a watched file changes on disk,
// normalizing inotify/kqueue/ReadDirectoryChangesW (via fsnotify's
// per-platform backends) plus a stat-based polling fallback into a single
// callback. See spec.md §4.4.
package watcher

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// State is a watched path's lifecycle stage.
type State int

const (
	None State = iota
	FileExists
	FileRemoved
)

const debounceWindow = 50 * time.Millisecond

type watch struct {
	callback func()
	state    State
	dir      string
	size     int64
	mtime    time.Time

	debounceTimer *time.Timer
}

// Watcher multiplexes OS change notifications and polling for any number of
// watched files through one background goroutine, matching spec.md's
// "single background thread per process" model.
type Watcher struct {
	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	watches map[string]*watch
	dirRefs map[string]int

	pollInterval time.Duration
	logger       *zap.Logger

	stopCh chan struct{}
	doneCh chan struct{}
}

var (
	globalOnce sync.Once
	global     *Watcher
)

// Get returns the process-wide watcher, starting its background goroutine on
// first use.
func Get(logger *zap.Logger) *Watcher {
	globalOnce.Do(func() {
		global = newWatcher(logger)
	})
	return global
}

func newWatcher(logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	fsw, err := fsnotify.NewWatcher()
	w := &Watcher{
		watches:      make(map[string]*watch),
		dirRefs:      make(map[string]int),
		pollInterval: time.Second,
		logger:       logger,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
	if err != nil {
		logger.Warn("watcher: OS backend unavailable, falling back to pure polling", zap.Error(err))
		w.fsw = nil
	} else {
		w.fsw = fsw
	}
	go w.loop()
	return w
}

// Add registers callback to be invoked once per discrete change to path.
// Idempotent: re-adding the same path replaces its callback.
func (w *Watcher) Add(path string, callback func()) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	dir := filepath.Dir(abs)

	w.mu.Lock()
	defer w.mu.Unlock()

	if existing, ok := w.watches[abs]; ok {
		existing.callback = callback
		return nil
	}

	wv := &watch{callback: callback, dir: dir, state: None}
	w.refreshStat(abs, wv)
	w.watches[abs] = wv

	if w.fsw != nil {
		_ = w.fsw.Add(abs)
		if w.dirRefs[dir] == 0 {
			_ = w.fsw.Add(dir)
		}
		w.dirRefs[dir]++
	}
	return nil
}

// Remove unregisters path.
func (w *Watcher) Remove(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	wv, ok := w.watches[abs]
	if !ok {
		return
	}
	delete(w.watches, abs)

	if w.fsw != nil {
		_ = w.fsw.Remove(abs)
		w.dirRefs[wv.dir]--
		if w.dirRefs[wv.dir] <= 0 {
			_ = w.fsw.Remove(wv.dir)
			delete(w.dirRefs, wv.dir)
		}
	}
}

// SetPollingInterval sets the polling fallback period; 0 disables polling.
func (w *Watcher) SetPollingInterval(ms int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if ms <= 0 {
		w.pollInterval = 0
		return
	}
	w.pollInterval = time.Duration(ms) * time.Millisecond
}

// Shutdown stops the background goroutine. Intended for process exit, not
// routine use.
func (w *Watcher) Shutdown() {
	close(w.stopCh)
	<-w.doneCh
	if w.fsw != nil {
		w.fsw.Close()
	}
}

func (w *Watcher) loop() {
	defer close(w.doneCh)

	var events <-chan fsnotify.Event
	var errs <-chan error
	if w.fsw != nil {
		events = w.fsw.Events
		errs = w.fsw.Errors
	}

	ticker := time.NewTicker(w.currentPollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-events:
			if !ok {
				continue
			}
			w.handleEvent(ev)
		case err, ok := <-errs:
			if !ok {
				continue
			}
			w.logger.Warn("watcher: backend error", zap.Error(err))
		case <-ticker.C:
			w.pollAll()
			ticker.Reset(w.currentPollInterval())
		}
	}
}

func (w *Watcher) currentPollInterval() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pollInterval <= 0 {
		return time.Hour
	}
	return w.pollInterval
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	abs, err := filepath.Abs(ev.Name)
	if err != nil {
		abs = ev.Name
	}

	w.mu.Lock()
	wv, ok := w.watches[abs]
	w.mu.Unlock()
	if ok {
		w.checkAndNotify(abs, wv)
		return
	}

	// the event may be on the containing directory (rename-over, recreate)
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, v := range w.watches {
		if filepath.Dir(path) == abs || filepath.Dir(path) == filepath.Dir(ev.Name) {
			w.checkAndNotifyLocked(path, v)
		}
	}
}

func (w *Watcher) pollAll() {
	w.mu.Lock()
	snapshot := make(map[string]*watch, len(w.watches))
	for k, v := range w.watches {
		snapshot[k] = v
	}
	w.mu.Unlock()

	for path, wv := range snapshot {
		w.checkAndNotify(path, wv)
	}
}

// checkAndNotify stats path and, on a genuine change (existence flip, size,
// or mtime change), debounces a callback invocation.
func (w *Watcher) checkAndNotify(path string, wv *watch) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.checkAndNotifyLocked(path, wv)
}

func (w *Watcher) checkAndNotifyLocked(path string, wv *watch) {
	changed := w.refreshStat(path, wv)
	if !changed {
		return
	}
	if wv.debounceTimer != nil {
		wv.debounceTimer.Stop()
	}
	cb := wv.callback
	wv.debounceTimer = time.AfterFunc(debounceWindow, func() {
		if cb != nil {
			cb()
		}
	})
}
