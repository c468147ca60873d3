// Package watcher wraps OS-native filesystem notifications into a pull
// queue, per spec.md §4.H. Watching is not recursive: a watched directory
// reports changes to its direct entries only, not to files inside its
// subdirectories. Grounded on the original
// apps/core/src/watcher.rs (built on the Rust `notify` crate) and the
// fsnotify usage pattern shared across the retrieval pack (e.g.
// vanducng-goclaw, kylesnowschwartz-tail-claude).
package watcher

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Event is one coalescable filesystem notification. Duplicates are possible
// per spec.md §4.H; callers must coalesce themselves.
type Event struct {
	Path string
	Op   fsnotify.Op
	Time time.Time
}

// Watcher wraps an *fsnotify.Watcher with a bounded event queue and a coarse
// poll-interval fallback for paths whose native notifications never arrive.
type Watcher struct {
	log zerolog.Logger

	fsw    *fsnotify.Watcher
	events chan Event

	mu      sync.Mutex
	watched map[string]struct{}

	pollInterval time.Duration
	pollSnapshot map[string]time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Watcher. pollInterval is the fallback poll cadence used
// to detect changes on paths where native notifications are unreliable
// (spec.md §4.H); pass 0 to disable polling entirely.
func New(pollInterval time.Duration, log zerolog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		log:          log,
		fsw:          fsw,
		events:       make(chan Event, 256),
		watched:      make(map[string]struct{}),
		pollInterval: pollInterval,
		pollSnapshot: make(map[string]time.Time),
	}, nil
}

// Watch begins observing path's direct entries for changes; subdirectories
// of path are not added to the watch. Adding an already-watched path is a
// no-op.
func (w *Watcher) Watch(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.watched[path]; ok {
		return nil
	}
	if err := w.fsw.Add(path); err != nil {
		return err
	}
	w.watched[path] = struct{}{}
	return nil
}

// Unwatch stops observing path. Unwatching a path that was never watched is
// a no-op.
func (w *Watcher) Unwatch(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.watched[path]; !ok {
		return nil
	}
	delete(w.watched, path)
	return w.fsw.Remove(path)
}

// Run starts the background pump translating native fsnotify events (and,
// if enabled, poll-detected changes) into the Events channel. It runs until
// ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go w.pumpNative(ctx)

	if w.pollInterval > 0 {
		w.wg.Add(1)
		go w.pumpPoll(ctx)
	}
}

// Stop halts the background pump and closes the underlying native watcher.
func (w *Watcher) Stop() error {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	return w.fsw.Close()
}

func (w *Watcher) pumpNative(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.emit(Event{Path: ev.Name, Op: ev.Op, Time: time.Now()})
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("watcher error")
		}
	}
}

// pumpPoll is the coarse fallback of spec.md §4.H: on each tick it
// re-stats every watched path's direct entries and synthesizes a Write
// event for anything whose mtime advanced since the last snapshot. It
// never replaces native notifications — it only catches what they miss.
func (w *Watcher) pumpPoll(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.pollOnce()
		}
	}
}

func (w *Watcher) pollOnce() {
	w.mu.Lock()
	paths := make([]string, 0, len(w.watched))
	for p := range w.watched {
		paths = append(paths, p)
	}
	w.mu.Unlock()

	for _, dir := range paths {
		entries, err := readDirMtimes(dir)
		if err != nil {
			continue
		}
		for path, mtime := range entries {
			prev, seen := w.pollSnapshot[path]
			w.pollSnapshot[path] = mtime
			if seen && !mtime.After(prev) {
				continue
			}
			w.emit(Event{Path: path, Op: fsnotify.Write, Time: time.Now()})
		}
	}
}

func (w *Watcher) emit(ev Event) {
	select {
	case w.events <- ev:
	default:
		w.log.Warn().Str("path", ev.Path).Msg("event queue full, dropping event")
	}
}

// Next blocks until an event arrives or ctx is done (blocking mode, per
// spec.md §4.H).
func (w *Watcher) Next(ctx context.Context) (Event, bool) {
	select {
	case ev, ok := <-w.events:
		return ev, ok
	case <-ctx.Done():
		return Event{}, false
	}
}

// NextTimeout blocks for at most timeout for an event (blocking-with-
// timeout mode).
func (w *Watcher) NextTimeout(timeout time.Duration) (Event, bool) {
	select {
	case ev, ok := <-w.events:
		return ev, ok
	case <-time.After(timeout):
		return Event{}, false
	}
}

// TryNext returns immediately with whatever event (if any) is queued
// (non-blocking mode).
func (w *Watcher) TryNext() (Event, bool) {
	select {
	case ev, ok := <-w.events:
		return ev, ok
	default:
		return Event{}, false
	}
}
