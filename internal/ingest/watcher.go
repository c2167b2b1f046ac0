package ingest

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher delivers debounced (path, kind) events for a watched root and
// drives the per-file pipeline on each event, per spec §4.4 step 6.
//
// Thread Safety: safe for concurrent use. The watcher runs concurrently
// with read queries against the store; it does not block them.
type Watcher struct {
	root     string
	coord    *Coordinator
	watcher  *fsnotify.Watcher
	debounce time.Duration

	pending  chan fsnotify.Event
	done     chan struct{}
	stopOnce sync.Once

	// OnBatchApplied, if set, runs after each debounced batch is applied to
	// the store. Callers use it to invalidate derived indexes (C5's import
	// graph) that the batch may have changed.
	OnBatchApplied func()
}

// NewWatcher creates a Watcher for root, driving coord's pipeline on every
// debounced change. Call Start to begin watching.
func NewWatcher(root string, coord *Coordinator) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	debounce := coord.cfg.WatcherDebounce
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}
	return &Watcher{
		root:     root,
		coord:    coord,
		watcher:  fsw,
		debounce: debounce,
		pending:  make(chan fsnotify.Event, 1000),
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching root recursively. It spawns an event reader and a
// debounce loop; both exit on Stop or ctx cancellation.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addRecursive(w.root); err != nil {
		return err
	}
	go w.readEvents(ctx)
	go w.debounceLoop(ctx)
	return nil
}

// Stop halts watching. Safe to call multiple times.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
	})
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

func (w *Watcher) readEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.watcher.Add(event.Name)
				}
			}
			select {
			case w.pending <- event:
			default:
				// queue capacity exceeded: drop rather than grow unbounded,
				// per spec §5's backpressure rule.
			}
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// debounceLoop coalesces bursts of events per path within the debounce
// window, keeping only the most recent kind for each path, then drives the
// coordinator's pipeline for the flushed batch.
func (w *Watcher) debounceLoop(ctx context.Context) {
	batch := make(map[string]Event)
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if len(batch) == 0 {
			return
		}
		events := make(map[string]Event, len(batch))
		for k, v := range batch {
			events[k] = v
		}
		batch = make(map[string]Event)
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
		go w.apply(ctx, events)
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-w.done:
			flush()
			return
		case event := <-w.pending:
			rel, err := filepath.Rel(w.root, event.Name)
			if err != nil {
				continue
			}
			rel = filepath.ToSlash(rel)

			kind := EventModified
			switch {
			case event.Has(fsnotify.Create):
				kind = EventCreated
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				kind = EventDeleted
			}
			batch[rel] = Event{Path: rel, Kind: kind, Time: time.Now()}

			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			flush()
		}
	}
}

func (w *Watcher) apply(ctx context.Context, events map[string]Event) {
	p := &pipeline{
		store:       w.coord.store,
		manifoldCfg: w.coord.manifoldCfg,
		chaosCfg:    w.coord.chaosCfg,
		liteGlobs:   w.coord.cfg.LiteGlobs,
		now:         w.coord.now,
	}
	for rel, event := range events {
		switch event.Kind {
		case EventDeleted:
			_ = w.coord.store.DeleteFile(ctx, rel)
		default:
			abs := filepath.Join(w.root, rel)
			if _, err := os.Stat(abs); err != nil {
				_ = w.coord.store.DeleteFile(ctx, rel)
				continue
			}
			p.processFile(ctx, abs, rel)
		}
	}
	if w.OnBatchApplied != nil {
		w.OnBatchApplied()
	}
}
