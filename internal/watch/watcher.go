// Package watch observes the music folder for file-system changes and
// delivers them as debounced batches, so a bulk copy lands as one library
// update instead of hundreds.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/picccassso/Ariami-sub001/internal/domain"
	"github.com/picccassso/Ariami-sub001/internal/scanner"
)

// DefaultDebounce is the quiet period required before a pending batch is
// flushed.
const DefaultDebounce = 2 * time.Second

// Watcher wraps an fsnotify watcher with recursive directory registration
// and event debouncing. Emit receives coalesced batches on a dedicated
// goroutine; it must not block indefinitely.
type Watcher struct {
	root     string
	debounce time.Duration
	logger   *slog.Logger
	emit     func([]domain.FileChange)

	fsw *fsnotify.Watcher

	mu      sync.Mutex
	pending []domain.FileChange
	timer   *time.Timer
	closed  bool
}

// New builds a watcher for root. Start must be called to begin delivery.
func New(root string, debounce time.Duration, logger *slog.Logger, emit func([]domain.FileChange)) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		root:     root,
		debounce: debounce,
		logger:   logger,
		emit:     emit,
		fsw:      fsw,
	}, nil
}

// Start registers the directory tree and launches the event loop. The loop
// stops when ctx is cancelled or Close is called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addTree(w.root); err != nil {
		w.fsw.Close()
		return err
	}
	go w.loop(ctx)
	return nil
}

// Close stops event delivery and flushes nothing further.
func (w *Watcher) Close() error {
	w.mu.Lock()
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.fsw.Close()
}

// addTree registers dir and every subdirectory with the underlying watcher.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := w.fsw.Add(path); err != nil {
				w.logger.Warn("watch registration failed",
					slog.String("path", path), slog.String("error", err.Error()))
			}
		}
		return nil
	})
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Close()
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	switch {
	case ev.Has(fsnotify.Create):
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			// A new directory may already contain files (moved in whole);
			// register it and surface its audio content as additions.
			if err := w.addTree(ev.Name); err != nil {
				w.logger.Warn("watch registration failed",
					slog.String("path", ev.Name), slog.String("error", err.Error()))
			}
			w.queueDirContents(ev.Name)
			return
		}
		w.queue(domain.FileChange{Type: domain.ChangeAdded, Path: ev.Name, Time: time.Now()})
	case ev.Has(fsnotify.Write):
		w.queue(domain.FileChange{Type: domain.ChangeModified, Path: ev.Name, Time: time.Now()})
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		// fsnotify reports a rename as the old name disappearing; the new
		// name arrives as a separate Create. The change processor treats
		// the pair as remove + add.
		w.queue(domain.FileChange{Type: domain.ChangeRemoved, Path: ev.Name, Time: time.Now()})
	}
}

func (w *Watcher) queueDirContents(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if scanner.IsAudioFile(path) {
			w.queue(domain.FileChange{Type: domain.ChangeAdded, Path: path, Time: time.Now()})
		}
		return nil
	})
}

// queue appends a change and arms (or re-arms) the debounce timer. Non-audio
// paths are dropped here so chatter like cover downloads never wakes the
// pipeline.
func (w *Watcher) queue(ch domain.FileChange) {
	if !scanner.IsAudioFile(ch.Path) {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.pending = append(w.pending, ch)
	if w.timer == nil {
		w.timer = time.AfterFunc(w.debounce, w.flush)
	} else {
		w.timer.Reset(w.debounce)
	}
}

func (w *Watcher) flush() {
	w.mu.Lock()
	batch := w.pending
	w.pending = nil
	closed := w.closed
	w.mu.Unlock()
	if closed || len(batch) == 0 {
		return
	}
	w.logger.Debug("flushing file changes", slog.Int("count", len(batch)))
	w.emit(batch)
}
