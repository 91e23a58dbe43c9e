// Package watch turns filesystem notifications into file events and polls
// the repository head for reverts.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HendryAvila/speclock/internal/brain"
	"github.com/HendryAvila/speclock/internal/engine"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultIgnore lists directory names never watched.
var DefaultIgnore = []string{"node_modules", ".git", brain.StateDir, "dist", "build", "vendor", ".next"}

// Recorder is the part of the engine the watcher drives.
type Recorder interface {
	Root() string
	HandleFileEvent(ctx context.Context, fe engine.FileEvent) (brain.Event, error)
	ObserveHead(ctx context.Context, lastFileEvent time.Time) (engine.HeadObservation, error)
}

// Options tunes a Watcher.
type Options struct {
	PollInterval time.Duration
	// Ignore adds directory names to DefaultIgnore.
	Ignore     []string
	BufferSize int
}

// Watcher watches a project tree. Create one per Run.
type Watcher struct {
	rec    Recorder
	root   string
	fsw    *fsnotify.Watcher
	ignore map[string]bool
	poll   time.Duration
	events chan engine.FileEvent
	log    zerolog.Logger

	// lastEvent is the unix-nano time the last file event arrived.
	lastEvent atomic.Int64
}

// New creates a Watcher for rec's project root.
func New(rec Recorder, opts Options, logger zerolog.Logger) (*Watcher, error) {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 256
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fs watcher: %w", err)
	}
	ignore := make(map[string]bool, len(DefaultIgnore)+len(opts.Ignore))
	for _, name := range append(append([]string{}, DefaultIgnore...), opts.Ignore...) {
		if name = strings.TrimSpace(name); name != "" {
			ignore[name] = true
		}
	}
	return &Watcher{
		rec:    rec,
		root:   rec.Root(),
		fsw:    fsw,
		ignore: ignore,
		poll:   opts.PollInterval,
		events: make(chan engine.FileEvent, opts.BufferSize),
		log:    logger.With().Str("component", "watch").Logger(),
	}, nil
}

// Run watches until ctx is cancelled. File events are handled by a single
// consumer goroutine; the head is polled on every tick.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.fsw.Close() }()

	if err := w.addRecursive(w.root); err != nil {
		return fmt.Errorf("watching %s: %w", w.root, err)
	}
	w.log.Info().Str("root", w.root).Dur("poll", w.poll).Msg("watching")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.consume(ctx)
	}()
	defer wg.Wait()

	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.dispatch(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("watcher error")
		case <-ticker.C:
			w.observeHead(ctx)
		}
	}
}

// LastEvent returns when the last file event arrived.
func (w *Watcher) LastEvent() time.Time {
	n := w.lastEvent.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

func (w *Watcher) dispatch(ev fsnotify.Event) {
	if w.ignored(ev.Name) {
		return
	}
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(ev.Name); err != nil {
				w.log.Warn().Err(err).Str("dir", ev.Name).Msg("adding watch")
			}
			return
		}
	}
	typ, ok := classify(ev.Op)
	if !ok {
		return
	}
	// Stamped on arrival so a tick racing the queue still sees the activity.
	w.lastEvent.Store(time.Now().UnixNano())
	select {
	case w.events <- engine.FileEvent{Type: typ, Path: ev.Name}:
	default:
		w.log.Warn().Str("path", ev.Name).Msg("event buffer full, dropping file event")
	}
}

func (w *Watcher) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case fe := <-w.events:
			if _, err := w.rec.HandleFileEvent(ctx, fe); err != nil {
				w.log.Error().Err(err).Str("path", fe.Path).Msg("recording file event")
			}
		}
	}
}

func (w *Watcher) observeHead(ctx context.Context) {
	obs, err := w.rec.ObserveHead(ctx, w.LastEvent())
	if err != nil {
		w.log.Error().Err(err).Msg("observing head")
		return
	}
	if obs.Moved && !obs.Revert {
		w.log.Debug().Str("head", obs.Current).Msg("head moved")
	}
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.ignore[d.Name()] {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// ignored reports whether any path segment below the root is ignored.
func (w *Watcher) ignored(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	for _, seg := range strings.Split(filepath.ToSlash(rel), "/") {
		if w.ignore[seg] {
			return true
		}
	}
	return false
}

func classify(op fsnotify.Op) (brain.EventType, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return brain.EventFileCreated, true
	case op.Has(fsnotify.Write):
		return brain.EventFileChanged, true
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return brain.EventFileDeleted, true
	default:
		return "", false
	}
}
