// Package engine is the only author of brain document mutations.
//
// Every mutating operation follows the same protocol: make sure the
// document exists, apply the change in memory, build one Event, then bump
// the counter, append the event to the log and persist the document, in
// that order. Read-only analyses (conflict check, drift, suggestions,
// health) live here too because they share the token heuristics.
package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/HendryAvila/speclock/internal/brain"
	"github.com/HendryAvila/speclock/internal/vcs"
	"github.com/rs/zerolog"
)

// ErrEmptyText is returned when a required text argument is blank.
var ErrEmptyText = errors.New("text must not be empty")

// timeNow is a package-level variable for testability.
var timeNow = time.Now

// EventSink receives every event after it has been appended to the log.
// Sink failures are logged and never fail the mutation.
type EventSink interface {
	Add(ev brain.Event) error
}

// Options tunes engine behaviour.
type Options struct {
	// Debounce is how recent a file event must be for a head move to be
	// treated as an ordinary commit rather than a revert.
	Debounce time.Duration
	// RevertsRequireLocks restores the early no_locks return in DetectDrift,
	// hiding revert drifts while no lock is active.
	RevertsRequireLocks bool
}

// DefaultOptions returns the standard engine options.
func DefaultOptions() Options {
	return Options{Debounce: 2 * time.Second}
}

// Engine applies mutations to one project's brain document.
type Engine struct {
	root  string
	store brain.Store
	vcs   vcs.Facts
	sink  EventSink
	opts  Options
	log   zerolog.Logger

	// mu serializes mutations issued from the same process (watcher,
	// poller and tool handlers).
	mu sync.Mutex
}

// New creates an Engine for root. The root is made absolute.
func New(root string, store brain.Store, facts vcs.Facts, logger zerolog.Logger, opts Options) (*Engine, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving project root: %w", err)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultOptions().Debounce
	}
	return &Engine{
		root:  abs,
		store: store,
		vcs:   facts,
		opts:  opts,
		log:   logger.With().Str("component", "engine").Logger(),
	}, nil
}

// SetSink attaches an event sink such as the search index.
func (e *Engine) SetSink(sink EventSink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sink = sink
}

// Root returns the absolute project root.
func (e *Engine) Root() string {
	return e.root
}

// VCS returns the version-control adapter the engine was built with.
func (e *Engine) VCS() vcs.Facts {
	return e.vcs
}

// EnsureInit returns the brain document, creating it on first use.
func (e *Engine) EnsureInit(ctx context.Context) (*brain.Brain, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ensureInit(ctx)
}

// Events reads the event log, newest first.
func (e *Engine) Events(ctx context.Context, filter brain.EventFilter) ([]brain.Event, error) {
	if _, err := e.EnsureInit(ctx); err != nil {
		return nil, err
	}
	return e.store.ReadEvents(e.root, filter)
}

// ensureInit must be called with mu held.
func (e *Engine) ensureInit(ctx context.Context) (*brain.Brain, error) {
	b, err := e.store.Read(e.root)
	if err != nil {
		return nil, fmt.Errorf("reading brain: %w", err)
	}
	if b != nil {
		return b, nil
	}

	if err := e.store.EnsureDirs(e.root); err != nil {
		return nil, err
	}
	hasGit := e.vcs.HasVCS(ctx, e.root)
	defaultBranch := ""
	if hasGit {
		defaultBranch = e.vcs.DefaultBranch(ctx, e.root)
	}
	b = brain.NewBrain(e.root, hasGit, defaultBranch)
	if hasGit {
		head := e.vcs.Head(ctx, e.root)
		b.State.Head = brain.Head{GitBranch: head.Branch, GitCommit: head.Commit, CapturedAt: brain.Now()}
	}

	ev := newEvent(brain.EventInit, "Initialized SpecLock for "+b.Project.Name, nil)
	if err := e.record(b, ev); err != nil {
		return nil, err
	}
	e.log.Info().Str("root", e.root).Bool("git", hasGit).Msg("initialized project memory")
	return b, nil
}

// mutate runs fn against an initialized document and records the event
// it returns. A nil event means fn decided nothing changed.
func (e *Engine) mutate(ctx context.Context, fn func(b *brain.Brain) (*brain.Event, error)) (*brain.Brain, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, err := e.ensureInit(ctx)
	if err != nil {
		return nil, err
	}
	ev, err := fn(b)
	if err != nil || ev == nil {
		return b, err
	}
	if err := e.record(b, *ev); err != nil {
		return nil, err
	}
	return b, nil
}

// record bumps the counter, appends ev to the log, persists b and feeds
// the sink.
func (e *Engine) record(b *brain.Brain, ev brain.Event) error {
	b.Events.Count++
	b.Events.LastEventID = ev.EventID

	if err := e.store.AppendEvent(e.root, ev); err != nil {
		return fmt.Errorf("appending %s event: %w", ev.Type, err)
	}
	if err := e.store.Write(e.root, b); err != nil {
		return fmt.Errorf("writing brain after %s: %w", ev.Type, err)
	}
	if e.sink != nil {
		if err := e.sink.Add(ev); err != nil {
			e.log.Warn().Err(err).Str("event", ev.EventID).Msg("event sink failed")
		}
	}
	return nil
}

func newEvent(t brain.EventType, summary string, files []string) brain.Event {
	if files == nil {
		files = []string{}
	}
	return brain.Event{
		EventID: brain.NewID("evt"),
		Type:    t,
		At:      brain.Now(),
		Files:   files,
		Summary: brain.Truncate(summary, brain.MaxEventSummary),
	}
}
