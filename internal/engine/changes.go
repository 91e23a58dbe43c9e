package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/HendryAvila/speclock/internal/brain"
	"github.com/HendryAvila/speclock/internal/vcs"
)

// noDiffPlaceholder is written for file events with an empty diff.
const noDiffPlaceholder = "(no diff available)"

// FileEvent is one filesystem notification forwarded by a watcher.
type FileEvent struct {
	Type brain.EventType
	Path string
}

// HeadObservation reports what ObserveHead saw.
type HeadObservation struct {
	Previous string `json:"previous"`
	Current  string `json:"current"`
	Moved    bool   `json:"moved"`
	Revert   bool   `json:"revert"`
}

// CheckpointResult reports the outcome of Checkpoint.
type CheckpointResult struct {
	OK    bool   `json:"ok"`
	Tag   string `json:"tag,omitempty"`
	Error string `json:"error,omitempty"`
}

// LogChange records a manual change. When version control is present the
// current diff is captured into a patch file if non-empty. An empty files
// list is filled from the diff.
func (e *Engine) LogChange(ctx context.Context, summary string, files []string) (brain.Event, error) {
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return brain.Event{}, ErrEmptyText
	}
	var recorded brain.Event
	_, err := e.mutate(ctx, func(b *brain.Brain) (*brain.Event, error) {
		ev := newEvent(brain.EventManualChange, summary, cleanTags(files))

		if b.Facts.Repo.HasGit {
			if text, ok := e.vcs.Diff(ctx, e.root); ok && strings.TrimSpace(text) != "" {
				rel, err := e.store.WritePatch(e.root, ev.EventID, text)
				if err != nil {
					return nil, err
				}
				ev.PatchPath = rel
				if len(ev.Files) == 0 {
					if stats, err := vcs.ParsePatch(text); err == nil {
						ev.Files = stats.Paths()
					}
				}
			}
		}

		b.PushRecentChange(brain.RecentChange{EventID: ev.EventID, Summary: ev.Summary, Files: ev.Files, At: ev.At})
		recorded = ev
		return &ev, nil
	})
	return recorded, err
}

// HandleFileEvent records a create, change or delete notification.
func (e *Engine) HandleFileEvent(ctx context.Context, fe FileEvent) (brain.Event, error) {
	switch fe.Type {
	case brain.EventFileCreated, brain.EventFileChanged, brain.EventFileDeleted:
	default:
		return brain.Event{}, fmt.Errorf("unsupported file event type %q", fe.Type)
	}
	rel := e.relPath(fe.Path)

	var recorded brain.Event
	_, err := e.mutate(ctx, func(b *brain.Brain) (*brain.Event, error) {
		summary := strings.ReplaceAll(string(fe.Type), "_", " ") + ": " + rel
		ev := newEvent(fe.Type, summary, []string{rel})

		if b.Facts.Repo.HasGit {
			text, _ := e.vcs.Diff(ctx, e.root)
			if strings.TrimSpace(text) == "" {
				text = noDiffPlaceholder
			}
			path, err := e.store.WritePatch(e.root, ev.EventID, text)
			if err != nil {
				return nil, err
			}
			ev.PatchPath = path
		}

		b.PushRecentChange(brain.RecentChange{EventID: ev.EventID, Summary: ev.Summary, Files: ev.Files, At: ev.At})
		recorded = ev
		return &ev, nil
	})
	return recorded, err
}

// ObserveHead compares the stored head commit with the live one. A move
// with no file event inside the debounce window is recorded as a revert;
// any other move just refreshes the stored head.
func (e *Engine) ObserveHead(ctx context.Context, lastFileEvent time.Time) (HeadObservation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, err := e.ensureInit(ctx)
	if err != nil {
		return HeadObservation{}, err
	}
	if !b.Facts.Repo.HasGit {
		return HeadObservation{}, nil
	}

	head := e.vcs.Head(ctx, e.root)
	obs := HeadObservation{Previous: b.State.Head.GitCommit, Current: head.Commit}
	if head.Commit == "" || head.Commit == obs.Previous {
		return obs, nil
	}
	obs.Moved = true

	quiet := lastFileEvent.IsZero() || timeNow().Sub(lastFileEvent) > e.opts.Debounce
	b.State.Head = brain.Head{GitBranch: head.Branch, GitCommit: head.Commit, CapturedAt: brain.Now()}

	if obs.Previous == "" || !quiet {
		if err := e.store.Write(e.root, b); err != nil {
			return obs, fmt.Errorf("refreshing head: %w", err)
		}
		return obs, nil
	}

	obs.Revert = true
	ev := newEvent(brain.EventRevertDetected, "HEAD moved to "+brain.Truncate(head.Commit, 12), nil)
	b.State.Reverts = append([]brain.Revert{{
		EventID: ev.EventID,
		Kind:    "git_checkout",
		Target:  head.Commit,
		At:      ev.At,
		Note:    "HEAD moved from " + brain.Truncate(obs.Previous, 12) + " on " + head.Branch,
	}}, b.State.Reverts...)
	if err := e.record(b, ev); err != nil {
		return obs, err
	}
	e.log.Warn().Str("from", obs.Previous).Str("to", head.Commit).Msg("revert detected")
	return obs, nil
}

var tagUnsafe = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// Checkpoint tags HEAD as sl_<name>_<unix ms> and records the event.
func (e *Engine) Checkpoint(ctx context.Context, name string) (CheckpointResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return CheckpointResult{}, ErrEmptyText
	}
	var res CheckpointResult
	_, err := e.mutate(ctx, func(b *brain.Brain) (*brain.Event, error) {
		if !b.Facts.Repo.HasGit {
			res = CheckpointResult{Error: "Not a git repository. Checkpoints require git."}
			return nil, nil
		}
		tag := fmt.Sprintf("sl_%s_%d", tagUnsafe.ReplaceAllString(name, "_"), timeNow().UnixMilli())
		r := e.vcs.CreateTag(ctx, e.root, tag)
		if !r.OK {
			res = CheckpointResult{Error: "Failed to create checkpoint: " + r.Stderr}
			return nil, nil
		}
		res = CheckpointResult{OK: true, Tag: tag}
		ev := newEvent(brain.EventCheckpointCreated, "Checkpoint: "+tag, nil)
		return &ev, nil
	})
	return res, err
}

// RecordContextGenerated records that a context document was rendered to
// the root-relative path.
func (e *Engine) RecordContextGenerated(ctx context.Context, path string) error {
	_, err := e.mutate(ctx, func(b *brain.Brain) (*brain.Event, error) {
		ev := newEvent(brain.EventContextGenerated, "Context pack generated", []string{path})
		return &ev, nil
	})
	return err
}

// relPath makes p relative to the project root with forward slashes.
func (e *Engine) relPath(p string) string {
	if !filepath.IsAbs(p) {
		return filepath.ToSlash(filepath.Clean(p))
	}
	rel, err := filepath.Rel(e.root, p)
	if err != nil {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(rel)
}
