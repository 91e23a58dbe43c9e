package engine

import (
	"context"
	"strings"

	"github.com/HendryAvila/speclock/internal/brain"
)

// summaryLen bounds the text quoted in event summaries.
const summaryLen = 80

// RemoveResult reports the outcome of RemoveLock.
type RemoveResult struct {
	Removed  bool   `json:"removed"`
	LockText string `json:"lockText,omitempty"`
	Error    string `json:"error,omitempty"`
}

// DeployUpdate is a partial update. Nil fields are left untouched.
type DeployUpdate struct {
	Provider   *string `json:"provider,omitempty"`
	AutoDeploy *bool   `json:"autoDeploy,omitempty"`
	Branch     *string `json:"branch,omitempty"`
	URL        *string `json:"url,omitempty"`
	Notes      *string `json:"notes,omitempty"`
}

// Empty reports whether the update carries no field.
func (u DeployUpdate) Empty() bool {
	return u.Provider == nil && u.AutoDeploy == nil && u.Branch == nil && u.URL == nil && u.Notes == nil
}

// SetGoal overwrites the project goal.
func (e *Engine) SetGoal(ctx context.Context, text string) (*brain.Brain, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	return e.mutate(ctx, func(b *brain.Brain) (*brain.Event, error) {
		b.Goal = brain.Goal{Text: text, UpdatedAt: brain.Now()}
		ev := newEvent(brain.EventGoalUpdated, "Goal set: "+brain.Truncate(text, summaryLen), nil)
		return &ev, nil
	})
}

// AddLock prepends a new active lock and returns its id.
func (e *Engine) AddLock(ctx context.Context, text string, tags []string, source brain.Source) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyText
	}
	lock := brain.Lock{
		ID:        brain.NewID("lock"),
		Text:      text,
		CreatedAt: brain.Now(),
		Source:    normalizeSource(source),
		Tags:      cleanTags(tags),
		Active:    true,
	}
	_, err := e.mutate(ctx, func(b *brain.Brain) (*brain.Event, error) {
		b.SpecLock.Items = append([]brain.Lock{lock}, b.SpecLock.Items...)
		ev := newEvent(brain.EventLockAdded, "Lock added: "+brain.Truncate(text, summaryLen), nil)
		return &ev, nil
	})
	if err != nil {
		return "", err
	}
	return lock.ID, nil
}

// RemoveLock deactivates a lock. Unknown ids are reported in the result
// and record no event.
func (e *Engine) RemoveLock(ctx context.Context, lockID string) (RemoveResult, error) {
	var res RemoveResult
	_, err := e.mutate(ctx, func(b *brain.Brain) (*brain.Event, error) {
		for i := range b.SpecLock.Items {
			lock := &b.SpecLock.Items[i]
			if lock.ID != lockID {
				continue
			}
			lock.Active = false
			res = RemoveResult{Removed: true, LockText: lock.Text}
			ev := newEvent(brain.EventLockRemoved, "Lock removed: "+brain.Truncate(lock.Text, summaryLen), nil)
			return &ev, nil
		}
		res = RemoveResult{Removed: false, Error: "Lock not found: " + lockID}
		return nil, nil
	})
	return res, err
}

// AddDecision prepends a decision and returns its id.
func (e *Engine) AddDecision(ctx context.Context, text string, tags []string, source brain.Source) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyText
	}
	dec := brain.Decision{
		ID:        brain.NewID("dec"),
		Text:      text,
		CreatedAt: brain.Now(),
		Source:    normalizeSource(source),
		Tags:      cleanTags(tags),
	}
	_, err := e.mutate(ctx, func(b *brain.Brain) (*brain.Event, error) {
		b.Decisions = append([]brain.Decision{dec}, b.Decisions...)
		ev := newEvent(brain.EventDecisionAdded, "Decision: "+brain.Truncate(text, summaryLen), nil)
		return &ev, nil
	})
	if err != nil {
		return "", err
	}
	return dec.ID, nil
}

// AddNote prepends a note and returns its id.
func (e *Engine) AddNote(ctx context.Context, text string, pinned bool) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyText
	}
	note := brain.Note{
		ID:        brain.NewID("note"),
		Text:      text,
		CreatedAt: brain.Now(),
		Pinned:    pinned,
	}
	_, err := e.mutate(ctx, func(b *brain.Brain) (*brain.Event, error) {
		b.Notes = append([]brain.Note{note}, b.Notes...)
		ev := newEvent(brain.EventNoteAdded, "Note: "+brain.Truncate(text, summaryLen), nil)
		return &ev, nil
	})
	if err != nil {
		return "", err
	}
	return note.ID, nil
}

// UpdateDeployFacts merges the fields present in u.
func (e *Engine) UpdateDeployFacts(ctx context.Context, u DeployUpdate) (brain.DeployFacts, error) {
	b, err := e.mutate(ctx, func(b *brain.Brain) (*brain.Event, error) {
		d := &b.Facts.Deploy
		if u.Provider != nil {
			d.Provider = *u.Provider
		}
		if u.AutoDeploy != nil {
			d.AutoDeploy = *u.AutoDeploy
		}
		if u.Branch != nil {
			d.Branch = *u.Branch
		}
		if u.URL != nil {
			d.URL = *u.URL
		}
		if u.Notes != nil {
			d.Notes = *u.Notes
		}
		ev := newEvent(brain.EventFactUpdated, "Updated deploy facts", nil)
		return &ev, nil
	})
	if err != nil {
		return brain.DeployFacts{}, err
	}
	return b.Facts.Deploy, nil
}

func normalizeSource(s brain.Source) brain.Source {
	if s == brain.SourceAgent {
		return brain.SourceAgent
	}
	return brain.SourceUser
}

// cleanTags trims, drops empties and de-duplicates, keeping order.
func cleanTags(tags []string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
