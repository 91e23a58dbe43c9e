package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/speclock/internal/brain"
)

// autoClosedSummary is stamped on a session closed by a newer one.
const autoClosedSummary = "Session auto-closed (new session started)"

// EndResult reports the outcome of EndSession.
type EndResult struct {
	Ended   bool           `json:"ended"`
	Session *brain.Session `json:"session,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Briefing is what an agent needs at the start of a session.
type Briefing struct {
	Brain            *brain.Brain   `json:"brain"`
	Session          brain.Session  `json:"session"`
	LastSession      *brain.Session `json:"lastSession"`
	ChangesSinceLast int            `json:"changesSinceLastSession"`
	RevertsSinceLast int            `json:"revertsSinceLastSession"`
	Warnings         []string       `json:"warnings"`
}

// StartSession opens a session for tool, auto-closing an open one first.
func (e *Engine) StartSession(ctx context.Context, tool string) (brain.Session, error) {
	tool = strings.TrimSpace(tool)
	if tool == "" {
		tool = "unknown"
	}
	var started brain.Session
	_, err := e.mutate(ctx, func(b *brain.Brain) (*brain.Event, error) {
		now := brain.Now()
		if cur := b.Sessions.Current; cur != nil {
			ended := now
			cur.EndedAt = &ended
			if cur.Summary == "" {
				cur.Summary = autoClosedSummary
			}
			b.PushHistory(*cur)
		}
		started = brain.Session{
			ID:        brain.NewID("ses"),
			StartedAt: now,
			ToolUsed:  tool,
		}
		b.Sessions.Current = &started
		ev := newEvent(brain.EventSessionStarted, fmt.Sprintf("Session started (%s)", tool), nil)
		return &ev, nil
	})
	return started, err
}

// EndSession closes the current session with summary.
func (e *Engine) EndSession(ctx context.Context, summary string) (EndResult, error) {
	var res EndResult
	_, err := e.mutate(ctx, func(b *brain.Brain) (*brain.Event, error) {
		cur := b.Sessions.Current
		if cur == nil {
			res = EndResult{Ended: false, Error: "No active session to end."}
			return nil, nil
		}
		events, err := e.store.ReadEvents(e.root, brain.EventFilter{Since: cur.StartedAt})
		if err != nil {
			return nil, fmt.Errorf("counting session events: %w", err)
		}

		ended := brain.Now()
		closed := *cur
		closed.EndedAt = &ended
		closed.Summary = strings.TrimSpace(summary)
		closed.EventsInSession = len(events)

		b.PushHistory(closed)
		b.Sessions.Current = nil
		res = EndResult{Ended: true, Session: &closed}

		ev := newEvent(brain.EventSessionEnded, "Session ended: "+brain.Truncate(closed.Summary, 100), nil)
		return &ev, nil
	})
	return res, err
}

// SessionBriefing starts a session and reports what happened since the
// previous one ended.
func (e *Engine) SessionBriefing(ctx context.Context, tool string) (*Briefing, error) {
	session, err := e.StartSession(ctx, tool)
	if err != nil {
		return nil, err
	}
	b, err := e.EnsureInit(ctx)
	if err != nil {
		return nil, err
	}

	brief := &Briefing{Brain: b, Session: session, Warnings: []string{}}
	last := b.LastSession()
	if last == nil {
		return brief, nil
	}
	brief.LastSession = last

	since := last.StartedAt
	if last.EndedAt != nil {
		since = *last.EndedAt
	}
	events, err := e.store.ReadEvents(e.root, brain.EventFilter{Since: since})
	if err != nil {
		return nil, fmt.Errorf("reading events since last session: %w", err)
	}
	brief.ChangesSinceLast = len(events)
	for _, ev := range events {
		if ev.Type == brain.EventRevertDetected {
			brief.RevertsSinceLast++
		}
	}
	if brief.RevertsSinceLast > 0 {
		brief.Warnings = append(brief.Warnings, fmt.Sprintf(
			"%d revert(s) detected since last session. Verify current state before proceeding.",
			brief.RevertsSinceLast))
	}
	return brief, nil
}
