// Package brain defines the SpecLock brain document and its on-disk store.
//
// The brain document is the single JSON aggregate holding a project's
// memory: goal, locks, decisions, notes, deploy facts, sessions and
// derived state. Every state change is also written as one line to an
// append-only event log next to it.
package brain

// CurrentVersion is the schema version written by this build.
const CurrentVersion = 2

// Collection bounds for derived state.
const (
	MaxRecentChanges  = 20
	MaxSessionHistory = 50
)

// EventType identifies the kind of state change an Event records.
type EventType string

const (
	EventInit              EventType = "init"
	EventGoalUpdated       EventType = "goal_updated"
	EventLockAdded         EventType = "lock_added"
	EventLockRemoved       EventType = "lock_removed"
	EventDecisionAdded     EventType = "decision_added"
	EventNoteAdded         EventType = "note_added"
	EventFactUpdated       EventType = "fact_updated"
	EventFileCreated       EventType = "file_created"
	EventFileChanged       EventType = "file_changed"
	EventFileDeleted       EventType = "file_deleted"
	EventRevertDetected    EventType = "revert_detected"
	EventContextGenerated  EventType = "context_generated"
	EventManualChange      EventType = "manual_change"
	EventSessionStarted    EventType = "session_started"
	EventSessionEnded      EventType = "session_ended"
	EventCheckpointCreated EventType = "checkpoint_created"
)

// EventTypes lists the whole event vocabulary in declaration order.
func EventTypes() []EventType {
	return []EventType{
		EventInit, EventGoalUpdated, EventLockAdded, EventLockRemoved,
		EventDecisionAdded, EventNoteAdded, EventFactUpdated,
		EventFileCreated, EventFileChanged, EventFileDeleted,
		EventRevertDetected, EventContextGenerated, EventManualChange,
		EventSessionStarted, EventSessionEnded, EventCheckpointCreated,
	}
}

// ValidEventType reports whether t belongs to the event vocabulary.
func ValidEventType(t EventType) bool {
	for _, known := range EventTypes() {
		if known == t {
			return true
		}
	}
	return false
}

// Source says who created a lock or decision.
type Source string

const (
	SourceUser  Source = "user"
	SourceAgent Source = "agent"
)

// Brain is the aggregate root persisted as brain.json.
type Brain struct {
	Version   int        `json:"version"`
	Project   Project    `json:"project"`
	Goal      Goal       `json:"goal"`
	SpecLock  SpecLock   `json:"specLock"`
	Decisions []Decision `json:"decisions"`
	Notes     []Note     `json:"notes"`
	Facts     Facts      `json:"facts"`
	Sessions  Sessions   `json:"sessions"`
	State     State      `json:"state"`
	Events    Counter    `json:"events"`
}

// Project identifies the repository root.
type Project struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Root      string `json:"root"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// Goal is the single project goal. Overwritten, never versioned.
type Goal struct {
	Text      string `json:"text"`
	UpdatedAt string `json:"updatedAt"`
}

// SpecLock holds the lock collection, newest first.
type SpecLock struct {
	Items []Lock `json:"items"`
}

// Lock is a non-negotiable constraint. Removal flips Active, the record stays.
type Lock struct {
	ID        string   `json:"id"`
	Text      string   `json:"text"`
	CreatedAt string   `json:"createdAt"`
	Source    Source   `json:"source"`
	Tags      []string `json:"tags"`
	Active    bool     `json:"active"`
}

// Decision records an architectural or product decision.
type Decision struct {
	ID        string   `json:"id"`
	Text      string   `json:"text"`
	CreatedAt string   `json:"createdAt"`
	Source    Source   `json:"source"`
	Tags      []string `json:"tags"`
}

// Note is free-form project knowledge. Pinned notes go into the context pack.
type Note struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	CreatedAt string `json:"createdAt"`
	Pinned    bool   `json:"pinned"`
}

// Facts groups deploy and repository facts.
type Facts struct {
	Deploy DeployFacts `json:"deploy"`
	Repo   RepoFacts   `json:"repo"`
}

// DeployFacts describes how the project ships.
type DeployFacts struct {
	Provider   string `json:"provider"`
	AutoDeploy bool   `json:"autoDeploy"`
	Branch     string `json:"branch"`
	URL        string `json:"url"`
	Notes      string `json:"notes"`
}

// RepoFacts are captured from version control at init.
type RepoFacts struct {
	DefaultBranch string `json:"defaultBranch"`
	HasGit        bool   `json:"hasGit"`
}

// Sessions holds the open session and the closed ones, newest first.
type Sessions struct {
	Current *Session  `json:"current"`
	History []Session `json:"history"`
}

// Session is a bounded span of assistant activity.
type Session struct {
	ID              string  `json:"id"`
	StartedAt       string  `json:"startedAt"`
	EndedAt         *string `json:"endedAt"`
	Summary         string  `json:"summary"`
	ToolUsed        string  `json:"toolUsed"`
	EventsInSession int     `json:"eventsInSession"`
}

// State is derived data cached on the document for fast rendering.
type State struct {
	Head          Head           `json:"head"`
	RecentChanges []RecentChange `json:"recentChanges"`
	Reverts       []Revert       `json:"reverts"`
}

// Head is the last observed version-control head.
type Head struct {
	GitBranch  string `json:"gitBranch"`
	GitCommit  string `json:"gitCommit"`
	CapturedAt string `json:"capturedAt"`
}

// RecentChange mirrors a file or manual change event.
type RecentChange struct {
	EventID string   `json:"eventId"`
	Summary string   `json:"summary"`
	Files   []string `json:"files"`
	At      string   `json:"at"`
}

// Revert records a head movement that no file activity explains.
type Revert struct {
	EventID string `json:"eventId"`
	Kind    string `json:"kind"`
	Target  string `json:"target"`
	At      string `json:"at"`
	Note    string `json:"note"`
}

// Counter caches event log totals for status display.
type Counter struct {
	LastEventID string `json:"lastEventId"`
	Count       int    `json:"count"`
}

// Event is one immutable line of events.log.
type Event struct {
	EventID   string    `json:"eventId"`
	Type      EventType `json:"type"`
	At        string    `json:"at"`
	Files     []string  `json:"files"`
	Summary   string    `json:"summary"`
	PatchPath string    `json:"patchPath"`
}

// EventFilter narrows ReadEvents. Zero values disable a filter.
type EventFilter struct {
	Type  EventType
	Since string
	Limit int
}

func (f EventFilter) matches(ev Event) bool {
	if f.Type != "" && ev.Type != f.Type {
		return false
	}
	return f.Since == "" || ev.At >= f.Since
}

// ActiveLocks returns the active locks, newest first.
func (b *Brain) ActiveLocks() []Lock {
	var out []Lock
	for _, l := range b.SpecLock.Items {
		if l.Active {
			out = append(out, l)
		}
	}
	return out
}

// PinnedNotes returns pinned notes, newest first.
func (b *Brain) PinnedNotes() []Note {
	var out []Note
	for _, n := range b.Notes {
		if n.Pinned {
			out = append(out, n)
		}
	}
	return out
}

// LastSession returns the most recently closed session, or nil.
func (b *Brain) LastSession() *Session {
	if len(b.Sessions.History) == 0 {
		return nil
	}
	s := b.Sessions.History[0]
	return &s
}

// PushRecentChange prepends c and trims to MaxRecentChanges.
func (b *Brain) PushRecentChange(c RecentChange) {
	b.State.RecentChanges = append([]RecentChange{c}, b.State.RecentChanges...)
	if len(b.State.RecentChanges) > MaxRecentChanges {
		b.State.RecentChanges = b.State.RecentChanges[:MaxRecentChanges]
	}
}

// PushHistory prepends s to the session history and trims the oldest.
func (b *Brain) PushHistory(s Session) {
	b.Sessions.History = append([]Session{s}, b.Sessions.History...)
	if len(b.Sessions.History) > MaxSessionHistory {
		b.Sessions.History = b.Sessions.History[:MaxSessionHistory]
	}
}
