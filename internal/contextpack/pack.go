// Package contextpack projects the brain document into a snapshot an
// agent can read: a structured Pack plus a markdown rendering of it.
package contextpack

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/HendryAvila/speclock/internal/brain"
	"github.com/HendryAvila/speclock/internal/engine"
	"gopkg.in/yaml.v3"
)

// Slice limits applied to newest-first collections.
const (
	maxLocks     = 15
	maxDecisions = 12
	maxChanges   = 20
	maxReverts   = 10
	maxNotes     = 10
)

// Pack is a point-in-time snapshot of project memory.
type Pack struct {
	Project        ProjectInfo          `json:"project" yaml:"project"`
	Goal           string               `json:"goal" yaml:"goal"`
	Locks          []Item               `json:"locks" yaml:"locks"`
	Decisions      []Item               `json:"decisions" yaml:"decisions"`
	DeployFacts    brain.DeployFacts    `json:"deployFacts" yaml:"deployFacts"`
	RecentChanges  []brain.RecentChange `json:"recentChanges" yaml:"recentChanges"`
	Reverts        []brain.Revert       `json:"reverts" yaml:"reverts"`
	LastSession    *brain.Session       `json:"lastSession" yaml:"lastSession"`
	CurrentSession *brain.Session       `json:"currentSession" yaml:"currentSession"`
	Notes          []Item               `json:"notes" yaml:"notes"`
	GeneratedAt    string               `json:"generatedAt" yaml:"generatedAt"`
}

// ProjectInfo identifies the project and its live git position.
type ProjectInfo struct {
	Name   string `json:"name" yaml:"name"`
	Root   string `json:"root" yaml:"root"`
	Branch string `json:"branch" yaml:"branch"`
	Commit string `json:"commit" yaml:"commit"`
}

// Item is a lock, decision or pinned note as shown in the pack.
type Item struct {
	ID        string `json:"id" yaml:"id"`
	Text      string `json:"text" yaml:"text"`
	CreatedAt string `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
	Source    string `json:"source,omitempty" yaml:"source,omitempty"`
}

// Renderer builds packs from an engine.
type Renderer struct {
	eng *engine.Engine
}

// NewRenderer creates a Renderer bound to eng.
func NewRenderer(eng *engine.Engine) *Renderer {
	return &Renderer{eng: eng}
}

// Pack assembles the snapshot. Git position is read live when the
// project has a repository.
func (r *Renderer) Pack(ctx context.Context) (*Pack, error) {
	b, err := r.eng.EnsureInit(ctx)
	if err != nil {
		return nil, err
	}
	p := &Pack{
		Project:        ProjectInfo{Name: b.Project.Name, Root: b.Project.Root},
		Goal:           b.Goal.Text,
		Locks:          []Item{},
		Decisions:      []Item{},
		DeployFacts:    b.Facts.Deploy,
		RecentChanges:  head(b.State.RecentChanges, maxChanges),
		Reverts:        head(b.State.Reverts, maxReverts),
		LastSession:    b.LastSession(),
		CurrentSession: b.Sessions.Current,
		Notes:          []Item{},
		GeneratedAt:    brain.Now(),
	}
	if b.Facts.Repo.HasGit {
		st := r.eng.VCS().Status(ctx, r.eng.Root())
		p.Project.Branch, p.Project.Commit = st.Branch, st.Commit
	}
	for _, l := range head(b.ActiveLocks(), maxLocks) {
		p.Locks = append(p.Locks, Item{ID: l.ID, Text: l.Text, CreatedAt: l.CreatedAt, Source: string(l.Source)})
	}
	for _, d := range head(b.Decisions, maxDecisions) {
		p.Decisions = append(p.Decisions, Item{ID: d.ID, Text: d.Text, CreatedAt: d.CreatedAt, Source: string(d.Source)})
	}
	for _, n := range head(b.PinnedNotes(), maxNotes) {
		p.Notes = append(p.Notes, Item{ID: n.ID, Text: n.Text})
	}
	return p, nil
}

// Encode serializes a pack as "json" or "yaml".
func Encode(p *Pack, format string) ([]byte, error) {
	switch format {
	case "json", "":
		return json.MarshalIndent(p, "", "  ")
	case "yaml":
		return yaml.Marshal(p)
	default:
		return nil, fmt.Errorf("unsupported format %q (want json or yaml)", format)
	}
}

// head returns at most n leading elements, never nil.
func head[T any](s []T, n int) []T {
	if len(s) > n {
		s = s[:n]
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}
