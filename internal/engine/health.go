package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/HendryAvila/speclock/internal/brain"
)

// HealthCheck is one weighted completeness criterion.
type HealthCheck struct {
	Name   string `json:"name"`
	Weight int    `json:"weight"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// AgentActivity aggregates closed sessions per tool.
type AgentActivity struct {
	Tool      string   `json:"tool"`
	Sessions  int      `json:"sessions"`
	LastUsed  string   `json:"lastUsed"`
	Summaries []string `json:"summaries"`
}

// HealthReport scores how complete a project's memory is.
type HealthReport struct {
	Score    int             `json:"score"`
	Grade    string          `json:"grade"`
	Events   int             `json:"events"`
	Reverts  int             `json:"reverts"`
	Checks   []HealthCheck   `json:"checks"`
	Timeline []AgentActivity `json:"timeline"`
}

// Health evaluates the project memory against the weighted checks.
func (e *Engine) Health(ctx context.Context) (HealthReport, error) {
	b, err := e.EnsureInit(ctx)
	if err != nil {
		return HealthReport{}, err
	}
	checks := healthChecks(b)

	report := HealthReport{
		Events:   b.Events.Count,
		Reverts:  len(b.State.Reverts),
		Checks:   checks,
		Timeline: agentTimeline(b.Sessions.History),
	}
	for _, c := range checks {
		if c.Passed {
			report.Score += c.Weight
		}
	}
	report.Grade = grade(report.Score)
	return report, nil
}

func healthChecks(b *brain.Brain) []HealthCheck {
	locks := len(b.ActiveLocks())
	check := func(name string, weight int, passed bool, pass, miss string) HealthCheck {
		detail := miss
		if passed {
			detail = pass
		}
		return HealthCheck{Name: name, Weight: weight, Passed: passed, Detail: detail}
	}
	return []HealthCheck{
		check("goal", 20, b.Goal.Text != "", "Goal is set", "No project goal set"),
		check("locks", 25, locks > 0, fmt.Sprintf("%d active lock(s)", locks), "No SpecLock constraints defined"),
		check("decisions", 15, len(b.Decisions) > 0, fmt.Sprintf("%d decision(s) recorded", len(b.Decisions)), "No decisions recorded"),
		check("notes", 10, len(b.Notes) > 0, fmt.Sprintf("%d note(s)", len(b.Notes)), "No notes added"),
		check("sessions", 15, len(b.Sessions.History) > 0, fmt.Sprintf("%d session(s) in history", len(b.Sessions.History)), "No session history yet"),
		check("changes", 10, len(b.State.RecentChanges) > 0, fmt.Sprintf("%d change(s) tracked", len(b.State.RecentChanges)), "No changes tracked"),
		check("deploy", 5, b.Facts.Deploy.Provider != "unknown", "Deploy facts configured", "Deploy facts not configured"),
	}
}

func grade(score int) string {
	switch {
	case score >= 80:
		return "A"
	case score >= 60:
		return "B"
	case score >= 40:
		return "C"
	case score >= 20:
		return "D"
	default:
		return "F"
	}
}

// agentTimeline groups session history by tool, most active first.
func agentTimeline(history []brain.Session) []AgentActivity {
	byTool := map[string]*AgentActivity{}
	var order []string
	for _, s := range history {
		tool := s.ToolUsed
		if tool == "" {
			tool = "unknown"
		}
		a, ok := byTool[tool]
		if !ok {
			a = &AgentActivity{Tool: tool, Summaries: []string{}}
			byTool[tool] = a
			order = append(order, tool)
		}
		a.Sessions++
		last := s.StartedAt
		if s.EndedAt != nil {
			last = *s.EndedAt
		}
		if last > a.LastUsed {
			a.LastUsed = last
		}
		if s.Summary != "" && len(a.Summaries) < 3 {
			a.Summaries = append(a.Summaries, brain.Truncate(s.Summary, 80))
		}
	}

	out := make([]AgentActivity, 0, len(order))
	for _, tool := range order {
		out = append(out, *byTool[tool])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Sessions > out[j].Sessions
	})
	return out
}
