package contextpack

import (
	"fmt"
	"strings"

	"github.com/HendryAvila/speclock/internal/brain"
	"github.com/HendryAvila/speclock/internal/engine"
	"github.com/HendryAvila/speclock/internal/vcs"
)

// Text renderings of engine reports, shared by the MCP tools and the CLI.

// BriefingMarkdown renders a session briefing followed by the context
// document.
func BriefingMarkdown(b *engine.Briefing, contextMD string) string {
	var sb strings.Builder
	sb.WriteString("# SpecLock Session Briefing\n")
	fmt.Fprintf(&sb, "Session started (%s). ID: %s\n\n", b.Session.ToolUsed, b.Session.ID)

	if s := b.LastSession; s != nil {
		sb.WriteString("## Last Session\n")
		fmt.Fprintf(&sb, "- Tool: **%s**\n", s.ToolUsed)
		ended := "unknown"
		if s.EndedAt != nil {
			ended = *s.EndedAt
		}
		fmt.Fprintf(&sb, "- Ended: %s\n", ended)
		if s.Summary != "" {
			fmt.Fprintf(&sb, "- Summary: %s\n", s.Summary)
		}
		fmt.Fprintf(&sb, "- Events: %d\n", s.EventsInSession)
		fmt.Fprintf(&sb, "- Changes since then: %d\n\n", b.ChangesSinceLast)
	}

	if len(b.Warnings) > 0 {
		sb.WriteString("## ⚠ Warnings\n")
		for _, w := range b.Warnings {
			fmt.Fprintf(&sb, "- %s\n", w)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("---\n")
	sb.WriteString(contextMD)
	return sb.String()
}

// ChangesText lists recent changes, newest first.
func ChangesText(changes []brain.RecentChange) string {
	if len(changes) == 0 {
		return "No changes tracked yet."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Recent changes (%d):\n", len(changes))
	for _, c := range changes {
		files := ""
		if len(c.Files) > 0 {
			files = " (" + strings.Join(c.Files, ", ") + ")"
		}
		fmt.Fprintf(&sb, "- [%s] %s%s\n", secondPart(c.At), c.Summary, files)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// EventsText lists events, newest first.
func EventsText(events []brain.Event) string {
	if len(events) == 0 {
		return "No events found."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Events (%d):\n", len(events))
	for _, ev := range events {
		fmt.Fprintf(&sb, "- [%s] %s: %s\n", secondPart(ev.At), ev.Type, ev.Summary)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// RepoStatusText renders the working tree state and diff statistics.
func RepoStatusText(st vcs.Status, stats vcs.PatchStats) string {
	lines := []string{
		"Branch: " + st.Branch,
		"Commit: " + st.Commit,
		"",
		fmt.Sprintf("Changed files (%d):", len(st.ChangedFiles)),
	}
	if len(st.ChangedFiles) == 0 {
		lines = append(lines, "  (clean working tree)")
	}
	for _, f := range st.ChangedFiles {
		lines = append(lines, fmt.Sprintf("  %s %s", f.Status, f.File))
	}
	if len(stats.Files) > 0 {
		lines = append(lines, "", "Diff summary: "+stats.String())
		for _, f := range stats.Files {
			lines = append(lines, fmt.Sprintf("  %s | +%d -%d", f.Path, f.Added, f.Removed))
		}
	}
	return strings.Join(lines, "\n")
}

// ConflictText renders a conflict check; the analysis already carries the
// per-lock detail.
func ConflictText(r engine.ConflictResult) string {
	return r.Analysis
}

// SuggestionsMarkdown renders lock suggestions.
func SuggestionsMarkdown(r engine.SuggestionReport) string {
	if len(r.Suggestions) == 0 {
		return fmt.Sprintf("No suggestions at this time. You have %d active lock(s). Record more decisions and notes to get lock suggestions.", r.TotalLocks)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Lock Suggestions (%d)\n\nCurrent active locks: %d\n\n", len(r.Suggestions), r.TotalLocks)
	for i, s := range r.Suggestions {
		source := s.Source
		if s.SourceID != "" {
			source += " (" + s.SourceID + ")"
		}
		fmt.Fprintf(&sb, "%d. **%q**\n   Source: %s\n   Reason: %s\n\n", i+1, s.Text, source, s.Reason)
	}
	sb.WriteString("To add any suggestion as a lock, call `speclock_add_lock` with the text.")
	return sb.String()
}

// DriftMarkdown renders a drift report.
func DriftMarkdown(r engine.DriftReport) string {
	if r.Status != engine.DriftDetected {
		return r.Message
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Drift Report\n\n%s\n\n", r.Message)
	for _, d := range r.Drifts {
		fmt.Fprintf(&sb, "- [%s] Change: %q (%s)\n", strings.ToUpper(d.Severity), d.ChangeSummary, secondPart(d.ChangeAt))
		if d.Kind == engine.DriftKindLock {
			fmt.Fprintf(&sb, "  Lock: %q\n  Matched: %s\n", d.LockText, strings.Join(d.MatchedTerms, ", "))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Review each drift and take corrective action if needed.")
	return sb.String()
}

// HealthMarkdown renders a health report.
func HealthMarkdown(r engine.HealthReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## SpecLock Health Check\n\nScore: **%d/100** (Grade: %s)\nEvents: %d | Reverts: %d\n\n### Checks\n", r.Score, r.Grade, r.Events, r.Reverts)
	for _, c := range r.Checks {
		mark := "[MISS]"
		if c.Passed {
			mark = "[PASS]"
		}
		fmt.Fprintf(&sb, "%s %s\n", mark, c.Detail)
	}
	if len(r.Timeline) > 0 {
		sb.WriteString("\n## Multi-Agent Timeline\n")
		for _, a := range r.Timeline {
			last := "unknown"
			if len(a.LastUsed) >= 16 {
				last = a.LastUsed[:16]
			}
			recent := "(no summaries)"
			if len(a.Summaries) > 0 {
				quoted := make([]string, len(a.Summaries))
				for i, s := range a.Summaries {
					quoted[i] = fmt.Sprintf("%q", s)
				}
				recent = strings.Join(quoted, ", ")
			}
			fmt.Fprintf(&sb, "- **%s**: %d session(s), last active %s\n  Recent: %s\n", a.Tool, a.Sessions, last, recent)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
