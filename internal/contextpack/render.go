package contextpack

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/HendryAvila/speclock/internal/brain"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

const (
	// LatestMarkdown is the file name of the rendered context document.
	LatestMarkdown = "latest.md"
	// LatestHTML is the file name of the optional HTML rendering.
	LatestHTML = "latest.html"
	// AgentRulesFile is written at the project root by setup.
	AgentRulesFile = "SPECLOCK.md"
)

// GenerateOptions controls side outputs of Generate.
type GenerateOptions struct {
	HTML bool
}

// Generate renders the markdown document, writes it to
// .speclock/context/latest.md and records a context_generated event.
func (r *Renderer) Generate(ctx context.Context, opts GenerateOptions) (string, error) {
	p, err := r.Pack(ctx)
	if err != nil {
		return "", err
	}
	md := Markdown(p)

	rel := brain.ContextPath(LatestMarkdown)
	abs := filepath.Join(r.eng.Root(), filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", fmt.Errorf("creating context directory: %w", err)
	}
	if err := os.WriteFile(abs, []byte(md), 0o644); err != nil {
		return "", fmt.Errorf("writing context: %w", err)
	}

	if opts.HTML {
		page, err := HTML(md)
		if err != nil {
			return "", err
		}
		if err := os.WriteFile(filepath.Join(filepath.Dir(abs), LatestHTML), page, 0o644); err != nil {
			return "", fmt.Errorf("writing html context: %w", err)
		}
	}

	if err := r.eng.RecordContextGenerated(ctx, rel); err != nil {
		return "", err
	}
	return md, nil
}

// Markdown renders a pack as the agent-facing document.
func Markdown(p *Pack) string {
	var sb strings.Builder

	sb.WriteString("# SpecLock Context Pack\n")
	fmt.Fprintf(&sb, "> Generated: %s\n", p.GeneratedAt)
	fmt.Fprintf(&sb, "> Project: **%s**\n", p.Project.Name)
	if p.Project.Branch != "" {
		fmt.Fprintf(&sb, "> Repo: branch `%s` @ `%s`\n", p.Project.Branch, shortHash(p.Project.Commit))
	}
	sb.WriteString("\n")

	sb.WriteString("## Goal\n")
	if p.Goal != "" {
		sb.WriteString(p.Goal + "\n\n")
	} else {
		sb.WriteString("*(No goal set yet)*\n\n")
	}

	sb.WriteString("## SpecLock (Non-Negotiables)\n")
	if len(p.Locks) > 0 {
		sb.WriteString("> **These constraints are mandatory. Do not violate any lock.**\n")
		for _, l := range p.Locks {
			fmt.Fprintf(&sb, "- **[LOCK]** %s _(%s, %s)_\n", l.Text, l.Source, datePart(l.CreatedAt))
		}
	} else {
		sb.WriteString("- *(No locks defined)*\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Key Decisions\n")
	if len(p.Decisions) > 0 {
		for _, d := range p.Decisions {
			fmt.Fprintf(&sb, "- **[DEC]** %s _(%s, %s)_\n", d.Text, d.Source, datePart(d.CreatedAt))
		}
	} else {
		sb.WriteString("- *(No decisions recorded)*\n")
	}
	sb.WriteString("\n")

	if d := p.DeployFacts; d.Provider != "" && d.Provider != "unknown" {
		sb.WriteString("## Deploy Facts\n")
		fmt.Fprintf(&sb, "- Provider: **%s**\n", d.Provider)
		if d.Branch != "" {
			fmt.Fprintf(&sb, "- Branch: `%s`\n", d.Branch)
		}
		fmt.Fprintf(&sb, "- Auto-deploy: %s\n", yesNo(d.AutoDeploy))
		if d.URL != "" {
			fmt.Fprintf(&sb, "- URL: %s\n", d.URL)
		}
		if d.Notes != "" {
			fmt.Fprintf(&sb, "- Notes: %s\n", d.Notes)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Recent Changes\n")
	if len(p.RecentChanges) > 0 {
		for _, c := range p.RecentChanges {
			files := ""
			if len(c.Files) > 0 {
				files = " (" + strings.Join(c.Files, ", ") + ")"
			}
			fmt.Fprintf(&sb, "- [%s] %s%s\n", secondPart(c.At), c.Summary, files)
		}
	} else {
		sb.WriteString("- *(No changes tracked yet)*\n")
	}
	sb.WriteString("\n")

	if len(p.Reverts) > 0 {
		sb.WriteString("## ⚠ Reverts Detected\n")
		sb.WriteString("> **WARNING: git HEAD moved without matching file activity. Verify the current state before proceeding.**\n")
		for _, rv := range p.Reverts {
			fmt.Fprintf(&sb, "- [REVERT] %s to `%s` at %s\n", rv.Kind, shortHash(rv.Target), secondPart(rv.At))
		}
		sb.WriteString("\n")
	}

	if s := p.LastSession; s != nil {
		sb.WriteString("## Last Session\n")
		fmt.Fprintf(&sb, "- Tool: **%s**\n", s.ToolUsed)
		ended := "still active"
		if s.EndedAt != nil {
			ended = *s.EndedAt
		}
		fmt.Fprintf(&sb, "- Ended: %s\n", ended)
		if s.Summary != "" {
			fmt.Fprintf(&sb, "- Summary: %s\n", s.Summary)
		}
		fmt.Fprintf(&sb, "- Events in session: %d\n\n", s.EventsInSession)
	}

	if len(p.Notes) > 0 {
		sb.WriteString("## Pinned Notes\n")
		for _, n := range p.Notes {
			fmt.Fprintf(&sb, "- **[NOTE]** %s\n", n.Text)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Agent Instructions\n")
	for i, line := range agentInstructions {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, line)
	}
	return sb.String()
}

var agentInstructions = []string{
	"Treat every SpecLock item as non-negotiable.",
	"Do not contradict a recorded decision without explicit user approval.",
	"Before editing, call `speclock_check_conflict` with a description of the change.",
	"If you notice drift from a constraint, stop and flag it. `speclock_detect_drift` checks proactively.",
	"Call `speclock_get_context` to refresh this document at any time.",
	"Call `speclock_session_summary` before ending your session.",
}

// HTML renders markdown with GitHub-flavoured extensions.
func HTML(md string) ([]byte, error) {
	gm := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var buf bytes.Buffer
	buf.WriteString("<!doctype html>\n<html><head><meta charset=\"utf-8\"><title>SpecLock Context</title></head><body>\n")
	if err := gm.Convert([]byte(md), &buf); err != nil {
		return nil, fmt.Errorf("rendering html: %w", err)
	}
	buf.WriteString("</body></html>\n")
	return buf.Bytes(), nil
}

// WriteAgentRules creates SPECLOCK.md at root unless it already exists.
// Reports whether the file was written.
func WriteAgentRules(root string) (bool, error) {
	path := filepath.Join(root, AgentRulesFile)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := os.WriteFile(path, []byte(agentRules), 0o644); err != nil {
		return false, fmt.Errorf("writing %s: %w", AgentRulesFile, err)
	}
	return true, nil
}

const agentRules = `# SpecLock

This project keeps persistent memory in ` + "`.speclock/`" + `. AI assistants working here must:

1. Start every session with ` + "`speclock_session_briefing`" + ` (or read ` + "`.speclock/context/latest.md`" + `).
2. Treat every lock as a non-negotiable constraint.
3. Run ` + "`speclock_check_conflict`" + ` before changing code that a lock might cover.
4. Record decisions with ` + "`speclock_add_decision`" + ` and notable changes with ` + "`speclock_log_change`" + `.
5. End the session with ` + "`speclock_session_summary`" + `.

CLI equivalents: ` + "`speclock context`, `speclock check \"<action>\"`, `speclock lock \"<text>\"`" + `.
`

func datePart(ts string) string {
	if len(ts) >= 10 {
		return ts[:10]
	}
	return ts
}

func secondPart(ts string) string {
	if len(ts) >= 19 {
		return ts[:19]
	}
	return ts
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
