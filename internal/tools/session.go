package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/HendryAvila/speclock/internal/brain"
	"github.com/HendryAvila/speclock/internal/contextpack"
	"github.com/HendryAvila/speclock/internal/engine"
	"github.com/mark3labs/mcp-go/mcp"
)

// SessionBriefingTool handles the speclock_session_briefing MCP tool.
type SessionBriefingTool struct {
	eng      *engine.Engine
	renderer *contextpack.Renderer
	opts     contextpack.GenerateOptions
}

// NewSessionBriefingTool creates a SessionBriefingTool.
func NewSessionBriefingTool(eng *engine.Engine, renderer *contextpack.Renderer, opts contextpack.GenerateOptions) *SessionBriefingTool {
	return &SessionBriefingTool{eng: eng, renderer: renderer, opts: opts}
}

// Definition returns the MCP tool definition for speclock_session_briefing.
func (t *SessionBriefingTool) Definition() mcp.Tool {
	return mcp.NewTool("speclock_session_briefing",
		mcp.WithDescription(
			"Start a new session and get a full briefing: the context pack plus what happened since the "+
				"last session, including revert warnings. Call this at the very beginning of every conversation.",
		),
		mcp.WithString("tool_name",
			mcp.Description("Which AI tool is calling (claude-code, cursor, codex, windsurf, cline, ...). Default: unknown"),
		),
	)
}

// Handle processes the speclock_session_briefing tool call.
func (t *SessionBriefingTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	brief, err := t.eng.SessionBriefing(ctx, req.GetString("tool_name", "unknown"))
	if err != nil {
		return failure("start session", err), nil
	}
	md, err := t.renderer.Generate(ctx, t.opts)
	if err != nil {
		return failure("generate context", err), nil
	}
	return mcp.NewToolResultText(contextpack.BriefingMarkdown(brief, md)), nil
}

// SessionSummaryTool handles the speclock_session_summary MCP tool.
type SessionSummaryTool struct {
	eng *engine.Engine
}

// NewSessionSummaryTool creates a SessionSummaryTool.
func NewSessionSummaryTool(eng *engine.Engine) *SessionSummaryTool {
	return &SessionSummaryTool{eng: eng}
}

// Definition returns the MCP tool definition for speclock_session_summary.
func (t *SessionSummaryTool) Definition() mcp.Tool {
	return mcp.NewTool("speclock_session_summary",
		mcp.WithDescription("End the current session and record what was accomplished. Call this before the conversation ends."),
		mcp.WithString("summary",
			mcp.Required(),
			mcp.Description("What was accomplished in this session"),
		),
	)
}

// Handle processes the speclock_session_summary tool call.
func (t *SessionSummaryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summary, bad := required(req, "summary")
	if bad != nil {
		return bad, nil
	}
	res, err := t.eng.EndSession(ctx, summary)
	if err != nil {
		return failure("end session", err), nil
	}
	if !res.Ended {
		return mcp.NewToolResultError(res.Error), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"Session ended. Duration: %d min. Events: %d. Summary: %q",
		sessionMinutes(res.Session), res.Session.EventsInSession, summary,
	)), nil
}

func sessionMinutes(s *brain.Session) int {
	if s == nil || s.EndedAt == nil {
		return 0
	}
	start, err := brain.ParseTime(s.StartedAt)
	if err != nil {
		return 0
	}
	end, err := brain.ParseTime(*s.EndedAt)
	if err != nil {
		return 0
	}
	return int(end.Sub(start).Round(time.Minute).Minutes())
}
