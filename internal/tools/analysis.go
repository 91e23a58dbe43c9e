package tools

import (
	"context"

	"github.com/HendryAvila/speclock/internal/contextpack"
	"github.com/HendryAvila/speclock/internal/engine"
	"github.com/mark3labs/mcp-go/mcp"
)

// outputFormat reads the optional "format" argument shared by the
// analysis tools: text (default) or json.
func outputFormat(req mcp.CallToolRequest) string {
	if req.GetString("format", "text") == "json" {
		return "json"
	}
	return "text"
}

func withFormat() mcp.ToolOption {
	return mcp.WithString("format",
		mcp.Description("Output format: text (default) or json"),
		mcp.Enum("text", "json"),
	)
}

// ─── CheckConflictTool ──────────────────────────────────────────────────────

// CheckConflictTool handles the speclock_check_conflict MCP tool.
type CheckConflictTool struct {
	eng *engine.Engine
}

// NewCheckConflictTool creates a CheckConflictTool.
func NewCheckConflictTool(eng *engine.Engine) *CheckConflictTool {
	return &CheckConflictTool{eng: eng}
}

// Definition returns the MCP tool definition for speclock_check_conflict.
func (t *CheckConflictTool) Definition() mcp.Tool {
	return mcp.NewTool("speclock_check_conflict",
		mcp.WithDescription(
			"Check whether a proposed action conflicts with any active lock. Call this before every "+
				"significant change. On a HIGH confidence conflict, stop and ask the user.",
		),
		mcp.WithString("proposed_action",
			mcp.Required(),
			mcp.Description("Description of the action you plan to take"),
		),
		withFormat(),
	)
}

// Handle processes the speclock_check_conflict tool call.
func (t *CheckConflictTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	action, bad := required(req, "proposed_action")
	if bad != nil {
		return bad, nil
	}
	res, err := t.eng.CheckConflict(ctx, action)
	if err != nil {
		return failure("check conflicts", err), nil
	}
	if outputFormat(req) == "json" {
		return jsonResult(res)
	}
	return mcp.NewToolResultText(contextpack.ConflictText(res)), nil
}

// ─── SuggestLocksTool ───────────────────────────────────────────────────────

// SuggestLocksTool handles the speclock_suggest_locks MCP tool.
type SuggestLocksTool struct {
	eng *engine.Engine
}

// NewSuggestLocksTool creates a SuggestLocksTool.
func NewSuggestLocksTool(eng *engine.Engine) *SuggestLocksTool {
	return &SuggestLocksTool{eng: eng}
}

// Definition returns the MCP tool definition for speclock_suggest_locks.
func (t *SuggestLocksTool) Definition() mcp.Tool {
	return mcp.NewTool("speclock_suggest_locks",
		mcp.WithDescription(
			"Suggest new locks from commitment and prohibition language in decisions and notes, "+
				"plus common constraints the project mentions but has not locked.",
		),
		withFormat(),
	)
}

// Handle processes the speclock_suggest_locks tool call.
func (t *SuggestLocksTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := t.eng.SuggestLocks(ctx)
	if err != nil {
		return failure("suggest locks", err), nil
	}
	if outputFormat(req) == "json" {
		return jsonResult(res)
	}
	return mcp.NewToolResultText(contextpack.SuggestionsMarkdown(res)), nil
}

// ─── DetectDriftTool ────────────────────────────────────────────────────────

// DetectDriftTool handles the speclock_detect_drift MCP tool.
type DetectDriftTool struct {
	eng *engine.Engine
}

// NewDetectDriftTool creates a DetectDriftTool.
func NewDetectDriftTool(eng *engine.Engine) *DetectDriftTool {
	return &DetectDriftTool{eng: eng}
}

// Definition returns the MCP tool definition for speclock_detect_drift.
func (t *DetectDriftTool) Definition() mcp.Tool {
	return mcp.NewTool("speclock_detect_drift",
		mcp.WithDescription(
			"Scan recent changes against active locks for likely violations, and surface detected reverts. "+
				"Use this proactively.",
		),
		withFormat(),
	)
}

// Handle processes the speclock_detect_drift tool call.
func (t *DetectDriftTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := t.eng.DetectDrift(ctx)
	if err != nil {
		return failure("detect drift", err), nil
	}
	if outputFormat(req) == "json" {
		return jsonResult(res)
	}
	return mcp.NewToolResultText(contextpack.DriftMarkdown(res)), nil
}

// ─── HealthTool ─────────────────────────────────────────────────────────────

// HealthTool handles the speclock_health MCP tool.
type HealthTool struct {
	eng *engine.Engine
}

// NewHealthTool creates a HealthTool.
func NewHealthTool(eng *engine.Engine) *HealthTool {
	return &HealthTool{eng: eng}
}

// Definition returns the MCP tool definition for speclock_health.
func (t *HealthTool) Definition() mcp.Tool {
	return mcp.NewTool("speclock_health",
		mcp.WithDescription("Score how complete the project memory is and show the multi-agent session timeline."),
		withFormat(),
	)
}

// Handle processes the speclock_health tool call.
func (t *HealthTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := t.eng.Health(ctx)
	if err != nil {
		return failure("compute health", err), nil
	}
	if outputFormat(req) == "json" {
		return jsonResult(res)
	}
	return mcp.NewToolResultText(contextpack.HealthMarkdown(res)), nil
}
