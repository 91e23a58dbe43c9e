package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/speclock/internal/brain"
	"github.com/HendryAvila/speclock/internal/contextpack"
	"github.com/HendryAvila/speclock/internal/engine"
	"github.com/mark3labs/mcp-go/mcp"
)

// ─── LogChangeTool ──────────────────────────────────────────────────────────

// LogChangeTool handles the speclock_log_change MCP tool.
type LogChangeTool struct {
	eng *engine.Engine
}

// NewLogChangeTool creates a LogChangeTool.
func NewLogChangeTool(eng *engine.Engine) *LogChangeTool {
	return &LogChangeTool{eng: eng}
}

// Definition returns the MCP tool definition for speclock_log_change.
func (t *LogChangeTool) Definition() mcp.Tool {
	return mcp.NewTool("speclock_log_change",
		mcp.WithDescription(
			"Log a significant change so it shows up in the context pack. The current git diff is "+
				"captured as a patch when there is one.",
		),
		mcp.WithString("summary",
			mcp.Required(),
			mcp.Description("Brief description of the change"),
		),
		mcp.WithArray("files",
			mcp.WithStringItems(),
			mcp.Description("Files affected (defaults to the files in the current diff)"),
		),
	)
}

// Handle processes the speclock_log_change tool call.
func (t *LogChangeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summary, bad := required(req, "summary")
	if bad != nil {
		return bad, nil
	}
	ev, err := t.eng.LogChange(ctx, summary, stringsArg(req, "files"))
	if err != nil {
		return failure("log change", err), nil
	}
	text := fmt.Sprintf("Change logged (%s): %q", ev.EventID, summary)
	if ev.PatchPath != "" {
		text += "\nPatch: " + ev.PatchPath
	}
	return mcp.NewToolResultText(text), nil
}

// ─── GetChangesTool ─────────────────────────────────────────────────────────

// GetChangesTool handles the speclock_get_changes MCP tool.
type GetChangesTool struct {
	eng *engine.Engine
}

// NewGetChangesTool creates a GetChangesTool.
func NewGetChangesTool(eng *engine.Engine) *GetChangesTool {
	return &GetChangesTool{eng: eng}
}

// Definition returns the MCP tool definition for speclock_get_changes.
func (t *GetChangesTool) Definition() mcp.Tool {
	return mcp.NewTool("speclock_get_changes",
		mcp.WithDescription("List recent changes tracked by SpecLock, newest first."),
		mcp.WithNumber("limit",
			mcp.Description("Max changes to return, 1-100 (default: 20)"),
		),
	)
}

// Handle processes the speclock_get_changes tool call.
func (t *GetChangesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	b, err := t.eng.EnsureInit(ctx)
	if err != nil {
		return failure("read changes", err), nil
	}
	changes := b.State.RecentChanges
	if limit := clamp(intArg(req, "limit", 20), 1, 100); len(changes) > limit {
		changes = changes[:limit]
	}
	return mcp.NewToolResultText(contextpack.ChangesText(changes)), nil
}

// ─── GetEventsTool ──────────────────────────────────────────────────────────

// GetEventsTool handles the speclock_get_events MCP tool.
type GetEventsTool struct {
	eng *engine.Engine
}

// NewGetEventsTool creates a GetEventsTool.
func NewGetEventsTool(eng *engine.Engine) *GetEventsTool {
	return &GetEventsTool{eng: eng}
}

// Definition returns the MCP tool definition for speclock_get_events.
func (t *GetEventsTool) Definition() mcp.Tool {
	types := make([]string, 0, len(brain.EventTypes()))
	for _, et := range brain.EventTypes() {
		types = append(types, string(et))
	}
	return mcp.NewTool("speclock_get_events",
		mcp.WithDescription("Read the event log, newest first, optionally filtered by type and start time."),
		mcp.WithString("type",
			mcp.Description("Event type filter: "+strings.Join(types, ", ")),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max events to return, 1-200 (default: 50)"),
		),
		mcp.WithString("since",
			mcp.Description("ISO timestamp; only events at or after this time"),
		),
	)
}

// Handle processes the speclock_get_events tool call.
func (t *GetEventsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := brain.EventFilter{
		Type:  brain.EventType(req.GetString("type", "")),
		Since: req.GetString("since", ""),
		Limit: clamp(intArg(req, "limit", 50), 1, 200),
	}
	if filter.Type != "" && !brain.ValidEventType(filter.Type) {
		return mcp.NewToolResultError(fmt.Sprintf("unknown event type %q", filter.Type)), nil
	}
	if filter.Since != "" {
		ts, err := brain.ParseTime(filter.Since)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("'since' is not a valid timestamp: %v", err)), nil
		}
		filter.Since = brain.FormatTime(ts)
	}
	events, err := t.eng.Events(ctx, filter)
	if err != nil {
		return failure("read events", err), nil
	}
	return mcp.NewToolResultText(contextpack.EventsText(events)), nil
}

// ─── CheckpointTool ─────────────────────────────────────────────────────────

// CheckpointTool handles the speclock_checkpoint MCP tool.
type CheckpointTool struct {
	eng *engine.Engine
}

// NewCheckpointTool creates a CheckpointTool.
func NewCheckpointTool(eng *engine.Engine) *CheckpointTool {
	return &CheckpointTool{eng: eng}
}

// Definition returns the MCP tool definition for speclock_checkpoint.
func (t *CheckpointTool) Definition() mcp.Tool {
	return mcp.NewTool("speclock_checkpoint",
		mcp.WithDescription("Create a named git tag at HEAD for easy rollback."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Checkpoint name (letters, digits, hyphens, underscores)"),
		),
	)
}

// Handle processes the speclock_checkpoint tool call.
func (t *CheckpointTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, bad := required(req, "name")
	if bad != nil {
		return bad, nil
	}
	res, err := t.eng.Checkpoint(ctx, name)
	if err != nil {
		return failure("create checkpoint", err), nil
	}
	if !res.OK {
		return mcp.NewToolResultError(res.Error), nil
	}
	return mcp.NewToolResultText("Checkpoint created: " + res.Tag), nil
}

// ─── RepoStatusTool ─────────────────────────────────────────────────────────

// RepoStatusTool handles the speclock_repo_status MCP tool.
type RepoStatusTool struct {
	eng *engine.Engine
}

// NewRepoStatusTool creates a RepoStatusTool.
func NewRepoStatusTool(eng *engine.Engine) *RepoStatusTool {
	return &RepoStatusTool{eng: eng}
}

// Definition returns the MCP tool definition for speclock_repo_status.
func (t *RepoStatusTool) Definition() mcp.Tool {
	return mcp.NewTool("speclock_repo_status",
		mcp.WithDescription("Show the git branch, commit, changed files and a diff summary."),
	)
}

// Handle processes the speclock_repo_status tool call.
func (t *RepoStatusTool) Handle(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	facts, root := t.eng.VCS(), t.eng.Root()
	if !facts.HasVCS(ctx, root) {
		return mcp.NewToolResultError("Not a git repository."), nil
	}
	return mcp.NewToolResultText(contextpack.RepoStatusText(facts.Status(ctx, root), facts.DiffStat(ctx, root))), nil
}
