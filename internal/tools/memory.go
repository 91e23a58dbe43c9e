package tools

import (
	"context"
	"fmt"

	"github.com/HendryAvila/speclock/internal/engine"
	"github.com/mark3labs/mcp-go/mcp"
)

// ─── SetGoalTool ────────────────────────────────────────────────────────────

// SetGoalTool handles the speclock_set_goal MCP tool.
type SetGoalTool struct {
	eng *engine.Engine
}

// NewSetGoalTool creates a SetGoalTool.
func NewSetGoalTool(eng *engine.Engine) *SetGoalTool {
	return &SetGoalTool{eng: eng}
}

// Definition returns the MCP tool definition for speclock_set_goal.
func (t *SetGoalTool) Definition() mcp.Tool {
	return mcp.NewTool("speclock_set_goal",
		mcp.WithDescription("Set or update the project goal: the high-level objective that guides all work."),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("The project goal"),
		),
	)
}

// Handle processes the speclock_set_goal tool call.
func (t *SetGoalTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, bad := required(req, "text")
	if bad != nil {
		return bad, nil
	}
	if _, err := t.eng.SetGoal(ctx, text); err != nil {
		return failure("set goal", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Goal set: %q", text)), nil
}

// ─── AddLockTool ────────────────────────────────────────────────────────────

// AddLockTool handles the speclock_add_lock MCP tool.
type AddLockTool struct {
	eng *engine.Engine
}

// NewAddLockTool creates an AddLockTool.
func NewAddLockTool(eng *engine.Engine) *AddLockTool {
	return &AddLockTool{eng: eng}
}

// Definition returns the MCP tool definition for speclock_add_lock.
func (t *AddLockTool) Definition() mcp.Tool {
	return mcp.NewTool("speclock_add_lock",
		mcp.WithDescription(
			"Add a non-negotiable constraint (lock). Locks are rules that must never be violated. "+
				"Add one whenever the user says something must always or never happen.",
		),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("The constraint, e.g. 'Never change the public REST API'"),
		),
		mcp.WithArray("tags",
			mcp.WithStringItems(),
			mcp.Description("Category tags"),
		),
		mcp.WithString("source",
			mcp.Description("Who asked for this lock: user or agent (default: agent)"),
			mcp.Enum("user", "agent"),
		),
	)
}

// Handle processes the speclock_add_lock tool call.
func (t *AddLockTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, bad := required(req, "text")
	if bad != nil {
		return bad, nil
	}
	id, err := t.eng.AddLock(ctx, text, stringsArg(req, "tags"), sourceArg(req))
	if err != nil {
		return failure("add lock", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Lock added (%s): %q", id, text)), nil
}

// ─── RemoveLockTool ─────────────────────────────────────────────────────────

// RemoveLockTool handles the speclock_remove_lock MCP tool.
type RemoveLockTool struct {
	eng *engine.Engine
}

// NewRemoveLockTool creates a RemoveLockTool.
func NewRemoveLockTool(eng *engine.Engine) *RemoveLockTool {
	return &RemoveLockTool{eng: eng}
}

// Definition returns the MCP tool definition for speclock_remove_lock.
func (t *RemoveLockTool) Definition() mcp.Tool {
	return mcp.NewTool("speclock_remove_lock",
		mcp.WithDescription(
			"Deactivate a lock by ID. The lock stays in history. Only call this after the user "+
				"explicitly confirms the constraint no longer applies.",
		),
		mcp.WithString("lock_id",
			mcp.Required(),
			mcp.Description("The lock ID to remove (e.g. lock_a1b2c3d4e5f6)"),
		),
	)
}

// Handle processes the speclock_remove_lock tool call.
func (t *RemoveLockTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, bad := required(req, "lock_id")
	if bad != nil {
		return bad, nil
	}
	res, err := t.eng.RemoveLock(ctx, id)
	if err != nil {
		return failure("remove lock", err), nil
	}
	if !res.Removed {
		return mcp.NewToolResultError(res.Error), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Lock removed: %q", res.LockText)), nil
}

// ─── AddDecisionTool ────────────────────────────────────────────────────────

// AddDecisionTool handles the speclock_add_decision MCP tool.
type AddDecisionTool struct {
	eng *engine.Engine
}

// NewAddDecisionTool creates an AddDecisionTool.
func NewAddDecisionTool(eng *engine.Engine) *AddDecisionTool {
	return &AddDecisionTool{eng: eng}
}

// Definition returns the MCP tool definition for speclock_add_decision.
func (t *AddDecisionTool) Definition() mcp.Tool {
	return mcp.NewTool("speclock_add_decision",
		mcp.WithDescription("Record an architectural or design decision so future work does not contradict it."),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("The decision, e.g. 'Use PostgreSQL for persistence'"),
		),
		mcp.WithArray("tags",
			mcp.WithStringItems(),
			mcp.Description("Category tags"),
		),
		mcp.WithString("source",
			mcp.Description("Who made the decision: user or agent (default: agent)"),
			mcp.Enum("user", "agent"),
		),
	)
}

// Handle processes the speclock_add_decision tool call.
func (t *AddDecisionTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, bad := required(req, "text")
	if bad != nil {
		return bad, nil
	}
	id, err := t.eng.AddDecision(ctx, text, stringsArg(req, "tags"), sourceArg(req))
	if err != nil {
		return failure("add decision", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Decision recorded (%s): %q", id, text)), nil
}

// ─── AddNoteTool ────────────────────────────────────────────────────────────

// AddNoteTool handles the speclock_add_note MCP tool.
type AddNoteTool struct {
	eng *engine.Engine
}

// NewAddNoteTool creates an AddNoteTool.
func NewAddNoteTool(eng *engine.Engine) *AddNoteTool {
	return &AddNoteTool{eng: eng}
}

// Definition returns the MCP tool definition for speclock_add_note.
func (t *AddNoteTool) Definition() mcp.Tool {
	return mcp.NewTool("speclock_add_note",
		mcp.WithDescription("Add a note. Pinned notes appear in every context pack."),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("The note text"),
		),
		mcp.WithBoolean("pinned",
			mcp.Description("Show this note in the context pack (default: true)"),
		),
	)
}

// Handle processes the speclock_add_note tool call.
func (t *AddNoteTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, bad := required(req, "text")
	if bad != nil {
		return bad, nil
	}
	id, err := t.eng.AddNote(ctx, text, boolArg(req, "pinned", true))
	if err != nil {
		return failure("add note", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Note added (%s): %q", id, text)), nil
}

// ─── SetDeployFactsTool ─────────────────────────────────────────────────────

// SetDeployFactsTool handles the speclock_set_deploy_facts MCP tool.
type SetDeployFactsTool struct {
	eng *engine.Engine
}

// NewSetDeployFactsTool creates a SetDeployFactsTool.
func NewSetDeployFactsTool(eng *engine.Engine) *SetDeployFactsTool {
	return &SetDeployFactsTool{eng: eng}
}

// Definition returns the MCP tool definition for speclock_set_deploy_facts.
func (t *SetDeployFactsTool) Definition() mcp.Tool {
	return mcp.NewTool("speclock_set_deploy_facts",
		mcp.WithDescription("Record deployment facts. Only the fields given are changed."),
		mcp.WithString("provider",
			mcp.Description("Deploy provider (vercel, railway, fly, aws, netlify, ...)"),
		),
		mcp.WithString("branch",
			mcp.Description("Branch that deploys"),
		),
		mcp.WithBoolean("auto_deploy",
			mcp.Description("Whether pushes deploy automatically"),
		),
		mcp.WithString("url",
			mcp.Description("Deployment URL"),
		),
		mcp.WithString("notes",
			mcp.Description("Additional deploy notes"),
		),
	)
}

// Handle processes the speclock_set_deploy_facts tool call.
func (t *SetDeployFactsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	u := engine.DeployUpdate{
		Provider:   optStringArg(req, "provider"),
		AutoDeploy: optBoolArg(req, "auto_deploy"),
		Branch:     optStringArg(req, "branch"),
		URL:        optStringArg(req, "url"),
		Notes:      optStringArg(req, "notes"),
	}
	if u.Empty() {
		return mcp.NewToolResultError("at least one of 'provider', 'branch', 'auto_deploy', 'url' or 'notes' is required"), nil
	}
	facts, err := t.eng.UpdateDeployFacts(ctx, u)
	if err != nil {
		return failure("update deploy facts", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Deploy facts updated. Provider: %s, branch: %s, auto-deploy: %t", facts.Provider, facts.Branch, facts.AutoDeploy)), nil
}
