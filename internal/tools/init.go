package tools

import (
	"context"
	"fmt"

	"github.com/HendryAvila/speclock/internal/engine"
	"github.com/mark3labs/mcp-go/mcp"
)

// InitTool handles the speclock_init MCP tool.
type InitTool struct {
	eng *engine.Engine
}

// NewInitTool creates an InitTool.
func NewInitTool(eng *engine.Engine) *InitTool {
	return &InitTool{eng: eng}
}

// Definition returns the MCP tool definition for registration.
func (t *InitTool) Definition() mcp.Tool {
	return mcp.NewTool("speclock_init",
		mcp.WithDescription(
			"Initialize SpecLock in the project directory. Creates .speclock/ with brain.json, "+
				"events.log and supporting directories. Safe to call again: an existing project is left as is.",
		),
	)
}

// Handle processes the speclock_init tool call.
func (t *InitTool) Handle(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	b, err := t.eng.EnsureInit(ctx)
	if err != nil {
		return failure("initialize", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("SpecLock initialized for %q at %s", b.Project.Name, b.Project.Root)), nil
}
