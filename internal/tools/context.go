package tools

import (
	"context"

	"github.com/HendryAvila/speclock/internal/contextpack"
	"github.com/mark3labs/mcp-go/mcp"
)

// GetContextTool handles the speclock_get_context MCP tool.
type GetContextTool struct {
	renderer *contextpack.Renderer
	opts     contextpack.GenerateOptions
}

// NewGetContextTool creates a GetContextTool. opts applies to markdown
// generation.
func NewGetContextTool(renderer *contextpack.Renderer, opts contextpack.GenerateOptions) *GetContextTool {
	return &GetContextTool{renderer: renderer, opts: opts}
}

// Definition returns the MCP tool definition for registration.
func (t *GetContextTool) Definition() mcp.Tool {
	return mcp.NewTool("speclock_get_context",
		mcp.WithDescription(
			"THE KEY TOOL. Returns the full context pack: goal, locks, decisions, recent changes, deploy facts, "+
				"reverts, session history and pinned notes. Call it at the start of every session or whenever "+
				"you need to refresh your understanding of the project.",
		),
		mcp.WithString("format",
			mcp.Description("Output format: markdown (readable, also written to .speclock/context/latest.md), json or yaml"),
			mcp.DefaultString("markdown"),
			mcp.Enum("markdown", "json", "yaml"),
		),
	)
}

// Handle processes the speclock_get_context tool call.
func (t *GetContextTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format := req.GetString("format", "markdown")
	switch format {
	case "markdown", "":
		md, err := t.renderer.Generate(ctx, t.opts)
		if err != nil {
			return failure("generate context", err), nil
		}
		return mcp.NewToolResultText(md), nil
	case "json", "yaml":
		p, err := t.renderer.Pack(ctx)
		if err != nil {
			return failure("build context pack", err), nil
		}
		data, err := contextpack.Encode(p, format)
		if err != nil {
			return nil, err
		}
		return mcp.NewToolResultText(string(data)), nil
	default:
		return mcp.NewToolResultError("'format' must be 'markdown', 'json' or 'yaml'"), nil
	}
}
