// Package prompts implements MCP prompt handlers.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// StartPrompt handles the speclock-start MCP prompt.
type StartPrompt struct{}

// NewStartPrompt creates a StartPrompt.
func NewStartPrompt() *StartPrompt {
	return &StartPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StartPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("speclock-start",
		mcp.WithPromptDescription(
			"Start a working session with full project memory: briefing, locks, "+
				"recent changes and revert warnings.",
		),
		mcp.WithArgument("tool_name",
			mcp.ArgumentDescription("Which AI tool is running the session (claude-code, cursor, codex, ...). Default: unknown"),
		),
	)
}

// Handle processes the speclock-start prompt request.
func (p *StartPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	tool := "unknown"
	if args := req.Params.Arguments; args != nil {
		if name, ok := args["tool_name"]; ok && name != "" {
			tool = name
		}
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Start SpecLock session (%s)", tool),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"Let's start a session.\n\n"+
						"Please:\n"+
						"1. Run `speclock_session_briefing` with tool_name='%s'\n"+
						"2. Summarize the goal, the active locks and anything that changed since the last session\n"+
						"3. If the briefing has revert warnings, tell me before doing anything else\n"+
						"4. From now on, run `speclock_check_conflict` before every significant change\n"+
						"5. When we finish, run `speclock_session_summary` with what we accomplished",
					tool,
				)),
			},
		},
	}, nil
}
