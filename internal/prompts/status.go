package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// StatusPrompt handles the speclock-status MCP prompt.
type StatusPrompt struct{}

// NewStatusPrompt creates a StatusPrompt.
func NewStatusPrompt() *StatusPrompt {
	return &StatusPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StatusPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("speclock-status",
		mcp.WithPromptDescription(
			"Review project memory health: completeness score, drift against locks, "+
				"and lock suggestions.",
		),
	)
}

// Handle processes the speclock-status prompt request.
func (p *StatusPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "SpecLock Status",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"Please run `speclock_health`, `speclock_detect_drift` and `speclock_suggest_locks`.\n\n" +
						"Then:\n" +
						"1. Show me the health score and which checks are missing\n" +
						"2. List every drift, reverts first, and what you think caused it\n" +
						"3. Show the suggested locks and ask which ones I want to add\n" +
						"4. Do not add or remove any lock without my confirmation",
				),
			},
		},
	}, nil
}
