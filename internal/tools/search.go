package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// SearchEventsTool handles the speclock_search_events MCP tool.
type SearchEventsTool struct {
	index Searcher
}

// NewSearchEventsTool creates a SearchEventsTool. A nil index makes every
// call report that search is disabled.
func NewSearchEventsTool(index Searcher) *SearchEventsTool {
	return &SearchEventsTool{index: index}
}

// Definition returns the MCP tool definition for speclock_search_events.
func (t *SearchEventsTool) Definition() mcp.Tool {
	return mcp.NewTool("speclock_search_events",
		mcp.WithDescription(
			"Full-text search over the event history (summaries, file paths, event types). "+
				"Use it to find when something was decided, locked or changed.",
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search words, e.g. 'auth middleware'"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results, 1-50 (default: 10)"),
		),
	)
}

// Handle processes the speclock_search_events tool call.
func (t *SearchEventsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, bad := required(req, "query")
	if bad != nil {
		return bad, nil
	}
	if t.index == nil {
		return mcp.NewToolResultError("Event search is disabled (index.enabled=false)."), nil
	}
	hits, err := t.index.Search(ctx, query, clamp(intArg(req, "limit", 10), 1, 50))
	if err != nil {
		return failure("search events", err), nil
	}
	if len(hits) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No events match %q.", query)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d event(s) for %q:\n", len(hits), query)
	for _, h := range hits {
		fmt.Fprintf(&sb, "- [%s] %s (%s): %s", h.At, h.EventID, h.Type, h.Summary)
		if len(h.Files) > 0 {
			fmt.Fprintf(&sb, " [%s]", strings.Join(h.Files, ", "))
		}
		sb.WriteString("\n")
	}
	return mcp.NewToolResultText(strings.TrimRight(sb.String(), "\n")), nil
}
