// Package resources implements MCP resource handlers.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (speclock://...) following MCP conventions.
package resources

import (
	"context"
	"fmt"

	"github.com/HendryAvila/speclock/internal/contextpack"
	"github.com/mark3labs/mcp-go/mcp"
)

// Resource URIs.
const (
	PackURI     = "speclock://context/pack"
	MarkdownURI = "speclock://context/latest"
)

// Handler serves context resources.
type Handler struct {
	renderer *contextpack.Renderer
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(renderer *contextpack.Renderer) *Handler {
	return &Handler{renderer: renderer}
}

// PackResource returns the MCP resource definition for the JSON pack.
func (h *Handler) PackResource() mcp.Resource {
	return mcp.NewResource(
		PackURI,
		"SpecLock Context Pack",
		mcp.WithResourceDescription("Structured project memory: goal, locks, decisions, changes, reverts, sessions, notes"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandlePack returns the current pack as JSON. It does not record a
// context_generated event.
func (h *Handler) HandlePack(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	p, err := h.renderer.Pack(ctx)
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}
	data, err := contextpack.Encode(p, "json")
	if err != nil {
		return nil, fmt.Errorf("marshaling pack: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// MarkdownResource returns the MCP resource definition for the rendered
// context document.
func (h *Handler) MarkdownResource() mcp.Resource {
	return mcp.NewResource(
		MarkdownURI,
		"SpecLock Context",
		mcp.WithResourceDescription("The agent-facing context document in markdown"),
		mcp.WithMIMEType("text/markdown"),
	)
}

// HandleMarkdown renders the context document without writing it to disk.
func (h *Handler) HandleMarkdown(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	p, err := h.renderer.Pack(ctx)
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "text/markdown",
			Text:     contextpack.Markdown(p),
		},
	}, nil
}

// errorResource returns a resource with an error message.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}
