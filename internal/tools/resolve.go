package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"specdeck/internal/locator"
)

// ResolveTool handles the deck_resolve MCP tool.
// It normalizes any supported reference form into a canonical artifact
// handle or an external URL.
type ResolveTool struct {
	// Root pins the workspace root. Empty means discover from cwd.
	Root string
}

// NewResolveTool creates a ResolveTool that discovers the workspace per call.
func NewResolveTool() *ResolveTool {
	return &ResolveTool{}
}

// Definition returns the MCP tool definition for registration.
func (t *ResolveTool) Definition() mcp.Tool {
	return mcp.NewTool("deck_resolve",
		mcp.WithDescription(
			"Resolve a document reference into its canonical form. "+
				"Accepts artifact handles (spec://auth), workspace-relative or "+
				"document-relative file paths, and https:// URLs. "+
				"Returns the canonical handle, the document path it maps to, "+
				"and how the resolution was derived.",
		),
		mcp.WithString("ref",
			mcp.Required(),
			mcp.Description("The reference to resolve"),
		),
		mcp.WithString("from",
			mcp.Description("Document path the reference appears in — anchors relative paths"),
		),
	)
}

// Handle processes the deck_resolve tool call.
func (t *ResolveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref := strings.TrimSpace(req.GetString("ref", ""))
	if ref == "" {
		return mcp.NewToolResultError("'ref' is required"), nil
	}
	from := req.GetString("from", "")

	e, err := openEngine(t.Root)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("opening workspace: %v", err)), nil
	}

	res, err := e.Resolve(ref, from)
	if err != nil {
		switch {
		case errors.Is(err, locator.ErrOutsideWorkspace):
			return mcp.NewToolResultError(fmt.Sprintf("%q escapes the workspace: %v", ref, err)), nil
		case errors.Is(err, locator.ErrUnsupportedScheme):
			return mcp.NewToolResultError(fmt.Sprintf("%q uses an unsupported scheme: %v", ref, err)), nil
		default:
			return mcp.NewToolResultError(fmt.Sprintf("resolving %q: %v", ref, err)), nil
		}
	}

	var sb strings.Builder
	sb.WriteString("## Resolution\n\n")
	if res.External() {
		sb.WriteString(fmt.Sprintf("**URL:** %s\n", res.URL))
	} else {
		sb.WriteString(fmt.Sprintf("**Handle:** `%s`\n", res.ID.String()))
		sb.WriteString(fmt.Sprintf("**Document:** %s\n", res.ID.DocumentPath(e.Root())))
	}
	sb.WriteString(fmt.Sprintf("**Provenance:** %s\n", res.Provenance))

	return mcp.NewToolResultText(sb.String()), nil
}
