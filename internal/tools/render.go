package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// RenderTool handles the deck_render MCP tool.
// It expands a heading or constraint group into its full content, with
// every linked heading inlined exactly once.
type RenderTool struct {
	// Root pins the workspace root. Empty means discover from cwd.
	Root string
}

// NewRenderTool creates a RenderTool that discovers the workspace per call.
func NewRenderTool() *RenderTool {
	return &RenderTool{}
}

// Definition returns the MCP tool definition for registration.
func (t *RenderTool) Definition() mcp.Tool {
	return mcp.NewTool("deck_render",
		mcp.WithDescription(
			"Render a heading or constraint group with its linked context "+
				"expanded. A heading reference is <artifact>#<heading>, e.g. "+
				"spec://auth#token-handling. A constraint group reference is "+
				"<artifact>!<group.set>, e.g. spec://auth!tokens.expiry. Each "+
				"linked heading appears at most once, even across cyclic links.",
		),
		mcp.WithString("ref",
			mcp.Required(),
			mcp.Description("Heading or constraint group reference"),
		),
	)
}

// Handle processes the deck_render tool call.
func (t *RenderTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref := strings.TrimSpace(req.GetString("ref", ""))
	if ref == "" {
		return mcp.NewToolResultError("'ref' is required"), nil
	}

	e, err := openEngine(t.Root)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("opening workspace: %v", err)), nil
	}

	// Constraint references carry a '!' separator; everything else must be
	// a heading reference.
	var out string
	if strings.Contains(ref, "!") {
		cid, err := e.ParseConstraintRef(ref)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid constraint reference: %v", err)), nil
		}
		out, err = e.RenderConstraintGroup(cid)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("rendering %s: %v", ref, err)), nil
		}
	} else {
		hid, err := e.ParseHeadingRef(ref)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid heading reference: %v", err)), nil
		}
		out, err = e.RenderHeading(hid)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("rendering %s: %v", ref, err)), nil
		}
	}

	return mcp.NewToolResultText(out), nil
}
