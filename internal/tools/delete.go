package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"specdeck/internal/lifecycle"
)

// DeleteTool handles the deck_delete MCP tool.
// It removes an artifact's folder after checking that nothing in the
// workspace still depends on it, unless the removal is forced.
type DeleteTool struct {
	// Root pins the workspace root. Empty means discover from cwd.
	Root string
}

// NewDeleteTool creates a DeleteTool that discovers the workspace per call.
func NewDeleteTool() *DeleteTool {
	return &DeleteTool{}
}

// Definition returns the MCP tool definition for registration.
func (t *DeleteTool) Definition() mcp.Tool {
	return mcp.NewTool("deck_delete",
		mcp.WithDescription(
			"Delete an artifact and its folder. The deletion is refused when "+
				"other documents still depend on the artifact — the refusal lists "+
				"the blocking dependents. Pass force=true to delete anyway; the "+
				"dependents' references then resolve with metadata unavailable. "+
				"Cached structures for the artifact are invalidated.",
		),
		mcp.WithString("artifact",
			mcp.Required(),
			mcp.Description("Artifact reference, e.g. scratch://old-notes"),
		),
		mcp.WithBoolean("force",
			mcp.Description("Delete even when dependents exist"),
		),
	)
}

// Handle processes the deck_delete tool call.
func (t *DeleteTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref := strings.TrimSpace(req.GetString("artifact", ""))
	if ref == "" {
		return mcp.NewToolResultError("'artifact' is required"), nil
	}
	force := req.GetBool("force", false)

	e, err := openEngine(t.Root)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("opening workspace: %v", err)), nil
	}

	id, err := e.ParseArtifactRef(ref)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid artifact reference: %v", err)), nil
	}

	plan, err := e.PlanDeletion(id, force)
	if err != nil {
		var blocked *lifecycle.BlockedError
		if errors.As(err, &blocked) {
			var sb strings.Builder
			sb.WriteString(fmt.Sprintf("## Deletion Blocked: %s\n\n", id.String()))
			sb.WriteString("The following documents still depend on this artifact:\n\n")
			sb.WriteString(formatEdges(blocked.Tree.Downstream))
			sb.WriteString("\nNothing was removed. Pass force=true to delete anyway.\n")
			return mcp.NewToolResultError(sb.String()), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("deleting %s: %v", id.String(), err)), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Deleted: %s\n\n", id.String()))
	if plan.Override {
		sb.WriteString(fmt.Sprintf(
			"⚠ Forced past %d dependent reference(s) — those now resolve with metadata unavailable:\n\n",
			len(plan.Tree.Downstream),
		))
		sb.WriteString(formatEdges(plan.Tree.Downstream))
	} else {
		sb.WriteString("No dependents were blocking the removal.\n")
	}
	sb.WriteString("\nCached structures for this artifact have been invalidated.\n")

	return mcp.NewToolResultText(sb.String()), nil
}
