package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"specdeck/internal/graph"
)

// DepsTool handles the deck_deps MCP tool.
// It builds the upstream/downstream dependency tree for one artifact,
// including the deduplicated aggregate relationship set.
type DepsTool struct {
	// Root pins the workspace root. Empty means discover from cwd.
	Root string
}

// NewDepsTool creates a DepsTool that discovers the workspace per call.
func NewDepsTool() *DepsTool {
	return &DepsTool{}
}

// Definition returns the MCP tool definition for registration.
func (t *DepsTool) Definition() mcp.Tool {
	return mcp.NewTool("deck_deps",
		mcp.WithDescription(
			"Show the dependency tree of an artifact: everything it depends on "+
				"(transitively), everything in the workspace that depends on it, "+
				"and the aggregate set of relationships with duplicates removed. "+
				"Missing or unreadable dependency targets are annotated, not errors. "+
				"A dependency cycle returns the partial tree up to the repeated artifact.",
		),
		mcp.WithString("artifact",
			mcp.Required(),
			mcp.Description("Artifact reference, e.g. spec://auth or a document path"),
		),
	)
}

// Handle processes the deck_deps tool call.
func (t *DepsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref := strings.TrimSpace(req.GetString("artifact", ""))
	if ref == "" {
		return mcp.NewToolResultError("'artifact' is required"), nil
	}

	e, err := openEngine(t.Root)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("opening workspace: %v", err)), nil
	}

	id, err := e.ParseArtifactRef(ref)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid artifact reference: %v", err)), nil
	}

	tree, err := e.DependencyTree(id)
	if err != nil {
		var cyc *graph.CycleError
		if errors.As(err, &cyc) {
			var sb strings.Builder
			sb.WriteString(fmt.Sprintf("## Dependency Tree: %s\n\n", id.String()))
			sb.WriteString(fmt.Sprintf("⚠ **Cycle detected:** %s → %s\n\n", cyc.From.String(), cyc.To.String()))
			sb.WriteString("The tree below is partial — it stops at the repeated artifact.\n\n")
			sb.WriteString(formatTree(cyc.Tree))
			return mcp.NewToolResultText(sb.String()), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("building dependency tree: %v", err)), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Dependency Tree: %s\n\n", id.String()))
	sb.WriteString(formatTree(tree))
	return mcp.NewToolResultText(sb.String()), nil
}
