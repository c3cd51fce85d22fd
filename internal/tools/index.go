package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"specdeck/internal/cache"
	"specdeck/internal/index"
)

// IndexTool handles the deck_index MCP tool.
// It builds (or loads from cache) the structure index of the whole
// workspace and reports what was found.
type IndexTool struct {
	// Root pins the workspace root. Empty means discover from cwd.
	Root string
}

// NewIndexTool creates an IndexTool that discovers the workspace per call.
func NewIndexTool() *IndexTool {
	return &IndexTool{}
}

// Definition returns the MCP tool definition for registration.
func (t *IndexTool) Definition() mcp.Tool {
	return mcp.NewTool("deck_index",
		mcp.WithDescription(
			"Index the workspace's document structure: headings with their "+
				"content extents, constraint group markers with their anchor "+
				"headings, and the cross-document link relationships between them. "+
				"The index is cached on disk and reused while no persistent "+
				"document has changed. Scratch pads are always indexed live.",
		),
		mcp.WithBoolean("refresh",
			mcp.Description("Rebuild from the documents, bypassing the cache"),
		),
	)
}

// Handle processes the deck_index tool call.
func (t *IndexTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	refresh := req.GetBool("refresh", false)

	e, err := openEngine(t.Root)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("opening workspace: %v", err)), nil
	}

	idx, err := e.BuildIndex(!refresh)
	if err != nil {
		var dup *index.DuplicateSlugError
		if errors.As(err, &dup) {
			return mcp.NewToolResultError(fmt.Sprintf(
				"duplicate heading slug %q in %s — rename one of the colliding headings",
				dup.Slug, dup.Artifact.String(),
			)), nil
		}
		if errors.Is(err, cache.ErrLocked) {
			return mcp.NewToolResultError(
				"another process is writing the index cache — retry shortly",
			), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("indexing workspace: %v", err)), nil
	}

	var sb strings.Builder
	sb.WriteString("## Workspace Index\n\n")
	sb.WriteString(fmt.Sprintf("**Artifacts:** %d\n", len(idx.Artifacts)))
	sb.WriteString(fmt.Sprintf("**Headings:** %d\n", len(idx.Headings)))
	sb.WriteString(fmt.Sprintf("**Constraint groups:** %d\n", len(idx.Constraints)))
	sb.WriteString(fmt.Sprintf("**Relationships:** %d\n\n", len(idx.Relationships)))

	if len(idx.Artifacts) > 0 {
		sb.WriteString("### Artifacts\n\n")
		var keys []string
		for k := range idx.Artifacts {
			keys = append(keys, k)
		}
		for _, k := range sortedStrings(keys) {
			sb.WriteString(fmt.Sprintf("- `%s`\n", k))
		}
	}

	return mcp.NewToolResultText(sb.String()), nil
}
