// Package tools implements the MCP tool handlers for the document graph.
//
// Each tool is a struct that receives its dependencies via fields and
// exposes a Definition for registration plus a Handle compatible with
// mcp-go's CallToolRequest signature. One file per tool.
package tools

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"specdeck/internal/engine"
	"specdeck/internal/graph"
	"specdeck/internal/workspace"
)

// findWorkspaceRoot walks up from the current working directory looking
// for a .specdeck marker folder. If none is found, returns cwd — the
// engine initializes a fresh workspace there on first use.
func findWorkspaceRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}

	root, err := workspace.FindRoot(dir)
	if err != nil {
		// No marker anywhere above cwd — the caller decides what to do.
		return dir, nil
	}
	return root, nil
}

// openEngine opens the engine for the given root, discovering the
// workspace when root is empty. Tools carry an explicit Root only in
// tests; in production it is resolved per call so the server works from
// any subdirectory.
func openEngine(root string) (*engine.Engine, error) {
	if root == "" {
		discovered, err := findWorkspaceRoot()
		if err != nil {
			return nil, err
		}
		root = discovered
	}
	return engine.New(root)
}

// formatSummary renders one artifact summary as a markdown line fragment.
func formatSummary(s graph.Summary) string {
	var sb strings.Builder
	sb.WriteString("`" + s.Label() + "`")
	if s.Version != "" {
		sb.WriteString(fmt.Sprintf(" (v%s)", s.Version))
	}
	if s.MetadataUnavailable {
		sb.WriteString(" ⚠ metadata unavailable")
	}
	return sb.String()
}

// formatEdges renders a relationship list as markdown bullets, one per
// edge, in the order given.
func formatEdges(edges []graph.Edge) string {
	var sb strings.Builder
	for _, e := range edges {
		sb.WriteString(fmt.Sprintf("- %s → %s", formatSummary(e.From), formatSummary(e.To)))
		if e.Optional {
			sb.WriteString(" *(optional)*")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// formatTree renders a full dependency tree report.
func formatTree(tree *graph.Tree) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("**Root:** %s\n\n", formatSummary(tree.Root)))

	sb.WriteString("### Upstream (depends on)\n\n")
	if len(tree.Upstream) == 0 {
		sb.WriteString("*none*\n")
	} else {
		sb.WriteString(formatEdges(tree.Upstream))
	}

	sb.WriteString("\n### Downstream (depended on by)\n\n")
	if len(tree.Downstream) == 0 {
		sb.WriteString("*none*\n")
	} else {
		sb.WriteString(formatEdges(tree.Downstream))
	}

	sb.WriteString("\n### Aggregate relationship set\n\n")
	if len(tree.Aggregate) == 0 {
		sb.WriteString("*none*\n")
	} else {
		sb.WriteString(formatEdges(tree.Aggregate))
	}

	return sb.String()
}

// sortedStrings returns a sorted copy of the given slice.
func sortedStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}
