// Package server wires the MCP components and creates the server instance.
//
// This is the composition root: it creates the tools and registers them.
// No business logic lives here — only wiring.
package server

import (
	"github.com/mark3labs/mcp-go/server"

	"specdeck/internal/prompts"
	"specdeck/internal/resources"
	"specdeck/internal/tools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates and configures the MCP server with all tools registered.
// This is the single place where all dependencies are resolved.
func New() *server.MCPServer {
	s := server.NewMCPServer(
		"specdeck",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Register document graph tools ---

	resolveTool := tools.NewResolveTool()
	s.AddTool(resolveTool.Definition(), resolveTool.Handle)

	depsTool := tools.NewDepsTool()
	s.AddTool(depsTool.Definition(), depsTool.Handle)

	indexTool := tools.NewIndexTool()
	s.AddTool(indexTool.Definition(), indexTool.Handle)

	renderTool := tools.NewRenderTool()
	s.AddTool(renderTool.Definition(), renderTool.Handle)

	deleteTool := tools.NewDeleteTool()
	s.AddTool(deleteTool.Definition(), deleteTool.Handle)

	// --- Register prompts ---

	overviewPrompt := prompts.NewOverviewPrompt()
	s.AddPrompt(overviewPrompt.Definition(), overviewPrompt.Handle)

	impactPrompt := prompts.NewImpactPrompt()
	s.AddPrompt(impactPrompt.Definition(), impactPrompt.Handle)

	// --- Register resources ---

	resourceHandler := resources.NewHandler()
	s.AddResource(resourceHandler.StatusResource(), resourceHandler.HandleStatus)

	return s
}

// serverInstructions returns the system instructions that tell the AI
// how to use specdeck effectively.
func serverInstructions() string {
	return `You have access to specdeck, a workspace document graph server.

## What is specdeck?

specdeck manages a workspace of markdown artifacts — specifications,
implementation notes, and scratch pads — and the dependency graph between
them. Every artifact lives in its own folder and is addressed by a
canonical handle:

  spec://auth       → spec/auth/spec.md
  impl://auth-db    → impl/auth-db/impl.md
  scratch://ideas   → scratch/ideas/scratch.md

Documents declare dependencies in YAML front matter (deps:) and link to
each other with standard markdown links. specdeck indexes the structure,
resolves the references, and guards deletions.

## Tools

- deck_resolve: Normalize any reference (handle, file path, URL) into its
  canonical form. Use this first when the user gives you an ambiguous
  reference.
- deck_deps: Show what an artifact depends on and what depends on it.
  Use before modifying or deleting anything — the downstream list tells
  you the blast radius.
- deck_index: Index the workspace structure (headings, constraint groups,
  cross-document links). Pass refresh=true only when you suspect the
  cache is wrong.
- deck_render: Expand a heading (spec://auth#tokens) or constraint group
  (spec://auth!perf.latency) with all linked context inlined. Use this to
  gather complete context before implementing against a spec section.
- deck_delete: Remove an artifact. Blocked when dependents exist — review
  the blocking list with the user before passing force=true.

## Important Rules

- ALWAYS check deck_deps before deck_delete — never force a deletion
  without telling the user which documents will be left with dangling
  references.
- Scratch pads (scratch://) are transient: they are never cached and
  their deletion is only blocked by other scratch pads.
- Prefer handles (spec://name) over file paths when talking to the user —
  they are stable across moves within the workspace.
- A dependency cycle is reported with the partial tree — surface it to
  the user rather than retrying.`
}
