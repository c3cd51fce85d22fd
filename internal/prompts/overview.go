// Package prompts implements MCP prompt handlers for the document graph.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// OverviewPrompt handles the deck-overview MCP prompt.
// It instructs the AI to index the workspace and present its shape.
type OverviewPrompt struct{}

// NewOverviewPrompt creates an OverviewPrompt.
func NewOverviewPrompt() *OverviewPrompt {
	return &OverviewPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *OverviewPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("deck-overview",
		mcp.WithPromptDescription(
			"Get an overview of the document workspace. "+
				"Indexes every artifact and summarizes the specs, implementation "+
				"notes, and scratch pads it contains.",
		),
	)
}

// Handle processes the deck-overview prompt request.
func (p *OverviewPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "Workspace Overview",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"Please run `deck_index` to index my document workspace.\n\n" +
						"Then:\n" +
						"1. Group the artifacts by kind (spec, impl, scratch) and list them\n" +
						"2. Point out artifacts with many relationships — those are the load-bearing documents\n" +
						"3. Flag anything unusual: indexing errors, empty kinds, or a large scratch backlog\n" +
						"4. Suggest which spec I should read first if I'm new to this workspace",
				),
			},
		},
	}, nil
}
