package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// ImpactPrompt handles the deck-impact MCP prompt.
// It guides the AI to assess the blast radius of changing one artifact.
type ImpactPrompt struct{}

// NewImpactPrompt creates an ImpactPrompt.
func NewImpactPrompt() *ImpactPrompt {
	return &ImpactPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *ImpactPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("deck-impact",
		mcp.WithPromptDescription(
			"Assess the impact of changing or removing an artifact. "+
				"Walks the dependency tree in both directions and reports "+
				"which documents would be affected.",
		),
		mcp.WithArgument("artifact",
			mcp.ArgumentDescription("Artifact reference, e.g. spec://auth"),
		),
	)
}

// Handle processes the deck-impact prompt request.
func (p *ImpactPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	artifact := ""
	if args := req.Params.Arguments; args != nil {
		artifact = args["artifact"]
	}
	if artifact == "" {
		artifact = "the artifact I name next"
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Impact analysis: %s", artifact),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"I'm considering changing %s.\n\n"+
						"Please:\n"+
						"1. Run `deck_deps` on %s to get its dependency tree\n"+
						"2. List the upstream artifacts it relies on — changing it may invalidate assumptions it took from them\n"+
						"3. List the downstream artifacts that rely on it — those are the ones my change can break\n"+
						"4. For each downstream artifact, run `deck_render` on the headings that link to it and summarize what the dependency actually covers\n"+
						"5. Tell me whether the change looks contained or whether I should update dependents in the same pass",
					artifact, artifact,
				)),
			},
		},
	}, nil
}
