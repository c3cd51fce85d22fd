// specdeck: workspace document graph engine.
//
// Manages a workspace of markdown artifacts (specs, implementation notes,
// scratch pads), the dependency graph between them, and a cached structure
// index. Runs as an MCP server over stdio or as a one-shot CLI.
//
// Usage:
//
//	specdeck serve              # Start MCP server (stdio transport)
//	specdeck resolve <ref>      # Normalize a reference
//	specdeck deps <artifact>    # Show the dependency tree
//	specdeck index              # Index the workspace structure
//	specdeck render <ref>       # Expand a heading or constraint group
//	specdeck delete <artifact>  # Delete an artifact (checks dependents)
//	specdeck update             # Update to the latest version
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	deckserver "specdeck/internal/server"
	"specdeck/internal/tools"
	"specdeck/internal/updater"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := serve(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "resolve":
		runTool(tools.NewResolveTool(), map[string]interface{}{"ref": arg(2)})
	case "deps":
		runTool(tools.NewDepsTool(), map[string]interface{}{"artifact": arg(2)})
	case "index":
		runTool(tools.NewIndexTool(), map[string]interface{}{"refresh": hasFlag("--refresh")})
	case "render":
		runTool(tools.NewRenderTool(), map[string]interface{}{"ref": arg(2)})
	case "delete":
		runTool(tools.NewDeleteTool(), map[string]interface{}{
			"artifact": arg(2),
			"force":    hasFlag("--force"),
		})
	case "update":
		runUpdate()
	case "--help", "-h", "help":
		printUsage()
		os.Exit(0)
	case "--version", "-v", "version":
		fmt.Printf("specdeck v%s\n", deckserver.Version)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// deckTool is the slice of the MCP tools the CLI reuses: every subcommand
// routes through the same Handle as a server call would.
type deckTool interface {
	Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// runTool invokes one tool handler with the given arguments and prints
// the result to stdout (or stderr for tool-level errors).
func runTool(tool deckTool, args map[string]interface{}) {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args

	result, err := tool.Handle(context.Background(), req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	text := resultText(result)
	if result != nil && result.IsError {
		fmt.Fprintln(os.Stderr, text)
		os.Exit(1)
	}
	fmt.Println(text)
}

// resultText extracts the text payload from a tool result.
func resultText(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

// arg returns the positional argument at i, or empty. The tools report
// their own "required" errors, so no validation happens here.
func arg(i int) string {
	if len(os.Args) > i {
		return os.Args[i]
	}
	return ""
}

// hasFlag reports whether the flag appears anywhere after the subcommand.
func hasFlag(flag string) bool {
	for _, a := range os.Args[2:] {
		if a == flag {
			return true
		}
	}
	return false
}

func serve() error {
	s := deckserver.New()

	// Background version check — prints to stderr so it doesn't interfere
	// with MCP's stdio transport on stdout.
	go checkForUpdates()

	return mcpserver.ServeStdio(s)
}

// checkForUpdates runs a non-blocking version check and prints a notice
// to stderr if an update is available. Best-effort — network failures
// are silently ignored.
func checkForUpdates() {
	result := updater.CheckVersion(deckserver.Version)
	if result.UpdateAvailable {
		fmt.Fprintf(os.Stderr,
			"\n  Update available: v%s → v%s\n"+
				"  Run: specdeck update\n"+
				"  Release: %s\n\n",
			result.CurrentVersion, result.LatestVersion, result.ReleaseURL,
		)
	}
}

// runUpdate performs a self-update to the latest version.
func runUpdate() {
	fmt.Fprintf(os.Stderr, "Checking for updates...\n")

	result := updater.CheckVersion(deckserver.Version)
	if !result.UpdateAvailable {
		fmt.Fprintf(os.Stderr, "Already at the latest version (v%s)\n", result.CurrentVersion)
		return
	}

	fmt.Fprintf(os.Stderr, "New version available: v%s → v%s\n", result.CurrentVersion, result.LatestVersion)
	fmt.Fprintf(os.Stderr, "Downloading...\n")

	if err := updater.SelfUpdate(deckserver.Version); err != nil {
		fmt.Fprintf(os.Stderr, "Update failed: %v\n", err)
		fmt.Fprintf(os.Stderr, "\n  You can download manually from:\n  %s\n", result.ReleaseURL)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "Updated to v%s!\n", result.LatestVersion)
	fmt.Fprintf(os.Stderr, "Restart specdeck to use the new version.\n")
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `specdeck v%s — workspace document graph engine

Usage:
  specdeck serve                        Start the MCP server (stdio transport)
  specdeck resolve <ref>                Normalize a reference (handle, path, or URL)
  specdeck deps <artifact>              Show an artifact's dependency tree
  specdeck index [--refresh]            Index the workspace structure
  specdeck render <ref>                 Expand a heading (spec://a#h) or group (spec://a!g.s)
  specdeck delete <artifact> [--force]  Delete an artifact, guarding dependents
  specdeck update                       Update to the latest version

Configuration:
  Add to your AI tool's MCP config:

  {
    "mcpServers": {
      "specdeck": {
        "command": "specdeck",
        "args": ["serve"]
      }
    }
  }

Learn more: https://github.com/specdeck/specdeck
`, deckserver.Version)
}
