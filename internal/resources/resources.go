// Package resources implements MCP resource handlers for the document graph.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (deck://...) following MCP conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"

	"specdeck/internal/cache"
	"specdeck/internal/locator"
	"specdeck/internal/workspace"
)

// Handler manages the document graph resource endpoints.
type Handler struct {
	// Root pins the workspace root. Empty means discover from cwd.
	Root string
}

// NewHandler creates a resource Handler that discovers the workspace per call.
func NewHandler() *Handler {
	return &Handler{}
}

// workspaceStatus is the JSON payload served at deck://workspace/status.
type workspaceStatus struct {
	Root        string         `json:"root"`
	Fingerprint string         `json:"fingerprint"`
	Artifacts   map[string]int `json:"artifacts"`
	CacheFresh  bool           `json:"cacheFresh"`
	CacheLocked bool           `json:"cacheLocked"`
}

// StatusResource returns the MCP resource definition for workspace status.
func (h *Handler) StatusResource() mcp.Resource {
	return mcp.NewResource(
		"deck://workspace/status",
		"Workspace Status",
		mcp.WithResourceDescription("Artifact counts per kind and index cache state"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleStatus returns the current workspace status as JSON.
func (h *Handler) HandleStatus(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	root := h.Root
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working directory: %w", err)
		}
		if found, err := workspace.FindRoot(cwd); err == nil {
			root = found
		} else {
			root = cwd
		}
	}

	fp, err := workspace.Fingerprint(root)
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}

	artifacts, err := workspace.Scan(root)
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}

	counts := map[string]int{}
	for _, k := range []locator.Kind{locator.KindSpec, locator.KindImpl, locator.KindScratch} {
		counts[string(k)] = 0
	}
	for _, a := range artifacts {
		counts[string(a.ID.Kind)]++
	}

	store := cache.NewStore(root, fp)
	status := workspaceStatus{
		Root:        root,
		Fingerprint: fp,
		Artifacts:   counts,
		CacheFresh:  store.Fresh(artifacts),
		CacheLocked: store.Locked(),
	}

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling status: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// errorResource returns a resource carrying an error message instead of
// failing the read outright.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}
