package resources

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func TestHandleStatus(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "spec", "auth")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "spec.md"), []byte("# Auth\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	h := &Handler{Root: root}
	req := mcp.ReadResourceRequest{}
	req.Params.URI = "deck://workspace/status"

	contents, err := h.HandleStatus(context.Background(), req)
	if err != nil {
		t.Fatalf("HandleStatus: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("contents = %d, want 1", len(contents))
	}

	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("contents[0] is %T", contents[0])
	}
	if tc.MIMEType != "application/json" {
		t.Errorf("MIMEType = %q", tc.MIMEType)
	}

	var status workspaceStatus
	if err := json.Unmarshal([]byte(tc.Text), &status); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if status.Root != root {
		t.Errorf("root = %q, want %q", status.Root, root)
	}
	if status.Fingerprint == "" {
		t.Error("fingerprint is empty")
	}
	if status.Artifacts["spec"] != 1 || status.Artifacts["scratch"] != 0 {
		t.Errorf("artifact counts = %v", status.Artifacts)
	}
	if status.CacheFresh {
		t.Error("cache reported fresh with no manifest on disk")
	}
	if status.CacheLocked {
		t.Error("cache reported locked")
	}
}
