package cache

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"specdeck/internal/index"
	"specdeck/internal/locator"
	"specdeck/internal/workspace"
)

// --- Test helpers ---

func writeArtifact(t *testing.T, root string, id locator.ArtifactID, content string) {
	t.Helper()
	path := id.DocumentPath(root)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// setupWorkspace creates a workspace with two specs and one scratch pad,
// returning the root, its inventory, and a built index.
func setupWorkspace(t *testing.T) (string, []workspace.Artifact, *index.Index) {
	t.Helper()
	root := t.TempDir()
	writeArtifact(t, root, locator.ArtifactID{Kind: locator.KindSpec, Slug: "a"}, "# Doc A\n\nBody A.\n")
	writeArtifact(t, root, locator.ArtifactID{Kind: locator.KindSpec, Slug: "b"}, "# Doc B\n\n!b.rules:\n- MUST hold.\n")
	writeArtifact(t, root, locator.ArtifactID{Kind: locator.KindScratch, Slug: "pad"}, "# Pad\n")

	artifacts, err := workspace.Scan(root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	idx, err := index.Build(root, "fp-1", artifacts)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return root, artifacts, idx
}

func TestInstallAndLoadRoundTrip(t *testing.T) {
	root, artifacts, idx := setupWorkspace(t)
	store := NewStore(root, "fp-1")

	if err := store.Install(idx, artifacts); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if !store.Fresh(artifacts) {
		t.Fatal("freshly installed cache reads as stale")
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	// Spec records survive the round trip.
	specA := locator.ArtifactID{Kind: locator.KindSpec, Slug: "a"}
	rec, ok := loaded.Heading(index.HeadingID{Artifact: specA, Slug: "doc-a"})
	if !ok {
		t.Fatal("heading lost in round trip")
	}
	if rec.Content != "# Doc A\n\nBody A.\n" {
		t.Errorf("content = %q", rec.Content)
	}
	specB := locator.ArtifactID{Kind: locator.KindSpec, Slug: "b"}
	if _, ok := loaded.Constraint(index.ConstraintID{Artifact: specB, GroupSet: "b.rules"}); !ok {
		t.Error("constraint group lost in round trip")
	}

	// Scratch records never reach disk.
	scratch := locator.ArtifactID{Kind: locator.KindScratch, Slug: "pad"}
	if _, ok := loaded.Heading(index.HeadingID{Artifact: scratch, Slug: "pad"}); ok {
		t.Error("scratch heading persisted to cache")
	}
	if _, ok := loaded.Artifacts[scratch.String()]; ok {
		t.Error("scratch artifact persisted to cache")
	}
}

func TestFreshDetectsMutation(t *testing.T) {
	root, artifacts, idx := setupWorkspace(t)
	store := NewStore(root, "fp-1")
	if err := store.Install(idx, artifacts); err != nil {
		t.Fatalf("Install: %v", err)
	}

	// Mutate one artifact so (mtime, size) differ.
	specA := locator.ArtifactID{Kind: locator.KindSpec, Slug: "a"}
	path := specA.DocumentPath(root)
	if err := os.WriteFile(path, []byte("# Doc A\n\nBody A grew considerably.\n"), 0o644); err != nil {
		t.Fatalf("mutate: %v", err)
	}
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	rescanned, err := workspace.Scan(root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if store.Fresh(rescanned) {
		t.Fatal("mutated artifact not detected as stale")
	}
}

func TestFreshDetectsMembershipChange(t *testing.T) {
	root, artifacts, idx := setupWorkspace(t)
	store := NewStore(root, "fp-1")
	if err := store.Install(idx, artifacts); err != nil {
		t.Fatalf("Install: %v", err)
	}

	// Addition invalidates.
	writeArtifact(t, root, locator.ArtifactID{Kind: locator.KindSpec, Slug: "c"}, "# Doc C\n")
	rescanned, _ := workspace.Scan(root)
	if store.Fresh(rescanned) {
		t.Error("added artifact not detected")
	}

	// Removal invalidates.
	if err := os.RemoveAll(filepath.Join(root, "spec", "c")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := os.RemoveAll(filepath.Join(root, "spec", "a")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	rescanned, _ = workspace.Scan(root)
	if store.Fresh(rescanned) {
		t.Error("removed artifact not detected")
	}
}

func TestFreshIgnoresScratchChurn(t *testing.T) {
	root, artifacts, idx := setupWorkspace(t)
	store := NewStore(root, "fp-1")
	if err := store.Install(idx, artifacts); err != nil {
		t.Fatalf("Install: %v", err)
	}

	// Scratch documents are indexed live; their churn never invalidates.
	writeArtifact(t, root, locator.ArtifactID{Kind: locator.KindScratch, Slug: "pad2"}, "# Pad 2\n")
	rescanned, _ := workspace.Scan(root)
	if !store.Fresh(rescanned) {
		t.Fatal("scratch churn invalidated the cache")
	}
}

func TestFreshRejectsOtherFingerprint(t *testing.T) {
	root, artifacts, idx := setupWorkspace(t)
	if err := NewStore(root, "fp-1").Install(idx, artifacts); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if NewStore(root, "fp-2").Fresh(artifacts) {
		t.Fatal("cache accepted for a different workspace fingerprint")
	}
}

func TestLockContentionFailsFast(t *testing.T) {
	root, artifacts, idx := setupWorkspace(t)
	store := NewStore(root, "fp-1")

	if err := os.MkdirAll(store.Dir(), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(store.Dir(), lockFile), nil, 0o644); err != nil {
		t.Fatalf("plant lock: %v", err)
	}

	start := time.Now()
	err := store.Install(idx, artifacts)
	if !errors.Is(err, ErrLocked) {
		t.Fatalf("Install = %v, want ErrLocked", err)
	}
	if time.Since(start) > time.Second {
		t.Error("lock contention did not fail fast")
	}
}

func TestLockReleasedAfterInstall(t *testing.T) {
	root, artifacts, idx := setupWorkspace(t)
	store := NewStore(root, "fp-1")

	if err := store.Install(idx, artifacts); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if store.Locked() {
		t.Fatal("lock marker left behind after successful install")
	}

	// And again after a failed install (lock planted mid-proof via a bad
	// data dir is hard to arrange portably; reinstalling proves the release
	// path at least on success).
	if err := store.Install(idx, artifacts); err != nil {
		t.Fatalf("reinstall: %v", err)
	}
	if store.Locked() {
		t.Fatal("lock marker left behind after reinstall")
	}
}

func TestLoadMissingIsError(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root, "fp-1")
	if _, err := store.Load(); err == nil {
		t.Fatal("loading a missing cache succeeded")
	}
}

func TestLoadCorruptIsError(t *testing.T) {
	root, artifacts, idx := setupWorkspace(t)
	store := NewStore(root, "fp-1")
	if err := store.Install(idx, artifacts); err != nil {
		t.Fatalf("Install: %v", err)
	}

	// Truncate the data file to garbage; Load must fail (the caller then
	// treats it as a miss and rebuilds).
	if err := os.WriteFile(store.dataPath(index.SchemaVersion), []byte("not sqlite"), 0o644); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	if _, err := store.Load(); err == nil {
		t.Fatal("loading a corrupt cache succeeded")
	}
}

func TestInvalidate(t *testing.T) {
	root, artifacts, idx := setupWorkspace(t)
	store := NewStore(root, "fp-1")
	if err := store.Install(idx, artifacts); err != nil {
		t.Fatalf("Install: %v", err)
	}

	if err := store.Invalidate(); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if store.Fresh(artifacts) {
		t.Fatal("cache still fresh after Invalidate")
	}
	if _, err := store.Load(); err == nil {
		t.Fatal("cache data file survived Invalidate")
	}
}
