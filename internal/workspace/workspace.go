// Package workspace handles workspace discovery and the artifact inventory.
//
// A workspace is a directory tree whose root contains the .specdeck marker
// folder. Artifacts live in the canonical layout <kind>/<slug>/<kind>.md;
// the inventory scan enumerates them deterministically so every downstream
// consumer sees the same ordering for the same tree.
package workspace

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"specdeck/internal/locator"
)

const (
	// MarkerDir is the folder whose presence marks a workspace root.
	MarkerDir = ".specdeck"
	// FingerprintFile holds the one-time workspace fingerprint, binding
	// caches to exactly one workspace.
	FingerprintFile = "workspace-id"
	// CacheDirName is the cache root inside the marker folder.
	CacheDirName = "cache"
)

// ErrNoWorkspace is returned when no marker folder is found walking up
// from the starting directory.
var ErrNoWorkspace = errors.New("no workspace found")

// FindRoot walks up from dir looking for the .specdeck marker folder and
// returns the containing directory. Passing "" starts from the current
// working directory.
func FindRoot(dir string) (string, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting working directory: %w", err)
		}
		dir = wd
	}

	current, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", dir, err)
	}
	for {
		marker := filepath.Join(current, MarkerDir)
		if info, err := os.Stat(marker); err == nil && info.IsDir() {
			return current, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("%w: walked up from %s", ErrNoWorkspace, dir)
		}
		current = parent
	}
}

// Init creates the marker folder and fingerprint file at root. Safe to call
// on an already-initialized workspace; the existing fingerprint is kept.
func Init(root string) error {
	if err := os.MkdirAll(filepath.Join(root, MarkerDir), 0o755); err != nil {
		return fmt.Errorf("creating marker folder: %w", err)
	}
	_, err := Fingerprint(root)
	return err
}

// CachePath returns the workspace's cache root.
func CachePath(root string) string {
	return filepath.Join(root, MarkerDir, CacheDirName)
}

// Fingerprint loads the workspace fingerprint, generating and persisting it
// on first use. The value is random but written exactly once, so every
// later read observes the same identifier.
func Fingerprint(root string) (string, error) {
	path := filepath.Join(root, MarkerDir, FingerprintFile)

	data, err := os.ReadFile(path)
	if err == nil && len(data) > 0 {
		return string(data), nil
	}
	if err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("reading workspace fingerprint: %w", err)
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating workspace fingerprint: %w", err)
	}
	fp := hex.EncodeToString(buf)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating marker folder: %w", err)
	}
	if err := os.WriteFile(path, []byte(fp), 0o644); err != nil {
		return "", fmt.Errorf("writing workspace fingerprint: %w", err)
	}
	return fp, nil
}

// --- Artifact inventory ---

// Artifact is one canonical document found by the inventory scan.
type Artifact struct {
	ID    locator.ArtifactID `json:"id"`
	Path  string             `json:"path"` // absolute path to <kind>.md
	Mtime time.Time          `json:"mtime"`
	Size  int64              `json:"size"`
}

// Scan enumerates every canonical artifact under root, sorted by kind then
// slug. Kind directories that don't exist are skipped, not errors.
func Scan(root string) ([]Artifact, error) {
	var artifacts []Artifact

	for _, kind := range []locator.Kind{locator.KindSpec, locator.KindImpl, locator.KindScratch} {
		kindDir := filepath.Join(root, string(kind))
		entries, err := os.ReadDir(kindDir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("scanning %s: %w", kindDir, err)
		}

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			id := locator.ArtifactID{Kind: kind, Slug: entry.Name()}
			path := id.DocumentPath(root)
			info, err := os.Stat(path)
			if err != nil {
				continue // directory without a canonical document
			}
			artifacts = append(artifacts, Artifact{
				ID:    id,
				Path:  path,
				Mtime: info.ModTime(),
				Size:  info.Size(),
			})
		}
	}

	sort.Slice(artifacts, func(i, j int) bool {
		if artifacts[i].ID.Kind != artifacts[j].ID.Kind {
			return artifacts[i].ID.Kind < artifacts[j].ID.Kind
		}
		return artifacts[i].ID.Slug < artifacts[j].ID.Slug
	})
	return artifacts, nil
}

// Stat returns inventory metadata for a single artifact.
func Stat(root string, id locator.ArtifactID) (Artifact, error) {
	path := id.DocumentPath(root)
	info, err := os.Stat(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("stat %s: %w", id, err)
	}
	return Artifact{ID: id, Path: path, Mtime: info.ModTime(), Size: info.Size()}, nil
}
