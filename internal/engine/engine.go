// Package engine is the facade over the document graph: the operations a
// front end (CLI subcommand or MCP tool) calls. It owns no state beyond a
// handle on the workspace and its cache store; every operation is a
// synchronous function over the filesystem.
package engine

import (
	"fmt"
	"strings"

	"specdeck/internal/cache"
	"specdeck/internal/graph"
	"specdeck/internal/index"
	"specdeck/internal/lifecycle"
	"specdeck/internal/locator"
	"specdeck/internal/workspace"
)

// Engine exposes the document graph operations for one workspace.
type Engine struct {
	root        string
	fingerprint string
	store       *cache.Store
}

// New opens the workspace at root, initializing the marker folder and
// fingerprint on first use.
func New(root string) (*Engine, error) {
	if err := workspace.Init(root); err != nil {
		return nil, fmt.Errorf("initializing workspace: %w", err)
	}
	fp, err := workspace.Fingerprint(root)
	if err != nil {
		return nil, err
	}
	return &Engine{
		root:        root,
		fingerprint: fp,
		store:       cache.NewStore(root, fp),
	}, nil
}

// Root returns the workspace root the engine is bound to.
func (e *Engine) Root() string { return e.root }

// Resolve normalizes a reference into an artifact id or external URL.
// fromDoc anchors relative paths and may be empty.
func (e *Engine) Resolve(ref, fromDoc string) (locator.Resolved, error) {
	return locator.Resolve(ref, fromDoc, e.root)
}

// DependencyTree builds the upstream/downstream/aggregate tree for an
// artifact. On a cycle the returned error is a *graph.CycleError carrying
// the partial tree.
func (e *Engine) DependencyTree(id locator.ArtifactID) (*graph.Tree, error) {
	b, err := graph.NewBuilder(e.root)
	if err != nil {
		return nil, err
	}
	return b.DependencyTree(id)
}

// BuildIndex returns the structure index for the whole workspace. With
// useCache, a fresh disk cache is loaded without locking and only scratch
// documents are re-indexed live; otherwise (or on any staleness, miss, or
// corruption) the index is rebuilt from scratch and — when the cache was
// consulted — persisted. Lock contention during persist is a hard stop.
func (e *Engine) BuildIndex(useCache bool) (*index.Index, error) {
	artifacts, err := workspace.Scan(e.root)
	if err != nil {
		return nil, err
	}

	if !useCache {
		return index.Build(e.root, e.fingerprint, artifacts)
	}

	var scratch []workspace.Artifact
	for _, a := range artifacts {
		if !cache.Persistable(a) {
			scratch = append(scratch, a)
		}
	}

	if e.store.Fresh(artifacts) {
		if base, err := e.store.Load(); err == nil {
			return index.Extend(base, e.root, e.fingerprint, scratch)
		}
		// Corrupt or unreadable data behind a fresh manifest: treat as a
		// miss and fall through to a rebuild.
	}

	full, err := index.Build(e.root, e.fingerprint, artifacts)
	if err != nil {
		return nil, err
	}
	if err := e.store.Install(full, artifacts); err != nil {
		return nil, err
	}
	return full, nil
}

// RenderHeading returns the heading's content with all linked headings
// expanded exactly once, against the cached index.
func (e *Engine) RenderHeading(id index.HeadingID) (string, error) {
	idx, err := e.BuildIndex(true)
	if err != nil {
		return "", err
	}
	return idx.RenderHeading(id)
}

// RenderConstraintGroup returns the constraint group's block plus its
// anchor heading's rendered content, against the cached index.
func (e *Engine) RenderConstraintGroup(id index.ConstraintID) (string, error) {
	idx, err := e.BuildIndex(true)
	if err != nil {
		return "", err
	}
	return idx.RenderConstraintGroup(id)
}

// PlanDeletion checks an artifact's dependents and removes it when safe
// (or forced). Cached structures referencing the artifact are invalidated
// after the removal.
func (e *Engine) PlanDeletion(id locator.ArtifactID, force bool) (*lifecycle.Plan, error) {
	return lifecycle.NewGuard(e.root, e.store).Apply(id, force)
}

// --- Reference parsing helpers for front ends ---

// ParseArtifactRef resolves a reference that must name an artifact, not an
// external URL.
func (e *Engine) ParseArtifactRef(ref string) (locator.ArtifactID, error) {
	res, err := locator.Resolve(ref, "", e.root)
	if err != nil {
		return locator.ArtifactID{}, err
	}
	if res.External() {
		return locator.ArtifactID{}, fmt.Errorf("%q names a URL, not a workspace artifact", ref)
	}
	return res.ID, nil
}

// ParseHeadingRef parses "<artifact>#<slug>", e.g. "spec://auth#tokens".
func (e *Engine) ParseHeadingRef(ref string) (index.HeadingID, error) {
	artifactRef, slug, ok := strings.Cut(ref, "#")
	if !ok || slug == "" {
		return index.HeadingID{}, fmt.Errorf("heading reference %q must be <artifact>#<slug>", ref)
	}
	id, err := e.ParseArtifactRef(artifactRef)
	if err != nil {
		return index.HeadingID{}, err
	}
	return index.HeadingID{Artifact: id, Slug: index.Slugify(slug)}, nil
}

// ParseConstraintRef parses "<artifact>!<group.set>".
func (e *Engine) ParseConstraintRef(ref string) (index.ConstraintID, error) {
	artifactRef, groupSet, ok := strings.Cut(ref, "!")
	if !ok || !strings.Contains(groupSet, ".") {
		return index.ConstraintID{}, fmt.Errorf("constraint reference %q must be <artifact>!<group.set>", ref)
	}
	id, err := e.ParseArtifactRef(artifactRef)
	if err != nil {
		return index.ConstraintID{}, err
	}
	return index.ConstraintID{Artifact: id, GroupSet: groupSet}, nil
}
