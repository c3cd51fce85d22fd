// Package graph builds dependency trees over workspace artifacts.
//
// Upstream edges come from each document's declared dependency list;
// downstream edges from an inverted scan of the whole inventory. Traversal
// keeps an explicit visited set keyed by artifact id, so cycles are
// detected on the active path and reported together with the partial tree
// gathered so far — never as a truncated silent success.
package graph

import (
	"fmt"
	"os"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"specdeck/internal/locator"
	"specdeck/internal/workspace"
)

// RelationDepends is the relation label for declared dependencies.
const RelationDepends = "depends"

// metaCacheSize bounds the per-builder memo of parsed document metadata.
// The memo lives for one builder only; nothing here persists.
const metaCacheSize = 512

// --- Tree model ---

// Summary identifies one node of a dependency tree: the artifact (or
// external URL) a reference resolved to, plus how it resolved.
// MetadataUnavailable marks targets whose document was missing or carried
// no parseable front matter; that is an annotation, not an error.
type Summary struct {
	ID                  locator.ArtifactID `json:"id,omitzero"`
	URL                 string             `json:"url,omitempty"`
	Version             string             `json:"version,omitempty"`
	ResolvedPath        string             `json:"resolvedPath,omitempty"`
	Provenance          locator.Provenance `json:"provenance"`
	MetadataUnavailable bool               `json:"metadataUnavailable,omitempty"`
}

// Label renders the node for diagnostics: the handle form, or the URL for
// external targets.
func (s Summary) Label() string {
	if s.URL != "" {
		return s.URL
	}
	return s.ID.String()
}

// Edge is one dependency relationship between two summaries.
type Edge struct {
	From     Summary `json:"from"`
	To       Summary `json:"to"`
	Relation string  `json:"relation"`
	Optional bool    `json:"optional"`
}

// key identifies the edge for aggregate deduplication: (from.id, to.id).
func (e Edge) key() string {
	return e.From.Label() + "->" + e.To.Label()
}

// Tree is the full dependency picture around one root artifact. Aggregate
// is always the deduplicated union of Upstream and Downstream.
type Tree struct {
	Root       Summary `json:"root"`
	Upstream   []Edge  `json:"upstream"`
	Downstream []Edge  `json:"downstream"`
	Aggregate  []Edge  `json:"aggregate"`
}

// CycleError reports a dependency cycle. Tree holds the partial result
// gathered before the cycle closed, so callers can show where it broke.
type CycleError struct {
	From locator.ArtifactID
	To   locator.ArtifactID
	Tree *Tree
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s -> %s closes the loop", e.From, e.To)
}

// --- Builder ---

// docMeta is the memoized parse of one artifact's metadata.
type docMeta struct {
	summary Summary
	deps    []depRef
	depErr  error // first locator violation in the dependency list
}

// depRef is one resolved dependency entry.
type depRef struct {
	target   Summary
	optional bool
}

// Builder computes dependency trees for one workspace. It memoizes parsed
// front matter for its own lifetime only; staleness rules for anything
// longer-lived belong to the structure cache.
type Builder struct {
	root      string
	inventory []workspace.Artifact
	meta      *lru.Cache[string, *docMeta]
}

// NewBuilder scans the workspace inventory and prepares a builder.
func NewBuilder(root string) (*Builder, error) {
	inventory, err := workspace.Scan(root)
	if err != nil {
		return nil, fmt.Errorf("scanning workspace: %w", err)
	}
	meta, err := lru.New[string, *docMeta](metaCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating metadata memo: %w", err)
	}
	return &Builder{root: root, inventory: inventory, meta: meta}, nil
}

// Inventory returns the scanned artifact list (sorted, stable).
func (b *Builder) Inventory() []workspace.Artifact {
	return b.inventory
}

// DependencyTree resolves the artifact's full dependency picture. On a
// cycle it returns the partial tree together with a *CycleError; the tree
// is still usable for diagnostics.
func (b *Builder) DependencyTree(id locator.ArtifactID) (*Tree, error) {
	tree := &Tree{Root: b.load(id).summary}

	active := map[locator.ArtifactID]bool{}
	done := map[locator.ArtifactID]bool{}
	if err := b.walkUpstream(id, active, done, tree); err != nil {
		if cyc, ok := err.(*CycleError); ok {
			cyc.Tree = tree
			tree.Aggregate = aggregate(tree)
			return tree, cyc
		}
		return nil, err
	}

	tree.Downstream = b.Downstream(id)
	tree.Aggregate = aggregate(tree)
	return tree, nil
}

// walkUpstream records the artifact's dependency edges and recurses into
// each upstream artifact. active tracks the current path for cycle
// detection; done marks fully-walked nodes so shared dependencies aren't
// expanded twice.
func (b *Builder) walkUpstream(id locator.ArtifactID, active, done map[locator.ArtifactID]bool, tree *Tree) error {
	active[id] = true
	defer delete(active, id)

	meta := b.load(id)
	if meta.depErr != nil {
		// Boundary and scheme violations surface immediately; there is no
		// partial success for a malformed dependency list on the walk path.
		return fmt.Errorf("%s: %w", id, meta.depErr)
	}
	for _, dep := range meta.deps {
		tree.Upstream = append(tree.Upstream, Edge{
			From:     meta.summary,
			To:       dep.target,
			Relation: RelationDepends,
			Optional: dep.optional,
		})

		if dep.target.URL != "" {
			continue // external targets are recorded, never recursed
		}
		next := dep.target.ID
		if active[next] {
			return &CycleError{From: id, To: next}
		}
		if done[next] {
			continue
		}
		if err := b.walkUpstream(next, active, done, tree); err != nil {
			return err
		}
	}

	done[id] = true
	return nil
}

// Downstream finds every artifact in the inventory that declares a
// dependency on id. This is an O(workspace) inverted scan per call; the
// builder's memo keeps repeat scans cheap within one invocation.
func (b *Builder) Downstream(id locator.ArtifactID) []Edge {
	var edges []Edge
	for _, a := range b.inventory {
		if a.ID == id {
			continue
		}
		meta := b.load(a.ID)
		for _, dep := range meta.deps {
			if dep.target.ID != id {
				continue
			}
			edges = append(edges, Edge{
				From:     meta.summary,
				To:       dep.target,
				Relation: RelationDepends,
				Optional: dep.optional,
			})
		}
	}
	return edges
}

// aggregate deduplicates the union of upstream and downstream edges, keyed
// by (from.id, to.id). The set is invariant under traversal order; the
// output is sorted by key.
func aggregate(tree *Tree) []Edge {
	seen := map[string]Edge{}
	for _, e := range tree.Upstream {
		if _, ok := seen[e.key()]; !ok {
			seen[e.key()] = e
		}
	}
	for _, e := range tree.Downstream {
		if _, ok := seen[e.key()]; !ok {
			seen[e.key()] = e
		}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Edge, 0, len(seen))
	for _, k := range keys {
		out = append(out, seen[k])
	}
	return out
}

// HasBlockingDependents reports whether the tree's downstream edges forbid
// removing the root. Scratch pads block only on other scratch pads; spec
// and impl artifacts block on any non-optional dependent.
func HasBlockingDependents(tree *Tree) bool {
	if tree.Root.ID.Kind == locator.KindScratch {
		for _, e := range tree.Downstream {
			if e.From.ID.Kind == locator.KindScratch {
				return true
			}
		}
		return false
	}
	for _, e := range tree.Downstream {
		if !e.Optional {
			return true
		}
	}
	return false
}

// --- Metadata loading ---

// load reads and memoizes one artifact's summary and resolved dependency
// list. A missing document or unparseable front matter yields a summary
// annotated MetadataUnavailable with no dependencies — not an error.
func (b *Builder) load(id locator.ArtifactID) *docMeta {
	if m, ok := b.meta.Get(id.String()); ok {
		return m
	}

	m := b.parse(id)
	b.meta.Add(id.String(), m)
	return m
}

func (b *Builder) parse(id locator.ArtifactID) *docMeta {
	path := id.DocumentPath(b.root)
	m := &docMeta{summary: Summary{
		ID:           id,
		ResolvedPath: path,
		Provenance:   locator.ProvenanceHandle,
	}}

	data, err := os.ReadFile(path)
	if err != nil {
		m.summary.MetadataUnavailable = true
		return m
	}
	fm, _, err := workspace.SplitFrontMatter(data)
	if err != nil || fm == nil {
		m.summary.MetadataUnavailable = true
		return m
	}

	m.summary.Version = fm.Version
	for _, dep := range fm.Deps {
		target, err := b.resolveDep(dep.Ref, path)
		if err != nil {
			if m.depErr == nil {
				m.depErr = err
			}
			continue
		}
		m.deps = append(m.deps, depRef{target: target, optional: dep.Optional})
	}
	return m
}

// resolveDep normalizes one declared reference into a target summary.
func (b *Builder) resolveDep(ref, fromDoc string) (Summary, error) {
	res, err := locator.Resolve(ref, fromDoc, b.root)
	if err != nil {
		return Summary{}, err
	}
	if res.External() {
		return Summary{
			URL:                 res.URL,
			Provenance:          res.Provenance,
			MetadataUnavailable: true, // plain URLs carry no front matter
		}, nil
	}

	target := Summary{
		ID:           res.ID,
		ResolvedPath: res.Path,
		Provenance:   res.Provenance,
	}
	// Borrow version/availability from the target document without walking
	// its dependency list.
	target.Version, target.MetadataUnavailable = b.probe(res.Path)
	return target, nil
}

// probe reads just enough of a document to report its version and whether
// usable metadata exists. It never resolves the document's own deps.
func (b *Builder) probe(path string) (version string, unavailable bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", true
	}
	fm, _, err := workspace.SplitFrontMatter(data)
	if err != nil || fm == nil {
		return "", true
	}
	return fm.Version, false
}
