package graph

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"specdeck/internal/locator"
)

// --- Test helpers ---

func specID(slug string) locator.ArtifactID {
	return locator.ArtifactID{Kind: locator.KindSpec, Slug: slug}
}

func scratchID(slug string) locator.ArtifactID {
	return locator.ArtifactID{Kind: locator.KindScratch, Slug: slug}
}

func writeDoc(t *testing.T, root string, id locator.ArtifactID, content string) {
	t.Helper()
	path := id.DocumentPath(root)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func newBuilder(t *testing.T, root string) *Builder {
	t.Helper()
	b, err := NewBuilder(root)
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	return b
}

// hasEdge reports whether edges contain from→to.
func hasEdge(edges []Edge, from, to locator.ArtifactID) bool {
	for _, e := range edges {
		if e.From.ID == from && e.To.ID == to {
			return true
		}
	}
	return false
}

func TestDependencyTreeLinear(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, specID("a"), "---\nversion: \"1\"\ndeps:\n  - ../b/spec.md\n---\n# A\n")
	writeDoc(t, root, specID("b"), "---\nversion: \"3\"\n---\n# B\n")

	tree, err := newBuilder(t, root).DependencyTree(specID("a"))
	if err != nil {
		t.Fatalf("DependencyTree: %v", err)
	}

	if tree.Root.ID != specID("a") {
		t.Errorf("root = %v", tree.Root.ID)
	}
	if tree.Root.Version != "1" {
		t.Errorf("root version = %q", tree.Root.Version)
	}
	if len(tree.Upstream) != 1 {
		t.Fatalf("got %d upstream edges, want 1", len(tree.Upstream))
	}
	up := tree.Upstream[0]
	if up.From.ID != specID("a") || up.To.ID != specID("b") {
		t.Errorf("upstream edge = %s -> %s", up.From.Label(), up.To.Label())
	}
	if up.Optional {
		t.Error("bare dependency marked optional")
	}
	if up.To.Version != "3" {
		t.Errorf("target version = %q", up.To.Version)
	}
	if up.To.MetadataUnavailable {
		t.Error("readable target marked metadataUnavailable")
	}
	if len(tree.Downstream) != 0 {
		t.Errorf("downstream = %v", tree.Downstream)
	}
	if len(tree.Aggregate) != 1 {
		t.Errorf("got %d aggregate edges, want 1", len(tree.Aggregate))
	}
}

func TestDependencyTreeTransitive(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, specID("a"), "---\ndeps: [spec://b]\n---\n# A\n")
	writeDoc(t, root, specID("b"), "---\ndeps: [spec://c]\n---\n# B\n")
	writeDoc(t, root, specID("c"), "# C\n")

	tree, err := newBuilder(t, root).DependencyTree(specID("a"))
	if err != nil {
		t.Fatalf("DependencyTree: %v", err)
	}
	if !hasEdge(tree.Upstream, specID("a"), specID("b")) {
		t.Error("missing edge a -> b")
	}
	if !hasEdge(tree.Upstream, specID("b"), specID("c")) {
		t.Error("missing transitive edge b -> c")
	}
}

func TestDependencyTreeDiamondDeduplicates(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, specID("a"), "---\ndeps: [spec://b, spec://c]\n---\n# A\n")
	writeDoc(t, root, specID("b"), "---\ndeps: [spec://d]\n---\n# B\n")
	writeDoc(t, root, specID("c"), "---\ndeps: [spec://d]\n---\n# C\n")
	writeDoc(t, root, specID("d"), "# D\n")

	tree, err := newBuilder(t, root).DependencyTree(specID("a"))
	if err != nil {
		t.Fatalf("DependencyTree: %v", err)
	}

	// Both edges into the shared dependency survive; the shared node's own
	// subtree is walked once.
	if !hasEdge(tree.Upstream, specID("b"), specID("d")) || !hasEdge(tree.Upstream, specID("c"), specID("d")) {
		t.Errorf("diamond edges missing: %v", tree.Upstream)
	}
	if len(tree.Aggregate) != 4 {
		t.Errorf("got %d aggregate edges, want 4", len(tree.Aggregate))
	}
}

func TestDependencyTreeCycle(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, specID("a"), "---\ndeps: [spec://b]\n---\n# A\n")
	writeDoc(t, root, specID("b"), "---\ndeps: [spec://a]\n---\n# B\n")

	tree, err := newBuilder(t, root).DependencyTree(specID("a"))

	var cyc *CycleError
	if !errors.As(err, &cyc) {
		t.Fatalf("DependencyTree = %v, want CycleError", err)
	}
	// The partial tree travels with the error and contains the a -> b edge.
	if cyc.Tree == nil {
		t.Fatal("cycle error carries no partial tree")
	}
	if !hasEdge(cyc.Tree.Upstream, specID("a"), specID("b")) {
		t.Errorf("partial tree missing edge a -> b: %v", cyc.Tree.Upstream)
	}
	if tree == nil || tree != cyc.Tree {
		t.Error("returned tree is not the partial tree from the error")
	}
}

func TestDependencyTreeSelfCycle(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, specID("a"), "---\ndeps: [spec://a]\n---\n# A\n")

	_, err := newBuilder(t, root).DependencyTree(specID("a"))
	var cyc *CycleError
	if !errors.As(err, &cyc) {
		t.Fatalf("DependencyTree = %v, want CycleError", err)
	}
}

func TestMissingTargetAnnotatedNotError(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, specID("a"), "---\ndeps: [../b/spec.md]\n---\n# A\n")
	// spec/b never written.

	tree, err := newBuilder(t, root).DependencyTree(specID("a"))
	if err != nil {
		t.Fatalf("DependencyTree: %v", err)
	}
	if len(tree.Upstream) != 1 {
		t.Fatalf("got %d upstream edges, want 1", len(tree.Upstream))
	}
	to := tree.Upstream[0].To
	if to.ID != specID("b") {
		t.Errorf("target id = %v", to.ID)
	}
	if !to.MetadataUnavailable {
		t.Error("missing target not annotated metadataUnavailable")
	}
}

func TestExternalURLRecordedNotRecursed(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, specID("a"), "---\ndeps: [\"https://example.com/rfc\"]\n---\n# A\n")

	tree, err := newBuilder(t, root).DependencyTree(specID("a"))
	if err != nil {
		t.Fatalf("DependencyTree: %v", err)
	}
	if len(tree.Upstream) != 1 {
		t.Fatalf("got %d upstream edges, want 1", len(tree.Upstream))
	}
	to := tree.Upstream[0].To
	if to.URL != "https://example.com/rfc" {
		t.Errorf("url = %q", to.URL)
	}
	if !to.MetadataUnavailable {
		t.Error("URL target not annotated metadataUnavailable")
	}
}

func TestDependencyListViolationSurfaces(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, specID("a"), "---\ndeps: [../../../../etc/passwd]\n---\n# A\n")

	_, err := newBuilder(t, root).DependencyTree(specID("a"))
	if !errors.Is(err, locator.ErrOutsideWorkspace) {
		t.Fatalf("DependencyTree = %v, want ErrOutsideWorkspace", err)
	}
}

func TestDownstreamInvertedScan(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, specID("lib"), "# Lib\n")
	writeDoc(t, root, specID("app"), "---\ndeps: [spec://lib]\n---\n# App\n")
	writeDoc(t, root, specID("tool"), "---\ndeps:\n  - ref: spec://lib\n    optional: true\n---\n# Tool\n")

	b := newBuilder(t, root)
	edges := b.Downstream(specID("lib"))
	if len(edges) != 2 {
		t.Fatalf("got %d downstream edges, want 2", len(edges))
	}
	if !hasEdge(edges, specID("app"), specID("lib")) {
		t.Error("missing app -> lib edge")
	}
	byFrom := map[string]Edge{}
	for _, e := range edges {
		byFrom[e.From.ID.Slug] = e
	}
	if byFrom["app"].Optional {
		t.Error("app edge marked optional")
	}
	if !byFrom["tool"].Optional {
		t.Error("tool edge not optional")
	}
}

func TestAggregateSetInvariantUnderOrder(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, specID("a"), "---\ndeps: [spec://b, spec://c]\n---\n# A\n")
	writeDoc(t, root, specID("b"), "# B\n")
	writeDoc(t, root, specID("c"), "# C\n")
	writeDoc(t, root, specID("z"), "---\ndeps: [spec://a]\n---\n# Z\n")

	// Two builders, two traversals: the aggregate edge set must match.
	collect := func() map[string]bool {
		tree, err := newBuilder(t, root).DependencyTree(specID("a"))
		if err != nil {
			t.Fatalf("DependencyTree: %v", err)
		}
		set := map[string]bool{}
		for _, e := range tree.Aggregate {
			set[e.From.Label()+"->"+e.To.Label()] = true
		}
		return set
	}

	first, second := collect(), collect()
	if len(first) != len(second) {
		t.Fatalf("aggregate sizes differ: %d vs %d", len(first), len(second))
	}
	for k := range first {
		if !second[k] {
			t.Errorf("edge %s missing from second traversal", k)
		}
	}
	if !first["spec://z->spec://a"] {
		t.Error("aggregate missing downstream edge z -> a")
	}
}

func TestHasBlockingDependents(t *testing.T) {
	spec := func(slug string) Summary { return Summary{ID: specID(slug)} }
	pad := func(slug string) Summary { return Summary{ID: scratchID(slug)} }

	tests := []struct {
		name string
		tree *Tree
		want bool
	}{
		{
			"no dependents",
			&Tree{Root: spec("lib")},
			false,
		},
		{
			"required dependent blocks",
			&Tree{Root: spec("lib"), Downstream: []Edge{{From: spec("app"), To: spec("lib")}}},
			true,
		},
		{
			"optional dependents don't block",
			&Tree{Root: spec("lib"), Downstream: []Edge{{From: spec("app"), To: spec("lib"), Optional: true}}},
			false,
		},
		{
			"scratch root ignores spec dependents",
			&Tree{Root: pad("notes"), Downstream: []Edge{{From: spec("app"), To: pad("notes")}}},
			false,
		},
		{
			"scratch root blocks on scratch dependents",
			&Tree{Root: pad("notes"), Downstream: []Edge{{From: pad("other"), To: pad("notes"), Optional: true}}},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasBlockingDependents(tt.tree); got != tt.want {
				t.Errorf("HasBlockingDependents = %v, want %v", got, tt.want)
			}
		})
	}
}
