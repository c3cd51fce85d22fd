// Package lifecycle decides whether removing an artifact is safe, and
// carries the removal through when it is (or when the caller forces it).
package lifecycle

import (
	"fmt"
	"os"

	"specdeck/internal/cache"
	"specdeck/internal/graph"
	"specdeck/internal/locator"
)

// Plan is the outcome of a deletion request.
type Plan struct {
	Target   graph.Summary `json:"target"`
	Tree     *graph.Tree   `json:"tree"`
	Blocked  bool          `json:"blocked"`
	Override bool          `json:"override,omitempty"` // blocked but forced through
	Removed  bool          `json:"removed"`
}

// BlockedError means the artifact has blocking dependents and no force
// flag was given. It carries the blocking tree so callers can show exactly
// who depends on the target. Nothing was mutated.
type BlockedError struct {
	Target locator.ArtifactID
	Tree   *graph.Tree
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("deletion of %s blocked by %d dependent(s)", e.Target, len(e.Tree.Downstream))
}

// Guard plans and applies artifact deletions for one workspace.
type Guard struct {
	root  string
	store *cache.Store
}

// NewGuard creates a deletion guard. store may be nil when no cache exists
// to invalidate.
func NewGuard(root string, store *cache.Store) *Guard {
	return &Guard{root: root, store: store}
}

// Plan computes the downstream tree for the target and whether deletion is
// blocked. Plan never mutates anything.
func (g *Guard) Plan(id locator.ArtifactID) (*Plan, error) {
	b, err := graph.NewBuilder(g.root)
	if err != nil {
		return nil, err
	}

	tree := &graph.Tree{
		Root:       graph.Summary{ID: id, ResolvedPath: id.DocumentPath(g.root), Provenance: locator.ProvenanceHandle},
		Downstream: b.Downstream(id),
	}
	return &Plan{
		Target:  tree.Root,
		Tree:    tree,
		Blocked: graph.HasBlockingDependents(tree),
	}, nil
}

// Apply plans the deletion and carries it out. A blocked target fails with
// *BlockedError before any filesystem mutation unless force is set; a
// forced removal is annotated Override. After a successful removal every
// cached structure referencing the artifact is invalidated wholesale.
func (g *Guard) Apply(id locator.ArtifactID, force bool) (*Plan, error) {
	plan, err := g.Plan(id)
	if err != nil {
		return nil, err
	}

	if plan.Blocked && !force {
		return plan, &BlockedError{Target: id, Tree: plan.Tree}
	}
	plan.Override = plan.Blocked && force

	dir := id.Dir(g.root)
	if _, err := os.Stat(dir); err != nil {
		return plan, fmt.Errorf("artifact %s: %w", id, err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return plan, fmt.Errorf("removing %s: %w", id, err)
	}
	plan.Removed = true

	if g.store != nil {
		if err := g.store.Invalidate(); err != nil {
			return plan, fmt.Errorf("invalidating cache after removing %s: %w", id, err)
		}
	}
	return plan, nil
}
