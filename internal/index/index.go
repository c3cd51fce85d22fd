// Package index builds the workspace structure index: headings, constraint
// groups, and the relationship edges between them, parsed out of every
// canonical Markdown artifact.
//
// Identical inputs produce an identical index. All derived ordering is
// sorted, never map-iteration order.
package index

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"specdeck/internal/locator"
	"specdeck/internal/workspace"
)

// SchemaVersion is the on-disk schema of the serialized index. Bump it on
// any change to the record shapes; mismatched caches rebuild wholesale.
const SchemaVersion = 1

// --- Identifiers ---

// HeadingID names one heading: the artifact it lives in plus its slug.
// Slugs are unique within a document, so the pair is workspace-unique.
type HeadingID struct {
	Artifact locator.ArtifactID `json:"artifact"`
	Slug     string             `json:"slug"`
}

// Key is the stable map key for the heading, e.g. "spec://auth#overview".
func (h HeadingID) Key() string {
	return h.Artifact.String() + "#" + h.Slug
}

// ConstraintID names one constraint group by its document-unique group set.
type ConstraintID struct {
	Artifact locator.ArtifactID `json:"artifact"`
	GroupSet string             `json:"groupSet"`
}

// Key is the stable map key for the group, e.g. "spec://auth!auth.tokens".
func (c ConstraintID) Key() string {
	return c.Artifact.String() + "!" + c.GroupSet
}

// --- Records ---

// HeadingRecord is the indexed form of one heading. LinkDests keeps the raw
// link destinations in appearance order; Targets is the resolved subset and
// is recomputed whenever indexes are merged, never persisted.
type HeadingRecord struct {
	ID        HeadingID   `json:"id"`
	Title     string      `json:"title"`
	Level     int         `json:"level"`
	Line      int         `json:"line"`
	Content   string      `json:"content"`
	LinkDests []string    `json:"linkDests,omitempty"`
	Targets   []HeadingID `json:"-"`
}

// ConstraintRecord is the indexed form of one constraint group.
type ConstraintRecord struct {
	ID      ConstraintID `json:"id"`
	Anchor  string       `json:"anchor,omitempty"` // heading slug in the same artifact
	Content string       `json:"content"`
}

// AnchorID returns the heading the group is anchored to, and whether one
// exists.
func (c ConstraintRecord) AnchorID() (HeadingID, bool) {
	if c.Anchor == "" {
		return HeadingID{}, false
	}
	return HeadingID{Artifact: c.ID.Artifact, Slug: c.Anchor}, true
}

// RelationKind labels a relationship edge.
type RelationKind string

const (
	// RelLink is a heading→heading edge derived from an inline link.
	RelLink RelationKind = "link"
	// RelConstraint is a constraint-group→heading anchor edge.
	RelConstraint RelationKind = "constraint"
)

// Relationship is one derived edge. Link edges populate Source; constraint
// edges populate Constraint.
type Relationship struct {
	Kind       RelationKind `json:"kind"`
	Source     HeadingID    `json:"source,omitzero"`
	Constraint ConstraintID `json:"constraint,omitzero"`
	Target     HeadingID    `json:"target"`
}

// Index is the queryable structure index over one workspace.
type Index struct {
	SchemaVersion int                          `json:"schemaVersion"`
	Fingerprint   string                       `json:"fingerprint"`
	Artifacts     map[string]workspace.Artifact `json:"artifacts"`
	Headings      map[string]HeadingRecord     `json:"headings"`
	Constraints   map[string]ConstraintRecord  `json:"constraints"`
	Relationships []Relationship               `json:"relationships"`
}

// New returns an empty index at the current schema version.
func New(fingerprint string) *Index {
	return &Index{
		SchemaVersion: SchemaVersion,
		Fingerprint:   fingerprint,
		Artifacts:     make(map[string]workspace.Artifact),
		Headings:      make(map[string]HeadingRecord),
		Constraints:   make(map[string]ConstraintRecord),
	}
}

// Build parses the given artifacts into a fresh index. It reads each
// document once; a duplicate heading slug or duplicate group set anywhere
// fails the whole build.
func Build(root, fingerprint string, artifacts []workspace.Artifact) (*Index, error) {
	idx := New(fingerprint)
	if err := idx.addArtifacts(root, artifacts); err != nil {
		return nil, err
	}
	idx.Finalize(root)
	return idx, nil
}

// Extend parses additional artifacts into a copy of base and re-derives all
// relationships over the merged heading set. base may be nil. Used to layer
// live-indexed scratch documents over a cached spec/impl index.
func Extend(base *Index, root, fingerprint string, artifacts []workspace.Artifact) (*Index, error) {
	idx := New(fingerprint)
	if base != nil {
		for k, v := range base.Artifacts {
			idx.Artifacts[k] = v
		}
		for k, v := range base.Headings {
			v.Targets = nil
			idx.Headings[k] = v
		}
		for k, v := range base.Constraints {
			idx.Constraints[k] = v
		}
	}
	if err := idx.addArtifacts(root, artifacts); err != nil {
		return nil, err
	}
	idx.Finalize(root)
	return idx, nil
}

// addArtifacts parses each artifact's body into heading and constraint
// records.
func (idx *Index) addArtifacts(root string, artifacts []workspace.Artifact) error {
	for _, a := range artifacts {
		data, err := os.ReadFile(a.Path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", a.ID, err)
		}
		// Metadata problems don't stop structure indexing; the body is
		// still parseable markdown.
		_, body, _ := workspace.SplitFrontMatter(data)

		doc, err := parseDocument(a.ID, a.Path, body)
		if err != nil {
			return err
		}

		idx.Artifacts[a.ID.String()] = a

		for _, h := range doc.heads {
			rec := HeadingRecord{
				ID:      HeadingID{Artifact: a.ID, Slug: h.slug},
				Title:   h.title,
				Level:   h.level,
				Line:    h.start,
				Content: doc.content(h),
			}
			for _, l := range doc.linksIn(h) {
				rec.LinkDests = append(rec.LinkDests, l.dest)
			}
			idx.Headings[rec.ID.Key()] = rec
		}

		for _, g := range doc.groups {
			rec := ConstraintRecord{
				ID:      ConstraintID{Artifact: a.ID, GroupSet: g.groupSet},
				Anchor:  g.anchor,
				Content: strings.Join(g.block, "\n"),
			}
			idx.Constraints[rec.ID.Key()] = rec
		}
	}
	return nil
}

// Finalize resolves link destinations against the full heading set and
// derives the relationship edge list. Deterministic: headings are visited
// in sorted key order, destinations in appearance order.
func (idx *Index) Finalize(root string) {
	idx.Relationships = nil

	for _, key := range sortedKeys(idx.Headings) {
		rec := idx.Headings[key]
		rec.Targets = nil
		for _, dest := range rec.LinkDests {
			target, ok := idx.resolveDest(root, rec.ID, dest)
			if !ok {
				continue
			}
			rec.Targets = append(rec.Targets, target)
			idx.Relationships = append(idx.Relationships, Relationship{
				Kind:   RelLink,
				Source: rec.ID,
				Target: target,
			})
		}
		idx.Headings[key] = rec
	}

	for _, key := range sortedKeys(idx.Constraints) {
		rec := idx.Constraints[key]
		anchor, ok := rec.AnchorID()
		if !ok {
			continue
		}
		if _, exists := idx.Headings[anchor.Key()]; !exists {
			continue
		}
		idx.Relationships = append(idx.Relationships, Relationship{
			Kind:       RelConstraint,
			Constraint: rec.ID,
			Target:     anchor,
		})
	}
}

// resolveDest maps one link destination to an indexed heading. Only
// filesystem destinations (and same-document fragments) form edges;
// handles, URLs, out-of-workspace paths, and unindexed targets are skipped.
func (idx *Index) resolveDest(root string, from HeadingID, dest string) (HeadingID, bool) {
	pathPart, frag, _ := strings.Cut(dest, "#")

	if pathPart == "" {
		if frag == "" {
			return HeadingID{}, false
		}
		target := HeadingID{Artifact: from.Artifact, Slug: Slugify(frag)}
		if target.Slug == from.Slug {
			return HeadingID{}, false
		}
		_, ok := idx.Headings[target.Key()]
		return target, ok
	}

	fromDoc := ""
	if a, ok := idx.Artifacts[from.Artifact.String()]; ok {
		fromDoc = a.Path
	}
	res, err := locator.Resolve(pathPart, fromDoc, root)
	if err != nil || res.External() || res.Provenance != locator.ProvenanceFile {
		return HeadingID{}, false
	}

	if frag != "" {
		target := HeadingID{Artifact: res.ID, Slug: Slugify(frag)}
		_, ok := idx.Headings[target.Key()]
		return target, ok
	}
	return idx.firstHeading(res.ID)
}

// firstHeading returns the earliest heading of an artifact (its title
// heading), if the artifact is indexed and has one.
func (idx *Index) firstHeading(id locator.ArtifactID) (HeadingID, bool) {
	best := HeadingID{}
	bestLine := -1
	prefix := id.String() + "#"
	for _, key := range sortedKeys(idx.Headings) {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rec := idx.Headings[key]
		if bestLine < 0 || rec.Line < bestLine {
			best = rec.ID
			bestLine = rec.Line
		}
	}
	return best, bestLine >= 0
}

// Heading looks up a heading record by id.
func (idx *Index) Heading(id HeadingID) (HeadingRecord, bool) {
	rec, ok := idx.Headings[id.Key()]
	return rec, ok
}

// Constraint looks up a constraint record by id.
func (idx *Index) Constraint(id ConstraintID) (ConstraintRecord, bool) {
	rec, ok := idx.Constraints[id.Key()]
	return rec, ok
}

// DropArtifact removes every record belonging to the given artifact and
// re-derives relationships. Used after a deletion to keep an in-memory
// index coherent.
func (idx *Index) DropArtifact(root string, id locator.ArtifactID) {
	delete(idx.Artifacts, id.String())
	for key, rec := range idx.Headings {
		if rec.ID.Artifact == id {
			delete(idx.Headings, key)
		}
	}
	for key, rec := range idx.Constraints {
		if rec.ID.Artifact == id {
			delete(idx.Constraints, key)
		}
	}
	idx.Finalize(root)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
