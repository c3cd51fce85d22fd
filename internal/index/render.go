package index

import (
	"fmt"
	"strings"
)

// RenderHeading returns the heading's own content followed by the content
// of every heading it references via inline link, in link-appearance order,
// expanded recursively. A visited set guarantees each heading's content
// appears exactly once even under mutual or cyclic references.
func (idx *Index) RenderHeading(id HeadingID) (string, error) {
	rec, ok := idx.Heading(id)
	if !ok {
		return "", fmt.Errorf("heading %s not indexed", id.Key())
	}

	var b strings.Builder
	visited := make(map[HeadingID]bool)
	idx.renderInto(&b, rec, visited)
	return strings.TrimRight(b.String(), "\n") + "\n", nil
}

// renderInto appends one heading's content and expands its references.
func (idx *Index) renderInto(b *strings.Builder, rec HeadingRecord, visited map[HeadingID]bool) {
	if visited[rec.ID] {
		return
	}
	visited[rec.ID] = true

	if b.Len() > 0 {
		b.WriteString("\n")
	}
	b.WriteString(rec.Content)
	b.WriteString("\n")

	for _, target := range rec.Targets {
		next, ok := idx.Heading(target)
		if !ok {
			continue
		}
		idx.renderInto(b, next, visited)
	}
}

// RenderConstraintGroup returns the constraint group's block followed by
// the rendered content of its anchor heading (with the same exactly-once
// expansion as RenderHeading).
func (idx *Index) RenderConstraintGroup(id ConstraintID) (string, error) {
	rec, ok := idx.Constraint(id)
	if !ok {
		return "", fmt.Errorf("constraint group %s not indexed", id.Key())
	}

	var b strings.Builder
	b.WriteString(rec.Content)
	b.WriteString("\n")

	anchor, ok := rec.AnchorID()
	if ok {
		if head, exists := idx.Heading(anchor); exists {
			visited := make(map[HeadingID]bool)
			idx.renderInto(&b, head, visited)
		}
	}
	return strings.TrimRight(b.String(), "\n") + "\n", nil
}
