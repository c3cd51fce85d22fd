package index

import (
	"fmt"
	"regexp"
	"strings"

	"specdeck/internal/locator"
)

// DuplicateSlugError is the hard indexing failure raised when two headings
// in one document normalize to the same slug. Indexing never disambiguates
// silently.
type DuplicateSlugError struct {
	Artifact locator.ArtifactID
	Slug     string
}

func (e *DuplicateSlugError) Error() string {
	return fmt.Sprintf("%s: duplicate heading slug %q", e.Artifact, e.Slug)
}

// DuplicateGroupError is raised when two constraint groups in one document
// carry the same group set; the tuple must be document-unique.
type DuplicateGroupError struct {
	Artifact locator.ArtifactID
	GroupSet string
}

func (e *DuplicateGroupError) Error() string {
	return fmt.Sprintf("%s: duplicate constraint group %q", e.Artifact, e.GroupSet)
}

// --- Parsed document model ---

// heading is one heading in a parsed document. Its extent runs from its own
// line to the next heading at the same or shallower level.
type heading struct {
	slug  string
	title string
	level int
	start int // line index of the heading itself
	end   int // exclusive end of the heading's content
}

// constraintGroup is one `!group.set:` marker with its block of statement
// lines (bounded by the next blank line, heading, or marker).
type constraintGroup struct {
	groupSet string
	line     int
	block    []string // marker line plus statements
	anchor   string   // heading slug the group is associated with; may be ""
}

// inlineLink is one markdown link found outside code fences.
type inlineLink struct {
	dest string
	line int
	col  int
}

// document is the parse result for a single artifact body.
type document struct {
	id     locator.ArtifactID
	path   string
	lines  []string
	heads  []*heading
	groups []*constraintGroup
	links  []inlineLink
}

var (
	headingPattern = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*$`)
	// A constraint marker is a standalone line `!seg.seg[.seg...]:` with at
	// least two dot-delimited segments.
	groupPattern = regexp.MustCompile(`^!([a-z0-9-]+(?:\.[a-z0-9-]+)+):\s*$`)
	linkPattern  = regexp.MustCompile(`\[[^\]]*\]\(([^)\s]+)\)`)
)

// parseDocument scans an artifact body into headings, constraint groups,
// and inline links. Fenced code blocks are opaque: nothing inside them is
// structural.
func parseDocument(id locator.ArtifactID, path, body string) (*document, error) {
	doc := &document{
		id:    id,
		path:  path,
		lines: strings.Split(body, "\n"),
	}

	slugs := make(map[string]bool)
	groupSets := make(map[string]bool)
	inFence := false

	for i, line := range doc.lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}

		if m := headingPattern.FindStringSubmatch(line); m != nil {
			slug := Slugify(m[2])
			if slug == "" {
				continue // heading with no identifier-safe content
			}
			if slugs[slug] {
				return nil, &DuplicateSlugError{Artifact: id, Slug: slug}
			}
			slugs[slug] = true
			doc.heads = append(doc.heads, &heading{
				slug:  slug,
				title: m[2],
				level: len(m[1]),
				start: i,
			})
			continue
		}

		if m := groupPattern.FindStringSubmatch(line); m != nil {
			if groupSets[m[1]] {
				return nil, &DuplicateGroupError{Artifact: id, GroupSet: m[1]}
			}
			groupSets[m[1]] = true
			doc.groups = append(doc.groups, &constraintGroup{groupSet: m[1], line: i})
			continue
		}

		for _, lm := range linkPattern.FindAllStringSubmatchIndex(line, -1) {
			doc.links = append(doc.links, inlineLink{
				dest: line[lm[2]:lm[3]],
				line: i,
				col:  lm[0],
			})
		}
	}

	doc.closeHeadings()
	doc.collectGroupBlocks()
	doc.anchorGroups()
	return doc, nil
}

// closeHeadings computes each heading's extent: up to the next heading at
// the same or shallower level, else end of document.
func (d *document) closeHeadings() {
	for i, h := range d.heads {
		h.end = len(d.lines)
		for _, next := range d.heads[i+1:] {
			if next.level <= h.level {
				h.end = next.start
				break
			}
		}
	}
}

// collectGroupBlocks gathers each group's statement lines: from its marker
// until the next blank line, heading, or marker.
func (d *document) collectGroupBlocks() {
	for _, g := range d.groups {
		g.block = append(g.block, d.lines[g.line])
		for i := g.line + 1; i < len(d.lines); i++ {
			line := d.lines[i]
			if strings.TrimSpace(line) == "" ||
				headingPattern.MatchString(line) ||
				groupPattern.MatchString(line) {
				break
			}
			g.block = append(g.block, line)
		}
	}
}

// anchorGroups associates each constraint group with a heading: the heading
// whose slug matches the group set's first segment, falling back to the
// nearest enclosing heading.
func (d *document) anchorGroups() {
	for _, g := range d.groups {
		first := g.groupSet[:strings.Index(g.groupSet, ".")]
		if h := d.headingBySlug(first); h != nil {
			g.anchor = h.slug
			continue
		}
		if h := d.enclosingHeading(g.line); h != nil {
			g.anchor = h.slug
		}
	}
}

func (d *document) headingBySlug(slug string) *heading {
	for _, h := range d.heads {
		if h.slug == slug {
			return h
		}
	}
	return nil
}

// enclosingHeading returns the innermost heading whose extent contains the
// given line, or nil if the line precedes every heading.
func (d *document) enclosingHeading(line int) *heading {
	var best *heading
	for _, h := range d.heads {
		if h.start <= line && line < h.end {
			best = h // later headings in range are deeper
		}
	}
	return best
}

// content returns a heading's full content: its own text plus everything in
// its extent (nested subheadings, constraint groups, prose).
func (d *document) content(h *heading) string {
	return strings.Join(d.lines[h.start:h.end], "\n")
}

// linksIn returns the inline links within a heading's extent, in appearance
// order. Links in nested subheadings belong to the enclosing heading too.
func (d *document) linksIn(h *heading) []inlineLink {
	var out []inlineLink
	for _, l := range d.links {
		if h.start <= l.line && l.line < h.end {
			out = append(out, l)
		}
	}
	return out
}
