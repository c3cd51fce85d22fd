// Package locator normalizes textual references into canonical artifact
// identifiers.
//
// A reference is one of three closed forms: a resource handle (spec://,
// impl://, scratch://), an https:// URL, or a filesystem path (absolute or
// relative to the document it appears in). Each form has its own normalize
// function; nothing outside these forms resolves.
package locator

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// --- Artifact kinds ---

// Kind categorizes a workspace artifact.
type Kind string

const (
	KindSpec    Kind = "spec"
	KindImpl    Kind = "impl"
	KindScratch Kind = "scratch"
)

// validKinds is the set of recognized artifact kinds.
var validKinds = map[Kind]bool{
	KindSpec:    true,
	KindImpl:    true,
	KindScratch: true,
}

// ParseKind converts a string to a Kind, reporting whether it is recognized.
func ParseKind(s string) (Kind, bool) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	return k, validKinds[k]
}

// --- Artifact identity ---

// ArtifactID is the canonical handle for a workspace artifact: a kind plus
// a workspace-unique slug. Everything downstream of resolution keys on it.
type ArtifactID struct {
	Kind Kind   `json:"kind"`
	Slug string `json:"slug"`
}

// String renders the id in handle form, e.g. "spec://auth-flow".
func (id ArtifactID) String() string {
	return fmt.Sprintf("%s://%s", id.Kind, id.Slug)
}

// IsZero reports whether the id is unset.
func (id ArtifactID) IsZero() bool {
	return id.Kind == "" && id.Slug == ""
}

// DocumentPath returns the canonical markdown path for the artifact:
// <root>/<kind>/<slug>/<kind>.md.
func (id ArtifactID) DocumentPath(root string) string {
	return filepath.Join(root, string(id.Kind), id.Slug, string(id.Kind)+".md")
}

// Dir returns the artifact's directory: <root>/<kind>/<slug>.
func (id ArtifactID) Dir(root string) string {
	return filepath.Join(root, string(id.Kind), id.Slug)
}

// --- Resolution provenance ---

// Provenance records how a reference was matched to its result.
type Provenance string

const (
	// ProvenanceHandle means the reference was an exact resource handle.
	ProvenanceHandle Provenance = "exact-handle"
	// ProvenanceFile means the reference was a filesystem path matched to
	// an artifact (canonical layout or best-available fallback).
	ProvenanceFile Provenance = "best-match-file"
	// ProvenanceURL means the reference was an external https URL.
	ProvenanceURL Provenance = "best-match-URL"
)

// --- Resolution result ---

// Resolved is the outcome of normalizing one reference. Exactly one of the
// two shapes is populated: an artifact id (with its canonical document
// path), or an external URL.
type Resolved struct {
	ID         ArtifactID `json:"id,omitzero"`
	URL        string     `json:"url,omitempty"`
	Path       string     `json:"path,omitempty"`
	Provenance Provenance `json:"provenance"`
}

// External reports whether the reference resolved to a URL outside the
// workspace rather than an artifact.
func (r Resolved) External() bool {
	return r.URL != ""
}

// --- Errors ---

var (
	// ErrUnsupportedScheme is returned for any scheme outside the closed
	// set (including plain http, which is never silently upgraded).
	ErrUnsupportedScheme = errors.New("unsupported scheme")
	// ErrOutsideWorkspace is returned when a filesystem reference
	// canonicalizes to a path outside the workspace root.
	ErrOutsideWorkspace = errors.New("path outside workspace")
	// ErrInvalidHandle is returned for a malformed resource handle.
	ErrInvalidHandle = errors.New("invalid resource handle")
)

// slugPattern is the shape of a normalized handle slug: lowercase, single
// segment, hyphen-delimited.
var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// --- Resolution ---

// Resolve normalizes a raw reference found in fromDoc into an artifact id
// or an external URL. root is the absolute workspace root; fromDoc is the
// absolute path of the document the reference appeared in and anchors
// relative paths (relative references resolve against the workspace root
// when fromDoc is empty).
func Resolve(raw, fromDoc, root string) (Resolved, error) {
	ref := strings.TrimSpace(raw)
	if ref == "" {
		return Resolved{}, fmt.Errorf("%w: empty reference", ErrInvalidHandle)
	}

	if scheme, rest, ok := splitScheme(ref); ok {
		if kind, isKind := ParseKind(scheme); isKind {
			return resolveHandle(kind, rest, root)
		}
		switch scheme {
		case "https":
			return Resolved{URL: ref, Provenance: ProvenanceURL}, nil
		case "http":
			return Resolved{}, fmt.Errorf("%w: %q (non-TLS http is rejected, not upgraded)", ErrUnsupportedScheme, ref)
		default:
			return Resolved{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
		}
	}

	return resolvePath(ref, fromDoc, root)
}

// splitScheme separates "scheme://rest". Windows drive letters ("C:\...")
// don't match because the separator must be exactly "://".
func splitScheme(ref string) (scheme, rest string, ok bool) {
	i := strings.Index(ref, "://")
	if i < 0 {
		return "", "", false
	}
	return strings.ToLower(ref[:i]), ref[i+3:], true
}

// resolveHandle normalizes "kind://slug". Handles resolve independently of
// any base path.
func resolveHandle(kind Kind, rawSlug, root string) (Resolved, error) {
	slug := strings.ToLower(strings.TrimSpace(rawSlug))
	slug = strings.Trim(slug, "/")
	if slug == "" {
		return Resolved{}, fmt.Errorf("%w: %s:// has no slug", ErrInvalidHandle, kind)
	}
	if strings.Contains(slug, "/") {
		return Resolved{}, fmt.Errorf("%w: %q is not a single segment", ErrInvalidHandle, rawSlug)
	}
	if !slugPattern.MatchString(slug) {
		return Resolved{}, fmt.Errorf("%w: %q", ErrInvalidHandle, rawSlug)
	}

	id := ArtifactID{Kind: kind, Slug: slug}
	return Resolved{
		ID:         id,
		Path:       id.DocumentPath(root),
		Provenance: ProvenanceHandle,
	}, nil
}

// resolvePath canonicalizes a filesystem reference and maps it to an
// artifact. The workspace-boundary check runs on the canonical form so
// traversal via ".." segments cannot escape.
func resolvePath(ref, fromDoc, root string) (Resolved, error) {
	path := ref
	if !filepath.IsAbs(path) {
		base := root
		if fromDoc != "" {
			base = filepath.Dir(fromDoc)
		}
		path = filepath.Join(base, path)
	}
	path = filepath.Clean(path)

	rel, err := filepath.Rel(filepath.Clean(root), path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return Resolved{}, fmt.Errorf("%w: %q canonicalizes to %q", ErrOutsideWorkspace, ref, path)
	}

	id := identifyPath(rel)
	return Resolved{
		ID:         id,
		Path:       path,
		Provenance: ProvenanceFile,
	}, nil
}

// identifyPath maps a workspace-relative path to an artifact id. Paths in
// the canonical <kind>/<slug>/<kind>.md layout get the exact id; anything
// else gets a best-available id so graph callers can still record the edge
// (kind from the top-level directory when it names one, else scratch; slug
// derived from the path).
func identifyPath(rel string) ArtifactID {
	segs := strings.Split(filepath.ToSlash(rel), "/")

	if len(segs) == 3 {
		if kind, ok := ParseKind(segs[0]); ok && segs[2] == string(kind)+".md" {
			return ArtifactID{Kind: kind, Slug: strings.ToLower(segs[1])}
		}
	}

	kind := KindScratch
	rest := segs
	if k, ok := ParseKind(segs[0]); ok && len(segs) > 1 {
		kind = k
		rest = segs[1:]
	}
	return ArtifactID{Kind: kind, Slug: pathSlug(rest)}
}

// pathSlug flattens path segments into a slug-safe identifier.
func pathSlug(segs []string) string {
	joined := strings.ToLower(strings.Join(segs, "-"))
	joined = strings.TrimSuffix(joined, ".md")
	var b strings.Builder
	for _, r := range joined {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
