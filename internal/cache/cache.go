// Package cache persists the workspace structure index on disk.
//
// Layout under the workspace cache root:
//
//	manifest.json   schema version, workspace fingerprint, generation
//	                timestamp, per-artifact path/kind/mtime/size
//	index-v<N>.db   serialized index, one SQLite file per schema version
//	lock            empty marker; presence means a writer holds the cache
//
// Freshness is all-or-nothing: any mismatch between the manifest and the
// live inventory invalidates the whole cache. Writes are atomic — the data
// file and manifest are built in temp files and renamed into place. A
// missing or corrupt cache is a miss, never an error; only lock contention
// is a hard stop.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"specdeck/internal/index"
	"specdeck/internal/locator"
	"specdeck/internal/workspace"
)

const manifestFile = "manifest.json"

// Store is an explicit handle on one workspace's disk cache. It is passed
// by value to whoever needs cache access; there is no ambient singleton.
type Store struct {
	wsRoot      string
	dir         string
	fingerprint string
}

// NewStore creates a handle on the cache for the workspace at wsRoot.
func NewStore(wsRoot, fingerprint string) *Store {
	return &Store{
		wsRoot:      wsRoot,
		dir:         workspace.CachePath(wsRoot),
		fingerprint: fingerprint,
	}
}

// Dir returns the cache root directory.
func (s *Store) Dir() string { return s.dir }

// dataPath returns the data file for a schema version.
func (s *Store) dataPath(schema int) string {
	return filepath.Join(s.dir, fmt.Sprintf("index-v%d.db", schema))
}

func (s *Store) manifestPath() string {
	return filepath.Join(s.dir, manifestFile)
}

// Persistable reports whether an artifact belongs in the disk cache.
// Scratch documents are always indexed live and never persisted.
func Persistable(a workspace.Artifact) bool {
	return a.ID.Kind != locator.KindScratch
}

// --- Manifest ---

// ManifestEntry is one cached artifact's identity and freshness key.
type ManifestEntry struct {
	Path  string       `json:"path"` // workspace-relative
	Kind  locator.Kind `json:"kind"`
	Mtime int64        `json:"mtime"` // unix nanoseconds
	Size  int64        `json:"size"`
}

// Manifest enumerates everything the cache holds and what it was built
// from.
type Manifest struct {
	SchemaVersion int             `json:"schemaVersion"`
	Fingerprint   string          `json:"fingerprint"`
	GeneratedAt   time.Time       `json:"generatedAt"`
	Artifacts     []ManifestEntry `json:"artifacts"`
}

// entryFor converts an inventory artifact into its manifest entry.
func (s *Store) entryFor(a workspace.Artifact) ManifestEntry {
	rel, err := filepath.Rel(s.wsRoot, a.Path)
	if err != nil {
		rel = a.Path
	}
	return ManifestEntry{
		Path:  filepath.ToSlash(rel),
		Kind:  a.ID.Kind,
		Mtime: a.Mtime.UnixNano(),
		Size:  a.Size,
	}
}

// readManifest loads and decodes the manifest. Any failure reads as a
// cache miss to the caller.
func (s *Store) readManifest() (*Manifest, error) {
	data, err := os.ReadFile(s.manifestPath())
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	return &m, nil
}

// Fresh reports whether the cache matches the live persistable inventory:
// same schema version, same fingerprint, same artifact set, and identical
// mtime/size for every member. Scratch artifacts in the input are ignored.
func (s *Store) Fresh(artifacts []workspace.Artifact) bool {
	m, err := s.readManifest()
	if err != nil {
		return false
	}
	if m.SchemaVersion != index.SchemaVersion || m.Fingerprint != s.fingerprint {
		return false
	}

	live := make(map[string]ManifestEntry)
	for _, a := range artifacts {
		if !Persistable(a) {
			continue
		}
		e := s.entryFor(a)
		live[e.Path] = e
	}

	if len(live) != len(m.Artifacts) {
		return false
	}
	for _, cached := range m.Artifacts {
		got, ok := live[cached.Path]
		if !ok || got != cached {
			return false
		}
	}
	return true
}

// Install atomically persists a freshly built index and its manifest. It
// takes the cache lock for the duration and fails fast with ErrLocked if
// another writer holds it; the lock is released on every exit path. Scratch
// records never reach disk.
func (s *Store) Install(idx *index.Index, artifacts []workspace.Artifact) (err error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating cache root: %w", err)
	}

	release, err := s.acquireLock()
	if err != nil {
		return err
	}
	defer release()

	if err := s.writeData(idx); err != nil {
		return err
	}
	return s.writeManifest(artifacts)
}

// writeManifest builds the manifest in a temp file and renames it into
// place.
func (s *Store) writeManifest(artifacts []workspace.Artifact) error {
	m := Manifest{
		SchemaVersion: index.SchemaVersion,
		Fingerprint:   s.fingerprint,
		GeneratedAt:   time.Now().UTC(),
	}
	for _, a := range artifacts {
		if !Persistable(a) {
			continue
		}
		m.Artifacts = append(m.Artifacts, s.entryFor(a))
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, manifestFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating manifest temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing manifest: %w", err)
	}
	if err := os.Rename(tmpName, s.manifestPath()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("installing manifest: %w", err)
	}
	return nil
}

// Invalidate drops the manifest and every data file. The next cached build
// rebuilds from scratch. Missing files are fine.
func (s *Store) Invalidate() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading cache root: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if name == lockFile {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", name, err)
		}
	}
	return nil
}
