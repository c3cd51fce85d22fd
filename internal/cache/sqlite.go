package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"specdeck/internal/index"
	"specdeck/internal/locator"
	"specdeck/internal/workspace"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// schemaStatements create the cache data file's tables.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS artifacts (
		id    TEXT PRIMARY KEY,
		kind  TEXT NOT NULL,
		slug  TEXT NOT NULL,
		path  TEXT NOT NULL,
		mtime INTEGER NOT NULL,
		size  INTEGER NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS headings (
		key        TEXT PRIMARY KEY,
		artifact   TEXT NOT NULL,
		slug       TEXT NOT NULL,
		title      TEXT NOT NULL,
		level      INTEGER NOT NULL,
		line       INTEGER NOT NULL,
		content    TEXT NOT NULL,
		link_dests TEXT NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS constraint_groups (
		key       TEXT PRIMARY KEY,
		artifact  TEXT NOT NULL,
		group_set TEXT NOT NULL,
		anchor    TEXT NOT NULL,
		content   TEXT NOT NULL
	);`,
}

// writeData serializes the index into a fresh SQLite file built in a temp
// location, then renames it over the schema-versioned data file. Scratch
// records are filtered out. Rows are inserted in sorted key order so the
// same index always produces the same file.
func (s *Store) writeData(idx *index.Index) error {
	tmp, err := os.CreateTemp(s.dir, "index-*.db.tmp")
	if err != nil {
		return fmt.Errorf("creating cache temp file: %w", err)
	}
	tmpName := tmp.Name()
	tmp.Close()

	if err := s.fillData(tmpName, idx); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, s.dataPath(idx.SchemaVersion)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("installing cache data file: %w", err)
	}
	return nil
}

func (s *Store) fillData(path string, idx *index.Index) error {
	db, err := openDB("sqlite", path)
	if err != nil {
		return fmt.Errorf("opening cache data file: %w", err)
	}
	defer db.Close()

	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("creating cache schema: %w", err)
		}
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning cache write: %w", err)
	}
	defer tx.Rollback()

	meta := [][2]string{
		{"fingerprint", idx.Fingerprint},
		{"schema_version", strconv.Itoa(idx.SchemaVersion)},
	}
	for _, kv := range meta {
		if _, err := tx.Exec(`INSERT INTO meta (key, value) VALUES (?, ?)`, kv[0], kv[1]); err != nil {
			return fmt.Errorf("writing meta %s: %w", kv[0], err)
		}
	}

	for _, key := range sortedMapKeys(idx.Artifacts) {
		a := idx.Artifacts[key]
		if !Persistable(a) {
			continue
		}
		rel, relErr := filepath.Rel(s.wsRoot, a.Path)
		if relErr != nil {
			rel = a.Path
		}
		_, err := tx.Exec(
			`INSERT INTO artifacts (id, kind, slug, path, mtime, size) VALUES (?, ?, ?, ?, ?, ?)`,
			key, string(a.ID.Kind), a.ID.Slug, filepath.ToSlash(rel), a.Mtime.UnixNano(), a.Size,
		)
		if err != nil {
			return fmt.Errorf("writing artifact %s: %w", key, err)
		}
	}

	for _, key := range sortedMapKeys(idx.Headings) {
		h := idx.Headings[key]
		if h.ID.Artifact.Kind == locator.KindScratch {
			continue
		}
		dests, _ := json.Marshal(h.LinkDests)
		_, err := tx.Exec(
			`INSERT INTO headings (key, artifact, slug, title, level, line, content, link_dests)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			key, h.ID.Artifact.String(), h.ID.Slug, h.Title, h.Level, h.Line, h.Content, string(dests),
		)
		if err != nil {
			return fmt.Errorf("writing heading %s: %w", key, err)
		}
	}

	for _, key := range sortedMapKeys(idx.Constraints) {
		c := idx.Constraints[key]
		if c.ID.Artifact.Kind == locator.KindScratch {
			continue
		}
		_, err := tx.Exec(
			`INSERT INTO constraint_groups (key, artifact, group_set, anchor, content) VALUES (?, ?, ?, ?, ?)`,
			key, c.ID.Artifact.String(), c.ID.GroupSet, c.Anchor, c.Content,
		)
		if err != nil {
			return fmt.Errorf("writing constraint group %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing cache write: %w", err)
	}
	return nil
}

// Load reads the persisted index back from the data file for the current
// schema version. Any failure — missing file, bad meta, undecodable rows —
// is a cache miss for the caller to rebuild from, never a user-facing
// error.
func (s *Store) Load() (*index.Index, error) {
	path := s.dataPath(index.SchemaVersion)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("cache data file: %w", err)
	}

	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache data file: %w", err)
	}
	defer db.Close()

	var schemaStr, fingerprint string
	if err := db.QueryRow(`SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&schemaStr); err != nil {
		return nil, fmt.Errorf("reading cache meta: %w", err)
	}
	if err := db.QueryRow(`SELECT value FROM meta WHERE key = 'fingerprint'`).Scan(&fingerprint); err != nil {
		return nil, fmt.Errorf("reading cache meta: %w", err)
	}
	if schema, convErr := strconv.Atoi(schemaStr); convErr != nil || schema != index.SchemaVersion {
		return nil, fmt.Errorf("cache schema version %q does not match %d", schemaStr, index.SchemaVersion)
	}
	if fingerprint != s.fingerprint {
		return nil, fmt.Errorf("cache bound to another workspace")
	}

	idx := index.New(fingerprint)

	if err := s.loadArtifacts(db, idx); err != nil {
		return nil, err
	}
	if err := s.loadHeadings(db, idx); err != nil {
		return nil, err
	}
	if err := s.loadConstraints(db, idx); err != nil {
		return nil, err
	}

	idx.Finalize(s.wsRoot)
	return idx, nil
}

func (s *Store) loadArtifacts(db *sql.DB, idx *index.Index) error {
	rows, err := db.Query(`SELECT kind, slug, path, mtime, size FROM artifacts`)
	if err != nil {
		return fmt.Errorf("reading cached artifacts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kindStr, slug, rel string
		var mtime, size int64
		if err := rows.Scan(&kindStr, &slug, &rel, &mtime, &size); err != nil {
			return fmt.Errorf("decoding cached artifact: %w", err)
		}
		kind, ok := locator.ParseKind(kindStr)
		if !ok {
			return fmt.Errorf("cached artifact has unknown kind %q", kindStr)
		}
		a := workspace.Artifact{
			ID:    locator.ArtifactID{Kind: kind, Slug: slug},
			Path:  filepath.Join(s.wsRoot, filepath.FromSlash(rel)),
			Mtime: time.Unix(0, mtime),
			Size:  size,
		}
		idx.Artifacts[a.ID.String()] = a
	}
	return rows.Err()
}

func (s *Store) loadHeadings(db *sql.DB, idx *index.Index) error {
	rows, err := db.Query(`SELECT artifact, slug, title, level, line, content, link_dests FROM headings`)
	if err != nil {
		return fmt.Errorf("reading cached headings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var artifactStr, slug, title, content, destsJSON string
		var level, line int
		if err := rows.Scan(&artifactStr, &slug, &title, &level, &line, &content, &destsJSON); err != nil {
			return fmt.Errorf("decoding cached heading: %w", err)
		}
		res, err := locator.Resolve(artifactStr, "", s.wsRoot)
		if err != nil || res.External() {
			return fmt.Errorf("cached heading has bad artifact %q", artifactStr)
		}
		rec := index.HeadingRecord{
			ID:      index.HeadingID{Artifact: res.ID, Slug: slug},
			Title:   title,
			Level:   level,
			Line:    line,
			Content: content,
		}
		if err := json.Unmarshal([]byte(destsJSON), &rec.LinkDests); err != nil {
			return fmt.Errorf("decoding cached link destinations: %w", err)
		}
		idx.Headings[rec.ID.Key()] = rec
	}
	return rows.Err()
}

func (s *Store) loadConstraints(db *sql.DB, idx *index.Index) error {
	rows, err := db.Query(`SELECT artifact, group_set, anchor, content FROM constraint_groups`)
	if err != nil {
		return fmt.Errorf("reading cached constraint groups: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var artifactStr, groupSet, anchor, content string
		if err := rows.Scan(&artifactStr, &groupSet, &anchor, &content); err != nil {
			return fmt.Errorf("decoding cached constraint group: %w", err)
		}
		res, err := locator.Resolve(artifactStr, "", s.wsRoot)
		if err != nil || res.External() {
			return fmt.Errorf("cached constraint group has bad artifact %q", artifactStr)
		}
		rec := index.ConstraintRecord{
			ID:      index.ConstraintID{Artifact: res.ID, GroupSet: groupSet},
			Anchor:  anchor,
			Content: content,
		}
		idx.Constraints[rec.ID.Key()] = rec
	}
	return rows.Err()
}

func sortedMapKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
