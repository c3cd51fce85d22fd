package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const lockFile = "lock"

// ErrLocked means another process holds the cache lock. Callers fail fast
// and retry later; there is no waiting and no automatic retry.
var ErrLocked = errors.New("cache is locked by another process")

// acquireLock creates the lock marker exclusively. The marker carries no
// payload — presence alone means held. The returned release func removes
// it and must run on every exit path.
func (s *Store) acquireLock() (release func(), err error) {
	path := filepath.Join(s.dir, lockFile)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrLocked, path)
		}
		return nil, fmt.Errorf("creating lock marker: %w", err)
	}
	f.Close()

	return func() { os.Remove(path) }, nil
}

// Locked reports whether the lock marker is currently present.
func (s *Store) Locked() bool {
	_, err := os.Stat(filepath.Join(s.dir, lockFile))
	return err == nil
}
