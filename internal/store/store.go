// Package store keeps expensectl's local state: view preferences and the
// mutation journal in SQLite, and the login session in a diskv directory.
package store

import (
	"os"
	"path/filepath"
)

const (
	sqliteFileName = "state.sqlite"
	sessionDirName = "session"
)

// Store is rooted at a state directory (default ~/.expensectl).
type Store struct {
	Dir string
}

// Open returns a Store for dir, or the default state dir when dir is empty.
func Open(dir string) (Store, error) {
	if dir == "" {
		d, err := ConfigDir()
		if err != nil {
			return Store{}, err
		}
		dir = d
	}
	return Store{Dir: filepath.Clean(dir)}, nil
}

func (s Store) Ensure() error {
	return os.MkdirAll(s.Dir, 0o700)
}

func (s Store) sqlitePath() string {
	return filepath.Join(s.Dir, sqliteFileName)
}

func (s Store) sessionDir() string {
	return filepath.Join(s.Dir, sessionDirName)
}
