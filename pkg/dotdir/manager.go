// Package dotdir manages the .spool/ and ~/.spool directories.
//
// The resolved directory is the persisted-state root for the whole memory
// engine: the metadata database, the vector index, the conversation
// registry, and the git snapshot history all live under it.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// dirName is the name of the spool directory.
	dirName = ".spool"

	// MetadataFile is the SQLite metadata database file name.
	MetadataFile = "metadata.db"

	// VectorsFile is the sqlite-vec index database file name.
	VectorsFile = "vectors.db"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the target absolute path to a .spool/ directory.
// Order of precedence is as follows:
//  1. Provided override
//  2. Local ./.spool/ dir
//  3. Home ~/.spool/ dir
//  4. If none found, attempt to create ~/.spool/ dir
func (m *Manager) Target(overrideDir string) (string, error) {
	var dir string

	switch {
	case overrideDir != "":
		dir = overrideDir

	case m.localDirExists():
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting current directory: %w", err)
		}
		dir = filepath.Join(cwd, dirName)

	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, dirName)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating spool directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

// MetadataPath resolves the metadata database path inside the state root.
func (m *Manager) MetadataPath(overrideDir string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, MetadataFile), nil
}

// VectorsPath resolves the vector index database path inside the state root.
func (m *Manager) VectorsPath(overrideDir string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, VectorsFile), nil
}

// localDirExists checks whether a .spool/ directory exists in the current
// working directory.
func (m *Manager) localDirExists() bool {
	cwd, err := os.Getwd()
	if err != nil {
		return false
	}

	info, err := os.Stat(filepath.Join(cwd, dirName))
	return err == nil && info.IsDir()
}
