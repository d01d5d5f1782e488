// Package dotdir manages the .ragchat/ and ~/.ragchat directories.
//
// The dot directory holds config.toml, credentials.toml, the default SQLite
// checkpoint and vector databases, uploaded documents and rotated log files.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// dirName is the name of the ragchat directory.
	dirName = ".ragchat"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the target absolute path to a .ragchat/ directory.
// Order of precedence is as follows:
//  1. Provided override
//  2. Local ./.ragchat/ dir
//  3. Home ~/.ragchat/ dir, created if missing
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
		return "", fmt.Errorf("creating ragchat directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

// Subdir resolves the target directory and returns the absolute path of the
// named child directory inside it, creating it when missing.
func (m *Manager) Subdir(overrideDir, name string) (string, error) {
	target, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(target, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s directory: %w", name, err)
	}

	return dir, nil
}

// File resolves the target directory and returns the absolute path of the
// named file inside it. The file itself is not created.
func (m *Manager) File(overrideDir, name string) (string, error) {
	target, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}

	return filepath.Join(target, name), nil
}

// localDirExists checks whether a .ragchat/ directory exists in the current
// working directory.
func (m *Manager) localDirExists() bool {
	cwd, err := os.Getwd()
	if err != nil {
		return false
	}

	info, err := os.Stat(filepath.Join(cwd, dirName))
	return err == nil && info.IsDir()
}
