// Package staging provides scoped temporary directories for files handed to the container service.
//
// Each Dir belongs to the caller that acquired it and is removed by Release.
// There is no shared, process-wide staging location.
package staging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const dirPattern = "eid-staging-*"

type Dir struct {
	root     *os.Root
	path     string
	released bool
}

// Acquire creates a fresh private directory under base ("" for the system temp dir).
func Acquire(base string) (*Dir, error) {
	path, err := os.MkdirTemp(base, dirPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}

	root, err := os.OpenRoot(path)
	if err != nil {
		_ = os.RemoveAll(path)
		return nil, fmt.Errorf("failed to open staging directory: %w", err)
	}

	return &Dir{root: root, path: path}, nil
}

// Path returns the directory location.
func (d *Dir) Path() string {
	return d.path
}

// WriteFile stores content under name and returns the full path.
// name must be a plain file name, it cannot leave the directory.
func (d *Dir) WriteFile(name string, content []byte) (string, error) {
	if d.released {
		return "", errors.New("staging directory already released")
	}
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid staged file name %q", name)
	}
	if err := d.root.WriteFile(name, content, 0600); err != nil {
		return "", fmt.Errorf("failed to stage %s: %w", name, err)
	}
	return filepath.Join(d.path, name), nil
}

// Release removes the directory and everything in it. Calling Release more than once is harmless.
func (d *Dir) Release() error {
	if d.released {
		return nil
	}
	d.released = true

	closeErr := d.root.Close()
	if err := os.RemoveAll(d.path); err != nil {
		return fmt.Errorf("failed to remove staging directory: %w", err)
	}
	return closeErr
}
