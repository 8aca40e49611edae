// Package filex holds small local filesystem helpers used by the storage
// client when moving objects to and from disk.
package filex

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// EnsureParentDir creates the directory that will contain path and returns
// it. Existing directories are left alone.
func EnsureParentDir(path string) (string, error) {
	dir := filepath.Dir(path)

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	return dir, nil
}

// WriteAtomic streams r into path. Data is written to a temporary file in
// the same directory and renamed into place only after a complete copy, so a
// failed write never leaves a partial file at path.
func WriteAtomic(path string, r io.Reader) (n int64, err error) {
	dir, err := EnsureParentDir(path)
	if err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	n, err = io.Copy(tmp, r)
	if err != nil {
		return n, fmt.Errorf("write %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return n, fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return n, fmt.Errorf("rename into %s: %w", path, err)
	}
	return n, nil
}
