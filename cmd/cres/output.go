package main

import (
	"fmt"
	"os"
	"path/filepath"
)

// outputFile writes to a temporary file next to path. The target is only
// replaced on Commit, so a failed run leaves any existing file alone.
type outputFile struct {
	*os.File
	path      string
	committed bool
}

func createOutput(path string) (*outputFile, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp.*")
	if err != nil {
		return nil, fmt.Errorf("creating output: %w", err)
	}
	return &outputFile{File: tmp, path: path}, nil
}

// Commit closes the temporary file and renames it to the target path.
func (o *outputFile) Commit() error {
	if err := o.Chmod(0o644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	if err := o.Close(); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	if err := os.Rename(o.Name(), o.path); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	o.committed = true
	return nil
}

// Discard removes the temporary file unless it was committed.
func (o *outputFile) Discard() {
	if o.committed {
		return
	}
	o.Close()
	os.Remove(o.Name())
}
