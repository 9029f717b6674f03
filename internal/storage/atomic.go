// Package storage writes files so that readers see either the old content
// or the complete new content, never a partial write.
package storage

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// RenameError is returned when the final rename fails. The temporary file
// has been removed by then; TempPath names where it was.
type RenameError struct {
	Err      error
	TempPath string
}

func (e *RenameError) Error() string { return e.Err.Error() }
func (e *RenameError) Unwrap() error { return e.Err }

// WriteFile writes data to filename through a temporary file in the same
// directory, creating the directory if needed.
func WriteFile(filename string, data []byte, perm os.FileMode) error {
	_, err := WriteFrom(filename, bytes.NewReader(data), perm)
	return err
}

// WriteFrom copies r into filename the way WriteFile does, returning the
// number of bytes written. filename is untouched if r fails.
func WriteFrom(filename string, r io.Reader, perm os.FileMode) (n int64, err error) {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(filename)+"-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	done := false
	defer func() {
		if done {
			return
		}
		_ = tmp.Close()
		if rmErr := os.Remove(tmp.Name()); rmErr != nil && !os.IsNotExist(rmErr) {
			slog.Warn("failed to remove temporary file", "path", tmp.Name(), "error", rmErr)
		}
	}()

	if n, err = io.Copy(tmp, r); err != nil {
		return n, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return n, fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return n, fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), perm); err != nil {
		return n, fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filename); err != nil {
		return n, &RenameError{Err: err, TempPath: tmp.Name()}
	}
	done = true
	return n, nil
}
