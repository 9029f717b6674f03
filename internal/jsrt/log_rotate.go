package jsrt

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// RotatingFileWriter is an io.WriteCloser that rotates its file by size.
// On rotation the live file becomes <path>.1, <path>.1 becomes <path>.2 and
// so on; backups beyond maxFiles are removed. A write is never split across
// files. Safe for concurrent use.
type RotatingFileWriter struct {
	mu       sync.Mutex
	path     string
	maxBytes int64
	maxFiles int
	size     int64
	file     *os.File
}

// NewRotatingFileWriter opens path for appending, creating parent
// directories as needed. maxSizeMB is clamped to at least 1 and maxFiles to
// at least 0 (rotate by truncation).
func NewRotatingFileWriter(path string, maxSizeMB, maxFiles int) (*RotatingFileWriter, error) {
	w := &RotatingFileWriter{
		path:     path,
		maxBytes: int64(max(maxSizeMB, 1)) << 20,
		maxFiles: max(maxFiles, 0),
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("jsrt: log dir %s: %w", dir, err)
		}
	}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *RotatingFileWriter) open() error {
	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("jsrt: open log %s: %w", w.path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("jsrt: stat log %s: %w", w.path, err)
	}
	w.file, w.size = f, info.Size()
	return nil
}

func (w *RotatingFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return 0, os.ErrClosed
	}
	if w.size > 0 && w.size+int64(len(p)) > w.maxBytes {
		if err := w.rotate(); err != nil {
			return 0, fmt.Errorf("jsrt: rotate log %s: %w", w.path, err)
		}
	}
	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *RotatingFileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// rotate shifts the backups up by one and reopens the live file. w.mu must
// be held.
func (w *RotatingFileWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return err
	}
	w.file = nil

	if err := removeIfExists(w.backup(w.maxFiles)); err != nil {
		return err
	}
	for n := w.maxFiles - 1; n >= 1; n-- {
		if err := renameIfExists(w.backup(n), w.backup(n+1)); err != nil {
			return err
		}
	}
	if w.maxFiles > 0 {
		if err := renameIfExists(w.path, w.backup(1)); err != nil {
			return err
		}
	} else if err := removeIfExists(w.path); err != nil {
		return err
	}
	return w.open()
}

func (w *RotatingFileWriter) backup(n int) string {
	if n < 1 {
		return w.path
	}
	return w.path + "." + strconv.Itoa(n)
}

func removeIfExists(name string) error {
	if err := os.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func renameIfExists(from, to string) error {
	if err := os.Rename(from, to); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

var _ io.WriteCloser = (*RotatingFileWriter)(nil)
