package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

const megabyte = 1 << 20

// RotatingWriter appends to a log file and moves it aside once it reaches
// its size limit. Backups are <path>.1 (newest) through <path>.<maxBackups>.
// Safe for concurrent use.
type RotatingWriter struct {
	mu         sync.Mutex
	path       string
	limit      int64
	maxBackups int

	f    *os.File
	size int64
}

// NewRotatingWriter opens path for appending. maxSizeMB below 1 means 10;
// maxBackups of 0 truncates in place instead of keeping old files.
func NewRotatingWriter(path string, maxSizeMB, maxBackups int) (*RotatingWriter, error) {
	if maxSizeMB < 1 {
		maxSizeMB = 10
	}
	if maxBackups < 0 {
		maxBackups = 0
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	rw := &RotatingWriter{
		path:       path,
		limit:      int64(maxSizeMB) * megabyte,
		maxBackups: maxBackups,
	}
	if err := rw.open(); err != nil {
		return nil, err
	}
	if rw.size >= rw.limit {
		if err := rw.rotate(); err != nil {
			rw.f.Close()
			return nil, err
		}
	}
	return rw, nil
}

// Write appends p, rotating first if p would push a non-empty file past the
// limit. A single record is never split across files.
func (rw *RotatingWriter) Write(p []byte) (int, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.f == nil {
		return 0, os.ErrClosed
	}
	if rw.size > 0 && rw.size+int64(len(p)) > rw.limit {
		if err := rw.rotate(); err != nil {
			return 0, fmt.Errorf("rotate log: %w", err)
		}
	}
	n, err := rw.f.Write(p)
	rw.size += int64(n)
	return n, err
}

// Rotate moves the current file aside now.
func (rw *RotatingWriter) Rotate() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.f == nil {
		return os.ErrClosed
	}
	return rw.rotate()
}

func (rw *RotatingWriter) Close() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.f == nil {
		return nil
	}
	err := rw.f.Close()
	rw.f = nil
	return err
}

// TeeWriter duplicates log output, typically to stdout and the log file.
func TeeWriter(w1, w2 io.Writer) io.Writer {
	return io.MultiWriter(w1, w2)
}

func (rw *RotatingWriter) open() error {
	f, err := os.OpenFile(rw.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	rw.f = f
	rw.size = info.Size()
	return nil
}

func (rw *RotatingWriter) rotate() error {
	if err := rw.f.Close(); err != nil {
		return err
	}
	rw.f = nil

	if rw.maxBackups == 0 {
		if err := os.Truncate(rw.path, 0); err != nil {
			return err
		}
		return rw.open()
	}

	var errs []error
	if err := os.Remove(rw.backup(rw.maxBackups)); err != nil && !errors.Is(err, os.ErrNotExist) {
		errs = append(errs, err)
	}
	for i := rw.maxBackups - 1; i >= 1; i-- {
		if err := os.Rename(rw.backup(i), rw.backup(i+1)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if err := os.Rename(rw.path, rw.backup(1)); err != nil {
		errs = append(errs, err)
	}
	if err := rw.open(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (rw *RotatingWriter) backup(n int) string {
	return fmt.Sprintf("%s.%d", rw.path, n)
}
