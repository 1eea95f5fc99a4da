package logger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// rollingFile appends to a log file and rotates it by size, keeping a fixed
// number of numbered backups (file.1 is the most recent) and dropping backups
// older than the retention window.
type rollingFile struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	written int64

	limit   int64
	backups int
	keepFor time.Duration
}

func newRollingFile(path string, maxSizeMB, maxBackups, maxAgeDays int) (*rollingFile, error) {
	if path == "" {
		return nil, errors.New("path is required")
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 100
	}
	if maxBackups <= 0 {
		maxBackups = 7
	}
	if maxAgeDays <= 0 {
		maxAgeDays = 30
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create audit log directory: %w", err)
	}
	return &rollingFile{
		path:    path,
		limit:   int64(maxSizeMB) << 20,
		backups: maxBackups,
		keepFor: time.Duration(maxAgeDays) * 24 * time.Hour,
	}, nil
}

func (f *rollingFile) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.open(); err != nil {
		return 0, err
	}
	if f.limit > 0 && f.written+int64(len(p)) > f.limit {
		f.roll()
		if err := f.open(); err != nil {
			return 0, err
		}
	}
	n, err := f.file.Write(p)
	f.written += int64(n)
	return n, err
}

func (f *rollingFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	f.written = 0
	return err
}

// open lazily (re)opens the active file and records its current size.
func (f *rollingFile) open() error {
	if f.file != nil {
		return nil
	}
	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat audit log: %w", err)
	}
	f.file = file
	f.written = info.Size()
	return nil
}

// roll shifts existing backups one slot down and moves the active file to
// slot 1. Rename failures are ignored; the next write starts a fresh file
// either way.
func (f *rollingFile) roll() {
	if f.file != nil {
		_ = f.file.Close()
		f.file = nil
	}
	f.written = 0

	for i := f.backups - 1; i >= 1; i-- {
		if _, err := os.Stat(f.backupName(i)); err == nil {
			_ = os.Rename(f.backupName(i), f.backupName(i+1))
		}
	}
	if _, err := os.Stat(f.path); err == nil {
		_ = os.Rename(f.path, f.backupName(1))
	}

	f.pruneExpired()
}

func (f *rollingFile) backupName(i int) string {
	return fmt.Sprintf("%s.%d", f.path, i)
}

func (f *rollingFile) pruneExpired() {
	if f.keepFor <= 0 {
		return
	}
	cutoff := time.Now().Add(-f.keepFor)
	for i := 1; i <= f.backups; i++ {
		info, err := os.Stat(f.backupName(i))
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			_ = os.Remove(f.backupName(i))
		}
	}
}
