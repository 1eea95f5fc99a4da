// Package logger wires slog into a process-wide application logger plus an
// optional audit trail with size-based rotation. Call Init once at startup;
// L and Audit fall back to stdout defaults when Init was skipped.
package logger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Config describes how the application logger should behave.
type Config struct {
	Level       string
	Format      string
	OutputPaths []string
	Audit       AuditConfig
}

// AuditConfig controls the audit trail. When disabled, audit entries are
// written through the application logger instead.
type AuditConfig struct {
	Enabled    bool
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type state struct {
	app     *slog.Logger
	audit   *slog.Logger
	closers []io.Closer
}

var (
	global   state
	initOnce sync.Once
	initErr  error
)

var levelNames = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// Init configures the global loggers. Subsequent calls are no-ops and return
// the result of the first call.
func Init(cfg Config) error {
	initOnce.Do(func() {
		initErr = global.configure(cfg)
	})
	return initErr
}

func (s *state) configure(cfg Config) error {
	level, ok := levelNames[strings.ToLower(cfg.Level)]
	if !ok {
		level = slog.LevelInfo
	}

	sink, err := s.openSink(cfg.OutputPaths)
	if err != nil {
		return err
	}

	opts := &slog.HandlerOptions{Level: level, AddSource: true}
	if strings.EqualFold(cfg.Format, "text") {
		s.app = slog.New(slog.NewTextHandler(sink, opts))
	} else {
		s.app = slog.New(slog.NewJSONHandler(sink, opts))
	}

	s.audit = s.app
	if cfg.Audit.Enabled {
		audit, err := s.openAudit(cfg.Audit)
		if err != nil {
			return err
		}
		s.audit = audit
	}
	return nil
}

// openSink resolves output paths into a single writer, defaulting to stdout.
func (s *state) openSink(paths []string) (io.Writer, error) {
	if len(paths) == 0 {
		return os.Stdout, nil
	}

	writers := make([]io.Writer, 0, len(paths))
	for _, path := range paths {
		switch strings.ToLower(path) {
		case "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, fmt.Errorf("create log directory: %w", err)
			}
			file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return nil, fmt.Errorf("open log file %s: %w", path, err)
			}
			s.closers = append(s.closers, file)
			writers = append(writers, file)
		}
	}
	if len(writers) == 1 {
		return writers[0], nil
	}
	return io.MultiWriter(writers...), nil
}

func (s *state) openAudit(cfg AuditConfig) (*slog.Logger, error) {
	if cfg.Path == "" {
		return nil, errors.New("audit log path cannot be empty when enabled")
	}
	writer, err := newRollingFile(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, writer)
	return slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: slog.LevelInfo})), nil
}

// L returns the application logger. Falls back to slog's default logger when
// initialisation failed or never happened.
func L() *slog.Logger {
	if global.app == nil {
		_ = Init(Config{})
	}
	if global.app == nil {
		return slog.Default()
	}
	return global.app
}

// Audit returns the audit logger.
func Audit() *slog.Logger {
	if global.audit == nil {
		return L()
	}
	return global.audit
}

// Sync closes any file-backed outputs. Safe to defer from main.
func Sync() error {
	var err error
	for _, closer := range global.closers {
		err = errors.Join(err, closer.Close())
	}
	global.closers = nil
	return err
}
