// Package logger implements a logging adapter using log/slog.
package logger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/smortex/r10k/internal/core/domain"
	"github.com/smortex/r10k/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log file rotation limits.
const (
	logFileMaxSizeMB  = 10
	logFileMaxBackups = 3
)

// messager describes an error that can report its own message without the chain.
type messager interface {
	Message() string
}

// metadataer describes an error carrying structured key-value pairs.
type metadataer interface {
	Metadata() map[string]any
}

// ErrorEntry is one level of an error chain, as shown to the user.
type ErrorEntry struct {
	Message  string
	Metadata map[string]any
}

// Logger implements ports.Logger using log/slog.
// Console output is pretty or JSON; an optional log file always receives JSON.
type Logger struct {
	logger   *slog.Logger
	file     *slog.Logger
	rotator  *lumberjack.Logger
	mu       sync.RWMutex
	jsonMode bool
	output   io.Writer
}

// New creates a new Logger instance.
func New() *Logger {
	return &Logger{
		logger: slog.New(NewPrettyHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})),
		output: os.Stderr,
	}
}

var _ ports.Logger = (*Logger)(nil)

// SetOutput updates the console destination, preserving the JSON mode.
// If w is nil, os.Stderr is used.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if w == nil {
		w = os.Stderr
	}
	l.output = w
	l.logger = slog.New(l.consoleHandler())
}

// SetJSON switches the console between JSON and pretty logging.
func (l *Logger) SetJSON(enable bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.jsonMode = enable
	l.logger = slog.New(l.consoleHandler())
}

// SetFile additionally writes JSON logs to a size-rotated file at path.
// An empty path closes the current log file, if any.
func (l *Logger) SetFile(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.closeFile(); err != nil {
		return err
	}
	if path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create log directory"), "path", path)
	}
	l.rotator = &lumberjack.Logger{
		Filename:   path,
		MaxSize:    logFileMaxSizeMB,
		MaxBackups: logFileMaxBackups,
		Compress:   true,
		LocalTime:  true,
	}
	l.file = slog.New(slog.NewJSONHandler(l.rotator, &slog.HandlerOptions{Level: slog.LevelInfo}))
	return nil
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeFile()
}

func (l *Logger) closeFile() error {
	if l.rotator == nil {
		return nil
	}
	err := l.rotator.Close()
	l.rotator = nil
	l.file = nil
	if err != nil {
		return zerr.Wrap(err, "failed to close log file")
	}
	return nil
}

func (l *Logger) consoleHandler() slog.Handler {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if l.jsonMode {
		return slog.NewJSONHandler(l.output, opts)
	}
	return NewPrettyHandler(l.output, opts)
}

// Info logs an informational message.
func (l *Logger) Info(msg string) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.Info(msg)
	if l.file != nil {
		l.file.Info(msg)
	}
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.Warn(msg)
	if l.file != nil {
		l.file.Warn(msg)
	}
}

// Error logs an error. Pretty output shows the chain of causes with their
// metadata; JSON output keeps the error structured.
func (l *Logger) Error(err error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if err == nil {
		return
	}

	if l.file != nil {
		l.file.Error("operation failed", "error", err)
	}
	if l.jsonMode {
		l.logger.Error("operation failed", "error", err)
		return
	}
	l.logger.Error(formatErrorEntries(collectErrorEntries(err)))
}

// collectErrorEntries flattens an error chain into one entry per message.
// Metadata-only wrappers merge into the entry below them, and every branch
// of a joined error contributes its own entries.
func collectErrorEntries(err error) []ErrorEntry {
	if err == nil {
		return nil
	}

	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var entries []ErrorEntry
		for _, e := range joined.Unwrap() {
			entries = append(entries, collectErrorEntries(e)...)
		}
		return entries
	}

	m, ok := err.(messager)
	if !ok {
		return []ErrorEntry{{Message: err.Error()}}
	}

	var metadata map[string]any
	if md, ok := err.(metadataer); ok {
		metadata = md.Metadata()
	}
	rest := collectErrorEntries(errors.Unwrap(err))

	if m.Message() == "" && len(rest) > 0 {
		if len(metadata) > 0 {
			merged := make(map[string]any, len(metadata)+len(rest[0].Metadata))
			maps.Copy(merged, rest[0].Metadata)
			maps.Copy(merged, metadata)
			rest[0].Metadata = merged
		}
		return rest
	}
	return append([]ErrorEntry{{Message: m.Message(), Metadata: metadata}}, rest...)
}

// formatErrorEntries renders entries as a main error followed by its causes.
func formatErrorEntries(entries []ErrorEntry) string {
	var lines []string

	for i, entry := range entries {
		msgLines := strings.Split(entry.Message, "\n")
		first, indent := "Error: ", "       "
		if i > 0 {
			first, indent = "    → ", "      "
			if i == 1 {
				lines = append(lines, "", "  Caused by:")
			}
		}

		lines = append(lines, first+msgLines[0])
		for _, line := range msgLines[1:] {
			lines = append(lines, indent+line)
		}
		for _, key := range slices.Sorted(maps.Keys(entry.Metadata)) {
			lines = append(lines, fmt.Sprintf("%s%s: %v", indent, key, entry.Metadata[key]))
		}
	}

	return strings.Join(lines, "\n")
}
