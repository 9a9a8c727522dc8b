// Package logging builds the process logger. The rendered terminal owns
// stdout, so log records go to a file.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Dicklesworthstone/hackerterm/internal/config"
)

// DefaultLogFilePath returns the log file inside the hackerterm home.
func DefaultLogFilePath() string {
	return filepath.Join(config.HomeDir(), "hackerterm.log")
}

// Options configures New.
type Options struct {
	// Path of the log file. Empty uses DefaultLogFilePath.
	Path string
	// Debug lowers the level to debug.
	Debug bool
}

// New opens (appending) the log file and returns a text logger writing to
// it. The returned closer closes the file.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	path := opts.Path
	if path == "" {
		path = DefaultLogFilePath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	return NewWriter(f, opts.Debug), f, nil
}

// NewWriter returns a text logger writing to w.
func NewWriter(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
