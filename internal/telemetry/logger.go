// Package telemetry builds the structured logger shared by every component.
package telemetry

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

// Logger writes JSON lines to a file, or nothing when no path is configured.
// The terminal belongs to the UI, so records never go to stderr while it runs.
type Logger struct {
	*log.Logger
	w io.WriteCloser
}

func New(path, level string) (*Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	var w io.WriteCloser = nopCloser{Writer: io.Discard}
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		w = f
	}
	l := log.NewWithOptions(w, log.Options{
		Prefix:          "codedojo",
		Level:           lvl,
		ReportTimestamp: true,
		Formatter:       log.JSONFormatter,
	})
	return &Logger{Logger: l, w: w}, nil
}

// Discard returns a logger that drops every record.
func Discard() *Logger {
	return &Logger{Logger: log.New(io.Discard), w: nopCloser{Writer: io.Discard}}
}

func ParseLevel(s string) (log.Level, error) {
	if strings.TrimSpace(s) == "" {
		return log.InfoLevel, nil
	}
	lvl, err := log.ParseLevel(strings.ToLower(s))
	if err != nil {
		return log.InfoLevel, fmt.Errorf("invalid log level %q", s)
	}
	return lvl, nil
}

func (l *Logger) Close() error {
	if l == nil || l.w == nil {
		return nil
	}
	return l.w.Close()
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
