// Package logging provides a thin, component-scoped wrapper around log/slog
// used by the migration engine and the CLI.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Logger wraps *slog.Logger so call sites name their component once via New
// and never repeat a "component" attribute by hand.
type Logger struct {
	*slog.Logger
}

// New returns a Logger scoped to component, writing text-formatted records
// to w at the given level.
func New(w io.Writer, component string, level slog.Level) Logger {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return Logger{slog.New(h).With("component", component)}
}

// Verbose returns a Logger writing to os.Stderr at LevelDebug when verbose is
// true, or a no-op logger otherwise. Used by OpenDatabase's verbose flag to
// drive migration DDL logging without threading a bool through every call.
func Verbose(component string, verbose bool) Logger {
	if !verbose {
		return Logger{slog.New(slog.NewTextHandler(io.Discard, nil))}
	}
	return New(os.Stderr, component, slog.LevelDebug)
}
