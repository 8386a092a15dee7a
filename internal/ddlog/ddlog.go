// Package ddlog provides the logging abstraction threaded explicitly through
// every component of the toolkit: a logger is passed as a value instead of
// being pulled from a package-global in business logic.
package ddlog

import (
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
)

// Logger is the minimal logging surface every package in this module depends
// on. A *slog.Logger satisfies it directly.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Debug(msg string, args ...any)
}

// New returns the default logger backend: colorized, timestamped output to w
// via tint, matching how an operator babysitting a sender/receiver/recovery
// run on a terminal expects to triage activity.
func New(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
	}))
}

// Default is a ready-to-use logger writing to stderr at info level, used by
// the ddconfig constructors when no logger option is given.
func Default() *slog.Logger {
	return New(os.Stderr, false)
}
