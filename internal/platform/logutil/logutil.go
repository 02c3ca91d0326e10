// Package logutil provides nil-safe logger helpers.
package logutil

import (
	"io"
	"log/slog"
)

// discard is a package-level no-op logger, created once.
var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// Discard returns a logger that drops all output.
func Discard() *slog.Logger { return discard }

// OrDiscard returns l when non-nil, otherwise a discard logger.
// Intended as the first line in constructors that accept *slog.Logger.
func OrDiscard(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return discard
}

// Component returns l tagged with a component attribute, tolerating nil.
func Component(l *slog.Logger, name string) *slog.Logger {
	return OrDiscard(l).With("component", name)
}
