// Package logging builds the single *slog.Logger each binary constructs
// once at startup and threads explicitly through every component — there
// is no package-level global logger anywhere in this module (spec §9's
// "Global logger / panic hook" design note).
package logging

import (
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
)

// Format selects the slog handler's output shape.
type Format string

// Supported log formats. "auto" picks Text for a TTY and JSON otherwise.
const (
	FormatAuto Format = "auto"
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Options configures Build.
type Options struct {
	Level  slog.Level
	Format Format
	Output *os.File // defaults to os.Stderr when nil
}

// Build constructs a *slog.Logger per opts. Format "auto" chooses Text when
// Output is a terminal (via isatty) and JSON otherwise, matching the
// terminal-detection idiom the teacher applies to its own CLI output.
func Build(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{Level: opts.Level}

	format := opts.Format
	if format == "" || format == FormatAuto {
		if isatty.IsTerminal(out.Fd()) {
			format = FormatText
		} else {
			format = FormatJSON
		}
	}

	var handler slog.Handler
	if format == FormatJSON {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}

	return slog.New(handler)
}

// ParseLevel maps a config/flag string to a slog.Level. Unrecognized
// values fall back to Info.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
