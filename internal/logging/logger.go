// Package logging builds the slog loggers shared by the commands and adapters.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Format selects the slog handler.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Options configures New. The zero value logs Info and above as text to Stderr.
type Options struct {
	Level  slog.Leveler
	Format Format
	// Output defaults to os.Stderr so logs never mix with console dialog output.
	Output io.Writer
}

// New creates the application logger. The "error" attribute key is renamed
// to "err" so both spellings end up in one column.
func New(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	ho := &slog.HandlerOptions{Level: opts.Level, ReplaceAttr: normalizeKeys}

	if opts.Format == FormatJSON {
		return slog.New(slog.NewJSONHandler(out, ho))
	}
	return slog.New(slog.NewTextHandler(out, ho))
}

func normalizeKeys(_ []string, a slog.Attr) slog.Attr {
	if a.Key == "error" {
		a.Key = "err"
	}
	return a
}

// NewNop returns a logger that drops every record.
func NewNop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
