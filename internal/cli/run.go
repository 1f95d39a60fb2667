package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/dialogtree"
	"github.com/aretw0/dialogtree/internal/presentation/tui"
	"golang.org/x/term"
)

// RunOptions configures an interactive console session.
type RunOptions struct {
	Script   []string
	SavePath string
	LoadPath string
	NoChat   bool
	// Plain disables the banner and markdown rendering even on a terminal.
	Plain bool
}

// RunSession runs one console conversation over in and out.
func RunSession(ctx context.Context, app *App, opts RunOptions, in io.Reader, out io.Writer) error {
	if opts.LoadPath != "" {
		if err := app.Engine.LoadHistoryFile(opts.LoadPath); err != nil {
			return fmt.Errorf("failed to load history: %w", err)
		}
		app.Logger.Info("history loaded", "path", opts.LoadPath, "messages", app.Engine.History().Len())
	}

	r := &dialogtree.Runner{
		Input:    in,
		Output:   out,
		Script:   opts.Script,
		SavePath: opts.SavePath,
		NoChat:   opts.NoChat,
	}
	if !opts.Plain && isTerminal(out) {
		tui.PrintBanner(out)
		if width, _, err := term.GetSize(int(out.(*os.File).Fd())); err == nil {
			r.Renderer = tui.NewRenderer(width - 4)
		} else {
			r.Renderer = tui.NewRenderer(0)
		}
	}

	err := r.Run(ctx, app.Engine)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
