package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	api "github.com/aretw0/dialogtree/pkg/adapters/http"
	"github.com/aretw0/dialogtree/pkg/session"
)

// ShutdownTimeout bounds the graceful shutdown of the HTTP server.
const ShutdownTimeout = 5 * time.Second

// NewServer builds the HTTP server for app, opening the configured store.
// The returned func closes the store.
func NewServer(app *App, addr string) (*http.Server, func() error, error) {
	store, locker, closeStore, err := OpenStore(app.Config)
	if err != nil {
		return nil, nil, err
	}

	var opts []session.Option
	if locker != nil {
		opts = append(opts, session.WithLocker(locker))
	}
	mgr := app.Engine.NewSessionManager(store, opts...)

	handler := api.NewHandler(mgr, app.Graph,
		api.WithLogger(app.Logger),
		api.WithGatherer(app.Registry),
	)
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}, closeStore, nil
}

// Serve runs srv until ctx is cancelled, then shuts it down gracefully.
func Serve(ctx context.Context, app *App, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		app.Logger.Info("HTTP server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error("graceful shutdown did not complete", "err", err)
		return srv.Close()
	}
	return nil
}
