package main

import (
	"context"
	"fmt"

	"github.com/aretw0/dialogtree/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long:  `Serves dialog sessions over HTTP, persisted to the configured store.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sigCtx := cli.NewSignalContext(context.Background())
		defer sigCtx.Cancel()
		cmd.SetContext(sigCtx)

		app, err := buildApp(cmd)
		if err != nil {
			return err
		}

		addr := app.Config.HTTP.Addr
		if cmd.Flags().Changed("addr") {
			addr, _ = cmd.Flags().GetString("addr")
		}

		srv, closeStore, err := cli.NewServer(app, addr)
		if err != nil {
			return err
		}
		defer func() {
			if err := closeStore(); err != nil {
				app.Logger.Warn("failed to close store", "err", err)
			}
		}()

		fmt.Fprintf(cmd.OutOrStdout(), "Serving dialogs on %s (store: %s)\n", addr, app.Config.Store.Kind)
		if err := cli.Serve(sigCtx, app, srv); err != nil {
			return err
		}
		if sig := sigCtx.Signal(); sig != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Stopped on %v\n", sig)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "Listen address (overrides http.addr)")
}
