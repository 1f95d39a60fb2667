package main

import (
	"context"
	"os"
	"strings"

	"github.com/aretw0/dialogtree/internal/cli"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an interactive console dialog",
	Long: `Starts the guided dialog in the console. After the guided flow ends the
session continues as free chat until 'exit'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sigCtx := cli.NewSignalContext(context.Background())
		defer sigCtx.Cancel()
		cmd.SetContext(sigCtx)

		app, err := buildApp(cmd)
		if err != nil {
			return err
		}

		opts := cli.RunOptions{}
		if script, _ := cmd.Flags().GetString("script"); script != "" {
			opts.Script = strings.Split(script, ",")
		}
		opts.SavePath, _ = cmd.Flags().GetString("save")
		opts.LoadPath, _ = cmd.Flags().GetString("load")
		opts.NoChat, _ = cmd.Flags().GetBool("no-chat")
		opts.Plain, _ = cmd.Flags().GetBool("plain")

		return cli.RunSession(sigCtx, app, opts, os.Stdin, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("script", "", "Comma separated replies sent before reading stdin (e.g. temp,22,24,день,1.5,yes)")
	runCmd.Flags().String("save", "", "Write the history tree to this file")
	runCmd.Flags().String("load", "", "Load a history tree before starting")
	runCmd.Flags().Bool("no-chat", false, "Exit when the guided flow finishes")
	runCmd.Flags().Bool("plain", false, "Disable banner and markdown rendering")
}
