package main

import (
	"fmt"

	"github.com/aretw0/dialogtree/internal/cli"
	"github.com/aretw0/dialogtree/pkg/adapters/file"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect saved history files",
}

var historyShowCmd = &cobra.Command{
	Use:   "show <file>",
	Short: "Print a history tree as an outline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tree, err := file.ReadHistoryFile(args[0])
		if err != nil {
			return err
		}
		cli.PrintHistory(cmd.OutOrStdout(), tree)
		return nil
	},
}

var historyValidateCmd = &cobra.Command{
	Use:   "validate <file>...",
	Short: "Check that history files are well formed",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		failed := 0
		for _, path := range args {
			summary, err := cli.ValidateHistory(path)
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "✗ %s: %v\n", path, err)
				failed++
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s\n", summary)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d history files are invalid", failed, len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyValidateCmd)
}
