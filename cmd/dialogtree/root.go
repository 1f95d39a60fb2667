package main

import (
	"fmt"
	"os"

	"github.com/aretw0/dialogtree/internal/cli"
	"github.com/aretw0/dialogtree/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dialogtree",
	Short: "Guided troubleshooting dialogs backed by a language model",
	Long: `dialogtree walks a dialog graph with the user, phrasing every question
through a language model grounded on a small knowledge base, and records
the conversation as a branching history tree.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the YAML configuration file")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging to stderr")
	rootCmd.PersistentFlags().String("graph", "", "YAML graph definition (overrides the configuration)")
}

// loadConfig reads the configuration named by --config and applies --graph.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if g, _ := cmd.Flags().GetString("graph"); g != "" {
		cfg.Graph = g
	}
	return cfg, nil
}

// buildApp loads the configuration and assembles the application.
func buildApp(cmd *cobra.Command) (*cli.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	debug, _ := cmd.Flags().GetBool("debug")
	return cli.Build(cmd.Context(), cfg, cli.NewLogger(debug, cfg.Log.Format), debug, nil)
}
