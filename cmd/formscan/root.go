package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/formscan/formscan/version"
)

var (
	cfgFile      string
	outputFormat string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "formscan",
	Short: "Questionnaire extraction pipeline for scanned and interactive forms",
	Long: `Formscan turns filled-out questionnaire documents into structured,
field-level answers by reconciling two evidence sources:

  - The document's own interactive form fields, when present
  - Vision-model interpretation of enhanced page images

Each run reports per-field values with confidence scores, flags
conflicts and low-confidence answers for manual verification, and rolls
answers up into domain buckets.`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.formscan/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose, "verbose", "v", false, "debug logging",
	)

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	}

	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(promptsCmd)
	rootCmd.AddCommand(versionCmd)
}
