package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/formscan/formscan/internal/config"
	"github.com/formscan/formscan/internal/pipeline"
	"github.com/formscan/formscan/internal/source"
	"github.com/formscan/formscan/internal/types"
)

var (
	processRemote  bool
	processPublish string
	processOut     string
)

var processCmd = &cobra.Command{
	Use:   "process <document>",
	Short: "Extract structured answers from a questionnaire document",
	Long: `Process runs one document through the full extraction pipeline.

By default the argument is a local file path. With --remote it is an
attachment ID fetched from the configured document store.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := slog.Default()

		mgr, err := config.NewManager(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg := mgr.Get()

		var store source.Store = source.LocalStore{}
		if processRemote {
			store = source.NewHTTPStore(cfg.Source, logger)
		}

		doc, err := store.Download(ctx, args[0])
		if err != nil {
			return err
		}

		p, err := pipeline.FromConfig(cfg, logger)
		if err != nil {
			return err
		}

		set, err := p.Run(ctx, doc)
		if err != nil {
			return err
		}

		if processPublish != "" {
			notifier := source.NewHTTPStore(cfg.Source, logger)
			if err := notifier.Publish(ctx, processPublish, set); err != nil {
				return err
			}
			logger.Info("answers published", "target", processPublish)
		}

		return writeAnswerSet(set)
	},
}

func init() {
	processCmd.Flags().BoolVar(&processRemote, "remote", false, "treat the argument as a document store attachment ID")
	processCmd.Flags().StringVar(&processPublish, "publish", "", "publish the answer set to this candidate ID")
	processCmd.Flags().StringVar(&processOut, "out", "", "write the answer set to this file instead of stdout")
}

func writeAnswerSet(set *types.CategorizedAnswerSet) error {
	var (
		data []byte
		err  error
	)
	switch outputFormat {
	case "json":
		data, err = json.MarshalIndent(set, "", "  ")
		if err == nil {
			data = append(data, '\n')
		}
	default:
		data, err = yaml.Marshal(set)
	}
	if err != nil {
		return fmt.Errorf("encoding answer set: %w", err)
	}

	if processOut == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(processOut, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", processOut, err)
	}
	slog.Default().Info("answer set written", "path", processOut)
	return nil
}
