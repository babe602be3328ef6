package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/formscan/formscan/internal/prompts"
	"github.com/formscan/formscan/internal/prompts/questionnaire"
)

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Inspect the embedded vision prompt strategies",
}

var promptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered strategies",
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range prompts.Names() {
			fmt.Println(name)
		}
	},
}

var promptsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the embedded prompt texts with their hashes",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printYAML(questionnaire.Prompts())
	},
}

func init() {
	promptsCmd.AddCommand(promptsListCmd)
	promptsCmd.AddCommand(promptsShowCmd)
}

func printYAML(v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}
