package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/liamcoop/healthrisk/rules"
)

func newRulesCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List the recommendation rules",
		Long: `Rules lists the built-in recommendation rules in evaluation order.

With --file, a YAML rule file is loaded and compiled instead, which checks
it for schema, validation and expression errors.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := loadRuleList(file)
			if err != nil {
				return err
			}

			engine, err := rules.NewEngine(rules.NewInMemoryRuleStore())
			if err != nil {
				return err
			}
			if _, err := rules.Seed(engine, list); err != nil {
				return err
			}

			stored, err := engine.Rules()
			if err != nil {
				return err
			}
			renderRules(cmd.OutOrStdout(), stored)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML rule file to load instead of the built-in rules")
	return cmd
}

func loadRuleList(path string) ([]*rules.Rule, error) {
	if path == "" {
		return rules.DefaultRules()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open rule file: %w", err)
	}
	defer f.Close()

	return rules.LoadRules(f)
}
