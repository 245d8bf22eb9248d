package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/liamcoop/healthrisk/assessment"
)

func newImportanceCmd(mf *modelFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "importance",
		Short: "Show how much each factor influences the risk model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := mf.train(cmd.Context())
			if err != nil {
				return err
			}

			factors, err := assessment.NewAssessor(model, nil).Importance()
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(factors)
			}
			renderImportance(cmd.OutOrStdout(), factors)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
