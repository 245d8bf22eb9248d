package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/liamcoop/healthrisk/assessment"
	"github.com/liamcoop/healthrisk/features"
	"github.com/liamcoop/healthrisk/rules"
)

func newAssessCmd(mf *modelFlags) *cobra.Command {
	in := features.Input{}
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Predict a risk category and print recommendations",
		Long: `Assess predicts a risk category from the given metrics, then prints the
probability of each category, the matching recommendations and the relative
importance of each factor.

Examples:
  healthrisk assess
  healthrisk assess --bmi 32 --exercise 1 --smoking Current
  healthrisk assess --stress 9 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			model, err := mf.train(ctx)
			if err != nil {
				return err
			}
			engine, err := rules.NewDefaultEngine()
			if err != nil {
				return err
			}

			res, err := assessment.NewAssessor(model, engine).Assess(ctx, in)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			renderResult(cmd.OutOrStdout(), res)
			return nil
		},
	}

	f := cmd.Flags()
	f.Float64Var(&in.BMI, "bmi", 25, "Body Mass Index (15-50)")
	f.Float64Var(&in.ExerciseHoursPerWeek, "exercise", 3, "Exercise hours per week (0-20)")
	f.StringVar(&in.Smoking, "smoking", "Never", "Smoking status: Never, Former or Current")
	f.Float64Var(&in.AlcoholDrinksPerWeek, "alcohol", 2, "Alcohol drinks per week (0-50)")
	f.Float64Var(&in.SleepHoursPerDay, "sleep", 7, "Sleep hours per day (4-12)")
	f.Float64Var(&in.SystolicBP, "systolic-bp", 120, "Systolic blood pressure in mmHg (90-200)")
	f.Float64Var(&in.TotalCholesterol, "cholesterol", 180, "Total cholesterol in mg/dL (100-300)")
	f.BoolVar(&in.FamilyDiabetesHistory, "family-diabetes", false, "Immediate family members with diabetes")
	f.BoolVar(&in.FamilyHeartDiseaseHistory, "family-heart-disease", false, "Immediate family members with heart disease")
	f.IntVar(&in.StressLevel, "stress", 5, "Subjective stress level (1-10)")
	f.BoolVar(&asJSON, "json", false, "Output as JSON")

	return cmd
}
