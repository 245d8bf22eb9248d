// Command healthrisk runs health risk assessments from the terminal.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/liamcoop/healthrisk/assessment"
	"github.com/liamcoop/healthrisk/internal/logger"
	"github.com/liamcoop/healthrisk/riskmodel"
)

// modelFlags are shared by every command that needs a trained model.
type modelFlags struct {
	seed    uint64
	trees   int
	samples int
}

func (f *modelFlags) config() riskmodel.Config {
	return riskmodel.Config{
		Seed:    f.seed,
		Trees:   f.trees,
		Samples: f.samples,
	}
}

func (f *modelFlags) train(ctx context.Context) (*riskmodel.Model, error) {
	return assessment.TrainModel(ctx, f.config(), nil)
}

func newRootCmd() *cobra.Command {
	flags := &modelFlags{}

	root := &cobra.Command{
		Use:   "healthrisk",
		Short: "Assess lifestyle health risk with a synthetic-data classifier",
		Long: `healthrisk predicts a Low, Medium or High health risk category from
ten lifestyle and clinical metrics and prints rule-based recommendations.

The classifier is trained on synthetic data at startup; it has no medical
validity and is not a substitute for professional medical advice.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.Init("healthrisk-cli")
			if os.Getenv("LOG_LEVEL") == "" {
				logger.SetLevel(logger.LevelWarning)
			}
		},
	}

	root.PersistentFlags().Uint64Var(&flags.seed, "seed", riskmodel.DefaultSeed,
		"Random seed for synthetic data and tree bagging")
	root.PersistentFlags().IntVar(&flags.trees, "trees", riskmodel.DefaultTrees,
		"Number of trees in the ensemble")
	root.PersistentFlags().IntVar(&flags.samples, "samples", riskmodel.DefaultSamples,
		"Number of synthetic training samples")

	root.AddCommand(
		newAssessCmd(flags),
		newImportanceCmd(flags),
		newRulesCmd(),
	)
	return root
}

func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	code := run(os.Args[1:], os.Stdout, os.Stderr)
	if err := logger.Shutdown(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "failed to flush logs:", err)
	}
	os.Exit(code)
}
