package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hed1ad/zigsense/pkg/config"
	"github.com/hed1ad/zigsense/pkg/detectors/forest"
	"github.com/hed1ad/zigsense/pkg/io/csv"
	"github.com/hed1ad/zigsense/pkg/train"
)

func newTrainCmd(a *app) *cobra.Command {
	def := config.Default().Train

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train and evaluate a random forest on window features and labels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runTrain(cmd)
		},
	}

	f := cmd.Flags()
	f.String("features", def.FeaturesFile, "Feature CSV")
	f.String("labels", def.LabelsFile, "Label CSV")
	f.String("model", def.ModelFile, "Where to write the trained model")
	f.StringSlice("columns", def.Options.Features, `Feature columns to train on, or "all"`)
	f.Float64("test-size", def.Options.TestSize, "Held-out fraction")
	f.Int("trees", def.Options.Model.Trees, "Number of trees")
	f.Int("max-depth", def.Options.Model.MaxDepth, "Maximum tree depth (0 for unbounded)")
	f.Int64("seed", def.Options.Seed, "Random seed for the split and the forest")

	a.bind(cmd, map[string]string{
		"features":  "train.features_file",
		"labels":    "train.labels_file",
		"model":     "train.model_file",
		"columns":   "train.options.features",
		"test-size": "train.options.test_size",
		"trees":     "train.options.model.trees",
		"max-depth": "train.options.model.max_depth",
		"seed":      "train.options.seed",
	})
	return cmd
}

func (a *app) runTrain(cmd *cobra.Command) error {
	tc := a.cfg.Train
	if cmd.Flags().Changed("seed") {
		tc.Options.Model.RandomSeed = tc.Options.Seed
	}

	features, err := csv.ReadFrame(tc.FeaturesFile)
	if err != nil {
		return err
	}
	labels, err := csv.ReadFrame(tc.LabelsFile)
	if err != nil {
		return err
	}

	done := a.metrics.Time("train")
	trainer := train.NewTrainer(tc.Options, train.WithLogger(a.log))
	model, report, err := trainer.Train(features, labels, forest.FromConfig(tc.Options.Model))
	done()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "=== Classification Report ===")
	fmt.Fprintln(out, report.String())

	if err := model.Save(tc.ModelFile); err != nil {
		return err
	}
	fmt.Fprintf(out, "Model saved to %s\n", tc.ModelFile)
	return nil
}
