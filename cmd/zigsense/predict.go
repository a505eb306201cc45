package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hed1ad/zigsense/pkg/config"
	"github.com/hed1ad/zigsense/pkg/detectors/forest"
	"github.com/hed1ad/zigsense/pkg/io/csv"
	"github.com/hed1ad/zigsense/pkg/train"
)

func newPredictCmd(a *app) *cobra.Command {
	def := config.Default().Predict

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict labels for the first rows of a feature table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runPredict(cmd)
		},
	}

	f := cmd.Flags()
	f.String("features", def.FeaturesFile, "Feature CSV")
	f.String("model", def.ModelFile, "Trained model file")
	f.Int("rows", def.Rows, "Number of leading rows to predict (0 for all)")

	a.bind(cmd, map[string]string{
		"features": "predict.features_file",
		"model":    "predict.model_file",
		"rows":     "predict.rows",
	})
	return cmd
}

func (a *app) runPredict(cmd *cobra.Command) error {
	pc := a.cfg.Predict

	model, err := train.LoadModel(pc.ModelFile, forest.New())
	if err != nil {
		return err
	}
	features, err := csv.ReadFrame(pc.FeaturesFile)
	if err != nil {
		return err
	}

	done := a.metrics.Time("predict")
	pred, err := model.Predict(features, pc.Rows)
	done()
	if err != nil {
		return err
	}

	positives := 0
	for _, p := range pred {
		if p != 0 {
			positives++
		}
	}
	a.log.WithFields(logrus.Fields{
		"rows":      len(pred),
		"positives": positives,
		"columns":   model.Columns,
	}).Info("predicted windows")

	fmt.Fprintln(cmd.OutOrStdout(), "Sample Predictions:", pred)
	return nil
}
