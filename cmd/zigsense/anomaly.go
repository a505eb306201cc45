package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hed1ad/zigsense/pkg/anomaly"
	"github.com/hed1ad/zigsense/pkg/config"
	"github.com/hed1ad/zigsense/pkg/detectors/iforest"
	"github.com/hed1ad/zigsense/pkg/io/csv"
)

func newAnomalyCmd(a *app) *cobra.Command {
	def := config.Default().Anomaly

	cmd := &cobra.Command{
		Use:   "anomaly",
		Short: "Label windows with an isolation forest fitted on window features",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runAnomaly(cmd)
		},
	}

	f := cmd.Flags()
	f.String("features-out", def.FeaturesOut, "Output CSV for window features (empty to skip)")
	f.String("labels-out", def.LabelsOut, "Output CSV for labels")
	f.String("plot", def.Plot, "Render decision scores to this image file")
	f.Int("top", def.Top, "Number of most anomalous windows to print")
	f.Int("trees", def.Detector.Trees, "Number of isolation trees")
	f.Int("sample-size", def.Detector.SampleSize, "Subsample size per tree")
	f.Float64("contamination", def.Detector.Contamination, "Expected proportion of anomalous windows")
	f.Int64("seed", def.Detector.RandomSeed, "Random seed")

	bindings := map[string]string{
		"features-out":  "anomaly.features_out",
		"labels-out":    "anomaly.labels_out",
		"plot":          "anomaly.plot",
		"top":           "anomaly.top",
		"trees":         "anomaly.detector.trees",
		"sample-size":   "anomaly.detector.sample_size",
		"contamination": "anomaly.detector.contamination",
		"seed":          "anomaly.detector.seed",
	}
	addWindowFlags(cmd, bindings)
	a.bind(cmd, bindings)
	return cmd
}

func (a *app) runAnomaly(cmd *cobra.Command) error {
	table, err := a.loadCapture()
	if err != nil {
		return err
	}
	features, err := a.extract(table, a.cfg.Anomaly.FeaturesOut)
	if err != nil {
		return err
	}

	done := a.metrics.Time("anomaly")
	labeler := anomaly.NewLabeler(iforest.FromConfig(a.cfg.Anomaly.Detector), anomaly.WithLogger(a.log))
	res, err := labeler.Label(features)
	done()
	if err != nil {
		return err
	}
	a.metrics.Anomalies.Add(float64(res.Outliers()))

	labels := res.Labels()
	if err := csv.WriteFrame(a.cfg.Anomaly.LabelsOut, labels); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s written with %d rows.\n", a.cfg.Anomaly.LabelsOut, labels.Len())
	if err := anomaly.PrintTop(out, res, features, a.cfg.Anomaly.Top); err != nil {
		return err
	}

	if a.cfg.Anomaly.Plot != "" {
		if err := anomaly.Plot(res, a.cfg.Anomaly.Plot); err != nil {
			return err
		}
		a.log.WithField("file", a.cfg.Anomaly.Plot).Info("wrote score plot")
	}
	return nil
}
