package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hed1ad/zigsense/pkg/capture"
	"github.com/hed1ad/zigsense/pkg/config"
	"github.com/hed1ad/zigsense/pkg/frame"
	"github.com/hed1ad/zigsense/pkg/io/csv"
	"github.com/hed1ad/zigsense/pkg/window"
)

func newFeaturesCmd(a *app) *cobra.Command {
	def := config.Default().Features

	cmd := &cobra.Command{
		Use:   "features",
		Short: "Compute per-window traffic statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			table, err := a.loadCapture()
			if err != nil {
				return err
			}
			features, err := a.extract(table, a.cfg.Features.Outfile)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s written with %d rows.\n", a.cfg.Features.Outfile, features.Len())
			return nil
		},
	}

	cmd.Flags().String("outfile", def.Outfile, "Output CSV for window features")
	bindings := map[string]string{"outfile": "features.outfile"}
	addWindowFlags(cmd, bindings)
	a.bind(cmd, bindings)
	return cmd
}

// extract computes the feature table and writes it when outfile is set.
func (a *app) extract(table *capture.Table, outfile string) (*frame.Frame, error) {
	done := a.metrics.Time("features")
	features, err := window.Extract(table, a.cfg.Window)
	done()
	if err != nil {
		return nil, err
	}
	a.metrics.Windows.WithLabelValues("features").Add(float64(features.Len()))

	a.log.WithFields(logrus.Fields{
		"mode":    a.cfg.Window.Mode,
		"size":    a.cfg.Window.Size,
		"step":    a.cfg.Window.Step,
		"windows": features.Len(),
		"columns": len(features.Columns),
	}).Info("extracted window features")

	if outfile != "" {
		if err := csv.WriteFrame(outfile, features); err != nil {
			return nil, err
		}
	}
	return features, nil
}
