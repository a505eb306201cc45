package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hed1ad/zigsense/pkg/capture"
	"github.com/hed1ad/zigsense/pkg/config"
	"github.com/hed1ad/zigsense/pkg/io/csv"
	"github.com/hed1ad/zigsense/pkg/window"
)

func newLabelCmd(a *app) *cobra.Command {
	def := config.Default().Label

	cmd := &cobra.Command{
		Use:   "label",
		Short: "Label windows in which a known sensor sent a data frame",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runLabel(cmd)
		},
	}

	f := cmd.Flags()
	f.String("door-src", "", "16-bit source address of the door sensor (e.g. 0x1234)")
	f.String("outfile", def.Outfile, "Output CSV for labels")
	_ = cmd.MarkFlagRequired("door-src")

	bindings := map[string]string{
		"door-src": "label.door_src",
		"outfile":  "label.outfile",
	}
	addWindowFlags(cmd, bindings)
	a.bind(cmd, bindings)
	return cmd
}

func (a *app) runLabel(cmd *cobra.Command) error {
	addr := capture.ParseInt(a.cfg.Label.DoorSrc)
	if !addr.Valid {
		return errors.Errorf("invalid door sensor address %q", a.cfg.Label.DoorSrc)
	}

	table, err := a.loadCapture()
	if err != nil {
		return err
	}

	done := a.metrics.Time("label")
	labels, err := window.LabelFromSensor(table, addr.Int64, a.cfg.Window)
	done()
	if err != nil {
		return err
	}
	a.metrics.Windows.WithLabelValues("label").Add(float64(labels.Len()))

	if err := csv.WriteFrame(a.cfg.Label.Outfile, labels); err != nil {
		return err
	}

	positives := 0
	for _, row := range labels.Rows {
		positives += int(row[1])
	}
	a.log.WithFields(logrus.Fields{
		"sensor":    capture.FormatAddr(addr.Int64),
		"bins":      labels.Len(),
		"positives": positives,
	}).Info("labeled windows")

	fmt.Fprintf(cmd.OutOrStdout(), "Labels written to %s with %d rows.\n", a.cfg.Label.Outfile, labels.Len())
	return nil
}
