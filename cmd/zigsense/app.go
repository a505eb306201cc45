package main

import (
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/hed1ad/zigsense/pkg/capture"
	"github.com/hed1ad/zigsense/pkg/config"
	zio "github.com/hed1ad/zigsense/pkg/io"
	"github.com/hed1ad/zigsense/pkg/metrics"
)

// app carries the state shared by every subcommand for one invocation.
type app struct {
	configFile    string
	windowProfile string

	bindings map[*cobra.Command]map[string]string

	cfg     *config.Config
	log     *logrus.Entry
	metrics *metrics.Recorder
}

// persistentBindings map root flags to config keys.
var persistentBindings = map[string]string{
	"input":        "input",
	"log-level":    "log.level",
	"log-format":   "log.format",
	"metrics-file": "metrics_file",
}

func newRootCmd() *cobra.Command {
	a := &app{bindings: make(map[*cobra.Command]map[string]string)}
	def := config.Default()

	root := &cobra.Command{
		Use:           "zigsense",
		Short:         "Device role and event analysis for Zigbee captures",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return a.finish()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "YAML config file")
	pf.StringVar(&a.windowProfile, "window-profile", "", "Named window layout (sliding, fixed)")
	pf.String("input", def.Input, "Capture to read: tshark CSV export, .pcap or .pcapng")
	pf.String("log-level", def.Log.Level, "Log level (debug, info, warn, error)")
	pf.String("log-format", def.Log.Format, "Log format (text, json)")
	pf.String("metrics-file", def.MetricsFile, "Write run metrics in Prometheus text format to this file")

	// The field scripts called the input flag --csv.
	root.SetGlobalNormalizationFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		if name == "csv" {
			name = "input"
		}
		return pflag.NormalizedName(name)
	})

	root.AddCommand(
		newIdentifyCmd(a),
		newLabelCmd(a),
		newFeaturesCmd(a),
		newAnomalyCmd(a),
		newTrainCmd(a),
		newPredictCmd(a),
		newConfigCmd(a),
	)
	return root
}

// bind records flag to config key bindings applied when cmd runs.
func (a *app) bind(cmd *cobra.Command, flags map[string]string) {
	a.bindings[cmd] = flags
}

func (a *app) setup(cmd *cobra.Command) error {
	v, err := config.New()
	if err != nil {
		return err
	}

	for _, set := range []map[string]string{persistentBindings, a.bindings[cmd]} {
		for name, key := range set {
			flag := cmd.Flags().Lookup(name)
			if flag == nil {
				return errors.Errorf("flag --%s is not defined on %s", name, cmd.Name())
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return errors.Wrapf(err, "bind --%s", name)
			}
		}
	}

	cfg, err := config.Load(v, a.configFile, a.windowProfile)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.metrics = metrics.NewRecorder()
	a.log = logger.WithFields(logrus.Fields{
		"run_id":  uuid.New().String(),
		"command": cmd.CommandPath(),
	})
	return nil
}

func newLogger(cfg config.LogConfig) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, errors.Wrap(err, "log level")
	}
	logger.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, errors.Errorf("unknown log format %q", cfg.Format)
	}
	return logger, nil
}

func (a *app) finish() error {
	if a.cfg == nil || a.cfg.MetricsFile == "" {
		return nil
	}
	if err := a.metrics.WriteTextfile(a.cfg.MetricsFile); err != nil {
		return err
	}
	a.log.WithField("file", a.cfg.MetricsFile).Debug("wrote run metrics")
	return nil
}

// loadCapture reads and normalizes the configured input.
func (a *app) loadCapture() (*capture.Table, error) {
	done := a.metrics.Time("ingest")
	defer done()

	a.log.WithField("input", a.cfg.Input).Info("loading capture")
	table, stats, err := zio.Load(a.cfg.Input, a.log)
	if err != nil {
		return nil, err
	}
	a.metrics.ObserveIngest(stats)

	fields := logrus.Fields{"packets": table.Len(), "dropped": stats.Dropped}
	for col, n := range stats.Missing {
		fields["missing_"+col] = n
	}
	a.log.WithFields(fields).Info("capture loaded")
	return table, nil
}
