// Package config loads job settings from defaults, an optional YAML file,
// ZIGSENSE_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"bytes"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/hed1ad/zigsense/pkg/detectors"
	"github.com/hed1ad/zigsense/pkg/devices"
	"github.com/hed1ad/zigsense/pkg/train"
	"github.com/hed1ad/zigsense/pkg/window"
)

// EnvPrefix prefixes every environment override, e.g. ZIGSENSE_WINDOW_SIZE.
const EnvPrefix = "ZIGSENSE"

// Config is the full set of job settings.
type Config struct {
	Input       string         `mapstructure:"input" yaml:"input"`
	MetricsFile string         `mapstructure:"metrics_file" yaml:"metrics_file"`
	Log         LogConfig      `mapstructure:"log" yaml:"log"`
	Window      window.Config  `mapstructure:"window" yaml:"window"`
	Identify    IdentifyConfig `mapstructure:"identify" yaml:"identify"`
	Label       LabelConfig    `mapstructure:"label" yaml:"label"`
	Features    FeaturesConfig `mapstructure:"features" yaml:"features"`
	Anomaly     AnomalyConfig  `mapstructure:"anomaly" yaml:"anomaly"`
	Train       TrainConfig    `mapstructure:"train" yaml:"train"`
	Predict     PredictConfig  `mapstructure:"predict" yaml:"predict"`
}

// LogConfig selects the log level and formatter.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// IdentifyConfig drives the device role classifier.
type IdentifyConfig struct {
	Top   int           `mapstructure:"top" yaml:"top"`
	Rules devices.Rules `mapstructure:"rules" yaml:"rules"`
}

// LabelConfig drives the known-sensor window labeler.
type LabelConfig struct {
	DoorSrc string `mapstructure:"door_src" yaml:"door_src"`
	Outfile string `mapstructure:"outfile" yaml:"outfile"`
}

// FeaturesConfig drives the feature extractor.
type FeaturesConfig struct {
	Outfile string `mapstructure:"outfile" yaml:"outfile"`
}

// AnomalyConfig drives the anomaly labeler.
type AnomalyConfig struct {
	Detector    detectors.Config `mapstructure:"detector" yaml:"detector"`
	Top         int              `mapstructure:"top" yaml:"top"`
	FeaturesOut string           `mapstructure:"features_out" yaml:"features_out"`
	LabelsOut   string           `mapstructure:"labels_out" yaml:"labels_out"`
	Plot        string           `mapstructure:"plot" yaml:"plot"`
}

// TrainConfig drives the supervised trainer.
type TrainConfig struct {
	FeaturesFile string       `mapstructure:"features_file" yaml:"features_file"`
	LabelsFile   string       `mapstructure:"labels_file" yaml:"labels_file"`
	ModelFile    string       `mapstructure:"model_file" yaml:"model_file"`
	Options      train.Config `mapstructure:"options" yaml:"options"`
}

// PredictConfig drives the batch predictor.
type PredictConfig struct {
	FeaturesFile string `mapstructure:"features_file" yaml:"features_file"`
	ModelFile    string `mapstructure:"model_file" yaml:"model_file"`
	Rows         int    `mapstructure:"rows" yaml:"rows"`
}

// Default returns the settings the jobs run with when nothing overrides them.
func Default() Config {
	return Config{
		Input: "dataset/zboss.csv",
		Log:   LogConfig{Level: "info", Format: "text"},
		Window: window.DefaultConfig(),
		Identify: IdentifyConfig{
			Top:   5,
			Rules: devices.DefaultRules(),
		},
		Label:    LabelConfig{Outfile: "labels/door_labels.csv"},
		Features: FeaturesConfig{Outfile: "features/zigbee_features.csv"},
		Anomaly: AnomalyConfig{
			Detector:    detectors.DefaultConfig(),
			Top:         20,
			FeaturesOut: "features/zigbee_features.csv",
			LabelsOut:   "labels/labels.csv",
		},
		Train: TrainConfig{
			FeaturesFile: "features/zigbee_features.csv",
			LabelsFile:   "labels/labels.csv",
			ModelFile:    "rf_model.bin",
			Options:      train.DefaultConfig(),
		},
		Predict: PredictConfig{
			FeaturesFile: "features/zigbee_features.csv",
			ModelFile:    "rf_model.bin",
			Rows:         400,
		},
	}
}

// New returns a viper instance seeded with Default and wired to the
// environment.
func New() (*viper.Viper, error) {
	defaults, err := yaml.Marshal(Default())
	if err != nil {
		return nil, errors.Wrap(err, "encode defaults")
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, errors.Wrap(err, "load defaults")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v, nil
}

// Load merges the optional config file into v, then the optional named
// window profile, and decodes the result. Environment variables and bound
// flags still take precedence over both.
func Load(v *viper.Viper, file, windowProfile string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.MergeInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", file)
		}
	}
	if windowProfile != "" {
		if err := useWindowProfile(v, windowProfile); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	return &cfg, nil
}

func useWindowProfile(v *viper.Viper, name string) error {
	cfg, err := window.Profile(name)
	if err != nil {
		return err
	}
	return v.MergeConfigMap(map[string]any{
		"window": map[string]any{
			"size": cfg.Size,
			"step": cfg.Step,
			"mode": string(cfg.Mode),
		},
	})
}

// YAML renders the effective configuration.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
