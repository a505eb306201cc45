// Package train fits a supervised window classifier on joined feature and
// label tables, evaluates it, and persists it for batch prediction.
package train

import (
	"io"
	"math"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/hed1ad/zigsense/pkg/detectors"
	"github.com/hed1ad/zigsense/pkg/frame"
	"github.com/hed1ad/zigsense/pkg/window"
)

// AllFeatures selects every feature column except the window id.
const AllFeatures = "all"

var (
	// ErrFeatureMismatch is returned when a feature table lacks a column
	// the model was trained on.
	ErrFeatureMismatch = errors.New("feature columns do not match model")
	// ErrNoOverlap is returned when features and labels share no window.
	ErrNoOverlap = errors.New("features and labels share no window")
)

// DefaultFeatures are the columns the classifier trains on unless told
// otherwise.
var DefaultFeatures = []string{
	window.ColPktCount,
	window.ColPktLenMean,
	window.ColPktLenStd,
	window.ColDistinctSrc,
	window.ColDistinctDst,
}

// Config controls the split and the feature selection.
type Config struct {
	TestSize float64          `mapstructure:"test_size" yaml:"test_size"`
	Seed     int64            `mapstructure:"seed" yaml:"seed"`
	Features []string         `mapstructure:"features" yaml:"features"`
	Model    detectors.Config `mapstructure:"model" yaml:"model"`
}

// DefaultConfig returns an 80/20 split over DefaultFeatures with a
// depth-bounded 100 tree forest.
func DefaultConfig() Config {
	return Config{
		TestSize: 0.2,
		Seed:     42,
		Features: append([]string(nil), DefaultFeatures...),
		Model: detectors.Config{
			Trees:      100,
			MaxDepth:   10,
			RandomSeed: 42,
		},
	}
}

// Model is a fitted classifier plus the feature columns, in order, it
// expects.
type Model struct {
	Columns    []string
	Classifier detectors.Classifier
}

// Trainer joins, splits, fits and evaluates.
type Trainer struct {
	cfg Config
	log logrus.FieldLogger
}

// Option configures a Trainer.
type Option func(*Trainer)

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(t *Trainer) {
		t.log = l
	}
}

// NewTrainer creates a Trainer.
func NewTrainer(cfg Config, opts ...Option) *Trainer {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	t := &Trainer{cfg: cfg, log: discard}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Columns resolves the configured feature selection against a table.
func (t *Trainer) Columns(features *frame.Frame) []string {
	if len(t.cfg.Features) == 0 || (len(t.cfg.Features) == 1 && t.cfg.Features[0] == AllFeatures) {
		return features.Without(frame.WindowColumn, frame.LabelColumn)
	}
	return t.cfg.Features
}

// Train fits clf on the inner join of features and labels and reports its
// scores on the held-out split.
func (t *Trainer) Train(features, labels *frame.Frame, clf detectors.Classifier) (*Model, Report, error) {
	columns := t.Columns(features)
	for _, c := range columns {
		if features.Index(c) < 0 {
			return nil, Report{}, errors.Wrapf(frame.ErrColumnNotFound, "feature %s", c)
		}
	}

	joined, err := frame.InnerJoin(features, labels, frame.WindowColumn)
	if err != nil {
		return nil, Report{}, errors.Wrap(err, "join features and labels")
	}
	if joined.Len() == 0 {
		return nil, Report{}, ErrNoOverlap
	}
	t.log.WithFields(logrus.Fields{
		"features": features.Len(),
		"labels":   labels.Len(),
		"joined":   joined.Len(),
	}).Info("joined features with labels")

	X, err := joined.Matrix(columns)
	if err != nil {
		return nil, Report{}, err
	}
	labelCol, err := joined.Column(frame.LabelColumn)
	if err != nil {
		return nil, Report{}, err
	}
	y := make([]int, len(labelCol))
	for i, v := range labelCol {
		if math.IsNaN(v) {
			return nil, Report{}, errors.Errorf("window %v has no label", joined.Rows[i][0])
		}
		y[i] = int(math.Round(v))
	}

	trainIdx, testIdx, err := StratifiedSplit(y, t.cfg.TestSize, t.cfg.Seed)
	if err != nil {
		return nil, Report{}, errors.Wrap(err, "split")
	}

	trainX, trainY := subset(X, y, trainIdx)
	testX, testY := subset(X, y, testIdx)

	if err := clf.Fit(trainX, trainY); err != nil {
		return nil, Report{}, errors.Wrap(err, "fit classifier")
	}
	pred, err := clf.Predict(testX)
	if err != nil {
		return nil, Report{}, errors.Wrap(err, "predict test split")
	}

	t.log.WithFields(logrus.Fields{
		"train":   len(trainIdx),
		"test":    len(testIdx),
		"columns": len(columns),
	}).Info("trained classifier")

	return &Model{Columns: columns, Classifier: clf}, Evaluate(testY, pred), nil
}

func subset(X [][]float64, y []int, idx []int) ([][]float64, []int) {
	outX := make([][]float64, len(idx))
	outY := make([]int, len(idx))
	for i, j := range idx {
		outX[i] = X[j]
		outY[i] = y[j]
	}
	return outX, outY
}

// Predict labels the first rows rows of features. Rows <= 0 means all.
// The table must carry every column the model was trained on.
func (m *Model) Predict(features *frame.Frame, rows int) ([]int, error) {
	if rows <= 0 {
		rows = features.Len()
	}
	X, err := features.Head(rows).Matrix(m.Columns)
	if err != nil {
		return nil, errors.Wrap(ErrFeatureMismatch, err.Error())
	}
	return m.Classifier.Predict(X)
}
