// Package detectors defines the model capabilities the labeling and
// training jobs depend on. Implementations live in subpackages.
package detectors

import "github.com/pkg/errors"

var (
	// ErrEmptyData is returned when fitting on no samples.
	ErrEmptyData = errors.New("empty training data")
	// ErrNotTrained is returned when scoring with an unfitted model.
	ErrNotTrained = errors.New("model not trained")
	// ErrDimension is returned when a sample has the wrong feature count.
	ErrDimension = errors.New("feature dimension mismatch")
)

// Detector is the common interface for unsupervised anomaly detectors.
type Detector interface {
	// Fit trains the detector on historical data.
	// data is a 2D slice where each row is a sample and each column is a feature.
	Fit(data [][]float64) error

	// Predict returns anomaly scores for the given samples.
	// Scores are normalized to [0, 1] where higher values indicate anomalies.
	Predict(data [][]float64) ([]float64, error)

	// PredictOne returns the anomaly score for a single sample.
	PredictOne(sample []float64) (float64, error)

	// Save serializes the trained model to bytes.
	Save() ([]byte, error)

	// Load deserializes a trained model from bytes.
	Load(data []byte) error
}

// Thresholded is a Detector whose fitted threshold separates inliers from
// outliers: a score strictly above Threshold is an outlier.
type Thresholded interface {
	Detector

	Threshold() float64
}

// Classifier is the common interface for supervised classifiers over
// integer class labels.
type Classifier interface {
	// Fit trains on samples X with labels y.
	Fit(X [][]float64, y []int) error

	// Predict returns one label per sample.
	Predict(X [][]float64) ([]int, error)

	// Classes returns the labels seen during Fit, ascending.
	Classes() []int

	// Save serializes the trained model to bytes.
	Save() ([]byte, error)

	// Load deserializes a trained model from bytes.
	Load(data []byte) error
}

// Config holds common configuration for detectors and classifiers.
type Config struct {
	// Trees is the ensemble size.
	Trees int `mapstructure:"trees" yaml:"trees"`
	// Contamination is the expected proportion of anomalies in training data.
	Contamination float64 `mapstructure:"contamination" yaml:"contamination"`
	// SampleSize caps the subsample drawn per isolation tree.
	SampleSize int `mapstructure:"sample_size" yaml:"sample_size"`
	// MaxDepth bounds classifier tree depth; zero means unbounded.
	MaxDepth int `mapstructure:"max_depth" yaml:"max_depth"`
	// RandomSeed for reproducibility.
	RandomSeed int64 `mapstructure:"seed" yaml:"seed"`
}

// DefaultConfig returns the settings the anomaly labeler ships with.
func DefaultConfig() Config {
	return Config{
		Trees:         100,
		Contamination: 0.01,
		SampleSize:    256,
		RandomSeed:    42,
	}
}
