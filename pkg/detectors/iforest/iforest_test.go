package iforest

import (
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/zigsense/pkg/detectors"
)

func TestNewIsolationForest(t *testing.T) {
	tests := []struct {
		name       string
		opts       []Option
		wantNTrees int
	}{
		{
			name:       "default configuration",
			opts:       nil,
			wantNTrees: 100,
		},
		{
			name:       "custom trees",
			opts:       []Option{WithTrees(50)},
			wantNTrees: 50,
		},
		{
			name:       "multiple options",
			opts:       []Option{WithTrees(200), WithContamination(0.05), WithSeed(123)},
			wantNTrees: 200,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(tt.opts...)
			assert.Equal(t, tt.wantNTrees, f.nTrees)
		})
	}
}

func TestFromConfig(t *testing.T) {
	f := FromConfig(detectors.DefaultConfig())

	assert.Equal(t, 100, f.nTrees)
	assert.Equal(t, 256, f.sampleSize)
	assert.Equal(t, 0.01, f.contamination)
}

func TestFit(t *testing.T) {
	tests := []struct {
		name    string
		data    [][]float64
		wantErr error
	}{
		{
			name:    "empty data",
			data:    [][]float64{},
			wantErr: detectors.ErrEmptyData,
		},
		{
			name:    "ragged rows",
			data:    [][]float64{{1, 2}, {1}},
			wantErr: detectors.ErrDimension,
		},
		{
			name: "single sample",
			data: [][]float64{{1.0, 2.0, 3.0}},
		},
		{
			name: "normal data",
			data: generateTestData(100, 5),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(WithTrees(10), WithSeed(42))
			err := f.Fit(tt.data)

			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			assert.NoError(t, err)
			assert.True(t, f.trained)
			assert.Len(t, f.trees, f.nTrees)
		})
	}
}

func TestPredict(t *testing.T) {
	trainData := generateTestData(500, 5)
	f := New(WithTrees(50), WithSampleSize(100), WithSeed(42))
	require.NoError(t, f.Fit(trainData))

	t.Run("predict on normal data", func(t *testing.T) {
		testData := generateTestData(100, 5)
		scores, err := f.Predict(testData)

		require.NoError(t, err)
		assert.Len(t, scores, len(testData))

		for _, score := range scores {
			assert.GreaterOrEqual(t, score, 0.0)
			assert.LessOrEqual(t, score, 1.0)
		}
	})

	t.Run("predict on anomalies", func(t *testing.T) {
		anomalies := [][]float64{
			{1000, 1000, 1000, 1000, 1000},
			{-500, -500, -500, -500, -500},
		}
		scores, err := f.Predict(anomalies)

		require.NoError(t, err)
		for _, score := range scores {
			assert.Greater(t, score, f.Threshold(), "anomalies should score above the threshold")
		}
	})

	t.Run("wrong dimension", func(t *testing.T) {
		_, err := f.Predict([][]float64{{1, 2}})
		assert.True(t, errors.Is(err, detectors.ErrDimension))
	})

	t.Run("predict before fit", func(t *testing.T) {
		untrained := New()
		_, err := untrained.Predict(trainData)
		assert.True(t, errors.Is(err, detectors.ErrNotTrained))
	})
}

func TestPredictOne(t *testing.T) {
	trainData := generateTestData(200, 3)
	f := New(WithTrees(20), WithSeed(42))
	require.NoError(t, f.Fit(trainData))

	score, err := f.PredictOne([]float64{0.5, 0.5, 0.5})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
}

func TestSingleSampleScoresNeutral(t *testing.T) {
	f := New(WithTrees(5))
	require.NoError(t, f.Fit([][]float64{{4, 2}}))

	score, err := f.PredictOne([]float64{4, 2})
	require.NoError(t, err)
	assert.Equal(t, 0.5, score)
}

func TestContaminationThreshold(t *testing.T) {
	data := generateTestData(400, 3)
	data = append(data, []float64{40, 40, 40}, []float64{-40, 40, -40})

	f := New(WithContamination(0.01), WithSeed(42))
	require.NoError(t, f.Fit(data))

	scores, err := f.Predict(data)
	require.NoError(t, err)

	outliers := 0
	for _, s := range scores {
		if f.Threshold()-s < 0 {
			outliers++
		}
	}
	// At most ceil(1% of 402) strictly exceed the 99th percentile.
	assert.LessOrEqual(t, outliers, 5)
	assert.Greater(t, scores[400], f.Threshold())
	assert.Greater(t, scores[401], f.Threshold())
}

func TestDeterministicWithSeed(t *testing.T) {
	data := generateTestData(300, 4)

	a := New(WithTrees(30), WithSeed(7))
	b := New(WithTrees(30), WithSeed(7))
	require.NoError(t, a.Fit(data))
	require.NoError(t, b.Fit(data))

	sa, err := a.Predict(data)
	require.NoError(t, err)
	sb, err := b.Predict(data)
	require.NoError(t, err)
	assert.Equal(t, sa, sb)
}

func TestSaveLoad(t *testing.T) {
	trainData := generateTestData(200, 4)
	original := New(WithTrees(30), WithContamination(0.15), WithSeed(42))
	require.NoError(t, original.Fit(trainData))

	testData := generateTestData(50, 4)
	originalScores, err := original.Predict(testData)
	require.NoError(t, err)

	data, err := original.Save()
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	loaded := New()
	require.NoError(t, loaded.Load(data))

	loadedScores, err := loaded.Predict(testData)
	require.NoError(t, err)

	assert.Equal(t, originalScores, loadedScores)
	assert.Equal(t, original.Threshold(), loaded.Threshold())
}

func TestSaveUntrained(t *testing.T) {
	_, err := New().Save()
	assert.True(t, errors.Is(err, detectors.ErrNotTrained))
}

func TestThreshold(t *testing.T) {
	f := New()
	f.trained = true

	assert.Equal(t, 0.5, f.Threshold())

	f.SetThreshold(0.7)
	assert.Equal(t, 0.7, f.Threshold())
}

func TestPercentile(t *testing.T) {
	data := []float64{4, 1, 3, 2, 5}

	assert.Equal(t, 1.0, percentile(data, 0))
	assert.Equal(t, 3.0, percentile(data, 50))
	assert.Equal(t, 5.0, percentile(data, 100))
	assert.InDelta(t, 4.96, percentile(data, 99), 1e-9)
	assert.Equal(t, []float64{4, 1, 3, 2, 5}, data)
}

func BenchmarkFit(b *testing.B) {
	data := generateTestData(10000, 10)
	f := New(WithTrees(100), WithSampleSize(256))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f.Fit(data)
	}
}

func BenchmarkPredict(b *testing.B) {
	trainData := generateTestData(5000, 10)
	testData := generateTestData(1000, 10)

	f := New(WithTrees(100), WithSampleSize(256))
	f.Fit(trainData)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f.Predict(testData)
	}
}

func generateTestData(n, features int) [][]float64 {
	rng := rand.New(rand.NewSource(1))
	data := make([][]float64, n)
	for i := 0; i < n; i++ {
		data[i] = make([]float64, features)
		for j := 0; j < features; j++ {
			data[i][j] = rng.NormFloat64()
		}
	}
	return data
}
