package forest

import (
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/zigsense/pkg/detectors"
)

func TestNewRandomForest(t *testing.T) {
	tests := []struct {
		name         string
		opts         []Option
		wantTrees    int
		wantDepth    int
		wantBalanced bool
	}{
		{
			name:      "default configuration",
			wantTrees: 100,
		},
		{
			name:         "options",
			opts:         []Option{WithTrees(10), WithMaxDepth(3), WithBalancedClassWeight(true)},
			wantTrees:    10,
			wantDepth:    3,
			wantBalanced: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(tt.opts...)
			assert.Equal(t, tt.wantTrees, f.nTrees)
			assert.Equal(t, tt.wantDepth, f.maxDepth)
			assert.Equal(t, tt.wantBalanced, f.balanced)
		})
	}
}

func TestFitValidation(t *testing.T) {
	tests := []struct {
		name    string
		X       [][]float64
		y       []int
		wantErr error
	}{
		{name: "empty", X: nil, y: nil, wantErr: detectors.ErrEmptyData},
		{name: "ragged", X: [][]float64{{1, 2}, {3}}, y: []int{0, 1}, wantErr: detectors.ErrDimension},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New().Fit(tt.X, tt.y)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}

	assert.Error(t, New().Fit([][]float64{{1}}, []int{0, 1}))
}

func TestFitPredictSeparable(t *testing.T) {
	X, y := separable(200, 1)

	f := New(WithTrees(25), WithMaxDepth(10), WithSeed(42))
	require.NoError(t, f.Fit(X, y))
	assert.Equal(t, []int{0, 1}, f.Classes())

	testX, testY := separable(50, 2)
	pred, err := f.Predict(testX)
	require.NoError(t, err)

	correct := 0
	for i := range pred {
		if pred[i] == testY[i] {
			correct++
		}
	}
	assert.GreaterOrEqual(t, correct, 48)
}

func TestPredictProbaSumsToOne(t *testing.T) {
	X, y := separable(100, 3)
	f := New(WithTrees(10), WithSeed(1))
	require.NoError(t, f.Fit(X, y))

	proba, err := f.PredictProba(X[:10])
	require.NoError(t, err)
	for _, p := range proba {
		require.Len(t, p, 2)
		assert.InDelta(t, 1.0, p[0]+p[1], 1e-9)
	}
}

func TestSingleClass(t *testing.T) {
	f := New(WithTrees(5))
	require.NoError(t, f.Fit([][]float64{{1}, {2}, {3}}, []int{1, 1, 1}))

	pred, err := f.Predict([][]float64{{10}})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, pred)
}

func TestBalancedWeightsFindMinority(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	var X [][]float64
	var y []int
	for i := 0; i < 300; i++ {
		X = append(X, []float64{rng.Float64() * 10})
		y = append(y, 0)
	}
	for i := 0; i < 6; i++ {
		X = append(X, []float64{20 + rng.Float64()})
		y = append(y, 1)
	}

	f := New(WithTrees(20), WithBalancedClassWeight(true), WithSeed(42))
	require.NoError(t, f.Fit(X, y))

	pred, err := f.Predict([][]float64{{20.5}, {5}})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, pred)
}

func TestPredictErrors(t *testing.T) {
	_, err := New().Predict([][]float64{{1}})
	assert.True(t, errors.Is(err, detectors.ErrNotTrained))

	f := New(WithTrees(3))
	require.NoError(t, f.Fit([][]float64{{1, 2}, {3, 4}}, []int{0, 1}))
	_, err = f.Predict([][]float64{{1}})
	assert.True(t, errors.Is(err, detectors.ErrDimension))
}

func TestSaveLoad(t *testing.T) {
	X, y := separable(120, 4)
	original := New(WithTrees(15), WithMaxDepth(5), WithBalancedClassWeight(true), WithSeed(42))
	require.NoError(t, original.Fit(X, y))

	want, err := original.PredictProba(X)
	require.NoError(t, err)

	data, err := original.Save()
	require.NoError(t, err)

	loaded := New()
	require.NoError(t, loaded.Load(data))

	got, err := loaded.PredictProba(X)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, original.Classes(), loaded.Classes())

	_, err = New().Save()
	assert.True(t, errors.Is(err, detectors.ErrNotTrained))
	assert.Error(t, New().Load([]byte("not gob")))
}

func BenchmarkFit(b *testing.B) {
	X, y := separable(2000, 1)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		New(WithTrees(100), WithMaxDepth(10)).Fit(X, y)
	}
}

// separable returns two Gaussian blobs in five dimensions centered at 0 and 6.
func separable(n int, seed int64) ([][]float64, []int) {
	rng := rand.New(rand.NewSource(seed))
	X := make([][]float64, n)
	y := make([]int, n)
	for i := range X {
		label := i % 2
		center := float64(label) * 6
		X[i] = make([]float64, 5)
		for j := range X[i] {
			X[i][j] = center + rng.NormFloat64()
		}
		y[i] = label
	}
	return X, y
}
