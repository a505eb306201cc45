package frame

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInnerJoin(t *testing.T) {
	features := New(WindowColumn, "pkt_count")
	require.NoError(t, features.Append([]float64{0, 10}))
	require.NoError(t, features.Append([]float64{1, 20}))
	require.NoError(t, features.Append([]float64{2, 30}))

	labels := New(WindowColumn, LabelColumn)
	require.NoError(t, labels.Append([]float64{1, 1}))
	require.NoError(t, labels.Append([]float64{2, 0}))
	require.NoError(t, labels.Append([]float64{7, 1}))

	joined, err := InnerJoin(features, labels, WindowColumn)
	require.NoError(t, err)

	assert.Equal(t, []string{WindowColumn, "pkt_count", LabelColumn}, joined.Columns)
	assert.Equal(t, [][]float64{{1, 20, 1}, {2, 30, 0}}, joined.Rows)
}

func TestInnerJoinMissingKey(t *testing.T) {
	_, err := InnerJoin(New("a"), New(WindowColumn), WindowColumn)
	assert.True(t, errors.Is(err, ErrColumnNotFound))
}

func TestMatrixSelectsInOrder(t *testing.T) {
	f := New("a", "b", "c")
	require.NoError(t, f.Append([]float64{1, 2, 3}))

	X, err := f.Matrix([]string{"c", "a"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{3, 1}}, X)

	_, err = f.Matrix([]string{"z"})
	assert.True(t, errors.Is(err, ErrColumnNotFound))
}

func TestAppendRejectsWrongWidth(t *testing.T) {
	assert.Error(t, New("a", "b").Append([]float64{1}))
}

func TestHeadWithoutAndFill(t *testing.T) {
	f := New(WindowColumn, "x")
	f.Rows = [][]float64{{0, math.NaN()}, {1, math.Inf(1)}, {2, 3}}

	f.FillNaN(0)
	assert.Equal(t, [][]float64{{0, 0}, {1, 0}, {2, 3}}, f.Rows)
	assert.Equal(t, 2, f.Head(2).Len())
	assert.Equal(t, 3, f.Head(99).Len())
	assert.Equal(t, []string{"x"}, f.Without(WindowColumn))
}
