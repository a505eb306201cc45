package anomaly

import (
	"bytes"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/zigsense/pkg/detectors"
	"github.com/hed1ad/zigsense/pkg/detectors/iforest"
	"github.com/hed1ad/zigsense/pkg/frame"
)

// traffic returns n quiet windows plus two floods at windows 50 and 120.
func traffic(n int) *frame.Frame {
	rng := rand.New(rand.NewSource(9))
	f := frame.New(frame.WindowColumn, "pkt_count", "pkt_len_mean", "distinct_src")
	for i := 0; i < n; i++ {
		row := []float64{float64(i), 5 + rng.Float64(), 45 + rng.Float64(), 3}
		switch i {
		case 50:
			row[1], row[3] = 400, 40
		case 120:
			row[1], row[3] = 250, 25
		}
		f.Rows = append(f.Rows, row)
	}
	return f
}

func TestLabel(t *testing.T) {
	features := traffic(200)
	lb := NewLabeler(iforest.FromConfig(detectors.DefaultConfig()))

	res, err := lb.Label(features)
	require.NoError(t, err)
	require.Len(t, res.Scores, 200)
	assert.Equal(t, []string{"pkt_count", "pkt_len_mean", "distinct_src"}, res.Columns)

	assert.True(t, res.Scores[50].Outlier)
	assert.True(t, res.Scores[120].Outlier)
	assert.LessOrEqual(t, res.Outliers(), 2)

	for _, s := range res.Scores {
		assert.Equal(t, s.Decision < 0, s.Outlier)
		assert.InDelta(t, res.Threshold-s.Score, s.Decision, 1e-12)
	}

	labels := res.Labels()
	assert.Equal(t, []string{frame.WindowColumn, frame.LabelColumn}, labels.Columns)
	assert.Equal(t, []float64{50, 1}, labels.Rows[50])
	assert.Equal(t, []float64{0, 0}, labels.Rows[0])

	top := res.Top(20)
	require.Len(t, top, 2)
	assert.ElementsMatch(t, []int{50, 120}, []int{top[0].Window, top[1].Window})
	assert.LessOrEqual(t, top[0].Decision, top[1].Decision)
}

func TestLabelEmpty(t *testing.T) {
	lb := NewLabeler(iforest.New())
	_, err := lb.Label(frame.New(frame.WindowColumn, "pkt_count"))
	assert.True(t, errors.Is(err, detectors.ErrEmptyData))
}

func TestTop(t *testing.T) {
	res := &Result{Scores: []WindowScore{
		{Window: 0, Decision: 0.1},
		{Window: 1, Decision: -0.05, Outlier: true},
		{Window: 2, Decision: -0.2, Outlier: true},
		{Window: 3, Decision: -0.1, Outlier: true},
	}}

	var got []int
	for _, s := range res.Top(2) {
		got = append(got, s.Window)
	}
	assert.Equal(t, []int{2, 3}, got)
	assert.Len(t, res.Top(10), 3)
}

func TestPrintTopAndPlot(t *testing.T) {
	features := traffic(200)
	res, err := NewLabeler(iforest.New(iforest.WithContamination(0.01))).Label(features)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, PrintTop(&buf, res, features, 20))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1+len(res.Top(20)))
	assert.Contains(t, lines[0], "anomaly_score")
	assert.Contains(t, lines[0], "is_anomaly")

	filename := filepath.Join(t.TempDir(), "scores.png")
	require.NoError(t, Plot(res, filename))
	info, err := os.Stat(filename)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
}
