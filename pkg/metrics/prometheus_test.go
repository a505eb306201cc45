package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/zigsense/pkg/capture"
)

func TestObserveIngest(t *testing.T) {
	r := NewRecorder()
	r.ObserveIngest(capture.IngestStats{
		Rows:    120,
		Dropped: 3,
		Missing: map[string]int{capture.ColDst: 7},
	})

	assert.Equal(t, 120.0, testutil.ToFloat64(r.PacketsIngested))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.RowsDropped))
	assert.Equal(t, 7.0, testutil.ToFloat64(r.MissingFields.WithLabelValues(capture.ColDst)))
}

func TestTime(t *testing.T) {
	r := NewRecorder()
	done := r.Time("extract")
	done()

	assert.Equal(t, 1, testutil.CollectAndCount(r.StageDuration, "zigsense_stage_duration_seconds"))
}

func TestWriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.Windows.WithLabelValues("features").Add(42)
	r.Candidates.WithLabelValues("door").Set(2)
	r.Anomalies.Inc()

	filename := filepath.Join(t.TempDir(), "zigsense.prom")
	require.NoError(t, r.WriteTextfile(filename))

	data, err := os.ReadFile(filename)
	require.NoError(t, err)
	assert.Contains(t, string(data), `zigsense_windows_total{job="features"} 42`)
	assert.Contains(t, string(data), `zigsense_role_candidates{role="door"} 2`)
	assert.Contains(t, string(data), "zigsense_anomalous_windows_total 1")

	count, err := testutil.GatherAndCount(r.Gatherer())
	require.NoError(t, err)
	assert.Greater(t, count, 0)
}
