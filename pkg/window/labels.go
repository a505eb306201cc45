package window

import (
	"github.com/pkg/errors"

	"github.com/hed1ad/zigsense/pkg/capture"
	"github.com/hed1ad/zigsense/pkg/frame"
)

// SensorLabels marks every step-wide bin in which addr sent a data frame.
// Bins are non-overlapping and counted from the first packet of the table.
// The table must be sorted.
func SensorLabels(t *capture.Table, addr int64, step float64) []int {
	start, end, ok := t.Bounds()
	if !ok {
		return nil
	}

	labels := make([]int, NumBins(end-start, step))
	for _, p := range t.Packets {
		if !p.IsData() || !p.Src.Equal(addr) {
			continue
		}
		if bin := BinOf(p.Timestamp, start, step); bin >= 0 && bin < len(labels) {
			labels[bin] = 1
		}
	}
	return labels
}

// LabelFromSensor builds the time_bin/label table for a known sensor using
// cfg.Step as the bin width.
func LabelFromSensor(t *capture.Table, addr int64, cfg Config) (*frame.Frame, error) {
	if !(cfg.Step > 0) {
		return nil, errors.Wrapf(ErrInvalidConfig, "step must be positive, got %v", cfg.Step)
	}
	return LabelFrame(SensorLabels(t, addr, cfg.Step)), nil
}

// LabelFrame converts a label slice indexed by window id into a table.
func LabelFrame(labels []int) *frame.Frame {
	f := frame.New(frame.WindowColumn, frame.LabelColumn)
	f.Rows = make([][]float64, len(labels))
	for i, l := range labels {
		f.Rows[i] = []float64{float64(i), float64(l)}
	}
	return f
}
