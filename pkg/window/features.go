package window

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"github.com/hed1ad/zigsense/pkg/capture"
	"github.com/hed1ad/zigsense/pkg/frame"
)

// Feature column names.
const (
	ColPktCount         = "pkt_count"
	ColPktLenMean       = "pkt_len_mean"
	ColPktLenStd        = "pkt_len_std"
	ColDistinctSrc      = "distinct_src"
	ColDistinctDst      = "distinct_dst"
	ColSeqGapMean       = "seq_gap_mean"
	ColInterarrivalMean = "interarrival_mean"
	ColInterarrivalStd  = "interarrival_std"
)

// FrameTypeColumn names the per-window count column for a frame type.
func FrameTypeColumn(ft int64) string {
	return fmt.Sprintf("ftype_%d_count", ft)
}

// Columns returns the feature table header for the given frame types.
func Columns(frameTypes []int64) []string {
	cols := []string{frame.WindowColumn, ColPktCount, ColPktLenMean, ColPktLenStd, ColDistinctSrc, ColDistinctDst}
	for _, ft := range frameTypes {
		cols = append(cols, FrameTypeColumn(ft))
	}
	return append(cols, ColSeqGapMean, ColInterarrivalMean, ColInterarrivalStd)
}

// Extract computes one feature row per window. The table must be sorted.
func Extract(t *capture.Table, cfg Config) (*frame.Frame, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	frameTypes := t.FrameTypes()
	f := frame.New(Columns(frameTypes)...)
	start, end, ok := t.Bounds()
	if !ok {
		return f, nil
	}

	switch cfg.Mode {
	case ModeSliding:
		n := int(math.Ceil((end - start + cfg.Step) / cfg.Step))
		f.Rows = make([][]float64, 0, n)
		for i := 0; i < n; i++ {
			current := start + float64(i)*cfg.Step
			packets := t.Between(current, current+cfg.Size)
			f.Rows = append(f.Rows, statistics(i, packets, frameTypes))
		}
	case ModeFixed:
		width := int64(cfg.Size)
		first := floorDiv(int64(math.Trunc(start)), width)
		lo := 0
		for lo < len(t.Packets) {
			key := floorDiv(int64(math.Trunc(t.Packets[lo].Timestamp)), width)
			hi := lo + 1
			for hi < len(t.Packets) && floorDiv(int64(math.Trunc(t.Packets[hi].Timestamp)), width) == key {
				hi++
			}
			f.Rows = append(f.Rows, statistics(int(key-first), t.Packets[lo:hi], frameTypes))
			lo = hi
		}
	}

	f.FillNaN(0)
	return f, nil
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// statistics computes one row. Statistics that are undefined for the
// window (no lengths, a single sample) come out as zero.
func statistics(id int, packets []capture.Packet, frameTypes []int64) []float64 {
	row := make([]float64, 0, 9+len(frameTypes))
	row = append(row, float64(id), float64(len(packets)))

	var lengths stats.Float64Data
	srcs := make(map[int64]struct{})
	dsts := make(map[int64]struct{})
	typeCounts := make(map[int64]int, len(frameTypes))
	for _, p := range packets {
		if p.Length.Valid {
			lengths = append(lengths, float64(p.Length.Int64))
		}
		if p.Src.Valid {
			srcs[p.Src.Int64] = struct{}{}
		}
		if p.Dst.Valid {
			dsts[p.Dst.Int64] = struct{}{}
		}
		if p.FrameType.Valid {
			typeCounts[p.FrameType.Int64]++
		}
	}

	row = append(row, mean(lengths))
	if len(packets) > 1 {
		row = append(row, sampleStd(lengths))
	} else {
		row = append(row, 0)
	}
	row = append(row, float64(len(srcs)), float64(len(dsts)))
	for _, ft := range frameTypes {
		row = append(row, float64(typeCounts[ft]))
	}

	// Differences are taken between adjacent rows; a pair with a missing
	// sequence number contributes nothing.
	var seqGaps, interarrival stats.Float64Data
	for i := 1; i < len(packets); i++ {
		prev, cur := packets[i-1], packets[i]
		if prev.Seq.Valid && cur.Seq.Valid {
			seqGaps = append(seqGaps, math.Abs(float64(cur.Seq.Int64-prev.Seq.Int64)))
		}
		interarrival = append(interarrival, cur.Timestamp-prev.Timestamp)
	}
	row = append(row, mean(seqGaps), mean(interarrival), sampleStd(interarrival))

	for i, v := range row {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			row[i] = 0
		}
	}
	return row
}

func mean(data stats.Float64Data) float64 {
	if len(data) == 0 {
		return 0
	}
	m, err := stats.Mean(data)
	if err != nil {
		return 0
	}
	return m
}

func sampleStd(data stats.Float64Data) float64 {
	if len(data) < 2 {
		return 0
	}
	s, err := stats.StandardDeviationSample(data)
	if err != nil {
		return 0
	}
	return s
}
