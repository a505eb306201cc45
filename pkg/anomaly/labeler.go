// Package anomaly derives binary window labels from an unsupervised
// outlier detector fitted on the window features.
package anomaly

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/hed1ad/zigsense/pkg/detectors"
	"github.com/hed1ad/zigsense/pkg/frame"
)

// WindowScore is the detector verdict for one window.
type WindowScore struct {
	Window int
	// Score is the detector's anomaly score, higher is more anomalous.
	Score float64
	// Decision is threshold minus score: higher is more normal and
	// negative values are outliers.
	Decision float64
	Outlier  bool
}

// Result holds per-window scores in feature-table order.
type Result struct {
	Columns   []string
	Threshold float64
	Scores    []WindowScore
}

// Outliers returns the number of windows flagged as outliers.
func (r *Result) Outliers() int {
	n := 0
	for _, s := range r.Scores {
		if s.Outlier {
			n++
		}
	}
	return n
}

// Labels returns the time_bin/label table.
func (r *Result) Labels() *frame.Frame {
	f := frame.New(frame.WindowColumn, frame.LabelColumn)
	f.Rows = make([][]float64, len(r.Scores))
	for i, s := range r.Scores {
		label := 0.0
		if s.Outlier {
			label = 1
		}
		f.Rows[i] = []float64{float64(s.Window), label}
	}
	return f
}

// Top returns up to n outlier windows, most anomalous first.
func (r *Result) Top(n int) []WindowScore {
	var out []WindowScore
	for _, s := range r.Scores {
		if s.Outlier {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Decision < out[j].Decision })
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Labeler fits a detector on window features and flags outliers.
type Labeler struct {
	detector detectors.Thresholded
	log      logrus.FieldLogger
}

// Option configures a Labeler.
type Option func(*Labeler)

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(lb *Labeler) {
		lb.log = l
	}
}

// NewLabeler creates a Labeler around detector.
func NewLabeler(detector detectors.Thresholded, opts ...Option) *Labeler {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	lb := &Labeler{detector: detector, log: discard}
	for _, opt := range opts {
		opt(lb)
	}
	return lb
}

// Label fits the detector on every feature column except time_bin and
// scores each window.
func (lb *Labeler) Label(features *frame.Frame) (*Result, error) {
	if features.Len() == 0 {
		return nil, errors.Wrap(detectors.ErrEmptyData, "feature table")
	}
	windows, err := features.Column(frame.WindowColumn)
	if err != nil {
		return nil, err
	}

	columns := features.Without(frame.WindowColumn)
	X, err := features.Matrix(columns)
	if err != nil {
		return nil, err
	}

	if err := lb.detector.Fit(X); err != nil {
		return nil, errors.Wrap(err, "fit detector")
	}
	scores, err := lb.detector.Predict(X)
	if err != nil {
		return nil, errors.Wrap(err, "score windows")
	}

	res := &Result{
		Columns:   columns,
		Threshold: lb.detector.Threshold(),
		Scores:    make([]WindowScore, len(scores)),
	}
	for i, score := range scores {
		decision := res.Threshold - score
		res.Scores[i] = WindowScore{
			Window:   int(windows[i]),
			Score:    score,
			Decision: decision,
			Outlier:  decision < 0,
		}
	}

	lb.log.WithFields(logrus.Fields{
		"windows":   len(res.Scores),
		"outliers":  res.Outliers(),
		"threshold": res.Threshold,
	}).Info("scored windows")

	return res, nil
}

// PrintTop writes the most anomalous windows with their feature values.
func PrintTop(w io.Writer, res *Result, features *frame.Frame, n int) error {
	idx := features.Index(frame.WindowColumn)
	if idx < 0 {
		return errors.Wrap(frame.ErrColumnNotFound, frame.WindowColumn)
	}
	rows := make(map[int][]float64, features.Len())
	for _, row := range features.Rows {
		rows[int(row[idx])] = row
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	for _, c := range features.Columns {
		fmt.Fprintf(tw, "%s\t", c)
	}
	fmt.Fprint(tw, "anomaly_score\tis_anomaly\t\n")

	for _, s := range res.Top(n) {
		for _, v := range rows[s.Window] {
			fmt.Fprintf(tw, "%g\t", v)
		}
		fmt.Fprintf(tw, "%.6f\t%t\t\n", s.Decision, s.Outlier)
	}
	return tw.Flush()
}
