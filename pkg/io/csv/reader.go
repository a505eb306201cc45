// Package csv provides CSV reading for capture exports and window tables.
package csv

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/hed1ad/zigsense/pkg/capture"
)

// aliases maps accepted header spellings to canonical tshark column names.
var aliases = map[string]string{
	"timestamp":  capture.ColTimestamp,
	"time":       capture.ColTimestamp,
	"frame_type": capture.ColFrameType,
	"src":        capture.ColSrc,
	"src16":      capture.ColSrc,
	"dst":        capture.ColDst,
	"dst16":      capture.ColDst,
	"seq":        capture.ColSeq,
	"seq_no":     capture.ColSeq,
	"len":        capture.ColLength,
	"length":     capture.ColLength,
}

var required = []string{capture.ColTimestamp, capture.ColFrameType, capture.ColSrc}

// Reader reads a tshark CSV export into a packet table.
type Reader struct {
	file    *os.File
	reader  *csv.Reader
	headers []string
	columns map[string]int
	log     logrus.FieldLogger
	stats   capture.IngestStats
}

// Option configures a CSV reader.
type Option func(*Reader)

// WithLogger sets the logger used to report tolerated data errors.
func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Reader) {
		r.log = l
	}
}

// NewReader opens filename and validates its header.
func NewReader(filename string, opts ...Option) (*Reader, error) {
	file, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(capture.ErrInputNotFound, "%s", filename)
		}
		return nil, errors.Wrapf(err, "open %s", filename)
	}

	discard := logrus.New()
	discard.SetOutput(io.Discard)

	r := &Reader{
		file:   file,
		reader: csv.NewReader(file),
		log:    discard,
	}
	r.reader.FieldsPerRecord = -1
	r.reader.LazyQuotes = true

	for _, opt := range opts {
		opt(r)
	}

	headers, err := r.reader.Read()
	if err != nil {
		file.Close()
		if err == io.EOF {
			return nil, errors.Wrapf(capture.ErrMissingColumn, "%s: empty file", filename)
		}
		return nil, errors.Wrapf(err, "read header of %s", filename)
	}
	r.headers = headers
	r.columns = mapColumns(headers)

	for _, col := range required {
		if _, ok := r.columns[col]; !ok {
			file.Close()
			return nil, errors.Wrapf(capture.ErrMissingColumn, "%s: %s", filename, col)
		}
	}

	return r, nil
}

func mapColumns(headers []string) map[string]int {
	cols := make(map[string]int, len(headers))
	for i, h := range headers {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if canonical, ok := aliases[name]; ok {
			name = canonical
		}
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	return cols
}

// Headers returns the column headers.
func (r *Reader) Headers() []string {
	return r.headers
}

// Stats returns what the last Read tolerated.
func (r *Reader) Stats() capture.IngestStats {
	return r.stats
}

// Read parses every row and returns the table sorted by timestamp.
func (r *Reader) Read() (*capture.Table, error) {
	var packets []capture.Packet
	line := 1

	for {
		record, err := r.reader.Read()
		line++
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}

		ts, ok := capture.ParseTimestamp(r.field(record, capture.ColTimestamp))
		if !ok {
			r.stats.Dropped++
			r.log.WithField("line", line).Debug("dropping row with unparseable timestamp")
			continue
		}

		p := capture.Packet{
			Timestamp: ts,
			FrameType: capture.ParseInt(r.field(record, capture.ColFrameType)),
			Src:       capture.ParseInt(r.field(record, capture.ColSrc)),
			Dst:       capture.ParseInt(r.field(record, capture.ColDst)),
			Seq:       capture.ParseInt(r.field(record, capture.ColSeq)),
			Length:    capture.ParseInt(r.field(record, capture.ColLength)),
		}
		r.stats.Count(p)
		packets = append(packets, p)
	}

	if r.stats.Dropped > 0 {
		r.log.WithField("dropped", r.stats.Dropped).Warn("rows without a usable timestamp were skipped")
	}

	return capture.NewTable(packets), nil
}

// field returns the cell for a canonical column, or "" when the column or
// cell is absent.
func (r *Reader) field(record []string, col string) string {
	idx, ok := r.columns[col]
	if !ok || idx >= len(record) {
		return ""
	}
	return record[idx]
}

// Close releases resources.
func (r *Reader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}
