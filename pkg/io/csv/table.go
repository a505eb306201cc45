package csv

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"

	"github.com/hed1ad/zigsense/pkg/capture"
	"github.com/hed1ad/zigsense/pkg/frame"
)

// ReadFrame loads a numeric table written by WriteFrame. Cells that do not
// parse as numbers become NaN.
func ReadFrame(filename string) (*frame.Frame, error) {
	file, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(capture.ErrInputNotFound, "%s", filename)
		}
		return nil, errors.Wrapf(err, "open %s", filename)
	}
	defer file.Close()

	return DecodeFrame(file)
}

// DecodeFrame parses a numeric table from r.
func DecodeFrame(r io.Reader) (*frame.Frame, error) {
	reader := csv.NewReader(r)
	headers, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, errors.New("empty table")
		}
		return nil, errors.Wrap(err, "read header")
	}

	f := frame.New(headers...)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "row %d", f.Len()+1)
		}

		row := make([]float64, len(record))
		for i, cell := range record {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				v = math.NaN()
			}
			row[i] = v
		}
		if err := f.Append(row); err != nil {
			return nil, errors.Wrapf(err, "row %d", f.Len()+1)
		}
	}
	return f, nil
}

// WriteFrame writes f to filename, creating parent directories.
func WriteFrame(filename string, f *frame.Frame) error {
	if dir := filepath.Dir(filename); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create %s", dir)
		}
	}

	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "create %s", filename)
	}

	if err := EncodeFrame(file, f); err != nil {
		file.Close()
		return errors.Wrapf(err, "write %s", filename)
	}
	return file.Close()
}

// EncodeFrame writes f as CSV with a header row.
func EncodeFrame(w io.Writer, f *frame.Frame) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(f.Columns); err != nil {
		return err
	}

	record := make([]string, len(f.Columns))
	for _, row := range f.Rows {
		for i, v := range row {
			record[i] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
