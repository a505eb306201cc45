// Package io provides input utilities for capture ingestion.
package io

import (
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/hed1ad/zigsense/pkg/capture"
	"github.com/hed1ad/zigsense/pkg/io/csv"
	"github.com/hed1ad/zigsense/pkg/io/pcap"
)

// Reader is the interface for reading a capture from a file.
type Reader interface {
	// Read returns the complete table, sorted by timestamp.
	Read() (*capture.Table, error)

	// Stats reports rows read, rows dropped and missing fields.
	Stats() capture.IngestStats

	// Close releases resources.
	Close() error
}

// Open picks a reader from the file extension: .pcap and .pcapng are
// decoded directly, anything else is treated as a tshark CSV export.
func Open(filename string, log logrus.FieldLogger) (Reader, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pcap", ".pcapng", ".cap":
		r, err := pcap.NewFileReader(filename, pcap.WithLogger(log))
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		r, err := csv.NewReader(filename, csv.WithLogger(log))
		if err != nil {
			return nil, err
		}
		return r, nil
	}
}

// Load opens, reads and closes a capture in one call.
func Load(filename string, log logrus.FieldLogger) (*capture.Table, capture.IngestStats, error) {
	r, err := Open(filename, log)
	if err != nil {
		return nil, capture.IngestStats{}, err
	}
	defer r.Close()

	table, err := r.Read()
	if err != nil {
		return nil, r.Stats(), err
	}
	return table, r.Stats(), nil
}
