package io

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/zigsense/pkg/capture"
	"github.com/hed1ad/zigsense/pkg/io/csv"
)

func TestOpenDispatchesOnExtension(t *testing.T) {
	dir := t.TempDir()
	log := logrus.New()

	csvFile := filepath.Join(dir, "capture.txt")
	require.NoError(t, os.WriteFile(csvFile, []byte("timestamp,frame_type,src\n1,1,0x10\n"), 0o644))

	r, err := Open(csvFile, log)
	require.NoError(t, err)
	defer r.Close()
	assert.IsType(t, &csv.Reader{}, r)

	_, err = Open(filepath.Join(dir, "capture.pcapng"), log)
	assert.True(t, errors.Is(err, capture.ErrInputNotFound))

	garbage := filepath.Join(dir, "capture.PCAP")
	require.NoError(t, os.WriteFile(garbage, []byte("frame.time_epoch\n"), 0o644))
	r, err = Open(garbage, log)
	assert.Error(t, err)
	assert.Nil(t, r)
}

func TestLoad(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "zboss.csv")
	require.NoError(t, os.WriteFile(filename, []byte("timestamp,frame_type,src\n2,1,0x10\n1,1,0x11\nbad,1,0x12\n"), 0o644))

	table, stats, err := Load(filename, logrus.New())
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())
	assert.Equal(t, capture.Int(0x11), table.Packets[0].Src)
	assert.Equal(t, 1, stats.Dropped)
}
