package csv

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/zigsense/pkg/capture"
	"github.com/hed1ad/zigsense/pkg/frame"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	filename := filepath.Join(t.TempDir(), "capture.csv")
	require.NoError(t, os.WriteFile(filename, []byte(content), 0o644))
	return filename
}

func TestReadCapture(t *testing.T) {
	filename := writeFile(t, "\ufeffframe.time_epoch,wpan.frame_type,wpan.src16,wpan.dst16,wpan.seq_no,frame.len\n"+
		"1700000002.5,1,0xab12,0x0000,17,45\n"+
		"1700000001.0,0,0x0000,,3,30\n"+
		"not-a-time,1,0x4f01,0x0000,1,50\n"+
		"1700000003.0,1,garbage,0x0000,,\n")

	r, err := NewReader(filename)
	require.NoError(t, err)
	defer r.Close()

	table, err := r.Read()
	require.NoError(t, err)
	require.Equal(t, 3, table.Len())

	first := table.Packets[0]
	assert.Equal(t, 1700000001.0, first.Timestamp)
	assert.Equal(t, capture.Int(0), first.FrameType)
	assert.False(t, first.Dst.Valid)

	second := table.Packets[1]
	assert.Equal(t, capture.Int(0xab12), second.Src)
	assert.Equal(t, capture.Int(17), second.Seq)
	assert.Equal(t, capture.Int(45), second.Length)

	third := table.Packets[2]
	assert.False(t, third.Src.Valid)
	assert.False(t, third.Seq.Valid)

	stats := r.Stats()
	assert.Equal(t, 3, stats.Rows)
	assert.Equal(t, 1, stats.Dropped)
	assert.Equal(t, 1, stats.Missing[capture.ColSrc])
	assert.Equal(t, 1, stats.Missing[capture.ColDst])
}

func TestReadCaptureAliasesAndOptionalColumns(t *testing.T) {
	filename := writeFile(t, "Timestamp,frame_type,src\n10,1,4660\n11,1,0x1234\n")

	r, err := NewReader(filename)
	require.NoError(t, err)
	defer r.Close()

	table, err := r.Read()
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())
	for _, p := range table.Packets {
		assert.Equal(t, capture.Int(0x1234), p.Src)
		assert.False(t, p.Dst.Valid)
		assert.False(t, p.Length.Valid)
	}
}

func TestNewReaderErrors(t *testing.T) {
	tests := []struct {
		name    string
		path    func(t *testing.T) string
		wantErr error
	}{
		{
			name:    "missing file",
			path:    func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.csv") },
			wantErr: capture.ErrInputNotFound,
		},
		{
			name:    "missing source column",
			path:    func(t *testing.T) string { return writeFile(t, "frame.time_epoch,wpan.frame_type\n1,1\n") },
			wantErr: capture.ErrMissingColumn,
		},
		{
			name:    "empty file",
			path:    func(t *testing.T) string { return writeFile(t, "") },
			wantErr: capture.ErrMissingColumn,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReader(tt.path(t))
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestFrameFiles(t *testing.T) {
	f := frame.New(frame.WindowColumn, "pkt_len_mean")
	require.NoError(t, f.Append([]float64{0, 42.5}))
	require.NoError(t, f.Append([]float64{1, 0}))

	var buf bytes.Buffer
	require.NoError(t, EncodeFrame(&buf, f))
	assert.Equal(t, "time_bin,pkt_len_mean\n0,42.5\n1,0\n", buf.String())

	filename := filepath.Join(t.TempDir(), "nested", "features.csv")
	require.NoError(t, WriteFrame(filename, f))

	got, err := ReadFrame(filename)
	require.NoError(t, err)
	assert.Equal(t, f.Columns, got.Columns)
	assert.Equal(t, f.Rows, got.Rows)
}

func TestDecodeFrameToleratesBadCells(t *testing.T) {
	f, err := DecodeFrame(bytes.NewBufferString("time_bin,label\n0,1\n1,\n"))
	require.NoError(t, err)
	require.Equal(t, 2, f.Len())
	assert.True(t, math.IsNaN(f.Rows[1][1]))

	_, err = ReadFrame(filepath.Join(t.TempDir(), "missing.csv"))
	assert.True(t, errors.Is(err, capture.ErrInputNotFound))

	_, err = DecodeFrame(bytes.NewBufferString(""))
	assert.Error(t, err)
}
