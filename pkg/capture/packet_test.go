package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInt(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want NullInt
	}{
		{name: "decimal", in: "4660", want: Int(4660)},
		{name: "hex", in: "0x1234", want: Int(0x1234)},
		{name: "upper hex", in: "0XAB12", want: Int(0xab12)},
		{name: "surrounding space", in: "  0x0001 ", want: Int(1)},
		{name: "zero", in: "0", want: Int(0)},
		{name: "integral float", in: "4660.0", want: Int(4660)},
		{name: "empty", in: "", want: NullInt{}},
		{name: "garbage", in: "door", want: NullInt{}},
		{name: "fraction", in: "1.5", want: NullInt{}},
		{name: "nan", in: "nan", want: NullInt{}},
		{name: "leading zero", in: "0012", want: NullInt{}},
		{name: "bad hex", in: "0xZZ", want: NullInt{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseInt(tt.in))
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	ts, ok := ParseTimestamp("1700000000.125")
	require.True(t, ok)
	assert.InDelta(t, 1700000000.125, ts, 1e-6)

	_, ok = ParseTimestamp("yesterday")
	assert.False(t, ok)

	_, ok = ParseTimestamp("NaN")
	assert.False(t, ok)
}

func TestFormatAddr(t *testing.T) {
	assert.Equal(t, "0x1234", FormatAddr(0x1234))
	assert.Equal(t, "0x000a", FormatAddr(10))
}

func TestTableSortIsStable(t *testing.T) {
	table := NewTable([]Packet{
		{Timestamp: 3, Src: Int(1)},
		{Timestamp: 1, Src: Int(2)},
		{Timestamp: 3, Src: Int(3)},
		{Timestamp: 2, Src: Int(4)},
	})

	var srcs []int64
	for _, p := range table.Packets {
		srcs = append(srcs, p.Src.Int64)
	}
	assert.Equal(t, []int64{2, 4, 1, 3}, srcs)

	start, end, ok := table.Bounds()
	require.True(t, ok)
	assert.Equal(t, 1.0, start)
	assert.Equal(t, 3.0, end)
}

func TestTableBetween(t *testing.T) {
	table := NewTable([]Packet{{Timestamp: 0}, {Timestamp: 1}, {Timestamp: 1.5}, {Timestamp: 2}, {Timestamp: 5}})

	assert.Len(t, table.Between(1, 2), 2)
	assert.Len(t, table.Between(0, 10), 5)
	assert.Empty(t, table.Between(3, 4))
	assert.Empty(t, table.Between(6, 7))
}

func TestFrameTypesAndGrouping(t *testing.T) {
	table := NewTable([]Packet{
		{Timestamp: 0, FrameType: Int(FrameData), Src: Int(7)},
		{Timestamp: 1, FrameType: Int(FrameBeacon), Src: Int(7)},
		{Timestamp: 2, FrameType: Int(FrameData), Src: Int(8)},
		{Timestamp: 3, FrameType: Int(FrameData)},
		{Timestamp: 4, FrameType: NullInt{}, Src: Int(8)},
		{Timestamp: 5, FrameType: Int(FrameCommand), Src: Int(8)},
	})

	assert.Equal(t, []int64{FrameBeacon, FrameData, FrameCommand}, table.FrameTypes())

	groups := table.DataBySource()
	assert.Len(t, groups, 2)
	assert.Len(t, groups[7], 1)
	assert.Len(t, groups[8], 1)
}

func TestIngestStatsCount(t *testing.T) {
	var s IngestStats
	s.Count(Packet{FrameType: Int(1), Src: Int(2)})
	s.Count(Packet{FrameType: Int(1)})

	assert.Equal(t, 2, s.Rows)
	assert.Equal(t, 1, s.Missing[ColSrc])
	assert.Equal(t, 2, s.Missing[ColDst])
	assert.Zero(t, s.Missing[ColFrameType])
}
