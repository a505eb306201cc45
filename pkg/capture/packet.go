// Package capture holds the normalized packet table every analysis job reads.
package capture

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Column names as exported by tshark.
const (
	ColTimestamp = "frame.time_epoch"
	ColFrameType = "wpan.frame_type"
	ColSrc       = "wpan.src16"
	ColDst       = "wpan.dst16"
	ColSeq       = "wpan.seq_no"
	ColLength    = "frame.len"
)

// IEEE 802.15.4 frame type codes.
const (
	FrameBeacon  int64 = 0
	FrameData    int64 = 1
	FrameAck     int64 = 2
	FrameCommand int64 = 3
)

var (
	// ErrInputNotFound is returned when the capture file does not exist.
	ErrInputNotFound = errors.New("input not found")
	// ErrMissingColumn is returned when a mandatory column is absent.
	ErrMissingColumn = errors.New("missing required column")
)

// NullInt is an integer field that may be missing.
type NullInt struct {
	Int64 int64
	Valid bool
}

// Int returns a present NullInt.
func Int(v int64) NullInt {
	return NullInt{Int64: v, Valid: true}
}

// Equal reports whether n holds v.
func (n NullInt) Equal(v int64) bool {
	return n.Valid && n.Int64 == v
}

// ParseInt parses decimal or 0x/0o/0b prefixed integers. Empty or malformed
// input yields an invalid NullInt instead of an error. Integral float text
// such as "4660.0" is accepted since spreadsheet round trips produce it.
func ParseInt(s string) NullInt {
	s = strings.TrimSpace(s)
	if s == "" || leadingZeroDecimal(s) {
		return NullInt{}
	}
	if v, err := strconv.ParseInt(s, 0, 64); err == nil {
		return Int(v)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return NullInt{}
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return NullInt{}
	}
	return Int(int64(f))
}

// leadingZeroDecimal rejects "0123": strconv reads it as octal, tshark never
// emits it, and treating it as either base would be a guess.
func leadingZeroDecimal(s string) bool {
	s = strings.TrimLeft(s, "+-")
	if len(s) < 2 || s[0] != '0' {
		return false
	}
	allZero := true
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
		if c != '0' {
			allZero = false
		}
	}
	return !allZero
}

// ParseTimestamp parses an epoch timestamp in seconds.
func ParseTimestamp(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// FormatAddr renders a 16-bit short address the way sniffers print it.
func FormatAddr(addr int64) string {
	return fmt.Sprintf("0x%04x", addr)
}

// Packet is one captured frame.
type Packet struct {
	Timestamp float64
	FrameType NullInt
	Src       NullInt
	Dst       NullInt
	Seq       NullInt
	Length    NullInt
}

// IsData reports whether the packet is a data frame.
func (p Packet) IsData() bool {
	return p.FrameType.Equal(FrameData)
}

// IngestStats summarizes what a reader had to tolerate.
type IngestStats struct {
	Rows    int
	Dropped int
	Missing map[string]int
}

func (s *IngestStats) miss(col string) {
	if s.Missing == nil {
		s.Missing = make(map[string]int)
	}
	s.Missing[col]++
}

// Count records p against s.
func (s *IngestStats) Count(p Packet) {
	s.Rows++
	if !p.FrameType.Valid {
		s.miss(ColFrameType)
	}
	if !p.Src.Valid {
		s.miss(ColSrc)
	}
	if !p.Dst.Valid {
		s.miss(ColDst)
	}
	if !p.Seq.Valid {
		s.miss(ColSeq)
	}
	if !p.Length.Valid {
		s.miss(ColLength)
	}
}

// Table is the working set of packets, ordered by timestamp after Sort.
type Table struct {
	Packets []Packet
}

// NewTable builds a sorted table from packets.
func NewTable(packets []Packet) *Table {
	t := &Table{Packets: packets}
	t.Sort()
	return t
}

// Len returns the number of packets.
func (t *Table) Len() int {
	return len(t.Packets)
}

// Sort orders packets by timestamp, keeping input order for ties.
func (t *Table) Sort() {
	sort.SliceStable(t.Packets, func(i, j int) bool {
		return t.Packets[i].Timestamp < t.Packets[j].Timestamp
	})
}

// Bounds returns the first and last timestamp. ok is false for an empty table.
func (t *Table) Bounds() (start, end float64, ok bool) {
	if len(t.Packets) == 0 {
		return 0, 0, false
	}
	return t.Packets[0].Timestamp, t.Packets[len(t.Packets)-1].Timestamp, true
}

// Between returns the packets with from <= ts < to. The table must be sorted.
func (t *Table) Between(from, to float64) []Packet {
	lo := sort.Search(len(t.Packets), func(i int) bool {
		return t.Packets[i].Timestamp >= from
	})
	hi := sort.Search(len(t.Packets), func(i int) bool {
		return t.Packets[i].Timestamp >= to
	})
	if hi < lo {
		hi = lo
	}
	return t.Packets[lo:hi]
}

// FrameTypes returns the distinct frame type codes present, ascending.
func (t *Table) FrameTypes() []int64 {
	seen := make(map[int64]struct{})
	for _, p := range t.Packets {
		if p.FrameType.Valid {
			seen[p.FrameType.Int64] = struct{}{}
		}
	}
	types := make([]int64, 0, len(seen))
	for ft := range seen {
		types = append(types, ft)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// DataBySource groups data frames by source address, keeping table order.
// Packets without a source are skipped.
func (t *Table) DataBySource() map[int64][]Packet {
	groups := make(map[int64][]Packet)
	for _, p := range t.Packets {
		if !p.IsData() || !p.Src.Valid {
			continue
		}
		groups[p.Src.Int64] = append(groups[p.Src.Int64], p)
	}
	return groups
}
