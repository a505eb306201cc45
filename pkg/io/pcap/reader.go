// Package pcap reads IEEE 802.15.4 captures (pcap or pcapng) into packet
// tables without going through a CSV export.
package pcap

import (
	"bufio"
	"bytes"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/hed1ad/zigsense/pkg/capture"
)

// Link types carrying raw 802.15.4 frames.
const (
	LinkTypeIEEE802154      layers.LinkType = 195 // with FCS
	LinkTypeIEEE802154NoFCS layers.LinkType = 230
)

var pcapngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}

type linkSource interface {
	gopacket.PacketDataSource
	LinkType() layers.LinkType
}

// Reader reads packets from pcap or pcapng files.
type Reader struct {
	file   *os.File
	source linkSource
	log    logrus.FieldLogger
	stats  capture.IngestStats
}

// Option configures a pcap reader.
type Option func(*Reader)

// WithLogger sets the logger used to report undecodable frames.
func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Reader) {
		r.log = l
	}
}

// NewFileReader opens a capture file. The file format is sniffed from its
// magic number.
func NewFileReader(filename string, opts ...Option) (*Reader, error) {
	file, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(capture.ErrInputNotFound, "%s", filename)
		}
		return nil, errors.Wrapf(err, "open %s", filename)
	}

	discard := logrus.New()
	discard.SetOutput(io.Discard)
	r := &Reader{file: file, log: discard}
	for _, opt := range opts {
		opt(r)
	}

	buffered := bufio.NewReader(file)
	magic, err := buffered.Peek(4)
	if err != nil {
		file.Close()
		return nil, errors.Wrapf(err, "read magic of %s", filename)
	}

	if bytes.Equal(magic, pcapngMagic) {
		r.source, err = pcapgo.NewNgReader(buffered, pcapgo.DefaultNgReaderOptions)
	} else {
		r.source, err = pcapgo.NewReader(buffered)
	}
	if err != nil {
		file.Close()
		return nil, errors.Wrapf(err, "open capture %s", filename)
	}

	switch lt := r.source.LinkType(); lt {
	case LinkTypeIEEE802154, LinkTypeIEEE802154NoFCS:
	default:
		file.Close()
		return nil, errors.Errorf("%s: unsupported link type %d, want IEEE 802.15.4", filename, lt)
	}

	return r, nil
}

// Stats returns what the last Read tolerated.
func (r *Reader) Stats() capture.IngestStats {
	return r.stats
}

// Read decodes every frame and returns the table sorted by timestamp.
func (r *Reader) Read() (*capture.Table, error) {
	if r.source == nil {
		return nil, errors.New("reader not initialized")
	}

	var src gopacket.PacketDataSource = r.source
	if r.source.LinkType() == LinkTypeIEEE802154 {
		src = fcsStripper{r.source}
	}
	packetSource := gopacket.NewPacketSource(src, LayerTypeDot15d4)
	packetSource.DecodeOptions = gopacket.DecodeOptions{Lazy: true, NoCopy: true}

	var packets []capture.Packet
	for {
		packet, err := packetSource.NextPacket()
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "read packet")
		}

		p, ok := Extract(packet)
		if !ok {
			r.stats.Dropped++
			continue
		}
		r.stats.Count(p)
		packets = append(packets, p)
	}

	if r.stats.Dropped > 0 {
		r.log.WithField("dropped", r.stats.Dropped).Warn("undecodable 802.15.4 frames were skipped")
	}

	return capture.NewTable(packets), nil
}

// Extract converts a decoded packet into a capture record. Only 16-bit
// short addresses populate Src and Dst, matching tshark's wpan.src16 and
// wpan.dst16 fields.
func Extract(packet gopacket.Packet) (capture.Packet, bool) {
	layer, ok := packet.Layer(LayerTypeDot15d4).(*Dot15d4)
	if !ok {
		return capture.Packet{}, false
	}

	md := packet.Metadata()
	p := capture.Packet{
		Timestamp: float64(md.Timestamp.UnixNano()) / 1e9,
		FrameType: capture.Int(int64(layer.FrameType)),
		Seq:       capture.Int(int64(layer.Seq)),
		Length:    capture.Int(int64(md.Length)),
	}
	if layer.SrcAddrMode == AddrModeShort {
		p.Src = capture.Int(int64(layer.SrcAddr))
	}
	if layer.DstAddrMode == AddrModeShort {
		p.Dst = capture.Int(int64(layer.DstAddr))
	}
	return p, true
}

// Close releases resources.
func (r *Reader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// fcsStripper drops the trailing 2-byte frame check sequence.
type fcsStripper struct {
	src gopacket.PacketDataSource
}

func (s fcsStripper) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	data, ci, err := s.src.ReadPacketData()
	if err == nil && len(data) >= 2 {
		data = data[:len(data)-2]
	}
	return data, ci, err
}
