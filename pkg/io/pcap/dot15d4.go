package pcap

import (
	"encoding/binary"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/pkg/errors"
)

// LayerTypeDot15d4 is the IEEE 802.15.4 MAC layer, which gopacket does not
// ship a decoder for.
var LayerTypeDot15d4 = gopacket.RegisterLayerType(2154, gopacket.LayerTypeMetadata{
	Name:    "Dot15d4",
	Decoder: gopacket.DecodeFunc(decodeDot15d4),
})

// Addressing modes from the frame control field.
const (
	AddrModeNone     uint8 = 0
	AddrModeShort    uint8 = 2
	AddrModeExtended uint8 = 3
)

var errShortFrame = errors.New("802.15.4 frame too short")

// Dot15d4 is a decoded IEEE 802.15.4 MAC header.
type Dot15d4 struct {
	layers.BaseLayer

	FrameType        uint8
	Security         bool
	FramePending     bool
	AckRequest       bool
	PANIDCompression bool
	DstAddrMode      uint8
	FrameVersion     uint8
	SrcAddrMode      uint8
	Seq              uint8

	DstPAN  uint16
	DstAddr uint64
	SrcPAN  uint16
	SrcAddr uint64
}

// LayerType returns LayerTypeDot15d4.
func (d *Dot15d4) LayerType() gopacket.LayerType { return LayerTypeDot15d4 }

// CanDecode returns LayerTypeDot15d4.
func (d *Dot15d4) CanDecode() gopacket.LayerClass { return LayerTypeDot15d4 }

// NextLayerType returns the payload layer type.
func (d *Dot15d4) NextLayerType() gopacket.LayerType { return gopacket.LayerTypePayload }

// DecodeFromBytes decodes the MAC header. data must not include the FCS.
func (d *Dot15d4) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < 3 {
		df.SetTruncated()
		return errShortFrame
	}

	fc := binary.LittleEndian.Uint16(data[0:2])
	d.FrameType = uint8(fc & 0x7)
	d.Security = fc&(1<<3) != 0
	d.FramePending = fc&(1<<4) != 0
	d.AckRequest = fc&(1<<5) != 0
	d.PANIDCompression = fc&(1<<6) != 0
	d.DstAddrMode = uint8(fc>>10) & 0x3
	d.FrameVersion = uint8(fc>>12) & 0x3
	d.SrcAddrMode = uint8(fc>>14) & 0x3
	d.Seq = data[2]

	off := 3
	var ok bool
	if d.DstAddrMode != AddrModeNone {
		if d.DstPAN, off, ok = readUint16(data, off); !ok {
			df.SetTruncated()
			return errShortFrame
		}
		if d.DstAddr, off, ok = readAddr(data, off, d.DstAddrMode); !ok {
			df.SetTruncated()
			return errShortFrame
		}
	}
	if d.SrcAddrMode != AddrModeNone {
		if d.PANIDCompression && d.DstAddrMode != AddrModeNone {
			d.SrcPAN = d.DstPAN
		} else if d.SrcPAN, off, ok = readUint16(data, off); !ok {
			df.SetTruncated()
			return errShortFrame
		}
		if d.SrcAddr, off, ok = readAddr(data, off, d.SrcAddrMode); !ok {
			df.SetTruncated()
			return errShortFrame
		}
	}

	d.Contents = data[:off]
	d.Payload = data[off:]
	return nil
}

func readUint16(data []byte, off int) (uint16, int, bool) {
	if len(data) < off+2 {
		return 0, off, false
	}
	return binary.LittleEndian.Uint16(data[off:]), off + 2, true
}

func readAddr(data []byte, off int, mode uint8) (uint64, int, bool) {
	switch mode {
	case AddrModeShort:
		v, next, ok := readUint16(data, off)
		return uint64(v), next, ok
	case AddrModeExtended:
		if len(data) < off+8 {
			return 0, off, false
		}
		return binary.LittleEndian.Uint64(data[off:]), off + 8, true
	default:
		return 0, off, true
	}
}

func decodeDot15d4(data []byte, p gopacket.PacketBuilder) error {
	d := &Dot15d4{}
	if err := d.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(d)
	return p.NextDecoder(d.NextLayerType())
}
