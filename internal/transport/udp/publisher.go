// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	applog "notescope/internal/log"
	"notescope/internal/transport"

	"github.com/x448/float16"
)

// Precision selects the on-wire width of each magnitude.
type Precision uint8

const (
	Float32 Precision = 32
	Float16 Precision = 16
)

// ParsePrecision accepts "float32"/"32" and "float16"/"16"/"half".
func ParsePrecision(s string) (Precision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "float32", "32":
		return Float32, nil
	case "float16", "16", "half":
		return Float16, nil
	default:
		return 0, fmt.Errorf("unknown UDP precision '%s'", s)
	}
}

func (p Precision) size() int {
	return int(p) / 8
}

// ErrShortPacket is returned by DecodePacket for truncated input.
var ErrShortPacket = errors.New("short spectrum packet")

/*
UDP Packet Structure (BigEndian)

+------------------+-----------+------+------------------------------------+
| Field            | Type      | Size | Description                        |
|------------------|-----------|------|------------------------------------|
| Sequence Number  | uint32    | 4    | Increments per packet              |
| Timestamp        | int64     | 8    | Nanoseconds since epoch, per frame |
| Precision        | uint8     | 1    | 32 or 16 bits per magnitude        |
| Total Bins       | uint32    | 4    | Bins in the whole frame            |
| Offset           | uint32    | 4    | Index of the first bin carried     |
| Magnitude Count  | uint16    | 2    | Bins in this packet (N)            |
| Magnitudes       | []float   | N*P  | float32 or IEEE half floats        |
+------------------+-----------+------+------------------------------------+

A frame larger than MaxPayload bytes is split across packets sharing one
timestamp; receivers reassemble by Offset.
*/
const (
	headerSize = 4 + 8 + 1 + 4 + 4 + 2
	// MaxPayload keeps datagrams under the common 64 KiB limit with room to spare.
	MaxPayload = 32 * 1024
)

// Packet is one decoded datagram.
type Packet struct {
	Sequence   uint32
	Timestamp  int64
	Precision  Precision
	Total      uint32
	Offset     uint32
	Magnitudes []float32
}

// Publisher packs spectrum messages into binary packets and sends them over
// UDP. Other message types are ignored.
type Publisher struct {
	sender    *UDPSender
	precision Precision

	mu          sync.Mutex
	sequenceNum uint32
	packet      bytes.Buffer
}

// NewPublisher creates a publisher on top of sender.
func NewPublisher(sender *UDPSender, precision Precision) (*Publisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	if precision != Float32 && precision != Float16 {
		return nil, fmt.Errorf("UDPPublisher: unsupported precision %d", precision)
	}
	applog.Infof("UDPPublisher: Initializing (precision float%d)", precision)
	return &Publisher{sender: sender, precision: precision}, nil
}

// Send implements transport.Transport.
func (p *Publisher) Send(data any) error {
	var frame transport.SpectrumFrame
	switch m := data.(type) {
	case transport.Message:
		f, ok := m.Payload.(transport.SpectrumFrame)
		if !ok {
			return nil
		}
		frame = f
	case transport.SpectrumFrame:
		frame = m
	default:
		return nil
	}
	return p.sendFrame(frame.Magnitudes)
}

func (p *Publisher) sendFrame(mags []float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	perPacket := min(MaxPayload/p.precision.size(), math.MaxUint16)
	timestamp := time.Now().UnixNano()
	total := uint32(len(mags))

	for offset := 0; offset < len(mags) || offset == 0; offset += perPacket {
		end := min(offset+perPacket, len(mags))
		p.sequenceNum++
		p.packet.Reset()
		p.writeHeader(timestamp, total, uint32(offset), uint16(end-offset))
		p.writeMagnitudes(mags[offset:end])

		if err := p.sender.Send(p.packet.Bytes()); err != nil {
			return err
		}
		applog.Debugf("UDPPublisher: Sent packet %d (%d bytes)", p.sequenceNum, p.packet.Len())
		if end == len(mags) {
			break
		}
	}
	return nil
}

func (p *Publisher) writeHeader(timestamp int64, total, offset uint32, count uint16) {
	var hdr [headerSize]byte
	binary.BigEndian.PutUint32(hdr[0:], p.sequenceNum)
	binary.BigEndian.PutUint64(hdr[4:], uint64(timestamp))
	hdr[12] = byte(p.precision)
	binary.BigEndian.PutUint32(hdr[13:], total)
	binary.BigEndian.PutUint32(hdr[17:], offset)
	binary.BigEndian.PutUint16(hdr[21:], count)
	p.packet.Write(hdr[:])
}

func (p *Publisher) writeMagnitudes(mags []float64) {
	var b [4]byte
	for _, v := range mags {
		if p.precision == Float16 {
			binary.BigEndian.PutUint16(b[:2], float16.Fromfloat32(float32(v)).Bits())
			p.packet.Write(b[:2])
			continue
		}
		binary.BigEndian.PutUint32(b[:], math.Float32bits(float32(v)))
		p.packet.Write(b[:])
	}
}

// DecodePacket parses one datagram produced by a Publisher.
func DecodePacket(b []byte) (Packet, error) {
	if len(b) < headerSize {
		return Packet{}, ErrShortPacket
	}
	pkt := Packet{
		Sequence:  binary.BigEndian.Uint32(b[0:]),
		Timestamp: int64(binary.BigEndian.Uint64(b[4:])),
		Precision: Precision(b[12]),
		Total:     binary.BigEndian.Uint32(b[13:]),
		Offset:    binary.BigEndian.Uint32(b[17:]),
	}
	if pkt.Precision != Float32 && pkt.Precision != Float16 {
		return Packet{}, fmt.Errorf("unknown precision %d", pkt.Precision)
	}
	count := int(binary.BigEndian.Uint16(b[21:]))
	size := pkt.Precision.size()
	payload := b[headerSize:]
	if len(payload) < count*size {
		return Packet{}, ErrShortPacket
	}

	pkt.Magnitudes = make([]float32, count)
	for i := range pkt.Magnitudes {
		chunk := payload[i*size:]
		if pkt.Precision == Float16 {
			pkt.Magnitudes[i] = float16.Frombits(binary.BigEndian.Uint16(chunk)).Float32()
		} else {
			pkt.Magnitudes[i] = math.Float32frombits(binary.BigEndian.Uint32(chunk))
		}
	}
	return pkt, nil
}

// Close stops publishing and closes the sender.
func (p *Publisher) Close() error {
	applog.Debugf("UDPPublisher: Close called")
	return p.sender.Close()
}

var _ transport.Transport = (*Publisher)(nil)
