package capture

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"io"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// Legacy pcap magic numbers (microsecond and nanosecond variants).
const (
	magicMicroseconds = 0xa1b2c3d4
	magicNanoseconds  = 0xa1b23c4d
	// First block of a pcapng file is always a Section Header Block.
	magicNgSectionHeader = 0x0a0d0d0a
)

// Options bounds a single load so an untrusted upload cannot force
// unbounded memory use. Zero values mean no limit.
type Options struct {
	MaxPackets int
	MaxBytes   int64
}

// packetDataReader is the common surface of pcapgo's legacy and
// next-generation readers.
type packetDataReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// Load parses a pcap or pcapng byte stream into packet records,
// preserving on-disk order. The container variant is chosen by sniffing
// the magic number. Load checks ctx between frames so an aborted request
// stops the parse at packet-record granularity.
func Load(ctx context.Context, r io.Reader, opts Options) ([]PacketRecord, error) {
	cr := &countingReader{r: r, max: opts.MaxBytes}
	br := bufio.NewReader(cr)

	magic, err := br.Peek(4)
	if err != nil {
		return nil, &FormatError{Reason: "container too short for magic number", Err: err}
	}

	var pr packetDataReader
	switch {
	case isNgMagic(magic):
		ng, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, &FormatError{Reason: "bad pcapng section header", Err: err}
		}
		pr = ng
	case isLegacyMagic(magic):
		lr, err := pcapgo.NewReader(br)
		if err != nil {
			return nil, &FormatError{Reason: "bad pcap file header", Err: err}
		}
		pr = lr
	default:
		return nil, &FormatError{Reason: "unrecognized capture magic number"}
	}

	linkType := pr.LinkType()
	var records []PacketRecord
	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, ci, err := pr.ReadPacketData()
		if err == io.EOF {
			break
		}
		if err != nil {
			if cr.exceeded {
				return nil, &LimitError{What: "bytes", Limit: opts.MaxBytes}
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, &TruncatedError{Frame: i, Err: err}
			}
			return nil, &FormatError{Reason: "corrupt frame header", Err: err}
		}
		if opts.MaxPackets > 0 && len(records) >= opts.MaxPackets {
			return nil, &LimitError{What: "packets", Limit: int64(opts.MaxPackets)}
		}
		records = append(records, decodeRecord(data, ci, linkType))
	}
	return records, nil
}

func isLegacyMagic(b []byte) bool {
	le := binary.LittleEndian.Uint32(b)
	be := binary.BigEndian.Uint32(b)
	for _, m := range []uint32{le, be} {
		if m == magicMicroseconds || m == magicNanoseconds {
			return true
		}
	}
	return false
}

func isNgMagic(b []byte) bool {
	return binary.BigEndian.Uint32(b) == magicNgSectionHeader
}

// decodeRecord classifies the layers of one frame. Addresses are only
// taken from the IP layer; ARP-only frames carry no endpoint addresses
// here and are excluded from unique-endpoint accounting downstream.
func decodeRecord(data []byte, ci gopacket.CaptureInfo, linkType layers.LinkType) PacketRecord {
	pkt := gopacket.NewPacket(data, linkType, gopacket.Default)

	rec := PacketRecord{
		Timestamp:  float64(ci.Timestamp.UnixNano()) / 1e9,
		WireLength: ci.Length,
	}
	if rec.WireLength == 0 {
		rec.WireLength = ci.CaptureLength
	}

	if ip4, ok := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4); ok {
		rec.HasIP = true
		rec.SrcIP = ip4.SrcIP.String()
		rec.DstIP = ip4.DstIP.String()
	} else if ip6, ok := pkt.Layer(layers.LayerTypeIPv6).(*layers.IPv6); ok {
		rec.HasIP = true
		rec.SrcIP = ip6.SrcIP.String()
		rec.DstIP = ip6.DstIP.String()
	}

	if tcp, ok := pkt.Layer(layers.LayerTypeTCP).(*layers.TCP); ok {
		rec.HasTCP = true
		rec.SrcPort = uint16(tcp.SrcPort)
		rec.DstPort = uint16(tcp.DstPort)
		rec.TCPFlags = tcpFlagsByte(tcp)
	} else if udp, ok := pkt.Layer(layers.LayerTypeUDP).(*layers.UDP); ok {
		rec.HasUDP = true
		rec.SrcPort = uint16(udp.SrcPort)
		rec.DstPort = uint16(udp.DstPort)
	}

	if pkt.Layer(layers.LayerTypeICMPv4) != nil || pkt.Layer(layers.LayerTypeICMPv6) != nil {
		rec.HasICMP = true
	}
	if pkt.Layer(layers.LayerTypeARP) != nil {
		rec.HasARP = true
	}
	if pkt.Layer(layers.LayerTypeDNS) != nil {
		rec.HasDNS = true
	}
	return rec
}

func tcpFlagsByte(tcp *layers.TCP) uint8 {
	var f uint8
	if tcp.FIN {
		f |= TCPFlagFIN
	}
	if tcp.SYN {
		f |= TCPFlagSYN
	}
	if tcp.RST {
		f |= TCPFlagRST
	}
	if tcp.PSH {
		f |= TCPFlagPSH
	}
	if tcp.ACK {
		f |= TCPFlagACK
	}
	if tcp.URG {
		f |= TCPFlagURG
	}
	if tcp.ECE {
		f |= TCPFlagECE
	}
	if tcp.CWR {
		f |= TCPFlagCWR
	}
	return f
}

// countingReader fails the stream once max bytes have been consumed.
type countingReader struct {
	r        io.Reader
	n        int64
	max      int64
	exceeded bool
}

var errByteLimit = errors.New("byte limit exceeded")

func (c *countingReader) Read(p []byte) (int, error) {
	if c.max > 0 && c.n > c.max {
		c.exceeded = true
		return 0, errByteLimit
	}
	n, err := c.r.Read(p)
	c.n += int64(n)
	if c.max > 0 && c.n > c.max {
		c.exceeded = true
		return n, errByteLimit
	}
	return n, err
}
