package capture

// TCP control flag bits as they appear in the flags byte.
const (
	TCPFlagFIN = 0x01
	TCPFlagSYN = 0x02
	TCPFlagRST = 0x04
	TCPFlagPSH = 0x08
	TCPFlagACK = 0x10
	TCPFlagURG = 0x20
	TCPFlagECE = 0x40
	TCPFlagCWR = 0x80
)

// PacketRecord is one decoded frame from a capture file. Records are
// immutable after parse and owned by a single analysis run.
type PacketRecord struct {
	// Timestamp is the capture time in seconds since the epoch. Records
	// keep on-disk order; timestamps are not guaranteed monotonic.
	Timestamp  float64
	WireLength int

	HasIP   bool
	HasTCP  bool
	HasUDP  bool
	HasICMP bool
	HasARP  bool
	HasDNS  bool

	SrcIP   string
	DstIP   string
	SrcPort uint16
	DstPort uint16

	// TCPFlags is the raw control flag byte, valid only when HasTCP.
	TCPFlags uint8
}

// BareSYN reports whether the packet is a connection-initiation SYN:
// SYN set, ACK clear. Other flag bits are ignored.
func (r PacketRecord) BareSYN() bool {
	return r.TCPFlags&TCPFlagSYN != 0 && r.TCPFlags&TCPFlagACK == 0
}

// ExactSynAck reports whether the flags byte is exactly SYN|ACK. A
// handshake response with any extra bit set does not count.
func (r PacketRecord) ExactSynAck() bool {
	return r.TCPFlags == TCPFlagSYN|TCPFlagACK
}
