package capture

// TallyLabel buckets a packet for protocol statistics. First layer match
// wins, in a fixed precedence order: a DNS-over-UDP packet tallies as
// UDP, and a DNS-over-TCP packet tallies as TCP, never DNS.
func TallyLabel(rec PacketRecord) string {
	switch {
	case rec.HasTCP:
		return "TCP"
	case rec.HasUDP:
		return "UDP"
	case rec.HasICMP:
		return "ICMP"
	case rec.HasARP:
		return "ARP"
	case rec.HasDNS:
		return "DNS"
	default:
		return "Other"
	}
}

// DisplayLabel names a packet for the preview rows. Unlike TallyLabel it
// promotes well-known ports to their application protocol, so the same
// packet can tally as UDP but display as DNS.
func DisplayLabel(rec PacketRecord) string {
	switch {
	case rec.HasTCP:
		if rec.SrcPort == 80 || rec.DstPort == 80 {
			return "HTTP"
		}
		if rec.SrcPort == 443 || rec.DstPort == 443 {
			return "HTTPS"
		}
		if rec.SrcPort == 22 || rec.DstPort == 22 {
			return "SSH"
		}
		return "TCP"
	case rec.HasUDP:
		if rec.SrcPort == 53 || rec.DstPort == 53 {
			return "DNS"
		}
		return "UDP"
	case rec.HasICMP:
		return "ICMP"
	case rec.HasARP:
		return "ARP"
	default:
		return "Other"
	}
}
