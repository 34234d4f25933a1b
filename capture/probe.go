package capture

import (
	"bytes"
	"context"
)

// Capability is the result of the one-time parser probe. The service
// reports a degraded status instead of failing when the parser is
// unavailable in the running process.
type Capability struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// minimal little-endian pcap file header, zero packets
var probeHeader = []byte{
	0xd4, 0xc3, 0xb2, 0xa1, // magic
	0x02, 0x00, 0x04, 0x00, // version 2.4
	0x00, 0x00, 0x00, 0x00, // thiszone
	0x00, 0x00, 0x00, 0x00, // sigfigs
	0xff, 0xff, 0x00, 0x00, // snaplen
	0x01, 0x00, 0x00, 0x00, // link type (ethernet)
}

// Probe checks once whether capture parsing works in this process by
// round-tripping a canned empty capture through the loader.
func Probe() Capability {
	_, err := Load(context.Background(), bytes.NewReader(probeHeader), Options{})
	if err != nil {
		return Capability{Available: false, Reason: err.Error()}
	}
	return Capability{Available: true}
}
