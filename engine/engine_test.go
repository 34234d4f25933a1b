package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/defenselab/pcapwatch/capture"
	"github.com/defenselab/pcapwatch/models"
)

func tcpFrame(t *testing.T, src, dst string, sport, dport uint16, syn, ack bool) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true},
		&layers.Ethernet{
			SrcMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
			DstMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02},
			EthernetType: layers.EthernetTypeIPv4,
		},
		&layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolTCP, SrcIP: net.ParseIP(src), DstIP: net.ParseIP(dst)},
		&layers.TCP{SrcPort: layers.TCPPort(sport), DstPort: layers.TCPPort(dport), SYN: syn, ACK: ack, Window: 1024},
	)
	if err != nil {
		t.Fatalf("serializing test packet: %v", err)
	}
	return buf.Bytes()
}

// floodCapture is 12 bare SYNs from one source plus 3 HTTPS packets of
// ordinary traffic.
func floodCapture(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := pcapgo.NewWriter(&buf)
	if err := w.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		t.Fatalf("writing pcap header: %v", err)
	}
	write := func(i int, data []byte) {
		ci := gopacket.CaptureInfo{
			Timestamp:     time.Unix(1700000000, 0).Add(time.Duration(i) * 100 * time.Millisecond),
			CaptureLength: len(data),
			Length:        len(data),
		}
		if err := w.WritePacket(ci, data); err != nil {
			t.Fatalf("writing packet %d: %v", i, err)
		}
	}
	n := 0
	for i := 0; i < 12; i++ {
		write(n, tcpFrame(t, "10.0.0.99", fmt.Sprintf("192.168.1.%d", i+1), 51000, uint16(2000+i), true, false))
		n++
	}
	for i := 0; i < 3; i++ {
		write(n, tcpFrame(t, "10.0.0.1", "10.0.0.2", 50000, 443, false, true))
		n++
	}
	return buf.Bytes()
}

func TestValidateUpload(t *testing.T) {
	eng := New(Options{MaxUploadBytes: 1024})
	tests := []struct {
		name     string
		filename string
		size     int64
		wantErr  bool
	}{
		{"pcap", "trace.pcap", 100, false},
		{"pcapng", "trace.pcapng", 100, false},
		{"case insensitive", "TRACE.PCAP", 100, false},
		{"unknown size", "trace.pcap", -1, false},
		{"wrong extension", "notes.txt", 100, true},
		{"no name", "", 100, true},
		{"empty upload", "trace.pcap", 0, true},
		{"over the byte ceiling", "trace.pcap", 4096, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := eng.ValidateUpload(tt.filename, tt.size)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateUpload(%q, %d) error = %v, wantErr %v", tt.filename, tt.size, err, tt.wantErr)
			}
			if err != nil {
				var validation *ValidationError
				if !errors.As(err, &validation) {
					t.Errorf("error type = %T, want *ValidationError", err)
				}
			}
		})
	}
}

func TestAnalyzeEndToEnd(t *testing.T) {
	eng := New(Options{})
	res, err := eng.Analyze(context.Background(), bytes.NewReader(floodCapture(t)), "flood.pcap")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if res.BasicStats.TotalPackets != 15 {
		t.Errorf("total_packets = %d, want 15", res.BasicStats.TotalPackets)
	}
	if res.ProtocolStats["TCP"] != 15 {
		t.Errorf("protocol_stats = %v", res.ProtocolStats)
	}
	if res.File.Name != "flood.pcap" || res.File.SizeBytes != res.BasicStats.TotalBytes {
		t.Errorf("file metadata = %+v", res.File)
	}
	if len(res.TopTalkers) == 0 || res.TopTalkers[0].IP != "10.0.0.99" {
		t.Errorf("top_talkers = %+v", res.TopTalkers)
	}
	if len(res.PacketDetails) != 10 {
		t.Errorf("preview rows = %d, want 10", len(res.PacketDetails))
	}

	if len(res.Alerts) != 1 {
		t.Fatalf("alerts = %+v, want exactly one", res.Alerts)
	}
	a := res.Alerts[0]
	if a.Detector != models.DetectorSynFlood || a.SourceIP != "10.0.0.99" || a.Severity != models.SeverityMedium {
		t.Errorf("alert = %+v", a)
	}
	if a.Evidence["syn_count"] != 12 || a.Evidence["unique_targets"] != 12 {
		t.Errorf("evidence = %+v", a.Evidence)
	}
}

func TestAnalyzeEmptyCaptureIsValid(t *testing.T) {
	var buf bytes.Buffer
	w := pcapgo.NewWriter(&buf)
	if err := w.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		t.Fatalf("writing pcap header: %v", err)
	}

	eng := New(Options{})
	res, err := eng.Analyze(context.Background(), bytes.NewReader(buf.Bytes()), "empty.pcap")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if res.BasicStats.TotalPackets != 0 || res.BasicStats.TotalBytes != 0 {
		t.Errorf("basic_stats = %+v", res.BasicStats)
	}
	if len(res.Alerts) != 0 {
		t.Errorf("alerts = %+v, want none", res.Alerts)
	}
}

func TestAnalyzeCorruptCapture(t *testing.T) {
	eng := New(Options{})
	_, err := eng.Analyze(context.Background(), bytes.NewReader([]byte("junk data")), "junk.pcap")
	var format *capture.FormatError
	if !errors.As(err, &format) {
		t.Fatalf("Analyze() error = %v, want *capture.FormatError", err)
	}
}

func TestAnalyzeCanceled(t *testing.T) {
	eng := New(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := eng.Analyze(ctx, bytes.NewReader(floodCapture(t)), "flood.pcap")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Analyze() error = %v, want context.Canceled", err)
	}
}

func TestEnrichWithoutCollaborator(t *testing.T) {
	eng := New(Options{})
	rep := eng.Enrich(context.Background(), []models.Alert{{SourceIP: "10.0.0.1"}})
	if rep == nil || len(rep) != 0 {
		t.Fatalf("Enrich() = %v, want empty non-nil map", rep)
	}
}
