package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/defenselab/pcapwatch/engine"
	"github.com/defenselab/pcapwatch/pkg/config"
	"github.com/defenselab/pcapwatch/sse"
)

// newTestRepo wires a repository with no redis, no badger and no
// reputation collaborator; the handlers must degrade gracefully.
func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	app := &config.AppConfig{MaxUploadBytes: 10 << 20}
	eng := engine.New(engine.Options{MaxUploadBytes: app.MaxUploadBytes})
	return NewRepo(app, eng, nil, nil, sse.NewBroadcaster())
}

func synCapture(t *testing.T, synCount int) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := pcapgo.NewWriter(&buf)
	if err := w.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		t.Fatalf("writing pcap header: %v", err)
	}
	for i := 0; i < synCount; i++ {
		frame := gopacket.NewSerializeBuffer()
		err := gopacket.SerializeLayers(frame, gopacket.SerializeOptions{FixLengths: true},
			&layers.Ethernet{
				SrcMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
				DstMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02},
				EthernetType: layers.EthernetTypeIPv4,
			},
			&layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolTCP, SrcIP: net.ParseIP("10.0.0.66"), DstIP: net.ParseIP("192.168.0.1")},
			&layers.TCP{SrcPort: 51000, DstPort: layers.TCPPort(3000 + i), SYN: true, Window: 1024},
		)
		if err != nil {
			t.Fatalf("serializing test packet: %v", err)
		}
		ci := gopacket.CaptureInfo{
			Timestamp:     time.Unix(1700000000, 0).Add(time.Duration(i) * 50 * time.Millisecond),
			CaptureLength: len(frame.Bytes()),
			Length:        len(frame.Bytes()),
		}
		if err := w.WritePacket(ci, frame.Bytes()); err != nil {
			t.Fatalf("writing packet %d: %v", i, err)
		}
	}
	return buf.Bytes()
}

func uploadRequest(t *testing.T, filename string, payload []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("creating form file: %v", err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatalf("writing form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("closing multipart writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/pcap/analyze", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	repo := newTestRepo(t)
	rr := httptest.NewRecorder()
	repo.Health(rr, httptest.NewRequest(http.MethodGet, "/pcap/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["ok"] != true {
		t.Errorf("ok = %v, body = %v", body["ok"], body)
	}
	if body["module"] != "pcap" || body["analyze_endpoint"] != "/pcap/analyze" {
		t.Errorf("body = %v", body)
	}
}

func TestAnalyzeSuccess(t *testing.T) {
	repo := newTestRepo(t)
	rr := httptest.NewRecorder()
	repo.Analyze(rr, uploadRequest(t, "flood.pcap", synCapture(t, 12)))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var body struct {
		BasicStats struct {
			TotalPackets int `json:"total_packets"`
		} `json:"basic_stats"`
		Threats struct {
			ThreatSummary struct {
				OverallThreatLevel string `json:"overall_threat_level"`
				TotalAlerts        int    `json:"total_alerts"`
			} `json:"threat_summary"`
		} `json:"threats"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.BasicStats.TotalPackets != 12 {
		t.Errorf("total_packets = %d, want 12", body.BasicStats.TotalPackets)
	}
	if body.Threats.ThreatSummary.TotalAlerts != 1 || body.Threats.ThreatSummary.OverallThreatLevel != "medium" {
		t.Errorf("threat_summary = %+v", body.Threats.ThreatSummary)
	}
}

func TestAnalyzeMissingFileField(t *testing.T) {
	repo := newTestRepo(t)
	req := httptest.NewRequest(http.MethodPost, "/pcap/analyze", bytes.NewReader(nil))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=none")
	rr := httptest.NewRecorder()
	repo.Analyze(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestAnalyzeRejectsWrongExtension(t *testing.T) {
	repo := newTestRepo(t)
	rr := httptest.NewRecorder()
	repo.Analyze(rr, uploadRequest(t, "notes.txt", []byte("hello")))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestAnalyzeRejectsCorruptCapture(t *testing.T) {
	repo := newTestRepo(t)
	rr := httptest.NewRecorder()
	repo.Analyze(rr, uploadRequest(t, "junk.pcap", []byte("this is not a capture file")))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rr.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["error"] == "" {
		t.Errorf("body = %v, want an error message", body)
	}
}

func TestAnalyzeRejectsTruncatedCapture(t *testing.T) {
	repo := newTestRepo(t)
	full := synCapture(t, 3)
	rr := httptest.NewRecorder()
	repo.Analyze(rr, uploadRequest(t, "cut.pcap", full[:len(full)-10]))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rr.Code)
	}
}

// Read endpoints answer with empty collections when no document store
// is configured.
func TestReadEndpointsWithoutStore(t *testing.T) {
	repo := newTestRepo(t)
	endpoints := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"recent analyses", repo.RecentAnalyses},
		{"recent threats", repo.RecentThreats},
		{"high threats", repo.HighThreats},
	}
	for _, ep := range endpoints {
		t.Run(ep.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			ep.handler(rr, httptest.NewRequest(http.MethodGet, "/?limit=5", nil))
			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rr.Code)
			}
			var docs []json.RawMessage
			if err := json.Unmarshal(rr.Body.Bytes(), &docs); err != nil {
				t.Fatalf("decoding body %q: %v", rr.Body.String(), err)
			}
			if len(docs) != 0 {
				t.Errorf("docs = %v, want none", docs)
			}
		})
	}
}

func TestAnalysisByFile(t *testing.T) {
	repo := newTestRepo(t)

	rr := httptest.NewRecorder()
	repo.AnalysisByFile(rr, httptest.NewRequest(http.MethodGet, "/analyses/file", nil))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing name: status = %d, want 400", rr.Code)
	}

	rr = httptest.NewRecorder()
	repo.AnalysisByFile(rr, httptest.NewRequest(http.MethodGet, "/analyses/file?name=trace.pcap", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown file: status = %d, want 404", rr.Code)
	}
}

func TestStatsWithoutStore(t *testing.T) {
	repo := newTestRepo(t)
	rr := httptest.NewRecorder()
	repo.Stats(rr, httptest.NewRequest(http.MethodGet, "/stats", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["total_analyses"] != float64(0) || body["last_analysis"] != "" {
		t.Errorf("body = %v", body)
	}
}

func TestLimitParam(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 10},
		{"limit=3", 3},
		{"limit=0", 10},
		{"limit=-2", 10},
		{"limit=abc", 10},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
		if got := limitParam(req, 10); got != tt.want {
			t.Errorf("limitParam(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}
