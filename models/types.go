package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Severity ranks an alert for downstream triage.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Detector names as they appear in alerts and threats documents.
const (
	DetectorSynFlood      = "syn_flood"
	DetectorPortScan      = "port_scan"
	DetectorVolumeAnomaly = "volume_anomaly"
)

// BasicStats summarizes a whole capture.
type BasicStats struct {
	TotalPackets int     `json:"total_packets"`
	Duration     float64 `json:"duration"`
	UniqueIPs    int     `json:"unique_ips"`
	TotalBytes   int     `json:"total_bytes"`
}

// Talker is one source endpoint ranked by the packets it originated.
// It marshals as a ["ip", count] pair, which is the shape the analyses
// documents and the dashboard expect.
type Talker struct {
	IP      string
	Packets int
}

func (t Talker) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{t.IP, t.Packets})
}

func (t *Talker) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("talker: expected [ip, count] pair, got %d elements", len(pair))
	}
	if err := json.Unmarshal(pair[0], &t.IP); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &t.Packets)
}

// PacketDetail is one preview row: the first packets of a capture reduced
// to what the dashboard renders.
type PacketDetail struct {
	RelativeTime float64 `json:"relative_time"`
	Source       string  `json:"source"`
	Destination  string  `json:"destination"`
	Protocol     string  `json:"protocol"`
	SizeBytes    int     `json:"size_bytes"`
}

// Alert is one detector finding. Evidence carries detector-specific
// counts/ratios; Detail is a free-form note.
type Alert struct {
	Detector string                 `json:"detector"`
	SourceIP string                 `json:"source_ip"`
	Severity Severity               `json:"severity"`
	Evidence map[string]interface{} `json:"evidence"`
	Detail   string                 `json:"detail,omitempty"`
}

// FileInfo describes the analyzed upload. SizeBytes is the sum of wire
// lengths seen in the capture, not the raw upload size.
type FileInfo struct {
	Name      string `json:"name"`
	SizeBytes int    `json:"size_bytes"`
}

// AnalysisResult is the complete output of one analysis run. Built once
// per run, never mutated or shared afterwards.
type AnalysisResult struct {
	File          FileInfo       `json:"file"`
	BasicStats    BasicStats     `json:"basic_stats"`
	ProtocolStats map[string]int `json:"protocol_stats"`
	TopTalkers    []Talker       `json:"top_talkers"`
	PacketDetails []PacketDetail `json:"packet_details"`
	Alerts        []Alert        `json:"alerts"`
}

// ReputationResult is what the reputation collaborator returned for one IP.
type ReputationResult struct {
	IPAddress            string `json:"ip_address"`
	AbuseConfidenceScore int    `json:"abuse_confidence_score"`
	CountryCode          string `json:"country_code,omitempty"`
	ISP                  string `json:"isp,omitempty"`
	TotalReports         int    `json:"total_reports"`
	Hostname             string `json:"hostname,omitempty"`
}

// AnalysisDocument is the analyses-collection shape the store persists
// without further transformation.
type AnalysisDocument struct {
	Filename      string         `json:"filename"`
	Timestamp     time.Time      `json:"timestamp"`
	BasicStats    BasicStats     `json:"basic_stats"`
	ProtocolStats map[string]int `json:"protocol_stats"`
	TopTalkers    []Talker       `json:"top_talkers"`
	PacketDetails []PacketDetail `json:"packet_details"`
}

// DetectionSection is one detector's slot in a threats document.
type DetectionSection struct {
	Status string  `json:"status"`
	Alerts []Alert `json:"alerts"`
}

// ThreatSummary rolls all detections up to a single triage level.
type ThreatSummary struct {
	OverallThreatLevel string `json:"overall_threat_level"`
	TotalAlerts        int    `json:"total_alerts"`
	SynFloodAlerts     int    `json:"syn_flood_alerts"`
}

// ThreatsDocument is the threats-collection shape the store persists.
type ThreatsDocument struct {
	Filename               string                      `json:"filename"`
	Timestamp              time.Time                   `json:"timestamp"`
	ThreatSummary          ThreatSummary               `json:"threat_summary"`
	SynFloodDetection      DetectionSection            `json:"syn_flood_detection"`
	PortScanDetection      DetectionSection            `json:"port_scan_detection"`
	VolumeAnomalyDetection DetectionSection            `json:"volume_anomaly_detection"`
	AbuseIPDBResults       map[string]ReputationResult `json:"abuseipdb_results"`
}

// StoreStats reports document counts for the reporting dashboard.
type StoreStats struct {
	TotalAnalyses       int64 `json:"total_analyses"`
	TotalThreats        int64 `json:"total_threats"`
	HighSeverityThreats int64 `json:"high_severity_threats"`
}
