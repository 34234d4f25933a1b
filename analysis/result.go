package analysis

import (
	"time"

	"github.com/defenselab/pcapwatch/models"
)

// Assemble composes the aggregator and detector outputs into one
// immutable result. File size deliberately reports the capture's total
// wire bytes, not the raw upload size, so the file metadata always
// agrees with basic_stats.
func Assemble(filename string, tr Traffic, alerts []models.Alert) *models.AnalysisResult {
	if alerts == nil {
		alerts = []models.Alert{}
	}
	return &models.AnalysisResult{
		File: models.FileInfo{
			Name:      filename,
			SizeBytes: tr.BasicStats.TotalBytes,
		},
		BasicStats:    tr.BasicStats,
		ProtocolStats: tr.ProtocolStats,
		TopTalkers:    tr.TopTalkers,
		PacketDetails: tr.PacketDetails,
		Alerts:        alerts,
	}
}

// NewAnalysisDocument shapes a result for the analyses collection.
func NewAnalysisDocument(res *models.AnalysisResult, ts time.Time) models.AnalysisDocument {
	return models.AnalysisDocument{
		Filename:      res.File.Name,
		Timestamp:     ts,
		BasicStats:    res.BasicStats,
		ProtocolStats: res.ProtocolStats,
		TopTalkers:    res.TopTalkers,
		PacketDetails: res.PacketDetails,
	}
}

// NewThreatsDocument shapes detector output for the threats collection.
// The port-scan and volume-anomaly heuristics are contract-only for now;
// their sections report not_implemented until they produce alerts.
func NewThreatsDocument(res *models.AnalysisResult, rep map[string]models.ReputationResult, ts time.Time) models.ThreatsDocument {
	if rep == nil {
		rep = map[string]models.ReputationResult{}
	}

	byDetector := map[string][]models.Alert{}
	for _, a := range res.Alerts {
		byDetector[a.Detector] = append(byDetector[a.Detector], a)
	}

	doc := models.ThreatsDocument{
		Filename:               res.File.Name,
		Timestamp:              ts,
		SynFloodDetection:      section(byDetector[models.DetectorSynFlood], "completed"),
		PortScanDetection:      section(byDetector[models.DetectorPortScan], "not_implemented"),
		VolumeAnomalyDetection: section(byDetector[models.DetectorVolumeAnomaly], "not_implemented"),
		AbuseIPDBResults:       rep,
	}
	doc.ThreatSummary = summarize(res.Alerts, len(byDetector[models.DetectorSynFlood]))
	return doc
}

func section(alerts []models.Alert, emptyStatus string) models.DetectionSection {
	if len(alerts) > 0 {
		return models.DetectionSection{Status: "completed", Alerts: alerts}
	}
	return models.DetectionSection{Status: emptyStatus, Alerts: []models.Alert{}}
}

func summarize(alerts []models.Alert, synFloodAlerts int) models.ThreatSummary {
	rank := map[models.Severity]int{models.SeverityLow: 1, models.SeverityMedium: 2, models.SeverityHigh: 3}
	level := "none"
	worst := 0
	for _, a := range alerts {
		if r := rank[a.Severity]; r > worst {
			worst = r
			level = string(a.Severity)
		}
	}
	return models.ThreatSummary{
		OverallThreatLevel: level,
		TotalAlerts:        len(alerts),
		SynFloodAlerts:     synFloodAlerts,
	}
}
