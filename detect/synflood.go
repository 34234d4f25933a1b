package detect

import (
	"context"
	"fmt"
	"math"

	"github.com/defenselab/pcapwatch/capture"
	"github.com/defenselab/pcapwatch/models"
)

// Long-standing heuristic thresholds: a source must send at least
// MinSynCount bare SYNs and see fewer than MaxAckRatio SYN-ACKs per SYN
// before it is flagged.
const (
	defaultMinSynCount   = 10
	defaultMaxAckRatio   = 0.2
	defaultHighThreshold = 50
)

type synTarget struct {
	dstIP   string
	dstPort uint16
	time    float64
}

// AckCountStrategy decides how many handshake responses to credit a SYN
// source with. The production strategy is a cross-role comparison: it
// counts SYN-ACKs the source IP itself received as a destination
// elsewhere in the capture, not responses within the source's own
// conversations. The system owner has flagged this attribution as an
// open question, so it stays a named, swappable strategy.
type AckCountStrategy interface {
	Name() string
	SynAckCount(src string, synAcksByDst map[string]int) int
}

// CrossRoleAck is the default attribution described above.
type CrossRoleAck struct{}

func (CrossRoleAck) Name() string { return "cross_role" }

func (CrossRoleAck) SynAckCount(src string, synAcksByDst map[string]int) int {
	return synAcksByDst[src]
}

// SynFlood flags sources sending many connection-initiation SYNs with
// almost no SYN-ACK volume credited back to them.
type SynFlood struct {
	MinSynCount   int
	MaxAckRatio   float64
	HighThreshold int
	Strategy      AckCountStrategy
}

func NewSynFlood() *SynFlood {
	return &SynFlood{
		MinSynCount:   defaultMinSynCount,
		MaxAckRatio:   defaultMaxAckRatio,
		HighThreshold: defaultHighThreshold,
		Strategy:      CrossRoleAck{},
	}
}

func (d *SynFlood) Name() string { return models.DetectorSynFlood }

func (d *SynFlood) Detect(ctx context.Context, records []capture.PacketRecord) ([]models.Alert, error) {
	synBySource := map[string][]synTarget{}
	var sourceOrder []string
	synAcksByDst := map[string]int{}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !rec.HasIP || !rec.HasTCP {
			continue
		}
		switch {
		case rec.BareSYN():
			if _, seen := synBySource[rec.SrcIP]; !seen {
				sourceOrder = append(sourceOrder, rec.SrcIP)
			}
			synBySource[rec.SrcIP] = append(synBySource[rec.SrcIP], synTarget{
				dstIP:   rec.DstIP,
				dstPort: rec.DstPort,
				time:    rec.Timestamp,
			})
		case rec.ExactSynAck():
			synAcksByDst[rec.DstIP]++
		}
	}

	var alerts []models.Alert
	for _, src := range sourceOrder {
		targets := synBySource[src]
		synCount := len(targets)
		if synCount == 0 {
			continue
		}
		synAckCount := d.Strategy.SynAckCount(src, synAcksByDst)
		ratio := float64(synAckCount) / float64(synCount)
		if synCount < d.MinSynCount || ratio >= d.MaxAckRatio {
			continue
		}

		unique := map[string]struct{}{}
		for _, t := range targets {
			unique[fmt.Sprintf("%s:%d", t.dstIP, t.dstPort)] = struct{}{}
		}

		severity := models.SeverityMedium
		if synCount > d.HighThreshold {
			severity = models.SeverityHigh
		}
		alerts = append(alerts, models.Alert{
			Detector: models.DetectorSynFlood,
			SourceIP: src,
			Severity: severity,
			Evidence: map[string]interface{}{
				"syn_count":      synCount,
				"syn_ack_count":  synAckCount,
				"ack_ratio":      math.Round(ratio*100) / 100,
				"unique_targets": len(unique),
			},
		})
	}
	return alerts, nil
}
