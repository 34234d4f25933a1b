package analysis

import (
	"math"
	"sort"

	"github.com/defenselab/pcapwatch/capture"
	"github.com/defenselab/pcapwatch/models"
)

const (
	topTalkerLimit = 5
	previewLimit   = 10
)

// Traffic is everything the aggregator derives from one pass over a
// packet sequence.
type Traffic struct {
	BasicStats    models.BasicStats
	ProtocolStats map[string]int
	TopTalkers    []models.Talker
	PacketDetails []models.PacketDetail
}

// Aggregate computes summary counts, protocol tallies, top talkers and
// the packet preview in a single pass. It allocates all of its state per
// call, so concurrent runs over independent captures need no
// coordination. An empty capture is a valid result, not an error.
func Aggregate(records []capture.PacketRecord) Traffic {
	tr := Traffic{
		ProtocolStats: map[string]int{},
		TopTalkers:    []models.Talker{},
		PacketDetails: []models.PacketDetail{},
	}
	if len(records) == 0 {
		return tr
	}

	start := records[0].Timestamp
	end := records[len(records)-1].Timestamp

	srcCounts := map[string]int{}
	srcOrder := []string{}
	endpoints := map[string]struct{}{}
	totalBytes := 0

	for _, rec := range records {
		totalBytes += rec.WireLength
		tr.ProtocolStats[capture.TallyLabel(rec)]++

		if rec.HasIP {
			if _, seen := srcCounts[rec.SrcIP]; !seen {
				srcOrder = append(srcOrder, rec.SrcIP)
			}
			srcCounts[rec.SrcIP]++
			endpoints[rec.SrcIP] = struct{}{}
			endpoints[rec.DstIP] = struct{}{}
		}
	}

	tr.BasicStats = models.BasicStats{
		TotalPackets: len(records),
		Duration:     round(end-start, 2),
		UniqueIPs:    len(endpoints),
		TotalBytes:   totalBytes,
	}

	// Rank sources by packet count; equal counts keep first-seen order.
	talkers := make([]models.Talker, 0, len(srcOrder))
	for _, ip := range srcOrder {
		talkers = append(talkers, models.Talker{IP: ip, Packets: srcCounts[ip]})
	}
	sort.SliceStable(talkers, func(i, j int) bool {
		return talkers[i].Packets > talkers[j].Packets
	})
	if len(talkers) > topTalkerLimit {
		talkers = talkers[:topTalkerLimit]
	}
	tr.TopTalkers = talkers

	limit := previewLimit
	if len(records) < limit {
		limit = len(records)
	}
	for _, rec := range records[:limit] {
		src, dst := "N/A", "N/A"
		if rec.HasIP {
			src, dst = rec.SrcIP, rec.DstIP
		}
		tr.PacketDetails = append(tr.PacketDetails, models.PacketDetail{
			RelativeTime: round(rec.Timestamp-start, 3),
			Source:       src,
			Destination:  dst,
			Protocol:     capture.DisplayLabel(rec),
			SizeBytes:    rec.WireLength,
		})
	}
	return tr
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
