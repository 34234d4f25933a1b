package detect

import (
	"context"
	"fmt"
	"log"

	"github.com/defenselab/pcapwatch/capture"
	"github.com/defenselab/pcapwatch/models"
)

// Detector is one independent heuristic over a packet sequence.
// Implementations allocate their own state per Detect call and may run
// concurrently across different captures.
type Detector interface {
	Name() string
	Detect(ctx context.Context, records []capture.PacketRecord) ([]models.Alert, error)
}

// Run executes every detector over the same sequence. Detector failures
// are isolated: a detector that errors or panics contributes no alerts
// and never aborts the aggregation or the other detectors.
func Run(ctx context.Context, records []capture.PacketRecord, detectors ...Detector) []models.Alert {
	var alerts []models.Alert
	for _, d := range detectors {
		found, err := runOne(ctx, d, records)
		if err != nil {
			log.Printf("detector %s failed, skipping its alerts: %v", d.Name(), err)
			continue
		}
		alerts = append(alerts, found...)
	}
	return alerts
}

func runOne(ctx context.Context, d Detector, records []capture.PacketRecord) (alerts []models.Alert, err error) {
	defer func() {
		if r := recover(); r != nil {
			alerts = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return d.Detect(ctx, records)
}
