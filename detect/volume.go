package detect

import (
	"context"

	"github.com/defenselab/pcapwatch/capture"
	"github.com/defenselab/pcapwatch/models"
)

// VolumeAnomaly will flag destination IP/port pairs whose byte or packet
// volume is a statistical outlier against the capture's own baseline.
// Like PortScan, only the contract exists today; the outlier model is
// pending, so Detect reports nothing.
type VolumeAnomaly struct {
	// Deviations is how many standard deviations above the capture mean
	// a pair's volume must sit before it is flagged.
	Deviations float64
}

func NewVolumeAnomaly() *VolumeAnomaly {
	return &VolumeAnomaly{Deviations: 3}
}

func (d *VolumeAnomaly) Name() string { return models.DetectorVolumeAnomaly }

func (d *VolumeAnomaly) Detect(ctx context.Context, records []capture.PacketRecord) ([]models.Alert, error) {
	return nil, nil
}
