package detect

import (
	"context"

	"github.com/defenselab/pcapwatch/capture"
	"github.com/defenselab/pcapwatch/models"
)

// PortScan will flag a source touching an unusually large number of
// distinct destination ports against few destination hosts. The
// thresholds are settled; the scoring heuristic itself has not been
// specified yet, so Detect reports nothing. The contract keeps the
// detector wired into the pipeline and its section in the threats
// document.
type PortScan struct {
	MinDistinctPorts int
	MaxDistinctHosts int
}

func NewPortScan() *PortScan {
	return &PortScan{MinDistinctPorts: 100, MaxDistinctHosts: 3}
}

func (d *PortScan) Name() string { return models.DetectorPortScan }

func (d *PortScan) Detect(ctx context.Context, records []capture.PacketRecord) ([]models.Alert, error) {
	return nil, nil
}
