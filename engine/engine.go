package engine

import (
	"context"
	"fmt"
	"io"
	"strings"

	"golang.org/x/sync/semaphore"

	"github.com/defenselab/pcapwatch/analysis"
	"github.com/defenselab/pcapwatch/capture"
	"github.com/defenselab/pcapwatch/detect"
	"github.com/defenselab/pcapwatch/models"
	"github.com/defenselab/pcapwatch/reputation"
)

// Options configures an Engine. Zero limits mean no ceiling; zero
// workers falls back to a small pool.
type Options struct {
	MaxUploadBytes int64
	MaxPackets     int
	Workers        int64
	Detectors      []detect.Detector
	Reputation     *reputation.Client
}

// Engine is the analysis entry point. It is constructed once with its
// collaborators and probe state; each Analyze call allocates its own
// counters, so concurrent calls over independent captures need no
// coordination beyond the worker pool.
type Engine struct {
	opts       Options
	sem        *semaphore.Weighted
	capability capture.Capability
}

func New(opts Options) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if len(opts.Detectors) == 0 {
		opts.Detectors = []detect.Detector{
			detect.NewSynFlood(),
			detect.NewPortScan(),
			detect.NewVolumeAnomaly(),
		}
	}
	return &Engine{
		opts:       opts,
		sem:        semaphore.NewWeighted(opts.Workers),
		capability: capture.Probe(),
	}
}

// Capability reports the one-time parser probe taken at construction.
func (e *Engine) Capability() capture.Capability { return e.capability }

// ValidateUpload rejects an upload before any parsing happens. A
// negative size means the size is unknown and only the name is checked.
func (e *Engine) ValidateUpload(filename string, size int64) error {
	name := strings.ToLower(filename)
	if name == "" || (!strings.HasSuffix(name, ".pcap") && !strings.HasSuffix(name, ".pcapng")) {
		return &ValidationError{Reason: "expected a .pcap or .pcapng file"}
	}
	if size == 0 {
		return &ValidationError{Reason: "empty upload"}
	}
	if size > 0 && e.opts.MaxUploadBytes > 0 && size > e.opts.MaxUploadBytes {
		return &ValidationError{Reason: fmt.Sprintf("upload exceeds the %d byte limit", e.opts.MaxUploadBytes)}
	}
	return nil
}

// Analyze runs one full pass over a capture: parse, aggregate, detect,
// assemble. It is synchronous and bounded by the worker pool; ctx
// cancellation stops the run at packet-record granularity. A parse
// failure aborts the whole run, while detector failures only suppress
// that detector's alerts.
func (e *Engine) Analyze(ctx context.Context, r io.Reader, filename string) (*models.AnalysisResult, error) {
	if !e.capability.Available {
		return nil, ErrUnavailable
	}
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer e.sem.Release(1)

	records, err := capture.Load(ctx, r, capture.Options{
		MaxPackets: e.opts.MaxPackets,
		MaxBytes:   e.opts.MaxUploadBytes,
	})
	if err != nil {
		return nil, err
	}

	traffic := analysis.Aggregate(records)
	alerts := detect.Run(ctx, records, e.opts.Detectors...)
	return analysis.Assemble(filename, traffic, alerts), nil
}

// Enrich runs the reputation collaborator over the alerts. It fails
// open: with no collaborator configured, or an unreachable one, the
// result is simply empty.
func (e *Engine) Enrich(ctx context.Context, alerts []models.Alert) map[string]models.ReputationResult {
	if e.opts.Reputation == nil {
		return map[string]models.ReputationResult{}
	}
	return e.opts.Reputation.Enrich(ctx, alerts)
}
