package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/defenselab/pcapwatch/analysis"
	"github.com/defenselab/pcapwatch/capture"
	"github.com/defenselab/pcapwatch/engine"
	"github.com/defenselab/pcapwatch/models"
	"github.com/defenselab/pcapwatch/pkg/config"
	"github.com/defenselab/pcapwatch/sse"
	"github.com/defenselab/pcapwatch/store"
)

const lastAnalysisKey = "last_analysis"

// Repo the repository used by the handlers
var Repo *Repository

// Repository is the repository type
type Repository struct {
	App      *config.AppConfig
	Engine   *engine.Engine
	Docs     *store.Documents
	Settings *store.Settings
	Events   *sse.Broadcaster
}

// NewRepo creates a new repository
func NewRepo(app *config.AppConfig, eng *engine.Engine, docs *store.Documents, settings *store.Settings, events *sse.Broadcaster) *Repository {
	return &Repository{
		App:      app,
		Engine:   eng,
		Docs:     docs,
		Settings: settings,
		Events:   events,
	}
}

// NewHandlers sets the repository for the handlers
func NewHandlers(r *Repository) {
	Repo = r
}

// Health is the readiness probe for the capture module. A missing
// parser reports a degraded status, never a failure.
func (m *Repository) Health(w http.ResponseWriter, r *http.Request) {
	capability := m.Engine.Capability()
	body := map[string]interface{}{
		"ok":               capability.Available,
		"module":           "pcap",
		"analyze_endpoint": "/pcap/analyze",
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
	}
	if !capability.Available {
		body["reason"] = capability.Reason
	}
	jsonResponse(w, http.StatusOK, body)
}

type analyzeResponse struct {
	models.AnalysisResult
	Threats models.ThreatsDocument `json:"threats"`
}

// Analyze accepts a capture upload, runs the engine over it, persists
// the resulting documents best-effort and returns the analysis.
func (m *Repository) Analyze(w http.ResponseWriter, r *http.Request) {
	if m.App.MaxUploadBytes > 0 {
		// headroom for the multipart framing around the capture itself
		r.Body = http.MaxBytesReader(w, r.Body, m.App.MaxUploadBytes+1<<20)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "expected a multipart upload with a 'file' field")
		return
	}
	defer file.Close()

	if err := m.Engine.ValidateUpload(header.Filename, header.Size); err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := m.Engine.Analyze(r.Context(), file, header.Filename)
	if err != nil {
		m.analyzeError(w, err)
		return
	}

	reputations := m.Engine.Enrich(r.Context(), result.Alerts)
	now := time.Now().UTC()
	analysisDoc := analysis.NewAnalysisDocument(result, now)
	threatsDoc := analysis.NewThreatsDocument(result, reputations, now)

	if _, err := m.Docs.SaveAnalysis(r.Context(), analysisDoc); err != nil {
		log.Printf("saving analysis document for %s: %v", header.Filename, err)
	}
	if _, err := m.Docs.SaveThreats(r.Context(), threatsDoc); err != nil {
		log.Printf("saving threats document for %s: %v", header.Filename, err)
	}
	config.Handle(m.Settings.Update(lastAnalysisKey, header.Filename), "recording last analysis", false)

	m.Events.Broadcast("analysis-complete", map[string]interface{}{
		"filename":     header.Filename,
		"alerts":       len(result.Alerts),
		"threat_level": threatsDoc.ThreatSummary.OverallThreatLevel,
	})

	jsonResponse(w, http.StatusOK, analyzeResponse{
		AnalysisResult: *result,
		Threats:        threatsDoc,
	})
}

// analyzeError surfaces the error category without leaking internal
// diagnostic detail.
func (m *Repository) analyzeError(w http.ResponseWriter, err error) {
	var validationErr *engine.ValidationError
	var formatErr *capture.FormatError
	var truncatedErr *capture.TruncatedError
	var limitErr *capture.LimitError

	switch {
	case errors.As(err, &validationErr):
		errorResponse(w, http.StatusBadRequest, validationErr.Error())
	case errors.Is(err, engine.ErrUnavailable):
		errorResponse(w, http.StatusServiceUnavailable, "PCAP analysis unavailable: capture parser missing from this process")
	case errors.As(err, &truncatedErr):
		errorResponse(w, http.StatusUnprocessableEntity, "capture file is truncated")
	case errors.As(err, &formatErr):
		errorResponse(w, http.StatusUnprocessableEntity, "unrecognized or corrupt capture file")
	case errors.As(err, &limitErr):
		errorResponse(w, http.StatusRequestEntityTooLarge, "capture exceeds the configured analysis limits")
	default:
		log.Printf("analysis failed: %v", err)
		errorResponse(w, http.StatusInternalServerError, "error analyzing file")
	}
}

// RecentAnalyses returns the latest analyses documents.
func (m *Repository) RecentAnalyses(w http.ResponseWriter, r *http.Request) {
	docs, err := m.Docs.RecentAnalyses(r.Context(), limitParam(r, 10))
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "error reading analyses")
		return
	}
	if docs == nil {
		docs = []models.AnalysisDocument{}
	}
	jsonResponse(w, http.StatusOK, docs)
}

// RecentThreats returns the latest threats documents.
func (m *Repository) RecentThreats(w http.ResponseWriter, r *http.Request) {
	docs, err := m.Docs.RecentThreats(r.Context(), limitParam(r, 10))
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "error reading threats")
		return
	}
	if docs == nil {
		docs = []models.ThreatsDocument{}
	}
	jsonResponse(w, http.StatusOK, docs)
}

// HighThreats returns every high-severity threats document.
func (m *Repository) HighThreats(w http.ResponseWriter, r *http.Request) {
	docs, err := m.Docs.HighThreats(r.Context())
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "error reading threats")
		return
	}
	if docs == nil {
		docs = []models.ThreatsDocument{}
	}
	jsonResponse(w, http.StatusOK, docs)
}

// AnalysisByFile returns the latest analyses document for one filename.
func (m *Repository) AnalysisByFile(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		errorResponse(w, http.StatusBadRequest, "expected a 'name' query parameter")
		return
	}
	doc, err := m.Docs.AnalysisByFilename(r.Context(), name)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "error reading analyses")
		return
	}
	if doc == nil {
		errorResponse(w, http.StatusNotFound, "no analysis recorded for that file")
		return
	}
	jsonResponse(w, http.StatusOK, doc)
}

// Stats reports document counts plus the last analyzed filename.
func (m *Repository) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := m.Docs.Stats(r.Context())
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "error reading stats")
		return
	}
	last, err := m.Settings.Search(lastAnalysisKey)
	config.Handle(err, "reading last analysis", false)
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"total_analyses":        stats.TotalAnalyses,
		"total_threats":         stats.TotalThreats,
		"high_severity_threats": stats.HighSeverityThreats,
		"last_analysis":         last,
	})
}

// EventStream streams completed-analysis notifications to the dashboard.
func (m *Repository) EventStream(w http.ResponseWriter, r *http.Request) {
	m.Events.ServeHTTP(w, r)
}

func limitParam(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func jsonResponse(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("writing response: %v", err)
	}
}

func errorResponse(w http.ResponseWriter, status int, msg string) {
	jsonResponse(w, status, map[string]string{"error": msg})
}
