package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/dennisdiepolder/monti/acw/internal/ingestion"
	"github.com/dennisdiepolder/monti/acw/internal/report"
	"github.com/dennisdiepolder/monti/acw/internal/types"
	"github.com/rs/zerolog"
)

// Broadcaster pushes a fresh report to connected dashboards
type Broadcaster interface {
	BroadcastReport(rep *types.Report) error
}

// ReportHandler provides REST endpoints for ACW reports
type ReportHandler struct {
	source         ingestion.RecordSource
	sourceName     string
	broadcaster    Broadcaster
	maxUploadBytes int64
	logger         zerolog.Logger
	baseLogger     zerolog.Logger

	mu     sync.RWMutex
	latest *types.Report
}

// NewReportHandler creates a ReportHandler. source backs the refresh
// endpoint; broadcaster may be nil.
func NewReportHandler(source ingestion.RecordSource, sourceName string, broadcaster Broadcaster, maxUploadBytes int64, logger zerolog.Logger) *ReportHandler {
	return &ReportHandler{
		source:         source,
		sourceName:     sourceName,
		broadcaster:    broadcaster,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With().Str("component", "report_handler").Logger(),
		baseLogger:     logger,
	}
}

// Create builds a report from the CSV transaction log in the request body
// POST /api/reports
func (h *ReportHandler) Create(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	defer body.Close()

	records, err := ingestion.ReadCSV(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "transaction log too large", http.StatusRequestEntityTooLarge)
			return
		}
		h.logger.Warn().Err(err).Msg("rejected transaction log upload")
		http.Error(w, "invalid transaction log: "+err.Error(), http.StatusBadRequest)
		return
	}

	rep, err := report.NewBuilder(ingestion.StaticSource(records), "upload", h.baseLogger).Build(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to build report")
		http.Error(w, "failed to build report", http.StatusInternalServerError)
		return
	}

	h.publish(rep)
	writeJSON(w, http.StatusCreated, rep)
}

// Refresh rebuilds the latest report from the configured record source
// POST /api/reports/refresh
func (h *ReportHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Rebuild(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Str("source", h.sourceName).Msg("failed to refresh report")
		http.Error(w, "failed to refresh report", http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, rep)
}

// Rebuild builds a report from the configured record source and publishes
// it as the latest
func (h *ReportHandler) Rebuild(ctx context.Context) (*types.Report, error) {
	rep, err := report.NewBuilder(h.source, h.sourceName, h.baseLogger).Build(ctx)
	if err != nil {
		return nil, err
	}

	h.publish(rep)
	return rep, nil
}

// Latest returns the most recent report
// GET /api/reports/latest
func (h *ReportHandler) Latest(w http.ResponseWriter, r *http.Request) {
	rep := h.Current()
	if rep == nil {
		http.Error(w, "no report available", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// LatestSlots returns the slots of the latest report for one day
// GET /api/reports/latest/slots?date=YYYY-MM-DD
func (h *ReportHandler) LatestSlots(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		http.Error(w, "date query parameter is required (YYYY-MM-DD)", http.StatusBadRequest)
		return
	}

	rep := h.Current()
	if rep == nil {
		http.Error(w, "no report available", http.StatusNotFound)
		return
	}

	agents := rep.Slots.Agents(date)
	slots := make([]types.AgentSlot, 0, len(agents))
	for _, agentID := range agents {
		slots = append(slots, types.AgentSlot{
			Date:           date,
			AgentID:        agentID,
			DailyAgentSlot: *rep.Slots.Slot(date, agentID),
		})
	}

	writeJSON(w, http.StatusOK, slots)
}

// Current returns the latest report, or nil before the first build
func (h *ReportHandler) Current() *types.Report {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest
}

// Store replaces the latest report without broadcasting it
func (h *ReportHandler) Store(rep *types.Report) {
	h.mu.Lock()
	h.latest = rep
	h.mu.Unlock()
}

func (h *ReportHandler) publish(rep *types.Report) {
	h.Store(rep)

	if h.broadcaster == nil {
		return
	}
	if err := h.broadcaster.BroadcastReport(rep); err != nil {
		h.logger.Error().Err(err).Str("run_id", rep.RunID).Msg("failed to broadcast report")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
