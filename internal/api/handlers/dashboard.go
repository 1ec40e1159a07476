package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/wonny/findash/internal/alert"
	"github.com/wonny/findash/internal/cache"
	"github.com/wonny/findash/internal/contracts"
	"github.com/wonny/findash/internal/correlation"
	"github.com/wonny/findash/internal/dashboard"
	"github.com/wonny/findash/internal/dashboardconfig"
	"github.com/wonny/findash/internal/export"
	"github.com/wonny/findash/internal/kpi"
	"github.com/wonny/findash/internal/pipeline"
	"github.com/wonny/findash/internal/report"
	"github.com/wonny/findash/pkg/logger"
)

// DashboardService is what the dashboard endpoints read from
type DashboardService interface {
	Snapshot(ctx context.Context, filters pipeline.Filters) *dashboard.Snapshot
	Refresh(ctx context.Context) *dashboard.Snapshot
	Config() *dashboardconfig.Config
	ConfigHash() string
	CacheStats() cache.Stats
}

// DashboardHandler handles dashboard API endpoints
// ⭐ SSOT: 대시보드 API 핸들러는 이 구조체에서만
type DashboardHandler struct {
	service  DashboardService
	validate *validator.Validate
	logger   *logger.Logger
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(service DashboardService, log *logger.Logger) *DashboardHandler {
	return &DashboardHandler{
		service:  service,
		validate: NewValidator(),
		logger:   log.Component("api"),
	}
}

// snapshot parses the query and runs the pipeline; false means a response was already written
func (h *DashboardHandler) snapshot(w http.ResponseWriter, r *http.Request) (*dashboard.Snapshot, bool) {
	q := ParseDashboardQuery(r.URL.Query())
	if fields := q.Validate(h.validate); len(fields) > 0 {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:  "invalid query parameters",
			Kind:   "invalid_request",
			Fields: fields,
		})
		return nil, false
	}

	filters, err := q.Filters(h.service.Config())
	if err != nil {
		respondErr(w, err)
		return nil, false
	}

	return h.service.Snapshot(r.Context(), filters), true
}

// GetDashboard returns every derived view
// GET /api/dashboard?assets=&category=&start=&end=
// A halted run is answered with 503 and the same body.
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	status := http.StatusOK
	if snap.Halted() {
		status = StatusFor(snap.Err)
	}
	respondJSON(w, status, snap)
}

// AlertsResponse is the alert panel
type AlertsResponse struct {
	RunID       string            `json:"run_id"`
	GeneratedAt time.Time         `json:"generated_at"`
	Alerts      []contracts.Alert `json:"alerts"`
	Thresholds  []alert.Threshold `json:"thresholds"`
}

// GetAlerts returns the current alert of every monitored subject and its bands.
// Alerts never depend on the selection, so unavailable subjects still answer 200.
// GET /api/alerts
func (h *DashboardHandler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	snap := h.service.Snapshot(r.Context(), pipeline.Filters{})
	respondJSON(w, http.StatusOK, AlertsResponse{
		RunID:       snap.RunID,
		GeneratedAt: snap.GeneratedAt,
		Alerts:      snap.Alerts,
		Thresholds:  snap.Thresholds,
	})
}

// KPIsResponse is the KPI row
type KPIsResponse struct {
	RunID string                       `json:"run_id"`
	KPIs  []contracts.Result[kpi.Card] `json:"kpis"`
}

// GetKPIs returns the KPI cards; failing cards are N/A placeholders
// GET /api/kpis
func (h *DashboardHandler) GetKPIs(w http.ResponseWriter, r *http.Request) {
	snap := h.service.Snapshot(r.Context(), pipeline.Filters{})
	respondJSON(w, http.StatusOK, KPIsResponse{RunID: snap.RunID, KPIs: snap.KPIs})
}

// CorrelationResponse is the correlation heatmap and its ranked pairs
type CorrelationResponse struct {
	RunID  string             `json:"run_id"`
	Matrix correlation.Matrix `json:"matrix"`
	Pairs  []correlation.Pair `json:"pairs"`
}

// GetCorrelation returns the correlation of the selected assets' returns
// GET /api/correlation?assets=&category=&start=&end=
func (h *DashboardHandler) GetCorrelation(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	m, err := snap.Correlation.Get()
	if err != nil {
		respondErr(w, err)
		return
	}
	pairs := m.Pairs()
	if pairs == nil {
		pairs = []correlation.Pair{}
	}
	respondJSON(w, http.StatusOK, CorrelationResponse{RunID: snap.RunID, Matrix: m, Pairs: pairs})
}

// GetPricesTail returns the last rows of the selected price columns
// GET /api/prices/tail?assets=&category=
func (h *DashboardHandler) GetPricesTail(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	t, err := snap.Tail.Get()
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

// ConfigResponse is the active dashboard definition
type ConfigResponse struct {
	Hash     string                    `json:"hash"`
	Config   *dashboardconfig.Config   `json:"config"`
	Warnings []dashboardconfig.Warning `json:"warnings"`
}

// GetConfig returns the dashboard definition
// GET /api/config
func (h *DashboardHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg := h.service.Config()
	warnings := dashboardconfig.Warn(cfg)
	if warnings == nil {
		warnings = []dashboardconfig.Warning{}
	}
	respondJSON(w, http.StatusOK, ConfigResponse{
		Hash:     h.service.ConfigHash(),
		Config:   cfg,
		Warnings: warnings,
	})
}

// GetCache returns the series cache entries and counters
// GET /api/cache
func (h *DashboardHandler) GetCache(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.service.CacheStats())
}

// RefreshResponse summarises a forced refresh
type RefreshResponse struct {
	RunID       string          `json:"run_id"`
	Status      pipeline.Status `json:"status"`
	FetchedAt   time.Time       `json:"fetched_at"`
	Diagnostics []string        `json:"diagnostics"`
}

// Refresh drops the cached prices and fetches them again
// POST /api/cache/refresh
func (h *DashboardHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	snap := h.service.Refresh(r.Context())

	h.logger.WithFields(map[string]interface{}{
		"run_id": snap.RunID,
		"status": snap.Status,
	}).Info("Cache refreshed on request")

	status := http.StatusOK
	if snap.Halted() {
		status = StatusFor(snap.Err)
	}
	diags := snap.Diagnostics
	if diags == nil {
		diags = []string{}
	}
	respondJSON(w, status, RefreshResponse{
		RunID:       snap.RunID,
		Status:      snap.Status,
		FetchedAt:   snap.FetchedAt,
		Diagnostics: diags,
	})
}

// GetReport returns the snapshot as a markdown document
// GET /api/report.md?assets=&category=&start=&end=
func (h *DashboardHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, report.Markdown(snap))
}

// Export returns the snapshot as an xlsx workbook
// GET /api/export.xlsx?assets=&category=&start=&end=
func (h *DashboardHandler) Export(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	f, err := export.Workbook(snap)
	if err != nil {
		h.logger.WithError(err).Error("Failed to build workbook")
		respondError(w, http.StatusInternalServerError, "Failed to build workbook")
		return
	}
	defer f.Close()

	name := fmt.Sprintf("%s_%s.xlsx", snap.DashboardID, snap.GeneratedAt.UTC().Format("20060102_150405"))
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	if err := f.Write(w); err != nil {
		h.logger.WithError(err).Warn("Failed to stream workbook")
	}
}
