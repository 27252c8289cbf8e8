// Package api exposes the dashboard, report and rule endpoints over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/opensource-finance/harrier/internal/alerts"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/metrics"
	"github.com/opensource-finance/harrier/internal/pipeline"
	"github.com/opensource-finance/harrier/internal/report"
	"github.com/opensource-finance/harrier/internal/worker"
)

// Deps are the collaborators of the API. Repo, Cache, Bus and Metrics may be nil.
type Deps struct {
	Pipeline *pipeline.Service
	Reports  *report.Dispatcher
	Repo     domain.Repository
	Cache    domain.Cache
	Bus      domain.EventBus
	Metrics  *metrics.Collector
	Version  string

	// AsyncReports lets POST /reports?async=true hand requests to the report worker
	AsyncReports bool
}

// Handler holds dependencies for API handlers.
type Handler struct {
	pipeline     *pipeline.Service
	reports      *report.Dispatcher
	repo         domain.Repository
	cache        domain.Cache
	bus          domain.EventBus
	version      string
	asyncReports bool
}

// NewHandler creates a new API handler.
func NewHandler(deps Deps) *Handler {
	return &Handler{
		pipeline:     deps.Pipeline,
		reports:      deps.Reports,
		repo:         deps.Repo,
		cache:        deps.Cache,
		bus:          deps.Bus,
		version:      deps.Version,
		asyncReports: deps.AsyncReports && deps.Bus != nil,
	}
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(ctx); err != nil {
			slog.Warn("repository ping failed", "error", err)
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			slog.Warn("cache ping failed", "error", err)
			status = "degraded"
		}
	}
	if h.bus != nil {
		if err := h.bus.Ping(ctx); err != nil {
			slog.Warn("event bus ping failed", "error", err)
			status = "degraded"
		}
	}

	snap := h.pipeline.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   status,
		"version":  h.version,
		"records":  snap.Len(),
		"loadedAt": snap.LoadedAt(),
		"rules":    h.pipeline.Engine().RulesCount(),
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// Filters returns the values available for filtering.
func (h *Handler) Filters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.pipeline.Options())
}

// Dashboard returns KPIs, chart tables and the top alerts for the filter.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, err := parseFilter(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	highRisk, err := parseBool(q, "high_risk")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	d, err := h.pipeline.Run(r.Context(), filter, alerts.Options{
		HighRiskOnly: highRisk,
		Limit:        alerts.DashboardLimit,
	})
	if err != nil {
		slog.Error("dashboard computation failed", "trace_id", GetTraceID(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute dashboard")
		return
	}

	writeJSON(w, http.StatusOK, d)
}

// KPIs returns the KPI bundle and indeterminate counts for the filter.
func (h *Handler) KPIs(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	k, ind := h.pipeline.KPIs(r.Context(), filter)
	writeJSON(w, http.StatusOK, map[string]any{
		"kpis":          k,
		"indeterminate": ind,
	})
}

// Charts returns the five chart tables for the filter.
func (h *Handler) Charts(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, h.pipeline.Charts(r.Context(), filter))
}

// Alerts returns the ranked alerts for the filter.
func (h *Handler) Alerts(w http.ResponseWriter, r *http.Request) {
	all, limit, ok := h.selectAlerts(w, r)
	if !ok {
		return
	}

	shown := all
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"alerts":   shown,
		"count":    len(shown),
		"total":    len(all),
		"highRisk": alerts.HighRiskCount(all),
	})
}

// AlertsCSV exports the ranked alerts as a CSV attachment.
func (h *Handler) AlertsCSV(w http.ResponseWriter, r *http.Request) {
	all, limit, ok := h.selectAlerts(w, r)
	if !ok {
		return
	}
	if r.URL.Query().Get("limit") == "" {
		limit = 0
	}
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+report.AttachmentName(time.Now())+`"`)
	w.WriteHeader(http.StatusOK)
	if err := report.WriteAlertsCSV(w, all); err != nil {
		slog.Error("failed to write alert export", "error", err)
	}
}

func (h *Handler) selectAlerts(w http.ResponseWriter, r *http.Request) ([]domain.Alert, int, bool) {
	q := r.URL.Query()
	filter, err := parseFilter(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, 0, false
	}
	highRisk, err := parseBool(q, "high_risk")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, 0, false
	}
	limit, err := parseLimit(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, 0, false
	}

	all, err := h.pipeline.Alerts(r.Context(), filter, alerts.Options{HighRiskOnly: highRisk})
	if err != nil {
		slog.Error("alert selection failed", "trace_id", GetTraceID(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "failed to select alerts")
		return nil, 0, false
	}
	return all, limit, true
}

// PreviewReport returns the summary a report for the filter would carry.
func (h *Handler) PreviewReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, err := parseFilter(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	highRisk, err := parseBool(q, "high_risk")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := h.reports.Preview(r.Context(), filter, highRisk)
	if err != nil {
		slog.Error("report preview failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build report preview")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// SendReportRequest is the request body for POST /reports.
type SendReportRequest struct {
	Recipients   []string `json:"recipients"`
	Subject      string   `json:"subject,omitempty"`
	AttachCSV    *bool    `json:"attachCsv,omitempty"`
	HighRiskOnly bool     `json:"highRiskOnly,omitempty"`
	Start        string   `json:"start,omitempty"`
	End          string   `json:"end,omitempty"`
	Countries    []string `json:"countries,omitempty"`
	Categories   []string `json:"categories,omitempty"`
}

// SendReport dispatches an e-mail report. The dispatch result is returned
// whether or not delivery succeeded.
func (h *Handler) SendReport(w http.ResponseWriter, r *http.Request) {
	var body SendReportRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	filter, err := buildFilter(body.Start, body.End, body.Countries, body.Categories)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	req := domain.ReportRequest{
		Recipients:   body.Recipients,
		Subject:      body.Subject,
		AttachCSV:    body.AttachCSV,
		HighRiskOnly: body.HighRiskOnly,
		Filter:       filter,
	}

	async, err := parseBool(r.URL.Query(), "async")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if async {
		if !h.asyncReports {
			writeError(w, http.StatusServiceUnavailable, "report worker not enabled")
			return
		}
		if err := worker.Enqueue(r.Context(), h.bus, req); err != nil {
			slog.Error("failed to enqueue report request", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to enqueue report request")
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{
			"status": "queued",
		})
		return
	}

	writeJSON(w, http.StatusOK, h.reports.Send(r.Context(), req))
}

// GetReport returns a stored dispatch result.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, err := h.reports.Result(r.Context(), id)
	if errors.Is(err, report.ErrResultNotFound) {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}
	if err != nil {
		slog.Error("failed to get report", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get report")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ListRules returns the risk rules loaded in the engine.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	engine := h.pipeline.Engine()
	loaded := engine.GetLoadedRules()

	writeJSON(w, http.StatusOK, map[string]any{
		"rules":    loaded,
		"count":    len(loaded),
		"maxScore": engine.MaxScore(),
	})
}

// GetRule retrieves a loaded rule by ID.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	for _, rule := range h.pipeline.Engine().GetLoadedRules() {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeError(w, http.StatusNotFound, "rule not found")
}

// CreateRuleRequest is the request body for creating a rule.
type CreateRuleRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Expression  string `json:"expression"`
	Weight      int    `json:"weight"`
	Enabled     bool   `json:"enabled"`
}

// CreateRule validates a rule and saves it to the repository.
// Call POST /rules/reload to apply saved rules.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "repository not available")
		return
	}

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	if strings.TrimSpace(req.ID) == "" || strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Expression) == "" {
		writeError(w, http.StatusBadRequest, "id, name, and expression are required")
		return
	}

	rule := &domain.RiskRule{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1.0.0",
		Expression:  req.Expression,
		Weight:      req.Weight,
		Enabled:     req.Enabled,
	}

	if err := h.pipeline.Engine().ValidateRule(rule); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.repo.SaveRiskRule(r.Context(), rule); err != nil {
		slog.Error("failed to save risk rule", "id", rule.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save rule")
		return
	}

	slog.Info("risk rule saved", "id", rule.ID, "weight", rule.Weight)
	writeJSON(w, http.StatusCreated, map[string]any{
		"rule":    rule,
		"message": "Rule saved. Call POST /rules/reload to apply changes.",
	})
}

// ReloadRules replaces the engine's rules with those in the repository.
// On failure the previous rules stay active.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "repository not available")
		return
	}

	stored, err := h.repo.ListRiskRules(r.Context())
	if err != nil {
		slog.Error("failed to list risk rules", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load rules from repository")
		return
	}

	if err := h.pipeline.ReloadRules(stored); err != nil {
		slog.Error("failed to reload risk rules", "error", err)
		writeError(w, http.StatusBadRequest, "failed to reload rules: "+err.Error())
		return
	}

	count := h.pipeline.Engine().RulesCount()
	slog.Info("risk rules reloaded", "count", count)
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "rules reloaded successfully",
		"count":    count,
		"maxScore": h.pipeline.Engine().MaxScore(),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{
		"error": msg,
	})
}
