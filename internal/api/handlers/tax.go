package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/fop-tax-tracker/internal/api/middleware"
	"github.com/dvloznov/fop-tax-tracker/internal/domain"
	"github.com/dvloznov/fop-tax-tracker/internal/pipeline"
	"github.com/dvloznov/fop-tax-tracker/internal/snapshot"
	"github.com/dvloznov/fop-tax-tracker/internal/tax"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// TaxHandler handles tax report endpoints.
type TaxHandler struct {
	store snapshot.Store
	cfg   pipeline.ReportConfig
	now   func() time.Time
	log   zerolog.Logger
}

// NewTaxHandler creates a new tax handler. cfg is the configured regime;
// requests may override parts of it.
func NewTaxHandler(store snapshot.Store, cfg pipeline.ReportConfig, now func() time.Time, log zerolog.Logger) *TaxHandler {
	if now == nil {
		now = time.Now
	}
	return &TaxHandler{
		store: store,
		cfg:   cfg,
		now:   now,
		log:   log,
	}
}

// ReportRequest is the body of POST /api/tax/report. Unset overrides keep
// the configured values.
type ReportRequest struct {
	Transactions []domain.Transaction `json:"transactions"`
	Rates        tax.Rates            `json:"rates"`

	Group             *int             `json:"group,omitempty"`
	VATPayer          *bool            `json:"vat_payer,omitempty"`
	AccountCurrency   string           `json:"account_currency,omitempty"`
	DisabledQuarters  []domain.Quarter `json:"disabled_quarters,omitempty"`
	ClosedPeriodsOnly *bool            `json:"closed_periods_only,omitempty"`
}

// reportConfig applies the overrides of req to the configured regime.
func (h *TaxHandler) reportConfig(req ReportRequest) (pipeline.ReportConfig, error) {
	cfg := h.cfg
	group := cfg.Group

	if req.Group != nil && domain.TaxGroup(*req.Group) != group.Group {
		fresh, err := domain.DefaultTaxGroupConfig(domain.TaxGroup(*req.Group))
		if err != nil {
			return cfg, err
		}
		fresh.VATPayer = group.VATPayer
		fresh.AccountCurrency = group.AccountCurrency
		fresh.DisabledQuarters = group.DisabledQuarters
		group = fresh
	}
	if req.VATPayer != nil {
		group.VATPayer = *req.VATPayer
	}
	if req.AccountCurrency != "" {
		group.AccountCurrency = strings.ToUpper(req.AccountCurrency)
	}
	if req.DisabledQuarters != nil {
		group.DisabledQuarters = req.DisabledQuarters
	}
	if req.ClosedPeriodsOnly != nil {
		cfg.ClosedPeriodsOnly = *req.ClosedPeriodsOnly
	}

	cfg.Group = group
	return cfg, nil
}

// ComputeReport handles POST /api/tax/report
func (h *TaxHandler) ComputeReport(w http.ResponseWriter, r *http.Request) {
	var req ReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	cfg, err := h.reportConfig(req)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := pipeline.ComputeReport(r.Context(), req.Transactions, req.Rates, cfg, h.now())
	if err != nil {
		h.writeReportError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, report)
}

// YearReport handles GET /api/tax/{year}
// The report is computed from the live-feed snapshot of the year.
func (h *TaxHandler) YearReport(w http.ResponseWriter, r *http.Request) {
	year, err := parseYear(chi.URLParam(r, "year"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := pipeline.LiveFeedReport(r.Context(), h.store, h.cfg, year, h.now())
	if err != nil {
		h.writeReportError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, report)
}

func (h *TaxHandler) writeReportError(w http.ResponseWriter, err error) {
	if unprocessable(err) {
		middleware.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.log.Error().Err(err).Msg("Failed to compute tax report")
	middleware.WriteError(w, http.StatusInternalServerError, "Failed to compute tax report")
}

func parseYear(s string) (int, error) {
	year, err := strconv.Atoi(s)
	if err != nil || year < 2000 || year > 2100 {
		return 0, badRequest("year must be a four-digit year")
	}
	return year, nil
}
