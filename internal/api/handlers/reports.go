package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/dvloznov/revenue-cohorts/internal/api/middleware"
	"github.com/dvloznov/revenue-cohorts/internal/compare"
	"github.com/dvloznov/revenue-cohorts/internal/heatmap"
	"github.com/dvloznov/revenue-cohorts/internal/period"
	"github.com/dvloznov/revenue-cohorts/internal/report"
	"github.com/rs/zerolog"
)

// ReportGenerator generates financial reports.
type ReportGenerator interface {
	Generate(ctx context.Context, req report.Request) (*report.Report, error)
}

// PeriodComparer compares two periods.
type PeriodComparer interface {
	Compare(ctx context.Context, tenantID, typ, token1, token2 string) (*compare.Comparison, error)
}

// ReportsHandler handles report, comparison and heatmap endpoints.
type ReportsHandler struct {
	reports  ReportGenerator
	comparer PeriodComparer
	log      zerolog.Logger
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(reports ReportGenerator, comparer PeriodComparer, log zerolog.Logger) *ReportsHandler {
	return &ReportsHandler{
		reports:  reports,
		comparer: comparer,
		log:      log,
	}
}

// FinancialReport handles GET /api/financial-report
func (h *ReportsHandler) FinancialReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := parseReportQuery(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.TenantID = middleware.GetTenantID(ctx)

	rep, err := h.reports.Generate(ctx, req)
	if err != nil {
		h.writeFailure(w, err, "Failed to generate report")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, rep)
}

// Compare handles GET /api/compare
func (h *ReportsHandler) Compare(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	cmp, err := h.comparer.Compare(ctx, middleware.GetTenantID(ctx), query.Get("type"), query.Get("period1"), query.Get("period2"))
	if err != nil {
		h.writeFailure(w, err, "Failed to compare periods")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, cmp)
}

// ColumnExtremes handles POST /api/heatmap/extremes
func (h *ReportsHandler) ColumnExtremes(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Matrix [][]int `json:"matrix"`
		Type   string  `json:"type"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if len(req.Matrix) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "matrix is required")
		return
	}
	mode, err := heatmap.ParseMode(req.Type)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	columns, err := heatmap.ColumnExtremes(req.Matrix, mode)
	if err != nil {
		h.writeFailure(w, err, "Failed to compute column extremes")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"type":    mode,
		"columns": columns,
	})
}

// writeFailure maps validation errors to 400 and anything else to 500 with
// the error message attached.
func (h *ReportsHandler) writeFailure(w http.ResponseWriter, err error, msg string) {
	var verr *period.ValidationError
	if errors.As(err, &verr) {
		middleware.WriteError(w, http.StatusBadRequest, verr.Message)
		return
	}
	h.log.Error().Err(err).Msg(msg)
	middleware.WriteError(w, http.StatusInternalServerError, msg+": "+err.Error())
}

// parseReportQuery reads type, year, month and quarter from the query string.
func parseReportQuery(r *http.Request) (report.Request, error) {
	query := r.URL.Query()
	req := report.Request{Type: query.Get("type")}

	var err error
	if req.Year, err = optionalInt(query.Get("year"), "year"); err != nil {
		return req, err
	}
	if req.Month, err = optionalInt(query.Get("month"), "month"); err != nil {
		return req, err
	}
	if req.Quarter, err = optionalInt(query.Get("quarter"), "quarter"); err != nil {
		return req, err
	}
	return req, nil
}

func optionalInt(s, field string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &period.ValidationError{Field: field, Message: field + " must be a number"}
	}
	return n, nil
}
