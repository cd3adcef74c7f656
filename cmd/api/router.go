package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/dvloznov/revenue-cohorts/internal/api/handlers"
	"github.com/dvloznov/revenue-cohorts/internal/api/middleware"
	"github.com/rs/zerolog"
)

// routes groups the handlers served by the API.
type routes struct {
	reports  *handlers.ReportsHandler
	exports  *handlers.ExportsHandler
	jobs     *handlers.JobsHandler
	apiToken string
}

// newRouter registers every endpoint and wraps the mux in the middleware
// chain.
func newRouter(rt routes, log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	// Report endpoints
	mux.Handle("/api/financial-report", middleware.Tenant(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			rt.reports.FinancialReport(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})))

	mux.Handle("/api/compare", middleware.Tenant(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			rt.reports.Compare(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})))

	mux.HandleFunc("/api/heatmap/extremes", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			rt.reports.ColumnExtremes(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Export endpoints
	mux.Handle("/api/reports/export", middleware.Tenant(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			rt.exports.EnqueueExport(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})))

	// Jobs endpoints
	mux.Handle("/api/jobs", middleware.Tenant(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			rt.jobs.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})))

	// Job lookups are tenant-scoped, so the tenant is checked before the
	// ID is parsed.
	mux.Handle("/api/jobs/", middleware.Tenant(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
		id, wantResult := strings.CutSuffix(jobID, "/result")
		if id == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
			return
		}
		if wantResult {
			rt.jobs.GetResult(w, r, id)
			return
		}
		rt.jobs.GetJob(w, r, id)
	})))

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return middleware.Recovery(log)(
		middleware.RequestID(
			middleware.Logger(log)(
				middleware.CORS(
					middleware.Auth(rt.apiToken)(mux),
				),
			),
		),
	)
}
