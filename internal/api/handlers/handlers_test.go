package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dvloznov/revenue-cohorts/internal/api/middleware"
	"github.com/dvloznov/revenue-cohorts/internal/compare"
	"github.com/dvloznov/revenue-cohorts/internal/jobs"
	"github.com/dvloznov/revenue-cohorts/internal/jobs/inmemory"
	"github.com/dvloznov/revenue-cohorts/internal/metrics"
	"github.com/dvloznov/revenue-cohorts/internal/period"
	"github.com/dvloznov/revenue-cohorts/internal/report"
	"github.com/rs/zerolog"
)

// mockGenerator is a mock implementation of ReportGenerator for testing.
type mockGenerator struct {
	GenerateFunc func(ctx context.Context, req report.Request) (*report.Report, error)
}

func (m *mockGenerator) Generate(ctx context.Context, req report.Request) (*report.Report, error) {
	return m.GenerateFunc(ctx, req)
}

// mockComparer is a mock implementation of PeriodComparer for testing.
type mockComparer struct {
	CompareFunc func(ctx context.Context, tenantID, typ, token1, token2 string) (*compare.Comparison, error)
}

func (m *mockComparer) Compare(ctx context.Context, tenantID, typ, token1, token2 string) (*compare.Comparison, error) {
	return m.CompareFunc(ctx, tenantID, typ, token1, token2)
}

// mockPublisher is a mock implementation of jobs.Publisher for testing.
type mockPublisher struct {
	PublishFunc func(ctx context.Context, job *jobs.ExportReportJob) error
}

func (m *mockPublisher) PublishExportReport(ctx context.Context, job *jobs.ExportReportJob) error {
	return m.PublishFunc(ctx, job)
}

func (m *mockPublisher) Close() error { return nil }

// withTenant runs the request through the tenant middleware first.
func withTenant(h http.HandlerFunc) http.Handler {
	return middleware.Tenant(h)
}

func TestFinancialReport(t *testing.T) {
	gen := &mockGenerator{
		GenerateFunc: func(ctx context.Context, req report.Request) (*report.Report, error) {
			if _, err := req.Spec(); err != nil {
				return nil, err
			}
			return &report.Report{
				TenantID: req.TenantID,
				Summary:  report.Summary{Result: metrics.Result{CohortLabel: "Mar 24", NetRevenue: 1150}},
			}, nil
		},
	}
	h := NewReportsHandler(gen, nil, zerolog.Nop())

	tests := []struct {
		name       string
		url        string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"month", "/api/financial-report?type=month&year=2024&month=3&tenantId=t1", "", http.StatusOK, `"cohortLabel":"Mar 24"`},
		{"tenant header", "/api/financial-report?type=year&year=2024", "t2", http.StatusOK, `"tenantId":"t2"`},
		{"missing tenant", "/api/financial-report?type=year&year=2024", "", http.StatusBadRequest, "tenantId is required"},
		{"year not a number", "/api/financial-report?type=year&year=abc&tenantId=t1", "", http.StatusBadRequest, "year must be a number"},
		{"missing year", "/api/financial-report?type=year&tenantId=t1", "", http.StatusBadRequest, "year is required"},
		{"bad type", "/api/financial-report?type=week&year=2024&tenantId=t1", "", http.StatusBadRequest, "type must be one of"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			if tt.header != "" {
				req.Header.Set("X-Tenant-ID", tt.header)
			}
			rec := httptest.NewRecorder()

			withTenant(h.FinancialReport).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %s, want it to contain %s", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestFinancialReport_InternalError(t *testing.T) {
	gen := &mockGenerator{
		GenerateFunc: func(ctx context.Context, req report.Request) (*report.Report, error) {
			return nil, errors.New("store exploded")
		},
	}
	h := NewReportsHandler(gen, nil, zerolog.Nop())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/financial-report?type=year&year=2024&tenantId=t1", nil)
	withTenant(h.FinancialReport).ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "store exploded") {
		t.Errorf("body = %s, want the underlying message", rec.Body.String())
	}
}

func TestCompare(t *testing.T) {
	cmp := &mockComparer{
		CompareFunc: func(ctx context.Context, tenantID, typ, token1, token2 string) (*compare.Comparison, error) {
			if typ != "year" {
				return nil, &period.ValidationError{Field: "type", Message: "type must be one of month, quarter, year"}
			}
			return &compare.Comparison{
				Type:       period.Year,
				Difference: compare.Difference{NetRevenue: 10},
			}, nil
		},
	}
	h := NewReportsHandler(nil, cmp, zerolog.Nop())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/compare?type=year&period1=2022&period2=2023&tenantId=t1", nil)
	withTenant(h.Compare).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body compare.Comparison
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Difference.NetRevenue != 10 {
		t.Errorf("difference = %+v", body.Difference)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/compare?type=day&tenantId=t1", nil)
	withTenant(h.Compare).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestColumnExtremes(t *testing.T) {
	h := NewReportsHandler(nil, nil, zerolog.Nop())

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{"top", `{"matrix":[[100,50],[200,100]],"type":"top"}`, http.StatusOK, `"columns":[{"column":0,"cells":[{"row":1,"value":200}]}`},
		{"missing matrix", `{"type":"top"}`, http.StatusBadRequest, "matrix is required"},
		{"missing type", `{"matrix":[[100]]}`, http.StatusBadRequest, "type is required"},
		{"not square", `{"matrix":[[100,1]],"type":"low"}`, http.StatusBadRequest, "matrix must be square"},
		{"bad json", `{`, http.StatusBadRequest, "Invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/heatmap/extremes", strings.NewReader(tt.body))

			h.ColumnExtremes(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %s, want it to contain %s", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestEnqueueExport(t *testing.T) {
	var published *jobs.ExportReportJob
	pub := &mockPublisher{
		PublishFunc: func(ctx context.Context, job *jobs.ExportReportJob) error {
			job.JobID = "job-1"
			job.Status = jobs.JobStatusPending
			published = job
			return nil
		},
	}
	h := NewExportsHandler(pub, true, zerolog.Nop())

	body := bytes.NewBufferString(`{"type":"quarter","year":2024,"quarter":2}`)
	req := httptest.NewRequest(http.MethodPost, "/api/reports/export", body)
	req.Header.Set("X-Tenant-ID", "t1")
	rec := httptest.NewRecorder()

	withTenant(h.EnqueueExport).ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (body %s)", rec.Code, rec.Body.String())
	}
	if published == nil || published.TenantID != "t1" || published.Request.TenantID != "t1" || published.Request.Quarter != 2 {
		t.Errorf("published = %+v", published)
	}
	if !strings.Contains(rec.Body.String(), `"job_id":"job-1"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestEnqueueExport_Rejections(t *testing.T) {
	failing := &mockPublisher{PublishFunc: func(ctx context.Context, job *jobs.ExportReportJob) error {
		return errors.New("queue is closed")
	}}

	tests := []struct {
		name       string
		enabled    bool
		body       string
		wantStatus int
	}{
		{"disabled", false, `{"type":"year","year":2024}`, http.StatusServiceUnavailable},
		{"invalid period", true, `{"type":"month","year":2024,"month":13}`, http.StatusBadRequest},
		{"bad json", true, `nope`, http.StatusBadRequest},
		{"publish fails", true, `{"type":"year","year":2024}`, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewExportsHandler(failing, tt.enabled, zerolog.Nop())
			req := httptest.NewRequest(http.MethodPost, "/api/reports/export?tenantId=t1", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			withTenant(h.EnqueueExport).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestJobsHandler(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewStore()
	for _, j := range []*jobs.ExportReportJob{
		{JobID: "a", TenantID: "t1", Status: jobs.JobStatusCompleted, CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{JobID: "b", TenantID: "t2", Status: jobs.JobStatusPending, CreatedAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
	} {
		if err := store.SaveJob(ctx, j); err != nil {
			t.Fatalf("SaveJob() error: %v", err)
		}
	}
	h := NewJobsHandler(store, zerolog.Nop())

	getJob := func(w http.ResponseWriter, r *http.Request) {
		h.GetJob(w, r, strings.TrimPrefix(r.URL.Path, "/api/jobs/"))
	}

	tests := []struct {
		name       string
		handler    http.HandlerFunc
		url        string
		wantStatus int
		wantBody   string
	}{
		{"list own jobs", h.ListJobs, "/api/jobs?tenantId=t1", http.StatusOK, `"count":1`},
		{"list ignores other tenants", h.ListJobs, "/api/jobs?tenantId=t3", http.StatusOK, `"count":0`},
		{"get own job", getJob, "/api/jobs/b?tenantId=t2", http.StatusOK, `"job_id":"b"`},
		{"get other tenant's job", getJob, "/api/jobs/b?tenantId=t1", http.StatusNotFound, "Job not found"},
		{"get missing job", getJob, "/api/jobs/zzz?tenantId=t1", http.StatusNotFound, "Job not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			withTenant(tt.handler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.url, nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %s, want it to contain %s", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestJobsHandler_RequiresTenant(t *testing.T) {
	store := inmemory.NewStore()
	if err := store.SaveJob(context.Background(), &jobs.ExportReportJob{JobID: "a", TenantID: "t1"}); err != nil {
		t.Fatalf("SaveJob() error: %v", err)
	}
	h := NewJobsHandler(store, zerolog.Nop())

	// Called without the tenant middleware nothing is listed or returned.
	rec := httptest.NewRecorder()
	h.ListJobs(rec, httptest.NewRequest(http.MethodGet, "/api/jobs", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("ListJobs without tenant = %d %s, want 400", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.GetJob(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/a", nil), "a")
	if rec.Code != http.StatusNotFound {
		t.Errorf("GetJob without tenant = %d %s, want 404", rec.Code, rec.Body.String())
	}
}

func TestEnqueueExport_WithRunningQueue(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := inmemory.NewStore()
	queue := inmemory.NewQueue(64, store)
	defer queue.Close()

	exportJob := func(ctx context.Context, job jobs.Job) error {
		job.(*jobs.ExportReportJob).ObjectURI = "gs://b/reports/t1/" + job.GetID() + ".json"
		return nil
	}
	if err := queue.Start(ctx, exportJob); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	h := NewExportsHandler(queue, true, zerolog.Nop())

	const n = 50
	var wg sync.WaitGroup
	codes := make(chan int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/api/reports/export?tenantId=t1", strings.NewReader(`{"type":"year","year":2024}`))
			rec := httptest.NewRecorder()
			withTenant(h.EnqueueExport).ServeHTTP(rec, req)

			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["job_id"] == "" || body["status"] != string(jobs.JobStatusPending) {
				t.Errorf("response = %s", rec.Body.String())
			}
			codes <- rec.Code
		}()
	}
	wg.Wait()
	close(codes)

	for code := range codes {
		if code != http.StatusAccepted {
			t.Errorf("status = %d, want 202", code)
		}
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		done, err := store.ListJobs(ctx, jobs.JobFilter{TenantID: "t1", Status: jobs.JobStatusCompleted})
		if err != nil {
			t.Fatalf("ListJobs() error: %v", err)
		}
		if len(done) == n {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("%d of %d jobs completed", len(done), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// mockFetcher is a mock implementation of ResultFetcher for testing.
type mockFetcher struct {
	FetchFunc func(ctx context.Context, uri string) ([]byte, error)
}

func (m *mockFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	return m.FetchFunc(ctx, uri)
}

func TestGetResult(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewStore()
	for _, j := range []*jobs.ExportReportJob{
		{JobID: "done", TenantID: "t1", Status: jobs.JobStatusCompleted, ObjectURI: "gs://b/reports/t1/x.json"},
		{JobID: "pending", TenantID: "t1", Status: jobs.JobStatusPending},
		{JobID: "broken", TenantID: "t1", Status: jobs.JobStatusCompleted, ObjectURI: "gs://b/missing.json"},
	} {
		if err := store.SaveJob(ctx, j); err != nil {
			t.Fatalf("SaveJob() error: %v", err)
		}
	}
	fetcher := &mockFetcher{FetchFunc: func(ctx context.Context, uri string) ([]byte, error) {
		if uri == "gs://b/reports/t1/x.json" {
			return []byte(`{"tenantId":"t1"}`), nil
		}
		return nil, errors.New("object not found")
	}}

	tests := []struct {
		name       string
		fetcher    ResultFetcher
		jobID      string
		tenant     string
		wantStatus int
		wantBody   string
	}{
		{"completed", fetcher, "done", "t1", http.StatusOK, `{"tenantId":"t1"}`},
		{"other tenant", fetcher, "done", "t2", http.StatusNotFound, "Job not found"},
		{"unknown job", fetcher, "nope", "t1", http.StatusNotFound, "Job not found"},
		{"not finished", fetcher, "pending", "t1", http.StatusConflict, "status pending"},
		{"fetch fails", fetcher, "broken", "t1", http.StatusInternalServerError, "Failed to read export"},
		{"exports disabled", nil, "done", "t1", http.StatusServiceUnavailable, "disabled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewJobsHandler(store, zerolog.Nop())
			if tt.fetcher != nil {
				h.WithFetcher(tt.fetcher)
			}
			req := httptest.NewRequest(http.MethodGet, "/api/jobs/"+tt.jobID+"/result?tenantId="+tt.tenant, nil)
			rec := httptest.NewRecorder()

			withTenant(func(w http.ResponseWriter, r *http.Request) {
				h.GetResult(w, r, tt.jobID)
			}).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %s, want it to contain %s", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

// mockJobStore is a mock implementation of jobs.JobStore for testing.
type mockJobStore struct {
	jobs.JobStore
	GetJobFunc func(ctx context.Context, jobID string) (*jobs.ExportReportJob, error)
}

func (m *mockJobStore) GetJob(ctx context.Context, jobID string) (*jobs.ExportReportJob, error) {
	return m.GetJobFunc(ctx, jobID)
}

func TestGetJob_StoreError(t *testing.T) {
	store := &mockJobStore{GetJobFunc: func(ctx context.Context, jobID string) (*jobs.ExportReportJob, error) {
		return nil, errors.New("store unreachable")
	}}
	h := NewJobsHandler(store, zerolog.Nop())

	rec := httptest.NewRecorder()
	withTenant(func(w http.ResponseWriter, r *http.Request) {
		h.GetJob(w, r, "a")
	}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/a?tenantId=t1", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500 (body %s)", rec.Code, rec.Body.String())
	}
}
