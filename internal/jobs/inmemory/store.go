package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dvloznov/revenue-cohorts/internal/jobs"
)

// Store is an in-memory JobStore for export jobs, indexed by tenant so a
// tenant's listing only visits that tenant's jobs. It is safe for concurrent
// use. Jobs are lost on restart.
type Store struct {
	mu       sync.RWMutex
	jobs     map[string]*jobs.ExportReportJob
	byTenant map[string]map[string]struct{}
}

// NewStore creates an empty job store.
func NewStore() *Store {
	return &Store{
		jobs:     make(map[string]*jobs.ExportReportJob),
		byTenant: make(map[string]map[string]struct{}),
	}
}

// clone copies job including its timestamps, so neither the caller nor the
// worker holding the original can change what the store returns.
func clone(job *jobs.ExportReportJob) *jobs.ExportReportJob {
	c := *job
	if job.StartedAt != nil {
		t := *job.StartedAt
		c.StartedAt = &t
	}
	if job.CompletedAt != nil {
		t := *job.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// SaveJob stores a snapshot of job. An export job belongs to one tenant for
// its whole life: saving an existing ID under another tenant fails with
// jobs.ErrTenantMismatch.
func (s *Store) SaveJob(ctx context.Context, job *jobs.ExportReportJob) error {
	if job.JobID == "" {
		return fmt.Errorf("SaveJob: job ID is required")
	}
	if job.TenantID == "" {
		return fmt.Errorf("SaveJob: %s: tenant ID is required", job.JobID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.jobs[job.JobID]; ok && prev.TenantID != job.TenantID {
		return fmt.Errorf("SaveJob: %s: %w", job.JobID, jobs.ErrTenantMismatch)
	}

	s.jobs[job.JobID] = clone(job)
	ids, ok := s.byTenant[job.TenantID]
	if !ok {
		ids = make(map[string]struct{})
		s.byTenant[job.TenantID] = ids
	}
	ids[job.JobID] = struct{}{}

	return nil
}

// GetJob returns a snapshot of the job, or jobs.ErrJobNotFound.
func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.ExportReportJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("GetJob: %s: %w", jobID, jobs.ErrJobNotFound)
	}
	return clone(job), nil
}

// ListJobs returns the jobs matching filter, newest first with ties broken
// by ID, then applies Offset and Limit.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.ExportReportJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*jobs.ExportReportJob{}
	match := func(job *jobs.ExportReportJob) {
		if filter.Status == "" || job.Status == filter.Status {
			result = append(result, clone(job))
		}
	}

	if filter.TenantID != "" {
		for id := range s.byTenant[filter.TenantID] {
			match(s.jobs[id])
		}
	} else {
		for _, job := range s.jobs {
			match(job)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].JobID < result[j].JobID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*jobs.ExportReportJob{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}

	return result, nil
}

// UpdateJobStatus moves a job to status. Completed and failed are terminal:
// they stamp CompletedAt if it is unset, and completion clears the error.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("UpdateJobStatus: %s: %w", jobID, jobs.ErrJobNotFound)
	}

	job.Status = status
	if status == jobs.JobStatusCompleted {
		job.Error = ""
	} else if errorMsg != "" {
		job.Error = errorMsg
	}
	if (status == jobs.JobStatusCompleted || status == jobs.JobStatusFailed) && job.CompletedAt == nil {
		now := time.Now()
		job.CompletedAt = &now
	}

	return nil
}

var _ jobs.JobStore = (*Store)(nil)
