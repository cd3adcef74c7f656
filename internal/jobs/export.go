package jobs

import (
	"context"
	"fmt"

	"github.com/dvloznov/revenue-cohorts/internal/logger"
	"github.com/dvloznov/revenue-cohorts/internal/report"
)

// ReportGenerator generates financial reports.
type ReportGenerator interface {
	Generate(ctx context.Context, req report.Request) (*report.Report, error)
}

// ReportExporter writes a JSON document and returns its URI.
type ReportExporter interface {
	ExportJSON(ctx context.Context, tenantID, label, jobID string, v any) (string, error)
}

// NewExportHandler returns the handler that runs export jobs: it generates
// the requested report and writes it through exporter.
func NewExportHandler(generator ReportGenerator, exporter ReportExporter) JobHandler {
	return func(ctx context.Context, job Job) error {
		exportJob, ok := job.(*ExportReportJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		ctx = logger.WithTenant(ctx, exportJob.TenantID)
		log := logger.FromContext(ctx)
		log.Info().
			Str("job_id", exportJob.JobID).
			Str("type", exportJob.Request.Type).
			Int("year", exportJob.Request.Year).
			Msg("Processing export job")

		rep, err := generator.Generate(ctx, exportJob.Request)
		if err != nil {
			return fmt.Errorf("generating report: %w", err)
		}

		uri, err := exporter.ExportJSON(ctx, exportJob.TenantID, rep.Summary.CohortLabel, exportJob.JobID, rep)
		if err != nil {
			log.Error().Err(err).Str("job_id", exportJob.JobID).Msg("Report export failed")
			return err
		}

		exportJob.ObjectURI = uri
		exportJob.Degraded = rep.Degraded
		log.Info().
			Str("job_id", exportJob.JobID).
			Str("object_uri", uri).
			Bool("degraded", rep.Degraded).
			Msg("Report exported")
		return nil
	}
}
