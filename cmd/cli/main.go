package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dvloznov/revenue-cohorts/internal/app"
	"github.com/dvloznov/revenue-cohorts/internal/config"
	"github.com/dvloznov/revenue-cohorts/internal/export"
	"github.com/dvloznov/revenue-cohorts/internal/jobs"
	"github.com/dvloznov/revenue-cohorts/internal/logger"
	"github.com/dvloznov/revenue-cohorts/internal/report"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func main() {
	cfg := config.FromEnv()
	log := logger.NewWithLevel(cfg.LogLevel)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "report":
		runReport(cfg, log)
	case "compare":
		runCompare(cfg, log)
	case "load":
		runLoad(cfg, log)
	case "export":
		runExport(cfg, log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Revenue Cohorts CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  report    Print the financial report of a period as JSON")
	fmt.Println("  compare   Compare two periods of the same type")
	fmt.Println("  load      Upsert transactions and customers from a JSON file")
	fmt.Println("  export    Generate a report and write it to the GCS bucket")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nThe store is selected with REPORT_BACKEND (memory, sqlite, bigquery).")
	fmt.Println("Run 'cli <command> -h' for more information on a command.")
}

// storeFlags registers the flags that override the store configuration.
func storeFlags(fs *flag.FlagSet, cfg *config.Config) {
	fs.StringVar(&cfg.Backend, "backend", cfg.Backend, "Store backend: memory, sqlite or bigquery")
	fs.StringVar(&cfg.SQLitePath, "sqlite-path", cfg.SQLitePath, "SQLite database file")
	fs.StringVar(&cfg.ProjectID, "project", cfg.ProjectID, "GCP project of the BigQuery dataset")
	fs.StringVar(&cfg.DatasetID, "dataset", cfg.DatasetID, "BigQuery dataset")
	fs.StringVar(&cfg.Timezone, "tz", cfg.Timezone, "Reporting time zone")
}

// reportFlags registers the period flags shared by report and export.
func reportFlags(fs *flag.FlagSet, req *report.Request) {
	fs.StringVar(&req.TenantID, "tenant", "", "Tenant ID")
	fs.StringVar(&req.Type, "type", "month", "Period type: month, quarter or year")
	fs.IntVar(&req.Year, "year", time.Now().Year(), "Calendar year")
	fs.IntVar(&req.Month, "month", 0, "Month 1-12 (type=month)")
	fs.IntVar(&req.Quarter, "quarter", 0, "Quarter 1-4 (type=quarter)")
}

func openApp(ctx context.Context, cfg config.Config, log zerolog.Logger) *app.App {
	services, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	return services
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runReport(cfg config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	var req report.Request
	storeFlags(fs, &cfg)
	reportFlags(fs, &req)
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	services := openApp(ctx, cfg, log)
	defer services.Close()

	rep, err := services.Reports.Generate(ctx, req)
	if err != nil {
		log.Fatal().Err(err).Msg("Report failed")
	}
	if err := printJSON(os.Stdout, rep); err != nil {
		log.Fatal().Err(err).Msg("Failed to write report")
	}
}

func runCompare(cfg config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("compare", flag.ExitOnError)
	tenantID := fs.String("tenant", "", "Tenant ID")
	typ := fs.String("type", "month", "Period type: month, quarter or year")
	period1 := fs.String("period1", "", "First period token (M-YYYY, Q-YYYY or YYYY)")
	period2 := fs.String("period2", "", "Second period token (M-YYYY, Q-YYYY or YYYY)")
	storeFlags(fs, &cfg)
	fs.Parse(os.Args[2:])

	if *tenantID == "" || *period1 == "" || *period2 == "" {
		log.Fatal().Msg("Usage: cli compare -tenant ID -type TYPE -period1 TOKEN -period2 TOKEN")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	services := openApp(ctx, cfg, log)
	defer services.Close()

	cmp, err := services.Comparator.Compare(ctx, *tenantID, *typ, *period1, *period2)
	if err != nil {
		log.Fatal().Err(err).Msg("Comparison failed")
	}
	if err := printJSON(os.Stdout, cmp); err != nil {
		log.Fatal().Err(err).Msg("Failed to write comparison")
	}
}

func runLoad(cfg config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("load", flag.ExitOnError)
	filePath := fs.String("file", "", "Path to the JSON file of transactions and customers")
	tenantID := fs.String("tenant", "", "Tenant ID for records that carry none")
	storeFlags(fs, &cfg)
	fs.Parse(os.Args[2:])

	if *filePath == "" {
		log.Fatal().Msg("Error: --file is required")
	}

	f, err := os.Open(*filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open file")
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	services := openApp(ctx, cfg, log)
	defer services.Close()

	log.Info().
		Str("file", *filePath).
		Str("backend", cfg.Backend).
		Msg("Loading records")

	res, err := app.Load(ctx, services.Store, f, *tenantID, services.Resolver.Location())
	if err != nil {
		log.Fatal().Err(err).Msg("Load failed")
	}

	fmt.Printf("Loaded %d transactions and %d customers.\n", res.Transactions, res.Customers)
}

func runExport(cfg config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	var req report.Request
	storeFlags(fs, &cfg)
	reportFlags(fs, &req)
	fs.StringVar(&cfg.Bucket, "bucket", cfg.Bucket, "GCS bucket for the export")
	fs.Parse(os.Args[2:])

	if cfg.Bucket == "" {
		log.Fatal().Msg("Error: --bucket (or GCS_BUCKET) is required")
	}
	if _, err := req.Spec(); err != nil {
		log.Fatal().Err(err).Msg("Invalid report request")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	services := openApp(ctx, cfg, log)
	defer services.Close()

	storage, err := export.NewGCSStorage(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage client")
	}
	defer storage.Close()

	// Run the export job inline, the same way the API worker does.
	job := &jobs.ExportReportJob{
		JobID:     uuid.New().String(),
		TenantID:  req.TenantID,
		Request:   req,
		Status:    jobs.JobStatusRunning,
		CreatedAt: time.Now(),
	}
	handler := jobs.NewExportHandler(services.Reports, export.NewExporter(storage, cfg.Bucket))
	if err := handler(ctx, job); err != nil {
		log.Fatal().Err(err).Msg("Export failed")
	}

	fmt.Printf("Exported report to %s\n", job.ObjectURI)
}
