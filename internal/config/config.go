package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendBigQuery = "bigquery"
)

// Config holds the process configuration shared by the commands.
type Config struct {
	Port       string
	Backend    string
	SQLitePath string
	ProjectID  string
	DatasetID  string
	Bucket     string
	Timezone   string
	LogLevel   string
	APIToken   string
}

// FromEnv reads the configuration from the environment, applying defaults
// for anything unset.
func FromEnv() Config {
	return Config{
		Port:       getenv("PORT", "8080"),
		Backend:    getenv("REPORT_BACKEND", BackendMemory),
		SQLitePath: getenv("SQLITE_PATH", "revenue.db"),
		ProjectID:  os.Getenv("GCP_PROJECT"),
		DatasetID:  getenv("BQ_DATASET", "revenue"),
		Bucket:     os.Getenv("GCS_BUCKET"),
		Timezone:   getenv("REPORT_TZ", "UTC"),
		LogLevel:   getenv("LOG_LEVEL", "info"),
		APIToken:   os.Getenv("API_TOKEN"),
	}
}

// Validate checks the backend and its required settings.
func (c Config) Validate() error {
	switch strings.ToLower(c.Backend) {
	case BackendMemory:
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("config: sqlite backend requires SQLITE_PATH")
		}
	case BackendBigQuery:
		if c.ProjectID == "" || c.DatasetID == "" {
			return fmt.Errorf("config: bigquery backend requires GCP_PROJECT and BQ_DATASET")
		}
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location loads the reporting time zone. Calendar periods are resolved in it.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: loading timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
