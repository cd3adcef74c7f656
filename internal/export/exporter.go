package export

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ObjectName is the object path of a report export:
// reports/<tenant>/<label>-<jobID>.json. Characters outside [A-Za-z0-9._-]
// in tenant and label are replaced with '_'.
func ObjectName(tenantID, label, jobID string) string {
	return fmt.Sprintf("reports/%s/%s-%s.json", sanitize(tenantID), sanitize(label), jobID)
}

func sanitize(s string) string {
	s = unsafeChars.ReplaceAllString(strings.TrimSpace(s), "_")
	if s == "" {
		return "_"
	}
	return s
}

// Exporter writes JSON documents to a bucket.
type Exporter struct {
	storage Storage
	bucket  string
}

// NewExporter creates an exporter writing to bucket.
func NewExporter(storage Storage, bucket string) *Exporter {
	return &Exporter{storage: storage, bucket: bucket}
}

// Bucket returns the target bucket.
func (e *Exporter) Bucket() string {
	return e.bucket
}

// ExportJSON marshals v and writes it under ObjectName. It returns the
// gs:// URI of the written object.
func (e *Exporter) ExportJSON(ctx context.Context, tenantID, label, jobID string, v any) (string, error) {
	if e.bucket == "" {
		return "", fmt.Errorf("ExportJSON: no bucket configured")
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("ExportJSON: encoding: %w", err)
	}

	object := ObjectName(tenantID, label, jobID)
	if err := e.storage.Put(ctx, e.bucket, object, "application/json", data); err != nil {
		return "", fmt.Errorf("ExportJSON: %w", err)
	}
	return URI(e.bucket, object), nil
}

// Fetch reads back an exported document. Only objects in the exporter's
// bucket are served.
func (e *Exporter) Fetch(ctx context.Context, uri string) ([]byte, error) {
	bucket, _, err := ParseURI(uri)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}
	if bucket != e.bucket {
		return nil, fmt.Errorf("Fetch: object %s is outside bucket %q", uri, e.bucket)
	}
	data, err := e.storage.Get(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}
	return data, nil
}
