package export

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

// mockStorage is a mock implementation of Storage for testing.
type mockStorage struct {
	objects map[string][]byte
	types   map[string]string
	putErr  error
}

func newMockStorage() *mockStorage {
	return &mockStorage{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (m *mockStorage) Put(ctx context.Context, bucket, object, contentType string, data []byte) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.objects[URI(bucket, object)] = data
	m.types[URI(bucket, object)] = contentType
	return nil
}

func (m *mockStorage) Get(ctx context.Context, uri string) ([]byte, error) {
	data, ok := m.objects[uri]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}

func TestObjectName(t *testing.T) {
	tests := []struct {
		tenant, label, job string
		want               string
	}{
		{"t1", "2024-Q1", "abc", "reports/t1/2024-Q1-abc.json"},
		{"t1", "Mar 24", "abc", "reports/t1/Mar_24-abc.json"},
		{"../x", "2024", "j", "reports/.._x/2024-j.json"},
		{"", "2024", "j", "reports/_/2024-j.json"},
	}

	for _, tt := range tests {
		if got := ObjectName(tt.tenant, tt.label, tt.job); got != tt.want {
			t.Errorf("ObjectName(%q, %q, %q) = %q, want %q", tt.tenant, tt.label, tt.job, got, tt.want)
		}
	}
}

func TestParseURI(t *testing.T) {
	bucket, object, err := ParseURI("gs://exports/reports/t1/x.json")
	if err != nil {
		t.Fatalf("ParseURI() error: %v", err)
	}
	if bucket != "exports" || object != "reports/t1/x.json" {
		t.Errorf("ParseURI() = %q, %q", bucket, object)
	}

	for _, bad := range []string{"s3://b/o", "gs://bucket", "gs:///o", ""} {
		if _, _, err := ParseURI(bad); err == nil {
			t.Errorf("ParseURI(%q) error = nil, want error", bad)
		}
	}
}

func TestExportJSON(t *testing.T) {
	store := newMockStorage()
	e := NewExporter(store, "exports")

	uri, err := e.ExportJSON(context.Background(), "t1", "2024", "job-1", map[string]int{"net": 5})
	if err != nil {
		t.Fatalf("ExportJSON() error: %v", err)
	}
	if uri != "gs://exports/reports/t1/2024-job-1.json" {
		t.Errorf("uri = %q", uri)
	}

	data, err := store.Get(context.Background(), uri)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	var got map[string]int
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if got["net"] != 5 {
		t.Errorf("exported = %v", got)
	}
	if store.types[uri] != "application/json" {
		t.Errorf("content type = %q", store.types[uri])
	}
}

func TestExportJSON_Errors(t *testing.T) {
	if _, err := NewExporter(newMockStorage(), "").ExportJSON(context.Background(), "t1", "2024", "j", 1); err == nil {
		t.Error("ExportJSON() without bucket error = nil")
	}

	store := newMockStorage()
	store.putErr = errors.New("quota exceeded")
	_, err := NewExporter(store, "b").ExportJSON(context.Background(), "t1", "2024", "j", 1)
	if !errors.Is(err, store.putErr) {
		t.Errorf("ExportJSON() error = %v, want wrapped put error", err)
	}
}

func TestFetch(t *testing.T) {
	store := newMockStorage()
	e := NewExporter(store, "exports")
	ctx := context.Background()

	uri, err := e.ExportJSON(ctx, "t1", "2024", "job-1", []int{1, 2})
	if err != nil {
		t.Fatalf("ExportJSON() error: %v", err)
	}

	data, err := e.Fetch(ctx, uri)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	var got []int
	if err := json.Unmarshal(data, &got); err != nil || len(got) != 2 {
		t.Errorf("Fetch() = %s, %v", data, err)
	}

	for _, bad := range []string{"gs://other/reports/t1/2024-job-1.json", "not-a-uri", "gs://exports/missing.json"} {
		if _, err := e.Fetch(ctx, bad); err == nil {
			t.Errorf("Fetch(%q) error = nil, want error", bad)
		}
	}
}
