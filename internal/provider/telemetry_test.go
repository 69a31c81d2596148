package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGraphTelemetrySourceFetch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Fatalf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/123456/template_analytics" {
			t.Fatalf("path = %s, want /123456/template_analytics", r.URL.Path)
		}
		if got := r.URL.Query().Get("template"); got != "order_update" {
			t.Fatalf("template query = %q, want order_update", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token-abc" {
			t.Fatalf("authorization = %q, want Bearer token-abc", got)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"sent":1200,"delivery_rate":0.91,"read_rate":0.64,"response_rate":0.18,"block_rate":0.01,"report_rate":0.002}]}`))
	}))
	t.Cleanup(server.Close)

	source, err := NewGraphTelemetrySource(server.URL, "123456", "token-abc")
	if err != nil {
		t.Fatalf("NewGraphTelemetrySource() error = %v", err)
	}

	snapshot, err := source.Fetch(context.Background(), "order_update")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if snapshot.TemplateName != "order_update" {
		t.Fatalf("template = %q, want order_update", snapshot.TemplateName)
	}
	if snapshot.TotalSent != 1200 {
		t.Fatalf("total sent = %d, want 1200", snapshot.TotalSent)
	}
	if snapshot.DeliveryRate != 0.91 || snapshot.ReadRate != 0.64 {
		t.Fatalf("rates = %+v", snapshot)
	}
}

func TestGraphTelemetrySourceFetchEmptyData(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	t.Cleanup(server.Close)

	source, err := NewGraphTelemetrySource(server.URL, "123456", "token-abc")
	if err != nil {
		t.Fatalf("NewGraphTelemetrySource() error = %v", err)
	}

	snapshot, err := source.Fetch(context.Background(), "order_update")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if snapshot.TotalSent != 0 {
		t.Fatalf("total sent = %d, want 0 for empty analytics", snapshot.TotalSent)
	}
}

func TestGraphTelemetrySourceFetchErrorStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"message":"permission denied","code":10}}`))
	}))
	t.Cleanup(server.Close)

	source, err := NewGraphTelemetrySource(server.URL, "123456", "token-abc")
	if err != nil {
		t.Fatalf("NewGraphTelemetrySource() error = %v", err)
	}

	_, err = source.Fetch(context.Background(), "order_update")
	if err == nil {
		t.Fatal("Fetch() expected error for 403")
	}
	if IsTransient(err) {
		t.Fatal("403 should not be transient")
	}
	if StatusCodeOf(err) != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", StatusCodeOf(err))
	}
}

func TestGraphTelemetrySourceConstructorValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewGraphTelemetrySource("https://graph.example.com", "", "token"); err == nil {
		t.Fatal("expected error for missing phone number id")
	}
	if _, err := NewGraphTelemetrySourceWithClient("https://graph.example.com", "123", "token", nil); err == nil {
		t.Fatal("expected error for nil client")
	}
	if _, err := NewGraphTelemetrySource("://bad", "123", "token"); err == nil {
		t.Fatal("expected error for invalid base url")
	}
}
