package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFeedAdapter_Run(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"records": [
				{
					"source_id": "AGRN-1012",
					"name": "Severe flooding",
					"category": "Flood",
					"state": "Queensland",
					"area_name": "Brisbane City Council",
					"declared_on": "2026-02-10",
					"end_date": "-",
					"severity": 4,
					"authority": "QLD Reconstruction Authority"
				}
			]
		}`))
	}))
	defer srv.Close()

	adapter := NewFeedAdapter("feed-a", srv.URL, 5*time.Second)

	records, elapsed, err := adapter.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].SourceID != "AGRN-1012" || records[0].RawEndDate != "-" {
		t.Errorf("record did not decode: %+v", records[0])
	}
	if elapsed <= 0 {
		t.Error("expected a positive elapsed duration")
	}
	if adapter.Source() != "feed-a" {
		t.Errorf("unexpected source %s", adapter.Source())
	}
}

func TestFeedAdapter_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	adapter := NewFeedAdapter("feed-a", srv.URL, 5*time.Second)
	if _, _, err := adapter.Run(context.Background()); err == nil {
		t.Fatal("expected error on 502")
	}
}

func TestFeedAdapter_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	adapter := NewFeedAdapter("feed-a", srv.URL, 5*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, _, err := adapter.Run(ctx); err == nil {
		t.Fatal("expected error when context deadline passes")
	}
}
