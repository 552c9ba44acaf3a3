package bkk_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/samirrijal/molbubble/internal/adapters/bkk"
)

const sample = `{
  "code": 200,
  "data": {
    "list": [
      {"id": "0302", "name": "Deák Ferenc tér", "lat": 47.4977, "lon": 19.0546, "spaces": 24, "bikes": 7},
      {"id": 101, "name": "Batthyány tér", "lat": 47.5067, "lon": 19.0389, "spaces": 18, "bikes": 0}
    ]
  }
}`

func TestParse(t *testing.T) {
	stations, err := bkk.Parse([]byte(sample))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stations) != 2 {
		t.Fatalf("expected 2 stations, got %d", len(stations))
	}
	if stations[0].ID != "0302" || stations[0].Spaces != 24 || stations[0].Bikes != 7 {
		t.Errorf("unexpected first station %+v", stations[0])
	}
	if stations[1].ID != "101" {
		t.Errorf("numeric id should be kept as text, got %q", stations[1].ID)
	}
}

func TestParse_ErrorCode(t *testing.T) {
	if _, err := bkk.Parse([]byte(`{"code": 500, "data": {"list": []}}`)); err == nil {
		t.Fatal("expected error")
	}
}

func TestClient_FetchStations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sample))
	}))
	defer srv.Close()

	stations, err := bkk.NewClient(srv.URL).FetchStations(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stations) != 2 {
		t.Errorf("expected 2 stations, got %d", len(stations))
	}
}

func TestClient_FetchStationsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := bkk.NewClient(srv.URL).FetchStations(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
