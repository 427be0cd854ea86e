package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/dkazmin/tileharvest/internal/logging"
	"github.com/dkazmin/tileharvest/internal/model"
)

func testConfig(t *testing.T, feedURL string) *model.Config {
	t.Helper()
	cfg := model.DefaultConfig()
	cfg.Feed.URL = feedURL
	cfg.Data.Dir = t.TempDir()
	return cfg
}

func testLogger() *logging.Logger {
	return logging.New(io.Discard, slog.LevelError, "text")
}

func pointFeature(id, date string, categories []string, coords []float64) model.Feature {
	return model.Feature{
		Type:     "Feature",
		Geometry: model.Geometry{Type: "Point", Coordinates: coords},
		Properties: model.Properties{
			ID:           id,
			VerifiedDate: date,
			Categories:   categories,
		},
	}
}

func TestFilterFiringPositions(t *testing.T) {
	loader := NewLoader(testConfig(t, "http://example.invalid/events.geojson"), testLogger())

	fc := &model.FeatureCollection{
		Type: "FeatureCollection",
		Features: []model.Feature{
			pointFeature("keep-1", "2023-06-01", []string{"Russian Firing Positions"}, []float64{37.5, 47.1}),
			pointFeature("no-date", "", []string{"Russian Firing Positions"}, []float64{30, 50}),
			pointFeature("bad-date", "June 1st", []string{"Russian Firing Positions"}, []float64{30, 50}),
			pointFeature("wrong-year", "2022-06-01", []string{"Russian Firing Positions"}, []float64{30, 50}),
			pointFeature("keep-2", "2023-12-31T23:10:00Z", []string{"Shelling", "RUSSIAN FIRING POSITIONS"}, []float64{36, 48}),
			pointFeature("wrong-category", "2023-06-01", []string{"Shelling"}, []float64{30, 50}),
			pointFeature("empty-categories", "2023-06-01", nil, []float64{30, 50}),
		},
	}

	got := loader.FilterFiringPositions(fc, 2023)

	if len(got) != 2 {
		t.Fatalf("expected 2 features, got %d", len(got))
	}
	// Source order preserved
	if got[0].Properties.ID != "keep-1" || got[1].Properties.ID != "keep-2" {
		t.Errorf("unexpected feature order: %s, %s", got[0].Properties.ID, got[1].Properties.ID)
	}
}

func TestExtractCoordinates(t *testing.T) {
	lon, lat, err := ExtractCoordinates(pointFeature("a", "", nil, []float64{37.5, 47.1}))
	if err != nil {
		t.Fatalf("ExtractCoordinates: %v", err)
	}
	if lon != 37.5 || lat != 47.1 {
		t.Errorf("got (%v, %v), want (37.5, 47.1)", lon, lat)
	}

	_, _, err = ExtractCoordinates(model.Feature{
		Geometry: model.Geometry{Type: "Polygon"},
	})
	if !errors.Is(err, model.ErrValidation) {
		t.Errorf("non-Point geometry: got %v, want ErrValidation", err)
	}

	_, _, err = ExtractCoordinates(model.Feature{
		Geometry: model.Geometry{Type: "Point", Coordinates: []float64{37.5}},
	})
	if !errors.Is(err, model.ErrValidation) {
		t.Errorf("short coordinates: got %v, want ErrValidation", err)
	}
}

const feedBody = `{
	"type": "FeatureCollection",
	"features": [
		{
			"type": "Feature",
			"geometry": {"type": "Point", "coordinates": [37.5, 47.1]},
			"properties": {
				"id": "EOR-1",
				"verifiedDate": "2023-06-01",
				"categories": ["Russian Firing Positions"]
			}
		}
	]
}`

func feedServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/events.geojson", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/geo+json")
		_, _ = fmt.Fprint(w, feedBody)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestFetchAndCache(t *testing.T) {
	var hits atomic.Int32
	server := feedServer(t, &hits)

	cfg := testConfig(t, server.URL+"/events.geojson")
	loader := NewLoader(cfg, testLogger())

	path, err := loader.FetchAndCache(context.Background())
	if err != nil {
		t.Fatalf("FetchAndCache: %v", err)
	}
	if path != cfg.Data.CacheFile() {
		t.Errorf("cache path = %s, want %s", path, cfg.Data.CacheFile())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read cache: %v", err)
	}
	if string(data) != feedBody {
		t.Error("cache content differs from feed body")
	}
}

func TestFetchAndCache_StatusError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/events.geojson", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	loader := NewLoader(testConfig(t, server.URL+"/events.geojson"), testLogger())

	_, err := loader.FetchAndCache(context.Background())
	if !errors.Is(err, model.ErrNetwork) {
		t.Errorf("got %v, want ErrNetwork", err)
	}
}

func TestFetchAndCache_RobotsDisallowed(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, "User-agent: *\nDisallow: /events.geojson\n")
	})
	mux.HandleFunc("/events.geojson", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	loader := NewLoader(testConfig(t, server.URL+"/events.geojson"), testLogger())

	_, err := loader.FetchAndCache(context.Background())
	if !errors.Is(err, model.ErrNetwork) {
		t.Errorf("got %v, want ErrNetwork", err)
	}
	if hits.Load() != 0 {
		t.Errorf("feed was fetched despite robots disallow (%d hits)", hits.Load())
	}
}

func TestLoadCached_Missing(t *testing.T) {
	loader := NewLoader(testConfig(t, "http://example.invalid/events.geojson"), testLogger())

	_, err := loader.LoadCached()
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestFiringPositions_FetchesOnlyWhenCacheAbsent(t *testing.T) {
	var hits atomic.Int32
	server := feedServer(t, &hits)

	cfg := testConfig(t, server.URL+"/events.geojson")
	loader := NewLoader(cfg, testLogger())

	features, err := loader.FiringPositions(context.Background(), 2023)
	if err != nil {
		t.Fatalf("FiringPositions: %v", err)
	}
	if len(features) != 1 || features[0].Properties.ID != "EOR-1" {
		t.Fatalf("unexpected features: %+v", features)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected 1 feed fetch, got %d", hits.Load())
	}

	// Second call reuses the existing cache, even if stale
	if _, err := loader.FiringPositions(context.Background(), 2023); err != nil {
		t.Fatalf("FiringPositions (cached): %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("cache was refreshed: %d fetches", hits.Load())
	}
}

func TestFiringPositions_YearFilterExcludes(t *testing.T) {
	var hits atomic.Int32
	server := feedServer(t, &hits)

	loader := NewLoader(testConfig(t, server.URL+"/events.geojson"), testLogger())

	features, err := loader.FiringPositions(context.Background(), 2022)
	if err != nil {
		t.Fatalf("FiringPositions: %v", err)
	}
	if len(features) != 0 {
		t.Errorf("expected no features for 2022, got %d", len(features))
	}
}
