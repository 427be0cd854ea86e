package util

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestAllowed_Disallowed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = fmt.Fprint(w, "User-agent: *\nDisallow: /events.geojson\n")
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	checker := NewRobotsChecker("tileharvest-test", 5*time.Second)

	allowed, err := checker.Allowed(context.Background(), server.URL+"/events.geojson")
	if err != nil {
		t.Fatalf("Allowed: %v", err)
	}
	if allowed {
		t.Error("expected disallowed path")
	}

	allowed, err = checker.Allowed(context.Background(), server.URL+"/other.json")
	if err != nil {
		t.Fatalf("Allowed: %v", err)
	}
	if !allowed {
		t.Error("expected allowed path")
	}
}

func TestAllowed_MissingRobotsAllowsEverything(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	checker := NewRobotsChecker("tileharvest-test", 5*time.Second)

	allowed, err := checker.Allowed(context.Background(), server.URL+"/events.geojson")
	if err != nil {
		t.Fatalf("Allowed: %v", err)
	}
	if !allowed {
		t.Error("missing robots.txt must not block")
	}
}

func TestAllowed_CachesPerHost(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			hits.Add(1)
			_, _ = fmt.Fprint(w, "User-agent: *\nAllow: /\n")
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	checker := NewRobotsChecker("tileharvest-test", 5*time.Second)

	for i := 0; i < 3; i++ {
		if _, err := checker.Allowed(context.Background(), server.URL+"/events.geojson"); err != nil {
			t.Fatalf("Allowed: %v", err)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("robots.txt fetched %d times, want 1", hits.Load())
	}
}
