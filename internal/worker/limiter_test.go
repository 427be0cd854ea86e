package worker

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_FirstCallsDoNotBlock(t *testing.T) {
	limiter := NewLimiter(2, 5)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := limiter.Wait(ctx, "https://sh.dataspace.copernicus.eu/api/v1/process"); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("burst-sized calls blocked for %v", elapsed)
	}
}

func TestLimiter_SeparateHostsGetSeparateBudgets(t *testing.T) {
	limiter := NewLimiter(1, 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	start := time.Now()
	if err := limiter.Wait(ctx, "https://sh.dataspace.copernicus.eu/api/v1/process"); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if err := limiter.Wait(ctx, "https://api.airtable.com/v0/app123/Firing%20Positions"); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("independent hosts contended: %v", elapsed)
	}
}

func TestLimiter_InvalidURL(t *testing.T) {
	limiter := NewLimiter(1, 1)

	if err := limiter.Wait(context.Background(), "://bad"); err == nil {
		t.Error("expected error for unparsable URL")
	}
}
