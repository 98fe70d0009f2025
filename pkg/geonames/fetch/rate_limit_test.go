package fetch

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewHostRateLimiterDisabled(t *testing.T) {
	t.Parallel()

	for _, rps := range []float64{0, -1} {
		if l := NewHostRateLimiter(rps, 5); l != nil {
			t.Fatalf("rps %v: expected a nil limiter", rps)
		}
	}
	var l *HostRateLimiter
	if err := l.Wait(context.Background(), "secure.geonames.org"); err != nil {
		t.Fatalf("nil limiter must not block: %v", err)
	}
}

// TestHostRateLimiterPerHost verifies host rate limiter per host behavior.
func TestHostRateLimiterPerHost(t *testing.T) {
	t.Parallel()

	l := NewHostRateLimiter(0.001, 1)
	ctx := context.Background()
	if err := l.Wait(ctx, "a.example"); err != nil {
		t.Fatalf("first token: %v", err)
	}
	// another host has its own bucket
	if err := l.Wait(ctx, "b.example"); err != nil {
		t.Fatalf("other host: %v", err)
	}
	if l.getLimiter("a.example") == l.getLimiter("b.example") {
		t.Fatalf("hosts must not share a bucket")
	}

	// the bucket of a.example is empty and refills in ~1000s
	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := l.Wait(short, "a.example"); err == nil {
		t.Fatalf("expected the empty bucket to block")
	} else if errors.Is(err, context.Canceled) {
		t.Fatalf("unexpected cancellation: %v", err)
	}
}
