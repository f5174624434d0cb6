package bridge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"
)

func fastRetry(retries int) RetryConfig {
	return RetryConfig{
		MaxRetries: retries,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Multiplier: 2.0,
		Timeout:    time.Second,
	}
}

func TestProbeReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r) // any answer below 500 means the frontend is up
	}))
	defer srv.Close()

	c := &Component{Name: "w", URL: srv.URL}
	if err := Probe(context.Background(), srv.Client(), c, fastRetry(0)); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestProbeRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := &Component{Name: "w", URL: srv.URL}
	if err := Probe(context.Background(), srv.Client(), c, fastRetry(3)); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 calls, got %d", got)
	}
}

func TestProbeUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := &Component{Name: "w", URL: url}
	err := Probe(context.Background(), nil, c, fastRetry(2))
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsUnreachable(err) {
		t.Errorf("expected ProbeError, got %T", err)
	}
	if pe := err.(*ProbeError); pe.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", pe.Attempts)
	}
}

func TestProbeBundledComponent(t *testing.T) {
	c := &Component{Name: "w", FS: fstest.MapFS{}}
	if err := Probe(context.Background(), nil, c, fastRetry(0)); err != nil {
		t.Errorf("bundled component should always be reachable: %v", err)
	}
}

func TestProbeContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := &Component{Name: "w", URL: "http://127.0.0.1:1"}
	if err := Probe(ctx, nil, c, fastRetry(3)); err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestCalculateDelay(t *testing.T) {
	cfg := RetryConfig{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   1 * time.Second,
		Multiplier: 2.0,
	}

	tests := []struct {
		attempt  int
		minDelay time.Duration
		maxDelay time.Duration
	}{
		{0, 80 * time.Millisecond, 120 * time.Millisecond},
		{1, 160 * time.Millisecond, 240 * time.Millisecond},
		{2, 320 * time.Millisecond, 480 * time.Millisecond},
		{5, 800 * time.Millisecond, 1200 * time.Millisecond}, // capped at MaxDelay
	}

	for _, tt := range tests {
		delay := calculateDelay(tt.attempt, cfg)
		if delay < tt.minDelay || delay > tt.maxDelay {
			t.Errorf("attempt %d: delay %v not in [%v, %v]", tt.attempt, delay, tt.minDelay, tt.maxDelay)
		}
	}
}
