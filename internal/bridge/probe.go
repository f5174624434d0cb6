package bridge

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"net/http"
	"time"
)

// RetryConfig configures probe retry behavior
type RetryConfig struct {
	MaxRetries int           // Maximum number of retry attempts (default: 3)
	BaseDelay  time.Duration // Initial delay between retries (default: 200ms)
	MaxDelay   time.Duration // Maximum delay between retries (default: 5s)
	Multiplier float64       // Delay multiplier for exponential backoff (default: 2.0)
	Timeout    time.Duration // Per-attempt timeout (default: 2s)
	EnableLog  bool          // Whether to log retry attempts
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  200 * time.Millisecond,
		MaxDelay:   5 * time.Second,
		Multiplier: 2.0,
		Timeout:    2 * time.Second,
		EnableLog:  true,
	}
}

// ProbeError reports that a component frontend could not be reached.
type ProbeError struct {
	Component string
	URL       string
	Attempts  int
	Err       error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("component %s unreachable at %s after %d attempt(s): %v", e.Component, e.URL, e.Attempts, e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// statusError is a server-side failure worth retrying.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.code)
}

// Probe checks that the component's frontend answers HTTP requests, retrying
// with exponential backoff. Any response below 500 counts as reachable.
// Bundled components are always reachable.
func Probe(ctx context.Context, client *http.Client, c *Component, cfg RetryConfig) error {
	if c.FS != nil {
		return nil
	}
	if client == nil {
		client = http.DefaultClient
	}

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		attempts++
		err := probeOnce(ctx, client, c.URL, cfg.Timeout)
		if err == nil {
			if attempt > 0 && cfg.EnableLog {
				log.Printf("[Bridge] %s reachable on attempt %d", c.Name, attempt+1)
			}
			return nil
		}
		lastErr = err

		if attempt < cfg.MaxRetries {
			delay := calculateDelay(attempt, cfg)
			if cfg.EnableLog {
				log.Printf("[Bridge] Probe of %s failed (%v), retrying in %v...", c.URL, err, delay)
			}

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return &ProbeError{Component: c.Name, URL: c.URL, Attempts: attempts, Err: lastErr}
}

func probeOnce(ctx context.Context, client *http.Client, url string, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	if resp.StatusCode >= 500 {
		return &statusError{code: resp.StatusCode}
	}
	return nil
}

// IsUnreachable reports whether err came from a failed probe.
func IsUnreachable(err error) bool {
	var probeErr *ProbeError
	return errors.As(err, &probeErr)
}

// calculateDelay computes the delay for the given attempt using exponential backoff with jitter
func calculateDelay(attempt int, cfg RetryConfig) time.Duration {
	delay := float64(cfg.BaseDelay) * math.Pow(cfg.Multiplier, float64(attempt))

	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}

	// Randomize between 80% and 120% of delay to prevent thundering herd
	jitter := 0.8 + rand.Float64()*0.4
	delay *= jitter

	return time.Duration(delay)
}
