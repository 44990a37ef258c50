// Package verifier probes a deployed service's health endpoint.
package verifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrNotReady indicates the service never produced a healthy response
// within the allotted attempts. Timeouts, connection failures and
// non-success statuses all collapse into it.
var ErrNotReady = errors.New("service not ready")

// probeTimeout bounds a single health request.
const probeTimeout = 10 * time.Second

// Options control one verification.
type Options struct {
	// Endpoint is the service base URL.
	Endpoint string

	// Path is the health path, e.g. /_stcore/health.
	Path string

	// Timeout bounds the whole poll loop.
	Timeout time.Duration

	// Interval separates attempts after the immediate first one.
	Interval time.Duration

	// OnAttempt, when set, is called after every probe with its outcome.
	OnAttempt func(err error)
}

// Verifier issues health probes over HTTP.
type Verifier struct {
	client *http.Client
}

// New creates a Verifier. Pass nil to use a default client; redirects
// are followed, only the final status counts.
func New(client *http.Client) *Verifier {
	if client == nil {
		client = &http.Client{Timeout: probeTimeout}
	}
	return &Verifier{client: client}
}

// Probe issues a single bounded health request. Anything but a 2xx
// response is ErrNotReady with the observed failure attached.
func (v *Verifier) Probe(ctx context.Context, endpoint, path string) error {
	url := strings.TrimSuffix(endpoint, "/") + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotReady, err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotReady, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s returned %s", ErrNotReady, url, resp.Status)
	}

	return nil
}

// Wait polls the health path until it reports healthy or the timeout
// elapses. The first probe fires immediately, then one per interval.
// The returned error is always ErrNotReady-wrapped on failure, carrying
// the last observed probe outcome.
func (v *Verifier) Wait(ctx context.Context, opts Options) error {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	var lastErr error
	for {
		lastErr = v.Probe(ctx, opts.Endpoint, opts.Path)
		if opts.OnAttempt != nil {
			opts.OnAttempt(lastErr)
		}
		if lastErr == nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: timed out after %s (last: %v)", ErrNotReady, opts.Timeout, lastErr)
		case <-ticker.C:
		}
	}
}
