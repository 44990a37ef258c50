package verifier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/_stcore/health" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProbeHealthy(t *testing.T) {
	srv := healthServer(t, http.StatusOK, "ok")

	err := New(nil).Probe(context.Background(), srv.URL, "/_stcore/health")
	assert.NoError(t, err)
}

func TestProbeUnavailableIsNotReady(t *testing.T) {
	srv := healthServer(t, http.StatusServiceUnavailable, "starting")

	err := New(nil).Probe(context.Background(), srv.URL, "/_stcore/health")
	require.ErrorIs(t, err, ErrNotReady)
	assert.Contains(t, err.Error(), "503")
}

func TestProbeConnectionRefusedIsNotReady(t *testing.T) {
	srv := healthServer(t, http.StatusOK, "ok")
	srv.Close()

	err := New(nil).Probe(context.Background(), srv.URL, "/_stcore/health")
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestWaitSucceedsOnceHealthy(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var attempts int
	err := New(nil).Wait(context.Background(), Options{
		Endpoint: srv.URL,
		Path:     "/_stcore/health",
		Timeout:  5 * time.Second,
		Interval: 10 * time.Millisecond,
		OnAttempt: func(error) {
			attempts++
		},
	})

	require.NoError(t, err)
	assert.GreaterOrEqual(t, attempts, 3)
}

func TestWaitTimesOut(t *testing.T) {
	srv := healthServer(t, http.StatusServiceUnavailable, "")

	start := time.Now()
	err := New(nil).Wait(context.Background(), Options{
		Endpoint: srv.URL,
		Path:     "/_stcore/health",
		Timeout:  100 * time.Millisecond,
		Interval: 20 * time.Millisecond,
	})

	require.ErrorIs(t, err, ErrNotReady)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Contains(t, err.Error(), "timed out")
}
