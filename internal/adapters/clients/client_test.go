package clients

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quotes-api/internal/adapters/http/middleware"
	"github.com/jsamuelsen/quotes-api/internal/platform/config"
)

func testConfig(baseURL string) Config {
	return Config{
		BaseURL: baseURL,
		Timeout: 2 * time.Second,
		Retry: config.RetryConfig{
			MaxAttempts:     3,
			InitialInterval: 5 * time.Millisecond,
			MaxInterval:     20 * time.Millisecond,
			Multiplier:      2.0,
		},
		Breaker: BreakerConfig{MaxFailures: 5, CoolDown: time.Minute, Probes: 1},
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()

	c, err := New(testConfig(baseURL))
	require.NoError(t, err)

	return c
}

func closedAddr(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	return "http://" + addr
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base URL is required")
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(&config.ClientConfig{
		BaseURL: "http://quotes:8080",
		Timeout: time.Second,
		Retry:   config.RetryConfig{MaxAttempts: 4},
		CircuitBreaker: config.CircuitBreakerConfig{
			MaxFailures:   3,
			Timeout:       30 * time.Second,
			HalfOpenLimit: 2,
		},
	}, nil)

	assert.Equal(t, "http://quotes:8080", cfg.BaseURL)
	assert.Equal(t, 4, cfg.Retry.MaxAttempts)
	assert.Equal(t, BreakerConfig{MaxFailures: 3, CoolDown: 30 * time.Second, Probes: 2}, cfg.Breaker)
}

func TestClient_SendsIDHeaders(t *testing.T) {
	var requestIDs, correlationIDs []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestIDs = append(requestIDs, r.Header.Get(middleware.HeaderRequestID))
		correlationIDs = append(correlationIDs, r.Header.Get(middleware.HeaderCorrelationID))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL+"/")

	for range 2 {
		resp, err := c.Do(context.Background(), http.MethodGet, "quotes", nil)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
	}

	require.Len(t, requestIDs, 2)
	assert.NotEqual(t, requestIDs[0], requestIDs[1], "each call gets its own request id")

	_, err := uuid.Parse(requestIDs[0])
	require.NoError(t, err)

	assert.Equal(t, []string{c.CorrelationID(), c.CorrelationID()}, correlationIDs)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		_, _ = io.WriteString(w, "ok")
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)

	resp, err := c.Do(context.Background(), http.MethodGet, "/quotes", nil)
	require.NoError(t, err)

	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, StateClosed, c.CircuitState())
}

func TestClient_ReturnsLastServerError(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)

	resp, err := c.Do(context.Background(), http.MethodGet, "/quotes", nil)
	require.NoError(t, err)

	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_PostIsSentOnce(t *testing.T) {
	var calls atomic.Int32

	var body string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		b, _ := io.ReadAll(r.Body)
		body = string(b)

		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)

	resp, err := c.Do(context.Background(), http.MethodPost, "/quotes", []byte(`{"author":"A","text":"B"}`))
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	assert.Equal(t, int32(1), calls.Load())
	assert.JSONEq(t, `{"author":"A","text":"B"}`, body)
}

func TestClient_RetriedBodyIsResent(t *testing.T) {
	var bodies []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))

		if len(bodies) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)

	resp, err := c.Do(context.Background(), http.MethodPut, "/quotes/1", []byte(`{"author":"A"}`))
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	assert.Equal(t, []string{`{"author":"A"}`, `{"author":"A"}`}, bodies)
}

func TestClient_UnreachableServer(t *testing.T) {
	c := newTestClient(t, closedAddr(t))

	_, err := c.Do(context.Background(), http.MethodGet, "/quotes", nil)

	require.ErrorIs(t, err, ErrMaxRetriesExceeded)
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestClient_BreakerOpensAfterFailures(t *testing.T) {
	cfg := testConfig(closedAddr(t))
	cfg.Retry.MaxAttempts = 1
	cfg.Breaker = BreakerConfig{MaxFailures: 2, CoolDown: time.Hour, Probes: 1}

	c, err := New(cfg)
	require.NoError(t, err)

	for range 2 {
		_, err := c.Do(context.Background(), http.MethodGet, "/quotes", nil)
		require.ErrorIs(t, err, ErrMaxRetriesExceeded)
	}

	assert.Equal(t, StateOpen, c.CircuitState())

	_, err = c.Do(context.Background(), http.MethodGet, "/quotes", nil)
	require.ErrorIs(t, err, ErrCircuitOpen)
}

func TestClient_CanceledContextStopsRetrying(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Retry.InitialInterval = time.Hour
	cfg.Retry.MaxInterval = time.Hour

	c, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = c.Do(ctx, http.MethodGet, "/quotes", nil)

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_Backoff(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1")
	c.retry = config.RetryConfig{
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     300 * time.Millisecond,
		Multiplier:      2,
	}

	tests := []struct {
		attempt int
		base    time.Duration
	}{
		{attempt: 1, base: 100 * time.Millisecond},
		{attempt: 2, base: 200 * time.Millisecond},
		{attempt: 3, base: 300 * time.Millisecond},
		{attempt: 8, base: 300 * time.Millisecond},
	}

	for _, tt := range tests {
		for range 20 {
			d := c.backoff(tt.attempt)
			assert.GreaterOrEqual(t, d, time.Duration(float64(tt.base)*(1-jitterFactor)))
			assert.LessOrEqual(t, d, time.Duration(float64(tt.base)*(1+jitterFactor)))
		}
	}
}

func TestRetryable(t *testing.T) {
	assert.False(t, retryable(context.Canceled))
	assert.False(t, retryable(context.DeadlineExceeded))
	assert.True(t, retryable(&net.OpError{Op: "dial", Err: io.EOF}))
	assert.False(t, retryable(io.ErrUnexpectedEOF))
}
