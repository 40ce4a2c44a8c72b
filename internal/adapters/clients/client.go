// Package clients is a Go client for the quotes HTTP API.
package clients

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/quotes-api/internal/adapters/http/middleware"
	"github.com/jsamuelsen/quotes-api/internal/platform/config"
	"github.com/jsamuelsen/quotes-api/internal/platform/logging"
)

const (
	instrumentationName = "github.com/jsamuelsen/quotes-api/internal/adapters/clients"

	// peerService names the remote side in spans, metrics and errors.
	peerService = "quotes-api"

	defaultTimeout = 10 * time.Second

	// jitterFactor spreads each backoff by up to ±25%.
	jitterFactor = 0.25

	transportMaxIdleConns        = 20
	transportMaxIdleConnsPerHost = 10
	transportIdleConnTimeout     = 90 * time.Second
)

// Config configures a Client.
type Config struct {
	// BaseURL is the root of the quotes API, e.g. "http://127.0.0.1:8080".
	BaseURL string

	// Timeout bounds each attempt. Retries and backoff come on top.
	Timeout time.Duration

	Retry   config.RetryConfig
	Breaker BreakerConfig

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Transport overrides the default pooled transport.
	Transport http.RoundTripper
}

// ConfigFrom builds a client Config from the loaded service configuration.
func ConfigFrom(cfg *config.ClientConfig, logger *slog.Logger) Config {
	return Config{
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
		Retry:   cfg.Retry,
		Breaker: BreakerConfig{
			MaxFailures: cfg.CircuitBreaker.MaxFailures,
			CoolDown:    cfg.CircuitBreaker.Timeout,
			Probes:      cfg.CircuitBreaker.HalfOpenLimit,
		},
		Logger: logger,
	}
}

// Client sends requests to a quotes server with retries, a circuit
// breaker, tracing and metrics. Every request carries a fresh
// X-Request-ID and the client's X-Correlation-ID.
type Client struct {
	http          *http.Client
	baseURL       string
	correlationID string
	retry         config.RetryConfig
	breaker       *Breaker
	logger        *slog.Logger

	tracer   trace.Tracer
	duration metric.Float64Histogram
	total    metric.Int64Counter
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	cfg.Retry.MaxAttempts = max(cfg.Retry.MaxAttempts, 1)

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	logger = logger.With(slog.String("component", "quotes-client"))

	breaker := NewBreaker(cfg.Breaker)
	breaker.OnStateChange(func(from, to State) {
		logger.Warn("circuit breaker state changed",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	})

	meter := otel.Meter(instrumentationName)

	duration, err := meter.Float64Histogram(
		"quotes.client.request.duration",
		metric.WithDescription("Duration of quotes API calls, retries included"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration metric: %w", err)
	}

	total, err := meter.Int64Counter(
		"quotes.client.request.total",
		metric.WithDescription("Total quotes API calls"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating request counter: %w", err)
	}

	transport := cfg.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        transportMaxIdleConns,
			MaxIdleConnsPerHost: transportMaxIdleConnsPerHost,
			IdleConnTimeout:     transportIdleConnTimeout,
		}
	}

	return &Client{
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		baseURL:       strings.TrimSuffix(cfg.BaseURL, "/"),
		correlationID: uuid.NewString(),
		retry:         cfg.Retry,
		breaker:       breaker,
		logger:        logger,
		tracer:        otel.Tracer(instrumentationName),
		duration:      duration,
		total:         total,
	}, nil
}

// CircuitState returns the breaker state.
func (c *Client) CircuitState() State {
	return c.breaker.State()
}

// CorrelationID returns the id sent with every request from this client.
func (c *Client) CorrelationID() string {
	return c.correlationID
}

// Do sends method path with an optional JSON body. Connection failures and
// 5xx answers are retried with backoff, except for POST which is sent once.
// When the last attempt got an answer, that response is returned even if
// it is a 5xx, so callers can read the error envelope. The caller closes
// the body.
func (c *Client) Do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	start := time.Now()
	requestID := uuid.NewString()

	logger := logging.FromContextOr(ctx, c.logger).With(
		slog.String("method", method),
		slog.String("path", path),
		slog.String("request_id", requestID),
	)

	if !c.breaker.Allow() {
		c.record(ctx, method, 0, start, "circuit_open")
		logger.Warn("request blocked by circuit breaker")

		return nil, ErrCircuitOpen
	}

	ctx, span := c.tracer.Start(ctx, "quotes-api "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
			attribute.String("peer.service", peerService),
		),
	)
	defer span.End()

	attempts := c.retry.MaxAttempts
	if method == http.MethodPost {
		attempts = 1
	}

	resp, err := c.attempt(ctx, logger, method, path, body, requestID, attempts)
	if err != nil {
		c.breaker.Failure()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.record(ctx, method, 0, start, "error")
		logger.Error("request failed", slog.Duration("duration", time.Since(start)), slog.Any("error", err))

		return nil, err
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		c.breaker.Failure()
	} else {
		c.breaker.Success()
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode >= http.StatusBadRequest {
		span.SetStatus(codes.Error, resp.Status)
	}

	c.record(ctx, method, resp.StatusCode, start, fmt.Sprintf("%dxx", resp.StatusCode/100))
	logger.Debug("request completed",
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	return resp, nil
}

func (c *Client) attempt(ctx context.Context, logger *slog.Logger, method, path string, body []byte,
	requestID string, attempts int,
) (*http.Response, error) {
	var lastErr error

	for n := range attempts {
		if n > 0 {
			backoff := c.backoff(n)
			logger.Debug("retrying request", slog.Int("attempt", n+1), slog.Duration("backoff", backoff))

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := c.newRequest(ctx, method, path, body, requestID)
		if err != nil {
			return nil, err
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if !retryable(err) {
				return nil, fmt.Errorf("%s %s: %w", method, path, err)
			}

			lastErr = err

			continue
		}

		if resp.StatusCode < http.StatusInternalServerError || n == attempts-1 {
			return resp, nil
		}

		_ = resp.Body.Close()
		lastErr = fmt.Errorf("server answered %s", resp.Status)
	}

	return nil, fmt.Errorf("%w after %d attempts: %w", ErrMaxRetriesExceeded, attempts, lastErr)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte, requestID string) (*http.Request, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set(middleware.HeaderRequestID, requestID)
	req.Header.Set(middleware.HeaderCorrelationID, c.correlationID)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	return req, nil
}

// backoff returns initial * multiplier^(n-1), capped at MaxInterval, ±25% jitter.
func (c *Client) backoff(n int) time.Duration {
	d := float64(c.retry.InitialInterval) * math.Pow(c.retry.Multiplier, float64(n-1))
	if limit := float64(c.retry.MaxInterval); limit > 0 && d > limit {
		d = limit
	}

	d += d * jitterFactor * (rand.Float64()*2 - 1) //nolint:gosec // jitter needs no crypto randomness

	return time.Duration(d)
}

func (c *Client) record(ctx context.Context, method string, status int, start time.Time, result string) {
	attrs := []attribute.KeyValue{
		attribute.String("http.request.method", method),
		attribute.String("result", result),
	}

	if status > 0 {
		attrs = append(attrs, attribute.Int("http.response.status_code", status))
	}

	c.duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attrs...))
	c.total.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// retryable reports whether a transport error is worth another attempt.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError

	return errors.As(err, &opErr)
}
