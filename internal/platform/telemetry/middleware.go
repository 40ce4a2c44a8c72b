package telemetry

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/quotes-api/internal/platform/logging"
)

const (
	instrumentationName = "github.com/jsamuelsen/quotes-api/telemetry"

	// TraceIDKey is the gin.Context key holding the active trace id.
	TraceIDKey = "trace_id"

	// HeaderTraceID echoes the trace id to callers.
	HeaderTraceID = "X-Trace-ID"

	// unmatchedRoute labels requests no route matched, which keeps the
	// http.route attribute bounded.
	unmatchedRoute = "unmatched"
)

// httpMetrics holds the server-side request instruments.
type httpMetrics struct {
	duration metric.Float64Histogram
	total    metric.Int64Counter
	inFlight metric.Int64UpDownCounter
}

func newHTTPMetrics(meter metric.Meter) (*httpMetrics, error) {
	duration, err := meter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("Duration of quotes API requests"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	total, err := meter.Int64Counter("http.server.request.total",
		metric.WithDescription("Quotes API requests served"),
	)
	if err != nil {
		return nil, err
	}

	inFlight, err := meter.Int64UpDownCounter("http.server.active_requests",
		metric.WithDescription("Quotes API requests in flight"),
	)
	if err != nil {
		return nil, err
	}

	return &httpMetrics{duration: duration, total: total, inFlight: inFlight}, nil
}

func (m *httpMetrics) begin(ctx context.Context, route []attribute.KeyValue) func(status int) {
	start := time.Now()
	m.inFlight.Add(ctx, 1, metric.WithAttributes(route...))

	return func(status int) {
		m.inFlight.Add(ctx, -1, metric.WithAttributes(route...))

		attrs := metric.WithAttributes(append(route, attribute.Int("http.status_code", status))...)
		m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
		m.total.Add(ctx, 1, attrs)
	}
}

func routeAttrs(c *gin.Context) []attribute.KeyValue {
	route := c.FullPath()
	if route == "" {
		route = unmatchedRoute
	}

	return []attribute.KeyValue{
		attribute.String("http.method", c.Request.Method),
		attribute.String("http.route", route),
	}
}

// Middleware records request metrics. When a span is active its trace id is
// echoed as X-Trace-ID and added to the request logger. Install it after
// TracingMiddleware so a span exists.
func Middleware() gin.HandlerFunc {
	metrics, err := newHTTPMetrics(otel.Meter(instrumentationName))
	if err != nil {
		otel.Handle(err)
	}

	return func(c *gin.Context) {
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
			traceID := sc.TraceID().String()
			c.Set(TraceIDKey, traceID)
			c.Header(HeaderTraceID, traceID)
			c.Request = c.Request.WithContext(logging.WithTraceID(c.Request.Context(), traceID))
		}

		if metrics == nil {
			c.Next()
			return
		}

		done := metrics.begin(c.Request.Context(), routeAttrs(c))

		c.Next()

		done(c.Writer.Status())
	}
}

// TracingMiddleware returns the otelgin tracing middleware. Internal
// /-/ endpoints are not traced.
func TracingMiddleware(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName, otelgin.WithGinFilter(func(c *gin.Context) bool {
		return !strings.HasPrefix(c.Request.URL.Path, "/-/")
	}))
}
