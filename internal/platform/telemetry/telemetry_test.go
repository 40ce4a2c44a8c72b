package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNew_DisabledIsNoop(t *testing.T) {
	p, err := New(context.Background(), &Config{Enabled: false, StoreDriver: "memory"})
	require.NoError(t, err)

	assert.False(t, p.Enabled())
	assert.NoError(t, p.Shutdown(context.Background()))
	assert.Contains(t, otel.GetTextMapPropagator().Fields(), "traceparent")
}

func TestNewResource_RecordsStoreDriver(t *testing.T) {
	res, err := newResource(&Config{ServiceName: "quotes-api", Version: "1.2.3", Environment: "test", StoreDriver: "sqlite"})
	require.NoError(t, err)

	driver, ok := res.Set().Value(StoreDriverKey)
	require.True(t, ok)
	assert.Equal(t, "sqlite", driver.AsString())
}

func TestRegisterQuoteGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	n := 3

	require.NoError(t, RegisterQuoteGauge(reg, func(context.Context) (int, error) { return n, nil }))

	expected := `
# HELP quotes_stored Number of quotes currently held by the store.
# TYPE quotes_stored gauge
quotes_stored 3
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "quotes_stored"))

	n = 4
	count, err := testutil.GatherAndCount(reg, "quotes_stored")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRegisterQuoteGauge_CountError(t *testing.T) {
	reg := prometheus.NewRegistry()

	require.NoError(t, RegisterQuoteGauge(reg, func(context.Context) (int, error) {
		return 0, errors.New("store closed")
	}))

	expected := `
# HELP quotes_stored Number of quotes currently held by the store.
# TYPE quotes_stored gauge
quotes_stored -1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "quotes_stored"))
}

func TestRegisterQuoteGauge_TwiceIsAllowed(t *testing.T) {
	reg := prometheus.NewRegistry()
	count := func(context.Context) (int, error) { return 0, nil }

	require.NoError(t, RegisterQuoteGauge(reg, count))
	require.NoError(t, RegisterQuoteGauge(reg, count))
}

func TestMiddleware_PassesThrough(t *testing.T) {
	engine := gin.New()
	engine.Use(TracingMiddleware("quotes-api"), Middleware())
	engine.GET("/quotes", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/quotes", http.NoBody))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestMiddleware_RecordsRoutes(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	t.Cleanup(func() { otel.SetMeterProvider(noop.NewMeterProvider()) })

	engine := gin.New()
	engine.Use(Middleware())
	engine.GET("/quotes/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/quotes/1", "/quotes/2", "/nowhere"} {
		engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, http.NoBody))
	}

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	counts := map[string]int64{}

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "http.server.request.total" {
				continue
			}

			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)

			for _, dp := range sum.DataPoints {
				route, _ := dp.Attributes.Value("http.route")
				counts[route.AsString()] += dp.Value
			}
		}
	}

	assert.Equal(t, map[string]int64{"/quotes/:id": 2, "unmatched": 1}, counts)
}
