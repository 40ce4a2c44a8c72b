package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quotes-api/internal/adapters/http/dto"
	"github.com/jsamuelsen/quotes-api/internal/adapters/http/handlers"
	"github.com/jsamuelsen/quotes-api/internal/adapters/http/middleware"
	"github.com/jsamuelsen/quotes-api/internal/adapters/storage/memory"
	"github.com/jsamuelsen/quotes-api/internal/app"
	"github.com/jsamuelsen/quotes-api/internal/mocks"
	"github.com/jsamuelsen/quotes-api/internal/platform/config"
	"github.com/jsamuelsen/quotes-api/internal/ports"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testServerConfig() *config.ServerConfig {
	return &config.ServerConfig{
		Host:           "127.0.0.1",
		Port:           0,
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    30 * time.Second,
		MaxRequestSize: 1 << 10,
	}
}

func quoteHandler() *handlers.QuoteHandler {
	return handlers.NewQuoteHandler(app.NewQuoteService(app.QuoteServiceConfig{
		Repository: memory.New(),
		Logger:     discardLogger(),
	}))
}

func healthHandler(t *testing.T) *handlers.HealthHandler {
	t.Helper()

	registry := mocks.NewMockHealthRegistry(t)
	registry.EXPECT().CheckAll(mock.Anything).Return(&ports.HealthResult{
		Status: ports.HealthStatusHealthy,
		Checks: map[string]*ports.CheckResult{},
	}).Maybe()

	return handlers.NewHealthHandler(registry, handlers.BuildInfo{Version: "test"})
}

func do(engine *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(w, req)

	return w
}

func TestServer_Addr(t *testing.T) {
	tests := []struct {
		host         string
		port         int
		expectedAddr string
	}{
		{host: "localhost", port: 8080, expectedAddr: "localhost:8080"},
		{host: "0.0.0.0", port: 3000, expectedAddr: "0.0.0.0:3000"},
		{host: "::1", port: 0, expectedAddr: "[::1]:0"},
	}

	for _, tt := range tests {
		t.Run(tt.expectedAddr, func(t *testing.T) {
			cfg := testServerConfig()
			cfg.Host = tt.host
			cfg.Port = tt.port

			srv := New(cfg, discardLogger())

			assert.Equal(t, tt.expectedAddr, srv.Addr())
			assert.NotNil(t, srv.Engine())
		})
	}
}

func TestServer_StartServesOnBaseURL(t *testing.T) {
	srv := New(testServerConfig(), discardLogger())
	srv.Engine().GET("/", func(c *gin.Context) { c.String(http.StatusOK, "up") })

	errCh, err := srv.Start()
	require.NoError(t, err)

	baseURL := srv.BaseURL()
	assert.True(t, strings.HasPrefix(baseURL, "http://127.0.0.1:"), baseURL)
	assert.NotEqual(t, "http://127.0.0.1:0", baseURL)

	resp, err := http.Get(baseURL + "/")
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, err)
	assert.Equal(t, "up", string(body))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, srv.Shutdown(ctx))

	_, open := <-errCh
	assert.False(t, open, "error channel should be closed")
}

func TestServer_StartReportsBindFailure(t *testing.T) {
	first := New(testServerConfig(), discardLogger())
	_, err := first.Start()
	require.NoError(t, err)

	t.Cleanup(func() { _ = first.Shutdown(context.Background()) })

	cfg := testServerConfig()
	_, port, err := net.SplitHostPort(first.Addr())
	require.NoError(t, err)

	cfg.Port, err = strconv.Atoi(port)
	require.NoError(t, err)

	_, err = New(cfg, discardLogger()).Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listening on")
}

func TestServer_BaseURL_WildcardHost(t *testing.T) {
	cfg := testServerConfig()
	cfg.Host = "0.0.0.0"
	cfg.Port = 8080

	assert.Equal(t, "http://127.0.0.1:8080", New(cfg, discardLogger()).BaseURL())
}

func TestMaxBodySize(t *testing.T) {
	srv := New(testServerConfig(), discardLogger())
	SetupRouter(srv.Engine(), RouterConfig{Logger: discardLogger(), QuoteHandler: quoteHandler()})

	big := `{"author":"A","text":"` + strings.Repeat("x", 2<<10) + `"}`
	w := do(srv.Engine(), http.MethodPost, "/quotes", big)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSetupRouter_Routes(t *testing.T) {
	engine := gin.New()
	SetupRouter(engine, RouterConfig{
		Logger:        discardLogger(),
		ServiceName:   "quotes-api",
		HealthHandler: healthHandler(t),
		QuoteHandler:  quoteHandler(),
		DocsHandler:   handlers.NewDocsHandler("/docs"),
		Timeout:       DefaultRequestTimeout,
	})

	routes := make(map[string]bool)
	for _, r := range engine.Routes() {
		routes[r.Method+" "+r.Path] = true
	}

	for _, expected := range []string{
		"GET /",
		"GET /quotes",
		"POST /quotes",
		"GET /quotes/search/:author",
		"GET /quotes/:id",
		"PUT /quotes/:id",
		"DELETE /quotes/:id",
		"GET /docs",
		"GET /-/live",
		"GET /-/ready",
		"GET /-/metrics",
	} {
		assert.True(t, routes[expected], "missing route: %s", expected)
	}

	w := do(engine, http.MethodGet, "/", "")
	assert.Equal(t, handlers.Greeting, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderRequestID))
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderCorrelationID))

	w = do(engine, http.MethodGet, "/quotes", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestSetupRouter_UnmatchedRoutes(t *testing.T) {
	t.Run("redirect to docs", func(t *testing.T) {
		engine := gin.New()
		SetupRouter(engine, RouterConfig{
			Logger:       discardLogger(),
			QuoteHandler: quoteHandler(),
			DocsHandler:  handlers.NewDocsHandler("/docs"),
		})

		w := do(engine, http.MethodGet, "/swagger-ui.html", "")

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/docs", w.Header().Get("Location"))
	})

	t.Run("404 envelope without docs", func(t *testing.T) {
		engine := gin.New()
		SetupRouter(engine, RouterConfig{Logger: discardLogger(), QuoteHandler: quoteHandler()})

		w := do(engine, http.MethodGet, "/nowhere", "")

		assert.Equal(t, http.StatusNotFound, w.Code)

		var resp dto.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, dto.ErrorCodeNotFound, resp.Error.Code)
	})
}

func TestSetupRouter_SearchWithEscapedSlash(t *testing.T) {
	engine := gin.New()
	SetupRouter(engine, RouterConfig{
		Logger:       discardLogger(),
		QuoteHandler: quoteHandler(),
		DocsHandler:  handlers.NewDocsHandler("/docs"),
	})

	w := do(engine, http.MethodPost, "/quotes", `{"author":"AC/DC","text":"Let there be rock"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(engine, http.MethodGet, "/quotes/search/AC%2FDC", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"id":1,"author":"AC/DC","text":"Let there be rock"}]`, w.Body.String())

	w = do(engine, http.MethodGet, "/quotes/search/c%2Fd", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(engine, http.MethodGet, "/quotes/search/x%2Fy", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.ErrorCodeNotFound, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, `"x/y"`)

	w = do(engine, http.MethodGet, "/quotes/1", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSetupRouter_RateLimitSparesHealth(t *testing.T) {
	engine := gin.New()
	SetupRouter(engine, RouterConfig{
		Logger:        discardLogger(),
		HealthHandler: healthHandler(t),
		QuoteHandler:  quoteHandler(),
		RateLimit:     &middleware.RateLimitConfig{RPS: 0.001, Burst: 1},
	})

	assert.Equal(t, http.StatusOK, do(engine, http.MethodGet, "/quotes", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(engine, http.MethodGet, "/quotes", "").Code)
	assert.Equal(t, http.StatusOK, do(engine, http.MethodGet, "/-/live", "").Code)
}
