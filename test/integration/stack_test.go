//go:build integration

package integration

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quotes-api/internal/adapters/clients"
	httpadapter "github.com/jsamuelsen/quotes-api/internal/adapters/http"
	"github.com/jsamuelsen/quotes-api/internal/adapters/http/handlers"
	"github.com/jsamuelsen/quotes-api/internal/adapters/storage"
	"github.com/jsamuelsen/quotes-api/internal/app"
	"github.com/jsamuelsen/quotes-api/internal/platform/config"
	"github.com/jsamuelsen/quotes-api/internal/ports"
)

// drivers are the store backends every end-to-end test runs against.
var drivers = []string{config.StoreDriverMemory, config.StoreDriverSQLite}

// stack is a fully wired quotes API served from an httptest server.
type stack struct {
	server *httptest.Server
	repo   ports.QuoteRepository
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newStack wires the store, the application layer and the router the same
// way the service binary does. Seeded stacks start with the three default
// quotes.
func newStack(driver string, seeded bool) (*stack, error) {
	gin.SetMode(gin.TestMode)

	logger := discardLogger()

	cfg := &config.StoreConfig{Driver: driver}
	if driver == config.StoreDriverSQLite {
		cfg.DSN = ":memory:"
	}

	repo, err := storage.Open(cfg, logger)
	if err != nil {
		return nil, err
	}

	if seeded {
		if _, err := app.Seed(context.Background(), repo, app.DefaultSeed(), logger); err != nil {
			_ = repo.Close()
			return nil, err
		}
	}

	registry := ports.NewHealthRegistry()
	if err := registry.Register(repo); err != nil {
		_ = repo.Close()
		return nil, err
	}

	engine := gin.New()
	httpadapter.SetupRouter(engine, httpadapter.RouterConfig{
		Logger:        logger,
		ServiceName:   "quotes-api-integration",
		HealthHandler: handlers.NewHealthHandler(registry, handlers.BuildInfo{Version: "integration"}),
		QuoteHandler: handlers.NewQuoteHandler(app.NewQuoteService(app.QuoteServiceConfig{
			Repository: repo,
			Logger:     logger,
		})),
		DocsHandler: handlers.NewDocsHandler("/docs"),
		Timeout:     5 * time.Second,
	})

	return &stack{server: httptest.NewServer(engine), repo: repo}, nil
}

func (s *stack) URL() string {
	return s.server.URL
}

func (s *stack) Close() {
	s.server.Close()
	_ = s.repo.Close()
}

// quotesClient returns an API client for the stack with short retry delays.
func (s *stack) quotesClient() (*clients.QuotesClient, error) {
	c, err := clients.New(clients.Config{
		BaseURL: s.URL(),
		Timeout: 5 * time.Second,
		Retry: config.RetryConfig{
			MaxAttempts:     2,
			InitialInterval: 5 * time.Millisecond,
			MaxInterval:     20 * time.Millisecond,
			Multiplier:      2,
		},
		Breaker: clients.BreakerConfig{MaxFailures: 10, CoolDown: time.Second, Probes: 3},
		Logger:  discardLogger(),
	})
	if err != nil {
		return nil, err
	}

	return clients.NewQuotesClient(c), nil
}
