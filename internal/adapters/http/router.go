package http

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quotes-api/internal/adapters/http/dto"
	"github.com/jsamuelsen/quotes-api/internal/adapters/http/handlers"
	"github.com/jsamuelsen/quotes-api/internal/adapters/http/middleware"
	"github.com/jsamuelsen/quotes-api/internal/platform/telemetry"
)

// DefaultRequestTimeout is the default deadline for quote routes.
const DefaultRequestTimeout = 5 * time.Second

// RouterConfig contains everything SetupRouter wires together.
type RouterConfig struct {
	// Logger is the base request logger.
	Logger *slog.Logger

	// ServiceName names the server spans.
	ServiceName string

	// HealthHandler serves /-/ endpoints. Optional.
	HealthHandler *handlers.HealthHandler

	// QuoteHandler serves GET / and /quotes.
	QuoteHandler *handlers.QuoteHandler

	// DocsHandler serves the API description. When set, unmatched routes
	// redirect to it; otherwise they get a 404 envelope.
	DocsHandler *handlers.DocsHandler

	// RateLimit throttles quote routes per client IP. Nil disables it.
	RateLimit *middleware.RateLimitConfig

	// Timeout is the deadline for quote routes. Zero disables it.
	Timeout time.Duration
}

// SetupRouter configures all routes and middleware on the Gin engine.
// Global middleware, first to last:
//  1. Recovery
//  2. request logger in context
//  3. Request ID and Correlation ID
//  4. OpenTelemetry tracing and HTTP metrics
//  5. Logging (skips /-/ paths)
//
// Quote routes additionally get RateLimit and Timeout.
func SetupRouter(engine *gin.Engine, cfg RouterConfig) {
	// Match on the escaped path so an author fragment may carry %2F.
	engine.UseRawPath = true
	engine.UnescapePathValues = true

	engine.Use(
		middleware.Recovery(cfg.Logger),
		middleware.Logger(cfg.Logger),
		middleware.RequestID(),
		middleware.CorrelationID(),
		telemetry.TracingMiddleware(cfg.ServiceName),
		telemetry.Middleware(),
		middleware.Logging(cfg.Logger),
	)

	if cfg.HealthHandler != nil {
		cfg.HealthHandler.Register(engine.Group("/-"))
	}

	api := engine.Group("")
	if cfg.RateLimit != nil {
		api.Use(middleware.RateLimit(*cfg.RateLimit))
	}

	if cfg.Timeout > 0 {
		api.Use(middleware.Timeout(cfg.Timeout))
	}

	if cfg.QuoteHandler != nil {
		cfg.QuoteHandler.RegisterRoutes(api)
	}

	if cfg.DocsHandler != nil {
		cfg.DocsHandler.RegisterRoutes(engine)
		engine.NoRoute(cfg.DocsHandler.RedirectToDocs)

		return
	}

	engine.NoRoute(func(c *gin.Context) {
		dto.RespondWithCode(c, dto.ErrorCodeNotFound, "no route for "+c.Request.Method+" "+c.Request.URL.Path)
	})
}
