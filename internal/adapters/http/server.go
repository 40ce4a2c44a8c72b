// Package http is the gin transport of the quotes API: the server, its
// router, handlers and middleware.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quotes-api/internal/platform/config"
)

// Server owns the gin engine and the net/http server in front of it.
type Server struct {
	engine *gin.Engine
	srv    *http.Server
	ln     net.Listener
	logger *slog.Logger
}

// New builds a server for cfg. Request bodies above cfg.MaxRequestSize
// fail to decode. Nothing listens until Start.
func New(cfg *config.ServerConfig, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(limitBody(cfg.MaxRequestSize))

	return &Server{
		engine: engine,
		srv: &http.Server{
			Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
			Handler:           engine,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
		},
		logger: logger,
	}
}

// Engine is where routes are registered.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Start binds and then serves in the background. Bind errors are returned
// directly; later serve errors are sent on the channel, which closes once
// serving ends.
func (s *Server) Start() (<-chan error, error) {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", s.srv.Addr, err)
	}

	s.ln = ln
	s.logger.Info("http server listening",
		slog.String("addr", ln.Addr().String()),
		slog.Duration("read_timeout", s.srv.ReadTimeout),
		slog.Duration("write_timeout", s.srv.WriteTimeout),
	)

	errs := make(chan error, 1)

	go func() {
		defer close(errs)

		err := s.srv.Serve(ln)
		if !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("serving http: %w", err)
		}
	}()

	return errs, nil
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	start := time.Now()

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	s.logger.Info("http server stopped", slog.Duration("drained_in", time.Since(start)))

	return nil
}

// Addr is the bound address after Start and the configured one before.
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.srv.Addr
	}

	return s.ln.Addr().String()
}

// BaseURL is the URL a local client can use. Wildcard hosts become
// 127.0.0.1.
func (s *Server) BaseURL() string {
	host, port, err := net.SplitHostPort(s.Addr())
	if err != nil {
		return "http://" + s.Addr()
	}

	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "127.0.0.1"
	}

	return "http://" + net.JoinHostPort(host, port)
}

func limitBody(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
