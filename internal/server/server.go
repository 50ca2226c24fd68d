// Package server exposes a store over HTTP so that indexing runs on other
// hosts can write to it through store.RemoteStore.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Aman-CERP/amanrdf/internal/metrics"
	"github.com/Aman-CERP/amanrdf/internal/store"
)

// DefaultMaxBodyBytes bounds one bulk request body.
const DefaultMaxBodyBytes = 64 << 20

// shutdownTimeout is how long in-flight requests get after Run's context
// is cancelled.
const shutdownTimeout = 10 * time.Second

// Server serves one store.
type Server struct {
	store   store.Store
	metrics *metrics.Metrics
	engine  *gin.Engine
	maxBody int64
}

// Option configures a Server.
type Option func(*Server)

// WithMaxBodyBytes overrides DefaultMaxBodyBytes.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

// New builds the router for st. m may be nil, in which case /metrics is
// not served.
func New(st store.Store, m *metrics.Metrics, opts ...Option) *Server {
	s := &Server{
		store:   st,
		metrics: m,
		maxBody: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(s)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(), bodyLimit(s.maxBody))
	if m != nil {
		engine.Use(observe(m))
	}
	s.engine = engine
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.engine

	r.GET("/health", s.handleHealth)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	r.GET("/indices", s.handleListIndices)
	indices := r.Group("/indices/:index")
	{
		indices.PUT("", s.handleCreateIndex)
		indices.HEAD("", s.handleIndexExists)
		indices.DELETE("", s.handleDeleteIndex)
		indices.POST("/_bulk", s.handleBulk)
		indices.GET("/_count", s.handleCount)
		indices.GET("/_lookup", s.handleLookup)
		indices.GET("/_search", s.handleSearch)
	}
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run listens on addr until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server_started", slog.String("addr", addr), slog.String("store", s.store.Location()))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("server_shutdown_failed", slog.String("error", err.Error()))
		return err
	}
	slog.Info("server_stopped", slog.String("addr", addr))
	return nil
}
