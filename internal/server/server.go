// Package server exposes the trip engine over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/beetlebot/skitrip-cli/internal/core"
	"github.com/beetlebot/skitrip-cli/internal/logging"
)

const (
	DefaultSearchTimeout = 2 * time.Minute
	shutdownTimeout      = 10 * time.Second
)

// Catalog is the reference data the API lists.
type Catalog interface {
	core.Catalog
	Regions() []string
}

// EngineFunc builds a fresh, not yet running engine. paced is false for
// one-shot searches, which do not need reveal pacing.
type EngineFunc func(paced bool) *core.Orchestrator

type Deps struct {
	Catalog       Catalog
	Providers     func() []core.ProviderInfo
	NewEngine     EngineFunc
	SearchTimeout time.Duration
}

// Server owns the gin engine. Each search runs on its own Orchestrator so
// concurrent clients never share a query.
type Server struct {
	catalog       Catalog
	providers     func() []core.ProviderInfo
	newEngine     EngineFunc
	searchTimeout time.Duration
	router        *gin.Engine
}

func New(deps Deps) *Server {
	if deps.SearchTimeout <= 0 {
		deps.SearchTimeout = DefaultSearchTimeout
	}
	if deps.Providers == nil {
		deps.Providers = func() []core.ProviderInfo { return nil }
	}
	s := &Server{
		catalog:       deps.Catalog,
		providers:     deps.Providers,
		newEngine:     deps.NewEngine,
		searchTimeout: deps.SearchTimeout,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(logging.GinLogger(), gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	api := r.Group("/api")
	api.POST("/trips/search", s.searchTrips)
	api.GET("/trips/stream", s.streamTrips)
	api.GET("/resorts", s.listResorts)
	api.GET("/providers", s.listProviders)
	return r
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", addr)
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
	slog.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// startEngine runs a fresh engine bound to ctx. stop cancels it and waits
// for its loop to exit.
func (s *Server) startEngine(ctx context.Context, paced bool) (*core.Orchestrator, func()) {
	ctx, cancel := context.WithCancel(ctx)
	o := s.newEngine(paced)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := o.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("engine stopped", "error", err)
		}
	}()
	return o, func() {
		cancel()
		<-done
	}
}
