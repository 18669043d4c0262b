// Package api serves the evaluation engine over HTTP with gin.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ahrav/go-rubric/internal/catalog"
	"github.com/ahrav/go-rubric/internal/domain"
)

const shutdownTimeout = 15 * time.Second

// Evaluator runs evaluation requests. *evaluation.Engine implements it.
type Evaluator interface {
	Evaluate(ctx context.Context, req domain.EvaluationRequest) (*domain.EvaluationOutcome, error)
	Catalog() *catalog.Catalog
	DefaultModel() string
}

// Server exposes the evaluation endpoints.
type Server struct {
	evaluator Evaluator
	logger    *slog.Logger
	router    *gin.Engine
	now       func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces time.Now for timestamps and timings.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer builds the router for evaluator.
func NewServer(evaluator Evaluator, opts ...Option) *Server {
	s := &Server{
		evaluator: evaluator,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "api")

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger), allowAllOrigins())
	r.GET("/health", s.health)
	r.GET("/schemes", s.listSchemes)
	r.GET("/schemes/:id", s.getScheme)
	r.POST("/evaluate", s.evaluate)
	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is canceled, then drains
// in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving http on %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}
