// Package server exposes the investigation pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ppiankov/bsdetector/internal/events"
	"github.com/ppiankov/bsdetector/internal/model"
	"github.com/ppiankov/bsdetector/internal/pipeline"
	"github.com/ppiankov/bsdetector/internal/tools"
)

// Pipeline is the subset of pipeline.Service the handlers use
type Pipeline interface {
	Chat(ctx context.Context, req pipeline.ChatRequest, onText func(string)) (*pipeline.ChatResult, error)
	Annotate(ctx context.Context, url string) (*pipeline.AnnotateResult, error)
	Report(ctx context.Context, url string) (*pipeline.ReportLookup, error)
	Parse(ctx context.Context, url string) (*tools.Page, error)
	Transform(ctx context.Context, url, html string) (*pipeline.TransformResult, error)
}

var _ Pipeline = (*pipeline.Service)(nil)

// Server holds the gin router and its dependencies
type Server struct {
	pipeline Pipeline
	bus      *events.Bus
	cfg      model.ServerConfig
	logger   *zerolog.Logger
	router   *gin.Engine
}

// New creates a server and registers all routes
func New(p Pipeline, bus *events.Bus, cfg model.ServerConfig, logger *zerolog.Logger) *Server {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 300 * time.Second
	}
	if cfg.EventPollInterval <= 0 {
		cfg.EventPollInterval = 300 * time.Millisecond
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 15 * time.Second
	}

	s := &Server{
		pipeline: p,
		bus:      bus,
		cfg:      cfg,
		logger:   logger,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger), cors())

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// The event stream is long-lived and sits outside the request timeout
	r.GET("/api/events", s.handleEvents)

	api := r.Group("/api", timeout(s.cfg.RequestTimeout))
	{
		api.POST("/chat", s.handleChat)
		api.POST("/annotate", s.handleAnnotate)
		api.GET("/report", s.handleReport)
		api.GET("/report/html", s.handleReportHTML)
		api.POST("/parse", s.handleParse)
		api.POST("/transform", s.handleTransform)
	}

	return r
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.cfg.Addr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info().Msg("Shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
