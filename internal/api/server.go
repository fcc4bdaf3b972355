// Package api exposes the research lab over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/research-lab/internal/analysis"
	"github.com/yourusername/research-lab/internal/metrics"
	"github.com/yourusername/research-lab/internal/models"
	"github.com/yourusername/research-lab/internal/service"
)

// ExperimentService is the orchestrator surface the API drives
type ExperimentService interface {
	CreateExperiment(ctx context.Context, req service.CreateRequest) (*models.Experiment, error)
	StartExperiment(ctx context.Context, id uuid.UUID) (*models.Experiment, error)
	CancelExperiment(ctx context.Context, id uuid.UUID, reason string) error
	GetStatus(ctx context.Context, id uuid.UUID) (*service.StatusReport, error)
	ListExperiments(ctx context.Context, filter models.ExperimentFilter) ([]*models.Experiment, error)
	Stats() service.OrchestratorStats
}

// ResearchRunner triggers research work on demand
type ResearchRunner interface {
	RunResearchCycle(ctx context.Context) (*service.CycleReport, error)
	RefineTopExperiments(ctx context.Context, n int) ([]*models.Experiment, error)
}

// ResultsAnalyzer analyzes stored experiments
type ResultsAnalyzer interface {
	Analyze(ctx context.Context, outcome analysis.Outcome) (*analysis.AnalysisResult, error)
}

// Dependencies are the collaborators behind the HTTP handlers. Research and
// Events may be nil.
type Dependencies struct {
	Experiments ExperimentService
	Research    ResearchRunner
	Analyzer    ResultsAnalyzer
	// Events serves the lifecycle websocket stream.
	Events  http.Handler
	Metrics *metrics.Registry
	Logger  *logrus.Logger
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// CancelWait bounds how long a cancel request waits for the task to stop.
	CancelWait time.Duration
}

// Server wraps the Echo HTTP server
type Server struct {
	echo   *echo.Echo
	deps   Dependencies
	cfg    ServerConfig
	logger *logrus.Logger
}

// NewServer creates the API server and registers its routes
func NewServer(deps Dependencies, cfg ServerConfig) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.CancelWait == 0 {
		cfg.CancelWait = 30 * time.Second
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newRequestValidator()
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout

	s := &Server{echo: e, deps: deps, cfg: cfg, logger: deps.Logger}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogging(deps.Logger, deps.Metrics))

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	v1 := s.echo.Group("/api/v1")

	exps := v1.Group("/experiments")
	exps.POST("", s.createExperiment)
	exps.GET("", s.listExperiments)
	exps.GET("/:id", s.getExperiment)
	exps.POST("/:id/start", s.startExperiment)
	exps.POST("/:id/cancel", s.cancelExperiment)
	exps.GET("/:id/analysis", s.analyzeExperiment)

	v1.POST("/analysis/compare", s.compareExperiments)
	v1.GET("/stats", s.stats)

	if s.deps.Research != nil {
		v1.POST("/research/cycles", s.runResearchCycle)
		v1.POST("/research/refinements", s.refineExperiments)
	}
	if s.deps.Events != nil {
		s.echo.GET("/ws/experiments", echo.WrapHandler(s.deps.Events))
	}
}

// Handler returns the HTTP handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens and serves in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	s.echo.Listener = ln

	go func() {
		s.logger.WithField("addr", ln.Addr().String()).Info("API server listening")
		if err := s.echo.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).Error("API server error")
		}
	}()
	return nil
}

// Stop gracefully shuts the server down
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.logger.Info("API server stopped")
	return nil
}
