// Package app wires the research lab from configuration and owns its lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/research-lab/internal/analysis"
	"github.com/yourusername/research-lab/internal/api"
	"github.com/yourusername/research-lab/internal/config"
	"github.com/yourusername/research-lab/internal/database"
	"github.com/yourusername/research-lab/internal/events"
	"github.com/yourusername/research-lab/internal/health"
	"github.com/yourusername/research-lab/internal/hypothesis"
	"github.com/yourusername/research-lab/internal/logger"
	"github.com/yourusername/research-lab/internal/metrics"
	"github.com/yourusername/research-lab/internal/platform"
	"github.com/yourusername/research-lab/internal/repository"
	"github.com/yourusername/research-lab/internal/scheduler"
	"github.com/yourusername/research-lab/internal/service"
)

const (
	platformModeSimulated = "simulated"
	storeBackendPostgres  = "postgres"
	pendingSweepInterval  = 30 * time.Second
)

// BuildInfo identifies the running binary
type BuildInfo struct {
	Version string
	Commit  string
}

// App holds every long-lived component. It is built once by New and passed
// explicitly to whatever needs it.
type App struct {
	Config  *config.Config
	Logger  *logrus.Logger
	Metrics *metrics.Registry

	Repositories *repository.Repositories
	Platform     platform.Client
	Analyzer     *analysis.Analyzer
	Orchestrator *service.ExperimentOrchestrator
	Knowledge    *service.KnowledgeService
	Research     *service.ResearchService
	Hub          *events.Hub

	Scheduler *scheduler.Scheduler
	API       *api.Server
	Health    *health.Server

	db         *database.DB
	grpcHealth *platform.GRPCHealthChecker
	kafka      *events.KafkaPublisher
	httpClient *platform.HTTPClient
	cancel     context.CancelFunc
}

// New builds the application. Secrets are overlaid before any connection is made.
func New(ctx context.Context, cfg *config.Config, build BuildInfo) (*App, error) {
	if err := config.LoadSecretsFromAWS(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to load secrets: %w", err)
	}

	log := logger.NewLogger(cfg.App.LogLevel, cfg.App.Environment)
	a := &App{
		Config:  cfg,
		Logger:  log,
		Metrics: metrics.NewRegistry(),
	}

	if err := a.initStore(ctx); err != nil {
		return nil, err
	}
	if err := a.initPlatform(); err != nil {
		a.closeResources()
		return nil, err
	}
	if err := a.initEvents(); err != nil {
		a.closeResources()
		return nil, err
	}

	scorer, err := analysis.NewFitnessScorer(cfg.Fitness.ScoringConfig())
	if err != nil {
		a.closeResources()
		return nil, fmt.Errorf("invalid fitness configuration: %w", err)
	}
	a.Analyzer = analysis.NewAnalyzer(analysis.NewMetricsCalculator(cfg.Fitness.RiskFreeRate), scorer)

	publisher := a.publisher()
	a.Knowledge = service.NewKnowledgeService(a.Repositories.Knowledge, publisher, log, a.Metrics)

	executor := service.NewPlatformExecutor(a.Platform, service.PlatformExecutorConfig{
		PollInterval:      cfg.Orchestrator.PollInterval(),
		MaxStatusFailures: cfg.Orchestrator.MaxStatusFailures,
	}, log)

	a.Orchestrator = service.NewExperimentOrchestrator(
		a.Repositories.Experiment,
		executor,
		a.Analyzer,
		a.Knowledge,
		publisher,
		service.OrchestratorConfig{
			MaxConcurrentExperiments: cfg.Orchestrator.MaxConcurrentExperiments,
			DefaultTimeoutHours:      cfg.Orchestrator.DefaultTimeoutHours,
		},
		log,
		a.Metrics,
	)

	a.Research = service.NewResearchService(
		a.Orchestrator,
		a.generator(),
		a.Knowledge,
		service.ResearchConfig{
			Focus:           cfg.Research.Focus,
			MaxHypotheses:   cfg.Hypothesis.MaxHypotheses,
			MinConfidence:   cfg.Hypothesis.MinConfidence,
			DefaultPriority: cfg.Research.DefaultPriority,
			RefineTopN:      cfg.Research.RefineTopN,
		},
		log,
		a.Metrics,
	)

	if cfg.Research.Enabled {
		if err := a.initScheduler(); err != nil {
			a.closeResources()
			return nil, err
		}
	}

	a.API = api.NewServer(api.Dependencies{
		Experiments: a.Orchestrator,
		Research:    a.Research,
		Analyzer:    a.Analyzer,
		Events:      a.Hub,
		Metrics:     a.Metrics,
		Logger:      log,
	}, api.ServerConfig{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		ReadTimeout: time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
	})

	a.Health = health.NewServer(health.Config{
		ServiceName: cfg.App.Name,
		Version:     build.Version,
		Commit:      build.Commit,
		Addr:        fmt.Sprintf(":%d", cfg.Server.HealthPort),
		Logger:      log,
		Checks:      a.healthChecks(),
		Metrics:     a.metricsHandler(),
	})

	log.WithFields(logrus.Fields{
		"environment": cfg.App.Environment,
		"store":       cfg.Store.Backend,
		"platform":    cfg.Platform.Mode,
		"research":    cfg.Research.Enabled,
	}).Info("Research lab initialized")

	return a, nil
}

func (a *App) initStore(ctx context.Context) error {
	if a.Config.Store.Backend != storeBackendPostgres {
		a.Repositories = repository.NewMemoryRepositories()
		a.Logger.Warn("Using in-memory store; experiments will not survive a restart")
		return nil
	}

	db, err := database.Initialize(ctx, a.Config)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	repos, err := repository.NewRepositories(db)
	if err != nil {
		db.Close()
		return err
	}
	a.db = db
	a.Repositories = repos
	return nil
}

func (a *App) initPlatform() error {
	cfg := a.Config.Platform
	if cfg.Mode == platformModeSimulated {
		a.Platform = platform.NewSimulator(cfg.SimulatedPolls)
	} else {
		a.httpClient = platform.NewHTTPClient(&a.Config.Platform, a.Logger, a.Metrics)
		a.Platform = a.httpClient
	}

	if cfg.GRPCHealthAddress != "" {
		checker, err := platform.NewGRPCHealthChecker(cfg.GRPCHealthAddress, "")
		if err != nil {
			return fmt.Errorf("failed to create platform gRPC health checker: %w", err)
		}
		a.grpcHealth = checker
	}
	return nil
}

func (a *App) initEvents() error {
	a.Hub = events.NewHub(a.Logger)

	kcfg := a.Config.Events.Kafka
	if !kcfg.Enabled {
		return nil
	}
	kafka, err := events.NewKafkaPublisher(kcfg.Brokers, kcfg.Topic, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create kafka publisher: %w", err)
	}
	a.kafka = kafka
	return nil
}

func (a *App) publisher() events.Publisher {
	sinks := []events.Publisher{a.Hub}
	if a.kafka != nil {
		sinks = append(sinks, a.kafka)
	}
	return events.NewMultiPublisher(a.Logger, a.Metrics, sinks...)
}

func (a *App) generator() hypothesis.Generator {
	hcfg := a.Config.Hypothesis
	if !hcfg.Enabled || hcfg.URL == "" {
		return hypothesis.NewTemplateGenerator()
	}

	var gen hypothesis.Generator = hypothesis.NewHTTPGenerator(&a.Config.Hypothesis, a.Logger)
	if hcfg.CacheTTLSeconds > 0 {
		gen = hypothesis.NewCachedGenerator(gen, time.Duration(hcfg.CacheTTLSeconds)*time.Second, a.Logger, a.Metrics)
	}
	return gen
}

func (a *App) initScheduler() error {
	rcfg := a.Config.Research
	s := scheduler.NewScheduler(a.Research, a.Logger)

	if rcfg.Schedule != "" {
		if err := s.ScheduleResearchCycle(rcfg.Schedule); err != nil {
			return err
		}
		if rcfg.RefineTopN > 0 {
			if err := s.ScheduleRefinement(rcfg.Schedule, rcfg.RefineTopN); err != nil {
				return err
			}
		}
	}
	if err := s.ScheduleStartPending(pendingSweepInterval); err != nil {
		return err
	}
	a.Scheduler = s
	return nil
}

func (a *App) healthChecks() map[string]health.CheckFunc {
	checks := map[string]health.CheckFunc{
		"store":    a.Orchestrator.Ping,
		"platform": a.Platform.HealthCheck,
	}
	if a.grpcHealth != nil {
		checks["platform_grpc"] = a.grpcHealth.Check
	}
	return checks
}

func (a *App) metricsHandler() http.Handler {
	if !a.Config.Metrics.Enabled {
		return nil
	}
	return a.Metrics.Handler()
}

// Start recovers orphaned experiments and brings up the servers and scheduler.
// The servers stop when ctx is cancelled or Shutdown is called.
func (a *App) Start(ctx context.Context) error {
	if err := a.Orchestrator.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize orchestrator: %w", err)
	}

	ctx, a.cancel = context.WithCancel(ctx)
	if err := a.Health.Start(ctx); err != nil {
		return fmt.Errorf("failed to start health server: %w", err)
	}
	if err := a.API.Start(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}
	if a.Scheduler != nil {
		if err := a.Scheduler.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	a.Health.SetReady(true)
	a.Logger.Info("Research lab started")
	return nil
}

// Shutdown stops intake first, then cancels running experiments and releases
// connections. It returns every error encountered.
func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.Info("Shutting down research lab")
	if a.Health != nil {
		a.Health.SetReady(false)
	}

	var errs []error
	if a.Scheduler != nil {
		if err := a.Scheduler.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("scheduler: %w", err))
		}
	}
	if a.API != nil {
		if err := a.API.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("api: %w", err))
		}
	}
	if a.Orchestrator != nil {
		if err := a.Orchestrator.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("orchestrator: %w", err))
		}
	}
	if a.Health != nil {
		if err := a.Health.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("health: %w", err))
		}
	}
	if a.cancel != nil {
		a.cancel()
	}
	if err := a.closeResources(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	a.Logger.Info("Research lab stopped")
	return nil
}

func (a *App) closeResources() error {
	var errs []error
	if a.Hub != nil {
		a.Hub.Close()
	}
	if a.kafka != nil {
		if err := a.kafka.Close(); err != nil {
			errs = append(errs, fmt.Errorf("kafka: %w", err))
		}
	}
	if a.grpcHealth != nil {
		if err := a.grpcHealth.Close(); err != nil {
			errs = append(errs, fmt.Errorf("grpc health: %w", err))
		}
	}
	if a.httpClient != nil {
		a.httpClient.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
	return errors.Join(errs...)
}
