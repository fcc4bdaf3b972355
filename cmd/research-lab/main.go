package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yourusername/research-lab/internal/app"
	"github.com/yourusername/research-lab/internal/config"
	"github.com/yourusername/research-lab/internal/database"
	"github.com/yourusername/research-lab/internal/logger"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
)

// cli carries flag values to every subcommand
type cli struct {
	configFile string
	apiURL     string
	timeout    int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "research-lab",
		Short:         "Autonomous trading research lab",
		Long:          `Runs trading-strategy experiments, scores their results and learns from them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&c.configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
	root.PersistentFlags().StringVar(&c.apiURL, "api-url", "http://localhost:8080", "Research lab API base URL")
	root.PersistentFlags().IntVar(&c.timeout, "timeout", 30, "API request timeout in seconds")

	root.AddCommand(
		c.serveCmd(),
		c.migrateCmd(),
		c.experimentCmd(),
		c.researchCmd(),
		c.compareCmd(),
		c.versionCmd(),
	)
	return root
}

func (c *cli) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithDefaults(c.configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the orchestrator, API and research scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			lab, err := app.New(ctx, cfg, app.BuildInfo{Version: Version, Commit: GitCommit})
			if err != nil {
				return err
			}
			if err := lab.Start(ctx); err != nil {
				_ = lab.Shutdown(context.Background())
				return err
			}

			<-ctx.Done()
			lab.Logger.Info("Received shutdown signal")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Orchestrator.ShutdownTimeout())
			defer cancel()
			return lab.Shutdown(shutdownCtx)
		},
	}
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Store.Backend != "postgres" {
				return errors.New("migrate requires store.backend=postgres")
			}
			if err := config.LoadSecretsFromAWS(cmd.Context(), cfg); err != nil {
				return err
			}

			log := logger.NewLogger(cfg.App.LogLevel, cfg.App.Environment)
			db, err := database.NewDB(cmd.Context(), &cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := database.RunMigrations(cmd.Context(), db); err != nil {
				return err
			}
			log.Info("Database schema is up to date")
			return nil
		},
	}
}

func (c *cli) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "research-lab %s (%s)\n", Version, GitCommit)
		},
	}
}
