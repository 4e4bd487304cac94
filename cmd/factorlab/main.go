// Package main provides the factorlab research CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/factorlab/internal/config"
	"github.com/yourusername/factorlab/internal/database"
	"github.com/yourusername/factorlab/internal/logger"
	"github.com/yourusername/factorlab/internal/metrics"
	"github.com/yourusername/factorlab/internal/repository"
	"github.com/yourusername/factorlab/internal/service"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
)

var (
	configFile string
	outputDir  string
	quiet      bool

	cfg   *config.Config
	log   *logrus.Logger
	db    *database.DB
	repos *repository.Repositories
)

var rootCmd = &cobra.Command{
	Use:     "factorlab",
	Short:   "Fama-French factor research pipeline",
	Long:    `Estimates factor loadings, ranks expected returns, backtests a top-N portfolio and compares it with a rolling random-forest strategy.`,
	Version: fmt.Sprintf("%s (%s)", Version, GitCommit),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := setupDependencies(cmd.Context()); err != nil {
			return fmt.Errorf("failed to setup dependencies: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if db != nil {
			db.Close()
		}
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output", "o", "", "Override the artifact output directory")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress console reports")

	rootCmd.AddCommand(
		pipelineCommand(service.ModeStatic, "Fit factor loadings, rank expected returns and backtest the top-N portfolio"),
		pipelineCommand(service.ModeRolling, "Fit rolling-window factor loadings for every asset"),
		pipelineCommand(service.ModeML, "Run the rolling random-forest selection strategy"),
		pipelineCommand(service.ModeCompare, "Run the static and ML strategies and compare them"),
		runsCmd,
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func loadConfig() error {
	var err error
	cfg, err = config.LoadAndValidate(configFile)
	if err != nil {
		return err
	}
	if outputDir != "" {
		cfg.Output.Directory = outputDir
	}
	if quiet {
		cfg.Output.Console = false
	}
	return nil
}

func setupDependencies(ctx context.Context) error {
	log = logger.NewLogger(cfg.App.LogLevel, cfg.App.Environment)
	logger.NewAuditLogger(log).LogConfigLoaded(configFile, cfg.App.Environment, len(cfg.Universe.Tickers), cfg.Secrets.Enabled)
	metrics.InitRegistry()

	if !cfg.Database.Enabled {
		return nil
	}

	var err error
	db, err = database.Initialize(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	repos, err = repository.NewRepositories(db)
	if err != nil {
		return fmt.Errorf("failed to initialize repositories: %w", err)
	}
	return nil
}

func pipelineCommand(mode, short string) *cobra.Command {
	return &cobra.Command{
		Use:   mode,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps := service.PipelineDeps{Output: cmd.OutOrStdout()}
			if repos != nil {
				deps.Runs = repos.Run
			}

			pipeline, err := service.NewPipeline(cfg, deps, log)
			if err != nil {
				return err
			}

			result, err := pipeline.Run(cmd.Context(), mode)
			if err != nil {
				log.WithError(err).WithField("mode", mode).Error("Pipeline failed")
				return err
			}

			log.WithFields(logrus.Fields{
				"run_id":    result.RunID.String(),
				"mode":      mode,
				"artifacts": len(result.Artifacts),
				"output":    cfg.Output.Directory,
			}).Info("Pipeline finished")
			return nil
		},
	}
}
