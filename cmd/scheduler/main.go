// Package main runs the factor pipeline on a schedule and serves health and metrics endpoints.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/factorlab/internal/config"
	"github.com/yourusername/factorlab/internal/database"
	"github.com/yourusername/factorlab/internal/health"
	"github.com/yourusername/factorlab/internal/logger"
	"github.com/yourusername/factorlab/internal/metrics"
	"github.com/yourusername/factorlab/internal/repository"
	"github.com/yourusername/factorlab/internal/scheduler"
	"github.com/yourusername/factorlab/internal/service"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	log := logger.NewLogger(cfg.App.LogLevel, cfg.App.Environment)
	logger.NewAuditLogger(log).LogConfigLoaded(*configPath, cfg.App.Environment, len(cfg.Universe.Tickers), cfg.Secrets.Enabled)

	if !cfg.Schedule.Enabled {
		log.Fatal("Scheduling is disabled in configuration")
	}
	mode := cfg.Schedule.Mode
	if mode == "" {
		mode = service.ModeCompare
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.InitRegistry()

	deps := service.PipelineDeps{}
	var pinger health.DatabasePinger
	if cfg.Database.Enabled {
		db, err := database.Initialize(ctx, cfg)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer db.Close()

		repos, err := repository.NewRepositories(db)
		if err != nil {
			log.Fatalf("Failed to initialize repositories: %v", err)
		}
		deps.Runs = repos.Run
		pinger = db
	}

	pipeline, err := service.NewPipeline(cfg, deps, log)
	if err != nil {
		log.Fatalf("Failed to create pipeline: %v", err)
	}

	sched := scheduler.NewScheduler(pipeline, log)
	if _, err := sched.SchedulePipeline(cfg.Schedule.Cron, mode); err != nil {
		log.Fatalf("Failed to schedule pipeline: %v", err)
	}

	healthServer := health.NewServer(health.Config{
		ServiceName: "factorlab-scheduler",
		Version:     Version,
		Commit:      GitCommit,
		Port:        healthPort(cfg),
		Logger:      log,
		DB:          pinger,
		Pipeline:    sched,
		MetricsPath: metricsPath(cfg),
	})
	if err := healthServer.Start(ctx); err != nil {
		log.Fatalf("Failed to start health server: %v", err)
	}

	if err := sched.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	healthServer.SetReady(true)

	log.WithFields(logrus.Fields{
		"cron":     cfg.Schedule.Cron,
		"mode":     mode,
		"next_run": sched.GetNextRun(),
	}).Info("Scheduler running")

	if cfg.Schedule.RunOnStart {
		go func() {
			_, _ = sched.RunNow(ctx, mode)
		}()
	}

	<-ctx.Done()
	healthServer.SetReady(false)
	if err := sched.Stop(); err != nil {
		log.WithError(err).Warn("Scheduler did not stop cleanly")
	}
	log.Info("Scheduler shut down")
}

func healthPort(cfg *config.Config) string {
	if cfg.Metrics.Port > 0 {
		return strconv.Itoa(cfg.Metrics.Port)
	}
	return ""
}

func metricsPath(cfg *config.Config) string {
	if !cfg.Metrics.Enabled {
		return ""
	}
	if cfg.Metrics.Path == "" {
		return "/metrics"
	}
	return cfg.Metrics.Path
}
