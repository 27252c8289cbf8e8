// Harrier - Identity-theft risk dashboard engine.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/opensource-finance/harrier/internal/api"
	"github.com/opensource-finance/harrier/internal/bus"
	"github.com/opensource-finance/harrier/internal/cache"
	"github.com/opensource-finance/harrier/internal/config"
	"github.com/opensource-finance/harrier/internal/dataset"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/metrics"
	"github.com/opensource-finance/harrier/internal/pipeline"
	"github.com/opensource-finance/harrier/internal/report"
	"github.com/opensource-finance/harrier/internal/repository"
	"github.com/opensource-finance/harrier/internal/rules"
	"github.com/opensource-finance/harrier/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	slog.SetDefault(newLogger(cfg.Logging))

	slog.Info("starting harrier",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"source", cfg.Source.Type,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Rule Engine
	engine, err := rules.NewEngine(cfg.ScoringWorkers)
	if err != nil {
		slog.Error("failed to initialize rule engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	if err := loadRules(ctx, cfg, repo, engine); err != nil {
		slog.Error("failed to load rules", "error", err)
		os.Exit(1)
	}
	slog.Info("rule engine initialized", "rules_count", engine.RulesCount(), "max_score", engine.MaxScore())

	// Load the transaction snapshot
	src, err := repository.NewSource(ctx, cfg.Source, repo)
	if err != nil {
		slog.Error("failed to initialize transaction source", "error", err)
		os.Exit(1)
	}
	if cfg.Source.Type != "sql" {
		defer src.Close()
	}

	loadStart := time.Now()
	snapshot, err := dataset.Load(ctx, src, cfg.Source.Limit)
	if err != nil {
		slog.Error("failed to load transactions", "error", err)
		os.Exit(1)
	}
	slog.Info("transactions loaded",
		"source", cfg.Source.Type,
		"records", snapshot.Len(),
		"duration_ms", time.Since(loadStart).Milliseconds(),
	)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	collector := metrics.NewCollector()
	svc := pipeline.NewService(snapshot, engine, collector)

	// Initialize report dispatch
	var transport report.Transport
	smtp, err := report.NewSMTPTransport(cfg.Mail)
	switch {
	case errors.Is(err, report.ErrMailNotConfigured):
		slog.Warn("mail credentials not configured, report dispatch disabled")
	case err != nil:
		slog.Error("failed to initialize mail transport", "error", err)
		os.Exit(1)
	default:
		transport = smtp
		slog.Info("mail transport initialized", "server", cfg.Mail.SMTPServer, "port", cfg.Mail.SMTPPort)
	}
	dispatcher := report.NewDispatcher(svc, transport, cacheImpl, busImpl, collector, cfg.Report)

	// Initialize report worker
	var reportWorker *worker.Worker
	if cfg.Report.Worker {
		reportWorker = worker.NewWorker(busImpl, dispatcher)
		if err := reportWorker.Start(); err != nil {
			slog.Error("failed to start report worker", "error", err)
			reportWorker = nil
		} else {
			slog.Info("report worker started")
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, api.Deps{
		Pipeline:     svc,
		Reports:      dispatcher,
		Repo:         repo,
		Cache:        cacheImpl,
		Bus:          busImpl,
		Metrics:      collector,
		Version:      Version,
		AsyncReports: reportWorker != nil,
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("harrier is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version, snapshot.Len())

	<-ctx.Done()
	slog.Info("shutting down...")

	if reportWorker != nil {
		if err := reportWorker.Stop(); err != nil {
			slog.Error("failed to stop report worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("harrier shutdown complete")
}

func newLogger(cfg domain.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// loadRules seeds the repository when it holds no rules, then loads the
// stored rules into the engine. Rules can be changed later through
// POST /rules and POST /rules/reload.
func loadRules(ctx context.Context, cfg *domain.Config, repo domain.Repository, engine *rules.Engine) error {
	stored, err := repo.ListRiskRules(ctx)
	if err != nil {
		return fmt.Errorf("failed to list rules from database: %w", err)
	}

	if len(stored) == 0 {
		seed := rules.DefaultRiskRules()
		if len(cfg.Rules) > 0 {
			seed = make([]*domain.RiskRule, len(cfg.Rules))
			for i := range cfg.Rules {
				seed[i] = &cfg.Rules[i]
			}
		}

		for _, rule := range seed {
			if err := engine.ValidateRule(rule); err != nil {
				return err
			}
			if err := repo.SaveRiskRule(ctx, rule); err != nil {
				return fmt.Errorf("failed to seed rule %s: %w", rule.ID, err)
			}
		}
		slog.Info("seeded risk rules", "count", len(seed))
		stored = seed
	}

	return engine.LoadRules(stored)
}

func printBanner(cfg *domain.Config, version string, records int) {
	fmt.Println()
	fmt.Println("  HARRIER - Identity-Theft Risk Dashboard")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Records:  %d\n", records)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    GET  /dashboard         - KPIs, charts and top alerts")
	fmt.Println("    GET  /kpis              - KPI bundle")
	fmt.Println("    GET  /charts            - Chart tables")
	fmt.Println("    GET  /alerts            - Ranked alerts")
	fmt.Println("    GET  /alerts.csv        - Alert export")
	fmt.Println("    GET  /filters           - Available filter values")
	fmt.Println("    GET  /report/preview    - Report summary preview")
	fmt.Println("    POST /reports           - Send an e-mail report")
	fmt.Println("    GET  /reports/{id}      - Get a dispatch result")
	fmt.Println("    GET  /rules             - List risk rules")
	fmt.Println("    POST /rules             - Create a risk rule")
	fmt.Println("    POST /rules/reload      - Hot-reload rules from database")
	fmt.Println("    GET  /metrics           - Prometheus metrics")
	fmt.Println("    GET  /health            - Health check")
	fmt.Println()
}
