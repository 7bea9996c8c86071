// Kestrel - Loan pre-approval decisions in milliseconds.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/opensource-finance/kestrel/internal/api"
	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/cache"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/policy"
	"github.com/opensource-finance/kestrel/internal/recorder"
	"github.com/opensource-finance/kestrel/internal/repository"
	"github.com/opensource-finance/kestrel/internal/resubmit"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("KESTREL_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting kestrel",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("KESTREL_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	applyEnvOverrides(cfg)

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"rules", cfg.Policy.RulesPath,
		"messages", cfg.Policy.MessagesPath,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Load policy documents. A service that cannot decide must not start.
	store, err := policy.NewStore(cfg.Policy.RulesPath, cfg.Policy.MessagesPath)
	if err != nil {
		slog.Error("failed to load policy documents", "error", err)
		os.Exit(1)
	}
	slog.Info("policy loaded",
		"screening_rules", store.Screener().Count(),
		"credit_minimum", store.Rules().CreditScoreMinimum,
		"max_loan", store.Rules().MaxLoanAmount,
	)

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

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

	// Initialize submission Recorder
	rec := recorder.New(repo, busImpl, 0)
	rec.Start()

	// Initialize Resubmission Service
	resubSvc := resubmit.New(repo, cacheImpl, cfg.Policy.ResubmissionWindowDays)
	slog.Info("resubmission service initialized", "window_days", cfg.Policy.ResubmissionWindowDays)

	// Initialize Server
	srv := api.NewServer(cfg.Server, store, repo, cacheImpl, busImpl, rec, resubSvc, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("kestrel is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	// Drain queued submissions before closing the repository.
	rec.Stop()

	slog.Info("kestrel shutdown complete")
}

// applyEnvOverrides lets single settings be changed without a Pro/Community
// tier switch.
func applyEnvOverrides(cfg *domain.Config) {
	if v := os.Getenv("KESTREL_RULES"); v != "" {
		cfg.Policy.RulesPath = v
	}
	if v := os.Getenv("KESTREL_MESSAGES"); v != "" {
		cfg.Policy.MessagesPath = v
	}
	if v := os.Getenv("KESTREL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.Server.Port = port
		} else {
			slog.Warn("ignoring invalid KESTREL_PORT", "value", v)
		}
	}
	if v := os.Getenv("KESTREL_RESUBMIT_WINDOW_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil && days >= 0 {
			cfg.Policy.ResubmissionWindowDays = days
		} else {
			slog.Warn("ignoring invalid KESTREL_RESUBMIT_WINDOW_DAYS", "value", v)
		}
	}
	if v := os.Getenv("KESTREL_SQLITE_PATH"); v != "" && cfg.Repository.Driver == "sqlite" {
		cfg.Repository.SQLitePath = v
	}
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🦅 KESTREL                  ║")
	fmt.Println("  ║      Loan Pre-Approval Engine             ║")
	fmt.Println("  ║      Every applicant, answered.           ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /applications      - Submit a loan application")
	fmt.Println("    GET  /submissions       - List recorded submissions")
	fmt.Println("    GET  /submissions/{id}  - Get submission by ID")
	fmt.Println("    POST /contact           - Record a contact preference")
	fmt.Println("    GET  /policy            - Show active decision thresholds")
	fmt.Println("    POST /policy/reload     - Hot-reload policy documents")
	fmt.Println("    GET  /health            - Health check")
	fmt.Println("    GET  /ready             - Readiness check")
	fmt.Println()
}
