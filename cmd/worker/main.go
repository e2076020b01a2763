// Package main is the entry point for the bakehouse maintenance worker.
// It expires idempotency keys and reports pool statistics for a shared database.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"bakehouse/internal/app"
	"bakehouse/internal/config"
	"bakehouse/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.Development(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)
	log = log.WithComponent("worker")

	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := app.OpenStorage(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to open storage", "error", err)
	}
	defer st.Close()

	log.Infow("starting worker",
		"cleanup_interval", cfg.Jobs.CleanupInterval,
		"pool_stats_interval", cfg.Jobs.PoolStatsInterval,
	)

	// Run one pass right away so a restarted worker does not wait a full interval.
	if _, err := app.Cleanup(ctx, st); err != nil {
		log.Warnw("initial cleanup failed", "error", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		app.RunMaintenance(ctx, cfg.Jobs, st)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}
