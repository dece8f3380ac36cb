package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rupeeverse-engine/config"
	"rupeeverse-engine/internal/adapter/connectivity"
	httpHandler "rupeeverse-engine/internal/adapter/http/handler"
	fileStorage "rupeeverse-engine/internal/adapter/storage/file"
	pgStorage "rupeeverse-engine/internal/adapter/storage/postgres"
	redisStorage "rupeeverse-engine/internal/adapter/storage/redis"
	"rupeeverse-engine/internal/adapter/transport/ledger"
	"rupeeverse-engine/internal/core/ports"
	"rupeeverse-engine/internal/service"
	"rupeeverse-engine/pkg/logger"
	"rupeeverse-engine/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("storage", cfg.Storage.Backend).
		Msg("Starting RupeeVerse offline payment engine")

	ctx := context.Background()

	// Metrics registry
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// Select the durable slot-store backend
	var (
		slots   ports.SlotStore
		health  []ports.HealthChecker
		cleanup func()
	)
	switch cfg.Storage.Backend {
	case "redis":
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		cleanup = func() { rdb.Close() }
		slots = redisStorage.NewSlotStore(rdb)
		health = append(health, redisStorage.NewHealthCheck(rdb))
		log.Info().Msg("Redis slot store ready")

	case "postgres":
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		cleanup = pool.Close
		if err := pgStorage.EnsureSchema(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("Failed to prepare PostgreSQL schema")
		}
		slots = pgStorage.NewSlotStore(pool)
		health = append(health, pgStorage.NewHealthCheck(pool))
		log.Info().Msg("PostgreSQL slot store ready")

	default:
		store, err := fileStorage.NewSlotStore(cfg.Storage.Dir)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to prepare file slot store")
		}
		cleanup = func() {}
		slots = store
		health = append(health, fileStorage.NewHealthCheck(store))
		log.Info().Str("dir", cfg.Storage.Dir).Msg("File slot store ready")
	}
	defer cleanup()

	// Core services
	sigSvc := service.NewHMACSignatureService()
	sealer, err := service.NewEnvelopeService(cfg.Envelope.Secret, sigSvc, m, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize the integrity envelope")
	}

	store := service.NewDurableQueueStore(slots, sealer, m, log)

	// Demote entries a previous crash left mid-submission.
	if demoted, err := store.RecoverStale(ctx); err != nil {
		log.Error().Err(err).Msg("Stale entry recovery failed")
	} else if demoted > 0 {
		log.Info().Int("count", demoted).Msg("Recovered stale entries from previous run")
	}

	// Connectivity: probe the ledger health endpoint
	prober := connectivity.NewProber(cfg.Ledger.BaseURL, 5*time.Second, &http.Client{Timeout: 5 * time.Second}, log)
	defer prober.Close()

	monitor := service.NewConnectivityMonitor(prober, cfg.Sync.Debounce, log)
	defer monitor.Close()

	// Transport and sync engine
	transport := ledger.NewClient(
		cfg.Ledger.BaseURL,
		cfg.Ledger.AccessKey,
		cfg.Ledger.SecretKey,
		&http.Client{Timeout: cfg.Ledger.Timeout},
		sigSvc,
		log,
	)
	engine := service.NewSyncEngine(store, transport, monitor, cfg.Sync.SubmitTimeout, m, log)

	queueSvc := service.NewQueueFacade(store, engine, monitor, cfg.Sync.Interval, log)
	defer queueSvc.Close()

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		QueueSvc:       queueSvc,
		TokenCodec:     service.NewUPITokenCodec(),
		HealthCheckers: health,
		Registry:       registry,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
