package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/restaurant-platform/webhook-gateway/backend"
	"github.com/restaurant-platform/webhook-gateway/config"
	"github.com/restaurant-platform/webhook-gateway/internal/http/chi"
	"github.com/restaurant-platform/webhook-gateway/metrics"
	"github.com/restaurant-platform/webhook-gateway/providers"
	"github.com/restaurant-platform/webhook-gateway/retry"
	"github.com/restaurant-platform/webhook-gateway/webhook"
	"github.com/restaurant-platform/webhook-gateway/webhook/postgres"
	"github.com/restaurant-platform/webhook-gateway/webhook/ratelimit"
	"github.com/restaurant-platform/webhook-gateway/webhook/redis"
)

const TIMEOUT = 30 * time.Second

/*
 * main wires the packages together: configuration, the chosen storage
 * driver, the provider registry, the circuit-breaker-guarded backend
 * client, the ingestion service, the HTTP surface, the background retry
 * processor, and the metrics exporter.
 *
 * Imports flow one direction only: the application layer imports the
 * business layer, which imports the storage layer.
 */

// storage is what main needs from either driver
type storage interface {
	webhook.Repository
	retry.Queue
}

func main() {
	cfg, err := config.GetConfig()
	if err != nil {
		fmt.Println(err)
		return
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT,
	)
	defer stop()

	registry, err := providers.Load(cfg.ProvidersFile)
	if err != nil {
		fmt.Println(err)
		return
	}

	repo, collector, err := openStorage(ctx, cfg)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer repo.Close(ctx)

	limiter := ratelimit.New(cfg.RateLimitDefault, time.Duration(cfg.RateWindowSecs)*time.Second)
	for _, name := range registry.Names() {
		_, settings, err := registry.Get(name)
		if err != nil {
			continue
		}
		if settings.RateLimit > 0 {
			limiter.SetLimit(name, settings.RateLimit)
		}
	}

	breaker := backend.NewBreaker(backend.BreakerSettings{
		ErrorThresholdPct: cfg.BreakerErrorThresholdPct,
		MinSamples:        cfg.BreakerMinSamples,
		WindowSize:        cfg.BreakerWindowSize,
		ResetTimeout:      time.Duration(cfg.BreakerResetTimeoutSecs) * time.Second,
		CallTimeout:       time.Duration(cfg.BreakerCallTimeoutSecs) * time.Second,
	})
	client := backend.NewClient(cfg.BackendURL, breaker)

	s := webhook.NewService(repo, repo, client, limiter, registry, webhook.Options{
		InitialRetryDelay: time.Duration(cfg.RetryInitialBackoffSecs) * time.Second,
		CompletedTTL:      time.Duration(cfg.CompletedTTLHours) * time.Hour,
	})

	exporter, err := metrics.NewOTelExporter(collector)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer exporter.Shutdown(context.Background())

	processor := retry.NewProcessor(repo, repo, client, retry.Config{
		Interval:    time.Duration(cfg.RetryIntervalSecs) * time.Second,
		BatchSize:   cfg.RetryBatchSize,
		Workers:     cfg.RetryWorkers,
		MaxAttempts: cfg.RetryMaxAttempts,
		Backoff: retry.Backoff{
			Initial: time.Duration(cfg.RetryInitialBackoffSecs) * time.Second,
			Max:     time.Duration(cfg.RetryMaxBackoffSecs) * time.Second,
		},
	}).WithMetrics(exporter)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		processor.Run(ctx)
	}()

	if redisRepo, ok := repo.(*redis.Repository); ok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			heartbeat(ctx, redisRepo)
		}()
	}
	if pgRepo, ok := repo.(*postgres.Repository); ok && cfg.CompletedTTLHours > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			purgeExpired(ctx, pgRepo)
		}()
	}

	r := chi.Handlers(ctx, s, chi.Options{FastAck: cfg.FastAck})
	http.Handle("/", r)
	srv := &http.Server{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		Addr:         ":" + cfg.Port,
		Handler:      http.DefaultServeMux,
	}

	errShutdown := make(chan error, 1)
	go shutdown(srv, ctx, errShutdown)
	fmt.Printf("Listening on port %s\n", cfg.Port)
	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		fmt.Println(err)
		return
	}
	err = <-errShutdown
	if err != nil {
		fmt.Println(err)
		return
	}

	// Let the retry processor drain claimed items
	wg.Wait()
}

// openStorage builds the configured storage driver and its matching
// metrics collector
func openStorage(ctx context.Context, cfg *config.Config) (storage, metrics.Collector, error) {
	switch cfg.StorageDriver {
	case "postgres":
		repo, err := postgres.NewRepository(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := repo.CreateTables(ctx); err != nil {
			return nil, nil, err
		}
		return repo, metrics.NewPostgresCollector(repo.DB), nil
	default:
		repo, err := redis.NewRepository(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		return repo, metrics.NewRedisCollector(repo.GetClient()), nil
	}
}

// heartbeat keeps this instance's retry worker visible to the metrics
// collector
func heartbeat(ctx context.Context, repo *redis.Repository) {
	workerID := uuid.New().String()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	if err := repo.SetWorkerHeartbeat(ctx, workerID, "processing"); err != nil {
		log.Printf("heartbeat: %v", err)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := repo.SetWorkerHeartbeat(ctx, workerID, "processing"); err != nil {
				log.Printf("heartbeat: %v", err)
			}
		}
	}
}

// purgeExpired sweeps completed logs past their TTL; PostgreSQL has no
// key expiry
func purgeExpired(ctx context.Context, repo *postgres.Repository) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := repo.PurgeExpiredLogs(ctx); err != nil {
				log.Printf("purging expired logs: %v", err)
			}
		}
	}
}

func shutdown(server *http.Server, ctxShutdown context.Context, errShutdown chan error) {
	<-ctxShutdown.Done()

	ctxTimeout, stop := context.WithTimeout(context.Background(), TIMEOUT)
	defer stop()

	err := server.Shutdown(ctxTimeout)
	switch err {
	case nil:
		fmt.Printf("\nShutting down server...\n")
		errShutdown <- nil
	case context.DeadlineExceeded:
		errShutdown <- fmt.Errorf("forcing closing the server")
	default:
		errShutdown <- fmt.Errorf("forcing closing the server")
	}
}
