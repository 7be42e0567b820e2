package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/shunguan/voteable/internal/adapter/httpserver"
	"github.com/shunguan/voteable/internal/adapter/metrics"
	"github.com/shunguan/voteable/internal/adapter/postgres"
	"github.com/shunguan/voteable/internal/adapter/redis"
	"github.com/shunguan/voteable/internal/app"
	"github.com/shunguan/voteable/internal/domain"
	"github.com/shunguan/voteable/internal/platform/config"
	"github.com/shunguan/voteable/internal/platform/logging"
	"github.com/shunguan/voteable/internal/platform/retry"
	"github.com/shunguan/voteable/internal/platform/version"
	"github.com/shunguan/voteable/internal/voteable"
	"github.com/shunguan/voteable/internal/voting"
)

const connectTimeout = 10 * time.Second

var connectPolicy = retry.Policy{
	MaxAttempts:    5,
	InitialBackoff: 500 * time.Millisecond,
	MaxBackoff:     5 * time.Second,
	OnRetry: func(attempt int, err error, backoff time.Duration) {
		slog.Warn("Store connection failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
	},
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupRegistry(cfg *config.Config) *voteable.Registry {
	registry, err := voteable.LoadFile(cfg.VoteablesFile)
	if err != nil {
		slog.Error("Failed to load voteable relations", "file", cfg.VoteablesFile, "error", err)
		os.Exit(1)
	}
	slog.Info("Voteable relations loaded", "file", cfg.VoteablesFile, "types", registry.Types())
	return registry
}

func setupRedis(cfg *config.Config, storeMetrics *metrics.StoreMetrics) *goredis.Client {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout*time.Duration(connectPolicy.MaxAttempts))
	defer cancel()

	client, err := retry.Do(ctx, connectPolicy, retry.Always, func(ctx context.Context) (*goredis.Client, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		return redis.NewClient(attemptCtx, cfg.RedisURL, redis.NewMetricsHook(storeMetrics))
	})
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	// Installed after the first successful ping so startup retries cannot trip it.
	client.AddHook(redis.NewCircuitBreakerHook(storeMetrics))
	return client
}

func setupPostgres(cfg *config.Config, storeMetrics *metrics.StoreMetrics) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout*time.Duration(connectPolicy.MaxAttempts))
	defer cancel()

	pool, err := retry.Do(ctx, connectPolicy, retry.Always, func(ctx context.Context) (*pgxpool.Pool, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		return postgres.Connect(attemptCtx, cfg.DatabaseURL, postgres.NewMetricsTracer(storeMetrics))
	})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	return pool
}

// setupStore returns the configured backend and a cleanup func.
func setupStore(cfg *config.Config, reg prometheus.Registerer, clock clockwork.Clock) (domain.Store, func()) {
	switch cfg.StoreBackend {
	case config.BackendRedis:
		client := setupRedis(cfg, metrics.NewStoreMetrics(reg))
		return redis.NewVoteeStore(client), func() { _ = client.Close() }
	case config.BackendPostgres:
		storeMetrics := metrics.NewStoreMetrics(reg)
		pool := setupPostgres(cfg, storeMetrics)
		breaker := postgres.NewCircuitBreaker(storeMetrics)
		return postgres.NewVoteeStore(pool, postgres.WithCircuitBreaker(breaker)), pool.Close
	default:
		slog.Warn("Using in-memory store, votes are lost on restart")
		return voting.NewMemoryStore(clock), func() {}
	}
}

func runGracefulShutdown(srv *httpserver.Server, timeout time.Duration) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting",
		"env", cfg.AppEnv,
		"port", cfg.Port,
		"store", cfg.StoreBackend,
		"version", version.Get().String())

	reg := metrics.NewRegistry()
	registry := setupRegistry(cfg)

	store, closeStore := setupStore(cfg, reg, clock)
	defer closeStore()

	engine := voting.NewEngine(store, registry, clock, metrics.NewVoteMetrics(reg), voting.Config{
		VoteTimeout:            cfg.VoteTimeout,
		PropagationTimeout:     cfg.PropagationTimeout,
		PropagationConcurrency: cfg.PropagationConcurrency,
	})
	appSvc := app.NewService(store, engine, registry, clock)

	healthChecks := []httpserver.HealthCheck{
		{Name: cfg.StoreBackend, Check: store.Ping},
	}
	srv := httpserver.NewServer(cfg, appSvc, metrics.NewHTTPMetrics(reg), metrics.Handler(reg), healthChecks, clock)

	done := runGracefulShutdown(srv, cfg.ShutdownTimeout)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
	slog.Info("Server stopped")
}
