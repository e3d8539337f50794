package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"reservation-service/internal/api"
	"reservation-service/internal/clock"
	"reservation-service/internal/config"
	"reservation-service/internal/kafka"
	redisCache "reservation-service/internal/redis"
	"reservation-service/internal/repository"
	"reservation-service/internal/service"
	"reservation-service/migrations"
)

// setupLogging configures structured logging
func setupLogging() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

// initializeDatabase sets up the database connection and applies migrations
func initializeDatabase(cfg *config.Config) *sqlx.DB {
	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.DatabaseMaxConns)
	db.SetMaxIdleConns(cfg.DatabaseMaxIdleConns)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := migrations.Apply(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	log.Info().Msg("Database connection established")
	return db
}

// initializeCache sets up Redis cache with cluster support
func initializeCache(cfg *config.Config) *redisCache.CacheClient {
	cache := redisCache.NewCacheClient(
		cfg.RedisAddrs,
		cfg.RedisPassword,
		cfg.RedisClusterMode,
		cfg.RedisTTL,
		cfg.RedisKeyPrefix,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := cache.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	log.Info().Msg("Redis connection established")

	return cache
}

// createEngine creates and configures the reservation engine
func createEngine(db *sqlx.DB, cache *redisCache.CacheClient, cfg *config.Config) *service.ReservationEngine {
	engineConfig := service.EngineConfig{
		HoldDuration:   cfg.HoldDuration,
		SweepInterval:  cfg.SweepInterval,
		SweepBatch:     cfg.SweepBatch,
		TxMaxRetries:   cfg.TxMaxRetries,
		TxRetryBackoff: cfg.TxRetryBackoff,
	}

	log.Info().
		Dur("hold_duration", engineConfig.HoldDuration).
		Dur("sweep_interval", engineConfig.SweepInterval).
		Int("sweep_batch", engineConfig.SweepBatch).
		Int("tx_max_retries", engineConfig.TxMaxRetries).
		Msg("Engine configuration loaded")

	listings := repository.NewListingRepository(db)
	store := repository.NewReservationRepository(db)

	engine, err := service.NewReservationEngine(listings, store, cache, clock.NewSystem(), engineConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create reservation engine")
	}

	return engine
}

// startHTTPServer starts the HTTP server
func startHTTPServer(cfg *config.Config, engine *service.ReservationEngine) *http.Server {
	engineHandler := api.NewEngineHandler(engine)
	router := engineHandler.SetupEngineRoutes()

	serverAddr := fmt.Sprintf("%s:%s", cfg.ServerAddr, cfg.ServerPort)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("address", serverAddr).Msg("Reservation API server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start HTTP server")
		}
	}()

	return server
}

// startOutboxWorker starts the outbox publisher with advisory locks
func startOutboxWorker(ctx context.Context, db *sqlx.DB, publisher *kafka.Publisher, cfg *config.Config) {
	outboxRepo := repository.NewOutboxRepository(db)
	outboxCfg := kafka.OutboxConfig{
		LockKey:      cfg.OutboxLockKey,
		BatchSize:    cfg.OutboxBatchSize,
		PollInterval: cfg.OutboxPollInterval,
	}

	go func() {
		publisher.RunOutboxPublisher(ctx, outboxRepo, outboxCfg)
		log.Warn().Msg("Outbox publisher stopped")
	}()
}

// gracefulShutdown handles graceful shutdown of the service
func gracefulShutdown(server *http.Server, cancel context.CancelFunc) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down reservation API...")
	cancel()

	ctx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Reservation API stopped")
}

func main() {
	setupLogging()
	log.Info().Msg("Starting reservation API...")

	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	db := initializeDatabase(cfg)
	defer db.Close()

	cache := initializeCache(cfg)
	defer cache.Close()

	log.Info().Strs("kafka_brokers", cfg.KafkaBrokers).Msg("Initializing Kafka publisher")
	publisher := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaEventsTopic)
	defer publisher.Close()

	engine := createEngine(db, cache, cfg)

	server := startHTTPServer(cfg, engine)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	startOutboxWorker(workerCtx, db, publisher, cfg)

	gracefulShutdown(server, workerCancel)
}
