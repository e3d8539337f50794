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
	"reservation-service/internal/repository"
	"reservation-service/internal/service"
)

// setupLogging configures structured logging
func setupLogging() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

// initializeDatabase sets up and tests the database connection
func initializeDatabase(cfg *config.Config) *sqlx.DB {
	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.DatabaseMaxConns)
	db.SetMaxIdleConns(cfg.DatabaseMaxIdleConns)

	log.Info().Msg("Database connection established")
	return db
}

// createEngine creates the reservation engine without a cache; the
// sweeper only moves overdue pending holds to expired, which never
// changes stock.
func createEngine(db *sqlx.DB, cfg *config.Config) *service.ReservationEngine {
	engineConfig := service.EngineConfig{
		HoldDuration:   cfg.HoldDuration,
		SweepInterval:  cfg.SweepInterval,
		SweepBatch:     cfg.SweepBatch,
		TxMaxRetries:   cfg.TxMaxRetries,
		TxRetryBackoff: cfg.TxRetryBackoff,
	}

	listings := repository.NewListingRepository(db)
	store := repository.NewReservationRepository(db)

	engine, err := service.NewReservationEngine(listings, store, nil, clock.NewSystem(), engineConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create reservation engine")
	}

	return engine
}

// startHTTPServer starts the HTTP server for health and metrics
func startHTTPServer(cfg *config.Config) *http.Server {
	handler := api.NewSweeperHandler()
	serverAddr := fmt.Sprintf("%s:%s", cfg.ServerAddr, cfg.ServerPort)

	srv := &http.Server{
		Addr:    serverAddr,
		Handler: handler.SetupSweeperRoutes(),
	}

	go func() {
		log.Info().Str("address", serverAddr).Msg("Sweeper HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	return srv
}

// gracefulShutdown handles graceful shutdown of the service
func gracefulShutdown(cancel context.CancelFunc, srv *http.Server) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down sweeper...")

	cancel()

	ctx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("HTTP server forced shutdown")
	}

	log.Info().Msg("Sweeper stopped")
}

func main() {
	setupLogging()
	log.Info().Msg("Starting reservation sweeper...")

	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	db := initializeDatabase(cfg)
	defer db.Close()

	engine := createEngine(db, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := startHTTPServer(cfg)
	go engine.RunSweeper(ctx)

	gracefulShutdown(cancel, srv)
}
